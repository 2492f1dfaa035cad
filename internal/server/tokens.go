package server

import (
	"net/http"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	tokendomain "github.com/globalping/backoffice/internal/token/domain"
)

func (s *Server) handleListApplications(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	applications, err := s.tokenSvc.ListApplications(c.Request.Context(), userID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"applications": applications})
}

type revokeApplicationRequest struct {
	ID string `json:"id" binding:"required"`
}

func (s *Server) handleRevokeApplication(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	var req revokeApplicationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}
	appID, err := snowflake.ParseString(req.ID)
	if err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	if err := s.tokenSvc.Revoke(c.Request.Context(), userID, appID); err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"revoked": true})
}

func (s *Server) handleListTokens(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	tokens, err := s.tokenSvc.ListByUser(c.Request.Context(), userID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tokens": tokens})
}

type createTokenRequest struct {
	Name    string   `json:"name" binding:"required"`
	Origins []string `json:"origins"`
	Expire  *string  `json:"expire"`
	Type    string   `json:"type"`
}

func (s *Server) handleCreateToken(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	var req createTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	var expire *time.Time
	if req.Expire != nil && *req.Expire != "" {
		parsed, err := time.Parse("2006-01-02", *req.Expire)
		if err != nil {
			AbortWithError(c, ErrInvalidRequest)
			return
		}
		expire = &parsed
	}

	token, plaintext, err := s.tokenSvc.Create(c.Request.Context(), tokendomain.CreateRequest{
		UserID:  userID,
		Name:    req.Name,
		Origins: req.Origins,
		Expire:  expire,
		Type:    tokendomain.TokenType(req.Type),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token, "value": plaintext})
}

func (s *Server) handleDeleteToken(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}
	tokenID, err := snowflake.ParseString(c.Param("id"))
	if err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	if err := s.tokenSvc.Delete(c.Request.Context(), userID, tokenID); err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": true})
}
