package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	userdomain "github.com/globalping/backoffice/internal/user/domain"
)

func (s *Server) handleMe(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	me, err := s.userSvc.GetByID(c.Request.Context(), userID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, me)
}

type updateMeRequest struct {
	DefaultPrefix *string `json:"default_prefix"`
	UserType      *string `json:"user_type"`
}

func (s *Server) handleUpdateMe(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	var req updateMeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	var userType *userdomain.UserType
	if req.UserType != nil {
		t := userdomain.UserType(*req.UserType)
		userType = &t
	}

	me, err := s.userSvc.UpdateSettings(c.Request.Context(), userID, req.DefaultPrefix, userType)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, me)
}

func (s *Server) handleRegenerateAdoptionToken(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	token, err := s.userSvc.RegenerateToken(c.Request.Context(), userID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"adoption_token": token})
}
