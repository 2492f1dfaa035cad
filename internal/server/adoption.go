package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type sendCodeRequest struct {
	IP string `json:"ip" binding:"required"`
}

func (s *Server) handleSendAdoptionCode(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	var req sendCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	if err := s.adoptionSvc.SendCode(c.Request.Context(), userID, req.IP); err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sent": true})
}

type verifyCodeRequest struct {
	IP   string `json:"ip" binding:"required"`
	Code string `json:"code" binding:"required"`
}

func (s *Server) handleVerifyAdoptionCode(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	var req verifyCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	probe, err := s.adoptionSvc.VerifyCode(c.Request.Context(), userID, req.IP, req.Code)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, probe)
}

// handleLocalAdoption adopts the probe calling from the owner's own network.
// The probe IP is taken from the connection, not the payload.
func (s *Server) handleLocalAdoption(c *gin.Context) {
	probe, err := s.adoptionSvc.AdoptByToken(c.Request.Context(), c.Param("token"), c.ClientIP())
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, probe)
}
