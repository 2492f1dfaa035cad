package server

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

func (s *Server) handleCreditsTimeline(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	balance, err := s.creditsSvc.BalanceOf(c.Request.Context(), userID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	timeline, err := s.creditsSvc.Timeline(c.Request.Context(), userID, limit)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"amount":   balance,
		"timeline": timeline,
	})
}

func (s *Server) handleListNotifications(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	notifications, err := s.notifSvc.ListByUser(c.Request.Context(), userID, limit)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"notifications": notifications})
}
