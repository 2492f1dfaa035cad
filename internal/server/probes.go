package server

import (
	"net/http"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	probedomain "github.com/globalping/backoffice/internal/probe/domain"
)

func (s *Server) handleListProbes(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	probes, err := s.probeSvc.ListByUser(c.Request.Context(), userID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"probes": probes})
}

type updateProbeRequest struct {
	Name    *string           `json:"name"`
	Tags    []probedomain.Tag `json:"tags"`
	City    *string           `json:"city"`
	Country *string           `json:"country"`
}

func (s *Server) handleUpdateProbe(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}
	probeID, err := snowflake.ParseString(c.Param("id"))
	if err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	var req updateProbeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	probe, err := s.probeSvc.Update(c.Request.Context(), probedomain.UpdateRequest{
		ProbeID: probeID,
		UserID:  userID,
		Name:    req.Name,
		Tags:    req.Tags,
		City:    req.City,
		Country: req.Country,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, probe)
}

func (s *Server) handleUnadoptProbe(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}
	probeID, err := snowflake.ParseString(c.Param("id"))
	if err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	probe, err := s.probeSvc.GetByID(c.Request.Context(), probeID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if probe.UserID == nil || *probe.UserID != userID {
		AbortWithError(c, probedomain.ErrNotProbeOwner)
		return
	}

	if err := s.probeSvc.Unassign(c.Request.Context(), probeID); err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"unassigned": true})
}
