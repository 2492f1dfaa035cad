package server

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	sponsordomain "github.com/globalping/backoffice/internal/sponsor/domain"
)

const maxWebhookBody = 1 << 20

func (s *Server) handleSponsorsWebhook(c *gin.Context) {
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	err = s.sponsorSvc.HandleWebhook(c.Request.Context(), payload, c.GetHeader("X-Hub-Signature-256"))
	if errors.Is(err, sponsordomain.ErrEventIgnored) {
		c.JSON(http.StatusOK, gin.H{"ignored": true})
		return
	}
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"processed": true})
}
