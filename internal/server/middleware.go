package server

import (
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const contextUserIDKey = "user_id"

// AuthRequired resolves the bearer token to its owning user. The token's
// last_used timestamp is touched as a side effect.
func (s *Server) AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		value, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(value) == "" {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		token, err := s.tokenSvc.Authenticate(c.Request.Context(), strings.TrimSpace(value))
		if err != nil {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		c.Set(contextUserIDKey, token.UserID)
		c.Next()
	}
}

func currentUserID(c *gin.Context) (snowflake.ID, bool) {
	value, ok := c.Get(contextUserIDKey)
	if !ok {
		return 0, false
	}
	id, ok := value.(snowflake.ID)
	return id, ok
}

func RequestLogger(log *zap.Logger) gin.HandlerFunc {
	log = log.Named("http")
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("took", time.Since(start)),
		}
		if last := c.Errors.Last(); last != nil {
			fields = append(fields, zap.Error(last.Err))
		}
		if c.Writer.Status() >= 500 {
			log.Error("request failed", fields...)
			return
		}
		log.Debug("request handled", fields...)
	}
}
