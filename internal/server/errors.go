package server

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	adoptiondomain "github.com/globalping/backoffice/internal/adoption/domain"
	"github.com/globalping/backoffice/internal/citysearch"
	"github.com/globalping/backoffice/internal/controlapi"
	creditsdomain "github.com/globalping/backoffice/internal/credits/domain"
	"github.com/globalping/backoffice/internal/geocode"
	probedomain "github.com/globalping/backoffice/internal/probe/domain"
	sponsordomain "github.com/globalping/backoffice/internal/sponsor/domain"
	tokendomain "github.com/globalping/backoffice/internal/token/domain"
	userdomain "github.com/globalping/backoffice/internal/user/domain"
	"gorm.io/gorm"
)

type errorPayload struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrUnauthorized   = errors.New("unauthorized")
	ErrForbidden      = errors.New("forbidden")
	ErrNotFound       = errors.New("not_found")
	ErrInvalidRequest = errors.New("invalid_request")
)

// ErrorHandlingMiddleware renders the last handler error as a JSON body from
// the taxonomy: 400 invalid payload, 401, 404, 429 and a generic 500 whose
// cause is only logged server-side.
func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		var tooMany *adoptiondomain.TooManyRequestsError
		if errors.As(lastErr.Err, &tooMany) {
			c.Header("Retry-After", fmt.Sprintf("%d", int(tooMany.RetryAfter.Seconds())+1))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, errorResponse{Error: errorPayload{
				Type:    "too_many_requests",
				Message: "too many requests, please retry later",
			}})
			return
		}

		status, payload := mapError(lastErr.Err)
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func mapError(err error) (int, errorPayload) {
	switch {
	case isInvalidPayload(err):
		return http.StatusBadRequest, errorPayload{
			Type:    "invalid_payload_error",
			Message: err.Error(),
		}
	case errors.Is(err, ErrUnauthorized),
		errors.Is(err, sponsordomain.ErrInvalidSignature),
		errors.Is(err, tokendomain.ErrTokenExpired):
		return http.StatusUnauthorized, errorPayload{
			Type:    "unauthorized",
			Message: "unauthorized",
		}
	case errors.Is(err, ErrForbidden), errors.Is(err, probedomain.ErrNotProbeOwner):
		return http.StatusForbidden, errorPayload{
			Type:    "forbidden",
			Message: "forbidden",
		}
	case isNotFound(err):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "not found",
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}

func isInvalidPayload(err error) bool {
	invalid := []error{
		ErrInvalidRequest,
		userdomain.ErrInvalidPrefix,
		userdomain.ErrInvalidUserType,
		userdomain.ErrInvalidGithubID,
		probedomain.ErrInvalidTag,
		probedomain.ErrInvalidLocation,
		tokendomain.ErrInvalidOrigin,
		tokendomain.ErrInvalidName,
		adoptiondomain.ErrInvalidIP,
		adoptiondomain.ErrInvalidCode,
		adoptiondomain.ErrNoPending,
		creditsdomain.ErrInvalidAmount,
		creditsdomain.ErrInvalidReason,
		creditsdomain.ErrInvalidMeta,
		creditsdomain.ErrInsufficientCredits,
		sponsordomain.ErrInvalidPayload,
		citysearch.ErrEmptyQuery,
		// Upstream failures surface as sanitized 400s.
		geocode.ErrUnavailable,
		controlapi.ErrUnavailable,
		controlapi.ErrProbeNotFound,
		geocode.ErrNotFound,
	}
	for _, candidate := range invalid {
		if errors.Is(err, candidate) {
			return true
		}
	}
	return false
}

func isNotFound(err error) bool {
	notFound := []error{
		ErrNotFound,
		userdomain.ErrUserNotFound,
		userdomain.ErrInvalidToken,
		probedomain.ErrProbeNotFound,
		tokendomain.ErrTokenNotFound,
		tokendomain.ErrAppNotFound,
		tokendomain.ErrNothingRevoked,
		gorm.ErrRecordNotFound,
	}
	for _, candidate := range notFound {
		if errors.Is(err, candidate) {
			return true
		}
	}
	return false
}
