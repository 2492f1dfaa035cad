package server

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	adoptiondomain "github.com/globalping/backoffice/internal/adoption/domain"
	"github.com/globalping/backoffice/internal/geocode"
	probedomain "github.com/globalping/backoffice/internal/probe/domain"
	tokendomain "github.com/globalping/backoffice/internal/token/domain"
	userdomain "github.com/globalping/backoffice/internal/user/domain"
	"github.com/stretchr/testify/require"
)

func performWithError(t *testing.T, err error) *httptest.ResponseRecorder {
	t.Helper()
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(ErrorHandlingMiddleware())
	r.GET("/boom", func(c *gin.Context) {
		AbortWithError(c, err)
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/boom", nil)
	r.ServeHTTP(w, req)
	return w
}

func TestErrorMapping(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		typ    string
	}{
		{"invalid tag", probedomain.ErrInvalidTag, http.StatusBadRequest, "invalid_payload_error"},
		{"lookalike message is not a match", errors.New(tokendomain.ErrInvalidOrigin.Error()), http.StatusInternalServerError, "internal_error"},
		{"geocoder down", geocode.ErrUnavailable, http.StatusBadRequest, "invalid_payload_error"},
		{"expired token", tokendomain.ErrTokenExpired, http.StatusUnauthorized, "unauthorized"},
		{"not owner", probedomain.ErrNotProbeOwner, http.StatusForbidden, "forbidden"},
		{"missing user", userdomain.ErrUserNotFound, http.StatusNotFound, "not_found"},
		{"unknown", errors.New("disk on fire"), http.StatusInternalServerError, "internal_error"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := performWithError(t, tc.err)
			require.Equal(t, tc.status, w.Code)
			require.Contains(t, w.Body.String(), `"type":"`+tc.typ+`"`)
		})
	}
}

func TestInternalErrorsHideTheCause(t *testing.T) {
	w := performWithError(t, errors.New("password=hunter2 leaked"))
	require.Equal(t, http.StatusInternalServerError, w.Code)
	require.NotContains(t, w.Body.String(), "hunter2")
	require.Contains(t, w.Body.String(), "internal server error")
}

func TestTooManyRequestsSetsRetryAfter(t *testing.T) {
	w := performWithError(t, &adoptiondomain.TooManyRequestsError{RetryAfter: 90 * time.Second})
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	require.Equal(t, "91", w.Header().Get("Retry-After"))
	require.Contains(t, w.Body.String(), `"type":"too_many_requests"`)
}

func TestWrappedDomainErrorsStillMap(t *testing.T) {
	wrapped := errors.Join(errors.New("update probe"), probedomain.ErrInvalidLocation)
	w := performWithError(t, wrapped)
	require.Equal(t, http.StatusBadRequest, w.Code)
}
