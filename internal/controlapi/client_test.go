package controlapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestSendAdoptionCode(t *testing.T) {
	var received map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/v1/adoption-code", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"uuid": "9f6e2c51-0000-4000-8000-000000000001",
			"version": "0.39.0",
			"country": "DE",
			"city": "Berlin",
			"latitude": 52.52,
			"longitude": 13.41,
			"status": "ready"
		}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, zaptest.NewLogger(t))

	info, err := client.SendAdoptionCode(context.Background(), "203.0.113.5", "123456")
	require.NoError(t, err)
	require.Equal(t, "123456", received["code"])
	require.Equal(t, "203.0.113.5", received["ip"])
	require.Equal(t, "DE", info.Country)
	require.Equal(t, "ready", info.Status)
	// The IP falls back to the requested one when the response omits it.
	require.Equal(t, "203.0.113.5", info.IP)
}

func TestSendAdoptionCodeProbeNotFound(t *testing.T) {
	for _, status := range []int{http.StatusNotFound, http.StatusUnprocessableEntity} {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(status)
		}))

		client := NewClient(server.URL, zaptest.NewLogger(t))
		_, err := client.SendAdoptionCode(context.Background(), "203.0.113.5", "123456")
		require.ErrorIs(t, err, ErrProbeNotFound)
		server.Close()
	}
}

func TestSendAdoptionCodeUnavailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewClient(server.URL, zaptest.NewLogger(t))
	_, err := client.SendAdoptionCode(context.Background(), "203.0.113.5", "123456")
	require.ErrorIs(t, err, ErrUnavailable)
}
