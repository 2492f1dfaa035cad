package geocode

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func gazetteerServer(t *testing.T, hits *int, responses map[string]string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*hits++
		require.Equal(t, "/searchJSON", r.URL.Path)
		q := r.URL.Query()
		require.Equal(t, "P", q.Get("featureClass"))
		require.Equal(t, "1", q.Get("maxRows"))

		body, ok := responses[q.Get("q")+"|"+q.Get("country")]
		if !ok {
			body = `{"geonames":[]}`
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}))
}

func TestResolveFuzzyMatch(t *testing.T) {
	hits := 0
	server := gazetteerServer(t, &hits, map[string]string{
		"marsel|FR": `{"geonames":[{"name":"Marseille","adminCode1":"93","countryCode":"FR","lat":"43.29695","lng":"5.38107"}]}`,
	})
	defer server.Close()

	client := NewClient(server.URL, "demo", zaptest.NewLogger(t))

	location, err := client.Resolve(context.Background(), "marsel", "fr")
	require.NoError(t, err)
	require.Equal(t, "Marseille", location.City)
	require.Equal(t, "FR", location.Country)
	require.Nil(t, location.State)
	require.InDelta(t, 43.3, location.Latitude, 0.001)
	require.InDelta(t, 5.38, location.Longitude, 0.001)
}

func TestResolveSetsStateForUSCities(t *testing.T) {
	hits := 0
	server := gazetteerServer(t, &hits, map[string]string{
		"dallas|US": `{"geonames":[{"name":"Dallas","adminCode1":"TX","countryCode":"US","lat":"32.78306","lng":"-96.80667"}]}`,
	})
	defer server.Close()

	client := NewClient(server.URL, "demo", zaptest.NewLogger(t))

	location, err := client.Resolve(context.Background(), "dallas", "us")
	require.NoError(t, err)
	require.NotNil(t, location.State)
	require.Equal(t, "TX", *location.State)
}

func TestResolveCachesResults(t *testing.T) {
	hits := 0
	server := gazetteerServer(t, &hits, map[string]string{
		"paris|FR": `{"geonames":[{"name":"Paris","countryCode":"FR","lat":"48.85341","lng":"2.3488"}]}`,
	})
	defer server.Close()

	client := NewClient(server.URL, "demo", zaptest.NewLogger(t))

	for i := 0; i < 3; i++ {
		location, err := client.Resolve(context.Background(), "Paris", "FR")
		require.NoError(t, err)
		require.Equal(t, "Paris", location.City)
	}
	require.Equal(t, 1, hits)
}

func TestResolveNotFound(t *testing.T) {
	hits := 0
	server := gazetteerServer(t, &hits, nil)
	defer server.Close()

	client := NewClient(server.URL, "demo", zaptest.NewLogger(t))

	_, err := client.Resolve(context.Background(), "atlantis", "GR")
	require.ErrorIs(t, err, ErrNotFound)

	_, err = client.Resolve(context.Background(), "", "FR")
	require.ErrorIs(t, err, ErrNotFound)
	_, err = client.Resolve(context.Background(), "paris", "")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestResolveUpstreamFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client := NewClient(server.URL, "demo", zaptest.NewLogger(t))

	_, err := client.Resolve(context.Background(), "paris", "FR")
	require.ErrorIs(t, err, ErrUnavailable)
}
