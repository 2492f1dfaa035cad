package geocode

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/globalping/backoffice/internal/cache"
	"go.uber.org/zap"
)

// Location is a normalized gazetteer result. State is only set for US cities;
// coordinates are rounded to 2 decimals.
type Location struct {
	City      string
	State     *string
	Country   string
	Latitude  float64
	Longitude float64
}

type Resolver interface {
	Resolve(ctx context.Context, city, country string) (*Location, error)
}

var (
	ErrNotFound    = errors.New("city_not_found")
	ErrUnavailable = errors.New("geocoding_unavailable")
)

const (
	requestTimeout = 5 * time.Second
	// Results are cached briefly so the pre-write validation and the
	// post-write enrichment of one update share a single upstream call.
	resultTTL = 5 * time.Minute
)

type Client struct {
	baseURL  string
	username string
	http     *http.Client
	log      *zap.Logger
	results  cache.Cache[string, *Location]
}

func NewClient(baseURL, username string, log *zap.Logger) *Client {
	return &Client{
		baseURL:  strings.TrimSuffix(baseURL, "/"),
		username: username,
		http:     &http.Client{Timeout: requestTimeout},
		log:      log.Named("geocode.client"),
		results:  cache.NewTTLCache[string, *Location](),
	}
}

type searchResponse struct {
	Geonames []struct {
		Name        string `json:"name"`
		AdminCode1  string `json:"adminCode1"`
		CountryCode string `json:"countryCode"`
		Lat         string `json:"lat"`
		Lng         string `json:"lng"`
	} `json:"geonames"`
}

func (c *Client) Resolve(ctx context.Context, city, country string) (*Location, error) {
	city = strings.TrimSpace(city)
	country = strings.ToUpper(strings.TrimSpace(country))
	if city == "" || country == "" {
		return nil, ErrNotFound
	}

	key := strings.ToLower(city) + "|" + country
	if cached, ok := c.results.Get(key); ok {
		return cached, nil
	}

	query := url.Values{}
	query.Set("q", city)
	query.Set("country", country)
	query.Set("featureClass", "P")
	query.Set("maxRows", "1")
	query.Set("fuzzy", "0.6")
	query.Set("username", c.username)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/searchJSON?"+query.Encode(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Warn("gazetteer request failed", zap.Error(err))
		return nil, ErrUnavailable
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.log.Warn("gazetteer returned unexpected status", zap.Int("status", resp.StatusCode))
		return nil, ErrUnavailable
	}

	var parsed searchResponse
	if err := decodeJSON(resp, &parsed); err != nil {
		return nil, ErrUnavailable
	}
	if len(parsed.Geonames) == 0 {
		return nil, ErrNotFound
	}

	match := parsed.Geonames[0]
	lat, latErr := strconv.ParseFloat(match.Lat, 64)
	lng, lngErr := strconv.ParseFloat(match.Lng, 64)
	if latErr != nil || lngErr != nil {
		return nil, ErrUnavailable
	}

	location := &Location{
		City:      match.Name,
		Country:   match.CountryCode,
		Latitude:  round2(lat),
		Longitude: round2(lng),
	}
	if location.Country == "US" && match.AdminCode1 != "" {
		state := match.AdminCode1
		location.State = &state
	}

	c.results.Set(key, location, resultTTL)
	return location, nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func decodeJSON(resp *http.Response, out any) error {
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode gazetteer response: %w", err)
	}
	return nil
}
