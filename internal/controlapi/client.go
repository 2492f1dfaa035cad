package controlapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

// ProbeInfo is the probe state reported by the control API when an adoption
// code is delivered. These are the last-known fields written to the probe row
// once the code is verified.
type ProbeInfo struct {
	UUID      string   `json:"uuid"`
	IP        string   `json:"ip"`
	Name      string   `json:"name"`
	Version   string   `json:"version"`
	Country   string   `json:"country"`
	City      string   `json:"city"`
	State     *string  `json:"state"`
	Latitude  float64  `json:"latitude"`
	Longitude float64  `json:"longitude"`
	Status    string   `json:"status"`
	Tags      []string `json:"tags"`
}

type Client interface {
	// SendAdoptionCode asks the control plane to display the code on the
	// probe at the given IP and returns the probe's current state.
	SendAdoptionCode(ctx context.Context, ip, code string) (*ProbeInfo, error)
}

var (
	ErrProbeNotFound = errors.New("probe_not_found")
	ErrUnavailable   = errors.New("control_api_unavailable")
)

const requestTimeout = 5 * time.Second

type client struct {
	baseURL string
	http    *http.Client
	log     *zap.Logger
}

func NewClient(baseURL string, log *zap.Logger) Client {
	return &client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		http:    &http.Client{Timeout: requestTimeout},
		log:     log.Named("controlapi.client"),
	}
}

func (c *client) SendAdoptionCode(ctx context.Context, ip, code string) (*ProbeInfo, error) {
	body, err := json.Marshal(map[string]string{"ip": ip, "code": code})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/adoption-code", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Warn("control api request failed", zap.Error(err))
		return nil, ErrUnavailable
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusUnprocessableEntity:
		return nil, ErrProbeNotFound
	case resp.StatusCode != http.StatusOK:
		c.log.Warn("control api returned unexpected status", zap.Int("status", resp.StatusCode))
		return nil, ErrUnavailable
	}

	var info ProbeInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, ErrUnavailable
	}
	if info.IP == "" {
		info.IP = ip
	}
	return &info, nil
}
