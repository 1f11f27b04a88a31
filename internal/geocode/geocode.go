// Package geocode resolves a map coordinate to an administrative region name
// via the map service's reverse-geocoding endpoint.
package geocode

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/busantrip/map-explorer/internal/model"
	"github.com/busantrip/map-explorer/internal/observability"
)

// ErrNoMatch means the coordinate resolved to no administrative region.
// Callers treat it as a silent no-op, not a failure.
var ErrNoMatch = errors.New("geocode: no region at coordinate")

type Resolver interface {
	RegionAt(ctx context.Context, pt model.LatLng) (string, error)
}

// Client calls the provider's coord2regioncode endpoint.
type Client struct {
	base   *url.URL
	key    string
	client *http.Client
	logger *slog.Logger
}

func NewClient(baseURL, key string, client *http.Client, logger *slog.Logger) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse geocode base url: %w", err)
	}
	if client == nil {
		client = http.DefaultClient
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{base: u, key: key, client: client, logger: logger}, nil
}

// RegionAt returns the district-level name (region_2depth_name) of the first
// document the provider returns for the coordinate.
func (c *Client) RegionAt(ctx context.Context, pt model.LatLng) (string, error) {
	u := c.base.JoinPath("v2", "local", "geo", "coord2regioncode.json")
	q := url.Values{}
	q.Set("x", strconv.FormatFloat(pt.Lng, 'f', -1, 64))
	q.Set("y", strconv.FormatFloat(pt.Lat, 'f', -1, 64))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return "", fmt.Errorf("geocode request: %w", err)
	}
	req.Header.Set("Authorization", "KakaoAK "+c.key)

	start := time.Now()
	resp, err := c.client.Do(req)
	observability.ObserveUpstreamLatency("geocode", time.Since(start).Seconds())
	if err != nil {
		return "", fmt.Errorf("geocode call: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("geocode call: status %d", resp.StatusCode)
	}

	var body struct {
		Documents []struct {
			RegionType  string `json:"region_type"`
			Region2Name string `json:"region_2depth_name"`
		} `json:"documents"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&body); err != nil {
		return "", fmt.Errorf("geocode decode: %w", err)
	}

	for _, d := range body.Documents {
		if d.Region2Name != "" {
			return d.Region2Name, nil
		}
	}
	observability.IncGeocodeMiss()
	return "", ErrNoMatch
}
