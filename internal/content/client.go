// Package content is the gateway to the remote content API's map-data feed.
package content

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/busantrip/map-explorer/internal/model"
	"github.com/busantrip/map-explorer/internal/observability"
)

// Fetcher is the seam the explorer session consumes.
type Fetcher interface {
	// FetchItems returns the items scoped to region, or every item when
	// region is empty. It never fails: any upstream problem degrades to an
	// empty list, which the UI renders as an empty state.
	FetchItems(ctx context.Context, region string) []model.ContentItem
}

// Store is the shared-cache seam; satisfied by redisstore.Client.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, val []byte, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
}

type Client struct {
	base      *url.URL
	client    *http.Client
	store     Store
	ttl       time.Duration
	opTimeout time.Duration
	logger    *slog.Logger
}

type Option func(*Client)

// WithCache enables the shared region-list cache.
func WithCache(store Store, ttl, opTimeout time.Duration) Option {
	return func(c *Client) {
		c.store = store
		c.ttl = ttl
		if opTimeout > 0 {
			c.opTimeout = opTimeout
		}
	}
}

func NewClient(baseURL string, client *http.Client, logger *slog.Logger, opts ...Option) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse content api url: %w", err)
	}
	if client == nil {
		client = http.DefaultClient
	}
	if logger == nil {
		logger = slog.Default()
	}
	c := &Client{base: u, client: client, opTimeout: 250 * time.Millisecond, logger: logger}
	for _, f := range opts {
		f(c)
	}
	return c, nil
}

func (c *Client) FetchItems(ctx context.Context, region string) []model.ContentItem {
	key := CacheKey(region)

	if c.store != nil {
		opCtx, cancel := context.WithTimeout(ctx, c.opTimeout)
		raw, ok, err := c.store.Get(opCtx, key)
		cancel()
		switch {
		case err != nil:
			c.logger.Warn("content cache read failed", "err", err)
		case ok:
			var items []model.ContentItem
			if err := json.Unmarshal(raw, &items); err == nil {
				observability.IncCacheHit("content")
				return items
			}
			c.logger.Warn("content cache entry corrupt; refetching", "key", key)
		}
		observability.IncCacheMiss("content")
	}

	items, err := c.fetch(ctx, region)
	if err != nil {
		c.logger.Warn("content fetch failed; serving empty list",
			"region", region, "err", err)
		return []model.ContentItem{}
	}

	if c.store != nil {
		if payload, err := json.Marshal(items); err == nil {
			opCtx, cancel := context.WithTimeout(ctx, c.opTimeout)
			if err := c.store.Set(opCtx, key, payload, c.ttl); err != nil {
				c.logger.Warn("content cache write failed", "err", err)
			}
			cancel()
		}
	}
	return items
}

func (c *Client) fetch(ctx context.Context, region string) ([]model.ContentItem, error) {
	u := c.base.JoinPath("content", "map-data")
	if region != "" {
		q := url.Values{}
		q.Set("area", region)
		u.RawQuery = q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("content request: %w", err)
	}

	start := time.Now()
	resp, err := c.client.Do(req)
	observability.ObserveUpstreamLatency("content", time.Since(start).Seconds())
	if err != nil {
		return nil, fmt.Errorf("content call: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("content call: status %d", resp.StatusCode)
	}

	var body struct {
		Items []model.ContentItem `json:"items"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 16<<20)).Decode(&body); err != nil {
		return nil, fmt.Errorf("content decode: %w", err)
	}
	if body.Items == nil {
		return []model.ContentItem{}, nil
	}
	return model.DedupeByID(body.Items), nil
}

// Invalidate drops the cached lists for the given regions plus the
// unfiltered list, which any item change also staled.
func (c *Client) Invalidate(ctx context.Context, regions ...string) error {
	if c.store == nil {
		return nil
	}
	keys := make([]string, 0, len(regions)+1)
	for _, r := range regions {
		keys = append(keys, CacheKey(r))
	}
	keys = append(keys, allItemsKey)

	opCtx, cancel := context.WithTimeout(ctx, c.opTimeout)
	defer cancel()
	if err := c.store.Del(opCtx, keys...); err != nil {
		return fmt.Errorf("invalidate content cache: %w", err)
	}
	return nil
}
