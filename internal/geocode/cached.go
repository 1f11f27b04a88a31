package geocode

import (
	"context"
	"log/slog"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/busantrip/map-explorer/internal/model"
	"github.com/busantrip/map-explorer/internal/observability"
)

// Store is the shared-cache seam; satisfied by redisstore.Client.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, val []byte, ttl time.Duration) error
}

// CachedResolver layers an in-process LRU and an optional shared store in
// front of the upstream resolver, keyed by H3 cell. Cache failures fall
// through to the upstream; ErrNoMatch results are never cached.
type CachedResolver struct {
	next      Resolver
	local     *lru.Cache[string, string]
	store     Store
	res       int
	ttl       time.Duration
	opTimeout time.Duration
	logger    *slog.Logger
}

func NewCachedResolver(
	next Resolver,
	store Store,
	res int,
	ttl, opTimeout time.Duration,
	lruSize int,
	logger *slog.Logger,
) *CachedResolver {
	if lruSize <= 0 {
		lruSize = 4096
	}
	if opTimeout <= 0 {
		opTimeout = 250 * time.Millisecond
	}
	if logger == nil {
		logger = slog.Default()
	}
	local, _ := lru.New[string, string](lruSize)
	return &CachedResolver{
		next:      next,
		local:     local,
		store:     store,
		res:       res,
		ttl:       ttl,
		opTimeout: opTimeout,
		logger:    logger,
	}
}

func (r *CachedResolver) RegionAt(ctx context.Context, pt model.LatLng) (string, error) {
	key, err := cellKey(pt.Lat, pt.Lng, r.res)
	if err != nil {
		// unkeyable coordinate: skip caching entirely
		r.logger.Warn("geocode cache key failed; bypassing cache", "err", err)
		return r.next.RegionAt(ctx, pt)
	}

	if name, ok := r.local.Get(key); ok {
		observability.IncCacheHit("geocode")
		return name, nil
	}

	if r.store != nil {
		opCtx, cancel := context.WithTimeout(ctx, r.opTimeout)
		val, ok, err := r.store.Get(opCtx, key)
		cancel()
		if err != nil {
			r.logger.Warn("geocode cache read failed", "err", err)
		} else if ok {
			name := string(val)
			r.local.Add(key, name)
			observability.IncCacheHit("geocode")
			return name, nil
		}
	}
	observability.IncCacheMiss("geocode")

	name, err := r.next.RegionAt(ctx, pt)
	if err != nil {
		return "", err
	}

	r.local.Add(key, name)
	if r.store != nil {
		opCtx, cancel := context.WithTimeout(ctx, r.opTimeout)
		if err := r.store.Set(opCtx, key, []byte(name), r.ttl); err != nil {
			r.logger.Warn("geocode cache write failed", "err", err)
		}
		cancel()
	}
	return name, nil
}
