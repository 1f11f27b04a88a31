package server

import (
	"context"
	"log/slog"
	"sync"

	"github.com/busantrip/map-explorer/internal/boundary"
)

// boundarySource hands out the region feature set, loading it on first use.
// A failed load is not terminal: sessions open without boundaries and the
// next session creation retries.
type boundarySource struct {
	loader *boundary.Loader
	source string
	logger *slog.Logger

	mu       sync.Mutex
	features []boundary.Feature
	loaded   bool
}

func newBoundarySource(loader *boundary.Loader, source string, logger *slog.Logger) *boundarySource {
	return &boundarySource{loader: loader, source: source, logger: logger}
}

func (b *boundarySource) Features(ctx context.Context) []boundary.Feature {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.loaded {
		return b.features
	}
	feats, err := b.loader.Load(ctx, b.source)
	if err != nil {
		b.logger.Warn("boundary dataset unavailable; sessions open without boundaries",
			"source", b.source, "err", err)
		return nil
	}
	b.features = feats
	b.loaded = true
	b.logger.Info("boundary dataset loaded", "source", b.source, "features", len(feats))
	return b.features
}

func (b *boundarySource) Loaded() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.loaded
}
