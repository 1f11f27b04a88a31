package explorer

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/busantrip/map-explorer/internal/boundary"
	"github.com/busantrip/map-explorer/internal/content"
	"github.com/busantrip/map-explorer/internal/geocode"
	"github.com/busantrip/map-explorer/internal/logger"
	"github.com/busantrip/map-explorer/internal/model"
	"github.com/busantrip/map-explorer/internal/observability"
	"github.com/busantrip/map-explorer/internal/surface"
	"github.com/busantrip/map-explorer/internal/trending"
)

// SessionConfig carries everything a session needs. Features may be empty
// (dataset unavailable): markers still work, boundaries never draw.
type SessionConfig struct {
	Manager  *surface.Manager
	Features []boundary.Feature
	Resolver geocode.Resolver
	Fetcher  content.Fetcher
	Trending *trending.Tracker
	Logger   *slog.Logger
}

// Session is one hosted explorer view: a surface plus the three layers
// wired per the explorer's control flow. Region resolution triggers a
// scoped content fetch feeding both the marker layer and the sidebar.
type Session struct {
	ID string

	ctx    context.Context
	cancel context.CancelFunc

	mgr  *surface.Manager
	surf *surface.Surface

	regions *RegionLayer
	markers *MarkerLayer
	sidebar *Sidebar

	fetcher content.Fetcher
	trend   *trending.Tracker
	logger  *slog.Logger

	fetchSeq atomic.Uint64

	mu           sync.Mutex
	fetchApplied uint64
	closed       bool
}

// SessionView is the state snapshot the hosting page renders from.
type SessionView struct {
	SessionID string       `json:"session_id"`
	Center    model.LatLng `json:"center"`
	Zoom      int          `json:"zoom"`
	Region    string       `json:"region,omitempty"`
	Polygons  int          `json:"polygons"`
	Markers   int          `json:"markers"`
	Sidebar   SidebarView  `json:"sidebar"`
}

// NewSession acquires a surface, wires the layers, and performs the initial
// unfiltered load so the map opens with every marker visible.
func NewSession(ctx context.Context, cfg SessionConfig) (*Session, error) {
	id := logger.NewID()

	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	log = log.With("session_id", id)

	surf, err := cfg.Manager.Acquire(ctx, "explorer-"+id)
	if err != nil {
		return nil, err
	}

	sessCtx, cancel := context.WithCancel(context.Background())
	s := &Session{
		ID:      id,
		ctx:     sessCtx,
		cancel:  cancel,
		mgr:     cfg.Manager,
		surf:    surf,
		sidebar: NewSidebar(),
		fetcher: cfg.Fetcher,
		trend:   cfg.Trending,
		logger:  log,
	}
	s.markers = NewMarkerLayer(surf, s.itemSelected, log)
	s.regions = NewRegionLayer(sessCtx, surf, cfg.Features, cfg.Resolver, s.regionResolved, log)

	observability.SessionOpened()
	log.Info("explorer session opened", "features", len(cfg.Features))

	// initial unfiltered load
	seq := s.fetchSeq.Add(1)
	items := cfg.Fetcher.FetchItems(ctx, "")
	s.applyFetch(seq, "", items)

	return s, nil
}

// Click feeds a map click into the session. Clicks inside the drawn region
// polygon re-fire region resolution; everything else goes through the
// geocode chain.
func (s *Session) Click(pt model.LatLng) {
	s.surf.Click(pt)
}

// Hover feeds a cursor position; purely cosmetic polygon restyling.
func (s *Session) Hover(pt model.LatLng) {
	s.surf.Hover(pt)
}

// SelectItem handles a marker click or a list-entry click, identified by
// item id either way.
func (s *Session) SelectItem(id int64) bool {
	if s.markers.Select(id) {
		return true
	}
	// list entries without a coordinate have no marker; select directly
	return s.sidebar.SelectByID(id)
}

// Back returns the sidebar from detail to the retained list.
func (s *Session) Back() {
	s.sidebar.Back()
}

func (s *Session) View() SessionView {
	return SessionView{
		SessionID: s.ID,
		Center:    s.surf.Center(),
		Zoom:      s.surf.Zoom(),
		Region:    s.regions.Region(),
		Polygons:  s.regions.DrawnCount(),
		Markers:   s.markers.Count(),
		Sidebar:   s.sidebar.View(),
	}
}

// Close tears the view down: in-flight completions are ignored, every
// listener is detached, every shape released, and the surface returned.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	s.cancel()
	s.regions.Close()
	s.markers.Close()
	s.sidebar.Reset()
	s.mgr.Release(s.surf)
	observability.SessionClosed()
	s.logger.Info("explorer session closed")
}

// regionResolved claims the next fetch slot and returns the fetch itself to
// run afterwards. The region layer calls this with its ordering lock held,
// so the slot numbers follow apply order even when the fetches finish out of
// order.
func (s *Session) regionResolved(region string) func() {
	if s.trend != nil {
		s.trend.Inc(region)
	}

	seq := s.fetchSeq.Add(1)
	return func() {
		items := s.fetcher.FetchItems(s.ctx, region)
		if len(items) == 0 {
			s.logger.Debug("no content for region", "region", region)
		}
		s.applyFetch(seq, region, items)
	}
}

// applyFetch commits a fetch result unless a later one already landed; the
// marker set and sidebar always reflect the newest resolution.
func (s *Session) applyFetch(seq uint64, region string, items []model.ContentItem) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	if seq <= s.fetchApplied {
		observability.IncStaleDrop("content")
		return
	}
	s.fetchApplied = seq

	s.markers.SetItems(items)
	s.sidebar.ShowList(region, items)
}

func (s *Session) itemSelected(item model.ContentItem) {
	s.sidebar.Select(item)
}
