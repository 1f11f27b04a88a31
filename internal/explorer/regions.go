package explorer

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/busantrip/map-explorer/internal/boundary"
	"github.com/busantrip/map-explorer/internal/geocode"
	"github.com/busantrip/map-explorer/internal/model"
	"github.com/busantrip/map-explorer/internal/observability"
	"github.com/busantrip/map-explorer/internal/surface"
)

// Fixed boundary styling: a base fill plus a darker hover treatment.
var (
	regionBaseStyle = surface.Style{
		StrokeWeight:  2,
		StrokeColor:   "#004c80",
		StrokeOpacity: 0.8,
		FillColor:     "#007bff",
		FillOpacity:   0.4,
	}
	regionHoverStyle = surface.Style{
		StrokeWeight:  2,
		StrokeColor:   "#002640",
		StrokeOpacity: 0.8,
		FillColor:     "#0056b3",
		FillOpacity:   0.6,
	}
)

// RegionLayer resolves map clicks to administrative regions and keeps
// exactly one region's boundary drawn at a time.
type RegionLayer struct {
	surf     *surface.Surface
	features []boundary.Feature
	resolver geocode.Resolver
	logger   *slog.Logger

	// onResolved is called with r.mu held and returns the work to run after
	// release. Claiming the downstream fetch slot inside the lock keeps fetch
	// commits in the same order as region applies.
	onResolved func(region string) func()

	clickSub *surface.Subscription
	seq      atomic.Uint64

	mu      sync.Mutex
	applied uint64
	region  string
	drawn   []*surface.Polygon
	subs    []*surface.Subscription
}

// NewRegionLayer attaches a single click listener to the surface. sessCtx
// bounds the layer's async work: cancel it and in-flight geocode
// completions are ignored.
func NewRegionLayer(
	sessCtx context.Context,
	surf *surface.Surface,
	features []boundary.Feature,
	resolver geocode.Resolver,
	onResolved func(region string) func(),
	logger *slog.Logger,
) *RegionLayer {
	if logger == nil {
		logger = slog.Default()
	}
	r := &RegionLayer{
		surf:       surf,
		features:   features,
		resolver:   resolver,
		onResolved: onResolved,
		logger:     logger,
	}
	r.clickSub = surf.OnClick(func(pt model.LatLng) { r.HandleClick(sessCtx, pt) })
	return r
}

// HandleClick runs the click → geocode → match → draw chain. Overlapping
// clicks race: each carries a sequence number and only the latest completion
// is applied (last-resolved-wins).
func (r *RegionLayer) HandleClick(ctx context.Context, pt model.LatLng) {
	seq := r.seq.Add(1)

	name, err := r.resolver.RegionAt(ctx, pt)
	if err != nil {
		switch {
		case errors.Is(err, geocode.ErrNoMatch):
			r.logger.Debug("no region at coordinate", "lat", pt.Lat, "lng", pt.Lng)
		case ctx.Err() != nil:
			// view went away mid-resolve
		default:
			r.logger.Warn("reverse geocode failed", "err", err)
		}
		return
	}

	r.apply(seq, name)
}

func (r *RegionLayer) apply(seq uint64, name string) {
	r.mu.Lock()
	if seq <= r.applied {
		r.mu.Unlock()
		observability.IncStaleDrop("geocode")
		return
	}
	r.applied = seq

	feat, found := boundary.Find(r.features, name)

	// the previous set always comes down first; stale shapes must never
	// accumulate
	r.clearLocked()

	if !found {
		r.region = ""
		r.mu.Unlock()
		r.logger.Warn("no boundary feature matches geocoded region", "region", name)
		return
	}

	r.region = name
	for _, ring := range feat.OuterRings {
		p := r.surf.DrawPolygon(toPath(ring), regionBaseStyle)
		if p == nil {
			break // surface torn down
		}
		r.drawn = append(r.drawn, p)
		r.subs = append(r.subs,
			p.OnMouseOver(func() { p.SetStyle(regionHoverStyle) }),
			p.OnMouseOut(func() { p.SetStyle(regionBaseStyle) }),
			p.OnClick(func() { r.reselect(name) }),
		)
	}
	// the resolving click itself counts as a selection
	run := r.onResolved(name)
	r.mu.Unlock()

	run()
}

// reselect re-fires the selection for a click on the drawn boundary. The
// fetch slot is claimed under the same lock that orders applies, and only
// while the clicked boundary is still the drawn one.
func (r *RegionLayer) reselect(name string) {
	r.mu.Lock()
	if name != r.region {
		r.mu.Unlock()
		return
	}
	run := r.onResolved(name)
	r.mu.Unlock()

	run()
}

// Region returns the currently drawn region name, empty when none.
func (r *RegionLayer) Region() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.region
}

func (r *RegionLayer) DrawnCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.drawn)
}

// Close detaches the map click listener and releases the drawn set.
func (r *RegionLayer) Close() {
	r.clickSub.Cancel()
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clearLocked()
	r.region = ""
}

func (r *RegionLayer) clearLocked() {
	for _, sub := range r.subs {
		sub.Cancel()
	}
	for _, p := range r.drawn {
		p.Remove()
	}
	r.subs = nil
	r.drawn = nil
}

// toPath converts a dataset ring ([lon,lat] order) to the map's point order.
func toPath(ring []boundary.Position) []model.LatLng {
	path := make([]model.LatLng, len(ring))
	for i, pos := range ring {
		path[i] = model.LatLng{Lat: pos.Lat(), Lng: pos.Lng()}
	}
	return path
}
