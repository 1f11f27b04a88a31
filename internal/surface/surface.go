// Package surface models the live map surface: a process-wide provider
// bootstrap plus per-view handles that own drawn polygons, markers, and
// event subscriptions.
package surface

import (
	"log/slog"
	"slices"
	"sync"

	"github.com/busantrip/map-explorer/internal/model"
	"github.com/busantrip/map-explorer/internal/observability"
)

// Style is the visual treatment of a drawn polygon.
type Style struct {
	StrokeWeight  int     `json:"stroke_weight"`
	StrokeColor   string  `json:"stroke_color"`
	StrokeOpacity float64 `json:"stroke_opacity"`
	FillColor     string  `json:"fill_color"`
	FillOpacity   float64 `json:"fill_opacity"`
}

// Subscription is a registered event listener. Cancel is idempotent and must
// be called when the owning view goes away.
type Subscription struct {
	once   sync.Once
	cancel func()
}

func (s *Subscription) Cancel() {
	if s == nil {
		return
	}
	s.once.Do(s.cancel)
}

func inertSubscription() *Subscription {
	return &Subscription{cancel: func() {}}
}

// Surface is one view's handle to the map. All methods are safe for
// concurrent use; after Close every operation is a no-op.
type Surface struct {
	host   string
	center model.LatLng
	zoom   int
	logger *slog.Logger

	mu        sync.Mutex
	closed    bool
	nextID    uint64
	clickSubs map[uint64]func(model.LatLng)
	polygons  map[uint64]*Polygon
	markers   map[uint64]*Marker
	hovered   uint64 // id of the polygon under the cursor, 0 when none
}

func newSurface(host string, center model.LatLng, zoom int, logger *slog.Logger) *Surface {
	return &Surface{
		host:      host,
		center:    center,
		zoom:      zoom,
		logger:    logger,
		clickSubs: make(map[uint64]func(model.LatLng)),
		polygons:  make(map[uint64]*Polygon),
		markers:   make(map[uint64]*Marker),
	}
}

func (s *Surface) Host() string         { return s.host }
func (s *Surface) Center() model.LatLng { return s.center }
func (s *Surface) Zoom() int            { return s.zoom }

func (s *Surface) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// OnClick registers a listener for clicks on the bare map (clicks landing
// inside a drawn polygon go to that polygon's listeners instead).
func (s *Surface) OnClick(fn func(model.LatLng)) *Subscription {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return inertSubscription()
	}
	id := s.allocID()
	s.clickSubs[id] = fn
	return &Subscription{cancel: func() {
		s.mu.Lock()
		delete(s.clickSubs, id)
		s.mu.Unlock()
	}}
}

// Click dispatches a click event at pt. Listener invocation happens outside
// the surface lock.
func (s *Surface) Click(pt model.LatLng) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	var fns []func(model.LatLng)
	if p := s.polygonAtLocked(pt); p != nil {
		for _, fn := range p.clickSubs {
			f := fn
			fns = append(fns, func(model.LatLng) { f() })
		}
	} else {
		for _, fn := range s.clickSubs {
			fns = append(fns, fn)
		}
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn(pt)
	}
}

// Hover moves the cursor to pt, firing mouseout on the previously hovered
// polygon and mouseover on the one now under the cursor.
func (s *Surface) Hover(pt model.LatLng) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	var target uint64
	var fns []func()
	if p := s.polygonAtLocked(pt); p != nil {
		target = p.id
	}
	if target != s.hovered {
		if prev, ok := s.polygons[s.hovered]; ok {
			fns = append(fns, collectFns(prev.outSubs)...)
		}
		if next, ok := s.polygons[target]; ok {
			fns = append(fns, collectFns(next.overSubs)...)
		}
		s.hovered = target
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
}

func collectFns(m map[uint64]func()) []func() {
	out := make([]func(), 0, len(m))
	for _, fn := range m {
		out = append(out, fn)
	}
	return out
}

func (s *Surface) polygonAtLocked(pt model.LatLng) *Polygon {
	for _, p := range s.polygons {
		if containsPoint(p.path, pt) {
			return p
		}
	}
	return nil
}

// DrawPolygon adds a polygon along path (map point order) and returns its
// handle, or nil when the surface is gone.
func (s *Surface) DrawPolygon(path []model.LatLng, st Style) *Polygon {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	p := &Polygon{
		s:         s,
		id:        s.allocID(),
		path:      slices.Clone(path),
		style:     st,
		clickSubs: make(map[uint64]func()),
		overSubs:  make(map[uint64]func()),
		outSubs:   make(map[uint64]func()),
	}
	s.polygons[p.id] = p
	observability.AddLivePolygons(1)
	return p
}

// AddMarker places a point marker and returns its handle, or nil when the
// surface is gone.
func (s *Surface) AddMarker(pos model.LatLng, title string) *Marker {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	m := &Marker{
		s:         s,
		id:        s.allocID(),
		pos:       pos,
		title:     title,
		clickSubs: make(map[uint64]func()),
	}
	s.markers[m.id] = m
	observability.AddLiveMarkers(1)
	return m
}

func (s *Surface) PolygonCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.polygons)
}

func (s *Surface) MarkerCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.markers)
}

// Close releases every drawn shape, marker, and listener. The handle is
// permanently unusable afterwards.
func (s *Surface) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	observability.AddLivePolygons(-len(s.polygons))
	observability.AddLiveMarkers(-len(s.markers))
	for _, p := range s.polygons {
		p.removed = true
	}
	for _, m := range s.markers {
		m.removed = true
	}
	s.polygons = map[uint64]*Polygon{}
	s.markers = map[uint64]*Marker{}
	s.clickSubs = map[uint64]func(model.LatLng){}
	s.hovered = 0
	s.logger.Debug("surface closed", "host", s.host)
}

func (s *Surface) allocID() uint64 {
	s.nextID++
	return s.nextID
}

// Polygon is one drawn boundary shape. State is guarded by the owning
// surface's lock.
type Polygon struct {
	s       *Surface
	id      uint64
	path    []model.LatLng
	style   Style
	removed bool

	clickSubs map[uint64]func()
	overSubs  map[uint64]func()
	outSubs   map[uint64]func()
}

func (p *Polygon) Path() []model.LatLng {
	p.s.mu.Lock()
	defer p.s.mu.Unlock()
	return slices.Clone(p.path)
}

func (p *Polygon) Style() Style {
	p.s.mu.Lock()
	defer p.s.mu.Unlock()
	return p.style
}

// SetStyle swaps the visual treatment. Cosmetic only; used by hover handlers.
func (p *Polygon) SetStyle(st Style) {
	p.s.mu.Lock()
	defer p.s.mu.Unlock()
	if p.removed {
		return
	}
	p.style = st
}

func (p *Polygon) OnClick(fn func()) *Subscription     { return p.sub(p.clickSubs, fn) }
func (p *Polygon) OnMouseOver(fn func()) *Subscription { return p.sub(p.overSubs, fn) }
func (p *Polygon) OnMouseOut(fn func()) *Subscription  { return p.sub(p.outSubs, fn) }

func (p *Polygon) sub(m map[uint64]func(), fn func()) *Subscription {
	p.s.mu.Lock()
	defer p.s.mu.Unlock()
	if p.removed {
		return inertSubscription()
	}
	id := p.s.allocID()
	m[id] = fn
	return &Subscription{cancel: func() {
		p.s.mu.Lock()
		delete(m, id)
		p.s.mu.Unlock()
	}}
}

// Remove takes the polygon off the map and drops its listeners.
func (p *Polygon) Remove() {
	p.s.mu.Lock()
	defer p.s.mu.Unlock()
	if p.removed {
		return
	}
	p.removed = true
	delete(p.s.polygons, p.id)
	if p.s.hovered == p.id {
		p.s.hovered = 0
	}
	observability.AddLivePolygons(-1)
}

// Marker is one drawn point marker.
type Marker struct {
	s       *Surface
	id      uint64
	pos     model.LatLng
	title   string
	removed bool

	clickSubs map[uint64]func()
}

func (m *Marker) Position() model.LatLng { return m.pos }
func (m *Marker) Title() string          { return m.title }

func (m *Marker) OnClick(fn func()) *Subscription {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if m.removed {
		return inertSubscription()
	}
	id := m.s.allocID()
	m.clickSubs[id] = fn
	return &Subscription{cancel: func() {
		m.s.mu.Lock()
		delete(m.clickSubs, id)
		m.s.mu.Unlock()
	}}
}

// Click dispatches the marker's click listeners.
func (m *Marker) Click() {
	m.s.mu.Lock()
	if m.removed {
		m.s.mu.Unlock()
		return
	}
	fns := make([]func(), 0, len(m.clickSubs))
	for _, fn := range m.clickSubs {
		fns = append(fns, fn)
	}
	m.s.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
}

// Remove takes the marker off the map and drops its listeners.
func (m *Marker) Remove() {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if m.removed {
		return
	}
	m.removed = true
	delete(m.s.markers, m.id)
	observability.AddLiveMarkers(-1)
}
