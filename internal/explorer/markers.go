package explorer

import (
	"log/slog"
	"sync"

	"github.com/busantrip/map-explorer/internal/model"
	"github.com/busantrip/map-explorer/internal/surface"
)

// MarkerLayer keeps the drawn marker set synchronized to the latest content
// item list. Every list change rebuilds the whole set; a marker never
// survives the list that created it.
type MarkerLayer struct {
	surf     *surface.Surface
	onSelect func(model.ContentItem)
	logger   *slog.Logger

	mu      sync.Mutex
	entries []markerEntry
}

type markerEntry struct {
	item   model.ContentItem
	marker *surface.Marker
	sub    *surface.Subscription
}

func NewMarkerLayer(surf *surface.Surface, onSelect func(model.ContentItem), logger *slog.Logger) *MarkerLayer {
	if logger == nil {
		logger = slog.Default()
	}
	return &MarkerLayer{surf: surf, onSelect: onSelect, logger: logger}
}

// SetItems clears the previous marker set and draws one marker per item with
// a complete coordinate. Items missing a coordinate are skipped with a
// warning, not an error.
func (l *MarkerLayer) SetItems(items []model.ContentItem) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.clearLocked()

	for _, item := range items {
		pos, ok := item.Position()
		if !ok {
			l.logger.Warn("content item missing coordinates; no marker",
				"id", item.ID, "title", item.Title)
			continue
		}
		m := l.surf.AddMarker(pos, item.Title)
		if m == nil {
			// surface torn down mid-update; nothing to draw on
			return
		}
		it := item
		sub := m.OnClick(func() { l.onSelect(it) })
		l.entries = append(l.entries, markerEntry{item: it, marker: m, sub: sub})
	}
}

// Select dispatches the click listeners of the marker owning the item id.
// Returns false when no marker carries that id (e.g. the item had no
// coordinate).
func (l *MarkerLayer) Select(id int64) bool {
	l.mu.Lock()
	var m *surface.Marker
	for _, e := range l.entries {
		if e.item.ID == id {
			m = e.marker
			break
		}
	}
	l.mu.Unlock()

	if m == nil {
		return false
	}
	m.Click()
	return true
}

func (l *MarkerLayer) Count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// Close releases every marker and listener.
func (l *MarkerLayer) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.clearLocked()
}

func (l *MarkerLayer) clearLocked() {
	for _, e := range l.entries {
		e.sub.Cancel()
		e.marker.Remove()
	}
	l.entries = nil
}
