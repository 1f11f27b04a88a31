package explorer

import (
	"context"
	"testing"

	"github.com/busantrip/map-explorer/internal/model"
	"github.com/busantrip/map-explorer/internal/surface"
)

func newTestSurface(t *testing.T) (*surface.Manager, *surface.Surface) {
	t.Helper()
	mgr := surface.NewManager(surface.Config{
		APIKey: "test-key",
		Center: model.LatLng{Lat: 35.1795543, Lng: 129.0756416},
		Zoom:   11,
	}, nil)
	surf, err := mgr.Acquire(context.Background(), "test-view")
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	t.Cleanup(func() { mgr.Release(surf) })
	return mgr, surf
}

func TestMarkerLayerDrawsCompleteCoordinatesOnly(t *testing.T) {
	_, surf := newTestSurface(t)

	var selected []int64
	l := NewMarkerLayer(surf, func(it model.ContentItem) { selected = append(selected, it.ID) }, nil)

	l.SetItems(sampleItems())
	if got := l.Count(); got != 2 {
		t.Fatalf("Count = %d, want 2 (coordinate-less item skipped)", got)
	}
	if got := surf.MarkerCount(); got != 2 {
		t.Fatalf("surface MarkerCount = %d, want 2", got)
	}

	if !l.Select(2) {
		t.Fatal("Select(2) should dispatch the marker click")
	}
	if len(selected) != 1 || selected[0] != 2 {
		t.Fatalf("selected = %v, want [2]", selected)
	}
	if l.Select(3) {
		t.Fatal("Select(3) should be false: that item has no marker")
	}
}

func TestMarkerLayerReplacesWholeSet(t *testing.T) {
	_, surf := newTestSurface(t)
	l := NewMarkerLayer(surf, func(model.ContentItem) {}, nil)

	l.SetItems(sampleItems())
	l.SetItems([]model.ContentItem{
		{ID: 7, Title: "Songdo Cable Car", Latitude: fl(35.0764), Longitude: fl(129.0172)},
	})

	if got := l.Count(); got != 1 {
		t.Fatalf("Count = %d, want 1", got)
	}
	if got := surf.MarkerCount(); got != 1 {
		t.Fatalf("surface MarkerCount = %d, want 1; the old set must be released", got)
	}
	if l.Select(1) {
		t.Fatal("markers from the replaced list must be gone")
	}
}

func TestMarkerLayerEmptyListClearsMap(t *testing.T) {
	_, surf := newTestSurface(t)
	l := NewMarkerLayer(surf, func(model.ContentItem) {}, nil)

	l.SetItems(sampleItems())
	l.SetItems(nil)

	if got := surf.MarkerCount(); got != 0 {
		t.Fatalf("surface MarkerCount = %d, want 0", got)
	}
}

func TestMarkerLayerClose(t *testing.T) {
	_, surf := newTestSurface(t)
	l := NewMarkerLayer(surf, func(model.ContentItem) {}, nil)

	l.SetItems(sampleItems())
	l.Close()

	if got := surf.MarkerCount(); got != 0 {
		t.Fatalf("surface MarkerCount = %d after Close, want 0", got)
	}
}
