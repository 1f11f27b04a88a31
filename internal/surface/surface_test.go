package surface

import (
	"io"
	"log/slog"
	"testing"

	"github.com/busantrip/map-explorer/internal/model"
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testSurface() *Surface {
	return newSurface("map", model.LatLng{Lat: 35.1795543, Lng: 129.0756416}, 11, discard())
}

// unit square around the origin
var squarePath = []model.LatLng{
	{Lat: 0, Lng: 0}, {Lat: 0, Lng: 1}, {Lat: 1, Lng: 1}, {Lat: 1, Lng: 0},
}

func TestClick_DispatchAndCancel(t *testing.T) {
	s := testSurface()

	var got []model.LatLng
	sub := s.OnClick(func(pt model.LatLng) { got = append(got, pt) })

	s.Click(model.LatLng{Lat: 35.1, Lng: 129.0})
	if len(got) != 1 {
		t.Fatalf("dispatched=%d want 1", len(got))
	}

	sub.Cancel()
	sub.Cancel() // idempotent
	s.Click(model.LatLng{Lat: 35.2, Lng: 129.1})
	if len(got) != 1 {
		t.Fatalf("canceled listener still fired")
	}
}

func TestClick_InsidePolygonGoesToPolygonListeners(t *testing.T) {
	s := testSurface()

	var mapClicks, polyClicks int
	s.OnClick(func(model.LatLng) { mapClicks++ })

	p := s.DrawPolygon(squarePath, Style{FillColor: "#007bff"})
	p.OnClick(func() { polyClicks++ })

	s.Click(model.LatLng{Lat: 0.5, Lng: 0.5})
	if polyClicks != 1 || mapClicks != 0 {
		t.Fatalf("poly=%d map=%d want 1/0", polyClicks, mapClicks)
	}

	s.Click(model.LatLng{Lat: 2, Lng: 2})
	if polyClicks != 1 || mapClicks != 1 {
		t.Fatalf("poly=%d map=%d want 1/1", polyClicks, mapClicks)
	}
}

func TestHover_FiresOverAndOutOnce(t *testing.T) {
	s := testSurface()

	p := s.DrawPolygon(squarePath, Style{})
	var over, out int
	p.OnMouseOver(func() { over++ })
	p.OnMouseOut(func() { out++ })

	s.Hover(model.LatLng{Lat: 0.5, Lng: 0.5})
	s.Hover(model.LatLng{Lat: 0.6, Lng: 0.6}) // still inside: no re-fire
	if over != 1 || out != 0 {
		t.Fatalf("over=%d out=%d want 1/0", over, out)
	}

	s.Hover(model.LatLng{Lat: 5, Lng: 5})
	if over != 1 || out != 1 {
		t.Fatalf("over=%d out=%d want 1/1", over, out)
	}
}

func TestPolygon_RemoveAndStyle(t *testing.T) {
	s := testSurface()

	base := Style{FillColor: "#007bff"}
	hover := Style{FillColor: "#0056b3"}
	p := s.DrawPolygon(squarePath, base)
	if s.PolygonCount() != 1 {
		t.Fatalf("count=%d want 1", s.PolygonCount())
	}

	p.SetStyle(hover)
	if p.Style() != hover {
		t.Fatalf("style not applied")
	}

	p.Remove()
	p.Remove() // idempotent
	if s.PolygonCount() != 0 {
		t.Fatalf("count=%d want 0 after remove", s.PolygonCount())
	}

	// clicks inside a removed polygon fall through to the map
	var mapClicks int
	s.OnClick(func(model.LatLng) { mapClicks++ })
	s.Click(model.LatLng{Lat: 0.5, Lng: 0.5})
	if mapClicks != 1 {
		t.Fatalf("mapClicks=%d want 1", mapClicks)
	}
}

func TestMarker_ClickAndRemove(t *testing.T) {
	s := testSurface()

	m := s.AddMarker(model.LatLng{Lat: 35.16, Lng: 129.16}, "Beach tour")
	if s.MarkerCount() != 1 {
		t.Fatalf("count=%d want 1", s.MarkerCount())
	}

	var clicks int
	m.OnClick(func() { clicks++ })
	m.Click()
	if clicks != 1 {
		t.Fatalf("clicks=%d want 1", clicks)
	}

	m.Remove()
	m.Click() // removed marker: no dispatch
	if clicks != 1 || s.MarkerCount() != 0 {
		t.Fatalf("clicks=%d count=%d after remove", clicks, s.MarkerCount())
	}
}

func TestClose_ReleasesEverythingAndGoesInert(t *testing.T) {
	s := testSurface()

	s.DrawPolygon(squarePath, Style{})
	s.AddMarker(model.LatLng{Lat: 1, Lng: 1}, "x")
	var clicks int
	s.OnClick(func(model.LatLng) { clicks++ })

	s.Close()
	s.Close() // idempotent

	if !s.Closed() || s.PolygonCount() != 0 || s.MarkerCount() != 0 {
		t.Fatalf("close did not release shapes")
	}
	s.Click(model.LatLng{Lat: 1, Lng: 1})
	if clicks != 0 {
		t.Fatalf("listener fired after close")
	}
	if p := s.DrawPolygon(squarePath, Style{}); p != nil {
		t.Fatalf("draw after close must return nil")
	}
	if m := s.AddMarker(model.LatLng{}, ""); m != nil {
		t.Fatalf("marker after close must return nil")
	}
}
