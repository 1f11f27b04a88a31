package explorer

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/busantrip/map-explorer/internal/model"
	"github.com/busantrip/map-explorer/internal/surface"
	"github.com/busantrip/map-explorer/internal/trending"
)

type stubFetcher struct {
	calls    atomic.Int64
	byRegion map[string][]model.ContentItem
}

func (f *stubFetcher) FetchItems(_ context.Context, region string) []model.ContentItem {
	f.calls.Add(1)
	return f.byRegion[region]
}

func newTestSession(t *testing.T) (*Session, *surface.Manager, *stubFetcher, *stubResolver, *trending.Tracker) {
	t.Helper()

	mgr := surface.NewManager(surface.Config{
		APIKey: "test-key",
		Center: model.LatLng{Lat: 35.1795543, Lng: 129.0756416},
		Zoom:   11,
	}, nil)

	items := sampleItems()
	fetcher := &stubFetcher{byRegion: map[string][]model.ContentItem{
		"":            items,
		"Haeundae-gu": items[:2],
		"Yeongdo-gu":  nil,
	}}
	resolver := &stubResolver{fn: func(pt model.LatLng) (string, error) {
		if pt.Lat < 35.1 {
			return "Yeongdo-gu", nil
		}
		return "Haeundae-gu", nil
	}}
	trend := trending.New(30 * time.Minute)

	s, err := NewSession(context.Background(), SessionConfig{
		Manager:  mgr,
		Features: testFeatures(),
		Resolver: resolver,
		Fetcher:  fetcher,
		Trending: trend,
	})
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	t.Cleanup(s.Close)
	return s, mgr, fetcher, resolver, trend
}

func TestSessionInitialLoadIsUnfiltered(t *testing.T) {
	s, _, fetcher, _, _ := newTestSession(t)

	v := s.View()
	if v.Sidebar.State != SidebarRegionList || v.Sidebar.Region != "" {
		t.Fatalf("sidebar = %+v, want the unfiltered list", v.Sidebar)
	}
	if v.Sidebar.Count != 3 {
		t.Fatalf("sidebar count = %d, want 3", v.Sidebar.Count)
	}
	if v.Markers != 2 {
		t.Fatalf("markers = %d, want 2 (one item has no coordinate)", v.Markers)
	}
	if v.Polygons != 0 || v.Region != "" {
		t.Fatalf("view = %+v, want no region selected yet", v)
	}
	if got := fetcher.calls.Load(); got != 1 {
		t.Fatalf("fetch calls = %d, want 1", got)
	}
}

func TestSessionClickSelectsRegion(t *testing.T) {
	s, _, fetcher, _, trend := newTestSession(t)

	s.Click(model.LatLng{Lat: 35.15, Lng: 129.15})

	v := s.View()
	if v.Region != "Haeundae-gu" || v.Polygons != 1 {
		t.Fatalf("view = %+v, want Haeundae-gu drawn", v)
	}
	if v.Sidebar.Region != "Haeundae-gu" || v.Sidebar.Count != 2 {
		t.Fatalf("sidebar = %+v, want the 2-item Haeundae-gu list", v.Sidebar)
	}
	if v.Markers != 2 {
		t.Fatalf("markers = %d, want 2", v.Markers)
	}
	if got := fetcher.calls.Load(); got != 2 {
		t.Fatalf("fetch calls = %d, want initial plus one scoped", got)
	}
	if trend.Score("Haeundae-gu") <= 0 {
		t.Fatal("selecting a region should register in trending")
	}
}

func TestSessionRegionWithoutContent(t *testing.T) {
	s, _, _, _, _ := newTestSession(t)

	s.Click(model.LatLng{Lat: 35.07, Lng: 129.07})

	v := s.View()
	if v.Region != "Yeongdo-gu" {
		t.Fatalf("region = %q, want Yeongdo-gu", v.Region)
	}
	if v.Sidebar.State != SidebarRegionList || !v.Sidebar.NoContent {
		t.Fatalf("sidebar = %+v, want the explicit no-content list", v.Sidebar)
	}
	if v.Markers != 0 {
		t.Fatalf("markers = %d, want 0", v.Markers)
	}
}

func TestSessionStaleFetchDropped(t *testing.T) {
	s, _, _, _, _ := newTestSession(t)

	// two overlapping region selections: the newer fetch landed first,
	// then the older one completes
	seqA := s.fetchSeq.Add(1)
	seqB := s.fetchSeq.Add(1)
	s.applyFetch(seqB, "Haeundae-gu", sampleItems()[:2])
	s.applyFetch(seqA, "Yeongdo-gu", nil)

	v := s.View()
	if v.Sidebar.Region != "Haeundae-gu" || v.Sidebar.Count != 2 {
		t.Fatalf("sidebar = %+v, want the newer fetch retained", v.Sidebar)
	}
	if v.Markers != 2 {
		t.Fatalf("markers = %d, want the newer fetch's 2", v.Markers)
	}
}

func TestSessionInvertedFetchCompletionKeepsResolutionOrder(t *testing.T) {
	s, _, _, _, _ := newTestSession(t)

	// resolutions land in order A then B; B's fetch completes first, then
	// A's late fetch arrives
	runA := s.regionResolved("Yeongdo-gu")
	runB := s.regionResolved("Haeundae-gu")
	runB()
	runA()

	v := s.View()
	if v.Sidebar.Region != "Haeundae-gu" || v.Sidebar.Count != 2 {
		t.Fatalf("sidebar = %+v, want the later resolution's Haeundae-gu list", v.Sidebar)
	}
	if v.Markers != 2 {
		t.Fatalf("markers = %d, want the later resolution's 2", v.Markers)
	}
}

func TestSessionConcurrentClicksConverge(t *testing.T) {
	s, _, _, _, _ := newTestSession(t)

	// drawn boundary and sidebar must agree once both clicks settle, no
	// matter how the geocode and fetch completions interleave
	for i := 0; i < 300; i++ {
		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			s.Click(model.LatLng{Lat: 35.15, Lng: 129.15}) // Haeundae-gu
		}()
		go func() {
			defer wg.Done()
			s.Click(model.LatLng{Lat: 35.07, Lng: 129.07}) // Yeongdo-gu
		}()
		wg.Wait()

		v := s.View()
		if v.Region != v.Sidebar.Region {
			t.Fatalf("iteration %d: drawn region %q but sidebar shows %q",
				i, v.Region, v.Sidebar.Region)
		}
	}
}

func staleContentDrops(t *testing.T) float64 {
	t.Helper()
	mfs, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	for _, mf := range mfs {
		if mf.GetName() != "stale_resolution_drops_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			for _, l := range m.GetLabel() {
				if l.GetName() == "kind" && l.GetValue() == "content" {
					return m.GetCounter().GetValue()
				}
			}
		}
	}
	return 0
}

func TestSessionStaleDropCounterExcludesTeardown(t *testing.T) {
	s, _, _, _, _ := newTestSession(t)
	run := s.regionResolved("Haeundae-gu")
	before := staleContentDrops(t)

	s.Close()
	run()
	if got := staleContentDrops(t); got != before {
		t.Fatalf("stale drops went %v -> %v; teardown is not a stale completion", before, got)
	}

	s2, _, _, _, _ := newTestSession(t)
	runA := s2.regionResolved("Yeongdo-gu")
	runB := s2.regionResolved("Haeundae-gu")
	runB()
	runA()
	if got := staleContentDrops(t); got != before+1 {
		t.Fatalf("stale drops = %v, want %v after one out-of-order completion", got, before+1)
	}
}

func TestSessionSelectAndBack(t *testing.T) {
	s, _, fetcher, _, _ := newTestSession(t)
	s.Click(model.LatLng{Lat: 35.15, Lng: 129.15})
	before := fetcher.calls.Load()

	if !s.SelectItem(1) {
		t.Fatal("SelectItem(1) should hit the marker")
	}
	if v := s.View(); v.Sidebar.State != SidebarItemDetail || v.Sidebar.Item.ID != 1 {
		t.Fatalf("sidebar = %+v, want item 1 detail", v.Sidebar)
	}

	s.Back()
	v := s.View()
	if v.Sidebar.State != SidebarRegionList || v.Sidebar.Count != 2 {
		t.Fatalf("sidebar = %+v, want the retained list", v.Sidebar)
	}
	if got := fetcher.calls.Load(); got != before {
		t.Fatalf("fetch calls went %d -> %d; Back must not re-fetch", before, got)
	}
}

func TestSessionSelectCoordinatelessItem(t *testing.T) {
	s, _, _, _, _ := newTestSession(t)

	// item 3 has no marker, so selection goes through the list
	if !s.SelectItem(3) {
		t.Fatal("SelectItem(3) should fall back to the sidebar list")
	}
	if v := s.View(); v.Sidebar.Item == nil || v.Sidebar.Item.ID != 3 {
		t.Fatalf("sidebar = %+v, want item 3 detail", v.Sidebar)
	}
	if s.SelectItem(99) {
		t.Fatal("SelectItem with an unknown id should report false")
	}
}

func TestSessionCloseReleasesEverything(t *testing.T) {
	s, mgr, fetcher, resolver, _ := newTestSession(t)
	s.Click(model.LatLng{Lat: 35.15, Lng: 129.15})

	s.Close()

	if got := mgr.Refs(); got != 0 {
		t.Fatalf("manager refs = %d after Close, want 0", got)
	}
	if v := s.View(); v.Sidebar.State != SidebarEmpty || v.Markers != 0 || v.Polygons != 0 {
		t.Fatalf("view after Close = %+v, want everything released", v)
	}

	geocodes, fetches := resolver.calls.Load(), fetcher.calls.Load()
	s.Click(model.LatLng{Lat: 35.15, Lng: 129.15})
	if resolver.calls.Load() != geocodes || fetcher.calls.Load() != fetches {
		t.Fatal("a closed session must ignore further input")
	}

	s.Close() // idempotent
}

func TestSessionLateCompletionAfterClose(t *testing.T) {
	s, _, _, _, _ := newTestSession(t)

	seq := s.fetchSeq.Add(1)
	s.Close()
	s.applyFetch(seq, "Haeundae-gu", sampleItems())

	if v := s.View(); v.Sidebar.State != SidebarEmpty {
		t.Fatalf("sidebar = %+v; completions after Close must be dropped", v.Sidebar)
	}
}
