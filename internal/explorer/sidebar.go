// Package explorer orchestrates the map explorer: region boundary drawing,
// content markers, and the sidebar presentation state.
package explorer

import (
	"slices"
	"sync"

	"github.com/busantrip/map-explorer/internal/model"
)

// SidebarState names the active sidebar variant. Exactly one is active.
type SidebarState string

const (
	SidebarEmpty      SidebarState = "empty"
	SidebarRegionList SidebarState = "region_list"
	SidebarItemDetail SidebarState = "item_detail"
)

// SidebarView is an immutable snapshot of the sidebar for rendering.
// NoContent marks a region list that should render the explicit
// "no content in this region" message rather than an error.
type SidebarView struct {
	State     SidebarState        `json:"state"`
	Region    string              `json:"region,omitempty"`
	Items     []model.ContentItem `json:"items,omitempty"`
	Count     int                 `json:"count"`
	Item      *model.ContentItem  `json:"item,omitempty"`
	NoContent bool                `json:"no_content,omitempty"`
}

// Sidebar is the explorer's single piece of presentation state.
type Sidebar struct {
	mu      sync.Mutex
	state   SidebarState
	region  string
	items   []model.ContentItem
	current *model.ContentItem
}

func NewSidebar() *Sidebar {
	return &Sidebar{state: SidebarEmpty}
}

// ShowList replaces the sidebar with a fresh region list. An empty items
// slice is a valid list: the view communicates "no content here".
func (s *Sidebar) ShowList(region string, items []model.ContentItem) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = SidebarRegionList
	s.region = region
	s.items = slices.Clone(items)
	s.current = nil
}

// Select opens the item's detail view. Ignored while the sidebar is empty
// (there is no list to come back to yet).
func (s *Sidebar) Select(item model.ContentItem) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == SidebarEmpty {
		return false
	}
	s.state = SidebarItemDetail
	s.current = &item
	return true
}

// SelectByID maps a list-entry click back to its item by id.
func (s *Sidebar) SelectByID(id int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == SidebarEmpty {
		return false
	}
	for _, it := range s.items {
		if it.ID == id {
			s.state = SidebarItemDetail
			item := it
			s.current = &item
			return true
		}
	}
	return false
}

// Back returns from detail to the most recently held list without
// re-fetching. A no-op in any other state.
func (s *Sidebar) Back() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != SidebarItemDetail {
		return
	}
	s.state = SidebarRegionList
	s.current = nil
}

// Reset returns to the initial empty state; used only on view unmount.
func (s *Sidebar) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = SidebarEmpty
	s.region = ""
	s.items = nil
	s.current = nil
}

func (s *Sidebar) View() SidebarView {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := SidebarView{State: s.state, Region: s.region}
	switch s.state {
	case SidebarRegionList:
		v.Items = slices.Clone(s.items)
		v.Count = len(s.items)
		v.NoContent = len(s.items) == 0
	case SidebarItemDetail:
		item := *s.current
		v.Item = &item
		v.Count = len(s.items)
	}
	return v
}
