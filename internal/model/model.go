// Package model defines core domain types shared across the service.
package model

// LatLng is a WGS84 coordinate in (latitude, longitude) order, matching the
// point order the map provider expects.
type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// ContentItem is a read-only copy of one marketplace item as served by the
// content API's map-data endpoint. Identity is ID.
type ContentItem struct {
	ID          int64    `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Price       int64    `json:"price"` // smallest currency unit
	Location    string   `json:"location"`
	ImageURL    string   `json:"main_image_url"`
	Latitude    *float64 `json:"latitude"`
	Longitude   *float64 `json:"longitude"`
	Rating      float64  `json:"rating"`
	Status      string   `json:"status"`
}

// Position returns the item's coordinate and whether both halves are present.
// Items without a full coordinate are not placeable on the map.
func (c ContentItem) Position() (LatLng, bool) {
	if c.Latitude == nil || c.Longitude == nil {
		return LatLng{}, false
	}
	return LatLng{Lat: *c.Latitude, Lng: *c.Longitude}, true
}

// DedupeByID drops later duplicates by item id, preserving order. Fetches of
// overlapping regions may return the same item more than once.
func DedupeByID(items []ContentItem) []ContentItem {
	if len(items) < 2 {
		return items
	}
	seen := make(map[int64]struct{}, len(items))
	out := items[:0]
	for _, it := range items {
		if _, ok := seen[it.ID]; ok {
			continue
		}
		seen[it.ID] = struct{}{}
		out = append(out, it)
	}
	return out
}
