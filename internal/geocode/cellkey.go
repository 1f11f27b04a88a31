package geocode

import (
	"fmt"

	h3 "github.com/uber/h3-go/v4"
)

// cellKey quantizes a coordinate to an H3 cell so nearby clicks share one
// cache entry. At resolution 9 a cell is ~100m across, well inside any
// administrative district.
func cellKey(lat, lng float64, res int) (string, error) {
	if res < 0 || res > 15 {
		return "", fmt.Errorf("invalid H3 resolution %d (must be 0..15)", res)
	}
	cell, err := h3.LatLngToCell(h3.LatLng{Lat: lat, Lng: lng}, res)
	if err != nil {
		return "", fmt.Errorf("h3 cell: %w", err)
	}
	return "geo:cell:" + cell.String(), nil
}
