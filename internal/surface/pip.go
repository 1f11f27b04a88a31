package surface

import "github.com/busantrip/map-explorer/internal/model"

// containsPoint reports whether pt lies inside the ring (ray casting on the
// outer ring only; holes are not drawn so they are not tested).
func containsPoint(ring []model.LatLng, pt model.LatLng) bool {
	if len(ring) < 3 {
		return false
	}
	in := false
	j := len(ring) - 1
	for i := 0; i < len(ring); i++ {
		yi, xi := ring[i].Lat, ring[i].Lng
		yj, xj := ring[j].Lat, ring[j].Lng
		if (yi > pt.Lat) != (yj > pt.Lat) &&
			pt.Lng < (xj-xi)*(pt.Lat-yi)/(yj-yi)+xi {
			in = !in
		}
		j = i
	}
	return in
}
