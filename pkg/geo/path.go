package geo

import (
	"github.com/paulmach/orb"
	orbgeo "github.com/paulmach/orb/geo"

	"strollgo/pkg/model"
)

// PathFromCoords builds a walking-path line from backend geometry, delivered
// as [lng, lat] pairs (GeoJSON axis order). Pairs with fewer than two values
// are dropped.
func PathFromCoords(coords [][]float64) orb.LineString {
	ls := make(orb.LineString, 0, len(coords))
	for _, c := range coords {
		if len(c) < 2 {
			continue
		}
		ls = append(ls, orb.Point{c[0], c[1]})
	}
	return ls
}

// PathLength returns the length of a walking path in meters.
func PathLength(ls orb.LineString) float64 {
	return orbgeo.LengthHaversine(ls)
}

// PathEnd returns the last point of the path as a LatLng, or a zero value for
// an empty path.
func PathEnd(ls orb.LineString) model.LatLng {
	if len(ls) == 0 {
		return model.LatLng{}
	}
	p := ls[len(ls)-1]
	return model.LatLng{Lat: p[1], Lng: p[0]}
}
