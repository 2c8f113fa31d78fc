package geo

import (
	"math"

	"strollgo/pkg/model"
)

// Distance calculates the Haversine distance between two points in meters.
func Distance(p1, p2 model.LatLng) float64 {
	const R = 6371000 // Earth radius in meters
	dLat := (p2.Lat - p1.Lat) * (math.Pi / 180.0)
	dLng := (p2.Lng - p1.Lng) * (math.Pi / 180.0)
	lat1 := p1.Lat * (math.Pi / 180.0)
	lat2 := p2.Lat * (math.Pi / 180.0)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Sin(dLng/2)*math.Sin(dLng/2)*math.Cos(lat1)*math.Cos(lat2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return R * c
}

// ApproxNear reports whether two points are within a degree-box of half-width
// boxDeg. At walking-tour latitudes 0.0005 degrees is roughly 50 meters.
// The box is latitude/longitude-symmetric and thus widens toward the poles;
// the remote haversine check is the precise path, this is the fallback.
func ApproxNear(p1, p2 model.LatLng, boxDeg float64) bool {
	return math.Abs(p1.Lat-p2.Lat) < boxDeg && math.Abs(p1.Lng-p2.Lng) < boxDeg
}

// StepToward moves from origin the given fraction of the remaining distance
// toward target. A fraction of 1 lands on the target.
func StepToward(origin, target model.LatLng, fraction float64) model.LatLng {
	if fraction < 0 {
		fraction = 0
	} else if fraction > 1 {
		fraction = 1
	}
	return model.LatLng{
		Lat: origin.Lat + (target.Lat-origin.Lat)*fraction,
		Lng: origin.Lng + (target.Lng-origin.Lng)*fraction,
	}
}

// Bearing calculates the initial bearing (forward azimuth) from p1 to p2 in degrees.
func Bearing(p1, p2 model.LatLng) float64 {
	lat1 := p1.Lat * (math.Pi / 180.0)
	lat2 := p2.Lat * (math.Pi / 180.0)
	dLng := (p2.Lng - p1.Lng) * (math.Pi / 180.0)

	y := math.Sin(dLng) * math.Cos(lat2)
	x := math.Cos(lat1)*math.Sin(lat2) -
		math.Sin(lat1)*math.Cos(lat2)*math.Cos(dLng)
	brng := math.Atan2(y, x)

	return math.Mod(brng*(180.0/math.Pi)+360.0, 360.0)
}
