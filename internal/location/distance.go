// Package location handles distance math and locating the caller
package location

import (
	"math"

	"github.com/randytsao24/ubikenear/internal/models"
)

const earthRadiusKm = 6371.0

// DistanceKm returns the great-circle distance between a and b in kilometers
func DistanceKm(a, b models.Coordinate) float64 {
	if a == b {
		return 0
	}

	lat1Rad := toRad(a.Lat)
	lat2Rad := toRad(b.Lat)
	deltaLat := toRad(b.Lat - a.Lat)
	deltaLng := toRad(b.Lng - a.Lng)

	h := math.Sin(deltaLat/2)*math.Sin(deltaLat/2) +
		math.Cos(lat1Rad)*math.Cos(lat2Rad)*
			math.Sin(deltaLng/2)*math.Sin(deltaLng/2)

	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return earthRadiusKm * c
}

func toRad(deg float64) float64 {
	return deg * math.Pi / 180
}
