package geometry

import (
	"math"

	"github.com/rotisserie/eris"
)

const (
	// wgs84Radius is the equatorial radius used for spherical polygon area.
	wgs84Radius = 6378137.0
	// meanEarthRadius is used for distances and geodesic offsets.
	meanEarthRadius = 6371008.8

	squareMetersPerHectare = 10000.0
)

var (
	ErrTooFewPoints = eris.New("geometry: ring needs at least 3 points")
	ErrInvalidSize  = eris.New("geometry: size must be positive")
)

// RingArea returns the area enclosed by the ring in square meters, computed
// as spherical excess on the WGS84 sphere. The ring is closed first if needed.
//
// Self-intersecting rings are accepted without validation; their area is the
// magnitude of the signed sum, which under-counts lobes wound in opposite
// directions.
func RingArea(r Ring) (float64, error) {
	if r.Vertices() < 3 {
		return 0, ErrTooFewPoints
	}
	return math.Abs(sphericalRingArea(r.Closed())), nil
}

// RingHectares is RingArea converted to hectares.
func RingHectares(r Ring) (float64, error) {
	m2, err := RingArea(r)
	if err != nil {
		return 0, err
	}
	return Hectares(m2), nil
}

// Hectares converts square meters to hectares.
func Hectares(squareMeters float64) float64 {
	return squareMeters / squareMetersPerHectare
}

// SquareMeters converts hectares to square meters.
func SquareMeters(hectares float64) float64 {
	return hectares * squareMetersPerHectare
}

func sphericalRingArea(closed Ring) float64 {
	n := len(closed)
	if n <= 2 {
		return 0
	}

	var total float64
	for i := 0; i < n; i++ {
		var lower, middle, upper int
		switch i {
		case n - 2:
			lower, middle, upper = n-2, n-1, 0
		case n - 1:
			lower, middle, upper = n-1, 0, 1
		default:
			lower, middle, upper = i, i+1, i+2
		}
		total += (radians(closed[upper].Lng) - radians(closed[lower].Lng)) * math.Sin(radians(closed[middle].Lat))
	}

	return total * wgs84Radius * wgs84Radius / 2
}

func radians(deg float64) float64 {
	return deg * math.Pi / 180
}

func degrees(rad float64) float64 {
	return rad * 180 / math.Pi
}
