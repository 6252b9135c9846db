package geometry

import (
	"math"
)

// CircleSteps is the number of segments used to approximate circular fields.
const CircleSteps = 64

// Destination returns the point reached by travelling distance meters from
// origin along the given bearing (degrees clockwise from north).
func Destination(origin Point, distance, bearing float64) Point {
	lat1 := radians(origin.Lat)
	lng1 := radians(origin.Lng)
	brg := radians(bearing)
	d := distance / meanEarthRadius

	lat2 := math.Asin(math.Sin(lat1)*math.Cos(d) + math.Cos(lat1)*math.Sin(d)*math.Cos(brg))
	lng2 := lng1 + math.Atan2(
		math.Sin(brg)*math.Sin(d)*math.Cos(lat1),
		math.Cos(d)-math.Sin(lat1)*math.Sin(lat2),
	)

	return Point{Lat: degrees(lat2), Lng: degrees(lng2)}
}

// Distance is the haversine distance between two points in meters.
func Distance(a, b Point) float64 {
	dLat := radians(b.Lat - a.Lat)
	dLng := radians(b.Lng - a.Lng)
	lat1 := radians(a.Lat)
	lat2 := radians(b.Lat)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) + math.Sin(dLng/2)*math.Sin(dLng/2)*math.Cos(lat1)*math.Cos(lat2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
	return meanEarthRadius * c
}

// Perimeter is the length of the closed boundary in meters.
func Perimeter(r Ring) float64 {
	closed := r.Closed()
	var total float64
	for i := 1; i < len(closed); i++ {
		total += Distance(closed[i-1], closed[i])
	}
	return total
}

// Centroid is the mean of the distinct boundary vertices.
func Centroid(r Ring) (Point, bool) {
	open := r.Open()
	if len(open) == 0 {
		return Point{}, false
	}
	var lat, lng float64
	for _, p := range open {
		lat += p.Lat
		lng += p.Lng
	}
	n := float64(len(open))
	return Point{Lat: lat / n, Lng: lng / n}, true
}

// Circle approximates a circle of radius meters around center with steps
// geodesic offsets. The returned ring is closed.
func Circle(center Point, radius float64, steps int) (Ring, error) {
	if radius <= 0 {
		return nil, ErrInvalidSize
	}
	if steps < 3 {
		steps = CircleSteps
	}

	ring := make(Ring, 0, steps+1)
	for i := 0; i < steps; i++ {
		ring = append(ring, Destination(center, radius, float64(i)*-360/float64(steps)))
	}
	ring = append(ring, ring[0])
	return ring, nil
}

// Square builds an axis-aligned square of side meters centered on center,
// corners ordered NE, SE, SW, NW. The returned ring is open.
func Square(center Point, side float64) (Ring, error) {
	if side <= 0 {
		return nil, ErrInvalidSize
	}

	half := side / 2
	north := Destination(center, half, 0)
	south := Destination(center, half, 180)

	return Ring{
		Destination(north, half, 90),
		Destination(south, half, 90),
		Destination(south, half, 270),
		Destination(north, half, 270),
	}, nil
}
