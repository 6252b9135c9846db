package geometry

import (
	"encoding/json"

	"github.com/rotisserie/eris"
)

// Point is a geographic position. It serializes as a [lat, lng] pair, the
// axis order used everywhere inside the service. GeoJSON output swaps to
// [lng, lat] at the encoding boundary only (see geojson.go).
type Point struct {
	Lat float64
	Lng float64
}

func (p Point) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]float64{p.Lat, p.Lng})
}

func (p *Point) UnmarshalJSON(data []byte) error {
	var pair []float64
	if err := json.Unmarshal(data, &pair); err != nil {
		return eris.Wrap(err, "geometry: decode point")
	}
	if len(pair) < 2 {
		return eris.Errorf("geometry: point needs 2 values, got %d", len(pair))
	}
	p.Lat, p.Lng = pair[0], pair[1]
	return nil
}

// Ring is an ordered boundary. The last point implicitly connects back to the
// first; a ring may or may not carry an explicit closing duplicate.
type Ring []Point

// IsClosed reports whether the last point repeats the first.
func (r Ring) IsClosed() bool {
	return len(r) > 1 && r[0] == r[len(r)-1]
}

// Closed returns a copy with the first point appended when missing.
func (r Ring) Closed() Ring {
	out := make(Ring, len(r), len(r)+1)
	copy(out, r)
	if len(r) > 0 && !r.IsClosed() {
		out = append(out, r[0])
	}
	return out
}

// Open returns a copy without the explicit closing duplicate.
func (r Ring) Open() Ring {
	n := len(r)
	if r.IsClosed() {
		n--
	}
	out := make(Ring, n)
	copy(out, r[:n])
	return out
}

// Vertices is the number of distinct boundary positions (closing duplicate
// excluded).
func (r Ring) Vertices() int {
	if r.IsClosed() {
		return len(r) - 1
	}
	return len(r)
}
