package geometry

import (
	"encoding/json"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
)

// ToPolygon converts the ring into a closed go-geom polygon in [lng, lat]
// axis order with SRID 4326.
func ToPolygon(r Ring) (*geom.Polygon, error) {
	if r.Vertices() < 3 {
		return nil, ErrTooFewPoints
	}

	closed := r.Closed()
	flat := make([]float64, 0, 2*len(closed))
	for _, p := range closed {
		flat = append(flat, p.Lng, p.Lat)
	}

	poly := geom.NewPolygonFlat(geom.XY, flat, []int{len(flat)})
	return poly.SetSRID(4326), nil
}

// GeoJSON returns the GeoJSON geometry mirror of the ring, or nil when the
// ring cannot form a polygon yet.
func GeoJSON(r Ring) *geojson.Geometry {
	poly, err := ToPolygon(r)
	if err != nil {
		return nil
	}
	g, err := geojson.Encode(poly)
	if err != nil {
		return nil
	}
	return g
}

// MarshalGeoJSON encodes the ring as a GeoJSON Polygon document.
func MarshalGeoJSON(r Ring) ([]byte, error) {
	poly, err := ToPolygon(r)
	if err != nil {
		return nil, err
	}
	data, err := geojson.Marshal(poly)
	if err != nil {
		return nil, eris.Wrap(err, "geometry: encode geojson")
	}
	return data, nil
}

// RingFromPolygon extracts the exterior ring of a polygon back into [lat, lng]
// order. The closing duplicate is kept if the polygon carries one.
func RingFromPolygon(poly *geom.Polygon) Ring {
	if poly == nil || poly.NumLinearRings() == 0 {
		return nil
	}
	coords := poly.LinearRing(0).Coords()
	ring := make(Ring, 0, len(coords))
	for _, c := range coords {
		ring = append(ring, Point{Lat: c.Y(), Lng: c.X()})
	}
	return ring
}

// DecodePolygon decodes a raw GeoJSON geometry object and returns it when it
// is a Polygon. The returned type string is the geometry's declared type.
func DecodePolygon(raw json.RawMessage) (*geom.Polygon, string, error) {
	var g geojson.Geometry
	if err := json.Unmarshal(raw, &g); err != nil {
		return nil, "", eris.Wrap(err, "geometry: decode geojson geometry")
	}
	if g.Type != "Polygon" {
		return nil, g.Type, nil
	}
	t, err := g.Decode()
	if err != nil {
		return nil, g.Type, eris.Wrap(err, "geometry: decode polygon")
	}
	poly, ok := t.(*geom.Polygon)
	if !ok {
		return nil, g.Type, eris.New("geometry: decoded geometry is not a polygon")
	}
	return poly, g.Type, nil
}
