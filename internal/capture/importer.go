package capture

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"path/filepath"
	"strconv"
	"strings"

	"field-service/internal/geometry"
)

type ImportErrorKind string

const (
	ImportUnparseable         ImportErrorKind = "unparseable"
	ImportUnsupportedFormat   ImportErrorKind = "unsupported_format"
	ImportUnsupportedGeometry ImportErrorKind = "unsupported_geometry"
	ImportTooFewPoints        ImportErrorKind = "too_few_points"
)

// ImportError explains why an uploaded boundary file was rejected.
type ImportError struct {
	Kind   ImportErrorKind `json:"kind"`
	Reason string          `json:"reason"`
}

func (e *ImportError) Error() string {
	return fmt.Sprintf("capture: import %s: %s", e.Kind, e.Reason)
}

func importErr(kind ImportErrorKind, format string, args ...any) *ImportError {
	return &ImportError{Kind: kind, Reason: fmt.Sprintf(format, args...)}
}

// ImportPreview is a parsed file before the user confirms it. Coordinates
// carry no closing duplicate.
type ImportPreview struct {
	Coordinates  geometry.Ring `json:"coordinates"`
	AreaHectares float64       `json:"areaHectares"`
}

func (p ImportPreview) Complete() (Result, error) {
	return newResult(MethodImport, p.Coordinates)
}

// ParseBoundaryFile picks a parser from the file extension.
func ParseBoundaryFile(name string, content []byte) (ImportPreview, error) {
	switch ext := strings.ToLower(filepath.Ext(name)); ext {
	case ".geojson", ".json":
		return ParseGeoJSON(content)
	case ".csv":
		return ParseCSV(content)
	case ".kml":
		return ImportPreview{}, importErr(ImportUnsupportedFormat, "KML is not supported yet, use GeoJSON or CSV")
	default:
		return ImportPreview{}, importErr(ImportUnsupportedFormat, "unsupported file type %q, use GeoJSON or CSV", ext)
	}
}

type geoJSONDocument struct {
	Type     string          `json:"type"`
	Geometry json.RawMessage `json:"geometry"`
	Features []struct {
		Geometry json.RawMessage `json:"geometry"`
	} `json:"features"`
}

// ParseGeoJSON accepts a Feature, the first feature of a FeatureCollection or
// a bare Polygon, and reads the polygon's exterior ring.
func ParseGeoJSON(content []byte) (ImportPreview, error) {
	var doc geoJSONDocument
	if err := json.Unmarshal(content, &doc); err != nil {
		return ImportPreview{}, importErr(ImportUnparseable, "invalid JSON: %v", err)
	}

	var raw json.RawMessage
	switch doc.Type {
	case "Feature":
		raw = doc.Geometry
	case "FeatureCollection":
		if len(doc.Features) == 0 {
			return ImportPreview{}, importErr(ImportUnsupportedGeometry, "feature collection has no features")
		}
		raw = doc.Features[0].Geometry
	case "Polygon":
		raw = content
	default:
		return ImportPreview{}, importErr(ImportUnsupportedGeometry, "unsupported GeoJSON type %q", doc.Type)
	}
	if len(raw) == 0 || string(raw) == "null" {
		return ImportPreview{}, importErr(ImportUnsupportedGeometry, "feature has no geometry")
	}

	poly, typ, err := geometry.DecodePolygon(raw)
	if err != nil {
		return ImportPreview{}, importErr(ImportUnparseable, "invalid geometry: %v", err)
	}
	if poly == nil {
		return ImportPreview{}, importErr(ImportUnsupportedGeometry, "only Polygon geometries are supported, got %q", typ)
	}

	return preview(geometry.RingFromPolygon(poly).Open())
}

// ParseCSV reads lat,lng rows. A first row mentioning "lat" is treated as a
// header; rows whose first two columns are not numbers are skipped.
func ParseCSV(content []byte) (ImportPreview, error) {
	r := csv.NewReader(bytes.NewReader(content))
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true
	r.LazyQuotes = true

	var ring geometry.Ring
	first := true
	for {
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return ImportPreview{}, importErr(ImportUnparseable, "invalid CSV: %v", err)
		}
		if first {
			first = false
			if strings.Contains(strings.ToLower(strings.Join(record, ",")), "lat") {
				continue
			}
		}
		if len(record) < 2 {
			continue
		}
		lat, latErr := strconv.ParseFloat(strings.TrimSpace(record[0]), 64)
		lng, lngErr := strconv.ParseFloat(strings.TrimSpace(record[1]), 64)
		if latErr != nil || lngErr != nil || math.IsNaN(lat) || math.IsNaN(lng) {
			continue
		}
		ring = append(ring, geometry.Point{Lat: lat, Lng: lng})
	}

	return preview(ring)
}

func preview(ring geometry.Ring) (ImportPreview, error) {
	if ring.Vertices() < 3 {
		return ImportPreview{}, importErr(ImportTooFewPoints, "boundary needs at least 3 points, found %d", ring.Vertices())
	}
	ha, err := geometry.RingHectares(ring)
	if err != nil {
		return ImportPreview{}, importErr(ImportTooFewPoints, "%v", err)
	}
	return ImportPreview{Coordinates: ring, AreaHectares: ha}, nil
}
