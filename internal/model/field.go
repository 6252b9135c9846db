package model

import (
	"encoding/json"
	"time"

	"github.com/twpayne/go-geom/encoding/geojson"

	"field-service/internal/geometry"
)

type HealthStatus string

const (
	HealthHealthy HealthStatus = "healthy"
	HealthMonitor HealthStatus = "monitor"
	HealthStress  HealthStatus = "stress"
)

type VegetationIndices struct {
	NDVI   float64      `json:"ndvi"`
	MSAVI  float64      `json:"msavi"`
	MSAVI2 float64      `json:"msavi2"`
	NDRE   float64      `json:"ndre"`
	NDMI   float64      `json:"ndmi"`
	NDWI   float64      `json:"ndwi"`
	RSM    float64      `json:"rsm"`
	RVI    float64      `json:"rvi"`
	SOCVis float64      `json:"soc_vis"`
	Status HealthStatus `json:"status"`

	Nitrogen      *float64 `json:"nitrogen,omitempty"`
	Phosphorus    *float64 `json:"phosphorus,omitempty"`
	Potassium     *float64 `json:"potassium,omitempty"`
	NPKConfidence *float64 `json:"npk_confidence,omitempty"`
}

type Quadrant struct {
	ID     string       `json:"id"`
	Name   string       `json:"name"`
	NDVI   float64      `json:"ndvi"`
	Status HealthStatus `json:"status"`
}

// DefaultQuadrants is the fixed quadrant set every field starts with.
func DefaultQuadrants() []Quadrant {
	return []Quadrant{
		{ID: "q1", Name: "North-West", NDVI: 0, Status: HealthMonitor},
		{ID: "q2", Name: "North-East", NDVI: 0, Status: HealthMonitor},
		{ID: "q3", Name: "South-West", NDVI: 0, Status: HealthMonitor},
		{ID: "q4", Name: "South-East", NDVI: 0, Status: HealthMonitor},
	}
}

type FieldChange struct {
	Field  string `json:"field"`
	Before any    `json:"before"`
	After  any    `json:"after"`
}

type EditAudit struct {
	ID        string        `json:"id"`
	Timestamp time.Time     `json:"timestamp"`
	UserID    string        `json:"userId"`
	UserName  string        `json:"userName"`
	Changes   []FieldChange `json:"changes"`
}

// Field is a registered crop field. Coordinates hold the boundary in
// [lat, lng] order; the GeoJSON geometry is derived from them when the field
// is serialized and is never read back.
type Field struct {
	ID                  string  `json:"id"`
	UserID              string  `json:"userId"`
	Name                string  `json:"name"`
	CropType            string  `json:"cropType"`
	Variety             string  `json:"variety"`
	Area                float64 `json:"area"`
	SowingDate          string  `json:"sowingDate"`
	ExpectedHarvestDate string  `json:"expectedHarvestDate"`
	IrrigationMethod    string  `json:"irrigationMethod"`
	WateringFrequency   string  `json:"wateringFrequency"`
	SoilType            string  `json:"soilType,omitempty"`
	Notes               string  `json:"notes,omitempty"`

	Coordinates      geometry.Ring `json:"coordinates"`
	GPSTrace         geometry.Ring `json:"gpsTrace,omitempty"`
	LocationAccuracy *float64      `json:"locationAccuracy,omitempty"`
	MappingMethod    string        `json:"mappingMethod,omitempty"`

	CurrentHealth   *VegetationIndices `json:"currentHealth,omitempty"`
	Quadrants       []Quadrant         `json:"quadrants"`
	LastAnalysis    *time.Time         `json:"lastAnalysis,omitempty"`
	AnalysisHistory []AnalysisSnapshot `json:"analysisHistory"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
	EditCount int       `json:"editCount"`

	Events     []FieldEvent `json:"events"`
	EditAudits []EditAudit  `json:"editAudits"`
}

type fieldJSON Field

func (f Field) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		fieldJSON
		Geometry *geojson.Geometry `json:"geometry,omitempty"`
	}{
		fieldJSON: fieldJSON(f),
		Geometry:  geometry.GeoJSON(f.Coordinates),
	})
}
