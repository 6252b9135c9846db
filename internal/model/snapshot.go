package model

import "time"

// AnalysisSnapshot is one point-in-time vegetation reading for a field.
type AnalysisSnapshot struct {
	ID              string            `json:"id"`
	Timestamp       time.Time         `json:"timestamp"`
	Health          VegetationIndices `json:"health"`
	Quadrants       []Quadrant        `json:"quadrants"`
	ModelVersion    string            `json:"modelVersion"`
	SatelliteSource string            `json:"satelliteSource"`
	CloudCover      float64           `json:"cloudCover"`
	Confidence      float64           `json:"confidence"`
}
