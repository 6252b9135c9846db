package model

import "time"

type YieldPrediction struct {
	PredictedYield           float64        `json:"predicted_yield"`
	Confidence               float64        `json:"confidence"`
	LowerBound               *float64       `json:"lower_bound,omitempty"`
	UpperBound               *float64       `json:"upper_bound,omitempty"`
	VarietyCharacteristics   map[string]any `json:"variety_characteristics,omitempty"`
	EnvironmentalAdjustments map[string]any `json:"environmental_adjustments,omitempty"`
	DataQuality              *float64       `json:"data_quality,omitempty"`
}

// YieldRecord is a prediction stamped with the field and time it was made.
type YieldRecord struct {
	ID         string          `json:"id"`
	FieldID    string          `json:"fieldId"`
	Timestamp  time.Time       `json:"timestamp"`
	Prediction YieldPrediction `json:"prediction"`
}
