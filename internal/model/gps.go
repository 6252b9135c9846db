package model

import "time"

type AccuracyStatus string

const (
	AccuracyExcellent AccuracyStatus = "excellent"
	AccuracyGood      AccuracyStatus = "good"
	AccuracyFair      AccuracyStatus = "fair"
	AccuracyPoor      AccuracyStatus = "poor"
)

// GPSAccuracy is a transient reading; it is never persisted on its own.
type GPSAccuracy struct {
	Accuracy  float64        `json:"accuracy"`
	Timestamp time.Time      `json:"timestamp"`
	Status    AccuracyStatus `json:"status"`
}

func ClassifyAccuracy(meters float64) AccuracyStatus {
	switch {
	case meters <= 5:
		return AccuracyExcellent
	case meters <= 10:
		return AccuracyGood
	case meters <= 15:
		return AccuracyFair
	default:
		return AccuracyPoor
	}
}

func NewGPSAccuracy(meters float64, at time.Time) GPSAccuracy {
	return GPSAccuracy{
		Accuracy:  meters,
		Timestamp: at,
		Status:    ClassifyAccuracy(meters),
	}
}

var accuracyLabels = map[AccuracyStatus]string{
	AccuracyExcellent: "Excellent Signal",
	AccuracyGood:      "Good Signal",
	AccuracyFair:      "Fair Signal",
	AccuracyPoor:      "Poor Signal",
}

func (s AccuracyStatus) Label() string {
	return accuracyLabels[s]
}

// Recommendation is the advice shown next to a reading.
func (s AccuracyStatus) Recommendation() string {
	switch s {
	case AccuracyExcellent, AccuracyGood:
		return "GPS accuracy is sufficient for field mapping."
	case AccuracyFair:
		return "Move to an open area for better accuracy."
	default:
		return "Move to open sky. Avoid buildings and trees."
	}
}
