package model

import "time"

type EventType string

const (
	EventCreated    EventType = "created"
	EventAnalysis   EventType = "analysis"
	EventEdit       EventType = "edit"
	EventFertilizer EventType = "fertilizer"
	EventIrrigation EventType = "irrigation"
	EventHarvest    EventType = "harvest"
	EventNote       EventType = "note"
	EventPhoto      EventType = "photo"
)

var eventTypes = map[EventType]bool{
	EventCreated:    true,
	EventAnalysis:   true,
	EventEdit:       true,
	EventFertilizer: true,
	EventIrrigation: true,
	EventHarvest:    true,
	EventNote:       true,
	EventPhoto:      true,
}

func (t EventType) Valid() bool {
	return eventTypes[t]
}

// FieldEvent is an append-only timeline entry.
type FieldEvent struct {
	ID          string         `json:"id"`
	Type        EventType      `json:"type"`
	Timestamp   time.Time      `json:"timestamp"`
	UserID      string         `json:"userId"`
	UserName    string         `json:"userName"`
	Description string         `json:"description"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	Attachments []string       `json:"attachments,omitempty"`
}

// Actor identifies who performed an action. There is no authentication; the
// values are whatever the client reports.
type Actor struct {
	UserID   string
	UserName string
}
