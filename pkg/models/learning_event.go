package models

import "time"

// LearningEventType classifies an entry in the learning log.
type LearningEventType string

const (
	LearningNewMapping   LearningEventType = "new_mapping"
	LearningCorrection   LearningEventType = "correction"
	LearningConfirmation LearningEventType = "confirmation"
	LearningRejection    LearningEventType = "rejection"
)

// LearningEvent is an append-only record of a change to the learned store.
// The on-disk log is capped to the most recent MaxLearningLogEntries.
type LearningEvent struct {
	Timestamp        time.Time         `json:"timestamp"`
	EventType        LearningEventType `json:"event_type"`
	SourcePlatform   Platform          `json:"source_platform"`
	TargetPlatform   Platform          `json:"target_platform"`
	EntityType       string            `json:"entity_type"`
	FieldName        string            `json:"field_name"`
	OldValue         string            `json:"old_value,omitempty"`
	NewValue         string            `json:"new_value,omitempty"`
	ConfidenceChange float64           `json:"confidence_change"`
	UserID           string            `json:"user_id,omitempty"`
	Notes            string            `json:"notes,omitempty"`
}

// MaxLearningLogEntries is the on-disk retention cap for the learning log.
const MaxLearningLogEntries = 1000
