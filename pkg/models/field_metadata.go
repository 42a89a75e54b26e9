package models

import "time"

// FieldMetadata describes one field discovered from a live platform schema,
// normalized from whatever the platform's introspection surface returns.
type FieldMetadata struct {
	Name            string   `json:"name"`                       // Logical API name
	Label           string   `json:"label"`                      // Display label
	Type            string   `json:"type"`                       // Normalized type (string, email, phone, picklist, ...)
	Platform        Platform `json:"platform"`
	EntityType      string   `json:"entity_type"`
	Required        bool     `json:"required"`
	Unique          bool     `json:"unique"`
	MaxLength       int      `json:"max_length,omitempty"`
	PicklistValues  []string `json:"picklist_values,omitempty"`
	ReferenceTarget string   `json:"reference_target,omitempty"` // Referenced entity for lookup fields
	IsCustom        bool     `json:"is_custom"`
	IsSystem        bool     `json:"is_system"`
	OriginalName    string   `json:"original_name,omitempty"`    // Raw API name before normalization
}

// DiscoveryResult records the outcome of one live schema ingest.
type DiscoveryResult struct {
	RunID            string    `json:"run_id"`
	Platform         Platform  `json:"platform"`
	StartedAt        time.Time `json:"started_at"`
	Duration         float64   `json:"duration_seconds"`
	EntitiesFound    int       `json:"entities_found"`
	FieldsFound      int       `json:"fields_found"`
	CustomFields     int       `json:"custom_fields"`
	ProposalsCreated int       `json:"proposals_created"`
	AutoApproved     int       `json:"auto_approved"`
	Errors           []string  `json:"errors,omitempty"`
}
