package models

import (
	"fmt"
	"time"
)

// Provenance represents how a mapping came to exist.
type Provenance string

// Provenance constants. Precedence for confidence ceilings:
// builtin (1.0) > human (0.98) > everything else.
const (
	ProvenanceBuiltin  Provenance = "builtin"  // Shipped schema table, reconstructed at startup
	ProvenanceInferred Provenance = "inferred" // Produced by the inference pipeline
	ProvenanceHuman    Provenance = "human"    // Confirmed or corrected by a reviewer
	ProvenancePattern  Provenance = "pattern"  // Derived from learned feature pairs
	ProvenanceHybrid   Provenance = "hybrid"
)

// ConfidenceLevel buckets a confidence score for reporting.
type ConfidenceLevel string

const (
	ConfidenceCertain   ConfidenceLevel = "certain"   // >= 0.95
	ConfidenceHigh      ConfidenceLevel = "high"      // >= 0.80
	ConfidenceMedium    ConfidenceLevel = "medium"    // >= 0.60
	ConfidenceLow       ConfidenceLevel = "low"       // >= 0.40
	ConfidenceUncertain ConfidenceLevel = "uncertain" // < 0.40
)

// LevelForConfidence returns the bucket for a confidence score.
func LevelForConfidence(c float64) ConfidenceLevel {
	switch {
	case c >= 0.95:
		return ConfidenceCertain
	case c >= 0.80:
		return ConfidenceHigh
	case c >= 0.60:
		return ConfidenceMedium
	case c >= 0.40:
		return ConfidenceLow
	default:
		return ConfidenceUncertain
	}
}

// FieldMapping maps a source field to a target field for one entity type.
// The composite key (source platform, source field, target platform, entity)
// is immutable for the lifetime of the entry; changing the target replaces
// the entry.
type FieldMapping struct {
	SourcePlatform Platform   `json:"source_platform"`
	SourceField    string     `json:"source_field"`
	TargetPlatform Platform   `json:"target_platform"`
	TargetField    string     `json:"target_field"`
	EntityType     string     `json:"entity_type"`
	Confidence     float64    `json:"confidence"`
	Provenance     Provenance `json:"provenance"`
	TimesUsed      int        `json:"times_used"`
	TimesCorrected int        `json:"times_corrected"`
	CreatedAt      time.Time  `json:"created_at"`
	LastUsed       *time.Time `json:"last_used,omitempty"`
	Reasons        []string   `json:"reasons,omitempty"`
	Notes          string     `json:"notes,omitempty"`
}

// FieldMappingKey builds the composite store key for a field mapping.
func FieldMappingKey(srcPlat Platform, srcField string, tgtPlat Platform, entity string) string {
	return fmt.Sprintf("%s:%s:%s:%s", srcPlat, srcField, tgtPlat, entity)
}

// Key returns the composite store key for this mapping.
func (m *FieldMapping) Key() string {
	return FieldMappingKey(m.SourcePlatform, m.SourceField, m.TargetPlatform, m.EntityType)
}

// Level returns the confidence bucket for this mapping.
func (m *FieldMapping) Level() ConfidenceLevel {
	return LevelForConfidence(m.Confidence)
}

// ReliabilityScore discounts confidence by the observed correction rate.
func (m *FieldMapping) ReliabilityScore() float64 {
	used := m.TimesUsed
	if used < 1 {
		used = 1
	}
	return m.Confidence * (1 - 0.5*float64(m.TimesCorrected)/float64(used))
}

// ValueMapping maps a closed-vocabulary value literal across platforms
// for a specific field (stages, statuses, type codes).
type ValueMapping struct {
	SourcePlatform Platform   `json:"source_platform"`
	SourceValue    string     `json:"source_value"`
	TargetPlatform Platform   `json:"target_platform"`
	TargetValue    string     `json:"target_value"`
	FieldName      string     `json:"field_name"`
	EntityType     string     `json:"entity_type,omitempty"`
	Confidence     float64    `json:"confidence"`
	Provenance     Provenance `json:"provenance"`
	TimesUsed      int        `json:"times_used"`
	CreatedAt      time.Time  `json:"created_at"`
	LastUsed       *time.Time `json:"last_used,omitempty"`
}

// ValueMappingKey builds the composite store key for a value mapping.
func ValueMappingKey(srcPlat Platform, srcValue string, tgtPlat Platform, field string) string {
	return fmt.Sprintf("%s:%s:%s:%s", srcPlat, srcValue, tgtPlat, field)
}

// Key returns the composite store key for this value mapping.
func (m *ValueMapping) Key() string {
	return ValueMappingKey(m.SourcePlatform, m.SourceValue, m.TargetPlatform, m.FieldName)
}
