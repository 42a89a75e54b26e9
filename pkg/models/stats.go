package models

// ActivityCounters accumulate engine activity across sessions. They are
// persisted in the schema-brain document's stats block.
type ActivityCounters struct {
	TotalTranslations        int `json:"total_translations"`
	UnknownFieldsEncountered int `json:"unknown_fields_encountered"`
	SuccessfulInferences     int `json:"successful_inferences"`
	HumanCorrections         int `json:"human_corrections"`
	AutoResolved             int `json:"auto_resolved"`
}

// BrainStats is the aggregate view of the learned store.
type BrainStats struct {
	TotalMappings     int                     `json:"total_mappings"`
	TotalValues       int                     `json:"total_value_mappings"`
	ByProvenance      map[Provenance]int      `json:"by_provenance"`
	ByConfidenceLevel map[ConfidenceLevel]int `json:"by_confidence_level"`
	ByEntity          map[string]int          `json:"by_entity"`
	Activity          ActivityCounters        `json:"activity_counters"`
	CoverageEstimate  float64                 `json:"coverage_estimate"`
}
