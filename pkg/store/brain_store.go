// Package store implements the learned mapping store (the "schema
// brain"): field and value mappings keyed by composite key, grow-only
// pattern memory, activity counters, and the capped learning log.
//
// The store is owned by a single engine instance and is not safe for
// concurrent use; the engine facade serializes access.
package store

import (
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/fieldbridge/fieldbridge-engine/pkg/models"
	"github.com/fieldbridge/fieldbridge-engine/pkg/schema"
)

// BrainStore holds all learned knowledge for one engine instance.
// Builtin mappings are reconstructed from the schema seed on every
// construction and are never written to disk.
type BrainStore struct {
	dir    string
	seed   *schema.Seed
	logger *zap.Logger

	fieldMappings map[string]*models.FieldMapping
	valueMappings map[string]*models.ValueMapping
	fieldPatterns map[string][]string          // pattern key -> co-occurring target features
	valuePatterns map[string]map[string]string // "platform:field" -> literal pattern -> target
	counters      models.ActivityCounters
	learningLog   []models.LearningEvent
}

// NewBrainStore creates a store rooted at dir, bootstraps the builtin
// schema table, and overlays whatever persisted state exists. Missing or
// corrupt persistence is not an error: the store starts from builtins
// and logs a warning.
func NewBrainStore(dir string, seed *schema.Seed, logger *zap.Logger) *BrainStore {
	if dir == "" {
		dir = DefaultDataDir()
	}
	s := &BrainStore{
		dir:           dir,
		seed:          seed,
		logger:        logger.Named("brain-store"),
		fieldMappings: make(map[string]*models.FieldMapping),
		valueMappings: make(map[string]*models.ValueMapping),
		fieldPatterns: make(map[string][]string),
		valuePatterns: make(map[string]map[string]string),
	}
	s.bootstrapBuiltins()
	s.Load()
	return s
}

func (s *BrainStore) bootstrapBuiltins() {
	for _, m := range s.seed.BuiltinFieldMappings() {
		s.fieldMappings[m.Key()] = m
	}
}

// Seed exposes the builtin schema seed backing this store.
func (s *BrainStore) Seed() *schema.Seed {
	return s.seed
}

// GetFieldMapping returns the mapping for a composite key, if any.
func (s *BrainStore) GetFieldMapping(srcPlat models.Platform, srcField string, tgtPlat models.Platform, entity string) (*models.FieldMapping, bool) {
	m, ok := s.fieldMappings[models.FieldMappingKey(srcPlat, srcField, tgtPlat, entity)]
	return m, ok
}

// PutFieldMapping upserts a mapping. When the entry is replaced with the
// same target field, usage counters and the creation timestamp survive
// (taking the larger counter so in-place increments are not lost); a
// changed target resets them to the caller's values.
func (s *BrainStore) PutFieldMapping(m *models.FieldMapping) {
	key := m.Key()
	if prior, ok := s.fieldMappings[key]; ok && prior.TargetField == m.TargetField {
		m.CreatedAt = prior.CreatedAt
		m.TimesUsed = max(m.TimesUsed, prior.TimesUsed)
		m.TimesCorrected = max(m.TimesCorrected, prior.TimesCorrected)
	}
	s.fieldMappings[key] = m
}

// DeleteFieldMapping removes a mapping by composite key.
func (s *BrainStore) DeleteFieldMapping(srcPlat models.Platform, srcField string, tgtPlat models.Platform, entity string) {
	delete(s.fieldMappings, models.FieldMappingKey(srcPlat, srcField, tgtPlat, entity))
}

// GetValueMapping returns the value mapping for a composite key, if any.
func (s *BrainStore) GetValueMapping(srcPlat models.Platform, srcValue string, tgtPlat models.Platform, field string) (*models.ValueMapping, bool) {
	m, ok := s.valueMappings[models.ValueMappingKey(srcPlat, srcValue, tgtPlat, field)]
	return m, ok
}

// PutValueMapping upserts a value mapping.
func (s *BrainStore) PutValueMapping(m *models.ValueMapping) {
	s.valueMappings[m.Key()] = m
}

// FieldMappings returns all mappings, builtins included.
func (s *BrainStore) FieldMappings() []*models.FieldMapping {
	out := make([]*models.FieldMapping, 0, len(s.fieldMappings))
	for _, m := range s.fieldMappings {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key() < out[j].Key() })
	return out
}

// MappingsForPair returns mappings with the given source and target
// platforms, across all entities.
func (s *BrainStore) MappingsForPair(srcPlat, tgtPlat models.Platform) []*models.FieldMapping {
	var out []*models.FieldMapping
	for _, m := range s.fieldMappings {
		if m.SourcePlatform == srcPlat && m.TargetPlatform == tgtPlat {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key() < out[j].Key() })
	return out
}

// KnownTargetFields returns the union of builtin schema fields for a
// platform entity and every learned target field whose key matches.
// Unknown platforms or entities yield an empty set.
func (s *BrainStore) KnownTargetFields(platform models.Platform, entity string) []string {
	set := make(map[string]struct{})
	builtinEntity := entity
	if canonical, ok := s.seed.CanonicalEntity(entity); ok {
		builtinEntity = canonical
	}
	for _, name := range s.seed.FieldNames(platform, builtinEntity) {
		set[name] = struct{}{}
	}
	for _, m := range s.fieldMappings {
		if m.TargetPlatform == platform && m.EntityType == entity && m.TargetField != "" {
			set[m.TargetField] = struct{}{}
		}
	}
	out := make([]string, 0, len(set))
	for name := range set {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// KnownTargetValues returns the builtin vocabulary for the field's value
// class on the given platform, plus learned target values for that field.
func (s *BrainStore) KnownTargetValues(field string, platform models.Platform) []string {
	set := make(map[string]struct{})
	if class := schema.VocabularyClassForField(field); class != "" {
		for _, v := range s.seed.Vocabulary(class, platform) {
			set[v] = struct{}{}
		}
	}
	for _, m := range s.valueMappings {
		if m.TargetPlatform == platform && strings.EqualFold(m.FieldName, field) {
			set[m.TargetValue] = struct{}{}
		}
	}
	out := make([]string, 0, len(set))
	for v := range set {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

// AddFieldPattern appends a target feature to a pattern key, deduplicated.
// Pattern memory only grows; there is no deletion short of a reset.
func (s *BrainStore) AddFieldPattern(key, targetFeature string) {
	for _, existing := range s.fieldPatterns[key] {
		if existing == targetFeature {
			return
		}
	}
	s.fieldPatterns[key] = append(s.fieldPatterns[key], targetFeature)
}

// FieldPatterns returns the learned target features for a pattern key.
func (s *BrainStore) FieldPatterns(key string) []string {
	return s.fieldPatterns[key]
}

// AddValuePattern records a literal value pattern for a platform field.
func (s *BrainStore) AddValuePattern(srcPlat models.Platform, field, pattern, target string) {
	key := string(srcPlat) + ":" + field
	if s.valuePatterns[key] == nil {
		s.valuePatterns[key] = make(map[string]string)
	}
	s.valuePatterns[key][pattern] = target
}

// ValuePatterns returns the learned value patterns for a platform field.
func (s *BrainStore) ValuePatterns(srcPlat models.Platform, field string) map[string]string {
	return s.valuePatterns[string(srcPlat)+":"+field]
}

// AppendEvent records a learning event. The in-memory log is unbounded;
// Save truncates the on-disk copy to the most recent entries.
func (s *BrainStore) AppendEvent(e models.LearningEvent) {
	s.learningLog = append(s.learningLog, e)
}

// LearningLog returns the in-memory learning log, oldest first.
func (s *BrainStore) LearningLog() []models.LearningEvent {
	return s.learningLog
}

// Counters exposes the activity counters for mutation by the engine.
func (s *BrainStore) Counters() *models.ActivityCounters {
	return &s.counters
}

// Stats aggregates the current state of the store.
func (s *BrainStore) Stats() models.BrainStats {
	stats := models.BrainStats{
		TotalMappings:     len(s.fieldMappings),
		TotalValues:       len(s.valueMappings),
		ByProvenance:      make(map[models.Provenance]int),
		ByConfidenceLevel: make(map[models.ConfidenceLevel]int),
		ByEntity:          make(map[string]int),
		Activity:          s.counters,
	}
	builtins := 0
	for _, m := range s.fieldMappings {
		stats.ByProvenance[m.Provenance]++
		stats.ByConfidenceLevel[m.Level()]++
		stats.ByEntity[m.EntityType]++
		if m.Provenance == models.ProvenanceBuiltin {
			builtins++
		}
	}
	handled := s.counters.SuccessfulInferences + builtins
	denominator := s.counters.UnknownFieldsEncountered + handled
	if denominator < 1 {
		denominator = 1
	}
	stats.CoverageEstimate = float64(handled) / float64(denominator)
	return stats
}
