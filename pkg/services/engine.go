package services

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/fieldbridge/fieldbridge-engine/pkg/models"
	"github.com/fieldbridge/fieldbridge-engine/pkg/store"
)

// Engine is the synchronous caller-facing surface of the translation
// core. It bundles the inference and learning services over one brain
// store and serializes access with a single mutex, so every operation
// reads the store as of the last completed mutation and feedback commits
// atomically from the caller's perspective.
type Engine struct {
	mu        sync.Mutex
	store     *store.BrainStore
	inference *InferenceService
	learning  *LearningService
	logger    *zap.Logger
}

// NewEngine wires an engine over a brain store.
func NewEngine(brain *store.BrainStore, logger *zap.Logger) *Engine {
	return &Engine{
		store:     brain,
		inference: NewInferenceService(brain, logger),
		learning:  NewLearningService(brain, logger),
		logger:    logger.Named("engine"),
	}
}

// Store exposes the underlying brain store for discovery wiring.
// Callers must not mutate it outside engine operations.
func (e *Engine) Store() *store.BrainStore {
	return e.store
}

// TranslateField resolves a source field name for the target platform.
func (e *Engine) TranslateField(field string, srcPlat, tgtPlat models.Platform, entity string, record map[string]any) TranslationResult {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.inference.TranslateField(field, srcPlat, tgtPlat, entity, record)
}

// TranslateValue resolves a closed-vocabulary value literal.
func (e *Engine) TranslateValue(value, fieldName string, srcPlat, tgtPlat models.Platform, entity string) ValueTranslation {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.inference.TranslateValue(value, fieldName, srcPlat, tgtPlat, entity)
}

// AnalyzeRecord returns advisory proposals for every unmapped field in a
// record without mutating the store.
func (e *Engine) AnalyzeRecord(record map[string]any, srcPlat, tgtPlat models.Platform, entity string) map[string]TranslationResult {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.inference.AnalyzeRecord(record, srcPlat, tgtPlat, entity)
}

// ProvideFeedback records an authoritative target for a source field.
func (e *Engine) ProvideFeedback(srcPlat models.Platform, srcField string, tgtPlat models.Platform, entity, targetField string, opts FeedbackOptions) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.learning.ProvideFeedback(srcPlat, srcField, tgtPlat, entity, targetField, opts)
}

// ConfirmMapping boosts an existing mapping toward the 0.95 ceiling.
func (e *Engine) ConfirmMapping(srcPlat models.Platform, srcField string, tgtPlat models.Platform, entity string, opts FeedbackOptions) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.learning.ConfirmMapping(srcPlat, srcField, tgtPlat, entity, opts)
}

// RejectMapping demotes a mapping, deleting it below the floor.
func (e *Engine) RejectMapping(srcPlat models.Platform, srcField string, tgtPlat models.Platform, entity string, opts FeedbackOptions) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.learning.RejectMapping(srcPlat, srcField, tgtPlat, entity, opts)
}

// ImportApproved imprints exported discovery approvals into the store.
func (e *Engine) ImportApproved(approved []models.ApprovedMapping, opts FeedbackOptions) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.learning.ImportApproved(approved, opts)
}

// PendingReviews lists learned mappings that still need a human look:
// inferred entries below the review threshold, least confident first.
func (e *Engine) PendingReviews() []*models.FieldMapping {
	e.mu.Lock()
	defer e.mu.Unlock()

	var pending []*models.FieldMapping
	for _, m := range e.store.FieldMappings() {
		if m.Provenance == models.ProvenanceInferred && m.Confidence < reviewThreshold {
			pending = append(pending, m)
		}
	}
	sort.Slice(pending, func(i, j int) bool { return pending[i].Confidence < pending[j].Confidence })
	return pending
}

// MappingStats aggregates the store.
func (e *Engine) MappingStats() models.BrainStats {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.store.Stats()
}

// ExportMappings renders every mapping in the requested format
// ("json" or "markdown").
func (e *Engine) ExportMappings(format string) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	mappings := e.store.FieldMappings()
	switch format {
	case "json":
		type exportEntry struct {
			*models.FieldMapping
			ConfidenceLevel models.ConfidenceLevel `json:"confidence_level"`
			Reliability     float64                `json:"reliability_score"`
		}
		entries := make([]exportEntry, 0, len(mappings))
		for _, m := range mappings {
			entries = append(entries, exportEntry{m, m.Level(), m.ReliabilityScore()})
		}
		data, err := json.MarshalIndent(entries, "", "  ")
		if err != nil {
			return "", fmt.Errorf("marshal mappings: %w", err)
		}
		return string(data), nil
	case "markdown":
		return renderMarkdown(mappings), nil
	default:
		return "", fmt.Errorf("unsupported export format %q", format)
	}
}

func renderMarkdown(mappings []*models.FieldMapping) string {
	byPair := make(map[string][]*models.FieldMapping)
	var pairs []string
	for _, m := range mappings {
		pair := fmt.Sprintf("%s -> %s", m.SourcePlatform, m.TargetPlatform)
		if _, ok := byPair[pair]; !ok {
			pairs = append(pairs, pair)
		}
		byPair[pair] = append(byPair[pair], m)
	}
	sort.Strings(pairs)

	var b strings.Builder
	b.WriteString("# Field Mappings\n")
	for _, pair := range pairs {
		fmt.Fprintf(&b, "\n## %s\n\n", pair)
		b.WriteString("| Entity | Source Field | Target Field | Confidence | Provenance |\n")
		b.WriteString("|---|---|---|---|---|\n")
		for _, m := range byPair[pair] {
			fmt.Fprintf(&b, "| %s | %s | %s | %.2f | %s |\n",
				m.EntityType, m.SourceField, m.TargetField, m.Confidence, m.Provenance)
		}
	}
	return b.String()
}

// GenerateReport produces a human-readable summary of the learned store.
func (e *Engine) GenerateReport() string {
	e.mu.Lock()
	defer e.mu.Unlock()

	stats := e.store.Stats()
	var b strings.Builder
	b.WriteString("Schema Translation Report\n")
	b.WriteString("=========================\n\n")
	fmt.Fprintf(&b, "Field mappings:     %d\n", stats.TotalMappings)
	fmt.Fprintf(&b, "Value mappings:     %d\n", stats.TotalValues)
	fmt.Fprintf(&b, "Coverage estimate:  %.1f%%\n\n", stats.CoverageEstimate*100)

	b.WriteString("By provenance:\n")
	for _, p := range []models.Provenance{models.ProvenanceBuiltin, models.ProvenanceHuman, models.ProvenanceInferred, models.ProvenancePattern, models.ProvenanceHybrid} {
		if n := stats.ByProvenance[p]; n > 0 {
			fmt.Fprintf(&b, "  %-10s %d\n", p, n)
		}
	}
	b.WriteString("\nBy confidence:\n")
	for _, l := range []models.ConfidenceLevel{models.ConfidenceCertain, models.ConfidenceHigh, models.ConfidenceMedium, models.ConfidenceLow, models.ConfidenceUncertain} {
		if n := stats.ByConfidenceLevel[l]; n > 0 {
			fmt.Fprintf(&b, "  %-10s %d\n", l, n)
		}
	}

	fmt.Fprintf(&b, "\nActivity: %d translations, %d unknown fields, %d inferences, %d corrections\n",
		stats.Activity.TotalTranslations,
		stats.Activity.UnknownFieldsEncountered,
		stats.Activity.SuccessfulInferences,
		stats.Activity.HumanCorrections)

	if corrected := mostCorrected(e.store.FieldMappings()); len(corrected) > 0 {
		b.WriteString("\nMost corrected mappings:\n")
		for _, m := range corrected {
			fmt.Fprintf(&b, "  %s -> %s (%s, corrected %d times)\n",
				m.SourceField, m.TargetField, m.EntityType, m.TimesCorrected)
		}
	}
	return b.String()
}

func mostCorrected(mappings []*models.FieldMapping) []*models.FieldMapping {
	var corrected []*models.FieldMapping
	for _, m := range mappings {
		if m.TimesCorrected > 0 {
			corrected = append(corrected, m)
		}
	}
	sort.Slice(corrected, func(i, j int) bool {
		return corrected[i].TimesCorrected > corrected[j].TimesCorrected
	})
	if len(corrected) > 5 {
		corrected = corrected[:5]
	}
	return corrected
}

// Save persists the brain and learning log, used on graceful shutdown.
// Feedback paths already persist on every mutation.
func (e *Engine) Save() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.store.Save()
}
