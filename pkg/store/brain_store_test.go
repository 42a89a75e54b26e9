package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fieldbridge/fieldbridge-engine/pkg/models"
	"github.com/fieldbridge/fieldbridge-engine/pkg/schema"
)

func newTestStore(t *testing.T) *BrainStore {
	t.Helper()
	return NewBrainStore(t.TempDir(), schema.MustLoad(), zap.NewNop())
}

func TestBootstrapBuiltins(t *testing.T) {
	s := newTestStore(t)

	m, ok := s.GetFieldMapping(models.PlatformSalesforce, "Email", models.PlatformDynamics, "contacts")
	require.True(t, ok)
	assert.Equal(t, "emailaddress1", m.TargetField)
	assert.Equal(t, models.ProvenanceBuiltin, m.Provenance)
	assert.Equal(t, 1.0, m.Confidence)
}

func TestPutFieldMapping_SameTargetPreservesCounters(t *testing.T) {
	s := newTestStore(t)

	created := time.Now().UTC().Add(-time.Hour)
	s.PutFieldMapping(&models.FieldMapping{
		SourcePlatform: models.PlatformSalesforce,
		SourceField:    "custom_score",
		TargetPlatform: models.PlatformDynamics,
		TargetField:    "new_score",
		EntityType:     "contacts",
		Confidence:     0.7,
		Provenance:     models.ProvenanceInferred,
		TimesUsed:      5,
		TimesCorrected: 1,
		CreatedAt:      created,
	})

	// Re-put with same target: counters and creation time survive.
	s.PutFieldMapping(&models.FieldMapping{
		SourcePlatform: models.PlatformSalesforce,
		SourceField:    "custom_score",
		TargetPlatform: models.PlatformDynamics,
		TargetField:    "new_score",
		EntityType:     "contacts",
		Confidence:     0.8,
		Provenance:     models.ProvenanceInferred,
		CreatedAt:      time.Now().UTC(),
	})

	m, ok := s.GetFieldMapping(models.PlatformSalesforce, "custom_score", models.PlatformDynamics, "contacts")
	require.True(t, ok)
	assert.Equal(t, 0.8, m.Confidence)
	assert.Equal(t, 5, m.TimesUsed)
	assert.Equal(t, 1, m.TimesCorrected)
	assert.Equal(t, created, m.CreatedAt)

	// Re-put with a different target: fresh entry, counters reset.
	s.PutFieldMapping(&models.FieldMapping{
		SourcePlatform: models.PlatformSalesforce,
		SourceField:    "custom_score",
		TargetPlatform: models.PlatformDynamics,
		TargetField:    "other_score",
		EntityType:     "contacts",
		Confidence:     0.98,
		Provenance:     models.ProvenanceHuman,
		TimesUsed:      1,
	})
	m, ok = s.GetFieldMapping(models.PlatformSalesforce, "custom_score", models.PlatformDynamics, "contacts")
	require.True(t, ok)
	assert.Equal(t, "other_score", m.TargetField)
	assert.Equal(t, 1, m.TimesUsed)
	assert.Equal(t, 0, m.TimesCorrected)
}

func TestKnownTargetFields(t *testing.T) {
	s := newTestStore(t)

	fields := s.KnownTargetFields(models.PlatformDynamics, "contacts")
	assert.Contains(t, fields, "emailaddress1")
	assert.Contains(t, fields, "telephone1")

	// Learned targets join the union.
	s.PutFieldMapping(&models.FieldMapping{
		SourcePlatform: models.PlatformSalesforce,
		SourceField:    "Custom_Field__c",
		TargetPlatform: models.PlatformDynamics,
		TargetField:    "new_customfield",
		EntityType:     "contacts",
		Confidence:     0.98,
		Provenance:     models.ProvenanceHuman,
	})
	fields = s.KnownTargetFields(models.PlatformDynamics, "contacts")
	assert.Contains(t, fields, "new_customfield")

	assert.Empty(t, s.KnownTargetFields(models.Platform("siebel"), "contacts"))
	assert.Empty(t, s.KnownTargetFields(models.PlatformDynamics, "invoices"))
}

func TestKnownTargetValues(t *testing.T) {
	s := newTestStore(t)

	values := s.KnownTargetValues("stagename", models.PlatformDynamics)
	assert.Contains(t, values, "Qualify")

	values = s.KnownTargetValues("hs_task_status", models.PlatformHubSpot)
	assert.Contains(t, values, "COMPLETED")

	assert.Empty(t, s.KnownTargetValues("firstname", models.PlatformDynamics))
}

func TestFieldPatternDedup(t *testing.T) {
	s := newTestStore(t)

	s.AddFieldPattern("suffix:code:deals", "suffix:code")
	s.AddFieldPattern("suffix:code:deals", "suffix:code")
	s.AddFieldPattern("suffix:code:deals", "component:salesstagecode")

	assert.Equal(t, []string{"suffix:code", "component:salesstagecode"}, s.FieldPatterns("suffix:code:deals"))
	assert.Nil(t, s.FieldPatterns("missing:key"))
}

func TestStatsCoverage(t *testing.T) {
	s := newTestStore(t)

	// Untouched store: coverage is builtins / builtins == 1.
	stats := s.Stats()
	assert.Equal(t, 1.0, stats.CoverageEstimate)
	assert.Greater(t, stats.ByProvenance[models.ProvenanceBuiltin], 0)

	builtins := stats.ByProvenance[models.ProvenanceBuiltin]
	s.Counters().UnknownFieldsEncountered = builtins // half the denominator
	s.Counters().SuccessfulInferences = 0
	stats = s.Stats()
	assert.InDelta(t, 0.5, stats.CoverageEstimate, 1e-9)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	seed := schema.MustLoad()
	s := NewBrainStore(dir, seed, zap.NewNop())

	s.PutFieldMapping(&models.FieldMapping{
		SourcePlatform: models.PlatformSalesforce,
		SourceField:    "Lead_Score__c",
		TargetPlatform: models.PlatformHubSpot,
		TargetField:    "hubspotscore",
		EntityType:     "contacts",
		Confidence:     0.98,
		Provenance:     models.ProvenanceHuman,
		TimesUsed:      3,
		CreatedAt:      time.Now().UTC(),
	})
	s.PutValueMapping(&models.ValueMapping{
		SourcePlatform: models.PlatformSalesforce,
		SourceValue:    "Prospecting",
		TargetPlatform: models.PlatformDynamics,
		TargetValue:    "Qualify",
		FieldName:      "stagename",
		Confidence:     1.0,
		Provenance:     models.ProvenanceBuiltin,
		CreatedAt:      time.Now().UTC(),
	})
	s.AddFieldPattern("suffix:email:contacts", "suffix:email")
	s.AddValuePattern(models.PlatformSalesforce, "stagename", "Prospecting", "Qualify")
	s.Counters().TotalTranslations = 7
	s.AppendEvent(models.LearningEvent{
		Timestamp:      time.Now().UTC(),
		EventType:      models.LearningNewMapping,
		SourcePlatform: models.PlatformSalesforce,
		TargetPlatform: models.PlatformHubSpot,
		EntityType:     "contacts",
		FieldName:      "Lead_Score__c",
	})

	require.NoError(t, s.Save())

	fresh := NewBrainStore(dir, seed, zap.NewNop())
	m, ok := fresh.GetFieldMapping(models.PlatformSalesforce, "Lead_Score__c", models.PlatformHubSpot, "contacts")
	require.True(t, ok)
	assert.Equal(t, "hubspotscore", m.TargetField)
	assert.Equal(t, 3, m.TimesUsed)

	vm, ok := fresh.GetValueMapping(models.PlatformSalesforce, "Prospecting", models.PlatformDynamics, "stagename")
	require.True(t, ok)
	assert.Equal(t, "Qualify", vm.TargetValue)

	assert.Equal(t, []string{"suffix:email"}, fresh.FieldPatterns("suffix:email:contacts"))
	assert.Equal(t, "Qualify", fresh.ValuePatterns(models.PlatformSalesforce, "stagename")["Prospecting"])
	assert.Equal(t, 7, fresh.Counters().TotalTranslations)
	require.Len(t, fresh.LearningLog(), 1)
	assert.Equal(t, models.LearningNewMapping, fresh.LearningLog()[0].EventType)
}

func TestSaveExcludesBuiltins(t *testing.T) {
	dir := t.TempDir()
	s := NewBrainStore(dir, schema.MustLoad(), zap.NewNop())
	require.NoError(t, s.Save())

	data, err := os.ReadFile(filepath.Join(dir, brainFileName))
	require.NoError(t, err)

	var doc brainDocument
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Empty(t, doc.FieldMappings, "builtins must not be persisted")
	assert.Equal(t, brainDocumentVersion, doc.Version)
}

func TestLoadCorruptDocumentFallsBack(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, brainFileName), []byte("{not json"), 0o644))

	s := NewBrainStore(dir, schema.MustLoad(), zap.NewNop())
	// Builtins still present, nothing else.
	_, ok := s.GetFieldMapping(models.PlatformSalesforce, "Email", models.PlatformDynamics, "contacts")
	assert.True(t, ok)
	stats := s.Stats()
	assert.Equal(t, stats.TotalMappings, stats.ByProvenance[models.ProvenanceBuiltin])
}

func TestLoadVersionDriftFallsBack(t *testing.T) {
	dir := t.TempDir()
	doc := map[string]any{"version": "0.9", "field_mappings": map[string]any{}}
	data, err := json.Marshal(doc)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, brainFileName), data, 0o644))

	s := NewBrainStore(dir, schema.MustLoad(), zap.NewNop())
	stats := s.Stats()
	assert.Equal(t, stats.TotalMappings, stats.ByProvenance[models.ProvenanceBuiltin])
}

func TestLoadClampsConfidence(t *testing.T) {
	dir := t.TempDir()
	key := models.FieldMappingKey(models.PlatformSalesforce, "Weird__c", models.PlatformDynamics, "contacts")
	doc := brainDocument{
		Version: brainDocumentVersion,
		FieldMappings: map[string]*models.FieldMapping{
			key: {
				SourcePlatform: models.PlatformSalesforce,
				SourceField:    "Weird__c",
				TargetPlatform: models.PlatformDynamics,
				TargetField:    "new_weird",
				EntityType:     "contacts",
				Confidence:     1.7,
				Provenance:     models.ProvenanceInferred,
			},
		},
	}
	data, err := json.Marshal(doc)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, brainFileName), data, 0o644))

	s := NewBrainStore(dir, schema.MustLoad(), zap.NewNop())
	m, ok := s.GetFieldMapping(models.PlatformSalesforce, "Weird__c", models.PlatformDynamics, "contacts")
	require.True(t, ok)
	assert.Equal(t, 1.0, m.Confidence)
}

func TestLearningLogTruncation(t *testing.T) {
	dir := t.TempDir()
	s := NewBrainStore(dir, schema.MustLoad(), zap.NewNop())

	for i := 0; i < models.MaxLearningLogEntries+100; i++ {
		s.AppendEvent(models.LearningEvent{
			Timestamp: time.Now().UTC(),
			EventType: models.LearningConfirmation,
			FieldName: fmt.Sprintf("field_%d", i),
		})
	}
	require.NoError(t, s.Save())

	data, err := os.ReadFile(filepath.Join(dir, learningLogFileName))
	require.NoError(t, err)
	var log []models.LearningEvent
	require.NoError(t, json.Unmarshal(data, &log))
	require.Len(t, log, models.MaxLearningLogEntries)
	// Most recent entries survive.
	assert.Equal(t, fmt.Sprintf("field_%d", models.MaxLearningLogEntries+99), log[len(log)-1].FieldName)
	assert.Equal(t, "field_100", log[0].FieldName)
}
