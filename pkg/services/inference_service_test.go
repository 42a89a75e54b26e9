package services

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fieldbridge/fieldbridge-engine/pkg/models"
	"github.com/fieldbridge/fieldbridge-engine/pkg/schema"
	"github.com/fieldbridge/fieldbridge-engine/pkg/store"
)

func newTestBrain(t *testing.T) *store.BrainStore {
	t.Helper()
	return store.NewBrainStore(t.TempDir(), schema.MustLoad(), zap.NewNop())
}

func TestTranslateField_ExactMatchStandsAlone(t *testing.T) {
	brain := newTestBrain(t)
	svc := NewInferenceService(brain, zap.NewNop())

	// "city" is not a builtin salesforce source field, but hubspot
	// contacts carry a field of exactly that name.
	result := svc.TranslateField("city", models.PlatformSalesforce, models.PlatformHubSpot, "contacts", nil)

	assert.Equal(t, "city", result.TargetField)
	assert.InDelta(t, 0.95, result.Confidence, 1e-9)
	assert.False(t, result.NeedsReview)
	assert.Equal(t, []string{"Exact name match"}, result.Reasons)
}

func TestTranslateField_CacheHitUpdatesUsage(t *testing.T) {
	brain := newTestBrain(t)
	svc := NewInferenceService(brain, zap.NewNop())

	result := svc.TranslateField("Email", models.PlatformSalesforce, models.PlatformHubSpot, "contacts", nil)

	assert.Equal(t, "email", result.TargetField)
	assert.Equal(t, 1.0, result.Confidence)

	m, ok := brain.GetFieldMapping(models.PlatformSalesforce, "Email", models.PlatformHubSpot, "contacts")
	require.True(t, ok)
	assert.Equal(t, 1, m.TimesUsed)
	require.NotNil(t, m.LastUsed)
	assert.WithinDuration(t, time.Now(), *m.LastUsed, time.Minute)
	assert.Equal(t, 1, brain.Counters().TotalTranslations)
	assert.Zero(t, brain.Counters().UnknownFieldsEncountered)
}

func TestTranslateField_MultiStrategyAgreement(t *testing.T) {
	brain := newTestBrain(t)
	svc := NewLearningService(brain, zap.NewNop())
	// Seed a learned mapping so parent_account_id becomes a known target
	// field on hubspot deals.
	require.NoError(t, svc.ProvideFeedback(models.PlatformSalesforce, "custom_parent_ref", models.PlatformHubSpot, "deals", "parent_account_id", FeedbackOptions{}))

	inf := NewInferenceService(brain, zap.NewNop())
	result := inf.TranslateField("parentAccountId", models.PlatformSalesforce, models.PlatformHubSpot, "deals", nil)

	assert.Equal(t, "parent_account_id", result.TargetField)
	assert.GreaterOrEqual(t, result.Confidence, 0.85)
	assert.False(t, result.NeedsReview)
	assert.GreaterOrEqual(t, len(result.Reasons), 2, "agreement requires multiple strategies")

	// The inference is written back as an inferred mapping.
	m, ok := brain.GetFieldMapping(models.PlatformSalesforce, "parentAccountId", models.PlatformHubSpot, "deals")
	require.True(t, ok)
	assert.Equal(t, models.ProvenanceInferred, m.Provenance)
	assert.Equal(t, 1, brain.Counters().SuccessfulInferences)
}

func TestTranslateField_NoCandidateLeavesStoreUntouched(t *testing.T) {
	brain := newTestBrain(t)
	svc := NewInferenceService(brain, zap.NewNop())
	before := len(brain.FieldMappings())

	result := svc.TranslateField("xq_zzz_9", models.PlatformSalesforce, models.PlatformHubSpot, "contacts", nil)

	assert.Empty(t, result.TargetField)
	assert.True(t, result.NeedsReview)
	assert.Len(t, brain.FieldMappings(), before)
	assert.Equal(t, 1, brain.Counters().UnknownFieldsEncountered)
	assert.Zero(t, brain.Counters().SuccessfulInferences)
}

func TestAnalyzeRecord_ValueShapeInference(t *testing.T) {
	brain := newTestBrain(t)
	svc := NewInferenceService(brain, zap.NewNop())

	record := map[string]any{"work_email": "alice@acme.com"}
	proposals := svc.AnalyzeRecord(record, models.PlatformSalesforce, models.PlatformDynamics, "contacts")

	result, ok := proposals["work_email"]
	require.True(t, ok)
	assert.Equal(t, "emailaddress1", result.TargetField)
	assert.GreaterOrEqual(t, result.Confidence, 0.8)

	found := false
	for _, reason := range result.Reasons {
		if strings.HasPrefix(reason, "Value type match for: string") {
			found = true
		}
	}
	assert.True(t, found, "reasons should include a value-type match: %v", result.Reasons)

	// Read-only: nothing written back.
	_, ok = brain.GetFieldMapping(models.PlatformSalesforce, "work_email", models.PlatformDynamics, "contacts")
	assert.False(t, ok)
}

func TestAnalyzeRecord_EmptyRecord(t *testing.T) {
	brain := newTestBrain(t)
	svc := NewInferenceService(brain, zap.NewNop())

	proposals := svc.AnalyzeRecord(map[string]any{}, models.PlatformSalesforce, models.PlatformHubSpot, "contacts")
	assert.Empty(t, proposals)
}

func TestAnalyzeRecord_SkipsMappedFields(t *testing.T) {
	brain := newTestBrain(t)
	svc := NewInferenceService(brain, zap.NewNop())

	proposals := svc.AnalyzeRecord(map[string]any{"Email": "a@b.com"}, models.PlatformSalesforce, models.PlatformHubSpot, "contacts")
	assert.Empty(t, proposals, "builtin-mapped fields are not re-analyzed")
}

func TestTranslateValue_BuiltinOrdinal(t *testing.T) {
	brain := newTestBrain(t)
	svc := NewInferenceService(brain, zap.NewNop())

	result := svc.TranslateValue("Prospecting", "StageName", models.PlatformSalesforce, models.PlatformDynamics, "deals")

	assert.Equal(t, "Qualify", result.TargetValue)
	assert.Equal(t, 1.0, result.Confidence)

	// Ordinal resolutions are written through as builtin value mappings.
	m, ok := brain.GetValueMapping(models.PlatformSalesforce, "Prospecting", models.PlatformDynamics, "StageName")
	require.True(t, ok)
	assert.Equal(t, models.ProvenanceBuiltin, m.Provenance)
}

func TestTranslateValue_LearnedMappingWins(t *testing.T) {
	brain := newTestBrain(t)
	brain.PutValueMapping(&models.ValueMapping{
		SourcePlatform: models.PlatformSalesforce,
		SourceValue:    "Closed Won",
		TargetPlatform: models.PlatformHubSpot,
		TargetValue:    "closedwon",
		FieldName:      "dealstage",
		EntityType:     "deals",
		Confidence:     0.98,
		Provenance:     models.ProvenanceHuman,
		CreatedAt:      time.Now().UTC(),
	})
	svc := NewInferenceService(brain, zap.NewNop())

	result := svc.TranslateValue("Closed Won", "dealstage", models.PlatformSalesforce, models.PlatformHubSpot, "deals")
	assert.Equal(t, "closedwon", result.TargetValue)
	assert.Equal(t, 0.98, result.Confidence)
}

func TestTranslateValue_PassthroughOnMiss(t *testing.T) {
	brain := newTestBrain(t)
	svc := NewInferenceService(brain, zap.NewNop())

	result := svc.TranslateValue("Bespoke Artisanal Phase", "custom_field", models.PlatformSalesforce, models.PlatformHubSpot, "deals")
	assert.Equal(t, "Bespoke Artisanal Phase", result.TargetValue)
	assert.Zero(t, result.Confidence)
}

func TestTranslateValue_ValuePatternContainment(t *testing.T) {
	brain := newTestBrain(t)
	brain.AddValuePattern(models.PlatformSalesforce, "lead_source", "webinar", "WEBINAR")
	svc := NewInferenceService(brain, zap.NewNop())

	exact := svc.TranslateValue("Webinar", "lead_source", models.PlatformSalesforce, models.PlatformHubSpot, "contacts")
	assert.Equal(t, "WEBINAR", exact.TargetValue)
	assert.Equal(t, 0.85, exact.Confidence)

	contained := svc.TranslateValue("Webinar Signup", "lead_source", models.PlatformSalesforce, models.PlatformHubSpot, "contacts")
	assert.Equal(t, "WEBINAR", contained.TargetValue)
	assert.Equal(t, 0.8, contained.Confidence)
}

func TestRejectedMappingReentersInference(t *testing.T) {
	brain := newTestBrain(t)
	inf := NewInferenceService(brain, zap.NewNop())
	learn := NewLearningService(brain, zap.NewNop())

	first := inf.TranslateField("city", models.PlatformSalesforce, models.PlatformHubSpot, "contacts", nil)
	require.Equal(t, "city", first.TargetField)

	// Three rejections push 0.95 below the deletion floor.
	for i := 0; i < 3; i++ {
		require.NoError(t, learn.RejectMapping(models.PlatformSalesforce, "city", models.PlatformHubSpot, "contacts", FeedbackOptions{}))
	}
	_, ok := brain.GetFieldMapping(models.PlatformSalesforce, "city", models.PlatformHubSpot, "contacts")
	require.False(t, ok)

	// The next translation runs inference again rather than a cache hit.
	unknownBefore := brain.Counters().UnknownFieldsEncountered
	again := inf.TranslateField("city", models.PlatformSalesforce, models.PlatformHubSpot, "contacts", nil)
	assert.Equal(t, "city", again.TargetField)
	assert.Equal(t, unknownBefore+1, brain.Counters().UnknownFieldsEncountered)
}
