package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/fieldbridge/fieldbridge-engine/pkg/adapters/crm"
	"github.com/fieldbridge/fieldbridge-engine/pkg/config"
	"github.com/fieldbridge/fieldbridge-engine/pkg/logging"
	"github.com/fieldbridge/fieldbridge-engine/pkg/models"
	"github.com/fieldbridge/fieldbridge-engine/pkg/schema"
	"github.com/fieldbridge/fieldbridge-engine/pkg/services"
	"github.com/fieldbridge/fieldbridge-engine/pkg/store"
)

func newTestMux(t *testing.T) *http.ServeMux {
	t.Helper()
	dir := t.TempDir()
	logger := zap.NewNop()
	brain := store.NewBrainStore(dir, schema.MustLoad(), logger)
	disc := store.NewDiscoveryStore(dir, logger)
	engine := services.NewEngine(brain, logger)
	discovery := services.NewDiscoveryService(brain, disc, logger)

	resolve := func(platform models.Platform) (crm.SchemaIntrospector, error) {
		return crm.NewStaticIntrospector(platform, schema.MustLoad()), nil
	}

	mux := http.NewServeMux()
	cfg := &config.Config{Version: "test", Env: "local"}
	NewHealthHandler(cfg, logger).RegisterRoutes(mux)
	NewTranslateHandler(engine, logger).RegisterRoutes(mux)
	NewFeedbackHandler(engine, logger).RegisterRoutes(mux)
	NewDiscoveryHandler(discovery, engine, resolve, logger).RegisterRoutes(mux)
	return mux
}

func doJSON(t *testing.T, mux *http.ServeMux, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequestWithContext(context.Background(), method, path, &buf)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func TestHealthEndpoints(t *testing.T) {
	mux := newTestMux(t)

	rec := doJSON(t, mux, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())

	rec = doJSON(t, mux, http.MethodGet, "/ping", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	var ping PingResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ping))
	assert.Equal(t, "fieldbridge-engine", ping.Service)
	assert.Equal(t, "test", ping.Version)
}

func TestTranslateFieldEndpoint(t *testing.T) {
	mux := newTestMux(t)

	rec := doJSON(t, mux, http.MethodPost, "/api/translate/field", TranslateFieldRequest{
		Field:          "Email",
		SourcePlatform: "salesforce",
		TargetPlatform: "hubspot",
		EntityType:     "contacts",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var result services.TranslationResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, "email", result.TargetField)
	assert.Equal(t, 1.0, result.Confidence)
}

func TestTranslateFieldEndpoint_InvalidPlatform(t *testing.T) {
	mux := newTestMux(t)

	rec := doJSON(t, mux, http.MethodPost, "/api/translate/field", TranslateFieldRequest{
		Field:          "Email",
		SourcePlatform: "pipedrive",
		TargetPlatform: "hubspot",
		EntityType:     "contacts",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid_platform")
	assert.Contains(t, rec.Body.String(), "unknown platform")
}

func TestAnalyzeRecordEndpoint_SanitizesLoggedRecord(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	brain := store.NewBrainStore(t.TempDir(), schema.MustLoad(), zap.NewNop())
	engine := services.NewEngine(brain, zap.NewNop())

	mux := http.NewServeMux()
	NewTranslateHandler(engine, zap.New(core)).RegisterRoutes(mux)

	rec := doJSON(t, mux, http.MethodPost, "/api/analyze", AnalyzeRecordRequest{
		Record:         map[string]any{"work_email": "alice@acme.com", "amount": 5000},
		SourcePlatform: "salesforce",
		TargetPlatform: "dynamics365",
		EntityType:     "contacts",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	entries := logs.FilterMessage("Record analyzed").All()
	require.Len(t, entries, 1)
	logged, ok := entries[0].ContextMap()["record"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, logging.RedactedText, logged["work_email"])
	// Non-string values pass through untouched; JSON numbers decode as float64.
	assert.Equal(t, float64(5000), logged["amount"])
}

func TestTranslateValueEndpoint(t *testing.T) {
	mux := newTestMux(t)

	rec := doJSON(t, mux, http.MethodPost, "/api/translate/value", TranslateValueRequest{
		Value:          "Prospecting",
		Field:          "StageName",
		SourcePlatform: "salesforce",
		TargetPlatform: "dynamics365",
		EntityType:     "deals",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var result services.ValueTranslation
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, "Qualify", result.TargetValue)
}

func TestFeedbackEndpoints(t *testing.T) {
	mux := newTestMux(t)

	rec := doJSON(t, mux, http.MethodPost, "/api/feedback", FeedbackRequest{
		SourcePlatform: "salesforce",
		SourceField:    "Lead_Score__c",
		TargetPlatform: "hubspot",
		EntityType:     "contacts",
		TargetField:    "hs_lead_score",
		UserID:         "reviewer-1",
	})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, mux, http.MethodPost, "/api/feedback/confirm", FeedbackRequest{
		SourcePlatform: "salesforce",
		SourceField:    "Lead_Score__c",
		TargetPlatform: "hubspot",
		EntityType:     "contacts",
	})
	assert.Equal(t, http.StatusOK, rec.Code)

	// Confirming an unknown mapping is a 404.
	rec = doJSON(t, mux, http.MethodPost, "/api/feedback/confirm", FeedbackRequest{
		SourcePlatform: "salesforce",
		SourceField:    "no_such_field",
		TargetPlatform: "hubspot",
		EntityType:     "contacts",
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMappingIntrospectionEndpoints(t *testing.T) {
	mux := newTestMux(t)

	rec := doJSON(t, mux, http.MethodGet, "/api/mappings/stats", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var stats models.BrainStats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Greater(t, stats.TotalMappings, 0)

	rec = doJSON(t, mux, http.MethodGet, "/api/mappings/export?format=markdown", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "# Field Mappings")

	rec = doJSON(t, mux, http.MethodGet, "/api/mappings/export?format=xml", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, mux, http.MethodGet, "/api/report", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Schema Translation Report")
}

func TestDiscoveryAndAuditEndpoints(t *testing.T) {
	mux := newTestMux(t)

	rec := doJSON(t, mux, http.MethodPost, "/api/discovery/run", RunDiscoveryRequest{
		SourcePlatform: "salesforce",
		TargetPlatform: "dynamics365",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	var result models.DiscoveryResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Greater(t, result.ProposalsCreated, 0)

	rec = doJSON(t, mux, http.MethodGet, "/api/audit/queue?status=pending", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var queue struct {
		Proposals []*models.MappingProposal `json:"proposals"`
		Total     int                       `json:"total"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &queue))
	require.NotEmpty(t, queue.Proposals)

	id := queue.Proposals[0].ID
	rec = doJSON(t, mux, http.MethodPost, "/api/audit/"+id+"/approve", ReviewRequest{Reviewer: "reviewer-1"})
	assert.Equal(t, http.StatusOK, rec.Code)

	// Double review conflicts.
	rec = doJSON(t, mux, http.MethodPost, "/api/audit/"+id+"/approve", ReviewRequest{Reviewer: "reviewer-1"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = doJSON(t, mux, http.MethodGet, "/api/audit/summary", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, mux, http.MethodGet, "/api/audit/export", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var export struct {
		Mappings []models.ApprovedMapping `json:"mappings"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &export))
	assert.NotEmpty(t, export.Mappings)

	rec = doJSON(t, mux, http.MethodPost, "/api/audit/import?user_id=auditor", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, mux, http.MethodGet, "/api/discovery/history", nil)
	require.Equal(t, http.StatusOK, rec.Code)
}
