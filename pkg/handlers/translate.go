package handlers

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/fieldbridge/fieldbridge-engine/pkg/logging"
	"github.com/fieldbridge/fieldbridge-engine/pkg/models"
	"github.com/fieldbridge/fieldbridge-engine/pkg/services"
)

// TranslateFieldRequest for POST /api/translate/field
type TranslateFieldRequest struct {
	Field          string         `json:"field"`
	SourcePlatform string         `json:"source_platform"`
	TargetPlatform string         `json:"target_platform"`
	EntityType     string         `json:"entity_type"`
	Record         map[string]any `json:"record,omitempty"`
}

// TranslateValueRequest for POST /api/translate/value
type TranslateValueRequest struct {
	Value          string `json:"value"`
	Field          string `json:"field"`
	SourcePlatform string `json:"source_platform"`
	TargetPlatform string `json:"target_platform"`
	EntityType     string `json:"entity_type"`
}

// AnalyzeRecordRequest for POST /api/analyze
type AnalyzeRecordRequest struct {
	Record         map[string]any `json:"record"`
	SourcePlatform string         `json:"source_platform"`
	TargetPlatform string         `json:"target_platform"`
	EntityType     string         `json:"entity_type"`
}

// TranslateHandler handles translation and record analysis requests.
type TranslateHandler struct {
	engine *services.Engine
	logger *zap.Logger
}

// NewTranslateHandler creates a new translate handler.
func NewTranslateHandler(engine *services.Engine, logger *zap.Logger) *TranslateHandler {
	return &TranslateHandler{engine: engine, logger: logger}
}

// RegisterRoutes registers the translate handler's routes on the given mux.
func (h *TranslateHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/translate/field", h.TranslateField)
	mux.HandleFunc("POST /api/translate/value", h.TranslateValue)
	mux.HandleFunc("POST /api/analyze", h.AnalyzeRecord)
}

// parsePlatforms validates the platform pair shared by every request
// shape. Writes the error response itself and returns ok=false on failure.
func parsePlatforms(w http.ResponseWriter, src, tgt string) (models.Platform, models.Platform, bool) {
	srcPlat, tgtPlat := models.Platform(src), models.Platform(tgt)
	for _, p := range []models.Platform{srcPlat, tgtPlat} {
		if err := p.Validate(); err != nil {
			_ = ErrorResponse(w, http.StatusBadRequest, "invalid_platform",
				err.Error()+"; must be one of: salesforce, dynamics365, hubspot")
			return "", "", false
		}
	}
	return srcPlat, tgtPlat, true
}

// TranslateField handles POST /api/translate/field
func (h *TranslateHandler) TranslateField(w http.ResponseWriter, r *http.Request) {
	var req TranslateFieldRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if req.Field == "" || req.EntityType == "" {
		_ = ErrorResponse(w, http.StatusBadRequest, "missing_field", "field and entity_type are required")
		return
	}
	srcPlat, tgtPlat, ok := parsePlatforms(w, req.SourcePlatform, req.TargetPlatform)
	if !ok {
		return
	}

	result := h.engine.TranslateField(req.Field, srcPlat, tgtPlat, req.EntityType, req.Record)
	h.logger.Debug("Field translated",
		zap.String("field", req.Field),
		zap.String("target_field", result.TargetField),
		zap.Float64("confidence", result.Confidence))

	if err := WriteJSON(w, http.StatusOK, result); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// TranslateValue handles POST /api/translate/value
func (h *TranslateHandler) TranslateValue(w http.ResponseWriter, r *http.Request) {
	var req TranslateValueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if req.Field == "" {
		_ = ErrorResponse(w, http.StatusBadRequest, "missing_field", "field is required")
		return
	}
	srcPlat, tgtPlat, ok := parsePlatforms(w, req.SourcePlatform, req.TargetPlatform)
	if !ok {
		return
	}

	result := h.engine.TranslateValue(req.Value, req.Field, srcPlat, tgtPlat, req.EntityType)
	h.logger.Debug("Value translated",
		zap.String("field", req.Field),
		zap.String("value", logging.SanitizeValue(req.Value)),
		zap.Float64("confidence", result.Confidence))

	if err := WriteJSON(w, http.StatusOK, result); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// AnalyzeRecord handles POST /api/analyze
func (h *TranslateHandler) AnalyzeRecord(w http.ResponseWriter, r *http.Request) {
	var req AnalyzeRecordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	srcPlat, tgtPlat, ok := parsePlatforms(w, req.SourcePlatform, req.TargetPlatform)
	if !ok {
		return
	}

	proposals := h.engine.AnalyzeRecord(req.Record, srcPlat, tgtPlat, req.EntityType)
	h.logger.Debug("Record analyzed",
		zap.Int("proposals", len(proposals)),
		zap.Any("record", logging.SanitizeRecord(req.Record)))
	if err := WriteJSON(w, http.StatusOK, proposals); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}
