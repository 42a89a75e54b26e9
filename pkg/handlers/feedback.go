package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/fieldbridge/fieldbridge-engine/pkg/apperrors"
	"github.com/fieldbridge/fieldbridge-engine/pkg/models"
	"github.com/fieldbridge/fieldbridge-engine/pkg/services"
)

// FeedbackRequest for POST /api/feedback and its confirm/reject variants.
// TargetField is only required for the correction path.
type FeedbackRequest struct {
	SourcePlatform string `json:"source_platform"`
	SourceField    string `json:"source_field"`
	TargetPlatform string `json:"target_platform"`
	EntityType     string `json:"entity_type"`
	TargetField    string `json:"target_field,omitempty"`
	UserID         string `json:"user_id,omitempty"`
	Notes          string `json:"notes,omitempty"`
}

// FeedbackHandler handles learning and mapping-introspection requests.
type FeedbackHandler struct {
	engine *services.Engine
	logger *zap.Logger
}

// NewFeedbackHandler creates a new feedback handler.
func NewFeedbackHandler(engine *services.Engine, logger *zap.Logger) *FeedbackHandler {
	return &FeedbackHandler{engine: engine, logger: logger}
}

// RegisterRoutes registers the feedback handler's routes on the given mux.
func (h *FeedbackHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/feedback", h.ProvideFeedback)
	mux.HandleFunc("POST /api/feedback/confirm", h.ConfirmMapping)
	mux.HandleFunc("POST /api/feedback/reject", h.RejectMapping)
	mux.HandleFunc("GET /api/mappings/pending", h.PendingReviews)
	mux.HandleFunc("GET /api/mappings/stats", h.Stats)
	mux.HandleFunc("GET /api/mappings/export", h.Export)
	mux.HandleFunc("GET /api/report", h.Report)
}

func (h *FeedbackHandler) decode(w http.ResponseWriter, r *http.Request, req *FeedbackRequest) bool {
	if err := json.NewDecoder(r.Body).Decode(req); err != nil {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_request", err.Error())
		return false
	}
	if req.SourceField == "" || req.EntityType == "" {
		_ = ErrorResponse(w, http.StatusBadRequest, "missing_field", "source_field and entity_type are required")
		return false
	}
	return true
}

// ProvideFeedback handles POST /api/feedback
func (h *FeedbackHandler) ProvideFeedback(w http.ResponseWriter, r *http.Request) {
	var req FeedbackRequest
	if !h.decode(w, r, &req) {
		return
	}
	if req.TargetField == "" {
		_ = ErrorResponse(w, http.StatusBadRequest, "missing_field", "target_field is required")
		return
	}
	srcPlat, tgtPlat, ok := parsePlatforms(w, req.SourcePlatform, req.TargetPlatform)
	if !ok {
		return
	}

	opts := services.FeedbackOptions{UserID: req.UserID, Notes: req.Notes}
	if err := h.engine.ProvideFeedback(srcPlat, req.SourceField, tgtPlat, req.EntityType, req.TargetField, opts); err != nil {
		h.logger.Error("Feedback failed", zap.String("source_field", req.SourceField), zap.Error(err))
		_ = ErrorResponse(w, http.StatusInternalServerError, "feedback_failed", err.Error())
		return
	}
	_ = WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ConfirmMapping handles POST /api/feedback/confirm
func (h *FeedbackHandler) ConfirmMapping(w http.ResponseWriter, r *http.Request) {
	h.applyFeedback(w, r, h.engine.ConfirmMapping)
}

// RejectMapping handles POST /api/feedback/reject
func (h *FeedbackHandler) RejectMapping(w http.ResponseWriter, r *http.Request) {
	h.applyFeedback(w, r, h.engine.RejectMapping)
}

func (h *FeedbackHandler) applyFeedback(w http.ResponseWriter, r *http.Request, apply func(models.Platform, string, models.Platform, string, services.FeedbackOptions) error) {
	var req FeedbackRequest
	if !h.decode(w, r, &req) {
		return
	}
	srcPlat, tgtPlat, ok := parsePlatforms(w, req.SourcePlatform, req.TargetPlatform)
	if !ok {
		return
	}
	opts := services.FeedbackOptions{UserID: req.UserID, Notes: req.Notes}
	if err := apply(srcPlat, req.SourceField, tgtPlat, req.EntityType, opts); err != nil {
		status, code := feedbackStatus(err)
		_ = ErrorResponse(w, status, code, err.Error())
		return
	}
	_ = WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// PendingReviews handles GET /api/mappings/pending
func (h *FeedbackHandler) PendingReviews(w http.ResponseWriter, r *http.Request) {
	pending := h.engine.PendingReviews()
	if err := WriteJSON(w, http.StatusOK, map[string]any{
		"mappings": pending,
		"total":    len(pending),
	}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Stats handles GET /api/mappings/stats
func (h *FeedbackHandler) Stats(w http.ResponseWriter, r *http.Request) {
	if err := WriteJSON(w, http.StatusOK, h.engine.MappingStats()); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Export handles GET /api/mappings/export?format=json|markdown
func (h *FeedbackHandler) Export(w http.ResponseWriter, r *http.Request) {
	format := r.URL.Query().Get("format")
	if format == "" {
		format = "json"
	}
	out, err := h.engine.ExportMappings(format)
	if err != nil {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_format", err.Error())
		return
	}
	if format == "markdown" {
		w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	} else {
		w.Header().Set("Content-Type", "application/json")
	}
	_, _ = w.Write([]byte(out))
}

// Report handles GET /api/report
func (h *FeedbackHandler) Report(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte(h.engine.GenerateReport()))
}

func feedbackStatus(err error) (int, string) {
	if errors.Is(err, apperrors.ErrMappingNotFound) {
		return http.StatusNotFound, "mapping_not_found"
	}
	return http.StatusInternalServerError, "feedback_failed"
}
