package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/fieldbridge/fieldbridge-engine/pkg/adapters/crm"
	"github.com/fieldbridge/fieldbridge-engine/pkg/apperrors"
	"github.com/fieldbridge/fieldbridge-engine/pkg/models"
	"github.com/fieldbridge/fieldbridge-engine/pkg/services"
)

// IntrospectorResolver maps a platform to its configured introspector.
// main wires this from config: staging databases where configured, the
// builtin seed otherwise.
type IntrospectorResolver func(platform models.Platform) (crm.SchemaIntrospector, error)

// RunDiscoveryRequest for POST /api/discovery/run
type RunDiscoveryRequest struct {
	SourcePlatform string `json:"source_platform"`
	TargetPlatform string `json:"target_platform"`
}

// ReviewRequest for the audit decision endpoints.
type ReviewRequest struct {
	Reviewer    string `json:"reviewer,omitempty"`
	Notes       string `json:"notes,omitempty"`
	TargetField string `json:"target_field,omitempty"` // modify only
}

// BulkApproveRequest for POST /api/audit/bulk-approve
type BulkApproveRequest struct {
	MinConfidence float64 `json:"min_confidence"`
	Reviewer      string  `json:"reviewer,omitempty"`
}

// DiscoveryHandler handles discovery runs and the audit workflow.
type DiscoveryHandler struct {
	discovery *services.DiscoveryService
	engine    *services.Engine
	resolve   IntrospectorResolver
	logger    *zap.Logger
}

// NewDiscoveryHandler creates a new discovery handler.
func NewDiscoveryHandler(discovery *services.DiscoveryService, engine *services.Engine, resolve IntrospectorResolver, logger *zap.Logger) *DiscoveryHandler {
	return &DiscoveryHandler{
		discovery: discovery,
		engine:    engine,
		resolve:   resolve,
		logger:    logger,
	}
}

// RegisterRoutes registers the discovery handler's routes on the given mux.
func (h *DiscoveryHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/discovery/run", h.Run)
	mux.HandleFunc("GET /api/discovery/history", h.History)
	mux.HandleFunc("GET /api/audit/queue", h.Queue)
	mux.HandleFunc("GET /api/audit/summary", h.Summary)
	mux.HandleFunc("POST /api/audit/{id}/approve", h.Approve)
	mux.HandleFunc("POST /api/audit/{id}/reject", h.Reject)
	mux.HandleFunc("POST /api/audit/{id}/modify", h.Modify)
	mux.HandleFunc("POST /api/audit/bulk-approve", h.BulkApprove)
	mux.HandleFunc("GET /api/audit/export", h.Export)
	mux.HandleFunc("POST /api/audit/import", h.Import)
}

// Run handles POST /api/discovery/run
func (h *DiscoveryHandler) Run(w http.ResponseWriter, r *http.Request) {
	var req RunDiscoveryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	srcPlat, tgtPlat, ok := parsePlatforms(w, req.SourcePlatform, req.TargetPlatform)
	if !ok {
		return
	}

	intr, err := h.resolve(srcPlat)
	if err != nil {
		h.logger.Error("No introspector for platform", zap.String("platform", string(srcPlat)), zap.Error(err))
		_ = ErrorResponse(w, http.StatusBadGateway, "introspector_unavailable", err.Error())
		return
	}
	defer func() {
		if err := intr.Close(); err != nil {
			h.logger.Warn("Failed to close introspector", zap.Error(err))
		}
	}()

	result := h.discovery.DiscoverSchema(r.Context(), intr, tgtPlat)
	if err := WriteJSON(w, http.StatusOK, result); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// History handles GET /api/discovery/history
func (h *DiscoveryHandler) History(w http.ResponseWriter, r *http.Request) {
	history := h.discovery.GetDiscoveryHistory()
	if err := WriteJSON(w, http.StatusOK, map[string]any{
		"runs":  history,
		"total": len(history),
	}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Queue handles GET /api/audit/queue?status=pending
func (h *DiscoveryHandler) Queue(w http.ResponseWriter, r *http.Request) {
	status := models.ProposalStatus(r.URL.Query().Get("status"))
	queue := h.discovery.GetAuditQueue(status)
	if err := WriteJSON(w, http.StatusOK, map[string]any{
		"proposals": queue,
		"total":     len(queue),
	}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Summary handles GET /api/audit/summary
func (h *DiscoveryHandler) Summary(w http.ResponseWriter, r *http.Request) {
	if err := WriteJSON(w, http.StatusOK, h.discovery.GetAuditSummary()); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Approve handles POST /api/audit/{id}/approve
func (h *DiscoveryHandler) Approve(w http.ResponseWriter, r *http.Request) {
	h.review(w, r, func(id string, req ReviewRequest) error {
		return h.discovery.Approve(id, req.Reviewer, req.Notes)
	})
}

// Reject handles POST /api/audit/{id}/reject
func (h *DiscoveryHandler) Reject(w http.ResponseWriter, r *http.Request) {
	h.review(w, r, func(id string, req ReviewRequest) error {
		return h.discovery.Reject(id, req.Reviewer, req.Notes)
	})
}

// Modify handles POST /api/audit/{id}/modify
func (h *DiscoveryHandler) Modify(w http.ResponseWriter, r *http.Request) {
	h.review(w, r, func(id string, req ReviewRequest) error {
		if req.TargetField == "" {
			return errors.New("target_field is required")
		}
		return h.discovery.Modify(id, req.TargetField, req.Reviewer, req.Notes)
	})
}

func (h *DiscoveryHandler) review(w http.ResponseWriter, r *http.Request, apply func(id string, req ReviewRequest) error) {
	id := r.PathValue("id")
	var req ReviewRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			_ = ErrorResponse(w, http.StatusBadRequest, "invalid_request", err.Error())
			return
		}
	}
	if err := apply(id, req); err != nil {
		status, code := reviewStatus(err)
		_ = ErrorResponse(w, status, code, err.Error())
		return
	}
	_ = WriteJSON(w, http.StatusOK, map[string]string{"status": "ok", "id": id})
}

// BulkApprove handles POST /api/audit/bulk-approve
func (h *DiscoveryHandler) BulkApprove(w http.ResponseWriter, r *http.Request) {
	var req BulkApproveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	n, err := h.discovery.BulkApprove(req.MinConfidence, req.Reviewer)
	if err != nil {
		_ = ErrorResponse(w, http.StatusInternalServerError, "bulk_approve_failed", err.Error())
		return
	}
	if err := WriteJSON(w, http.StatusOK, map[string]int{"approved": n}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Export handles GET /api/audit/export
func (h *DiscoveryHandler) Export(w http.ResponseWriter, r *http.Request) {
	approved := h.discovery.ExportApproved()
	if err := WriteJSON(w, http.StatusOK, map[string]any{
		"mappings": approved,
		"total":    len(approved),
	}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Import handles POST /api/audit/import: feeds the exported approvals
// through the learning path, imprinting them into the learned store.
// An optional ?user_id= attributes the import in the learning log.
func (h *DiscoveryHandler) Import(w http.ResponseWriter, r *http.Request) {
	approved := h.discovery.ExportApproved()
	opts := services.FeedbackOptions{UserID: r.URL.Query().Get("user_id")}
	n, err := h.engine.ImportApproved(approved, opts)
	if err != nil {
		_ = ErrorResponse(w, http.StatusInternalServerError, "import_failed",
			"imported "+strconv.Itoa(n)+" of "+strconv.Itoa(len(approved))+": "+err.Error())
		return
	}
	if err := WriteJSON(w, http.StatusOK, map[string]int{"imported": n}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

func reviewStatus(err error) (int, string) {
	switch {
	case errors.Is(err, apperrors.ErrProposalNotFound):
		return http.StatusNotFound, "proposal_not_found"
	case errors.Is(err, apperrors.ErrProposalSettled):
		return http.StatusConflict, "proposal_settled"
	default:
		return http.StatusBadRequest, "review_failed"
	}
}
