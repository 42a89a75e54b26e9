package tools

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/fieldbridge/fieldbridge-engine/pkg/models"
	"github.com/fieldbridge/fieldbridge-engine/pkg/services"
)

// AuditToolDeps contains dependencies for audit MCP tools.
type AuditToolDeps struct {
	Discovery *services.DiscoveryService
	Logger    *zap.Logger
}

// RegisterAuditTools registers the discovery audit tools.
func RegisterAuditTools(s *server.MCPServer, deps *AuditToolDeps) {
	registerAuditQueueTool(s, deps)
	registerAuditSummaryTool(s, deps)
	registerApproveMappingTool(s, deps)
	registerRejectMappingTool(s, deps)
	registerExportApprovedTool(s, deps)
}

func registerAuditQueueTool(s *server.MCPServer, deps *AuditToolDeps) {
	tool := mcp.NewTool(
		"get_audit_queue",
		mcp.WithDescription(
			"List discovery proposals awaiting human review, oldest first. "+
				"Each proposal carries the best candidate, confidence, reasoning, "+
				"and alternatives.",
		),
		mcp.WithString("status", mcp.Description("Optional - Filter by status: pending, approved, rejected, modified, auto.")),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithIdempotentHintAnnotation(true),
		mcp.WithOpenWorldHintAnnotation(false),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		status := models.ProposalStatus(getOptionalString(req, "status"))
		queue := deps.Discovery.GetAuditQueue(status)
		return NewJSONResult(map[string]any{
			"proposals": queue,
			"total":     len(queue),
		})
	})
}

func registerAuditSummaryTool(s *server.MCPServer, deps *AuditToolDeps) {
	tool := mcp.NewTool(
		"get_audit_summary",
		mcp.WithDescription(
			"Summarize the audit queue: proposal counts by status and confidence "+
				"band, and auto- versus human-approved totals.",
		),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithIdempotentHintAnnotation(true),
		mcp.WithOpenWorldHintAnnotation(false),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return NewJSONResult(deps.Discovery.GetAuditSummary())
	})
}

func registerApproveMappingTool(s *server.MCPServer, deps *AuditToolDeps) {
	tool := mcp.NewTool(
		"approve_mapping",
		mcp.WithDescription(
			"Approve a pending discovery proposal by id, moving it to the "+
				"approved map. Approved mappings are exported to the learning "+
				"path to become human-verified mappings.",
		),
		mcp.WithString("id", mcp.Required(), mcp.Description("Proposal id from get_audit_queue. Required.")),
		mcp.WithString("reviewer", mcp.Description("Optional - Reviewer identifier.")),
		mcp.WithString("notes", mcp.Description("Optional - Review notes.")),
		mcp.WithReadOnlyHintAnnotation(false),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithIdempotentHintAnnotation(false),
		mcp.WithOpenWorldHintAnnotation(false),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := req.RequireString("id")
		if err != nil {
			return nil, err
		}
		if err := deps.Discovery.Approve(id, getOptionalString(req, "reviewer"), getOptionalString(req, "notes")); err != nil {
			deps.Logger.Error("MCP approve failed", zap.String("id", id), zap.Error(err))
			return NewErrorResult("approve_failed", err.Error()), nil
		}
		return NewJSONResult(map[string]string{"status": "approved", "id": id})
	})
}

func registerRejectMappingTool(s *server.MCPServer, deps *AuditToolDeps) {
	tool := mcp.NewTool(
		"reject_mapping",
		mcp.WithDescription("Reject a pending discovery proposal by id. Rejected proposals never reach the learned store."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Proposal id from get_audit_queue. Required.")),
		mcp.WithString("reviewer", mcp.Description("Optional - Reviewer identifier.")),
		mcp.WithString("notes", mcp.Description("Optional - Review notes.")),
		mcp.WithReadOnlyHintAnnotation(false),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithIdempotentHintAnnotation(false),
		mcp.WithOpenWorldHintAnnotation(false),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := req.RequireString("id")
		if err != nil {
			return nil, err
		}
		if err := deps.Discovery.Reject(id, getOptionalString(req, "reviewer"), getOptionalString(req, "notes")); err != nil {
			return NewErrorResult("reject_failed", err.Error()), nil
		}
		return NewJSONResult(map[string]string{"status": "rejected", "id": id})
	})
}

func registerExportApprovedTool(s *server.MCPServer, deps *AuditToolDeps) {
	tool := mcp.NewTool(
		"export_approved",
		mcp.WithDescription(
			"Export the approved map as flattened mapping entries ready for "+
				"the feedback path.",
		),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithIdempotentHintAnnotation(true),
		mcp.WithOpenWorldHintAnnotation(false),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		approved := deps.Discovery.ExportApproved()
		return NewJSONResult(map[string]any{
			"mappings": approved,
			"total":    len(approved),
		})
	})
}
