package tools

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/fieldbridge/fieldbridge-engine/pkg/services"
)

// TranslationToolDeps contains dependencies for translation MCP tools.
type TranslationToolDeps struct {
	Engine *services.Engine
	Logger *zap.Logger
}

// RegisterTranslationTools registers the translation and learning tools.
func RegisterTranslationTools(s *server.MCPServer, deps *TranslationToolDeps) {
	registerTranslateFieldTool(s, deps)
	registerTranslateValueTool(s, deps)
	registerProvideFeedbackTool(s, deps)
	registerMappingStatsTool(s, deps)
}

func registerTranslateFieldTool(s *server.MCPServer, deps *TranslationToolDeps) {
	tool := mcp.NewTool(
		"translate_field",
		mcp.WithDescription(
			"Translate a CRM field name from one platform to another. "+
				"Returns the target field with a confidence score, the reasoning "+
				"behind the match, and up to three alternatives. "+
				"Example: translate_field(field='parentAccountId', source_platform='salesforce', target_platform='dynamics365', entity_type='deals')",
		),
		mcp.WithString("field", mcp.Required(), mcp.Description("Source field name. Required.")),
		mcp.WithString("source_platform", mcp.Required(), mcp.Description("Source platform: salesforce, dynamics365, or hubspot. Required.")),
		mcp.WithString("target_platform", mcp.Required(), mcp.Description("Target platform: salesforce, dynamics365, or hubspot. Required.")),
		mcp.WithString("entity_type", mcp.Required(), mcp.Description("Entity type, e.g. contacts, companies, deals, activities. Required.")),
		mcp.WithReadOnlyHintAnnotation(false),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithIdempotentHintAnnotation(true),
		mcp.WithOpenWorldHintAnnotation(false),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		field, err := req.RequireString("field")
		if err != nil {
			return nil, err
		}
		entity, err := req.RequireString("entity_type")
		if err != nil {
			return nil, err
		}
		srcPlat, errResult := requirePlatform(req, "source_platform")
		if errResult != nil {
			return errResult, nil
		}
		tgtPlat, errResult := requirePlatform(req, "target_platform")
		if errResult != nil {
			return errResult, nil
		}

		result := deps.Engine.TranslateField(field, srcPlat, tgtPlat, entity, nil)
		deps.Logger.Debug("MCP field translation",
			zap.String("field", field),
			zap.String("target_field", result.TargetField))
		return NewJSONResult(result)
	})
}

func registerTranslateValueTool(s *server.MCPServer, deps *TranslationToolDeps) {
	tool := mcp.NewTool(
		"translate_value",
		mcp.WithDescription(
			"Translate a closed-vocabulary field value (pipeline stage, status, "+
				"activity type) from one platform's vocabulary to another's. "+
				"Unmatched values pass through unchanged at confidence zero.",
		),
		mcp.WithString("value", mcp.Required(), mcp.Description("Source value literal. Required.")),
		mcp.WithString("field", mcp.Required(), mcp.Description("Field name carrying the value. Required.")),
		mcp.WithString("source_platform", mcp.Required(), mcp.Description("Source platform. Required.")),
		mcp.WithString("target_platform", mcp.Required(), mcp.Description("Target platform. Required.")),
		mcp.WithString("entity_type", mcp.Description("Optional - Entity type the value belongs to.")),
		mcp.WithReadOnlyHintAnnotation(false),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithIdempotentHintAnnotation(true),
		mcp.WithOpenWorldHintAnnotation(false),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		value, err := req.RequireString("value")
		if err != nil {
			return nil, err
		}
		field, err := req.RequireString("field")
		if err != nil {
			return nil, err
		}
		srcPlat, errResult := requirePlatform(req, "source_platform")
		if errResult != nil {
			return errResult, nil
		}
		tgtPlat, errResult := requirePlatform(req, "target_platform")
		if errResult != nil {
			return errResult, nil
		}
		entity := getOptionalString(req, "entity_type")

		result := deps.Engine.TranslateValue(value, field, srcPlat, tgtPlat, entity)
		return NewJSONResult(result)
	})
}

func registerProvideFeedbackTool(s *server.MCPServer, deps *TranslationToolDeps) {
	tool := mcp.NewTool(
		"provide_feedback",
		mcp.WithDescription(
			"Record the authoritative target field for a source field. "+
				"A conflicting learned mapping is demoted and replaced by a "+
				"human-verified mapping; a matching one is confirmed and boosted.",
		),
		mcp.WithString("source_field", mcp.Required(), mcp.Description("Source field name. Required.")),
		mcp.WithString("target_field", mcp.Required(), mcp.Description("Correct target field name. Required.")),
		mcp.WithString("source_platform", mcp.Required(), mcp.Description("Source platform. Required.")),
		mcp.WithString("target_platform", mcp.Required(), mcp.Description("Target platform. Required.")),
		mcp.WithString("entity_type", mcp.Required(), mcp.Description("Entity type. Required.")),
		mcp.WithString("user_id", mcp.Description("Optional - Reviewer identifier for the learning log.")),
		mcp.WithString("notes", mcp.Description("Optional - Reviewer notes.")),
		mcp.WithReadOnlyHintAnnotation(false),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithIdempotentHintAnnotation(true),
		mcp.WithOpenWorldHintAnnotation(false),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		srcField, err := req.RequireString("source_field")
		if err != nil {
			return nil, err
		}
		tgtField, err := req.RequireString("target_field")
		if err != nil {
			return nil, err
		}
		entity, err := req.RequireString("entity_type")
		if err != nil {
			return nil, err
		}
		srcPlat, errResult := requirePlatform(req, "source_platform")
		if errResult != nil {
			return errResult, nil
		}
		tgtPlat, errResult := requirePlatform(req, "target_platform")
		if errResult != nil {
			return errResult, nil
		}

		opts := services.FeedbackOptions{
			UserID: getOptionalString(req, "user_id"),
			Notes:  getOptionalString(req, "notes"),
		}
		if err := deps.Engine.ProvideFeedback(srcPlat, srcField, tgtPlat, entity, tgtField, opts); err != nil {
			deps.Logger.Error("MCP feedback failed", zap.String("source_field", srcField), zap.Error(err))
			return NewErrorResult("feedback_failed", err.Error()), nil
		}
		return NewJSONResult(map[string]string{"status": "ok"})
	})
}

func registerMappingStatsTool(s *server.MCPServer, deps *TranslationToolDeps) {
	tool := mcp.NewTool(
		"get_mapping_stats",
		mcp.WithDescription(
			"Summarize the learned mapping store: mapping counts by provenance, "+
				"confidence level, and entity, plus activity counters and a "+
				"coverage estimate.",
		),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithIdempotentHintAnnotation(true),
		mcp.WithOpenWorldHintAnnotation(false),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return NewJSONResult(deps.Engine.MappingStats())
	})
}
