// Package tools provides MCP tool implementations for fieldbridge-engine.
package tools

import (
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/fieldbridge/fieldbridge-engine/pkg/models"
)

// NewErrorResult builds a structured tool error payload.
func NewErrorResult(code, message string) *mcp.CallToolResult {
	payload, _ := json.Marshal(map[string]string{
		"error":   code,
		"message": message,
	})
	return mcp.NewToolResultError(string(payload))
}

// NewJSONResult marshals a value into a text tool result.
func NewJSONResult(v any) (*mcp.CallToolResult, error) {
	payload, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal tool result: %w", err)
	}
	return mcp.NewToolResultText(string(payload)), nil
}

// requirePlatform parses and validates a platform argument.
func requirePlatform(req mcp.CallToolRequest, key string) (models.Platform, *mcp.CallToolResult) {
	raw, err := req.RequireString(key)
	if err != nil {
		return "", NewErrorResult("invalid_parameters", err.Error())
	}
	platform := models.Platform(raw)
	if err := platform.Validate(); err != nil {
		return "", NewErrorResult("invalid_parameters",
			fmt.Sprintf("parameter %q: %v; must be one of: salesforce, dynamics365, hubspot", key, err))
	}
	return platform, nil
}

func getOptionalString(req mcp.CallToolRequest, key string) string {
	return req.GetString(key, "")
}
