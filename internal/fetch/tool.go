package fetch

import (
	"context"
	"encoding/json"
	"fmt"
)

// ToolName is the function name the model calls.
const ToolName = "fetch"

// ToolHandler wraps f as a tool handler returning {url, content} JSON.
func ToolHandler(f *Fetcher) func(ctx context.Context, args map[string]any) (string, error) {
	return func(ctx context.Context, args map[string]any) (string, error) {
		url, _ := args["url"].(string)
		if url == "" {
			return "", fmt.Errorf("fetch: url is required")
		}

		maxLength := 0
		if ml, ok := args["max_length"].(float64); ok && ml > 0 {
			maxLength = int(ml)
		}

		result, err := f.Fetch(ctx, url, maxLength)
		if err != nil {
			return "", err
		}
		out, err := json.Marshal(result)
		if err != nil {
			return "", fmt.Errorf("fetch: encode result: %w", err)
		}
		return string(out), nil
	}
}

// ToolDefinition returns the JSON Schema parameters for the fetch tool.
func ToolDefinition() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"url": map[string]any{
				"type":        "string",
				"description": "URL",
			},
			"max_length": map[string]any{
				"type":        "integer",
				"description": "Max chars",
				"default":     DefaultMaxLength,
			},
		},
		"required": []string{"url"},
	}
}
