package search

import (
	"context"
	"encoding/json"
	"fmt"
)

// ToolName is the function name the model calls.
const ToolName = "bing_search"

// ToolHandler wraps p as a tool handler returning {query, results} JSON.
func ToolHandler(p Provider) func(ctx context.Context, args map[string]any) (string, error) {
	return func(ctx context.Context, args map[string]any) (string, error) {
		query, _ := args["query"].(string)
		if query == "" {
			return "", fmt.Errorf("bing_search: query is required")
		}

		count := DefaultCount
		if n, ok := args["num_results"].(float64); ok && n >= 1 {
			count = int(n)
		}

		results, err := p.Search(ctx, query, count)
		if err != nil {
			return "", err
		}
		out, err := json.Marshal(Response{Query: query, Results: results})
		if err != nil {
			return "", fmt.Errorf("bing_search: encode result: %w", err)
		}
		return string(out), nil
	}
}

// ToolDefinition returns the JSON Schema parameters for bing_search.
func ToolDefinition() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"query": map[string]any{
				"type":        "string",
				"description": "Query",
			},
			"num_results": map[string]any{
				"type":        "integer",
				"description": "Result count",
				"default":     DefaultCount,
			},
		},
		"required": []string{"query"},
	}
}
