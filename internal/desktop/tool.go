package desktop

import (
	"context"
	"encoding/json"
	"fmt"
)

// Tool names the model calls.
const (
	ScreenshotToolName = "desktop_screenshot"
	WaitToolName       = "desktop_wait"
)

func decodeArgs(args map[string]any, v any) error {
	raw, err := json.Marshal(args)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return invalidParams("%v", err)
	}
	return nil
}

// ScreenshotToolHandler wraps a as the desktop_screenshot handler.
func ScreenshotToolHandler(a Automation) func(ctx context.Context, args map[string]any) (string, error) {
	return func(ctx context.Context, args map[string]any) (string, error) {
		var req ScreenshotRequest
		if err := decodeArgs(args, &req); err != nil {
			return "", err
		}
		res, err := Screenshot(ctx, a, req)
		if err != nil {
			return "", err
		}
		out, err := json.Marshal(res)
		if err != nil {
			return "", fmt.Errorf("desktop_screenshot: encode result: %w", err)
		}
		return string(out), nil
	}
}

// WaitToolHandler is the desktop_wait handler.
func WaitToolHandler() func(ctx context.Context, args map[string]any) (string, error) {
	return func(ctx context.Context, args map[string]any) (string, error) {
		var req WaitRequest
		if err := decodeArgs(args, &req); err != nil {
			return "", err
		}
		res, err := Wait(ctx, req)
		if err != nil {
			return "", err
		}
		out, err := json.Marshal(res)
		if err != nil {
			return "", fmt.Errorf("desktop_wait: encode result: %w", err)
		}
		return string(out), nil
	}
}

// ScreenshotToolDefinition returns the JSON Schema for desktop_screenshot.
func ScreenshotToolDefinition() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"mode": map[string]any{
				"type":        "string",
				"enum":        []string{ModeDesktop, ModeMonitor, ModeRegion},
				"description": "What to capture. Default: desktop.",
			},
			"monitorId": map[string]any{
				"type":        "integer",
				"description": "Zero-based monitor index, required for mode=monitor.",
			},
			"region": map[string]any{
				"type":        "object",
				"description": "Rectangle to capture, required for mode=region.",
				"properties": map[string]any{
					"x":      map[string]any{"type": "integer"},
					"y":      map[string]any{"type": "integer"},
					"width":  map[string]any{"type": "integer"},
					"height": map[string]any{"type": "integer"},
				},
				"required": []string{"x", "y", "width", "height"},
			},
			"webpQuality": map[string]any{
				"type":        "number",
				"description": "WebP quality 1-100. Default: 75.",
			},
		},
	}
}

// WaitToolDefinition returns the JSON Schema for desktop_wait.
func WaitToolDefinition() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"mode": map[string]any{
				"type": "string",
				"enum": []string{"sleep"},
			},
			"ms": map[string]any{
				"type":        "integer",
				"description": fmt.Sprintf("Milliseconds to wait, at most %d.", MaxWait),
			},
		},
		"required": []string{"ms"},
	}
}
