// Package tools defines the tools the model may call and the registry
// the orchestrator executes them through.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// Handler runs a tool with decoded JSON arguments and returns the text
// handed back to the model.
type Handler func(ctx context.Context, args map[string]any) (string, error)

// Tool represents a callable tool.
type Tool struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
	Handler     Handler        `json:"-"`
}

// Registry holds available tools in registration order.
type Registry struct {
	tools map[string]*Tool
	order []string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]*Tool)}
}

// Register adds a tool, replacing any tool with the same name.
func (r *Registry) Register(t *Tool) {
	if _, ok := r.tools[t.Name]; !ok {
		r.order = append(r.order, t.Name)
	}
	r.tools[t.Name] = t
}

// Get retrieves a tool by name.
func (r *Registry) Get(name string) *Tool {
	return r.tools[name]
}

// AllToolNames returns the registered tool names in registration order.
func (r *Registry) AllToolNames() []string {
	return append([]string(nil), r.order...)
}

// Len is the number of registered tools.
func (r *Registry) Len() int {
	return len(r.order)
}

// List returns OpenAI-format function definitions for every tool.
func (r *Registry) List() []map[string]any {
	result := make([]map[string]any, 0, len(r.order))
	for _, name := range r.order {
		t := r.tools[name]
		result = append(result, map[string]any{
			"type": "function",
			"function": map[string]any{
				"name":        t.Name,
				"description": t.Description,
				"parameters":  t.Parameters,
			},
		})
	}
	return result
}

// Execute runs a tool by name with its raw JSON arguments. Arguments
// are parsed before the tool is looked up: arguments that are not a
// JSON object yield an error wrapping ErrInvalidArguments even for an
// unknown tool. An unknown tool yields *ErrToolUnavailable. Any other
// error comes from the tool itself.
func (r *Registry) Execute(ctx context.Context, name string, argsJSON string) (string, error) {
	args := map[string]any{}
	if strings.TrimSpace(argsJSON) != "" {
		if err := json.Unmarshal([]byte(argsJSON), &args); err != nil {
			return "", fmt.Errorf("%w for %s: %v", ErrInvalidArguments, name, err)
		}
		if args == nil {
			args = map[string]any{}
		}
	}

	tool := r.tools[name]
	if tool == nil {
		return "", &ErrToolUnavailable{ToolName: name}
	}
	return tool.Handler(ctx, args)
}
