package tools

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func newTestRegistry() *Registry {
	r := NewRegistry()
	for _, name := range []string{"gamma", "alpha", "beta"} {
		r.Register(&Tool{
			Name:        name,
			Description: "Tool " + name,
			Handler: func(_ context.Context, args map[string]any) (string, error) {
				return fmt.Sprintf("%s-result:%d", name, len(args)), nil
			},
		})
	}
	return r
}

func TestRegistryOrder(t *testing.T) {
	r := newTestRegistry()
	r.Register(&Tool{Name: "alpha", Description: "replaced"})

	names := r.AllToolNames()
	want := []string{"gamma", "alpha", "beta"}
	if fmt.Sprint(names) != fmt.Sprint(want) {
		t.Errorf("AllToolNames() = %v, want %v", names, want)
	}
	if r.Get("alpha").Description != "replaced" {
		t.Error("Register should replace an existing tool")
	}

	defs := r.List()
	if len(defs) != 3 {
		t.Fatalf("List() len = %d", len(defs))
	}
	fn := defs[0]["function"].(map[string]any)
	if defs[0]["type"] != "function" || fn["name"] != "gamma" {
		t.Errorf("first definition = %v", defs[0])
	}
}

func TestExecute(t *testing.T) {
	r := newTestRegistry()

	tests := []struct {
		name    string
		tool    string
		args    string
		want    string
		wantErr func(error) bool
	}{
		{name: "with args", tool: "beta", args: `{"a":1,"b":2}`, want: "beta-result:2"},
		{name: "empty args", tool: "beta", args: "", want: "beta-result:0"},
		{name: "null args", tool: "beta", args: "null", want: "beta-result:0"},
		{
			name: "unknown tool",
			tool: "delta",
			wantErr: func(err error) bool {
				var target *ErrToolUnavailable
				return errors.As(err, &target) && target.ToolName == "delta"
			},
		},
		{
			name: "unknown tool with invalid json",
			tool: "delta",
			args: `{"a":`,
			wantErr: func(err error) bool {
				var target *ErrToolUnavailable
				return errors.Is(err, ErrInvalidArguments) && !errors.As(err, &target)
			},
		},
		{
			name: "invalid json",
			tool: "beta",
			args: `{"a":`,
			wantErr: func(err error) bool {
				return errors.Is(err, ErrInvalidArguments)
			},
		},
		{
			name: "non-object json",
			tool: "beta",
			args: `[1,2]`,
			wantErr: func(err error) bool {
				return errors.Is(err, ErrInvalidArguments)
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := r.Execute(context.Background(), tt.tool, tt.args)
			if tt.wantErr != nil {
				if err == nil || !tt.wantErr(err) {
					t.Fatalf("Execute() error = %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Execute() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Execute() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestErrToolUnavailable(t *testing.T) {
	err := fmt.Errorf("tool execution: %w", &ErrToolUnavailable{ToolName: "fetch"})
	var target *ErrToolUnavailable
	if !errors.As(err, &target) {
		t.Fatal("errors.As failed to match wrapped *ErrToolUnavailable")
	}
	if want := `tool "fetch" is not available for this api config`; target.Error() != want {
		t.Errorf("Error() = %q, want %q", target.Error(), want)
	}
}

func TestConversationIDContext(t *testing.T) {
	if got := ConversationIDFromContext(context.Background()); got != "" {
		t.Errorf("unset id = %q", got)
	}
	ctx := WithConversationID(context.Background(), "conv-1")
	if got := ConversationIDFromContext(ctx); got != "conv-1" {
		t.Errorf("id = %q", got)
	}
}
