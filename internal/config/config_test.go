package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestFindConfig_Explicit(t *testing.T) {
	path := writeConfig(t, "log_level: debug\n")

	got, err := FindConfig(path)
	if err != nil {
		t.Fatalf("FindConfig(%q) error: %v", path, err)
	}
	if got != path {
		t.Errorf("FindConfig(%q) = %q, want %q", path, got, path)
	}
}

func TestFindConfig_ExplicitMissing(t *testing.T) {
	if _, err := FindConfig("/nonexistent/config.yaml"); err == nil {
		t.Fatal("FindConfig with missing explicit path should error")
	}
}

func TestLoad_AppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
data_dir: /tmp/easycall
apis:
  - id: ds
    request_format: deepseek/kimi
    base_url: https://api.deepseek.com
    api_key: "  sk-abc  "
    model: deepseek-chat
    enable_tools: true
    tools: [fetch, memory-save]
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ToolMaxIterations != DefaultToolMaxIterations {
		t.Errorf("ToolMaxIterations = %d, want %d", cfg.ToolMaxIterations, DefaultToolMaxIterations)
	}
	if cfg.SelectedAPI != "ds" {
		t.Errorf("SelectedAPI = %q, want ds", cfg.SelectedAPI)
	}
	api, err := cfg.SelectedAPIConfig()
	if err != nil {
		t.Fatalf("SelectedAPIConfig: %v", err)
	}
	if api.ContextWindowTokens != DefaultContextWindowTokens {
		t.Errorf("ContextWindowTokens = %d", api.ContextWindowTokens)
	}
	if api.APIKey != "sk-abc" {
		t.Errorf("APIKey = %q, want trimmed", api.APIKey)
	}
	if !api.ToolEnabled(ToolFetch) || api.ToolEnabled(ToolBingSearch) {
		t.Errorf("ToolEnabled mismatch: tools=%v", api.Tools)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestLoad_ExpandsEnv(t *testing.T) {
	t.Setenv("EASYCALL_TEST_KEY", "sk-from-env")
	path := writeConfig(t, `
apis:
  - id: main
    base_url: https://api.openai.com
    api_key: ${EASYCALL_TEST_KEY}
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.APIs[0].APIKey != "sk-from-env" {
		t.Errorf("APIKey = %q", cfg.APIs[0].APIKey)
	}
	if cfg.APIs[0].RequestFormat != "openai" {
		t.Errorf("RequestFormat = %q, want openai default", cfg.APIs[0].RequestFormat)
	}
}

func TestLoad_ClampsIterations(t *testing.T) {
	path := writeConfig(t, "tool_max_iterations: 500\napis: [{id: a}]\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.ToolMaxIterations != MaxToolMaxIterations {
		t.Errorf("ToolMaxIterations = %d, want %d", cfg.ToolMaxIterations, MaxToolMaxIterations)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"default ok", func(*Config) {}, ""},
		{"unknown format", func(c *Config) { c.APIs[0].RequestFormat = "cohere" }, "unknown request_format"},
		{"duplicate id", func(c *Config) { c.APIs = append(c.APIs, c.APIs[0]) }, "duplicate id"},
		{"missing selected", func(c *Config) { c.SelectedAPI = "nope" }, "not found"},
		{"no apis", func(c *Config) { c.APIs = nil }, "no API config"},
		{"bad log level", func(c *Config) { c.LogLevel = "loud" }, "unknown log level"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("Validate = %v, want %q", err, tt.wantErr)
			}
		})
	}
}

func TestToolEnabled_RequiresEnableTools(t *testing.T) {
	a := ApiConfig{EnableTools: false, Tools: []string{ToolFetch}}
	if a.ToolEnabled(ToolFetch) {
		t.Error("ToolEnabled should be false when EnableTools is off")
	}
}
