// Package config handles EasyCall configuration loading.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Tool identifiers accepted in ApiConfig.Tools.
const (
	ToolFetch             = "fetch"
	ToolBingSearch        = "bing-search"
	ToolMemorySave        = "memory-save"
	ToolDesktopScreenshot = "desktop-screenshot"
	ToolDesktopWait       = "desktop-wait"
)

// Defaults applied by Load and Default.
const (
	DefaultContextWindowTokens = 128000
	DefaultToolMaxIterations   = 10
	MaxToolMaxIterations       = 100
)

// requestFormats are the provider wire formats EasyCall can speak.
var requestFormats = map[string]bool{
	"openai":        true,
	"deepseek/kimi": true,
	"gemini":        true,
	"anthropic":     true,
}

// DefaultSearchPaths returns the config file search order.
// An explicit path (from -config flag) is checked first.
// Then: ./config.yaml, ~/.config/easycall/config.yaml, /etc/easycall/config.yaml.
func DefaultSearchPaths() []string {
	paths := []string{"config.yaml"}

	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "easycall", "config.yaml"))
	}

	paths = append(paths, "/etc/easycall/config.yaml")
	return paths
}

// FindConfig locates a config file. If explicit is non-empty, it must exist.
// Otherwise, searches DefaultSearchPaths and returns the first that exists.
func FindConfig(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	for _, p := range DefaultSearchPaths() {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}

	return "", fmt.Errorf("no config file found (searched: %v)", DefaultSearchPaths())
}

// Config holds all EasyCall configuration.
type Config struct {
	DataDir           string        `yaml:"data_dir"`
	LogLevel          string        `yaml:"log_level"`
	LogFormat         string        `yaml:"log_format"` // text (default) or json
	ToolMaxIterations int           `yaml:"tool_max_iterations"`
	SelectedAPI       string        `yaml:"selected_api"`
	APIs              []ApiConfig   `yaml:"apis"`
	Agent             AgentConfig   `yaml:"agent"`
	UserAlias         string        `yaml:"user_alias"`
	UserIntro         string        `yaml:"user_intro"`
	Language          string        `yaml:"language"` // en-US, zh-CN, ja-JP, ko-KR
	Metrics           MetricsConfig `yaml:"metrics"`
}

// ApiConfig is one provider endpoint the user can chat through. The
// resolved form (key expanded, defaults applied) is what the chat core
// consumes.
type ApiConfig struct {
	ID                  string   `yaml:"id"`
	RequestFormat       string   `yaml:"request_format"`
	BaseURL             string   `yaml:"base_url"`
	APIKey              string   `yaml:"api_key"`
	Model               string   `yaml:"model"`
	Temperature         float64  `yaml:"temperature"`
	ContextWindowTokens int      `yaml:"context_window_tokens"`
	EnableTools         bool     `yaml:"enable_tools"`
	Tools               []string `yaml:"tools"`
	EnableImage         bool     `yaml:"enable_image"`
	EnableAudio         bool     `yaml:"enable_audio"`
}

// ToolEnabled reports whether tools are on for this config and id is listed.
func (a ApiConfig) ToolEnabled(id string) bool {
	if !a.EnableTools {
		return false
	}
	for _, t := range a.Tools {
		if t == id {
			return true
		}
	}
	return false
}

// AgentConfig identifies the assistant persona conversations belong to.
type AgentConfig struct {
	ID           string `yaml:"id"`
	Name         string `yaml:"name"`
	SystemPrompt string `yaml:"system_prompt"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Listen  string `yaml:"listen"`
}

// Load reads configuration from a YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Expand environment variables
	expanded := os.ExpandEnv(string(data))

	cfg := Default()
	cfg.APIs = nil
	cfg.SelectedAPI = ""
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()

	return cfg, nil
}

// Default returns a default configuration pointing at a local
// OpenAI-compatible endpoint.
func Default() *Config {
	cfg := &Config{
		DataDir:           "./data",
		ToolMaxIterations: DefaultToolMaxIterations,
		SelectedAPI:       "local",
		APIs: []ApiConfig{
			{
				ID:                  "local",
				RequestFormat:       "openai",
				BaseURL:             "http://localhost:11434/v1",
				Model:               "qwen3:4b",
				Temperature:         0.7,
				ContextWindowTokens: DefaultContextWindowTokens,
				EnableTools:         true,
				Tools:               []string{ToolFetch, ToolBingSearch, ToolMemorySave},
			},
		},
		Agent: AgentConfig{
			ID:           "default-agent",
			Name:         "EasyCall",
			SystemPrompt: "You are a helpful desktop assistant. Be concise and accurate.",
		},
		UserAlias: "User",
		Metrics:   MetricsConfig{Listen: "127.0.0.1:9464"},
	}
	return cfg
}

func (c *Config) applyDefaults() {
	if c.ToolMaxIterations <= 0 {
		c.ToolMaxIterations = DefaultToolMaxIterations
	}
	if c.ToolMaxIterations > MaxToolMaxIterations {
		c.ToolMaxIterations = MaxToolMaxIterations
	}
	for i := range c.APIs {
		a := &c.APIs[i]
		a.RequestFormat = strings.TrimSpace(a.RequestFormat)
		if a.RequestFormat == "" {
			a.RequestFormat = "openai"
		}
		if a.ContextWindowTokens <= 0 {
			a.ContextWindowTokens = DefaultContextWindowTokens
		}
		a.APIKey = strings.TrimSpace(a.APIKey)
	}
	if c.SelectedAPI == "" && len(c.APIs) > 0 {
		c.SelectedAPI = c.APIs[0].ID
	}
	if c.Agent.ID == "" {
		c.Agent.ID = "default-agent"
	}
	if c.Agent.Name == "" {
		c.Agent.Name = "EasyCall"
	}
	if c.UserAlias == "" {
		c.UserAlias = "User"
	}
}

// Validate reports configuration problems that would make chatting fail.
func (c *Config) Validate() error {
	var errs []error
	seen := make(map[string]bool)
	for i, a := range c.APIs {
		if a.ID == "" {
			errs = append(errs, fmt.Errorf("apis[%d]: id is required", i))
			continue
		}
		if seen[a.ID] {
			errs = append(errs, fmt.Errorf("apis[%d]: duplicate id %q", i, a.ID))
		}
		seen[a.ID] = true
		if !requestFormats[a.RequestFormat] {
			errs = append(errs, fmt.Errorf("apis[%d]: unknown request_format %q", i, a.RequestFormat))
		}
	}
	if _, err := c.SelectedAPIConfig(); err != nil {
		errs = append(errs, err)
	}
	if _, err := ParseLogLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// SelectedAPIConfig returns the api config named by SelectedAPI.
func (c *Config) SelectedAPIConfig() (ApiConfig, error) {
	for _, a := range c.APIs {
		if a.ID == c.SelectedAPI {
			return a, nil
		}
	}
	if len(c.APIs) == 0 {
		return ApiConfig{}, errors.New("no API config configured, please add one")
	}
	return ApiConfig{}, fmt.Errorf("selected api %q not found", c.SelectedAPI)
}

// DatabasePath is where the conversation store lives.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.DataDir, "easycall.db")
}
