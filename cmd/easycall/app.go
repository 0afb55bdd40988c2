package main

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/nugget/easycall/internal/agent"
	"github.com/nugget/easycall/internal/config"
	"github.com/nugget/easycall/internal/desktop"
	"github.com/nugget/easycall/internal/fetch"
	"github.com/nugget/easycall/internal/llm"
	"github.com/nugget/easycall/internal/memory"
	"github.com/nugget/easycall/internal/metrics"
	"github.com/nugget/easycall/internal/search"
	"github.com/nugget/easycall/internal/store"
	"github.com/nugget/easycall/internal/tools"
)

// app holds what every store-backed command needs. The chat service is
// built on demand because it needs a reachable provider configuration.
type app struct {
	cfg     *config.Config
	cfgPath string
	logger  *slog.Logger
	store   *store.Store
	metrics *metrics.Manager
	cache   *memory.Cache
}

func openApp(configPath string, stderr io.Writer) (*app, error) {
	cfg, cfgPath, err := loadConfig(configPath)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", cfgPath, err)
	}
	logger := cfg.NewLogger(stderr)
	logger.Debug("config loaded", "path", cfgPath)

	st, err := store.Open(cfg.DatabasePath())
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	m := metrics.NewManager(cfg.Metrics.Enabled)
	return &app{
		cfg:     cfg,
		cfgPath: cfgPath,
		logger:  logger,
		store:   st,
		metrics: m,
		cache:   memory.NewCache(m.RecordMatcherCompile),
	}, nil
}

func (a *app) Close() error {
	return a.store.Close()
}

// service wires the chat service for the selected api config.
func (a *app) service() (*agent.Service, error) {
	api, err := a.cfg.SelectedAPIConfig()
	if err != nil {
		return nil, err
	}
	kind, err := llm.ParseKind(api.RequestFormat)
	if err != nil {
		return nil, err
	}
	streamer, err := llm.NewStreamer(kind, llm.Endpoint{BaseURL: api.BaseURL, APIKey: api.APIKey}, a.logger)
	if err != nil {
		return nil, fmt.Errorf("create %s client: %w", kind, err)
	}

	registry := tools.NewBuiltinRegistry(api, tools.Deps{
		Fetcher: fetch.New(),
		Search:  search.NewBing(),
		Memory:  tools.NewMemoryTools(a.store, a.cache, a.logger),
		Desktop: desktop.Unsupported{},
	})
	a.logger.Debug("tools registered", "api", api.ID, "tools", registry.AllToolNames())

	return agent.NewService(agent.Options{
		Config:   a.cfg,
		Store:    a.store,
		Streamer: streamer,
		Registry: registry,
		Cache:    a.cache,
		Metrics:  a.metrics,
		Logger:   a.logger,
	})
}

// loadConfig locates and parses the YAML configuration file.
func loadConfig(explicit string) (*config.Config, string, error) {
	cfgPath, err := config.FindConfig(explicit)
	if err != nil {
		return nil, "", err
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, cfgPath, fmt.Errorf("load config %s: %w", cfgPath, err)
	}
	return cfg, cfgPath, nil
}
