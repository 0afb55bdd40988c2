// Package metrics provides Prometheus instrumentation for EasyCall.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Stream and tool outcome labels.
const (
	StatusOK    = "ok"
	StatusError = "error"
)

// Archive outcome labels.
const (
	OutcomeArchived = "archived"
	OutcomeFallback = "fallback"
	OutcomeReset    = "reset"
	OutcomeConflict = "conflict"
)

// Manager owns the registry and every collector. A disabled Manager
// records nothing.
type Manager struct {
	registry *prometheus.Registry
	enabled  bool

	streamTurns     *prometheus.CounterVec
	toolCalls       *prometheus.CounterVec
	toolDuration    *prometheus.HistogramVec
	archives        *prometheus.CounterVec
	matcherCompiles prometheus.Counter
}

// NewManager creates a manager. With enabled false it is a no-op.
func NewManager(enabled bool) *Manager {
	if !enabled {
		return NoOpManager()
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	m := &Manager{registry: registry, enabled: true}

	m.streamTurns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "easycall_stream_turns_total",
			Help: "Streamed model turns by status",
		},
		[]string{"status"},
	)
	m.toolCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "easycall_tool_calls_total",
			Help: "Tool invocations by tool and status",
		},
		[]string{"tool", "status"},
	)
	m.toolDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "easycall_tool_duration_seconds",
			Help:    "Tool execution time in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 12, 30, 120},
		},
		[]string{"tool"},
	)
	m.archives = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "easycall_archives_total",
			Help: "Archive attempts by reason and outcome",
		},
		[]string{"reason", "outcome"},
	)
	m.matcherCompiles = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "easycall_matcher_compiles_total",
			Help: "Memory keyword automaton compilations",
		},
	)

	registry.MustRegister(m.streamTurns, m.toolCalls, m.toolDuration, m.archives, m.matcherCompiles)
	return m
}

// NoOpManager returns a manager that records nothing.
func NoOpManager() *Manager {
	return &Manager{enabled: false}
}

// Enabled reports whether metrics are collected.
func (m *Manager) Enabled() bool {
	return m.enabled
}

// RecordStreamTurn counts one streamed model turn.
func (m *Manager) RecordStreamTurn(status string) {
	if !m.enabled {
		return
	}
	m.streamTurns.WithLabelValues(status).Inc()
}

// RecordToolCall counts one tool invocation and its duration.
func (m *Manager) RecordToolCall(tool, status string, elapsed time.Duration) {
	if !m.enabled {
		return
	}
	m.toolCalls.WithLabelValues(tool, status).Inc()
	m.toolDuration.WithLabelValues(tool).Observe(elapsed.Seconds())
}

// RecordArchive counts one archive attempt.
func (m *Manager) RecordArchive(reason, outcome string) {
	if !m.enabled {
		return
	}
	m.archives.WithLabelValues(reason, outcome).Inc()
}

// RecordMatcherCompile counts one automaton compilation.
func (m *Manager) RecordMatcherCompile() {
	if !m.enabled {
		return
	}
	m.matcherCompiles.Inc()
}

// Handler serves the registry in the Prometheus text format.
func (m *Manager) Handler() http.Handler {
	if !m.enabled {
		return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		})
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is canceled.
func (m *Manager) Serve(ctx context.Context, addr string) error {
	if !m.enabled {
		return errors.New("metrics are disabled")
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
