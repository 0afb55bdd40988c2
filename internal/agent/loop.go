// Package agent runs the chat core: the tool-calling loop that drives a
// streaming model, and the service that wraps it with archiving,
// memory injection, and persistence.
package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nugget/easycall/internal/llm"
	"github.com/nugget/easycall/internal/metrics"
	"github.com/nugget/easycall/internal/tools"
)

// ErrInvalidToolArguments means the model produced a tool call whose
// arguments are not a JSON object. The turn is abandoned.
var ErrInvalidToolArguments = errors.New("parse tool arguments failed")

// DefaultMaxIterations bounds the tool loop when none is configured.
const DefaultMaxIterations = 10

// finalInstruction is sent once the tool budget is spent.
const finalInstruction = "Tool call limit reached. Report now: do not call any more tools, " +
	"answer directly from what you already have, and state any uncertainty."

// Orchestrator runs one reply through the bounded tool loop. Tool calls
// run sequentially so the history stays ordered.
type Orchestrator struct {
	streamer      llm.Streamer
	kind          llm.Kind
	registry      *tools.Registry
	maxIterations int
	metrics       *metrics.Manager
	logger        *slog.Logger
}

// NewOrchestrator creates an Orchestrator. A nil registry, or a kind that
// cannot call tools, runs every reply as a single plain completion.
func NewOrchestrator(streamer llm.Streamer, kind llm.Kind, registry *tools.Registry, maxIterations int, m *metrics.Manager, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	if m == nil {
		m = metrics.NoOpManager()
	}
	if maxIterations <= 0 {
		maxIterations = DefaultMaxIterations
	}
	return &Orchestrator{
		streamer:      streamer,
		kind:          kind,
		registry:      registry,
		maxIterations: maxIterations,
		metrics:       m,
		logger:        logger.With("component", "agent", "provider", kind.String()),
	}
}

// RunRequest is the input of one reply.
type RunRequest struct {
	Model       string
	Temperature float64
	Messages    []llm.Message
}

// Reply is the accumulated result of a reply across every turn of the
// loop. ToolEvents holds the provider-shaped assistant and tool messages
// exchanged, in order, for storage and later replay.
type Reply struct {
	Text              string
	ReasoningStandard string
	ReasoningInline   string
	ToolEvents        []json.RawMessage
	Iterations        int
}

func (r *Reply) addTurn(t *llm.Turn) {
	if strings.TrimSpace(t.Text) != "" {
		if strings.TrimSpace(r.Text) != "" {
			r.Text += "\n\n"
		}
		r.Text += t.Text
	}
	if strings.TrimSpace(t.ReasoningStandard) != "" {
		r.ReasoningStandard += t.ReasoningStandard
	}
	if strings.TrimSpace(t.ReasoningInline) != "" {
		r.ReasoningInline += t.ReasoningInline
	}
}

func (r *Reply) addEvent(m llm.Message) error {
	raw, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("encode tool history event: %w", err)
	}
	r.ToolEvents = append(r.ToolEvents, raw)
	return nil
}

// Run produces one reply. Transport failures and malformed tool
// arguments are returned as errors; a tool that fails hands its error
// text back to the model instead. When the iteration budget runs out a
// final tool-free completion is forced so Run still answers.
func (o *Orchestrator) Run(ctx context.Context, req RunRequest, sink Sink) (*Reply, error) {
	messages := append([]llm.Message(nil), req.Messages...)
	reply := &Reply{}

	var defs []map[string]any
	if o.kind.SupportsTools() && o.registry != nil && o.registry.Len() > 0 {
		defs = o.registry.List()
	}

	if len(defs) == 0 {
		turn, err := o.stream(ctx, req, messages, nil, sink)
		if err != nil {
			return nil, err
		}
		reply.Iterations = 1
		reply.addTurn(turn)
		return reply, nil
	}

	for i := 0; i < o.maxIterations; i++ {
		turn, err := o.stream(ctx, req, messages, defs, sink)
		if err != nil {
			return nil, err
		}
		reply.Iterations++
		reply.addTurn(turn)

		if len(turn.ToolCalls) == 0 {
			return reply, nil
		}

		for j, call := range turn.ToolCalls {
			if strings.TrimSpace(call.ID) == "" {
				call.ID = fmt.Sprintf("tool_call_%d_%d", i, j)
			}
			assistant := llm.Message{Role: "assistant", ToolCalls: []llm.ToolCall{call}}
			if j == 0 && strings.TrimSpace(turn.Text) != "" {
				assistant.Content = turn.Text
			}
			if o.kind.EchoesReasoning() {
				assistant.ReasoningContent = turn.ReasoningStandard
			}

			result, err := o.execute(ctx, call, sink)
			if err != nil {
				return nil, err
			}
			toolMsg := llm.Message{Role: "tool", Content: result, ToolCallID: call.ID}

			messages = append(messages, assistant, toolMsg)
			if err := reply.addEvent(assistant); err != nil {
				return nil, err
			}
			if err := reply.addEvent(toolMsg); err != nil {
				return nil, err
			}
		}
	}

	o.logger.Warn("tool iteration limit reached, forcing final answer",
		"iterations", o.maxIterations,
	)
	sink.toolStatus("tools", ToolFailed, "Tool call limit reached, stopping tool calls and reporting now.")

	messages = append(messages, llm.Message{Role: "user", Content: finalInstruction})
	turn, err := o.stream(ctx, req, messages, nil, sink)
	if err != nil {
		return nil, err
	}
	reply.Iterations++
	reply.addTurn(turn)
	return reply, nil
}

func (o *Orchestrator) stream(ctx context.Context, req RunRequest, messages []llm.Message, defs []map[string]any, sink Sink) (*llm.Turn, error) {
	turn, err := o.streamer.StreamTurn(ctx, llm.Request{
		Model:       req.Model,
		Messages:    messages,
		Tools:       defs,
		Temperature: req.Temperature,
	}, sink.deltas())
	if err != nil {
		o.metrics.RecordStreamTurn(metrics.StatusError)
		return nil, err
	}
	o.metrics.RecordStreamTurn(metrics.StatusOK)
	return turn, nil
}

// execute runs one tool call. Only malformed arguments are returned as
// an error; every other failure becomes the tool result.
func (o *Orchestrator) execute(ctx context.Context, call llm.ToolCall, sink Sink) (string, error) {
	name := call.Function.Name
	sink.toolStatus(name, ToolRunning, "Calling tool: "+name)

	start := time.Now()
	result, err := o.registry.Execute(ctx, name, call.Function.Arguments)
	elapsed := time.Since(start)

	if err != nil {
		o.metrics.RecordToolCall(name, metrics.StatusError, elapsed)
		o.logger.Warn("tool call failed",
			"tool", name,
			"status", ToolFailed,
			"elapsed", elapsed.Round(time.Millisecond),
			"error", err,
		)
		sink.toolStatus(name, ToolFailed, fmt.Sprintf("Tool call failed: %s (%v)", name, err))
		if errors.Is(err, tools.ErrInvalidArguments) {
			return "", fmt.Errorf("%w: %w", ErrInvalidToolArguments, err)
		}
		return "Error: " + err.Error(), nil
	}

	o.metrics.RecordToolCall(name, metrics.StatusOK, elapsed)
	o.logger.Info("tool call completed",
		"tool", name,
		"status", ToolDone,
		"elapsed", elapsed.Round(time.Millisecond),
		"result_len", len(result),
	)
	sink.toolStatus(name, ToolDone, "Tool call finished: "+name)
	return result, nil
}
