package archive

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nugget/easycall/internal/conversation"
	"github.com/nugget/easycall/internal/llm"
	"github.com/nugget/easycall/internal/memory"
)

// Summary errors.
var (
	ErrEmptySummary       = errors.New("archive summary is empty")
	ErrUnparseableSummary = errors.New("archive summary is not valid JSON")
)

// MaxDrafts caps the memories extracted from one archive.
const MaxDrafts = 7

// defaultSummaryTimeout bounds one summarization call.
const defaultSummaryTimeout = 90 * time.Second

// Summarizer asks a model to summarize a conversation that is about to
// be archived and to propose long-term memories from it.
type Summarizer struct {
	streamer    llm.Streamer
	model       string
	temperature float64
	timeout     time.Duration
	logger      *slog.Logger
}

// NewSummarizer creates a Summarizer. A zero timeout uses the default.
func NewSummarizer(streamer llm.Streamer, model string, temperature float64, timeout time.Duration, logger *slog.Logger) *Summarizer {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = defaultSummaryTimeout
	}
	return &Summarizer{
		streamer:    streamer,
		model:       model,
		temperature: temperature,
		timeout:     timeout,
		logger:      logger.With("component", "archive"),
	}
}

// Request is the input for one summarization.
type Request struct {
	Source    *conversation.Conversation
	AgentName string
	UserName  string
	// MemoryBoard is the rendered board of memories already matched
	// against the source conversation, if any.
	MemoryBoard string
	// MemoryToolEnabled mirrors whether memory-save is on for the api.
	MemoryToolEnabled bool
}

// Result is a parsed summary.
type Result struct {
	Summary string
	Drafts  []memory.Draft
}

// Summarize runs one non-tool completion and parses its JSON reply.
func (s *Summarizer) Summarize(ctx context.Context, req Request) (*Result, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	system, user := BuildSummaryPrompt(req)
	turn, err := s.streamer.StreamTurn(ctx, llm.Request{
		Model: s.model,
		Messages: []llm.Message{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		Temperature: s.temperature,
	}, nil)
	if err != nil {
		return nil, fmt.Errorf("summarize conversation: %w", err)
	}

	res, err := ParseSummary(turn.Text)
	if err != nil {
		s.logger.Warn("archive summary rejected",
			"conversation", req.Source.ID,
			"error", err,
			"raw", truncateRunes(turn.Text, 240),
		)
		return nil, err
	}
	s.logger.Debug("archive summary parsed",
		"conversation", req.Source.ID,
		"summary_len", len([]rune(res.Summary)),
		"drafts", len(res.Drafts),
	)
	return res, nil
}

// BuildSummaryPrompt returns the system preamble and user text of a
// summarization request.
func BuildSummaryPrompt(req Request) (system, user string) {
	toolRule := "Tools: tool calls are not available for this task; do not call any tool."
	if req.MemoryToolEnabled {
		toolRule = "Tools: only memory-save is allowed, at most 3 times; once the limit is reached output the summary immediately."
	}

	instruction := "You are archiving a conversation. Output strict JSON only, no markdown, no code fences.\n" +
		`JSON schema: {"summary":"string","memories":[{"content":"string","keywords":["string"]}]}` + "\n" +
		"Rules:\n" +
		"1) summary is required: briefly state the goal, conclusions, and open items of the conversation.\n" +
		fmt.Sprintf("2) memories: at most %d; only when necessary; keep only information of lasting value to the user.\n", MaxDrafts) +
		"3) Never record sensitive data (passwords, keys, ID numbers, bank cards and the like).\n" +
		fmt.Sprintf("4) You are %s and the user is called %s.\n", req.AgentName, req.UserName) +
		"5) " + toolRule

	var transcript strings.Builder
	for _, m := range req.Source.Messages {
		transcript.WriteString(conversation.RenderForContext(m))
		transcript.WriteByte('\n')
	}

	extra := ""
	if req.MemoryBoard != "" {
		extra = "[MEMORY BOARD]\n" + req.MemoryBoard
	}

	system = "[ARCHIVE TASK]\n" + instruction
	user = "[CONVERSATION]\n" + strings.TrimSpace(transcript.String()) + "\n" + extra
	return system, user
}

type summaryDraft struct {
	Summary  string         `json:"summary"`
	Memories []memory.Draft `json:"memories"`
}

// ParseSummary reads a model reply as summary JSON. A reply with prose
// around the object is accepted by taking the span from the first '{'
// to the last '}'.
func ParseSummary(raw string) (*Result, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, ErrUnparseableSummary
	}

	var d summaryDraft
	if err := json.Unmarshal([]byte(trimmed), &d); err != nil {
		start := strings.Index(trimmed, "{")
		end := strings.LastIndex(trimmed, "}")
		if start < 0 || end <= start {
			return nil, ErrUnparseableSummary
		}
		d = summaryDraft{}
		if err := json.Unmarshal([]byte(trimmed[start:end+1]), &d); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnparseableSummary, err)
		}
	}

	summary := memory.CollapseSpace(d.Summary)
	if summary == "" {
		return nil, ErrEmptySummary
	}
	drafts := d.Memories
	if len(drafts) > MaxDrafts {
		drafts = drafts[:MaxDrafts]
	}
	return &Result{Summary: summary, Drafts: drafts}, nil
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
