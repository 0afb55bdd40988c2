package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nugget/easycall/internal/archive"
	"github.com/nugget/easycall/internal/config"
	"github.com/nugget/easycall/internal/conversation"
	"github.com/nugget/easycall/internal/llm"
	"github.com/nugget/easycall/internal/memory"
	"github.com/nugget/easycall/internal/metrics"
	"github.com/nugget/easycall/internal/tools"
)

// ErrEmptyMessage is returned by Send when there is nothing to send.
var ErrEmptyMessage = errors.New("message is empty")

// StateStore serializes access to the persisted state. View and Update
// hold the store lock for the duration of fn only.
type StateStore interface {
	View(ctx context.Context, fn func(*conversation.State) error) error
	Update(ctx context.Context, fn func(*conversation.State) error) error
}

// Options configure a Service.
type Options struct {
	Config   *config.Config
	Store    StateStore
	Streamer llm.Streamer
	Registry *tools.Registry
	// Cache is the memory matcher cache shared with the memory tools.
	Cache      *memory.Cache
	Summarizer *archive.Summarizer
	Metrics    *metrics.Manager
	Logger     *slog.Logger
	Now        func() time.Time
}

// Service is the chat entry point. It never holds the store lock while
// a model call is in flight, so every step that touches state re-reads
// it and tolerates changes made in between.
type Service struct {
	api        config.ApiConfig
	kind       llm.Kind
	agentID    string
	persona    conversation.Persona
	store      StateStore
	cache      *memory.Cache
	orch       *Orchestrator
	summarizer *archive.Summarizer
	metrics    *metrics.Manager
	logger     *slog.Logger
	now        func() time.Time
}

// NewService resolves the selected api config and wires the service.
func NewService(opts Options) (*Service, error) {
	if opts.Config == nil || opts.Store == nil || opts.Streamer == nil {
		return nil, errors.New("agent: config, store, and streamer are required")
	}
	api, err := opts.Config.SelectedAPIConfig()
	if err != nil {
		return nil, err
	}
	kind, err := llm.ParseKind(api.RequestFormat)
	if err != nil {
		return nil, err
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	m := opts.Metrics
	if m == nil {
		m = metrics.NoOpManager()
	}
	cache := opts.Cache
	if cache == nil {
		cache = memory.NewCache(m.RecordMatcherCompile)
	}
	summarizer := opts.Summarizer
	if summarizer == nil {
		summarizer = archive.NewSummarizer(opts.Streamer, api.Model, api.Temperature, 0, logger)
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	cfg := opts.Config
	return &Service{
		api:     api,
		kind:    kind,
		agentID: cfg.Agent.ID,
		persona: conversation.Persona{
			AgentName:   cfg.Agent.Name,
			AgentPrompt: cfg.Agent.SystemPrompt,
			UserName:    cfg.UserAlias,
			UserIntro:   cfg.UserIntro,
			Language:    cfg.Language,
		},
		store:      opts.Store,
		cache:      cache,
		orch:       NewOrchestrator(opts.Streamer, kind, opts.Registry, cfg.ToolMaxIterations, m, logger),
		summarizer: summarizer,
		metrics:    m,
		logger:     logger.With("component", "chat"),
		now:        now,
	}, nil
}

// Attachment is a binary input sent with a message.
type Attachment struct {
	Mime   string
	Base64 string
}

// SendInput is one user message.
type SendInput struct {
	Text   string
	Images []Attachment
	Audios []Attachment
}

// SendResult describes the reply to a message.
type SendResult struct {
	ConversationID     string `json:"conversationId"`
	LatestUserText     string `json:"latestUserText"`
	AssistantText      string `json:"assistantText"`
	ReasoningStandard  string `json:"reasoningStandard"`
	ReasoningInline    string `json:"reasoningInline"`
	ArchivedBeforeSend bool   `json:"archivedBeforeSend"`
}

// Send delivers one user message and returns the assistant's reply.
// The active conversation may be archived first. Events describing the
// reply as it streams go to sink.
func (s *Service) Send(ctx context.Context, in SendInput, sink Sink) (*SendResult, error) {
	if strings.TrimSpace(in.Text) == "" && len(in.Images) == 0 && len(in.Audios) == 0 {
		return nil, ErrEmptyMessage
	}

	archived, err := s.archiveBeforeSend(ctx, sink)
	if err != nil {
		return nil, err
	}

	prompt, convID, err := s.appendUserMessage(ctx, in)
	if err != nil {
		return nil, err
	}

	reply, err := s.orch.Run(tools.WithConversationID(ctx, convID), RunRequest{
		Model:       s.api.Model,
		Temperature: s.api.Temperature,
		Messages:    BuildMessages(prompt, s.kind, s.api.EnableImage, s.api.EnableAudio),
	}, sink)
	if err != nil {
		return nil, err
	}

	if err := s.appendAssistantMessage(ctx, convID, reply); err != nil {
		return nil, err
	}

	return &SendResult{
		ConversationID:     convID,
		LatestUserText:     in.Text,
		AssistantText:      reply.Text,
		ReasoningStandard:  reply.ReasoningStandard,
		ReasoningInline:    reply.ReasoningInline,
		ArchivedBeforeSend: archived,
	}, nil
}

// archiveBeforeSend checks the active conversation and archives it when
// Decide says so. A failed summary falls back to trimming; a fallback
// that still overflows resets the conversation and returns
// archive.ErrContextReset so the user resends.
func (s *Service) archiveBeforeSend(ctx context.Context, sink Sink) (bool, error) {
	var (
		decision archive.Decision
		source   conversation.Conversation
		board    string
	)
	err := s.store.Update(ctx, func(st *conversation.State) error {
		i := st.EnsureActive(s.api.ID, s.agentID, s.now())
		c := &st.Conversations[i]
		decision = archive.Decide(c, s.api.ContextWindowTokens, s.now())
		if decision.ShouldArchive {
			source = *c
			board = s.cache.Board(st.Memories, conversation.SearchText(c), "")
		}
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("check archive: %w", err)
	}

	s.logger.Info("archive decision",
		"should_archive", decision.ShouldArchive,
		"forced", decision.Forced,
		"reason", decision.Reason,
		"usage_ratio", decision.UsageRatio,
	)
	if !decision.ShouldArchive {
		return false, nil
	}

	if decision.Forced {
		sink.toolStatus("archive", ToolRunning, "Context is nearly full, archiving the conversation.")
	}

	res, sumErr := s.summarizer.Summarize(ctx, archive.Request{
		Source:            &source,
		AgentName:         s.persona.AgentName,
		UserName:          s.persona.UserName,
		MemoryBoard:       board,
		MemoryToolEnabled: s.api.ToolEnabled(config.ToolMemorySave),
	})
	if sumErr != nil {
		s.logger.Warn("archive summary failed, falling back to recent turns",
			"conversation", source.ID,
			"error", sumErr,
		)
	}

	var (
		outcome  archive.Outcome
		archived bool
		resetErr error
		label    string
	)
	err = s.store.Update(ctx, func(st *conversation.State) error {
		if sumErr != nil {
			resetErr = archive.Fallback(st, &source, s.api.ContextWindowTokens, s.now())
			label = metrics.OutcomeFallback
			if resetErr != nil {
				label = metrics.OutcomeReset
			}
			return nil
		}
		out, err := archive.Apply(st, &source, s.api.ID, decision.Reason, res, s.now())
		if errors.Is(err, archive.ErrConversationChanged) {
			label = metrics.OutcomeConflict
			return nil
		}
		if err != nil {
			return err
		}
		outcome, archived, label = out, true, metrics.OutcomeArchived
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("apply archive: %w", err)
	}
	s.metrics.RecordArchive(decision.Reason, label)

	if outcome.MergedMemories > 0 {
		s.cache.Invalidate()
	}
	if archived {
		s.logger.Info("conversation archived",
			"conversation", source.ID,
			"archive", outcome.ArchiveID,
			"reason", decision.Reason,
			"summary_len", len([]rune(res.Summary)),
			"merged_memories", outcome.MergedMemories,
		)
	}

	if resetErr != nil {
		if decision.Forced {
			sink.toolStatus("archive", ToolFailed, "Archiving failed and the context is still over the limit, a new conversation was started.")
		}
		return false, resetErr
	}

	if decision.Forced {
		if archived {
			sink.toolStatus("archive", ToolDone, "Archive complete, context optimized.")
		} else {
			sink.toolStatus("archive", ToolFailed, "Archiving failed, kept the most recent turns instead.")
		}
	}
	return archived, nil
}

// appendUserMessage stores the user message with its memory board and
// builds the prompt for it.
func (s *Service) appendUserMessage(ctx context.Context, in SendInput) (conversation.Prompt, string, error) {
	var (
		prompt conversation.Prompt
		convID string
	)
	err := s.store.Update(ctx, func(st *conversation.State) error {
		now := s.now()
		i := st.EnsureActive(s.api.ID, s.agentID, now)
		c := &st.Conversations[i]

		msg := conversation.Message{
			ID:        conversation.NewID(),
			Role:      conversation.RoleUser,
			CreatedAt: now,
			Parts:     userParts(in),
		}
		if board := s.cache.Board(st.Memories, conversation.SearchText(c), in.Text); board != "" {
			msg.ExtraTextBlocks = []string{board}
		}

		c.Messages = append(c.Messages, msg)
		c.UpdatedAt = now
		c.LastUserAt = &now
		c.LastContextUsageRatio = conversation.UsageRatio(c.Messages, s.api.ContextWindowTokens)

		prompt = conversation.BuildPrompt(c, s.persona)
		if summary, ok := st.LatestSummary(s.agentID); ok {
			prompt.AddRecap(summary)
		}
		if strings.TrimSpace(prompt.LatestUserSystemText) != "" {
			prompt.LatestUserSystemText += "\n\n"
		}
		prompt.LatestUserSystemText += conversation.TimeContext(now)
		convID = c.ID
		return nil
	})
	if err != nil {
		return conversation.Prompt{}, "", fmt.Errorf("store user message: %w", err)
	}
	return prompt, convID, nil
}

func userParts(in SendInput) []conversation.Part {
	var parts []conversation.Part
	if strings.TrimSpace(in.Text) != "" {
		parts = append(parts, conversation.TextPart(in.Text))
	}
	for _, img := range in.Images {
		parts = append(parts, conversation.Part{Type: conversation.PartImage, Mime: img.Mime, BytesBase64: img.Base64})
	}
	for _, a := range in.Audios {
		parts = append(parts, conversation.Part{Type: conversation.PartAudio, Mime: a.Mime, BytesBase64: a.Base64})
	}
	return parts
}

// appendAssistantMessage stores the reply if convID is still active.
func (s *Service) appendAssistantMessage(ctx context.Context, convID string, reply *Reply) error {
	err := s.store.Update(ctx, func(st *conversation.State) error {
		i := st.FindActive(convID)
		if i < 0 {
			s.logger.Warn("conversation no longer active, reply not stored", "conversation", convID)
			return nil
		}
		c := &st.Conversations[i]
		now := s.now()

		msg := conversation.Message{
			ID:        conversation.NewID(),
			Role:      conversation.RoleAssistant,
			CreatedAt: now,
			Parts:     []conversation.Part{conversation.TextPart(reply.Text)},
			ToolCall:  reply.ToolEvents,
		}
		standard := strings.TrimSpace(reply.ReasoningStandard)
		inline := strings.TrimSpace(reply.ReasoningInline)
		if standard != "" || inline != "" {
			msg.ProviderMeta = &conversation.ProviderMeta{ReasoningStandard: standard, ReasoningInline: inline}
		}

		c.Messages = append(c.Messages, msg)
		c.UpdatedAt = now
		c.LastAssistantAt = &now
		c.LastContextUsageRatio = conversation.UsageRatio(c.Messages, s.api.ContextWindowTokens)
		return nil
	})
	if err != nil {
		return fmt.Errorf("store assistant message: %w", err)
	}
	return nil
}

// ForceArchiveResult describes a manual archive.
type ForceArchiveResult struct {
	ArchiveID      string `json:"archiveId"`
	Summary        string `json:"summary"`
	MergedMemories int    `json:"mergedMemories"`
}

// ForceArchive summarizes and archives the active conversation now.
// Unlike the automatic path a failed summary is returned as an error
// and the conversation is left untouched.
func (s *Service) ForceArchive(ctx context.Context) (*ForceArchiveResult, error) {
	var (
		source conversation.Conversation
		board  string
		found  bool
	)
	err := s.store.View(ctx, func(st *conversation.State) error {
		i := st.ActiveIndex(s.agentID)
		if i < 0 {
			return nil
		}
		c := &st.Conversations[i]
		source, found = *c, true
		board = s.cache.Board(st.Memories, conversation.SearchText(c), "")
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("load active conversation: %w", err)
	}
	if !found || len(source.Messages) == 0 {
		return nil, archive.ErrNothingToArchive
	}

	res, err := s.summarizer.Summarize(ctx, archive.Request{
		Source:            &source,
		AgentName:         s.persona.AgentName,
		UserName:          s.persona.UserName,
		MemoryBoard:       board,
		MemoryToolEnabled: s.api.ToolEnabled(config.ToolMemorySave),
	})
	if err != nil {
		s.metrics.RecordArchive(archive.ReasonManual, metrics.StatusError)
		return nil, err
	}

	var out archive.Outcome
	err = s.store.Update(ctx, func(st *conversation.State) error {
		var err error
		out, err = archive.Apply(st, &source, s.api.ID, archive.ReasonManual, res, s.now())
		return err
	})
	if errors.Is(err, archive.ErrConversationChanged) {
		s.metrics.RecordArchive(archive.ReasonManual, metrics.OutcomeConflict)
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("apply archive: %w", err)
	}
	s.metrics.RecordArchive(archive.ReasonManual, metrics.OutcomeArchived)
	if out.MergedMemories > 0 {
		s.cache.Invalidate()
	}

	s.logger.Info("conversation archived",
		"conversation", source.ID,
		"archive", out.ArchiveID,
		"reason", archive.ReasonManual,
		"merged_memories", out.MergedMemories,
	)
	return &ForceArchiveResult{
		ArchiveID:      out.ArchiveID,
		Summary:        res.Summary,
		MergedMemories: out.MergedMemories,
	}, nil
}
