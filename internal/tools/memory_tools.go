package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nugget/easycall/internal/conversation"
	"github.com/nugget/easycall/internal/memory"
)

// Memory tool names.
const (
	MemorySaveToolName      = "memory_save"
	MemorySaveBatchToolName = "memory_save_batch"
)

// MaxBatchItems caps the drafts accepted by one memory_save_batch call.
const MaxBatchItems = 7

// StateUpdater runs fn against the persisted state inside one
// read-modify-write cycle. A non-nil error from fn discards changes.
type StateUpdater interface {
	Update(ctx context.Context, fn func(*conversation.State) error) error
}

// Invalidator drops a derived cache after the memory set changes.
type Invalidator interface {
	Invalidate()
}

// MemoryTools saves long-term memories on the model's behalf.
type MemoryTools struct {
	store  StateUpdater
	cache  Invalidator
	now    func() time.Time
	logger *slog.Logger
}

// NewMemoryTools creates the memory tool handlers.
func NewMemoryTools(store StateUpdater, cache Invalidator, logger *slog.Logger) *MemoryTools {
	if logger == nil {
		logger = slog.Default()
	}
	return &MemoryTools{
		store:  store,
		cache:  cache,
		now:    time.Now,
		logger: logger.With("component", "memory_tools"),
	}
}

// SaveResult is the memory_save reply.
type SaveResult struct {
	memory.UpsertResult
	TotalMemories int `json:"totalMemories"`
}

// BatchResult is the memory_save_batch reply.
type BatchResult struct {
	Saved         bool                  `json:"saved"`
	Accepted      int                   `json:"accepted"`
	Rejected      int                   `json:"rejected"`
	Truncated     bool                  `json:"truncated"`
	Items         []memory.UpsertResult `json:"items"`
	TotalMemories int                   `json:"totalMemories"`
}

// parseDraft validates one tool-provided memory. prefix names the
// argument in error messages.
func parseDraft(content any, keywords any, prefix string) (memory.Draft, error) {
	text, _ := content.(string)
	text = strings.TrimSpace(text)
	if text == "" {
		return memory.Draft{}, fmt.Errorf("%s.content is required", prefix)
	}
	raw, ok := keywords.([]any)
	if !ok {
		return memory.Draft{}, fmt.Errorf("%s.keywords is required", prefix)
	}
	var kws []string
	for _, k := range raw {
		if s, ok := k.(string); ok {
			kws = append(kws, s)
		}
	}
	kws = memory.NormalizeKeywords(kws)
	if len(kws) == 0 {
		return memory.Draft{}, errors.New("memory_save.keywords must contain at least one valid keyword")
	}
	return memory.Draft{Content: text, Keywords: kws}, nil
}

// upsert saves drafts in one store update and invalidates the matcher
// cache when anything was written.
func (m *MemoryTools) upsert(ctx context.Context, drafts []memory.Draft) ([]memory.UpsertResult, int, error) {
	var results []memory.UpsertResult
	var total int
	now := m.now().UTC()

	err := m.store.Update(ctx, func(st *conversation.State) error {
		results = results[:0]
		for _, d := range drafts {
			var res memory.UpsertResult
			st.Memories, res = memory.Upsert(st.Memories, d, now)
			if !res.Saved {
				m.logger.Warn("memory save rejected",
					"reason", res.Reason,
					"keywords", strings.Join(d.Keywords, ","),
					"conversation", ConversationIDFromContext(ctx),
				)
			} else {
				m.logger.Debug("memory saved",
					"id", res.ID,
					"keywords", strings.Join(res.Keywords, ","),
					"content_len", len([]rune(d.Content)),
				)
			}
			results = append(results, res)
		}
		total = len(st.Memories)
		return nil
	})
	if err != nil {
		return nil, 0, fmt.Errorf("save memories: %w", err)
	}

	for _, r := range results {
		if r.Saved {
			m.cache.Invalidate()
			break
		}
	}
	return results, total, nil
}

// Save is the memory_save handler.
func (m *MemoryTools) Save(ctx context.Context, args map[string]any) (string, error) {
	d, err := parseDraft(args["content"], args["keywords"], MemorySaveToolName)
	if err != nil {
		return "", err
	}
	results, total, err := m.upsert(ctx, []memory.Draft{d})
	if err != nil {
		return "", err
	}
	return marshal(SaveResult{UpsertResult: results[0], TotalMemories: total})
}

// SaveBatch is the memory_save_batch handler. Items beyond
// MaxBatchItems are dropped and reported as truncated; one invalid item
// fails the whole call.
func (m *MemoryTools) SaveBatch(ctx context.Context, args map[string]any) (string, error) {
	items, ok := args["memories"].([]any)
	if !ok {
		return "", errors.New("memory_save_batch.memories is required")
	}
	if len(items) == 0 {
		return "", errors.New("memory_save_batch.memories must not be empty")
	}

	var drafts []memory.Draft
	truncated := false
	for _, item := range items {
		if len(drafts) >= MaxBatchItems {
			truncated = true
			break
		}
		obj, _ := item.(map[string]any)
		d, err := parseDraft(obj["content"], obj["keywords"], "memory_save_batch.memories[]")
		if err != nil {
			return "", err
		}
		drafts = append(drafts, d)
	}

	results, total, err := m.upsert(ctx, drafts)
	if err != nil {
		return "", err
	}
	accepted := 0
	for _, r := range results {
		if r.Saved {
			accepted++
		}
	}
	return marshal(BatchResult{
		Saved:         accepted > 0,
		Accepted:      accepted,
		Rejected:      len(results) - accepted,
		Truncated:     truncated,
		Items:         results,
		TotalMemories: total,
	})
}

func marshal(v any) (string, error) {
	out, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("encode tool result: %w", err)
	}
	return string(out), nil
}

// SaveDefinition returns the JSON Schema for memory_save.
func SaveDefinition() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"content": map[string]any{
				"type":        "string",
				"description": "The memory itself, short and specific.",
			},
			"keywords": map[string]any{
				"type":        "array",
				"items":       map[string]any{"type": "string"},
				"description": "Keywords that should bring this memory back into context later.",
			},
		},
		"required": []string{"content", "keywords"},
	}
}

// SaveBatchDefinition returns the JSON Schema for memory_save_batch.
func SaveBatchDefinition() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"memories": map[string]any{
				"type":     "array",
				"maxItems": MaxBatchItems,
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"content":  map[string]any{"type": "string"},
						"keywords": map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
					},
					"required": []string{"content", "keywords"},
				},
			},
		},
		"required": []string{"memories"},
	}
}
