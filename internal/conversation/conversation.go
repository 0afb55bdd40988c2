// Package conversation models chat conversations, their archives, and
// the persisted application state they live in.
package conversation

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nugget/easycall/internal/memory"
)

// Conversation status values.
const (
	StatusActive   = "active"
	StatusArchived = "archived"
)

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Part types.
const (
	PartText  = "text"
	PartImage = "image"
	PartAudio = "audio"
)

// Part is one piece of message content. Binary parts carry their mime
// type and base64 payload.
type Part struct {
	Type        string `json:"type"`
	Text        string `json:"text,omitempty"`
	Mime        string `json:"mime,omitempty"`
	BytesBase64 string `json:"bytesBase64,omitempty"`
	Name        string `json:"name,omitempty"`
}

// TextPart returns a text part.
func TextPart(text string) Part { return Part{Type: PartText, Text: text} }

// ProviderMeta records reasoning that accompanied an assistant reply.
type ProviderMeta struct {
	ReasoningStandard string `json:"reasoningStandard"`
	ReasoningInline   string `json:"reasoningInline"`
}

// Message is one stored chat message. ToolCall holds the raw
// provider-shaped events (an assistant message with tool_calls, then
// the tool result) produced while generating this message, preserved
// verbatim for history replay.
type Message struct {
	ID              string            `json:"id"`
	Role            string            `json:"role"`
	CreatedAt       time.Time         `json:"createdAt"`
	Parts           []Part            `json:"parts"`
	ExtraTextBlocks []string          `json:"extraTextBlocks,omitempty"`
	ProviderMeta    *ProviderMeta     `json:"providerMeta,omitempty"`
	ToolCall        []json.RawMessage `json:"toolCall,omitempty"`
}

// Text joins the message's non-blank text parts with sep.
func (m Message) Text(sep string) string {
	var texts []string
	for _, p := range m.Parts {
		if p.Type == PartText && strings.TrimSpace(p.Text) != "" {
			texts = append(texts, p.Text)
		}
	}
	return strings.Join(texts, sep)
}

// CountParts returns how many parts of the given type m has.
func (m Message) CountParts(typ string) int {
	n := 0
	for _, p := range m.Parts {
		if p.Type == typ {
			n++
		}
	}
	return n
}

// Conversation is an ordered chat between the user and one agent.
type Conversation struct {
	ID                    string     `json:"id"`
	Title                 string     `json:"title"`
	APIConfigID           string     `json:"apiConfigId"`
	AgentID               string     `json:"agentId"`
	CreatedAt             time.Time  `json:"createdAt"`
	UpdatedAt             time.Time  `json:"updatedAt"`
	LastUserAt            *time.Time `json:"lastUserAt,omitempty"`
	LastAssistantAt       *time.Time `json:"lastAssistantAt,omitempty"`
	LastContextUsageRatio float64    `json:"lastContextUsageRatio"`
	Status                string     `json:"status"`
	Messages              []Message  `json:"messages"`
}

// Archive is a conversation moved out of the active set, with the
// summary produced when it was archived.
type Archive struct {
	ArchiveID  string       `json:"archiveId"`
	ArchivedAt time.Time    `json:"archivedAt"`
	Reason     string       `json:"reason"`
	Summary    string       `json:"summary"`
	Source     Conversation `json:"sourceConversation"`
}

// State is everything the store persists. It is loaded and saved as a
// whole under the store lock.
type State struct {
	Conversations []Conversation `json:"conversations"`
	Archives      []Archive      `json:"archivedConversations"`
	Memories      []memory.Entry `json:"memories"`
}

// NewID generates a new UUIDv7.
func NewID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New().String()
	}
	return id.String()
}

// NewTitle is the default title for a conversation started at now.
func NewTitle(now time.Time) string {
	stamp := now.UTC().Format(time.RFC3339)
	if len(stamp) > 16 {
		stamp = stamp[:16]
	}
	return "Chat " + stamp
}

// ActiveIndex returns the index of the most recent active conversation
// for agentID, or -1.
func (s *State) ActiveIndex(agentID string) int {
	for i := len(s.Conversations) - 1; i >= 0; i-- {
		c := &s.Conversations[i]
		if c.Status == StatusActive && c.AgentID == agentID {
			return i
		}
	}
	return -1
}

// FindActive returns the index of the active conversation with id, or -1.
func (s *State) FindActive(id string) int {
	for i := range s.Conversations {
		if s.Conversations[i].ID == id && s.Conversations[i].Status == StatusActive {
			return i
		}
	}
	return -1
}

// EnsureActive returns the index of the agent's active conversation,
// re-pointing it at apiConfigID if needed, or creates one.
func (s *State) EnsureActive(apiConfigID, agentID string, now time.Time) int {
	if i := s.ActiveIndex(agentID); i >= 0 {
		c := &s.Conversations[i]
		if c.APIConfigID != apiConfigID {
			c.APIConfigID = apiConfigID
			c.UpdatedAt = now
		}
		return i
	}

	s.Conversations = append(s.Conversations, Conversation{
		ID:          NewID(),
		Title:       NewTitle(now),
		APIConfigID: apiConfigID,
		AgentID:     agentID,
		CreatedAt:   now,
		UpdatedAt:   now,
		Status:      StatusActive,
		Messages:    []Message{},
	})
	return len(s.Conversations) - 1
}

// LatestSummary returns the summary of the most recent archive for
// agentID that has one.
func (s *State) LatestSummary(agentID string) (string, bool) {
	for i := len(s.Archives) - 1; i >= 0; i-- {
		a := &s.Archives[i]
		if a.Source.AgentID == agentID && strings.TrimSpace(a.Summary) != "" {
			return a.Summary, true
		}
	}
	return "", false
}

// KeepRecentTurns returns the messages of the last n turns. A turn is a
// user message plus the assistant message immediately after it, if any;
// messages that do not start or complete a turn are dropped.
func KeepRecentTurns(messages []Message, n int) []Message {
	var turns [][]Message
	for i := 0; i < len(messages); {
		if messages[i].Role != RoleUser {
			i++
			continue
		}
		turn := []Message{messages[i]}
		if i+1 < len(messages) && messages[i+1].Role == RoleAssistant {
			turn = append(turn, messages[i+1])
			i += 2
		} else {
			i++
		}
		turns = append(turns, turn)
	}

	start := max(len(turns)-n, 0)
	out := []Message{}
	for _, t := range turns[start:] {
		out = append(out, t...)
	}
	return out
}

// LastAt returns the creation time of the last message with role.
func LastAt(messages []Message, role string) *time.Time {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == role {
			t := messages[i].CreatedAt
			return &t
		}
	}
	return nil
}

// SearchText is the lower-cased text the user has written in c, one
// part per line. Assistant text is never included.
func SearchText(c *Conversation) string {
	var lines []string
	for _, m := range c.Messages {
		if m.Role != RoleUser {
			continue
		}
		for _, p := range m.Parts {
			if p.Type == PartText && strings.TrimSpace(p.Text) != "" {
				lines = append(lines, strings.ToLower(p.Text))
			}
		}
	}
	return strings.Join(lines, "\n")
}

// RenderContent renders m's parts for a model, with placeholders for
// binary attachments.
func RenderContent(m Message) string {
	chunks := make([]string, 0, len(m.Parts))
	for _, p := range m.Parts {
		switch p.Type {
		case PartText:
			chunks = append(chunks, p.Text)
		case PartImage:
			chunks = append(chunks, "[image attached]")
		case PartAudio:
			chunks = append(chunks, "[audio attached]")
		}
	}
	return strings.Join(chunks, " | ")
}

// RenderForContext renders m as a transcript line "ROLE: content".
func RenderForContext(m Message) string {
	return strings.ToUpper(m.Role) + ": " + RenderContent(m)
}
