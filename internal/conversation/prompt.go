package conversation

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nugget/easycall/internal/llm"
	"github.com/nugget/easycall/internal/memory"
)

// Media is an attachment sent with the latest user message.
type Media struct {
	Mime   string
	Base64 string
}

// HistoryMessage is one replayed message in provider shape.
type HistoryMessage struct {
	Role             string
	Text             string
	ToolCalls        []llm.ToolCall
	ToolCallID       string
	ReasoningContent string
}

// Prompt is everything needed to build one model request: a system
// preamble, replayed history, and the latest user turn with its
// system-side context block.
type Prompt struct {
	Preamble             string
	History              []HistoryMessage
	LatestUserText       string
	LatestUserSystemText string
	LatestImages         []Media
	LatestAudios         []Media
}

// Persona names the two parties of a conversation.
type Persona struct {
	AgentName   string
	AgentPrompt string
	UserName    string
	UserIntro   string
	Language    string
}

var languageInstructions = map[string]string{
	"en-US": "Respond in English by default.",
	"zh-CN": "默认使用中文回答。",
	"ja-JP": "通常は日本語で回答してください。",
	"ko-KR": "기본적으로 한국어로 답변해 주세요.",
}

func languageInstruction(lang string) string {
	if s, ok := languageInstructions[strings.TrimSpace(lang)]; ok {
		return s
	}
	return "Respond in the language the user writes in."
}

// Preamble renders the system preamble for p.
func (p Persona) Preamble() string {
	intro := strings.TrimSpace(p.UserIntro)
	if intro == "" {
		intro = "not provided"
	}
	var b strings.Builder
	b.WriteString("## Assistant\n")
	b.WriteString(p.AgentPrompt)
	b.WriteString("\n\n## User\n")
	fmt.Fprintf(&b, "- Name: %s\n", memory.XMLEscape(p.UserName))
	fmt.Fprintf(&b, "- About: %s\n\n", memory.XMLEscape(intro))
	b.WriteString("## Roles\n")
	fmt.Fprintf(&b, "- You are %q and the user is %q.\n", p.AgentName, p.UserName)
	b.WriteString("- Never treat yourself as the user or mix up the two identities.\n\n")
	b.WriteString("## Language\n")
	fmt.Fprintf(&b, "- %s\n", languageInstruction(p.Language))
	b.WriteString("- If the user asks for a specific reply language, use it.\n\n")
	return b.String()
}

// BuildPrompt prepares c for a model call. The latest user message is
// held out of History and becomes the latest turn. Each other message
// replays its recorded tool-call events before its own text; only user
// and assistant messages with visible text are replayed as text.
func BuildPrompt(c *Conversation, p Persona) Prompt {
	latest := -1
	for i := len(c.Messages) - 1; i >= 0; i-- {
		if c.Messages[i].Role == RoleUser {
			latest = i
			break
		}
	}

	var history []HistoryMessage
	for i, m := range c.Messages {
		if i == latest {
			continue
		}
		history = append(history, replayToolEvents(m.ToolCall)...)

		role := strings.ToLower(strings.TrimSpace(m.Role))
		if role != RoleUser && role != RoleAssistant {
			continue
		}
		text := RenderContent(m)
		if strings.TrimSpace(text) == "" {
			continue
		}
		history = append(history, HistoryMessage{Role: role, Text: text})
	}

	prompt := Prompt{Preamble: p.Preamble(), History: history}
	if latest < 0 {
		return prompt
	}

	m := c.Messages[latest]
	var texts, system []string
	for _, part := range m.Parts {
		switch part.Type {
		case PartText:
			texts = append(texts, part.Text)
		case PartImage:
			prompt.LatestImages = append(prompt.LatestImages, Media{Mime: part.Mime, Base64: part.BytesBase64})
		case PartAudio:
			prompt.LatestAudios = append(prompt.LatestAudios, Media{Mime: part.Mime, Base64: part.BytesBase64})
		}
	}
	for _, extra := range m.ExtraTextBlocks {
		extra = stripBoardMetadata(extra)
		if strings.TrimSpace(extra) != "" {
			system = append(system, extra)
		}
	}
	prompt.LatestUserText = strings.Join(texts, "\n")
	prompt.LatestUserSystemText = strings.Join(system, "\n")
	return prompt
}

// AddRecap appends a hidden exchange that hands the model the summary of
// the previous, archived conversation.
func (p *Prompt) AddRecap(summary string) {
	p.Preamble += "\n[HIDDEN ARCHIVE RECAP]\nUSER: Where did we leave off last time?\nASSISTANT: " +
		strings.TrimSpace(summary) + "\n"
}

// toolEvent is the subset of a stored provider event that is replayed.
type toolEvent struct {
	Role             string         `json:"role"`
	Content          any            `json:"content"`
	ToolCalls        []llm.ToolCall `json:"tool_calls"`
	ToolCallID       *string        `json:"tool_call_id"`
	ReasoningContent string         `json:"reasoning_content"`
}

func replayToolEvents(events []json.RawMessage) []HistoryMessage {
	var out []HistoryMessage
	for _, raw := range events {
		var ev toolEvent
		if err := json.Unmarshal(raw, &ev); err != nil {
			continue
		}
		text, _ := ev.Content.(string)
		switch strings.ToLower(strings.TrimSpace(ev.Role)) {
		case RoleAssistant:
			out = append(out, HistoryMessage{
				Role:             RoleAssistant,
				Text:             text,
				ToolCalls:        ev.ToolCalls,
				ReasoningContent: ev.ReasoningContent,
			})
		case RoleTool:
			if strings.TrimSpace(text) == "" && ev.ToolCallID == nil {
				continue
			}
			h := HistoryMessage{Role: RoleTool, Text: text}
			if ev.ToolCallID != nil {
				h.ToolCallID = *ev.ToolCallID
			}
			out = append(out, h)
		}
	}
	return out
}

// stripBoardMetadata removes keyword and reason lines that older memory
// boards carried.
func stripBoardMetadata(block string) string {
	if !strings.Contains(block, "<memory_board") {
		return block
	}
	var kept []string
	for _, line := range strings.Split(block, "\n") {
		t := strings.TrimSpace(line)
		if strings.HasPrefix(t, "<keywords>") || strings.HasPrefix(t, "</keywords>") ||
			strings.HasPrefix(t, "<reason>") || strings.HasPrefix(t, "</reason>") {
			continue
		}
		kept = append(kept, line)
	}
	return strings.Join(kept, "\n")
}

// TimeContext renders the current time block attached to each user turn.
func TimeContext(now time.Time) string {
	return "<time_context>\n  <utc>" + now.UTC().Format(time.RFC3339) + "</utc>\n</time_context>"
}
