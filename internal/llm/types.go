// Package llm speaks the streaming chat-completion protocols of the
// providers EasyCall supports and turns their streams into typed deltas.
package llm

import (
	"context"
	"log/slog"
	"strings"
)

// LevelTrace is below Debug, used for wire-level payload logging.
const LevelTrace = slog.Level(-8)

// DeltaKind classifies an incremental fragment of a streamed response.
type DeltaKind string

const (
	// DeltaText is visible assistant text, including any inline <think> markup.
	DeltaText DeltaKind = "text"

	// DeltaReasoningStandard comes from a dedicated reasoning field
	// (reasoning_content, reasoning_details, Anthropic thinking blocks).
	DeltaReasoningStandard DeltaKind = "reasoning_standard"

	// DeltaReasoningInline is text found between <think> and </think>.
	DeltaReasoningInline DeltaKind = "reasoning_inline"
)

// DeltaSink receives deltas as they are decoded. It must not block for long;
// the decoder calls it inline.
type DeltaSink func(kind DeltaKind, delta string)

// Message is a chat message in OpenAI wire shape. Content is a string, a
// []ContentPart, or nil (serialized as null for tool-calling assistant turns).
type Message struct {
	Role             string     `json:"role"`
	Content          any        `json:"content"`
	ReasoningContent string     `json:"reasoning_content,omitempty"`
	ToolCalls        []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID       string     `json:"tool_call_id,omitempty"`
}

// ContentPart is one element of a multimodal user message.
type ContentPart struct {
	Type       string      `json:"type"`
	Text       string      `json:"text,omitempty"`
	ImageURL   *ImageURL   `json:"image_url,omitempty"`
	InputAudio *InputAudio `json:"input_audio,omitempty"`
}

// ImageURL carries an image as a URL or data: URI.
type ImageURL struct {
	URL string `json:"url"`
}

// InputAudio carries base64 audio and its container format (wav, mp3).
type InputAudio struct {
	Data   string `json:"data"`
	Format string `json:"format"`
}

// TextPart is shorthand for a text content part.
func TextPart(text string) ContentPart {
	return ContentPart{Type: "text", Text: text}
}

// ContentText flattens a message's content to plain text, joining text
// parts with newlines and ignoring binary parts.
func ContentText(m Message) string {
	switch c := m.Content.(type) {
	case string:
		return c
	case []ContentPart:
		var texts []string
		for _, p := range c {
			if p.Type == "text" && p.Text != "" {
				texts = append(texts, p.Text)
			}
		}
		return strings.Join(texts, "\n")
	default:
		return ""
	}
}

// ToolCall is a complete function call requested by the model.
type ToolCall struct {
	ID       string       `json:"id"`
	Type     string       `json:"type"`
	Function FunctionCall `json:"function"`
}

// FunctionCall names the function and carries its raw JSON arguments.
type FunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// Request is one streamed completion request. Tools are OpenAI-format
// function definitions; an empty slice disables tool calling.
type Request struct {
	Model       string
	Messages    []Message
	Tools       []map[string]any
	Temperature float64
}

// Turn is the accumulated result of one streamed response.
type Turn struct {
	Text              string
	ReasoningStandard string
	ReasoningInline   string
	ToolCalls         []ToolCall
}

// Streamer completes one request, pushing deltas to sink as they arrive.
type Streamer interface {
	StreamTurn(ctx context.Context, req Request, sink DeltaSink) (*Turn, error)
}
