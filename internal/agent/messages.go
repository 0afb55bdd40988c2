package agent

import (
	"strings"

	"github.com/nugget/easycall/internal/conversation"
	"github.com/nugget/easycall/internal/llm"
)

// BuildMessages renders p as provider messages: the preamble as the
// system message, the replayed history, then the latest user turn as
// text parts followed by any attachments the provider may receive.
// Tool-call history is dropped for kinds that cannot call tools.
func BuildMessages(p conversation.Prompt, kind llm.Kind, enableImage, enableAudio bool) []llm.Message {
	messages := make([]llm.Message, 0, len(p.History)+2)
	messages = append(messages, llm.Message{Role: "system", Content: p.Preamble})

	for _, h := range p.History {
		switch {
		case h.Role == conversation.RoleAssistant && len(h.ToolCalls) > 0:
			if !kind.SupportsTools() {
				if strings.TrimSpace(h.Text) != "" {
					messages = append(messages, llm.Message{Role: h.Role, Content: h.Text})
				}
				continue
			}
			m := llm.Message{Role: h.Role, ToolCalls: h.ToolCalls}
			if strings.TrimSpace(h.Text) != "" {
				m.Content = h.Text
			}
			if kind.EchoesReasoning() {
				m.ReasoningContent = h.ReasoningContent
			}
			messages = append(messages, m)
		case h.Role == conversation.RoleTool:
			if !kind.SupportsTools() {
				continue
			}
			messages = append(messages, llm.Message{Role: h.Role, Content: h.Text, ToolCallID: h.ToolCallID})
		default:
			messages = append(messages, llm.Message{Role: h.Role, Content: h.Text})
		}
	}

	parts := []llm.ContentPart{llm.TextPart(p.LatestUserText)}
	if strings.TrimSpace(p.LatestUserSystemText) != "" {
		parts = append(parts, llm.TextPart(p.LatestUserSystemText))
	}
	if kind.SupportsMultimodal() {
		if enableImage {
			for _, img := range p.LatestImages {
				parts = append(parts, llm.ContentPart{
					Type:     "image_url",
					ImageURL: &llm.ImageURL{URL: "data:" + img.Mime + ";base64," + img.Base64},
				})
			}
		}
		if enableAudio {
			for _, a := range p.LatestAudios {
				parts = append(parts, llm.ContentPart{
					Type:       "input_audio",
					InputAudio: &llm.InputAudio{Data: a.Base64, Format: audioFormat(a.Mime)},
				})
			}
		}
	}
	messages = append(messages, llm.Message{Role: conversation.RoleUser, Content: parts})
	return messages
}

// audioFormat maps a mime type to the container name providers expect.
func audioFormat(mime string) string {
	m := strings.ToLower(mime)
	switch {
	case strings.Contains(m, "wav"):
		return "wav"
	case strings.Contains(m, "ogg"):
		return "ogg"
	case strings.Contains(m, "webm"):
		return "webm"
	default:
		return "mp3"
	}
}
