package archive

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/yuin/goldmark"

	"github.com/nugget/easycall/internal/conversation"
)

// Export formats.
const (
	FormatJSON     = "json"
	FormatMarkdown = "markdown"
	FormatHTML     = "html"
)

// ParseFormat normalizes an export format name.
func ParseFormat(s string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "json":
		return FormatJSON, nil
	case "markdown", "md":
		return FormatMarkdown, nil
	case "html", "htm":
		return FormatHTML, nil
	default:
		return "", fmt.Errorf("unsupported export format %q, use json, markdown, or html", s)
	}
}

// ExportPayload is the JSON export envelope.
type ExportPayload struct {
	Version    int                  `json:"version"`
	ExportedAt time.Time            `json:"exportedAt"`
	Archive    conversation.Archive `json:"archive"`
}

// Export renders a in the given format.
func Export(a *conversation.Archive, format string, now time.Time) ([]byte, error) {
	switch format {
	case FormatJSON:
		return json.MarshalIndent(ExportPayload{Version: 1, ExportedAt: now, Archive: *a}, "", "  ")
	case FormatMarkdown:
		return []byte(Markdown(a)), nil
	case FormatHTML:
		return renderHTML(a)
	default:
		return nil, fmt.Errorf("unsupported export format %q", format)
	}
}

// toolResultRunes caps tool results in the Markdown timeline.
const toolResultRunes = 300

// Markdown renders a as a readable Markdown document.
func Markdown(a *conversation.Archive) string {
	blocks := []string{
		"# Conversation Archive",
		"- Title: " + a.Source.Title,
		"- Archived: " + a.ArchivedAt.UTC().Format(time.RFC3339),
		"- Reason: " + a.Reason,
	}
	if s := strings.TrimSpace(a.Summary); s != "" {
		blocks = append(blocks, "", "## Summary", s)
	}
	blocks = append(blocks, "", "## Timeline")
	for _, m := range a.Source.Messages {
		switch m.Role {
		case conversation.RoleUser, conversation.RoleAssistant, conversation.RoleTool:
			blocks = append(blocks, "", messageBlock(m))
		}
	}
	return strings.Join(blocks, "\n")
}

var roleLabels = map[string]string{
	conversation.RoleUser:      "User",
	conversation.RoleAssistant: "Assistant",
	conversation.RoleTool:      "Tool",
}

func messageBlock(m conversation.Message) string {
	lines := []string{fmt.Sprintf("### %s  %s", roleLabels[m.Role], m.CreatedAt.UTC().Format(time.RFC3339))}

	var texts []string
	for _, p := range m.Parts {
		if p.Type == conversation.PartText {
			if t := strings.TrimSpace(p.Text); t != "" {
				texts = append(texts, t)
			}
		}
	}
	if len(texts) > 0 {
		lines = append(lines, strings.Join(texts, "\n"))
	}
	if n := m.CountParts(conversation.PartImage); n > 0 {
		lines = append(lines, fmt.Sprintf("- Images x%d", n))
	}
	if n := m.CountParts(conversation.PartAudio); n > 0 {
		lines = append(lines, fmt.Sprintf("- Audio x%d", n))
	}
	lines = append(lines, toolCallLines(m.ToolCall)...)

	if len(lines) == 1 {
		lines = append(lines, "- (empty message)")
	}
	return strings.Join(lines, "\n")
}

type storedEvent struct {
	Role      string `json:"role"`
	Content   any    `json:"content"`
	ToolCalls []struct {
		Function struct {
			Name      string `json:"name"`
			Arguments string `json:"arguments"`
		} `json:"function"`
	} `json:"tool_calls"`
}

func toolCallLines(events []json.RawMessage) []string {
	var out []string
	for _, raw := range events {
		var ev storedEvent
		if err := json.Unmarshal(raw, &ev); err != nil {
			continue
		}
		switch ev.Role {
		case conversation.RoleAssistant:
			for _, c := range ev.ToolCalls {
				name := c.Function.Name
				if name == "" {
					name = "unknown"
				}
				if args := strings.TrimSpace(c.Function.Arguments); args != "" {
					out = append(out, fmt.Sprintf("- Tool call: %s | args: %s", name, args))
				} else {
					out = append(out, "- Tool call: "+name)
				}
			}
		case conversation.RoleTool:
			content, _ := ev.Content.(string)
			content = strings.TrimSpace(content)
			if content == "" {
				continue
			}
			if r := []rune(content); len(r) > toolResultRunes {
				content = string(r[:toolResultRunes]) + "..."
			}
			out = append(out, "- Tool result: "+content)
		}
	}
	return out
}

// renderHTML renders the Markdown export as a standalone HTML page.
func renderHTML(a *conversation.Archive) ([]byte, error) {
	var body bytes.Buffer
	if err := goldmark.Convert([]byte(Markdown(a)), &body); err != nil {
		return nil, fmt.Errorf("render archive html: %w", err)
	}

	var page bytes.Buffer
	fmt.Fprintf(&page, `<!DOCTYPE html>
<html><head><meta charset="utf-8"><title>%s</title></head>
<body style="font-family: sans-serif; font-size: 14px; line-height: 1.5;">
%s
</body></html>
`, htmlTitle(a.Source.Title), body.String())
	return page.Bytes(), nil
}

func htmlTitle(s string) string {
	return strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;").Replace(s)
}
