package archive

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/nugget/easycall/internal/conversation"
)

func sampleArchive() *conversation.Archive {
	user := textMsg("user", "Find me a recipe", now)
	user.Parts = append(user.Parts, conversation.Part{Type: conversation.PartImage, Mime: "image/png", BytesBase64: "AAAA"})

	reply := textMsg("assistant", "Here is one.", now)
	reply.ToolCall = []json.RawMessage{
		json.RawMessage(`{"role":"assistant","content":null,"tool_calls":[{"id":"c1","type":"function","function":{"name":"fetch","arguments":"{\"url\":\"https://example.com\"}"}}]}`),
		json.RawMessage(`{"role":"tool","tool_call_id":"c1","content":"` + strings.Repeat("x", 320) + `"}`),
	}

	empty := conversation.Message{ID: "e", Role: "assistant", CreatedAt: now}

	a := archiveAt(now, user, reply, empty)
	a.Summary = "Found a recipe."
	a.Source.Title = "Chat 2026-04-02T10:00"
	return &a
}

func TestMarkdown(t *testing.T) {
	md := Markdown(sampleArchive())

	for _, want := range []string{
		"# Conversation Archive",
		"- Title: Chat 2026-04-02T10:00",
		"## Summary\nFound a recipe.",
		"## Timeline",
		"### User  2026-04-02T10:00:00Z\nFind me a recipe\n- Images x1",
		`- Tool call: fetch | args: {"url":"https://example.com"}`,
		"- Tool result: " + strings.Repeat("x", 300) + "...",
		"### Assistant  2026-04-02T10:00:00Z\n- (empty message)",
	} {
		if !strings.Contains(md, want) {
			t.Errorf("markdown missing %q\n%s", want, md)
		}
	}
}

func TestExportFormats(t *testing.T) {
	a := sampleArchive()

	out, err := Export(a, FormatJSON, now)
	if err != nil {
		t.Fatalf("json: %v", err)
	}
	var payload ExportPayload
	if err := json.Unmarshal(out, &payload); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if payload.Version != 1 || payload.Archive.ArchiveID != a.ArchiveID || !payload.ExportedAt.Equal(now) {
		t.Errorf("unexpected payload %+v", payload)
	}

	out, err = Export(a, FormatHTML, now)
	if err != nil {
		t.Fatalf("html: %v", err)
	}
	html := string(out)
	if !strings.Contains(html, "<h1>Conversation Archive</h1>") || !strings.Contains(html, "<h2>Summary</h2>") {
		t.Errorf("html not rendered:\n%s", html)
	}

	if _, err := Export(a, "pdf", now); err == nil {
		t.Error("unsupported format should fail")
	}
}

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]string{"JSON": FormatJSON, "md": FormatMarkdown, "markdown": FormatMarkdown, " html ": FormatHTML} {
		got, err := ParseFormat(in)
		if err != nil || got != want {
			t.Errorf("ParseFormat(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := ParseFormat("docx"); err == nil {
		t.Error("docx should be rejected")
	}
}
