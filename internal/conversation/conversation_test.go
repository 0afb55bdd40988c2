package conversation

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

var now = time.Date(2026, 3, 1, 9, 30, 15, 0, time.UTC)

func msg(role, text string) Message {
	return Message{ID: NewID(), Role: role, CreatedAt: now, Parts: []Part{TextPart(text)}}
}

func roles(ms []Message) string {
	var out []string
	for _, m := range ms {
		out = append(out, m.Role+":"+m.Text(" "))
	}
	return strings.Join(out, ",")
}

func TestKeepRecentTurns(t *testing.T) {
	tests := []struct {
		name string
		in   []Message
		n    int
		want string
	}{
		{
			name: "keeps last pairs",
			in:   []Message{msg("user", "u1"), msg("assistant", "a1"), msg("user", "u2"), msg("assistant", "a2"), msg("user", "u3"), msg("assistant", "a3"), msg("user", "u4"), msg("assistant", "a4")},
			n:    3,
			want: "user:u2,assistant:a2,user:u3,assistant:a3,user:u4,assistant:a4",
		},
		{
			name: "lone user is a turn",
			in:   []Message{msg("user", "u1"), msg("user", "u2"), msg("assistant", "a2")},
			n:    3,
			want: "user:u1,user:u2,assistant:a2",
		},
		{
			name: "orphan assistant and tool dropped",
			in:   []Message{msg("assistant", "hello"), msg("tool", "t"), msg("user", "u1"), msg("assistant", "a1"), msg("assistant", "a1b")},
			n:    3,
			want: "user:u1,assistant:a1",
		},
		{name: "empty", in: nil, n: 3, want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := roles(KeepRecentTurns(tt.in, tt.n)); got != tt.want {
				t.Errorf("got %s, want %s", got, tt.want)
			}
		})
	}
}

func TestEnsureActive(t *testing.T) {
	var s State
	i := s.EnsureActive("api-1", "agent", now)
	c := s.Conversations[i]
	if c.Status != StatusActive || c.Title != "Chat 2026-03-01T09:30" || c.APIConfigID != "api-1" {
		t.Fatalf("created = %+v", c)
	}

	later := now.Add(time.Minute)
	j := s.EnsureActive("api-2", "agent", later)
	if j != i || len(s.Conversations) != 1 {
		t.Fatalf("expected reuse, got index %d of %d", j, len(s.Conversations))
	}
	if got := s.Conversations[j]; got.APIConfigID != "api-2" || !got.UpdatedAt.Equal(later) {
		t.Errorf("re-pointed = %+v", got)
	}

	if k := s.EnsureActive("api-1", "other-agent", now); k == i {
		t.Error("a different agent needs its own conversation")
	}
}

func TestLatestSummary(t *testing.T) {
	s := State{Archives: []Archive{
		{Summary: "first", Source: Conversation{AgentID: "a"}},
		{Summary: "mine", Source: Conversation{AgentID: "a"}},
		{Summary: "  ", Source: Conversation{AgentID: "a"}},
		{Summary: "theirs", Source: Conversation{AgentID: "b"}},
	}}
	if got, ok := s.LatestSummary("a"); !ok || got != "mine" {
		t.Errorf("LatestSummary(a) = %q, %v", got, ok)
	}
	if _, ok := s.LatestSummary("c"); ok {
		t.Error("no summary expected for unknown agent")
	}
}

func TestSearchText(t *testing.T) {
	c := Conversation{Messages: []Message{
		{Role: "user", Parts: []Part{TextPart("I Like RUST"), {Type: PartImage}, TextPart("  ")}},
		msg("assistant", "Assistant Words"),
		msg("user", "Second"),
	}}
	if got := SearchText(&c); got != "i like rust\nsecond" {
		t.Errorf("SearchText = %q", got)
	}
}

func TestRenderForContext(t *testing.T) {
	m := Message{Role: "user", Parts: []Part{TextPart("look"), {Type: PartImage}, {Type: PartAudio}}}
	if got := RenderForContext(m); got != "USER: look | [image attached] | [audio attached]" {
		t.Errorf("RenderForContext = %q", got)
	}
}

func TestBuildPrompt(t *testing.T) {
	assistantEvent, _ := json.Marshal(map[string]any{
		"role":              "assistant",
		"content":           nil,
		"reasoning_content": "need a search",
		"tool_calls": []map[string]any{{
			"id": "call_1", "type": "function",
			"function": map[string]any{"name": "bing_search", "arguments": `{"query":"go"}`},
		}},
	})
	toolEvent, _ := json.Marshal(map[string]any{"role": "tool", "tool_call_id": "call_1", "content": `{"results":[]}`})

	reply := msg("assistant", "Here is what I found")
	reply.ToolCall = []json.RawMessage{assistantEvent, toolEvent}

	latest := Message{
		Role:            "user",
		Parts:           []Part{TextPart("line one"), TextPart("line two"), {Type: PartImage, Mime: "image/webp", BytesBase64: "AAA"}},
		ExtraTextBlocks: []string{"<memory_board>\n  <keywords>x</keywords>\n</memory_board>", "  "},
	}
	c := Conversation{Messages: []Message{msg("user", "search go"), reply, msg("tool", "ignored"), latest}}

	p := BuildPrompt(&c, Persona{AgentName: "Ava", UserName: "Sam <x>", Language: "en-US"})

	var got []string
	for _, h := range p.History {
		got = append(got, h.Role+":"+h.Text)
	}
	want := `user:search go,assistant:,tool:{"results":[]},assistant:Here is what I found`
	if strings.Join(got, ",") != want {
		t.Errorf("history = %v\nwant %s", got, want)
	}
	if h := p.History[1]; len(h.ToolCalls) != 1 || h.ToolCalls[0].Function.Name != "bing_search" || h.ReasoningContent != "need a search" {
		t.Errorf("assistant tool event = %+v", h)
	}
	if p.History[2].ToolCallID != "call_1" {
		t.Errorf("tool event id = %q", p.History[2].ToolCallID)
	}
	if p.LatestUserText != "line one\nline two" {
		t.Errorf("LatestUserText = %q", p.LatestUserText)
	}
	if p.LatestUserSystemText != "<memory_board>\n</memory_board>" {
		t.Errorf("LatestUserSystemText = %q", p.LatestUserSystemText)
	}
	if len(p.LatestImages) != 1 || p.LatestImages[0].Mime != "image/webp" {
		t.Errorf("LatestImages = %+v", p.LatestImages)
	}
	for _, frag := range []string{"Sam &lt;x&gt;", `You are "Ava"`, "Respond in English"} {
		if !strings.Contains(p.Preamble, frag) {
			t.Errorf("preamble missing %q:\n%s", frag, p.Preamble)
		}
	}

	p.AddRecap("  we planned a trip  ")
	if !strings.HasSuffix(p.Preamble, "[HIDDEN ARCHIVE RECAP]\nUSER: Where did we leave off last time?\nASSISTANT: we planned a trip\n") {
		t.Errorf("recap not appended:\n%s", p.Preamble)
	}
}

func TestTimeContext(t *testing.T) {
	want := "<time_context>\n  <utc>2026-03-01T09:30:15Z</utc>\n</time_context>"
	if got := TimeContext(now); got != want {
		t.Errorf("TimeContext = %q", got)
	}
}
