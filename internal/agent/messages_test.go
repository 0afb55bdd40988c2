package agent

import (
	"strings"
	"testing"

	"github.com/nugget/easycall/internal/conversation"
	"github.com/nugget/easycall/internal/llm"
)

func samplePrompt() conversation.Prompt {
	return conversation.Prompt{
		Preamble: "## Assistant\nbe nice",
		History: []conversation.HistoryMessage{
			{Role: "user", Text: "weather?"},
			{Role: "assistant", ToolCalls: []llm.ToolCall{call("c1", "fetch", `{"url":"x"}`)}, ReasoningContent: "check"},
			{Role: "tool", Text: "sunny", ToolCallID: "c1"},
			{Role: "assistant", Text: "It is sunny."},
		},
		LatestUserText:       "thanks",
		LatestUserSystemText: "<time_context/>",
		LatestImages:         []conversation.Media{{Mime: "image/png", Base64: "AAAA"}},
		LatestAudios:         []conversation.Media{{Mime: "audio/wav", Base64: "BBBB"}},
	}
}

func roleList(ms []llm.Message) string {
	var roles []string
	for _, m := range ms {
		roles = append(roles, m.Role)
	}
	return strings.Join(roles, ",")
}

func TestBuildMessages(t *testing.T) {
	tests := []struct {
		name        string
		kind        llm.Kind
		image       bool
		audio       bool
		roles       string
		userParts   []string
		echoesThink bool
	}{
		{
			name:      "openai with image only",
			kind:      llm.KindOpenAI,
			image:     true,
			roles:     "system,user,assistant,tool,assistant,user",
			userParts: []string{"text", "text", "image_url"},
		},
		{
			name:      "gemini with image and audio",
			kind:      llm.KindGemini,
			image:     true,
			audio:     true,
			roles:     "system,user,assistant,tool,assistant,user",
			userParts: []string{"text", "text", "image_url", "input_audio"},
		},
		{
			name:        "deepseek drops attachments",
			kind:        llm.KindDeepSeekKimi,
			image:       true,
			audio:       true,
			roles:       "system,user,assistant,tool,assistant,user",
			userParts:   []string{"text", "text"},
			echoesThink: true,
		},
		{
			name:      "anthropic drops tool history",
			kind:      llm.KindAnthropic,
			roles:     "system,user,assistant,user",
			userParts: []string{"text", "text"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ms := BuildMessages(samplePrompt(), tt.kind, tt.image, tt.audio)
			if got := roleList(ms); got != tt.roles {
				t.Fatalf("roles = %s, want %s", got, tt.roles)
			}

			last := ms[len(ms)-1]
			parts, ok := last.Content.([]llm.ContentPart)
			if !ok {
				t.Fatalf("user content is %T", last.Content)
			}
			var types []string
			for _, p := range parts {
				types = append(types, p.Type)
			}
			if strings.Join(types, ",") != strings.Join(tt.userParts, ",") {
				t.Errorf("user parts = %v, want %v", types, tt.userParts)
			}
			if parts[0].Text != "thanks" || parts[1].Text != "<time_context/>" {
				t.Errorf("user text parts = %+v", parts[:2])
			}

			if tt.kind.SupportsTools() {
				tc := ms[2]
				if tc.Content != nil {
					t.Errorf("tool-call content = %v, want nil", tc.Content)
				}
				if (tc.ReasoningContent == "check") != tt.echoesThink {
					t.Errorf("reasoning_content = %q", tc.ReasoningContent)
				}
				if ms[3].ToolCallID != "c1" || ms[3].Content != "sunny" {
					t.Errorf("tool message = %+v", ms[3])
				}
			}
		})
	}
}

func TestBuildMessages_ImageDataURI(t *testing.T) {
	ms := BuildMessages(samplePrompt(), llm.KindOpenAI, true, false)
	parts := ms[len(ms)-1].Content.([]llm.ContentPart)
	if got := parts[2].ImageURL.URL; got != "data:image/png;base64,AAAA" {
		t.Errorf("image url = %q", got)
	}
}

func TestBuildMessages_BlankSystemText(t *testing.T) {
	p := samplePrompt()
	p.LatestUserSystemText = "  "
	ms := BuildMessages(p, llm.KindOpenAI, false, false)
	parts := ms[len(ms)-1].Content.([]llm.ContentPart)
	if len(parts) != 1 {
		t.Errorf("parts = %d, want 1", len(parts))
	}
}

func TestAudioFormat(t *testing.T) {
	tests := map[string]string{
		"audio/wav":   "wav",
		"audio/x-wav": "wav",
		"audio/mpeg":  "mp3",
		"audio/ogg":   "ogg",
		"audio/webm":  "webm",
		"":            "mp3",
	}
	for mime, want := range tests {
		if got := audioFormat(mime); got != want {
			t.Errorf("audioFormat(%q) = %q, want %q", mime, got, want)
		}
	}
}
