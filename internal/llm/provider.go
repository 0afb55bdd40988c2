package llm

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
)

// ErrEmptyBaseURL is returned when an endpoint has no base URL.
var ErrEmptyBaseURL = errors.New("base URL is empty")

// Kind is the closed set of provider wire formats. It is chosen once
// from the api config's request_format and carries every
// provider-specific decision.
type Kind int

const (
	KindOpenAI Kind = iota
	KindDeepSeekKimi
	KindGemini
	KindAnthropic
)

// ParseKind maps a request_format string to a Kind.
func ParseKind(format string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", "openai":
		return KindOpenAI, nil
	case "deepseek/kimi":
		return KindDeepSeekKimi, nil
	case "gemini":
		return KindGemini, nil
	case "anthropic":
		return KindAnthropic, nil
	default:
		return 0, fmt.Errorf("unknown request format %q", format)
	}
}

// String returns the request_format spelling of k.
func (k Kind) String() string {
	switch k {
	case KindOpenAI:
		return "openai"
	case KindDeepSeekKimi:
		return "deepseek/kimi"
	case KindGemini:
		return "gemini"
	case KindAnthropic:
		return "anthropic"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// SupportsTools reports whether tool definitions are sent to this provider.
func (k Kind) SupportsTools() bool {
	return k != KindAnthropic
}

// SupportsMultimodal reports whether image/audio parts may be sent.
func (k Kind) SupportsMultimodal() bool {
	return k != KindDeepSeekKimi
}

// EchoesReasoning reports whether assistant tool-call messages must carry
// the turn's reasoning_content back to the provider.
func (k Kind) EchoesReasoning() bool {
	return k == KindDeepSeekKimi
}

// Endpoint is where and how to reach a provider.
type Endpoint struct {
	BaseURL string
	APIKey  string
}

// NewStreamer builds the Streamer for kind.
func NewStreamer(kind Kind, ep Endpoint, logger *slog.Logger) (Streamer, error) {
	switch kind {
	case KindOpenAI, KindDeepSeekKimi:
		return NewOpenAIClient(ep.BaseURL, ep.APIKey, logger)
	case KindGemini:
		return NewOpenAIClient(GeminiOpenAIBaseURL(ep.BaseURL), ep.APIKey, logger)
	case KindAnthropic:
		return NewAnthropicClient(ep.BaseURL, ep.APIKey, logger)
	default:
		return nil, fmt.Errorf("no streamer for %s", kind)
	}
}

// CandidateChatURLs lists the chat-completion URLs to try for base, in
// order. A base already ending in /chat/completions is used as-is; one
// ending in /v1 gets /chat/completions; anything else tries both
// /chat/completions and /v1/chat/completions.
func CandidateChatURLs(base string) []string {
	base = strings.TrimRight(strings.TrimSpace(base), "/")
	if base == "" {
		return nil
	}
	lower := strings.ToLower(base)
	var urls []string
	switch {
	case strings.HasSuffix(lower, "/chat/completions"):
		urls = append(urls, base)
	case strings.HasSuffix(lower, "/v1"):
		urls = append(urls, base+"/chat/completions")
	default:
		urls = append(urls, base+"/chat/completions", base+"/v1/chat/completions")
	}
	sort.Strings(urls)
	return dedupSorted(urls)
}

func dedupSorted(s []string) []string {
	out := s[:0]
	for i, v := range s {
		if i == 0 || v != s[i-1] {
			out = append(out, v)
		}
	}
	return out
}

// NormalizeGeminiBaseURL strips a trailing /v1beta/openai, /v1beta, or
// /openai so the host root remains.
func NormalizeGeminiBaseURL(raw string) string {
	base := strings.TrimRight(strings.TrimSpace(raw), "/")
	for _, suffix := range []string{"/v1beta/openai", "/v1beta", "/openai"} {
		if strings.HasSuffix(strings.ToLower(base), suffix) {
			return base[:len(base)-len(suffix)]
		}
	}
	return base
}

// GeminiOpenAIBaseURL is Gemini's OpenAI-compatible API root for raw.
func GeminiOpenAIBaseURL(raw string) string {
	base := NormalizeGeminiBaseURL(raw)
	if base == "" {
		return ""
	}
	return base + "/v1beta/openai"
}
