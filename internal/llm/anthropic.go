package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/nugget/easycall/internal/httpkit"
)

const (
	anthropicDefaultBaseURL = "https://api.anthropic.com"
	anthropicAPIVersion     = "2023-06-01"
	anthropicMaxTokens      = 4096
)

// AnthropicClient streams from the Anthropic Messages API. It sends text
// and images only; tool definitions are never offered to this provider.
type AnthropicClient struct {
	url        string
	apiKey     string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewAnthropicClient creates a client. An empty baseURL uses the public API.
func NewAnthropicClient(baseURL, apiKey string, logger *slog.Logger) (*AnthropicClient, error) {
	if logger == nil {
		logger = slog.Default()
	}
	t := httpkit.NewTransport()
	t.ResponseHeaderTimeout = 120 * time.Second

	return &AnthropicClient{
		url:    anthropicMessagesURL(baseURL),
		apiKey: apiKey,
		logger: logger.With("provider", "anthropic"),
		httpClient: httpkit.NewClient(
			// Streams can be long-lived; rely on ctx for cancellation.
			httpkit.WithTimeout(0),
			httpkit.WithTransport(t),
		),
	}, nil
}

// anthropicMessagesURL resolves the /v1/messages endpoint under base.
func anthropicMessagesURL(base string) string {
	base = strings.TrimRight(strings.TrimSpace(base), "/")
	if base == "" {
		base = anthropicDefaultBaseURL
	}
	lower := strings.ToLower(base)
	switch {
	case strings.HasSuffix(lower, "/messages"):
		return base
	case strings.HasSuffix(lower, "/v1"):
		return base + "/messages"
	default:
		return base + "/v1/messages"
	}
}

type anthropicRequest struct {
	Model       string             `json:"model"`
	Messages    []anthropicMessage `json:"messages"`
	System      string             `json:"system,omitempty"`
	MaxTokens   int                `json:"max_tokens"`
	Temperature float64            `json:"temperature"`
	Stream      bool               `json:"stream"`
}

type anthropicMessage struct {
	Role    string             `json:"role"`
	Content []anthropicContent `json:"content"`
}

type anthropicContent struct {
	Type   string           `json:"type"`
	Text   string           `json:"text,omitempty"`
	Source *anthropicSource `json:"source,omitempty"`
}

type anthropicSource struct {
	Type      string `json:"type"`
	MediaType string `json:"media_type"`
	Data      string `json:"data"`
}

type anthropicStreamEvent struct {
	Type  string          `json:"type"`
	Delta *anthropicDelta `json:"delta,omitempty"`
}

type anthropicDelta struct {
	Type     string `json:"type,omitempty"`
	Text     string `json:"text,omitempty"`
	Thinking string `json:"thinking,omitempty"`
}

// StreamTurn sends req and decodes the event stream. req.Tools is ignored.
func (c *AnthropicClient) StreamTurn(ctx context.Context, req Request, sink DeltaSink) (*Turn, error) {
	msgs, system := convertToAnthropic(req.Messages)

	c.logger.Debug("preparing request",
		"model", req.Model,
		"messages", len(msgs),
		"system_len", len(system),
	)

	payload, err := json.Marshal(anthropicRequest{
		Model:       req.Model,
		Messages:    msgs,
		System:      system,
		MaxTokens:   anthropicMaxTokens,
		Temperature: req.Temperature,
		Stream:      true,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	c.logger.Log(ctx, LevelTrace, "request payload", "json", string(payload))

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", c.apiKey)
	httpReq.Header.Set("anthropic-version", anthropicAPIVersion)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		errBody := httpkit.ReadErrorBody(resp.Body, 300)
		c.logger.Error("API error", "status", resp.StatusCode, "body", errBody)
		return nil, fmt.Errorf("anthropic API error %d: %s", resp.StatusCode, errBody)
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var (
		text      strings.Builder
		reasoning strings.Builder
		inline    strings.Builder
		think     ThinkExtractor
	)
	emit := func(kind DeltaKind, delta string) {
		if sink != nil {
			sink(kind, delta)
		}
	}

	for scanner.Scan() {
		line := scanner.Text()
		// "event: <type>" lines are redundant with the data payload's type.
		data, ok := strings.CutPrefix(line, "data:")
		if !ok {
			continue
		}
		data = strings.TrimSpace(data)
		if data == "" {
			continue
		}

		var event anthropicStreamEvent
		if err := json.Unmarshal([]byte(data), &event); err != nil {
			c.logger.Warn("skipping malformed stream frame", "error", err, "frame", truncate(data, 200))
			continue
		}
		if event.Type == "message_stop" {
			break
		}
		if event.Type != "content_block_delta" || event.Delta == nil {
			continue
		}

		switch event.Delta.Type {
		case "text_delta":
			if event.Delta.Text == "" {
				continue
			}
			text.WriteString(event.Delta.Text)
			emit(DeltaText, event.Delta.Text)
			if in := think.Feed(event.Delta.Text); in != "" {
				inline.WriteString(in)
				emit(DeltaReasoningInline, in)
			}
		case "thinking_delta":
			if strings.TrimSpace(event.Delta.Thinking) == "" {
				continue
			}
			reasoning.WriteString(event.Delta.Thinking)
			emit(DeltaReasoningStandard, event.Delta.Thinking)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read stream: %w", err)
	}

	turn := &Turn{
		Text:              text.String(),
		ReasoningStandard: reasoning.String(),
		ReasoningInline:   inline.String(),
	}
	c.logger.Debug("stream complete", "text_len", len(turn.Text), "reasoning_len", len(turn.ReasoningStandard))
	c.logger.Log(ctx, LevelTrace, "stream final content", "content", turn.Text)
	return turn, nil
}

// convertToAnthropic splits out system messages and maps the rest to
// Anthropic content blocks. Tool-call bookkeeping from other providers
// is flattened: assistant text is kept, tool results are dropped.
func convertToAnthropic(messages []Message) ([]anthropicMessage, string) {
	var systemParts []string
	var result []anthropicMessage

	for _, msg := range messages {
		switch msg.Role {
		case "system":
			if s := ContentText(msg); s != "" {
				systemParts = append(systemParts, s)
			}
		case "assistant":
			if s := ContentText(msg); strings.TrimSpace(s) != "" {
				result = append(result, anthropicMessage{
					Role:    "assistant",
					Content: []anthropicContent{{Type: "text", Text: s}},
				})
			}
		case "user":
			if blocks := anthropicUserBlocks(msg); len(blocks) > 0 {
				result = append(result, anthropicMessage{Role: "user", Content: blocks})
			}
		}
	}

	return result, strings.Join(systemParts, "\n\n")
}

func anthropicUserBlocks(msg Message) []anthropicContent {
	switch c := msg.Content.(type) {
	case string:
		if c == "" {
			return nil
		}
		return []anthropicContent{{Type: "text", Text: c}}
	case []ContentPart:
		var blocks []anthropicContent
		for _, p := range c {
			switch {
			case p.Type == "text" && p.Text != "":
				blocks = append(blocks, anthropicContent{Type: "text", Text: p.Text})
			case p.Type == "image_url" && p.ImageURL != nil:
				if mime, data, ok := parseDataURI(p.ImageURL.URL); ok {
					blocks = append(blocks, anthropicContent{
						Type:   "image",
						Source: &anthropicSource{Type: "base64", MediaType: mime, Data: data},
					})
				}
			}
		}
		return blocks
	}
	return nil
}

// parseDataURI splits "data:<mime>;base64,<data>".
func parseDataURI(uri string) (mime, data string, ok bool) {
	rest, ok := strings.CutPrefix(uri, "data:")
	if !ok {
		return "", "", false
	}
	header, data, ok := strings.Cut(rest, ",")
	if !ok {
		return "", "", false
	}
	mime, isBase64 := strings.CutSuffix(header, ";base64")
	if !isBase64 || mime == "" {
		return "", "", false
	}
	return mime, data, true
}
