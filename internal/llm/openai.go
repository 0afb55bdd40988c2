package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/nugget/easycall/internal/httpkit"
)

// OpenAIClient streams chat completions from any OpenAI-compatible
// endpoint (OpenAI, DeepSeek, Kimi, Gemini's compatibility layer,
// local servers).
type OpenAIClient struct {
	urls       []string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewOpenAIClient creates a client for baseURL. The candidate URLs are
// derived once here.
func NewOpenAIClient(baseURL, apiKey string, logger *slog.Logger) (*OpenAIClient, error) {
	if logger == nil {
		logger = slog.Default()
	}
	urls := CandidateChatURLs(baseURL)
	if len(urls) == 0 {
		return nil, ErrEmptyBaseURL
	}

	// Reasoning models can sit on a request for a long time before the
	// first byte.
	t := httpkit.NewTransport()
	t.ResponseHeaderTimeout = 120 * time.Second

	return &OpenAIClient{
		urls:   urls,
		logger: logger.With("provider", "openai"),
		httpClient: httpkit.NewClient(
			httpkit.WithTimeout(0),
			httpkit.WithTransport(t),
			httpkit.WithBearerToken(apiKey),
			httpkit.WithHeader("Content-Type", "application/json"),
			httpkit.WithRetry(1, 500*time.Millisecond),
			httpkit.WithLogger(logger),
		),
	}, nil
}

// URLs returns the candidate URLs in the order they are tried.
func (c *OpenAIClient) URLs() []string {
	return append([]string(nil), c.urls...)
}

type openAIRequest struct {
	Model       string           `json:"model"`
	Messages    []Message        `json:"messages"`
	Tools       []map[string]any `json:"tools,omitempty"`
	ToolChoice  string           `json:"tool_choice,omitempty"`
	Temperature float64          `json:"temperature"`
	Stream      bool             `json:"stream"`
}

// StreamTurn sends req to each candidate URL in turn until one streams
// successfully. Transport and status failures move on to the next URL;
// the error lists every attempt when all fail.
func (c *OpenAIClient) StreamTurn(ctx context.Context, req Request, sink DeltaSink) (*Turn, error) {
	body := openAIRequest{
		Model:       req.Model,
		Messages:    req.Messages,
		Temperature: req.Temperature,
		Stream:      true,
	}
	if len(req.Tools) > 0 {
		body.Tools = req.Tools
		body.ToolChoice = "auto"
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	c.logger.Debug("preparing request",
		"model", req.Model,
		"messages", len(req.Messages),
		"tools", len(req.Tools),
	)
	c.logger.Log(ctx, LevelTrace, "request payload", "json", string(payload))

	var attempts []string
	for _, url := range c.urls {
		turn, err := c.streamOnce(ctx, url, payload, sink)
		if err == nil {
			return turn, nil
		}
		if ctx.Err() != nil {
			return nil, err
		}
		c.logger.Warn("stream attempt failed", "url", url, "error", err)
		attempts = append(attempts, fmt.Sprintf("%s -> %v", url, err))
	}
	return nil, fmt.Errorf("stream request failed for all candidate URLs: %s", strings.Join(attempts, " || "))
}

func (c *OpenAIClient) streamOnce(ctx context.Context, url string, payload []byte, sink DeltaSink) (*Turn, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Accept", "text/event-stream")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		errBody := httpkit.ReadErrorBody(resp.Body, 300)
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, errBody)
	}

	dec := NewStreamDecoder(sink, c.logger)
	if err := pump(resp.Body, dec); err != nil {
		return nil, fmt.Errorf("read stream chunk: %w", err)
	}
	turn := dec.Finish()

	c.logger.Debug("stream complete",
		"url", url,
		"text_len", len(turn.Text),
		"reasoning_len", len(turn.ReasoningStandard),
		"tool_calls", len(turn.ToolCalls),
	)
	c.logger.Log(ctx, LevelTrace, "stream final content", "content", turn.Text)
	return turn, nil
}

// pump copies r into dec chunk by chunk until EOF or the [DONE] sentinel.
func pump(r io.Reader, dec *StreamDecoder) error {
	buf := make([]byte, 32*1024)
	for !dec.Done() {
		n, err := r.Read(buf)
		if n > 0 {
			dec.Write(buf[:n])
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
	}
	return nil
}
