package llm

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
)

// streamChunk is one OpenAI-style SSE frame. Only the first choice is read.
type streamChunk struct {
	Choices []struct {
		Delta streamDelta `json:"delta"`
	} `json:"choices"`
}

type streamDelta struct {
	Content          json.RawMessage `json:"content"`
	ReasoningContent *string         `json:"reasoning_content"`
	ReasoningDetails json.RawMessage `json:"reasoning_details"`
	ToolCalls        []toolCallDelta `json:"tool_calls"`
}

type toolCallDelta struct {
	Index    int    `json:"index"`
	ID       string `json:"id"`
	Function *struct {
		Name      string `json:"name"`
		Arguments string `json:"arguments"`
	} `json:"function"`
}

// StreamDecoder turns the bytes of an OpenAI-compatible SSE response into
// cumulative text, reasoning, and tool calls. Feed it with Write in
// whatever chunks the network delivers; complete lines are parsed as
// soon as their terminating newline arrives and a partial tail line is
// kept for the next Write.
//
// Malformed frames are logged and skipped. A "data: [DONE]" line ends
// decoding; later input is ignored.
type StreamDecoder struct {
	sink   DeltaSink
	logger *slog.Logger

	buf  []byte
	done bool

	text              strings.Builder
	reasoningStandard strings.Builder
	reasoningInline   strings.Builder
	think             ThinkExtractor
	calls             ToolCallAssembler
}

// NewStreamDecoder creates a decoder that reports deltas to sink (may be nil).
func NewStreamDecoder(sink DeltaSink, logger *slog.Logger) *StreamDecoder {
	if logger == nil {
		logger = slog.Default()
	}
	return &StreamDecoder{sink: sink, logger: logger}
}

// Write implements io.Writer. It never returns an error.
func (d *StreamDecoder) Write(p []byte) (int, error) {
	if d.done {
		return len(p), nil
	}
	d.buf = append(d.buf, p...)
	for !d.done {
		i := bytes.IndexByte(d.buf, '\n')
		if i < 0 {
			break
		}
		line := string(bytes.TrimRight(d.buf[:i], "\r"))
		d.buf = d.buf[i+1:]
		d.handleLine(line)
	}
	if len(d.buf) == 0 {
		// Release the backing array between bursts.
		d.buf = nil
	}
	return len(p), nil
}

// Done reports whether the [DONE] sentinel has been seen.
func (d *StreamDecoder) Done() bool { return d.done }

// Finish flushes a final unterminated line and returns the accumulated turn.
func (d *StreamDecoder) Finish() *Turn {
	if !d.done && len(d.buf) > 0 {
		line := string(bytes.TrimRight(d.buf, "\r"))
		d.buf = nil
		d.handleLine(line)
	}
	return &Turn{
		Text:              d.text.String(),
		ReasoningStandard: d.reasoningStandard.String(),
		ReasoningInline:   d.reasoningInline.String(),
		ToolCalls:         d.calls.Finish(),
	}
}

func (d *StreamDecoder) handleLine(line string) {
	data, ok := strings.CutPrefix(line, "data:")
	if !ok {
		return
	}
	data = strings.TrimSpace(data)
	if data == "" {
		return
	}
	if data == "[DONE]" {
		d.done = true
		return
	}

	var chunk streamChunk
	if err := json.Unmarshal([]byte(data), &chunk); err != nil {
		d.logger.Warn("skipping malformed stream frame", "error", err, "frame", truncate(data, 200))
		return
	}
	if len(chunk.Choices) == 0 {
		return
	}
	delta := chunk.Choices[0].Delta

	if r := deltaReasoning(delta); r != "" {
		d.reasoningStandard.WriteString(r)
		d.emit(DeltaReasoningStandard, r)
	}

	if t := deltaText(delta.Content); t != "" {
		d.text.WriteString(t)
		d.emit(DeltaText, t)
		if inline := d.think.Feed(t); inline != "" {
			d.reasoningInline.WriteString(inline)
			d.emit(DeltaReasoningInline, inline)
		}
	}

	for _, tc := range delta.ToolCalls {
		var name, args string
		if tc.Function != nil {
			name, args = tc.Function.Name, tc.Function.Arguments
		}
		d.calls.Add(tc.Index, tc.ID, name, args)
	}
}

func (d *StreamDecoder) emit(kind DeltaKind, delta string) {
	if d.sink != nil {
		d.sink(kind, delta)
	}
}

// deltaText reads content as either a string or an array of {text} parts.
func deltaText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var parts []struct {
		Text *string `json:"text"`
	}
	if err := json.Unmarshal(raw, &parts); err != nil {
		return ""
	}
	var b strings.Builder
	for _, p := range parts {
		if p.Text != nil {
			b.WriteString(*p.Text)
		}
	}
	return b.String()
}

// deltaReasoning joins reasoning_content with every string found in
// reasoning_details.
func deltaReasoning(delta streamDelta) string {
	var parts []string
	if delta.ReasoningContent != nil && strings.TrimSpace(*delta.ReasoningContent) != "" {
		parts = append(parts, *delta.ReasoningContent)
	}
	if len(delta.ReasoningDetails) > 0 {
		var details any
		if err := json.Unmarshal(delta.ReasoningDetails, &details); err == nil {
			parts = collectReasoningStrings(details, parts)
		}
	}
	return strings.Join(parts, "")
}

// collectReasoningStrings walks free-form reasoning detail objects. For
// objects only the text, reasoning and content keys are followed, in
// that order; blank strings are skipped.
func collectReasoningStrings(v any, out []string) []string {
	switch x := v.(type) {
	case string:
		if strings.TrimSpace(x) != "" {
			out = append(out, x)
		}
	case []any:
		for _, item := range x {
			out = collectReasoningStrings(item, out)
		}
	case map[string]any:
		for _, key := range []string{"text", "reasoning", "content"} {
			if child, ok := x[key]; ok {
				out = collectReasoningStrings(child, out)
			}
		}
	}
	return out
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
