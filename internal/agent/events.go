package agent

import "github.com/nugget/easycall/internal/llm"

// EventKind classifies a streamed UI event.
type EventKind string

const (
	EventText              EventKind = "text"
	EventReasoningStandard EventKind = "reasoning_standard"
	EventReasoningInline   EventKind = "reasoning_inline"
	EventToolStatus        EventKind = "tool_status"
)

// Tool status values carried by EventToolStatus events.
const (
	ToolRunning = "running"
	ToolDone    = "done"
	ToolFailed  = "failed"
)

// Event is one observational update produced while a reply is being
// generated. Delta is set for text and reasoning events; the tool fields
// are set for tool status events.
type Event struct {
	Kind       EventKind `json:"kind"`
	Delta      string    `json:"delta,omitempty"`
	ToolName   string    `json:"toolName,omitempty"`
	ToolStatus string    `json:"toolStatus,omitempty"`
	Message    string    `json:"message,omitempty"`
}

// Sink receives events as they happen. A nil Sink discards them.
type Sink func(Event)

func (s Sink) emit(ev Event) {
	if s != nil {
		s(ev)
	}
}

func (s Sink) toolStatus(tool, status, message string) {
	s.emit(Event{Kind: EventToolStatus, ToolName: tool, ToolStatus: status, Message: message})
}

// deltas adapts s to the llm stream callback.
func (s Sink) deltas() llm.DeltaSink {
	if s == nil {
		return nil
	}
	return func(kind llm.DeltaKind, delta string) {
		s(Event{Kind: EventKind(kind), Delta: delta})
	}
}
