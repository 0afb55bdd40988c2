package llm

import (
	"fmt"
	"sort"
	"strings"
)

// partialCall accumulates the fragments of one streamed tool call.
type partialCall struct {
	id        string
	name      strings.Builder
	arguments strings.Builder
}

// ToolCallAssembler merges positionally indexed tool-call fragments. No
// validation happens until Finish: partial state is expected to be
// invalid mid-stream.
type ToolCallAssembler struct {
	calls map[int]*partialCall
}

// Add merges one fragment. A non-empty id replaces the previous one;
// name and arguments are appended.
func (a *ToolCallAssembler) Add(index int, id, name, arguments string) {
	if a.calls == nil {
		a.calls = make(map[int]*partialCall)
	}
	pc, ok := a.calls[index]
	if !ok {
		pc = &partialCall{}
		a.calls[index] = pc
	}
	if id != "" {
		pc.id = id
	}
	pc.name.WriteString(name)
	pc.arguments.WriteString(arguments)
}

// Len is the number of distinct indices seen so far.
func (a *ToolCallAssembler) Len() int { return len(a.calls) }

// Finish returns the assembled calls in ascending index order. Calls
// without a function name are dropped; calls without an id get
// "tool_call_<index>".
func (a *ToolCallAssembler) Finish() []ToolCall {
	indices := make([]int, 0, len(a.calls))
	for idx := range a.calls {
		indices = append(indices, idx)
	}
	sort.Ints(indices)

	var out []ToolCall
	for _, idx := range indices {
		pc := a.calls[idx]
		name := pc.name.String()
		if strings.TrimSpace(name) == "" {
			continue
		}
		id := pc.id
		if strings.TrimSpace(id) == "" {
			id = fmt.Sprintf("tool_call_%d", idx)
		}
		out = append(out, ToolCall{
			ID:       id,
			Type:     "function",
			Function: FunctionCall{Name: name, Arguments: pc.arguments.String()},
		})
	}
	return out
}
