package tools

import (
	"errors"
	"fmt"
)

// ErrInvalidArguments means a tool call's arguments were not valid JSON.
// The orchestrator treats it as fatal for the turn.
var ErrInvalidArguments = errors.New("invalid tool arguments")

// ErrToolUnavailable is returned when a tool call targets a tool that
// is not registered for the selected api config.
type ErrToolUnavailable struct {
	ToolName string
}

// Error implements the error interface.
func (e *ErrToolUnavailable) Error() string {
	return fmt.Sprintf("tool %q is not available for this api config", e.ToolName)
}
