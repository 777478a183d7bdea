package subagent

import (
	"errors"
	"fmt"
)

var (
	// ErrRecursion is returned for runs requested from inside a nested run.
	ErrRecursion = errors.New("Sub-agents are not enabled in this nested context")

	// ErrDisabled answers meta-tool calls when the feature toggle is off.
	ErrDisabled = errors.New("Sub-agents are not enabled in this session")

	// ErrCancelled is returned when the parent task is interrupted mid-run.
	ErrCancelled = errors.New("cancelled")
)

// ArgumentError reports a malformed meta-tool payload.
type ArgumentError struct {
	Field string
	Err   error
}

func (e *ArgumentError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("missing required argument: %s", e.Field)
	}
	return fmt.Sprintf("failed to parse function arguments: %v", e.Err)
}

func (e *ArgumentError) Unwrap() error { return e.Err }

// NotFoundError reports an unknown agent name.
type NotFoundError struct {
	Name string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("Sub-agent '%s' not found", e.Name)
}

// Phase is where a model failure happened.
type Phase string

const (
	PhaseStart  Phase = "start"
	PhaseStream Phase = "stream"
)

// ModelError wraps a failure from the model collaborator.
type ModelError struct {
	Agent string
	Phase Phase
	Err   error
}

func (e *ModelError) Error() string {
	if e.Phase == PhaseStart {
		return fmt.Sprintf("Failed to start model conversation for sub-agent '%s': %v", e.Agent, e.Err)
	}
	return fmt.Sprintf("Stream error in sub-agent '%s': %v", e.Agent, e.Err)
}

func (e *ModelError) Unwrap() error { return e.Err }

// TurnLimitError reports a run that kept calling tools past the turn limit.
type TurnLimitError struct {
	Agent string
	Limit int
}

func (e *TurnLimitError) Error() string {
	return fmt.Sprintf("Sub-agent '%s' exceeded %d turns", e.Agent, e.Limit)
}
