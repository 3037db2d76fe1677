package domain

import (
	"errors"
	"fmt"
	"strings"
)

// ErrWorkflowNotFound is returned when a workflow id cannot be resolved.
var ErrWorkflowNotFound = errors.New("workflow not found")

// ErrAgentNotFound is returned when an agent id cannot be resolved.
var ErrAgentNotFound = errors.New("agent not found")

// ErrPromptNotFound is returned when a prompt file cannot be resolved.
var ErrPromptNotFound = errors.New("prompt not found")

// ErrSessionNotFound is returned when a session id cannot be found in the store.
var ErrSessionNotFound = errors.New("session not found")

// ValidationError aggregates the problems found in a workflow definition.
// Execution never starts for a definition that fails validation.
type ValidationError struct {
	WorkflowID string
	Problems   []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("workflow %q is invalid: %s", e.WorkflowID, strings.Join(e.Problems, "; "))
}
