package domain

import (
	"reflect"
	"strings"
)

// ExecutionState is the value threaded through node invocations during a
// workflow run. Each node transition produces a new state; handlers must
// never mutate a state shared with another execution.
type ExecutionState struct {
	// Messages is the ordered conversation history, role-tagged.
	Messages []Message

	// CurrentInput is the pending user text for the next agent node.
	CurrentInput string

	// CurrentOutput is the text produced by the last executed node.
	CurrentOutput string

	// Metadata is the open map of node-contributed facts (destination,
	// duration, locations, ...). Conditional routing reads it.
	Metadata map[string]any

	// AgentOutputs maps agent id to the last text that agent produced.
	AgentOutputs map[string]string

	// CurrentNode is the id of the last executed node.
	CurrentNode string

	// WorkflowID identifies the workflow being executed.
	WorkflowID string
}

// NewExecutionState builds the initial state for a run from the caller's
// prior conversation context and the new user message.
func NewExecutionState(workflowID, input string, history []Message, metadata map[string]any) *ExecutionState {
	s := &ExecutionState{
		Messages:     append([]Message(nil), history...),
		CurrentInput: input,
		Metadata:     make(map[string]any, len(metadata)),
		AgentOutputs: make(map[string]string),
		WorkflowID:   workflowID,
	}
	for k, v := range metadata {
		s.Metadata[k] = v
	}
	return s
}

// Clone returns an independent copy safe to overlay without affecting the
// original. Message values are shared structurally (they are never mutated);
// the maps and the slice header are fresh.
func (s *ExecutionState) Clone() *ExecutionState {
	if s == nil {
		return nil
	}
	next := *s
	next.Messages = append([]Message(nil), s.Messages...)
	next.Metadata = make(map[string]any, len(s.Metadata))
	for k, v := range s.Metadata {
		next.Metadata[k] = v
	}
	next.AgentOutputs = make(map[string]string, len(s.AgentOutputs))
	for k, v := range s.AgentOutputs {
		next.AgentOutputs[k] = v
	}
	return &next
}

// EffectiveInput is the text an agent node should act on: the pending user
// input, or the previous node's output when the input was already consumed.
func (s *ExecutionState) EffectiveInput() string {
	if s.CurrentInput != "" {
		return s.CurrentInput
	}
	return s.CurrentOutput
}

// Truthy reports whether a metadata value counts as a match for conditional
// routing. Mirrors the editor's expectations: nil, false, zero, empty string
// and empty collections are falsy.
func Truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return strings.TrimSpace(t) != ""
	case int:
		return t != 0
	case int64:
		return t != 0
	case float64:
		return t != 0
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Map, reflect.Array:
		return rv.Len() > 0
	case reflect.Ptr, reflect.Interface:
		return !rv.IsNil()
	}
	return true
}
