package domain

// ExecutionResult is what a completed workflow run surfaces to the caller.
type ExecutionResult struct {
	Response     string            `json:"response"`
	Success      bool              `json:"success"`
	WorkflowID   string            `json:"workflow_id"`
	AgentOutputs map[string]string `json:"agent_outputs,omitempty"`
	Metadata     map[string]any    `json:"metadata,omitempty"`
	Messages     []Message         `json:"messages,omitempty"`
	Error        string            `json:"error,omitempty"`
}

// EventType discriminates streamed execution events.
type EventType string

const (
	// EventNodeComplete is emitted once per node that finished executing.
	EventNodeComplete EventType = "node_complete"
	// EventDone terminates a successful stream.
	EventDone EventType = "done"
	// EventError terminates a failed stream.
	EventError EventType = "error"
)

// ExecutionEvent is a single entry in a streamed workflow execution.
type ExecutionEvent struct {
	Type     EventType      `json:"type"`
	Node     string         `json:"node,omitempty"`
	Output   string         `json:"output,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`

	// Result is attached to the final EventDone.
	Result *ExecutionResult `json:"result,omitempty"`
	Error  string           `json:"error,omitempty"`
}

// ConversationContext is the per-session conversation memory persisted
// between turns: the history handed back as prior context, plus the
// accumulated metadata the next run starts from.
type ConversationContext struct {
	History  []Message      `json:"history,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// NewConversationContext returns an empty context ready for use.
func NewConversationContext() *ConversationContext {
	return &ConversationContext{Metadata: make(map[string]any)}
}
