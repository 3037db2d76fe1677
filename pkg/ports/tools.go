package ports

import "context"

// ToolDescriptor is the metadata a registry advertises for one tool. The
// input schema is a JSON-Schema object forwarded verbatim to the completer.
type ToolDescriptor struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	InputSchema map[string]any `json:"input_schema,omitempty"`
}

// ToolRegistry is the external tool surface: it knows which tools are
// enabled and executes them. Call is a network operation and must be wrapped
// in a timeout by the implementation.
type ToolRegistry interface {
	// IsEnabled reports whether the named tool is currently available.
	IsEnabled(name string) bool

	// Call executes the tool with the given arguments and returns its
	// structured result.
	Call(ctx context.Context, name string, args map[string]any) (map[string]any, error)

	// Tools lists the descriptors of all enabled tools.
	Tools() []ToolDescriptor
}
