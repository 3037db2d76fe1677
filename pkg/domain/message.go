package domain

import (
	"encoding/json"
	"fmt"
)

// Role tags a conversation message with its author.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// ToolCall is a structured tool-invocation request produced by an agent in
// lieu of a final text answer.
type ToolCall struct {
	Name      string         `json:"name" mapstructure:"name"`
	Arguments map[string]any `json:"arguments" mapstructure:"arguments"`
}

// ToolResult is the outcome of executing a ToolCall.
type ToolResult struct {
	Name    string `json:"name"`
	Content string `json:"content"`
	IsError bool   `json:"is_error,omitempty"`
}

// Message is a single conversation turn. Tool calls and tool results are
// distinct variants; providers that only speak role/content flatten them at
// the wire boundary via WireRole/WireContent.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content,omitempty"`

	// AgentID identifies which agent produced an assistant message, when
	// the conversation spans multiple agents in a workflow.
	AgentID string `json:"agent_id,omitempty"`

	ToolCall   *ToolCall   `json:"tool_call,omitempty"`
	ToolResult *ToolResult `json:"tool_result,omitempty"`
}

// SystemMessage builds a system-role message.
func SystemMessage(content string) Message {
	return Message{Role: RoleSystem, Content: content}
}

// UserMessage builds a user-role message.
func UserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

// AssistantMessage builds an assistant-role message attributed to an agent.
func AssistantMessage(agentID, content string) Message {
	return Message{Role: RoleAssistant, Content: content, AgentID: agentID}
}

// ToolCallMessage records an assistant turn that requested a tool.
func ToolCallMessage(call ToolCall) Message {
	return Message{Role: RoleAssistant, ToolCall: &call}
}

// ToolResultMessage records the outcome of a tool execution as its own turn.
func ToolResultMessage(result ToolResult) Message {
	return Message{Role: RoleTool, ToolResult: &result}
}

// WireRole is the role to use for providers that only understand plain
// role/content histories. Tool results travel as user turns there, an
// external-protocol limitation rather than a modeling choice.
func (m Message) WireRole() Role {
	if m.ToolResult != nil {
		return RoleUser
	}
	return m.Role
}

// WireContent flattens the message to plain text for role/content providers.
func (m Message) WireContent() string {
	switch {
	case m.ToolResult != nil && m.ToolResult.IsError:
		return fmt.Sprintf("Function '%s' failed: %s", m.ToolResult.Name, m.ToolResult.Content)
	case m.ToolResult != nil:
		return fmt.Sprintf("Function '%s' result:\n%s", m.ToolResult.Name, m.ToolResult.Content)
	case m.ToolCall != nil:
		args, _ := json.Marshal(m.ToolCall.Arguments)
		return fmt.Sprintf("Calling function '%s' with arguments %s", m.ToolCall.Name, args)
	}
	return m.Content
}
