package domain

import "time"

// NodeKind is the closed set of node types the engine understands.
type NodeKind string

const (
	// NodeStart marks the graph entry point. It is never executed.
	NodeStart NodeKind = "start"
	// NodeEnd marks a terminal boundary. It is never executed.
	NodeEnd NodeKind = "end"
	// NodeAgent invokes a conversational agent.
	NodeAgent NodeKind = "agent"
	// NodeOrchestrator is behaviorally identical to NodeAgent; the
	// distinction is presentational only (editor UI).
	NodeOrchestrator NodeKind = "orchestrator"
	// NodeConditional routes to one of several targets based on state.
	NodeConditional NodeKind = "conditional"
)

// Valid reports whether the kind is one the engine understands.
func (k NodeKind) Valid() bool {
	switch k {
	case NodeStart, NodeEnd, NodeAgent, NodeOrchestrator, NodeConditional:
		return true
	}
	return false
}

// RunsAgent reports whether nodes of this kind execute an agent.
func (k NodeKind) RunsAgent() bool {
	return k == NodeAgent || k == NodeOrchestrator
}

// Condition is a single routing rule on a conditional node.
// A condition matches when its Key holds a truthy value in the execution
// metadata, or appears (case-insensitively) in the last produced output.
// The reserved key "default" is the fallback, always evaluated last.
type Condition struct {
	Key    string `json:"key" yaml:"key" mapstructure:"key"`
	Target string `json:"target" yaml:"target" mapstructure:"target"`
}

// DefaultConditionKey is the reserved fallback key on conditional nodes.
const DefaultConditionKey = "default"

// Node is a single step in a workflow graph.
type Node struct {
	ID   string   `json:"id" yaml:"id" mapstructure:"id"`
	Type NodeKind `json:"type" yaml:"type" mapstructure:"type"`

	// AgentID is required when Type runs an agent, ignored otherwise.
	AgentID string `json:"agent_id,omitempty" yaml:"agent_id,omitempty" mapstructure:"agent_id"`

	// Conditions is the ordered routing table of a conditional node,
	// ignored for every other kind.
	Conditions []Condition `json:"conditions,omitempty" yaml:"conditions,omitempty" mapstructure:"conditions"`
}

// Edge is a directed connection between two nodes. Condition is a label for
// visualization only; routing is driven by the conditional node's own
// Conditions list, never by edge labels.
type Edge struct {
	Source    string `json:"source" yaml:"source" mapstructure:"source"`
	Target    string `json:"target" yaml:"target" mapstructure:"target"`
	Condition string `json:"condition,omitempty" yaml:"condition,omitempty" mapstructure:"condition"`
}

// WorkflowDefinition is a declarative workflow graph. It is authored and
// mutated by an external editor; the engine treats it as read-only input.
type WorkflowDefinition struct {
	ID          string `json:"id" yaml:"id" mapstructure:"id"`
	Name        string `json:"name" yaml:"name" mapstructure:"name"`
	Description string `json:"description,omitempty" yaml:"description,omitempty" mapstructure:"description"`

	Nodes []Node `json:"nodes" yaml:"nodes" mapstructure:"nodes"`
	Edges []Edge `json:"edges" yaml:"edges" mapstructure:"edges"`

	CreatedAt time.Time `json:"created_at,omitempty" yaml:"created_at,omitempty" mapstructure:"created_at"`
	UpdatedAt time.Time `json:"updated_at,omitempty" yaml:"updated_at,omitempty" mapstructure:"updated_at"`
	CreatedBy string    `json:"created_by,omitempty" yaml:"created_by,omitempty" mapstructure:"created_by"`
}

// Node returns the node with the given id, if present.
func (d *WorkflowDefinition) Node(id string) (Node, bool) {
	for _, n := range d.Nodes {
		if n.ID == id {
			return n, true
		}
	}
	return Node{}, false
}
