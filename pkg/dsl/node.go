package dsl

import "github.com/cjsstech/changi-dr-agent/pkg/domain"

// NodeBuilder provides a fluent API for wiring one node.
type NodeBuilder struct {
	node    domain.Node
	builder *Builder
}

// To adds an unconditional edge to the target node.
func (n *NodeBuilder) To(target string) *NodeBuilder {
	n.builder.edges = append(n.builder.edges, domain.Edge{
		Source: n.node.ID,
		Target: target,
	})
	return n
}

// End adds an edge to the shared "end" node, terminating the flow here.
func (n *NodeBuilder) End() *NodeBuilder {
	return n.To("end")
}

// When appends a routing condition. Conditions are evaluated in the order
// they are declared; the first match wins.
func (n *NodeBuilder) When(key, target string) *NodeBuilder {
	n.node.Conditions = append(n.node.Conditions, domain.Condition{
		Key:    key,
		Target: target,
	})
	return n
}

// Default sets the fallback route taken when no condition matches.
func (n *NodeBuilder) Default(target string) *NodeBuilder {
	return n.When(domain.DefaultConditionKey, target)
}

// Build returns the underlying node. Exposed for advanced usage.
func (n *NodeBuilder) Build() domain.Node {
	return n.node
}
