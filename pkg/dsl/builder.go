package dsl

import (
	"fmt"

	"github.com/cjsstech/changi-dr-agent/pkg/domain"
)

// Builder accumulates nodes and edges for one workflow definition.
// Declaration order is preserved: it drives entry-point fallback and the
// evaluation order of conditional routes.
type Builder struct {
	id          string
	name        string
	description string

	nodes []*NodeBuilder
	index map[string]*NodeBuilder
	edges []domain.Edge
}

// New creates a builder for a workflow with the given id.
func New(id string) *Builder {
	return &Builder{
		id:    id,
		index: make(map[string]*NodeBuilder),
	}
}

// Name sets the display name.
func (b *Builder) Name(name string) *Builder {
	b.name = name
	return b
}

// Description sets the description.
func (b *Builder) Description(desc string) *Builder {
	b.description = desc
	return b
}

// node returns the builder for id, creating it when absent.
func (b *Builder) node(id string, kind domain.NodeKind) *NodeBuilder {
	if nb, ok := b.index[id]; ok {
		return nb
	}
	nb := &NodeBuilder{
		node:    domain.Node{ID: id, Type: kind},
		builder: b,
	}
	b.nodes = append(b.nodes, nb)
	b.index[id] = nb
	return nb
}

// Start adds (or returns) the node named "start".
func (b *Builder) Start() *NodeBuilder {
	return b.node("start", domain.NodeStart)
}

// Agent adds an agent node bound to the given agent id.
func (b *Builder) Agent(id, agentID string) *NodeBuilder {
	nb := b.node(id, domain.NodeAgent)
	nb.node.AgentID = agentID
	return nb
}

// Orchestrator adds an orchestrator node bound to the given agent id.
func (b *Builder) Orchestrator(id, agentID string) *NodeBuilder {
	nb := b.node(id, domain.NodeOrchestrator)
	nb.node.AgentID = agentID
	return nb
}

// Conditional adds a conditional routing node.
func (b *Builder) Conditional(id string) *NodeBuilder {
	return b.node(id, domain.NodeConditional)
}

// Build assembles the workflow definition. End nodes referenced by End()
// are materialized here so they appear after the declared nodes.
func (b *Builder) Build() (*domain.WorkflowDefinition, error) {
	if b.id == "" {
		return nil, fmt.Errorf("workflow id is required")
	}

	def := &domain.WorkflowDefinition{
		ID:          b.id,
		Name:        b.name,
		Description: b.description,
	}

	needsEnd := false
	for _, nb := range b.nodes {
		def.Nodes = append(def.Nodes, nb.node)
	}
	for _, e := range b.edges {
		if e.Target == "end" {
			needsEnd = true
		}
	}
	for _, nb := range b.nodes {
		for _, c := range nb.node.Conditions {
			if c.Target == "end" {
				needsEnd = true
			}
		}
	}
	if needsEnd {
		if _, ok := b.index["end"]; !ok {
			def.Nodes = append(def.Nodes, domain.Node{ID: "end", Type: domain.NodeEnd})
		}
	}
	def.Edges = append(def.Edges, b.edges...)

	return def, nil
}
