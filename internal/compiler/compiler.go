// Package compiler turns declarative workflow definitions into executable
// graphs: a node lookup table, an entry point, per-node handlers and, for
// conditional nodes, routing functions.
package compiler

import (
	"context"

	"github.com/cjsstech/changi-dr-agent/pkg/domain"
)

// Terminal is the sentinel node id that marks run completion. Any edge or
// conditional route whose target is an "end" node resolves to it.
const Terminal = "__end__"

// Handler executes one node against the current state and returns the next
// state. Handlers must not mutate the state they receive.
type Handler func(ctx context.Context, state *domain.ExecutionState) (*domain.ExecutionState, error)

// RouteFunc selects the next node id for a conditional node.
type RouteFunc func(state *domain.ExecutionState) string

// HandlerFactory builds the handler for an agent-running node. The runtime
// supplies it so the compiler stays free of LLM and tool concerns.
type HandlerFactory func(node domain.Node) Handler

// Graph is an executable workflow. Immutable once built; a definition change
// means a wholesale recompile, never an incremental patch.
type Graph struct {
	workflowID string
	entry      string
	nodes      map[string]domain.Node
	handlers   map[string]Handler
	routers    map[string]RouteFunc
	successors map[string]string
}

// WorkflowID returns the id of the definition this graph was compiled from.
func (g *Graph) WorkflowID() string { return g.workflowID }

// Entry returns the entry-point node id (possibly Terminal for degenerate
// graphs whose first node is an end marker).
func (g *Graph) Entry() string { return g.entry }

// Node returns the declared node for an id.
func (g *Graph) Node(id string) (domain.Node, bool) {
	n, ok := g.nodes[id]
	return n, ok
}

// Handler returns the executable handler for a node id. Start/end markers
// have no handler.
func (g *Graph) Handler(id string) (Handler, bool) {
	h, ok := g.handlers[id]
	return h, ok
}

// Route resolves the successor of a conditional node from the state it just
// produced. ok is false for non-conditional nodes.
func (g *Graph) Route(id string, state *domain.ExecutionState) (string, bool) {
	r, ok := g.routers[id]
	if !ok {
		return "", false
	}
	return r(state), true
}

// Next returns the single non-conditional successor of a node, or Terminal.
// ok is false when the node has no outgoing edge (a dead end).
func (g *Graph) Next(id string) (string, bool) {
	n, ok := g.successors[id]
	return n, ok
}

// Compile validates a definition and builds its executable graph. A
// definition that fails validation is rejected with *domain.ValidationError
// and no graph is produced.
func Compile(def *domain.WorkflowDefinition, agentHandler HandlerFactory) (*Graph, error) {
	if problems := structuralProblems(def); len(problems) > 0 {
		return nil, &domain.ValidationError{WorkflowID: def.ID, Problems: problems}
	}

	g := &Graph{
		workflowID: def.ID,
		nodes:      make(map[string]domain.Node, len(def.Nodes)),
		handlers:   make(map[string]Handler),
		routers:    make(map[string]RouteFunc),
		successors: make(map[string]string),
	}
	for _, n := range def.Nodes {
		g.nodes[n.ID] = n
	}

	// resolve maps targets that are end markers onto the terminal sentinel.
	resolve := func(target string) string {
		if t, ok := g.nodes[target]; ok && t.Type == domain.NodeEnd {
			return Terminal
		}
		return target
	}

	for _, n := range def.Nodes {
		switch {
		case n.Type.RunsAgent():
			g.handlers[n.ID] = agentHandler(n)
		case n.Type == domain.NodeConditional:
			// Conditional nodes pass state through untouched; the decision
			// lives in the routing function.
			g.handlers[n.ID] = passthrough
			g.routers[n.ID] = buildRouter(n.Conditions, resolve)
		}
		// start/end mark control-flow boundaries only.
	}

	// At most one non-conditional successor per node: first matching edge
	// wins, even if a malformed definition declares more.
	for _, e := range def.Edges {
		src, _ := g.nodes[e.Source]
		if src.Type == domain.NodeStart || src.Type == domain.NodeConditional {
			continue
		}
		if _, seen := g.successors[e.Source]; seen {
			continue
		}
		g.successors[e.Source] = resolve(e.Target)
	}

	g.entry = resolve(entryPoint(def))
	return g, nil
}

func passthrough(_ context.Context, state *domain.ExecutionState) (*domain.ExecutionState, error) {
	return state, nil
}

// entryPoint applies the exact precedence hand-authored graphs rely on:
// the target of an edge leaving an explicit start node; otherwise the first
// node with no incoming edge that is not an end marker; otherwise the first
// node in definition order.
func entryPoint(def *domain.WorkflowDefinition) string {
	for _, e := range def.Edges {
		if src, ok := def.Node(e.Source); ok && src.Type == domain.NodeStart {
			return e.Target
		}
	}

	targets := make(map[string]bool, len(def.Edges))
	for _, e := range def.Edges {
		targets[e.Target] = true
	}
	for _, n := range def.Nodes {
		if !targets[n.ID] && n.Type != domain.NodeEnd {
			return n.ID
		}
	}
	return def.Nodes[0].ID
}
