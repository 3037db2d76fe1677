// Package runtime executes compiled workflow graphs: it walks nodes from the
// entry point, runs agents through the bounded tool loop, applies conditional
// routing, and owns the compiled-graph and agent-runner caches.
package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cjsstech/changi-dr-agent/internal/compiler"
	"github.com/cjsstech/changi-dr-agent/internal/metrics"
	"github.com/cjsstech/changi-dr-agent/pkg/domain"
	"github.com/cjsstech/changi-dr-agent/pkg/ports"
)

// defaultMaxSteps bounds graph traversal so a mis-wired cycle cannot spin
// forever. Real itineraries are a handful of nodes deep.
const defaultMaxSteps = 50

// CompleterFactory resolves the chat completion backend for an agent. The
// runtime calls it once per agent and caches the resulting runner.
type CompleterFactory func(cfg domain.AgentConfig) (ports.ChatCompleter, error)

// Executor runs workflows against their stored definitions. It is safe for
// concurrent use; the caches it owns are lock-guarded and never shared
// between executors.
type Executor struct {
	workflows  ports.WorkflowStore
	agents     ports.AgentStore
	prompts    ports.PromptStore
	registry   ports.ToolRegistry
	completers CompleterFactory

	graphs  *graphCache
	runners *runnerCache

	logger      *slog.Logger
	metrics     *metrics.Collector
	callTimeout time.Duration
	maxSteps    int
}

// Option configures an Executor.
type Option func(*Executor)

// WithToolRegistry makes the registry's tools available to every agent.
func WithToolRegistry(registry ports.ToolRegistry) Option {
	return func(e *Executor) { e.registry = registry }
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Executor) { e.logger = logger }
}

// WithMetrics attaches a Prometheus collector.
func WithMetrics(c *metrics.Collector) Option {
	return func(e *Executor) { e.metrics = c }
}

// WithAgentCallTimeout bounds each completion and tool call.
func WithAgentCallTimeout(d time.Duration) Option {
	return func(e *Executor) { e.callTimeout = d }
}

// WithMaxSteps overrides the traversal step bound.
func WithMaxSteps(n int) Option {
	return func(e *Executor) {
		if n > 0 {
			e.maxSteps = n
		}
	}
}

// NewExecutor wires an executor over its stores and completion backends.
func NewExecutor(workflows ports.WorkflowStore, agents ports.AgentStore, prompts ports.PromptStore, completers CompleterFactory, opts ...Option) *Executor {
	e := &Executor{
		workflows:   workflows,
		agents:      agents,
		prompts:     prompts,
		completers:  completers,
		graphs:      newGraphCache(),
		runners:     newRunnerCache(),
		logger:      slog.Default(),
		callTimeout: defaultCallTimeout,
		maxSteps:    defaultMaxSteps,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute runs one conversation turn through a workflow. The returned result
// carries the final response, per-agent outputs and the metadata accumulated
// by tool calls. Only definition lookup and compilation failures return an
// error; a node that fails mid-run is recovered in place and traversal
// continues.
func (e *Executor) Execute(ctx context.Context, workflowID, message string, convo *domain.ConversationContext) (*domain.ExecutionResult, error) {
	start := time.Now()

	g, err := e.graph(ctx, workflowID)
	if err != nil {
		e.metrics.ObserveExecution(workflowID, false, time.Since(start))
		return nil, err
	}

	final, err := e.walk(ctx, g, e.initialState(workflowID, message, convo), nil)
	if err != nil {
		e.metrics.ObserveExecution(workflowID, false, time.Since(start))
		return nil, err
	}

	e.metrics.ObserveExecution(workflowID, true, time.Since(start))
	return resultFromState(g.WorkflowID(), final), nil
}

// ExecuteStream runs one turn and emits a node_complete event per agent node,
// then a terminal done (or error) event. The channel is closed after the
// terminal event; failures are reported in-channel, never by a second return
// value.
func (e *Executor) ExecuteStream(ctx context.Context, workflowID, message string, convo *domain.ConversationContext) <-chan domain.ExecutionEvent {
	out := make(chan domain.ExecutionEvent, 8)

	go func() {
		defer close(out)
		start := time.Now()

		g, err := e.graph(ctx, workflowID)
		if err != nil {
			e.metrics.ObserveExecution(workflowID, false, time.Since(start))
			out <- domain.ExecutionEvent{Type: domain.EventError, Error: err.Error()}
			return
		}

		emit := func(ev domain.ExecutionEvent) {
			select {
			case out <- ev:
			case <-ctx.Done():
			}
		}

		final, err := e.walk(ctx, g, e.initialState(workflowID, message, convo), emit)
		if err != nil {
			e.metrics.ObserveExecution(workflowID, false, time.Since(start))
			emit(domain.ExecutionEvent{Type: domain.EventError, Error: err.Error()})
			return
		}

		res := resultFromState(g.WorkflowID(), final)
		e.metrics.ObserveExecution(workflowID, true, time.Since(start))
		emit(domain.ExecutionEvent{Type: domain.EventDone, Output: res.Response, Result: res})
	}()

	return out
}

// Compile builds and caches a workflow's graph without executing it. Admin
// handlers use it to surface validation problems before saving traffic to a
// broken definition.
func (e *Executor) Compile(ctx context.Context, workflowID string) error {
	_, err := e.graph(ctx, workflowID)
	return err
}

// Runner resolves (building and caching if needed) the tool-loop runner for
// a single agent, for direct agent chat outside any workflow.
func (e *Executor) Runner(ctx context.Context, agentID string) (*AgentRunner, error) {
	return e.runner(ctx, agentID)
}

// Invalidate drops the compiled graph for a workflow. Called whenever the
// definition is created, updated or deleted; the next execution recompiles
// from the store.
func (e *Executor) Invalidate(workflowID string) {
	e.graphs.invalidate(workflowID)
	e.metrics.Invalidation("workflow")
}

// InvalidateAgent drops the cached runner for an agent. Graphs resolve
// runners lazily at node execution time, so no graph needs recompiling when
// an agent's config or prompt changes.
func (e *Executor) InvalidateAgent(agentID string) {
	e.runners.invalidate(agentID)
	e.metrics.Invalidation("agent")
}

func (e *Executor) initialState(workflowID, message string, convo *domain.ConversationContext) *domain.ExecutionState {
	var history []domain.Message
	var meta map[string]any
	if convo != nil {
		history = convo.History
		meta = convo.Metadata
	}
	return domain.NewExecutionState(workflowID, message, history, meta)
}

// walk traverses the graph from its entry point until the terminal sentinel,
// a dead end, the step bound or context cancellation. A route to a node id
// the graph does not know is treated as a dead end and ends the run quietly
// with whatever output the last node produced.
func (e *Executor) walk(ctx context.Context, g *compiler.Graph, state *domain.ExecutionState, emit func(domain.ExecutionEvent)) (*domain.ExecutionState, error) {
	current := g.Entry()

	for steps := 0; current != compiler.Terminal; steps++ {
		if steps >= e.maxSteps {
			return nil, fmt.Errorf("workflow %s exceeded %d steps at node %s", g.WorkflowID(), e.maxSteps, current)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		node, known := g.Node(current)
		if !known {
			e.logger.Warn("route target missing, ending run", "workflow", g.WorkflowID(), "node", current)
			break
		}

		if h, ok := g.Handler(current); ok {
			state = e.safeInvoke(ctx, h, current, state)
			if emit != nil && node.Type.RunsAgent() {
				emit(domain.ExecutionEvent{
					Type:     domain.EventNodeComplete,
					Node:     current,
					Output:   state.CurrentOutput,
					Metadata: state.Metadata,
				})
			}
		}

		if next, ok := g.Route(current, state); ok {
			current = next
			continue
		}
		next, ok := g.Next(current)
		if !ok {
			break
		}
		current = next
	}

	return state, nil
}

// safeInvoke runs one handler, converting failures and panics into an error
// response state so that traversal continues through the rest of the graph.
func (e *Executor) safeInvoke(ctx context.Context, h compiler.Handler, nodeID string, state *domain.ExecutionState) (next *domain.ExecutionState) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("node panicked", "workflow", state.WorkflowID, "node", nodeID, "panic", r)
			next = recoveredState(state, nodeID, fmt.Errorf("%v", r))
		}
	}()

	out, err := h(ctx, state)
	if err != nil {
		e.logger.Warn("node failed, continuing traversal", "workflow", state.WorkflowID, "node", nodeID, "err", err)
		return recoveredState(state, nodeID, err)
	}
	return out
}

// recoveredState overlays the failure message as the node's output.
func recoveredState(state *domain.ExecutionState, nodeID string, err error) *domain.ExecutionState {
	next := state.Clone()
	next.CurrentNode = nodeID
	next.CurrentOutput = fmt.Sprintf("Error executing agent: %v", err)
	return next
}

// agentHandler builds the executable handler for one agent-running node. The
// runner is resolved lazily per invocation so that agent edits take effect
// without recompiling graphs.
func (e *Executor) agentHandler(node domain.Node) compiler.Handler {
	return func(ctx context.Context, state *domain.ExecutionState) (*domain.ExecutionState, error) {
		runner, err := e.runner(ctx, node.AgentID)
		if err != nil {
			return nil, err
		}

		start := time.Now()
		res, err := runner.Run(ctx, state.EffectiveInput(), state.Messages, state.Metadata)
		e.metrics.ObserveNode(state.WorkflowID, node.ID, time.Since(start))
		if err != nil {
			return nil, err
		}

		next := state.Clone()
		next.CurrentNode = node.ID
		next.CurrentOutput = res.Text
		next.AgentOutputs[node.AgentID] = res.Text
		next.Messages = append(next.Messages, domain.AssistantMessage(node.AgentID, res.Text))
		for k, v := range res.Metadata {
			next.Metadata[k] = v
		}
		return next, nil
	}
}

// graph returns the compiled graph for a workflow, compiling and caching it
// on first use. Concurrent compiles of the same definition are tolerated;
// the last writer wins and both graphs are equivalent.
func (e *Executor) graph(ctx context.Context, workflowID string) (*compiler.Graph, error) {
	if g, ok := e.graphs.get(workflowID); ok {
		return g, nil
	}

	def, err := e.workflows.Get(ctx, workflowID)
	if err != nil {
		return nil, err
	}

	g, err := compiler.Compile(def, e.agentHandler)
	e.metrics.ObserveCompile(workflowID, err == nil)
	if err != nil {
		return nil, err
	}

	e.graphs.put(workflowID, g)
	e.logger.Debug("compiled workflow", "workflow", workflowID, "entry", g.Entry())
	return g, nil
}

// runner returns the tool-loop runner for an agent, building and caching it
// on first use. A missing prompt file degrades to the default system prompt
// rather than failing the run.
func (e *Executor) runner(ctx context.Context, agentID string) (*AgentRunner, error) {
	if r, ok := e.runners.get(agentID); ok {
		return r, nil
	}

	cfg, err := e.agents.Get(ctx, agentID)
	if err != nil {
		return nil, err
	}

	var prompt string
	if cfg.PromptFile != "" && e.prompts != nil {
		prompt, err = e.prompts.Get(ctx, cfg.PromptFile)
		if err != nil {
			e.logger.Warn("prompt unavailable, using default system prompt", "agent", agentID, "prompt", cfg.PromptFile, "err", err)
			prompt = ""
		}
	}

	completer, err := e.completers(*cfg)
	if err != nil {
		return nil, fmt.Errorf("resolving completer for agent %s: %w", agentID, err)
	}

	r := NewAgentRunner(*cfg, prompt, completer, e.registry,
		WithCallTimeout(e.callTimeout),
		WithRunnerLogger(e.logger),
	)
	e.runners.put(agentID, r)
	return r, nil
}

// resultFromState projects the final traversal state into the caller-facing
// result. Messages hold the prior history plus one assistant message per
// agent node; the caller appends its own user message when persisting the
// session.
func resultFromState(workflowID string, s *domain.ExecutionState) *domain.ExecutionResult {
	return &domain.ExecutionResult{
		Response:     s.CurrentOutput,
		Success:      true,
		WorkflowID:   workflowID,
		AgentOutputs: s.AgentOutputs,
		Metadata:     s.Metadata,
		Messages:     s.Messages,
	}
}
