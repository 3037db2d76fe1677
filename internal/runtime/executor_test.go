package runtime

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cjsstech/changi-dr-agent/pkg/adapters/memory"
	"github.com/cjsstech/changi-dr-agent/pkg/domain"
	"github.com/cjsstech/changi-dr-agent/pkg/ports"
)

// harness bundles an executor with its stores and a per-agent completer map.
type harness struct {
	workflows  *memory.WorkflowStore
	agents     *memory.AgentStore
	prompts    *memory.PromptStore
	completers map[string]ports.ChatCompleter
	executor   *Executor
}

func newHarness(t *testing.T, opts ...Option) *harness {
	t.Helper()
	h := &harness{
		workflows:  memory.NewWorkflowStore(),
		agents:     memory.NewAgentStore(),
		prompts:    memory.NewPromptStore(),
		completers: make(map[string]ports.ChatCompleter),
	}
	factory := func(cfg domain.AgentConfig) (ports.ChatCompleter, error) {
		c, ok := h.completers[cfg.ID]
		if !ok {
			return nil, errors.New("no completer for " + cfg.ID)
		}
		return c, nil
	}
	h.executor = NewExecutor(h.workflows, h.agents, h.prompts, factory, opts...)
	return h
}

func (h *harness) addAgent(t *testing.T, id string, c ports.ChatCompleter) {
	t.Helper()
	cfg := testAgent(id)
	require.NoError(t, h.agents.Save(context.Background(), &cfg))
	h.completers[id] = c
}

func (h *harness) addWorkflow(t *testing.T, def *domain.WorkflowDefinition) {
	t.Helper()
	require.NoError(t, h.workflows.Save(context.Background(), def))
}

func linearWorkflow(id, agentID string) *domain.WorkflowDefinition {
	return &domain.WorkflowDefinition{
		ID:   id,
		Name: id,
		Nodes: []domain.Node{
			{ID: "start", Type: domain.NodeStart},
			{ID: "bot", Type: domain.NodeAgent, AgentID: agentID},
			{ID: "end", Type: domain.NodeEnd},
		},
		Edges: []domain.Edge{
			{Source: "start", Target: "bot"},
			{Source: "bot", Target: "end"},
		},
	}
}

func TestExecuteLinearWorkflow(t *testing.T) {
	h := newHarness(t)
	h.addAgent(t, "concierge", &scriptedCompleter{script: []ports.CompletionResponse{
		textResponse("hello"),
	}})
	h.addWorkflow(t, linearWorkflow("wf", "concierge"))

	res, err := h.executor.Execute(context.Background(), "wf", "hi there", nil)
	require.NoError(t, err)

	assert.True(t, res.Success)
	assert.Equal(t, "hello", res.Response)
	assert.Equal(t, "wf", res.WorkflowID)
	assert.Equal(t, map[string]string{"concierge": "hello"}, res.AgentOutputs)
	require.Len(t, res.Messages, 1)
	assert.Equal(t, domain.RoleAssistant, res.Messages[0].Role)
	assert.Equal(t, "concierge", res.Messages[0].AgentID)
}

func TestExecuteUnknownWorkflow(t *testing.T) {
	h := newHarness(t)
	_, err := h.executor.Execute(context.Background(), "ghost", "hi", nil)
	assert.ErrorIs(t, err, domain.ErrWorkflowNotFound)
}

func TestExecuteInvalidDefinitionReturnsValidationError(t *testing.T) {
	h := newHarness(t)
	h.addWorkflow(t, &domain.WorkflowDefinition{
		ID:    "broken",
		Name:  "broken",
		Nodes: []domain.Node{{ID: "a", Type: domain.NodeAgent}},
	})

	_, err := h.executor.Execute(context.Background(), "broken", "hi", nil)
	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Problems, "Node 'a' requires an agent to be selected")
}

// A failing agent node must not abort the run: its error text becomes the
// node output and traversal continues to the next node.
func TestExecuteRecoversNodeFailureAndContinues(t *testing.T) {
	h := newHarness(t)
	h.addAgent(t, "flaky", failingCompleter{err: errors.New("model offline")})
	h.addAgent(t, "closer", &scriptedCompleter{script: []ports.CompletionResponse{
		textResponse("wrapping up"),
	}})
	h.addWorkflow(t, &domain.WorkflowDefinition{
		ID:   "wf",
		Name: "wf",
		Nodes: []domain.Node{
			{ID: "start", Type: domain.NodeStart},
			{ID: "first", Type: domain.NodeAgent, AgentID: "flaky"},
			{ID: "second", Type: domain.NodeAgent, AgentID: "closer"},
			{ID: "end", Type: domain.NodeEnd},
		},
		Edges: []domain.Edge{
			{Source: "start", Target: "first"},
			{Source: "first", Target: "second"},
			{Source: "second", Target: "end"},
		},
	})

	res, err := h.executor.Execute(context.Background(), "wf", "hi", nil)
	require.NoError(t, err)
	assert.Equal(t, "wrapping up", res.Response)
}

func TestExecuteConditionalRoutesOnToolMetadata(t *testing.T) {
	registry := &fakeRegistry{
		name:   "lookup_destination",
		result: map[string]any{"destination": "Tokyo"},
	}
	h := newHarness(t, WithToolRegistry(registry))
	h.addAgent(t, "planner", &scriptedCompleter{script: []ports.CompletionResponse{
		toolResponse("lookup_destination", nil),
		textResponse("Noted, planning your trip."),
	}})
	h.addAgent(t, "flights", &scriptedCompleter{script: []ports.CompletionResponse{
		textResponse("Here are flights."),
	}})
	h.addAgent(t, "fallback", &scriptedCompleter{script: []ports.CompletionResponse{
		textResponse("How can I help?"),
	}})

	h.addWorkflow(t,&domain.WorkflowDefinition{
		ID:   "route",
		Name: "route",
		Nodes: []domain.Node{
			{ID: "start", Type: domain.NodeStart},
			{ID: "planner", Type: domain.NodeAgent, AgentID: "planner"},
			{ID: "decide", Type: domain.NodeConditional, Conditions: []domain.Condition{
				{Key: "destination", Target: "flights"},
				{Key: "default", Target: "fallback"},
			}},
			{ID: "flights", Type: domain.NodeAgent, AgentID: "flights"},
			{ID: "fallback", Type: domain.NodeAgent, AgentID: "fallback"},
			{ID: "end", Type: domain.NodeEnd},
		},
		Edges: []domain.Edge{
			{Source: "start", Target: "planner"},
			{Source: "planner", Target: "decide"},
			{Source: "flights", Target: "end"},
			{Source: "fallback", Target: "end"},
		},
	})

	res, err := h.executor.Execute(context.Background(), "route", "plan something", nil)
	require.NoError(t, err)

	// The tool's "destination" field routed past the fallback branch.
	assert.Equal(t, "Here are flights.", res.Response)
	assert.Equal(t, "Tokyo", res.Metadata["destination"])
	assert.NotContains(t, res.AgentOutputs, "fallback")
}

func TestExecuteChainedAgentsSeeOriginalInput(t *testing.T) {
	h := newHarness(t)
	first := &scriptedCompleter{script: []ports.CompletionResponse{textResponse("first answer")}}
	second := &scriptedCompleter{script: []ports.CompletionResponse{textResponse("second answer")}}
	h.addAgent(t, "a1", first)
	h.addAgent(t, "a2", second)
	h.addWorkflow(t, &domain.WorkflowDefinition{
		ID:   "chain",
		Name: "chain",
		Nodes: []domain.Node{
			{ID: "one", Type: domain.NodeAgent, AgentID: "a1"},
			{ID: "two", Type: domain.NodeAgent, AgentID: "a2"},
			{ID: "end", Type: domain.NodeEnd},
		},
		Edges: []domain.Edge{
			{Source: "one", Target: "two"},
			{Source: "two", Target: "end"},
		},
	})

	_, err := h.executor.Execute(context.Background(), "chain", "original question", nil)
	require.NoError(t, err)

	// The pending user input stays current for every agent in the chain.
	assert.Equal(t, "original question", second.request(0).Messages[len(second.request(0).Messages)-1].Content)
	// The first agent's answer is visible to the second as history.
	assert.Equal(t, "first answer", second.request(0).Messages[1].Content)
}

func TestExecuteDeadEndRoutingEndsQuietly(t *testing.T) {
	h := newHarness(t)
	h.addAgent(t, "solo", &scriptedCompleter{script: []ports.CompletionResponse{
		textResponse("that is all"),
	}})
	// No outgoing edge from the agent node.
	h.addWorkflow(t, &domain.WorkflowDefinition{
		ID:    "dead",
		Name:  "dead",
		Nodes: []domain.Node{{ID: "solo", Type: domain.NodeAgent, AgentID: "solo"}},
	})

	res, err := h.executor.Execute(context.Background(), "dead", "hi", nil)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "that is all", res.Response)
}

func TestExecuteStepBoundBreaksCycles(t *testing.T) {
	h := newHarness(t, WithMaxSteps(4))
	h.addAgent(t, "looper", &scriptedCompleter{script: []ports.CompletionResponse{
		textResponse("again"),
	}})
	h.addWorkflow(t, &domain.WorkflowDefinition{
		ID:   "cycle",
		Name: "cycle",
		Nodes: []domain.Node{
			{ID: "a", Type: domain.NodeAgent, AgentID: "looper"},
			{ID: "b", Type: domain.NodeAgent, AgentID: "looper"},
		},
		Edges: []domain.Edge{
			{Source: "a", Target: "b"},
			{Source: "b", Target: "a"},
		},
	})

	_, err := h.executor.Execute(context.Background(), "cycle", "hi", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exceeded 4 steps")
}

func TestExecuteUsesPriorConversationContext(t *testing.T) {
	h := newHarness(t)
	completer := &scriptedCompleter{script: []ports.CompletionResponse{textResponse("again, hello")}}
	h.addAgent(t, "concierge", completer)
	h.addWorkflow(t, linearWorkflow("wf", "concierge"))

	convo := &domain.ConversationContext{
		History:  []domain.Message{domain.UserMessage("earlier"), domain.AssistantMessage("concierge", "earlier answer")},
		Metadata: map[string]any{"destination": "Bali"},
	}
	res, err := h.executor.Execute(context.Background(), "wf", "and now?", convo)
	require.NoError(t, err)

	// Prior history reached the model ahead of the new message.
	req := completer.request(0)
	assert.Equal(t, "earlier", req.Messages[1].Content)
	assert.Equal(t, "and now?", req.Messages[len(req.Messages)-1].Content)

	// Prior metadata flows into the result untouched.
	assert.Equal(t, "Bali", res.Metadata["destination"])
	// Result messages extend, never replace, the prior history.
	require.Len(t, res.Messages, 3)
}

func TestInvalidateForcesRecompile(t *testing.T) {
	h := newHarness(t)
	h.addAgent(t, "concierge", &scriptedCompleter{script: []ports.CompletionResponse{
		textResponse("v1"),
	}})
	h.addWorkflow(t, linearWorkflow("wf", "concierge"))

	_, err := h.executor.Execute(context.Background(), "wf", "hi", nil)
	require.NoError(t, err)

	// Swap the stored definition under the cached graph: without
	// invalidation the stale graph keeps serving.
	h.addAgent(t, "other", &scriptedCompleter{script: []ports.CompletionResponse{
		textResponse("v2"),
	}})
	h.addWorkflow(t, linearWorkflow("wf", "other"))

	res, err := h.executor.Execute(context.Background(), "wf", "hi", nil)
	require.NoError(t, err)
	assert.Equal(t, "v1", res.Response, "stale graph until invalidation")

	h.executor.Invalidate("wf")
	res, err = h.executor.Execute(context.Background(), "wf", "hi", nil)
	require.NoError(t, err)
	assert.Equal(t, "v2", res.Response)
}

func TestInvalidateAgentPicksUpNewConfig(t *testing.T) {
	h := newHarness(t)
	h.addAgent(t, "concierge", &scriptedCompleter{script: []ports.CompletionResponse{
		textResponse("old prompt answer"),
	}})
	h.addWorkflow(t, linearWorkflow("wf", "concierge"))

	_, err := h.executor.Execute(context.Background(), "wf", "hi", nil)
	require.NoError(t, err)

	h.completers["concierge"] = &scriptedCompleter{script: []ports.CompletionResponse{
		textResponse("new prompt answer"),
	}}
	h.executor.InvalidateAgent("concierge")

	res, err := h.executor.Execute(context.Background(), "wf", "hi", nil)
	require.NoError(t, err)
	assert.Equal(t, "new prompt answer", res.Response, "runner rebuilt without touching the graph cache")
}

func TestCompileCachesWithoutExecuting(t *testing.T) {
	h := newHarness(t)
	h.addAgent(t, "concierge", &scriptedCompleter{script: []ports.CompletionResponse{
		textResponse("hello"),
	}})
	h.addWorkflow(t, linearWorkflow("wf", "concierge"))

	require.NoError(t, h.executor.Compile(context.Background(), "wf"))
	g, ok := h.executor.graphs.get("wf")
	require.True(t, ok)
	assert.Equal(t, "bot", g.Entry())
}

func TestCompileInvalidLeavesNoCacheEntry(t *testing.T) {
	h := newHarness(t)
	h.addWorkflow(t, &domain.WorkflowDefinition{
		ID:    "bad",
		Name:  "bad",
		Nodes: []domain.Node{{ID: "x", Type: "mystery"}},
	})

	err := h.executor.Compile(context.Background(), "bad")
	require.Error(t, err)
	_, ok := h.executor.graphs.get("bad")
	assert.False(t, ok)
}

func TestExecuteStreamEmitsNodeEventsThenDone(t *testing.T) {
	h := newHarness(t)
	h.addAgent(t, "concierge", &scriptedCompleter{script: []ports.CompletionResponse{
		textResponse("hello"),
	}})
	h.addWorkflow(t, linearWorkflow("wf", "concierge"))

	var events []domain.ExecutionEvent
	for ev := range h.executor.ExecuteStream(context.Background(), "wf", "hi", nil) {
		events = append(events, ev)
	}

	require.Len(t, events, 2)
	assert.Equal(t, domain.EventNodeComplete, events[0].Type)
	assert.Equal(t, "bot", events[0].Node)
	assert.Equal(t, "hello", events[0].Output)
	assert.Equal(t, domain.EventDone, events[1].Type)
	require.NotNil(t, events[1].Result)
	assert.Equal(t, "hello", events[1].Result.Response)
}

func TestExecuteStreamReportsErrorsInChannel(t *testing.T) {
	h := newHarness(t)

	var events []domain.ExecutionEvent
	for ev := range h.executor.ExecuteStream(context.Background(), "ghost", "hi", nil) {
		events = append(events, ev)
	}

	require.Len(t, events, 1)
	assert.Equal(t, domain.EventError, events[0].Type)
	assert.Contains(t, events[0].Error, "workflow not found")
}

// failingCompleter always errors, standing in for an unreachable provider.
type failingCompleter struct{ err error }

func (f failingCompleter) Complete(context.Context, ports.CompletionRequest) (*ports.CompletionResponse, error) {
	return nil, f.err
}
