package http

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cjsstech/changi-dr-agent/pkg/domain"
)

func validWorkflowBody(id, agentID string) map[string]any {
	return map[string]any{
		"id":   id,
		"name": "Trip planner",
		"nodes": []map[string]any{
			{"id": "start", "type": "start"},
			{"id": "bot", "type": "agent", "agent_id": agentID},
			{"id": "end", "type": "end"},
		},
		"edges": []map[string]any{
			{"source": "start", "target": "bot"},
			{"source": "bot", "target": "end"},
		},
	}
}

func TestAdminWorkflowCRUD(t *testing.T) {
	f := newFixture(t)
	f.addAgent(t, "concierge", "hello")

	rec := f.do(t, http.MethodPost, "/admin/workflows/", validWorkflowBody("wf", "concierge"))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodGet, "/admin/workflows/wf/", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	def := decode[domain.WorkflowDefinition](t, rec)
	assert.Equal(t, "Trip planner", def.Name)
	assert.Len(t, def.Nodes, 3)

	rec = f.do(t, http.MethodGet, "/admin/workflows/", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodDelete, "/admin/workflows/wf/", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodGet, "/admin/workflows/wf/", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAdminSaveWorkflowToleratesLooseTypes(t *testing.T) {
	f := newFixture(t)
	f.addAgent(t, "concierge", "hello")

	// Editors send scalars with the wrong JSON type; the decode coerces them.
	body := validWorkflowBody("wf-loose", "concierge")
	body["id"] = 42

	rec := f.do(t, http.MethodPost, "/admin/workflows/", body)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodGet, "/admin/workflows/42/", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	def := decode[domain.WorkflowDefinition](t, rec)
	assert.Equal(t, "42", def.ID)
}

func TestAdminSaveWorkflowRejectsInvalid(t *testing.T) {
	f := newFixture(t)

	body := map[string]any{
		"id":   "bad",
		"name": "bad",
		"nodes": []map[string]any{
			{"id": "a", "type": "agent"},
		},
	}
	rec := f.do(t, http.MethodPost, "/admin/workflows/", body)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), "requires an agent")
}

func TestAdminValidateWorkflow(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/admin/workflows/validate", map[string]any{
		"id":    "",
		"name":  "",
		"nodes": []map[string]any{},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	report := decode[struct {
		Valid    bool     `json:"valid"`
		Problems []string `json:"problems"`
	}](t, rec)
	assert.False(t, report.Valid)
	assert.Contains(t, report.Problems, "Workflow ID is required")
}

// Updating a workflow definition must invalidate the compiled graph, so the
// next chat runs the new shape.
func TestAdminUpdateWorkflowInvalidatesGraph(t *testing.T) {
	f := newFixture(t)
	f.addAgent(t, "concierge", "v1 answer")
	f.addAgent(t, "other", "v2 answer")

	rec := f.do(t, http.MethodPost, "/admin/workflows/", validWorkflowBody("wf", "concierge"))
	require.Equal(t, http.StatusOK, rec.Code)

	chat := map[string]string{"workflow_id": "wf", "message": "hi"}
	rec = f.do(t, http.MethodPost, "/workflow/chat", chat)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "v1 answer", decode[chatResponse](t, rec).Response)

	rec = f.do(t, http.MethodPut, "/admin/workflows/wf/", validWorkflowBody("wf", "other"))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodPost, "/workflow/chat", chat)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "v2 answer", decode[chatResponse](t, rec).Response)
}

func TestAdminCompileWorkflow(t *testing.T) {
	f := newFixture(t)
	f.addAgent(t, "concierge", "hello")

	rec := f.do(t, http.MethodPost, "/admin/workflows/", validWorkflowBody("wf", "concierge"))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodPost, "/admin/workflows/wf/compile", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodPost, "/admin/workflows/ghost/compile", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAdminWorkflowGraph(t *testing.T) {
	f := newFixture(t)
	f.addAgent(t, "concierge", "hello")

	rec := f.do(t, http.MethodPost, "/admin/workflows/", validWorkflowBody("wf", "concierge"))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodGet, "/admin/workflows/wf/graph", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "graph TD")
	assert.Contains(t, rec.Body.String(), "start --> bot")
}

func TestAdminAgentCRUD(t *testing.T) {
	f := newFixture(t)

	body := map[string]any{
		"id":       "planner",
		"name":     "Planner",
		"provider": "openai",
		"model":    "gpt-4o",
	}
	rec := f.do(t, http.MethodPost, "/admin/agents/", body)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodGet, "/admin/agents/planner/", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	cfg := decode[domain.AgentConfig](t, rec)
	assert.Equal(t, "gpt-4o", cfg.Model)

	rec = f.do(t, http.MethodDelete, "/admin/agents/planner/", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodGet, "/admin/agents/planner/", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

// Editing an agent drops its cached runner so the next chat reflects the
// new configuration without restarting the service.
func TestAdminUpdateAgentInvalidatesRunner(t *testing.T) {
	f := newFixture(t)
	f.addAgent(t, "concierge", "old answer")
	f.addLinearWorkflow(t, "wf", "concierge")

	chat := map[string]string{"workflow_id": "wf", "message": "hi"}
	rec := f.do(t, http.MethodPost, "/workflow/chat", chat)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "old answer", decode[chatResponse](t, rec).Response)

	// The store update goes through the admin API; the fixture's factory
	// answer changes with it.
	f.answers["concierge"] = "new answer"
	rec = f.do(t, http.MethodPut, "/admin/agents/concierge/", map[string]any{
		"id": "concierge", "name": "Concierge", "provider": "openai", "model": "gpt-4o",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodPost, "/workflow/chat", chat)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "new answer", decode[chatResponse](t, rec).Response)
}

func TestAdminPrompts(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPut, "/admin/prompts/greeter", "You greet travellers warmly.")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodGet, "/admin/prompts/greeter", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	prompt := decode[struct {
		Name    string `json:"name"`
		Content string `json:"content"`
	}](t, rec)
	assert.Equal(t, "You greet travellers warmly.", prompt.Content)

	rec = f.do(t, http.MethodGet, "/admin/prompts/", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "greeter")

	rec = f.do(t, http.MethodGet, "/admin/prompts/missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
