package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/cjsstech/changi-dr-agent/pkg/domain"
)

func TestGenerateMermaidShapesAndEdges(t *testing.T) {
	def := &domain.WorkflowDefinition{
		ID:   "wf",
		Name: "wf",
		Nodes: []domain.Node{
			{ID: "start", Type: domain.NodeStart},
			{ID: "triage-bot", Type: domain.NodeAgent, AgentID: "triage"},
			{ID: "decide", Type: domain.NodeConditional, Conditions: []domain.Condition{
				{Key: "flight", Target: "flights"},
				{Key: "default", Target: "end"},
			}},
			{ID: "flights", Type: domain.NodeAgent, AgentID: "flights"},
			{ID: "end", Type: domain.NodeEnd},
		},
		Edges: []domain.Edge{
			{Source: "start", Target: "triage-bot"},
			{Source: "triage-bot", Target: "decide"},
			{Source: "flights", Target: "end"},
		},
	}

	out := GenerateMermaid(def)

	assert.Contains(t, out, "graph TD")
	assert.Contains(t, out, `start(("start"))`)
	assert.Contains(t, out, `end(("end"))`)
	// Dashes in ids are sanitized, labels keep the original id.
	assert.Contains(t, out, `triage_bot["triage-bot <br/> 🤖 triage"]`)
	assert.Contains(t, out, `decide{"decide"}`)
	assert.Contains(t, out, `decide -. "flight" .-> flights`)
	assert.Contains(t, out, `decide -. "default" .-> end`)
	assert.Contains(t, out, "start --> triage_bot")
}
