package compiler

import (
	"fmt"

	"github.com/cjsstech/changi-dr-agent/pkg/domain"
)

// Validate checks a workflow definition for the problems the editing surface
// reports to authors. An empty result means the definition is well-formed.
func Validate(def *domain.WorkflowDefinition) []string {
	var problems []string
	if def.ID == "" {
		problems = append(problems, "Workflow ID is required")
	}
	if def.Name == "" {
		problems = append(problems, "Workflow name is required")
	}
	return append(problems, structuralProblems(def)...)
}

// structuralProblems is the subset of validation that gates compilation:
// zero nodes, duplicate node ids, dangling edge references, unknown node
// kinds, and agent nodes without an assigned agent.
func structuralProblems(def *domain.WorkflowDefinition) []string {
	var problems []string

	if len(def.Nodes) == 0 {
		problems = append(problems, "Workflow must have at least one node")
		return problems
	}

	ids := make(map[string]bool, len(def.Nodes))
	duplicate := false
	for _, n := range def.Nodes {
		if ids[n.ID] {
			duplicate = true
		}
		ids[n.ID] = true
	}
	if duplicate {
		problems = append(problems, "Node IDs must be unique")
	}

	for _, n := range def.Nodes {
		if !n.Type.Valid() {
			problems = append(problems, fmt.Sprintf("Node '%s' has unknown type '%s'", n.ID, n.Type))
		}
		if n.Type.RunsAgent() && n.AgentID == "" {
			problems = append(problems, fmt.Sprintf("Node '%s' requires an agent to be selected", n.ID))
		}
	}

	for _, e := range def.Edges {
		if !ids[e.Source] {
			problems = append(problems, fmt.Sprintf("Edge source '%s' references non-existent node", e.Source))
		}
		if !ids[e.Target] {
			problems = append(problems, fmt.Sprintf("Edge target '%s' references non-existent node", e.Target))
		}
	}

	return problems
}
