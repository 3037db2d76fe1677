// Package graph renders workflow definitions as Mermaid flowcharts for the
// admin surface and the CLI.
package graph

import (
	"fmt"
	"strings"

	"github.com/cjsstech/changi-dr-agent/pkg/domain"
)

// GenerateMermaid produces Mermaid flowchart syntax for a definition.
// Semantic shapes per node kind:
//   - start/end: ((Circle))
//   - agent/orchestrator: [Rectangle]
//   - conditional: {Diamond}
//
// Conditional routes become labeled dotted arrows; the default route is
// labeled "default".
func GenerateMermaid(def *domain.WorkflowDefinition) string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")

	for _, node := range def.Nodes {
		safeID := sanitizeMermaidID(node.ID)

		opener, closer := "[", "]"
		switch node.Type {
		case domain.NodeStart, domain.NodeEnd:
			opener, closer = "((", "))"
		case domain.NodeConditional:
			opener, closer = "{", "}"
		}

		label := node.ID
		if node.Type.RunsAgent() && node.AgentID != "" {
			label = fmt.Sprintf("%s <br/> 🤖 %s", node.ID, node.AgentID)
		}
		sb.WriteString(fmt.Sprintf("    %s%s\"%s\"%s\n", safeID, opener, escapeLabel(label), closer))

		// Conditional routes render from the node itself; plain edges come
		// from the definition's edge list below.
		for _, c := range node.Conditions {
			safeTo := sanitizeMermaidID(c.Target)
			label := c.Key
			if c.Key == domain.DefaultConditionKey {
				label = "default"
			}
			sb.WriteString(fmt.Sprintf("    %s -. \"%s\" .-> %s\n", safeID, escapeLabel(label), safeTo))
		}
	}

	for _, e := range def.Edges {
		src, ok := def.Node(e.Source)
		if ok && src.Type == domain.NodeConditional {
			continue
		}
		arrow := "-->"
		if e.Condition != "" {
			arrow = fmt.Sprintf("-- \"%s\" -->", escapeLabel(e.Condition))
		}
		sb.WriteString(fmt.Sprintf("    %s %s %s\n", sanitizeMermaidID(e.Source), arrow, sanitizeMermaidID(e.Target)))
	}

	return sb.String()
}

func escapeLabel(label string) string {
	return strings.ReplaceAll(label, "\"", "'")
}

func sanitizeMermaidID(id string) string {
	s := strings.ReplaceAll(id, ".", "_")
	s = strings.ReplaceAll(s, "-", "_")
	s = strings.ReplaceAll(s, "/", "_")
	s = strings.ReplaceAll(s, "\\", "_")
	return s
}
