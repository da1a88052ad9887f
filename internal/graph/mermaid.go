package graph

import (
	"fmt"
	"regexp"
	"strings"
)

var mermaidUnsafe = regexp.MustCompile(`[^a-z0-9_]`)

// Mermaid renders the graph as a flowchart, nodes in canvas order.
// Extends edges are dotted; link edges are solid.
func (g *Graph) Mermaid() string {
	var sb strings.Builder
	sb.WriteString("```mermaid\n")
	sb.WriteString("flowchart TD\n")

	for _, id := range g.CanvasOrder() {
		n := g.Nodes[id]
		label := n.ID
		if n.Description != "" {
			label = n.Description
		}
		sb.WriteString(fmt.Sprintf("    %s[%q]\n", sanitizeMermaidID(id), label))
	}

	for _, e := range g.Edges {
		arrow := "-->"
		if e.Kind == RelationExtends {
			arrow = "-.->|extends|"
		}
		sb.WriteString(fmt.Sprintf("    %s %s %s\n", sanitizeMermaidID(e.From), arrow, sanitizeMermaidID(e.To)))
	}

	sb.WriteString("```\n")
	return sb.String()
}

func sanitizeMermaidID(v string) string {
	v = strings.TrimSpace(strings.ToLower(v))
	if v == "" {
		return "node"
	}
	v = mermaidUnsafe.ReplaceAllString(strings.ReplaceAll(v, "-", "_"), "_")
	if v[0] >= '0' && v[0] <= '9' {
		v = "n_" + v
	}
	return v
}
