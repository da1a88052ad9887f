package graph

import "sort"

// Edge represents a directed relationship between two nodes.
type Edge struct {
	From string       `json:"from"` // Source record id
	To   string       `json:"to"`   // Target record id
	Kind RelationKind `json:"kind"` // Relationship type
}

// Graph holds the records on the canvas and the references between them.
type Graph struct {
	Nodes      map[string]*Node `json:"nodes"`
	Edges      []Edge           `json:"edges"`
	Unresolved []Unresolved     `json:"unresolved,omitempty"`

	// Insertion order, so edges and renderings are deterministic.
	order []string
}

// NewGraph creates an empty graph.
func NewGraph() *Graph {
	return &Graph{
		Nodes: make(map[string]*Node),
		Edges: []Edge{},
	}
}

// AddNode adds or replaces a node.
func (g *Graph) AddNode(n *Node) {
	if n == nil {
		return
	}
	if _, ok := g.Nodes[n.ID]; !ok {
		g.order = append(g.order, n.ID)
	}
	g.Nodes[n.ID] = n
}

// LinkRelations resolves every node's relations against the node set.
// Targets that are missing or point back at their source are recorded in
// Unresolved instead of becoming edges.
func (g *Graph) LinkRelations() {
	g.Edges = []Edge{}
	g.Unresolved = nil

	for _, id := range g.order {
		node := g.Nodes[id]
		for _, rel := range node.Relations {
			switch {
			case rel.Target == id:
				g.unresolved(id, rel, ReasonSelfReference)
			case g.Nodes[rel.Target] == nil:
				g.unresolved(id, rel, ReasonNoCandidate)
			default:
				g.Edges = append(g.Edges, Edge{From: id, To: rel.Target, Kind: rel.Kind})
			}
		}
	}
}

func (g *Graph) unresolved(from string, rel Relation, reason UnresolvedReason) {
	g.Unresolved = append(g.Unresolved, Unresolved{
		From:   from,
		Target: rel.Target,
		Kind:   rel.Kind,
		Reason: reason,
	})
}

// GetDependencies returns all nodes that the given node refers to.
func (g *Graph) GetDependencies(id string) []*Node {
	var deps []*Node
	for _, edge := range g.Edges {
		if edge.From == id {
			deps = append(deps, g.Nodes[edge.To])
		}
	}
	return deps
}

// GetDependents returns all nodes that refer to the given node.
func (g *Graph) GetDependents(id string) []*Node {
	var deps []*Node
	for _, edge := range g.Edges {
		if edge.To == id {
			deps = append(deps, g.Nodes[edge.From])
		}
	}
	return deps
}

// DanglingLinks returns the unresolved link targets, sorted and deduplicated.
func (g *Graph) DanglingLinks() []string {
	seen := make(map[string]bool)
	var out []string
	for _, u := range g.Unresolved {
		if u.Kind != RelationLinks || seen[u.Target] {
			continue
		}
		seen[u.Target] = true
		out = append(out, u.Target)
	}
	sort.Strings(out)
	return out
}

// CanvasOrder returns node ids sorted by (Y, X), ties in insertion order.
func (g *Graph) CanvasOrder() []string {
	ids := append([]string(nil), g.order...)
	sort.SliceStable(ids, func(i, j int) bool {
		a, b := g.Nodes[ids[i]], g.Nodes[ids[j]]
		if a.Y != b.Y {
			return a.Y < b.Y
		}
		return a.X < b.X
	})
	return ids
}
