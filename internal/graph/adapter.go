package graph

import "codetwin/internal/metadata"

// FromRecord converts a metadata record into a canvas node.
func FromRecord(r metadata.Record) *Node {
	n := &Node{
		ID:          r.ID,
		X:           r.X,
		Y:           r.Y,
		Tags:        append([]string(nil), r.Tags...),
		Description: r.Description(),
	}
	if r.Extends != "" {
		n.Relations = append(n.Relations, Relation{Target: r.Extends, Kind: RelationExtends})
	}
	for _, l := range r.Links {
		n.Relations = append(n.Relations, Relation{Target: l, Kind: RelationLinks})
	}
	return n
}

// AddRecord adds a record as a node.
func (g *Graph) AddRecord(r metadata.Record) {
	g.AddNode(FromRecord(r))
}

// Build creates a linked graph from records. When ids repeat the first
// record wins.
func Build(records []metadata.Record) *Graph {
	g := NewGraph()
	for _, r := range records {
		if _, ok := g.Nodes[r.ID]; ok {
			continue
		}
		g.AddRecord(r)
	}
	g.LinkRelations()
	return g
}
