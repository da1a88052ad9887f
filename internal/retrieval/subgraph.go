package retrieval

import (
	"sort"

	"codetwin/internal/graph"
)

// Config controls how neighborhoods are extracted.
type Config struct {
	MaxHops      int
	AllowedKinds map[graph.RelationKind]bool
}

func DefaultConfig() Config {
	return Config{
		MaxHops:      1,
		AllowedKinds: nil,
	}
}

// Subgraph is the part of a canvas graph within MaxHops of the seeds.
// Edges are followed in both directions.
type Subgraph struct {
	MaxHops int
	SeedIDs []string
	NodeIDs []string
	Depth   map[string]int
	Edges   []graph.Edge
}

// Extract walks g breadth-first from the seed ids. Seeds that are not nodes
// of g are ignored.
func Extract(g *graph.Graph, seeds []string, cfg Config) *Subgraph {
	if cfg.MaxHops < 0 {
		cfg.MaxHops = 0
	}
	sub := &Subgraph{MaxHops: cfg.MaxHops, Depth: map[string]int{}}
	if g == nil {
		return sub
	}

	seedSet := make(map[string]bool, len(seeds))
	for _, id := range seeds {
		if _, ok := g.Nodes[id]; ok {
			seedSet[id] = true
		}
	}
	sub.SeedIDs = sortedKeys(seedSet)
	if len(sub.SeedIDs) == 0 {
		return sub
	}

	adj := make(map[string][]edgeHop)
	for _, e := range g.Edges {
		if !edgeAllowed(e, cfg) {
			continue
		}
		adj[e.From] = append(adj[e.From], edgeHop{to: e.To, edge: e})
		adj[e.To] = append(adj[e.To], edgeHop{to: e.From, edge: e})
	}

	queue := make([]queueItem, 0, len(sub.SeedIDs))
	for _, id := range sub.SeedIDs {
		sub.Depth[id] = 0
		queue = append(queue, queueItem{id: id, depth: 0})
	}

	edgeSeen := make(map[string]bool)
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		if cur.depth >= cfg.MaxHops {
			continue
		}

		for _, next := range adj[cur.id] {
			if key := edgeSignature(next.edge); !edgeSeen[key] {
				edgeSeen[key] = true
				sub.Edges = append(sub.Edges, next.edge)
			}

			nextDepth := cur.depth + 1
			prevDepth, seen := sub.Depth[next.to]
			if !seen || nextDepth < prevDepth {
				sub.Depth[next.to] = nextDepth
				queue = append(queue, queueItem{id: next.to, depth: nextDepth})
			}
		}
	}

	sub.NodeIDs = sortedKeys(sub.Depth)
	sort.Slice(sub.Edges, func(i, j int) bool {
		a, b := sub.Edges[i], sub.Edges[j]
		if a.From != b.From {
			return a.From < b.From
		}
		if a.To != b.To {
			return a.To < b.To
		}
		return a.Kind < b.Kind
	})
	return sub
}

// Graph returns the nodes and edges of the subgraph as a graph of its own,
// keeping the canvas order of src.
func (s *Subgraph) Graph(src *graph.Graph) *graph.Graph {
	out := graph.NewGraph()
	if src == nil {
		return out
	}
	for _, id := range src.CanvasOrder() {
		if _, ok := s.Depth[id]; ok {
			out.AddNode(src.Nodes[id])
		}
	}
	out.Edges = append(out.Edges, s.Edges...)
	return out
}

type queueItem struct {
	id    string
	depth int
}

type edgeHop struct {
	to   string
	edge graph.Edge
}

func edgeAllowed(e graph.Edge, cfg Config) bool {
	if len(cfg.AllowedKinds) == 0 {
		return true
	}
	return cfg.AllowedKinds[e.Kind]
}

func edgeSignature(e graph.Edge) string {
	return e.From + "->" + e.To + ":" + string(e.Kind)
}

func sortedKeys[T any](m map[string]T) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
