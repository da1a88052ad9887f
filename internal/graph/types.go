package graph

type RelationKind string

const (
	RelationExtends RelationKind = "extends"
	RelationLinks   RelationKind = "links"
)

type UnresolvedReason string

const (
	ReasonNoCandidate   UnresolvedReason = "no_candidate"
	ReasonSelfReference UnresolvedReason = "self_reference"
)

// Node is one record placed on the canvas.
type Node struct {
	ID          string     `json:"id"`
	X           float64    `json:"x"`
	Y           float64    `json:"y"`
	Tags        []string   `json:"tags,omitempty"`
	Description string     `json:"description,omitempty"`
	Relations   []Relation `json:"relations,omitempty"`
}

// Relation is an outgoing reference as written in the record, before it is
// checked against the other nodes.
type Relation struct {
	Target string       `json:"target"`
	Kind   RelationKind `json:"kind"`
}

// Unresolved is a relation whose target could not be linked.
type Unresolved struct {
	From   string           `json:"from"`
	Target string           `json:"target"`
	Kind   RelationKind     `json:"kind"`
	Reason UnresolvedReason `json:"reason"`
}
