package extractor

import sitter "github.com/smacker/go-tree-sitter"

// Range is a half-open byte span [Start, End) into the source text.
type Range struct {
	Start uint32 `json:"start"`
	End   uint32 `json:"end"`
}

// Len returns the number of bytes covered by the range.
func (r Range) Len() uint32 {
	if r.End < r.Start {
		return 0
	}
	return r.End - r.Start
}

// Contains reports whether offset falls inside the range.
func (r Range) Contains(offset uint32) bool {
	return offset >= r.Start && offset < r.End
}

// Overlaps reports whether two ranges share at least one byte.
// An empty range overlaps a range that contains its start.
func (r Range) Overlaps(o Range) bool {
	if r.Len() == 0 {
		return o.Contains(r.Start) || r.Start == o.Start
	}
	if o.Len() == 0 {
		return r.Contains(o.Start) || r.Start == o.Start
	}
	return r.Start < o.End && o.Start < r.End
}

// Block is one syntax node surfaced to the visual layer.
// Blocks are created fresh on every parse and never mutated afterwards.
type Block struct {
	Kind     Kind    `json:"kind"`
	VisualID string  `json:"visual_id"`
	Range    Range   `json:"range"`
	Anchors  []Range `json:"anchors,omitempty"` // operator tokens, names
	Text     string  `json:"text"`
	RawKind  string  `json:"raw_kind"` // grammar node type, e.g. "binary_expression"
	HasError bool    `json:"has_error,omitempty"`
}

// LanguageExtractor defines what each grammar binding must provide.
type LanguageExtractor interface {
	GetLanguage() *sitter.Language
	// KindTable maps raw grammar node types to normalized kinds.
	KindTable() map[string]Rule
}
