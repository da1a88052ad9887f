package pipeline

import (
	"codetwin/internal/conflict"
	"codetwin/internal/extractor"
	"codetwin/internal/graph"
	"codetwin/internal/mapper"
	"codetwin/internal/metadata"
)

// Diagnostics are non-fatal findings from one synchronization pass.
type Diagnostics struct {
	Orphaned      []string          `json:"orphaned,omitempty"`
	Unmapped      []string          `json:"unmapped,omitempty"`
	Duplicates    []string          `json:"duplicates,omitempty"`
	Renamed       []metadata.Rename `json:"renamed,omitempty"`
	DanglingLinks []string          `json:"dangling_links,omitempty"`
	Affected      []string          `json:"affected,omitempty"`
	SyntaxErrors  bool              `json:"syntax_errors,omitempty"`
}

// Result is what a caller sees after a message has been applied.
type Result struct {
	Code        string              `json:"code"`
	Lang        string              `json:"lang"`
	Hash        uint64              `json:"hash"`
	Records     []metadata.Record   `json:"records"`
	Conflicts   []conflict.Conflict `json:"conflicts,omitempty"`
	Diagnostics Diagnostics         `json:"diagnostics"`
}

// State is the engine's view of the document after the last successful
// message. It is replaced as a whole and never modified in place.
type State struct {
	Code    string
	Lang    string
	Hash    uint64
	Parse   *extractor.Parse
	Records []metadata.Record
	Mapper  *mapper.Mapper
	Graph   *graph.Graph
}
