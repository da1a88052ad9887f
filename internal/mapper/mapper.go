// Package mapper joins parsed blocks with metadata records by id and answers
// position queries in both directions.
package mapper

import (
	"sort"

	"codetwin/internal/extractor"
	"codetwin/internal/metadata"
)

// Entry pairs a mapped byte range with its id.
type Entry struct {
	Range extractor.Range
	ID    string
}

// Mapper is built once per (code, blocks, records) triple and never mutated.
type Mapper struct {
	code      string
	idToRange map[string]extractor.Range
	entries   []Entry

	// OrphanedBlocks are record ids with no matching block, sorted.
	OrphanedBlocks []string
	// UnmappedCode are blocks with no record, in document order.
	UnmappedCode []extractor.Block
}

// New builds the mapping. When several blocks share a visual id the first
// one in document order is used.
func New(code string, blocks []extractor.Block, records []metadata.Record) *Mapper {
	m := &Mapper{
		code:      code,
		idToRange: make(map[string]extractor.Range),
	}

	hasRecord := make(map[string]bool, len(records))
	for _, r := range records {
		hasRecord[r.ID] = true
	}

	matched := make(map[string]bool)
	for _, b := range blocks {
		if !hasRecord[b.VisualID] {
			m.UnmappedCode = append(m.UnmappedCode, b)
			continue
		}
		if matched[b.VisualID] {
			continue
		}
		matched[b.VisualID] = true
		m.idToRange[b.VisualID] = b.Range
		m.entries = append(m.entries, Entry{Range: b.Range, ID: b.VisualID})
	}

	for id := range hasRecord {
		if !matched[id] {
			m.OrphanedBlocks = append(m.OrphanedBlocks, id)
		}
	}
	sort.Strings(m.OrphanedBlocks)
	sort.SliceStable(m.entries, func(i, j int) bool {
		return m.entries[i].Range.Start < m.entries[j].Range.Start
	})
	return m
}

// RangeOf returns the byte range of the block bound to id.
func (m *Mapper) RangeOf(id string) (extractor.Range, bool) {
	r, ok := m.idToRange[id]
	return r, ok
}

// IDAt returns the id of the innermost mapped block containing offset.
func (m *Mapper) IDAt(offset uint32) (string, bool) {
	best := -1
	for i, e := range m.entries {
		if e.Range.Start > offset {
			break
		}
		if !e.Range.Contains(offset) {
			continue
		}
		if best < 0 || e.Range.Len() <= m.entries[best].Range.Len() {
			best = i
		}
	}
	if best < 0 {
		return "", false
	}
	return m.entries[best].ID, true
}

// Entries returns the ordered (range, id) list.
func (m *Mapper) Entries() []Entry {
	return append([]Entry(nil), m.entries...)
}

// IDToRange returns a copy of the id → range index.
func (m *Mapper) IDToRange() map[string]extractor.Range {
	out := make(map[string]extractor.Range, len(m.idToRange))
	for k, v := range m.idToRange {
		out[k] = v
	}
	return out
}

// Snippet returns the source text of the block bound to id.
func (m *Mapper) Snippet(id string) (string, bool) {
	r, ok := m.idToRange[id]
	if !ok || int(r.End) > len(m.code) {
		return "", false
	}
	return m.code[r.Start:r.End], true
}
