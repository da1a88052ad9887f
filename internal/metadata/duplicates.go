package metadata

import "slices"

// DuplicateTracker records which ids have been seen. It replaces a shared
// registry: callers own one tracker per scope (usually one per document)
// and pass it into ReadAll.
type DuplicateTracker struct {
	counts map[string]int
	dups   []string
}

// NewDuplicateTracker creates an empty tracker.
func NewDuplicateTracker() *DuplicateTracker {
	return &DuplicateTracker{counts: make(map[string]int)}
}

// Register notes one occurrence of id and reports whether it was the first.
func (t *DuplicateTracker) Register(id string) bool {
	t.counts[id]++
	if t.counts[id] == 2 {
		t.dups = append(t.dups, id)
	}
	return t.counts[id] == 1
}

// Count returns how many times id has been registered.
func (t *DuplicateTracker) Count(id string) int {
	return t.counts[id]
}

// Duplicates returns every id registered more than once, in the order the
// second occurrence was seen.
func (t *DuplicateTracker) Duplicates() []string {
	return slices.Clone(t.dups)
}
