package metadata

import (
	"maps"
	"slices"
)

// MaxInheritanceDepth caps how many extends hops are followed, so a chain
// holds at most MaxInheritanceDepth+1 records.
const MaxInheritanceDepth = 32

// Arena holds the records of one document keyed by id, so extends chains
// are walked explicitly instead of through a global lookup.
type Arena struct {
	records map[string]Record
}

// NewArena indexes records by id. The first record for an id wins.
func NewArena(records []Record) *Arena {
	a := &Arena{records: make(map[string]Record, len(records))}
	for _, r := range records {
		if _, ok := a.records[r.ID]; !ok {
			a.records[r.ID] = r
		}
	}
	return a
}

// Get returns the unresolved record for id.
func (a *Arena) Get(id string) (Record, bool) {
	r, ok := a.records[id]
	return r, ok
}

// Chain returns id followed by its ancestors. It stops at a missing parent
// or a cycle, and after MaxInheritanceDepth ancestors.
func (a *Arena) Chain(id string) []string {
	var chain []string
	visited := make(map[string]bool)
	for cur := id; cur != "" && len(chain) < MaxInheritanceDepth+1; {
		if visited[cur] {
			break
		}
		r, ok := a.records[cur]
		if !ok {
			break
		}
		visited[cur] = true
		chain = append(chain, cur)
		cur = r.Extends
	}
	return chain
}

// Resolve merges id with its ancestors, root first.
func (a *Arena) Resolve(id string) (Record, bool) {
	chain := a.Chain(id)
	if len(chain) == 0 {
		return Record{}, false
	}
	merged := a.records[chain[len(chain)-1]].Clone()
	for i := len(chain) - 2; i >= 0; i-- {
		merged = inherit(merged, a.records[chain[i]])
	}
	return merged, true
}

// Own undoes Resolve for a record handed back by a caller: values rec shares
// with its resolved parent are removed unless the stored record for rec.ID
// sets them itself. Records without a stored entry or a known parent are
// returned unchanged.
func (a *Arena) Own(rec Record) Record {
	raw, ok := a.records[rec.ID]
	if !ok || rec.Extends == "" {
		return rec
	}
	parent, ok := a.Resolve(rec.Extends)
	if !ok {
		return rec
	}

	out := rec.Clone()
	out.Tags = ownSet(out.Tags, parent.Tags, raw.Tags)
	out.Links = ownSet(out.Links, parent.Links, raw.Links)
	out.Anchors = ownSet(out.Anchors, parent.Anchors, raw.Anchors)

	for k, v := range out.Translations {
		if pv, inherited := parent.Translations[k]; inherited && pv == v {
			if _, set := raw.Translations[k]; !set {
				delete(out.Translations, k)
			}
		}
	}
	if len(out.Translations) == 0 {
		out.Translations = nil
	}
	if out.Origin == parent.Origin && raw.Origin == "" {
		out.Origin = ""
	}
	if out.AI != nil && out.AI.Description == parent.Description() && raw.Description() == "" {
		out.AI.Description = ""
		if len(out.AI.Hints) == 0 {
			out.AI = nil
		}
	}
	if out.Version == parent.Version && raw.Version < out.Version {
		out.Version = raw.Version
	}
	return out
}

// ownSet drops the members of values that come from inherited and are not
// in own.
func ownSet(values, inherited, own []string) []string {
	var out []string
	for _, v := range values {
		if slices.Contains(inherited, v) && !slices.Contains(own, v) {
			continue
		}
		out = append(out, v)
	}
	return out
}

// inherit layers child on top of an already-resolved parent.
func inherit(parent, child Record) Record {
	out := child.Clone()
	out.Tags = unionOrdered(parent.Tags, child.Tags)
	out.Links = unionOrdered(parent.Links, child.Links)
	out.Anchors = unionOrdered(parent.Anchors, child.Anchors)

	if len(parent.Translations) > 0 {
		merged := maps.Clone(parent.Translations)
		maps.Copy(merged, child.Translations)
		out.Translations = merged
	}
	if out.Origin == "" {
		out.Origin = parent.Origin
	}
	if out.Description() == "" && parent.Description() != "" {
		if out.AI == nil {
			out.AI = &AINote{}
		}
		out.AI.Description = parent.AI.Description
	}
	out.Version = max(parent.Version, child.Version)
	return out
}

// unionOrdered returns a followed by the members of b not already present.
func unionOrdered(a, b []string) []string {
	if len(a) == 0 && len(b) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, list := range [][]string{a, b} {
		for _, v := range list {
			if !seen[v] {
				seen[v] = true
				out = append(out, v)
			}
		}
	}
	return out
}
