package analysis

import (
	"codetwin/internal/extractor"
)

// Span is the region that differs between two versions of a text.
// [Start, OldEnd) in the old text was replaced by [Start, NewEnd) in the new.
type Span struct {
	Start  uint32
	OldEnd uint32
	NewEnd uint32
}

// Empty reports whether the two texts were identical.
func (s Span) Empty() bool {
	return s.OldEnd == s.Start && s.NewEnd == s.Start
}

// Edit converts the span into an extractor edit descriptor.
func (s Span) Edit() *extractor.Edit {
	return &extractor.Edit{Start: s.Start, OldEnd: s.OldEnd, NewEnd: s.NewEnd}
}

// EditSpan finds the smallest single span covering every difference between
// oldText and newText by trimming their common prefix and suffix.
func EditSpan(oldText, newText []byte) Span {
	prefix := 0
	limit := min(len(oldText), len(newText))
	for prefix < limit && oldText[prefix] == newText[prefix] {
		prefix++
	}

	suffix := 0
	for suffix < limit-prefix &&
		oldText[len(oldText)-1-suffix] == newText[len(newText)-1-suffix] {
		suffix++
	}

	return Span{
		Start:  uint32(prefix),
		OldEnd: uint32(len(oldText) - suffix),
		NewEnd: uint32(len(newText) - suffix),
	}
}

// ImpactReport lists the block ids touched by an edit.
type ImpactReport struct {
	// Removed are blocks of the old parse overlapping the replaced region.
	Removed []string
	// Added are blocks of the new parse overlapping the inserted region.
	Added []string
}

// Analyzer performs impact analysis between two consecutive parses.
type Analyzer struct {
	before []extractor.Block
	after  []extractor.Block
}

// NewAnalyzer creates a new analyzer.
func NewAnalyzer(before, after []extractor.Block) *Analyzer {
	return &Analyzer{before: before, after: after}
}

// AnalyzeImpact identifies which blocks are affected by the given span.
func (a *Analyzer) AnalyzeImpact(span Span) *ImpactReport {
	report := &ImpactReport{
		Removed: []string{},
		Added:   []string{},
	}
	if span.Empty() {
		return report
	}

	oldRegion := extractor.Range{Start: span.Start, End: span.OldEnd}
	newRegion := extractor.Range{Start: span.Start, End: span.NewEnd}

	seen := make(map[string]bool)
	for _, b := range a.before {
		if isAffected(b, oldRegion) && !seen[b.VisualID] {
			report.Removed = append(report.Removed, b.VisualID)
			seen[b.VisualID] = true
		}
	}

	seen = make(map[string]bool)
	for _, b := range a.after {
		if isAffected(b, newRegion) && !seen[b.VisualID] {
			report.Added = append(report.Added, b.VisualID)
			seen[b.VisualID] = true
		}
	}
	return report
}

func isAffected(b extractor.Block, region extractor.Range) bool {
	return b.Range.Overlaps(region)
}
