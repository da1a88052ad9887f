package generator

import (
	"fmt"
	"sort"
	"strings"

	"codetwin/internal/extractor"
	"codetwin/internal/metadata"
)

// MissingBlocksError lists every record id that has no block to take its
// source from.
type MissingBlocksError struct {
	IDs []string
}

func (e *MissingBlocksError) Error() string {
	return fmt.Sprintf("generator: %d record(s) without a matching block: %s", len(e.IDs), strings.Join(e.IDs, ", "))
}

// Generator lays code out in canvas order.
type Generator struct {
	// Lang selects the translation used as snippet text, when a record has one.
	Lang string
	// InsertMetadata appends the record's metadata comment after each snippet.
	InsertMetadata bool
	// Store supplies the comment style. Nil uses the style for Lang.
	Store *metadata.Store
}

// New returns a generator that inserts metadata comments.
func New(lang string, store *metadata.Store) *Generator {
	return &Generator{Lang: lang, InsertMetadata: true, Store: store}
}

// Generate emits one snippet per record, ordered by (Y, X). Records with
// equal coordinates keep their input order. If any record lacks a block the
// result is empty and the error is a *MissingBlocksError.
func (g *Generator) Generate(records []metadata.Record, blocks []extractor.Block) (string, error) {
	byID := make(map[string]extractor.Block, len(blocks))
	for _, b := range blocks {
		if _, ok := byID[b.VisualID]; !ok {
			byID[b.VisualID] = b
		}
	}

	var missing []string
	for _, r := range records {
		if _, ok := byID[r.ID]; !ok {
			missing = append(missing, r.ID)
		}
	}
	if len(missing) > 0 {
		return "", &MissingBlocksError{IDs: missing}
	}

	ordered := append([]metadata.Record(nil), records...)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].Y != ordered[j].Y {
			return ordered[i].Y < ordered[j].Y
		}
		return ordered[i].X < ordered[j].X
	})

	style := g.style()
	var sb strings.Builder
	for i, r := range ordered {
		if i > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(g.snippet(r, byID[r.ID]))
		sb.WriteString("\n")
		if !g.InsertMetadata {
			continue
		}
		line, err := metadata.Render(r, style, "")
		if err != nil {
			return "", fmt.Errorf("render metadata for %s: %w", r.ID, err)
		}
		sb.WriteString(line)
		sb.WriteString("\n")
	}
	return sb.String(), nil
}

func (g *Generator) snippet(r metadata.Record, b extractor.Block) string {
	if s, ok := r.Translations[g.Lang]; ok && g.Lang != "" {
		return strings.TrimRight(s, "\n")
	}
	return strings.TrimRight(b.Text, "\n")
}

func (g *Generator) style() metadata.Style {
	if g.Store != nil {
		return g.Store.Style()
	}
	return metadata.StyleFor(g.Lang)
}
