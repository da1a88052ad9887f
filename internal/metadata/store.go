package metadata

import (
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"strings"
	"time"
)

// Store reads and rewrites metadata comments in source text. It holds no
// per-document state; every call operates on the text it is given.
type Store struct {
	style  Style
	now    func() time.Time
	logger *slog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithStyle sets the comment style used for inserted comments.
func WithStyle(style Style) Option {
	return func(s *Store) { s.style = style }
}

// WithClock overrides the time source used for UpdatedAt stamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithLogger sets the logger used for rejected writes.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) { s.logger = logger }
}

// NewStore creates a store. Defaults: "//" comments, wall clock, slog.Default.
func NewStore(opts ...Option) *Store {
	s := &Store{style: StyleSlash, now: time.Now, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// Style returns the comment style used for inserted comments.
func (s *Store) Style() Style {
	return s.style
}

// ReadAll parses every metadata comment, registers ids in tracker and
// returns the inheritance-resolved records in document order together with
// the ids that were seen more than once. Later duplicates are dropped;
// malformed payloads and records that fail Validate are skipped.
func (s *Store) ReadAll(text string, tracker *DuplicateTracker) ([]Record, []string) {
	if tracker == nil {
		tracker = NewDuplicateTracker()
	}

	var unique []Record
	var dups []string
	for _, e := range Entries(text) {
		if err := Validate(e.Record); err != nil {
			s.logger.Debug("metadata.read.skipped", "id", e.Record.ID, "error", err)
			continue
		}
		if !tracker.Register(e.Record.ID) {
			if !slices.Contains(dups, e.Record.ID) {
				dups = append(dups, e.Record.ID)
			}
			continue
		}
		unique = append(unique, e.Record)
	}

	arena := NewArena(unique)
	records := make([]Record, 0, len(unique))
	for _, r := range unique {
		resolved, ok := arena.Resolve(r.ID)
		if !ok {
			resolved = r
		}
		records = append(records, resolved)
	}
	return records, dups
}

// ReadAllWithDups reads text with a fresh tracker.
func (s *Store) ReadAllWithDups(text string) ([]Record, []string) {
	return s.ReadAll(text, NewDuplicateTracker())
}

// Upsert writes rec into text. An existing comment with the same id has its
// payload replaced in place; otherwise a new comment is inserted at the top
// of the document (after a shebang line, if any). UpdatedAt is always
// re-stamped. An invalid record is rejected: the original text is returned
// together with the validation error.
func (s *Store) Upsert(text string, rec Record, preserveFormatting bool) (string, error) {
	rec = rec.Normalized()
	if err := Validate(rec); err != nil {
		s.logger.Warn("metadata.upsert.rejected", "id", rec.ID, "error", err)
		return text, err
	}
	rec.UpdatedAt = s.now().UTC()

	for _, e := range Entries(text) {
		if e.Record.ID != rec.ID {
			continue
		}
		rec.Version = max(rec.Version, e.Record.Version)
		style, indent := s.style, ""
		if preserveFormatting {
			style, indent = e.Style, e.Indent
		}
		rendered, err := Render(rec, style, indent)
		if err != nil {
			return text, fmt.Errorf("failed to render record %q: %w", rec.ID, err)
		}
		return text[:e.Start] + rendered + text[e.End:], nil
	}

	rendered, err := Render(rec, s.style, "")
	if err != nil {
		return text, fmt.Errorf("failed to render record %q: %w", rec.ID, err)
	}
	at := insertionPoint(text)
	return text[:at] + rendered + "\n" + text[at:], nil
}

func insertionPoint(text string) int {
	if !strings.HasPrefix(text, "#!") {
		return 0
	}
	if i := strings.IndexByte(text, '\n'); i >= 0 {
		return i + 1
	}
	return len(text)
}

// Rename describes one id rewritten by FixAll.
type Rename struct {
	Line int
	From string
	To   string
}

// FixAll renames every later occurrence of a duplicated id to the first
// free "<id>-<n>" (n starting at 2) and rewrites those comments in place,
// keeping their formatting. The result is deterministic for a given text.
func (s *Store) FixAll(text string) (string, []Rename) {
	entries := Entries(text)

	taken := make(map[string]bool, len(entries))
	for _, e := range entries {
		taken[e.Record.ID] = true
	}

	seen := make(map[string]bool, len(entries))
	var renames []Rename
	var sb strings.Builder
	last := 0
	for _, e := range entries {
		id := e.Record.ID
		if !seen[id] {
			seen[id] = true
			continue
		}

		newID := nextFreeID(id, taken)
		taken[newID] = true
		seen[newID] = true

		rec := e.Record.Clone()
		rec.ID = newID
		rendered, err := Render(rec, e.Style, e.Indent)
		if err != nil {
			s.logger.Warn("metadata.fix.render_failed", "id", id, "error", err)
			continue
		}
		sb.WriteString(text[last:e.Start])
		sb.WriteString(rendered)
		last = e.End
		renames = append(renames, Rename{Line: e.Line, From: id, To: newID})
	}
	if len(renames) == 0 {
		return text, nil
	}
	sb.WriteString(text[last:])
	return sb.String(), renames
}

func nextFreeID(id string, taken map[string]bool) string {
	for n := 2; ; n++ {
		candidate := id + "-" + strconv.Itoa(n)
		if !taken[candidate] {
			return candidate
		}
	}
}
