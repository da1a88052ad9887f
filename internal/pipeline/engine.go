// Package pipeline keeps a document's text and its canvas records in step.
// An Engine is not safe for concurrent use; it is meant to be owned by a
// single worker such as dispatch.Manager.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"codetwin/internal/analysis"
	"codetwin/internal/conflict"
	"codetwin/internal/extractor"
	"codetwin/internal/graph"
	"codetwin/internal/mapper"
	"codetwin/internal/metadata"

	"github.com/zeebo/xxh3"
)

// ErrNoDocument is returned for a visual edit before any text was seen.
var ErrNoDocument = errors.New("pipeline: no document loaded")

// Options configures an Engine.
type Options struct {
	// AutoFixDuplicates renames duplicate record ids on every text change.
	AutoFixDuplicates bool
	// PreserveFormatting keeps the style and indentation of replaced comments.
	PreserveFormatting bool
	Store              *metadata.Store
	Logger             *slog.Logger
}

// Engine applies text and visual edits to one document.
type Engine struct {
	opts       Options
	store      *metadata.Store
	logger     *slog.Logger
	extractors map[extractor.Language]*extractor.Extractor
	state      *State
}

// NewEngine creates an engine with no document.
func NewEngine(opts Options) *Engine {
	e := &Engine{
		opts:       opts,
		store:      opts.Store,
		logger:     opts.Logger,
		extractors: make(map[extractor.Language]*extractor.Extractor),
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	if e.store == nil {
		e.store = metadata.NewStore(metadata.WithLogger(e.logger))
	}
	return e
}

// Apply dispatches a message to TextChanged or VisualChanged.
func (e *Engine) Apply(ctx context.Context, msg Message) (*Result, error) {
	switch m := msg.(type) {
	case TextChanged:
		return e.TextChanged(ctx, m.Code, m.Lang)
	case *TextChanged:
		return e.TextChanged(ctx, m.Code, m.Lang)
	case VisualChanged:
		return e.VisualChanged(ctx, m.Record)
	case *VisualChanged:
		return e.VisualChanged(ctx, m.Record)
	default:
		return nil, fmt.Errorf("pipeline: unknown message %T", msg)
	}
}

// State returns the current document state, or nil before the first
// successful message.
func (e *Engine) State() *State {
	return e.state
}

// Reset forgets the current document.
func (e *Engine) Reset() {
	e.state = nil
}

// TextChanged re-derives blocks, records and mapping from new text. No
// conflict detection happens here; the text is authoritative.
func (e *Engine) TextChanged(ctx context.Context, code, lang string) (*Result, error) {
	var renamed []metadata.Rename
	if e.opts.AutoFixDuplicates {
		code, renamed = e.store.FixAll(code)
		for _, r := range renamed {
			e.logger.Info("pipeline.duplicate.renamed", "line", r.Line, "from", r.From, "to", r.To)
		}
	}

	next, res, err := e.derive(ctx, code, lang)
	if err != nil {
		return nil, err
	}
	res.Diagnostics.Renamed = renamed
	e.state = next
	return res, nil
}

// VisualChanged writes one canvas record back into the text. If the text
// already holds a different version of the record the two are reconciled
// first and the conflict is reported in the result.
func (e *Engine) VisualChanged(ctx context.Context, rec metadata.Record) (*Result, error) {
	if e.state == nil {
		return nil, ErrNoDocument
	}
	if rec.Version == 0 {
		rec.Version = metadata.DefaultVersion
	}

	// The text side is the record as ReadAll derives it, inheritance
	// included, so inherited values echoed back by the canvas are not seen
	// as edits.
	var conflicts []conflict.Conflict
	if existing, ok := e.textRecord(rec.ID); ok && conflict.Diverges(existing, rec) {
		merged, c := conflict.Resolve(existing, rec)
		e.logger.Info("pipeline.conflict.resolved",
			"id", c.ID, "type", string(c.Type), "resolution", string(c.Resolution))
		conflicts = append(conflicts, c)
		rec = merged
	}
	rec = metadata.NewArena(rawRecords(e.state.Code)).Own(rec)

	code, err := e.store.Upsert(e.state.Code, rec, e.opts.PreserveFormatting)
	if err != nil {
		return nil, fmt.Errorf("write record %s: %w", rec.ID, err)
	}

	next, res, err := e.derive(ctx, code, e.state.Lang)
	if err != nil {
		return nil, err
	}
	res.Conflicts = conflicts
	if !slices.Contains(res.Diagnostics.Affected, rec.ID) {
		res.Diagnostics.Affected = append(res.Diagnostics.Affected, rec.ID)
	}
	e.state = next
	return res, nil
}

// derive runs the parse, metadata and mapping stages against code. It does
// not touch e.state.
func (e *Engine) derive(ctx context.Context, code, lang string) (*State, *Result, error) {
	ext, err := e.extractorFor(lang)
	if err != nil {
		return nil, nil, err
	}
	lang = string(ext.Language())

	var prev *extractor.Parse
	var span analysis.Span
	if e.state != nil && e.state.Lang == lang {
		prev = e.state.Parse
		span = analysis.EditSpan([]byte(e.state.Code), []byte(code))
	}

	p, err := e.parseStage(ctx, ext, code, prev, span)
	if err != nil {
		return nil, nil, err
	}

	records, dups := e.store.ReadAll(code, metadata.NewDuplicateTracker())
	m := mapper.New(code, p.Blocks, records)
	g := graph.Build(records)

	next := &State{
		Code:    code,
		Lang:    lang,
		Hash:    xxh3.HashString(code),
		Parse:   p,
		Records: records,
		Mapper:  m,
		Graph:   g,
	}

	res := &Result{
		Code:    code,
		Lang:    lang,
		Hash:    next.Hash,
		Records: records,
		Diagnostics: Diagnostics{
			Orphaned:      m.OrphanedBlocks,
			Duplicates:    dups,
			DanglingLinks: g.DanglingLinks(),
			SyntaxErrors:  p.HasError,
		},
	}
	for _, b := range m.UnmappedCode {
		res.Diagnostics.Unmapped = append(res.Diagnostics.Unmapped, b.VisualID)
	}
	if prev != nil {
		impact := analysis.NewAnalyzer(prev.Blocks, p.Blocks).AnalyzeImpact(span)
		res.Diagnostics.Affected = unionIDs(impact.Removed, impact.Added)
	}

	e.logger.Debug("pipeline.derive",
		"lang", lang,
		"blocks", len(p.Blocks),
		"records", len(records),
		"orphaned", len(m.OrphanedBlocks),
		"duplicates", len(dups),
	)
	return next, res, nil
}

func (e *Engine) parseStage(ctx context.Context, ext *extractor.Extractor, code string, prev *extractor.Parse, span analysis.Span) (*extractor.Parse, error) {
	opts := extractor.Options{IgnoreSpans: ignoreSpans(code)}
	if prev != nil && !span.Empty() {
		opts.Edit = span.Edit()
	}
	p, err := ext.Parse(ctx, []byte(code), prev, opts)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", ext.Language(), err)
	}
	return p, nil
}

func (e *Engine) extractorFor(tag string) (*extractor.Extractor, error) {
	lang, err := extractor.ParseLanguage(tag)
	if err != nil {
		return nil, err
	}
	if ext, ok := e.extractors[lang]; ok {
		return ext, nil
	}
	ext, err := extractor.NewExtractor(string(lang))
	if err != nil {
		return nil, err
	}
	e.extractors[lang] = ext
	return ext, nil
}

// textRecord returns the derived record for id, or the raw comment payload
// when ReadAll skipped it.
func (e *Engine) textRecord(id string) (metadata.Record, bool) {
	for _, r := range e.state.Records {
		if r.ID == id {
			return r, true
		}
	}
	for _, entry := range metadata.Entries(e.state.Code) {
		if entry.Record.ID == id {
			return entry.Record, true
		}
	}
	return metadata.Record{}, false
}

// rawRecords returns the valid comment payloads of code without inheritance
// applied.
func rawRecords(code string) []metadata.Record {
	var out []metadata.Record
	for _, entry := range metadata.Entries(code) {
		if metadata.Validate(entry.Record) == nil {
			out = append(out, entry.Record)
		}
	}
	return out
}

func ignoreSpans(code string) []extractor.Range {
	spans := metadata.CommentSpans(code)
	if len(spans) == 0 {
		return nil
	}
	out := make([]extractor.Range, len(spans))
	for i, s := range spans {
		out[i] = extractor.Range{Start: uint32(s.Start), End: uint32(s.End)}
	}
	return out
}

func unionIDs(a, b []string) []string {
	var out []string
	for _, id := range append(append([]string(nil), a...), b...) {
		if !slices.Contains(out, id) {
			out = append(out, id)
		}
	}
	return out
}
