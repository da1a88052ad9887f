package extractor

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	sitter "github.com/smacker/go-tree-sitter"
)

// ErrUnsupportedLanguage is returned for language tags without a grammar.
var ErrUnsupportedLanguage = errors.New("unsupported language")

// Edit describes the byte span that changed between the previous parse and
// the new text. OldEnd is measured in the old text, NewEnd in the new one.
type Edit struct {
	Start  uint32
	OldEnd uint32
	NewEnd uint32
}

func (e *Edit) fits(oldText, newText []byte) bool {
	return e != nil &&
		e.Start <= e.OldEnd && e.Start <= e.NewEnd &&
		int(e.OldEnd) <= len(oldText) && int(e.NewEnd) <= len(newText)
}

// Options tunes a single Parse call.
type Options struct {
	// Edit narrows incremental re-parsing. When nil and the previous parse
	// does not match the new text, a whole-range edit is submitted.
	Edit *Edit
	// IgnoreSpans are excluded from the logical offsets used for stable ids.
	IgnoreSpans []Range
}

// Parse is the result of one extraction pass. The tree is retained so the
// next pass can re-parse incrementally.
type Parse struct {
	Lang     Language
	Text     []byte
	Blocks   []Block
	HasError bool

	tree     *sitter.Tree
	consumed bool
}

// Extractor orchestrates parsing using a language-specific extractor.
type Extractor struct {
	langExtractor LanguageExtractor
	lang          Language
	kinds         map[string]Rule
}

// NewExtractor creates a new extractor for a given language tag.
func NewExtractor(tag string) (*Extractor, error) {
	lang, err := ParseLanguage(tag)
	if err != nil {
		return nil, err
	}
	langExt, err := languageExtractor(lang)
	if err != nil {
		return nil, err
	}
	if langExt.GetLanguage() == nil {
		return nil, fmt.Errorf("%w: grammar for %s failed to load", ErrUnsupportedLanguage, lang)
	}
	return &Extractor{langExtractor: langExt, lang: lang, kinds: langExt.KindTable()}, nil
}

// Language returns the extractor's grammar.
func (e *Extractor) Language() Language {
	return e.lang
}

// Parse extracts the block list of src. When prev is a parse of the same
// language its tree is edited and reused; prev must not be reused afterwards
// for incremental parsing (its tree has been consumed).
func (e *Extractor) Parse(ctx context.Context, src []byte, prev *Parse, opts Options) (*Parse, error) {
	text := append([]byte(nil), src...)

	var oldTree *sitter.Tree
	if prev != nil && prev.Lang == e.lang && prev.tree != nil && !prev.consumed {
		if !bytes.Equal(prev.Text, text) {
			edit := opts.Edit
			if !edit.fits(prev.Text, text) {
				edit = &Edit{Start: 0, OldEnd: uint32(len(prev.Text)), NewEnd: uint32(len(text))}
			}
			prev.tree.Edit(editInput(prev.Text, text, *edit))
		}
		oldTree = prev.tree
		prev.consumed = true
	}

	parser := sitter.NewParser()
	parser.SetLanguage(e.langExtractor.GetLanguage())
	tree, err := parser.ParseCtx(ctx, oldTree, text)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s source: %w", e.lang, err)
	}

	root := tree.RootNode()
	res := &Parse{
		Lang:     e.lang,
		Text:     text,
		HasError: root.HasError(),
		tree:     tree,
	}
	res.Blocks = e.flatten(root, text, newOffsetMapper(opts.IgnoreSpans))
	return res, nil
}

// flatten walks the tree in pre-order and emits a Block for every named node
// whose type appears in the kind table. The root node is never emitted.
func (e *Extractor) flatten(root *sitter.Node, text []byte, offsets offsetMapper) []Block {
	var blocks []Block

	cursor := sitter.NewTreeCursor(root)
	defer cursor.Close()

	var visit func(*sitter.TreeCursor, bool)
	visit = func(c *sitter.TreeCursor, isRoot bool) {
		n := c.CurrentNode()
		if !isRoot && n.IsNamed() {
			if b, ok := e.blockFor(n, text, offsets); ok {
				blocks = append(blocks, b)
			}
		}
		if c.GoToFirstChild() {
			visit(c, false)
			for c.GoToNextSibling() {
				visit(c, false)
			}
			c.GoToParent()
		}
	}
	visit(cursor, true)
	return blocks
}

func (e *Extractor) blockFor(n *sitter.Node, text []byte, offsets offsetMapper) (Block, bool) {
	rule, ok := e.kinds[n.Type()]
	if !ok {
		return Block{}, false
	}

	r := Range{Start: n.StartByte(), End: n.EndByte()}
	if r.End > uint32(len(text)) || r.Len() == 0 {
		return Block{}, false
	}

	kind := rule.Kind
	var anchors []Range
	if rule.Operator {
		op := operatorNode(n)
		if op == nil {
			return Block{}, false
		}
		kind = OpKind(op.Type())
		anchors = append(anchors, Range{Start: op.StartByte(), End: op.EndByte()})
	} else if name := n.ChildByFieldName("name"); name != nil {
		anchors = append(anchors, Range{Start: name.StartByte(), End: name.EndByte()})
	}

	snippet := string(text[r.Start:r.End])
	return Block{
		Kind:     kind,
		VisualID: BuildStableID(kind, snippet, offsets.logical(r.Start)),
		Range:    r,
		Anchors:  anchors,
		Text:     snippet,
		RawKind:  n.Type(),
		HasError: n.HasError(),
	}, true
}

// operatorNode finds the operator token of an expression node, preferring
// the grammar's operator field.
func operatorNode(n *sitter.Node) *sitter.Node {
	for _, field := range []string{"operator", "operators"} {
		if op := n.ChildByFieldName(field); op != nil && operatorSymbols[op.Type()] {
			return op
		}
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		child := n.Child(i)
		if child != nil && !child.IsNamed() && operatorSymbols[child.Type()] {
			return child
		}
	}
	return nil
}

func editInput(oldText, newText []byte, edit Edit) sitter.EditInput {
	return sitter.EditInput{
		StartIndex:  edit.Start,
		OldEndIndex: edit.OldEnd,
		NewEndIndex: edit.NewEnd,
		StartPoint:  pointAt(oldText, edit.Start),
		OldEndPoint: pointAt(oldText, edit.OldEnd),
		NewEndPoint: pointAt(newText, edit.NewEnd),
	}
}

func pointAt(text []byte, offset uint32) sitter.Point {
	if int(offset) > len(text) {
		offset = uint32(len(text))
	}
	var row, col uint32
	for _, b := range text[:offset] {
		if b == '\n' {
			row++
			col = 0
			continue
		}
		col++
	}
	return sitter.Point{Row: row, Column: col}
}
