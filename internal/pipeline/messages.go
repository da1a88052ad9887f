package pipeline

import "codetwin/internal/metadata"

// Message is an edit event from one of the two views.
type Message interface {
	isMessage()
}

// TextChanged carries the full new text of the document.
type TextChanged struct {
	Code string
	Lang string
}

// VisualChanged carries one record edited on the canvas.
type VisualChanged struct {
	Record metadata.Record
}

func (TextChanged) isMessage()   {}
func (VisualChanged) isMessage() {}
