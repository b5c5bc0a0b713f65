// Package document models the editor buffer the pipeline patches.
package document

import (
	"strings"
	"sync"
)

// Position addresses a byte column on a zero-based line
type Position struct {
	Line int
	Ch   int
}

// Document is the part of the host editor the pipeline needs
type Document interface {
	// Value returns the full text
	Value() string
	// Selection returns the selected text, empty when nothing is selected
	Selection() string
	// ReplaceSelection replaces the selection, or inserts at the cursor
	ReplaceSelection(text string)
	// ReplaceRange replaces the text between from and to
	ReplaceRange(text string, from, to Position)
}

// Buffer is an in-memory Document with a cursor and a selection
type Buffer struct {
	mu     sync.Mutex
	text   string
	anchor int
	head   int
}

// NewBuffer creates a buffer holding text with the cursor at the end
func NewBuffer(text string) *Buffer {
	return &Buffer{text: text, anchor: len(text), head: len(text)}
}

func (b *Buffer) Value() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.text
}

// SetValue replaces the whole text, keeping the cursor where possible
func (b *Buffer) SetValue(text string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.text = text
	b.anchor = min(b.anchor, len(text))
	b.head = min(b.head, len(text))
}

// Cursor returns the head of the selection
func (b *Buffer) Cursor() Position {
	b.mu.Lock()
	defer b.mu.Unlock()
	return offsetToPos(b.text, b.head)
}

// SetCursor collapses the selection at p
func (b *Buffer) SetCursor(p Position) {
	b.mu.Lock()
	defer b.mu.Unlock()
	off := posToOffset(b.text, p)
	b.anchor, b.head = off, off
}

// SetSelection selects the text between from and to
func (b *Buffer) SetSelection(from, to Position) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.anchor = posToOffset(b.text, from)
	b.head = posToOffset(b.text, to)
}

func (b *Buffer) Selection() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	start, end := b.selectionBounds()
	return b.text[start:end]
}

func (b *Buffer) ReplaceSelection(text string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	start, end := b.selectionBounds()
	b.replace(text, start, end)
	b.anchor = start + len(text)
	b.head = b.anchor
}

func (b *Buffer) ReplaceRange(text string, from, to Position) {
	b.mu.Lock()
	defer b.mu.Unlock()
	start := posToOffset(b.text, from)
	end := posToOffset(b.text, to)
	if end < start {
		start, end = end, start
	}
	b.replace(text, start, end)
}

// LineCount returns the number of lines
func (b *Buffer) LineCount() int {
	return strings.Count(b.Value(), "\n") + 1
}

func (b *Buffer) selectionBounds() (int, int) {
	if b.anchor <= b.head {
		return b.anchor, b.head
	}
	return b.head, b.anchor
}

// replace swaps text[start:end] and maps the selection through the edit
func (b *Buffer) replace(text string, start, end int) {
	b.text = b.text[:start] + text + b.text[end:]
	mapOffset := func(off int) int {
		switch {
		case off <= start:
			return off
		case off >= end:
			return off + len(text) - (end - start)
		default:
			return start + len(text)
		}
	}
	b.anchor = mapOffset(b.anchor)
	b.head = mapOffset(b.head)
}

// posToOffset converts p to a byte offset, clamping to the text bounds
func posToOffset(text string, p Position) int {
	if p.Line < 0 {
		return 0
	}
	off := 0
	for line := 0; line < p.Line; line++ {
		i := strings.IndexByte(text[off:], '\n')
		if i < 0 {
			return len(text)
		}
		off += i + 1
	}
	lineEnd := len(text)
	if i := strings.IndexByte(text[off:], '\n'); i >= 0 {
		lineEnd = off + i
	}
	return min(off+max(p.Ch, 0), lineEnd)
}

func offsetToPos(text string, off int) Position {
	before := text[:off]
	line := strings.Count(before, "\n")
	ch := off
	if i := strings.LastIndexByte(before, '\n'); i >= 0 {
		ch = off - i - 1
	}
	return Position{Line: line, Ch: ch}
}
