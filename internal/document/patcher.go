package document

import (
	"strings"
	"sync"
)

// Patcher serializes edits to a Document. Each method reads and writes the
// buffer under one lock, so a find-and-replace never observes positions made
// stale by another goroutine.
type Patcher struct {
	mu  sync.Mutex
	doc Document
}

// NewPatcher wraps doc
func NewPatcher(doc Document) *Patcher {
	return &Patcher{doc: doc}
}

// Do runs fn with exclusive access to the document
func (p *Patcher) Do(fn func(doc Document)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fn(p.doc)
}

// Value returns the current text
func (p *Patcher) Value() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.doc.Value()
}

// Contains reports whether s occurs in the document
func (p *Patcher) Contains(s string) bool {
	return strings.Contains(p.Value(), s)
}

// Insert replaces the selection with text
func (p *Patcher) Insert(text string) {
	p.Do(func(doc Document) {
		doc.ReplaceSelection(text)
	})
}

// ReplaceFirst replaces the first occurrence of target on the first line
// containing it. Other lines are left untouched.
func (p *Patcher) ReplaceFirst(target, replacement string) bool {
	if target == "" {
		return false
	}
	replaced := false
	p.Do(func(doc Document) {
		for i, line := range strings.Split(doc.Value(), "\n") {
			ch := strings.Index(line, target)
			if ch < 0 {
				continue
			}
			doc.ReplaceRange(replacement, Position{Line: i, Ch: ch}, Position{Line: i, Ch: ch + len(target)})
			replaced = true
			return
		}
	})
	return replaced
}

// ReplaceAll replaces every occurrence of target and returns how many were
// replaced. Targets spanning lines are never matched.
func (p *Patcher) ReplaceAll(target, replacement string) int {
	if target == "" || strings.Contains(target, "\n") {
		return 0
	}
	count := 0
	p.Do(func(doc Document) {
		lines := strings.Split(doc.Value(), "\n")
		// bottom-up and right to left, so earlier positions stay valid
		for i := len(lines) - 1; i >= 0; i-- {
			line := lines[i]
			var cols []int
			for off := 0; ; {
				ch := strings.Index(line[off:], target)
				if ch < 0 {
					break
				}
				cols = append(cols, off+ch)
				off += ch + len(target)
			}
			for j := len(cols) - 1; j >= 0; j-- {
				doc.ReplaceRange(replacement, Position{Line: i, Ch: cols[j]}, Position{Line: i, Ch: cols[j] + len(target)})
				count++
			}
		}
	})
	return count
}
