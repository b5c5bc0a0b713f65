// Package links finds image references in markdown documents.
//
// Two syntaxes are recognised, each by its own parser:
//
//	![name](path)          bracket links, including <path> and "title" forms
//	![[path|display]]      wiki embeds
//
// Extract runs the bracket parser first and the wiki parser second and keeps
// the first reference seen for every path.
package links

import (
	"path"
	"strings"
)

// Syntax tags the parser a reference came from
type Syntax int

const (
	SyntaxBracket Syntax = iota
	SyntaxWiki
)

func (s Syntax) String() string {
	switch s {
	case SyntaxBracket:
		return "bracket"
	case SyntaxWiki:
		return "wiki"
	default:
		return "unknown"
	}
}

// Reference is one image found in a document
type Reference struct {
	// Path is a vault-relative path, a bare file name or a remote URL
	Path string
	// Name is the display name (alt text or wiki display)
	Name string
	// Source is the exact document text to replace once resolved
	Source string
	Syntax Syntax
	// Offset is the byte offset of Source in the scanned text
	Offset int
	// PathStart is the byte offset of Path inside Source
	PathStart int
}

// IsRemote reports whether the reference points to an http(s) URL
func (r Reference) IsRemote() bool {
	return isRemote(r.Path)
}

// Rewrite returns the text that replaces Source once the image lives at url.
// Wiki embeds become bracket images. Bracket links keep their alt text and
// title and only swap the path.
func (r Reference) Rewrite(url string) string {
	end := r.PathStart + len(r.Path)
	if r.Syntax == SyntaxWiki || r.PathStart < 0 || end > len(r.Source) || r.Source[r.PathStart:end] != r.Path {
		return "![" + r.Name + "](" + url + ")"
	}
	return r.Source[:r.PathStart] + url + r.Source[end:]
}

// Parser produces references for one syntax
type Parser interface {
	Parse(text string) []Reference
}

var defaultParsers = []Parser{BracketParser{}, WikiParser{}}

// Extract returns the image references of text in scan order, deduplicated by
// path. Bracket links are scanned before wiki embeds.
func Extract(text string) []Reference {
	return Merge(text, defaultParsers...)
}

// Scan returns every image reference of text, bracket links first, without
// deduplication
func Scan(text string) []Reference {
	var refs []Reference
	for _, p := range defaultParsers {
		refs = append(refs, p.Parse(text)...)
	}
	return refs
}

// Merge runs parsers in order over text and keeps the first reference of
// every path.
func Merge(text string, parsers ...Parser) []Reference {
	var refs []Reference
	seen := make(map[string]bool)
	for _, p := range parsers {
		for _, ref := range p.Parse(text) {
			if seen[ref.Path] {
				continue
			}
			seen[ref.Path] = true
			refs = append(refs, ref)
		}
	}
	return refs
}

// Remote returns the remote references whose host is not block-listed
func Remote(refs []Reference, blockDomains []string) []Reference {
	var out []Reference
	for _, ref := range refs {
		if !ref.IsRemote() {
			continue
		}
		if HasBlockedDomain(ref.Path, blockDomains) {
			continue
		}
		out = append(out, ref)
	}
	return out
}

// HostedOn returns the remote references served from serverURL's host
func HostedOn(refs []Reference, serverURL string) []Reference {
	var out []Reference
	for _, ref := range refs {
		if ref.IsRemote() && HasBlockedDomain(ref.Path, []string{serverURL}) {
			out = append(out, ref)
		}
	}
	return out
}

// Local returns the references that are not remote URLs
func Local(refs []Reference) []Reference {
	var out []Reference
	for _, ref := range refs {
		if !ref.IsRemote() {
			out = append(out, ref)
		}
	}
	return out
}

func isRemote(p string) bool {
	return strings.HasPrefix(p, "http://") || strings.HasPrefix(p, "https://")
}

// fileStem returns the base name of p without its extension
func fileStem(p string) string {
	base := path.Base(p)
	stem := strings.TrimSuffix(base, path.Ext(base))
	if stem == "" {
		return base
	}
	return stem
}
