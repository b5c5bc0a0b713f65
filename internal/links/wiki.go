package links

import "regexp"

var wikiPattern = regexp.MustCompile(`!\[\[(.*?)(\s*?\|.*?)?\]\]`)

// WikiParser recognises ![[path|display]] embeds
type WikiParser struct{}

// Parse returns every wiki embed of text in order. The name is the file stem
// of the path followed by the display segment, if any, as written.
func (WikiParser) Parse(text string) []Reference {
	var refs []Reference
	for _, m := range wikiPattern.FindAllStringSubmatchIndex(text, -1) {
		p := text[m[2]:m[3]]
		name := fileStem(p)
		if m[4] >= 0 {
			name += text[m[4]:m[5]]
		}
		refs = append(refs, Reference{
			Path:      p,
			Name:      name,
			Source:    text[m[0]:m[1]],
			Syntax:    SyntaxWiki,
			Offset:    m[0],
			PathStart: m[2] - m[0],
		})
	}
	return refs
}
