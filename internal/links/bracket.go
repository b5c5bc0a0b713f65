package links

import "regexp"

// bracketForms lists the accepted ![name](path) shapes in precedence order.
// The alternation keeps leftmost-first semantics across forms.
var bracketForms = []struct {
	pattern string
	name    int
	path    int
}{
	{pattern: `!\[(.*?)\]\(<(\S+\.\w+)>\)`, name: 1, path: 2},
	{pattern: `!\[(.*?)\]\((\S+\.\w+)(?:\s+"[^"]*")?\)`, name: 3, path: 4},
	{pattern: `!\[(.*?)\]\((https?://.*?)\)`, name: 5, path: 6},
}

var bracketPattern = compileForms()

func compileForms() *regexp.Regexp {
	expr := ""
	for i, f := range bracketForms {
		if i > 0 {
			expr += "|"
		}
		expr += f.pattern
	}
	return regexp.MustCompile(expr)
}

// BracketParser recognises ![name](path) links
type BracketParser struct{}

// Parse returns every bracket link of text in order
func (BracketParser) Parse(text string) []Reference {
	var refs []Reference
	for _, m := range bracketPattern.FindAllStringSubmatchIndex(text, -1) {
		for _, f := range bracketForms {
			if m[2*f.path] < 0 {
				continue
			}
			refs = append(refs, Reference{
				Path:      text[m[2*f.path]:m[2*f.path+1]],
				Name:      text[m[2*f.name]:m[2*f.name+1]],
				Source:    text[m[0]:m[1]],
				Syntax:    SyntaxBracket,
				Offset:    m[0],
				PathStart: m[2*f.path] - m[0],
			})
			break
		}
	}
	return refs
}
