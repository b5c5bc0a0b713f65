// Package frontmatter reads the YAML metadata block at the top of a note.
package frontmatter

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Values holds the decoded front-matter keys of a note
type Values map[string]interface{}

// Split separates a leading "---" fenced block from the body. ok is false
// when the text has no front matter.
func Split(text string) (meta, body string, ok bool) {
	lines := strings.Split(text, "\n")
	if len(lines) < 2 || strings.TrimSpace(lines[0]) != "---" {
		return "", text, false
	}
	for i := 1; i < len(lines); i++ {
		if strings.TrimSpace(lines[i]) == "---" {
			return strings.Join(lines[1:i], "\n"), strings.Join(lines[i+1:], "\n"), true
		}
	}
	return "", text, false
}

// Parse decodes the front matter of text. A note without front matter yields
// empty values and no error.
func Parse(text string) (Values, error) {
	meta, _, ok := Split(text)
	if !ok || strings.TrimSpace(meta) == "" {
		return Values{}, nil
	}
	var v Values
	if err := yaml.Unmarshal([]byte(meta), &v); err != nil {
		return Values{}, fmt.Errorf("failed to parse front matter: %w", err)
	}
	if v == nil {
		v = Values{}
	}
	return v, nil
}

// Bool returns the value of key when it is a YAML boolean
func (v Values) Bool(key string) (value bool, ok bool) {
	raw, exists := v[key]
	if !exists {
		return false, false
	}
	b, isBool := raw.(bool)
	return b, isBool
}
