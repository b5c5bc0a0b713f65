package main

import (
	"testing"

	"go.lorenzomilicia.dev/imgup/internal/document"
)

func TestSelectLines(t *testing.T) {
	text := "one\ntwo\nthree\nfour"

	tests := []struct {
		rng    string
		want    string
		wantErr bool
	}{
		{"", text, false},
		{"2", "two", false},
		{"2:3", "two\nthree", false},
		{"4:4", "four", false},
		{"0:2", "", true},
		{"3:2", "", true},
		{"1:9", "", true},
		{"x", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.rng, func(t *testing.T) {
			doc := document.NewBuffer(text)
			err := selectLines(doc, tt.rng)
			if (err != nil) != tt.wantErr {
				t.Fatalf("selectLines(%q) error = %v, wantErr %v", tt.rng, err, tt.wantErr)
			}
			if err == nil && doc.Selection() != tt.want {
				t.Errorf("Selection() = %q, want %q", doc.Selection(), tt.want)
			}
		})
	}
}

func TestPlaceCursor(t *testing.T) {
	doc := document.NewBuffer("one\ntwo\nthree")

	placeCursor(doc, 2)
	doc.ReplaceSelection("!")
	if got, want := doc.Value(), "one\ntwo!\nthree"; got != want {
		t.Errorf("document = %q, want %q", got, want)
	}

	placeCursor(doc, 99)
	doc.ReplaceSelection("?")
	if got, want := doc.Value(), "one\ntwo!\nthree?"; got != want {
		t.Errorf("document = %q, want %q", got, want)
	}
}
