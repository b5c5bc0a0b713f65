package pipeline

import (
	"strings"

	"go.lorenzomilicia.dev/imgup/internal/encoder"
)

// File is one entry of a paste or drop payload
type File struct {
	Name string
	// Type is the MIME type declared by the host, possibly empty
	Type string
	Size int
	// Path is the file's stable location, when the host knows it
	Path string
	Data []byte
}

// IsImage reports whether the declared type has an image prefix
func (f File) IsImage() bool {
	return strings.HasPrefix(f.Type, "image")
}

func (f File) source() encoder.Source {
	return &encoder.BlobSource{
		Filename: f.Name,
		Type:     f.Type,
		Path:     f.Path,
		Data:     f.Data,
	}
}

// PasteEvent is a clipboard paste into a document
type PasteEvent struct {
	Files []File
	// Text is the plain-text clipboard content
	Text string
}

// DropEvent is a drag and drop of files onto a document
type DropEvent struct {
	Files []File
	// InsertLocalLink is set when the user holds the modifier asking for a
	// local link instead of an upload
	InsertLocalLink bool
}

func imageFiles(files []File) []File {
	var out []File
	for _, f := range files {
		if f.IsImage() {
			out = append(out, f)
		}
	}
	return out
}
