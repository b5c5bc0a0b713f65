// Package encoder turns image sources into base64 data URLs ready for upload.
package encoder

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/gif"  // Register GIF decoder
	_ "image/jpeg" // Register JPEG decoder
	_ "image/png"  // Register PNG decoder
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog/log"
	_ "golang.org/x/image/bmp"  // Register BMP decoder
	_ "golang.org/x/image/tiff" // Register TIFF decoder
	_ "golang.org/x/image/webp" // Register WebP decoder
)

var (
	// ErrEmpty is returned when a source yields no bytes
	ErrEmpty = errors.New("image data is empty")
	// ErrFetchStatus is returned when a remote image answers with a non-200 status
	ErrFetchStatus = errors.New("network request failed")
)

// EncodingError reports a source that could not be turned into a payload
type EncodingError struct {
	Source string
	Err    error
}

func (e *EncodingError) Error() string {
	return fmt.Sprintf("failed to encode %s: %v", e.Source, e.Err)
}

func (e *EncodingError) Unwrap() error {
	return e.Err
}

// Encoded is an image ready for upload
type Encoded struct {
	// Data is a data URL: data:<mime>;base64,<payload>
	Data     string
	Size     int
	MIMEType string
	// Width and Height are zero when the format could not be decoded
	Width  int
	Height int
}

// Encode reads the full content of src and encodes it as a data URL. A
// missing MIME type is sniffed from the content.
func Encode(ctx context.Context, src Source) (*Encoded, error) {
	data, mt, err := src.Read(ctx)
	if err != nil {
		return nil, &EncodingError{Source: src.Name(), Err: err}
	}
	if len(data) == 0 {
		return nil, &EncodingError{Source: src.Name(), Err: ErrEmpty}
	}

	if mt == "" {
		mt = mimetype.Detect(data).String()
		if i := strings.Index(mt, ";"); i > 0 {
			mt = mt[:i]
		}
	}

	enc := &Encoded{
		Data:     DataURL(mt, data),
		Size:     len(data),
		MIMEType: mt,
	}

	if cfg, format, err := image.DecodeConfig(bytes.NewReader(data)); err == nil {
		enc.Width = cfg.Width
		enc.Height = cfg.Height
		log.Debug().
			Str("source", src.Name()).
			Str("format", format).
			Int("width", cfg.Width).
			Int("height", cfg.Height).
			Msg("Decoded image header")
	}

	return enc, nil
}

// DataURL builds a base64 data URL
func DataURL(mimeType string, data []byte) string {
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// DecodeDataURL splits a base64 data URL into its bytes and MIME type. A bare
// base64 string is accepted too. Spaces are read as '+', since some clients
// send the payload in a form body without escaping it.
func DecodeDataURL(s string) ([]byte, string, error) {
	payload := strings.TrimSpace(s)
	var mt string
	if strings.HasPrefix(payload, "data:") {
		comma := strings.Index(payload, ",")
		if comma < 0 {
			return nil, "", fmt.Errorf("malformed data URL")
		}
		meta := payload[len("data:"):comma]
		if !strings.HasSuffix(meta, ";base64") {
			return nil, "", fmt.Errorf("data URL is not base64 encoded")
		}
		mt = strings.TrimSuffix(meta, ";base64")
		payload = payload[comma+1:]
	}

	payload = strings.ReplaceAll(payload, " ", "+")
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, "", fmt.Errorf("failed to decode base64 payload: %w", err)
	}
	if len(data) == 0 {
		return nil, "", ErrEmpty
	}
	return data, mt, nil
}
