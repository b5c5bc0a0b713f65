package imageserver

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"image"
	_ "image/gif"  // Register GIF decoder
	_ "image/jpeg" // Register JPEG decoder
	_ "image/png"  // Register PNG decoder
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog/log"
	_ "golang.org/x/image/webp" // Register WebP decoder
)

var (
	// ErrUnsupported is returned for payloads that are not images
	ErrUnsupported = errors.New("unsupported file type")
	// ErrOutsideStore is returned for paths that do not point into the store
	ErrOutsideStore = errors.New("path is outside the image store")
)

// convertible lists the formats re-encoded to WebP when a quality is given
var convertible = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/webp": true,
	"image/bmp":  true,
	"image/tiff": true,
}

// Store keeps uploaded images on disk, one sub-directory per appid. Files are
// named after the hash of their content, so uploading the same bytes twice
// stores them once.
type Store struct {
	// Dir is the root directory of the store
	Dir string
	// MaxWidth bounds the width of re-encoded images, zero keeps the original size
	MaxWidth int
}

// NewStore creates a store rooted at dir
func NewStore(dir string, maxWidth int) *Store {
	return &Store{Dir: dir, MaxWidth: maxWidth}
}

// ComputeHash computes a SHA256 hash of the image content
func ComputeHash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Save stores data below appid and returns its slash-separated path relative
// to the store. With a quality in 1..100 decodable images are re-encoded to
// WebP at that quality, otherwise the bytes are kept as they are.
func (s *Store) Save(appid string, data []byte, quality int) (string, error) {
	mt := mimetype.Detect(data)
	if !strings.HasPrefix(mt.String(), "image/") {
		return "", fmt.Errorf("%w: %s", ErrUnsupported, mt.String())
	}
	mimeType := mt.String()
	if i := strings.Index(mimeType, ";"); i > 0 {
		mimeType = mimeType[:i]
	}

	convert := quality > 0 && quality <= 100 && convertible[mimeType]
	ext := mt.Extension()
	if convert {
		ext = ".webp"
	}

	hashID := ComputeHash(data)[:12]
	rel := path.Join(cleanDir(appid), hashID+ext)
	abs := filepath.Join(s.Dir, filepath.FromSlash(rel))

	// Skip if the same content is already stored
	if _, err := os.Stat(abs); err == nil {
		log.Debug().Str("path", rel).Msg("Image already stored")
		return rel, nil
	}

	if err := os.MkdirAll(filepath.Dir(abs), 0755); err != nil {
		return "", fmt.Errorf("failed to create directory: %w", err)
	}

	if !convert {
		if err := os.WriteFile(abs, data, 0644); err != nil {
			return "", fmt.Errorf("failed to save image: %w", err)
		}
		return rel, nil
	}

	if err := s.saveWebP(abs, data, quality); err != nil {
		return "", err
	}
	return rel, nil
}

func (s *Store) saveWebP(abs string, data []byte, quality int) error {
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return fmt.Errorf("failed to decode image: %w", err)
	}
	img = s.resizeImage(img)

	f, err := os.Create(abs)
	if err != nil {
		return fmt.Errorf("failed to create image file: %w", err)
	}
	if err := webp.Encode(f, img, &webp.Options{Quality: float32(quality)}); err != nil {
		f.Close()
		os.Remove(abs)
		return fmt.Errorf("failed to encode WebP: %w", err)
	}
	return f.Close()
}

// resizeImage scales img down to MaxWidth using Lanczos filter
func (s *Store) resizeImage(img image.Image) image.Image {
	if s.MaxWidth <= 0 || img.Bounds().Dx() <= s.MaxWidth {
		return img
	}
	return imaging.Resize(img, s.MaxWidth, 0, imaging.Lanczos)
}

// Delete removes the file at rel. Deleting a missing file is not an error.
func (s *Store) Delete(rel string) error {
	clean := strings.TrimPrefix(path.Clean("/"+rel), "/")
	if clean == "" {
		return ErrOutsideStore
	}
	abs := filepath.Join(s.Dir, filepath.FromSlash(clean))
	if err := os.Remove(abs); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			log.Debug().Str("path", clean).Msg("Image already deleted")
			return nil
		}
		return fmt.Errorf("failed to delete %s: %w", clean, err)
	}
	return nil
}

// cleanDir turns an appid into a relative directory that cannot leave the store
func cleanDir(appid string) string {
	return strings.TrimPrefix(path.Clean("/"+strings.TrimSpace(appid)), "/")
}
