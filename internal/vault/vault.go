// Package vault gives read access to the notes directory that local image
// paths are resolved against.
package vault

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
)

// ErrNotFound is returned when a reference cannot be resolved to a file
var ErrNotFound = errors.New("file not found in vault")

// TrashDir is the vault-local directory removed sources are moved to
const TrashDir = ".trash"

// Vault is a directory of notes and attachments
type Vault struct {
	BaseDir string
}

// New creates a vault rooted at baseDir
func New(baseDir string) *Vault {
	return &Vault{BaseDir: baseDir}
}

// Abs returns the absolute filesystem path of a vault-relative path. Paths
// escaping the vault are rejected.
func (v *Vault) Abs(rel string) (string, error) {
	clean := path.Clean("/" + filepath.ToSlash(rel))
	if clean == "/" {
		return "", fmt.Errorf("invalid vault path %q", rel)
	}
	return filepath.Join(v.BaseDir, filepath.FromSlash(strings.TrimPrefix(clean, "/"))), nil
}

// Resolve maps a link target to an existing vault-relative path. The target
// is tried as written, then URL-decoded, then matched by file name anywhere
// in the vault.
func (v *Vault) Resolve(target string) (string, error) {
	candidates := []string{target}
	if decoded, err := url.PathUnescape(target); err == nil && decoded != target {
		candidates = append(candidates, decoded)
	}

	for _, c := range candidates {
		abs, err := v.Abs(c)
		if err != nil {
			continue
		}
		if info, err := os.Stat(abs); err == nil && !info.IsDir() {
			return v.rel(abs)
		}
	}

	name := path.Base(candidates[len(candidates)-1])
	var found string
	err := filepath.WalkDir(v.BaseDir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if p != v.BaseDir && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Name() == name {
			found = p
			return fs.SkipAll
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("failed to search vault for %s: %w", name, err)
	}
	if found == "" {
		return "", fmt.Errorf("%s: %w", target, ErrNotFound)
	}
	return v.rel(found)
}

// ReadFile reads the full content of a vault-relative file
func (v *Vault) ReadFile(rel string) ([]byte, error) {
	abs, err := v.Abs(rel)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", rel, err)
	}
	return data, nil
}

// Trash moves a vault-relative file into the vault's trash directory
func (v *Vault) Trash(rel string) error {
	src, err := v.Abs(rel)
	if err != nil {
		return err
	}
	clean := strings.TrimPrefix(path.Clean("/"+filepath.ToSlash(rel)), "/")
	dst := filepath.Join(v.BaseDir, TrashDir, filepath.FromSlash(clean))
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return fmt.Errorf("failed to create trash directory: %w", err)
	}
	if err := os.Rename(src, dst); err != nil {
		return fmt.Errorf("failed to move %s to trash: %w", rel, err)
	}
	log.Debug().Str("path", rel).Str("trash", dst).Msg("Moved source to trash")
	return nil
}

func (v *Vault) rel(abs string) (string, error) {
	r, err := filepath.Rel(v.BaseDir, abs)
	if err != nil {
		return "", fmt.Errorf("failed to compute vault path: %w", err)
	}
	return filepath.ToSlash(r), nil
}
