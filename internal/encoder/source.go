package encoder

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"path"
	"strings"

	"go.lorenzomilicia.dev/imgup/internal/vault"
)

// Source abstracts where image bytes come from
type Source interface {
	// Name is the display name of the image
	Name() string
	// Read returns the full content and the declared MIME type, which may be empty
	Read(ctx context.Context) ([]byte, string, error)
}

// BlobSource is an in-memory file handed over by a paste or drop event
type BlobSource struct {
	Filename string
	Type     string
	// Path is the file's stable location when the host knows it
	Path string
	Data []byte
}

func (b *BlobSource) Name() string {
	return b.Filename
}

func (b *BlobSource) Read(ctx context.Context) ([]byte, string, error) {
	return b.Data, b.Type, nil
}

// FileSource reads a vault-relative file
type FileSource struct {
	Vault *vault.Vault
	Path  string
}

func (f *FileSource) Name() string {
	return path.Base(f.Path)
}

func (f *FileSource) Read(ctx context.Context) ([]byte, string, error) {
	data, err := f.Vault.ReadFile(f.Path)
	if err != nil {
		return nil, "", err
	}
	return data, "", nil
}

// RemoteSource downloads an image over HTTP
type RemoteSource struct {
	URL    string
	Client *http.Client
}

func (r *RemoteSource) Name() string {
	u, err := url.Parse(r.URL)
	if err != nil || u.Path == "" || u.Path == "/" {
		return r.URL
	}
	return path.Base(u.Path)
}

func (r *RemoteSource) Read(ctx context.Context) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.URL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("User-Agent", "imgup/1.0")

	client := r.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("download: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("%w: HTTP %d", ErrFetchStatus, resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read response body: %w", err)
	}

	mt := strings.TrimSpace(resp.Header.Get("Content-Type"))
	if parsed, _, err := mime.ParseMediaType(mt); err == nil {
		mt = parsed
	}
	return data, mt, nil
}
