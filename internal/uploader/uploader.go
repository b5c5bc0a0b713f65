package uploader

import (
	"context"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"

	"go.lorenzomilicia.dev/imgup/internal/settings"
)

// Job is one image on its way to the remote server
type Job struct {
	PlaceholderID string
	Name          string
	Size          int
	MIMEType      string
	// Payload is the base64 data URL of the image
	Payload string
}

// Result is the uniform outcome of an upload. Gateways never return Go
// errors from Upload; failures are reported through Message.
type Result struct {
	OK      bool
	URL     string
	Message string
}

// Failed converts err into an error result
func Failed(err error) Result {
	return Result{Message: err.Error()}
}

// DeleteResult lists the document sources whose images were deleted
type DeleteResult struct {
	Sources []string
	Message string
}

// Gateway defines the remote image storage the pipeline talks to
type Gateway interface {
	// Upload sends one image and returns its public URL
	Upload(ctx context.Context, job Job) Result

	// Delete removes the images referenced in selection that are hosted by
	// this gateway and returns their source text
	Delete(ctx context.Context, selection string) (DeleteResult, error)
}

// UploadError describes a failed upload round-trip
type UploadError struct {
	StatusCode int
	Code       int
	Message    string
	Err        error
}

func (e *UploadError) Error() string {
	switch {
	case e.Message != "" && e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	case e.Message != "":
		return e.Message
	case e.StatusCode != 0:
		return fmt.Sprintf("upload failed: HTTP %d", e.StatusCode)
	default:
		return fmt.Sprintf("upload failed: %v", e.Err)
	}
}

func (e *UploadError) Unwrap() error {
	return e.Err
}

// DeleteError describes a rejected or failed delete batch
type DeleteError struct {
	StatusCode int
	Message    string
	Err        error
}

func (e *DeleteError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DeleteError) Unwrap() error {
	return e.Err
}

// UploadResponse is the JSON answer of the upload endpoint
type UploadResponse struct {
	Code    int         `json:"code"`
	Msg     string      `json:"msg,omitempty"`
	Message string      `json:"message,omitempty"`
	Data    *UploadData `json:"data,omitempty"`
}

// UploadData carries the stored file location
type UploadData struct {
	URL string `json:"url"`
}

func (r UploadResponse) message() string {
	if r.Msg != "" {
		return r.Msg
	}
	return r.Message
}

// DeleteResponse is the JSON answer of the batch delete endpoint
type DeleteResponse struct {
	Success bool   `json:"success"`
	Msg     string `json:"msg,omitempty"`
	Message string `json:"message,omitempty"`
}

func (r DeleteResponse) message() string {
	if r.Msg != "" {
		return r.Msg
	}
	return r.Message
}

// New builds the gateway selected by s.Backend
func New(ctx context.Context, s settings.Settings, client *http.Client) (Gateway, error) {
	switch s.Backend {
	case settings.BackendS3:
		return NewS3Gateway(ctx, S3Config{
			Endpoint:        s.S3.Endpoint,
			Region:          s.S3.Region,
			Bucket:          s.S3.Bucket,
			AccessKeyID:     s.S3.AccessKeyID,
			SecretAccessKey: s.S3.SecretAccessKey,
			BaseURL:         s.S3.BaseURL,
			Prefix:          s.WorkDir,
		})
	case settings.BackendHTTP, "":
		return NewHTTPGateway(s, client), nil
	default:
		return nil, fmt.Errorf("unknown backend %q", s.Backend)
	}
}

// DetectContentType detects MIME type from file extension
func DetectContentType(filename string) string {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".webp":
		return "image/webp"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".svg":
		return "image/svg+xml"
	case ".bmp":
		return "image/bmp"
	case ".avif":
		return "image/avif"
	default:
		return "application/octet-stream"
	}
}

// ExtensionFor returns the file extension for an image MIME type, falling
// back to the extension of name
func ExtensionFor(mimeType, name string) string {
	switch mimeType {
	case "image/webp":
		return ".webp"
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	case "image/svg+xml":
		return ".svg"
	case "image/bmp":
		return ".bmp"
	case "image/avif":
		return ".avif"
	}
	if ext := filepath.Ext(name); ext != "" {
		return strings.ToLower(ext)
	}
	return ".bin"
}
