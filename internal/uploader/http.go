package uploader

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
	"go.lorenzomilicia.dev/imgup/internal/links"
	"go.lorenzomilicia.dev/imgup/internal/settings"
)

const maxResponseBytes = 1 << 20

// DeletePath is the batch delete endpoint, relative to the server URL
const DeletePath = "/api/deleteAll"

// HTTPGateway talks to an image server over plain HTTP
type HTTPGateway struct {
	client    *http.Client
	serverURL string
	uploadAPI string
	format    settings.UploadFormat
	quality   int
	workDir   string
}

// NewHTTPGateway creates a gateway for s.ServerURL + s.UploadAPI
func NewHTTPGateway(s settings.Settings, client *http.Client) *HTTPGateway {
	if client == nil {
		client = &http.Client{Timeout: s.RequestTimeout}
	}
	return &HTTPGateway{
		client:    client,
		serverURL: strings.TrimRight(s.ServerURL, "/"),
		uploadAPI: s.UploadAPI,
		format:    s.UploadFormat,
		quality:   s.Quality(),
		workDir:   s.WorkDir,
	}
}

type field struct {
	key   string
	value string
}

// fields lists the request body in wire order. The payload goes last.
func (g *HTTPGateway) fields(job Job) []field {
	return []field{
		{"name", job.Name},
		{"size", strconv.Itoa(job.Size)},
		{"type", job.MIMEType},
		{"quality", strconv.Itoa(g.quality)},
		{"appid", g.workDir},
		{"data", job.Payload},
	}
}

// Upload posts job to the server and normalizes the returned URL
func (g *HTTPGateway) Upload(ctx context.Context, job Job) Result {
	log.Debug().
		Str("name", job.Name).
		Int("size", job.Size).
		Str("type", job.MIMEType).
		Msg("Uploading to image server")

	u, err := g.upload(ctx, job)
	if err != nil {
		log.Warn().Err(err).Str("name", job.Name).Msg("Upload failed")
		return Failed(err)
	}

	log.Debug().Str("name", job.Name).Str("url", u).Msg("Upload successful")
	return Result{OK: true, URL: u}
}

func (g *HTTPGateway) upload(ctx context.Context, job Job) (string, error) {
	if g.serverURL == "" || g.uploadAPI == "" {
		return "", &UploadError{Message: "server url and upload api must be configured"}
	}

	body, contentType, err := encodeBody(g.format, g.fields(job))
	if err != nil {
		return "", &UploadError{Message: "failed to build request body", Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.serverURL+g.uploadAPI, body)
	if err != nil {
		return "", &UploadError{Message: "failed to build request", Err: err}
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return "", &UploadError{Message: "request failed", Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return "", &UploadError{StatusCode: resp.StatusCode, Message: "failed to read response", Err: err}
	}

	var out UploadResponse
	decodeErr := json.Unmarshal(raw, &out)

	if resp.StatusCode != http.StatusOK {
		return "", &UploadError{StatusCode: resp.StatusCode, Message: out.message()}
	}
	if decodeErr != nil {
		return "", &UploadError{StatusCode: resp.StatusCode, Message: "malformed response", Err: decodeErr}
	}
	if out.Code != 0 {
		msg := out.message()
		if msg == "" {
			msg = fmt.Sprintf("upload rejected with code %d", out.Code)
		}
		return "", &UploadError{Code: out.Code, Message: msg}
	}
	if out.Data == nil || out.Data.URL == "" {
		return "", &UploadError{Message: "response carries no url"}
	}

	return NormalizeURL(g.serverURL, out.Data.URL), nil
}

// Delete removes the images of selection hosted on the server in one batch
func (g *HTTPGateway) Delete(ctx context.Context, selection string) (DeleteResult, error) {
	refs := links.HostedOn(links.Extract(selection), g.serverURL)
	if len(refs) == 0 {
		return DeleteResult{}, nil
	}

	paths := make([]string, len(refs))
	for i, ref := range refs {
		paths[i] = strings.Replace(ref.Path, g.serverURL, ".", 1)
	}
	encoded, err := json.Marshal(paths)
	if err != nil {
		return DeleteResult{}, &DeleteError{Message: "failed to encode paths", Err: err}
	}

	endpoint := g.serverURL + DeletePath + "?url=" + url.QueryEscape("["+string(encoded)+"]")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return DeleteResult{}, &DeleteError{Message: "failed to build request", Err: err}
	}
	req.Header.Set("Accept", "application/json")

	log.Debug().Strs("paths", paths).Msg("Deleting from image server")

	resp, err := g.client.Do(req)
	if err != nil {
		return DeleteResult{}, &DeleteError{Message: "delete request failed", Err: err}
	}
	defer resp.Body.Close()

	var out DeleteResponse
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return DeleteResult{}, &DeleteError{StatusCode: resp.StatusCode, Message: "failed to read response", Err: err}
	}
	if err := json.Unmarshal(raw, &out); err != nil && resp.StatusCode == http.StatusOK {
		return DeleteResult{}, &DeleteError{StatusCode: resp.StatusCode, Message: "malformed response", Err: err}
	}
	if resp.StatusCode != http.StatusOK || !out.Success {
		msg := out.message()
		if msg == "" {
			msg = "delete failed"
		}
		return DeleteResult{}, &DeleteError{StatusCode: resp.StatusCode, Message: msg}
	}

	sources := make([]string, len(refs))
	for i, ref := range refs {
		sources[i] = ref.Source
	}
	return DeleteResult{Sources: sources, Message: out.message()}, nil
}

// NormalizeURL turns the location returned by the server into an absolute
// URL: a leading "." and "/" are stripped and the rest is joined to serverURL
// with a single slash. Absolute URLs are returned unchanged.
func NormalizeURL(serverURL, raw string) string {
	if strings.HasPrefix(raw, "http://") || strings.HasPrefix(raw, "https://") {
		return raw
	}
	raw = strings.TrimPrefix(raw, ".")
	raw = strings.TrimLeft(raw, "/")
	return strings.TrimRight(serverURL, "/") + "/" + raw
}

func encodeBody(format settings.UploadFormat, fields []field) (io.Reader, string, error) {
	if format == settings.FormatMultipart {
		var buf bytes.Buffer
		w := multipart.NewWriter(&buf)
		for _, f := range fields {
			if err := w.WriteField(f.key, f.value); err != nil {
				return nil, "", err
			}
		}
		if err := w.Close(); err != nil {
			return nil, "", err
		}
		return &buf, w.FormDataContentType(), nil
	}

	var sb strings.Builder
	for i, f := range fields {
		if i > 0 {
			sb.WriteByte('&')
		}
		sb.WriteString(url.QueryEscape(f.key))
		sb.WriteByte('=')
		sb.WriteString(url.QueryEscape(f.value))
	}
	return strings.NewReader(sb.String()), "application/x-www-form-urlencoded", nil
}
