// Package imageserver is a small upload server speaking the same protocol as
// the HTTP gateway. Uploaded images are stored on disk and served back.
package imageserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"
	"go.lorenzomilicia.dev/imgup/internal/encoder"
	"go.lorenzomilicia.dev/imgup/internal/uploader"
)

// FilesPrefix is the URL path stored images are served under
const FilesPrefix = "/img"

// Config holds configuration for the server
type Config struct {
	Addr      string
	UploadAPI string
	// Dir is where uploaded images are stored
	Dir      string
	MaxWidth int
	// RequestsPerMinute per client IP, zero disables rate limiting
	RequestsPerMinute int
	Burst             int
	MaxBodyBytes      int64
}

// DefaultConfig returns the configuration used by `imgup serve`
func DefaultConfig() Config {
	return Config{
		Addr:              ":8080",
		UploadAPI:         "/api/upload",
		Dir:               "uploads",
		RequestsPerMinute: 120,
		Burst:             20,
		MaxBodyBytes:      32 << 20,
	}
}

type Server struct {
	cfg   Config
	gin   *gin.Engine
	store *Store
}

// New creates a server storing images in cfg.Dir
func New(cfg Config) *Server {
	if cfg.UploadAPI == "" {
		cfg.UploadAPI = DefaultConfig().UploadAPI
	}

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	// Use zerolog console writer for gin logs
	console := zerolog.ConsoleWriter{Out: os.Stderr}
	r.Use(gin.LoggerWithWriter(console))
	r.Use(gin.Recovery())

	srv := &Server{
		cfg:   cfg,
		gin:   r,
		store: NewStore(cfg.Dir, cfg.MaxWidth),
	}
	srv.setupRoutes()
	return srv
}

func (s *Server) setupRoutes() {
	api := s.gin.Group("/", rateLimit(s.cfg.RequestsPerMinute, s.cfg.Burst), s.limitBody)
	api.POST(s.cfg.UploadAPI, s.handleUpload)
	api.GET(uploader.DeletePath, s.handleDeleteAll)
	s.gin.StaticFS(FilesPrefix, gin.Dir(s.cfg.Dir, false))
}

// Handler exposes the routes, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.gin
}

// Serve listens on cfg.Addr until ctx is cancelled
func (s *Server) Serve(ctx context.Context) error {
	httpSrv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.gin,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpSrv.ListenAndServe()
	}()

	zlog.Info().
		Str("addr", s.cfg.Addr).
		Str("upload", s.cfg.UploadAPI).
		Str("dir", s.cfg.Dir).
		Msg("Starting image server")

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		zlog.Info().Msg("Shutting down image server")
		return httpSrv.Shutdown(shutdownCtx)
	}
}

func (s *Server) limitBody(c *gin.Context) {
	if s.cfg.MaxBodyBytes > 0 && c.Request.Body != nil {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.cfg.MaxBodyBytes)
	}
	c.Next()
}

func (s *Server) handleUpload(c *gin.Context) {
	payload := c.PostForm("data")
	if payload == "" {
		uploadFailed(c, http.StatusBadRequest, CodeBadRequest, "missing image data")
		return
	}

	data, declared, err := encoder.DecodeDataURL(payload)
	if err != nil {
		uploadFailed(c, http.StatusBadRequest, CodeBadRequest, err.Error())
		return
	}

	quality, _ := strconv.Atoi(c.PostForm("quality"))
	appid := c.PostForm("appid")

	rel, err := s.store.Save(appid, data, quality)
	switch {
	case errors.Is(err, ErrUnsupported):
		uploadFailed(c, http.StatusUnsupportedMediaType, CodeUnsupported, err.Error())
		return
	case err != nil:
		zlog.Error().Err(err).Str("name", c.PostForm("name")).Msg("Failed to store image")
		uploadFailed(c, http.StatusInternalServerError, CodeStorage, "failed to store image")
		return
	}

	zlog.Info().
		Str("name", c.PostForm("name")).
		Str("type", declared).
		Int("size", len(data)).
		Int("quality", quality).
		Str("path", rel).
		Msg("Image stored")

	uploadOK(c, "."+FilesPrefix+"/"+rel)
}

func (s *Server) handleDeleteAll(c *gin.Context) {
	paths, err := parseDeletePaths(c.Query("url"))
	if err != nil {
		deleteDone(c, http.StatusBadRequest, false, "invalid url parameter")
		return
	}

	// Validate the whole batch before touching any file
	rels := make([]string, 0, len(paths))
	for _, p := range paths {
		rel, ok := storePath(p)
		if !ok {
			deleteDone(c, http.StatusBadRequest, false, fmt.Sprintf("%s is not a stored image", p))
			return
		}
		rels = append(rels, rel)
	}

	for _, rel := range rels {
		if err := s.store.Delete(rel); err != nil {
			zlog.Error().Err(err).Str("path", rel).Msg("Failed to delete image")
			deleteDone(c, http.StatusInternalServerError, false, "failed to delete images")
			return
		}
	}

	zlog.Info().Int("count", len(rels)).Msg("Images deleted")
	deleteDone(c, http.StatusOK, true, "deleted")
}

// parseDeletePaths accepts the nested form [["a","b"]] sent by the gateway
// as well as a flat ["a","b"]
func parseDeletePaths(raw string) ([]string, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, errors.New("empty url parameter")
	}

	var nested [][]string
	if err := json.Unmarshal([]byte(raw), &nested); err == nil {
		var paths []string
		for _, group := range nested {
			paths = append(paths, group...)
		}
		return paths, nil
	}

	var flat []string
	if err := json.Unmarshal([]byte(raw), &flat); err != nil {
		return nil, err
	}
	return flat, nil
}

// storePath maps a served path like ./img/notes/x.webp to its store path
func storePath(p string) (string, bool) {
	clean := path.Clean("/" + strings.TrimPrefix(p, "."))
	rel, ok := strings.CutPrefix(clean, FilesPrefix+"/")
	if !ok || rel == "" {
		return "", false
	}
	return rel, true
}
