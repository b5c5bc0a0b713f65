package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog/log"
	"go.lorenzomilicia.dev/imgup/internal/document"
	"go.lorenzomilicia.dev/imgup/internal/pipeline"
	"go.lorenzomilicia.dev/imgup/internal/uploader"
	"go.lorenzomilicia.dev/imgup/internal/vault"
)

// readNote loads a markdown note into a buffer with the cursor at the end
func readNote(path string) (*document.Buffer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read note: %w", err)
	}
	return document.NewBuffer(string(data)), nil
}

// writeNote saves the buffer back when it changed
func writeNote(path string, original string, doc *document.Buffer) error {
	if doc.Value() == original {
		log.Info().Str("note", path).Msg("Note unchanged")
		return nil
	}
	if err := os.WriteFile(path, []byte(doc.Value()), 0644); err != nil {
		return fmt.Errorf("failed to write note: %w", err)
	}
	log.Info().Str("note", path).Msg("Note updated")
	return nil
}

// placeCursor moves the cursor to the end of the 1-based line, or leaves it
// at the end of the note when line is zero
func placeCursor(doc *document.Buffer, line int) {
	if line <= 0 {
		return
	}
	lines := strings.Split(doc.Value(), "\n")
	idx := min(line, len(lines)) - 1
	doc.SetCursor(document.Position{Line: idx, Ch: len(lines[idx])})
}

// readImageFiles loads files as paste or drop entries. The declared type is
// sniffed from content, the way a host would report it.
func readImageFiles(paths []string) ([]pipeline.File, error) {
	files := make([]pipeline.File, 0, len(paths))
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", p, err)
		}
		files = append(files, pipeline.File{
			Name: filepath.Base(p),
			Type: mimetype.Detect(data).String(),
			Size: len(data),
			Data: data,
		})
	}
	return files, nil
}

// newOrchestrator wires the gateway selected by the settings
func newOrchestrator(ctx context.Context) (*pipeline.Orchestrator, error) {
	client := &http.Client{Timeout: cfg.RequestTimeout}
	gw, err := uploader.New(ctx, cfg, client)
	if err != nil {
		return nil, fmt.Errorf("failed to create gateway: %w", err)
	}
	return pipeline.New(pipeline.Options{
		Settings: cfg,
		Gateway:  gw,
		Vault:    vault.New(vaultDir),
		Notifier: pipeline.LogNotifier{},
		Client:   client,
	}), nil
}
