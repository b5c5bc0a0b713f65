package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"go.lorenzomilicia.dev/imgup/internal/document"
)

var deleteSelect string

var deleteCmd = &cobra.Command{
	Use:   "delete <note.md>",
	Short: "Delete uploaded images in a note from the server",
	Long: `Delete the images of the selected lines that are hosted on the configured
server, then remove their links from the note. Without --select the whole
note is selected.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		note := args[0]

		doc, err := readNote(note)
		if err != nil {
			return err
		}
		original := doc.Value()

		if err := selectLines(doc, deleteSelect); err != nil {
			return err
		}

		o, err := newOrchestrator(ctx)
		if err != nil {
			return err
		}
		defer o.Close()

		n, err := o.DeleteUploaded(ctx, doc)
		if err != nil {
			return err
		}
		log.Info().Int("deleted", n).Msg("Delete finished")
		return writeNote(note, original, doc)
	},
}

// selectLines selects the 1-based inclusive range "from:to" ("n" for a
// single line). An empty range selects everything.
func selectLines(doc *document.Buffer, rng string) error {
	lines := strings.Split(doc.Value(), "\n")
	from, to := 1, len(lines)

	if rng != "" {
		a, b, found := strings.Cut(rng, ":")
		var err error
		if from, err = strconv.Atoi(a); err != nil {
			return fmt.Errorf("invalid selection %q: %w", rng, err)
		}
		to = from
		if found {
			if to, err = strconv.Atoi(b); err != nil {
				return fmt.Errorf("invalid selection %q: %w", rng, err)
			}
		}
	}
	if from < 1 || to < from || to > len(lines) {
		return fmt.Errorf("selection %q is outside lines 1-%d", rng, len(lines))
	}

	doc.SetSelection(
		document.Position{Line: from - 1},
		document.Position{Line: to - 1, Ch: len(lines[to-1])},
	)
	return nil
}

func init() {
	rootCmd.AddCommand(deleteCmd)

	deleteCmd.Flags().StringVarP(&deleteSelect, "select", "s", "", "Lines to select, as from:to (1-based)")
}
