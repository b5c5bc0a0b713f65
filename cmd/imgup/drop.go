package main

import (
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"go.lorenzomilicia.dev/imgup/internal/pipeline"
)

var (
	dropLine      int
	dropLocalLink bool
)

var dropCmd = &cobra.Command{
	Use:   "drop <note.md> <image...>",
	Short: "Drop image files onto a note as the editor would",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		note := args[0]

		doc, err := readNote(note)
		if err != nil {
			return err
		}
		original := doc.Value()
		placeCursor(doc, dropLine)

		files, err := readImageFiles(args[1:])
		if err != nil {
			return err
		}

		o, err := newOrchestrator(ctx)
		if err != nil {
			return err
		}
		defer o.Close()

		evt := pipeline.DropEvent{Files: files, InsertLocalLink: dropLocalLink}
		if !o.HandleDrop(ctx, doc, evt) {
			log.Info().Msg("Drop not handled, nothing uploaded")
		}
		o.Wait()

		return writeNote(note, original, doc)
	},
}

func init() {
	rootCmd.AddCommand(dropCmd)

	dropCmd.Flags().IntVarP(&dropLine, "line", "l", 0, "Drop at the end of this line (1-based, default end of note)")
	dropCmd.Flags().BoolVar(&dropLocalLink, "local-link", false, "Insert as local link instead of uploading")
}
