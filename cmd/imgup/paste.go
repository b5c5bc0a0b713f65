package main

import (
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"go.lorenzomilicia.dev/imgup/internal/pipeline"
)

var (
	pasteText string
	pasteLine int
)

var pasteCmd = &cobra.Command{
	Use:   "paste <note.md> [image...]",
	Short: "Paste images or text into a note as the editor would",
	Long: `Insert images into a note as if they were pasted from the clipboard. Every
image gets a placeholder that is replaced by the uploaded link once done.
With --text the clipboard also carries text, whose network images are
re-uploaded when work_on_network is enabled.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		note := args[0]

		doc, err := readNote(note)
		if err != nil {
			return err
		}
		original := doc.Value()
		placeCursor(doc, pasteLine)

		files, err := readImageFiles(args[1:])
		if err != nil {
			return err
		}

		o, err := newOrchestrator(ctx)
		if err != nil {
			return err
		}
		defer o.Close()

		if !o.HandlePaste(ctx, doc, pipeline.PasteEvent{Files: files, Text: pasteText}) {
			// The host would paste the clipboard as is
			log.Info().Msg("Paste not handled, inserting clipboard text")
			doc.ReplaceSelection(pasteText)
		}
		o.Wait()

		return writeNote(note, original, doc)
	},
}

func init() {
	rootCmd.AddCommand(pasteCmd)

	pasteCmd.Flags().StringVarP(&pasteText, "text", "t", "", "Plain-text clipboard content")
	pasteCmd.Flags().IntVarP(&pasteLine, "line", "l", 0, "Paste at the end of this line (1-based, default end of note)")
}
