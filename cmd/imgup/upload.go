package main

import (
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var uploadCmd = &cobra.Command{
	Use:   "upload <note.md>",
	Short: "Upload all local or network images in a note",
	Long: `Upload every image referenced by a note and rewrite the references to the
uploaded URLs. Local paths are resolved against --vault, first as written and
then by file name anywhere in the vault. Network images are re-uploaded only
when work_on_network is enabled.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		note := args[0]

		doc, err := readNote(note)
		if err != nil {
			return err
		}
		original := doc.Value()

		o, err := newOrchestrator(ctx)
		if err != nil {
			return err
		}
		defer o.Close()

		started, err := o.UploadAll(ctx, doc)
		if err != nil {
			return err
		}
		o.Wait()

		log.Info().Int("images", started).Msg("Upload finished")
		return writeNote(note, original, doc)
	},
}

func init() {
	rootCmd.AddCommand(uploadCmd)
}
