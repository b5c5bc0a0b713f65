package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"go.lorenzomilicia.dev/imgup/internal/settings"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a settings file with default values",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := os.Stat(configFile); err == nil && !initForce {
			return fmt.Errorf("%s already exists, use --force to overwrite", configFile)
		}
		if err := settings.Save(configFile, settings.Default()); err != nil {
			return fmt.Errorf("failed to write settings: %w", err)
		}
		log.Info().Str("config", configFile).Msg("Settings file written")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(initCmd)

	initCmd.Flags().BoolVarP(&initForce, "force", "f", false, "Overwrite an existing settings file")
}
