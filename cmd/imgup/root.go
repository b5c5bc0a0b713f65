package main

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"go.lorenzomilicia.dev/imgup/internal/settings"
)

var rootCmd = &cobra.Command{
	Use:   "imgup",
	Short: "Upload images referenced in markdown notes",
	Long: `imgup uploads pasted, dropped and referenced images of markdown notes to an
image server and rewrites the notes to point at the uploaded copies.`,
	SilenceUsage: true,
}

var (
	envFile    string
	configFile string
	vaultDir   string
	debug      bool

	cfg settings.Settings
)

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env", "", "Path to .env file to load before running commands")
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "imgup.yaml", "Settings file")
	rootCmd.PersistentFlags().StringVar(&vaultDir, "vault", ".", "Directory local image paths are resolved against")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")

	// Load .env file and settings before any command runs
	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		setupLogging(debug)

		if envFile != "" {
			if err := godotenv.Load(envFile); err != nil {
				return fmt.Errorf("failed to load env file '%s': %w", envFile, err)
			}
		}

		// init writes the settings file and must work without one
		if cmd == initCmd {
			return nil
		}

		var err error
		cfg, err = settings.Load(configFile)
		if err != nil {
			return fmt.Errorf("failed to load settings: %w", err)
		}
		log.Debug().
			Str("config", configFile).
			Str("backend", string(cfg.Backend)).
			Str("server", cfg.ServerURL).
			Msg("Settings loaded")
		return nil
	}
}

func setupLogging(debug bool) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
}
