package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.lorenzomilicia.dev/imgup/internal/imageserver"
)

var serveConfig = imageserver.DefaultConfig()

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the reference image server",
	Long: `Run a small image server implementing the upload and delete endpoints the
http backend talks to. Uploaded images are stored under --dir, re-encoded to
WebP at the requested quality, and served under /img.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if !cmd.Flags().Changed("upload-api") && cfg.UploadAPI != "" {
			serveConfig.UploadAPI = cfg.UploadAPI
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		return imageserver.New(serveConfig).Serve(ctx)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVarP(&serveConfig.Addr, "addr", "a", serveConfig.Addr, "Address to listen on")
	serveCmd.Flags().StringVarP(&serveConfig.Dir, "dir", "d", serveConfig.Dir, "Directory uploaded images are stored in")
	serveCmd.Flags().StringVar(&serveConfig.UploadAPI, "upload-api", serveConfig.UploadAPI, "Upload endpoint path (defaults to upload_api from settings)")
	serveCmd.Flags().IntVar(&serveConfig.MaxWidth, "max-width", 0, "Downscale re-encoded images wider than this (0 keeps size)")
	serveCmd.Flags().IntVar(&serveConfig.RequestsPerMinute, "rpm", serveConfig.RequestsPerMinute, "Requests per minute per client (0 disables limiting)")
	serveCmd.Flags().IntVar(&serveConfig.Burst, "burst", serveConfig.Burst, "Rate limit burst")
	serveCmd.Flags().Int64Var(&serveConfig.MaxBodyBytes, "max-body", serveConfig.MaxBodyBytes, "Maximum request body size in bytes")
}
