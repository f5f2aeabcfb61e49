package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/vovakirdan/relaychat/internal/config"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the client headless and expose the local HTTP/WebSocket API",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

var (
	flagAddr  string
	flagTopic string
)

func init() {
	serveCmd.Flags().StringVar(&flagAddr, "addr", "", "listen address override, e.g. 127.0.0.1:8080")
	serveCmd.Flags().StringVar(&flagTopic, "topic", "", "topic to join on startup")
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	cmd.SetContext(ctx)

	application, logger, err := startApp(cmd, os.Stdout, func(cfg *config.Config) {
		if flagAddr != "" {
			cfg.HTTP.Addr = flagAddr
		}
		if flagTopic != "" {
			cfg.DefaultTopic = flagTopic
		}
	})
	if err != nil {
		return err
	}
	defer application.Close()

	if err := application.Serve(ctx); err != nil {
		logger.Error().Err(err).Msg("server exited with error")
		return err
	}
	logger.Info().Msg("server stopped")
	return nil
}
