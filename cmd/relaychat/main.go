package main

import (
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/vovakirdan/relaychat/internal/app"
	"github.com/vovakirdan/relaychat/internal/config"
	"github.com/vovakirdan/relaychat/internal/log"
)

var rootCmd = &cobra.Command{
	Use:           "relaychat",
	Short:         "Chat over a public pub/sub relay",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var (
	flagConfigPath string
	flagLogLevel   string
)

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&flagConfigPath, "config", "", "path to config file (default relaychat.yaml)")
	flags.StringVar(&flagLogLevel, "log-level", "", "log level override: debug, info, warn, error, off")

	rootCmd.AddCommand(chatCmd, serveCmd, roomsCmd, resetCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "relaychat: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig resolves the configuration and builds a logger writing to out.
func loadConfig(cmd *cobra.Command, out io.Writer) (config.Config, *zerolog.Logger, error) {
	bootLevel := "warn"
	if flagLogLevel != "" {
		bootLevel = flagLogLevel
	}
	cfg, path, err := config.Load(log.NewWithWriter(bootLevel, out), flagConfigPath)
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("load config: %w", err)
	}
	if cmd.Flags().Changed("log-level") {
		cfg.LogLevel = flagLogLevel
	}

	logger := log.NewWithWriter(cfg.LogLevel, out)
	logger.Debug().Str("config", path).Msg("configuration loaded")
	return cfg, logger, nil
}

// startApp loads configuration, opens the store and restores the session.
func startApp(cmd *cobra.Command, out io.Writer, override func(*config.Config)) (*app.App, *zerolog.Logger, error) {
	cfg, logger, err := loadConfig(cmd, out)
	if err != nil {
		return nil, nil, err
	}
	if override != nil {
		override(&cfg)
	}

	application, err := app.New(cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	if err := application.Start(cmd.Context()); err != nil {
		_ = application.Close()
		return nil, nil, err
	}
	return application, logger, nil
}
