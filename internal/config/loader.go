package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const (
	envConfigDefaultPath = "RELAYCHAT_CONFIG_DEFAULT_PATH"
	defaultConfigName    = "relaychat.yaml"
)

// Load builds configuration from defaults, optional config file, env vars, and returns the resolved path.
// Precedence: defaults < config file < env vars < caller overrides.
func Load(logger *zerolog.Logger, explicitPath string) (Config, string, error) {
	cfg := Default()

	v := viper.New()
	v.SetConfigType("yaml")
	setDefaults(v, cfg)

	v.SetEnvPrefix("RELAYCHAT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	configPath := resolveConfigPath(explicitPath)
	v.SetConfigFile(configPath)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) || errors.Is(err, os.ErrNotExist) {
			if writeErr := writeDefaultConfig(configPath, cfg); writeErr != nil && logger != nil {
				logger.Warn().Err(writeErr).Str("path", configPath).Msg("failed to write default config")
			} else if logger != nil {
				logger.Info().Str("path", configPath).Msg("created default config")
			}
			// try reading again in case it was just written
			if readErr := v.ReadInConfig(); readErr != nil && logger != nil {
				logger.Warn().Err(readErr).Str("path", configPath).Msg("failed to read config after writing default")
			}
		} else {
			return cfg, configPath, fmt.Errorf("read config: %w", err)
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, configPath, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, configPath, err
	}

	return cfg, configPath, nil
}

// Validate rejects values the client cannot run with.
func (c Config) Validate() error {
	if c.RelayURL == "" {
		return errors.New("relay_url is required")
	}
	switch c.Store.Backend {
	case BackendSQLite, BackendPebble:
	default:
		return fmt.Errorf("unknown store backend %q", c.Store.Backend)
	}
	if c.Store.Path == "" {
		return errors.New("store.path is required")
	}
	return nil
}

func setDefaults(v *viper.Viper, cfg Config) {
	v.SetDefault("relay_url", cfg.RelayURL)
	v.SetDefault("log_level", cfg.LogLevel)
	v.SetDefault("http.addr", cfg.HTTP.Addr)
	v.SetDefault("http.read_header_timeout", cfg.HTTP.ReadHeaderTimeout)
	v.SetDefault("http.shutdown_timeout", cfg.HTTP.ShutdownTimeout)
	v.SetDefault("store.backend", cfg.Store.Backend)
	v.SetDefault("store.path", cfg.Store.Path)
	v.SetDefault("default_topic", cfg.DefaultTopic)
	v.SetDefault("default_room_name", cfg.DefaultRoomName)
	v.SetDefault("reconnect_backoff", cfg.ReconnectBackoff)
	v.SetDefault("publish_timeout", cfg.PublishTimeout)
	v.SetDefault("typing_ttl", cfg.TypingTTL)
	v.SetDefault("typing_throttle", cfg.TypingThrottle)
	v.SetDefault("read_receipt_delay", cfg.ReadReceiptDelay)
}

func resolveConfigPath(explicitPath string) string {
	if explicitPath != "" {
		return explicitPath
	}

	if base := os.Getenv(envConfigDefaultPath); base != "" {
		if err := os.MkdirAll(base, 0o755); err == nil {
			return filepath.Join(base, defaultConfigName)
		}
	}

	cwd, err := os.Getwd()
	if err != nil {
		return defaultConfigName
	}
	return filepath.Join(cwd, defaultConfigName)
}

func writeDefaultConfig(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}
