package config

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

// DefaultPath is where Load looks when no -config flag is given. A missing
// file at the default path is fine; anywhere else it is an error.
const DefaultPath = "config.yaml"

// Load builds the effective configuration: defaults, then the YAML file,
// then CAMPUSCONVO_* environment variables (a local .env is read first so
// development overrides live next to the binary). The result is validated.
func Load(fs afero.Fs, path string) (*Config, error) {
	cfg := Default()

	raw, err := afero.ReadFile(fs, path)

	switch {
	case os.IsNotExist(err) && path == DefaultPath:
		slog.Info("no config file found, using defaults", "path", path)
	case err != nil:
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	default:
		decoder := yaml.NewDecoder(bytes.NewReader(raw))
		decoder.KnownFields(true)

		if err := decoder.Decode(cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func applyEnv(cfg *Config) {
	// Missing .env is the normal case outside development.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		slog.Warn("could not load .env", "err", err)
	}

	if v := os.Getenv("CAMPUSCONVO_SERVER_URL"); v != "" {
		cfg.Server.BaseURL = v
	}

	if v := os.Getenv("CAMPUSCONVO_WEBSOCKET_URL"); v != "" {
		cfg.Server.WebsocketURL = v
	}

	if v := os.Getenv("CAMPUSCONVO_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
}
