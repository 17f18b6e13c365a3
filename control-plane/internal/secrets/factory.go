package secrets

import (
	"fmt"
	"log/slog"
	"os"
)

// Config holds configuration for the token source.
type Config struct {
	// Backend specifies which source to use: "1password", "file", "env", or "auto"
	// "auto" (default) uses 1Password if configured, then a token file, then env
	Backend string

	// 1Password Connect configuration
	OnePassword OnePasswordConfig

	// TokenFile is read by the "file" backend
	TokenFile string

	// EnvToken is the token for the "env" backend
	EnvToken string
}

// ConfigFromEnv creates a Config from environment variables.
func ConfigFromEnv() Config {
	return Config{
		Backend: getEnv("NETIMPACT_SECRETS_BACKEND", "auto"),
		OnePassword: OnePasswordConfig{
			Host:      os.Getenv("OP_CONNECT_HOST"),
			Token:     os.Getenv("OP_CONNECT_TOKEN"),
			VaultID:   os.Getenv("OP_VAULT_ID"),
			ItemTitle: getEnv("OP_ITEM_TITLE", DefaultItemTitle),
		},
		TokenFile: os.Getenv("NETIMPACT_INTEL_TOKEN_FILE"),
		EnvToken:  os.Getenv("NETIMPACT_INTEL_TOKEN"),
	}
}

func (c Config) onePasswordConfigured() bool {
	return c.OnePassword.Host != "" && c.OnePassword.Token != "" && c.OnePassword.VaultID != ""
}

// NewTokenSource creates a TokenSource based on configuration.
func NewTokenSource(cfg Config, logger *slog.Logger) (TokenSource, error) {
	if logger == nil {
		logger = slog.Default()
	}
	backend := cfg.Backend
	if backend == "" {
		backend = "auto"
	}

	switch backend {
	case "1password":
		return NewOnePasswordSource(cfg.OnePassword, logger)

	case "file":
		return NewFileSource(cfg.TokenFile, logger)

	case "env":
		return Static(cfg.EnvToken), nil

	case "auto":
		if cfg.onePasswordConfigured() {
			src, err := NewOnePasswordSource(cfg.OnePassword, logger)
			if err == nil {
				return src, nil
			}
			logger.Warn("failed to initialize 1Password, falling back", "error", err)
		}
		if cfg.TokenFile != "" {
			return NewFileSource(cfg.TokenFile, logger)
		}
		if cfg.EnvToken == "" {
			logger.Info("no intelligence token configured, requests will be unauthenticated")
		}
		return Static(cfg.EnvToken), nil

	default:
		return nil, fmt.Errorf("unknown secrets backend: %s", backend)
	}
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}
