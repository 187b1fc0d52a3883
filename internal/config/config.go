package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/joho/godotenv"
	"go-simpler.org/env"
)

type Config struct {
	AppEnv      string `env:"APP_ENV" default:"development"`
	Port        string `env:"PORT" default:"8080"`
	DatabaseURL string `env:"DATABASE_URL"`
	LogLevel    string `env:"LOG_LEVEL" default:"info"`
	LogFormat   string `env:"LOG_FORMAT" default:"text"`

	MaxConnections      int64   `env:"MAX_CONNECTIONS" default:"10000"`
	MaxConnectionsPerIP int     `env:"MAX_CONNECTIONS_PER_IP" default:"32"`
	ConnectionRate      float64 `env:"CONNECTION_RATE" default:"10"`
	ConnectionBurst     int     `env:"CONNECTION_BURST" default:"20"`
	MaxPendingMessages  int     `env:"MAX_PENDING_MESSAGES" default:"16"`
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	var cfg Config
	if err := env.Load(&cfg, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func validate(cfg *Config) error {
	if cfg.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if cfg.AppEnv == "production" {
		if err := validateProductionSSL(cfg.DatabaseURL); err != nil {
			return err
		}
	}

	if cfg.MaxConnections <= 0 {
		return fmt.Errorf("MAX_CONNECTIONS must be positive")
	}
	if cfg.MaxConnectionsPerIP <= 0 {
		return fmt.Errorf("MAX_CONNECTIONS_PER_IP must be positive")
	}
	if cfg.ConnectionRate <= 0 {
		return fmt.Errorf("CONNECTION_RATE must be positive")
	}
	if cfg.ConnectionBurst <= 0 {
		return fmt.Errorf("CONNECTION_BURST must be positive")
	}
	if cfg.MaxPendingMessages <= 0 {
		return fmt.Errorf("MAX_PENDING_MESSAGES must be positive")
	}

	return nil
}

// validateProductionSSL rejects connection strings that turn TLS off when
// the app runs in production.
func validateProductionSSL(databaseURL string) error {
	parsed, err := url.Parse(databaseURL)
	if err != nil {
		return fmt.Errorf("DATABASE_URL is not a valid URL: %w", err)
	}

	mode := strings.ToLower(parsed.Query().Get("sslmode"))
	if mode == "disable" || mode == "allow" {
		return fmt.Errorf("DATABASE_URL uses sslmode=%s which is not allowed in production", mode)
	}

	return nil
}
