package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig
	Logging  LogConfig
	Terminal TerminalConfig
	History  HistoryConfig
	Sidecar  SidecarConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Addr            string        `envconfig:"PTYHOST_ADDR" default:"127.0.0.1:8800"`
	ShutdownTimeout time.Duration `envconfig:"PTYHOST_SHUTDOWN_TIMEOUT" default:"5s"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string   `envconfig:"PTYHOST_LOG_LEVEL" default:"info"`
	Development bool     `envconfig:"PTYHOST_LOG_DEV" default:"false"`
	Output      []string `envconfig:"PTYHOST_LOG_OUTPUT" default:"stderr"`
}

// TerminalConfig holds terminal registry configuration.
type TerminalConfig struct {
	EventNamespace string `envconfig:"PTYHOST_EVENT_NAMESPACE" default:"pty"`
}

// HistoryConfig holds session history configuration. An empty Path means
// ~/.ptyhost/history.db.
type HistoryConfig struct {
	Enabled bool   `envconfig:"PTYHOST_HISTORY" default:"true"`
	Path    string `envconfig:"PTYHOST_DB_PATH"`
}

// SidecarConfig describes the auxiliary process started with the server.
// An empty Command disables it.
type SidecarConfig struct {
	Command string   `envconfig:"PTYHOST_SIDECAR_CMD"`
	Args    []string `envconfig:"PTYHOST_SIDECAR_ARGS"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            "127.0.0.1:8800",
			ShutdownTimeout: 5 * time.Second,
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
			Output:      []string{"stderr"},
		},
		Terminal: TerminalConfig{
			EventNamespace: "pty",
		},
		History: HistoryConfig{
			Enabled: true,
		},
	}
}
