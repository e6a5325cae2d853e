package app

import (
	"io"

	"ssotoken/internal/config"
)

// Config holds the application configuration
type Config struct {
	// Debug forces debug logging regardless of the configured level.
	Debug bool

	// ConfigPath overrides the default config file location.
	ConfigPath string

	// Version is reported to RPC clients.
	Version string

	// LogOutput receives all log output. Defaults to os.Stderr; stdout may
	// carry the RPC protocol.
	LogOutput io.Writer

	// Settings, when set, is used instead of loading configuration.
	Settings *config.Config
}

// NewConfig creates a new application configuration
func NewConfig(debug bool, configPath string) *Config {
	return &Config{
		Debug:      debug,
		ConfigPath: configPath,
	}
}
