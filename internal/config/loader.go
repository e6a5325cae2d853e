package config

import (
	"encoding/base64"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"ssotoken/pkg/logging"
)

const (
	userConfigDir  = ".config/ssotoken"
	configFileName = "config.yaml"

	// EnvPrefix prefixes every environment override.
	EnvPrefix = "SSOTOKEN_"
)

// homeDir is swapped out in tests.
var homeDir = os.UserHomeDir

// DefaultConfigPath returns ~/.config/ssotoken/config.yaml.
func DefaultConfigPath() (string, error) {
	home, err := homeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine user config directory: %w", err)
	}
	return filepath.Join(home, userConfigDir, configFileName), nil
}

// Load builds the effective configuration from defaults, the YAML file at
// configPath (the default location when empty), a .env file in the working
// directory and SSOTOKEN_* environment variables, in that order.
func Load(configPath string) (Config, error) {
	cfg := GetDefaultConfig()
	if v := os.Getenv("AWS_CONFIG_FILE"); v != "" {
		cfg.SharedConfigFile = v
	}

	if configPath == "" {
		p, err := DefaultConfigPath()
		if err != nil {
			return Config{}, err
		}
		configPath = p
	}

	data, err := os.ReadFile(configPath) // #nosec G304 -- path comes from the operator
	switch {
	case errors.Is(err, os.ErrNotExist):
		logging.Debug("ConfigLoader", "No config.yaml found at %s, using defaults", configPath)
	case err != nil:
		return Config{}, fmt.Errorf("error reading config from %s: %w", configPath, err)
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("error loading config from %s: %w", configPath, err)
		}
		logging.Debug("ConfigLoader", "Loaded configuration from %s", configPath)
	}

	// A missing .env is the normal case.
	_ = godotenv.Load()

	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return Config{}, fmt.Errorf("parsing environment: %w", err)
	}

	if err := cfg.resolvePaths(); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func (c *Config) resolvePaths() error {
	var err error
	if c.CacheDir, err = expandHome(c.CacheDir); err != nil {
		return err
	}
	if c.SharedConfigFile, err = expandHome(c.SharedConfigFile); err != nil {
		return err
	}
	if c.Encryption.KeyFile, err = expandHome(c.Encryption.KeyFile); err != nil {
		return err
	}
	return nil
}

func expandHome(p string) (string, error) {
	if p != "~" && !strings.HasPrefix(p, "~/") {
		return p, nil
	}
	home, err := homeDir()
	if err != nil {
		return "", fmt.Errorf("could not expand %q: %w", p, err)
	}
	return filepath.Join(home, strings.TrimPrefix(p, "~")), nil
}

// Validate checks the configuration for values the token manager cannot
// work with.
func (c *Config) Validate() error {
	var errs ValidationErrors

	if c.CacheDir == "" {
		errs.add("cacheDir", "must not be empty")
	}

	host, port, err := net.SplitHostPort(c.Callback.Address)
	if err != nil {
		errs.add("callback.address", "invalid address %q: %v", c.Callback.Address, err)
	} else {
		ip := net.ParseIP(host)
		if host != "localhost" && (ip == nil || !ip.IsLoopback()) {
			errs.add("callback.address", "host %q is not a loopback address", host)
		}
		if port == "" || port == "0" {
			errs.add("callback.address", "a fixed port is required")
		}
	}

	if !strings.HasPrefix(c.Callback.Path, "/") {
		errs.add("callback.path", "must start with /")
	}
	if c.Callback.Timeout <= 0 {
		errs.add("callback.timeout", "must be positive")
	}
	if c.ClientName == "" {
		errs.add("clientName", "must not be empty")
	}
	if len(c.Scopes) == 0 {
		errs.add("scopes", "at least one scope is required")
	}
	if c.RefreshWindow <= 0 {
		errs.add("refreshWindow", "must be positive")
	}
	if c.ExpiryBuffer < 0 {
		errs.add("expiryBuffer", "must not be negative")
	}
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		errs.add("logLevel", "%v", err)
	}
	if c.LogFormat != "" && c.LogFormat != logging.FormatText && c.LogFormat != logging.FormatJSON {
		errs.add("logFormat", "must be %q or %q", logging.FormatText, logging.FormatJSON)
	}

	if errs.HasErrors() {
		return errs
	}
	return nil
}

// EncryptionKey returns the configured access-token encryption key, or nil
// when none is configured.
func (c *Config) EncryptionKey() ([]byte, error) {
	encoded := c.Encryption.Key
	if encoded == "" && c.Encryption.KeyFile != "" {
		data, err := os.ReadFile(c.Encryption.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("reading encryption key file: %w", err)
		}
		encoded = string(data)
	}
	encoded = strings.TrimSpace(encoded)
	if encoded == "" {
		return nil, nil
	}

	key, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		key, err = base64.RawURLEncoding.DecodeString(encoded)
	}
	if err != nil {
		return nil, fmt.Errorf("decoding encryption key: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("encryption key must be 32 bytes, got %d", len(key))
	}
	return key, nil
}
