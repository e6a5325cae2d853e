package config

import "time"

// Config is the top-level configuration structure for ssotoken.
//
// Values are layered: built-in defaults, then config.yaml, then SSOTOKEN_*
// environment variables (optionally supplied through a .env file).
type Config struct {
	// CacheDir holds one JSON record per token id.
	CacheDir string `yaml:"cacheDir,omitempty" env:"CACHE_DIR"`

	Callback CallbackConfig `yaml:"callback" envPrefix:"CALLBACK_"`

	// ClientName is the tool name used when the caller does not supply one.
	ClientName string `yaml:"clientName,omitempty" env:"CLIENT_NAME"`

	// Scopes are registered when a GetToken request carries none.
	Scopes []string `yaml:"scopes,omitempty" env:"SCOPES" envSeparator:","`

	// RefreshWindow is how long before expiry a managed token is refreshed.
	RefreshWindow time.Duration `yaml:"refreshWindow,omitempty" env:"REFRESH_WINDOW"`

	// ExpiryBuffer is subtracted from expiresAt when deciding whether a
	// cached token is still usable.
	ExpiryBuffer time.Duration `yaml:"expiryBuffer,omitempty" env:"EXPIRY_BUFFER"`

	// SharedConfigFile is the AWS shared config file read by ListProfiles.
	SharedConfigFile string `yaml:"sharedConfigFile,omitempty" env:"SHARED_CONFIG_FILE"`

	// OIDCEndpoint overrides the regional SSO-OIDC endpoint.
	OIDCEndpoint string `yaml:"oidcEndpoint,omitempty" env:"OIDC_ENDPOINT"`

	// OpenBrowser opens the authorization page locally in serve mode, in
	// addition to notifying the client.
	OpenBrowser bool `yaml:"openBrowser,omitempty" env:"OPEN_BROWSER"`

	// WatchCache enables detection of cache records changed by other processes.
	WatchCache bool `yaml:"watchCache" env:"WATCH_CACHE"`

	Encryption EncryptionConfig `yaml:"encryption" envPrefix:"ENCRYPTION_"`

	LogLevel  string `yaml:"logLevel,omitempty" env:"LOG_LEVEL"`
	LogFormat string `yaml:"logFormat,omitempty" env:"LOG_FORMAT"`
}

// CallbackConfig configures the loopback redirect listener.
type CallbackConfig struct {
	Address string        `yaml:"address,omitempty" env:"ADDRESS"`
	Path    string        `yaml:"path,omitempty" env:"PATH"`
	Timeout time.Duration `yaml:"timeout,omitempty" env:"TIMEOUT"`
}

// RedirectURI returns the URI registered with the identity provider.
func (c CallbackConfig) RedirectURI() string {
	return "http://" + c.Address + c.Path
}

// EncryptionConfig configures encryption of access tokens returned to callers.
type EncryptionConfig struct {
	// Key is a base64 encoded 256-bit key. Takes precedence over KeyFile.
	Key string `yaml:"-" env:"KEY"`

	// KeyFile contains the base64 encoded key.
	KeyFile string `yaml:"keyFile,omitempty" env:"KEY_FILE"`

	// Required makes GetToken fail with E_ENCRYPTION_REQUIRED when no key
	// is configured.
	Required bool `yaml:"required,omitempty" env:"REQUIRED"`
}
