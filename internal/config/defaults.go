package config

import "time"

const (
	// DefaultCallbackAddress is the fixed loopback address for the redirect listener.
	DefaultCallbackAddress = "127.0.0.1:8000"

	// DefaultCallbackPath is the path the identity provider redirects to.
	DefaultCallbackPath = "/oauth/callback"

	// DefaultCallbackTimeout bounds the wait for the browser redirect.
	DefaultCallbackTimeout = 10 * time.Minute

	// DefaultClientName is the registered client name when callers send none.
	DefaultClientName = "ssotoken"

	// DefaultRefreshWindow is how long before expiry auto-refresh kicks in.
	DefaultRefreshWindow = 5 * time.Minute

	// DefaultExpiryBuffer accounts for clock skew and in-flight requests.
	DefaultExpiryBuffer = 60 * time.Second

	// DefaultCacheDir is relative to the user's home directory.
	DefaultCacheDir = ".aws/sso/cache"

	// DefaultSharedConfigFile is relative to the user's home directory.
	DefaultSharedConfigFile = ".aws/config"
)

// DefaultScopes are the scopes registered when a request names none.
var DefaultScopes = []string{
	"codewhisperer:conversations",
	"codewhisperer:transformations",
	"codewhisperer:taskassist",
	"codewhisperer:completions",
	"codewhisperer:analysis",
}

// GetDefaultConfig returns the built-in defaults. Paths are left relative to
// the home directory; Load resolves them.
func GetDefaultConfig() Config {
	return Config{
		CacheDir: "~/" + DefaultCacheDir,
		Callback: CallbackConfig{
			Address: DefaultCallbackAddress,
			Path:    DefaultCallbackPath,
			Timeout: DefaultCallbackTimeout,
		},
		ClientName:       DefaultClientName,
		Scopes:           append([]string(nil), DefaultScopes...),
		RefreshWindow:    DefaultRefreshWindow,
		ExpiryBuffer:     DefaultExpiryBuffer,
		SharedConfigFile: "~/" + DefaultSharedConfigFile,
		WatchCache:       true,
		LogLevel:         "info",
		LogFormat:        "text",
	}
}
