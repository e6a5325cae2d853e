package app

import (
	"fmt"
	"io"
	"os"

	"ssotoken/internal/config"
	"ssotoken/internal/manager"
	"ssotoken/internal/sharedconfig"
	"ssotoken/internal/sso"
	"ssotoken/pkg/logging"
)

// Application is the bootstrapped ssotoken process.
//
// Example usage:
//
//	application, err := app.NewApplication(app.NewConfig(true, ""))
//	if err != nil {
//	    return fmt.Errorf("failed to create application: %w", err)
//	}
//	defer application.Close()
type Application struct {
	config   *Config
	services *Services
}

// NewApplication loads configuration, initializes logging and creates all
// services. Configuration errors are returned before anything is started.
func NewApplication(cfg *Config) (*Application, error) {
	var settings config.Config
	if cfg.Settings != nil {
		settings = *cfg.Settings
		if err := settings.Validate(); err != nil {
			return nil, fmt.Errorf("invalid configuration: %w", err)
		}
	} else {
		path := cfg.ConfigPath
		if path == "" {
			var err error
			if path, err = config.DefaultConfigPath(); err != nil {
				return nil, fmt.Errorf("failed to locate configuration: %w", err)
			}
		}
		var err error
		if settings, err = config.Load(path); err != nil {
			return nil, fmt.Errorf("failed to load configuration from %s: %w", path, err)
		}
	}

	level, err := logging.ParseLevel(settings.LogLevel)
	if err != nil {
		return nil, err
	}
	if cfg.Debug {
		level = logging.LevelDebug
	}
	var logOutput io.Writer = os.Stderr
	if cfg.LogOutput != nil {
		logOutput = cfg.LogOutput
	}
	logging.Init(level, settings.LogFormat, logOutput)
	logging.Debug("Bootstrap", "Cache directory %s, shared config %s", settings.CacheDir, settings.SharedConfigFile)

	services, err := InitializeServices(settings)
	if err != nil {
		logging.Error("Bootstrap", err, "Failed to initialize services")
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	return &Application{config: cfg, services: services}, nil
}

// Settings returns the effective configuration.
func (a *Application) Settings() config.Config {
	return a.services.Settings
}

// Manager returns the token lifecycle manager.
func (a *Application) Manager() *manager.Manager {
	return a.services.Manager
}

// Profiles returns the shared config store.
func (a *Application) Profiles() *sharedconfig.Store {
	return a.services.Profiles
}

// OnAuthorize registers fn to receive authorize URLs of interactive logins.
func (a *Application) OnAuthorize(fn sso.AuthorizeFunc) {
	a.services.OnAuthorize(fn)
}

// Close stops background refreshes and releases all services.
func (a *Application) Close() {
	a.services.Close()
}
