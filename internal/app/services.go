package app

import (
	"context"
	"fmt"
	neturl "net/url"
	"sync"

	"ssotoken/internal/api"
	"ssotoken/internal/cache"
	"ssotoken/internal/config"
	"ssotoken/internal/encryption"
	"ssotoken/internal/events"
	"ssotoken/internal/manager"
	"ssotoken/internal/sharedconfig"
	"ssotoken/internal/sso"
	"ssotoken/pkg/logging"
)

// Services holds the initialized components of the application.
type Services struct {
	Settings config.Config

	Store    *cache.Store
	Broker   *events.Broker
	Flows    *sso.Controller
	Manager  *manager.Manager
	Profiles *sharedconfig.Store

	// Watcher is nil when cache watching is disabled.
	Watcher *cache.Watcher

	mu          sync.RWMutex
	authorizers []sso.AuthorizeFunc
	closeOnce   sync.Once
}

// InitializeServices creates every component from settings. Nothing is
// started; Serve starts the watcher and the RPC server.
func InitializeServices(settings config.Config) (*Services, error) {
	s := &Services{
		Settings: settings,
		Store:    cache.NewStore(settings.CacheDir),
		Broker:   events.NewBroker(),
		Profiles: sharedconfig.NewStore(settings.SharedConfigFile),
	}

	s.Flows = sso.NewController(sso.ControllerConfig{
		CallbackAddress: settings.Callback.Address,
		CallbackPath:    settings.Callback.Path,
		Timeout:         settings.Callback.Timeout,
		Authorize:       s.authorize,
	})

	opts := manager.Options{
		Config: manager.Config{
			Scopes:             settings.Scopes,
			RefreshWindow:      settings.RefreshWindow,
			ExpiryBuffer:       settings.ExpiryBuffer,
			OIDCEndpoint:       settings.OIDCEndpoint,
			EncryptionRequired: settings.Encryption.Required,
		},
		Store: s.Store,
		Flows: s.Flows,
		NewOIDC: func(region string) sso.OIDCAPI {
			return sso.NewOIDCAPI(region, settings.OIDCEndpoint)
		},
		Events: s.Broker,
	}

	key, err := settings.EncryptionKey()
	if err != nil {
		return nil, fmt.Errorf("failed to read encryption key: %w", err)
	}
	if key != nil {
		jwe, err := encryption.New(key)
		if err != nil {
			return nil, fmt.Errorf("failed to create encryptor: %w", err)
		}
		opts.Encryptor = jwe
		logging.Info("Bootstrap", "Access tokens are returned encrypted")
	}

	s.Manager = manager.New(opts)

	if settings.WatchCache {
		s.Watcher = cache.NewWatcher(settings.CacheDir, s.Manager.HandleCacheChange)
	}
	return s, nil
}

// OnAuthorize adds a receiver of authorize URLs.
func (s *Services) OnAuthorize(fn sso.AuthorizeFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.authorizers = append(s.authorizers, fn)
}

func (s *Services) authorize(ctx context.Context, id api.SsoTokenID, url string) {
	s.mu.RLock()
	handlers := append([]sso.AuthorizeFunc(nil), s.authorizers...)
	s.mu.RUnlock()

	if len(handlers) == 0 {
		// The query carries the CSRF state.
		logging.Warn("Bootstrap", "No one to open the authorization page for %s (%s)", id, withoutQuery(url))
		return
	}
	for _, fn := range handlers {
		fn(ctx, id, url)
	}
}

// Close stops the manager before the broker so no event is published to a
// closed broker.
func (s *Services) Close() {
	s.closeOnce.Do(func() {
		s.Manager.Close()
		s.Broker.Close()
	})
}

func withoutQuery(raw string) string {
	u, err := neturl.Parse(raw)
	if err != nil {
		return "unparsable URL"
	}
	u.RawQuery = ""
	u.Fragment = ""
	return u.String()
}
