package manager

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/oauth2"

	"ssotoken/internal/api"
	"ssotoken/internal/cache"
	"ssotoken/internal/events"
	"ssotoken/internal/sso"
	"ssotoken/pkg/logging"
)

// TokenStore is the cache the manager reads and writes.
type TokenStore interface {
	Load(ctx context.Context, id string) (*cache.Token, error)
	Save(ctx context.Context, id string, tok *cache.Token) error
	Delete(ctx context.Context, id string) error
	Exists(ctx context.Context, id string) (bool, error)
}

// FlowRunner runs interactive authorization flows.
type FlowRunner interface {
	Run(ctx context.Context, tokenID api.SsoTokenID, client *sso.ExchangeClient) (*sso.FlowResult, error)
	RedirectURI() string
}

// Encryptor wraps access tokens before they are handed to callers.
type Encryptor interface {
	Encrypt(plaintext string) (string, error)
}

// Config holds the manager's tunables.
type Config struct {
	// Scopes are registered when a request names none.
	Scopes []string

	// RefreshWindow is how long before expiry a managed token is refreshed.
	RefreshWindow time.Duration

	// ExpiryBuffer is held back when deciding whether a cached token is usable.
	ExpiryBuffer time.Duration

	// OIDCEndpoint overrides the regional SSO-OIDC endpoint.
	OIDCEndpoint string

	// EncryptionRequired fails GetToken when no Encryptor is configured.
	EncryptionRequired bool
}

// Options wires a Manager to its collaborators. Store, Flows and NewOIDC
// are required.
type Options struct {
	Config    Config
	Store     TokenStore
	Flows     FlowRunner
	NewOIDC   func(region string) sso.OIDCAPI
	Events    events.Publisher
	Encryptor Encryptor
}

// Settings are the management settings of one token.
type Settings struct {
	AutoRefresh         bool
	ChangeNotifications bool
}

// managed is the registry entry of a token id.
type managed struct {
	settings Settings

	// accessToken is the last token this process wrote or observed, used to
	// tell our own cache writes from other processes'.
	accessToken string
	expiresAt   time.Time

	// obtainedAt is when this process last saw a newly issued token for
	// the id. Zero for tokens only found in the cache.
	obtainedAt time.Time

	timer  *time.Timer
	gen    uint64
	ctx    context.Context
	cancel context.CancelFunc
}

// Manager is the token lifecycle manager.
type Manager struct {
	cfg       Config
	store     TokenStore
	flows     FlowRunner
	newOIDC   func(region string) sso.OIDCAPI
	events    events.Publisher
	encryptor Encryptor
	now       func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.Mutex
	closed   bool
	nextGen  uint64
	registry map[api.SsoTokenID]*managed
	calls    map[api.SsoTokenID]*call
}

// New creates a Manager.
func New(opts Options) *Manager {
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		cfg:       opts.Config,
		store:     opts.Store,
		flows:     opts.Flows,
		newOIDC:   opts.NewOIDC,
		events:    opts.Events,
		encryptor: opts.Encryptor,
		now:       time.Now,
		ctx:       ctx,
		cancel:    cancel,
		registry:  make(map[api.SsoTokenID]*managed),
		calls:     make(map[api.SsoTokenID]*call),
	}
}

// Close stops all refresh timers and waits for background refreshes.
func (m *Manager) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	for _, e := range m.registry {
		e.stop()
	}
	m.mu.Unlock()

	m.cancel()
	m.wg.Wait()
	logging.Debug("TokenManager", "Token manager closed")
}

func (m *Manager) publish(id api.SsoTokenID, kind api.SsoTokenChangedKind) {
	if m.events == nil {
		return
	}
	m.events.Publish(api.SsoTokenChangedParams{Kind: kind, SsoTokenID: id})
}

// GetToken returns a token for the requested identity source. A nil
// SsoToken in the result means no token is available without interaction,
// or that ctx was cancelled.
func (m *Manager) GetToken(ctx context.Context, params api.GetSsoTokenParams) (*api.GetSsoTokenResult, error) {
	src, err := sso.Normalize(params.Source)
	if err != nil {
		return nil, api.WrapError(api.ErrInvalidToken, "invalid identity source", err)
	}
	if m.cfg.EncryptionRequired && m.encryptor == nil {
		return nil, api.NewError(api.ErrEncryptionRequired, "access token encryption is required but no key is configured")
	}

	id := sso.TokenID(src)
	scopes := params.Scopes
	if len(scopes) == 0 {
		scopes = m.cfg.Scopes
	}

	tok, kind, err := m.acquire(ctx, id, src, scopes, params.Options.LoginOnInvalidTokenOrDefault())
	if err != nil {
		if errors.Is(ctx.Err(), context.Canceled) {
			logging.Debug("TokenManager", "GetToken for %s cancelled", id)
			return &api.GetSsoTokenResult{}, nil
		}
		return nil, getTokenError(err)
	}
	if tok == nil {
		return &api.GetSsoTokenResult{}, nil
	}

	m.track(id, tok, params.Options, kind)

	accessToken := tok.AccessToken
	if m.encryptor != nil {
		if accessToken, err = m.encryptor.Encrypt(accessToken); err != nil {
			return nil, api.WrapError(api.ErrUnknown, "cannot encrypt access token", err)
		}
	}
	return &api.GetSsoTokenResult{SsoToken: &api.SsoToken{ID: id, AccessToken: accessToken}}, nil
}

// acquire returns a usable token for id. kind is Created or Refreshed when
// this call wrote a new record, and empty otherwise.
func (m *Manager) acquire(ctx context.Context, id api.SsoTokenID, src sso.Source, scopes []string, allowLogin bool) (*cache.Token, api.SsoTokenChangedKind, error) {
	tok, err := m.store.Load(ctx, id)
	if err != nil {
		return nil, "", err
	}
	if tok.Valid(m.now(), m.cfg.ExpiryBuffer) {
		return tok, "", nil
	}

	for {
		c, isLeader := m.lead(id, allowLogin)
		if !isLeader {
			joinedTok, out, err := wait(ctx, c, allowLogin)
			if out == retry {
				continue
			}
			return joinedTok, "", err
		}

		tok, kind, err := m.produce(ctx, id, src, scopes, allowLogin)
		m.finish(ctx, id, c, tok, err)
		return tok, kind, err
	}
}

// produce runs as the only in-flight attempt for id.
func (m *Manager) produce(ctx context.Context, id api.SsoTokenID, src sso.Source, scopes []string, allowLogin bool) (*cache.Token, api.SsoTokenChangedKind, error) {
	// Another caller or process may have written the record meanwhile.
	tok, err := m.store.Load(ctx, id)
	if err != nil {
		return nil, "", err
	}
	now := m.now()
	if tok.Valid(now, m.cfg.ExpiryBuffer) {
		return tok, "", nil
	}

	if tok.Refreshable(now) {
		refreshed, err := m.refresh(ctx, id, tok)
		if err == nil {
			return refreshed, api.SsoTokenRefreshed, nil
		}
		if ctx.Err() != nil {
			return nil, "", ctx.Err()
		}
		logging.Info("TokenManager", "Silent refresh of %s failed, falling back to login: %v", id, err)
	}

	if !allowLogin {
		return nil, "", nil
	}

	client := sso.NewExchangeClient(m.newOIDC(src.Region), sso.ExchangeConfig{
		Source:      src,
		Scopes:      scopes,
		RedirectURI: m.flows.RedirectURI(),
		Endpoint:    m.cfg.OIDCEndpoint,
	})
	res, err := m.flows.Run(ctx, id, client)
	if err != nil {
		return nil, "", err
	}

	rec := &cache.Token{
		AccessToken:           res.Token.AccessToken,
		ExpiresAt:             res.Token.Expiry,
		ClientID:              res.Registration.ClientID,
		ClientSecret:          res.Registration.ClientSecret,
		RegistrationExpiresAt: res.Registration.ExpiresAt,
		RefreshToken:          res.Token.RefreshToken,
		Region:                src.Region,
		StartURL:              src.IssuerURL,
	}
	if err := m.save(ctx, id, rec); err != nil {
		return nil, "", err
	}
	return rec, api.SsoTokenCreated, nil
}

// refresh redeems the record's refresh token and saves the result.
func (m *Manager) refresh(ctx context.Context, id api.SsoTokenID, tok *cache.Token) (*cache.Token, error) {
	client := sso.NewExchangeClient(m.newOIDC(tok.Region), sso.ExchangeConfig{
		Source:   sso.Source{IssuerURL: tok.StartURL, Region: tok.Region},
		Endpoint: m.cfg.OIDCEndpoint,
	})
	reg := sso.Registration{
		ClientID:     tok.ClientID,
		ClientSecret: tok.ClientSecret,
		ExpiresAt:    tok.RegistrationExpiresAt,
	}

	ot, err := client.Refresh(ctx, reg, tok.RefreshToken)
	if err != nil {
		if sso.IsInvalidGrant(err) {
			logging.Info("TokenManager", "Refresh token of %s is no longer accepted", id)
		}
		return nil, err
	}

	next := *tok
	applyToken(&next, ot)
	if err := m.save(ctx, id, &next); err != nil {
		return nil, err
	}
	logging.Info("TokenManager", "Refreshed token %s, expires %s", id, next.ExpiresAt.Format(time.RFC3339))
	return &next, nil
}

func applyToken(rec *cache.Token, ot *oauth2.Token) {
	rec.AccessToken = ot.AccessToken
	rec.ExpiresAt = ot.Expiry
	if ot.RefreshToken != "" {
		rec.RefreshToken = ot.RefreshToken
	}
}

// save notes the access token before writing so the cache watcher can
// recognise the write as ours.
func (m *Manager) save(ctx context.Context, id api.SsoTokenID, rec *cache.Token) error {
	m.mu.Lock()
	if e, ok := m.registry[id]; ok {
		e.accessToken = rec.AccessToken
	}
	m.mu.Unlock()

	return m.store.Save(ctx, id, rec)
}

// track records settings for id after a successful GetToken, emits the
// lifecycle notification for a newly written record and (re)schedules
// background work.
func (m *Manager) track(id api.SsoTokenID, tok *cache.Token, opts *api.GetSsoTokenOptions, kind api.SsoTokenChangedKind) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return
	}

	e, ok := m.registry[id]
	if !ok {
		e = m.newEntry()
		e.settings = Settings{
			AutoRefresh:         opts.AutoRefreshOrDefault(),
			ChangeNotifications: opts.ChangeNotificationsOrDefault(),
		}
		m.registry[id] = e
	} else if opts != nil {
		if opts.AutoRefresh != nil {
			e.settings.AutoRefresh = *opts.AutoRefresh
		}
		if opts.ChangeNotifications != nil {
			e.settings.ChangeNotifications = *opts.ChangeNotifications
		}
	}

	rescheduled := kind != "" || !ok || !e.expiresAt.Equal(tok.ExpiresAt) || e.timer == nil
	e.accessToken = tok.AccessToken
	e.expiresAt = tok.ExpiresAt
	if kind != "" {
		e.obtainedAt = m.now()
	}

	if kind != "" && e.settings.ChangeNotifications {
		m.publish(id, kind)
	}
	if rescheduled {
		m.schedule(id, e)
	}
}

func (m *Manager) newEntry() *managed {
	ctx, cancel := context.WithCancel(m.ctx)
	return &managed{ctx: ctx, cancel: cancel}
}

// InvalidateToken deletes the cached record of an id, forgets its settings
// and announces the invalidation. Invalidating an absent record succeeds.
func (m *Manager) InvalidateToken(ctx context.Context, params api.InvalidateSsoTokenParams) (*api.InvalidateSsoTokenResult, error) {
	id := params.SsoTokenID
	if !sso.ValidTokenID(id) {
		return nil, api.NewError(api.ErrInvalidToken, "malformed sso token id")
	}

	exists, err := m.store.Exists(ctx, id)
	if err != nil {
		return nil, cacheError(err)
	}

	m.mu.Lock()
	if e, ok := m.registry[id]; ok {
		e.stop()
		delete(m.registry, id)
	}
	c, busy := m.calls[id]
	m.mu.Unlock()

	// A refresh already past its last cancellation check would write the
	// record back after the delete.
	if busy && !c.interactive {
		select {
		case <-c.done:
		case <-ctx.Done():
			return nil, cacheError(ctx.Err())
		}
	}

	if err := m.store.Delete(ctx, id); err != nil {
		return nil, cacheError(err)
	}

	logging.Info("TokenManager", "Invalidated token %s (record present: %t)", id, exists)
	m.publish(id, api.SsoTokenInvalidated)
	return &api.InvalidateSsoTokenResult{}, nil
}

// UpdateTokenManagement changes the management settings of an id and
// returns the settings in effect afterwards.
func (m *Manager) UpdateTokenManagement(ctx context.Context, params api.UpdateSsoTokenManagementParams) (*api.UpdateSsoTokenManagementResult, error) {
	id := params.SsoTokenID
	if !sso.ValidTokenID(id) {
		return nil, api.NewError(api.ErrInvalidToken, "malformed sso token id")
	}

	m.mu.Lock()
	_, known := m.registry[id]
	m.mu.Unlock()

	var rec *cache.Token
	if !known {
		var err error
		rec, err = m.store.Load(ctx, id)
		if err != nil {
			return nil, getTokenError(err)
		}
		if rec == nil {
			return nil, api.NewError(api.ErrInvalidToken, "unknown sso token id")
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.registry[id]
	if !ok {
		if rec == nil {
			// Invalidated while the record was being read.
			return nil, api.NewError(api.ErrInvalidToken, "unknown sso token id")
		}
		e = m.newEntry()
		e.settings = Settings{AutoRefresh: true, ChangeNotifications: true}
		e.accessToken = rec.AccessToken
		e.expiresAt = rec.ExpiresAt
		m.registry[id] = e
	}

	if params.AutoRefresh != nil {
		e.settings.AutoRefresh = *params.AutoRefresh
	}
	if params.ChangeNotifications != nil {
		e.settings.ChangeNotifications = *params.ChangeNotifications
	}
	if !m.closed {
		m.schedule(id, e)
	}

	logging.Debug("TokenManager", "Management of %s: autoRefresh=%t changeNotifications=%t",
		id, e.settings.AutoRefresh, e.settings.ChangeNotifications)
	return &api.UpdateSsoTokenManagementResult{
		SsoTokenID:          id,
		AutoRefresh:         e.settings.AutoRefresh,
		ChangeNotifications: e.settings.ChangeNotifications,
	}, nil
}

// Settings returns the management settings of id, if it is managed.
func (m *Manager) Settings(id api.SsoTokenID) (Settings, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.registry[id]
	if !ok {
		return Settings{}, false
	}
	return e.settings, true
}
