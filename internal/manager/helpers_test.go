package manager

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssooidc"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"ssotoken/internal/api"
	"ssotoken/internal/cache"
	"ssotoken/internal/sso"
)

var builderSource = api.IdentitySource{Kind: api.SourceKindAwsBuilderID, ClientName: "test-tool"}

func builderID(t *testing.T) api.SsoTokenID {
	t.Helper()
	src, err := sso.Normalize(builderSource)
	require.NoError(t, err)
	return sso.TokenID(src)
}

// recorder is an events.Publisher that keeps everything it is given.
type recorder struct {
	mu     sync.Mutex
	events []api.SsoTokenChangedParams
}

func (r *recorder) Publish(e api.SsoTokenChangedParams) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) kinds() []api.SsoTokenChangedKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	kinds := make([]api.SsoTokenChangedKind, 0, len(r.events))
	for _, e := range r.events {
		kinds = append(kinds, e.Kind)
	}
	return kinds
}

func (r *recorder) count(kind api.SsoTokenChangedKind) int {
	n := 0
	for _, k := range r.kinds() {
		if k == kind {
			n++
		}
	}
	return n
}

// fakeFlows stands in for the interactive flow controller.
type fakeFlows struct {
	mu   sync.Mutex
	runs int

	// block, when set, holds Run until closed or the caller cancels.
	block   chan struct{}
	started chan struct{}
	err     error
}

func (f *fakeFlows) Run(ctx context.Context, _ api.SsoTokenID, client *sso.ExchangeClient) (*sso.FlowResult, error) {
	f.mu.Lock()
	f.runs++
	f.mu.Unlock()

	if f.started != nil {
		f.started <- struct{}{}
	}
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	now := time.Now()
	return &sso.FlowResult{
		Registration: sso.Registration{ClientID: "cid", ClientSecret: "secret", ExpiresAt: now.Add(90 * 24 * time.Hour).UTC()},
		Token: &oauth2.Token{
			AccessToken:  "flow-token",
			RefreshToken: "flow-refresh",
			Expiry:       now.Add(time.Hour).UTC(),
		},
	}, nil
}

func (f *fakeFlows) RedirectURI() string {
	return "http://127.0.0.1:8000/oauth/callback"
}

func (f *fakeFlows) runCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.runs
}

// fakeOIDC answers refresh requests.
type fakeOIDC struct {
	mu        sync.Mutex
	refreshes int
	err       error
	expiresIn int32
}

func (f *fakeOIDC) RegisterClient(context.Context, *ssooidc.RegisterClientInput, ...func(*ssooidc.Options)) (*ssooidc.RegisterClientOutput, error) {
	return &ssooidc.RegisterClientOutput{ClientId: aws.String("cid"), ClientSecret: aws.String("secret")}, nil
}

func (f *fakeOIDC) CreateToken(ctx context.Context, in *ssooidc.CreateTokenInput, _ ...func(*ssooidc.Options)) (*ssooidc.CreateTokenOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if f.err != nil {
		return nil, f.err
	}
	f.refreshes++
	expiresIn := f.expiresIn
	if expiresIn == 0 {
		expiresIn = 3600
	}
	return &ssooidc.CreateTokenOutput{
		AccessToken: aws.String(fmt.Sprintf("refreshed-%d", f.refreshes)),
		ExpiresIn:   expiresIn,
	}, nil
}

func (f *fakeOIDC) refreshCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.refreshes
}

type harness struct {
	m      *Manager
	store  *cache.Store
	flows  *fakeFlows
	oidc   *fakeOIDC
	events *recorder
}

func newHarness(t *testing.T, mutate func(*Options)) *harness {
	t.Helper()
	h := &harness{
		store:  cache.NewStore(filepath.Join(t.TempDir(), "cache")),
		flows:  &fakeFlows{},
		oidc:   &fakeOIDC{},
		events: &recorder{},
	}
	opts := Options{
		Config: Config{
			Scopes:        []string{"codewhisperer:completions"},
			RefreshWindow: 5 * time.Minute,
			ExpiryBuffer:  time.Minute,
		},
		Store:   h.store,
		Flows:   h.flows,
		NewOIDC: func(string) sso.OIDCAPI { return h.oidc },
		Events:  h.events,
	}
	if mutate != nil {
		mutate(&opts)
	}
	h.m = New(opts)
	t.Cleanup(h.m.Close)
	return h
}

func (h *harness) seed(t *testing.T, id api.SsoTokenID, accessToken string, expiresIn time.Duration) {
	t.Helper()
	require.NoError(t, h.store.Save(context.Background(), id, &cache.Token{
		AccessToken:  accessToken,
		ExpiresAt:    time.Now().Add(expiresIn).UTC(),
		ClientID:     "cid",
		ClientSecret: "secret",
		RefreshToken: "seed-refresh",
		Region:       sso.BuilderRegion,
		StartURL:     sso.BuilderIssuerURL,
	}))
}

func (h *harness) getToken(t *testing.T, ctx context.Context, opts *api.GetSsoTokenOptions) *api.GetSsoTokenResult {
	t.Helper()
	res, err := h.m.GetToken(ctx, api.GetSsoTokenParams{Source: builderSource, Options: opts})
	require.NoError(t, err)
	require.NotNil(t, res)
	return res
}

type prefixEncryptor struct{}

func (prefixEncryptor) Encrypt(s string) (string, error) { return "enc:" + s, nil }

// gatedStore holds the first Save after its cancellation check until
// release is closed.
type gatedStore struct {
	TokenStore
	once        sync.Once
	releaseOnce sync.Once
	entered     chan struct{}
	release     chan struct{}
}

func newGatedStore(inner TokenStore) *gatedStore {
	return &gatedStore{TokenStore: inner, entered: make(chan struct{}), release: make(chan struct{})}
}

func (g *gatedStore) unblock() {
	g.releaseOnce.Do(func() { close(g.release) })
}

func (g *gatedStore) Save(ctx context.Context, id string, tok *cache.Token) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	first := false
	g.once.Do(func() { first = true })
	if first {
		close(g.entered)
		<-g.release
	}
	return g.TokenStore.Save(context.Background(), id, tok)
}
