package sso

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssooidc/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func newTestExchangeClient(api OIDCAPI) *ExchangeClient {
	c := NewExchangeClient(api, ExchangeConfig{
		Source:      testSource(),
		Scopes:      []string{"sso:account:access", "codewhisperer:completions"},
		RedirectURI: "http://127.0.0.1:8000/oauth/callback",
	})
	c.now = func() time.Time { return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC) }
	return c
}

func TestExchangeClient_Register(t *testing.T) {
	api := &fakeOIDC{}
	c := newTestExchangeClient(api)

	reg, err := c.Register(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "client-id", reg.ClientID)
	assert.Equal(t, "client-secret", reg.ClientSecret)
	assert.Equal(t, 2100, reg.ExpiresAt.Year())
	assert.True(t, reg.Valid(time.Now()))

	require.Len(t, api.registrations, 1)
	in := api.registrations[0]
	assert.Equal(t, "test-tool", aws.ToString(in.ClientName))
	assert.Equal(t, "public", aws.ToString(in.ClientType))
	assert.Equal(t, []string{"authorization_code", "refresh_token"}, in.GrantTypes)
	assert.Equal(t, []string{"http://127.0.0.1:8000/oauth/callback"}, in.RedirectUris)
	assert.Equal(t, "https://example.awsapps.com/start", aws.ToString(in.IssuerUrl))
	assert.Equal(t, []string{"sso:account:access", "codewhisperer:completions"}, in.Scopes)
}

func TestExchangeClient_RegisterError(t *testing.T) {
	c := newTestExchangeClient(&fakeOIDC{registerErr: errors.New("network down")})
	_, err := c.Register(context.Background())
	assert.ErrorContains(t, err, "network down")
}

func TestExchangeClient_AuthorizeURL(t *testing.T) {
	c := newTestExchangeClient(&fakeOIDC{})
	p := GeneratePKCE()

	raw := c.AuthorizeURL(Registration{ClientID: "client-id"}, p)
	u, err := url.Parse(raw)
	require.NoError(t, err)

	assert.Equal(t, "oidc.eu-west-1.amazonaws.com", u.Host)
	assert.Equal(t, "/authorize", u.Path)
	q := u.Query()
	assert.Equal(t, "code", q.Get("response_type"))
	assert.Equal(t, "client-id", q.Get("client_id"))
	assert.Equal(t, "http://127.0.0.1:8000/oauth/callback", q.Get("redirect_uri"))
	assert.Equal(t, "sso:account:access codewhisperer:completions", q.Get("scopes"))
	assert.Equal(t, p.State, q.Get("state"))
	assert.Equal(t, p.Challenge, q.Get("code_challenge"))
	assert.Equal(t, "S256", q.Get("code_challenge_method"))
	assert.Empty(t, q.Get("code_verifier"))
}

func TestExchangeClient_AuthorizeURLEndpointOverride(t *testing.T) {
	c := NewExchangeClient(&fakeOIDC{}, ExchangeConfig{Source: testSource(), Endpoint: "http://localhost:4566/"})
	raw := c.AuthorizeURL(Registration{ClientID: "id"}, GeneratePKCE())
	assert.True(t, strings.HasPrefix(raw, "http://localhost:4566/authorize?"), raw)
}

func TestExchangeClient_ExchangeCode(t *testing.T) {
	api := &fakeOIDC{expiresIn: 600}
	c := newTestExchangeClient(api)
	reg := Registration{ClientID: "client-id", ClientSecret: "client-secret"}

	tok, err := c.ExchangeCode(context.Background(), reg, "the-code", "the-verifier")
	require.NoError(t, err)
	assert.Equal(t, "access-authorization_code", tok.AccessToken)
	assert.Equal(t, "refresh-token", tok.RefreshToken)
	assert.Equal(t, time.Date(2026, 1, 1, 0, 10, 0, 0, time.UTC), tok.Expiry)

	require.Len(t, api.tokenRequests, 1)
	in := api.tokenRequests[0]
	assert.Equal(t, "authorization_code", aws.ToString(in.GrantType))
	assert.Equal(t, "the-code", aws.ToString(in.Code))
	assert.Equal(t, "the-verifier", aws.ToString(in.CodeVerifier))
	assert.Equal(t, "http://127.0.0.1:8000/oauth/callback", aws.ToString(in.RedirectUri))
}

func TestExchangeClient_Refresh(t *testing.T) {
	api := &fakeOIDC{}
	c := newTestExchangeClient(api)

	tok, err := c.Refresh(context.Background(), Registration{ClientID: "id", ClientSecret: "secret"}, "old-refresh")
	require.NoError(t, err)
	assert.Equal(t, "access-refresh_token", tok.AccessToken)
	assert.Equal(t, "old-refresh", tok.RefreshToken, "refresh token carried over when not rotated")
	assert.Equal(t, "refresh_token", aws.ToString(api.tokenRequests[0].GrantType))
	assert.Equal(t, "old-refresh", aws.ToString(api.tokenRequests[0].RefreshToken))
}

func TestExchangeClient_NoRetries(t *testing.T) {
	api := &fakeOIDC{tokenErr: &types.InvalidGrantException{Message: aws.String("expired")}}
	c := newTestExchangeClient(api)

	_, err := c.Refresh(context.Background(), Registration{ClientID: "id"}, "r")
	require.Error(t, err)
	assert.True(t, IsInvalidGrant(err))
	assert.Equal(t, 1, api.tokenCalls())
}

func TestIsInvalidGrant(t *testing.T) {
	assert.True(t, IsInvalidGrant(fmt.Errorf("wrapped: %w", &types.ExpiredTokenException{})))
	assert.True(t, IsInvalidGrant(&types.InvalidClientException{}))
	assert.False(t, IsInvalidGrant(errors.New("timeout")))
	assert.False(t, IsInvalidGrant(nil))
}

func TestRegistration_Valid(t *testing.T) {
	now := time.Now()
	assert.False(t, Registration{}.Valid(now))
	assert.True(t, Registration{ClientID: "a", ClientSecret: "b"}.Valid(now))
	assert.False(t, Registration{ClientID: "a", ClientSecret: "b", ExpiresAt: now.Add(-time.Second)}.Valid(now))
}

func TestChallengeMatchesVerifier(t *testing.T) {
	p := GeneratePKCE()
	assert.Equal(t, oauth2.S256ChallengeFromVerifier(p.Verifier), p.Challenge)
}
