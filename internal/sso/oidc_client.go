package sso

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssooidc"
	"github.com/aws/aws-sdk-go-v2/service/ssooidc/types"
	"github.com/aws/smithy-go"
	"golang.org/x/oauth2"

	"ssotoken/pkg/logging"
)

const (
	clientTypePublic       = "public"
	grantAuthorizationCode = "authorization_code"
	grantRefreshToken      = "refresh_token"
)

// OIDCAPI is the subset of the SSO-OIDC service used by the exchange client.
type OIDCAPI interface {
	RegisterClient(ctx context.Context, params *ssooidc.RegisterClientInput, optFns ...func(*ssooidc.Options)) (*ssooidc.RegisterClientOutput, error)
	CreateToken(ctx context.Context, params *ssooidc.CreateTokenInput, optFns ...func(*ssooidc.Options)) (*ssooidc.CreateTokenOutput, error)
}

// NewOIDCAPI returns an SSO-OIDC client for region. Requests are never
// retried. A non-empty endpoint replaces the regional endpoint.
func NewOIDCAPI(region, endpoint string) OIDCAPI {
	opts := ssooidc.Options{
		Region:  region,
		Retryer: aws.NopRetryer{},
	}
	if endpoint != "" {
		opts.BaseEndpoint = aws.String(endpoint)
	}
	return ssooidc.New(opts)
}

// Registration is a registered public client.
type Registration struct {
	ClientID     string
	ClientSecret string
	ExpiresAt    time.Time
}

// Valid reports whether the registration can still be used at now.
func (r Registration) Valid(now time.Time) bool {
	return r.ClientID != "" && r.ClientSecret != "" && (r.ExpiresAt.IsZero() || now.Before(r.ExpiresAt))
}

// ExchangeConfig binds an ExchangeClient to one identity source.
type ExchangeConfig struct {
	Source      Source
	Scopes      []string
	RedirectURI string

	// Endpoint overrides the regional SSO-OIDC endpoint.
	Endpoint string
}

// ExchangeClient performs client registration, authorize URL construction
// and token exchange against the SSO-OIDC service of one source.
type ExchangeClient struct {
	api OIDCAPI
	cfg ExchangeConfig
	now func() time.Time
}

// NewExchangeClient creates an exchange client.
func NewExchangeClient(api OIDCAPI, cfg ExchangeConfig) *ExchangeClient {
	return &ExchangeClient{api: api, cfg: cfg, now: time.Now}
}

// Source returns the identity source the client is bound to.
func (c *ExchangeClient) Source() Source {
	return c.cfg.Source
}

// Register registers a public client for the authorization code grant.
func (c *ExchangeClient) Register(ctx context.Context) (Registration, error) {
	out, err := c.api.RegisterClient(ctx, &ssooidc.RegisterClientInput{
		ClientName:   aws.String(c.cfg.Source.ClientName),
		ClientType:   aws.String(clientTypePublic),
		Scopes:       c.cfg.Scopes,
		GrantTypes:   []string{grantAuthorizationCode, grantRefreshToken},
		RedirectUris: []string{c.cfg.RedirectURI},
		IssuerUrl:    aws.String(c.cfg.Source.IssuerURL),
	})
	if err != nil {
		return Registration{}, fmt.Errorf("registering client: %w", describe(err))
	}

	reg := Registration{
		ClientID:     aws.ToString(out.ClientId),
		ClientSecret: aws.ToString(out.ClientSecret),
	}
	if out.ClientSecretExpiresAt > 0 {
		reg.ExpiresAt = time.Unix(out.ClientSecretExpiresAt, 0).UTC()
	}
	if reg.ClientID == "" {
		return Registration{}, errors.New("registering client: response carried no client id")
	}

	logging.Debug("ExchangeClient", "Registered client for %s (expires %s)", c.cfg.Source.IssuerURL, reg.ExpiresAt.Format(time.RFC3339))
	return reg, nil
}

func (c *ExchangeClient) baseURL() string {
	if c.cfg.Endpoint != "" {
		return strings.TrimSuffix(c.cfg.Endpoint, "/")
	}
	return fmt.Sprintf("https://oidc.%s.amazonaws.com", c.cfg.Source.Region)
}

// AuthorizeURL builds the URL the user opens to approve the client.
func (c *ExchangeClient) AuthorizeURL(reg Registration, p PKCE) string {
	oc := &oauth2.Config{
		ClientID:    reg.ClientID,
		RedirectURL: c.cfg.RedirectURI,
		Endpoint:    oauth2.Endpoint{AuthURL: c.baseURL() + "/authorize"},
	}
	return oc.AuthCodeURL(p.State,
		oauth2.SetAuthURLParam("scopes", strings.Join(c.cfg.Scopes, " ")),
		oauth2.S256ChallengeOption(p.Verifier),
	)
}

// ExchangeCode trades an authorization code for tokens.
func (c *ExchangeClient) ExchangeCode(ctx context.Context, reg Registration, code, verifier string) (*oauth2.Token, error) {
	tok, err := c.createToken(ctx, &ssooidc.CreateTokenInput{
		ClientId:     aws.String(reg.ClientID),
		ClientSecret: aws.String(reg.ClientSecret),
		GrantType:    aws.String(grantAuthorizationCode),
		Code:         aws.String(code),
		CodeVerifier: aws.String(verifier),
		RedirectUri:  aws.String(c.cfg.RedirectURI),
	})
	if err != nil {
		return nil, fmt.Errorf("exchanging authorization code: %w", err)
	}
	return tok, nil
}

// Refresh redeems a refresh token. The provider may or may not rotate it;
// when it does not, the old refresh token is carried over.
func (c *ExchangeClient) Refresh(ctx context.Context, reg Registration, refreshToken string) (*oauth2.Token, error) {
	tok, err := c.createToken(ctx, &ssooidc.CreateTokenInput{
		ClientId:     aws.String(reg.ClientID),
		ClientSecret: aws.String(reg.ClientSecret),
		GrantType:    aws.String(grantRefreshToken),
		RefreshToken: aws.String(refreshToken),
	})
	if err != nil {
		return nil, fmt.Errorf("refreshing token: %w", err)
	}
	if tok.RefreshToken == "" {
		tok.RefreshToken = refreshToken
	}
	return tok, nil
}

func (c *ExchangeClient) createToken(ctx context.Context, in *ssooidc.CreateTokenInput) (*oauth2.Token, error) {
	out, err := c.api.CreateToken(ctx, in)
	if err != nil {
		return nil, describe(err)
	}
	if aws.ToString(out.AccessToken) == "" {
		return nil, errors.New("response carried no access token")
	}
	return &oauth2.Token{
		AccessToken:  aws.ToString(out.AccessToken),
		TokenType:    aws.ToString(out.TokenType),
		RefreshToken: aws.ToString(out.RefreshToken),
		Expiry:       c.now().Add(time.Duration(out.ExpiresIn) * time.Second).UTC(),
	}, nil
}

// IsInvalidGrant reports whether err means the grant can never succeed, so
// a new interactive login is needed.
func IsInvalidGrant(err error) bool {
	var invalidGrant *types.InvalidGrantException
	var expired *types.ExpiredTokenException
	var invalidClient *types.InvalidClientException
	return errors.As(err, &invalidGrant) || errors.As(err, &expired) || errors.As(err, &invalidClient)
}

// describe logs the provider error code of SDK failures. The error itself is
// returned unchanged so callers can still match the typed exceptions.
func describe(err error) error {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		logging.Debug("ExchangeClient", "SSO-OIDC rejected request: %s: %s", apiErr.ErrorCode(), apiErr.ErrorMessage())
	}
	return err
}
