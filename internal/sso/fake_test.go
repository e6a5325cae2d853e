package sso

import (
	"context"
	"net"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssooidc"
	"github.com/stretchr/testify/require"
)

// fakeOIDC records requests and answers them with canned responses.
type fakeOIDC struct {
	mu sync.Mutex

	registerErr error
	tokenErr    error
	expiresIn   int32

	registrations []*ssooidc.RegisterClientInput
	tokenRequests []*ssooidc.CreateTokenInput
}

func (f *fakeOIDC) RegisterClient(ctx context.Context, in *ssooidc.RegisterClientInput, _ ...func(*ssooidc.Options)) (*ssooidc.RegisterClientOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.registrations = append(f.registrations, in)
	if f.registerErr != nil {
		return nil, f.registerErr
	}
	return &ssooidc.RegisterClientOutput{
		ClientId:              aws.String("client-id"),
		ClientSecret:          aws.String("client-secret"),
		ClientSecretExpiresAt: 4102444800, // 2100-01-01
	}, nil
}

func (f *fakeOIDC) CreateToken(ctx context.Context, in *ssooidc.CreateTokenInput, _ ...func(*ssooidc.Options)) (*ssooidc.CreateTokenOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.tokenRequests = append(f.tokenRequests, in)
	if f.tokenErr != nil {
		return nil, f.tokenErr
	}
	expiresIn := f.expiresIn
	if expiresIn == 0 {
		expiresIn = 3600
	}
	out := &ssooidc.CreateTokenOutput{
		AccessToken: aws.String("access-" + aws.ToString(in.GrantType)),
		TokenType:   aws.String("Bearer"),
		ExpiresIn:   expiresIn,
	}
	if aws.ToString(in.GrantType) == grantAuthorizationCode {
		out.RefreshToken = aws.String("refresh-token")
	}
	return out, nil
}

func (f *fakeOIDC) tokenCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.tokenRequests)
}

// freeAddr returns a loopback address that was free a moment ago.
func freeAddr(t *testing.T) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())
	return addr
}

func testSource() Source {
	return Source{ClientName: "test-tool", IssuerURL: "https://example.awsapps.com/start", Region: "eu-west-1"}
}
