package sso

import (
	"context"
	"io"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startCallbackServer(t *testing.T, ctx context.Context) *CallbackServer {
	t.Helper()
	srv := NewCallbackServer(freeAddr(t), "/oauth/callback")
	require.NoError(t, srv.Start(ctx))
	t.Cleanup(srv.Stop)
	return srv
}

func get(t *testing.T, url string) (int, string) {
	t.Helper()
	resp, err := http.Get(url) // #nosec G107
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

func TestCallbackServer_Success(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	srv := startCallbackServer(t, ctx)

	status, body := get(t, srv.RedirectURI()+"?code=abc&state=xyz")
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, "Signed in")

	result, err := srv.Wait(ctx)
	require.NoError(t, err)
	assert.Equal(t, "abc", result.Code)
	assert.Equal(t, "xyz", result.State)
	assert.False(t, result.IsError())
}

func TestCallbackServer_ProviderError(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	srv := startCallbackServer(t, ctx)

	status, body := get(t, srv.RedirectURI()+"?error=access_denied&error_description=User+said+no")
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, body, "access_denied")
	assert.Contains(t, body, "User said no")

	result, err := srv.Wait(ctx)
	require.NoError(t, err)
	assert.True(t, result.IsError())
	assert.Equal(t, "User said no", result.ErrorDescription)
}

func TestCallbackServer_EscapesProviderText(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	srv := startCallbackServer(t, ctx)

	_, body := get(t, srv.RedirectURI()+"?error=x&error_description=%3Cscript%3E")
	assert.NotContains(t, body, "<script>")
}

func TestCallbackServer_ErrorPageDefaults(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	srv := startCallbackServer(t, ctx)

	status, body := get(t, srv.RedirectURI()+"?error="+strings.Repeat("x", 100))
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, body, "The identity provider did not give a reason.")
	assert.Contains(t, body, strings.Repeat("x", 64))
	assert.NotContains(t, body, strings.Repeat("x", 65), "error code is truncated")
}

func TestCallbackServer_SingleShot(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	srv := startCallbackServer(t, ctx)

	status, _ := get(t, srv.RedirectURI()+"?code=first&state=s")
	require.Equal(t, http.StatusOK, status)

	status, _ = get(t, srv.RedirectURI()+"?code=second&state=s")
	assert.Equal(t, http.StatusGone, status)

	result, err := srv.Wait(ctx)
	require.NoError(t, err)
	assert.Equal(t, "first", result.Code)
}

func TestCallbackServer_OtherPathsIgnored(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	srv := startCallbackServer(t, ctx)

	status, _ := get(t, "http://"+srv.Addr()+"/favicon.ico")
	assert.Equal(t, http.StatusNotFound, status)

	waitCtx, waitCancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer waitCancel()
	_, err := srv.Wait(waitCtx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestCallbackServer_ReleasesPort(t *testing.T) {
	t.Run("on stop", func(t *testing.T) {
		srv := NewCallbackServer(freeAddr(t), "/cb")
		require.NoError(t, srv.Start(context.Background()))
		srv.Stop()
		srv.Stop()

		l, err := net.Listen("tcp", srv.Addr())
		require.NoError(t, err)
		_ = l.Close()
	})

	t.Run("on context cancellation", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		srv := NewCallbackServer(freeAddr(t), "/cb")
		require.NoError(t, srv.Start(ctx))
		cancel()

		assert.Eventually(t, func() bool {
			l, err := net.Listen("tcp", srv.Addr())
			if err != nil {
				return false
			}
			_ = l.Close()
			return true
		}, 2*time.Second, 10*time.Millisecond)
	})

	t.Run("second bind fails while held", func(t *testing.T) {
		srv := NewCallbackServer(freeAddr(t), "/cb")
		require.NoError(t, srv.Start(context.Background()))
		defer srv.Stop()

		other := NewCallbackServer(srv.Addr(), "/cb")
		assert.Error(t, other.Start(context.Background()))
	})
}
