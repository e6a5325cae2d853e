package cmd

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ssotoken/internal/api"
)

type testEnv struct {
	configPath string
	cacheDir   string
	sharedFile string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()
	env := &testEnv{
		configPath: filepath.Join(dir, "config.yaml"),
		cacheDir:   filepath.Join(dir, "cache"),
		sharedFile: filepath.Join(dir, "aws-config"),
	}
	content := fmt.Sprintf("cacheDir: %s\nsharedConfigFile: %s\nwatchCache: false\n", env.cacheDir, env.sharedFile)
	require.NoError(t, os.WriteFile(env.configPath, []byte(content), 0600))
	return env
}

// run executes a fresh command tree and returns stdout.
func (e *testEnv) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	root := newRootCmd()
	root.SetArgs(append([]string{"--config", e.configPath}, args...))
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetIn(&bytes.Buffer{})
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestRootCommand(t *testing.T) {
	root := newRootCmd()
	assert.Equal(t, "ssotoken", root.Use)
	assert.NotEmpty(t, root.Short)
	assert.True(t, root.SilenceUsage)

	names := map[string]bool{}
	for _, c := range root.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"serve", "token", "profile", "version"} {
		assert.True(t, names[want], "missing command %s", want)
	}
}

func TestSetVersion(t *testing.T) {
	original := GetVersion()
	defer SetVersion(original)

	SetVersion("1.2.3-test")
	assert.Equal(t, "1.2.3-test", GetVersion())
	assert.Equal(t, "1.2.3-test", newRootCmd().Version)
}

func TestGetExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"login required", fmt.Errorf("token get: %w", errLoginRequired), ExitCodeLoginRequired},
		{"state mismatch", api.NewError(api.ErrInvalidToken, "authorization was rejected"), ExitCodeLoginFailed},
		{"timeout", api.NewError(api.ErrTimeout, "timed out"), ExitCodeLoginFailed},
		{"cache", api.NewError(api.ErrCannotWriteSsoCache, "cannot write"), ExitCodeError},
		{"plain", errors.New("boom"), ExitCodeError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, getExitCode(tt.err))
		})
	}
}

func TestVersionCommand(t *testing.T) {
	original := GetVersion()
	defer SetVersion(original)
	SetVersion("9.9.9")

	cmd := newVersionCmd()
	var buf bytes.Buffer
	cmd.SetOut(&buf)
	cmd.Run(cmd, nil)

	assert.Equal(t, "ssotoken version 9.9.9\n", buf.String())
}

func TestInvalidOutputFormat(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.run(t, "profile", "list", "-o", "yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported output format")
}
