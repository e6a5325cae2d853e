package cmd

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"ssotoken/internal/api"
)

// Exit codes for CLI commands.
const (
	// ExitCodeSuccess indicates successful execution.
	ExitCodeSuccess = 0
	// ExitCodeError indicates a general error (command failed, invalid arguments).
	ExitCodeError = 1
	// ExitCodeLoginRequired indicates no token is cached and login was not allowed.
	ExitCodeLoginRequired = 2
	// ExitCodeLoginFailed indicates the authorization flow failed or timed out.
	ExitCodeLoginFailed = 3
)

// errLoginRequired is returned by token get when no usable token is cached
// and --no-login was given.
var errLoginRequired = errors.New("no valid token is cached and login is disabled")

// version is injected at build time through SetVersion.
var version = "dev"

// rootOptions are the persistent flags shared by every command.
type rootOptions struct {
	configPath string
	debug      bool
}

// newRootCmd builds the command tree.
func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:   "ssotoken",
		Short: "Obtain and manage AWS SSO access tokens",
		Long: `ssotoken obtains SSO access tokens from AWS Builder ID or IAM Identity Center
through the authorization code flow with PKCE, caches them in the shared AWS SSO
cache and keeps them fresh.

Run 'ssotoken serve' to expose the token manager to an editor or agent over
MCP stdio, or use the token and profile commands directly.`,
		Version: version,
		// SilenceUsage prevents Cobra from printing the usage message on errors that are handled by the application.
		SilenceUsage: true,
	}
	root.SetVersionTemplate(`{{printf "ssotoken version %s\n" .Version}}`)

	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "config file (default is $HOME/.config/ssotoken/config.yaml)")
	root.PersistentFlags().BoolVar(&opts.debug, "debug", false, "Enable debug logging")

	root.AddCommand(newServeCmd(opts))
	root.AddCommand(newTokenCmd(opts))
	root.AddCommand(newProfileCmd(opts))
	root.AddCommand(newVersionCmd())
	return root
}

// SetVersion sets the version reported by the CLI and to RPC clients.
func SetVersion(v string) {
	version = v
}

// GetVersion returns the current version of the application.
func GetVersion() string {
	return version
}

// Execute is the main entry point for the CLI application.
// Interrupts cancel the running command's context.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(getExitCode(err))
	}
}

// getExitCode determines the appropriate exit code based on the error type.
func getExitCode(err error) int {
	if errors.Is(err, errLoginRequired) {
		return ExitCodeLoginRequired
	}
	switch api.CodeOf(err) {
	case api.ErrInvalidToken, api.ErrTimeout:
		return ExitCodeLoginFailed
	}
	return ExitCodeError
}
