package cmd

import (
	"github.com/spf13/cobra"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the token manager over MCP stdio",
		Long: `Runs the token manager as an MCP server on stdin and stdout.

Clients call the get_sso_token, invalidate_sso_token, update_sso_token_management,
list_profiles and update_profile tools and receive aws/credentials/token/changed
notifications for managed tokens. Interactive logins are announced with an
aws/credentials/token/authorize notification carrying the URL to open.

Logs are written to stderr. When started by systemd as a notify unit, readiness
is reported once the server accepts requests.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			application, err := newApplication(cmd, opts)
			if err != nil {
				return err
			}
			defer application.Close()

			return application.Serve(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
}
