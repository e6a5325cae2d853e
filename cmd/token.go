package cmd

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/briandowns/spinner"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"ssotoken/internal/api"
	"ssotoken/internal/sso"
	strs "ssotoken/pkg/strings"
)

func newTokenCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Get, invalidate and manage cached SSO tokens",
	}
	cmd.AddCommand(newTokenGetCmd(opts))
	cmd.AddCommand(newTokenInvalidateCmd(opts))
	cmd.AddCommand(newTokenManageCmd(opts))
	return cmd
}

type tokenGetOptions struct {
	kind       string
	issuerURL  string
	region     string
	clientName string
	scopes     []string
	noLogin    bool
	noBrowser  bool
	quiet      bool
	output     string
}

// source builds the identity source from the flags. An empty client name
// falls back to the configured one.
func (o *tokenGetOptions) source(defaultClientName string) (api.IdentitySource, error) {
	src := api.IdentitySource{ClientName: o.clientName}
	if src.ClientName == "" {
		src.ClientName = defaultClientName
	}

	switch o.kind {
	case "builder", string(api.SourceKindAwsBuilderID):
		src.Kind = api.SourceKindAwsBuilderID
	case "identity-center", string(api.SourceKindIamIdentityCenter):
		src.Kind = api.SourceKindIamIdentityCenter
		src.IssuerURL = o.issuerURL
		src.Region = o.region
	default:
		return api.IdentitySource{}, fmt.Errorf("unknown source kind %q (use builder or identity-center)", o.kind)
	}
	return src, nil
}

func newTokenGetCmd(opts *rootOptions) *cobra.Command {
	o := &tokenGetOptions{}

	cmd := &cobra.Command{
		Use:   "get",
		Short: "Print an access token, logging in if needed",
		Long: `Returns a valid access token for the identity source, from the cache when
possible. An expired token is refreshed silently when its refresh token is still
accepted; otherwise the browser is opened for an interactive login.

Examples:
  ssotoken token get
  ssotoken token get --kind identity-center --issuer-url https://my-org.awsapps.com/start --region eu-west-1
  ssotoken token get --no-login --output json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := validateOutput(o.output); err != nil {
				return err
			}
			application, err := newApplication(cmd, opts)
			if err != nil {
				return err
			}
			defer application.Close()

			src, err := o.source(application.Settings().ClientName)
			if err != nil {
				return err
			}

			s := spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(cmd.ErrOrStderr()))
			s.Suffix = " Waiting for authorization in the browser..."
			application.OnAuthorize(func(_ context.Context, _ api.SsoTokenID, url string) {
				fmt.Fprintf(cmd.ErrOrStderr(), "%s\n  %s\n", text.FgYellow.Sprint("Open this URL to sign in:"), url)
				if !o.noBrowser {
					if err := sso.OpenBrowser(url); err != nil {
						fmt.Fprintf(cmd.ErrOrStderr(), "%s\n", text.FgRed.Sprintf("Could not open a browser: %v", err))
					}
				}
				if !o.quiet {
					s.Start()
				}
			})

			res, err := application.Manager().GetToken(cmd.Context(), api.GetSsoTokenParams{
				Source: src,
				Scopes: o.scopes,
				Options: &api.GetSsoTokenOptions{
					LoginOnInvalidToken: api.Bool(!o.noLogin),
				},
			})
			s.Stop()
			if err != nil {
				return err
			}
			if res.SsoToken == nil {
				if cmd.Context().Err() != nil {
					return fmt.Errorf("login cancelled")
				}
				return errLoginRequired
			}

			switch {
			case o.output == outputJSON:
				return printJSON(cmd.OutOrStdout(), res.SsoToken)
			case o.quiet:
				fmt.Fprintln(cmd.OutOrStdout(), res.SsoToken.AccessToken)
			default:
				t := newTable(cmd.OutOrStdout(), "TOKEN ID", "ACCESS TOKEN")
				t.AppendRow([]any{res.SsoToken.ID, strs.Mask(res.SsoToken.AccessToken, strs.DefaultMaskVisible)})
				t.Render()
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&o.kind, "kind", "builder", "Identity source: builder or identity-center")
	cmd.Flags().StringVar(&o.issuerURL, "issuer-url", "", "Start URL of the IAM Identity Center instance")
	cmd.Flags().StringVar(&o.region, "region", "", "Region of the IAM Identity Center instance")
	cmd.Flags().StringVar(&o.clientName, "client-name", "", "Client name to register (default from config)")
	cmd.Flags().StringSliceVar(&o.scopes, "scope", nil, "Scope to register; repeatable (default from config)")
	cmd.Flags().BoolVar(&o.noLogin, "no-login", false, "Fail instead of starting an interactive login")
	cmd.Flags().BoolVar(&o.noBrowser, "no-browser", false, "Print the authorization URL without opening a browser")
	cmd.Flags().BoolVarP(&o.quiet, "quiet", "q", false, "Print only the raw access token, for scripts")
	cmd.Flags().StringVarP(&o.output, "output", "o", outputTable, "Output format: table or json")
	return cmd
}

func newTokenInvalidateCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "invalidate <token-id>",
		Short: "Delete a cached token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			application, err := newApplication(cmd, opts)
			if err != nil {
				return err
			}
			defer application.Close()

			if _, err := application.Manager().InvalidateToken(cmd.Context(), api.InvalidateSsoTokenParams{SsoTokenID: args[0]}); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", text.FgGreen.Sprint("Invalidated"), args[0])
			return nil
		},
	}
}

func newTokenManageCmd(opts *rootOptions) *cobra.Command {
	var (
		autoRefresh         bool
		changeNotifications bool
		output              string
	)

	cmd := &cobra.Command{
		Use:   "manage <token-id>",
		Short: "Show or change how a cached token is managed",
		Long: `Applies auto-refresh and change-notification settings to a cached token and
prints the resulting settings. Settings live in the token manager of the running
process; over RPC use the update_sso_token_management tool of 'ssotoken serve'.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validateOutput(output); err != nil {
				return err
			}
			application, err := newApplication(cmd, opts)
			if err != nil {
				return err
			}
			defer application.Close()

			params := api.UpdateSsoTokenManagementParams{SsoTokenID: args[0]}
			if cmd.Flags().Changed("auto-refresh") {
				params.AutoRefresh = api.Bool(autoRefresh)
			}
			if cmd.Flags().Changed("change-notifications") {
				params.ChangeNotifications = api.Bool(changeNotifications)
			}

			res, err := application.Manager().UpdateTokenManagement(cmd.Context(), params)
			if err != nil {
				return err
			}
			if output == outputJSON {
				return printJSON(cmd.OutOrStdout(), res)
			}

			t := newTable(cmd.OutOrStdout(), "TOKEN ID", "AUTO REFRESH", "CHANGE NOTIFICATIONS")
			t.AppendRow([]any{res.SsoTokenID, strconv.FormatBool(res.AutoRefresh), strconv.FormatBool(res.ChangeNotifications)})
			t.Render()
			return nil
		},
	}

	cmd.Flags().BoolVar(&autoRefresh, "auto-refresh", true, "Refresh the token before it expires")
	cmd.Flags().BoolVar(&changeNotifications, "change-notifications", true, "Send token changed notifications")
	cmd.Flags().StringVarP(&output, "output", "o", outputTable, "Output format: table or json")
	return cmd
}
