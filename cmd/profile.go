package cmd

import (
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"ssotoken/internal/api"
	strs "ssotoken/pkg/strings"
)

func newProfileCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "List and update SSO token profiles in the shared AWS config file",
	}
	cmd.AddCommand(newProfileListCmd(opts))
	cmd.AddCommand(newProfileUpdateCmd(opts))
	return cmd
}

func newProfileListCmd(opts *rootOptions) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List SSO token profiles and their sso-sessions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := validateOutput(output); err != nil {
				return err
			}
			application, err := newApplication(cmd, opts)
			if err != nil {
				return err
			}
			defer application.Close()

			res, err := application.Profiles().List(cmd.Context())
			if err != nil {
				return err
			}
			if output == outputJSON {
				return printJSON(cmd.OutOrStdout(), res)
			}

			if len(res.Profiles) == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\n", text.FgYellow.Sprint("No SSO token profiles found"))
				return nil
			}

			sessions := make(map[string]api.SsoSession, len(res.SsoSessions))
			for _, ss := range res.SsoSessions {
				sessions[ss.Name] = ss
			}

			t := newTable(cmd.OutOrStdout(), "PROFILE", "REGION", "SSO SESSION", "START URL", "SSO REGION", "SCOPES")
			for _, p := range res.Profiles {
				ss := sessions[p.SsoSessionName]
				t.AppendRow([]any{p.Name, p.Region, p.SsoSessionName, ss.SsoStartURL, ss.SsoRegion,
					strs.Truncate(strings.Join(ss.SsoRegistrationScopes, ","), scopesColumnWidth)})
			}
			t.Render()
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", outputTable, "Output format: table or json")
	return cmd
}

const scopesColumnWidth = 48

type profileUpdateOptions struct {
	region          string
	session         string
	startURL        string
	ssoRegion       string
	scopes          []string
	noCreateProfile bool
	noCreateSession bool
	updateShared    bool
}

func (o *profileUpdateOptions) params(name string) api.UpdateProfileParams {
	params := api.UpdateProfileParams{
		Profile: api.Profile{
			Kind:           api.ProfileKindSsoToken,
			Name:           name,
			Region:         o.region,
			SsoSessionName: o.session,
		},
		Options: &api.UpdateProfileOptions{
			CreateNonexistentProfile:    api.Bool(!o.noCreateProfile),
			CreateNonexistentSsoSession: api.Bool(!o.noCreateSession),
			UpdateSharedSsoSession:      api.Bool(o.updateShared),
		},
	}
	if o.startURL != "" || o.ssoRegion != "" || len(o.scopes) > 0 {
		params.SsoSession = &api.SsoSession{
			Name:                  o.session,
			SsoStartURL:           o.startURL,
			SsoRegion:             o.ssoRegion,
			SsoRegistrationScopes: o.scopes,
		}
	}
	return params
}

func newProfileUpdateCmd(opts *rootOptions) *cobra.Command {
	o := &profileUpdateOptions{}

	cmd := &cobra.Command{
		Use:   "update <profile>",
		Short: "Create or update an SSO token profile",
		Long: `Writes a profile that references an sso-session, and optionally the
sso-session itself, to the shared AWS config file. Other sections and keys are
preserved.

Examples:
  ssotoken profile update dev --sso-session corp --start-url https://corp.awsapps.com/start --sso-region eu-west-1
  ssotoken profile update dev --sso-session corp --region eu-central-1`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			application, err := newApplication(cmd, opts)
			if err != nil {
				return err
			}
			defer application.Close()

			if err := application.Profiles().Update(cmd.Context(), o.params(args[0])); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s in %s\n", text.FgGreen.Sprint("Updated profile"), args[0], application.Profiles().Path())
			return nil
		},
	}

	cmd.Flags().StringVar(&o.session, "sso-session", "", "Name of the sso-session the profile uses")
	cmd.Flags().StringVar(&o.region, "region", "", "Default region of the profile")
	cmd.Flags().StringVar(&o.startURL, "start-url", "", "sso_start_url of the sso-session")
	cmd.Flags().StringVar(&o.ssoRegion, "sso-region", "", "sso_region of the sso-session")
	cmd.Flags().StringSliceVar(&o.scopes, "scopes", nil, "sso_registration_scopes of the sso-session")
	cmd.Flags().BoolVar(&o.noCreateProfile, "no-create-profile", false, "Fail if the profile does not exist")
	cmd.Flags().BoolVar(&o.noCreateSession, "no-create-session", false, "Fail if the sso-session does not exist")
	cmd.Flags().BoolVar(&o.updateShared, "update-shared-session", false, "Allow rewriting an sso-session used by other profiles")
	_ = cmd.MarkFlagRequired("sso-session")
	return cmd
}
