// Package commands implements the CLI commands.
package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/forcegrid/sfschema/internal/appctx"
	"github.com/forcegrid/sfschema/internal/auth"
	"github.com/forcegrid/sfschema/internal/output"
)

// NewAuthCmd creates the auth command group.
func NewAuthCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Manage authentication",
		Long:  "Manage authentication for the metadata API, including login, logout, and status.",
	}

	cmd.AddCommand(
		newAuthLoginCmd(),
		newAuthLogoutCmd(),
		newAuthStatusCmd(),
		newAuthRefreshCmd(),
		newAuthTokenCmd(),
	)

	return cmd
}

func newAuthLoginCmd() *cobra.Command {
	var noBrowser bool

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Authenticate with the configured environment",
		Long: `Start the OAuth authorization-code flow against the configured environment.

Production logs in through login.salesforce.com; pass --sandbox (or set
environment to sandbox) to log in through test.salesforce.com instead.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			app := appctx.FromContext(cmd.Context())
			if app == nil {
				return fmt.Errorf("app not initialized")
			}

			fmt.Printf("Starting authentication against %s...\n", app.Config.Environment)

			if err := app.Auth.Login(cmd.Context(), auth.LoginOptions{
				NoBrowser: noBrowser,
			}); err != nil {
				return err
			}

			instance, err := app.Auth.InstanceBaseURL()
			if err != nil {
				return err
			}

			return app.OK(map[string]any{
				"authenticated": true,
				"environment":   string(app.Config.Environment),
				"instance_url":  instance,
			}, output.WithSummary("Authenticated against %s", app.Config.Environment))
		},
	}

	cmd.Flags().BoolVar(&noBrowser, "no-browser", false, "Don't open browser automatically")

	return cmd
}

func newAuthLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Remove stored credentials",
		Long:  "Remove the stored token for the current environment and drop cached object lists.",
		RunE: func(cmd *cobra.Command, args []string) error {
			app := appctx.FromContext(cmd.Context())
			if app == nil {
				return fmt.Errorf("app not initialized")
			}

			app.Auth.Invalidate()
			// Cached lists were fetched under the old credentials.
			app.Cache.InvalidateAll()

			return app.OK(map[string]string{
				"status":      "logged_out",
				"environment": string(app.Config.Environment),
			}, output.WithSummary("Logged out of %s", app.Config.Environment))
		},
	}
}

func newAuthStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show authentication status",
		Long:  "Display the current authentication status and token information.",
		RunE: func(cmd *cobra.Command, args []string) error {
			app := appctx.FromContext(cmd.Context())
			if app == nil {
				return fmt.Errorf("app not initialized")
			}

			if !app.Auth.HasValidToken() {
				return app.OK(map[string]any{
					"authenticated": false,
					"environment":   string(app.Config.Environment),
				}, output.WithSummary("Not authenticated"))
			}

			tok, err := app.Auth.CurrentToken()
			if err != nil {
				return err
			}

			status := map[string]any{
				"authenticated": true,
				"environment":   string(app.Config.Environment),
				"instance_url":  tok.InstanceURL,
			}
			if tok.Scope != "" {
				status["scope"] = tok.Scope
			}
			if tok.ExpiresAt > 0 {
				expiresIn := time.Until(time.Unix(tok.ExpiresAt, 0))
				status["expires_in"] = expiresIn.Round(time.Second).String()
				status["expired"] = expiresIn < 0
			}

			return app.OK(status, output.WithSummary("Authenticated against %s", app.Config.Environment))
		},
	}
}

func newAuthRefreshCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Refresh the access token",
		Long:  "Force a refresh of the OAuth access token.",
		RunE: func(cmd *cobra.Command, args []string) error {
			app := appctx.FromContext(cmd.Context())
			if app == nil {
				return fmt.Errorf("app not initialized")
			}

			if err := app.Auth.Refresh(cmd.Context()); err != nil {
				return err
			}

			return app.OK(map[string]string{
				"status": "refreshed",
			}, output.WithSummary("Token refreshed successfully"))
		},
	}
}

func newAuthTokenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "token",
		Short: "Print the access token",
		Long: `Print the current access token to stdout for use with other tools.

The token is refreshed automatically when it is near expiry.

Examples:
  curl -H "Authorization: Bearer $(sfschema auth token)" ...
  sfschema --sandbox auth token`,
		RunE: func(cmd *cobra.Command, args []string) error {
			app := appctx.FromContext(cmd.Context())
			if app == nil {
				return fmt.Errorf("app not initialized")
			}

			token, err := app.Auth.AccessToken(cmd.Context())
			if err != nil {
				return err
			}

			// Raw output by default so the command composes in shell
			// substitutions; the envelope only appears on explicit --json.
			if app.Flags.JSON {
				return app.OK(map[string]string{"token": token})
			}

			fmt.Println(token)
			return nil
		},
	}
}
