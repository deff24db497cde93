package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/forcegrid/sfschema/internal/appctx"
	"github.com/forcegrid/sfschema/internal/config"
	"github.com/forcegrid/sfschema/internal/output"
)

// NewEnvCmd creates the env command group.
func NewEnvCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "env",
		Short: "Show or switch the target environment",
		Long: `Show or switch between the production and sandbox environments.

Each environment has its own login host, stored token, and object list
cache. Switching environments drops the stored token and cached lists so
stale production data can never leak into a sandbox session (or the
reverse).`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEnvShow(cmd)
		},
	}

	cmd.AddCommand(
		newEnvShowCmd(),
		newEnvSwitchCmd(),
	)

	return cmd
}

func newEnvShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the current environment",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEnvShow(cmd)
		},
	}
}

func runEnvShow(cmd *cobra.Command) error {
	app := appctx.FromContext(cmd.Context())
	if app == nil {
		return fmt.Errorf("app not initialized")
	}

	return app.OK(map[string]any{
		"environment":   string(app.Config.Environment),
		"login_url":     app.Config.Environment.LoginURL(),
		"authenticated": app.Auth.HasValidToken(),
	}, output.WithSummary("Environment: %s", app.Config.Environment))
}

func newEnvSwitchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "switch <production|sandbox>",
		Short: "Switch the target environment",
		Long: `Switch the persisted target environment.

The stored token and cached object lists belong to the old environment and
are dropped; run 'sfschema auth login' afterwards.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := appctx.FromContext(cmd.Context())
			if app == nil {
				return fmt.Errorf("app not initialized")
			}

			env, err := config.ParseEnvironment(args[0])
			if err != nil {
				return output.ErrInvalidInput(err.Error())
			}

			if env == app.Config.Environment {
				return app.OK(map[string]any{
					"environment": string(env),
					"changed":     false,
				}, output.WithSummary("Already on %s", env))
			}

			// Drop credentials and caches for the environment being left
			// before the switch is persisted.
			app.Auth.Invalidate()
			app.Cache.InvalidateAll()

			if err := config.Set("environment", string(env)); err != nil {
				return fmt.Errorf("failed to persist environment: %w", err)
			}

			return app.OK(map[string]any{
				"environment": string(env),
				"changed":     true,
			},
				output.WithSummary("Switched to %s; run 'sfschema auth login' to authenticate", env))
		},
	}
}
