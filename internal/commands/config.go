package commands

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/forcegrid/sfschema/internal/appctx"
	"github.com/forcegrid/sfschema/internal/config"
	"github.com/forcegrid/sfschema/internal/output"
)

// configKeys are the keys the set/get subcommands accept.
var configKeys = []string{
	"environment",
	"client_id",
	"client_secret",
	"api_version",
	"cache_dir",
	"format",
}

// NewConfigCmd creates the config command for managing configuration.
func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration",
		Long: `Manage sfschema configuration.

Configuration is loaded with the following precedence:
  flags > SFSCHEMA_* env vars > global file > defaults

The global file lives at ~/.config/sfschema/config.json (override the
directory with SFSCHEMA_CONFIG_DIR).`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigShow(cmd)
		},
	}

	cmd.AddCommand(
		newConfigShowCmd(),
		newConfigSetCmd(),
		newConfigGetCmd(),
	)

	return cmd
}

func newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show effective configuration",
		Long:  "Display the current effective configuration with source information.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigShow(cmd)
		},
	}
}

func runConfigShow(cmd *cobra.Command) error {
	app := appctx.FromContext(cmd.Context())
	if app == nil {
		return fmt.Errorf("app not initialized")
	}

	keys := []struct {
		key     string
		value   string
		include bool
	}{
		{"environment", string(app.Config.Environment), true},
		{"client_id", app.Config.ClientID, app.Config.ClientID != ""},
		{"client_secret", maskSecret(app.Config.ClientSecret), app.Config.ClientSecret != ""},
		{"api_version", app.Config.APIVersion, app.Config.APIVersion != ""},
		{"cache_dir", app.Config.CacheDir, app.Config.CacheDir != ""},
		{"format", app.Config.Format, app.Config.Format != ""},
	}

	configData := make(map[string]any)
	for _, k := range keys {
		if !k.include {
			continue
		}
		source := app.Config.Sources[k.key]
		if source == "" {
			source = string(config.SourceDefault)
		}
		configData[k.key] = map[string]string{
			"value":  k.value,
			"source": source,
		}
	}

	return app.OK(configData, output.WithSummary("Effective configuration"))
}

func newConfigSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a configuration value",
		Long: fmt.Sprintf(`Set a configuration value in the global config file.

Valid keys: %s`, strings.Join(sortedConfigKeys(), ", ")),
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := appctx.FromContext(cmd.Context())
			if app == nil {
				return fmt.Errorf("app not initialized")
			}

			key, value := args[0], args[1]
			if !isConfigKey(key) {
				return output.ErrInvalidInput(fmt.Sprintf(
					"Invalid config key %q. Valid keys: %s", key, strings.Join(sortedConfigKeys(), ", ")))
			}

			if err := config.Set(key, value); err != nil {
				return output.ErrInvalidInput(err.Error())
			}

			shown := value
			if key == "client_secret" {
				shown = maskSecret(value)
			}

			return app.OK(map[string]string{
				"key":    key,
				"value":  shown,
				"status": "set",
			}, output.WithSummary("Set %s = %s", key, shown))
		},
	}
}

func newConfigGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Get a configuration value",
		Long:  "Read a single value from the global config file.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := appctx.FromContext(cmd.Context())
			if app == nil {
				return fmt.Errorf("app not initialized")
			}

			key := args[0]
			if !isConfigKey(key) {
				return output.ErrInvalidInput(fmt.Sprintf(
					"Invalid config key %q. Valid keys: %s", key, strings.Join(sortedConfigKeys(), ", ")))
			}

			value := config.Get(key)
			if key == "client_secret" {
				value = maskSecret(value)
			}

			return app.OK(map[string]string{
				"key":   key,
				"value": value,
			}, output.WithSummary("%s = %s", key, value))
		},
	}
}

func isConfigKey(key string) bool {
	for _, k := range configKeys {
		if k == key {
			return true
		}
	}
	return false
}

func sortedConfigKeys() []string {
	keys := make([]string, len(configKeys))
	copy(keys, configKeys)
	sort.Strings(keys)
	return keys
}

// maskSecret keeps the last four characters visible for identification.
func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 4 {
		return strings.Repeat("*", len(s))
	}
	return strings.Repeat("*", len(s)-4) + s[len(s)-4:]
}
