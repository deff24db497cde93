// Package cli wires the cobra command tree and global flags.
package cli

import (
	"os"
	"regexp"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/forcegrid/sfschema/internal/appctx"
	"github.com/forcegrid/sfschema/internal/commands"
	"github.com/forcegrid/sfschema/internal/config"
	"github.com/forcegrid/sfschema/internal/output"
	"github.com/forcegrid/sfschema/internal/version"
)

// NewRootCmd creates the root cobra command.
func NewRootCmd() *cobra.Command {
	var flags appctx.GlobalFlags

	cmd := &cobra.Command{
		Use:           "sfschema",
		Short:         "Command-line schema browser for the metadata API",
		Long:          "sfschema lists and describes object types in a production or sandbox environment.",
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Skip setup for help and version commands
			if cmd.Name() == "help" || cmd.Name() == "version" {
				return nil
			}

			cfg, err := config.Load(config.FlagOverrides{
				Sandbox:  flags.Sandbox,
				CacheDir: flags.CacheDir,
			})
			if err != nil {
				return err
			}

			app := appctx.NewApp(cfg)
			app.Flags = flags
			app.ApplyFlags()

			cmd.SetContext(appctx.WithApp(cmd.Context(), app))
			return nil
		},
	}

	// Allow flags anywhere in the command line
	cmd.Flags().SetInterspersed(true)
	cmd.PersistentFlags().SetInterspersed(true)
	cmd.PersistentFlags().SetNormalizeFunc(normalizeFlagAliases)

	// Output format flags
	cmd.PersistentFlags().BoolVarP(&flags.JSON, "json", "j", false, "Output as JSON")
	cmd.PersistentFlags().BoolVarP(&flags.Quiet, "quiet", "q", false, "Output data only, no envelope")
	cmd.PersistentFlags().BoolVar(&flags.Styled, "styled", false, "Force styled output (ANSI colors)")

	// Context flags
	cmd.PersistentFlags().BoolVar(&flags.Sandbox, "sandbox", false, "Target the sandbox environment")
	cmd.PersistentFlags().StringVar(&flags.CacheDir, "cache-dir", "", "Cache directory")

	// Behavior flags
	cmd.PersistentFlags().BoolVarP(&flags.Verbose, "verbose", "v", false, "Trace API requests on stderr")

	return cmd
}

// Execute runs the root command.
func Execute() {
	cmd := NewRootCmd()

	cmd.AddCommand(commands.NewAuthCmd())
	cmd.AddCommand(commands.NewObjectsCmd())
	cmd.AddCommand(commands.NewDescribeCmd())
	cmd.AddCommand(commands.NewEnvCmd())
	cmd.AddCommand(commands.NewConfigCmd())
	cmd.AddCommand(commands.NewAPICmd())
	cmd.AddCommand(commands.NewCommandsCmd())

	// Use ExecuteC to get the executed command (for correct context access)
	executedCmd, err := cmd.ExecuteC()
	if err != nil {
		err = transformCobraError(err)
		apiErr := output.AsError(err)

		if app := appctx.FromContext(executedCmd.Context()); app != nil {
			_ = app.Err(err)
			os.Exit(apiErr.ExitCode())
		}

		// Fallback: output error directly (app not available, e.g. when the
		// flag parse itself failed)
		pf := cmd.PersistentFlags()
		format := output.FormatAuto
		quiet, _ := pf.GetBool("quiet")
		styled, _ := pf.GetBool("styled")
		jsonFlag, _ := pf.GetBool("json")

		switch {
		case quiet:
			format = output.FormatQuiet
		case styled:
			format = output.FormatStyled
		case jsonFlag:
			format = output.FormatJSON
		}

		writer := output.New(output.Options{
			Format: format,
			Writer: os.Stdout,
		})
		_ = writer.Err(err)

		os.Exit(apiErr.ExitCode())
	}
}

// normalizeFlagAliases maps alternate flag spellings onto their canonical
// names. --test follows the sandbox naming convention of other tools in the
// ecosystem.
func normalizeFlagAliases(f *pflag.FlagSet, name string) pflag.NormalizedName {
	if name == "test" {
		name = "sandbox"
	}
	return pflag.NormalizedName(name)
}

// transformCobraError rewrites Cobra's default error messages into the CLI's
// invalid-input format.
func transformCobraError(err error) error {
	msg := err.Error()

	if strings.HasPrefix(msg, "flag needs an argument: ") {
		flag := strings.TrimPrefix(msg, "flag needs an argument: ")
		return output.ErrInvalidInput(flag + " requires a value")
	}

	if strings.HasPrefix(msg, "unknown flag: ") {
		flag := strings.TrimPrefix(msg, "unknown flag: ")
		return output.ErrInvalidInput("Unknown option: " + flag)
	}

	if strings.HasPrefix(msg, "unknown shorthand flag: ") {
		re := regexp.MustCompile(`unknown shorthand flag: '.' in (-\w)`)
		if matches := re.FindStringSubmatch(msg); len(matches) > 1 {
			return output.ErrInvalidInput("Unknown option: " + matches[1])
		}
	}

	if strings.Contains(msg, "invalid argument") {
		return output.ErrInvalidInput(msg)
	}

	if strings.Contains(msg, "arg(s), received 0") {
		return output.ErrInvalidInput("Argument required")
	}

	if strings.HasPrefix(msg, "required flag(s) ") {
		re := regexp.MustCompile(`required flag\(s\) "(\w+)" not set`)
		if matches := re.FindStringSubmatch(msg); len(matches) > 1 {
			return output.ErrInvalidInput(matches[1] + " required")
		}
	}

	return err
}
