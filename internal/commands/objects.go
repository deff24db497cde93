package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/forcegrid/sfschema/internal/appctx"
	"github.com/forcegrid/sfschema/internal/metadata"
	"github.com/forcegrid/sfschema/internal/output"
)

// NewObjectsCmd creates the objects command group.
func NewObjectsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "objects",
		Short: "Browse object types",
		Long:  "List the object types available in the configured environment.",
	}

	cmd.AddCommand(newObjectsListCmd())

	return cmd
}

func newObjectsListCmd() *cobra.Command {
	var (
		customOnly    bool
		standardOnly  bool
		queryableOnly bool
		search        string
		refresh       bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List object types",
		Long: `List object types, sorted by label.

The full list is cached locally for six hours per environment; filters apply
to the cached list. Use --refresh to bypass the cache.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			app := appctx.FromContext(cmd.Context())
			if app == nil {
				return fmt.Errorf("app not initialized")
			}

			if customOnly && standardOnly {
				return output.ErrInvalidInput("--custom and --standard are mutually exclusive")
			}

			objects, err := app.Metadata.ListResources(cmd.Context(), metadata.Filter{
				CustomOnly:    customOnly,
				StandardOnly:  standardOnly,
				QueryableOnly: queryableOnly,
				SearchText:    search,
				ForceRefresh:  refresh,
			})
			if err != nil {
				return err
			}

			return app.OK(objects,
				output.WithSummary("%d object types (%s)", len(objects), app.Config.Environment))
		},
	}

	cmd.Flags().BoolVar(&customOnly, "custom", false, "Only custom objects")
	cmd.Flags().BoolVar(&standardOnly, "standard", false, "Only standard objects")
	cmd.Flags().BoolVar(&queryableOnly, "queryable", false, "Only queryable objects")
	cmd.Flags().StringVar(&search, "search", "", "Filter by name or label substring")
	cmd.Flags().BoolVar(&refresh, "refresh", false, "Bypass the local list cache")

	return cmd
}
