package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/forcegrid/sfschema/internal/appctx"
	"github.com/forcegrid/sfschema/internal/output"
	"github.com/forcegrid/sfschema/internal/sheet"
)

// NewDescribeCmd creates the describe command.
func NewDescribeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "describe <object>",
		Short: "Describe an object's fields",
		Long: `Fetch an object's full field metadata and render it as a field sheet.

The sheet has a fixed column layout. Requirement, length, and picklist
columns are derived from the raw field metadata: a field is required when it
is createable and not nillable, numeric lengths render as precision.scale,
and only active picklist values are shown.

Examples:
  sfschema describe Account
  sfschema describe Invoice__c --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := appctx.FromContext(cmd.Context())
			if app == nil {
				return fmt.Errorf("app not initialized")
			}

			desc, err := app.Metadata.DescribeResource(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			return app.OK(desc,
				output.WithSummary("%s: %d fields", desc.Info.Name, len(desc.Fields)),
				output.WithTable(sheet.FieldTable(desc.Fields)))
		},
	}
}
