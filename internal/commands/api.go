package commands

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/itchyny/gojq"
	"github.com/spf13/cobra"

	"github.com/forcegrid/sfschema/internal/appctx"
	"github.com/forcegrid/sfschema/internal/output"
)

// NewAPICmd creates the api command for raw API access.
func NewAPICmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "api <verb> <path>",
		Short: "Raw API access",
		Long:  "Make raw requests against the authenticated instance. Useful for endpoints not covered by dedicated commands.",
	}

	cmd.AddCommand(
		newAPIGetCmd(),
		newAPIPostCmd(),
	)

	return cmd
}

func newAPIGetCmd() *cobra.Command {
	var jqExpr string

	cmd := &cobra.Command{
		Use:   "get <path>",
		Short: "GET request to the API",
		Long: `Make a raw GET request against the authenticated instance.

The path is relative to the instance URL; a full instance URL is also
accepted and reduced to its path.

Examples:
  sfschema api get /services/data/v61.0/limits
  sfschema api get /services/data/v61.0/sobjects --jq '.sobjects | length'`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := appctx.FromContext(cmd.Context())
			if app == nil {
				return fmt.Errorf("app not initialized")
			}

			path := parsePath(args[0])
			raw, err := app.API.Get(cmd.Context(), path)
			if err != nil {
				return err
			}

			data, err := filterJQ(cmd, jqExpr, raw)
			if err != nil {
				return err
			}

			return app.OK(data, output.WithSummary("GET %s: %s", path, apiSummary(raw)))
		},
	}

	cmd.Flags().StringVar(&jqExpr, "jq", "", "Filter the response with a jq expression")

	return cmd
}

func newAPIPostCmd() *cobra.Command {
	var (
		data   string
		jqExpr string
	)

	cmd := &cobra.Command{
		Use:   "post <path>",
		Short: "POST request to the API",
		Long:  "Make a raw POST request against the authenticated instance.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := appctx.FromContext(cmd.Context())
			if app == nil {
				return fmt.Errorf("app not initialized")
			}

			if data == "" {
				return output.ErrInvalidInput("--data is required")
			}

			var body any
			if err := json.Unmarshal([]byte(data), &body); err != nil {
				return output.ErrInvalidInput(fmt.Sprintf("Invalid JSON data: %v", err))
			}

			path := parsePath(args[0])
			raw, err := app.API.Post(cmd.Context(), path, body)
			if err != nil {
				return err
			}

			out, err := filterJQ(cmd, jqExpr, raw)
			if err != nil {
				return err
			}

			return app.OK(out, output.WithSummary("POST %s: %s", path, apiSummary(raw)))
		},
	}

	cmd.Flags().StringVarP(&data, "data", "d", "", "JSON request body (required)")
	cmd.Flags().StringVar(&jqExpr, "jq", "", "Filter the response with a jq expression")
	_ = cmd.MarkFlagRequired("data")

	return cmd
}

// filterJQ applies an optional jq expression to the raw response. An empty
// expression passes the response through untouched.
func filterJQ(cmd *cobra.Command, expr string, raw json.RawMessage) (any, error) {
	if expr == "" {
		return raw, nil
	}

	query, err := gojq.Parse(expr)
	if err != nil {
		return nil, output.ErrInvalidInput(fmt.Sprintf("Invalid jq expression: %v", err))
	}

	var input any
	if err := json.Unmarshal(raw, &input); err != nil {
		return nil, output.ErrAPI(0, "Malformed response body", err.Error())
	}

	var results []any
	iter := query.RunWithContext(cmd.Context(), input)
	for {
		v, ok := iter.Next()
		if !ok {
			break
		}
		if jqErr, isErr := v.(error); isErr {
			return nil, output.ErrInvalidInput(fmt.Sprintf("jq: %v", jqErr))
		}
		results = append(results, v)
	}

	if len(results) == 1 {
		return results[0], nil
	}
	return results, nil
}

// parsePath extracts and normalizes the API path. Accepts full instance URLs
// and bare paths, and ensures a leading slash.
func parsePath(input string) string {
	urlPattern := regexp.MustCompile(`^https?://[^/]+(/.*)`)
	if matches := urlPattern.FindStringSubmatch(input); len(matches) > 1 {
		return matches[1]
	}

	if !strings.HasPrefix(input, "/") {
		input = "/" + input
	}

	return input
}

// apiSummary generates a one-line summary from the API response.
func apiSummary(data []byte) string {
	var arr []any
	if err := json.Unmarshal(data, &arr); err == nil {
		return fmt.Sprintf("%d items", len(arr))
	}

	var obj map[string]any
	if err := json.Unmarshal(data, &obj); err != nil {
		return "API response"
	}

	for _, key := range []string{"label", "name", "message"} {
		if v, ok := obj[key].(string); ok && v != "" {
			if len(v) > 50 {
				v = v[:47] + "..."
			}
			return v
		}
	}
	return fmt.Sprintf("%d keys", len(obj))
}
