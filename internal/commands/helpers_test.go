package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"

	"github.com/forcegrid/sfschema/internal/appctx"
	"github.com/forcegrid/sfschema/internal/config"
	"github.com/forcegrid/sfschema/internal/output"
)

// newTestApp builds an app against throwaway config and cache directories,
// with JSON output captured in the returned buffer.
func newTestApp(t *testing.T) (*appctx.App, *bytes.Buffer) {
	t.Helper()
	t.Setenv("SFSCHEMA_NO_KEYRING", "1")
	t.Setenv("SFSCHEMA_CONFIG_DIR", t.TempDir())

	cfg := config.Default()
	cfg.CacheDir = t.TempDir()

	app := appctx.NewApp(cfg)
	buf := &bytes.Buffer{}
	app.Output = output.New(output.Options{Format: output.FormatJSON, Writer: buf})
	return app, buf
}

// runCmd executes a command tree with the app bound to its context.
func runCmd(t *testing.T, app *appctx.App, cmd *cobra.Command, args ...string) error {
	t.Helper()
	cmd.SetArgs(args)
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)
	return cmd.ExecuteContext(appctx.WithApp(context.Background(), app))
}

// decodeEnvelope parses the captured JSON success envelope.
func decodeEnvelope(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var resp map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp), "output: %s", buf.String())
	return resp
}
