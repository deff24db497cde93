// Package appctx provides application context helpers.
package appctx

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/forcegrid/sfschema/internal/api"
	"github.com/forcegrid/sfschema/internal/auth"
	"github.com/forcegrid/sfschema/internal/config"
	"github.com/forcegrid/sfschema/internal/metadata"
	"github.com/forcegrid/sfschema/internal/output"
)

// contextKey is a private type for context keys.
type contextKey string

const appKey contextKey = "app"

// App holds the shared application context for all commands.
type App struct {
	Config   *config.Config
	Auth     *auth.Session
	API      *api.Client
	Cache    *api.ListCache
	Metadata *metadata.Client
	Output   *output.Writer

	// Flags holds the global flag values
	Flags GlobalFlags
}

// GlobalFlags holds values for global CLI flags.
type GlobalFlags struct {
	// Output format flags
	JSON   bool
	Quiet  bool
	Styled bool // Force ANSI styled output (even when piped)

	// Context flags
	Sandbox  bool
	CacheDir string

	// Behavior flags
	Verbose bool
}

// NewApp creates a new App with the given configuration.
func NewApp(cfg *config.Config) *App {
	httpClient := &http.Client{Timeout: 30 * time.Second}
	session := auth.NewSession(cfg, httpClient)
	client := api.NewClient(session)
	cache := api.NewListCache(cfg.CacheDir)

	format := output.FormatAuto
	switch cfg.Format {
	case "json":
		format = output.FormatJSON
	case "quiet":
		format = output.FormatQuiet
	}

	return &App{
		Config:   cfg,
		Auth:     session,
		API:      client,
		Cache:    cache,
		Metadata: metadata.New(client, cache, cfg),
		Output: output.New(output.Options{
			Format: format,
			Writer: os.Stdout,
		}),
	}
}

// ApplyFlags applies global flag values to the app configuration.
func (a *App) ApplyFlags() {
	// Order matters: the most specific mode wins.
	switch {
	case a.Flags.Quiet:
		a.Output = output.New(output.Options{Format: output.FormatQuiet, Writer: os.Stdout})
	case a.Flags.JSON:
		a.Output = output.New(output.Options{Format: output.FormatJSON, Writer: os.Stdout})
	case a.Flags.Styled:
		a.Output = output.New(output.Options{Format: output.FormatStyled, Writer: os.Stdout})
	}

	verbose := a.Flags.Verbose
	if debugEnv := os.Getenv("SFSCHEMA_DEBUG"); debugEnv != "" && debugEnv != "0" {
		verbose = true
	}
	a.API.SetVerbose(verbose)
}

// OK outputs a success response.
func (a *App) OK(data any, opts ...output.ResponseOption) error {
	return a.Output.OK(data, opts...)
}

// Err outputs an error response.
func (a *App) Err(err error) error {
	return a.Output.Err(err)
}

// WithApp stores the app in the context.
func WithApp(ctx context.Context, app *App) context.Context {
	return context.WithValue(ctx, appKey, app)
}

// FromContext retrieves the app from the context.
func FromContext(ctx context.Context) *App {
	app, _ := ctx.Value(appKey).(*App)
	return app
}
