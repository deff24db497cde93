package appctx

import (
	"context"
	"testing"

	"github.com/forcegrid/sfschema/internal/config"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	t.Setenv("SFSCHEMA_NO_KEYRING", "1")
	t.Setenv("SFSCHEMA_CONFIG_DIR", t.TempDir())
	cfg := config.Default()
	cfg.CacheDir = t.TempDir()
	return cfg
}

func TestNewApp(t *testing.T) {
	cfg := testConfig(t)
	app := NewApp(cfg)

	if app == nil {
		t.Fatal("NewApp returned nil")
	}
	if app.Config != cfg {
		t.Error("Config not set correctly")
	}
	if app.Auth == nil {
		t.Error("Auth session not initialized")
	}
	if app.API == nil {
		t.Error("API client not initialized")
	}
	if app.Cache == nil {
		t.Error("List cache not initialized")
	}
	if app.Metadata == nil {
		t.Error("Metadata client not initialized")
	}
	if app.Output == nil {
		t.Error("Output writer not initialized")
	}
}

func TestWithAppAndFromContext(t *testing.T) {
	app := NewApp(testConfig(t))

	ctx := WithApp(context.Background(), app)
	if retrieved := FromContext(ctx); retrieved != app {
		t.Error("FromContext did not retrieve the same app")
	}
}

func TestFromContextEmpty(t *testing.T) {
	if app := FromContext(context.Background()); app != nil {
		t.Error("expected nil from empty context")
	}
}

func TestApplyFlagsReplacesOutput(t *testing.T) {
	tests := []struct {
		name    string
		setFlag func(*App)
	}{
		{"quiet", func(a *App) { a.Flags.Quiet = true }},
		{"json", func(a *App) { a.Flags.JSON = true }},
		{"styled", func(a *App) { a.Flags.Styled = true }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := NewApp(testConfig(t))
			before := app.Output
			tt.setFlag(app)
			app.ApplyFlags()
			if app.Output == nil {
				t.Fatal("Output should be set after ApplyFlags")
			}
			if app.Output == before {
				t.Error("ApplyFlags should replace the writer when a format flag is set")
			}
		})
	}
}

func TestApplyFlagsNoFormatFlagKeepsWriter(t *testing.T) {
	app := NewApp(testConfig(t))
	before := app.Output
	app.ApplyFlags()
	if app.Output != before {
		t.Error("ApplyFlags should keep the configured writer when no format flag is set")
	}
}

func TestNewAppWithFormatConfig(t *testing.T) {
	for _, format := range []string{"json", "quiet", ""} {
		t.Run(format, func(t *testing.T) {
			cfg := testConfig(t)
			cfg.Format = format
			if app := NewApp(cfg); app.Output == nil {
				t.Error("Output should be set")
			}
		})
	}
}
