package commands

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forcegrid/sfschema/internal/config"
	"github.com/forcegrid/sfschema/internal/output"
)

func TestAuthStatusUnauthenticated(t *testing.T) {
	app, buf := newTestApp(t)

	require.NoError(t, runCmd(t, app, NewAuthCmd(), "status"))

	resp := decodeEnvelope(t, buf)
	data := resp["data"].(map[string]any)
	assert.Equal(t, false, data["authenticated"])
	assert.Equal(t, "production", data["environment"])
}

func TestAuthLogoutDropsCaches(t *testing.T) {
	app, buf := newTestApp(t)

	app.Cache.Put(config.Production, json.RawMessage(`[{"name":"Account"}]`))
	app.Cache.Put(config.Sandbox, json.RawMessage(`[{"name":"Lead"}]`))

	require.NoError(t, runCmd(t, app, NewAuthCmd(), "logout"))

	resp := decodeEnvelope(t, buf)
	data := resp["data"].(map[string]any)
	assert.Equal(t, "logged_out", data["status"])

	if _, ok := app.Cache.Get(config.Production); ok {
		t.Error("logout must drop the production list cache")
	}
	if _, ok := app.Cache.Get(config.Sandbox); ok {
		t.Error("logout must drop the sandbox list cache")
	}
}

func TestAuthTokenUnauthenticated(t *testing.T) {
	app, _ := newTestApp(t)

	err := runCmd(t, app, NewAuthCmd(), "token")
	require.Error(t, err)
	assert.Equal(t, output.CodeAuthRequired, output.AsError(err).Code)
}
