package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

const minimalYAML = `
app:
  base_url: https://id.example.com
state:
  secret: dGVzdC1zZWNyZXQ=
providers:
  - authentication_type: Google
    display_name: Google
    kind: oidc
    issuer: https://accounts.google.com
    client_id: cid
    client_secret: csecret
`

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalYAML))
	require.NoError(t, err)

	assert.Equal(t, "dev", cfg.App.Env)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, "memory", cfg.Storage.Driver)
	assert.Equal(t, "memory", cfg.Cache.Driver)
	assert.Equal(t, "/", cfg.App.HomePath)
	assert.Equal(t, "/signin/error", cfg.App.ErrorPath)
	assert.Equal(t, "idbridge_session", cfg.Session.CookieName)
	assert.Equal(t, 24*time.Hour, cfg.SessionTTL())
	assert.Equal(t, 10*time.Minute, cfg.StateTTL())
	assert.False(t, cfg.Session.Secure)
}

func TestLoadRejectsPostgresWithoutDSN(t *testing.T) {
	_, err := Load(writeConfig(t, minimalYAML+`
storage:
  driver: postgres
`))
	assert.ErrorContains(t, err, "storage.dsn")
}

func TestLoadRejectsDuplicateProviders(t *testing.T) {
	_, err := Load(writeConfig(t, minimalYAML+`
  - authentication_type: google
    kind: github
    client_id: x
    client_secret: y
`))
	assert.ErrorContains(t, err, "duplicate authentication_type")
}

func TestLoadRequiresStateSecret(t *testing.T) {
	_, err := Load(writeConfig(t, `
app:
  base_url: https://id.example.com
`))
	assert.ErrorContains(t, err, "state.secret")
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("SERVER_ADDR", ":9999")
	t.Setenv("STATE_SECRET", "ZnJvbS1lbnY=")
	t.Setenv("APP_ENV", "prod")

	cfg, err := Load(writeConfig(t, minimalYAML))
	require.NoError(t, err)

	assert.Equal(t, ":9999", cfg.Server.Addr)
	assert.Equal(t, "ZnJvbS1lbnY=", cfg.State.Secret)
	assert.True(t, cfg.IsProd())
	assert.True(t, cfg.Session.Secure, "prod forces secure cookies")
}
