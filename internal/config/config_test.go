package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_FileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	err := os.WriteFile(path, []byte(`
environment: production
backend:
  url: https://api.orchestt.example.com
  mock: false
auth:
  issuer: https://login.example.com/tenant/
  client_id: dashboard
`), 0o600)
	require.NoError(t, err)

	cfg, err := load(viper.New(), path)
	require.NoError(t, err)

	assert.Equal(t, EnvProduction, cfg.Environment)
	assert.False(t, cfg.IsDevelopment())
	assert.False(t, cfg.Backend.Mock)
	assert.Equal(t, "https://api.orchestt.example.com", cfg.Backend.URL)
	assert.Equal(t, "https://login.example.com/tenant", cfg.Auth.Issuer)
	assert.Equal(t, 50, cfg.Backend.PageSize)
	assert.Equal(t, "memory", cfg.Diagrams.Store)
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := load(viper.New(), "")
	require.NoError(t, err)

	assert.True(t, cfg.IsDevelopment())
	assert.False(t, cfg.DevModeBypass)
	assert.True(t, cfg.Backend.Mock)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, []string{"openid", "profile", "email"}, cfg.Auth.Scopes)
}

func TestLoad_ExplicitMissingFileFails(t *testing.T) {
	_, err := load(viper.New(), filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestNormalizeEnvironment(t *testing.T) {
	tests := map[string]string{
		"dev":        EnvDevelopment,
		"Production": EnvProduction,
		"stage":      EnvStaging,
		"":           EnvDevelopment,
	}
	for in, want := range tests {
		got, err := normalizeEnvironment(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := normalizeEnvironment("qa")
	assert.ErrorIs(t, err, ErrUnknownEnvironment)
}

func TestLoad_RejectsMisspelledEnvironment(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("ORCHESTT_ENVIRONMENT", "PRODUCTON")
	t.Setenv("ORCHESTT_DEV_MODE_BYPASS", "true")

	cfg, err := load(viper.New(), "")
	require.ErrorIs(t, err, ErrUnknownEnvironment)
	assert.Nil(t, cfg)
}
