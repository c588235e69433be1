package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
	return dir
}

func TestLoadConfig_Defaults(t *testing.T) {
	chdirTemp(t)

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "Gavlik Capital", cfg.Auth.PlatformName)
	assert.Equal(t, 5*time.Minute, cfg.Auth.NonceTTL)
	assert.Equal(t, time.Second, cfg.Client.SettleDelay)
	assert.Equal(t, 2*time.Second, cfg.Client.Cooldown)
	assert.Equal(t, "/dashboard", cfg.Client.RedirectPath)
	assert.Equal(t, 7*24*time.Hour, cfg.Client.Storage.CookieMaxAge)
}

func TestLoadConfig_FileAndEnvOverrides(t *testing.T) {
	dir := chdirTemp(t)

	yaml := []byte("server:\n  port: \"9090\"\nclient:\n  cooldown: 3s\n  storage:\n    primary: redis\n")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), yaml, 0o600))
	t.Setenv("AUTH_PLATFORM_NAME", "Gavlik Test")
	t.Setenv("CLIENT_SETTLE_DELAY", "250ms")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, 3*time.Second, cfg.Client.Cooldown)
	assert.Equal(t, "redis", cfg.Client.Storage.Primary)
	assert.Equal(t, "Gavlik Test", cfg.Auth.PlatformName)
	assert.Equal(t, 250*time.Millisecond, cfg.Client.SettleDelay)
}

func TestLoadConfig_DotEnv(t *testing.T) {
	dir := chdirTemp(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("JWT_SECRET=from-dotenv\n"), 0o600))
	t.Cleanup(func() { _ = os.Unsetenv("JWT_SECRET") })

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "from-dotenv", cfg.JWT.Secret)
}
