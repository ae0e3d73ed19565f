package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, SecretBackendFile, cfg.Secret.Backend)
	assert.Equal(t, "secret.env", cfg.Secret.Path)
	assert.Equal(t, 3*time.Minute, cfg.Secret.RotationInterval)
	assert.Equal(t, 64, cfg.Secret.Length)
	assert.True(t, cfg.Secret.RotationEnabled)
	assert.Equal(t, 24*time.Hour, cfg.Auth.TokenTTL)
	assert.Equal(t, "0.0.0.0:5000", cfg.App.Addr())
	assert.Equal(t, 30*time.Second, cfg.App.RequestTimeout())
	assert.Empty(t, cfg.App.ProxyHeader)
	assert.Empty(t, cfg.App.TrustedProxies)
}

func TestLoadOverrides(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("ROTATION_INTERVAL", "24h")
	t.Setenv("SECRET_LENGTH", "96")
	t.Setenv("SECRET_STORE_BACKEND", "REDIS")
	t.Setenv("AUTH_TOKEN_TTL", "1h")
	t.Setenv("ROTATION_ENABLED", "false")
	t.Setenv("APP_PROXY_HEADER", "X-Forwarded-For")
	t.Setenv("APP_TRUSTED_PROXIES", "10.0.0.1, 10.0.0.0/8,")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 24*time.Hour, cfg.Secret.RotationInterval)
	assert.Equal(t, 96, cfg.Secret.Length)
	assert.Equal(t, SecretBackendRedis, cfg.Secret.Backend)
	assert.Equal(t, time.Hour, cfg.Auth.TokenTTL)
	assert.False(t, cfg.Secret.RotationEnabled)
	assert.Equal(t, "X-Forwarded-For", cfg.App.ProxyHeader)
	assert.Equal(t, []string{"10.0.0.1", "10.0.0.0/8"}, cfg.App.TrustedProxies)
}

func TestLoadRejectsInvalidSettings(t *testing.T) {
	tests := map[string]map[string]string{
		"bad interval":    {"ROTATION_INTERVAL": "often"},
		"short secret":    {"SECRET_LENGTH": "32"},
		"unknown backend": {"SECRET_STORE_BACKEND": "vault"},
		"negative ttl":    {"AUTH_TOKEN_TTL": "-1h"},
		"bad redis db":    {"REDIS_DB": "zero"},
	}
	for name, env := range tests {
		t.Run(name, func(t *testing.T) {
			chdir(t, t.TempDir())
			for k, v := range env {
				t.Setenv(k, v)
			}
			_, err := Load()
			require.Error(t, err)
		})
	}
}

// chdir mirrors testing.T.Chdir (Go 1.24+): it changes the working
// directory for the duration of the test and restores it on cleanup.
func chdir(t *testing.T, dir string) {
	t.Helper()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
}
