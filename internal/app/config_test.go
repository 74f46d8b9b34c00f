package app

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/recmind-app/recmind-server/internal/auth"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)

	require.Equal(t, 5000, cfg.Server.Port)
	require.Equal(t, "info", cfg.Server.LogLevel)
	require.Equal(t, "http://localhost:3000", cfg.Server.FrontendURL)
	require.Equal(t, "sqlite", cfg.Database.Driver)
	require.Equal(t, 15*time.Minute, cfg.Auth.JWT.AccessTTL)
	require.Equal(t, 7*24*time.Hour, cfg.Auth.JWT.RefreshTTL)
	require.Equal(t, 10*time.Minute, cfg.Auth.Verification.CodeTTL)
	require.False(t, cfg.Auth.RotateRefresh)
	require.False(t, cfg.Email.SMTP.Enabled)
	require.Equal(t, "http://localhost:8000", cfg.Recommender.BaseURL)
	require.Equal(t, "@hourly", cfg.Maintenance.CodeSchedule)
}

func TestLoadConfigFromFile(t *testing.T) {
	dir := t.TempDir()
	configYAML := []byte(`
server:
  port: 9000
  frontend_url: https://app.recmind.dev
auth:
  jwt:
    access_secret: file-access
    refresh_secret: file-refresh
    access_token_ttl: 5m
  rotate_refresh: true
  oauth:
    google:
      enabled: true
      client_id: google-id
      client_secret: google-secret
      redirect_url: https://api.recmind.dev/api/auth/google/callback
`)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), configYAML, 0o600))

	cfg, err := LoadConfig(dir)
	require.NoError(t, err)

	require.Equal(t, 9000, cfg.Server.Port)
	require.Equal(t, "https://app.recmind.dev", cfg.Server.FrontendURL)
	require.Equal(t, 5*time.Minute, cfg.Auth.JWT.AccessTTL)
	require.True(t, cfg.Auth.RotateRefresh)
	require.True(t, cfg.Auth.OAuth.Google.Enabled)
	require.Equal(t, "google-id", cfg.Auth.OAuth.Google.ClientID)
	require.NoError(t, cfg.Validate())
}

func TestLoadConfigEnvOverride(t *testing.T) {
	t.Setenv("RECMIND_SERVER_PORT", "7777")
	t.Setenv("RECMIND_AUTH_JWT_ACCESS_SECRET", "env-access")
	t.Setenv("RECMIND_AUTH_JWT_REFRESH_SECRET", "env-refresh")

	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)

	require.Equal(t, 7777, cfg.Server.Port)
	require.Equal(t, "env-access", cfg.Auth.JWT.AccessSecret)
	require.NoError(t, cfg.Validate())
}

func TestValidateRejectsBadSecrets(t *testing.T) {
	cfg := &Config{}
	require.Error(t, cfg.Validate())

	cfg.Auth.JWT.AccessSecret = "same"
	cfg.Auth.JWT.RefreshSecret = "same"
	require.Error(t, cfg.Validate())

	cfg.Auth.JWT.RefreshSecret = "different"
	require.NoError(t, cfg.Validate())
}

func TestTokenServiceConfigDefaults(t *testing.T) {
	ac := AuthConfig{}
	ac.JWT.AccessSecret = "a"
	ac.JWT.RefreshSecret = "b"

	tc := ac.TokenServiceConfig()
	require.Equal(t, auth.DefaultAccessTokenTTL, tc.AccessTTL)
	require.Equal(t, auth.DefaultRefreshTokenTTL, tc.RefreshTTL)
}
