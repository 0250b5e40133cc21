package app

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	apperrors "github.com/oktamirror/oktamirror/pkg/errors"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)

	require.Equal(t, "info", cfg.Log.Level)
	require.Equal(t, "json", cfg.Log.Encoding)
	require.Equal(t, "sqlite", cfg.Database.Driver)
	require.Equal(t, "./data/oktamirror.sqlite", cfg.Database.Path)
	require.Equal(t, 200, cfg.Okta.PageSize)
	require.Equal(t, 60*time.Second, cfg.Okta.PageTimeout)
	require.Equal(t, float64(5), cfg.Okta.RateLimit)
	require.Equal(t, 10, cfg.Okta.RateBurst)
	require.Equal(t, "@every 6h", cfg.Sync.Schedule)
	require.Equal(t, "@daily", cfg.Sync.CleanupSchedule)
	require.False(t, cfg.Sync.DevicesEnabled)
	require.Equal(t, 30, cfg.Sync.HistoryRetentionDays)
	require.True(t, cfg.Metrics.Enabled)
	require.Equal(t, ":9464", cfg.Metrics.Address)
}

func TestLoadConfigFromFile(t *testing.T) {
	dir := t.TempDir()
	content := []byte(`
okta:
  org_url: https://acme.okta.com
  token: file-token
  page_size: 50
sync:
  tenant: acme
  devices_enabled: true
log:
  level: debug
`)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), content, 0o600))

	cfg, err := LoadConfig(dir)
	require.NoError(t, err)
	require.Equal(t, "https://acme.okta.com", cfg.Okta.OrgURL)
	require.Equal(t, "file-token", cfg.Okta.Token)
	require.Equal(t, 50, cfg.Okta.PageSize)
	require.Equal(t, "acme", cfg.Sync.Tenant)
	require.True(t, cfg.Sync.DevicesEnabled)
	require.Equal(t, "debug", cfg.Log.Level)
}

func TestLoadConfigLegacyEnvVars(t *testing.T) {
	t.Setenv("OKTA_CLIENT_ORGURL", "https://legacy.okta.com")
	t.Setenv("OKTA_API_TOKEN", "legacy-token")

	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)
	require.Equal(t, "https://legacy.okta.com", cfg.Okta.OrgURL)
	require.Equal(t, "legacy-token", cfg.Okta.Token)
}

func TestLoadConfigPrefixedEnvWins(t *testing.T) {
	t.Setenv("OKTA_CLIENT_ORGURL", "https://legacy.okta.com")
	t.Setenv("OKTAMIRROR_OKTA_ORG_URL", "https://primary.okta.com")

	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)
	require.Equal(t, "https://primary.okta.com", cfg.Okta.OrgURL)
}

func TestValidate(t *testing.T) {
	cfg := &Config{}
	err := cfg.Validate()
	require.ErrorIs(t, err, apperrors.ErrMissingConfig)

	cfg.Okta.OrgURL = "https://acme.okta.com"
	err = cfg.Validate()
	require.ErrorIs(t, err, apperrors.ErrMissingConfig)

	cfg.Okta.Token = "token"
	require.NoError(t, cfg.Validate())
}

func TestTenantID(t *testing.T) {
	cfg := &Config{}
	cfg.Okta.OrgURL = "https://acme.okta.com"

	tenant, err := cfg.TenantID()
	require.NoError(t, err)
	require.Equal(t, "acme.okta.com", tenant)

	cfg.Sync.Tenant = "custom"
	tenant, err = cfg.TenantID()
	require.NoError(t, err)
	require.Equal(t, "custom", tenant)

	bad := &Config{}
	_, err = bad.TenantID()
	require.ErrorIs(t, err, apperrors.ErrMissingConfig)
}
