package app

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	mapstructure "github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	apperrors "github.com/oktamirror/oktamirror/pkg/errors"
)

// Config represents the runtime configuration for the mirror daemon.
type Config struct {
	Log      LogConfig      `mapstructure:"log"`
	Database DatabaseConfig `mapstructure:"database"`
	Okta     OktaConfig     `mapstructure:"okta"`
	Sync     SyncConfig     `mapstructure:"sync"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
}

// LogConfig controls the zap logger.
type LogConfig struct {
	Level    string `mapstructure:"level"`
	Encoding string `mapstructure:"encoding"`
}

// DatabaseConfig describes connection options for the local mirror database.
type DatabaseConfig struct {
	Driver string `mapstructure:"driver"`
	Path   string `mapstructure:"path"`
	DSN    string `mapstructure:"dsn"`
}

// OktaConfig holds upstream API connection settings. The org URL and token
// are also read from the legacy OKTA_CLIENT_ORGURL / OKTA_API_TOKEN
// environment variables used by scheduled-job deployments.
type OktaConfig struct {
	OrgURL      string        `mapstructure:"org_url"`
	Token       string        `mapstructure:"token"`
	PageSize    int           `mapstructure:"page_size"`
	PageTimeout time.Duration `mapstructure:"page_timeout"`
	RateLimit   float64       `mapstructure:"rate_limit"`
	RateBurst   int           `mapstructure:"rate_burst"`
}

// SyncConfig tunes synchronization runs and retention.
type SyncConfig struct {
	Tenant               string `mapstructure:"tenant"`
	Schedule             string `mapstructure:"schedule"`
	CleanupSchedule      string `mapstructure:"cleanup_schedule"`
	DevicesEnabled       bool   `mapstructure:"devices_enabled"`
	HistoryRetentionDays int    `mapstructure:"history_retention_days"`
}

// MetricsConfig toggles the prometheus listener in daemon mode.
type MetricsConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Address  string `mapstructure:"address"`
	Endpoint string `mapstructure:"endpoint"`
}

// LoadConfig initialises configuration using Viper with sensible defaults.
func LoadConfig(paths ...string) (*Config, error) {
	v := viper.NewWithOptions(viper.ExperimentalBindStruct())
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.AddConfigPath("./config")
	for _, path := range paths {
		v.AddConfigPath(path)
	}

	setDefaults(v)

	v.SetEnvPrefix("OKTAMIRROR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Scheduled-job deployments export these two without the prefix.
	_ = v.BindEnv("okta.org_url", "OKTAMIRROR_OKTA_ORG_URL", "OKTA_CLIENT_ORGURL")
	_ = v.BindEnv("okta.token", "OKTAMIRROR_OKTA_TOKEN", "OKTA_API_TOKEN")

	if err := v.ReadInConfig(); err != nil {
		var cfgErr viper.ConfigFileNotFoundError
		if !errors.As(err, &cfgErr) {
			return nil, fmt.Errorf("config: read file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config, decodeHook()); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.encoding", "json")

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "./data/oktamirror.sqlite")

	v.SetDefault("okta.page_size", 200)
	v.SetDefault("okta.page_timeout", "60s")
	v.SetDefault("okta.rate_limit", 5)
	v.SetDefault("okta.rate_burst", 10)

	v.SetDefault("sync.schedule", "@every 6h")
	v.SetDefault("sync.cleanup_schedule", "@daily")
	v.SetDefault("sync.devices_enabled", false)
	v.SetDefault("sync.history_retention_days", 30)

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.address", ":9464")
	v.SetDefault("metrics.endpoint", "/metrics")
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}

// Validate checks that the settings required for a sync run are present.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Okta.OrgURL) == "" {
		return apperrors.ErrMissingConfig.WithInternal(errors.New("okta org URL is not set (OKTA_CLIENT_ORGURL)"))
	}
	if strings.TrimSpace(c.Okta.Token) == "" {
		return apperrors.ErrMissingConfig.WithInternal(errors.New("okta API token is not set (OKTA_API_TOKEN)"))
	}
	return nil
}

// TenantID returns the configured tenant, defaulting to the org URL host so a
// job invoked with only OKTA_CLIENT_ORGURL still lands in a stable namespace.
func (c *Config) TenantID() (string, error) {
	if tenant := strings.TrimSpace(c.Sync.Tenant); tenant != "" {
		return tenant, nil
	}

	parsed, err := url.Parse(strings.TrimSpace(c.Okta.OrgURL))
	if err != nil || parsed.Hostname() == "" {
		return "", apperrors.ErrMissingConfig.WithInternal(fmt.Errorf("cannot derive tenant from org URL %q", c.Okta.OrgURL))
	}
	return parsed.Hostname(), nil
}
