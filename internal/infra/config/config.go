// Package config provides configuration loading from YAML files.
package config

import (
	"os"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration.
type Config struct {
	Discord  DiscordConfig  `yaml:"discord"`
	Spotify  SpotifyConfig  `yaml:"spotify"`
	Poller   PollerConfig   `yaml:"poller"`
	Status   StatusConfig   `yaml:"status"`
	Storage  StorageConfig  `yaml:"storage"`
	Callback CallbackConfig `yaml:"callback"`
}

// DiscordConfig represents Discord bot credentials.
type DiscordConfig struct {
	Token string `yaml:"token" validate:"required"`
	AppID string `yaml:"app_id" validate:"required"`
}

// SpotifyConfig represents Spotify application credentials.
type SpotifyConfig struct {
	ClientID     string `yaml:"client_id" validate:"required"`
	ClientSecret string `yaml:"client_secret" validate:"required"`
	RedirectURL  string `yaml:"redirect_url" default:"http://127.0.0.1:8888/callback" validate:"url"`
}

// PollerConfig represents polling cadence and rate-limit spacing.
type PollerConfig struct {
	IntervalSec          int `yaml:"interval_sec" default:"10" validate:"gte=2,lte=300"`
	UserDelayMs          int `yaml:"user_delay_ms" default:"750" validate:"gte=0,lte=5000"`
	RefreshCooldownMs    int `yaml:"refresh_cooldown_ms" default:"750" validate:"gte=0,lte=5000"`
	TokenExpiryMarginSec int `yaml:"token_expiry_margin_sec" default:"60" validate:"gte=0,lte=600"`
	OAuthStateTTLMin     int `yaml:"oauth_state_ttl_min" default:"10" validate:"gte=1,lte=120"`
}

// StatusConfig represents status-message reconciliation tuning.
type StatusConfig struct {
	HistoryScanLimit int      `yaml:"history_scan_limit" default:"100" validate:"gte=1,lte=100"`
	HypeChance       float64  `yaml:"hype_chance" default:"0.05" validate:"gte=0,lte=1"`
	HypeArtists      []string `yaml:"hype_artists"`
	HypePrefix       string   `yaml:"hype_prefix" default:"🔥 "`
}

// StorageConfig represents persistent state location.
type StorageConfig struct {
	Dir string `yaml:"dir" default:"data"`
}

// CallbackConfig represents the OAuth redirect listener.
type CallbackConfig struct {
	Addr string `yaml:"addr" default:":8888"`
}

// Load loads configuration from a YAML file. A missing file is not an
// error; credentials may be supplied entirely through the environment.
func Load(path string) (*Config, error) {
	var cfg Config

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, errors.Wrap(err, "failed to parse config file")
		}
	case os.IsNotExist(err):
		// Fall through with zero config.
	default:
		return nil, errors.Wrap(err, "failed to read config file")
	}

	cfg.overrideFromEnv()

	if err := defaults.Set(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to set defaults")
	}

	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "config validation failed")
	}

	return &cfg, nil
}

// overrideFromEnv overrides config values with environment variables.
func (c *Config) overrideFromEnv() {
	if v := os.Getenv("DISCORD_TOKEN"); v != "" {
		c.Discord.Token = v
	}
	if v := os.Getenv("DISCORD_APP_ID"); v != "" {
		c.Discord.AppID = v
	}
	if v := os.Getenv("SPOTIFY_CLIENT_ID"); v != "" {
		c.Spotify.ClientID = v
	}
	if v := os.Getenv("SPOTIFY_CLIENT_SECRET"); v != "" {
		c.Spotify.ClientSecret = v
	}
	if v := os.Getenv("SPOTIFY_REDIRECT_URL"); v != "" {
		c.Spotify.RedirectURL = v
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(err, "struct validation failed")
	}
	return nil
}

// PollInterval returns the reconciliation cycle period.
func (c *PollerConfig) PollInterval() time.Duration {
	return time.Duration(c.IntervalSec) * time.Second
}

// UserDelay returns the inter-user request spacing within a cycle.
func (c *PollerConfig) UserDelay() time.Duration {
	return time.Duration(c.UserDelayMs) * time.Millisecond
}

// RefreshCooldown returns the pause applied after a token refresh.
func (c *PollerConfig) RefreshCooldown() time.Duration {
	return time.Duration(c.RefreshCooldownMs) * time.Millisecond
}

// TokenExpiryMargin returns the remaining-lifetime threshold below which
// a token is refreshed before use.
func (c *PollerConfig) TokenExpiryMargin() time.Duration {
	return time.Duration(c.TokenExpiryMarginSec) * time.Second
}

// OAuthStateTTL returns the lifetime of a pending authorization state token.
func (c *PollerConfig) OAuthStateTTL() time.Duration {
	return time.Duration(c.OAuthStateTTLMin) * time.Minute
}
