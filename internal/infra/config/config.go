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

// Provider types understood by the episode provider factory.
const (
	ProviderTypeAPI     = "api"
	ProviderTypeSpotify = "spotify"
)

// Config represents the application configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Site     SiteConfig     `yaml:"site"`
	Session  SessionConfig  `yaml:"session"`
	Pages    PagesConfig    `yaml:"pages"`
	Episodes EpisodesConfig `yaml:"episodes"`
	Spotify  SpotifyConfig  `yaml:"spotify"`
}

// ServerConfig represents server configuration.
type ServerConfig struct {
	Addr    string      `yaml:"addr" default:":8080"`
	BaseURL string      `yaml:"base_url" default:"http://localhost:8080" validate:"omitempty,url"`
	Hooks   HooksConfig `yaml:"hooks"`
}

// HooksConfig represents shell commands run around the server lifetime.
type HooksConfig struct {
	OnStarted []string `yaml:"on_started"`
	OnStopped []string `yaml:"on_stopped"`
}

// SiteConfig represents what the rendered pages look like.
type SiteConfig struct {
	Title  string `yaml:"title" default:"Podcastr"`
	Locale string `yaml:"locale" default:"pt_BR"`
}

// SessionConfig represents player session configuration.
type SessionConfig struct {
	CookieName     string `yaml:"cookie_name" default:"podplay_session"`
	IdleTimeoutSec int    `yaml:"idle_timeout_sec" default:"86400" validate:"gte=0"`
}

// PagesConfig represents static page rendering configuration.
type PagesConfig struct {
	HomeLimit      int `yaml:"home_limit" default:"12" validate:"gte=1,lte=100"`
	PrerenderCount int `yaml:"prerender_count" default:"2" validate:"gte=0,lte=100"`
	RevalidateSec  int `yaml:"revalidate_sec" default:"86400" validate:"gte=1"`
}

// EpisodesConfig represents the episode sources.
type EpisodesConfig struct {
	Providers []ProviderConfig `yaml:"providers" validate:"required,min=1,dive"`
}

// ProviderConfig represents a single episode provider configuration.
type ProviderConfig struct {
	Type        string         `yaml:"type" validate:"required,oneof=api spotify"`
	DisplayName string         `yaml:"display_name" validate:"required"`
	Settings    map[string]any `yaml:"settings" validate:"required"`
}

// SpotifyConfig represents Spotify API configuration.
// Credentials are only required when a spotify provider is configured.
type SpotifyConfig struct {
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	RefreshToken string `yaml:"refresh_token"`
}

// Load loads configuration from a YAML file.
// Environment variables take precedence over file values for sensitive fields.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read config file")
	}
	return Parse(data)
}

// Parse parses YAML configuration, applies environment overrides and defaults
// and validates the result.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrap(err, "failed to parse config file")
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
	if v := os.Getenv("SPOTIFY_CLIENT_ID"); v != "" {
		c.Spotify.ClientID = v
	}
	if v := os.Getenv("SPOTIFY_CLIENT_SECRET"); v != "" {
		c.Spotify.ClientSecret = v
	}
	if v := os.Getenv("SPOTIFY_REFRESH_TOKEN"); v != "" {
		c.Spotify.RefreshToken = v
	}
	if v := os.Getenv("EPISODES_API_URL"); v != "" {
		for i := range c.Episodes.Providers {
			if c.Episodes.Providers[i].Type == ProviderTypeAPI {
				if c.Episodes.Providers[i].Settings == nil {
					c.Episodes.Providers[i].Settings = make(map[string]any)
				}
				c.Episodes.Providers[i].Settings["base_url"] = v
				break
			}
		}
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(err, "struct validation failed")
	}

	if c.HasProvider(ProviderTypeSpotify) {
		if c.Spotify.ClientID == "" || c.Spotify.ClientSecret == "" || c.Spotify.RefreshToken == "" {
			return errors.New("spotify provider configured but spotify credentials are missing")
		}
	}

	return nil
}

// HasProvider checks if a provider of the given type is configured.
func (c *Config) HasProvider(providerType string) bool {
	for _, p := range c.Episodes.Providers {
		if p.Type == providerType {
			return true
		}
	}
	return false
}

// IdleTimeout returns the session idle timeout.
func (c *Config) IdleTimeout() time.Duration {
	return time.Duration(c.Session.IdleTimeoutSec) * time.Second
}

// Revalidate returns how long a rendered page stays fresh.
func (c *Config) Revalidate() time.Duration {
	return time.Duration(c.Pages.RevalidateSec) * time.Second
}
