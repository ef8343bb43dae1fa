package provider

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/podplay/internal/domain/episode"
	"github.com/osa030/podplay/internal/infra/episodeapi"
)

type APIProviderConfig struct {
	BaseURL     string `yaml:"base_url" mapstructure:"base_url" validate:"required,url"`
	TimeoutSec  int    `yaml:"timeout_sec" mapstructure:"timeout_sec" default:"10" validate:"gte=1"`
	CacheTTLSec int    `yaml:"cache_ttl_sec" mapstructure:"cache_ttl_sec" default:"3600" validate:"gte=0"`
}

// APIProvider provides episodes from the json-server style content API.
type APIProvider struct {
	client APIClient
	config *APIProviderConfig
}

// NewAPIProvider creates a new APIProvider from free-form settings.
func NewAPIProvider(settings map[string]any) (*APIProvider, error) {
	var config APIProviderConfig
	if err := mapstructure.Decode(settings, &config); err != nil {
		return nil, errors.Wrap(err, "failed to decode settings")
	}
	if err := defaults.Set(&config); err != nil {
		return nil, errors.Wrap(err, "failed to set defaults")
	}
	zlog.Debug().Msgf("api provider config: %+v", config)
	if err := validator.New().Struct(config); err != nil {
		zlog.Error().Msgf("api provider validation failed: %v", err)
		return nil, errors.Wrap(err, "validation failed")
	}

	client, err := episodeapi.New(episodeapi.Config{
		BaseURL:  config.BaseURL,
		Timeout:  time.Duration(config.TimeoutSec) * time.Second,
		CacheTTL: time.Duration(config.CacheTTLSec) * time.Second,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to create content API client")
	}

	return &APIProvider{client: client, config: &config}, nil
}

// Latest retrieves the newest episodes from the content API.
func (p *APIProvider) Latest(ctx context.Context, limit int) ([]episode.Episode, error) {
	episodes, err := p.client.Latest(ctx, limit)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get latest episodes")
	}
	return episodes, nil
}

// Episode retrieves a single episode from the content API.
func (p *APIProvider) Episode(ctx context.Context, id string) (*episode.Episode, error) {
	e, err := p.client.Episode(ctx, id)
	if errors.Is(err, episodeapi.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to get episode %s", id)
	}
	return e, nil
}

// Name returns the provider name.
func (p *APIProvider) Name() string {
	return "api"
}
