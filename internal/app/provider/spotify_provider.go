package provider

import (
	"context"
	"slices"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/podplay/internal/domain/episode"
	"github.com/osa030/podplay/internal/infra/spotify"
)

type SpotifyProviderConfig struct {
	ShowID string `yaml:"show_id" mapstructure:"show_id" validate:"required"`
	Market string `yaml:"market" mapstructure:"market" default:"BR" validate:"len=2"`
}

// SpotifyProvider provides the episodes of a single Spotify show.
type SpotifyProvider struct {
	spotify SpotifyClient
	config  *SpotifyProviderConfig
}

// SpotifyClientFactory creates a Spotify client for a market.
type SpotifyClientFactory func(ctx context.Context, market string) (SpotifyClient, error)

// NewSpotifyClientFactory returns a factory backed by the given credentials.
func NewSpotifyClientFactory(cfg spotify.Config) SpotifyClientFactory {
	return func(ctx context.Context, market string) (SpotifyClient, error) {
		c := cfg
		c.Market = market
		client, err := spotify.New(ctx, c)
		if err != nil {
			return nil, err
		}
		return client, nil
	}
}

// NewSpotifyProvider creates a new SpotifyProvider.
func NewSpotifyProvider(ctx context.Context, newClient SpotifyClientFactory, settings map[string]any) (*SpotifyProvider, error) {
	if newClient == nil {
		return nil, errors.New("spotify client factory is required")
	}

	var config SpotifyProviderConfig
	if err := mapstructure.Decode(settings, &config); err != nil {
		return nil, errors.Wrap(err, "failed to decode settings")
	}
	if err := defaults.Set(&config); err != nil {
		return nil, errors.Wrap(err, "failed to set defaults")
	}
	zlog.Debug().Msgf("spotify provider config: %+v", config)
	if err := validator.New().Struct(config); err != nil {
		zlog.Error().Msgf("spotify provider validation failed: %v", err)
		return nil, errors.Wrap(err, "validation failed")
	}

	client, err := newClient(ctx, config.Market)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create spotify client")
	}

	return &SpotifyProvider{spotify: client, config: &config}, nil
}

// Latest retrieves the newest episodes of the configured show.
func (p *SpotifyProvider) Latest(ctx context.Context, limit int) ([]episode.Episode, error) {
	episodes, err := p.spotify.ShowEpisodes(ctx, p.config.ShowID, limit)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get show episodes")
	}

	// Newest first
	slices.SortStableFunc(episodes, func(a, b episode.Episode) int {
		return b.PublishedAt.Compare(a.PublishedAt)
	})
	if limit > 0 && len(episodes) > limit {
		episodes = episodes[:limit]
	}
	return episodes, nil
}

// Episode retrieves a single episode.
func (p *SpotifyProvider) Episode(ctx context.Context, id string) (*episode.Episode, error) {
	e, err := p.spotify.Episode(ctx, id)
	if errors.Is(err, spotify.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to get episode %s", id)
	}
	return e, nil
}

// Name returns the provider name.
func (p *SpotifyProvider) Name() string {
	return "spotify"
}
