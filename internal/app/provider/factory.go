package provider

import (
	"context"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/podplay/internal/infra/config"
	"github.com/osa030/podplay/internal/infra/spotify"
)

// builder creates a provider from its settings.
type builder func(ctx context.Context, cfg *config.Config, settings map[string]any) (Provider, error)

var builders = map[string]builder{
	config.ProviderTypeAPI: func(_ context.Context, _ *config.Config, settings map[string]any) (Provider, error) {
		return NewAPIProvider(settings)
	},
	config.ProviderTypeSpotify: func(ctx context.Context, cfg *config.Config, settings map[string]any) (Provider, error) {
		factory := NewSpotifyClientFactory(spotify.Config{
			ClientID:     cfg.Spotify.ClientID,
			ClientSecret: cfg.Spotify.ClientSecret,
			RefreshToken: cfg.Spotify.RefreshToken,
		})
		return NewSpotifyProvider(ctx, factory, settings)
	},
}

// NewChainFromConfig creates a provider chain from configuration.
func NewChainFromConfig(ctx context.Context, cfg *config.Config) (*Chain, error) {
	return newChainFromConfig(ctx, cfg, builders)
}

func newChainFromConfig(ctx context.Context, cfg *config.Config, builders map[string]builder) (*Chain, error) {
	if len(cfg.Episodes.Providers) == 0 {
		return nil, errors.New("no episode providers configured")
	}

	var providers []ProviderWithMetadata

	for i, pcfg := range cfg.Episodes.Providers {
		zlog.Debug().Msgf("creating episode provider: index=%d type=%s settings=%+v", i+1, pcfg.Type, pcfg.Settings)

		build, ok := builders[pcfg.Type]
		if !ok {
			return nil, errors.Newf("unsupported provider type: %s (provider index %d)", pcfg.Type, i)
		}

		provider, err := build(ctx, cfg, pcfg.Settings)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to create provider (index %d, type %s)", i, pcfg.Type)
		}

		providers = append(providers, ProviderWithMetadata{
			Provider:    provider,
			DisplayName: pcfg.DisplayName,
		})

		zlog.Info().Msgf("registered episode provider: index=%d type=%s display_name=%s", i+1, pcfg.Type, pcfg.DisplayName)
	}

	return NewChain(providers), nil
}
