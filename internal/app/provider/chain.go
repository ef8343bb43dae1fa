package provider

import (
	"context"
	"slices"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"
	"github.com/samber/lo"

	"github.com/osa030/podplay/internal/domain/episode"
)

// ProviderWithMetadata wraps a provider with its metadata.
type ProviderWithMetadata struct {
	Provider    Provider
	DisplayName string
}

// Chain tries multiple providers in order until one answers.
type Chain struct {
	providers []ProviderWithMetadata
}

// NewChain creates a new provider chain.
func NewChain(providers []ProviderWithMetadata) *Chain {
	return &Chain{
		providers: providers,
	}
}

// Providers returns the configured providers in order.
func (c *Chain) Providers() []ProviderWithMetadata {
	return slices.Clone(c.providers)
}

// Latest returns the newest episodes of the first provider that answers.
func (c *Chain) Latest(ctx context.Context, limit int) ([]episode.Episode, error) {
	var lastErr error
	for i, pm := range c.providers {
		zlog.Debug().Msgf("trying provider: index=%d total=%d name=%s provider_type=%s",
			i+1, len(c.providers), pm.DisplayName, pm.Provider.Name())

		episodes, err := pm.Provider.Latest(ctx, limit)
		if err != nil {
			zlog.Warn().Msgf("provider failed, trying next: provider=%s error=%v", pm.DisplayName, err)
			lastErr = err
			continue
		}

		episodes = lo.UniqBy(episodes, func(e episode.Episode) string { return e.ID })
		zlog.Debug().Msgf("provider returned episodes: provider=%s count=%d", pm.DisplayName, len(episodes))
		return episodes, nil
	}

	if lastErr == nil {
		return nil, errors.New("no providers configured")
	}
	return nil, errors.Wrap(lastErr, "all providers failed to return episodes")
}

// Episode returns the episode from the first provider that knows it.
func (c *Chain) Episode(ctx context.Context, id string) (*episode.Episode, error) {
	var failure error
	for _, pm := range c.providers {
		e, err := pm.Provider.Episode(ctx, id)
		if err == nil {
			return e, nil
		}
		if errors.Is(err, ErrNotFound) {
			zlog.Debug().Msgf("episode not found in provider: provider=%s id=%s", pm.DisplayName, id)
			continue
		}
		zlog.Warn().Msgf("provider failed, trying next: provider=%s id=%s error=%v", pm.DisplayName, id, err)
		if failure == nil {
			failure = err
		}
	}

	if failure != nil {
		return nil, errors.Wrapf(failure, "failed to get episode %s", id)
	}
	return nil, ErrNotFound
}

// Episodes resolves every ID in order. Fails on the first missing episode.
func (c *Chain) Episodes(ctx context.Context, ids []string) (episode.List, error) {
	list := make(episode.List, 0, len(ids))
	for _, id := range ids {
		e, err := c.Episode(ctx, id)
		if err != nil {
			return nil, err
		}
		list = append(list, *e)
	}
	return list, nil
}

// Name returns the chain name.
func (c *Chain) Name() string {
	return "provider_chain"
}
