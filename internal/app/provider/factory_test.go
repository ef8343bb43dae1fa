package provider

import (
	"context"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/podplay/internal/infra/config"
)

func TestNewChainFromConfig(t *testing.T) {
	fake := func(name string) builder {
		return func(context.Context, *config.Config, map[string]any) (Provider, error) {
			return &fakeProvider{name: name}, nil
		}
	}
	testBuilders := map[string]builder{
		config.ProviderTypeAPI:     fake("api"),
		config.ProviderTypeSpotify: fake("spotify"),
	}

	cfg := &config.Config{Episodes: config.EpisodesConfig{Providers: []config.ProviderConfig{
		{Type: "spotify", DisplayName: "Spotify show", Settings: map[string]any{"show_id": "x"}},
		{Type: "api", DisplayName: "Content API", Settings: map[string]any{"base_url": "http://localhost"}},
	}}}

	chain, err := newChainFromConfig(context.Background(), cfg, testBuilders)
	require.NoError(t, err)

	providers := chain.Providers()
	require.Len(t, providers, 2)
	assert.Equal(t, "Spotify show", providers[0].DisplayName)
	assert.Equal(t, "spotify", providers[0].Provider.Name())
	assert.Equal(t, "api", providers[1].Provider.Name())
}

func TestNewChainFromConfig_Errors(t *testing.T) {
	failing := map[string]builder{
		config.ProviderTypeAPI: func(context.Context, *config.Config, map[string]any) (Provider, error) {
			return nil, errors.New("bad settings")
		},
	}

	_, err := newChainFromConfig(context.Background(), &config.Config{}, failing)
	assert.Error(t, err, "no providers")

	cfg := &config.Config{Episodes: config.EpisodesConfig{Providers: []config.ProviderConfig{
		{Type: "rss", DisplayName: "feed"},
	}}}
	_, err = newChainFromConfig(context.Background(), cfg, failing)
	assert.ErrorContains(t, err, "unsupported provider type")

	cfg.Episodes.Providers[0].Type = "api"
	_, err = newChainFromConfig(context.Background(), cfg, failing)
	assert.ErrorContains(t, err, "bad settings")
}

func TestNewChainFromConfig_APIProvider(t *testing.T) {
	cfg := &config.Config{Episodes: config.EpisodesConfig{Providers: []config.ProviderConfig{
		{Type: "api", DisplayName: "Content API", Settings: map[string]any{"base_url": "http://localhost:3333"}},
	}}}

	chain, err := NewChainFromConfig(context.Background(), cfg)
	require.NoError(t, err)
	assert.Equal(t, "api", chain.Providers()[0].Provider.Name())
}
