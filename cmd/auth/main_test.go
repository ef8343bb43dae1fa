package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/osa030/podplay/internal/domain/episode"
	"github.com/osa030/podplay/internal/infra/config"
)

func TestWriteConfig(t *testing.T) {
	creds := config.SpotifyConfig{ClientID: "id", ClientSecret: "secret", RefreshToken: "refresh"}

	tests := []struct {
		name         string
		provider     *config.ProviderConfig
		wantEpisodes bool
	}{
		{name: "credentials only"},
		{
			name:         "with show provider",
			provider:     spotifyProvider("Faladev", "https://open.spotify.com/show/4rOoJ6Egrf8K2IrywzwOMk?si=x", "BR"),
			wantEpisodes: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, writeConfig(&buf, creds, tt.provider))

			var got configSnippet
			require.NoError(t, yaml.Unmarshal(buf.Bytes(), &got))
			assert.Equal(t, creds, got.Spotify)
			assert.Contains(t, buf.String(), "refresh_token: refresh")

			if !tt.wantEpisodes {
				assert.Nil(t, got.Episodes)
				assert.NotContains(t, buf.String(), "episodes:")
				return
			}
			require.NotNil(t, got.Episodes)
			require.Len(t, got.Episodes.Providers, 1)
			p := got.Episodes.Providers[0]
			assert.Equal(t, config.ProviderTypeSpotify, p.Type)
			assert.Equal(t, "Faladev", p.DisplayName)
			assert.Equal(t, "4rOoJ6Egrf8K2IrywzwOMk", p.Settings["show_id"])
			assert.Equal(t, "BR", p.Settings["market"])
		})
	}
}

func TestPrintShow(t *testing.T) {
	var buf bytes.Buffer
	printShow(&buf, []episode.Episode{
		{
			Title:       "Como programar melhor",
			Members:     "Diego e Richard",
			PublishedAt: time.Date(2021, 1, 8, 0, 0, 0, 0, time.UTC),
			Duration:    time.Hour + 6*time.Minute + 21*time.Second,
		},
	})
	assert.Contains(t, buf.String(), "Show by Diego e Richard")
	assert.Contains(t, buf.String(), "2021-01-08  Como programar melhor (01:06:21)")

	buf.Reset()
	printShow(&buf, nil)
	assert.Contains(t, buf.String(), "no episodes")
}
