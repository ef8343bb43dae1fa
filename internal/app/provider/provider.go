// Package provider provides episode data sources for the pages and the player.
package provider

import (
	"context"

	"github.com/cockroachdb/errors"

	"github.com/osa030/podplay/internal/domain/episode"
)

// ErrNotFound is returned when no provider knows the requested episode.
var ErrNotFound = errors.New("episode not found")

// Provider is the interface for episode data providers.
type Provider interface {
	// Latest retrieves up to limit episodes, newest first.
	Latest(ctx context.Context, limit int) ([]episode.Episode, error)

	// Episode retrieves a single episode. Returns ErrNotFound when missing.
	Episode(ctx context.Context, id string) (*episode.Episode, error)

	// Name returns the provider type (used in config).
	Name() string
}

// APIClient defines the content API operations needed by the api provider.
type APIClient interface {
	Latest(ctx context.Context, limit int) ([]episode.Episode, error)
	Episode(ctx context.Context, id string) (*episode.Episode, error)
}

// SpotifyClient defines the Spotify operations needed by the spotify provider.
type SpotifyClient interface {
	ShowEpisodes(ctx context.Context, show string, limit int) ([]episode.Episode, error)
	Episode(ctx context.Context, id string) (*episode.Episode, error)
}
