// Package spotify provides a client for Spotify podcast shows and episodes.
package spotify

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/zmb3/spotify/v2"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"golang.org/x/oauth2"

	"github.com/osa030/podplay/internal/domain/episode"
)

var ErrNotFound = errors.New("spotify episode not found")

// Scopes requested for the refresh token.
var Scopes = []string{
	spotifyauth.ScopeUserLibraryRead,
	spotifyauth.ScopeUserReadPrivate,
}

// Client is a Spotify API client.
type Client struct {
	client     *spotify.Client
	market     string
	maxRetries int
	retryDelay time.Duration
	markdown   goldmark.Markdown

	// Publisher names by show ID
	publishers   map[string]string
	publishersMu sync.RWMutex
}

// Config represents Spotify client configuration.
type Config struct {
	ClientID     string
	ClientSecret string
	RefreshToken string
	Market       string
}

// New creates a new Spotify client.
func New(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" || cfg.RefreshToken == "" {
		return nil, errors.New("spotify credentials are required")
	}

	auth := spotifyauth.New(
		spotifyauth.WithClientID(cfg.ClientID),
		spotifyauth.WithClientSecret(cfg.ClientSecret),
		spotifyauth.WithScopes(Scopes...),
	)

	// Get HTTP client with auto-refresh capability
	token := &oauth2.Token{
		RefreshToken: cfg.RefreshToken,
	}
	httpClient := auth.Client(ctx, token)

	market := cfg.Market
	if market == "" {
		market = "BR"
	}

	return &Client{
		client:     spotify.New(httpClient),
		market:     market,
		maxRetries: 3,
		retryDelay: time.Second,
		markdown:   newMarkdown(),
		publishers: make(map[string]string),
	}, nil
}

// ShowEpisodes retrieves the newest episodes of a show.
func (c *Client) ShowEpisodes(ctx context.Context, show string, limit int) ([]episode.Episode, error) {
	showID := extractID(show, "show")
	if showID == "" {
		return nil, errors.New("show id is required")
	}

	if limit <= 0 {
		limit = 20
	}
	if limit > 50 {
		limit = 50
	}

	publisher, err := c.publisher(ctx, showID)
	if err != nil {
		return nil, err
	}

	var page *spotify.SimpleEpisodePage
	err = c.retry(func() error {
		p, err := c.client.GetShowEpisodes(ctx, showID, spotify.Limit(limit), spotify.Market(c.market))
		if err != nil {
			return err
		}
		page = p
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(notFound(err), "failed to get show episodes")
	}

	episodes := make([]episode.Episode, 0, len(page.Episodes))
	for i := range page.Episodes {
		e := c.convertEpisode(&page.Episodes[i])
		e.Members = publisher
		episodes = append(episodes, e)
	}
	return episodes, nil
}

// Episode retrieves a single episode by ID, URI or URL.
func (c *Client) Episode(ctx context.Context, id string) (*episode.Episode, error) {
	episodeID := extractID(id, "episode")
	if episodeID == "" {
		return nil, errors.New("episode id is required")
	}

	var result *spotify.EpisodePage
	err := c.retry(func() error {
		ep, err := c.client.GetEpisode(ctx, episodeID, spotify.Market(c.market))
		if err != nil {
			return err
		}
		result = ep
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(notFound(err), "failed to get episode")
	}

	e := c.convertEpisode(result)
	e.Members = result.Show.Publisher
	return &e, nil
}

// publisher returns the publisher of a show, fetching it once.
func (c *Client) publisher(ctx context.Context, showID string) (string, error) {
	c.publishersMu.RLock()
	name, ok := c.publishers[showID]
	c.publishersMu.RUnlock()
	if ok {
		return name, nil
	}

	var show *spotify.FullShow
	err := c.retry(func() error {
		s, err := c.client.GetShow(ctx, spotify.ID(showID), spotify.Market(c.market))
		if err != nil {
			return err
		}
		show = s
		return nil
	})
	if err != nil {
		return "", errors.Wrap(notFound(err), "failed to get show")
	}

	c.publishersMu.Lock()
	c.publishers[showID] = show.Publisher
	c.publishersMu.Unlock()
	zlog.Debug().Msgf("cached show publisher: show=%s publisher=%s", showID, show.Publisher)

	return show.Publisher, nil
}

// convertEpisode converts a Spotify episode to the domain entity.
func (c *Client) convertEpisode(ep *spotify.EpisodePage) episode.Episode {
	var thumbnail string
	if len(ep.Images) > 0 {
		thumbnail = ep.Images[0].URL
	}

	return episode.Episode{
		ID:          string(ep.ID),
		Title:       ep.Name,
		PublishedAt: parseReleaseDate(ep.ReleaseDate),
		Thumbnail:   thumbnail,
		Description: c.renderDescription(ep.Description),
		URL:         ep.AudioPreviewURL,
		Duration:    time.Duration(ep.Duration_ms) * time.Millisecond,
	}
}

// renderDescription turns a plain text description into HTML. Raw HTML in
// the source is dropped.
func (c *Client) renderDescription(text string) string {
	var buf bytes.Buffer
	if err := c.markdown.Convert([]byte(text), &buf); err != nil {
		zlog.Warn().Msgf("failed to render episode description: %v", err)
		return ""
	}
	return strings.TrimSpace(buf.String())
}

func newMarkdown() goldmark.Markdown {
	return goldmark.New(goldmark.WithExtensions(extension.Linkify))
}

// parseReleaseDate parses a release date of any Spotify precision.
func parseReleaseDate(s string) time.Time {
	for _, layout := range []string{"2006-01-02", "2006-01", "2006"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

// notFound maps Spotify 404 responses to ErrNotFound.
func notFound(err error) error {
	var spErr spotify.Error
	if errors.As(err, &spErr) && spErr.Status == 404 {
		return ErrNotFound
	}
	return err
}

// retry retries an operation with linear backoff.
func (c *Client) retry(fn func() error) error {
	var lastErr error
	for i := 0; i < c.maxRetries; i++ {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		if !isRetryable(err) {
			return err
		}

		if i < c.maxRetries-1 {
			time.Sleep(c.retryDelay * time.Duration(i+1))
		}
	}
	return errors.Wrap(lastErr, "max retries exceeded")
}

// isRetryable checks if an error is retryable.
func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	// Rate limit errors and server errors are retryable
	errStr := err.Error()
	return strings.Contains(errStr, "rate limit") ||
		strings.Contains(errStr, "429") ||
		strings.Contains(errStr, "500") ||
		strings.Contains(errStr, "502") ||
		strings.Contains(errStr, "503") ||
		strings.Contains(errStr, "504")
}

// ShowID returns the show ID from an ID, a spotify:show:ID URI or an open.spotify.com URL.
func ShowID(input string) string {
	return extractID(input, "show")
}

// extractID extracts a Spotify ID of the given kind ("show", "episode") from
// an ID, a spotify:kind:ID URI or an open.spotify.com URL.
func extractID(input, kind string) string {
	input = strings.TrimSpace(input)

	uriPrefix := "spotify:" + kind + ":"
	if strings.HasPrefix(input, uriPrefix) {
		return strings.TrimPrefix(input, uriPrefix)
	}

	// https://open.spotify.com/show/ID or https://open.spotify.com/intl-XX/show/ID
	segment := "/" + kind + "/"
	if strings.Contains(input, "open.spotify.com") && strings.Contains(input, segment) {
		parts := strings.Split(input, segment)
		id := strings.Split(parts[len(parts)-1], "?")[0]
		return strings.TrimRight(id, "/")
	}

	return input
}
