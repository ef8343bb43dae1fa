// Package episodeapi provides a client for the podcast content API
// (json-server style REST: /episodes and /episodes/{id}).
package episodeapi

import (
	"context"
	"encoding/json"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/podplay/internal/domain/episode"
)

var ErrNotFound = errors.New("episode not found")

// publishedLayouts are the timestamp formats accepted for published_at.
var publishedLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// episodeCacheEntry represents a cached episode lookup.
type episodeCacheEntry struct {
	episode   episode.Episode
	fetchedAt time.Time
}

// latestCacheEntry represents a cached latest-episodes listing.
type latestCacheEntry struct {
	episodes  []episode.Episode
	fetchedAt time.Time
}

// Client is a content API client.
type Client struct {
	baseURL    string
	httpClient *http.Client
	cacheTTL   time.Duration
	now        func() time.Time

	episodeCache map[string]*episodeCacheEntry
	latestCache  map[int]*latestCacheEntry
	cacheMu      sync.RWMutex
}

// Config represents content API client configuration.
type Config struct {
	BaseURL  string
	Timeout  time.Duration // Defaults to 10s
	CacheTTL time.Duration // 0 disables caching
}

// FileResponse represents the audio file of an episode record.
type FileResponse struct {
	URL      string  `json:"url"`
	Type     string  `json:"type"`
	Duration Seconds `json:"duration"`
}

// EpisodeResponse represents an episode record of the API.
type EpisodeResponse struct {
	ID          string       `json:"id"`
	Title       string       `json:"title"`
	Members     string       `json:"members"`
	PublishedAt string       `json:"published_at"`
	Thumbnail   string       `json:"thumbnail"`
	Description string       `json:"description"`
	File        FileResponse `json:"file"`
}

// maxSeconds is the largest duration in seconds a time.Duration can hold.
const maxSeconds = float64(math.MaxInt64 / int64(time.Second))

// Seconds is a duration in seconds that may be encoded as a JSON number or a numeric string.
type Seconds float64

// UnmarshalJSON implements json.Unmarshaler.
func (s *Seconds) UnmarshalJSON(data []byte) error {
	raw := strings.Trim(strings.TrimSpace(string(data)), `"`)
	if raw == "" || raw == "null" {
		*s = 0
		return nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return errors.Wrapf(err, "invalid duration %s", string(data))
	}
	if math.IsNaN(v) || math.IsInf(v, 0) || math.Abs(v) > maxSeconds {
		return errors.Newf("duration out of range: %s", string(data))
	}
	*s = Seconds(v)
	return nil
}

// New creates a new content API client.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("content API base URL is required")
	}
	if _, err := url.ParseRequestURI(cfg.BaseURL); err != nil {
		return nil, errors.Wrap(err, "invalid content API base URL")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &Client{
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		httpClient:   &http.Client{Timeout: timeout},
		cacheTTL:     cfg.CacheTTL,
		now:          time.Now,
		episodeCache: make(map[string]*episodeCacheEntry),
		latestCache:  make(map[int]*latestCacheEntry),
	}, nil
}

// Latest retrieves the newest episodes, sorted by published_at descending.
func (c *Client) Latest(ctx context.Context, limit int) ([]episode.Episode, error) {
	if limit <= 0 {
		limit = 12
	}

	c.cacheMu.RLock()
	if entry, ok := c.latestCache[limit]; ok && c.fresh(entry.fetchedAt) {
		c.cacheMu.RUnlock()
		zlog.Debug().Msgf("using cached latest episodes: limit=%d", limit)
		return cloneEpisodes(entry.episodes), nil
	}
	c.cacheMu.RUnlock()

	params := url.Values{}
	params.Set("_limit", strconv.Itoa(limit))
	params.Set("_sort", "published_at")
	params.Set("_order", "desc")

	var records []EpisodeResponse
	if err := c.get(ctx, "/episodes?"+params.Encode(), &records); err != nil {
		return nil, errors.Wrap(err, "failed to list episodes")
	}

	episodes := make([]episode.Episode, 0, len(records))
	for _, r := range records {
		episodes = append(episodes, convertEpisode(r))
	}

	if c.cacheTTL > 0 {
		c.cacheMu.Lock()
		c.latestCache[limit] = &latestCacheEntry{episodes: cloneEpisodes(episodes), fetchedAt: c.now()}
		for _, e := range episodes {
			c.episodeCache[e.ID] = &episodeCacheEntry{episode: e, fetchedAt: c.now()}
		}
		c.cacheMu.Unlock()
	}

	return episodes, nil
}

// Episode retrieves a single episode by ID. Returns ErrNotFound if the API has no such episode.
func (c *Client) Episode(ctx context.Context, id string) (*episode.Episode, error) {
	if id == "" {
		return nil, errors.New("episode id is required")
	}

	c.cacheMu.RLock()
	if entry, ok := c.episodeCache[id]; ok && c.fresh(entry.fetchedAt) {
		c.cacheMu.RUnlock()
		zlog.Debug().Msgf("using cached episode: id=%s", id)
		e := entry.episode
		return &e, nil
	}
	c.cacheMu.RUnlock()

	var record EpisodeResponse
	if err := c.get(ctx, "/episodes/"+url.PathEscape(id), &record); err != nil {
		return nil, errors.Wrapf(err, "failed to get episode %s", id)
	}

	e := convertEpisode(record)

	if c.cacheTTL > 0 {
		c.cacheMu.Lock()
		c.episodeCache[id] = &episodeCacheEntry{episode: e, fetchedAt: c.now()}
		c.cacheMu.Unlock()
		zlog.Debug().Msgf("cached episode: id=%s", id)
	}

	return &e, nil
}

// get performs a GET request and decodes the JSON body into out.
func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return errors.Wrap(err, "failed to create request")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrap(err, "failed to send request")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrap(err, "failed to read response body")
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case resp.StatusCode != http.StatusOK:
		return errors.Newf("content API returned status %d", resp.StatusCode)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return errors.Wrap(err, "failed to parse response")
	}
	return nil
}

// fresh reports whether a cache entry fetched at t can still be used.
func (c *Client) fresh(t time.Time) bool {
	return c.cacheTTL > 0 && c.now().Sub(t) < c.cacheTTL
}

// convertEpisode converts an API record to the domain entity.
func convertEpisode(r EpisodeResponse) episode.Episode {
	seconds := float64(r.File.Duration)
	if seconds < 0 {
		seconds = 0
	}

	return episode.Episode{
		ID:          r.ID,
		Title:       r.Title,
		Members:     r.Members,
		PublishedAt: parsePublished(r.PublishedAt),
		Thumbnail:   r.Thumbnail,
		Description: r.Description,
		URL:         r.File.URL,
		Duration:    time.Duration(seconds * float64(time.Second)),
	}
}

// parsePublished parses published_at; unknown formats yield the zero time.
func parsePublished(s string) time.Time {
	for _, layout := range publishedLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	if s != "" {
		zlog.Warn().Msgf("unparseable published_at: %q", s)
	}
	return time.Time{}
}

func cloneEpisodes(in []episode.Episode) []episode.Episode {
	out := make([]episode.Episode, len(in))
	copy(out, in)
	return out
}
