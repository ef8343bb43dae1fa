package episodeapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const episodeJSON = `{
	"id": "a-importancia-da-contribuicao-em-open-source",
	"title": "A importância da contribuição em Open Source",
	"members": "Diego Fernandes, João Pedro, Diego Schell Fernandes e Bruno Lemos",
	"published_at": "2021-01-22 19:53:00",
	"thumbnail": "https://example.com/opensource.jpg",
	"description": "<p>Nesse episódio...</p>",
	"file": {
		"url": "https://example.com/opensource.m4a",
		"type": "audio/x-m4a",
		"duration": 3981
	}
}`

func newTestClient(t *testing.T, handler http.HandlerFunc, ttl time.Duration) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := New(Config{BaseURL: server.URL, CacheTTL: ttl})
	require.NoError(t, err)
	return client
}

func TestNew(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)

	_, err = New(Config{BaseURL: "::not-a-url"})
	assert.Error(t, err)

	client, err := New(Config{BaseURL: "http://localhost:3333/"})
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:3333", client.baseURL)
}

func TestEpisode(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/episodes/a-importancia-da-contribuicao-em-open-source", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, episodeJSON)
	}, 0)

	e, err := client.Episode(context.Background(), "a-importancia-da-contribuicao-em-open-source")
	require.NoError(t, err)

	assert.Equal(t, "A importância da contribuição em Open Source", e.Title)
	assert.Equal(t, "https://example.com/opensource.m4a", e.URL)
	assert.Equal(t, 3981*time.Second, e.Duration)
	assert.Equal(t, "01:06:21", e.DurationString())
	assert.Equal(t, time.Date(2021, time.January, 22, 19, 53, 0, 0, time.UTC), e.PublishedAt)
	assert.Equal(t, "<p>Nesse episódio...</p>", e.Description)
}

func TestEpisode_NotFound(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}, 0)

	_, err := client.Episode(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestEpisode_ServerError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}, 0)

	_, err := client.Episode(context.Background(), "any")
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrNotFound))
	assert.Contains(t, err.Error(), "502")
}

func TestLatest(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, "/episodes", r.URL.Path)
		assert.Equal(t, "2", r.URL.Query().Get("_limit"))
		assert.Equal(t, "published_at", r.URL.Query().Get("_sort"))
		assert.Equal(t, "desc", r.URL.Query().Get("_order"))

		response := `[
			{"id": "ep-2", "title": "Two", "published_at": "2021-01-22T19:53:00Z", "file": {"url": "u2", "duration": "1800"}},
			{"id": "ep-1", "title": "One", "published_at": "2021-01-08", "file": {"url": "u1", "duration": 60.5}}
		]`
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, response)
	}, time.Hour)

	ctx := context.Background()
	episodes, err := client.Latest(ctx, 2)
	require.NoError(t, err)
	require.Len(t, episodes, 2)
	assert.Equal(t, "ep-2", episodes[0].ID)
	assert.Equal(t, 30*time.Minute, episodes[0].Duration, "string durations are accepted")
	assert.Equal(t, 60*time.Second+500*time.Millisecond, episodes[1].Duration)

	// Listing and the per-episode lookups it primed are served from cache
	cached, err := client.Latest(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, episodes, cached)

	one, err := client.Episode(ctx, "ep-1")
	require.NoError(t, err)
	assert.Equal(t, "One", one.Title)
	assert.Equal(t, int32(1), calls.Load())
}

func TestLatest_CacheExpires(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		fmt.Fprint(w, `[]`)
	}, time.Minute)

	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	client.now = func() time.Time { return now }

	ctx := context.Background()
	_, err := client.Latest(ctx, 5)
	require.NoError(t, err)

	now = now.Add(2 * time.Minute)
	_, err = client.Latest(ctx, 5)
	require.NoError(t, err)

	assert.Equal(t, int32(2), calls.Load())
}

func TestSeconds_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		input    string
		expected Seconds
		wantErr  bool
	}{
		{input: `3981`, expected: 3981},
		{input: `"3981"`, expected: 3981},
		{input: `12.5`, expected: 12.5},
		{input: `null`, expected: 0},
		{input: `""`, expected: 0},
		{input: `"abc"`, wantErr: true},
		{input: `"NaN"`, wantErr: true},
		{input: `"Inf"`, wantErr: true},
		{input: `"-Infinity"`, wantErr: true},
		{input: `1e300`, wantErr: true},
		{input: `"9300000000"`, wantErr: true},
		{input: `9200000000`, expected: 9200000000},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			var s Seconds
			err := json.Unmarshal([]byte(tt.input), &s)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, s)
		})
	}
}

func TestConvertEpisode_NegativeDuration(t *testing.T) {
	e := convertEpisode(EpisodeResponse{ID: "x", File: FileResponse{Duration: -10}})
	assert.Equal(t, time.Duration(0), e.Duration)
	assert.True(t, e.PublishedAt.IsZero())
}
