package spotify

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/zmb3/spotify/v2"
)

func TestExtractID(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		kind     string
		expected string
	}{
		{
			name:     "Spotify show URI",
			input:    "spotify:show:4rOoJ6Egrf8K2IrywzwOMk",
			kind:     "show",
			expected: "4rOoJ6Egrf8K2IrywzwOMk",
		},
		{
			name:     "Spotify show URL",
			input:    "https://open.spotify.com/show/4rOoJ6Egrf8K2IrywzwOMk",
			kind:     "show",
			expected: "4rOoJ6Egrf8K2IrywzwOMk",
		},
		{
			name:     "Localized URL with query params",
			input:    "https://open.spotify.com/intl-pt/episode/512ojhOuo1ktJprKbVcKyQ?si=abc123",
			kind:     "episode",
			expected: "512ojhOuo1ktJprKbVcKyQ",
		},
		{
			name:     "Trailing slash",
			input:    "https://open.spotify.com/episode/512ojhOuo1ktJprKbVcKyQ/",
			kind:     "episode",
			expected: "512ojhOuo1ktJprKbVcKyQ",
		},
		{
			name:     "Plain ID",
			input:    " 512ojhOuo1ktJprKbVcKyQ ",
			kind:     "episode",
			expected: "512ojhOuo1ktJprKbVcKyQ",
		},
		{
			name:     "URI of another kind is left untouched",
			input:    "spotify:track:abc",
			kind:     "episode",
			expected: "spotify:track:abc",
		},
		{
			name:     "Empty string",
			input:    "",
			kind:     "show",
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := extractID(tt.input, tt.kind)
			assert.Equal(t, tt.expected, result,
				"extractID(%s, %s) should return %s", tt.input, tt.kind, tt.expected)
		})
	}
}

func TestShowID(t *testing.T) {
	assert.Equal(t, "4rOoJ6Egrf8K2IrywzwOMk", ShowID("spotify:show:4rOoJ6Egrf8K2IrywzwOMk"))
	assert.Equal(t, "4rOoJ6Egrf8K2IrywzwOMk", ShowID("https://open.spotify.com/show/4rOoJ6Egrf8K2IrywzwOMk?si=1"))
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{name: "nil error", err: nil, expected: false},
		{name: "rate limit", err: errors.New("rate limit exceeded"), expected: true},
		{name: "service unavailable", err: errors.New("status 503"), expected: true},
		{name: "not found", err: errors.New("status 404"), expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, isRetryable(tt.err))
		})
	}
}

func TestNotFound(t *testing.T) {
	missing := fmt.Errorf("get episode: %w", spotify.Error{Message: "Non existing id", Status: 404})
	assert.ErrorIs(t, notFound(missing), ErrNotFound)

	other := errors.New("boom")
	assert.Equal(t, other, notFound(other))
}

func TestParseReleaseDate(t *testing.T) {
	assert.Equal(t, time.Date(2021, time.January, 22, 0, 0, 0, 0, time.UTC), parseReleaseDate("2021-01-22"))
	assert.Equal(t, time.Date(2021, time.January, 1, 0, 0, 0, 0, time.UTC), parseReleaseDate("2021-01"))
	assert.Equal(t, time.Date(2021, time.January, 1, 0, 0, 0, 0, time.UTC), parseReleaseDate("2021"))
	assert.True(t, parseReleaseDate("").IsZero())
}

func TestConvertEpisode(t *testing.T) {
	c := &Client{markdown: newMarkdown()}
	ep := &spotify.EpisodePage{
		ID:              "512ojhOuo1ktJprKbVcKyQ",
		Name:            "Faladev #30",
		Description:     "Episode notes\n\nSee https://example.com",
		AudioPreviewURL: "https://p.scdn.co/mp3-preview/abc",
		Duration_ms:     1500000,
		ReleaseDate:     "2021-01-22",
		Images:          []spotify.Image{{URL: "https://i.scdn.co/image/cover"}},
	}

	e := c.convertEpisode(ep)

	assert.Equal(t, "512ojhOuo1ktJprKbVcKyQ", e.ID)
	assert.Equal(t, "Faladev #30", e.Title)
	assert.Equal(t, 25*time.Minute, e.Duration)
	assert.Equal(t, "https://i.scdn.co/image/cover", e.Thumbnail)
	assert.Equal(t, "https://p.scdn.co/mp3-preview/abc", e.URL)
	assert.Contains(t, e.Description, "<p>Episode notes</p>")
	assert.Contains(t, e.Description, `<a href="https://example.com">`)
}

func TestRenderDescription_DropsRawHTML(t *testing.T) {
	c := &Client{markdown: newMarkdown()}
	out := c.renderDescription("<script>alert(1)</script>")
	assert.NotContains(t, out, "<script>")
}
