// Package episode provides the Episode domain entity.
package episode

import (
	"fmt"
	"time"

	"github.com/goodsign/monday"
)

// DefaultLocale is the locale used for published dates when none is configured.
const DefaultLocale = monday.LocalePtBR

// publishedLayout renders as "d MMM yy" (e.g. "8 jan 21").
const publishedLayout = "2 Jan 06"

// Episode represents a podcast episode.
// The player only relies on Title, Members, Thumbnail, Duration and URL.
type Episode struct {
	ID          string        // Slug used in page URLs
	Title       string        // Episode title
	Members     string        // Participant names
	PublishedAt time.Time     // Publication time
	Thumbnail   string        // Cover image URL
	Description string        // HTML description
	URL         string        // Audio file URL
	Duration    time.Duration // Audio duration
}

// DurationSeconds returns the duration in whole seconds.
func (e *Episode) DurationSeconds() int64 {
	return int64(e.Duration / time.Second)
}

// DurationString returns the duration formatted as HH:MM:SS.
func (e *Episode) DurationString() string {
	return FormatDuration(e.Duration)
}

// PublishedLabel returns the publication date as "d MMM yy" in the given locale.
// Returns an empty string when the publication time is unknown.
func (e *Episode) PublishedLabel(locale monday.Locale) string {
	if e.PublishedAt.IsZero() {
		return ""
	}
	if locale == "" {
		locale = DefaultLocale
	}
	return monday.Format(e.PublishedAt, publishedLayout, locale)
}

// FormatDuration formats d as zero padded HH:MM:SS. Negative durations format as 00:00:00.
func FormatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int64(d / time.Second)
	hours := total / 3600
	minutes := (total % 3600) / 60
	seconds := total % 60
	return fmt.Sprintf("%02d:%02d:%02d", hours, minutes, seconds)
}
