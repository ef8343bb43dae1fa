package episode

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		name     string
		duration time.Duration
		expected string
	}{
		{
			name:     "zero",
			duration: 0,
			expected: "00:00:00",
		},
		{
			name:     "seconds only",
			duration: 42 * time.Second,
			expected: "00:00:42",
		},
		{
			name:     "typical episode",
			duration: 3981 * time.Second, // 1h 6m 21s
			expected: "01:06:21",
		},
		{
			name:     "sub-second part is dropped",
			duration: 90*time.Second + 900*time.Millisecond,
			expected: "00:01:30",
		},
		{
			name:     "more than a day keeps counting hours",
			duration: 100 * time.Hour,
			expected: "100:00:00",
		},
		{
			name:     "negative clamps to zero",
			duration: -5 * time.Second,
			expected: "00:00:00",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, FormatDuration(tt.duration))
		})
	}
}

func TestEpisode_DurationSeconds(t *testing.T) {
	e := &Episode{Duration: 2*time.Minute + 500*time.Millisecond}
	assert.Equal(t, int64(120), e.DurationSeconds())
	assert.Equal(t, "00:02:00", e.DurationString())
}

func TestEpisode_PublishedLabel(t *testing.T) {
	e := &Episode{PublishedAt: time.Date(2021, time.January, 8, 16, 0, 0, 0, time.UTC)}

	label := e.PublishedLabel("")
	assert.Equal(t, "8 jan 21", strings.ToLower(label))

	var unknown Episode
	assert.Empty(t, unknown.PublishedLabel(DefaultLocale))
}
