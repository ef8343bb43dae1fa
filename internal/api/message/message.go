// Package message provides the JSON shapes of player state shared by the
// WebSocket and Connect surfaces.
package message

import (
	"time"

	"github.com/samber/lo"

	"github.com/osa030/podplay/internal/app/notification"
	"github.com/osa030/podplay/internal/app/player"
	"github.com/osa030/podplay/internal/domain/episode"
)

// Episode is an episode as seen by player clients.
type Episode struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Members     string `json:"members"`
	Thumbnail   string `json:"thumbnail,omitempty"`
	URL         string `json:"url"`
	PublishedAt string `json:"published_at,omitempty"`
	Published   string `json:"published,omitempty"`
	DurationSec int64  `json:"duration_sec"`
	Duration    string `json:"duration"`
}

// State is a player snapshot.
type State struct {
	Episodes     []Episode `json:"episodes"`
	CurrentIndex int       `json:"current_index"`
	IsPlaying    bool      `json:"is_playing"`
	IsLooping    bool      `json:"is_looping"`
	IsShuffling  bool      `json:"is_shuffling"`
	HasNext      bool      `json:"has_next"`
	HasPrevious  bool      `json:"has_previous"`
	Current      *Episode  `json:"current,omitempty"`
}

// Notification is a pushed player update.
type Notification struct {
	Type       string `json:"type"`
	SequenceNo uint64 `json:"sequence_no"`
	SessionID  string `json:"session_id"`
	Event      string `json:"event,omitempty"`
	Snapshot   State  `json:"snapshot"`
}

// FromEpisode converts a domain episode.
func FromEpisode(e episode.Episode) Episode {
	m := Episode{
		ID:          e.ID,
		Title:       e.Title,
		Members:     e.Members,
		Thumbnail:   e.Thumbnail,
		URL:         e.URL,
		Published:   e.PublishedLabel(episode.DefaultLocale),
		DurationSec: e.DurationSeconds(),
		Duration:    e.DurationString(),
	}
	if !e.PublishedAt.IsZero() {
		m.PublishedAt = e.PublishedAt.Format(time.RFC3339)
	}
	return m
}

// FromSnapshot converts a player snapshot.
func FromSnapshot(s player.Snapshot) State {
	st := State{
		Episodes: lo.Map(s.Episodes, func(e episode.Episode, _ int) Episode {
			return FromEpisode(e)
		}),
		CurrentIndex: s.CurrentIndex,
		IsPlaying:    s.IsPlaying,
		IsLooping:    s.IsLooping,
		IsShuffling:  s.IsShuffling,
		HasNext:      s.HasNext,
		HasPrevious:  s.HasPrevious,
	}
	if s.Current != nil {
		cur := FromEpisode(*s.Current)
		st.Current = &cur
	}
	return st
}

// FromNotification converts a notification.
func FromNotification(n *notification.Notification) *Notification {
	return &Notification{
		Type:       string(n.Type),
		SequenceNo: n.SequenceNo,
		SessionID:  n.SessionID,
		Event:      n.Event,
		Snapshot:   FromSnapshot(n.Snapshot),
	}
}

// ToEpisode converts back to a domain episode. Description is not carried.
func (e Episode) ToEpisode() episode.Episode {
	out := episode.Episode{
		ID:        e.ID,
		Title:     e.Title,
		Members:   e.Members,
		Thumbnail: e.Thumbnail,
		URL:       e.URL,
		Duration:  time.Duration(e.DurationSec) * time.Second,
	}
	if t, err := time.Parse(time.RFC3339, e.PublishedAt); err == nil {
		out.PublishedAt = t
	}
	return out
}
