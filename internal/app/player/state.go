// Package player provides the player state manager shared by the UI surfaces.
package player

import "github.com/osa030/podplay/internal/domain/episode"

// State is the playback queue and transport flags of one player.
// CurrentIndex is in [0, len(Episodes)) whenever Episodes is non-empty.
type State struct {
	Episodes     []episode.Episode
	CurrentIndex int
	IsPlaying    bool
	IsLooping    bool
	IsShuffling  bool
}

// HasNext reports whether PlayNext can move. Always true while shuffling,
// even on an empty queue.
func (s State) HasNext() bool {
	return s.IsShuffling || s.CurrentIndex+1 < len(s.Episodes)
}

// HasPrevious reports whether PlayPrevious can move.
func (s State) HasPrevious() bool {
	return s.CurrentIndex > 0
}

// Current returns the active episode, or false when the queue is empty.
func (s State) Current() (episode.Episode, bool) {
	if s.CurrentIndex < 0 || s.CurrentIndex >= len(s.Episodes) {
		return episode.Episode{}, false
	}
	return s.Episodes[s.CurrentIndex], true
}

// clone returns a copy whose queue does not share memory with s.
func (s State) clone() State {
	c := s
	c.Episodes = make([]episode.Episode, len(s.Episodes))
	copy(c.Episodes, s.Episodes)
	return c
}

// Snapshot is a read-only copy of the state together with its derived values.
type Snapshot struct {
	State
	HasNext     bool
	HasPrevious bool
	Current     *episode.Episode // nil when the queue is empty
}

func newSnapshot(s State) Snapshot {
	snap := Snapshot{
		State:       s.clone(),
		HasNext:     s.HasNext(),
		HasPrevious: s.HasPrevious(),
	}
	if e, ok := snap.State.Current(); ok {
		snap.Current = &e
	}
	return snap
}
