package player

import (
	"math/rand/v2"
	"sync"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/podplay/internal/domain/episode"
)

// Errors
var (
	ErrEmptyList       = errors.New("episode list is empty")
	ErrIndexOutOfRange = errors.New("episode index out of range")
)

// Randomizer picks shuffle positions. Intn must return a value in [0, n).
type Randomizer interface {
	Intn(n int) int
}

// RandomizerFunc adapts a function to Randomizer.
type RandomizerFunc func(n int) int

// Intn implements Randomizer.
func (f RandomizerFunc) Intn(n int) int {
	return f(n)
}

// Config holds player configuration.
type Config struct {
	ID         string     // Used in log lines only
	Randomizer Randomizer // Defaults to math/rand/v2
}

// Player holds one PlayerState and the transitions over it.
// Transitions are serialised; listeners run after each effective transition,
// outside the state lock, in transition order. Listeners may read the player
// but must not call transitions on it.
type Player struct {
	opMu sync.Mutex   // serialises transitions and their notifications
	mu   sync.RWMutex // guards state and listeners

	id        string
	state     State
	rand      Randomizer
	listeners []Listener
}

// New creates a player with an empty queue and all flags off.
func New(cfg Config) *Player {
	r := cfg.Randomizer
	if r == nil {
		r = RandomizerFunc(rand.IntN)
	}
	return &Player{
		id:    cfg.ID,
		state: State{Episodes: make([]episode.Episode, 0)},
		rand:  r,
	}
}

// OnChange registers a listener for state changes.
func (p *Player) OnChange(l Listener) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.listeners = append(p.listeners, l)
}

// Snapshot returns a copy of the current state and its derived values.
func (p *Player) Snapshot() Snapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return newSnapshot(p.state)
}

// Observe calls fn with the current snapshot while no transition can run, so
// a subscriber registered inside fn receives every later change and none
// earlier. fn must not call transitions on the same player.
func (p *Player) Observe(fn func(Snapshot)) {
	p.opMu.Lock()
	defer p.opMu.Unlock()
	fn(p.Snapshot())
}

// HasNext reports whether PlayNext would move.
func (p *Player) HasNext() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.state.HasNext()
}

// HasPrevious reports whether PlayPrevious would move.
func (p *Player) HasPrevious() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.state.HasPrevious()
}

// Play replaces the queue with the single episode e and starts playing it.
func (p *Player) Play(e episode.Episode) {
	p.apply(func(s *State) (EventType, bool) {
		s.Episodes = []episode.Episode{e}
		s.CurrentIndex = 0
		s.IsPlaying = true
		return EventQueueReplaced, true
	})
}

// PlayList replaces the queue with a copy of list and starts playing at index.
// An empty list or an index outside the list is rejected and leaves the state untouched.
func (p *Player) PlayList(list []episode.Episode, index int) error {
	if len(list) == 0 {
		return ErrEmptyList
	}
	if index < 0 || index >= len(list) {
		return errors.Wrapf(ErrIndexOutOfRange, "index %d, list length %d", index, len(list))
	}

	queue := make([]episode.Episode, len(list))
	copy(queue, list)

	p.apply(func(s *State) (EventType, bool) {
		s.Episodes = queue
		s.CurrentIndex = index
		s.IsPlaying = true
		return EventQueueReplaced, true
	})
	return nil
}

// PlayNext moves to a random episode while shuffling, otherwise to the
// following one. Without a following episode it does nothing.
func (p *Player) PlayNext() {
	p.apply(p.nextLocked)
}

// PlayPrevious moves to the preceding episode, if any.
func (p *Player) PlayPrevious() {
	p.apply(func(s *State) (EventType, bool) {
		if !s.HasPrevious() {
			return 0, false
		}
		s.CurrentIndex--
		return EventIndexChanged, true
	})
}

// TogglePlay flips the playing flag.
func (p *Player) TogglePlay() {
	p.apply(func(s *State) (EventType, bool) {
		s.IsPlaying = !s.IsPlaying
		return EventTransportChanged, true
	})
}

// ToggleLoop flips the looping flag.
func (p *Player) ToggleLoop() {
	p.apply(func(s *State) (EventType, bool) {
		s.IsLooping = !s.IsLooping
		return EventTransportChanged, true
	})
}

// ToggleShuffle flips the shuffling flag.
func (p *Player) ToggleShuffle() {
	p.apply(func(s *State) (EventType, bool) {
		s.IsShuffling = !s.IsShuffling
		return EventTransportChanged, true
	})
}

// SetPlayingState sets the playing flag. The playback surface calls this to
// report pauses and resumes that did not go through TogglePlay.
func (p *Player) SetPlayingState(playing bool) {
	p.apply(func(s *State) (EventType, bool) {
		if s.IsPlaying == playing {
			return 0, false
		}
		s.IsPlaying = playing
		return EventTransportChanged, true
	})
}

// ClearPlayingState empties the queue and resets the index.
// The playing, looping and shuffling flags are kept.
func (p *Player) ClearPlayingState() {
	p.apply(clearLocked)
}

// EpisodeEnded is reported by the playback surface when the current episode
// finished. While looping the surface replays it and nothing changes; otherwise
// the player advances, or clears the queue when there is nothing left.
func (p *Player) EpisodeEnded() {
	p.apply(func(s *State) (EventType, bool) {
		if s.IsLooping {
			return 0, false
		}
		if s.HasNext() && len(s.Episodes) > 0 {
			return p.nextLocked(s)
		}
		return clearLocked(s)
	})
}

// nextLocked implements PlayNext. A shuffle pick always counts as a change,
// even when it lands on the current index, so the surface restarts playback.
// Must be called with p.mu held.
func (p *Player) nextLocked(s *State) (EventType, bool) {
	if s.IsShuffling {
		if len(s.Episodes) == 0 {
			zlog.Debug().Msgf("player: shuffle next on empty queue ignored: player=%s", p.id)
			return 0, false
		}
		s.CurrentIndex = p.rand.Intn(len(s.Episodes))
		return EventIndexChanged, true
	}
	if !s.HasNext() {
		return 0, false
	}
	s.CurrentIndex++
	return EventIndexChanged, true
}

// clearLocked implements ClearPlayingState. Must be called with p.mu held.
func clearLocked(s *State) (EventType, bool) {
	if len(s.Episodes) == 0 && s.CurrentIndex == 0 {
		return 0, false
	}
	s.Episodes = make([]episode.Episode, 0)
	s.CurrentIndex = 0
	return EventQueueCleared, true
}

// apply runs fn under the state lock and notifies listeners when fn reports a change.
func (p *Player) apply(fn func(s *State) (EventType, bool)) {
	p.opMu.Lock()
	defer p.opMu.Unlock()

	p.mu.Lock()
	typ, changed := fn(&p.state)
	if !changed {
		p.mu.Unlock()
		return
	}
	ev := Event{Type: typ, Snapshot: newSnapshot(p.state)}
	listeners := make([]Listener, len(p.listeners))
	copy(listeners, p.listeners)
	p.mu.Unlock()

	zlog.Debug().Msgf("player: %s: player=%s index=%d queue=%d playing=%v looping=%v shuffling=%v",
		typ, p.id, ev.Snapshot.CurrentIndex, len(ev.Snapshot.Episodes),
		ev.Snapshot.IsPlaying, ev.Snapshot.IsLooping, ev.Snapshot.IsShuffling)

	for _, l := range listeners {
		l(ev)
	}
}
