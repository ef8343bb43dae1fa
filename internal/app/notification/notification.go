package notification

import "github.com/osa030/podplay/internal/app/player"

// Type represents a notification type.
type Type string

const (
	TypeInitialState Type = "initial_state" // Sent once when a subscriber connects
	TypeStateChanged Type = "state_changed" // Sent after every player transition
)

// Notification carries a player snapshot to subscribers.
type Notification struct {
	Type       Type
	SequenceNo uint64
	SessionID  string
	Event      string // player.EventType name, empty for initial state
	Snapshot   player.Snapshot
}
