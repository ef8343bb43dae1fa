package player

// EventType represents a player event type.
type EventType int

const (
	EventQueueReplaced   EventType = iota // Play or PlayList loaded a new queue
	EventIndexChanged                     // Current index moved
	EventTransportChanged                 // Playing, looping or shuffling flag changed
	EventQueueCleared                     // Queue emptied
)

// String returns the string representation of the event type.
func (e EventType) String() string {
	switch e {
	case EventQueueReplaced:
		return "queue_replaced"
	case EventIndexChanged:
		return "index_changed"
	case EventTransportChanged:
		return "transport_changed"
	case EventQueueCleared:
		return "queue_cleared"
	default:
		return "unknown"
	}
}

// Event is emitted after every transition that changed the state.
type Event struct {
	Type     EventType
	Snapshot Snapshot // State right after the transition
}

// Listener receives player events.
type Listener func(Event)
