package episode

import "time"

// List is an ordered sequence of episodes.
type List []Episode

// IDs returns all episode IDs in order.
func (l List) IDs() []string {
	ids := make([]string, len(l))
	for i, e := range l {
		ids[i] = e.ID
	}
	return ids
}

// TotalDuration returns the total duration of all episodes.
func (l List) TotalDuration() time.Duration {
	var total time.Duration
	for _, e := range l {
		total += e.Duration
	}
	return total
}

// IndexOf returns the position of the first episode with the given ID, or -1.
func (l List) IndexOf(id string) int {
	for i, e := range l {
		if e.ID == id {
			return i
		}
	}
	return -1
}
