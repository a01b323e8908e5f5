package stream

import (
	"time"

	"github.com/ashureev/voice-coach/internal/turn"
)

// historySize is how many recent events a late subscriber is replayed.
const historySize = 16

// eventRing keeps the most recent events of one session, overwriting the
// oldest once full. Callers hold Hub.mu.
type eventRing struct {
	buf      []turn.Event
	head     int // write position
	full     bool
	lastSeen time.Time
}

func newEventRing(size int) *eventRing {
	if size <= 0 {
		size = historySize
	}
	return &eventRing{buf: make([]turn.Event, size)}
}

func (r *eventRing) push(ev turn.Event, now time.Time) {
	r.buf[r.head] = ev
	r.head = (r.head + 1) % len(r.buf)
	if r.head == 0 {
		r.full = true
	}
	r.lastSeen = now
}

// snapshot returns the events oldest first.
func (r *eventRing) snapshot() []turn.Event {
	if !r.full {
		out := make([]turn.Event, r.head)
		copy(out, r.buf[:r.head])
		return out
	}
	out := make([]turn.Event, 0, len(r.buf))
	out = append(out, r.buf[r.head:]...)
	return append(out, r.buf[:r.head]...)
}

func (r *eventRing) len() int {
	if r.full {
		return len(r.buf)
	}
	return r.head
}
