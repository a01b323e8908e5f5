// Package stream pushes turn state transitions to WebSocket subscribers.
package stream

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/ashureev/voice-coach/internal/turn"
)

// subscriberBuffer bounds how far a slow subscriber may lag before events are
// dropped. It must hold a full history replay.
const subscriberBuffer = 2 * historySize

// Subscription receives events for one coaching session.
type Subscription struct {
	C         <-chan turn.Event
	ch        chan turn.Event
	sessionID string
	id        uint64
}

// Hub fans turn events out to the subscribers of each session. It implements
// turn.Observer and never blocks the turn that emits. Recent events are kept
// per session so a subscriber that connects mid-turn catches up.
type Hub struct {
	mu      sync.RWMutex
	active  map[string]map[uint64]*Subscription
	history map[string]*eventRing
	nextID  uint64
	logger  *slog.Logger
	now     func() time.Time
}

var _ turn.Observer = (*Hub)(nil)

// NewHub creates an empty hub.
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		active:  make(map[string]map[uint64]*Subscription),
		history: make(map[string]*eventRing),
		logger:  logger,
		now:     time.Now,
	}
}

// Subscribe registers a subscriber for sessionID.
func (h *Hub) Subscribe(sessionID string) *Subscription {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.nextID++
	ch := make(chan turn.Event, subscriberBuffer)
	sub := &Subscription{C: ch, ch: ch, sessionID: sessionID, id: h.nextID}

	if _, ok := h.active[sessionID]; !ok {
		h.active[sessionID] = make(map[uint64]*Subscription)
	}
	h.active[sessionID][sub.id] = sub

	if ring, ok := h.history[sessionID]; ok {
		for _, ev := range ring.snapshot() {
			ch <- ev
		}
	}

	h.logger.Info("Turn stream subscribed", "session_id", sessionID, "subscribers", len(h.active[sessionID]))
	return sub
}

// Unsubscribe removes sub and closes its channel. Unknown or already removed
// subscriptions are ignored.
func (h *Hub) Unsubscribe(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()

	subs, ok := h.active[sub.sessionID]
	if !ok {
		return
	}
	if current, exists := subs[sub.id]; exists && current == sub {
		delete(subs, sub.id)
		close(sub.ch)
		if len(subs) == 0 {
			delete(h.active, sub.sessionID)
		}
		h.logger.Info("Turn stream unsubscribed", "session_id", sub.sessionID)
	}
}

// Observe records ev and delivers it to every subscriber of its session.
func (h *Hub) Observe(ev turn.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	ring, ok := h.history[ev.SessionID]
	if !ok {
		ring = newEventRing(historySize)
		h.history[ev.SessionID] = ring
	}
	ring.push(ev, h.now())

	for _, sub := range h.active[ev.SessionID] {
		select {
		case sub.ch <- ev:
		default:
			h.logger.Warn("Turn stream subscriber lagging, dropping event",
				"session_id", ev.SessionID,
				"state", ev.State)
		}
	}
}

// CloseSession ends all subscriptions of sessionID.
func (h *Hub) CloseSession(sessionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	delete(h.history, sessionID)

	subs, ok := h.active[sessionID]
	if !ok {
		return
	}
	for _, sub := range subs {
		close(sub.ch)
	}
	delete(h.active, sessionID)
	h.logger.Info("Turn stream closed", "session_id", sessionID)
}

// Subscribers returns the number of subscribers of sessionID.
func (h *Hub) Subscribers(sessionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.active[sessionID])
}

// evictHistory drops the history of sessions without subscribers that have
// been quiet for longer than idle.
func (h *Hub) evictHistory(idle time.Duration) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	cutoff := h.now().Add(-idle)
	n := 0
	for id, ring := range h.history {
		if len(h.active[id]) == 0 && ring.lastSeen.Before(cutoff) {
			delete(h.history, id)
			n++
		}
	}
	return n
}

// StartEviction periodically drops idle session history until ctx is done.
func (h *Hub) StartEviction(ctx context.Context, idle time.Duration) {
	go func() {
		ticker := time.NewTicker(idle)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if n := h.evictHistory(idle); n > 0 {
					h.logger.Debug("Evicted idle turn stream history", "sessions", n)
				}
			case <-ctx.Done():
				return
			}
		}
	}()
}
