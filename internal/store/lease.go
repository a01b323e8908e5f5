package store

import (
	"fmt"

	"github.com/ashureev/voice-coach/internal/domain"
)

// Lease is exclusive, non-reentrant ownership of one session. Mutations are
// made on the working copy returned by Session and become visible to other
// readers only on Commit.
type Lease struct {
	store   *Memory
	id      string
	session *domain.Session

	released bool // guarded by store.mu
}

// ID returns the leased session id.
func (l *Lease) ID() string { return l.id }

// Session returns the lease's working copy.
func (l *Lease) Session() *domain.Session { return l.session }

// Commit publishes s as the session's new state. The lease stays held.
func (l *Lease) Commit(s *domain.Session) error {
	m := l.store
	m.mu.Lock()
	defer m.mu.Unlock()

	if l.released {
		return ErrLeaseReleased
	}
	if m.closed {
		return ErrClosed
	}
	e, ok := m.sessions[l.id]
	if !ok {
		return fmt.Errorf("session %s: %w", l.id, ErrNotFound)
	}

	now := m.now()
	s.UpdatedAt = now
	e.session = s.Clone()
	e.touched = now
	l.session = s
	return nil
}

// Delete removes the session and ends the lease.
func (l *Lease) Delete() error {
	m := l.store
	m.mu.Lock()
	defer m.mu.Unlock()

	if l.released {
		return ErrLeaseReleased
	}
	l.released = true
	delete(m.sessions, l.id)
	return nil
}

// Release ends the lease. It is safe to call more than once and after Delete.
func (l *Lease) Release() {
	m := l.store
	m.mu.Lock()
	defer m.mu.Unlock()

	if l.released {
		return
	}
	l.released = true
	if e, ok := m.sessions[l.id]; ok {
		e.leased = false
		e.touched = m.now()
	}
}
