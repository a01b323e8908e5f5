package store

import (
	"context"
	"time"
)

// SweepResult counts what one sweep evicted.
type SweepResult struct {
	Sessions int
	Audio    int
}

// Sweep evicts sessions idle longer than the session TTL and audio older than
// the audio TTL. Leased sessions are never evicted. A zero TTL disables that half.
func (m *Memory) Sweep() SweepResult {
	m.mu.Lock()
	defer m.mu.Unlock()

	var res SweepResult
	if m.closed {
		return res
	}
	now := m.now()

	if m.sessionTTL > 0 {
		for id, e := range m.sessions {
			if e.leased || now.Sub(e.touched) < m.sessionTTL {
				continue
			}
			delete(m.sessions, id)
			res.Sessions++
			m.logger.Info("Sweeper evicted idle session",
				"session_id", id,
				"idle", now.Sub(e.touched).Round(time.Second),
				"turn", e.session.TurnCount)
		}
	}

	for key, id := range m.startKeys {
		if _, ok := m.sessions[id]; !ok {
			delete(m.startKeys, key)
		}
	}

	if m.audioTTL > 0 {
		for id, a := range m.audio {
			if now.Sub(a.CreatedAt) < m.audioTTL {
				continue
			}
			delete(m.audio, id)
			res.Audio++
		}
	}

	return res
}

// StartSweeper runs Sweep every interval until ctx is done. The returned
// channel is closed when the goroutine exits.
func (m *Memory) StartSweeper(ctx context.Context, interval time.Duration) <-chan struct{} {
	done := make(chan struct{})
	ticker := time.NewTicker(interval)

	go func() {
		defer close(done)
		defer ticker.Stop()
		m.logger.Info("Session sweeper started",
			"interval", interval,
			"session_ttl", m.sessionTTL,
			"audio_ttl", m.audioTTL)

		for {
			select {
			case <-ticker.C:
				if res := m.Sweep(); res.Sessions > 0 || res.Audio > 0 {
					m.logger.Info("Session sweep completed",
						"sessions_evicted", res.Sessions,
						"audio_evicted", res.Audio)
				}
			case <-ctx.Done():
				m.logger.Info("Session sweeper shutting down", "reason", ctx.Err())
				return
			}
		}
	}()

	return done
}
