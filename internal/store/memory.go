package store

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ashureev/voice-coach/internal/domain"
	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
)

const (
	sessionIDPrefix = "session_"
	audioIDPrefix   = "audio_"
)

// Options configures a Memory store.
type Options struct {
	SessionTTL time.Duration
	AudioTTL   time.Duration
	Logger     *slog.Logger
	// Now and NewID are overridable for tests.
	Now   func() time.Time
	NewID func() string
}

type sessionEntry struct {
	session *domain.Session
	leased  bool
	touched time.Time
}

// Memory is a Repository held entirely in process memory.
type Memory struct {
	mu       sync.RWMutex
	sessions map[string]*sessionEntry
	audio    map[string]*domain.AudioArtifact
	closed   bool

	creates   singleflight.Group
	startKeys map[string]string // idempotency key -> session id

	sessionTTL time.Duration
	audioTTL   time.Duration
	logger     *slog.Logger
	now        func() time.Time
	newID      func() string
}

var _ Repository = (*Memory)(nil)

// NewMemory creates an empty in-memory store.
func NewMemory(opts Options) *Memory {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}
	return &Memory{
		sessions:   make(map[string]*sessionEntry),
		audio:      make(map[string]*domain.AudioArtifact),
		startKeys:  make(map[string]string),
		sessionTTL: opts.SessionTTL,
		audioTTL:   opts.AudioTTL,
		logger:     opts.Logger,
		now:        opts.Now,
		newID:      opts.NewID,
	}
}

// Create stores a new session.
func (m *Memory) Create(_ context.Context, traits []string) (*domain.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, ErrClosed
	}

	now := m.now()
	s := domain.NewSession(sessionIDPrefix+m.newID(), traits, now)
	m.sessions[s.ID] = &sessionEntry{session: s, touched: now}

	m.logger.Info("Session created", "session_id", s.ID, "traits", s.Traits)
	return s.Clone(), nil
}

// CreateDeduped returns the session already created for key while it exists,
// and collapses concurrent creations that share key into one.
func (m *Memory) CreateDeduped(ctx context.Context, key string, traits []string) (*domain.Session, error) {
	if key == "" {
		return m.Create(ctx, traits)
	}
	if s, ok := m.sessionForKey(key); ok {
		m.logger.Debug("Reused session for repeated start", "idempotency_key", key, "session_id", s.ID)
		return s, nil
	}

	v, err, shared := m.creates.Do(key, func() (interface{}, error) {
		if s, ok := m.sessionForKey(key); ok {
			return s, nil
		}
		s, err := m.Create(ctx, traits)
		if err != nil {
			return nil, err
		}
		m.mu.Lock()
		if !m.closed {
			m.startKeys[key] = s.ID
		}
		m.mu.Unlock()
		return s, nil
	})
	if err != nil {
		return nil, err
	}
	if shared {
		m.logger.Debug("Collapsed duplicate session start", "idempotency_key", key)
	}
	return v.(*domain.Session).Clone(), nil
}

func (m *Memory) sessionForKey(key string) (*domain.Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.startKeys[key]
	if !ok {
		return nil, false
	}
	e, ok := m.sessions[id]
	if !ok {
		return nil, false
	}
	return e.session.Clone(), true
}

// Get returns a copy of the session.
func (m *Memory) Get(_ context.Context, id string) (*domain.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrClosed
	}
	e, ok := m.sessions[id]
	if !ok {
		return nil, fmt.Errorf("session %s: %w", id, ErrNotFound)
	}
	return e.session.Clone(), nil
}

// Delete removes the session.
func (m *Memory) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}
	delete(m.sessions, id)
	return nil
}

// Acquire leases the session for exclusive mutation.
func (m *Memory) Acquire(_ context.Context, id string) (*Lease, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, ErrClosed
	}
	e, ok := m.sessions[id]
	if !ok {
		return nil, fmt.Errorf("session %s: %w", id, ErrNotFound)
	}
	if e.leased {
		return nil, fmt.Errorf("session %s: %w", id, ErrBusy)
	}
	e.leased = true
	e.touched = m.now()

	return &Lease{store: m, id: id, session: e.session.Clone()}, nil
}

// PutAudio stores an audio artifact for one later fetch.
func (m *Memory) PutAudio(_ context.Context, data []byte, mimeType string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return "", ErrClosed
	}
	a := &domain.AudioArtifact{
		ID:        audioIDPrefix + m.newID(),
		Data:      data,
		MimeType:  mimeType,
		CreatedAt: m.now(),
	}
	m.audio[a.ID] = a
	return a.ID, nil
}

// TakeAudio returns the artifact and forgets it.
func (m *Memory) TakeAudio(_ context.Context, id string) (*domain.AudioArtifact, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, ErrClosed
	}
	a, ok := m.audio[id]
	if !ok {
		return nil, fmt.Errorf("audio %s: %w", id, ErrNotFound)
	}
	delete(m.audio, id)
	return a, nil
}

// Stats reports current occupancy.
func (m *Memory) Stats() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	st := Stats{Sessions: len(m.sessions), Audio: len(m.audio)}
	for _, e := range m.sessions {
		if e.leased {
			st.Leased++
		}
	}
	return st
}

// Len returns the number of live sessions.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Ping reports ErrClosed after Close.
func (m *Memory) Ping(_ context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return ErrClosed
	}
	return nil
}

// Close drops all sessions and audio.
func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil
	}
	m.closed = true
	m.logger.Info("Session store closed", "sessions", len(m.sessions), "audio", len(m.audio))
	m.sessions = map[string]*sessionEntry{}
	m.audio = map[string]*domain.AudioArtifact{}
	m.startKeys = map[string]string{}
	return nil
}
