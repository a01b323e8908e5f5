// Package store provides the in-process session and audio repositories.
package store

import (
	"context"
	"errors"

	"github.com/ashureev/voice-coach/internal/domain"
)

var (
	// ErrNotFound is returned for unknown or expired session and audio ids.
	ErrNotFound = errors.New("not found")
	// ErrBusy is returned when a session is already leased by another request.
	ErrBusy = errors.New("session busy")
	// ErrLeaseReleased is returned when a released lease is used.
	ErrLeaseReleased = errors.New("lease released")
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("store closed")
)

// Repository defines session and audio persistence for the coaching service.
type Repository interface {
	// Create stores a new session with the given traits and no turns.
	Create(ctx context.Context, traits []string) (*domain.Session, error)

	// CreateDeduped behaves like Create but collapses concurrent calls sharing key
	// into a single session. An empty key never dedupes.
	CreateDeduped(ctx context.Context, key string, traits []string) (*domain.Session, error)

	// Get returns a copy of the session.
	Get(ctx context.Context, id string) (*domain.Session, error)

	// Delete removes the session. Deleting an unknown id is not an error.
	Delete(ctx context.Context, id string) error

	// Acquire takes the exclusive per-session lease. It never blocks: a session
	// already leased yields ErrBusy.
	Acquire(ctx context.Context, id string) (*Lease, error)

	// PutAudio stores a synthesized reply and returns its id.
	PutAudio(ctx context.Context, data []byte, mimeType string) (string, error)

	// TakeAudio returns and removes an audio artifact.
	TakeAudio(ctx context.Context, id string) (*domain.AudioArtifact, error)

	// Stats reports current occupancy.
	Stats() Stats

	// Ping reports whether the store is usable.
	Ping(ctx context.Context) error

	// Close drops all state; later calls return ErrClosed.
	Close() error
}

// Stats is a point-in-time occupancy snapshot.
type Stats struct {
	Sessions int `json:"sessions"`
	Leased   int `json:"leased"`
	Audio    int `json:"audio"`
}
