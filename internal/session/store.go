// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package session persists research records and serializes the actions run
// against them. A Store keeps one record per session plus its transition
// history; the Manager enforces one in-flight action per session and
// implements reset as cancellation.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/pdiddy/validation-engine/pkg/types"
)

var (
	// ErrNotFound is returned when no session has the requested ID.
	ErrNotFound = errors.New("session not found")
	// ErrInconsistentRecord is returned by Load when the stored record fails
	// validation. Reset recovers the session.
	ErrInconsistentRecord = errors.New("inconsistent record; reset the session to recover")
)

// Session is a stored research record.
type Session struct {
	ID        string               `json:"id" yaml:"id"`
	Record    types.ResearchRecord `json:"record" yaml:"record"`
	CreatedAt time.Time            `json:"created_at" yaml:"created_at"`
	UpdatedAt time.Time            `json:"updated_at" yaml:"updated_at"`
}

// Transition is one entry in a session's action history.
type Transition struct {
	Action  string      `json:"action" yaml:"action"`
	Value   string      `json:"value,omitempty" yaml:"value,omitempty"`
	From    types.Phase `json:"from" yaml:"from"`
	To      types.Phase `json:"to" yaml:"to"`
	Outcome string      `json:"outcome" yaml:"outcome"`
	Error   string      `json:"error,omitempty" yaml:"error,omitempty"`
	At      time.Time   `json:"at" yaml:"at"`
}

// Store persists sessions. Implementations must be safe for concurrent use.
type Store interface {
	// Create inserts a new session. It fails if the ID already exists.
	Create(ctx context.Context, s Session) error
	// Load returns the session with id, or ErrNotFound.
	Load(ctx context.Context, id string) (Session, error)
	// Save overwrites the record of an existing session and bumps UpdatedAt.
	Save(ctx context.Context, s Session) error
	// Delete removes the session and its history. Deleting a missing
	// session returns ErrNotFound.
	Delete(ctx context.Context, id string) error
	// List returns all sessions, most recently updated first.
	List(ctx context.Context) ([]Session, error)
	// AppendHistory records a transition attempt.
	AppendHistory(ctx context.Context, id string, t Transition) error
	// History returns the transitions of a session, oldest first.
	History(ctx context.Context, id string) ([]Transition, error)
	Close() error
}

// NewStore opens the backend selected by cfg.
func NewStore(ctx context.Context, cfg types.SessionConfig) (Store, error) {
	switch cfg.Backend {
	case types.SessionSQLite, "":
		return NewSQLiteStore(cfg.StateDir)
	case types.SessionRedis:
		return NewRedisStore(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown session backend %q (want sqlite or redis)", cfg.Backend)
	}
}

// checkRecord rejects stored records that violate the record invariants.
func checkRecord(id string, rec types.ResearchRecord) error {
	if err := rec.Validate(); err != nil {
		return fmt.Errorf("session %s: %w: %v", id, ErrInconsistentRecord, err)
	}
	return nil
}
