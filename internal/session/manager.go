// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package session

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pdiddy/validation-engine/internal/metrics"
	"github.com/pdiddy/validation-engine/internal/pipeline"
	"github.com/pdiddy/validation-engine/pkg/types"
)

var (
	// ErrSessionBusy is returned when an action is already running for the session.
	ErrSessionBusy = errors.New("an action is already running for this session")
	// ErrDiscarded is returned to an action whose session was reset or
	// deleted while it ran. Its result is not persisted.
	ErrDiscarded = errors.New("session was reset while the action ran; result discarded")
)

// Applier runs one action against a record. *pipeline.Controller satisfies it.
type Applier interface {
	Apply(ctx context.Context, rec types.ResearchRecord, a pipeline.Action) (types.ResearchRecord, error)
}

// Manager runs actions against stored sessions. At most one non-reset action
// runs per session; Reset and Delete cancel the running action and make sure
// its result is never written back.
type Manager struct {
	store  Store
	ctrl   Applier
	logger *zap.Logger
	now    func() time.Time

	mu      sync.Mutex // guards entries and entry.refs
	entries map[string]*entry
}

// entry is the in-memory state of a session with work in progress. It lives
// only while some call holds a reference.
type entry struct {
	refs int

	busy sync.Mutex // held for the duration of a non-reset action

	mu     sync.Mutex // guards gen and cancel
	gen    uint64
	cancel context.CancelFunc

	saveMu sync.Mutex // serializes the stale check with the write
}

// NewManager returns a manager over store that applies actions with ctrl.
func NewManager(store Store, ctrl Applier, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		store:   store,
		ctrl:    ctrl,
		logger:  logger,
		now:     time.Now,
		entries: make(map[string]*entry),
	}
}

// acquire returns the entry for id and takes a reference to it. Every
// acquire is paired with a release.
func (m *Manager) acquire(id string) *entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[id]
	if !ok {
		e = &entry{}
		m.entries[id] = e
	}
	e.refs++
	return e
}

// release drops a reference and forgets the entry once nothing holds it.
func (m *Manager) release(id string, e *entry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e.refs--
	if e.refs == 0 && m.entries[id] == e {
		delete(m.entries, id)
	}
}

// Create starts a new session in the input phase.
func (m *Manager) Create(ctx context.Context) (Session, error) {
	now := m.now().UTC()
	sess := Session{
		ID:        uuid.NewString(),
		Record:    types.NewRecord(),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := m.store.Create(ctx, sess); err != nil {
		return Session{}, err
	}
	metrics.SessionCreated()
	m.logger.Info("session created", zap.String("session", sess.ID))
	return sess, nil
}

// Get loads a session.
func (m *Manager) Get(ctx context.Context, id string) (Session, error) {
	return m.store.Load(ctx, id)
}

// List returns every stored session.
func (m *Manager) List(ctx context.Context) ([]Session, error) {
	return m.store.List(ctx)
}

// History returns the transition log of a session.
func (m *Manager) History(ctx context.Context, id string) ([]Transition, error) {
	if _, err := m.store.Load(ctx, id); err != nil {
		return nil, err
	}
	return m.store.History(ctx, id)
}

// Apply runs a against the stored record of session id and persists the
// record the controller returns whenever it differs from the stored one, so
// the partial progress of a failed build and the cleared snippets of an empty
// mine are kept. A second action while one is running fails with ErrSessionBusy.
// Reset actions are routed to Reset and never wait.
func (m *Manager) Apply(ctx context.Context, id string, a pipeline.Action) (Session, error) {
	if a.Kind == pipeline.ActionReset {
		return m.Reset(ctx, id)
	}

	e := m.acquire(id)
	defer m.release(id, e)
	if !e.busy.TryLock() {
		return Session{}, ErrSessionBusy
	}
	defer e.busy.Unlock()

	done := metrics.SessionStarted()
	defer done()

	sess, err := m.store.Load(ctx, id)
	if err != nil {
		return Session{}, err
	}

	actx, cancel := context.WithCancel(ctx)
	e.mu.Lock()
	gen := e.gen
	e.cancel = cancel
	e.mu.Unlock()
	defer func() {
		e.mu.Lock()
		e.cancel = nil
		e.mu.Unlock()
		cancel()
	}()

	next, aerr := m.ctrl.Apply(actx, sess.Record, a)

	e.saveMu.Lock()
	defer e.saveMu.Unlock()

	e.mu.Lock()
	stale := e.gen != gen
	e.mu.Unlock()
	if stale {
		metrics.ResultDiscarded()
		m.logger.Info("discarding result of reset session",
			zap.String("session", id), zap.String("action", string(a.Kind)))
		return Session{}, ErrDiscarded
	}

	from := sess.Record.Phase
	if aerr == nil || !reflect.DeepEqual(next, sess.Record) {
		sess.Record = next
		sess.UpdatedAt = m.now().UTC()
		if err := m.store.Save(ctx, sess); err != nil {
			return Session{}, fmt.Errorf("saving session %s: %w", id, err)
		}
	}
	m.appendHistory(ctx, id, a, from, sess.Record, aerr)
	return sess, aerr
}

// Reset returns session id to a fresh record. Any action in flight is
// cancelled and its result dropped.
func (m *Manager) Reset(ctx context.Context, id string) (Session, error) {
	e := m.acquire(id)
	defer m.release(id, e)
	e.invalidate()

	e.saveMu.Lock()
	defer e.saveMu.Unlock()

	sess, err := m.store.Load(ctx, id)
	if errors.Is(err, ErrInconsistentRecord) {
		sess, err = Session{ID: id}, nil
	}
	if err != nil {
		return Session{}, err
	}

	from := sess.Record.Phase
	next, aerr := m.ctrl.Apply(ctx, sess.Record, pipeline.Action{Kind: pipeline.ActionReset})
	if aerr != nil {
		return Session{}, aerr
	}
	sess.Record = next
	sess.UpdatedAt = m.now().UTC()
	if err := m.store.Save(ctx, sess); err != nil {
		return Session{}, fmt.Errorf("saving session %s: %w", id, err)
	}
	m.appendHistory(ctx, id, pipeline.Action{Kind: pipeline.ActionReset}, from, next, nil)
	return sess, nil
}

// Delete cancels any running action and removes the session.
func (m *Manager) Delete(ctx context.Context, id string) error {
	e := m.acquire(id)
	defer m.release(id, e)
	e.invalidate()

	e.saveMu.Lock()
	err := m.store.Delete(ctx, id)
	e.saveMu.Unlock()
	if err != nil {
		return err
	}
	m.logger.Info("session deleted", zap.String("session", id))
	return nil
}

// invalidate bumps the session generation and cancels the running action.
func (e *entry) invalidate() {
	e.mu.Lock()
	e.gen++
	if e.cancel != nil {
		e.cancel()
	}
	e.mu.Unlock()
}

func (m *Manager) appendHistory(ctx context.Context, id string, a pipeline.Action, from types.Phase, next types.ResearchRecord, aerr error) {
	t := Transition{
		Action:  string(a.Kind),
		Value:   a.Value,
		From:    from,
		To:      next.Phase,
		Outcome: pipeline.OutcomeOf(a.Kind, next, aerr),
		At:      m.now().UTC(),
	}
	if aerr != nil {
		t.Error = aerr.Error()
	}
	if err := m.store.AppendHistory(ctx, id, t); err != nil {
		m.logger.Warn("could not record history", zap.String("session", id), zap.Error(err))
	}
}
