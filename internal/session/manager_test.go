// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package session

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/validation-engine/internal/pipeline"
	"github.com/pdiddy/validation-engine/pkg/types"
)

// --- mock controller ---

type applyFunc func(ctx context.Context, rec types.ResearchRecord, a pipeline.Action) (types.ResearchRecord, error)

// fakeController resets to a fresh record and delegates everything else.
type fakeController struct {
	fn applyFunc
}

func (f *fakeController) Apply(ctx context.Context, rec types.ResearchRecord, a pipeline.Action) (types.ResearchRecord, error) {
	if a.Kind == pipeline.ActionReset {
		return types.NewRecord(), nil
	}
	return f.fn(ctx, rec, a)
}

func analyzeTo(market string) applyFunc {
	return func(_ context.Context, rec types.ResearchRecord, a pipeline.Action) (types.ResearchRecord, error) {
		if a.Kind != pipeline.ActionAnalyze {
			return rec, fmt.Errorf("%w: %s", pipeline.ErrWrongPhase, a.Kind)
		}
		return level1Record(market), nil
	}
}

// blockingApply signals started, then waits for release or cancellation.
func blockingApply(started chan<- struct{}, release <-chan struct{}) applyFunc {
	return func(ctx context.Context, rec types.ResearchRecord, _ pipeline.Action) (types.ResearchRecord, error) {
		close(started)
		select {
		case <-release:
			return level1Record("Slow"), nil
		case <-ctx.Done():
			return rec, ctx.Err()
		}
	}
}

func newManager(t *testing.T, fn applyFunc) (*Manager, Store) {
	t.Helper()
	store := newSQLiteStore(t)
	return NewManager(store, &fakeController{fn: fn}, nil), store
}

// tracked reports how many sessions hold in-memory state.
func tracked(m *Manager) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

func TestManagerCreate(t *testing.T) {
	m, _ := newManager(t, analyzeTo("Wealth"))
	ctx := context.Background()

	a, err := m.Create(ctx)
	require.NoError(t, err)
	b, err := m.Create(ctx)
	require.NoError(t, err)

	assert.NotEqual(t, a.ID, b.ID)
	assert.Equal(t, types.PhaseInput, a.Record.Phase)

	got, err := m.Get(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, types.NewRecord(), got.Record)

	list, err := m.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 2)
}

func TestManagerApplyPersists(t *testing.T) {
	m, store := newManager(t, analyzeTo("Wealth"))
	ctx := context.Background()
	sess, err := m.Create(ctx)
	require.NoError(t, err)

	got, err := m.Apply(ctx, sess.ID, pipeline.Action{Kind: pipeline.ActionAnalyze, Value: "Wealth"})
	require.NoError(t, err)
	assert.Equal(t, types.PhaseLevel1, got.Record.Phase)

	stored, err := store.Load(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, level1Record("Wealth"), stored.Record)

	hist, err := m.History(ctx, sess.ID)
	require.NoError(t, err)
	require.Len(t, hist, 1)
	assert.Equal(t, Transition{
		Action:  "analyze",
		Value:   "Wealth",
		From:    types.PhaseInput,
		To:      types.PhaseLevel1,
		Outcome: pipeline.OutcomeAdvanced,
		At:      hist[0].At,
	}, hist[0])
}

func TestManagerRejectedActionKeepsRecord(t *testing.T) {
	m, store := newManager(t, analyzeTo("Wealth"))
	ctx := context.Background()
	sess, err := m.Create(ctx)
	require.NoError(t, err)
	before, err := store.Load(ctx, sess.ID)
	require.NoError(t, err)

	_, err = m.Apply(ctx, sess.ID, pipeline.Action{Kind: pipeline.ActionMine})
	assert.ErrorIs(t, err, pipeline.ErrWrongPhase)

	after, err := store.Load(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, before, after, "a rejected action writes nothing")

	hist, err := m.History(ctx, sess.ID)
	require.NoError(t, err)
	require.Len(t, hist, 1)
	assert.Equal(t, pipeline.OutcomeRejected, hist[0].Outcome)
	assert.Contains(t, hist[0].Error, "mine")
}

func TestManagerSavesPartialProgressOnFailure(t *testing.T) {
	upstream := errors.New("moat generation failed")
	m, store := newManager(t, func(_ context.Context, rec types.ResearchRecord, _ pipeline.Action) (types.ResearchRecord, error) {
		next := rec.Clone()
		next.PainPoints = "pain"
		next.Opportunity = "idea"
		next.Phase = types.PhaseSynthesizing
		return next, upstream
	})
	ctx := context.Background()
	sess, err := m.Create(ctx)
	require.NoError(t, err)

	sess.Record = miningRecord()
	require.NoError(t, store.Save(ctx, sess))

	got, err := m.Apply(ctx, sess.ID, pipeline.Action{Kind: pipeline.ActionBuild})
	assert.ErrorIs(t, err, upstream)
	assert.Equal(t, types.PhaseSynthesizing, got.Record.Phase)

	stored, err := store.Load(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, "idea", stored.Record.Opportunity)
}

func TestManagerPersistsClearedRecordOnFailure(t *testing.T) {
	empty := errors.New("no snippets")
	m, store := newManager(t, func(_ context.Context, rec types.ResearchRecord, _ pipeline.Action) (types.ResearchRecord, error) {
		next := rec.Clone()
		next.Snippets = []string{}
		return next, empty
	})
	ctx := context.Background()
	sess, err := m.Create(ctx)
	require.NoError(t, err)
	sess.Record = miningRecord()
	require.NoError(t, store.Save(ctx, sess))

	_, err = m.Apply(ctx, sess.ID, pipeline.Action{Kind: pipeline.ActionMine})
	assert.ErrorIs(t, err, empty)

	stored, err := store.Load(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, types.PhaseMining, stored.Record.Phase)
	assert.Empty(t, stored.Record.Snippets)
}

func TestManagerForgetsIdleSessions(t *testing.T) {
	m, _ := newManager(t, analyzeTo("Wealth"))
	ctx := context.Background()

	for i := 0; i < 100; i++ {
		id := fmt.Sprintf("unknown-%d", i)
		_, err := m.Apply(ctx, id, pipeline.Action{Kind: pipeline.ActionAnalyze, Value: "x"})
		assert.ErrorIs(t, err, ErrNotFound)
		_, err = m.Reset(ctx, id)
		assert.ErrorIs(t, err, ErrNotFound)
	}
	assert.Zero(t, tracked(m))

	sess, err := m.Create(ctx)
	require.NoError(t, err)
	_, err = m.Apply(ctx, sess.ID, pipeline.Action{Kind: pipeline.ActionAnalyze, Value: "Wealth"})
	require.NoError(t, err)
	_, err = m.Reset(ctx, sess.ID)
	require.NoError(t, err)
	assert.Zero(t, tracked(m))
}

func TestManagerTracksOnlyRunningActions(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	m, _ := newManager(t, blockingApply(started, release))
	ctx := context.Background()
	sess, err := m.Create(ctx)
	require.NoError(t, err)

	errc := make(chan error, 1)
	go func() {
		_, err := m.Apply(ctx, sess.ID, pipeline.Action{Kind: pipeline.ActionAnalyze, Value: "Slow"})
		errc <- err
	}()
	<-started
	assert.Equal(t, 1, tracked(m))

	close(release)
	require.NoError(t, <-errc)
	assert.Zero(t, tracked(m))
}

func TestManagerNotFound(t *testing.T) {
	m, _ := newManager(t, analyzeTo("Wealth"))
	ctx := context.Background()

	_, err := m.Apply(ctx, "nope", pipeline.Action{Kind: pipeline.ActionAnalyze, Value: "x"})
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = m.Reset(ctx, "nope")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, m.Delete(ctx, "nope"), ErrNotFound)
	_, err = m.History(ctx, "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestManagerRejectsConcurrentAction(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	m, _ := newManager(t, blockingApply(started, release))
	ctx := context.Background()
	sess, err := m.Create(ctx)
	require.NoError(t, err)

	errc := make(chan error, 1)
	go func() {
		_, err := m.Apply(ctx, sess.ID, pipeline.Action{Kind: pipeline.ActionAnalyze, Value: "Slow"})
		errc <- err
	}()
	<-started

	_, err = m.Apply(ctx, sess.ID, pipeline.Action{Kind: pipeline.ActionAnalyze, Value: "Fast"})
	assert.ErrorIs(t, err, ErrSessionBusy)

	close(release)
	require.NoError(t, <-errc)

	got, err := m.Get(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, "Slow", got.Record.CoreMarket)
}

func TestManagerResetDiscardsInFlightResult(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	m, _ := newManager(t, func(ctx context.Context, rec types.ResearchRecord, _ pipeline.Action) (types.ResearchRecord, error) {
		close(started)
		<-release
		// Ignores cancellation to prove the stale result is still dropped.
		return level1Record("Stale"), nil
	})
	ctx := context.Background()
	sess, err := m.Create(ctx)
	require.NoError(t, err)

	errc := make(chan error, 1)
	go func() {
		_, err := m.Apply(ctx, sess.ID, pipeline.Action{Kind: pipeline.ActionAnalyze, Value: "Stale"})
		errc <- err
	}()
	<-started

	reset, err := m.Apply(ctx, sess.ID, pipeline.Action{Kind: pipeline.ActionReset})
	require.NoError(t, err)
	assert.Equal(t, types.NewRecord(), reset.Record)

	close(release)
	assert.ErrorIs(t, <-errc, ErrDiscarded)

	got, err := m.Get(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, types.NewRecord(), got.Record, "reset wins over the in-flight action")
}

func TestManagerResetCancelsInFlightAction(t *testing.T) {
	started := make(chan struct{})
	m, _ := newManager(t, blockingApply(started, make(chan struct{})))
	ctx := context.Background()
	sess, err := m.Create(ctx)
	require.NoError(t, err)

	errc := make(chan error, 1)
	go func() {
		_, err := m.Apply(ctx, sess.ID, pipeline.Action{Kind: pipeline.ActionAnalyze, Value: "x"})
		errc <- err
	}()
	<-started

	_, err = m.Reset(ctx, sess.ID)
	require.NoError(t, err)

	select {
	case err := <-errc:
		assert.ErrorIs(t, err, ErrDiscarded)
	case <-time.After(5 * time.Second):
		t.Fatal("in-flight action was not cancelled")
	}
}

func TestManagerResetRecoversInconsistentRecord(t *testing.T) {
	m, store := newManager(t, analyzeTo("Wealth"))
	ctx := context.Background()
	sess, err := m.Create(ctx)
	require.NoError(t, err)

	_, err = store.(*SQLiteStore).db.Exec(`UPDATE sessions SET record = ? WHERE id = ?`,
		`{"phase":"bogus"}`, sess.ID)
	require.NoError(t, err)
	_, err = m.Get(ctx, sess.ID)
	assert.ErrorIs(t, err, ErrInconsistentRecord)
	_, err = m.Apply(ctx, sess.ID, pipeline.Action{Kind: pipeline.ActionAnalyze, Value: "Wealth"})
	assert.ErrorIs(t, err, ErrInconsistentRecord)

	got, err := m.Reset(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, types.NewRecord(), got.Record)

	loaded, err := m.Get(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, types.PhaseInput, loaded.Record.Phase)
}

func TestManagerDelete(t *testing.T) {
	m, _ := newManager(t, analyzeTo("Wealth"))
	ctx := context.Background()
	sess, err := m.Create(ctx)
	require.NoError(t, err)

	require.NoError(t, m.Delete(ctx, sess.ID))
	_, err = m.Get(ctx, sess.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestManagerExport(t *testing.T) {
	m, _ := newManager(t, analyzeTo("Wealth"))
	ctx := context.Background()
	sess, err := m.Create(ctx)
	require.NoError(t, err)
	_, err = m.Apply(ctx, sess.ID, pipeline.Action{Kind: pipeline.ActionAnalyze, Value: "Wealth"})
	require.NoError(t, err)

	e, err := m.Export(ctx, sess.ID)
	require.NoError(t, err)
	require.Len(t, e.History, 1)

	var buf bytes.Buffer
	require.NoError(t, WriteExport(&buf, e, ExportYAML))
	var y map[string]any
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &y))
	assert.Equal(t, sess.ID, y["id"])
	assert.Contains(t, y, "record")
	assert.Contains(t, y, "history")

	buf.Reset()
	require.NoError(t, WriteExport(&buf, e, ExportJSON))
	var j map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &j))
	assert.Equal(t, sess.ID, j["id"])
	record := j["record"].(map[string]any)
	assert.Equal(t, "Wealth", record["core_market"])

	assert.Error(t, WriteExport(&buf, e, "xml"))
}
