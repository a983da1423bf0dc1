// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/validation-engine/internal/failure"
	"github.com/pdiddy/validation-engine/internal/pipeline"
	"github.com/pdiddy/validation-engine/internal/session"
	"github.com/pdiddy/validation-engine/pkg/types"
)

// --- mock adapters ---

type fakeGenerator struct {
	mu    sync.Mutex
	lists [][]string
	texts []string
}

func (g *fakeGenerator) Configured() bool { return true }

func (g *fakeGenerator) GenerateList(_ context.Context, _ string) ([]string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.lists) == 0 {
		return []string{}, failure.Empty("generate")
	}
	out := g.lists[0]
	g.lists = g.lists[1:]
	return out, nil
}

func (g *fakeGenerator) GenerateText(_ context.Context, _ string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.texts) == 0 {
		return "", failure.Empty("generate")
	}
	out := g.texts[0]
	g.texts = g.texts[1:]
	return out, nil
}

type noTrends struct{}

func (noTrends) Fetch(_ context.Context, topic string) types.TrendSeries {
	return types.TrendSeries{Topic: topic, Points: []types.TrendPoint{}}
}

type fakeSearch struct{}

func (fakeSearch) Configured() bool { return true }

func (fakeSearch) Search(_ context.Context, query string, _ int) ([]types.ResultGroup, error) {
	return []types.ResultGroup{{
		Category: types.CategoryOrganic,
		Items: []types.RawResultItem{
			{Title: "Rival Co", Snippet: "does the same thing"},
			{Title: "thread", Snippet: "I hate dealing with landlords"},
		},
	}}, nil
}

// --- harness ---

func newTestServer(t *testing.T, gen *fakeGenerator) *httptest.Server {
	t.Helper()
	store, err := session.NewSQLiteStore(filepath.Join(t.TempDir(), "state"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	ctrl := pipeline.New(gen, noTrends{}, fakeSearch{}, types.PipelineConfig{}, nil)
	srv := httptest.NewServer(New(session.NewManager(store, ctrl, nil), nil).Handler())
	t.Cleanup(srv.Close)
	return srv
}

func doJSON(t *testing.T, method, url string, body any) (*http.Response, []byte) {
	t.Helper()
	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, url, rd)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, data
}

type viewJSON struct {
	ID      string               `json:"id"`
	Record  types.ResearchRecord `json:"record"`
	Allowed []string             `json:"allowed_actions"`
}

type actionJSON struct {
	Session *viewJSON        `json:"session"`
	Notice  *pipeline.Notice `json:"notice"`
}

func createSession(t *testing.T, base string) viewJSON {
	t.Helper()
	resp, data := doJSON(t, http.MethodPost, base+"/api/sessions", nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var v viewJSON
	require.NoError(t, json.Unmarshal(data, &v))
	return v
}

func act(t *testing.T, base, id string, kind pipeline.ActionKind, value string) (int, actionJSON) {
	t.Helper()
	resp, data := doJSON(t, http.MethodPost, base+"/api/sessions/"+id+"/actions",
		map[string]string{"action": string(kind), "value": value})
	var out actionJSON
	require.NoError(t, json.Unmarshal(data, &out), string(data))
	return resp.StatusCode, out
}

// --- tests ---

func TestFullWorkflow(t *testing.T) {
	gen := &fakeGenerator{
		lists: [][]string{{"Real Estate", "Stocks"}, {"Rental Arbitrage", "Flipping"}},
		texts: []string{"pain", "idea", "moat", "landing"},
	}
	srv := newTestServer(t, gen)
	sess := createSession(t, srv.URL)
	assert.Equal(t, []string{"analyze", "reset"}, sess.Allowed)

	steps := []struct {
		kind  pipeline.ActionKind
		value string
		want  types.Phase
	}{
		{pipeline.ActionAnalyze, "Wealth", types.PhaseLevel1},
		{pipeline.ActionExplore, "Real Estate", types.PhaseLevel2},
		{pipeline.ActionLock, "Rental Arbitrage", types.PhaseLocked},
		{pipeline.ActionCheckTrends, "", types.PhaseMining},
		{pipeline.ActionMine, "", types.PhaseMining},
		{pipeline.ActionBuild, "", types.PhaseComplete},
	}
	for _, st := range steps {
		status, out := act(t, srv.URL, sess.ID, st.kind, st.value)
		require.Equal(t, http.StatusOK, status, "%s: %+v", st.kind, out.Notice)
		require.NotNil(t, out.Session)
		assert.Equal(t, st.want, out.Session.Record.Phase, st.kind)
	}

	resp, data := doJSON(t, http.MethodGet, srv.URL+"/api/sessions/"+sess.ID+"/report?format=markdown", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "rental-arbitrage-validation.md")
	assert.True(t, strings.HasPrefix(string(data), "# Market Validation Report: Rental Arbitrage"))

	resp, data = doJSON(t, http.MethodGet, srv.URL+"/api/sessions/"+sess.ID+"/report", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/pdf", resp.Header.Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(data, []byte("%PDF-")))

	resp, data = doJSON(t, http.MethodGet, srv.URL+"/api/sessions/"+sess.ID+"/history", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var hist []session.Transition
	require.NoError(t, json.Unmarshal(data, &hist))
	require.Len(t, hist, len(steps))
	assert.Equal(t, pipeline.OutcomeSkipped, hist[3].Outcome)
}

func TestActionWrongPhaseReturnsNotice(t *testing.T) {
	srv := newTestServer(t, &fakeGenerator{})
	sess := createSession(t, srv.URL)

	status, out := act(t, srv.URL, sess.ID, pipeline.ActionMine, "")
	assert.Equal(t, http.StatusUnprocessableEntity, status)
	require.NotNil(t, out.Notice)
	assert.Equal(t, pipeline.SeverityError, out.Notice.Severity)
	require.NotNil(t, out.Session)
	assert.Equal(t, types.PhaseInput, out.Session.Record.Phase)
}

func TestActionUpstreamFailure(t *testing.T) {
	srv := newTestServer(t, &fakeGenerator{})
	sess := createSession(t, srv.URL)

	status, out := act(t, srv.URL, sess.ID, pipeline.ActionAnalyze, "Wealth")
	assert.Equal(t, http.StatusBadGateway, status)
	require.NotNil(t, out.Notice)
	assert.Contains(t, out.Notice.Message, "no usable items")
	assert.Equal(t, types.PhaseInput, out.Session.Record.Phase)
}

func TestActionBadRequests(t *testing.T) {
	srv := newTestServer(t, &fakeGenerator{})
	sess := createSession(t, srv.URL)
	url := srv.URL + "/api/sessions/" + sess.ID + "/actions"

	resp, _ := doJSON(t, http.MethodPost, url, map[string]string{"action": "fly"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = doJSON(t, http.MethodPost, url, map[string]string{"action": "analyze", "extra": "x"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = doJSON(t, http.MethodPost, srv.URL+"/api/sessions/missing/actions", map[string]string{"action": "analyze", "value": "x"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestResetAction(t *testing.T) {
	srv := newTestServer(t, &fakeGenerator{lists: [][]string{{"A", "B"}}})
	sess := createSession(t, srv.URL)

	status, _ := act(t, srv.URL, sess.ID, pipeline.ActionAnalyze, "Wealth")
	require.Equal(t, http.StatusOK, status)

	status, out := act(t, srv.URL, sess.ID, pipeline.ActionReset, "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, types.NewRecord(), out.Session.Record)
}

// corruptStore fails every Load the way a store holding an invalid record does.
type corruptStore struct {
	session.Store
}

func (corruptStore) Load(_ context.Context, id string) (session.Session, error) {
	return session.Session{}, fmt.Errorf("session %s: %w: unknown phase", id, session.ErrInconsistentRecord)
}

func TestInconsistentRecordPointsAtReset(t *testing.T) {
	store, err := session.NewSQLiteStore(filepath.Join(t.TempDir(), "state"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	ctrl := pipeline.New(&fakeGenerator{}, noTrends{}, fakeSearch{}, types.PipelineConfig{}, nil)
	srv := httptest.NewServer(New(session.NewManager(corruptStore{store}, ctrl, nil), nil).Handler())
	t.Cleanup(srv.Close)

	resp, data := doJSON(t, http.MethodPost, srv.URL+"/api/sessions/s1/actions",
		map[string]string{"action": "analyze", "value": "Wealth"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Contains(t, string(data), "reset the session")

	resp, _ = doJSON(t, http.MethodGet, srv.URL+"/api/sessions/s1", nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestReportRequiresCompleteRecord(t *testing.T) {
	srv := newTestServer(t, &fakeGenerator{})
	sess := createSession(t, srv.URL)

	resp, _ := doJSON(t, http.MethodGet, srv.URL+"/api/sessions/"+sess.ID+"/report", nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestGetListDeleteSession(t *testing.T) {
	srv := newTestServer(t, &fakeGenerator{})
	sess := createSession(t, srv.URL)

	resp, data := doJSON(t, http.MethodGet, srv.URL+"/api/sessions/"+sess.ID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var v viewJSON
	require.NoError(t, json.Unmarshal(data, &v))
	assert.Equal(t, sess.ID, v.ID)

	resp, data = doJSON(t, http.MethodGet, srv.URL+"/api/sessions", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var list []viewJSON
	require.NoError(t, json.Unmarshal(data, &list))
	assert.Len(t, list, 1)

	resp, _ = doJSON(t, http.MethodDelete, srv.URL+"/api/sessions/"+sess.ID, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, _ = doJSON(t, http.MethodGet, srv.URL+"/api/sessions/"+sess.ID, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestExport(t *testing.T) {
	srv := newTestServer(t, &fakeGenerator{})
	sess := createSession(t, srv.URL)

	resp, data := doJSON(t, http.MethodGet, srv.URL+"/api/sessions/"+sess.ID+"/export?format=yaml", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(data), "id: "+sess.ID)

	resp, _ = doJSON(t, http.MethodGet, srv.URL+"/api/sessions/"+sess.ID+"/export?format=xml", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHealthAndMetrics(t *testing.T) {
	srv := newTestServer(t, &fakeGenerator{})

	resp, data := doJSON(t, http.MethodGet, srv.URL+"/healthz", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"status":"ok"}`, string(data))

	createSession(t, srv.URL)
	resp, data = doJSON(t, http.MethodGet, srv.URL+"/metrics", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(data), "validation_engine_sessions_created_total")
}

func TestListenAndServeStopsOnCancel(t *testing.T) {
	store, err := session.NewSQLiteStore(t.TempDir())
	require.NoError(t, err)
	defer store.Close()
	s := New(session.NewManager(store, pipeline.New(nil, nil, nil, types.PipelineConfig{}, nil), nil), nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.ListenAndServe(ctx, "127.0.0.1:0") }()
	cancel()
	assert.NoError(t, <-done)
}
