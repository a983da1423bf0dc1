// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package server exposes the session manager as a JSON API.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/pdiddy/validation-engine/internal/pipeline"
	"github.com/pdiddy/validation-engine/internal/report"
	"github.com/pdiddy/validation-engine/internal/session"
	"github.com/pdiddy/validation-engine/pkg/types"
)

const maxBodyBytes = 64 << 10

// Server routes API requests to a session manager.
type Server struct {
	mgr    *session.Manager
	logger *zap.Logger
	mux    *http.ServeMux
}

// New builds the route table.
func New(mgr *session.Manager, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{mgr: mgr, logger: logger, mux: http.NewServeMux()}

	s.mux.HandleFunc("POST /api/sessions", s.createSession)
	s.mux.HandleFunc("GET /api/sessions", s.listSessions)
	s.mux.HandleFunc("GET /api/sessions/{id}", s.getSession)
	s.mux.HandleFunc("DELETE /api/sessions/{id}", s.deleteSession)
	s.mux.HandleFunc("POST /api/sessions/{id}/actions", s.applyAction)
	s.mux.HandleFunc("GET /api/sessions/{id}/history", s.history)
	s.mux.HandleFunc("GET /api/sessions/{id}/report", s.report)
	s.mux.HandleFunc("GET /api/sessions/{id}/export", s.export)
	s.mux.Handle("GET /metrics", promhttp.Handler())
	s.mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	return s
}

// Handler returns the root handler with request logging.
func (s *Server) Handler() http.Handler {
	return s.logRequests(s.mux)
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		s.logger.Info("server starting", zap.String("addr", addr))
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serving on %s: %w", addr, err)
	case <-ctx.Done():
	}

	s.logger.Info("server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down: %w", err)
	}
	return nil
}

// --- views ---

// sessionView is a session plus the actions its phase allows.
type sessionView struct {
	session.Session
	Allowed []pipeline.ActionKind `json:"allowed_actions"`
}

func viewOf(sess session.Session) *sessionView {
	return &sessionView{Session: sess, Allowed: pipeline.Allowed(sess.Record.Phase)}
}

type actionRequest struct {
	Action pipeline.ActionKind `json:"action"`
	Value  string              `json:"value,omitempty"`
}

type actionResponse struct {
	Session *sessionView     `json:"session,omitempty"`
	Notice  *pipeline.Notice `json:"notice,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// --- handlers ---

func (s *Server) createSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.mgr.Create(r.Context())
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, viewOf(sess))
}

func (s *Server) listSessions(w http.ResponseWriter, r *http.Request) {
	list, err := s.mgr.List(r.Context())
	if err != nil {
		s.fail(w, err)
		return
	}
	views := make([]*sessionView, len(list))
	for i, sess := range list {
		views[i] = viewOf(sess)
	}
	writeJSON(w, http.StatusOK, views)
}

func (s *Server) getSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.mgr.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, viewOf(sess))
}

func (s *Server) deleteSession(w http.ResponseWriter, r *http.Request) {
	if err := s.mgr.Delete(r.Context(), r.PathValue("id")); err != nil {
		s.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// applyAction runs one action. Pipeline errors come back as a notice next to
// whatever record the session now holds, so partial build progress is
// visible to the caller.
func (s *Server) applyAction(w http.ResponseWriter, r *http.Request) {
	var req actionRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body: " + err.Error()})
		return
	}
	if !req.Action.Valid() {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: fmt.Sprintf("unknown action %q", req.Action)})
		return
	}

	id := r.PathValue("id")
	sess, err := s.mgr.Apply(r.Context(), id, pipeline.Action{Kind: req.Action, Value: req.Value})
	if err == nil {
		writeJSON(w, http.StatusOK, actionResponse{Session: viewOf(sess)})
		return
	}

	switch {
	case errors.Is(err, session.ErrNotFound),
		errors.Is(err, session.ErrSessionBusy),
		errors.Is(err, session.ErrDiscarded),
		errors.Is(err, session.ErrInconsistentRecord):
		s.fail(w, err)
		return
	}

	if sess.ID == "" {
		// Rejected without a write; report the stored state.
		if cur, gerr := s.mgr.Get(r.Context(), id); gerr == nil {
			sess = cur
		}
	}
	notice := pipeline.Describe(err)
	resp := actionResponse{Notice: &notice}
	if sess.ID != "" {
		resp.Session = viewOf(sess)
	}
	writeJSON(w, actionStatus(err), resp)
}

func (s *Server) history(w http.ResponseWriter, r *http.Request) {
	hist, err := s.mgr.History(r.Context(), r.PathValue("id"))
	if err != nil {
		s.fail(w, err)
		return
	}
	if hist == nil {
		hist = []session.Transition{}
	}
	writeJSON(w, http.StatusOK, hist)
}

func (s *Server) report(w http.ResponseWriter, r *http.Request) {
	sess, err := s.mgr.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		s.fail(w, err)
		return
	}

	format := types.ReportFormat(r.URL.Query().Get("format"))
	if format == "" {
		format = types.ReportPDF
	}
	data, err := report.Assemble(sess.Record, format)
	if err != nil {
		s.fail(w, err)
		return
	}

	contentType := "application/pdf"
	if format == types.ReportMarkdown {
		contentType = "text/markdown; charset=utf-8"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", report.Filename(sess.Record, format)))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

func (s *Server) export(w http.ResponseWriter, r *http.Request) {
	e, err := s.mgr.Export(r.Context(), r.PathValue("id"))
	if err != nil {
		s.fail(w, err)
		return
	}

	format := session.ExportFormat(r.URL.Query().Get("format"))
	if format == "" {
		format = session.ExportJSON
	}
	switch format {
	case session.ExportJSON:
		w.Header().Set("Content-Type", "application/json")
	case session.ExportYAML:
		w.Header().Set("Content-Type", "application/yaml")
	default:
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: fmt.Sprintf("unknown export format %q", format)})
		return
	}
	if err := session.WriteExport(w, e, format); err != nil {
		s.logger.Warn("export write failed", zap.Error(err))
	}
}

// --- helpers ---

// fail maps non-pipeline errors to a status and a plain error body.
func (s *Server) fail(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, session.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, session.ErrSessionBusy), errors.Is(err, session.ErrDiscarded),
		errors.Is(err, session.ErrInconsistentRecord):
		status = http.StatusConflict
	case errors.Is(err, report.ErrNotComplete):
		status = http.StatusConflict
	case errors.Is(err, report.ErrUnknownFormat):
		status = http.StatusBadRequest
	}
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", zap.Error(err))
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

// actionStatus picks the status for a pipeline error: caller mistakes are
// 422, everything else is an upstream problem.
func actionStatus(err error) int {
	if pipeline.IsUserError(err) {
		return http.StatusUnprocessableEntity
	}
	if errors.Is(err, pipeline.ErrInvalidRecord) {
		return http.StatusInternalServerError
	}
	return http.StatusBadGateway
}

// writeJSON writes a JSON response with status and content-type.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// statusRecorder captures the response status for logging.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Debug("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("elapsed", time.Since(start)),
		)
	})
}
