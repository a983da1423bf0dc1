// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package session

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/validation-engine/pkg/types"
)

const dbFile = "sessions.db"

// SQLiteStore keeps sessions in a SQLite database under the state directory.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens or creates stateDir/sessions.db and bootstraps the
// schema.
func NewSQLiteStore(stateDir string) (*SQLiteStore, error) {
	if stateDir == "" {
		stateDir = "."
	}
	if err := os.MkdirAll(stateDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating state directory: %w", err)
	}

	dbPath := filepath.Join(stateDir, dbFile)
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			phase TEXT NOT NULL,
			core_market TEXT,
			niche TEXT,
			record TEXT NOT NULL,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_updated_at ON sessions(updated_at)`,
		`CREATE TABLE IF NOT EXISTS transitions (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
			action TEXT NOT NULL,
			value TEXT,
			from_phase TEXT,
			to_phase TEXT,
			outcome TEXT,
			error TEXT,
			at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_transitions_session_id ON transitions(session_id)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// Create inserts a new session.
func (s *SQLiteStore) Create(ctx context.Context, sess Session) error {
	recJSON, err := json.Marshal(sess.Record)
	if err != nil {
		return fmt.Errorf("marshaling record: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO sessions (id, phase, core_market, niche, record, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		sess.ID, string(sess.Record.Phase), sess.Record.CoreMarket, sess.Record.Niche(),
		string(recJSON), formatTime(sess.CreatedAt), formatTime(sess.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("inserting session %s: %w", sess.ID, err)
	}
	return nil
}

// Load returns the session with id.
func (s *SQLiteStore) Load(ctx context.Context, id string) (Session, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, record, created_at, updated_at FROM sessions WHERE id = ?`, id)
	sess, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Session{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return Session{}, err
	}
	if err := checkRecord(id, sess.Record); err != nil {
		return Session{}, err
	}
	return sess, nil
}

// Save overwrites the record of an existing session.
func (s *SQLiteStore) Save(ctx context.Context, sess Session) error {
	recJSON, err := json.Marshal(sess.Record)
	if err != nil {
		return fmt.Errorf("marshaling record: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`UPDATE sessions SET phase = ?, core_market = ?, niche = ?, record = ?, updated_at = ?
		 WHERE id = ?`,
		string(sess.Record.Phase), sess.Record.CoreMarket, sess.Record.Niche(),
		string(recJSON), formatTime(sess.UpdatedAt), sess.ID,
	)
	if err != nil {
		return fmt.Errorf("updating session %s: %w", sess.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, sess.ID)
	}
	return tx.Commit()
}

// Delete removes a session and, through the foreign key, its history.
func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting session %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

// List returns all sessions, most recently updated first.
func (s *SQLiteStore) List(ctx context.Context) ([]Session, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, record, created_at, updated_at FROM sessions ORDER BY updated_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("listing sessions: %w", err)
	}
	defer rows.Close()

	var out []Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sess)
	}
	return out, rows.Err()
}

// AppendHistory records a transition attempt.
func (s *SQLiteStore) AppendHistory(ctx context.Context, id string, t Transition) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO transitions (session_id, action, value, from_phase, to_phase, outcome, error, at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		id, t.Action, t.Value, string(t.From), string(t.To), t.Outcome, t.Error, formatTime(t.At),
	)
	if err != nil {
		return fmt.Errorf("appending history for %s: %w", id, err)
	}
	return nil
}

// History returns the transitions of a session, oldest first.
func (s *SQLiteStore) History(ctx context.Context, id string) ([]Transition, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT action, value, from_phase, to_phase, outcome, error, at
		 FROM transitions WHERE session_id = ? ORDER BY seq`, id)
	if err != nil {
		return nil, fmt.Errorf("querying history for %s: %w", id, err)
	}
	defer rows.Close()

	var out []Transition
	for rows.Next() {
		var t Transition
		var value, from, to, outcome, errText sql.NullString
		var at string
		if err := rows.Scan(&t.Action, &value, &from, &to, &outcome, &errText, &at); err != nil {
			return nil, fmt.Errorf("scanning history row: %w", err)
		}
		t.Value = value.String
		t.From = types.Phase(from.String)
		t.To = types.Phase(to.String)
		t.Outcome = outcome.String
		t.Error = errText.String
		t.At = parseTime(at)
		out = append(out, t)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSession(row scanner) (Session, error) {
	var sess Session
	var recJSON, created, updated string
	if err := row.Scan(&sess.ID, &recJSON, &created, &updated); err != nil {
		return Session{}, err
	}
	if err := json.Unmarshal([]byte(recJSON), &sess.Record); err != nil {
		return Session{}, fmt.Errorf("decoding record for %s: %w: %v", sess.ID, ErrInconsistentRecord, err)
	}
	sess.CreatedAt = parseTime(created)
	sess.UpdatedAt = parseTime(updated)
	return sess, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}
