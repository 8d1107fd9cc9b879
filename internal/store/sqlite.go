package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	tlerrors "github.com/tellerline/tellerline/internal/errors"
)

// Store is the SQLite-backed persistence collaborator for sessions, turns,
// compliance events and daily metrics.
type Store struct {
	db   *sql.DB
	lock *FileLock
}

// Open opens (or creates) the store at path. A flock next to the database
// file guards against a second writer process.
func Open(path string, lockCfg *FileLockConfig) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create store dir: %w", err)
		}
	}

	lock, err := NewFileLock(path+".lock", lockCfg)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		lock.Release()
		return nil, fmt.Errorf("open database: %w", err)
	}
	// SQLite has a single writer; one connection keeps the driver honest.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL; PRAGMA synchronous=NORMAL; PRAGMA foreign_keys=ON;"); err != nil {
		db.Close()
		lock.Release()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	s := &Store{db: db, lock: lock}
	if err := s.initSchema(); err != nil {
		db.Close()
		lock.Release()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	err := s.db.Close()
	if s.lock != nil {
		if lerr := s.lock.Release(); err == nil {
			err = lerr
		}
	}
	return err
}

func (s *Store) initSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS sessions (
			session_id TEXT PRIMARY KEY,
			caller TEXT NOT NULL,
			channel TEXT NOT NULL,
			bank_id TEXT NOT NULL,
			current_agent TEXT NOT NULL,
			status TEXT NOT NULL,
			escalated INTEGER NOT NULL DEFAULT 0,
			consent INTEGER NOT NULL DEFAULT 0,
			started_at TEXT NOT NULL,
			ended_at TEXT,
			duration_seconds INTEGER NOT NULL DEFAULT 0,
			end_reason TEXT NOT NULL DEFAULT '',
			pending_update TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE TABLE IF NOT EXISTS turns (
			session_id TEXT NOT NULL,
			turn_number INTEGER NOT NULL,
			role TEXT NOT NULL,
			content TEXT NOT NULL,
			agent_name TEXT NOT NULL,
			metadata TEXT NOT NULL DEFAULT '{}',
			created_at TEXT NOT NULL,
			PRIMARY KEY (session_id, turn_number),
			FOREIGN KEY (session_id) REFERENCES sessions(session_id)
		)`,
		`CREATE TABLE IF NOT EXISTS compliance_events (
			id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL,
			turn_number INTEGER NOT NULL,
			event_type TEXT NOT NULL,
			details TEXT NOT NULL DEFAULT '{}',
			created_at TEXT NOT NULL,
			FOREIGN KEY (session_id) REFERENCES sessions(session_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_compliance_session ON compliance_events(session_id, event_type)`,
		`CREATE TABLE IF NOT EXISTS daily_metrics (
			date TEXT PRIMARY KEY,
			sessions_ended INTEGER NOT NULL,
			escalations INTEGER NOT NULL,
			avg_duration_seconds REAL NOT NULL,
			agent_counts TEXT NOT NULL DEFAULT '{}',
			computed_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_ended ON sessions(status, ended_at)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

const timeLayout = time.RFC3339Nano

func encodeTime(t time.Time) string { return t.UTC().Format(timeLayout) }

func decodeTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func encodeJSON(v interface{}) string {
	b, err := json.Marshal(v)
	if err != nil {
		return "{}"
	}
	return string(b)
}

// CreateSession inserts the session row if it does not already exist and
// returns the stored snapshot. Concurrent calls for the same unseen ID result
// in exactly one row.
func (s *Store) CreateSession(ctx context.Context, rec SessionRecord) (*SessionRecord, error) {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO sessions
		 (session_id, caller, channel, bank_id, current_agent, status, escalated, consent, started_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.SessionID, rec.Caller, rec.Channel, rec.BankID, rec.CurrentAgent,
		rec.Status, boolInt(rec.Escalated), boolInt(rec.Consent), encodeTime(rec.StartedAt),
	)
	if err != nil {
		return nil, tlerrors.Storage(err)
	}
	return s.GetSession(ctx, rec.SessionID)
}

// GetSession returns the session row or ErrUnknownSession. A staged update
// left behind by a crash between the audit write and the status flip is
// applied first, so reads never observe the stale pre-turn state.
func (s *Store) GetSession(ctx context.Context, sessionID string) (*SessionRecord, error) {
	rec, pending, err := s.sessionRow(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if pending == "" {
		return rec, nil
	}

	var u SessionUpdate
	if jerr := json.Unmarshal([]byte(pending), &u); jerr != nil {
		// Malformed staged update; ApplyPendingUpdates clears it.
		return rec, nil
	}
	if err := s.applyUpdate(ctx, sessionID, u); err != nil {
		return nil, err
	}
	rec, _, err = s.sessionRow(ctx, sessionID)
	return rec, err
}

func (s *Store) sessionRow(ctx context.Context, sessionID string) (*SessionRecord, string, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT session_id, caller, channel, bank_id, current_agent, status, escalated, consent,
		        started_at, ended_at, duration_seconds, end_reason, pending_update
		 FROM sessions WHERE session_id = ?`, sessionID)

	var rec SessionRecord
	var escalated, consent int
	var startedAt, pending string
	var endedAt sql.NullString
	err := row.Scan(&rec.SessionID, &rec.Caller, &rec.Channel, &rec.BankID,
		&rec.CurrentAgent, &rec.Status, &escalated, &consent,
		&startedAt, &endedAt, &rec.DurationSeconds, &rec.EndReason, &pending)
	if err == sql.ErrNoRows {
		return nil, "", tlerrors.ErrUnknownSession
	}
	if err != nil {
		return nil, "", tlerrors.Storage(err)
	}
	rec.Escalated = escalated != 0
	rec.Consent = consent != 0
	rec.StartedAt = decodeTime(startedAt)
	if endedAt.Valid && endedAt.String != "" {
		t := decodeTime(endedAt.String)
		rec.EndedAt = &t
	}
	return &rec, pending, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSession(row rowScanner) (*SessionRecord, error) {
	var rec SessionRecord
	var escalated, consent int
	var startedAt string
	var endedAt sql.NullString
	err := row.Scan(&rec.SessionID, &rec.Caller, &rec.Channel, &rec.BankID,
		&rec.CurrentAgent, &rec.Status, &escalated, &consent,
		&startedAt, &endedAt, &rec.DurationSeconds, &rec.EndReason)
	if err == sql.ErrNoRows {
		return nil, tlerrors.ErrUnknownSession
	}
	if err != nil {
		return nil, tlerrors.Storage(err)
	}
	rec.Escalated = escalated != 0
	rec.Consent = consent != 0
	rec.StartedAt = decodeTime(startedAt)
	if endedAt.Valid && endedAt.String != "" {
		t := decodeTime(endedAt.String)
		rec.EndedAt = &t
	}
	return &rec, nil
}

// CommitTurn durably records one processed turn. Audit-critical rows (turns
// and compliance events) land first, together with the staged session update;
// the update is applied in a second step. A crash in between leaves a
// non-empty pending_update that ApplyPendingUpdates can finish.
func (s *Store) CommitTurn(ctx context.Context, commit TurnCommit) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return tlerrors.Storage(err)
	}
	defer tx.Rollback()

	for _, t := range commit.Turns {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO turns (session_id, turn_number, role, content, agent_name, metadata, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			t.SessionID, t.TurnNumber, t.Role, t.Content, t.AgentName,
			encodeJSON(t.Metadata), encodeTime(t.CreatedAt),
		); err != nil {
			return tlerrors.Storage(err)
		}
	}

	for _, e := range commit.Events {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO compliance_events (id, session_id, turn_number, event_type, details, created_at)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			e.ID, e.SessionID, e.TurnNumber, e.Type, encodeJSON(e.Details), encodeTime(e.CreatedAt),
		); err != nil {
			return tlerrors.ComplianceWrite(err)
		}
	}

	if commit.Update != nil {
		if _, err := tx.ExecContext(ctx,
			`UPDATE sessions SET pending_update = ? WHERE session_id = ?`,
			encodeJSON(commit.Update), commit.SessionID,
		); err != nil {
			return tlerrors.Storage(err)
		}
	}

	if err := tx.Commit(); err != nil {
		return tlerrors.Storage(err)
	}

	// The turn is durable once the staging transaction lands; a caller
	// retry after this point would duplicate turn rows. A failed flip
	// leaves pending_update set, and the next session read or the
	// reconcile sweep finishes it.
	if commit.Update != nil {
		if err := s.applyUpdate(ctx, commit.SessionID, *commit.Update); err != nil {
			slog.Warn("Session update staged but not applied",
				"session_id", commit.SessionID, "error", err)
		}
	}
	return nil
}

func (s *Store) applyUpdate(ctx context.Context, sessionID string, u SessionUpdate) error {
	var endedAt interface{}
	if u.EndedAt != nil {
		endedAt = encodeTime(*u.EndedAt)
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET
			current_agent = ?,
			status = ?,
			escalated = MAX(escalated, ?),
			consent = ?,
			ended_at = COALESCE(?, ended_at),
			duration_seconds = CASE WHEN ? > 0 THEN ? ELSE duration_seconds END,
			end_reason = CASE WHEN ? != '' THEN ? ELSE end_reason END,
			pending_update = ''
		 WHERE session_id = ?`,
		u.CurrentAgent, u.Status, boolInt(u.Escalated), boolInt(u.Consent),
		endedAt, u.DurationSeconds, u.DurationSeconds, u.EndReason, u.EndReason,
		sessionID,
	)
	if err != nil {
		return tlerrors.Storage(err)
	}
	return nil
}

// ApplyPendingUpdates finishes session updates left staged by a crash between
// the audit write and the status flip. Idempotent; safe to run on a schedule.
func (s *Store) ApplyPendingUpdates(ctx context.Context) (int, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT session_id, pending_update FROM sessions WHERE pending_update != ''`)
	if err != nil {
		return 0, tlerrors.Storage(err)
	}
	type pending struct {
		id  string
		raw string
	}
	var all []pending
	for rows.Next() {
		var p pending
		if err := rows.Scan(&p.id, &p.raw); err != nil {
			rows.Close()
			return 0, tlerrors.Storage(err)
		}
		all = append(all, p)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, tlerrors.Storage(err)
	}

	applied := 0
	for _, p := range all {
		var u SessionUpdate
		if err := json.Unmarshal([]byte(p.raw), &u); err != nil {
			// A malformed staged update cannot be replayed; clear it so the
			// scan does not spin on it forever.
			if _, cerr := s.db.ExecContext(ctx,
				`UPDATE sessions SET pending_update = '' WHERE session_id = ?`, p.id); cerr != nil {
				return applied, tlerrors.Storage(cerr)
			}
			continue
		}
		if err := s.applyUpdate(ctx, p.id, u); err != nil {
			return applied, err
		}
		applied++
	}
	return applied, nil
}

// UpdateSession applies an out-of-band session mutation (explicit external
// end). Used outside the per-turn commit path.
func (s *Store) UpdateSession(ctx context.Context, sessionID string, u SessionUpdate) error {
	return s.applyUpdate(ctx, sessionID, u)
}

// RecentTurns returns the last n turns of a session in ascending turn order.
func (s *Store) RecentTurns(ctx context.Context, sessionID string, n int) ([]TurnRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT session_id, turn_number, role, content, agent_name, metadata, created_at
		 FROM (
			SELECT * FROM turns WHERE session_id = ? ORDER BY turn_number DESC LIMIT ?
		 ) ORDER BY turn_number ASC`, sessionID, n)
	if err != nil {
		return nil, tlerrors.Storage(err)
	}
	defer rows.Close()
	return scanTurns(rows)
}

// Turns returns the full ordered transcript of a session.
func (s *Store) Turns(ctx context.Context, sessionID string) ([]TurnRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT session_id, turn_number, role, content, agent_name, metadata, created_at
		 FROM turns WHERE session_id = ? ORDER BY turn_number ASC`, sessionID)
	if err != nil {
		return nil, tlerrors.Storage(err)
	}
	defer rows.Close()
	return scanTurns(rows)
}

func scanTurns(rows *sql.Rows) ([]TurnRecord, error) {
	var out []TurnRecord
	for rows.Next() {
		var t TurnRecord
		var metadata, createdAt string
		if err := rows.Scan(&t.SessionID, &t.TurnNumber, &t.Role, &t.Content,
			&t.AgentName, &metadata, &createdAt); err != nil {
			return nil, tlerrors.Storage(err)
		}
		if err := json.Unmarshal([]byte(metadata), &t.Metadata); err != nil {
			t.Metadata = map[string]string{}
		}
		t.CreatedAt = decodeTime(createdAt)
		out = append(out, t)
	}
	return out, rows.Err()
}

// TurnCount returns the highest committed turn number for a session.
func (s *Store) TurnCount(ctx context.Context, sessionID string) (int, error) {
	var n sql.NullInt64
	err := s.db.QueryRowContext(ctx,
		`SELECT MAX(turn_number) FROM turns WHERE session_id = ?`, sessionID).Scan(&n)
	if err != nil {
		return 0, tlerrors.Storage(err)
	}
	return int(n.Int64), nil
}

// EventTypes returns the set of compliance event types already recorded for a
// session, used for idempotent-flag dedupe and disclosure gating.
func (s *Store) EventTypes(ctx context.Context, sessionID string) (map[string]bool, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT event_type FROM compliance_events WHERE session_id = ?`, sessionID)
	if err != nil {
		return nil, tlerrors.Storage(err)
	}
	defer rows.Close()
	out := make(map[string]bool)
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, tlerrors.Storage(err)
		}
		out[t] = true
	}
	return out, rows.Err()
}

// Events returns all compliance events of a session in insertion order.
func (s *Store) Events(ctx context.Context, sessionID string) ([]EventRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, session_id, turn_number, event_type, details, created_at
		 FROM compliance_events WHERE session_id = ? ORDER BY turn_number ASC, created_at ASC`, sessionID)
	if err != nil {
		return nil, tlerrors.Storage(err)
	}
	defer rows.Close()
	var out []EventRecord
	for rows.Next() {
		var e EventRecord
		var details, createdAt string
		if err := rows.Scan(&e.ID, &e.SessionID, &e.TurnNumber, &e.Type, &details, &createdAt); err != nil {
			return nil, tlerrors.Storage(err)
		}
		if err := json.Unmarshal([]byte(details), &e.Details); err != nil {
			e.Details = map[string]string{}
		}
		e.CreatedAt = decodeTime(createdAt)
		out = append(out, e)
	}
	return out, rows.Err()
}

// EndedSessionsOn returns sessions that ended on the given calendar date (UTC).
func (s *Store) EndedSessionsOn(ctx context.Context, date string) ([]SessionRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT session_id, caller, channel, bank_id, current_agent, status, escalated, consent,
		        started_at, ended_at, duration_seconds, end_reason
		 FROM sessions WHERE status = ? AND ended_at LIKE ?`, StatusEnded, date+"%")
	if err != nil {
		return nil, tlerrors.Storage(err)
	}
	defer rows.Close()
	var out []SessionRecord
	for rows.Next() {
		rec, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}

// UpsertDailyMetric writes the rollup row for one date.
func (s *Store) UpsertDailyMetric(ctx context.Context, rec DailyMetricRecord) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO daily_metrics (date, sessions_ended, escalations, avg_duration_seconds, agent_counts, computed_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(date) DO UPDATE SET
			sessions_ended = excluded.sessions_ended,
			escalations = excluded.escalations,
			avg_duration_seconds = excluded.avg_duration_seconds,
			agent_counts = excluded.agent_counts,
			computed_at = excluded.computed_at`,
		rec.Date, rec.SessionsEnded, rec.Escalations, rec.AvgDurationSeconds,
		encodeJSON(rec.AgentCounts), encodeTime(rec.ComputedAt),
	)
	if err != nil {
		return tlerrors.Storage(err)
	}
	return nil
}

// DailyMetric returns the rollup for a date, or nil when absent.
func (s *Store) DailyMetric(ctx context.Context, date string) (*DailyMetricRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT date, sessions_ended, escalations, avg_duration_seconds, agent_counts, computed_at
		 FROM daily_metrics WHERE date = ?`, date)
	var rec DailyMetricRecord
	var agentCounts, computedAt string
	err := row.Scan(&rec.Date, &rec.SessionsEnded, &rec.Escalations,
		&rec.AvgDurationSeconds, &agentCounts, &computedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, tlerrors.Storage(err)
	}
	if err := json.Unmarshal([]byte(agentCounts), &rec.AgentCounts); err != nil {
		rec.AgentCounts = map[string]int{}
	}
	rec.ComputedAt = decodeTime(computedAt)
	return &rec, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
