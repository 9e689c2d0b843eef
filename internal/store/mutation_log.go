package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/proxikal/cerberus/internal/cerrors"
	"github.com/proxikal/cerberus/internal/model"
)

// This file backs C9's diff ledger (internal/mutate) and C10's session
// manager (internal/daemon): the diff_metrics/prediction_log/action_log
// tables are the mutation engine's write-efficiency ledger (spec.md §4.9
// step 12), and sessions/session_activity back the daemon's
// create_session/close_session RPC methods and idle-reaper (§4.10).
// Grounded on the teacher original's DiffLedger._init_database /
// record_mutation (original_source/src/cerberus/mutation/ledger.py),
// adapted to the shared Store rather than a second SQLite file.

// InsertDiffMetric appends one mutation-efficiency row.
func (s *Store) InsertDiffMetric(ctx context.Context, m model.DiffMetric) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO diff_metrics (timestamp, operation, file_path, lines_changed, lines_total, write_efficiency, tokens_saved)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, m.Timestamp.Unix(), m.Operation, m.FilePath, m.LinesChanged, m.LinesTotal, m.WriteEfficiency, m.TokensSaved)
	if err != nil {
		return cerrors.NewStoreError("insert_diff_metric", err)
	}
	return nil
}

// LedgerStats aggregates diff_metrics for the daemon's index_stats RPC
// method and the CLI's mutation-stats surface.
type LedgerStats struct {
	TotalOperations       int
	AverageWriteEfficiency float64
	TotalTokensSaved      int64
	OperationsByType      map[string]int
}

func (s *Store) LedgerStats(ctx context.Context) (LedgerStats, error) {
	stats := LedgerStats{OperationsByType: make(map[string]int)}

	row := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(AVG(write_efficiency), 0), COALESCE(SUM(tokens_saved), 0)
		FROM diff_metrics
	`)
	if err := row.Scan(&stats.TotalOperations, &stats.AverageWriteEfficiency, &stats.TotalTokensSaved); err != nil {
		return stats, cerrors.NewStoreError("ledger_stats", err)
	}

	rows, err := s.db.QueryContext(ctx, `SELECT operation, COUNT(*) FROM diff_metrics GROUP BY operation`)
	if err != nil {
		return stats, cerrors.NewStoreError("ledger_stats_by_type", err)
	}
	defer rows.Close()
	for rows.Next() {
		var op string
		var count int
		if err := rows.Scan(&op, &count); err != nil {
			return stats, cerrors.NewStoreError("ledger_stats_scan", err)
		}
		stats.OperationsByType[op] = count
	}
	return stats, rows.Err()
}

// RecentDiffMetrics returns the most recent mutations, newest first, for
// the CLI's `mutation history` surface.
func (s *Store) RecentDiffMetrics(ctx context.Context, limit int) ([]model.DiffMetric, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT timestamp, operation, file_path, lines_changed, lines_total, write_efficiency, tokens_saved
		FROM diff_metrics ORDER BY timestamp DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, cerrors.NewStoreError("recent_diff_metrics", err)
	}
	defer rows.Close()

	var out []model.DiffMetric
	for rows.Next() {
		var m model.DiffMetric
		var ts int64
		if err := rows.Scan(&ts, &m.Operation, &m.FilePath, &m.LinesChanged, &m.LinesTotal, &m.WriteEfficiency, &m.TokensSaved); err != nil {
			return nil, cerrors.NewStoreError("recent_diff_metrics_scan", err)
		}
		m.Timestamp = time.Unix(ts, 0)
		out = append(out, m)
	}
	return out, rows.Err()
}

// InsertPredictionLog records what an RPC call predicted (SPEC_FULL.md
// §C's declared-expectation-vs-actual correlation).
func (s *Store) InsertPredictionLog(ctx context.Context, e model.PredictionLogEntry) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO prediction_log (timestamp, method, params_hash, predicted_symbol, actual_symbol)
		VALUES (?, ?, ?, ?, ?)
	`, e.Timestamp.Unix(), e.Method, e.ParamsHash, nullableString(e.PredictedSymbol), nullableString(e.ActualSymbol))
	if err != nil {
		return cerrors.NewStoreError("insert_prediction_log", err)
	}
	return nil
}

// InsertActionLog records a mutation's outcome for observability.
func (s *Store) InsertActionLog(ctx context.Context, e model.ActionLogEntry) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO action_log (timestamp, operation, symbol, file_path, outcome)
		VALUES (?, ?, ?, ?, ?)
	`, e.Timestamp.Unix(), e.Operation, nullableString(e.Symbol), e.FilePath, e.Outcome)
	if err != nil {
		return cerrors.NewStoreError("insert_action_log", err)
	}
	return nil
}

// Session is one daemon client session (§4.10): created by
// create_session, touched on every RPC call, closed explicitly or reaped
// after MaxIdleSeconds of inactivity.
type Session struct {
	ID           string
	CreatedAt    time.Time
	LastActivity time.Time
	QueryCount   int
	Context      string
}

// CreateSession inserts a new session row.
func (s *Store) CreateSession(ctx context.Context, id, context string) (Session, error) {
	now := time.Now()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (session_id, created_at, last_activity, query_count, context)
		VALUES (?, ?, ?, 0, ?)
	`, id, now.Unix(), now.Unix(), nullableString(context))
	if err != nil {
		return Session{}, cerrors.NewStoreError("create_session", err)
	}
	return Session{ID: id, CreatedAt: now, LastActivity: now, Context: context}, nil
}

// TouchSession bumps last_activity and query_count and records one
// session_activity row, keyed by the RPC method invoked.
func (s *Store) TouchSession(ctx context.Context, id, method string) error {
	now := time.Now().Unix()
	res, err := s.db.ExecContext(ctx, `
		UPDATE sessions SET last_activity = ?, query_count = query_count + 1 WHERE session_id = ?
	`, now, id)
	if err != nil {
		return cerrors.NewStoreError("touch_session", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return cerrors.NewNotFoundError("session", id)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO session_activity (session_id, timestamp, method) VALUES (?, ?, ?)
	`, id, now, method)
	if err != nil {
		return cerrors.NewStoreError("record_session_activity", err)
	}
	return nil
}

// CloseSession removes a session row (cascades to session_activity).
func (s *Store) CloseSession(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE session_id = ?`, id)
	if err != nil {
		return cerrors.NewStoreError("close_session", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return cerrors.NewNotFoundError("session", id)
	}
	return nil
}

// GetSession reads one session row.
func (s *Store) GetSession(ctx context.Context, id string) (Session, error) {
	var sess Session
	var created, last int64
	var context sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT session_id, created_at, last_activity, query_count, context FROM sessions WHERE session_id = ?
	`, id).Scan(&sess.ID, &created, &last, &sess.QueryCount, &context)
	if err == sql.ErrNoRows {
		return Session{}, cerrors.NewNotFoundError("session", id)
	}
	if err != nil {
		return Session{}, cerrors.NewStoreError("get_session", err)
	}
	sess.CreatedAt = time.Unix(created, 0)
	sess.LastActivity = time.Unix(last, 0)
	sess.Context = context.String
	return sess, nil
}

// IdleSessions returns every session whose last_activity is older than
// cutoff, for the daemon's idle-reaper thread.
func (s *Store) IdleSessions(ctx context.Context, cutoff time.Time) ([]Session, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT session_id, created_at, last_activity, query_count, COALESCE(context, '')
		FROM sessions WHERE last_activity < ?
	`, cutoff.Unix())
	if err != nil {
		return nil, cerrors.NewStoreError("idle_sessions", err)
	}
	defer rows.Close()

	var out []Session
	for rows.Next() {
		var sess Session
		var created, last int64
		if err := rows.Scan(&sess.ID, &created, &last, &sess.QueryCount, &sess.Context); err != nil {
			return nil, cerrors.NewStoreError("idle_sessions_scan", err)
		}
		sess.CreatedAt = time.Unix(created, 0)
		sess.LastActivity = time.Unix(last, 0)
		out = append(out, sess)
	}
	return out, rows.Err()
}
