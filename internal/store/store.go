package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/danielpatrickdp/selfimprove/internal/history"
	"github.com/danielpatrickdp/selfimprove/internal/logging"
	"github.com/danielpatrickdp/selfimprove/internal/orchestrator"
)

// #region schema
const schema = `
CREATE TABLE IF NOT EXISTS runs (
	run_id            TEXT PRIMARY KEY,
	started_at        TEXT NOT NULL,
	finished_at       TEXT,
	stop_reason       TEXT,
	config_json       TEXT NOT NULL,
	applied           INTEGER NOT NULL DEFAULT 0,
	reverted          INTEGER NOT NULL DEFAULT 0,
	rejected          INTEGER NOT NULL DEFAULT 0,
	progression_json  TEXT
);

CREATE TABLE IF NOT EXISTS patch_history (
	seq           INTEGER PRIMARY KEY AUTOINCREMENT,
	entry_id      TEXT NOT NULL UNIQUE,
	run_id        TEXT NOT NULL,
	iteration     INTEGER NOT NULL,
	target        TEXT NOT NULL,
	description   TEXT,
	hypothesis    TEXT,
	content_hash  TEXT NOT NULL,
	applied_ref   TEXT,
	bucket        TEXT NOT NULL,
	reason        TEXT,
	updated_at    TEXT NOT NULL,
	FOREIGN KEY (run_id) REFERENCES runs(run_id)
);

CREATE INDEX IF NOT EXISTS idx_patch_history_hash ON patch_history(content_hash);

CREATE TABLE IF NOT EXISTS iteration_log (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id        TEXT NOT NULL,
	iteration     INTEGER NOT NULL,
	outcome       TEXT NOT NULL,
	failed_phase  TEXT,
	reverted      INTEGER NOT NULL,
	revert_reason TEXT,
	reject_reason TEXT,
	pre_score     REAL,
	post_score    REAL,
	record_json   TEXT NOT NULL,
	created_at    TEXT NOT NULL,
	UNIQUE (run_id, iteration),
	FOREIGN KEY (run_id) REFERENCES runs(run_id)
);

CREATE TABLE IF NOT EXISTS decision_log (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id        TEXT NOT NULL,
	iteration     INTEGER NOT NULL,
	phase         TEXT NOT NULL,
	decision      TEXT NOT NULL,
	reason        TEXT,
	payload_json  TEXT,
	created_at    TEXT NOT NULL,
	FOREIGN KEY (run_id) REFERENCES runs(run_id)
);
`

// #endregion schema

// #region store-struct
// Store persists runs, patch history, iterations and decisions in SQLite.
// It implements orchestrator.Sink.
type Store struct {
	db    *sql.DB
	clock func() time.Time
}

var _ orchestrator.Sink = (*Store)(nil)

// #endregion store-struct

// #region constructor
// NewStore opens a SQLite database and runs migrations.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma: %w", err)
	}
	s, err := NewStoreWithDB(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// NewStoreWithDB migrates an already opened database.
func NewStoreWithDB(db *sql.DB) (*Store, error) {
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		return nil, fmt.Errorf("pragma fk: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{db: db, clock: time.Now}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB for use by other packages (e.g. logging).
func (s *Store) DB() *sql.DB {
	return s.db
}

// #endregion constructor

// #region sink
// BeginRun inserts the run row.
func (s *Store) BeginRun(ctx context.Context, info orchestrator.RunInfo) error {
	cfg, err := json.Marshal(info.Config)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO runs (run_id, started_at, config_json) VALUES (?, ?, ?)`,
		info.RunID, info.StartedAt.UTC().Format(time.RFC3339Nano), string(cfg),
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// RecordPatch upserts a history entry; a revert moves the existing row.
func (s *Store) RecordPatch(ctx context.Context, e history.Entry) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO patch_history
			(entry_id, run_id, iteration, target, description, hypothesis, content_hash, applied_ref, bucket, reason, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(entry_id) DO UPDATE SET
			bucket = excluded.bucket,
			reason = excluded.reason,
			updated_at = excluded.updated_at`,
		e.ID, e.RunID, e.Iteration, e.Target,
		nullIfEmpty(e.Description), nullIfEmpty(e.Hypothesis), e.ContentHash,
		nullIfEmpty(e.AppliedRef), string(e.Partition), nullIfEmpty(e.Reason),
		s.now(),
	)
	if err != nil {
		return fmt.Errorf("record patch: %w", err)
	}
	return nil
}

// RecordDecision writes a decision_log row.
func (s *Store) RecordDecision(_ context.Context, entry logging.DecisionEntry) error {
	return logging.LogDecision(s.db, entry)
}

// RecordIteration writes the iteration record.
func (s *Store) RecordIteration(ctx context.Context, runID string, rec orchestrator.IterationRecord) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal iteration: %w", err)
	}
	var pre, post any
	if rec.PreReport != nil {
		pre = rec.PreReport.OverallScore
	}
	if rec.PostReport != nil {
		post = rec.PostReport.OverallScore
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO iteration_log
			(run_id, iteration, outcome, failed_phase, reverted, revert_reason, reject_reason, pre_score, post_score, record_json, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		runID, rec.Index, string(rec.Outcome), nullIfEmpty(string(rec.FailedPhase)),
		boolToInt(rec.Reverted), nullIfEmpty(rec.RevertReason), nullIfEmpty(rec.RejectReason),
		pre, post, string(raw), s.now(),
	)
	if err != nil {
		return fmt.Errorf("record iteration: %w", err)
	}
	return nil
}

// FinishRun stamps the run row with its outcome.
func (s *Store) FinishRun(ctx context.Context, res orchestrator.RunResult) error {
	prog, err := json.Marshal(res.ScoreProgression)
	if err != nil {
		return fmt.Errorf("marshal progression: %w", err)
	}
	r, err := s.db.ExecContext(ctx,
		`UPDATE runs SET finished_at = ?, stop_reason = ?, applied = ?, reverted = ?, rejected = ?, progression_json = ?
		 WHERE run_id = ?`,
		s.now(), res.StopReason, res.Applied, res.Reverted, res.Rejected, string(prog), res.RunID,
	)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	if n, _ := r.RowsAffected(); n == 0 {
		return fmt.Errorf("finish run %s: run not found", res.RunID)
	}
	return nil
}

// #endregion sink

// #region queries
// LoadHistory returns every stored patch entry, oldest first, for seeding
// a new run's history.
func (s *Store) LoadHistory(ctx context.Context) ([]history.Entry, error) {
	return s.ListPatches(ctx, "")
}

// ListPatches returns the entries of one run, or of all runs when runID is empty.
func (s *Store) ListPatches(ctx context.Context, runID string) ([]history.Entry, error) {
	q := `SELECT entry_id, run_id, iteration, target, description, hypothesis, content_hash, applied_ref, bucket, reason
		  FROM patch_history`
	var args []any
	if runID != "" {
		q += ` WHERE run_id = ?`
		args = append(args, runID)
	}
	q += ` ORDER BY seq`

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query patches: %w", err)
	}
	defer rows.Close()

	var out []history.Entry
	for rows.Next() {
		var (
			e                      history.Entry
			desc, hyp, ref, reason sql.NullString
			partition              string
		)
		if err := rows.Scan(&e.ID, &e.RunID, &e.Iteration, &e.Target, &desc, &hyp, &e.ContentHash, &ref, &partition, &reason); err != nil {
			return nil, fmt.Errorf("scan patch: %w", err)
		}
		e.Description = desc.String
		e.Hypothesis = hyp.String
		e.AppliedRef = ref.String
		e.Reason = reason.String
		e.Partition = history.Partition(partition)
		out = append(out, e)
	}
	return out, rows.Err()
}

// ListRuns returns every run, newest first.
func (s *Store) ListRuns(ctx context.Context) ([]RunRow, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, started_at, finished_at, stop_reason, config_json, applied, reverted, rejected, progression_json
		 FROM runs ORDER BY started_at DESC, run_id`)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var out []RunRow
	for rows.Next() {
		var (
			r                        RunRow
			started                  string
			finished, stop, progJSON sql.NullString
		)
		if err := rows.Scan(&r.RunID, &started, &finished, &stop, &r.ConfigJSON, &r.Applied, &r.Reverted, &r.Rejected, &progJSON); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		if r.StartedAt, err = time.Parse(time.RFC3339Nano, started); err != nil {
			return nil, fmt.Errorf("parse started_at: %w", err)
		}
		if finished.Valid {
			t, err := time.Parse(time.RFC3339Nano, finished.String)
			if err != nil {
				return nil, fmt.Errorf("parse finished_at: %w", err)
			}
			r.FinishedAt = &t
		}
		r.StopReason = stop.String
		if progJSON.Valid {
			if err := json.Unmarshal([]byte(progJSON.String), &r.ScoreProgression); err != nil {
				return nil, fmt.Errorf("unmarshal progression: %w", err)
			}
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// ListIterations returns the iterations of one run in order.
func (s *Store) ListIterations(ctx context.Context, runID string) ([]IterationRow, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, iteration, outcome, failed_phase, reverted, revert_reason, reject_reason, pre_score, post_score, record_json
		 FROM iteration_log WHERE run_id = ? ORDER BY iteration`, runID)
	if err != nil {
		return nil, fmt.Errorf("query iterations: %w", err)
	}
	defer rows.Close()

	var out []IterationRow
	for rows.Next() {
		var (
			r                                  IterationRow
			failed, revertReason, rejectReason sql.NullString
			reverted                           int
			pre, post                          sql.NullFloat64
		)
		if err := rows.Scan(&r.RunID, &r.Index, &r.Outcome, &failed, &reverted, &revertReason, &rejectReason, &pre, &post, &r.RecordJSON); err != nil {
			return nil, fmt.Errorf("scan iteration: %w", err)
		}
		r.FailedPhase = failed.String
		r.Reverted = reverted == 1
		r.RevertReason = revertReason.String
		r.RejectReason = rejectReason.String
		if pre.Valid {
			r.PreScore = &pre.Float64
		}
		if post.Valid {
			r.PostScore = &post.Float64
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Record decodes the full iteration record stored with the row.
func (r IterationRow) Record() (orchestrator.IterationRecord, error) {
	var rec orchestrator.IterationRecord
	if err := json.Unmarshal([]byte(r.RecordJSON), &rec); err != nil {
		return orchestrator.IterationRecord{}, fmt.Errorf("unmarshal iteration record: %w", err)
	}
	return rec, nil
}

// #endregion queries

// #region helpers
func (s *Store) now() string {
	return s.clock().UTC().Format(time.RFC3339Nano)
}

func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// #endregion helpers
