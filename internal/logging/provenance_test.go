package logging

import (
	"database/sql"
	"testing"
	"time"

	_ "modernc.org/sqlite"
)

// #region helpers
func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	_, err = db.Exec(`CREATE TABLE decision_log (
		run_id       TEXT NOT NULL,
		iteration    INTEGER NOT NULL,
		phase        TEXT NOT NULL,
		decision     TEXT NOT NULL,
		reason       TEXT,
		payload_json TEXT,
		created_at   TEXT NOT NULL
	)`)
	if err != nil {
		t.Fatalf("create table: %v", err)
	}
	return db
}

// #endregion helpers

// #region log-decision-tests
func TestLogDecision_Success(t *testing.T) {
	db := setupDB(t)
	defer db.Close()

	entry := DecisionEntry{
		RunID:       "run-1",
		Iteration:   2,
		Phase:       "vote",
		Decision:    "accepted",
		Reason:      "Decision: accepted (3 votes)",
		PayloadJSON: `{"votes":3}`,
		CreatedAt:   time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}

	if err := LogDecision(db, entry); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var (
		phase, decision, createdAt string
		iteration                  int
	)
	err := db.QueryRow("SELECT phase, decision, iteration, created_at FROM decision_log").Scan(&phase, &decision, &iteration, &createdAt)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if phase != "vote" || decision != "accepted" || iteration != 2 {
		t.Errorf("unexpected row: %s %s %d", phase, decision, iteration)
	}
	if createdAt != "2026-01-01T00:00:00Z" {
		t.Errorf("expected RFC3339 timestamp, got %s", createdAt)
	}
}

func TestLogDecision_EmptyOptionalFieldsAreNull(t *testing.T) {
	db := setupDB(t)
	defer db.Close()

	if err := LogDecision(db, DecisionEntry{RunID: "r", Phase: "analyze", Decision: "converged"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var reason, payload sql.NullString
	var createdAt string
	if err := db.QueryRow("SELECT reason, payload_json, created_at FROM decision_log").Scan(&reason, &payload, &createdAt); err != nil {
		t.Fatalf("query: %v", err)
	}
	if reason.Valid || payload.Valid {
		t.Errorf("expected NULL reason and payload, got %v %v", reason, payload)
	}
	if createdAt == "" {
		t.Error("expected created_at to default to now")
	}
}

func TestLogDecision_MissingTable(t *testing.T) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer db.Close()

	if err := LogDecision(db, DecisionEntry{RunID: "r", Phase: "vote", Decision: "x"}); err == nil {
		t.Fatal("expected error without decision_log table")
	}
}

// #endregion log-decision-tests

// #region logger-tests
func TestNewLogger(t *testing.T) {
	for _, cfg := range []Config{DefaultConfig(), {Level: "debug", Format: "console"}, {}} {
		logger, err := New(cfg)
		if err != nil {
			t.Fatalf("New(%+v): %v", cfg, err)
		}
		logger.Debug("hello")
	}

	if _, err := New(Config{Level: "loud"}); err == nil {
		t.Error("expected error for unknown level")
	}
	if _, err := New(Config{Format: "xml"}); err == nil {
		t.Error("expected error for unknown format")
	}
}

// #endregion logger-tests
