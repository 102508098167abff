package store

import "time"

// #region types
// RunRow is one persisted run.
type RunRow struct {
	RunID            string     `json:"run_id"`
	StartedAt        time.Time  `json:"started_at"`
	FinishedAt       *time.Time `json:"finished_at,omitempty"`
	StopReason       string     `json:"stop_reason,omitempty"`
	Applied          int        `json:"patches_applied"`
	Reverted         int        `json:"patches_reverted"`
	Rejected         int        `json:"patches_rejected"`
	ScoreProgression []float64  `json:"score_progression,omitempty"`
	ConfigJSON       string     `json:"config"`
}

// IterationRow is the flattened view of one iteration record.
type IterationRow struct {
	RunID        string   `json:"run_id"`
	Index        int      `json:"index"`
	Outcome      string   `json:"outcome"`
	FailedPhase  string   `json:"failed_phase,omitempty"`
	Reverted     bool     `json:"reverted"`
	RevertReason string   `json:"revert_reason,omitempty"`
	RejectReason string   `json:"reject_reason,omitempty"`
	PreScore     *float64 `json:"pre_score,omitempty"`
	PostScore    *float64 `json:"post_score,omitempty"`
	RecordJSON   string   `json:"-"`
}

// #endregion types
