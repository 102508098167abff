package orchestrator

// #region imports
import (
	"context"
	"time"

	"github.com/danielpatrickdp/selfimprove/internal/analyze"
	"github.com/danielpatrickdp/selfimprove/internal/eval"
	"github.com/danielpatrickdp/selfimprove/internal/gate"
	"github.com/danielpatrickdp/selfimprove/internal/history"
	"github.com/danielpatrickdp/selfimprove/internal/logging"
	"github.com/danielpatrickdp/selfimprove/internal/patch"
	"github.com/danielpatrickdp/selfimprove/internal/proposal"
	"github.com/danielpatrickdp/selfimprove/internal/regression"
	"github.com/danielpatrickdp/selfimprove/internal/review"
)

// #endregion

// #region phase

// Phase is one step of the per-iteration state machine.
type Phase string

const (
	PhaseEval      Phase = "eval"
	PhaseAnalyze   Phase = "analyze"
	PhasePropose   Phase = "propose"
	PhaseChallenge Phase = "challenge"
	PhaseVote      Phase = "vote"
	PhaseApply     Phase = "apply"
	PhaseReEval    Phase = "re-eval"
	PhaseDecide    Phase = "decide"
)

// #endregion

// #region outcome

// Outcome is how an iteration ended.
type Outcome string

const (
	OutcomeConverged Outcome = "converged" // nothing below threshold
	OutcomeKept      Outcome = "kept"
	OutcomeReverted  Outcome = "reverted"
	OutcomeRejected  Outcome = "rejected" // never applied
	OutcomeFailed    Outcome = "failed"   // collaborator call failure
)

// Stop reasons.
const (
	StopConverged     = "all categories above threshold"
	StopMaxIterations = "max iterations reached"
	StopCanceled      = "context canceled"
)

// #endregion

// #region records

// IterationRecord captures one loop iteration, however early it exited.
// Never mutated after the iteration completes.
type IterationRecord struct {
	Index        int                        `json:"index"`
	PreReport    *eval.Report               `json:"pre_report,omitempty"`
	Analysis     []analyze.CategoryAnalysis `json:"analysis,omitempty"`
	Proposal     *proposal.PatchProposal    `json:"proposal,omitempty"`
	Challenge    *proposal.ChallengeOutcome `json:"challenge,omitempty"`
	Gate         *gate.Decision             `json:"gate,omitempty"`
	Review       *review.Decision           `json:"review,omitempty"`
	PostReport   *eval.Report               `json:"post_report,omitempty"`
	Regression   *regression.Result         `json:"regression,omitempty"`
	Outcome      Outcome                    `json:"outcome"`
	Reverted     bool                       `json:"reverted"`
	RevertReason string                     `json:"revert_reason,omitempty"`
	RejectReason string                     `json:"reject_reason,omitempty"`
	FailedPhase  Phase                      `json:"failed_phase,omitempty"`
	EntryID      string                     `json:"entry_id,omitempty"`
	AppliedRef   patch.Ref                  `json:"applied_ref,omitempty"`
	Duration     time.Duration              `json:"duration"`
}

// RunResult is the terminal artifact of a run. Always returned.
// ScoreProgression[0] is the first measured baseline and entry i the kept
// score after iteration i; an iteration that fails at eval repeats the
// previous value. It stays empty until a baseline has been measured, so a
// run whose every eval failed has no progression.
type RunResult struct {
	RunID               string               `json:"run_id"`
	Config              Config               `json:"config"`
	Iterations          []IterationRecord    `json:"iterations"`
	ScoreProgression    []float64            `json:"score_progression"`
	CategoryProgression map[string][]float64 `json:"category_progression"`
	StopReason          string               `json:"stop_reason"`
	Applied             int                  `json:"patches_applied"`
	Reverted            int                  `json:"patches_reverted"`
	Rejected            int                  `json:"patches_rejected"`
	StartedAt           time.Time            `json:"started_at"`
	TotalDuration       time.Duration        `json:"total_duration"`
}

// #endregion

// #region dependencies

// Dependencies are the collaborators a run needs. Proposer and Challenger
// may be nil; the rest are required.
type Dependencies struct {
	Evaluator    eval.Evaluator
	AgentFactory eval.AgentFactory
	Proposer     proposal.Proposer
	Challenger   proposal.Challenger
	Panel        *review.Panel
	Applier      patch.Applier
}

// #endregion

// #region sink

// RunInfo describes a run being started.
type RunInfo struct {
	RunID     string
	Config    Config
	StartedAt time.Time
}

// Sink receives run events for persistence. Errors are logged, never fatal.
type Sink interface {
	BeginRun(ctx context.Context, info RunInfo) error
	RecordPatch(ctx context.Context, entry history.Entry) error
	RecordDecision(ctx context.Context, entry logging.DecisionEntry) error
	RecordIteration(ctx context.Context, runID string, rec IterationRecord) error
	FinishRun(ctx context.Context, res RunResult) error
}

// NopSink discards every event.
type NopSink struct{}

func (NopSink) BeginRun(context.Context, RunInfo) error {
	return nil
}

func (NopSink) RecordPatch(context.Context, history.Entry) error {
	return nil
}

func (NopSink) RecordDecision(context.Context, logging.DecisionEntry) error {
	return nil
}

func (NopSink) RecordIteration(context.Context, string, IterationRecord) error {
	return nil
}

func (NopSink) FinishRun(context.Context, RunResult) error {
	return nil
}

// #endregion
