package orchestrator

// #region imports
import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/danielpatrickdp/selfimprove/internal/analyze"
	"github.com/danielpatrickdp/selfimprove/internal/eval"
	"github.com/danielpatrickdp/selfimprove/internal/gate"
	"github.com/danielpatrickdp/selfimprove/internal/logging"
	"github.com/danielpatrickdp/selfimprove/internal/proposal"
	"github.com/danielpatrickdp/selfimprove/internal/regression"
	"github.com/danielpatrickdp/selfimprove/internal/review"
)

// #endregion

// maxReasonLen bounds rejection reasons stored in the history.
const maxReasonLen = 200

// #region iteration

// iteration drives one pass through the phase state machine.
type iteration struct {
	o     *Orchestrator
	runID string
	index int
	log   *zap.Logger
	rec   IterationRecord
}

func (it *iteration) run(ctx context.Context, index int) IterationRecord {
	started := it.o.clock()
	it.index = index
	it.rec = IterationRecord{Index: index}
	it.steps(ctx)
	it.rec.Duration = it.o.clock().Sub(started)
	it.log.Info("iteration complete",
		zap.String("outcome", string(it.rec.Outcome)),
		zap.String("failed_phase", string(it.rec.FailedPhase)),
		zap.Duration("duration", it.rec.Duration))
	return it.rec
}

// steps runs EVAL → ANALYZE → PROPOSE → CHALLENGE → VOTE → APPLY → RE-EVAL → DECIDE.
// Each step is a hard gate to the next.
func (it *iteration) steps(ctx context.Context) {
	o := it.o

	// --- EVAL ---
	pre, err := it.evaluate(ctx, PhaseEval)
	if err != nil {
		it.fail(ctx, PhaseEval, err)
		return
	}
	it.rec.PreReport = &pre
	it.log.Info("baseline measured", zap.String("phase", string(PhaseEval)), zap.Float64("overall", pre.OverallScore))

	// --- ANALYZE ---
	_, span, t0 := o.startPhase(ctx, PhaseAnalyze, it.index)
	analyses := analyze.Analyze(pre, o.cfg.FailureThreshold)
	o.endPhase(span, PhaseAnalyze, t0, nil)
	it.rec.Analysis = analyses

	worst, ok := analyze.Worst(analyses)
	if !ok {
		it.rec.Outcome = OutcomeConverged
		it.decision(ctx, PhaseAnalyze, string(OutcomeConverged), StopConverged, nil)
		return
	}
	it.log.Info("bottleneck diagnosed",
		zap.String("phase", string(PhaseAnalyze)),
		zap.String("category", worst.Category),
		zap.Float64("avg_score", worst.AvgScore),
		zap.String("bottleneck", worst.Bottleneck),
		zap.Int("failing_categories", len(analyses)))
	it.decision(ctx, PhaseAnalyze, "diagnosed",
		fmt.Sprintf("%s avg %.2f: %s", worst.Category, worst.AvgScore, worst.Bottleneck), worst)

	// --- PROPOSE / CHALLENGE ---
	gctx, span, t0 := o.startPhase(ctx, PhasePropose, it.index)
	d, err := o.gate.Evaluate(gctx, worst, o.history, it.index)
	o.endPhase(span, PhasePropose, t0, err)
	it.rec.Proposal = d.Proposal
	if err != nil {
		phase := PhasePropose
		var ce *gate.CallError
		if errors.As(err, &ce) && ce.Phase == gate.PhaseChallenge {
			phase = PhaseChallenge
		}
		it.fail(ctx, phase, err)
		return
	}
	it.rec.Gate = &d
	it.rec.Challenge = d.Challenge
	for _, v := range d.Vetoes {
		o.metrics.Veto(string(v.Type))
	}
	p := *d.Proposal

	if d.Action == gate.ActionReject {
		it.decision(ctx, PhaseChallenge, string(gate.ActionReject), d.Reason, d.Vetoes)
		if d.Record {
			it.reject(ctx, p, gate.ReasonChallengeInadequate)
		} else {
			it.rec.Outcome = OutcomeRejected
			it.rec.RejectReason = d.Reason
		}
		return
	}
	it.decision(ctx, PhaseChallenge, string(gate.ActionVote), d.Reason, nil)

	// --- VOTE ---
	vctx, span, t0 := o.startPhase(ctx, PhaseVote, it.index)
	decision, err := o.deps.Panel.Review(vctx, p, d.Challenge)
	o.endPhase(span, PhaseVote, t0, err)
	if err != nil {
		it.fail(ctx, PhaseVote, err)
		return
	}
	it.rec.Review = &decision
	for _, v := range decision.Votes {
		o.metrics.Vote(v.ReviewerID, string(v.Verdict))
	}
	it.decision(ctx, PhaseVote, string(decision.Outcome), decision.Rationale, decision.Votes)
	if decision.Outcome != review.OutcomeAccepted {
		it.reject(ctx, p, clip(decision.Rationale, maxReasonLen))
		return
	}

	// --- APPLY ---
	actx, span, t0 := o.startPhase(ctx, PhaseApply, it.index)
	if !it.apply(actx, p) {
		o.endPhase(span, PhaseApply, t0, errors.New(it.rec.RevertReason))
		return
	}
	o.endPhase(span, PhaseApply, t0, nil)

	// --- RE-EVAL ---
	post, err := it.evaluate(ctx, PhaseReEval)
	if err != nil {
		// The patch stays applied; the next baseline measures it.
		it.fail(ctx, PhaseReEval, err)
		return
	}
	it.rec.PostReport = &post

	// --- DECIDE ---
	dctx, span, t0 := o.startPhase(ctx, PhaseDecide, it.index)
	err = it.decide(dctx, pre, post)
	o.endPhase(span, PhaseDecide, t0, err)
}

// #endregion

// #region phases

func (it *iteration) evaluate(ctx context.Context, phase Phase) (eval.Report, error) {
	o := it.o
	ctx, span, t0 := o.startPhase(ctx, phase, it.index)
	report, err := it.measure(ctx)
	o.endPhase(span, phase, t0, err)
	return report, err
}

// measure scores a fresh agent instance.
func (it *iteration) measure(ctx context.Context) (eval.Report, error) {
	agent, err := it.o.deps.AgentFactory()
	if err != nil {
		return eval.Report{}, fmt.Errorf("create agent: %w", err)
	}
	defer func() {
		if err := agent.Close(); err != nil {
			it.log.Warn("close agent", zap.String("agent", agent.Name()), zap.Error(err))
		}
	}()

	report, err := it.o.deps.Evaluator.Run(ctx, agent, it.o.cfg.Params())
	if err != nil {
		return eval.Report{}, fmt.Errorf("evaluate %s: %w", agent.Name(), err)
	}
	return report, nil
}

func (it *iteration) apply(ctx context.Context, p proposal.PatchProposal) bool {
	o := it.o
	ref, err := o.deps.Applier.Apply(ctx, p.Target, p.Change)
	if err != nil {
		it.reject(ctx, p, clip("apply failed: "+err.Error(), maxReasonLen))
		it.fail(ctx, PhaseApply, err)
		return false
	}

	entry := p.Entry(it.index)
	entry.RunID = it.runID
	entry.AppliedRef = string(ref)
	e, err := o.history.RecordApplied(entry)
	if err != nil {
		if rerr := o.deps.Applier.Revert(ctx, ref); rerr != nil {
			it.log.Error("undo apply", zap.String("ref", string(ref)), zap.Error(rerr))
		}
		it.fail(ctx, PhaseApply, err)
		return false
	}
	it.rec.EntryID = e.ID
	it.rec.AppliedRef = ref
	o.emit(it.log, "record patch", o.sink.RecordPatch(ctx, e))
	it.decision(ctx, PhaseApply, "applied", p.Target, nil)
	it.log.Info("patch applied", zap.String("phase", string(PhaseApply)), zap.String("target", p.Target), zap.String("ref", string(ref)))
	return true
}

func (it *iteration) decide(ctx context.Context, pre, post eval.Report) error {
	o := it.o
	reg := regression.Detect(pre.CategoryAverages(), post.CategoryAverages(), o.cfg.RegressionThreshold)
	it.rec.Regression = &reg
	o.metrics.Regression(reg.MaxRegressionPP)

	if !reg.Regressed {
		it.rec.Outcome = OutcomeKept
		it.decision(ctx, PhaseDecide, string(OutcomeKept), reg.Reason, reg.Deltas)
		return nil
	}

	if err := o.deps.Applier.Revert(ctx, it.rec.AppliedRef); err != nil {
		err = fmt.Errorf("revert failed: %w", err)
		it.fail(ctx, PhaseDecide, err)
		return err
	}
	e, err := o.history.Revert(it.rec.EntryID, reg.Reason)
	if err != nil {
		it.log.Error("history revert", zap.String("entry_id", it.rec.EntryID), zap.Error(err))
	} else {
		o.emit(it.log, "record patch", o.sink.RecordPatch(ctx, e))
	}

	it.rec.Outcome = OutcomeReverted
	it.rec.Reverted = true
	it.rec.RevertReason = reg.Reason
	o.metrics.Reverted()
	it.decision(ctx, PhaseDecide, string(OutcomeReverted), reg.Reason, reg.Deltas)
	it.log.Warn("patch reverted", zap.String("phase", string(PhaseDecide)), zap.String("reason", reg.Reason))
	return nil
}

// #endregion

// #region bookkeeping

// reject records p in the rejected partition.
func (it *iteration) reject(ctx context.Context, p proposal.PatchProposal, reason string) {
	it.rec.Outcome = OutcomeRejected
	it.rec.RejectReason = reason

	entry := p.Entry(it.index)
	entry.RunID = it.runID
	e, err := it.o.history.RecordRejected(entry, reason)
	if err != nil {
		it.log.Warn("record rejected", zap.Error(err))
		return
	}
	it.rec.EntryID = e.ID
	it.o.emit(it.log, "record patch", it.o.sink.RecordPatch(ctx, e))
	it.log.Info("proposal rejected", zap.String("target", p.Target), zap.String("reason", reason))
}

// fail aborts the iteration, keeping the partial record.
func (it *iteration) fail(ctx context.Context, phase Phase, err error) {
	it.rec.Outcome = OutcomeFailed
	it.rec.FailedPhase = phase
	it.rec.Reverted = false
	it.rec.RevertReason = err.Error()
	it.o.metrics.CallFailed(string(phase))
	it.log.Error("iteration aborted", zap.String("phase", string(phase)), zap.Error(err))
	it.decision(ctx, phase, string(OutcomeFailed), err.Error(), nil)
}

func (it *iteration) decision(ctx context.Context, phase Phase, decision, reason string, payload any) {
	entry := logging.DecisionEntry{
		RunID:     it.runID,
		Iteration: it.index,
		Phase:     string(phase),
		Decision:  decision,
		Reason:    reason,
		CreatedAt: it.o.clock().UTC(),
	}
	if payload != nil {
		if b, err := json.Marshal(payload); err == nil {
			entry.PayloadJSON = string(b)
		}
	}
	it.o.emit(it.log, "record decision", it.o.sink.RecordDecision(context.WithoutCancel(ctx), entry))
}

func clip(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// #endregion
