package gate

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/danielpatrickdp/selfimprove/internal/analyze"
	"github.com/danielpatrickdp/selfimprove/internal/history"
	"github.com/danielpatrickdp/selfimprove/internal/proposal"
)

// #region gate
// Gate turns a diagnosis into a vetted proposal or a rejection.
type Gate struct {
	config     Config
	proposer   proposal.Proposer
	challenger proposal.Challenger
	logger     *zap.Logger
}

// NewGate creates a gate. A nil proposer yields stub proposals; a nil
// challenger skips the challenge.
func NewGate(config Config, proposer proposal.Proposer, challenger proposal.Challenger, logger *zap.Logger) *Gate {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gate{
		config:     config,
		proposer:   proposer,
		challenger: challenger,
		logger:     logger,
	}
}

// Evaluate obtains a proposal for the diagnosis, checks it against the
// history, then runs the challenge. h is only read.
func (g *Gate) Evaluate(ctx context.Context, diag analyze.CategoryAnalysis, h *history.History, iteration int) (Decision, error) {
	target := proposal.ResolveTarget(diag.Bottleneck, g.config.ComponentFiles)
	req := proposal.NewRequest(diag, h, target, iteration)

	// --- Propose ---
	var p proposal.PatchProposal
	stub := g.proposer == nil
	if stub {
		p = proposal.Stub(req)
		g.logger.Warn("no proposer configured, using stub proposal",
			zap.Int("iteration", iteration),
			zap.String("category", diag.Category))
	} else {
		var err error
		p, err = g.proposer.Propose(ctx, req)
		if err != nil {
			return Decision{}, &CallError{Phase: PhasePropose, Err: err}
		}
		if err := p.Validate(); err != nil {
			return Decision{}, &CallError{Phase: PhasePropose, Err: err}
		}
	}

	// --- History veto pass ---
	if v, ok := historyVeto(p, h); ok {
		return Decision{
			Action:   ActionReject,
			Reason:   fmt.Sprintf("hard veto: %s", v.Reason),
			Vetoed:   true,
			Vetoes:   []Veto{v},
			Proposal: &p,
			Stub:     stub,
		}, nil
	}

	// --- Challenge ---
	outcome, err := g.challenge(ctx, p, stub)
	if err != nil {
		return Decision{Proposal: &p, Stub: stub}, &CallError{Phase: PhaseChallenge, Err: err}
	}
	coverage := Coverage(outcome)

	if !outcome.Adequate {
		return Decision{
			Action: ActionReject,
			Reason: ReasonChallengeInadequate,
			Vetoed: true,
			Vetoes: []Veto{{
				Type:   VetoChallengeInadequate,
				Reason: fmt.Sprintf("%d of %d arguments answered", answered(outcome), len(outcome.Arguments)),
			}},
			Coverage:  coverage,
			Proposal:  &p,
			Challenge: &outcome,
			Stub:      stub,
			Record:    true,
		}, nil
	}

	return Decision{
		Action:    ActionVote,
		Reason:    fmt.Sprintf("passed gate: coverage=%.2f", coverage),
		Coverage:  coverage,
		Proposal:  &p,
		Challenge: &outcome,
		Stub:      stub,
	}, nil
}

func (g *Gate) challenge(ctx context.Context, p proposal.PatchProposal, stub bool) (proposal.ChallengeOutcome, error) {
	if g.challenger == nil {
		return proposal.SkippedOutcome(), nil
	}
	args, err := g.challenger.Attack(ctx, p)
	if err != nil {
		return proposal.ChallengeOutcome{}, fmt.Errorf("attack: %w", err)
	}
	var d proposal.Defense
	if !stub && len(args) > 0 {
		d, err = g.proposer.Defend(ctx, p, args)
		if err != nil {
			return proposal.ChallengeOutcome{}, fmt.Errorf("defend: %w", err)
		}
	}
	return proposal.NewOutcome(args, d), nil
}

// #endregion gate

// #region helpers
// historyVeto rejects content the history already knows about.
func historyVeto(p proposal.PatchProposal, h *history.History) (Veto, bool) {
	if h == nil {
		return Veto{}, false
	}
	e, ok := h.Lookup(p.ContentHash())
	if !ok {
		return Veto{}, false
	}
	switch e.Partition {
	case history.PartitionReverted:
		return Veto{Type: VetoRepeatReverted, Reason: fmt.Sprintf("same change reverted in iteration %d: %s", e.Iteration, e.Reason)}, true
	case history.PartitionRejected:
		return Veto{Type: VetoRepeatRejected, Reason: fmt.Sprintf("same change rejected in iteration %d: %s", e.Iteration, e.Reason)}, true
	default:
		return Veto{Type: VetoAlreadyApplied, Reason: fmt.Sprintf("same change already applied in iteration %d", e.Iteration)}, true
	}
}

// Coverage is the answered share of challenge arguments, 1 when there were none.
func Coverage(o proposal.ChallengeOutcome) float64 {
	if len(o.Arguments) == 0 {
		return 1
	}
	return float64(answered(o)) / float64(len(o.Arguments))
}

func answered(o proposal.ChallengeOutcome) int {
	set := map[string]struct{}{}
	for _, s := range o.Acknowledged {
		set[s] = struct{}{}
	}
	for _, s := range o.Refuted {
		set[s] = struct{}{}
	}
	return len(set)
}

// #endregion helpers
