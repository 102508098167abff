// Package replay reruns a recorded self-improvement session entirely in
// memory, with scripted collaborators and a dry-run applier.
package replay

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/danielpatrickdp/selfimprove/internal/eval"
	"github.com/danielpatrickdp/selfimprove/internal/gate"
	"github.com/danielpatrickdp/selfimprove/internal/history"
	"github.com/danielpatrickdp/selfimprove/internal/orchestrator"
	"github.com/danielpatrickdp/selfimprove/internal/patch"
	"github.com/danielpatrickdp/selfimprove/internal/proposal"
	"github.com/danielpatrickdp/selfimprove/internal/review"
)

// RunID is the run ID every replay uses.
const RunID = "replay"

// Epoch is the fixed clock of a replay.
var Epoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

// #region scripts

// script hands out items in order and repeats the last one.
type script[T any] struct {
	mu    sync.Mutex
	items []T
	calls int
}

func (s *script[T]) next() T {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := min(s.calls, len(s.items)-1)
	s.calls++
	return s.items[i]
}

type replayAgent struct{}

func (replayAgent) Name() string { return RunID }
func (replayAgent) Close() error { return nil }

type scriptedProposer struct {
	proposals *script[proposal.PatchProposal]
	defenses  *script[proposal.Defense]
}

func (p *scriptedProposer) Propose(_ context.Context, req proposal.Request) (proposal.PatchProposal, error) {
	prop := p.proposals.next()
	if prop.Target == "" {
		prop.Target = req.Target
	}
	return prop, nil
}

func (p *scriptedProposer) Defend(context.Context, proposal.PatchProposal, []string) (proposal.Defense, error) {
	if p.defenses == nil {
		return proposal.Defense{}, nil
	}
	return p.defenses.next(), nil
}

type scriptedChallenger struct{ arguments *script[[]string] }

func (c *scriptedChallenger) Attack(context.Context, proposal.PatchProposal) ([]string, error) {
	return c.arguments.next(), nil
}

func scriptedReviewer(verdicts []string) review.Reviewer {
	s := &script[string]{items: verdicts}
	return review.ReviewerFunc(func(_ context.Context, req review.Request) (review.Vote, error) {
		v := s.next()
		return review.Vote{
			ReviewerID: string(req.Role),
			Verdict:    review.Verdict(v),
			Rationale:  fmt.Sprintf("replayed %s vote", v),
		}, nil
	})
}

// #endregion scripts

// #region replay

// Run replays the fixture. opts are applied after the replay defaults, so
// callers can attach a logger, sink or metrics.
func Run(ctx context.Context, f *Fixture, opts ...orchestrator.Option) (orchestrator.RunResult, error) {
	if len(f.Reports) == 0 {
		return orchestrator.RunResult{}, fmt.Errorf("fixture has no reports")
	}
	cfg := f.Config
	cfg.OutputDir = ""

	reports := &script[eval.Report]{items: f.Reports}
	deps := orchestrator.Dependencies{
		Evaluator: eval.EvaluatorFunc(func(context.Context, eval.Agent, eval.Params) (eval.Report, error) {
			return reports.next(), nil
		}),
		AgentFactory: func() (eval.Agent, error) { return replayAgent{}, nil },
		Applier:      &patch.DryRun{},
	}
	if len(f.Proposals) > 0 {
		p := &scriptedProposer{proposals: &script[proposal.PatchProposal]{items: f.Proposals}}
		if len(f.Defenses) > 0 {
			p.defenses = &script[proposal.Defense]{items: f.Defenses}
		}
		deps.Proposer = p
	}
	if len(f.Challenges) > 0 {
		deps.Challenger = &scriptedChallenger{arguments: &script[[]string]{items: f.Challenges}}
	}

	reviewers := review.StubPanel()
	for role, verdicts := range f.Votes {
		if len(verdicts) > 0 {
			reviewers[role] = scriptedReviewer(verdicts)
		}
	}
	panel, err := review.NewPanel(reviewers, nil)
	if err != nil {
		return orchestrator.RunResult{}, err
	}
	deps.Panel = panel

	h := history.New()
	h.Seed(f.History)

	base := []orchestrator.Option{
		orchestrator.WithClock(func() time.Time { return Epoch }),
		orchestrator.WithRunID(func() string { return RunID }),
		orchestrator.WithHistory(h),
		orchestrator.WithGateConfig(gate.Config{ComponentFiles: f.ComponentFiles}),
		orchestrator.WithLogger(zap.NewNop()),
	}
	o, err := orchestrator.New(cfg, deps, append(base, opts...)...)
	if err != nil {
		return orchestrator.RunResult{}, fmt.Errorf("build orchestrator: %w", err)
	}
	return o.Run(ctx), nil
}

// #endregion replay

// #region summary

// Summary provides aggregate stats from a replayed run.
type Summary struct {
	Iterations int     `json:"iterations"`
	Kept       int     `json:"kept"`
	Reverted   int     `json:"reverted"`
	Rejected   int     `json:"rejected"`
	Failed     int     `json:"failed"`
	Converged  bool    `json:"converged"`
	FinalScore float64 `json:"final_score"`
	StopReason string  `json:"stop_reason"`
}

// Summarize computes aggregate stats from a run result.
func Summarize(res orchestrator.RunResult) Summary {
	s := Summary{
		Iterations: len(res.Iterations),
		StopReason: res.StopReason,
	}
	for _, rec := range res.Iterations {
		switch rec.Outcome {
		case orchestrator.OutcomeKept:
			s.Kept++
		case orchestrator.OutcomeReverted:
			s.Reverted++
		case orchestrator.OutcomeRejected:
			s.Rejected++
		case orchestrator.OutcomeFailed:
			s.Failed++
		case orchestrator.OutcomeConverged:
			s.Converged = true
		}
	}
	if n := len(res.ScoreProgression); n > 0 {
		s.FinalScore = res.ScoreProgression[n-1]
	}
	return s
}

// #endregion summary

// #region check

// scoreTolerance absorbs float formatting in recorded progressions.
const scoreTolerance = 1e-6

// Check compares a result with the fixture's expectations and lists every
// mismatch. A fixture without expectations always passes.
func Check(f *Fixture, res orchestrator.RunResult) []string {
	want := f.Expected
	if want == nil {
		return nil
	}
	var out []string
	if want.StopReason != "" && want.StopReason != res.StopReason {
		out = append(out, fmt.Sprintf("stop reason: want %q, got %q", want.StopReason, res.StopReason))
	}
	if want.Outcomes != nil {
		if len(want.Outcomes) != len(res.Iterations) {
			out = append(out, fmt.Sprintf("iterations: want %d, got %d", len(want.Outcomes), len(res.Iterations)))
		}
		for i := 0; i < len(want.Outcomes) && i < len(res.Iterations); i++ {
			rec := res.Iterations[i]
			if string(rec.Outcome) != want.Outcomes[i] {
				out = append(out, fmt.Sprintf("iteration %d: want %s, got %s (%s)",
					rec.Index, want.Outcomes[i], rec.Outcome, reasonOf(rec)))
			}
		}
	}
	if want.ScoreProgression != nil {
		if len(want.ScoreProgression) != len(res.ScoreProgression) {
			out = append(out, fmt.Sprintf("score progression: want %v, got %v", want.ScoreProgression, res.ScoreProgression))
		} else {
			for i, w := range want.ScoreProgression {
				if math.Abs(w-res.ScoreProgression[i]) > scoreTolerance {
					out = append(out, fmt.Sprintf("score %d: want %.3f, got %.3f", i, w, res.ScoreProgression[i]))
				}
			}
		}
	}
	counts := []struct {
		name string
		want *int
		got  int
	}{
		{"applied", want.Applied, res.Applied},
		{"reverted", want.Reverted, res.Reverted},
		{"rejected", want.Rejected, res.Rejected},
	}
	for _, c := range counts {
		if c.want != nil && *c.want != c.got {
			out = append(out, fmt.Sprintf("patches %s: want %d, got %d", c.name, *c.want, c.got))
		}
	}
	return out
}

func reasonOf(rec orchestrator.IterationRecord) string {
	switch {
	case rec.RejectReason != "":
		return rec.RejectReason
	case rec.RevertReason != "":
		return rec.RevertReason
	}
	return "no reason recorded"
}

// #endregion check
