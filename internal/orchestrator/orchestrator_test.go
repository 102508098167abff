package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/danielpatrickdp/selfimprove/internal/eval"
	"github.com/danielpatrickdp/selfimprove/internal/gate"
	"github.com/danielpatrickdp/selfimprove/internal/history"
	"github.com/danielpatrickdp/selfimprove/internal/logging"
	"github.com/danielpatrickdp/selfimprove/internal/metrics"
	"github.com/danielpatrickdp/selfimprove/internal/patch"
	"github.com/danielpatrickdp/selfimprove/internal/proposal"
	"github.com/danielpatrickdp/selfimprove/internal/review"
)

// #region fakes

type fakeAgent struct{ closed *int }

func (fakeAgent) Name() string { return "fake" }

func (a fakeAgent) Close() error {
	*a.closed++
	return nil
}

// scriptedEvaluator returns reports in order. errs keys are 0-based call numbers.
type scriptedEvaluator struct {
	mu      sync.Mutex
	reports []eval.Report
	errs    map[int]error
	onCall  func(n int)
	calls   int
}

func (s *scriptedEvaluator) Run(context.Context, eval.Agent, eval.Params) (eval.Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := s.calls
	s.calls++
	if s.onCall != nil {
		s.onCall(n)
	}
	if err := s.errs[n]; err != nil {
		return eval.Report{}, err
	}
	if n >= len(s.reports) {
		return s.reports[len(s.reports)-1], nil
	}
	return s.reports[n], nil
}

// iterProposer proposes a distinct change per iteration.
type iterProposer struct {
	confidence float64
	err        error
	defense    proposal.Defense
}

func (p *iterProposer) Propose(_ context.Context, req proposal.Request) (proposal.PatchProposal, error) {
	if p.err != nil {
		return proposal.PatchProposal{}, p.err
	}
	return proposal.PatchProposal{
		Target:      req.Target,
		Hypothesis:  "retrieval misses " + req.Diagnosis.Category,
		Description: fmt.Sprintf("tune retrieval for iteration %d", req.Iteration),
		Change:      fmt.Sprintf("@@ change %d @@", req.Iteration),
		Confidence:  p.confidence,
	}, nil
}

func (p *iterProposer) Defend(context.Context, proposal.PatchProposal, []string) (proposal.Defense, error) {
	return p.defense, nil
}

type argChallenger struct {
	args []string
	err  error
}

func (c argChallenger) Attack(context.Context, proposal.PatchProposal) ([]string, error) {
	return c.args, c.err
}

type failingSink struct{ NopSink }

func (failingSink) RecordIteration(context.Context, string, IterationRecord) error {
	return errors.New("disk full")
}

type recordingSink struct {
	NopSink
	mu        sync.Mutex
	began     []RunInfo
	patches   []history.Entry
	decisions []logging.DecisionEntry
	finished  []RunResult
}

func (s *recordingSink) BeginRun(_ context.Context, info RunInfo) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.began = append(s.began, info)
	return nil
}

func (s *recordingSink) RecordPatch(_ context.Context, e history.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.patches = append(s.patches, e)
	return nil
}

func (s *recordingSink) RecordDecision(_ context.Context, e logging.DecisionEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.decisions = append(s.decisions, e)
	return nil
}

func (s *recordingSink) FinishRun(_ context.Context, res RunResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.finished = append(s.finished, res)
	return nil
}

// #endregion fakes

// #region helpers

func report(overall float64, cats map[string]float64) eval.Report {
	names := make([]string, 0, len(cats))
	for c := range cats {
		names = append(names, c)
	}
	sort.Strings(names)
	r := eval.Report{NumTurns: 10, NumQuestions: len(names), OverallScore: overall}
	for _, c := range names {
		r.Categories = append(r.Categories, eval.CategoryScore{Category: c, Avg: cats[c], Min: cats[c], Max: cats[c], Count: 1})
	}
	return r
}

func testConfig(maxIter int) Config {
	cfg := DefaultConfig()
	cfg.MaxIterations = maxIter
	cfg.OutputDir = ""
	return cfg
}

func fixedClock() func() time.Time {
	t0 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return func() time.Time { return t0 }
}

func counterIDs(prefix string) func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("%s-%d", prefix, n)
	}
}

type harness struct {
	evaluator *scriptedEvaluator
	applier   *patch.DryRun
	proposer  proposal.Proposer
	challenge proposal.Challenger
	panel     map[review.Role]review.Reviewer
	closed    int
}

func newHarness(reports ...eval.Report) *harness {
	return &harness{
		evaluator: &scriptedEvaluator{reports: reports},
		applier:   &patch.DryRun{},
		proposer:  &iterProposer{confidence: 0.9},
		panel:     review.StubPanel(),
	}
}

func (h *harness) build(t *testing.T, cfg Config, opts ...Option) *Orchestrator {
	t.Helper()
	panel, err := review.NewPanel(h.panel, nil)
	require.NoError(t, err)
	deps := Dependencies{
		Evaluator:    h.evaluator,
		AgentFactory: func() (eval.Agent, error) { return fakeAgent{closed: &h.closed}, nil },
		Proposer:     h.proposer,
		Challenger:   h.challenge,
		Panel:        panel,
		Applier:      h.applier,
	}
	base := []Option{
		WithClock(fixedClock()),
		WithRunID(func() string { return "run-1" }),
		WithHistory(history.NewWithIDs(counterIDs("entry"))),
	}
	o, err := New(cfg, deps, append(base, opts...)...)
	require.NoError(t, err)
	return o
}

// Baseline fails recall; source_attribution is healthy until regress.
var (
	baseline = report(0.72, map[string]float64{"needle_in_haystack": 0.5, "source_attribution": 0.9})
	improved = report(0.78, map[string]float64{"needle_in_haystack": 0.625, "source_attribution": 0.9})
	regress  = report(0.74, map[string]float64{"needle_in_haystack": 0.625, "source_attribution": 0.82})
	healthy  = report(0.9, map[string]float64{"needle_in_haystack": 0.9, "source_attribution": 0.9})
)

// #endregion helpers

// #region construction-tests

func TestNewValidatesConfigAndDependencies(t *testing.T) {
	h := newHarness(baseline)
	panel, err := review.NewPanel(h.panel, nil)
	require.NoError(t, err)
	full := Dependencies{
		Evaluator:    h.evaluator,
		AgentFactory: func() (eval.Agent, error) { return fakeAgent{closed: &h.closed}, nil },
		Panel:        panel,
		Applier:      h.applier,
	}

	bad := testConfig(0)
	_, err = New(bad, full)
	require.ErrorIs(t, err, ErrInvalidConfig)

	for name, mutate := range map[string]func(*Dependencies){
		"evaluator": func(d *Dependencies) { d.Evaluator = nil },
		"factory":   func(d *Dependencies) { d.AgentFactory = nil },
		"panel":     func(d *Dependencies) { d.Panel = nil },
		"applier":   func(d *Dependencies) { d.Applier = nil },
	} {
		t.Run(name, func(t *testing.T) {
			deps := full
			mutate(&deps)
			_, err := New(testConfig(1), deps)
			require.ErrorIs(t, err, ErrMissingDependency)
		})
	}

	o, err := New(testConfig(1), full)
	require.NoError(t, err)
	assert.NotNil(t, o.History())
}

func TestConfigValidate(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())

	cases := map[string]func(*Config){
		"turns":      func(c *Config) { c.NumTurns = 0 },
		"questions":  func(c *Config) { c.NumQuestions = -1 },
		"iterations": func(c *Config) { c.MaxIterations = 0 },
		"tau-zero":   func(c *Config) { c.FailureThreshold = 0 },
		"tau-high":   func(c *Config) { c.FailureThreshold = 1.5 },
		"theta":      func(c *Config) { c.RegressionThreshold = -1 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			c := DefaultConfig()
			mutate(&c)
			assert.ErrorIs(t, c.Validate(), ErrInvalidConfig)
		})
	}

	p := DefaultConfig().Params()
	assert.Equal(t, eval.Params{NumTurns: 100, NumQuestions: 20, Seed: 42}, p)
}

// #endregion construction-tests

// #region run-tests

func TestRunKeepsThenRevertsRegression(t *testing.T) {
	h := newHarness(baseline, improved, improved, regress)
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	sink := &recordingSink{}
	o := h.build(t, testConfig(2), WithMetrics(m), WithSink(sink))

	res := o.Run(context.Background())

	require.Len(t, res.Iterations, 2)
	assert.Equal(t, StopMaxIterations, res.StopReason)
	assert.Equal(t, []float64{0.72, 0.78, 0.78}, res.ScoreProgression)

	first, second := res.Iterations[0], res.Iterations[1]
	assert.Equal(t, OutcomeKept, first.Outcome)
	assert.False(t, first.Reverted)
	require.NotNil(t, first.Review)
	assert.Equal(t, review.OutcomeAccepted, first.Review.Outcome)

	assert.Equal(t, OutcomeReverted, second.Outcome)
	assert.True(t, second.Reverted)
	require.NotNil(t, second.Regression)
	assert.Equal(t, "source_attribution", second.Regression.WorstCategory)
	assert.InDelta(t, 8.0, second.Regression.MaxRegressionPP, 1e-6)
	assert.Contains(t, second.RevertReason, "source_attribution regressed")

	assert.Equal(t, []patch.Ref{"dry-2"}, h.applier.Reverted())
	assert.Len(t, h.applier.Applied(), 2)

	applied := o.History().Applied()
	reverted := o.History().Reverted()
	require.Len(t, applied, 1)
	require.Len(t, reverted, 1)
	assert.Equal(t, 1, applied[0].Iteration)
	assert.Equal(t, "run-1", applied[0].RunID)
	assert.Equal(t, "dry-1", applied[0].AppliedRef)
	assert.Equal(t, 2, reverted[0].Iteration)
	assert.Equal(t, 1, res.Applied)
	assert.Equal(t, 1, res.Reverted)
	assert.Equal(t, 0, res.Rejected)

	assert.Equal(t, []float64{0.5, 0.625, 0.625}, res.CategoryProgression["needle_in_haystack"])
	assert.Equal(t, 4, h.closed, "every evaluation gets a fresh agent that is closed")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Iterations.WithLabelValues("kept")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Iterations.WithLabelValues("reverted")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Reverts))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Votes.WithLabelValues("quality", "accept")))
	assert.InDelta(t, 0.78, testutil.ToFloat64(m.Score), 1e-9)

	require.Len(t, sink.began, 1)
	require.Len(t, sink.finished, 1)
	assert.Equal(t, res.RunID, sink.finished[0].RunID)
	// applied, applied, reverted
	require.Len(t, sink.patches, 3)
	assert.Equal(t, history.PartitionReverted, sink.patches[2].Partition)
	assert.NotEmpty(t, sink.decisions)
}

func TestRunConvergesEarly(t *testing.T) {
	h := newHarness(healthy)
	o := h.build(t, testConfig(3))

	res := o.Run(context.Background())

	require.Len(t, res.Iterations, 1)
	assert.Equal(t, OutcomeConverged, res.Iterations[0].Outcome)
	assert.Equal(t, StopConverged, res.StopReason)
	assert.Equal(t, []float64{0.9}, res.ScoreProgression)
	assert.Empty(t, h.applier.Applied())
	assert.Nil(t, res.Iterations[0].Proposal)
}

func TestRunInadequateChallengeRejects(t *testing.T) {
	h := newHarness(baseline)
	h.proposer = &iterProposer{confidence: 0.9, defense: proposal.Defense{Refuted: []string{"a"}}}
	h.challenge = argChallenger{args: []string{"a", "b", "c"}}
	o := h.build(t, testConfig(1))

	res := o.Run(context.Background())

	rec := res.Iterations[0]
	assert.Equal(t, OutcomeRejected, rec.Outcome)
	assert.Equal(t, gate.ReasonChallengeInadequate, rec.RejectReason)
	assert.Nil(t, rec.Review, "no vote after an inadequate challenge")
	require.NotNil(t, rec.Challenge)
	assert.ElementsMatch(t, []string{"b", "c"}, rec.Challenge.Remaining)
	assert.Empty(t, h.applier.Applied())

	rejected := o.History().Rejected()
	require.Len(t, rejected, 1)
	assert.Equal(t, gate.ReasonChallengeInadequate, rejected[0].Reason)
	assert.Equal(t, 1, res.Rejected)
	assert.Equal(t, []float64{0.72, 0.72}, res.ScoreProgression)
}

func TestRunAdequateChallengeProceedsToVote(t *testing.T) {
	h := newHarness(baseline, improved)
	h.proposer = &iterProposer{confidence: 0.9, defense: proposal.Defense{Acknowledged: []string{"a"}, Refuted: []string{"b"}}}
	h.challenge = argChallenger{args: []string{"a", "b", "c"}}
	o := h.build(t, testConfig(1))

	res := o.Run(context.Background())

	rec := res.Iterations[0]
	assert.Equal(t, OutcomeKept, rec.Outcome)
	require.NotNil(t, rec.Gate)
	assert.InDelta(t, 2.0/3.0, rec.Gate.Coverage, 1e-9)
}

func TestRunVoteOutcomesNeverApply(t *testing.T) {
	cases := map[string]struct {
		confidence float64
		prefix     string
	}{
		"rejected": {confidence: 0.2, prefix: "Decision: rejected"},
		"modified": {confidence: 0.5, prefix: "Decision: modified"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			h := newHarness(baseline)
			h.proposer = &iterProposer{confidence: tc.confidence}
			o := h.build(t, testConfig(1))

			res := o.Run(context.Background())

			rec := res.Iterations[0]
			assert.Equal(t, OutcomeRejected, rec.Outcome)
			assert.True(t, len(rec.RejectReason) <= maxReasonLen)
			assert.Contains(t, rec.RejectReason, tc.prefix)
			assert.Empty(t, h.applier.Applied())
			require.Len(t, o.History().Rejected(), 1)
			assert.Nil(t, rec.PostReport)
		})
	}
}

func TestRunStubProposalsHitRepeatVeto(t *testing.T) {
	h := newHarness(baseline)
	h.proposer = nil
	o := h.build(t, testConfig(3))

	res := o.Run(context.Background())

	require.Len(t, res.Iterations, 3)
	first := res.Iterations[0]
	assert.Equal(t, OutcomeRejected, first.Outcome)
	require.NotNil(t, first.Review)
	assert.Equal(t, review.OutcomeRejected, first.Review.Outcome)

	for _, rec := range res.Iterations[1:] {
		assert.Equal(t, OutcomeRejected, rec.Outcome)
		require.NotNil(t, rec.Gate)
		assert.True(t, rec.Gate.Vetoed)
		require.Len(t, rec.Gate.Vetoes, 1)
		assert.Equal(t, gate.VetoRepeatRejected, rec.Gate.Vetoes[0].Type)
		assert.Nil(t, rec.Review)
	}
	assert.Len(t, o.History().Rejected(), 1, "vetoed content is not recorded again")
	assert.Empty(t, h.applier.Applied())
}

func TestRunFailurePhases(t *testing.T) {
	boom := errors.New("boom")
	cases := []struct {
		name    string
		setup   func(h *harness)
		phase   Phase
		applied bool
	}{
		{
			name:  "eval",
			setup: func(h *harness) { h.evaluator.errs = map[int]error{0: boom} },
			phase: PhaseEval,
		},
		{
			name:  "propose",
			setup: func(h *harness) { h.proposer = &iterProposer{err: boom} },
			phase: PhasePropose,
		},
		{
			name:  "invalid proposal",
			setup: func(h *harness) { h.proposer = &iterProposer{confidence: 2} },
			phase: PhasePropose,
		},
		{
			name:  "challenge",
			setup: func(h *harness) { h.challenge = argChallenger{err: boom} },
			phase: PhaseChallenge,
		},
		{
			name: "vote",
			setup: func(h *harness) {
				h.panel[review.RoleSimplicity] = review.ReviewerFunc(func(context.Context, review.Request) (review.Vote, error) {
					return review.Vote{}, boom
				})
			},
			phase: PhaseVote,
		},
		{
			name:  "apply",
			setup: func(h *harness) { h.applier.ApplyErr = boom },
			phase: PhaseApply,
		},
		{
			name:    "re-eval",
			setup:   func(h *harness) { h.evaluator.errs = map[int]error{1: boom} },
			phase:   PhaseReEval,
			applied: true,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(baseline, improved)
			tc.setup(h)
			reg := prometheus.NewRegistry()
			m := metrics.New(reg)
			o := h.build(t, testConfig(1), WithMetrics(m))

			res := o.Run(context.Background())

			require.Len(t, res.Iterations, 1)
			rec := res.Iterations[0]
			assert.Equal(t, OutcomeFailed, rec.Outcome)
			assert.Equal(t, tc.phase, rec.FailedPhase)
			assert.False(t, rec.Reverted)
			assert.NotEmpty(t, rec.RevertReason)
			assert.Equal(t, 1.0, testutil.ToFloat64(m.CallFailures.WithLabelValues(string(tc.phase))))
			assert.Equal(t, tc.applied, len(o.History().Applied()) == 1)
			assert.Equal(t, StopMaxIterations, res.StopReason)
		})
	}
}

func TestRunApplyFailureRecordsRejection(t *testing.T) {
	h := newHarness(baseline)
	h.applier.ApplyErr = errors.New("hunk 1 did not apply")
	o := h.build(t, testConfig(1))

	res := o.Run(context.Background())

	assert.Equal(t, OutcomeFailed, res.Iterations[0].Outcome)
	rejected := o.History().Rejected()
	require.Len(t, rejected, 1)
	assert.Equal(t, "apply failed: hunk 1 did not apply", rejected[0].Reason)
}

func TestRunRevertFailureKeepsPatch(t *testing.T) {
	h := newHarness(baseline, report(0.7, map[string]float64{"needle_in_haystack": 0.5, "source_attribution": 0.82}))
	h.applier.RevertErr = errors.New("ref gone")
	o := h.build(t, testConfig(1))

	res := o.Run(context.Background())

	rec := res.Iterations[0]
	assert.Equal(t, OutcomeFailed, rec.Outcome)
	assert.Equal(t, PhaseDecide, rec.FailedPhase)
	assert.False(t, rec.Reverted)
	assert.Contains(t, rec.RevertReason, "revert failed")
	assert.Len(t, o.History().Applied(), 1)
	assert.Equal(t, []float64{0.72, 0.7}, res.ScoreProgression, "the patch is still live")
}

func TestRunEvalFailureCarriesScoresForward(t *testing.T) {
	h := newHarness(baseline, improved, improved, improved, healthy)
	h.evaluator.errs = map[int]error{2: errors.New("bench crashed")}
	o := h.build(t, testConfig(3))

	res := o.Run(context.Background())

	require.Len(t, res.Iterations, 3)
	assert.Equal(t, OutcomeKept, res.Iterations[0].Outcome)
	assert.Equal(t, PhaseEval, res.Iterations[1].FailedPhase)
	assert.Equal(t, OutcomeKept, res.Iterations[2].Outcome)
	assert.Equal(t, []float64{0.72, 0.78, 0.78, 0.9}, res.ScoreProgression)
	assert.Equal(t, []float64{0.5, 0.625, 0.625, 0.9}, res.CategoryProgression["needle_in_haystack"])
}

func TestRunFirstEvalFailureLeavesProgressionUnseeded(t *testing.T) {
	h := newHarness(baseline, baseline, improved)
	h.evaluator.errs = map[int]error{0: errors.New("bench crashed")}
	o := h.build(t, testConfig(2))

	res := o.Run(context.Background())

	require.Len(t, res.Iterations, 2)
	assert.Equal(t, PhaseEval, res.Iterations[0].FailedPhase)
	assert.Equal(t, []float64{0.72, 0.78}, res.ScoreProgression, "seeded by the first measured baseline")
}

func TestRunCanceledBeforeStart(t *testing.T) {
	h := newHarness(baseline)
	o := h.build(t, testConfig(3))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := o.Run(ctx)

	assert.Empty(t, res.Iterations)
	assert.Equal(t, StopCanceled, res.StopReason)
	assert.Equal(t, "run-1", res.RunID)
}

func TestRunCanceledBetweenIterations(t *testing.T) {
	h := newHarness(baseline, improved)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h.evaluator.onCall = func(n int) {
		if n == 1 {
			cancel()
		}
	}
	o := h.build(t, testConfig(3))

	res := o.Run(ctx)

	require.Len(t, res.Iterations, 1)
	assert.Equal(t, OutcomeKept, res.Iterations[0].Outcome)
	assert.Equal(t, StopCanceled, res.StopReason)
}

func TestRunSinkFailureIsLoggedNotFatal(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	h := newHarness(baseline, improved)
	o := h.build(t, testConfig(1), WithSink(failingSink{}), WithLogger(zap.New(core)))

	res := o.Run(context.Background())

	assert.Equal(t, OutcomeKept, res.Iterations[0].Outcome)
	entries := logs.FilterMessage("sink write failed").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "record iteration", entries[0].ContextMap()["event"])
}

func TestRunIsDeterministic(t *testing.T) {
	run := func() RunResult {
		h := newHarness(baseline, improved, improved, regress)
		return h.build(t, testConfig(3)).Run(context.Background())
	}

	a, b := run(), run()

	if diff := cmp.Diff(a, b, cmpopts.IgnoreFields(IterationRecord{}, "Duration")); diff != "" {
		t.Errorf("runs differ (-first +second):\n%s", diff)
	}
}

func TestRunEmitsPhaseSpans(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	h := newHarness(baseline, improved)
	o := h.build(t, testConfig(1), WithTracer(tp.Tracer("test")))

	o.Run(context.Background())

	var names []string
	for _, s := range sr.Ended() {
		names = append(names, s.Name())
	}
	for _, want := range []string{
		"selfimprove.run",
		"selfimprove.phase.eval",
		"selfimprove.phase.analyze",
		"selfimprove.phase.propose",
		"selfimprove.phase.vote",
		"selfimprove.phase.apply",
		"selfimprove.phase.re-eval",
		"selfimprove.phase.decide",
	} {
		assert.Contains(t, names, want)
	}
}

func TestRunWritesArtifacts(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(1)
	cfg.OutputDir = dir
	h := newHarness(baseline, improved)
	o := h.build(t, cfg)

	o.Run(context.Background())

	for _, p := range []string{
		SummaryFile,
		filepath.Join(IterationDir(1), ReportFile),
		filepath.Join(IterationDir(1), RecordFile),
	} {
		_, err := os.Stat(filepath.Join(dir, p))
		assert.NoError(t, err, p)
	}
	got, err := eval.LoadReport(filepath.Join(dir, IterationDir(1), ReportFile))
	require.NoError(t, err)
	assert.InDelta(t, 0.72, got.OverallScore, 1e-9)
}

// #endregion run-tests

// #region summary-tests

func TestFormatSummary(t *testing.T) {
	h := newHarness(baseline, improved, improved, regress)
	res := h.build(t, testConfig(2)).Run(context.Background())

	out := FormatSummary(res)

	assert.Contains(t, out, "Run run-1: 2 iteration(s)")
	assert.Contains(t, out, "Score progression: 0.720 -> 0.780 -> 0.780")
	assert.Contains(t, out, "1 applied, 1 reverted, 0 rejected")
	assert.Contains(t, out, "[1] kept patch to")
	assert.Contains(t, out, "[2] reverted patch to")
	assert.Contains(t, out, "+12.5pp")
}

// #endregion summary-tests
