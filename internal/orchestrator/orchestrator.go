package orchestrator

// #region imports
import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/danielpatrickdp/selfimprove/internal/gate"
	"github.com/danielpatrickdp/selfimprove/internal/history"
	"github.com/danielpatrickdp/selfimprove/internal/metrics"
)

// #endregion

// ErrMissingDependency is returned by New when a required collaborator is nil.
var ErrMissingDependency = errors.New("missing dependency")

const tracerName = "github.com/danielpatrickdp/selfimprove/internal/orchestrator"

// #region orchestrator-struct

// Orchestrator runs the evaluate, diagnose, propose, review, apply and
// re-measure loop. One Run at a time per instance.
type Orchestrator struct {
	cfg     Config
	deps    Dependencies
	gate    *gate.Gate
	history *history.History

	gateCfg gate.Config
	logger  *zap.Logger
	sink    Sink
	metrics *metrics.Metrics
	tracer  trace.Tracer
	clock   func() time.Time
	newID   func() string
}

// Option customizes an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option { return func(o *Orchestrator) { o.logger = l } }

// WithSink sets the persistence sink.
func WithSink(s Sink) Option { return func(o *Orchestrator) { o.sink = s } }

// WithMetrics sets the prometheus collectors.
func WithMetrics(m *metrics.Metrics) Option { return func(o *Orchestrator) { o.metrics = m } }

// WithTracer sets the tracer used for run and phase spans.
func WithTracer(t trace.Tracer) Option { return func(o *Orchestrator) { o.tracer = t } }

// WithHistory supplies the patch history, e.g. one seeded from earlier runs.
func WithHistory(h *history.History) Option { return func(o *Orchestrator) { o.history = h } }

// WithClock overrides time.Now.
func WithClock(clock func() time.Time) Option { return func(o *Orchestrator) { o.clock = clock } }

// WithRunID overrides the run ID generator.
func WithRunID(gen func() string) Option { return func(o *Orchestrator) { o.newID = gen } }

// WithGateConfig sets how the gate resolves bottlenecks to targets.
func WithGateConfig(c gate.Config) Option { return func(o *Orchestrator) { o.gateCfg = c } }

// #endregion

// #region constructor

// New validates cfg and the required collaborators and wires an orchestrator.
func New(cfg Config, deps Dependencies, opts ...Option) (*Orchestrator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	switch {
	case deps.Evaluator == nil:
		return nil, fmt.Errorf("%w: evaluator", ErrMissingDependency)
	case deps.AgentFactory == nil:
		return nil, fmt.Errorf("%w: agent factory", ErrMissingDependency)
	case deps.Panel == nil:
		return nil, fmt.Errorf("%w: reviewer panel", ErrMissingDependency)
	case deps.Applier == nil:
		return nil, fmt.Errorf("%w: patch applier", ErrMissingDependency)
	}

	o := &Orchestrator{
		cfg:   cfg,
		deps:  deps,
		sink:  NopSink{},
		clock: time.Now,
		newID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}
	if o.tracer == nil {
		o.tracer = otel.Tracer(tracerName)
	}
	if o.history == nil {
		o.history = history.New()
	}
	o.gate = gate.NewGate(o.gateCfg, deps.Proposer, deps.Challenger, o.logger.Named("gate"))
	return o, nil
}

// History returns the patch history owned by this orchestrator.
func (o *Orchestrator) History() *history.History { return o.history }

// #endregion

// #region run

// Run executes up to MaxIterations iterations. It never returns an error:
// failures are recorded on the iteration they occurred in.
func (o *Orchestrator) Run(ctx context.Context) RunResult {
	start := o.clock()
	res := RunResult{
		RunID:               o.newID(),
		Config:              o.cfg,
		CategoryProgression: map[string][]float64{},
		StartedAt:           start,
	}
	log := o.logger.With(zap.String("run_id", res.RunID))

	ctx, span := o.tracer.Start(ctx, "selfimprove.run", trace.WithAttributes(
		attribute.String("run_id", res.RunID),
		attribute.Int("max_iterations", o.cfg.MaxIterations),
	))
	defer span.End()

	o.emit(log, "begin run", o.sink.BeginRun(ctx, RunInfo{RunID: res.RunID, Config: o.cfg, StartedAt: start}))
	log.Info("self-improvement run started",
		zap.Int("max_iterations", o.cfg.MaxIterations),
		zap.Float64("failure_threshold", o.cfg.FailureThreshold),
		zap.Float64("regression_threshold", o.cfg.RegressionThreshold))

	for i := 1; i <= o.cfg.MaxIterations; i++ {
		if ctx.Err() != nil {
			res.StopReason = StopCanceled
			break
		}

		it := &iteration{o: o, runID: res.RunID, log: log.With(zap.Int("iteration", i))}
		rec := it.run(ctx, i)
		res.Iterations = append(res.Iterations, rec)
		o.progress(&res, rec)
		o.metrics.IterationDone(string(rec.Outcome))
		o.writeIterationArtifacts(log, rec)
		o.emit(log, "record iteration", o.sink.RecordIteration(ctx, res.RunID, rec))

		if rec.Outcome == OutcomeConverged {
			res.StopReason = StopConverged
			break
		}
	}
	if res.StopReason == "" {
		if ctx.Err() != nil {
			res.StopReason = StopCanceled
		} else {
			res.StopReason = StopMaxIterations
		}
	}

	res.Applied, res.Reverted, res.Rejected = o.runCounts(res.RunID)
	res.TotalDuration = o.clock().Sub(start)

	o.writeSummary(log, res)
	o.emit(log, "finish run", o.sink.FinishRun(context.WithoutCancel(ctx), res))
	span.SetAttributes(attribute.String("stop_reason", res.StopReason), attribute.Int("iterations", len(res.Iterations)))

	log.Info("self-improvement run finished",
		zap.String("stop_reason", res.StopReason),
		zap.Int("iterations", len(res.Iterations)),
		zap.Int("applied", res.Applied),
		zap.Int("reverted", res.Reverted),
		zap.Int("rejected", res.Rejected),
		zap.Float64s("score_progression", res.ScoreProgression),
		zap.Duration("duration", res.TotalDuration))
	return res
}

// progress appends the kept state's scores after an iteration. The first
// measured baseline seeds the progression; an iteration with no baseline
// carries the last kept scores forward.
func (o *Orchestrator) progress(res *RunResult, rec IterationRecord) {
	if rec.PreReport == nil {
		if n := len(res.ScoreProgression); n > 0 {
			res.ScoreProgression = append(res.ScoreProgression, res.ScoreProgression[n-1])
			for cat, vs := range res.CategoryProgression {
				res.CategoryProgression[cat] = append(vs, vs[len(vs)-1])
			}
		}
		return
	}
	if len(res.ScoreProgression) == 0 {
		appendScores(res, rec.PreReport.OverallScore, rec.PreReport.CategoryAverages())
	}
	if rec.Outcome == OutcomeConverged {
		return
	}

	kept := rec.PreReport
	if rec.PostReport != nil && (rec.Outcome == OutcomeKept || (rec.FailedPhase == PhaseDecide && !rec.Reverted)) {
		kept = rec.PostReport
	}
	appendScores(res, kept.OverallScore, kept.CategoryAverages())
	o.metrics.Scores(kept.OverallScore, kept.CategoryAverages())
}

func appendScores(res *RunResult, overall float64, cats map[string]float64) {
	res.ScoreProgression = append(res.ScoreProgression, overall)
	for cat, v := range cats {
		res.CategoryProgression[cat] = append(res.CategoryProgression[cat], v)
	}
}

func (o *Orchestrator) runCounts(runID string) (applied, reverted, rejected int) {
	count := func(entries []history.Entry) int {
		n := 0
		for _, e := range entries {
			if e.RunID == runID {
				n++
			}
		}
		return n
	}
	return count(o.history.Applied()), count(o.history.Reverted()), count(o.history.Rejected())
}

// emit logs a sink failure without interrupting the run.
func (o *Orchestrator) emit(log *zap.Logger, what string, err error) {
	if err != nil {
		log.Warn("sink write failed", zap.String("event", what), zap.Error(err))
	}
}

// #endregion

// #region spans

func (o *Orchestrator) startPhase(ctx context.Context, phase Phase, index int) (context.Context, trace.Span, time.Time) {
	ctx, span := o.tracer.Start(ctx, "selfimprove.phase."+string(phase), trace.WithAttributes(
		attribute.String("phase", string(phase)),
		attribute.Int("iteration", index),
	))
	return ctx, span, o.clock()
}

func (o *Orchestrator) endPhase(span trace.Span, phase Phase, started time.Time, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
	o.metrics.ObservePhase(string(phase), o.clock().Sub(started))
}

// #endregion
