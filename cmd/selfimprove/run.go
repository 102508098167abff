package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/danielpatrickdp/selfimprove/internal/config"
	"github.com/danielpatrickdp/selfimprove/internal/eval"
	"github.com/danielpatrickdp/selfimprove/internal/gate"
	"github.com/danielpatrickdp/selfimprove/internal/history"
	"github.com/danielpatrickdp/selfimprove/internal/llm"
	"github.com/danielpatrickdp/selfimprove/internal/logging"
	"github.com/danielpatrickdp/selfimprove/internal/metrics"
	"github.com/danielpatrickdp/selfimprove/internal/orchestrator"
	"github.com/danielpatrickdp/selfimprove/internal/patch"
	"github.com/danielpatrickdp/selfimprove/internal/review"
	"github.com/danielpatrickdp/selfimprove/internal/store"
)

var runFlags struct {
	maxIterations int
	outputDir     string
	dryRun        bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the self-improvement loop",
	RunE:  runRun,
}

func init() {
	f := runCmd.Flags()
	f.IntVar(&runFlags.maxIterations, "max-iterations", 0, "override self_improve.max_iterations")
	f.StringVar(&runFlags.outputDir, "output-dir", "", "override self_improve.output_dir")
	f.BoolVar(&runFlags.dryRun, "dry-run", false, "record patches without touching files")
}

// #region run

func runRun(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	fl := cmd.Flags()
	if fl.Changed("max-iterations") {
		cfg.SelfImprove.MaxIterations = runFlags.maxIterations
	}
	if fl.Changed("output-dir") {
		cfg.SelfImprove.OutputDir = runFlags.outputDir
	}
	if fl.Changed("dry-run") {
		cfg.Patch.DryRun = runFlags.dryRun
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if len(cfg.Eval.Command) == 0 {
		return errors.New("eval.command is not configured")
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	res, err := execute(ctx, cfg, logger)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), orchestrator.FormatSummary(res))
	return nil
}

// execute wires every collaborator from cfg and runs one orchestrator pass.
func execute(ctx context.Context, cfg *config.Config, logger *zap.Logger) (orchestrator.RunResult, error) {
	var none orchestrator.RunResult

	deps := orchestrator.Dependencies{
		Evaluator:    eval.NewCommandEvaluator(cfg.Eval.Command, cfg.Eval.Timeout),
		AgentFactory: eval.CommandAgentFactory(agentCommand(cfg.Eval)),
	}

	if cfg.Patch.DryRun {
		deps.Applier = &patch.DryRun{}
	} else {
		a, err := patch.NewFileApplier(cfg.Patch.Root)
		if err != nil {
			return none, fmt.Errorf("patch applier: %w", err)
		}
		deps.Applier = a
	}

	client, closeClient, err := newClient(cfg.LLM, logger)
	if err != nil {
		return none, err
	}
	defer closeClient()

	reviewers := review.StubPanel()
	if client != nil {
		deps.Proposer = llm.NewProposer(client, cfg.Patch.Root, logger.Named("proposer"))
		if cfg.LLM.Challenge {
			deps.Challenger = llm.NewChallenger(client)
		}
		reviewers = llm.Panel(client)
	}
	panel, err := review.NewPanel(reviewers, logger.Named("review"))
	if err != nil {
		return none, err
	}
	deps.Panel = panel

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)
	if cfg.Metrics.Addr != "" {
		stop := serveMetrics(cfg.Metrics.Addr, reg, logger)
		defer stop()
	}

	opts := []orchestrator.Option{
		orchestrator.WithLogger(logger.Named("orchestrator")),
		orchestrator.WithMetrics(m),
		orchestrator.WithGateConfig(gate.Config{ComponentFiles: cfg.Patch.ComponentFiles}),
	}
	if cfg.Storage.Path != "" {
		st, err := store.NewStore(cfg.Storage.Path)
		if err != nil {
			return none, fmt.Errorf("open store: %w", err)
		}
		defer st.Close()

		entries, err := st.LoadHistory(ctx)
		if err != nil {
			return none, fmt.Errorf("load history: %w", err)
		}
		h := history.New()
		h.Seed(entries)
		logger.Info("patch history loaded", zap.Int("entries", h.Len()), zap.String("path", cfg.Storage.Path))
		opts = append(opts, orchestrator.WithSink(st), orchestrator.WithHistory(h))
	}

	o, err := orchestrator.New(cfg.SelfImprove, deps, opts...)
	if err != nil {
		return none, err
	}
	return o.Run(ctx), nil
}

// agentCommand defaults the agent to the evaluation command itself.
func agentCommand(c config.EvalConfig) []string {
	if len(c.AgentCommand) > 0 {
		return c.AgentCommand
	}
	return c.Command
}

// #endregion run

// #region wiring

// newClient builds the configured LLM client. A nil client selects the stub
// collaborators.
func newClient(c config.LLMConfig, logger *zap.Logger) (llm.Client, func(), error) {
	nop := func() {}
	switch c.Provider {
	case config.ProviderOpenAI:
		oc, err := llm.NewOpenAIClient(llm.OpenAIConfig{
			APIKey:      c.APIKey,
			BaseURL:     c.BaseURL,
			Model:       c.Model,
			Temperature: c.Temperature,
		}, logger.Named("openai"))
		if err != nil {
			return nil, nop, err
		}
		return llm.WithTimeout(oc, c.Timeout), nop, nil
	case config.ProviderGRPC:
		gc, err := llm.NewGRPCClient(c.GRPCAddr, c.Model)
		if err != nil {
			return nil, nop, fmt.Errorf("connect completion service at %s: %w", c.GRPCAddr, err)
		}
		closeConn := func() {
			if err := gc.Close(); err != nil {
				logger.Warn("close completion client", zap.Error(err))
			}
		}
		return llm.WithTimeout(gc, c.Timeout), closeConn, nil
	default:
		logger.Warn("no llm provider configured, using stub proposer and reviewers")
		return nil, nop, nil
	}
}

// serveMetrics exposes reg on addr/metrics until the returned stop is called.
func serveMetrics(addr string, reg *prometheus.Registry, logger *zap.Logger) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		logger.Info("metrics listening", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", zap.Error(err))
		}
	}()
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			logger.Warn("metrics shutdown", zap.Error(err))
		}
	}
}

// #endregion wiring
