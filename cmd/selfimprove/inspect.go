package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/selfimprove/internal/config"
	"github.com/danielpatrickdp/selfimprove/internal/store"
)

var inspectFlags struct {
	db      string
	runID   string
	patches bool
	json    bool
}

var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Show recorded runs, their iterations and the patch history",
	RunE:  runInspect,
}

func init() {
	f := inspectCmd.Flags()
	f.StringVar(&inspectFlags.db, "db", "", "sqlite database (defaults to storage.path)")
	f.StringVar(&inspectFlags.runID, "run", "", "show the iterations of one run")
	f.BoolVar(&inspectFlags.patches, "patches", false, "list patch history instead of runs")
	f.BoolVar(&inspectFlags.json, "json", false, "output as JSON instead of a table")
}

// #region inspect

func runInspect(cmd *cobra.Command, _ []string) error {
	st, err := openStore(inspectFlags.db)
	if err != nil {
		return err
	}
	defer st.Close()

	ctx := cmd.Context()
	out := cmd.OutOrStdout()
	switch {
	case inspectFlags.patches:
		entries, err := st.ListPatches(ctx, inspectFlags.runID)
		if err != nil {
			return err
		}
		if inspectFlags.json {
			return printJSON(out, entries)
		}
		tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ENTRY\tRUN\tITER\tPARTITION\tTARGET\tREASON")
		for _, e := range entries {
			fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\t%s\n", short(e.ID), short(e.RunID), e.Iteration, e.Partition, e.Target, oneLine(e.Reason, 60))
		}
		return tw.Flush()

	case inspectFlags.runID != "":
		rows, err := st.ListIterations(ctx, inspectFlags.runID)
		if err != nil {
			return err
		}
		if len(rows) == 0 {
			return fmt.Errorf("no iterations recorded for run %s", inspectFlags.runID)
		}
		if inspectFlags.json {
			return printJSON(out, rows)
		}
		tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ITER\tOUTCOME\tPRE\tPOST\tDETAIL")
		for _, r := range rows {
			fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", r.Index, r.Outcome, score(r.PreScore), score(r.PostScore), detail(r))
		}
		return tw.Flush()

	default:
		runs, err := st.ListRuns(ctx)
		if err != nil {
			return err
		}
		if inspectFlags.json {
			return printJSON(out, runs)
		}
		if len(runs) == 0 {
			fmt.Fprintln(out, "no runs recorded")
			return nil
		}
		tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "RUN\tSTARTED\tSTOP\tAPPLIED\tREVERTED\tREJECTED\tSCORES")
		for _, r := range runs {
			stop := r.StopReason
			if r.FinishedAt == nil {
				stop = "(unfinished)"
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%d\t%s\n", r.RunID, r.StartedAt.Format("2006-01-02T15:04:05Z"),
				stop, r.Applied, r.Reverted, r.Rejected, progression(r.ScoreProgression))
		}
		return tw.Flush()
	}
}

// #endregion inspect

// #region helpers

// openStore opens path, falling back to the configured storage path.
func openStore(path string) (*store.Store, error) {
	if path == "" {
		cfg, err := config.Load(configPath)
		if err != nil {
			return nil, err
		}
		path = cfg.Storage.Path
	}
	if path == "" {
		return nil, fmt.Errorf("no database: pass --db or set storage.path")
	}
	st, err := store.NewStore(path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	return st, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func detail(r store.IterationRow) string {
	switch {
	case r.FailedPhase != "":
		return fmt.Sprintf("failed in %s: %s", r.FailedPhase, oneLine(r.RevertReason, 60))
	case r.Reverted:
		return oneLine(r.RevertReason, 60)
	case r.RejectReason != "":
		return oneLine(r.RejectReason, 60)
	}
	return ""
}

func score(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%.3f", *v)
}

func progression(scores []float64) string {
	parts := make([]string, len(scores))
	for i, s := range scores {
		parts[i] = fmt.Sprintf("%.3f", s)
	}
	return strings.Join(parts, " -> ")
}

func short(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func oneLine(s string, n int) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	r := []rune(s)
	if len(r) > n {
		return string(r[:n]) + "..."
	}
	return s
}

// #endregion helpers
