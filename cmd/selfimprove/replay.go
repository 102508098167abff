package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/selfimprove/internal/history"
	"github.com/danielpatrickdp/selfimprove/internal/orchestrator"
	"github.com/danielpatrickdp/selfimprove/internal/replay"
	"github.com/danielpatrickdp/selfimprove/internal/store"
)

var replayFlags struct {
	json bool
}

var replayCmd = &cobra.Command{
	Use:   "replay FIXTURE.json",
	Short: "Replay a recorded run in memory and check its expectations",
	Args:  cobra.ExactArgs(1),
	RunE:  runReplay,
}

var exportFlags struct {
	db  string
	out string
}

var exportCmd = &cobra.Command{
	Use:   "export RUN_ID",
	Short: "Export a stored run as a replay fixture",
	Args:  cobra.ExactArgs(1),
	RunE:  runExport,
}

func init() {
	replayCmd.Flags().BoolVar(&replayFlags.json, "json", false, "print the run summary as JSON")

	f := exportCmd.Flags()
	f.StringVar(&exportFlags.db, "db", "", "sqlite database (defaults to storage.path)")
	f.StringVarP(&exportFlags.out, "out", "o", "", "write the fixture here instead of stdout")
}

// #region replay

func runReplay(cmd *cobra.Command, args []string) error {
	f, err := replay.LoadFixture(args[0])
	if err != nil {
		return err
	}
	res, err := replay.Run(cmd.Context(), f)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if replayFlags.json {
		if err := printJSON(out, replay.Summarize(res)); err != nil {
			return err
		}
	} else {
		if f.Description != "" {
			fmt.Fprintf(out, "Fixture: %s\n", f.Description)
		}
		fmt.Fprintln(out, orchestrator.FormatSummary(res))
	}

	mismatches := replay.Check(f, res)
	for _, m := range mismatches {
		fmt.Fprintf(cmd.ErrOrStderr(), "MISMATCH %s\n", m)
	}
	if len(mismatches) > 0 {
		return fmt.Errorf("%d expectation(s) not met", len(mismatches))
	}
	if f.Expected != nil {
		fmt.Fprintln(out, "All expectations met.")
	}
	return nil
}

// #endregion replay

// #region export

func runExport(cmd *cobra.Command, args []string) error {
	runID := args[0]
	st, err := openStore(exportFlags.db)
	if err != nil {
		return err
	}
	defer st.Close()

	rec, err := loadRecorded(cmd, st, runID)
	if err != nil {
		return err
	}
	f, err := replay.FromRecords("exported from run "+runID, rec)
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal fixture: %w", err)
	}
	if exportFlags.out == "" {
		_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return err
	}
	if err := writeFile(exportFlags.out, data); err != nil {
		return err
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "wrote %s (%d iterations)\n", exportFlags.out, len(rec.Records))
	return nil
}

// loadRecorded reads a run, its iteration records and the history that
// existed before it started.
func loadRecorded(cmd *cobra.Command, st *store.Store, runID string) (replay.Recorded, error) {
	ctx := cmd.Context()
	runs, err := st.ListRuns(ctx)
	if err != nil {
		return replay.Recorded{}, err
	}
	var (
		run   *store.RunRow
		prior = map[string]bool{}
	)
	for i := range runs {
		if runs[i].RunID == runID {
			run = &runs[i]
		}
	}
	if run == nil {
		return replay.Recorded{}, fmt.Errorf("run %s not found", runID)
	}
	for _, r := range runs {
		if r.StartedAt.Before(run.StartedAt) {
			prior[r.RunID] = true
		}
	}

	out := replay.Recorded{
		Config:     orchestrator.DefaultConfig(),
		StopReason: run.StopReason,
		Scores:     run.ScoreProgression,
	}
	if err := json.Unmarshal([]byte(run.ConfigJSON), &out.Config); err != nil {
		return replay.Recorded{}, fmt.Errorf("decode run config: %w", err)
	}

	rows, err := st.ListIterations(ctx, runID)
	if err != nil {
		return replay.Recorded{}, err
	}
	for _, row := range rows {
		r, err := row.Record()
		if err != nil {
			return replay.Recorded{}, err
		}
		out.Records = append(out.Records, r)
	}

	entries, err := st.LoadHistory(ctx)
	if err != nil {
		return replay.Recorded{}, err
	}
	out.Prior = filterEntries(entries, func(e history.Entry) bool { return prior[e.RunID] })
	return out, nil
}

func filterEntries(entries []history.Entry, keep func(history.Entry) bool) []history.Entry {
	var out []history.Entry
	for _, e := range entries {
		if keep(e) {
			out = append(out, e)
		}
	}
	return out
}

// #endregion export
