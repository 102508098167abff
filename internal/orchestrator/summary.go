package orchestrator

import (
	"fmt"
	"sort"
	"strings"
)

// FormatSummary renders a run result for humans. Patches that were applied
// and kept, applied and reverted, and rejected before apply are listed apart.
func FormatSummary(res RunResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Run %s: %d iteration(s), stopped: %s\n", res.RunID, len(res.Iterations), res.StopReason)
	if len(res.ScoreProgression) > 0 {
		parts := make([]string, len(res.ScoreProgression))
		for i, s := range res.ScoreProgression {
			parts[i] = fmt.Sprintf("%.3f", s)
		}
		fmt.Fprintf(&b, "Score progression: %s\n", strings.Join(parts, " -> "))
	}
	fmt.Fprintf(&b, "Patches: %d applied, %d reverted, %d rejected\n", res.Applied, res.Reverted, res.Rejected)

	for _, rec := range res.Iterations {
		fmt.Fprintf(&b, "  [%d] %s", rec.Index, describe(rec))
		b.WriteByte('\n')
	}

	cats := make([]string, 0, len(res.CategoryProgression))
	for c := range res.CategoryProgression {
		cats = append(cats, c)
	}
	sort.Strings(cats)
	for _, c := range cats {
		vals := res.CategoryProgression[c]
		if len(vals) < 2 {
			continue
		}
		first, last := vals[0], vals[len(vals)-1]
		fmt.Fprintf(&b, "  %-24s %.3f -> %.3f (%+.1fpp)\n", c, first, last, (last-first)*100)
	}
	return b.String()
}

func describe(rec IterationRecord) string {
	target := ""
	if rec.Proposal != nil {
		target = rec.Proposal.Target
	}
	switch rec.Outcome {
	case OutcomeConverged:
		return "converged: all categories above threshold"
	case OutcomeKept:
		return fmt.Sprintf("kept patch to %s", target)
	case OutcomeReverted:
		return fmt.Sprintf("reverted patch to %s: %s", target, rec.RevertReason)
	case OutcomeRejected:
		return fmt.Sprintf("rejected (never applied) %s: %s", target, firstLine(rec.RejectReason))
	case OutcomeFailed:
		return fmt.Sprintf("failed in %s: %s", rec.FailedPhase, rec.RevertReason)
	}
	return string(rec.Outcome)
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
