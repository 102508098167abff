package replay

import (
	"errors"
	"fmt"

	"github.com/danielpatrickdp/selfimprove/internal/eval"
	"github.com/danielpatrickdp/selfimprove/internal/history"
	"github.com/danielpatrickdp/selfimprove/internal/orchestrator"
	"github.com/danielpatrickdp/selfimprove/internal/proposal"
	"github.com/danielpatrickdp/selfimprove/internal/review"
)

// ErrNotReplayable is returned for runs whose collaborator failures cannot be scripted.
var ErrNotReplayable = errors.New("run is not replayable")

// #region export

// Recorded is a persisted run as the store returns it.
type Recorded struct {
	Config     orchestrator.Config
	Records    []orchestrator.IterationRecord
	StopReason string
	Scores     []float64
	Prior      []history.Entry // history known before the run started
}

// FromRecords rebuilds a fixture whose replay reproduces the recorded run.
// Scripts are filled in the order the orchestrator consumes them.
func FromRecords(description string, r Recorded) (*Fixture, error) {
	f := &Fixture{
		Description: description,
		Config:      r.Config,
		History:     r.Prior,
		Votes:       map[review.Role][]string{},
	}
	outcomes := make([]string, 0, len(r.Records))
	stub := false

	for _, rec := range r.Records {
		if rec.Outcome == orchestrator.OutcomeFailed {
			return nil, fmt.Errorf("%w: iteration %d failed in %s", ErrNotReplayable, rec.Index, rec.FailedPhase)
		}
		outcomes = append(outcomes, string(rec.Outcome))

		for _, rep := range []*eval.Report{rec.PreReport, rec.PostReport} {
			if rep != nil {
				f.Reports = append(f.Reports, *rep)
			}
		}
		if rec.Gate != nil && rec.Gate.Stub {
			stub = true
		}
		if rec.Proposal != nil && !stub {
			f.Proposals = append(f.Proposals, *rec.Proposal)
		}
		if c := rec.Challenge; c != nil && !c.Skipped {
			f.Challenges = append(f.Challenges, c.Arguments)
			if len(c.Arguments) > 0 && !stub {
				f.Defenses = append(f.Defenses, proposal.Defense{
					Text:         c.Defense,
					Acknowledged: c.Acknowledged,
					Refuted:      c.Refuted,
				})
			}
		}
		if rec.Review != nil {
			for i, role := range review.Roles {
				f.Votes[role] = append(f.Votes[role], string(rec.Review.Votes[i].Verdict))
			}
		}
	}
	if len(f.Reports) == 0 {
		return nil, fmt.Errorf("%w: no evaluation reports recorded", ErrNotReplayable)
	}
	if stub {
		f.Proposals = nil
		f.Defenses = nil
	}
	if len(f.Votes) == 0 {
		f.Votes = nil
	}

	f.Expected = &FixtureExpected{
		StopReason:       r.StopReason,
		Outcomes:         outcomes,
		ScoreProgression: r.Scores,
	}
	return f, nil
}

// #endregion export
