package replay

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/danielpatrickdp/selfimprove/internal/eval"
	"github.com/danielpatrickdp/selfimprove/internal/history"
	"github.com/danielpatrickdp/selfimprove/internal/orchestrator"
	"github.com/danielpatrickdp/selfimprove/internal/proposal"
	"github.com/danielpatrickdp/selfimprove/internal/review"
)

// #region fixture-types

// Fixture is a recorded self-improvement run: the evaluation reports and
// collaborator answers in call order, plus what the run should conclude.
// Every script repeats its last element once exhausted.
type Fixture struct {
	Description    string                   `json:"description"`
	Config         orchestrator.Config      `json:"config"`
	ComponentFiles map[string]string        `json:"component_files,omitempty"`
	History        []history.Entry          `json:"history,omitempty"`
	Reports        []eval.Report            `json:"reports"`
	Proposals      []proposal.PatchProposal `json:"proposals,omitempty"`  // empty: stub proposer
	Challenges     [][]string               `json:"challenges,omitempty"` // empty: challenge skipped
	Defenses       []proposal.Defense       `json:"defenses,omitempty"`
	Votes          map[review.Role][]string `json:"votes,omitempty"` // missing role: stub reviewer
	Expected       *FixtureExpected         `json:"expected,omitempty"`
}

// FixtureExpected is the asserted outcome of replaying a fixture.
type FixtureExpected struct {
	StopReason       string    `json:"stop_reason"`
	Outcomes         []string  `json:"outcomes"`
	ScoreProgression []float64 `json:"score_progression,omitempty"`
	Applied          *int      `json:"patches_applied,omitempty"`
	Reverted         *int      `json:"patches_reverted,omitempty"`
	Rejected         *int      `json:"patches_rejected,omitempty"`
}

// #endregion fixture-types

// #region fixture-loader

// LoadFixture reads and parses a JSON fixture file.
func LoadFixture(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture %s: %w", path, err)
	}
	f, err := DecodeFixture(data)
	if err != nil {
		return nil, fmt.Errorf("parse fixture %s: %w", path, err)
	}
	return f, nil
}

// DecodeFixture parses fixture JSON. Config fields the fixture omits keep
// their defaults.
func DecodeFixture(data []byte) (*Fixture, error) {
	f := Fixture{Config: orchestrator.DefaultConfig()}
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, err
	}
	if len(f.Reports) == 0 {
		return nil, fmt.Errorf("fixture has no reports")
	}
	for role, verdicts := range f.Votes {
		for _, v := range verdicts {
			if !review.Verdict(v).Valid() {
				return nil, fmt.Errorf("%s vote %q: %w", role, v, review.ErrInvalidVerdict)
			}
		}
	}
	return &f, nil
}

// #endregion fixture-loader
