package review

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/danielpatrickdp/selfimprove/internal/proposal"
)

// ErrMissingReviewer is returned when a panel is built without all three roles.
var ErrMissingReviewer = errors.New("missing reviewer")

// ErrInvalidVerdict is returned when a reviewer answers outside accept/reject/modify.
var ErrInvalidVerdict = errors.New("invalid verdict")

// #region roles
// Role is one of the three fixed voting perspectives.
type Role string

const (
	RoleQuality    Role = "quality"
	RoleRegression Role = "regression"
	RoleSimplicity Role = "simplicity"
)

// Roles lists the panel roles in vote order.
var Roles = [3]Role{RoleQuality, RoleRegression, RoleSimplicity}

// #endregion roles

// #region types
// Verdict is a single reviewer's answer.
type Verdict string

const (
	VerdictAccept Verdict = "accept"
	VerdictReject Verdict = "reject"
	VerdictModify Verdict = "modify"
)

// Valid reports whether v is one of the three verdicts.
func (v Verdict) Valid() bool {
	return v == VerdictAccept || v == VerdictReject || v == VerdictModify
}

// Vote is one reviewer's ballot.
type Vote struct {
	ReviewerID    string   `json:"reviewer_id"`
	Verdict       Verdict  `json:"vote"`
	Rationale     string   `json:"rationale"`
	Concerns      []string `json:"concerns,omitempty"`
	Modifications string   `json:"suggested_modifications,omitempty"`
}

// Outcome is the tallied panel result.
type Outcome string

const (
	OutcomeAccepted Outcome = "accepted"
	OutcomeRejected Outcome = "rejected"
	OutcomeModified Outcome = "modified"
)

// Decision is the panel's verdict with every vote cast.
type Decision struct {
	Outcome   Outcome `json:"decision"`
	Votes     [3]Vote `json:"votes"`
	Rationale string  `json:"consensus_rationale"`
}

// Request is what each reviewer is asked to judge.
type Request struct {
	Role      Role                       `json:"role"`
	Proposal  proposal.PatchProposal     `json:"proposal"`
	Challenge *proposal.ChallengeOutcome `json:"challenge,omitempty"`
}

// Reviewer casts one vote for a role.
type Reviewer interface {
	Vote(ctx context.Context, req Request) (Vote, error)
}

// ReviewerFunc adapts a function to the Reviewer interface.
type ReviewerFunc func(ctx context.Context, req Request) (Vote, error)

// Vote calls f.
func (f ReviewerFunc) Vote(ctx context.Context, req Request) (Vote, error) { return f(ctx, req) }

// #endregion types

// #region panel
// Panel collects one vote per role and tallies them.
type Panel struct {
	reviewers [3]Reviewer
	logger    *zap.Logger
}

// NewPanel builds a panel. Every role must have a reviewer.
func NewPanel(reviewers map[Role]Reviewer, logger *zap.Logger) (*Panel, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &Panel{logger: logger}
	for i, role := range Roles {
		r, ok := reviewers[role]
		if !ok || r == nil {
			return nil, fmt.Errorf("new panel: %w: %s", ErrMissingReviewer, role)
		}
		p.reviewers[i] = r
	}
	return p, nil
}

// Review dispatches the three votes concurrently and tallies them. Any
// reviewer failure cancels the others and fails the review.
func (p *Panel) Review(ctx context.Context, prop proposal.PatchProposal, challenge *proposal.ChallengeOutcome) (Decision, error) {
	var votes [3]Vote
	g, gctx := errgroup.WithContext(ctx)
	for i, role := range Roles {
		g.Go(func() error {
			v, err := p.reviewers[i].Vote(gctx, Request{Role: role, Proposal: prop, Challenge: challenge})
			if err != nil {
				return fmt.Errorf("%s reviewer: %w", role, err)
			}
			if !v.Verdict.Valid() {
				return fmt.Errorf("%s reviewer: %w: %q", role, ErrInvalidVerdict, v.Verdict)
			}
			if v.ReviewerID == "" {
				v.ReviewerID = string(role)
			}
			votes[i] = v
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Decision{}, fmt.Errorf("review: %w", err)
	}

	outcome := Tally(votes)
	p.logger.Debug("panel voted",
		zap.String("decision", string(outcome)),
		zap.Strings("verdicts", verdicts(votes)))

	return Decision{
		Outcome:   outcome,
		Votes:     votes,
		Rationale: ConsensusRationale(votes, outcome),
	}, nil
}

// #endregion panel

// #region tally
// Tally applies the majority rule: accepted needs more than half accepts,
// rejected more than half rejects, anything else is modified.
func Tally(votes [3]Vote) Outcome {
	half := float64(len(votes)) / 2
	var accepts, rejects int
	for _, v := range votes {
		switch v.Verdict {
		case VerdictAccept:
			accepts++
		case VerdictReject:
			rejects++
		}
	}
	switch {
	case float64(accepts) > half:
		return OutcomeAccepted
	case float64(rejects) > half:
		return OutcomeRejected
	default:
		return OutcomeModified
	}
}

// ConsensusRationale summarizes the votes behind an outcome.
func ConsensusRationale(votes [3]Vote, outcome Outcome) string {
	lines := []string{fmt.Sprintf("Decision: %s (%d votes)", outcome, len(votes))}
	for _, v := range votes {
		lines = append(lines, fmt.Sprintf("  [%s] %s: %s", v.ReviewerID, v.Verdict, clip(v.Rationale, 100)))
		for i, c := range v.Concerns {
			if i == 2 {
				break
			}
			lines = append(lines, "    Concern: "+clip(c, 80))
		}
	}
	return strings.Join(lines, "\n")
}

func verdicts(votes [3]Vote) []string {
	out := make([]string, len(votes))
	for i, v := range votes {
		out[i] = string(v.Verdict)
	}
	return out
}

func clip(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// #endregion tally
