package review

import (
	"context"
	"fmt"
)

// StubReviewer votes from the proposal's own confidence. Used when no LLM
// reviewer is configured.
type StubReviewer struct{}

// Vote implements Reviewer.
func (StubReviewer) Vote(_ context.Context, req Request) (Vote, error) {
	c := req.Proposal.Confidence
	var verdict Verdict
	var level string
	switch {
	case c >= 0.7:
		verdict, level = VerdictAccept, "High"
	case c >= 0.4:
		verdict, level = VerdictModify, "Medium"
	default:
		verdict, level = VerdictReject, "Low"
	}
	return Vote{
		ReviewerID: string(req.Role),
		Verdict:    verdict,
		Rationale:  fmt.Sprintf("Stub vote (%s): %s confidence (%.0f%%)", req.Role, level, c*100),
	}, nil
}

// StubPanel returns a panel of stub reviewers for every role.
func StubPanel() map[Role]Reviewer {
	out := make(map[Role]Reviewer, len(Roles))
	for _, role := range Roles {
		out[role] = StubReviewer{}
	}
	return out
}
