package proposal

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/danielpatrickdp/selfimprove/internal/analyze"
	"github.com/danielpatrickdp/selfimprove/internal/history"
)

// MaxExamples bounds the failing examples handed to a proposer.
const MaxExamples = 5

// StubConfidence is the confidence of the fallback proposal.
const StubConfidence = 0.1

// ErrInvalidProposal is returned by Validate for out-of-contract proposals.
var ErrInvalidProposal = errors.New("invalid proposal")

// #region proposal
// PatchProposal is a candidate change to a single target resource. Immutable once issued.
type PatchProposal struct {
	Target         string             `json:"target"`
	Hypothesis     string             `json:"hypothesis"`
	Description    string             `json:"description"`
	Change         string             `json:"change"`
	ExpectedImpact map[string]float64 `json:"expected_impact,omitempty"`
	RiskNotes      string             `json:"risk_notes"`
	Confidence     float64            `json:"confidence"`
}

// Validate checks the confidence range and that a target is named.
func (p PatchProposal) Validate() error {
	if strings.TrimSpace(p.Target) == "" {
		return fmt.Errorf("%w: empty target", ErrInvalidProposal)
	}
	if p.Confidence < 0 || p.Confidence > 1 {
		return fmt.Errorf("%w: confidence %.2f outside [0, 1]", ErrInvalidProposal, p.Confidence)
	}
	return nil
}

// ContentHash identifies the proposal's content for history lookups.
// The description stands in when the change is empty.
func (p PatchProposal) ContentHash() string {
	content := p.Change
	if content == "" {
		content = p.Description
	}
	return history.ContentHash(p.Target, content)
}

// Entry converts the proposal into a history entry for iteration.
func (p PatchProposal) Entry(iteration int) history.Entry {
	return history.Entry{
		Iteration:   iteration,
		Target:      p.Target,
		Description: p.Description,
		Hypothesis:  p.Hypothesis,
		ContentHash: p.ContentHash(),
	}
}

// #endregion proposal

// #region request
// Request is everything a proposer sees when asked for a patch.
type Request struct {
	Diagnosis analyze.CategoryAnalysis `json:"diagnosis"`
	Examples  []analyze.FailureDetail  `json:"examples"`
	Target    string                   `json:"target"`
	Reverted  []history.Entry          `json:"reverted"`
	Rejected  []history.Entry          `json:"rejected"`
	Iteration int                      `json:"iteration"`
}

// NewRequest builds a request from a diagnosis and the current history.
func NewRequest(diag analyze.CategoryAnalysis, h *history.History, target string, iteration int) Request {
	examples := diag.FailingExamples
	if len(examples) > MaxExamples {
		examples = examples[:MaxExamples]
	}
	if target == "" {
		target = diag.Bottleneck
	}
	req := Request{
		Diagnosis: diag,
		Examples:  examples,
		Target:    target,
		Iteration: iteration,
	}
	if h != nil {
		req.Reverted = h.Reverted()
		req.Rejected = h.Rejected()
	}
	return req
}

// ResolveTarget maps a bottleneck component to a target resource using the
// longest matching prefix in files. Unmatched components are their own target.
func ResolveTarget(bottleneck string, files map[string]string) string {
	prefixes := make([]string, 0, len(files))
	for prefix := range files {
		prefixes = append(prefixes, prefix)
	}
	sort.Slice(prefixes, func(i, j int) bool {
		if len(prefixes[i]) != len(prefixes[j]) {
			return len(prefixes[i]) > len(prefixes[j])
		}
		return prefixes[i] < prefixes[j]
	})
	for _, prefix := range prefixes {
		if strings.HasPrefix(bottleneck, prefix) {
			return files[prefix]
		}
	}
	return bottleneck
}

// #endregion request

// #region stub
// Stub is the low-trust proposal used when no proposer is configured.
func Stub(req Request) PatchProposal {
	cat := req.Diagnosis.Category
	return PatchProposal{
		Target:         req.Target,
		Hypothesis:     fmt.Sprintf("Category '%s' fails due to %s", cat, req.Diagnosis.Bottleneck),
		Description:    req.Diagnosis.SuggestedFix,
		ExpectedImpact: map[string]float64{cat: 10.0},
		RiskNotes:      "No LLM analysis available",
		Confidence:     StubConfidence,
	}
}

// #endregion stub

// #region collaborators
// Proposer produces patch proposals and defends them against challenges.
type Proposer interface {
	Propose(ctx context.Context, req Request) (PatchProposal, error)
	Defend(ctx context.Context, p PatchProposal, arguments []string) (Defense, error)
}

// Challenger argues against a proposal.
type Challenger interface {
	Attack(ctx context.Context, p PatchProposal) ([]string, error)
}

// #endregion collaborators
