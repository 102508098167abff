package llm

// #region imports
import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/danielpatrickdp/selfimprove/internal/proposal"
	"github.com/danielpatrickdp/selfimprove/internal/review"
)

// #endregion

// #region proposer

// Proposer asks the model for patches and for defenses of them.
type Proposer struct {
	client Client
	root   string
	logger *zap.Logger
}

// NewProposer builds a Proposer. Target files are read under root; an
// empty root sends no file content.
func NewProposer(client Client, root string, logger *zap.Logger) *Proposer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Proposer{client: client, root: root, logger: logger}
}

type proposalReply struct {
	TargetFile     string             `json:"target_file"`
	Hypothesis     string             `json:"hypothesis"`
	Description    string             `json:"description"`
	Diff           string             `json:"diff"`
	ExpectedImpact map[string]float64 `json:"expected_impact"`
	RiskAssessment string             `json:"risk_assessment"`
	Confidence     float64            `json:"confidence"`
}

// Propose implements proposal.Proposer.
func (p *Proposer) Propose(ctx context.Context, req proposal.Request) (proposal.PatchProposal, error) {
	content := p.readTarget(req.Target)
	text, err := p.client.Complete(ctx, ProposalPrompt(req, content))
	if err != nil {
		return proposal.PatchProposal{}, fmt.Errorf("propose: %w", err)
	}

	var reply proposalReply
	if err := DecodeJSON(text, &reply); err != nil {
		return proposal.PatchProposal{}, fmt.Errorf("propose: %w", err)
	}
	target := reply.TargetFile
	if target == "" {
		target = req.Target
	}
	p.logger.Debug("proposal received",
		zap.String("category", req.Diagnosis.Category),
		zap.String("target", target),
		zap.Float64("confidence", reply.Confidence))

	return proposal.PatchProposal{
		Target:         target,
		Hypothesis:     reply.Hypothesis,
		Description:    reply.Description,
		Change:         reply.Diff,
		ExpectedImpact: reply.ExpectedImpact,
		RiskNotes:      reply.RiskAssessment,
		Confidence:     reply.Confidence,
	}, nil
}

// Defend implements proposal.Proposer.
func (p *Proposer) Defend(ctx context.Context, prop proposal.PatchProposal, arguments []string) (proposal.Defense, error) {
	text, err := p.client.Complete(ctx, DefensePrompt(prop, arguments))
	if err != nil {
		return proposal.Defense{}, fmt.Errorf("defend: %w", err)
	}
	var d proposal.Defense
	if err := DecodeJSON(text, &d); err != nil {
		return proposal.Defense{}, fmt.Errorf("defend: %w", err)
	}
	return d, nil
}

// readTarget returns the target's content, or "" when it cannot be read.
func (p *Proposer) readTarget(target string) string {
	if p.root == "" || target == "" || filepath.IsAbs(target) {
		return ""
	}
	clean := filepath.Clean(target)
	if clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return ""
	}
	b, err := os.ReadFile(filepath.Join(p.root, clean))
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			p.logger.Warn("read target", zap.String("target", target), zap.Error(err))
		}
		return ""
	}
	return clip(string(b), targetContentLen)
}

// #endregion proposer

// #region challenger

// Challenger plays devil's advocate.
type Challenger struct {
	client Client
}

// NewChallenger builds a Challenger.
func NewChallenger(client Client) *Challenger { return &Challenger{client: client} }

type attackReply struct {
	Arguments    []string `json:"arguments"`
	Alternatives []string `json:"alternative_approaches"`
	WorstCase    string   `json:"worst_case_scenario"`
}

// Attack implements proposal.Challenger.
func (c *Challenger) Attack(ctx context.Context, p proposal.PatchProposal) ([]string, error) {
	text, err := c.client.Complete(ctx, AttackPrompt(p))
	if err != nil {
		return nil, fmt.Errorf("attack: %w", err)
	}
	var reply attackReply
	if err := DecodeJSON(text, &reply); err != nil {
		return nil, fmt.Errorf("attack: %w", err)
	}
	return reply.Arguments, nil
}

// #endregion challenger

// #region reviewer

// Reviewer votes on proposals from one role's perspective.
type Reviewer struct {
	client Client
	role   review.Role
}

// NewReviewer builds a reviewer for role.
func NewReviewer(client Client, role review.Role) *Reviewer {
	return &Reviewer{client: client, role: role}
}

// Vote implements review.Reviewer. Verdicts outside accept/reject/modify
// are malformed.
func (r *Reviewer) Vote(ctx context.Context, req review.Request) (review.Vote, error) {
	req.Role = r.role
	text, err := r.client.Complete(ctx, ReviewPrompt(req))
	if err != nil {
		return review.Vote{}, fmt.Errorf("vote %s: %w", r.role, err)
	}
	var v review.Vote
	if err := DecodeJSON(text, &v); err != nil {
		return review.Vote{}, fmt.Errorf("vote %s: %w", r.role, err)
	}
	v.Verdict = review.Verdict(strings.ToLower(strings.TrimSpace(string(v.Verdict))))
	if !v.Verdict.Valid() {
		return review.Vote{}, fmt.Errorf("vote %s: %w: verdict %q", r.role, ErrMalformedResponse, v.Verdict)
	}
	v.ReviewerID = string(r.role)
	return v, nil
}

// Panel returns one model-backed reviewer per role.
func Panel(client Client) map[review.Role]review.Reviewer {
	out := make(map[review.Role]review.Reviewer, len(review.Roles))
	for _, role := range review.Roles {
		out[role] = NewReviewer(client, role)
	}
	return out
}

// #endregion reviewer
