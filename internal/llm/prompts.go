package llm

import (
	"fmt"
	"sort"
	"strings"

	"github.com/danielpatrickdp/selfimprove/internal/history"
	"github.com/danielpatrickdp/selfimprove/internal/proposal"
	"github.com/danielpatrickdp/selfimprove/internal/review"
)

// Prompt limits, in runes.
const (
	questionSnippetLen = 120
	historyDescLen     = 100
	targetContentLen   = 4000
	reviewDiffLen      = 2000
	reviewDefenseLen   = 500
	historyWindow      = 5
)

// #region proposal-prompt

// ProposalPrompt asks for one patch against the diagnosed category.
func ProposalPrompt(req proposal.Request, targetContent string) string {
	var b strings.Builder
	d := req.Diagnosis
	b.WriteString("You are an expert code improvement agent. Analyze the failing eval category\n")
	b.WriteString("and propose a specific change to fix it.\n\n")
	b.WriteString("## Failing Category\n")
	fmt.Fprintf(&b, "- Category: %s\n", d.Category)
	fmt.Fprintf(&b, "- Current Score: %.2f%%\n", d.AvgScore*100)
	fmt.Fprintf(&b, "- Bottleneck Component: %s\n", d.Bottleneck)
	fmt.Fprintf(&b, "- Suggested Fix Direction: %s\n\n", d.SuggestedFix)

	b.WriteString("## Failed Questions\n")
	for i, ex := range req.Examples {
		fmt.Fprintf(&b, "  %d. Question: %s\n", i+1, clip(ex.QuestionText, questionSnippetLen))
		fmt.Fprintf(&b, "     Expected: %s\n", clip(ex.ExpectedAnswer, questionSnippetLen))
		fmt.Fprintf(&b, "     Actual: %s\n", clip(ex.ActualAnswer, questionSnippetLen))
		fmt.Fprintf(&b, "     Score: %.2f%%\n", ex.Score*100)
		if len(ex.Dimensions) > 0 {
			fmt.Fprintf(&b, "     Dimensions: %s\n", formatDims(ex.Dimensions))
		}
	}

	writeHistory(&b, "Previously reverted patches (DO NOT repeat these):", "Reason for revert", req.Reverted)
	writeHistory(&b, "Previously rejected patches (different approach needed):", "Rejection reason", req.Rejected)

	fmt.Fprintf(&b, "\n## Current Content (%s)\n```\n%s\n```\n\n", req.Target, clip(targetContent, targetContentLen))
	b.WriteString(`## Your Task

Analyze WHY this category is failing and propose a SPECIFIC change.

Respond with a JSON object:
{
  "target_file": "path of the file to change",
  "hypothesis": "Clear explanation of why this category fails",
  "description": "What the patch does in 1-2 sentences",
  "diff": "diff-match-patch patch text of the change",
  "expected_impact": {"category_name": expected_score_delta_in_percentage_points},
  "risk_assessment": "What could go wrong",
  "confidence": 0.0 to 1.0
}

Rules:
- Focus on the SMALLEST change that addresses the root cause
- Do NOT change test infrastructure, graders, or the eval harness
- Prefer prompt/instruction changes over algorithmic changes
- Be honest about confidence; lower is better than overconfident
`)
	return b.String()
}

func writeHistory(b *strings.Builder, title, reasonLabel string, entries []history.Entry) {
	if len(entries) == 0 {
		return
	}
	if len(entries) > historyWindow {
		entries = entries[len(entries)-historyWindow:]
	}
	fmt.Fprintf(b, "\n%s\n", title)
	for _, e := range entries {
		fmt.Fprintf(b, "  - Target: %s\n", e.Target)
		fmt.Fprintf(b, "    Description: %s\n", clip(e.Description, historyDescLen))
		fmt.Fprintf(b, "    %s: %s\n", reasonLabel, e.Reason)
	}
}

func formatDims(dims map[string]float64) string {
	names := make([]string, 0, len(dims))
	for n := range dims {
		names = append(names, n)
	}
	sort.Strings(names)
	parts := make([]string, len(names))
	for i, n := range names {
		parts[i] = fmt.Sprintf("%s: %.2f%%", n, dims[n]*100)
	}
	return strings.Join(parts, ", ")
}

// #endregion proposal-prompt

// #region review-prompts

var rolePrompts = map[review.Role]string{
	review.RoleQuality: `You are a CODE QUALITY reviewer. Evaluate this patch proposal for:
- Engineering best practices (clean code, no side effects)
- Proper error handling
- Appropriate use of abstractions
- Consistency with existing code style
- Whether the change is well-tested and testable`,
	review.RoleRegression: `You are a REGRESSION reviewer. Evaluate this patch proposal for:
- Could this change break OTHER categories that currently pass?
- Does it modify shared code paths that affect unrelated functionality?
- Are there edge cases that could cause unexpected failures?
- Is the change scoped narrowly enough to avoid collateral damage?`,
	review.RoleSimplicity: `You are a SIMPLICITY reviewer. Evaluate this patch proposal for:
- Is this the SIMPLEST possible fix for the identified problem?
- Could a smaller change achieve the same result?
- Does it add unnecessary complexity or abstraction?
- Could a prompt-only change work instead of a code change?`,
}

const voteFormat = `Respond with JSON:
{
  "vote": "accept" | "reject" | "modify",
  "rationale": "Why this vote",
  "concerns": ["list of specific concerns"],
  "suggested_modifications": "optional: what to change"
}`

const attackPrompt = `You are a DEVIL'S ADVOCATE. Your job is to argue AGAINST this proposed patch.

Find the strongest arguments for why this patch should NOT be applied:
- What assumptions could be wrong?
- What could this break?
- Is there a simpler alternative?
- Is the hypothesis even correct?

Be aggressive but fair. Your goal is to stress-test the proposal.

Respond with JSON:
{
  "arguments": ["list of strong arguments against the patch"],
  "alternative_approaches": ["list of potentially better approaches"],
  "worst_case_scenario": "what happens if this patch causes harm"
}`

// ReviewPrompt asks one role for a vote.
func ReviewPrompt(req review.Request) string {
	return rolePrompts[req.Role] + "\n\n" + voteFormat + "\n\n" + FormatProposal(req.Proposal, req.Challenge)
}

// AttackPrompt asks the devil's advocate for arguments against p.
func AttackPrompt(p proposal.PatchProposal) string {
	return attackPrompt + "\n\n" + FormatProposal(p, nil)
}

// DefensePrompt asks the proposer to answer the arguments.
func DefensePrompt(p proposal.PatchProposal, arguments []string) string {
	var b strings.Builder
	b.WriteString("The following arguments have been raised AGAINST your proposed patch:\n\n")
	b.WriteString("## Arguments Against\n")
	for _, a := range arguments {
		fmt.Fprintf(&b, "- %s\n", a)
	}
	b.WriteString("\n## Your Original Proposal\n")
	fmt.Fprintf(&b, "- Hypothesis: %s\n", p.Hypothesis)
	fmt.Fprintf(&b, "- Description: %s\n", p.Description)
	fmt.Fprintf(&b, "- Confidence: %.0f%%\n\n", p.Confidence*100)
	b.WriteString(`Respond to each argument. Explain why the patch should still be applied,
or acknowledge valid concerns. Quote arguments verbatim in the lists.

Respond with JSON:
{
  "defense": "Your defense of the patch",
  "concerns_acknowledged": ["list of valid concerns you acknowledge"],
  "concerns_refuted": ["list of concerns you have addressed"]
}`)
	return b.String()
}

// FormatProposal renders p, and the challenge exchange when present, for reviewers.
func FormatProposal(p proposal.PatchProposal, challenge *proposal.ChallengeOutcome) string {
	var b strings.Builder
	b.WriteString("## Patch Proposal\n\n")
	fmt.Fprintf(&b, "**Target File**: %s\n", p.Target)
	fmt.Fprintf(&b, "**Hypothesis**: %s\n", p.Hypothesis)
	fmt.Fprintf(&b, "**Description**: %s\n", p.Description)
	fmt.Fprintf(&b, "**Confidence**: %.0f%%\n", p.Confidence*100)
	fmt.Fprintf(&b, "**Risk Assessment**: %s\n\n", p.RiskNotes)

	b.WriteString("### Expected Impact\n")
	cats := make([]string, 0, len(p.ExpectedImpact))
	for c := range p.ExpectedImpact {
		cats = append(cats, c)
	}
	sort.Strings(cats)
	for _, c := range cats {
		fmt.Fprintf(&b, "- %s: %+.1fpp\n", c, p.ExpectedImpact[c])
	}

	if p.Change != "" {
		fmt.Fprintf(&b, "\n### Diff\n```diff\n%s\n```\n", clip(p.Change, reviewDiffLen))
	}

	if challenge != nil && !challenge.Skipped {
		b.WriteString("\n### Challenge Phase Results\n")
		addressed := "No"
		if challenge.Adequate {
			addressed = "Yes"
		}
		fmt.Fprintf(&b, "**Concerns Addressed**: %s\n", addressed)
		for _, a := range challenge.Arguments {
			fmt.Fprintf(&b, "- Challenge: %s\n", a)
		}
		fmt.Fprintf(&b, "\n**Proposer Defense**: %s\n", clip(challenge.Defense, reviewDefenseLen))
		if len(challenge.Remaining) > 0 {
			b.WriteString("\n**Remaining Concerns**:\n")
			for _, c := range challenge.Remaining {
				fmt.Fprintf(&b, "- %s\n", c)
			}
		}
	}
	return b.String()
}

// #endregion review-prompts

func clip(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
