package gate

import (
	"fmt"

	"github.com/danielpatrickdp/selfimprove/internal/proposal"
)

// #region veto-type
// VetoType enumerates hard veto categories.
type VetoType string

const (
	VetoRepeatReverted      VetoType = "repeat_reverted"
	VetoRepeatRejected      VetoType = "repeat_rejected"
	VetoAlreadyApplied      VetoType = "already_applied"
	VetoChallengeInadequate VetoType = "challenge_inadequate"
)

// ReasonChallengeInadequate is the history reason for proposals failing the challenge.
const ReasonChallengeInadequate = "challenge inadequate"

// #endregion veto-type

// #region veto-signal
// Veto represents a detected hard veto condition.
type Veto struct {
	Type   VetoType `json:"type"`
	Reason string   `json:"reason"`
}

// #endregion veto-signal

// #region gate-config
// Config holds gate settings.
type Config struct {
	// ComponentFiles maps bottleneck prefixes to target resources.
	ComponentFiles map[string]string
}

// #endregion gate-config

// #region gate-decision
// Action is the gate's verdict on a proposal.
type Action string

const (
	ActionVote   Action = "vote"
	ActionReject Action = "reject"
)

// Decision is the output of the gate evaluation.
type Decision struct {
	Action    Action                     `json:"action"`
	Reason    string                     `json:"reason"`
	Vetoed    bool                       `json:"vetoed"`
	Vetoes    []Veto                     `json:"vetoes,omitempty"`
	Coverage  float64                    `json:"coverage"` // answered share of challenge arguments
	Proposal  *proposal.PatchProposal    `json:"proposal,omitempty"`
	Challenge *proposal.ChallengeOutcome `json:"challenge,omitempty"`
	Stub      bool                       `json:"stub"`
	// Record is set when the caller must add the proposal to the rejected partition.
	Record bool `json:"record"`
}

// #endregion gate-decision

// #region call-error
// Phase names the gate step a collaborator failed in.
type Phase string

const (
	PhasePropose   Phase = "propose"
	PhaseChallenge Phase = "challenge"
)

// CallError wraps a collaborator failure with the phase it occurred in.
type CallError struct {
	Phase Phase
	Err   error
}

func (e *CallError) Error() string { return fmt.Sprintf("%s: %v", e.Phase, e.Err) }

func (e *CallError) Unwrap() error { return e.Err }

// #endregion call-error
