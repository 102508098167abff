package proposal

import "strings"

// AdequacyRatio is the fraction of arguments that must be answered.
const AdequacyRatio = 0.5

// #region types
// Defense is the proposer's answer to challenge arguments.
type Defense struct {
	Text         string   `json:"defense"`
	Acknowledged []string `json:"concerns_acknowledged"`
	Refuted      []string `json:"concerns_refuted"`
}

// ChallengeOutcome is the derived result of one attack/defense exchange.
type ChallengeOutcome struct {
	Arguments    []string `json:"arguments"`
	Defense      string   `json:"defense"`
	Acknowledged []string `json:"acknowledged"`
	Refuted      []string `json:"refuted"`
	Remaining    []string `json:"remaining,omitempty"`
	Adequate     bool     `json:"adequate"`
	Skipped      bool     `json:"skipped,omitempty"`
}

// #endregion types

// #region outcome
// NewOutcome derives the challenge outcome from arguments and a defense.
func NewOutcome(arguments []string, d Defense) ChallengeOutcome {
	return ChallengeOutcome{
		Arguments:    arguments,
		Defense:      d.Text,
		Acknowledged: d.Acknowledged,
		Refuted:      d.Refuted,
		Remaining:    remaining(arguments, d.Acknowledged, d.Refuted),
		Adequate:     Adequate(arguments, d.Acknowledged, d.Refuted),
	}
}

// SkippedOutcome is the outcome when no challenger is configured.
func SkippedOutcome() ChallengeOutcome {
	return ChallengeOutcome{Adequate: true, Skipped: true}
}

// Adequate reports whether |acknowledged ∪ refuted| / |arguments| ≥ 0.5.
// With no arguments the defense is trivially adequate.
func Adequate(arguments, acknowledged, refuted []string) bool {
	if len(arguments) == 0 {
		return true
	}
	answered := map[string]struct{}{}
	for _, s := range acknowledged {
		answered[s] = struct{}{}
	}
	for _, s := range refuted {
		answered[s] = struct{}{}
	}
	return float64(len(answered)) >= AdequacyRatio*float64(len(arguments))
}

// remaining lists arguments neither refuted verbatim nor containing an acknowledged concern.
func remaining(arguments, acknowledged, refuted []string) []string {
	refutedSet := map[string]struct{}{}
	for _, s := range refuted {
		refutedSet[s] = struct{}{}
	}
	var out []string
	for _, arg := range arguments {
		if _, ok := refutedSet[arg]; ok {
			continue
		}
		matched := false
		for _, ack := range acknowledged {
			if ack != "" && strings.Contains(arg, ack) {
				matched = true
				break
			}
		}
		if !matched {
			out = append(out, arg)
		}
	}
	return out
}

// #endregion outcome
