package logging

import "time"

// #region decision-entry
// DecisionEntry is a single row in the decision_log table.
type DecisionEntry struct {
	RunID       string
	Iteration   int
	Phase       string // "eval" | "analyze" | "propose" | "challenge" | "vote" | "apply" | "re-eval" | "decide"
	Decision    string
	Reason      string
	PayloadJSON string
	CreatedAt   time.Time
}

// #endregion decision-entry

// #region log-config
// Config selects the zap logger flavor.
type Config struct {
	Level  string `koanf:"level"`  // debug | info | warn | error
	Format string `koanf:"format"` // json | console
}

// DefaultConfig returns info-level JSON logging.
func DefaultConfig() Config {
	return Config{Level: "info", Format: "json"}
}

// #endregion log-config
