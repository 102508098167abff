package orchestrator

import (
	"errors"
	"fmt"

	"github.com/danielpatrickdp/selfimprove/internal/eval"
)

// ErrInvalidConfig is returned by Validate.
var ErrInvalidConfig = errors.New("invalid self-improve config")

// #region config
// Config holds the options the orchestrator interprets. Nothing else is read.
type Config struct {
	NumTurns            int     `koanf:"num_turns" json:"num_turns"`
	NumQuestions        int     `koanf:"num_questions" json:"num_questions"`
	Seed                int64   `koanf:"seed" json:"seed"`
	MaxIterations       int     `koanf:"max_iterations" json:"max_iterations"`
	FailureThreshold    float64 `koanf:"failure_threshold" json:"failure_threshold"`       // τ, score in [0, 1]
	RegressionThreshold float64 `koanf:"regression_threshold" json:"regression_threshold"` // θ, percentage points
	OutputDir           string  `koanf:"output_dir" json:"output_dir"`
	GraderModel         string  `koanf:"grader_model" json:"grader_model"`
}

// DefaultConfig returns the stock run settings.
func DefaultConfig() Config {
	return Config{
		NumTurns:            100,
		NumQuestions:        20,
		Seed:                42,
		MaxIterations:       3,
		FailureThreshold:    0.7,
		RegressionThreshold: 5.0,
		OutputDir:           "/tmp/long-horizon-self-improve",
		GraderModel:         "",
	}
}

// Validate checks every option is in range.
func (c Config) Validate() error {
	switch {
	case c.NumTurns <= 0:
		return fmt.Errorf("%w: num_turns must be positive, got %d", ErrInvalidConfig, c.NumTurns)
	case c.NumQuestions <= 0:
		return fmt.Errorf("%w: num_questions must be positive, got %d", ErrInvalidConfig, c.NumQuestions)
	case c.MaxIterations <= 0:
		return fmt.Errorf("%w: max_iterations must be positive, got %d", ErrInvalidConfig, c.MaxIterations)
	case c.FailureThreshold <= 0 || c.FailureThreshold > 1:
		return fmt.Errorf("%w: failure_threshold must be in (0, 1], got %.3f", ErrInvalidConfig, c.FailureThreshold)
	case c.RegressionThreshold < 0:
		return fmt.Errorf("%w: regression_threshold must be non-negative, got %.3f", ErrInvalidConfig, c.RegressionThreshold)
	}
	return nil
}

// Params is the evaluator view of the config.
func (c Config) Params() eval.Params {
	return eval.Params{
		NumTurns:     c.NumTurns,
		NumQuestions: c.NumQuestions,
		Seed:         c.Seed,
		GraderModel:  c.GraderModel,
	}
}

// #endregion config
