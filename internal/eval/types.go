package eval

import "context"

// #region report
// Report is the scored output of one evaluation pass. Treated as immutable once returned.
type Report struct {
	NumTurns     int              `json:"num_turns"`
	NumQuestions int              `json:"num_questions"`
	OverallScore float64          `json:"overall_score"`
	Categories   []CategoryScore  `json:"category_breakdown"`
	Results      []QuestionResult `json:"results"`
}

// CategoryScore aggregates question scores for one category.
type CategoryScore struct {
	Category          string             `json:"category"`
	Avg               float64            `json:"avg_score"`
	Min               float64            `json:"min_score"`
	Max               float64            `json:"max_score"`
	Count             int                `json:"num_questions"`
	DimensionAverages map[string]float64 `json:"dimension_averages,omitempty"`
}

// QuestionResult is the graded outcome of a single question.
type QuestionResult struct {
	QuestionID     string             `json:"question_id"`
	QuestionText   string             `json:"question_text"`
	Category       string             `json:"category"`
	ExpectedAnswer string             `json:"expected_answer"`
	ActualAnswer   string             `json:"actual_answer"`
	Score          float64            `json:"overall_score"`
	Dimensions     map[string]float64 `json:"dimensions,omitempty"`
}

// #endregion report

// #region params
// Params carries the evaluation knobs taken from the run configuration.
type Params struct {
	NumTurns     int
	NumQuestions int
	Seed         int64
	GraderModel  string
}

// #endregion params

// #region interfaces
// Agent is an evaluable agent instance. Instances must not share state.
type Agent interface {
	Name() string
	Close() error
}

// AgentFactory constructs a clean agent instance.
type AgentFactory func() (Agent, error)

// Evaluator scores an agent. Deterministic given (agent, seed).
type Evaluator interface {
	Run(ctx context.Context, agent Agent, params Params) (Report, error)
}

// EvaluatorFunc adapts a function to the Evaluator interface.
type EvaluatorFunc func(ctx context.Context, agent Agent, params Params) (Report, error)

// Run calls f.
func (f EvaluatorFunc) Run(ctx context.Context, agent Agent, params Params) (Report, error) {
	return f(ctx, agent, params)
}

// #endregion interfaces
