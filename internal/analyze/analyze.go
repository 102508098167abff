package analyze

import (
	"sort"

	"github.com/danielpatrickdp/selfimprove/internal/eval"
)

// maxAnswerLen bounds the expected and actual answers kept per failing example.
const maxAnswerLen = 200

// #region types
// FailureDetail is one failing question kept as evidence for a diagnosis.
type FailureDetail struct {
	QuestionID     string             `json:"question_id"`
	QuestionText   string             `json:"question_text"`
	ExpectedAnswer string             `json:"expected_answer"`
	ActualAnswer   string             `json:"actual_answer"`
	Score          float64            `json:"score"`
	Dimensions     map[string]float64 `json:"dimensions,omitempty"`
}

// CategoryAnalysis is the diagnosis of a single category scoring below threshold.
type CategoryAnalysis struct {
	Category        string          `json:"category"`
	AvgScore        float64         `json:"avg_score"`
	Count           int             `json:"num_questions"`
	FailingExamples []FailureDetail `json:"failing_examples"`
	Bottleneck      string          `json:"bottleneck"`
	SuggestedFix    string          `json:"suggested_fix"`
}

// #endregion types

// #region analyze
// Analyze diagnoses every category whose average is below threshold.
// Results are ordered worst average first, ties broken by category name.
// An empty result means nothing needs fixing.
func Analyze(report eval.Report, threshold float64) []CategoryAnalysis {
	var out []CategoryAnalysis

	for _, cs := range report.Breakdown() {
		if cs.Avg >= threshold {
			continue
		}

		var failing []FailureDetail
		for _, q := range report.ResultsFor(cs.Category) {
			if q.Score >= threshold {
				continue
			}
			failing = append(failing, FailureDetail{
				QuestionID:     q.QuestionID,
				QuestionText:   q.QuestionText,
				ExpectedAnswer: truncateRunes(q.ExpectedAnswer, maxAnswerLen),
				ActualAnswer:   truncateRunes(q.ActualAnswer, maxAnswerLen),
				Score:          q.Score,
				Dimensions:     copyDims(q.Dimensions),
			})
		}

		bottleneck, fix := Diagnose(cs.Category, cs.DimensionAverages)
		out = append(out, CategoryAnalysis{
			Category:        cs.Category,
			AvgScore:        cs.Avg,
			Count:           cs.Count,
			FailingExamples: failing,
			Bottleneck:      bottleneck,
			SuggestedFix:    fix,
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].AvgScore != out[j].AvgScore {
			return out[i].AvgScore < out[j].AvgScore
		}
		return out[i].Category < out[j].Category
	})
	return out
}

// Worst returns the first (worst) analysis, or false when there is none.
func Worst(analyses []CategoryAnalysis) (CategoryAnalysis, bool) {
	if len(analyses) == 0 {
		return CategoryAnalysis{}, false
	}
	return analyses[0], true
}

// #endregion analyze

// #region diagnose
// Diagnose maps a category to the component responsible for its failures.
// The category table is consulted first; otherwise the worst grading
// dimension is mapped through the dimension table.
func Diagnose(category string, dimensionAverages map[string]float64) (bottleneck, suggestedFix string) {
	if d, ok := categoryTable[category]; ok {
		return d.component, d.fix
	}
	if dim := worstDimension(dimensionAverages); dim != "" {
		if d, ok := dimensionTable[dim]; ok {
			return d.component, d.fix
		}
	}
	return UnknownComponent, "Manual investigation needed"
}

// worstDimension returns the lowest-scoring dimension strictly below 1.0.
func worstDimension(avgs map[string]float64) string {
	names := make([]string, 0, len(avgs))
	for name := range avgs {
		names = append(names, name)
	}
	sort.Strings(names)

	worst := ""
	worstScore := 1.0
	for _, name := range names {
		if avgs[name] < worstScore {
			worst = name
			worstScore = avgs[name]
		}
	}
	return worst
}

// #endregion diagnose

// #region helpers
func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

func copyDims(in map[string]float64) map[string]float64 {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]float64, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// #endregion helpers
