package regression

import (
	"fmt"
	"math"
	"sort"
)

// OverallKey is ignored when comparing category scores.
const OverallKey = "overall"

// #region types
// CategoryDelta is the change of one category between two reports.
// DeltaPP is positive for a regression.
type CategoryDelta struct {
	Category string  `json:"category"`
	Baseline float64 `json:"baseline"`
	Post     float64 `json:"post"`
	DeltaPP  float64 `json:"delta_pp"`
}

// Result is the regression verdict for one applied patch. MaxGainPP is the
// largest improvement and is negative when every category dropped.
type Result struct {
	Regressed       bool            `json:"regressed"`
	WorstCategory   string          `json:"worst_category,omitempty"`
	MaxRegressionPP float64         `json:"max_regression_pp"`
	BestCategory    string          `json:"best_category,omitempty"`
	MaxGainPP       float64         `json:"max_gain_pp"`
	Deltas          []CategoryDelta `json:"deltas"`
	Reason          string          `json:"reason"`
}

// #endregion types

// #region detect
// Detect compares per-category scores (in [0, 1]) before and after a patch.
// A regression is declared only when the worst drop exceeds thresholdPP
// and no category gained thresholdPP or more to compensate.
func Detect(baseline, post map[string]float64, thresholdPP float64) Result {
	cats := make([]string, 0, len(baseline))
	for cat := range baseline {
		if cat == OverallKey {
			continue
		}
		if _, ok := post[cat]; ok {
			cats = append(cats, cat)
		}
	}
	sort.Strings(cats)

	var res Result
	for i, cat := range cats {
		d := CategoryDelta{
			Category: cat,
			Baseline: baseline[cat],
			Post:     post[cat],
			DeltaPP:  roundPP((baseline[cat] - post[cat]) * 100),
		}
		res.Deltas = append(res.Deltas, d)

		if d.DeltaPP > res.MaxRegressionPP {
			res.MaxRegressionPP = d.DeltaPP
			res.WorstCategory = cat
		}
		if i == 0 || -d.DeltaPP > res.MaxGainPP {
			res.MaxGainPP = -d.DeltaPP
			res.BestCategory = cat
		}
	}

	res.Regressed = res.MaxRegressionPP > thresholdPP && res.MaxGainPP < thresholdPP

	switch {
	case res.Regressed:
		res.Reason = fmt.Sprintf("%s regressed %.1fpp", res.WorstCategory, res.MaxRegressionPP)
	case res.MaxRegressionPP > thresholdPP:
		res.Reason = fmt.Sprintf("%s regressed %.1fpp, compensated by %s +%.1fpp",
			res.WorstCategory, res.MaxRegressionPP, res.BestCategory, res.MaxGainPP)
	default:
		res.Reason = fmt.Sprintf("no regression above %.1fpp", thresholdPP)
	}
	return res
}

// roundPP drops float noise below 1e-9pp so a drop of exactly the
// threshold compares equal to it.
func roundPP(v float64) float64 {
	return math.Round(v*1e9) / 1e9
}

// #endregion detect
