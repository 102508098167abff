package eval

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"sort"
)

// #region breakdown
// Breakdown returns the per-category scores. When the report carries no
// category breakdown it is derived from the per-question results, keeping
// categories in order of first appearance.
func (r Report) Breakdown() []CategoryScore {
	if len(r.Categories) > 0 {
		return r.Categories
	}
	if len(r.Results) == 0 {
		return nil
	}

	type accum struct {
		sum, min, max float64
		count         int
		dimSum        map[string]float64
		dimCount      map[string]int
	}

	order := []string{}
	byCat := map[string]*accum{}
	for _, q := range r.Results {
		a, ok := byCat[q.Category]
		if !ok {
			a = &accum{
				min:      math.Inf(1),
				max:      math.Inf(-1),
				dimSum:   map[string]float64{},
				dimCount: map[string]int{},
			}
			byCat[q.Category] = a
			order = append(order, q.Category)
		}
		a.sum += q.Score
		a.count++
		a.min = math.Min(a.min, q.Score)
		a.max = math.Max(a.max, q.Score)
		for dim, s := range q.Dimensions {
			a.dimSum[dim] += s
			a.dimCount[dim]++
		}
	}

	out := make([]CategoryScore, 0, len(order))
	for _, cat := range order {
		a := byCat[cat]
		cs := CategoryScore{
			Category: cat,
			Avg:      a.sum / float64(a.count),
			Min:      a.min,
			Max:      a.max,
			Count:    a.count,
		}
		if len(a.dimSum) > 0 {
			cs.DimensionAverages = make(map[string]float64, len(a.dimSum))
			for dim, s := range a.dimSum {
				cs.DimensionAverages[dim] = s / float64(a.dimCount[dim])
			}
		}
		out = append(out, cs)
	}
	return out
}

// CategoryAverages maps each category to its average score.
func (r Report) CategoryAverages() map[string]float64 {
	out := map[string]float64{}
	for _, cs := range r.Breakdown() {
		out[cs.Category] = cs.Avg
	}
	return out
}

// CategoryNames returns the category names in sorted order.
func (r Report) CategoryNames() []string {
	bd := r.Breakdown()
	names := make([]string, 0, len(bd))
	for _, cs := range bd {
		names = append(names, cs.Category)
	}
	sort.Strings(names)
	return names
}

// ResultsFor returns the question results belonging to a category.
func (r Report) ResultsFor(category string) []QuestionResult {
	var out []QuestionResult
	for _, q := range r.Results {
		if q.Category == category {
			out = append(out, q)
		}
	}
	return out
}

// #endregion breakdown

// #region load
// LoadReport reads a JSON report from disk.
func LoadReport(path string) (Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Report{}, fmt.Errorf("read report %s: %w", path, err)
	}
	return DecodeReport(data)
}

// DecodeReport parses and sanity-checks a JSON report.
func DecodeReport(data []byte) (Report, error) {
	var r Report
	if err := json.Unmarshal(data, &r); err != nil {
		return Report{}, fmt.Errorf("parse report: %w", err)
	}
	if r.OverallScore < 0 || r.OverallScore > 1 {
		return Report{}, fmt.Errorf("parse report: overall score %.4f outside [0, 1]", r.OverallScore)
	}
	return r, nil
}

// #endregion load
