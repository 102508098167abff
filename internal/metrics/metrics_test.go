package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorders(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.IterationDone("kept")
	m.IterationDone("kept")
	m.IterationDone("reverted")
	m.Vote("quality", "accept")
	m.Veto("repeat_reverted")
	m.Reverted()
	m.CallFailed("propose")
	m.Scores(0.78, map[string]float64{"meta_memory": 0.6})
	m.ObservePhase("eval", 2*time.Second)
	m.Regression(8)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Iterations.WithLabelValues("kept")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Iterations.WithLabelValues("reverted")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Votes.WithLabelValues("quality", "accept")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Vetoes.WithLabelValues("repeat_reverted")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Reverts))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CallFailures.WithLabelValues("propose")))
	assert.InDelta(t, 0.78, testutil.ToFloat64(m.Score), 1e-9)
	assert.InDelta(t, 0.6, testutil.ToFloat64(m.CategoryScore.WithLabelValues("meta_memory")), 1e-9)

	count, err := testutil.GatherAndCount(reg, "selfimprove_phase_duration_seconds", "selfimprove_max_regression_pp")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.IterationDone("kept")
		m.Vote("quality", "accept")
		m.Veto("x")
		m.Reverted()
		m.CallFailed("eval")
		m.Scores(1, nil)
		m.ObservePhase("eval", time.Second)
		m.Regression(1)
	})
}

func TestNewWithoutRegistry(t *testing.T) {
	assert.NotNil(t, New(nil))
	assert.NotNil(t, New(nil), "private registries never collide")
}
