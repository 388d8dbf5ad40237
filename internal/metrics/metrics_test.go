package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Records(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := MustNew(reg)

	m.RunStarted()
	assert.Equal(t, 1.0, testutil.ToFloat64(m.runsActive))

	m.StepFinished(OutcomeSuccess, 2*time.Second)
	m.StepFinished(OutcomeFailed, time.Second)
	m.StepFinished(OutcomeSuccess, time.Second)
	m.AddTokenCost(42)
	m.AddTokenCost(-5)
	m.RunFinished("completed")

	assert.Equal(t, 0.0, testutil.ToFloat64(m.runsActive))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.steps.WithLabelValues(OutcomeSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.steps.WithLabelValues(OutcomeFailed)))
	assert.Equal(t, 42.0, testutil.ToFloat64(m.tokenCost))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("completed")))

	count, err := testutil.GatherAndCount(reg, "rolechain_engine_step_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestMetrics_ReusesRegisteredCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	first := MustNew(reg)
	second := MustNew(reg)

	first.AddTokenCost(3)
	second.AddTokenCost(4)
	assert.Equal(t, 7.0, testutil.ToFloat64(second.tokenCost))
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RunStarted()
		m.StepFinished(OutcomeSuccess, time.Second)
		m.AddTokenCost(1)
		m.RunFinished("completed")
	})
}
