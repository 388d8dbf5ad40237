// Package metrics exposes Prometheus collectors for workflow runs.
package metrics

import (
	"errors"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "rolechain"

// Step outcomes.
const (
	OutcomeSuccess = "success"
	OutcomeFailed  = "failed"
	OutcomeDropped = "dropped"
)

// Metrics reports engine activity. A nil *Metrics is valid and records nothing.
type Metrics struct {
	steps        *prometheus.CounterVec
	stepDuration *prometheus.HistogramVec
	runs         *prometheus.CounterVec
	tokenCost    prometheus.Counter
	runsActive   prometheus.Gauge
}

var (
	defaultOnce    sync.Once
	defaultMetrics *Metrics
)

// Default returns metrics registered with the global Prometheus registry.
// Collectors are created once so repeated engines share them.
func Default() *Metrics {
	defaultOnce.Do(func() {
		defaultMetrics = MustNew(prometheus.DefaultRegisterer)
	})
	return defaultMetrics
}

// MustNew creates collectors and registers them with reg. Collectors that are
// already registered are reused; any other registration error panics.
func MustNew(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		steps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "steps_total",
			Help:      "Workflow steps executed, by outcome.",
		}, []string{"outcome"}),
		stepDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "step_duration_seconds",
			Help:      "Time spent waiting on the agent caller per step.",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}, []string{"outcome"}),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "runs_total",
			Help:      "Engine runs that returned, by final task status.",
		}, []string{"status"}),
		tokenCost: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "token_cost_total",
			Help:      "Accumulated character-count cost proxy (prompt plus output).",
		}),
		runsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "runs_active",
			Help:      "Engine runs currently in progress.",
		}),
	}

	m.steps = register(reg, m.steps)
	m.stepDuration = register(reg, m.stepDuration)
	m.runs = register(reg, m.runs)
	m.tokenCost = register(reg, m.tokenCost)
	m.runsActive = register(reg, m.runsActive)
	return m
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) C {
	if err := reg.Register(c); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			if existing, ok := already.ExistingCollector.(C); ok {
				return existing
			}
		}
		panic(err)
	}
	return c
}

// RunStarted marks a run as active.
func (m *Metrics) RunStarted() {
	if m == nil {
		return
	}
	m.runsActive.Inc()
}

// RunFinished records the final status of a run.
func (m *Metrics) RunFinished(status string) {
	if m == nil {
		return
	}
	m.runsActive.Dec()
	m.runs.WithLabelValues(status).Inc()
}

// StepFinished records one agent call.
func (m *Metrics) StepFinished(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.steps.WithLabelValues(outcome).Inc()
	m.stepDuration.WithLabelValues(outcome).Observe(d.Seconds())
}

// AddTokenCost adds to the cost proxy counter.
func (m *Metrics) AddTokenCost(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.tokenCost.Add(float64(n))
}
