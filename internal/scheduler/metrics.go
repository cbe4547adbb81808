package scheduler

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type sweepMetrics struct {
	runs      *prometheus.CounterVec
	failures  *prometheus.CounterVec
	durations *prometheus.HistogramVec
}

var (
	sweepMetricsOnce sync.Once
	sweepMetricsInst *sweepMetrics
)

func globalSweepMetrics() *sweepMetrics {
	sweepMetricsOnce.Do(func() {
		sweepMetricsInst = newSweepMetrics()
	})
	return sweepMetricsInst
}

func newSweepMetrics() *sweepMetrics {
	return &sweepMetrics{
		runs: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "craftdesk",
			Subsystem: "scheduler",
			Name:      "sweep_runs_total",
			Help:      "Total sweep executions, labeled by handler",
		}, []string{"handler"}),
		failures: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "craftdesk",
			Subsystem: "scheduler",
			Name:      "sweep_failures_total",
			Help:      "Sweep executions that returned an error",
		}, []string{"handler"}),
		durations: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "craftdesk",
			Subsystem: "scheduler",
			Name:      "sweep_duration_seconds",
			Help:      "Duration of sweep executions",
			Buckets:   prometheus.DefBuckets,
		}, []string{"handler"}),
	}
}

func (m *sweepMetrics) recordRun(handler string) func() {
	if m == nil {
		return func() {}
	}
	m.runs.WithLabelValues(handler).Inc()
	timer := prometheus.NewTimer(m.durations.WithLabelValues(handler))
	return func() { timer.ObserveDuration() }
}

func (m *sweepMetrics) recordFailure(handler string) {
	if m == nil {
		return
	}
	m.failures.WithLabelValues(handler).Inc()
}
