package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// AssignmentMetrics tracks state machine transitions and finalize latency.
type AssignmentMetrics struct {
	transitions *prometheus.CounterVec
	finalize    *prometheus.HistogramVec
	workLogs    prometheus.Counter
}

// NewAssignmentMetrics registers the assignment metrics on the provided registerer.
func NewAssignmentMetrics(reg prometheus.Registerer) *AssignmentMetrics {
	if reg == nil {
		return &AssignmentMetrics{}
	}
	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "assignments",
		Name:      "transitions_total",
		Help:      "Assignment transitions by target status and result.",
	}, []string{"status", "result"})
	finalize := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "assignments",
		Name:      "finalize_duration_seconds",
		Help:      "Duration of finalize calls in seconds.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"result"})
	workLogs := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "assignments",
		Name:      "work_logs_created_total",
		Help:      "Work-log entries written by finalization.",
	})
	reg.MustRegister(transitions, finalize, workLogs)
	return &AssignmentMetrics{transitions: transitions, finalize: finalize, workLogs: workLogs}
}

// ObserveTransition counts a transition attempt. result is "applied", "noop" or "error".
func (m *AssignmentMetrics) ObserveTransition(status, result string) {
	if m == nil || m.transitions == nil {
		return
	}
	m.transitions.WithLabelValues(normalizeLabel(status), normalizeLabel(result)).Inc()
}

// ObserveFinalize records finalize latency.
func (m *AssignmentMetrics) ObserveFinalize(result string, duration time.Duration) {
	if m == nil || m.finalize == nil {
		return
	}
	m.finalize.WithLabelValues(normalizeLabel(result)).Observe(duration.Seconds())
}

// AddWorkLogs counts newly written work-log entries.
func (m *AssignmentMetrics) AddWorkLogs(n int) {
	if m == nil || m.workLogs == nil || n <= 0 {
		return
	}
	m.workLogs.Add(float64(n))
}
