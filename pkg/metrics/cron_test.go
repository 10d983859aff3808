package metrics

import (
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestCronJobMetricsExportsRunsAndLastSuccess(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewCronJobMetrics(reg)
	job := "totals-reconcile"
	metrics.ObserveDuration(job, 250*time.Millisecond)
	metrics.IncSuccess(job)
	metrics.IncFailure(job)
	metrics.IncFailure(job)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}

	if got, err := fetchCounterWithLabels(mfs, "fieldops_cron_job_runs_total", map[string]string{"job": job, "outcome": "success"}); err != nil || got != 1 {
		t.Fatalf("expected success=1, got %f (%v)", got, err)
	}
	if got, err := fetchCounterWithLabels(mfs, "fieldops_cron_job_runs_total", map[string]string{"job": job, "outcome": "failure"}); err != nil || got != 2 {
		t.Fatalf("expected failure=2, got %f (%v)", got, err)
	}
	if got, err := fetchHistogramSum(mfs, "fieldops_cron_job_duration_seconds", "job", job); err != nil || got <= 0 {
		t.Fatalf("expected duration sum > 0, got %f (%v)", got, err)
	}
	mf := findMetricFamily(mfs, "fieldops_cron_job_last_success_timestamp_seconds")
	if mf == nil || len(mf.GetMetric()) != 1 || mf.GetMetric()[0].GetGauge().GetValue() <= 0 {
		t.Fatalf("expected last success timestamp for %s", job)
	}
}

func TestCronJobMetricsNilRegistererIsNoop(t *testing.T) {
	m := NewCronJobMetrics(nil)
	if m != nil {
		t.Fatalf("expected nil metrics without a registerer")
	}
	m.IncSuccess("x")
	m.IncFailure("x")
	m.ObserveDuration("x", time.Second)
}

func fetchCounterWithLabels(mfs []*dto.MetricFamily, name string, labels map[string]string) (float64, error) {
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		return 0, fmt.Errorf("metric %q not found", name)
	}
	for _, metric := range mf.GetMetric() {
		matched := true
		for k, v := range labels {
			if !matchesLabel(metric.GetLabel(), k, v) {
				matched = false
				break
			}
		}
		if matched {
			return metric.GetCounter().GetValue(), nil
		}
	}
	return 0, fmt.Errorf("metric %q missing labels %v", name, labels)
}

func fetchCounterValue(mfs []*dto.MetricFamily, name, label, value string) (float64, error) {
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		return 0, fmt.Errorf("metric %q not found", name)
	}
	for _, metric := range mf.GetMetric() {
		if matchesLabel(metric.GetLabel(), label, value) {
			return metric.GetCounter().GetValue(), nil
		}
	}
	return 0, fmt.Errorf("metric %q missing label %s=%s", name, label, value)
}

func fetchHistogramSum(mfs []*dto.MetricFamily, name, label, value string) (float64, error) {
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		return 0, fmt.Errorf("metric %q not found", name)
	}
	for _, metric := range mf.GetMetric() {
		if matchesLabel(metric.GetLabel(), label, value) {
			return metric.GetHistogram().GetSampleSum(), nil
		}
	}
	return 0, fmt.Errorf("histogram %q missing label %s=%s", name, label, value)
}

func findMetricFamily(mfs []*dto.MetricFamily, name string) *dto.MetricFamily {
	for _, mf := range mfs {
		if mf.GetName() == name {
			return mf
		}
	}
	return nil
}

func matchesLabel(labels []*dto.LabelPair, name, value string) bool {
	for _, label := range labels {
		if label.GetName() == name && label.GetValue() == value {
			return true
		}
	}
	return false
}

func TestRoutingMetricsCountsOutcomes(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewRoutingMetrics(reg)
	m.ObserveStrategy("provider", false)
	m.ObserveStrategy("direct-fallback", true)
	m.ObserveGeocode("google", true)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	if got, err := fetchCounterValue(mfs, "fieldops_routing_strategy_attempts_total", "strategy", "provider"); err != nil || got != 1 {
		t.Fatalf("expected provider attempt=1, got %f (%v)", got, err)
	}
	if got, err := fetchCounterValue(mfs, "fieldops_routing_geocode_attempts_total", "provider", "google"); err != nil || got != 1 {
		t.Fatalf("expected google geocode=1, got %f (%v)", got, err)
	}
}

func TestAssignmentMetricsNilSafe(t *testing.T) {
	var m *AssignmentMetrics
	m.ObserveTransition("finalized", "applied")
	m.ObserveFinalize("ok", time.Second)
	m.AddWorkLogs(3)

	reg := prometheus.NewRegistry()
	m = NewAssignmentMetrics(reg)
	m.ObserveTransition("finalized", "applied")
	m.ObserveFinalize("ok", 100*time.Millisecond)
	m.AddWorkLogs(2)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	if got, err := fetchCounterValue(mfs, "fieldops_assignments_transitions_total", "status", "finalized"); err != nil || got != 1 {
		t.Fatalf("expected finalized transition=1, got %f (%v)", got, err)
	}
	if got, err := fetchHistogramSum(mfs, "fieldops_assignments_finalize_duration_seconds", "result", "ok"); err != nil || got <= 0 {
		t.Fatalf("expected finalize duration > 0, got %f (%v)", got, err)
	}
}
