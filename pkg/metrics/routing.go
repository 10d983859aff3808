package metrics

import "github.com/prometheus/client_golang/prometheus"

// RoutingMetrics counts route strategy and geocoder outcomes.
type RoutingMetrics struct {
	attempts *prometheus.CounterVec
	geocodes *prometheus.CounterVec
}

// NewRoutingMetrics registers the routing metrics on the provided registerer.
func NewRoutingMetrics(reg prometheus.Registerer) *RoutingMetrics {
	if reg == nil {
		return &RoutingMetrics{}
	}
	attempts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "routing",
		Name:      "strategy_attempts_total",
		Help:      "Route strategy attempts by strategy and outcome.",
	}, []string{"strategy", "outcome"})
	geocodes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "routing",
		Name:      "geocode_attempts_total",
		Help:      "Geocoding attempts by provider and outcome.",
	}, []string{"provider", "outcome"})
	reg.MustRegister(attempts, geocodes)
	return &RoutingMetrics{attempts: attempts, geocodes: geocodes}
}

// ObserveStrategy records one strategy attempt. ok=false means the strategy was unavailable.
func (m *RoutingMetrics) ObserveStrategy(strategy string, ok bool) {
	if m == nil || m.attempts == nil {
		return
	}
	m.attempts.WithLabelValues(normalizeLabel(strategy), outcome(ok)).Inc()
}

// ObserveGeocode records one geocoding provider attempt.
func (m *RoutingMetrics) ObserveGeocode(provider string, ok bool) {
	if m == nil || m.geocodes == nil {
		return
	}
	m.geocodes.WithLabelValues(normalizeLabel(provider), outcome(ok)).Inc()
}

func outcome(ok bool) string {
	if ok {
		return "success"
	}
	return "unavailable"
}
