package circuitbreaker

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	stateGauge = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "wikivec_circuit_breaker_state",
			Help: "Current circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	stateChanges = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wikivec_circuit_breaker_state_changes_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"name", "from", "to"},
	)

	requestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wikivec_circuit_breaker_requests_total",
			Help: "Total requests observed by circuit breakers",
		},
		[]string{"name", "state", "result"},
	)
)

func recordStateChange(name string, from, to State) {
	stateGauge.WithLabelValues(name).Set(float64(to))
	stateChanges.WithLabelValues(name, from.String(), to.String()).Inc()
}

func recordRequest(name string, state State, success bool) {
	result := "failure"
	if success {
		result = "success"
	}
	requestsTotal.WithLabelValues(name, state.String(), result).Inc()
}
