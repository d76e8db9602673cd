package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		activationsTotal,
		pollOutcomesTotal,
		gatewayRequestsTotal,
		gatewayLatency,
	)
}

var (
	activationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "subscription_activations_total",
			Help: "Activation attempts by result (success/failure/duplicate).",
		},
		[]string{"result"},
	)

	pollOutcomesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "status_poll_outcomes_total",
			Help: "How polling loops ended (terminal/stopped/exhausted).",
		},
		[]string{"outcome"},
	)

	gatewayRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_requests_total",
			Help: "Payment gateway calls by operation and outcome.",
		},
		[]string{"op", "outcome"},
	)

	gatewayLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gateway_request_duration_seconds",
			Help:    "Payment gateway call latency.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"op"},
	)
)

func IncActivation(result string) {
	activationsTotal.WithLabelValues(norm(result)).Inc()
}

func IncPollOutcome(outcome string) {
	pollOutcomesTotal.WithLabelValues(norm(outcome)).Inc()
}

func ObserveGatewayCall(op string, seconds float64, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	gatewayRequestsTotal.WithLabelValues(norm(op), outcome).Inc()
	gatewayLatency.WithLabelValues(norm(op)).Observe(seconds)
}
