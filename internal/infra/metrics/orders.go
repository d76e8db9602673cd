package metrics

import (
	"strings"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(
		ordersTotal,
		reconcileSignalsTotal,
		duplicateSignalsTotal,
		overridesTotal,
	)
}

var (
	ordersTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orders_total",
			Help: "Orders by terminal outcome (created/succeeded/canceled).",
		},
		[]string{"status"},
	)

	reconcileSignalsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reconcile_signals_total",
			Help: "Status signals ingested by the reconciler, by source and reported status.",
		},
		[]string{"source", "status"},
	)

	duplicateSignalsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reconcile_duplicate_signals_total",
			Help: "Signals suppressed because the order was already in that terminal state.",
		},
		[]string{"source"},
	)

	overridesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "reconcile_user_overrides_total",
			Help: "Manual success confirmations accepted after the polling budget ran out.",
		},
	)
)

func norm(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

func IncOrder(status string) {
	ordersTotal.WithLabelValues(norm(status)).Inc()
}

func IncSignal(source, status string) {
	reconcileSignalsTotal.WithLabelValues(norm(source), norm(status)).Inc()
}

func IncDuplicateSignal(source string) {
	duplicateSignalsTotal.WithLabelValues(norm(source)).Inc()
}

func IncUserOverride() {
	overridesTotal.Inc()
}
