package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		sweepRunsTotal,
		overdueOrders,
		overdueNotificationsTotal,
		reconcileChecksTotal,
	)
}

var (
	// result: ok|skipped_locked|error
	sweepRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "overdue_sweep_runs_total",
			Help: "Overdue sweep executions by result.",
		},
		[]string{"result"},
	)

	overdueOrders = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "overdue_orders",
			Help: "Number of overdue installment orders found by the last sweep.",
		},
	)

	// result: sent|failed
	overdueNotificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "overdue_notifications_total",
			Help: "Per-order overdue notifications by result.",
		},
		[]string{"result"},
	)

	// result: changed|unchanged|error
	reconcileChecksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_reconcile_checks_total",
			Help: "Stale pending payments polled against the provider, by result.",
		},
		[]string{"result"},
	)
)

func IncSweepRun(result string) {
	sweepRunsTotal.WithLabelValues(norm(result)).Inc()
}

func SetOverdueOrders(n int) {
	overdueOrders.Set(float64(n))
}

func IncOverdueNotification(result string) {
	overdueNotificationsTotal.WithLabelValues(norm(result)).Inc()
}

func IncReconcileCheck(result string) {
	reconcileChecksTotal.WithLabelValues(norm(result)).Inc()
}
