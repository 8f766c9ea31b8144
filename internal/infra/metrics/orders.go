package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		ordersCreatedTotal,
		orderTransitionsTotal,
	)
}

var (
	ordersCreatedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orders_created_total",
			Help: "Orders created, labeled by payment type (full/installment).",
		},
		[]string{"payment_type"},
	)

	orderTransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "order_status_transitions_total",
			Help: "Order status changes by target status and source (payment/admin).",
		},
		[]string{"status", "source"},
	)
)

func IncOrderCreated(paymentType string) {
	ordersCreatedTotal.WithLabelValues(norm(paymentType)).Inc()
}

func IncOrderTransition(status, source string) {
	orderTransitionsTotal.WithLabelValues(norm(status), norm(source)).Inc()
}
