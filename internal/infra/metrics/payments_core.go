package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
)

func init() {
	register(
		paymentsTotal,
		paymentsRevenueTotal,
		webhookEventsTotal,
		gatewayCallDuration,
	)
}

var (
	paymentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payments_total",
			Help: "Payment status changes by status (created/succeeded/cancelled/...).",
		},
		[]string{"status"},
	)

	paymentsRevenueTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payments_revenue_total",
			Help: "The total monetary value of successful payments, labeled by currency.",
		},
		[]string{"currency"},
	)

	// result: applied|noop|unknown_payment|invalid_signature|error
	webhookEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webhook_events_total",
			Help: "Inbound payment provider webhook events by event name and result.",
		},
		[]string{"event", "result"},
	)

	gatewayCallDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "payment_gateway_call_duration_seconds",
			Help:    "Latency of outbound payment provider calls.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		},
		[]string{"provider", "op", "success"},
	)
)

func IncPayment(status string) {
	paymentsTotal.WithLabelValues(norm(status)).Inc()
}

func AddPaymentRevenue(currency string, amount decimal.Decimal) {
	paymentsRevenueTotal.WithLabelValues(norm(currency)).Add(amount.InexactFloat64())
}

func IncWebhookEvent(event, result string) {
	if event == "" {
		event = "unknown"
	}
	webhookEventsTotal.WithLabelValues(norm(event), norm(result)).Inc()
}

func ObserveGatewayCall(provider, op string, seconds float64, success bool) {
	gatewayCallDuration.WithLabelValues(norm(provider), norm(op), boolLabel(success)).Observe(seconds)
}
