package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ShopMetrics counts the business outcomes that matter operationally:
// checkout attempts by result, webhook deliveries by outcome, and oversold
// orders that need an operator.
type ShopMetrics struct {
	CheckoutTotal  *prometheus.CounterVec
	WebhookTotal   *prometheus.CounterVec
	StockConflicts prometheus.Counter
}

func NewShopMetrics(reg prometheus.Registerer) *ShopMetrics {
	checkout := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "shop",
		Subsystem: "checkout",
		Name:      "requests_total",
		Help:      "Checkout attempts by result.",
	}, []string{"result"})
	webhook := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "shop",
		Subsystem: "webhook",
		Name:      "events_total",
		Help:      "Payment webhook deliveries by outcome.",
	}, []string{"outcome"})
	conflicts := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "shop",
		Subsystem: "reconcile",
		Name:      "stock_conflicts_total",
		Help:      "Orders that could not be settled because stock ran out after checkout.",
	})

	reg.MustRegister(checkout, webhook, conflicts)
	return &ShopMetrics{CheckoutTotal: checkout, WebhookTotal: webhook, StockConflicts: conflicts}
}

func Handler() http.Handler {
	return promhttp.Handler()
}
