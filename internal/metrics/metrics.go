package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	CheckoutSessions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "barboeuf",
		Name:      "checkout_sessions_total",
		Help:      "Checkout session requests by outcome.",
	}, []string{"outcome"})

	WebhookEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "barboeuf",
		Name:      "webhook_events_total",
		Help:      "Payment provider notifications by event type and outcome.",
	}, []string{"event_type", "outcome"})

	Settlements = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "barboeuf",
		Name:      "order_settlements_total",
		Help:      "Settlement attempts by result: fresh, duplicate, not_pending, not_found or error.",
	}, []string{"result"})

	ProviderLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "barboeuf",
		Name:      "payment_provider_request_seconds",
		Help:      "Latency of outbound payment provider calls.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"operation", "outcome"})

	RateLimited = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "barboeuf",
		Name:      "rate_limited_requests_total",
		Help:      "Requests rejected with 429 by tier.",
	}, []string{"tier"})
)

// Timer measures one operation for a histogram observation.
type Timer struct {
	start time.Time
}

func StartTimer() *Timer {
	return &Timer{start: time.Now()}
}

func (t *Timer) ObserveProvider(operation string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	ProviderLatency.WithLabelValues(operation, outcome).Observe(time.Since(t.start).Seconds())
}
