package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Checkout confirmation outcomes.
const (
	OutcomeSettled             = "settled"
	OutcomeDuplicate           = "duplicate"
	OutcomeInsufficientStock   = "insufficient_stock"
	OutcomeTotalMismatch       = "total_mismatch"
	OutcomePaymentNotConfirmed = "payment_not_confirmed"
	OutcomeError               = "error"
)

// CheckoutMetrics records confirmation outcomes and latency.
type CheckoutMetrics struct {
	confirmations *prometheus.CounterVec
	duration      prometheus.Histogram
	sessions      *prometheus.CounterVec
}

// NewCheckoutMetrics registers the checkout metrics on the provided registerer.
// A nil registerer yields a no-op collector.
func NewCheckoutMetrics(reg prometheus.Registerer) *CheckoutMetrics {
	if reg == nil {
		return &CheckoutMetrics{}
	}
	confirmations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "checkout_confirmations_total",
		Help: "Checkout confirmations by outcome.",
	}, []string{"outcome"})
	duration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "checkout_confirmation_duration_seconds",
		Help:    "Duration of checkout confirmations in seconds, including provider calls.",
		Buckets: prometheus.DefBuckets,
	})
	sessions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "checkout_sessions_created_total",
		Help: "Checkout sessions created, by result.",
	}, []string{"result"})
	reg.MustRegister(confirmations, duration, sessions)
	return &CheckoutMetrics{
		confirmations: confirmations,
		duration:      duration,
		sessions:      sessions,
	}
}

// ObserveConfirmation counts one confirmation with its outcome and duration.
func (c *CheckoutMetrics) ObserveConfirmation(outcome string, duration time.Duration) {
	if c == nil || c.confirmations == nil {
		return
	}
	c.confirmations.WithLabelValues(normalizeLabel(outcome)).Inc()
	c.duration.Observe(duration.Seconds())
}

func (c *CheckoutMetrics) IncSession(ok bool) {
	if c == nil || c.sessions == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "error"
	}
	c.sessions.WithLabelValues(result).Inc()
}

func normalizeLabel(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
