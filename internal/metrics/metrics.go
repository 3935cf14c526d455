// Package metrics holds the Prometheus counters for the reservation,
// checkout and scan flows. Counters live on a registry owned by the
// caller; nothing is registered globally.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics is safe to use as a nil pointer; every method is then a no-op.
type Metrics struct {
	reservationAttempts  prometheus.Counter
	reservationSuccesses prometheus.Counter
	reservationConflicts prometheus.Counter
	holdsExpired         prometheus.Counter
	checkoutAttempts     prometheus.Counter
	checkoutSuccesses    prometheus.Counter
	finalized            *prometheus.CounterVec
	webhookEvents        *prometheus.CounterVec
	ticketScans          *prometheus.CounterVec
}

// New creates the counters and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		reservationAttempts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "reservation_attempt_total",
			Help: "Seat hold attempts.",
		}),
		reservationSuccesses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "reservation_success_total",
			Help: "Seat holds created.",
		}),
		reservationConflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "reservation_conflict_total",
			Help: "Seat hold attempts rejected because a seat was taken.",
		}),
		holdsExpired: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "reservation_expired_total",
			Help: "Holds released by the expiry sweep.",
		}),
		checkoutAttempts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "checkout_session_attempt_total",
			Help: "Checkout session requests.",
		}),
		checkoutSuccesses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "checkout_session_success_total",
			Help: "Checkout sessions created or returned.",
		}),
		finalized: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "checkout_finalize_total",
			Help: "Orders finalized, by resulting status.",
		}, []string{"status"}),
		webhookEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "payment_webhook_events_total",
			Help: "Payment webhook deliveries, by outcome.",
		}, []string{"outcome"}),
		ticketScans: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ticket_scan_total",
			Help: "Ticket scans, by result.",
		}, []string{"result"}),
	}
	reg.MustRegister(
		m.reservationAttempts, m.reservationSuccesses, m.reservationConflicts, m.holdsExpired,
		m.checkoutAttempts, m.checkoutSuccesses, m.finalized, m.webhookEvents, m.ticketScans,
	)
	return m
}

// Handler exposes the registry in the Prometheus text format.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// ReservationAttempt counts a seat hold request.
func (m *Metrics) ReservationAttempt() {
	if m != nil {
		m.reservationAttempts.Inc()
	}
}

// ReservationSuccess counts a hold that was created.
func (m *Metrics) ReservationSuccess() {
	if m != nil {
		m.reservationSuccesses.Inc()
	}
}

// ReservationConflict counts a hold rejected because a seat was taken.
func (m *Metrics) ReservationConflict() {
	if m != nil {
		m.reservationConflicts.Inc()
	}
}

// HoldsExpired adds n holds released by the expiry sweep.
func (m *Metrics) HoldsExpired(n int) {
	if m != nil && n > 0 {
		m.holdsExpired.Add(float64(n))
	}
}

// CheckoutAttempt counts a checkout session request.
func (m *Metrics) CheckoutAttempt() {
	if m != nil {
		m.checkoutAttempts.Inc()
	}
}

// CheckoutSuccess counts a checkout session created or returned.
func (m *Metrics) CheckoutSuccess() {
	if m != nil {
		m.checkoutSuccesses.Inc()
	}
}

// Finalized counts a PENDING order reaching status.
func (m *Metrics) Finalized(status string) {
	if m != nil {
		m.finalized.WithLabelValues(status).Inc()
	}
}

// WebhookEvent counts a webhook delivery by outcome: processed,
// duplicate, ignored or store_error.
func (m *Metrics) WebhookEvent(outcome string) {
	if m != nil {
		m.webhookEvents.WithLabelValues(outcome).Inc()
	}
}

// TicketScan counts a scan by result.
func (m *Metrics) TicketScan(result string) {
	if m != nil {
		m.ticketScans.WithLabelValues(result).Inc()
	}
}
