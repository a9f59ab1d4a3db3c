package metrics

import "github.com/prometheus/client_golang/prometheus"

// Reconcile outcomes.
const (
	OutcomeConfirmed       = "confirmed"
	OutcomeCancelled       = "cancelled"
	OutcomePending         = "pending"
	OutcomeAlreadySettled  = "already_settled"
	OutcomeMissingRef      = "missing_reference"
	OutcomeGatewayError    = "gateway_error"
	OutcomePersistenceFail = "persistence_error"
)

// PaymentMetrics counts reconciliation outcomes and gateway registrations.
type PaymentMetrics struct {
	reconcile     *prometheus.CounterVec
	registrations *prometheus.CounterVec
}

// NewPaymentMetrics registers the payment metrics on the provided registerer.
func NewPaymentMetrics(reg prometheus.Registerer) *PaymentMetrics {
	if reg == nil {
		return &PaymentMetrics{}
	}
	reconcile := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payments_reconcile_total",
		Help: "Payment reconciliations by outcome.",
	}, []string{"outcome"})
	registrations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payments_gateway_registrations_total",
		Help: "Redirect gateway registrations by result.",
	}, []string{"result"})
	reg.MustRegister(reconcile, registrations)
	return &PaymentMetrics{reconcile: reconcile, registrations: registrations}
}

// IncReconcile counts one reconciliation with the given outcome.
func (p *PaymentMetrics) IncReconcile(outcome string) {
	if p == nil || p.reconcile == nil {
		return
	}
	p.reconcile.WithLabelValues(normalizeLabel(outcome)).Inc()
}

// IncRegistration counts a registration attempt; result is "ok", "reused" or "error".
func (p *PaymentMetrics) IncRegistration(result string) {
	if p == nil || p.registrations == nil {
		return
	}
	p.registrations.WithLabelValues(normalizeLabel(result)).Inc()
}
