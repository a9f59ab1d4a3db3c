package enums

import "fmt"

// PaymentStatus tracks the payment side of an order. It moves
// unpaid -> pending when a card flow starts and pending -> paid|failed once
// the gateway answers. Cash orders stay unpaid until the counter settles them.
type PaymentStatus string

const (
	PaymentStatusUnpaid  PaymentStatus = "unpaid"
	PaymentStatusPending PaymentStatus = "pending"
	PaymentStatusPaid    PaymentStatus = "paid"
	PaymentStatusFailed  PaymentStatus = "failed"
)

// paymentTransitions lists the statuses reachable from each status.
var paymentTransitions = map[PaymentStatus][]PaymentStatus{
	PaymentStatusUnpaid:  {PaymentStatusPending, PaymentStatusPaid, PaymentStatusFailed},
	PaymentStatusPending: {PaymentStatusPending, PaymentStatusPaid, PaymentStatusFailed},
	PaymentStatusPaid:    nil,
	PaymentStatusFailed:  nil,
}

func (p PaymentStatus) String() string {
	return string(p)
}

func (p PaymentStatus) IsValid() bool {
	_, ok := paymentTransitions[p]
	return ok
}

// IsFinal reports whether the gateway has given its last word.
func (p PaymentStatus) IsFinal() bool {
	return p == PaymentStatusPaid || p == PaymentStatusFailed
}

// CanTransitionTo reports whether next may overwrite p.
func (p PaymentStatus) CanTransitionTo(next PaymentStatus) bool {
	for _, candidate := range paymentTransitions[p] {
		if candidate == next {
			return true
		}
	}
	return false
}

// PaymentStatusesBefore lists the statuses allowed to move to next.
func PaymentStatusesBefore(next PaymentStatus) []PaymentStatus {
	var out []PaymentStatus
	for _, from := range []PaymentStatus{PaymentStatusUnpaid, PaymentStatusPending, PaymentStatusPaid, PaymentStatusFailed} {
		if from.CanTransitionTo(next) {
			out = append(out, from)
		}
	}
	return out
}

func ParsePaymentStatus(value string) (PaymentStatus, error) {
	p := PaymentStatus(value)
	if !p.IsValid() {
		return "", fmt.Errorf("invalid payment status %q", value)
	}
	return p, nil
}
