package domain

type CheckoutState string

const (
	CheckoutIdle       CheckoutState = "IDLE"
	CheckoutSubmitting CheckoutState = "SUBMITTING"
	CheckoutSucceeded  CheckoutState = "SUCCEEDED"
	CheckoutFailed     CheckoutState = "FAILED"
)

func (s CheckoutState) IsTerminal() bool {
	return s == CheckoutSucceeded || s == CheckoutFailed
}

// CanTransitionTo encodes Idle -> Submitting -> {Succeeded, Failed}.
// Terminal states go back to Idle on the next submission, and a Failed
// attempt whose outcome was unknown may be reconciled to Succeeded.
func CanTransitionTo(from, to CheckoutState) bool {
	switch from {
	case CheckoutIdle:
		return to == CheckoutSubmitting
	case CheckoutSubmitting:
		return to == CheckoutSucceeded || to == CheckoutFailed
	case CheckoutSucceeded:
		return to == CheckoutIdle
	case CheckoutFailed:
		return to == CheckoutIdle || to == CheckoutSucceeded
	}
	return false
}

// String representation (for logging)
func (s CheckoutState) String() string {
	return string(s)
}
