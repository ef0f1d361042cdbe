package pos

import "diffpos/backend/internal/domain"

// Settlement states.
const (
	StateIdle           = "idle"
	StateAwaitingTender = "awaiting_tender"
	StateAccepted       = "accepted"
	StateRejected       = "rejected"
)

// Settlement is the checkout state machine for one cart session. Settlement
// is at-most-once: the only path to Accepted is a valid tender, and a second
// tender after acceptance fails with ErrAlreadySettled.
type Settlement struct {
	cart  *Cart
	state string
}

func NewSettlement(cart *Cart) *Settlement {
	return &Settlement{cart: cart, state: StateIdle}
}

func (s *Settlement) State() string {
	return s.state
}

// BeginCheckout enters AwaitingTender. An empty cart blocks checkout rather
// than being silently ignored.
func (s *Settlement) BeginCheckout() (domain.PriceBreakdown, error) {
	if s.state == StateAccepted {
		return domain.PriceBreakdown{}, ErrAlreadySettled
	}
	if s.cart.IsEmpty() {
		return domain.PriceBreakdown{}, ErrEmptyCart
	}
	s.state = StateAwaitingTender
	return Compute(s.cart), nil
}

// SubmitTender validates the tender against the total recomputed at this
// moment, never a stale value. A rejected tender leaves the cart untouched
// and the machine in Rejected; Retry moves it back to AwaitingTender.
func (s *Settlement) SubmitTender(tender domain.Tender) (domain.PriceBreakdown, int64, error) {
	switch s.state {
	case StateAccepted:
		return domain.PriceBreakdown{}, 0, ErrAlreadySettled
	case StateIdle:
		return domain.PriceBreakdown{}, 0, ErrNoTenderPending
	}

	// The cart may have been emptied after BeginCheckout. A zero-line sale
	// must never reach Accepted.
	if s.cart.IsEmpty() {
		return domain.PriceBreakdown{}, 0, ErrEmptyCart
	}

	breakdown := Compute(s.cart)

	switch tender.Method {
	case domain.PaymentCash:
		if tender.AmountReceivedMinor < breakdown.TotalMinor {
			s.state = StateRejected
			return domain.PriceBreakdown{}, 0, ErrInsufficientPayment
		}
		s.state = StateAccepted
		return breakdown, tender.AmountReceivedMinor - breakdown.TotalMinor, nil
	case domain.PaymentTransfer, domain.PaymentCardPresent:
		// The external rail collects the full total; any supplied amount
		// is ignored and change is always zero.
		s.state = StateAccepted
		return breakdown, 0, nil
	default:
		s.state = StateRejected
		return domain.PriceBreakdown{}, 0, ErrUnknownMethod
	}
}

// Retry returns a rejected settlement to AwaitingTender so the cashier can
// submit a corrected tender.
func (s *Settlement) Retry() error {
	if s.state != StateRejected {
		return ErrNoTenderPending
	}
	s.state = StateAwaitingTender
	return nil
}

// Cancel abandons the checkout. The cart is left untouched. Cancelling an
// in-flight external settlement must land here (Rejected then Idle), never
// hang in AwaitingTender.
func (s *Settlement) Cancel() error {
	if s.state == StateAccepted {
		return ErrAlreadySettled
	}
	s.state = StateIdle
	return nil
}

// Reset prepares the machine for the next sale after issuance.
func (s *Settlement) Reset() {
	s.state = StateIdle
}
