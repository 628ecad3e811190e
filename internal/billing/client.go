// Package billing integrates the external payment provider.
//
// The portal creates a charge state for a priced order, sends the user to
// the provider's payment page, and learns about completion through the
// webhook in this package. The provider is the source of truth for payment
// status; the portal never marks a charge settled on its own.
package billing

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

// ChargeRequest asks the provider to open a charge state.
type ChargeRequest struct {
	Amount      decimal.Decimal
	Currency    string
	Description string
	// OffSession charges a stored payment method without user interaction;
	// renewal automation uses it, interactive orders do not.
	OffSession bool
	// ReturnURL is where the provider sends the user after payment. The
	// provider appends charge_state_id so the confirmation page can detect
	// the callback.
	ReturnURL string
}

// Charge is an open (or already settled) charge state at the provider.
type Charge struct {
	ChargeStateID string
	RedirectURI   string
	// Settled is true when the provider completed the charge synchronously,
	// e.g. a zero-balance invoice or an off-session charge against a stored
	// card.
	Settled bool
}

// Client is the port to the payment provider.
type Client interface {
	CreateCharge(ctx context.Context, req ChargeRequest) (Charge, error)
}

// Error is a failed provider call with a user-displayable detail.
type Error struct {
	Detail string
}

func (e *Error) Error() string { return "billing: " + e.Detail }

// ErrorDetail extracts the displayable detail from a provider call error.
// Transport faults and circuit-breaker rejections collapse to a generic
// message so internals never reach the user.
func ErrorDetail(err error) string {
	var billingErr *Error
	if errors.As(err, &billingErr) {
		return billingErr.Detail
	}
	return "payment provider temporarily unavailable"
}
