package gateway

import "context"

// ChargeParams describes one card charge request.
type ChargeParams struct {
	Amount          int64 // smallest currency unit (mils)
	Currency        string
	PaymentMethodID string
	Description     string
}

// ChargeResult is the gateway's authoritative answer for a charge.
type ChargeResult struct {
	ChargeID string
	// Paid is true when the charge settled immediately. When false the
	// charge is pending and RedirectURL may point at a 3DS challenge.
	Paid        bool
	RedirectURL string
}

// RefundResult is the gateway's authoritative answer for a refund.
type RefundResult struct {
	ID     string
	Status string
}

// Client is the external card-payment gateway. Its success or failure is
// authoritative for whether money moved externally; callers never retry
// automatically.
type Client interface {
	Charge(ctx context.Context, p ChargeParams) (*ChargeResult, error)
	CreateRefund(ctx context.Context, chargeID string, amount int64, reason string) (*RefundResult, error)
}
