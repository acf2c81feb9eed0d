package gateway

import (
	"context"
	"errors"
	"fmt"

	"github.com/stripe/stripe-go/v74"
	"github.com/stripe/stripe-go/v74/client"

	"laundry-dispatch/internal/models"
)

// StripeClient implements Client on the Stripe API.
type StripeClient struct {
	api *client.API
}

// NewStripeClient creates a Stripe-backed gateway client.
func NewStripeClient(apiKey string) *StripeClient {
	api := &client.API{}
	api.Init(apiKey, nil)
	return &StripeClient{api: api}
}

// Charge creates and confirms a payment intent.
func (s *StripeClient) Charge(ctx context.Context, p ChargeParams) (*ChargeResult, error) {
	params := &stripe.PaymentIntentParams{
		Amount:        stripe.Int64(p.Amount),
		Currency:      stripe.String(p.Currency),
		PaymentMethod: stripe.String(p.PaymentMethodID),
		Confirm:       stripe.Bool(true),
		Description:   stripe.String(p.Description),
	}
	params.Context = ctx

	pi, err := s.api.PaymentIntents.New(params)
	if err != nil {
		return nil, wrapStripeErr("charge", err)
	}

	res := &ChargeResult{ChargeID: pi.ID, Paid: pi.Status == stripe.PaymentIntentStatusSucceeded}
	if pi.NextAction != nil && pi.NextAction.RedirectToURL != nil {
		res.RedirectURL = pi.NextAction.RedirectToURL.URL
	}
	return res, nil
}

// CreateRefund refunds part or all of a payment intent. Stripe is
// idempotent against its own refund id, not against our state; the local
// transaction re-validates after this call returns.
func (s *StripeClient) CreateRefund(ctx context.Context, chargeID string, amount int64, reason string) (*RefundResult, error) {
	params := &stripe.RefundParams{
		PaymentIntent: stripe.String(chargeID),
		Amount:        stripe.Int64(amount),
		Reason:        stripe.String(string(stripe.RefundReasonRequestedByCustomer)),
	}
	params.Context = ctx
	params.AddMetadata("reason_detail", reason)

	ref, err := s.api.Refunds.New(params)
	if err != nil {
		return nil, wrapStripeErr("refund", err)
	}
	return &RefundResult{ID: ref.ID, Status: string(ref.Status)}, nil
}

// wrapStripeErr attaches the gateway's own message so operators can act on it.
func wrapStripeErr(op string, err error) error {
	var sErr *stripe.Error
	if errors.As(err, &sErr) {
		return fmt.Errorf("%w: %s: %s", models.ErrGatewayFailure, op, sErr.Msg)
	}
	return fmt.Errorf("%w: %s: %v", models.ErrGatewayFailure, op, err)
}
