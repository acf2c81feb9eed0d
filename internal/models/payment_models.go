package models

import "time"

// PaymentMethod identifies how money moved.
type PaymentMethod string

const (
	MethodWallet PaymentMethod = "WALLET"
	MethodCard   PaymentMethod = "CARD"
	MethodTapPay PaymentMethod = "TAP_PAY"
	// MethodSplit is a request-only value: a split settles as one WALLET
	// record and one CARD record linked by metadata.
	MethodSplit PaymentMethod = "SPLIT"
)

// IsGateway reports whether the method settles through the external card
// gateway (and therefore refunds through it too).
func (m PaymentMethod) IsGateway() bool {
	return m == MethodCard || m == MethodTapPay
}

// PaymentRecord is one row per money movement attempt (payment or refund
// credit). Amount is immutable once created; RefundAmount accumulates.
type PaymentRecord struct {
	ID            int64         `json:"id"`
	OrderID       int64         `json:"order_id"`
	CustomerID    int64         `json:"customer_id"`
	Amount        Money         `json:"amount"`
	PaymentMethod PaymentMethod `json:"payment_method"`
	PaymentStatus PaymentStatus `json:"payment_status"`
	RefundAmount  Money         `json:"refund_amount"`
	RefundReason  string        `json:"refund_reason,omitempty"`
	// GatewayChargeID is the gateway-side id for CARD/TAP_PAY records.
	GatewayChargeID string    `json:"gateway_charge_id,omitempty"`
	Metadata        Metadata  `json:"metadata,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Refundable reports whether refunds against this record are allowed. The
// metadata flag, when present and false, blocks refunds.
func (p *PaymentRecord) Refundable() bool {
	if p.Metadata.Kind == MetadataRefundPolicy && p.Metadata.RefundPolicy != nil {
		return p.Metadata.RefundPolicy.Refundable
	}
	return true
}

// Wallet holds the single mutable balance per customer. The balance always
// equals the BalanceAfter of the customer's most recent WalletTransaction;
// both are updated in the same database transaction.
type Wallet struct {
	ID         int64     `json:"id"`
	CustomerID int64     `json:"customer_id"`
	Balance    Money     `json:"balance"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// WalletTransactionType classifies a ledger entry.
type WalletTransactionType string

const (
	WalletPayment WalletTransactionType = "PAYMENT"
	WalletRefund  WalletTransactionType = "REFUND"
	WalletTopUp   WalletTransactionType = "TOPUP"
)

// WalletTransaction is an immutable ledger entry.
// Invariant: BalanceAfter = BalanceBefore + signed amount.
type WalletTransaction struct {
	ID              int64                 `json:"id"`
	WalletID        int64                 `json:"wallet_id"`
	CustomerID      int64                 `json:"customer_id"`
	OrderID         *int64                `json:"order_id,omitempty"`
	TransactionType WalletTransactionType `json:"transaction_type"`
	Amount          Money                 `json:"amount"`
	BalanceBefore   Money                 `json:"balance_before"`
	BalanceAfter    Money                 `json:"balance_after"`
	CreatedAt       time.Time             `json:"created_at"`
}

// PayOrderRequest settles an order's invoice.
type PayOrderRequest struct {
	PaymentMethod PaymentMethod `json:"payment_method" validate:"required,oneof=WALLET CARD TAP_PAY SPLIT"`
	// PaymentMethodID is the gateway payment method token for card payments.
	PaymentMethodID string `json:"payment_method_id,omitempty"`
	// Split portions, in mils. Required when payment_method is SPLIT.
	WalletPortionMils int64 `json:"wallet_portion_mils,omitempty"`
	CardPortionMils   int64 `json:"card_portion_mils,omitempty"`
}

// RefundRequest reverses part or all of a paid record.
type RefundRequest struct {
	OrderID      int64  `json:"order_id" validate:"required"`
	CustomerID   int64  `json:"customer_id" validate:"required"`
	AmountMils   int64  `json:"amount_mils" validate:"required,gt=0"`
	RefundReason string `json:"refund_reason" validate:"required"`
}

// TopUpRequest credits a customer wallet.
type TopUpRequest struct {
	AmountMils int64 `json:"amount_mils" validate:"required,gt=0"`
}

// PaymentResult is returned by direct payment operations.
type PaymentResult struct {
	Payments      []*PaymentRecord `json:"payments"`
	PaymentStatus PaymentStatus    `json:"payment_status"`
	// RedirectURL is set when the gateway requires customer action.
	RedirectURL string `json:"redirect_url,omitempty"`
}

// RefundResult is returned by the refund engine. For wallet refunds the new
// credit record and balance are set; for gateway refunds the external id is.
type RefundResult struct {
	PaymentID       int64  `json:"payment_id"`
	RefundPaymentID *int64 `json:"refund_payment_id,omitempty"`
	NewBalance      *Money `json:"new_balance,omitempty"`
	GatewayRefundID string `json:"gateway_refund_id,omitempty"`
	RefundedTotal   Money  `json:"refunded_total"`
}
