package models

import (
	"encoding/json"
	"fmt"
)

// MetadataKind tags the known metadata shapes stored on PaymentRecord and
// OrderHistory rows. Unknown legacy blobs fall back to MetadataOpaque.
type MetadataKind string

const (
	MetadataNone         MetadataKind = ""
	MetadataRefund       MetadataKind = "refund"
	MetadataSplitPayment MetadataKind = "split_payment"
	MetadataAssignment   MetadataKind = "assignment"
	MetadataRefundPolicy MetadataKind = "refund_policy"
	MetadataOpaque       MetadataKind = "opaque"
)

// RefundMetadata links a wallet credit record back to the payment it reverses.
type RefundMetadata struct {
	OriginalPaymentID   int64  `json:"original_payment_id"`
	WalletTransactionID int64  `json:"wallet_transaction_id,omitempty"`
	Reason              string `json:"reason,omitempty"`
}

// SplitPaymentMetadata links the two legs of a split payment.
type SplitPaymentMetadata struct {
	CounterpartMethod PaymentMethod `json:"counterpart_method"`
	WalletPortion     Money         `json:"wallet_portion"`
	CardPortion       Money         `json:"card_portion"`
}

// AssignmentMetadata records which assignment drove a status transition.
type AssignmentMetadata struct {
	AssignmentID   int64          `json:"assignment_id"`
	DriverID       int64          `json:"driver_id"`
	AssignmentType AssignmentType `json:"assignment_type"`
}

// RefundPolicyMetadata carries the refundable flag on a payment record.
type RefundPolicyMetadata struct {
	Refundable bool `json:"refundable"`
}

// Metadata is a small tagged union of the known shapes, validated at write
// time. Exactly the field matching Kind may be set.
type Metadata struct {
	Kind         MetadataKind          `json:"kind,omitempty"`
	Refund       *RefundMetadata       `json:"refund,omitempty"`
	SplitPayment *SplitPaymentMetadata `json:"split_payment,omitempty"`
	Assignment   *AssignmentMetadata   `json:"assignment,omitempty"`
	RefundPolicy *RefundPolicyMetadata `json:"refund_policy,omitempty"`
	// Opaque holds genuinely unstructured legacy data.
	Opaque json.RawMessage `json:"opaque,omitempty"`
}

// Validate checks that the payload matches the declared kind.
func (m Metadata) Validate() error {
	switch m.Kind {
	case MetadataNone:
		return nil
	case MetadataRefund:
		if m.Refund == nil {
			return fmt.Errorf("metadata kind %q without refund payload", m.Kind)
		}
	case MetadataSplitPayment:
		if m.SplitPayment == nil {
			return fmt.Errorf("metadata kind %q without split_payment payload", m.Kind)
		}
	case MetadataAssignment:
		if m.Assignment == nil {
			return fmt.Errorf("metadata kind %q without assignment payload", m.Kind)
		}
	case MetadataRefundPolicy:
		if m.RefundPolicy == nil {
			return fmt.Errorf("metadata kind %q without refund_policy payload", m.Kind)
		}
	case MetadataOpaque:
		if len(m.Opaque) == 0 {
			return fmt.Errorf("metadata kind %q without opaque payload", m.Kind)
		}
	default:
		return fmt.Errorf("unknown metadata kind %q", m.Kind)
	}
	return nil
}

// IsZero reports whether no metadata is attached.
func (m Metadata) IsZero() bool {
	return m.Kind == MetadataNone && m.Refund == nil && m.SplitPayment == nil &&
		m.Assignment == nil && m.RefundPolicy == nil && len(m.Opaque) == 0
}
