package models

import "time"

// OrderStatus is the order lifecycle state. All writes to Order.Status go
// through the orders status machine; see orders.CanTransition for the
// allowed edges.
type OrderStatus string

const (
	OrderPlaced         OrderStatus = "ORDER_PLACED"
	OrderConfirmed      OrderStatus = "CONFIRMED"
	PickupAssigned      OrderStatus = "PICKUP_ASSIGNED"
	PickupInProgress    OrderStatus = "PICKUP_IN_PROGRESS"
	PickupCompleted     OrderStatus = "PICKUP_COMPLETED"
	ReceivedAtFacility  OrderStatus = "RECEIVED_AT_FACILITY"
	ProcessingStarted   OrderStatus = "PROCESSING_STARTED"
	ProcessingCompleted OrderStatus = "PROCESSING_COMPLETED"
	QualityCheck        OrderStatus = "QUALITY_CHECK"
	ReadyForDelivery    OrderStatus = "READY_FOR_DELIVERY"
	DeliveryAssigned    OrderStatus = "DELIVERY_ASSIGNED"
	DeliveryInProgress  OrderStatus = "DELIVERY_IN_PROGRESS"
	Delivered           OrderStatus = "DELIVERED"

	// Side branches, reachable from multiple points in the forward path.
	PickupFailed   OrderStatus = "PICKUP_FAILED"
	DeliveryFailed OrderStatus = "DELIVERY_FAILED"
	DroppedOff     OrderStatus = "DROPPED_OFF"
	OrderCancelled OrderStatus = "CANCELLED"
	OrderRefunded  OrderStatus = "REFUNDED"
)

// PaymentStatus tracks money state on orders and payment records.
type PaymentStatus string

const (
	PaymentPending       PaymentStatus = "PENDING"
	PaymentPaid          PaymentStatus = "PAID"
	PaymentFailed        PaymentStatus = "FAILED"
	PaymentRefunded      PaymentStatus = "REFUNDED"
	PaymentPartialRefund PaymentStatus = "PARTIAL_REFUND"
)

// Order represents a laundry pickup/delivery order.
type Order struct {
	ID            int64         `json:"id"`
	OrderNumber   string        `json:"order_number"`
	CustomerID    int64         `json:"customer_id"`
	Status        OrderStatus   `json:"status"`
	PaymentStatus PaymentStatus `json:"payment_status"`
	// InvoiceTotal is nil until facility processing determines actual
	// items and pricing.
	InvoiceTotal *Money    `json:"invoice_total,omitempty"`
	Notes        string    `json:"notes,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// OrderHistory is an append-only audit entry, one row per accepted state
// transition. Never mutated or deleted.
type OrderHistory struct {
	ID          int64     `json:"id"`
	OrderID     int64     `json:"order_id"`
	Action      string    `json:"action"`
	Description string    `json:"description"`
	Metadata    Metadata  `json:"metadata,omitempty"`
	StaffID     *int64    `json:"staff_id,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// TransitionOptions carries optional behavior for a status transition.
type TransitionOptions struct {
	ShouldSendEmail bool
	ActorID         *int64
	Metadata        Metadata
}

// CreateOrderRequest is a customer booking.
type CreateOrderRequest struct {
	Notes string `json:"notes,omitempty"`
}

// TransitionRequest is an admin/facility request to move an order forward.
type TransitionRequest struct {
	Status          OrderStatus `json:"status" validate:"required"`
	Notes           string      `json:"notes,omitempty"`
	ShouldSendEmail bool        `json:"should_send_email,omitempty"`
}

// SetInvoiceRequest fixes the invoice total once processing has priced the items.
type SetInvoiceRequest struct {
	InvoiceTotalMils int64 `json:"invoice_total_mils" validate:"required,gt=0"`
}

// ErrorResponse is the JSON error body returned by all handlers.
type ErrorResponse struct {
	Message string `json:"message"`
}
