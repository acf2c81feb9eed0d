package models

import "errors"

// Not-found errors, returned without opening a transaction.
var ErrNotFound = errors.New("requested resource not found")
var ErrOrderNotFound = errors.New("order not found")
var ErrAssignmentNotFound = errors.New("assignment not found")
var ErrPaymentNotFound = errors.New("payment record not found")
var ErrWalletNotFound = errors.New("wallet not found for customer")

// Precondition errors: role, ownership, sequencing and time-window checks that
// run before the critical section.
var ErrForbidden = errors.New("user does not have permission to access this resource")
var ErrAccessDenied = errors.New("assignment belongs to a different driver")
var ErrDriverUnavailable = errors.New("driver is inactive or not registered as a driver")
var ErrSequenceViolation = errors.New("delivery cannot be scheduled before pickup is completed")
var ErrTimeWindowExpired = errors.New("outside the allowed start window for this task, please contact support")
var ErrNotRefundable = errors.New("payment record is not refundable")
var ErrInvalidCredentials = errors.New("invalid credentials")

// Conflict errors: an invariant would be violated given the freshest state.
// Only detectable inside a transaction, which is then rolled back entirely.
var ErrInvalidTransition = errors.New("order status transition not allowed")
var ErrInvalidAssignmentTransition = errors.New("assignment status transition not allowed")
var ErrDuplicateAssignment = errors.New("an active assignment of this type already exists for the order")
var ErrActiveAssignmentExists = errors.New("another active assignment exists for this order and type")
var ErrRefundExceedsAvailable = errors.New("refund amount exceeds the remaining refundable amount")
var ErrInsufficientFunds = errors.New("wallet balance is insufficient")
var ErrSerialization = errors.New("concurrent update detected, please retry")
var ErrOrderNotCancellable = errors.New("order can no longer be cancelled")
var ErrAssignmentNotCancellable = errors.New("assignment can no longer be cancelled")
var ErrSplitMismatch = errors.New("split payment portions do not sum to the invoice total")
var ErrInvoiceAlreadySet = errors.New("invoice total has already been set for this order")
var ErrInvoiceNotSet = errors.New("invoice total has not been set for this order")
var ErrOrderAlreadyPaid = errors.New("order has already been paid")

// External errors: the payment gateway failed or returned an error payload.
// Never retried automatically; the gateway message is attached for operators.
var ErrGatewayFailure = errors.New("payment gateway request failed")
