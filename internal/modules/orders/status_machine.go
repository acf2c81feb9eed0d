package orders

import (
	"context"
	"fmt"
	"log"

	"laundry-dispatch/internal/models"
	"laundry-dispatch/pkg/notify"
)

// statusTransitions is the explicit adjacency table for the order lifecycle.
// Any (from, to) pair not listed here is rejected. Side branches (failure,
// cancellation, drop-off) are reachable from multiple points; FAILED states
// re-enter the forward path through driver reassignment.
var statusTransitions = map[models.OrderStatus][]models.OrderStatus{
	models.OrderPlaced:         {models.OrderConfirmed, models.OrderCancelled},
	models.OrderConfirmed:      {models.PickupAssigned, models.OrderCancelled},
	models.PickupAssigned:      {models.PickupInProgress, models.PickupFailed, models.OrderConfirmed, models.OrderCancelled},
	models.PickupInProgress:    {models.PickupCompleted, models.PickupFailed},
	models.PickupCompleted:     {models.ReceivedAtFacility},
	models.ReceivedAtFacility:  {models.ProcessingStarted},
	models.ProcessingStarted:   {models.ProcessingCompleted},
	models.ProcessingCompleted: {models.QualityCheck},
	models.QualityCheck:        {models.ReadyForDelivery, models.ProcessingStarted},
	models.ReadyForDelivery:    {models.DeliveryAssigned},
	models.DeliveryAssigned:    {models.DeliveryInProgress, models.DeliveryFailed, models.ReadyForDelivery},
	models.DeliveryInProgress:  {models.Delivered, models.DeliveryFailed},
	models.Delivered:           {models.DroppedOff, models.OrderRefunded},
	models.PickupFailed:        {models.PickupAssigned, models.OrderCancelled},
	models.DeliveryFailed:      {models.DeliveryAssigned, models.OrderCancelled},
	models.DroppedOff:          {models.OrderRefunded},
	models.OrderCancelled:      {models.OrderRefunded},
	models.OrderRefunded:       {},
}

// CanTransition reports whether from -> to is an allowed edge.
func CanTransition(from, to models.OrderStatus) bool {
	allowed, ok := statusTransitions[from]
	if !ok {
		return false
	}
	for _, s := range allowed {
		if s == to {
			return true
		}
	}
	return false
}

// Machine validates and applies order status transitions. It is the single
// sanctioned writer of Order.Status; every other component requests
// transitions through it, which is what keeps the audit log complete.
type Machine struct {
	repo RepositoryInterface
	sink notify.Sink
}

// NewMachine creates the status machine.
func NewMachine(repo RepositoryInterface, sink notify.Sink) *Machine {
	return &Machine{repo: repo, sink: sink}
}

// Transition moves the order to requested if the adjacency table allows it
// from the order's current status. The status update and the OrderHistory
// row commit in the same transaction; the notification sink is invoked after
// commit and its failures are logged, never propagated.
func (m *Machine) Transition(ctx context.Context, orderID int64, requested models.OrderStatus, notes string, opts models.TransitionOptions) (*models.Order, error) {
	if _, known := statusTransitions[requested]; !known {
		return nil, fmt.Errorf("%w: unknown status %q", models.ErrInvalidTransition, requested)
	}
	if err := opts.Metadata.Validate(); err != nil {
		return nil, fmt.Errorf("orders.Transition: %w", err)
	}

	entry := models.OrderHistory{
		OrderID:     orderID,
		Action:      string(requested),
		Description: notes,
		Metadata:    opts.Metadata,
		StaffID:     opts.ActorID,
	}
	order, err := m.repo.ApplyTransition(ctx, orderID, requested, entry)
	if err != nil {
		return nil, err
	}

	if m.sink != nil {
		if err := m.sink.Notify(ctx, order, notify.Event{
			Action:    string(requested),
			Notes:     notes,
			SendEmail: opts.ShouldSendEmail,
		}); err != nil {
			log.Printf("orders: notification for order %d (%s) failed: %v", orderID, requested, err)
		}
	}
	return order, nil
}
