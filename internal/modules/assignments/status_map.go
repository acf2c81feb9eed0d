package assignments

import "laundry-dispatch/internal/models"

// statusKey identifies one (leg, assignment status) pair.
type statusKey struct {
	Type   models.AssignmentType
	Status models.AssignmentStatus
}

// orderStatusFor maps an accepted assignment transition onto the single
// order status it implies. Creation, advancement and reassignment all go
// through this table so the mapping cannot drift between call sites.
var orderStatusFor = map[statusKey]models.OrderStatus{
	{models.AssignmentPickup, models.AssignmentAssigned}:     models.PickupAssigned,
	{models.AssignmentPickup, models.AssignmentInProgress}:   models.PickupInProgress,
	{models.AssignmentPickup, models.AssignmentCompleted}:    models.PickupCompleted,
	{models.AssignmentPickup, models.AssignmentFailed}:       models.PickupFailed,
	{models.AssignmentDelivery, models.AssignmentAssigned}:   models.DeliveryAssigned,
	{models.AssignmentDelivery, models.AssignmentInProgress}: models.DeliveryInProgress,
	{models.AssignmentDelivery, models.AssignmentCompleted}:  models.Delivered,
	{models.AssignmentDelivery, models.AssignmentDroppedOff}: models.DroppedOff,
	{models.AssignmentDelivery, models.AssignmentFailed}:     models.DeliveryFailed,
}

// OrderStatusFor returns the order status implied by an assignment reaching
// newStatus, if any. RESCHEDULED and CANCELLED have no forward mapping.
func OrderStatusFor(t models.AssignmentType, newStatus models.AssignmentStatus) (models.OrderStatus, bool) {
	s, ok := orderStatusFor[statusKey{t, newStatus}]
	return s, ok
}

// assignmentTransitions is the allowed lifecycle of a single assignment.
// DROPPED_OFF is only reachable from COMPLETED: delivery completion and the
// physical drop-off confirmation are two separate phases.
var assignmentTransitions = map[models.AssignmentStatus][]models.AssignmentStatus{
	models.AssignmentAssigned:    {models.AssignmentInProgress, models.AssignmentFailed, models.AssignmentCancelled, models.AssignmentRescheduled},
	models.AssignmentRescheduled: {models.AssignmentInProgress, models.AssignmentFailed, models.AssignmentCancelled},
	models.AssignmentInProgress:  {models.AssignmentCompleted, models.AssignmentFailed, models.AssignmentCancelled},
	models.AssignmentCompleted:   {models.AssignmentDroppedOff},
	models.AssignmentDroppedOff:  {},
	models.AssignmentFailed:      {}, // revived only through reassignment
	models.AssignmentCancelled:   {},
}

// driverAdvanceTargets are the statuses a driver may report through Advance.
// CANCELLED and RESCHEDULED are admin operations with their own preconditions
// and never arrive through the driver path.
var driverAdvanceTargets = map[models.AssignmentStatus]bool{
	models.AssignmentInProgress: true,
	models.AssignmentCompleted:  true,
	models.AssignmentDroppedOff: true,
	models.AssignmentFailed:     true,
}

// canAdvance reports whether from -> to is a legal assignment transition.
func canAdvance(from, to models.AssignmentStatus) bool {
	for _, s := range assignmentTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// reversionFor gives, per assignment type, the order status set at creation
// and the status the order reverts to when that assignment is cancelled
// while the order still sits on the creation status.
var reversionFor = map[models.AssignmentType]struct {
	Created  models.OrderStatus
	RevertTo models.OrderStatus
}{
	models.AssignmentPickup:   {models.PickupAssigned, models.OrderConfirmed},
	models.AssignmentDelivery: {models.DeliveryAssigned, models.ReadyForDelivery},
}

// nonCancellableOrderStatuses lists, per assignment type, the order statuses
// past which cancelling that leg no longer makes sense: the laundry is
// already at (or beyond) the facility for a pickup, or already handed over
// for a delivery.
var nonCancellableOrderStatuses = map[models.AssignmentType]map[models.OrderStatus]bool{
	models.AssignmentPickup: {
		models.PickupCompleted:     true,
		models.ReceivedAtFacility:  true,
		models.ProcessingStarted:   true,
		models.ProcessingCompleted: true,
		models.QualityCheck:        true,
		models.ReadyForDelivery:    true,
		models.DeliveryAssigned:    true,
		models.DeliveryInProgress:  true,
		models.Delivered:           true,
		models.DroppedOff:          true,
	},
	models.AssignmentDelivery: {
		models.Delivered:     true,
		models.DroppedOff:    true,
		models.OrderRefunded: true,
	},
}
