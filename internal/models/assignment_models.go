package models

import "time"

// AssignmentType is the leg of the order an assignment covers.
type AssignmentType string

const (
	AssignmentPickup   AssignmentType = "pickup"
	AssignmentDelivery AssignmentType = "delivery"
)

// AssignmentStatus is the lifecycle state of a single driver task.
type AssignmentStatus string

const (
	AssignmentAssigned    AssignmentStatus = "ASSIGNED"
	AssignmentInProgress  AssignmentStatus = "IN_PROGRESS"
	AssignmentCompleted   AssignmentStatus = "COMPLETED"
	AssignmentDroppedOff  AssignmentStatus = "DROPPED_OFF"
	AssignmentFailed      AssignmentStatus = "FAILED"
	AssignmentCancelled   AssignmentStatus = "CANCELLED"
	AssignmentRescheduled AssignmentStatus = "RESCHEDULED"
)

// IsTerminal reports whether the status ends the assignment. FAILED is
// terminal for the driver but may be revived through reassignment.
func (s AssignmentStatus) IsTerminal() bool {
	switch s {
	case AssignmentCompleted, AssignmentDroppedOff, AssignmentCancelled, AssignmentFailed:
		return true
	}
	return false
}

// DriverAssignment is one pickup or delivery leg of an order, owned by one
// driver at a time. At most one non-cancelled assignment exists per
// (order, type) pair.
type DriverAssignment struct {
	ID             int64            `json:"id"`
	OrderID        int64            `json:"order_id"`
	DriverID       int64            `json:"driver_id"`
	AssignmentType AssignmentType   `json:"assignment_type"`
	Status         AssignmentStatus `json:"status"`
	EstimatedTime  time.Time        `json:"estimated_time"`
	ActualTime     *time.Time       `json:"actual_time,omitempty"`
	CreatedAt      time.Time        `json:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at"`
}

// CreateAssignmentRequest dispatches a driver for one leg of an order.
type CreateAssignmentRequest struct {
	OrderID        int64          `json:"order_id" validate:"required"`
	DriverID       int64          `json:"driver_id" validate:"required"`
	AssignmentType AssignmentType `json:"assignment_type" validate:"required,oneof=pickup delivery"`
	EstimatedTime  time.Time      `json:"estimated_time" validate:"required"`
}

// AdvanceAssignmentRequest moves an assignment to a new status.
type AdvanceAssignmentRequest struct {
	Status AssignmentStatus `json:"status" validate:"required,oneof=IN_PROGRESS COMPLETED DROPPED_OFF FAILED"`
	Notes  string           `json:"notes,omitempty"`
}

// ReassignRequest moves a FAILED assignment onto a new driver.
type ReassignRequest struct {
	NewDriverID int64 `json:"new_driver_id" validate:"required"`
}
