package assignments

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"laundry-dispatch/internal/models"
)

// OrderStatusMachine is the slice of the orders module this service needs:
// every order status change is requested through it, never written directly.
type OrderStatusMachine interface {
	Transition(ctx context.Context, orderID int64, requested models.OrderStatus, notes string, opts models.TransitionOptions) (*models.Order, error)
}

// UserDirectory answers driver availability questions.
type UserDirectory interface {
	IsActiveDriver(ctx context.Context, driverID int64) (bool, error)
}

// WindowConfig bounds when a driver may start a task relative to its
// estimated time. Production defaults are -30m / +2h; test and staging
// environments configure wider windows.
type WindowConfig struct {
	EarlyStart time.Duration
	LateStart  time.Duration
}

// DefaultWindow returns the production start window.
func DefaultWindow() WindowConfig {
	return WindowConfig{EarlyStart: 30 * time.Minute, LateStart: 2 * time.Hour}
}

// ServiceInterface defines the contract for the assignment service.
type ServiceInterface interface {
	Create(ctx context.Context, req models.CreateAssignmentRequest, actor models.Actor) (*models.DriverAssignment, error)
	Advance(ctx context.Context, assignmentID int64, req models.AdvanceAssignmentRequest, actor models.Actor) (*models.DriverAssignment, error)
	Cancel(ctx context.Context, assignmentID int64, actor models.Actor, reason string) error
	Reassign(ctx context.Context, assignmentID int64, req models.ReassignRequest, actor models.Actor) (*models.DriverAssignment, error)
	Get(ctx context.Context, assignmentID int64) (*models.DriverAssignment, error)
	ListByDriver(ctx context.Context, driverID int64, page, limit int) ([]*models.DriverAssignment, int, error)
	ListByOrder(ctx context.Context, orderID int64) ([]*models.DriverAssignment, error)
}

// Service implements the driver assignment lifecycle.
type Service struct {
	repo    RepositoryInterface
	machine OrderStatusMachine
	users   UserDirectory
	window  WindowConfig
	now     func() time.Time
}

// NewService creates a new assignment service.
func NewService(repo RepositoryInterface, machine OrderStatusMachine, users UserDirectory, window WindowConfig) *Service {
	return &Service{
		repo:    repo,
		machine: machine,
		users:   users,
		window:  window,
		now:     time.Now,
	}
}

// Create dispatches a driver for one leg of an order and moves the order to
// the matching *_ASSIGNED status.
func (s *Service) Create(ctx context.Context, req models.CreateAssignmentRequest, actor models.Actor) (*models.DriverAssignment, error) {
	active, err := s.users.IsActiveDriver(ctx, req.DriverID)
	if err != nil {
		return nil, fmt.Errorf("service.Create: %w", err)
	}
	if !active {
		return nil, models.ErrDriverUnavailable
	}

	if existing, err := s.repo.FindNonCancelled(ctx, req.OrderID, req.AssignmentType); err == nil && existing != nil {
		return nil, models.ErrDuplicateAssignment
	} else if err != nil && !errors.Is(err, models.ErrAssignmentNotFound) {
		return nil, fmt.Errorf("service.Create: %w", err)
	}

	if req.AssignmentType == models.AssignmentDelivery {
		done, err := s.repo.HasCompletedPickup(ctx, req.OrderID)
		if err != nil {
			return nil, fmt.Errorf("service.Create: %w", err)
		}
		if !done {
			return nil, models.ErrSequenceViolation
		}
	}

	created, err := s.repo.Create(ctx, &models.DriverAssignment{
		OrderID:        req.OrderID,
		DriverID:       req.DriverID,
		AssignmentType: req.AssignmentType,
		EstimatedTime:  req.EstimatedTime,
	})
	if err != nil {
		return nil, fmt.Errorf("service.Create: %w", err)
	}

	if err := s.requestOrderStatus(ctx, created, models.AssignmentAssigned, "Driver assigned", actor, false); err != nil {
		// The order refused the transition, so the fresh assignment cannot
		// stand; cancel it before surfacing the error.
		if cErr := s.repo.UpdateStatus(ctx, created.ID, models.AssignmentAssigned, models.AssignmentCancelled, nil); cErr != nil {
			log.Printf("assignments: rollback of assignment %d failed: %v", created.ID, cErr)
		}
		return nil, err
	}
	return created, nil
}

// Advance moves an assignment forward on behalf of its driver.
func (s *Service) Advance(ctx context.Context, assignmentID int64, req models.AdvanceAssignmentRequest, actor models.Actor) (*models.DriverAssignment, error) {
	a, err := s.repo.FindByID(ctx, assignmentID)
	if err != nil {
		return nil, err
	}
	if a.DriverID != actor.ID {
		return nil, models.ErrAccessDenied
	}
	if !driverAdvanceTargets[req.Status] {
		return nil, fmt.Errorf("%w: %s is not a driver-reported status", models.ErrInvalidAssignmentTransition, req.Status)
	}
	if req.Status == models.AssignmentDroppedOff && a.AssignmentType != models.AssignmentDelivery {
		return nil, fmt.Errorf("%w: drop-off confirmation only applies to the delivery leg", models.ErrInvalidAssignmentTransition)
	}
	if !canAdvance(a.Status, req.Status) {
		return nil, fmt.Errorf("%w: %s -> %s", models.ErrInvalidAssignmentTransition, a.Status, req.Status)
	}

	if req.Status == models.AssignmentInProgress {
		if err := s.checkStartWindow(a.EstimatedTime); err != nil {
			return nil, err
		}
	}

	var actualTime *time.Time
	if req.Status == models.AssignmentCompleted {
		t := s.now()
		actualTime = &t
	}
	if err := s.repo.UpdateStatus(ctx, assignmentID, a.Status, req.Status, actualTime); err != nil {
		return nil, err
	}
	a.Status = req.Status
	if actualTime != nil {
		a.ActualTime = actualTime
	}

	notes := req.Notes
	if notes == "" {
		notes = fmt.Sprintf("%s %s by driver", a.AssignmentType, req.Status)
	}
	sendEmail := req.Status == models.AssignmentCompleted || req.Status == models.AssignmentFailed
	if err := s.requestOrderStatus(ctx, a, req.Status, notes, actor, sendEmail); err != nil {
		return nil, err
	}
	return a, nil
}

// checkStartWindow enforces the earliest/latest allowed start around the
// estimated time. Outside the window the driver is told to contact support;
// no automatic failure is recorded, a human decides.
func (s *Service) checkStartWindow(estimated time.Time) error {
	now := s.now()
	if now.Before(estimated.Add(-s.window.EarlyStart)) || now.After(estimated.Add(s.window.LateStart)) {
		return models.ErrTimeWindowExpired
	}
	return nil
}

// Cancel cancels an assignment, reverting the order's status only when the
// order still sits exactly on the status this assignment's creation set.
func (s *Service) Cancel(ctx context.Context, assignmentID int64, actor models.Actor, reason string) error {
	a, err := s.repo.FindByID(ctx, assignmentID)
	if err != nil {
		return err
	}
	if a.Status == models.AssignmentCompleted || a.Status == models.AssignmentDroppedOff || a.Status == models.AssignmentCancelled {
		return models.ErrAssignmentNotCancellable
	}

	orderStatus, err := s.repo.GetOrderStatus(ctx, a.OrderID)
	if err != nil {
		return err
	}
	if nonCancellableOrderStatuses[a.AssignmentType][orderStatus] {
		return models.ErrAssignmentNotCancellable
	}

	if err := s.repo.UpdateStatus(ctx, assignmentID, a.Status, models.AssignmentCancelled, nil); err != nil {
		return err
	}

	// Revert only when this assignment's creation status is still current;
	// if the order has moved on, cancelling is a safe no-op for the order.
	rev := reversionFor[a.AssignmentType]
	if orderStatus == rev.Created {
		notes := "Assignment cancelled"
		if reason != "" {
			notes = "Assignment cancelled: " + reason
		}
		if _, err := s.machine.Transition(ctx, a.OrderID, rev.RevertTo, notes, models.TransitionOptions{
			ActorID:  &actor.ID,
			Metadata: assignmentMetadata(a),
		}); err != nil && !errors.Is(err, models.ErrInvalidTransition) {
			return err
		}
	}
	return nil
}

// Reassign moves a FAILED assignment onto a new driver and re-issues the
// same order transition as creation.
func (s *Service) Reassign(ctx context.Context, assignmentID int64, req models.ReassignRequest, actor models.Actor) (*models.DriverAssignment, error) {
	a, err := s.repo.FindByID(ctx, assignmentID)
	if err != nil {
		return nil, err
	}
	if a.Status != models.AssignmentFailed {
		return nil, fmt.Errorf("%w: reassignment requires FAILED status, have %s", models.ErrInvalidAssignmentTransition, a.Status)
	}

	active, err := s.users.IsActiveDriver(ctx, req.NewDriverID)
	if err != nil {
		return nil, fmt.Errorf("service.Reassign: %w", err)
	}
	if !active {
		return nil, models.ErrDriverUnavailable
	}

	otherActive, err := s.repo.HasActiveOther(ctx, a.OrderID, a.AssignmentType, a.ID)
	if err != nil {
		return nil, fmt.Errorf("service.Reassign: %w", err)
	}
	if otherActive {
		return nil, models.ErrActiveAssignmentExists
	}

	updated, err := s.repo.Reassign(ctx, assignmentID, req.NewDriverID)
	if err != nil {
		return nil, err
	}

	if err := s.requestOrderStatus(ctx, updated, models.AssignmentAssigned, "Driver reassigned", actor, false); err != nil {
		return nil, err
	}
	return updated, nil
}

// Get retrieves a single assignment.
func (s *Service) Get(ctx context.Context, assignmentID int64) (*models.DriverAssignment, error) {
	return s.repo.FindByID(ctx, assignmentID)
}

// ListByDriver retrieves a driver's task list.
func (s *Service) ListByDriver(ctx context.Context, driverID int64, page, limit int) ([]*models.DriverAssignment, int, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	return s.repo.ListByDriver(ctx, driverID, page, limit)
}

// ListByOrder retrieves all assignments for an order.
func (s *Service) ListByOrder(ctx context.Context, orderID int64) ([]*models.DriverAssignment, error) {
	return s.repo.ListByOrder(ctx, orderID)
}

// requestOrderStatus resolves the assignment transition through the shared
// lookup table and forwards it to the order status machine.
func (s *Service) requestOrderStatus(ctx context.Context, a *models.DriverAssignment, newStatus models.AssignmentStatus, notes string, actor models.Actor, sendEmail bool) error {
	target, ok := OrderStatusFor(a.AssignmentType, newStatus)
	if !ok {
		return nil
	}
	_, err := s.machine.Transition(ctx, a.OrderID, target, notes, models.TransitionOptions{
		ShouldSendEmail: sendEmail,
		ActorID:         &actor.ID,
		Metadata:        assignmentMetadata(a),
	})
	return err
}

func assignmentMetadata(a *models.DriverAssignment) models.Metadata {
	return models.Metadata{
		Kind: models.MetadataAssignment,
		Assignment: &models.AssignmentMetadata{
			AssignmentID:   a.ID,
			DriverID:       a.DriverID,
			AssignmentType: a.AssignmentType,
		},
	}
}
