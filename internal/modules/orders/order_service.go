package orders

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"laundry-dispatch/internal/models"
)

// ServiceInterface defines the contract for the order service.
type ServiceInterface interface {
	CreateOrder(ctx context.Context, customerID int64, req models.CreateOrderRequest) (*models.Order, error)
	GetOrderDetails(ctx context.Context, orderID int64, actor models.Actor) (*models.Order, error)
	ListUserOrders(ctx context.Context, customerID int64, page, limit int) ([]*models.Order, int, error)
	ListAllOrders(ctx context.Context, page, limit int) ([]*models.Order, int, error)
	CancelOrder(ctx context.Context, orderID int64, actor models.Actor, reason string) error
	Transition(ctx context.Context, orderID int64, req models.TransitionRequest, actor models.Actor) (*models.Order, error)
	SetInvoiceTotal(ctx context.Context, orderID int64, req models.SetInvoiceRequest, actor models.Actor) (*models.Order, error)
	GetHistory(ctx context.Context, orderID int64) ([]*models.OrderHistory, error)
}

// Service implements the order service logic. All status writes go through
// the embedded Machine.
type Service struct {
	repo    RepositoryInterface
	machine *Machine
}

// NewService creates a new order service.
func NewService(repo RepositoryInterface, machine *Machine) *Service {
	return &Service{repo: repo, machine: machine}
}

// cancellableStatuses lists where a customer can still cancel: once a driver
// is en route the order has to go through the failure/admin path instead.
var cancellableStatuses = map[models.OrderStatus]bool{
	models.OrderPlaced:    true,
	models.OrderConfirmed: true,
	models.PickupAssigned: true,
}

// CreateOrder places a new booking.
func (s *Service) CreateOrder(ctx context.Context, customerID int64, req models.CreateOrderRequest) (*models.Order, error) {
	number := newOrderNumber()
	order, err := s.repo.Create(ctx, customerID, number, req.Notes)
	if err != nil {
		return nil, fmt.Errorf("service.CreateOrder: %w", err)
	}
	return order, nil
}

// GetOrderDetails retrieves a single order. Customers may only see their own
// orders; staff roles see everything.
func (s *Service) GetOrderDetails(ctx context.Context, orderID int64, actor models.Actor) (*models.Order, error) {
	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("service.GetOrderDetails: %w", err)
	}
	if actor.Role == models.RoleCustomer && order.CustomerID != actor.ID {
		return nil, models.ErrOrderNotFound // do not leak other customers' orders
	}
	return order, nil
}

// ListUserOrders retrieves all orders for a specific customer.
func (s *Service) ListUserOrders(ctx context.Context, customerID int64, page, limit int) ([]*models.Order, int, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	orders, total, err := s.repo.ListByCustomer(ctx, customerID, page, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("service.ListUserOrders: %w", err)
	}
	return orders, total, nil
}

// ListAllOrders lists all orders in the system.
func (s *Service) ListAllOrders(ctx context.Context, page, limit int) ([]*models.Order, int, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 50
	}
	return s.repo.ListAll(ctx, page, limit)
}

// CancelOrder cancels an order on behalf of its customer.
func (s *Service) CancelOrder(ctx context.Context, orderID int64, actor models.Actor, reason string) error {
	order, err := s.GetOrderDetails(ctx, orderID, actor)
	if err != nil {
		return err
	}
	if !cancellableStatuses[order.Status] {
		return models.ErrOrderNotCancellable
	}
	notes := "Order cancelled"
	if reason != "" {
		notes = "Order cancelled: " + reason
	}
	_, err = s.machine.Transition(ctx, orderID, models.OrderCancelled, notes, models.TransitionOptions{
		ShouldSendEmail: true,
		ActorID:         &actor.ID,
	})
	return err
}

// Transition applies an admin or facility-side status change.
func (s *Service) Transition(ctx context.Context, orderID int64, req models.TransitionRequest, actor models.Actor) (*models.Order, error) {
	return s.machine.Transition(ctx, orderID, req.Status, req.Notes, models.TransitionOptions{
		ShouldSendEmail: req.ShouldSendEmail,
		ActorID:         &actor.ID,
	})
}

// SetInvoiceTotal fixes the invoice amount once facility processing has
// priced the actual items. It can be set only once.
func (s *Service) SetInvoiceTotal(ctx context.Context, orderID int64, req models.SetInvoiceRequest, actor models.Actor) (*models.Order, error) {
	order, err := s.repo.SetInvoiceTotal(ctx, orderID, models.Money(req.InvoiceTotalMils))
	if err != nil {
		return nil, fmt.Errorf("service.SetInvoiceTotal: %w", err)
	}
	return order, nil
}

// GetHistory returns the order's audit trail.
func (s *Service) GetHistory(ctx context.Context, orderID int64) ([]*models.OrderHistory, error) {
	return s.repo.ListHistory(ctx, orderID)
}

// newOrderNumber derives a short human-facing order number.
func newOrderNumber() string {
	id := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))
	return "LD-" + id[:10]
}
