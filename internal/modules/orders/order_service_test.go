package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"laundry-dispatch/internal/models"
	"laundry-dispatch/pkg/notify"
)

// fakeOrderRepo keeps orders and their audit log in memory. ApplyTransition
// enforces the adjacency table under a lock, mirroring the row-lock the real
// repository takes.
type fakeOrderRepo struct {
	mu      sync.Mutex
	nextID  int64
	orders  map[int64]*models.Order
	history map[int64][]*models.OrderHistory
}

func newFakeOrderRepo() *fakeOrderRepo {
	return &fakeOrderRepo{
		orders:  make(map[int64]*models.Order),
		history: make(map[int64][]*models.OrderHistory),
	}
}

func (f *fakeOrderRepo) seed(customerID int64, status models.OrderStatus) *models.Order {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	o := &models.Order{
		ID:            f.nextID,
		OrderNumber:   fmt.Sprintf("LD-%010d", f.nextID),
		CustomerID:    customerID,
		Status:        status,
		PaymentStatus: models.PaymentPending,
	}
	f.orders[o.ID] = o
	return o
}

func (f *fakeOrderRepo) Create(ctx context.Context, customerID int64, orderNumber, notes string) (*models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	o := &models.Order{
		ID:            f.nextID,
		OrderNumber:   orderNumber,
		CustomerID:    customerID,
		Status:        models.OrderPlaced,
		PaymentStatus: models.PaymentPending,
		Notes:         notes,
	}
	f.orders[o.ID] = o
	f.history[o.ID] = append(f.history[o.ID], &models.OrderHistory{
		OrderID: o.ID,
		Action:  string(models.OrderPlaced),
	})
	cp := *o
	return &cp, nil
}

func (f *fakeOrderRepo) FindByID(ctx context.Context, orderID int64) (*models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[orderID]
	if !ok {
		return nil, models.ErrOrderNotFound
	}
	cp := *o
	return &cp, nil
}

func (f *fakeOrderRepo) ListByCustomer(ctx context.Context, customerID int64, page, limit int) ([]*models.Order, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.Order
	for _, o := range f.orders {
		if o.CustomerID == customerID {
			cp := *o
			out = append(out, &cp)
		}
	}
	return out, len(out), nil
}

func (f *fakeOrderRepo) ListAll(ctx context.Context, page, limit int) ([]*models.Order, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.Order
	for _, o := range f.orders {
		cp := *o
		out = append(out, &cp)
	}
	return out, len(out), nil
}

func (f *fakeOrderRepo) ApplyTransition(ctx context.Context, orderID int64, requested models.OrderStatus, entry models.OrderHistory) (*models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[orderID]
	if !ok {
		return nil, models.ErrOrderNotFound
	}
	if !CanTransition(o.Status, requested) {
		return nil, fmt.Errorf("%w: %s -> %s", models.ErrInvalidTransition, o.Status, requested)
	}
	o.Status = requested
	e := entry
	f.history[orderID] = append(f.history[orderID], &e)
	cp := *o
	return &cp, nil
}

func (f *fakeOrderRepo) SetInvoiceTotal(ctx context.Context, orderID int64, total models.Money) (*models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[orderID]
	if !ok {
		return nil, models.ErrOrderNotFound
	}
	if o.InvoiceTotal != nil {
		return nil, models.ErrInvoiceAlreadySet
	}
	o.InvoiceTotal = &total
	cp := *o
	return &cp, nil
}

func (f *fakeOrderRepo) ListHistory(ctx context.Context, orderID int64) ([]*models.OrderHistory, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*models.OrderHistory(nil), f.history[orderID]...), nil
}

// recordingSink captures notifications and can be told to fail.
type recordingSink struct {
	mu     sync.Mutex
	events []notify.Event
	err    error
}

func (s *recordingSink) Notify(ctx context.Context, order *models.Order, ev notify.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.events = append(s.events, ev)
	return nil
}

func TestCreateOrderWritesPlacedHistory(t *testing.T) {
	fr := newFakeOrderRepo()
	svc := NewService(fr, NewMachine(fr, notify.NoopSink{}))

	order, err := svc.CreateOrder(context.Background(), 7, models.CreateOrderRequest{Notes: "ring the bell"})
	if err != nil {
		t.Fatalf("CreateOrder error: %v", err)
	}
	if order.Status != models.OrderPlaced {
		t.Errorf("Status = %s; want %s", order.Status, models.OrderPlaced)
	}
	if !strings.HasPrefix(order.OrderNumber, "LD-") {
		t.Errorf("OrderNumber = %q; want LD- prefix", order.OrderNumber)
	}
	hist, _ := fr.ListHistory(context.Background(), order.ID)
	if len(hist) != 1 || hist[0].Action != string(models.OrderPlaced) {
		t.Errorf("history = %+v; want exactly one ORDER_PLACED entry", hist)
	}
}

func TestTransitionAppendsExactlyOneHistoryRow(t *testing.T) {
	fr := newFakeOrderRepo()
	m := NewMachine(fr, notify.NoopSink{})
	o := fr.seed(1, models.OrderPlaced)

	if _, err := m.Transition(context.Background(), o.ID, models.OrderConfirmed, "confirmed", models.TransitionOptions{}); err != nil {
		t.Fatalf("Transition error: %v", err)
	}
	hist, _ := fr.ListHistory(context.Background(), o.ID)
	if len(hist) != 1 {
		t.Fatalf("history length = %d; want 1", len(hist))
	}
	if hist[0].Action != string(models.OrderConfirmed) {
		t.Errorf("history action = %s; want %s", hist[0].Action, models.OrderConfirmed)
	}

	// A rejected transition must leave the log untouched.
	if _, err := m.Transition(context.Background(), o.ID, models.Delivered, "", models.TransitionOptions{}); !errors.Is(err, models.ErrInvalidTransition) {
		t.Fatalf("Transition error = %v; want ErrInvalidTransition", err)
	}
	hist, _ = fr.ListHistory(context.Background(), o.ID)
	if len(hist) != 1 {
		t.Errorf("history length after rejection = %d; want 1", len(hist))
	}
}

func TestTransitionRejectsUnknownStatus(t *testing.T) {
	fr := newFakeOrderRepo()
	m := NewMachine(fr, notify.NoopSink{})
	o := fr.seed(1, models.OrderPlaced)

	_, err := m.Transition(context.Background(), o.ID, models.OrderStatus("SPARKLING"), "", models.TransitionOptions{})
	if !errors.Is(err, models.ErrInvalidTransition) {
		t.Errorf("Transition error = %v; want ErrInvalidTransition", err)
	}
}

func TestTransitionSurvivesSinkFailure(t *testing.T) {
	fr := newFakeOrderRepo()
	sink := &recordingSink{err: errors.New("smtp down")}
	m := NewMachine(fr, sink)
	o := fr.seed(1, models.OrderPlaced)

	order, err := m.Transition(context.Background(), o.ID, models.OrderConfirmed, "", models.TransitionOptions{ShouldSendEmail: true})
	if err != nil {
		t.Fatalf("Transition error = %v; sink failures must not propagate", err)
	}
	if order.Status != models.OrderConfirmed {
		t.Errorf("Status = %s; want %s", order.Status, models.OrderConfirmed)
	}
}

func TestTransitionNotifiesAfterCommit(t *testing.T) {
	fr := newFakeOrderRepo()
	sink := &recordingSink{}
	m := NewMachine(fr, sink)
	o := fr.seed(1, models.OrderPlaced)

	if _, err := m.Transition(context.Background(), o.ID, models.OrderConfirmed, "ok", models.TransitionOptions{ShouldSendEmail: true}); err != nil {
		t.Fatalf("Transition error: %v", err)
	}
	if len(sink.events) != 1 {
		t.Fatalf("sink events = %d; want 1", len(sink.events))
	}
	if !sink.events[0].SendEmail || sink.events[0].Action != string(models.OrderConfirmed) {
		t.Errorf("event = %+v; want SendEmail with CONFIRMED action", sink.events[0])
	}

	// A rejected transition must not notify.
	if _, err := m.Transition(context.Background(), o.ID, models.Delivered, "", models.TransitionOptions{ShouldSendEmail: true}); err == nil {
		t.Fatal("expected rejection")
	}
	if len(sink.events) != 1 {
		t.Errorf("sink events after rejection = %d; want 1", len(sink.events))
	}
}

func TestTransitionRejectsMismatchedMetadata(t *testing.T) {
	fr := newFakeOrderRepo()
	m := NewMachine(fr, notify.NoopSink{})
	o := fr.seed(1, models.OrderPlaced)

	_, err := m.Transition(context.Background(), o.ID, models.OrderConfirmed, "", models.TransitionOptions{
		Metadata: models.Metadata{Kind: models.MetadataRefund}, // payload missing
	})
	if err == nil {
		t.Fatal("expected metadata validation error")
	}
	hist, _ := fr.ListHistory(context.Background(), o.ID)
	if len(hist) != 0 {
		t.Errorf("history length = %d; want 0", len(hist))
	}
}

func TestGetOrderDetailsHidesOtherCustomersOrders(t *testing.T) {
	fr := newFakeOrderRepo()
	svc := NewService(fr, NewMachine(fr, notify.NoopSink{}))
	o := fr.seed(1, models.OrderPlaced)

	if _, err := svc.GetOrderDetails(context.Background(), o.ID, models.Actor{ID: 2, Role: models.RoleCustomer}); !errors.Is(err, models.ErrOrderNotFound) {
		t.Errorf("foreign customer error = %v; want ErrOrderNotFound", err)
	}
	if _, err := svc.GetOrderDetails(context.Background(), o.ID, models.Actor{ID: 1, Role: models.RoleCustomer}); err != nil {
		t.Errorf("owner error = %v; want nil", err)
	}
	if _, err := svc.GetOrderDetails(context.Background(), o.ID, models.Actor{ID: 99, Role: models.RoleAdmin}); err != nil {
		t.Errorf("admin error = %v; want nil", err)
	}
}

func TestCancelOrderOnlyBeforePickupStarts(t *testing.T) {
	cases := []struct {
		status  models.OrderStatus
		wantErr error
	}{
		{models.OrderPlaced, nil},
		{models.OrderConfirmed, nil},
		{models.PickupAssigned, nil},
		{models.PickupInProgress, models.ErrOrderNotCancellable},
		{models.ReceivedAtFacility, models.ErrOrderNotCancellable},
		{models.Delivered, models.ErrOrderNotCancellable},
	}
	for _, tc := range cases {
		fr := newFakeOrderRepo()
		svc := NewService(fr, NewMachine(fr, notify.NoopSink{}))
		o := fr.seed(1, tc.status)

		err := svc.CancelOrder(context.Background(), o.ID, models.Actor{ID: 1, Role: models.RoleCustomer}, "changed plans")
		if tc.wantErr == nil {
			if err != nil {
				t.Errorf("CancelOrder from %s error = %v; want nil", tc.status, err)
				continue
			}
			got, _ := fr.FindByID(context.Background(), o.ID)
			if got.Status != models.OrderCancelled {
				t.Errorf("status after cancel from %s = %s; want CANCELLED", tc.status, got.Status)
			}
		} else if !errors.Is(err, tc.wantErr) {
			t.Errorf("CancelOrder from %s error = %v; want %v", tc.status, err, tc.wantErr)
		}
	}
}

func TestSetInvoiceTotalOnlyOnce(t *testing.T) {
	fr := newFakeOrderRepo()
	svc := NewService(fr, NewMachine(fr, notify.NoopSink{}))
	o := fr.seed(1, models.ProcessingStarted)
	actor := models.Actor{ID: 5, Role: models.RoleAdmin}

	got, err := svc.SetInvoiceTotal(context.Background(), o.ID, models.SetInvoiceRequest{InvoiceTotalMils: 12500}, actor)
	if err != nil {
		t.Fatalf("SetInvoiceTotal error: %v", err)
	}
	if got.InvoiceTotal == nil || *got.InvoiceTotal != models.Money(12500) {
		t.Errorf("InvoiceTotal = %v; want 12.500", got.InvoiceTotal)
	}

	_, err = svc.SetInvoiceTotal(context.Background(), o.ID, models.SetInvoiceRequest{InvoiceTotalMils: 999}, actor)
	if !errors.Is(err, models.ErrInvoiceAlreadySet) {
		t.Errorf("second SetInvoiceTotal error = %v; want ErrInvoiceAlreadySet", err)
	}
}

func TestConcurrentTransitionsApplyExactlyOnce(t *testing.T) {
	fr := newFakeOrderRepo()
	m := NewMachine(fr, notify.NoopSink{})
	o := fr.seed(1, models.OrderPlaced)

	const workers = 16
	var wg sync.WaitGroup
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = m.Transition(context.Background(), o.ID, models.OrderConfirmed, "", models.TransitionOptions{})
		}(i)
	}
	wg.Wait()

	var ok int
	for _, err := range errs {
		if err == nil {
			ok++
		} else if !errors.Is(err, models.ErrInvalidTransition) {
			t.Errorf("unexpected error: %v", err)
		}
	}
	if ok != 1 {
		t.Errorf("%d transitions succeeded; want exactly 1", ok)
	}
	hist, _ := fr.ListHistory(context.Background(), o.ID)
	if len(hist) != 1 {
		t.Errorf("history length = %d; want 1", len(hist))
	}
}
