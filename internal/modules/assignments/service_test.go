package assignments

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"laundry-dispatch/internal/models"
)

// fakeAssignmentRepo mirrors the real repository's compare-and-set and
// uniqueness semantics over in-memory maps.
type fakeAssignmentRepo struct {
	mu          sync.Mutex
	nextID      int64
	assignments map[int64]*models.DriverAssignment
	orderStatus map[int64]models.OrderStatus
}

func newFakeAssignmentRepo() *fakeAssignmentRepo {
	return &fakeAssignmentRepo{
		assignments: make(map[int64]*models.DriverAssignment),
		orderStatus: make(map[int64]models.OrderStatus),
	}
}

func (f *fakeAssignmentRepo) seed(a models.DriverAssignment) *models.DriverAssignment {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	a.ID = f.nextID
	f.assignments[a.ID] = &a
	return &a
}

func (f *fakeAssignmentRepo) Create(ctx context.Context, a *models.DriverAssignment) (*models.DriverAssignment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, ex := range f.assignments {
		if ex.OrderID == a.OrderID && ex.AssignmentType == a.AssignmentType && ex.Status != models.AssignmentCancelled {
			return nil, models.ErrDuplicateAssignment
		}
	}
	f.nextID++
	cp := *a
	cp.ID = f.nextID
	cp.Status = models.AssignmentAssigned
	f.assignments[cp.ID] = &cp
	out := cp
	return &out, nil
}

func (f *fakeAssignmentRepo) FindByID(ctx context.Context, id int64) (*models.DriverAssignment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.assignments[id]
	if !ok {
		return nil, models.ErrAssignmentNotFound
	}
	cp := *a
	return &cp, nil
}

func (f *fakeAssignmentRepo) FindNonCancelled(ctx context.Context, orderID int64, t models.AssignmentType) (*models.DriverAssignment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, a := range f.assignments {
		if a.OrderID == orderID && a.AssignmentType == t && a.Status != models.AssignmentCancelled {
			cp := *a
			return &cp, nil
		}
	}
	return nil, models.ErrAssignmentNotFound
}

func (f *fakeAssignmentRepo) HasCompletedPickup(ctx context.Context, orderID int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, a := range f.assignments {
		if a.OrderID == orderID && a.AssignmentType == models.AssignmentPickup &&
			(a.Status == models.AssignmentCompleted || a.Status == models.AssignmentDroppedOff) {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeAssignmentRepo) HasActiveOther(ctx context.Context, orderID int64, t models.AssignmentType, excludeID int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, a := range f.assignments {
		if a.OrderID == orderID && a.AssignmentType == t && a.ID != excludeID {
			switch a.Status {
			case models.AssignmentAssigned, models.AssignmentInProgress, models.AssignmentRescheduled:
				return true, nil
			}
		}
	}
	return false, nil
}

func (f *fakeAssignmentRepo) UpdateStatus(ctx context.Context, id int64, from, to models.AssignmentStatus, actualTime *time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.assignments[id]
	if !ok || a.Status != from {
		return fmt.Errorf("%w: %s -> %s", models.ErrInvalidAssignmentTransition, from, to)
	}
	a.Status = to
	if actualTime != nil {
		a.ActualTime = actualTime
	}
	return nil
}

func (f *fakeAssignmentRepo) Reassign(ctx context.Context, id, newDriverID int64) (*models.DriverAssignment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.assignments[id]
	if !ok || a.Status != models.AssignmentFailed {
		return nil, fmt.Errorf("%w: reassignment requires FAILED status", models.ErrInvalidAssignmentTransition)
	}
	a.DriverID = newDriverID
	a.Status = models.AssignmentAssigned
	a.ActualTime = nil
	cp := *a
	return &cp, nil
}

func (f *fakeAssignmentRepo) ListByDriver(ctx context.Context, driverID int64, page, limit int) ([]*models.DriverAssignment, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.DriverAssignment
	for _, a := range f.assignments {
		if a.DriverID == driverID {
			cp := *a
			out = append(out, &cp)
		}
	}
	return out, len(out), nil
}

func (f *fakeAssignmentRepo) ListByOrder(ctx context.Context, orderID int64) ([]*models.DriverAssignment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.DriverAssignment
	for _, a := range f.assignments {
		if a.OrderID == orderID {
			cp := *a
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeAssignmentRepo) GetOrderStatus(ctx context.Context, orderID int64) (models.OrderStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.orderStatus[orderID]
	if !ok {
		return "", models.ErrOrderNotFound
	}
	return s, nil
}

// fakeMachine records the order transitions requested of it.
type fakeMachine struct {
	mu     sync.Mutex
	calls  []models.OrderStatus
	refuse error
}

func (m *fakeMachine) Transition(ctx context.Context, orderID int64, requested models.OrderStatus, notes string, opts models.TransitionOptions) (*models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.refuse != nil {
		return nil, m.refuse
	}
	m.calls = append(m.calls, requested)
	return &models.Order{ID: orderID, Status: requested}, nil
}

func (m *fakeMachine) lastCall() models.OrderStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.calls) == 0 {
		return ""
	}
	return m.calls[len(m.calls)-1]
}

// fakeDirectory marks which driver ids count as active drivers.
type fakeDirectory struct {
	active map[int64]bool
}

func (d *fakeDirectory) IsActiveDriver(ctx context.Context, driverID int64) (bool, error) {
	return d.active[driverID], nil
}

func newTestService(fr *fakeAssignmentRepo, fm *fakeMachine, drivers ...int64) *Service {
	dir := &fakeDirectory{active: make(map[int64]bool)}
	for _, id := range drivers {
		dir.active[id] = true
	}
	return NewService(fr, fm, dir, DefaultWindow())
}

var admin = models.Actor{ID: 100, Role: models.RoleAdmin}

func TestCreateRejectsInactiveDriver(t *testing.T) {
	fr := newFakeAssignmentRepo()
	svc := newTestService(fr, &fakeMachine{}, 1)

	_, err := svc.Create(context.Background(), models.CreateAssignmentRequest{
		OrderID: 1, DriverID: 2, AssignmentType: models.AssignmentPickup, EstimatedTime: time.Now(),
	}, admin)
	if !errors.Is(err, models.ErrDriverUnavailable) {
		t.Errorf("error = %v; want ErrDriverUnavailable", err)
	}
}

func TestCreateRejectsDuplicateLeg(t *testing.T) {
	fr := newFakeAssignmentRepo()
	fr.seed(models.DriverAssignment{OrderID: 1, DriverID: 1, AssignmentType: models.AssignmentPickup, Status: models.AssignmentAssigned})
	svc := newTestService(fr, &fakeMachine{}, 2)

	_, err := svc.Create(context.Background(), models.CreateAssignmentRequest{
		OrderID: 1, DriverID: 2, AssignmentType: models.AssignmentPickup, EstimatedTime: time.Now(),
	}, admin)
	if !errors.Is(err, models.ErrDuplicateAssignment) {
		t.Errorf("error = %v; want ErrDuplicateAssignment", err)
	}
}

func TestCreateAllowsSecondLegAfterCancellation(t *testing.T) {
	fr := newFakeAssignmentRepo()
	fr.seed(models.DriverAssignment{OrderID: 1, DriverID: 1, AssignmentType: models.AssignmentPickup, Status: models.AssignmentCancelled})
	fm := &fakeMachine{}
	svc := newTestService(fr, fm, 2)

	a, err := svc.Create(context.Background(), models.CreateAssignmentRequest{
		OrderID: 1, DriverID: 2, AssignmentType: models.AssignmentPickup, EstimatedTime: time.Now(),
	}, admin)
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if a.Status != models.AssignmentAssigned {
		t.Errorf("Status = %s; want ASSIGNED", a.Status)
	}
	if fm.lastCall() != models.PickupAssigned {
		t.Errorf("order transition = %s; want PICKUP_ASSIGNED", fm.lastCall())
	}
}

func TestCreateDeliveryRequiresCompletedPickup(t *testing.T) {
	fr := newFakeAssignmentRepo()
	fr.seed(models.DriverAssignment{OrderID: 1, DriverID: 1, AssignmentType: models.AssignmentPickup, Status: models.AssignmentInProgress})
	svc := newTestService(fr, &fakeMachine{}, 2)

	_, err := svc.Create(context.Background(), models.CreateAssignmentRequest{
		OrderID: 1, DriverID: 2, AssignmentType: models.AssignmentDelivery, EstimatedTime: time.Now(),
	}, admin)
	if !errors.Is(err, models.ErrSequenceViolation) {
		t.Errorf("error = %v; want ErrSequenceViolation", err)
	}

	// Completing the pickup unblocks the delivery leg.
	for _, a := range fr.assignments {
		a.Status = models.AssignmentCompleted
	}
	fm := &fakeMachine{}
	svc = newTestService(fr, fm, 2)
	if _, err := svc.Create(context.Background(), models.CreateAssignmentRequest{
		OrderID: 1, DriverID: 2, AssignmentType: models.AssignmentDelivery, EstimatedTime: time.Now(),
	}, admin); err != nil {
		t.Fatalf("Create after pickup completion error: %v", err)
	}
	if fm.lastCall() != models.DeliveryAssigned {
		t.Errorf("order transition = %s; want DELIVERY_ASSIGNED", fm.lastCall())
	}
}

func TestCreateRollsBackWhenOrderRefuses(t *testing.T) {
	fr := newFakeAssignmentRepo()
	fm := &fakeMachine{refuse: models.ErrInvalidTransition}
	svc := newTestService(fr, fm, 2)

	_, err := svc.Create(context.Background(), models.CreateAssignmentRequest{
		OrderID: 1, DriverID: 2, AssignmentType: models.AssignmentPickup, EstimatedTime: time.Now(),
	}, admin)
	if !errors.Is(err, models.ErrInvalidTransition) {
		t.Fatalf("error = %v; want ErrInvalidTransition", err)
	}
	// The fresh assignment must not survive as an active row.
	if _, err := fr.FindNonCancelled(context.Background(), 1, models.AssignmentPickup); !errors.Is(err, models.ErrAssignmentNotFound) {
		t.Errorf("active assignment still present after rollback")
	}
}

func TestAdvanceRejectsForeignDriver(t *testing.T) {
	fr := newFakeAssignmentRepo()
	a := fr.seed(models.DriverAssignment{OrderID: 1, DriverID: 5, AssignmentType: models.AssignmentPickup, Status: models.AssignmentAssigned, EstimatedTime: time.Now()})
	svc := newTestService(fr, &fakeMachine{}, 5, 6)

	_, err := svc.Advance(context.Background(), a.ID, models.AdvanceAssignmentRequest{Status: models.AssignmentInProgress},
		models.Actor{ID: 6, Role: models.RoleDriver})
	if !errors.Is(err, models.ErrAccessDenied) {
		t.Errorf("error = %v; want ErrAccessDenied", err)
	}
}

func TestAdvanceStartWindow(t *testing.T) {
	base := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	cases := []struct {
		name    string
		now     time.Time
		wantErr bool
	}{
		{"too early", base.Add(-31 * time.Minute), true},
		{"earliest allowed", base.Add(-30 * time.Minute), false},
		{"on time", base, false},
		{"latest allowed", base.Add(2 * time.Hour), false},
		{"too late", base.Add(2*time.Hour + time.Minute), true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			fr := newFakeAssignmentRepo()
			a := fr.seed(models.DriverAssignment{OrderID: 1, DriverID: 5, AssignmentType: models.AssignmentPickup, Status: models.AssignmentAssigned, EstimatedTime: base})
			svc := newTestService(fr, &fakeMachine{}, 5)
			svc.now = func() time.Time { return tc.now }

			_, err := svc.Advance(context.Background(), a.ID, models.AdvanceAssignmentRequest{Status: models.AssignmentInProgress},
				models.Actor{ID: 5, Role: models.RoleDriver})
			if tc.wantErr && !errors.Is(err, models.ErrTimeWindowExpired) {
				t.Errorf("error = %v; want ErrTimeWindowExpired", err)
			}
			if !tc.wantErr && err != nil {
				t.Errorf("error = %v; want nil", err)
			}
		})
	}
}

func TestAdvanceCompletedSetsActualTime(t *testing.T) {
	fr := newFakeAssignmentRepo()
	a := fr.seed(models.DriverAssignment{OrderID: 1, DriverID: 5, AssignmentType: models.AssignmentPickup, Status: models.AssignmentInProgress, EstimatedTime: time.Now()})
	fm := &fakeMachine{}
	svc := newTestService(fr, fm, 5)
	at := time.Date(2026, 3, 10, 13, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return at }

	got, err := svc.Advance(context.Background(), a.ID, models.AdvanceAssignmentRequest{Status: models.AssignmentCompleted},
		models.Actor{ID: 5, Role: models.RoleDriver})
	if err != nil {
		t.Fatalf("Advance error: %v", err)
	}
	if got.ActualTime == nil || !got.ActualTime.Equal(at) {
		t.Errorf("ActualTime = %v; want %v", got.ActualTime, at)
	}
	if fm.lastCall() != models.PickupCompleted {
		t.Errorf("order transition = %s; want PICKUP_COMPLETED", fm.lastCall())
	}
}

func TestDropOffOnlyAfterCompletion(t *testing.T) {
	fr := newFakeAssignmentRepo()
	a := fr.seed(models.DriverAssignment{OrderID: 1, DriverID: 5, AssignmentType: models.AssignmentDelivery, Status: models.AssignmentInProgress, EstimatedTime: time.Now()})
	fm := &fakeMachine{}
	svc := newTestService(fr, fm, 5)
	driver := models.Actor{ID: 5, Role: models.RoleDriver}

	// IN_PROGRESS -> DROPPED_OFF skips the completion phase.
	_, err := svc.Advance(context.Background(), a.ID, models.AdvanceAssignmentRequest{Status: models.AssignmentDroppedOff}, driver)
	if !errors.Is(err, models.ErrInvalidAssignmentTransition) {
		t.Fatalf("error = %v; want ErrInvalidAssignmentTransition", err)
	}

	if _, err := svc.Advance(context.Background(), a.ID, models.AdvanceAssignmentRequest{Status: models.AssignmentCompleted}, driver); err != nil {
		t.Fatalf("Advance to COMPLETED error: %v", err)
	}
	if fm.lastCall() != models.Delivered {
		t.Errorf("order transition = %s; want DELIVERED", fm.lastCall())
	}
	if _, err := svc.Advance(context.Background(), a.ID, models.AdvanceAssignmentRequest{Status: models.AssignmentDroppedOff}, driver); err != nil {
		t.Fatalf("Advance to DROPPED_OFF error: %v", err)
	}
	if fm.lastCall() != models.DroppedOff {
		t.Errorf("order transition = %s; want DROPPED_OFF", fm.lastCall())
	}
}

func TestAdvanceRejectsAdminOnlyStatuses(t *testing.T) {
	// Cancellation and rescheduling carry their own preconditions and order
	// reversion logic; a driver must not reach them through Advance.
	for _, status := range []models.AssignmentStatus{models.AssignmentCancelled, models.AssignmentRescheduled} {
		fr := newFakeAssignmentRepo()
		a := fr.seed(models.DriverAssignment{OrderID: 1, DriverID: 5, AssignmentType: models.AssignmentPickup, Status: models.AssignmentAssigned, EstimatedTime: time.Now()})
		fm := &fakeMachine{}
		svc := newTestService(fr, fm, 5)

		_, err := svc.Advance(context.Background(), a.ID, models.AdvanceAssignmentRequest{Status: status},
			models.Actor{ID: 5, Role: models.RoleDriver})
		if !errors.Is(err, models.ErrInvalidAssignmentTransition) {
			t.Errorf("Advance to %s error = %v; want ErrInvalidAssignmentTransition", status, err)
		}
		got, _ := fr.FindByID(context.Background(), a.ID)
		if got.Status != models.AssignmentAssigned {
			t.Errorf("status after rejected Advance = %s; want ASSIGNED", got.Status)
		}
	}
}

func TestDropOffOnlyOnDeliveryLeg(t *testing.T) {
	fr := newFakeAssignmentRepo()
	a := fr.seed(models.DriverAssignment{OrderID: 1, DriverID: 5, AssignmentType: models.AssignmentPickup, Status: models.AssignmentCompleted, EstimatedTime: time.Now()})
	fm := &fakeMachine{}
	svc := newTestService(fr, fm, 5)

	_, err := svc.Advance(context.Background(), a.ID, models.AdvanceAssignmentRequest{Status: models.AssignmentDroppedOff},
		models.Actor{ID: 5, Role: models.RoleDriver})
	if !errors.Is(err, models.ErrInvalidAssignmentTransition) {
		t.Errorf("error = %v; want ErrInvalidAssignmentTransition", err)
	}
	if len(fm.calls) != 0 {
		t.Errorf("order transitions = %v; want none", fm.calls)
	}
}

func TestCancelTerminalAssignment(t *testing.T) {
	for _, status := range []models.AssignmentStatus{models.AssignmentCompleted, models.AssignmentDroppedOff, models.AssignmentCancelled} {
		fr := newFakeAssignmentRepo()
		fr.orderStatus[1] = models.PickupAssigned
		a := fr.seed(models.DriverAssignment{OrderID: 1, DriverID: 5, AssignmentType: models.AssignmentPickup, Status: status})
		svc := newTestService(fr, &fakeMachine{}, 5)

		if err := svc.Cancel(context.Background(), a.ID, admin, ""); !errors.Is(err, models.ErrAssignmentNotCancellable) {
			t.Errorf("Cancel of %s assignment error = %v; want ErrAssignmentNotCancellable", status, err)
		}
	}
}

func TestCancelRevertsOrderOnlyWhenStillAssigned(t *testing.T) {
	// Order still on PICKUP_ASSIGNED: cancelling reverts it to CONFIRMED.
	fr := newFakeAssignmentRepo()
	fr.orderStatus[1] = models.PickupAssigned
	a := fr.seed(models.DriverAssignment{OrderID: 1, DriverID: 5, AssignmentType: models.AssignmentPickup, Status: models.AssignmentAssigned})
	fm := &fakeMachine{}
	svc := newTestService(fr, fm, 5)

	if err := svc.Cancel(context.Background(), a.ID, admin, "driver sick"); err != nil {
		t.Fatalf("Cancel error: %v", err)
	}
	if fm.lastCall() != models.OrderConfirmed {
		t.Errorf("order transition = %s; want CONFIRMED", fm.lastCall())
	}
	got, _ := fr.FindByID(context.Background(), a.ID)
	if got.Status != models.AssignmentCancelled {
		t.Errorf("assignment status = %s; want CANCELLED", got.Status)
	}

	// Order already moved on: cancelling the stale record must not touch it.
	fr2 := newFakeAssignmentRepo()
	fr2.orderStatus[2] = models.PickupInProgress
	b := fr2.seed(models.DriverAssignment{OrderID: 2, DriverID: 5, AssignmentType: models.AssignmentPickup, Status: models.AssignmentAssigned})
	fm2 := &fakeMachine{}
	svc2 := newTestService(fr2, fm2, 5)

	if err := svc2.Cancel(context.Background(), b.ID, admin, ""); err != nil {
		t.Fatalf("Cancel error: %v", err)
	}
	if len(fm2.calls) != 0 {
		t.Errorf("order transitions = %v; want none", fm2.calls)
	}
}

func TestCancelBlockedOnceGoodsMoved(t *testing.T) {
	fr := newFakeAssignmentRepo()
	fr.orderStatus[1] = models.ReceivedAtFacility
	a := fr.seed(models.DriverAssignment{OrderID: 1, DriverID: 5, AssignmentType: models.AssignmentPickup, Status: models.AssignmentInProgress})
	svc := newTestService(fr, &fakeMachine{}, 5)

	if err := svc.Cancel(context.Background(), a.ID, admin, ""); !errors.Is(err, models.ErrAssignmentNotCancellable) {
		t.Errorf("error = %v; want ErrAssignmentNotCancellable", err)
	}
}

func TestReassignRequiresFailedStatus(t *testing.T) {
	fr := newFakeAssignmentRepo()
	a := fr.seed(models.DriverAssignment{OrderID: 1, DriverID: 5, AssignmentType: models.AssignmentPickup, Status: models.AssignmentInProgress})
	svc := newTestService(fr, &fakeMachine{}, 5, 6)

	_, err := svc.Reassign(context.Background(), a.ID, models.ReassignRequest{NewDriverID: 6}, admin)
	if !errors.Is(err, models.ErrInvalidAssignmentTransition) {
		t.Errorf("error = %v; want ErrInvalidAssignmentTransition", err)
	}
}

func TestReassignMovesFailedLegToNewDriver(t *testing.T) {
	fr := newFakeAssignmentRepo()
	at := time.Now()
	a := fr.seed(models.DriverAssignment{OrderID: 1, DriverID: 5, AssignmentType: models.AssignmentPickup, Status: models.AssignmentFailed, ActualTime: &at})
	fm := &fakeMachine{}
	svc := newTestService(fr, fm, 5, 6)

	got, err := svc.Reassign(context.Background(), a.ID, models.ReassignRequest{NewDriverID: 6}, admin)
	if err != nil {
		t.Fatalf("Reassign error: %v", err)
	}
	if got.DriverID != 6 || got.Status != models.AssignmentAssigned {
		t.Errorf("got driver=%d status=%s; want driver=6 status=ASSIGNED", got.DriverID, got.Status)
	}
	if got.ActualTime != nil {
		t.Errorf("ActualTime = %v; want cleared", got.ActualTime)
	}
	if fm.lastCall() != models.PickupAssigned {
		t.Errorf("order transition = %s; want PICKUP_ASSIGNED", fm.lastCall())
	}
}

func TestReassignRejectsWhenAnotherLegIsActive(t *testing.T) {
	fr := newFakeAssignmentRepo()
	failed := fr.seed(models.DriverAssignment{OrderID: 1, DriverID: 5, AssignmentType: models.AssignmentPickup, Status: models.AssignmentFailed})
	fr.seed(models.DriverAssignment{OrderID: 1, DriverID: 7, AssignmentType: models.AssignmentPickup, Status: models.AssignmentAssigned})
	svc := newTestService(fr, &fakeMachine{}, 5, 6, 7)

	_, err := svc.Reassign(context.Background(), failed.ID, models.ReassignRequest{NewDriverID: 6}, admin)
	if !errors.Is(err, models.ErrActiveAssignmentExists) {
		t.Errorf("error = %v; want ErrActiveAssignmentExists", err)
	}
}

func TestOrderStatusForCoversEveryForwardTransition(t *testing.T) {
	// Every advance target a driver can request must map to an order status,
	// except CANCELLED and RESCHEDULED which leave the order alone.
	for _, typ := range []models.AssignmentType{models.AssignmentPickup, models.AssignmentDelivery} {
		for from, targets := range assignmentTransitions {
			for _, to := range targets {
				if to == models.AssignmentCancelled || to == models.AssignmentRescheduled {
					continue
				}
				if typ == models.AssignmentPickup && to == models.AssignmentDroppedOff {
					continue // drop-off confirmation only exists on the delivery leg
				}
				if _, ok := OrderStatusFor(typ, to); !ok {
					t.Errorf("no order status for %s %s (reachable from %s)", typ, to, from)
				}
			}
		}
	}
}
