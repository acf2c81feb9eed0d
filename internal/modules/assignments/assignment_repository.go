package assignments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"laundry-dispatch/internal/models"
)

// RepositoryInterface defines the contract for the assignment repository.
type RepositoryInterface interface {
	Create(ctx context.Context, a *models.DriverAssignment) (*models.DriverAssignment, error)
	FindByID(ctx context.Context, id int64) (*models.DriverAssignment, error)
	FindNonCancelled(ctx context.Context, orderID int64, t models.AssignmentType) (*models.DriverAssignment, error)
	HasCompletedPickup(ctx context.Context, orderID int64) (bool, error)
	HasActiveOther(ctx context.Context, orderID int64, t models.AssignmentType, excludeID int64) (bool, error)
	UpdateStatus(ctx context.Context, id int64, from, to models.AssignmentStatus, actualTime *time.Time) error
	Reassign(ctx context.Context, id, newDriverID int64) (*models.DriverAssignment, error)
	ListByDriver(ctx context.Context, driverID int64, page, limit int) ([]*models.DriverAssignment, int, error)
	ListByOrder(ctx context.Context, orderID int64) ([]*models.DriverAssignment, error)
	GetOrderStatus(ctx context.Context, orderID int64) (models.OrderStatus, error)
}

// Repository implements RepositoryInterface on Postgres.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new assignment repository.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

const assignmentColumns = `id, order_id, driver_id, assignment_type, status, estimated_time, actual_time, created_at, updated_at`

func scanAssignment(row pgx.Row) (*models.DriverAssignment, error) {
	var a models.DriverAssignment
	err := row.Scan(
		&a.ID,
		&a.OrderID,
		&a.DriverID,
		&a.AssignmentType,
		&a.Status,
		&a.EstimatedTime,
		&a.ActualTime,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrAssignmentNotFound
		}
		return nil, fmt.Errorf("failed to scan assignment: %w", err)
	}
	return &a, nil
}

// Create inserts a new assignment. The partial unique index on
// (order_id, assignment_type) WHERE status <> 'CANCELLED' backs up the
// service-level duplicate check against concurrent dispatchers.
func (r *Repository) Create(ctx context.Context, a *models.DriverAssignment) (*models.DriverAssignment, error) {
	row := r.db.QueryRow(ctx, `
		INSERT INTO driver_assignments (order_id, driver_id, assignment_type, status, estimated_time)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+assignmentColumns,
		a.OrderID, a.DriverID, a.AssignmentType, models.AssignmentAssigned, a.EstimatedTime)
	created, err := scanAssignment(row)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, models.ErrDuplicateAssignment
		}
		return nil, fmt.Errorf("repository.Create: %w", err)
	}
	return created, nil
}

// FindByID retrieves a single assignment.
func (r *Repository) FindByID(ctx context.Context, id int64) (*models.DriverAssignment, error) {
	row := r.db.QueryRow(ctx, `SELECT `+assignmentColumns+` FROM driver_assignments WHERE id = $1`, id)
	return scanAssignment(row)
}

// FindNonCancelled returns the one non-cancelled assignment for the
// (order, type) pair, or ErrAssignmentNotFound.
func (r *Repository) FindNonCancelled(ctx context.Context, orderID int64, t models.AssignmentType) (*models.DriverAssignment, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+assignmentColumns+` FROM driver_assignments
		WHERE order_id = $1 AND assignment_type = $2 AND status <> $3`,
		orderID, t, models.AssignmentCancelled)
	return scanAssignment(row)
}

// HasCompletedPickup reports whether the order's pickup leg reached
// COMPLETED or DROPPED_OFF.
func (r *Repository) HasCompletedPickup(ctx context.Context, orderID int64) (bool, error) {
	var n int
	err := r.db.QueryRow(ctx, `
		SELECT COUNT(*) FROM driver_assignments
		WHERE order_id = $1 AND assignment_type = $2 AND status IN ($3, $4)`,
		orderID, models.AssignmentPickup, models.AssignmentCompleted, models.AssignmentDroppedOff).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("repository.HasCompletedPickup: %w", err)
	}
	return n > 0, nil
}

// HasActiveOther reports whether a non-terminal assignment of the same
// (order, type) exists besides excludeID.
func (r *Repository) HasActiveOther(ctx context.Context, orderID int64, t models.AssignmentType, excludeID int64) (bool, error) {
	var n int
	err := r.db.QueryRow(ctx, `
		SELECT COUNT(*) FROM driver_assignments
		WHERE order_id = $1 AND assignment_type = $2 AND id <> $3
		  AND status IN ($4, $5, $6)`,
		orderID, t, excludeID,
		models.AssignmentAssigned, models.AssignmentInProgress, models.AssignmentRescheduled).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("repository.HasActiveOther: %w", err)
	}
	return n > 0, nil
}

// UpdateStatus advances an assignment with a compare-and-set on the previous
// status, so two concurrent drivers (or a driver racing an admin cancel)
// cannot both win.
func (r *Repository) UpdateStatus(ctx context.Context, id int64, from, to models.AssignmentStatus, actualTime *time.Time) error {
	cmdTag, err := r.db.Exec(ctx, `
		UPDATE driver_assignments
		SET status = $1, actual_time = COALESCE($2, actual_time), updated_at = NOW()
		WHERE id = $3 AND status = $4`,
		to, actualTime, id, from)
	if err != nil {
		return fmt.Errorf("repository.UpdateStatus: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s -> %s", models.ErrInvalidAssignmentTransition, from, to)
	}
	return nil
}

// Reassign moves a FAILED assignment onto a new driver, resetting it to
// ASSIGNED and clearing the actual time. The status guard is part of the
// statement so the FAILED precondition holds at write time.
func (r *Repository) Reassign(ctx context.Context, id, newDriverID int64) (*models.DriverAssignment, error) {
	row := r.db.QueryRow(ctx, `
		UPDATE driver_assignments
		SET driver_id = $1, status = $2, actual_time = NULL, updated_at = NOW()
		WHERE id = $3 AND status = $4
		RETURNING `+assignmentColumns,
		newDriverID, models.AssignmentAssigned, id, models.AssignmentFailed)
	a, err := scanAssignment(row)
	if err != nil {
		if errors.Is(err, models.ErrAssignmentNotFound) {
			return nil, fmt.Errorf("%w: reassignment requires FAILED status", models.ErrInvalidAssignmentTransition)
		}
		return nil, fmt.Errorf("repository.Reassign: %w", err)
	}
	return a, nil
}

// ListByDriver retrieves a driver's assignments with pagination.
func (r *Repository) ListByDriver(ctx context.Context, driverID int64, page, limit int) ([]*models.DriverAssignment, int, error) {
	offset := (page - 1) * limit
	rows, err := r.db.Query(ctx, `
		SELECT `+assignmentColumns+` FROM driver_assignments
		WHERE driver_id = $1
		ORDER BY estimated_time ASC
		LIMIT $2 OFFSET $3`, driverID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("repository.ListByDriver.Query: %w", err)
	}
	defer rows.Close()

	var out []*models.DriverAssignment
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("repository.ListByDriver.scan: %w", err)
		}
		out = append(out, a)
	}

	var total int
	err = r.db.QueryRow(ctx, `SELECT COUNT(*) FROM driver_assignments WHERE driver_id = $1`, driverID).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("repository.ListByDriver.Count: %w", err)
	}
	return out, total, nil
}

// ListByOrder retrieves all assignments for an order (for admin views).
func (r *Repository) ListByOrder(ctx context.Context, orderID int64) ([]*models.DriverAssignment, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+assignmentColumns+` FROM driver_assignments
		WHERE order_id = $1
		ORDER BY created_at ASC`, orderID)
	if err != nil {
		return nil, fmt.Errorf("repository.ListByOrder.Query: %w", err)
	}
	defer rows.Close()

	var out []*models.DriverAssignment
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, fmt.Errorf("repository.ListByOrder.scan: %w", err)
		}
		out = append(out, a)
	}
	return out, nil
}

// GetOrderStatus reads the owning order's current status. Read-only: status
// writes belong to the orders status machine.
func (r *Repository) GetOrderStatus(ctx context.Context, orderID int64) (models.OrderStatus, error) {
	var s models.OrderStatus
	err := r.db.QueryRow(ctx, `SELECT status FROM orders WHERE id = $1`, orderID).Scan(&s)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", models.ErrOrderNotFound
		}
		return "", fmt.Errorf("repository.GetOrderStatus: %w", err)
	}
	return s, nil
}
