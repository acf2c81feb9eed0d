package orders

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"laundry-dispatch/internal/models"
)

// RepositoryInterface defines the contract for the order repository.
type RepositoryInterface interface {
	Create(ctx context.Context, customerID int64, orderNumber, notes string) (*models.Order, error)
	FindByID(ctx context.Context, orderID int64) (*models.Order, error)
	ListByCustomer(ctx context.Context, customerID int64, page, limit int) ([]*models.Order, int, error)
	ListAll(ctx context.Context, page, limit int) ([]*models.Order, int, error)
	ApplyTransition(ctx context.Context, orderID int64, requested models.OrderStatus, entry models.OrderHistory) (*models.Order, error)
	SetInvoiceTotal(ctx context.Context, orderID int64, total models.Money) (*models.Order, error)
	ListHistory(ctx context.Context, orderID int64) ([]*models.OrderHistory, error)
}

// Repository implements RepositoryInterface on Postgres.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new order repository.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

const orderColumns = `id, order_number, customer_id, status, payment_status, invoice_total, notes, created_at, updated_at`

func scanOrder(row pgx.Row) (*models.Order, error) {
	var o models.Order
	var invoice *int64
	err := row.Scan(
		&o.ID,
		&o.OrderNumber,
		&o.CustomerID,
		&o.Status,
		&o.PaymentStatus,
		&invoice,
		&o.Notes,
		&o.CreatedAt,
		&o.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrOrderNotFound
		}
		return nil, fmt.Errorf("failed to scan order: %w", err)
	}
	if invoice != nil {
		m := models.Money(*invoice)
		o.InvoiceTotal = &m
	}
	return &o, nil
}

// Create inserts a new order plus its ORDER_PLACED history row in one
// transaction, so even the first status carries an audit entry.
func (r *Repository) Create(ctx context.Context, customerID int64, orderNumber, notes string) (*models.Order, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("repository.Create: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO orders (order_number, customer_id, status, payment_status, notes)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING ` + orderColumns
	row := tx.QueryRow(ctx, query, orderNumber, customerID, models.OrderPlaced, models.PaymentPending, notes)
	order, err := scanOrder(row)
	if err != nil {
		return nil, fmt.Errorf("repository.Create: %w", err)
	}

	entry := models.OrderHistory{
		OrderID:     order.ID,
		Action:      string(models.OrderPlaced),
		Description: "Order placed by customer",
	}
	if err := insertHistory(ctx, tx, entry); err != nil {
		return nil, fmt.Errorf("repository.Create: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("repository.Create: commit: %w", err)
	}
	return order, nil
}

// ApplyTransition validates the requested status against the adjacency table
// using the row read under lock, then updates the status and appends the
// history entry in the same transaction. A losing concurrent caller observes
// the committed status and fails with ErrInvalidTransition.
func (r *Repository) ApplyTransition(ctx context.Context, orderID int64, requested models.OrderStatus, entry models.OrderHistory) (*models.Order, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("repository.ApplyTransition: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1 FOR UPDATE`, orderID)
	order, err := scanOrder(row)
	if err != nil {
		return nil, err
	}

	if !CanTransition(order.Status, requested) {
		return nil, fmt.Errorf("%w: %s -> %s", models.ErrInvalidTransition, order.Status, requested)
	}

	row = tx.QueryRow(ctx, `
		UPDATE orders SET status = $1, updated_at = NOW()
		WHERE id = $2
		RETURNING `+orderColumns, requested, orderID)
	updated, err := scanOrder(row)
	if err != nil {
		return nil, fmt.Errorf("repository.ApplyTransition: update: %w", err)
	}

	if err := insertHistory(ctx, tx, entry); err != nil {
		return nil, fmt.Errorf("repository.ApplyTransition: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("repository.ApplyTransition: commit: %w", err)
	}
	return updated, nil
}

func insertHistory(ctx context.Context, tx pgx.Tx, entry models.OrderHistory) error {
	var meta []byte
	if !entry.Metadata.IsZero() {
		b, err := json.Marshal(entry.Metadata)
		if err != nil {
			return fmt.Errorf("marshal history metadata: %w", err)
		}
		meta = b
	}
	_, err := tx.Exec(ctx, `
		INSERT INTO order_history (order_id, action, description, metadata, staff_id)
		VALUES ($1, $2, $3, $4, $5)`,
		entry.OrderID, entry.Action, entry.Description, meta, entry.StaffID)
	if err != nil {
		return fmt.Errorf("insert order history: %w", err)
	}
	return nil
}

// FindByID retrieves a single order.
func (r *Repository) FindByID(ctx context.Context, orderID int64) (*models.Order, error) {
	row := r.db.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, orderID)
	return scanOrder(row)
}

// ListByCustomer retrieves a customer's orders with pagination.
func (r *Repository) ListByCustomer(ctx context.Context, customerID int64, page, limit int) ([]*models.Order, int, error) {
	offset := (page - 1) * limit
	rows, err := r.db.Query(ctx, `
		SELECT `+orderColumns+` FROM orders
		WHERE customer_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`, customerID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("repository.ListByCustomer.Query: %w", err)
	}
	defer rows.Close()

	var orders []*models.Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("repository.ListByCustomer.scanOrder: %w", err)
		}
		orders = append(orders, order)
	}

	var total int
	err = r.db.QueryRow(ctx, `SELECT COUNT(*) FROM orders WHERE customer_id = $1`, customerID).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("repository.ListByCustomer.Count: %w", err)
	}
	return orders, total, nil
}

// ListAll retrieves all orders with pagination (for admin use).
func (r *Repository) ListAll(ctx context.Context, page, limit int) ([]*models.Order, int, error) {
	offset := (page - 1) * limit
	rows, err := r.db.Query(ctx, `
		SELECT `+orderColumns+` FROM orders
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("repository.ListAll.Query: %w", err)
	}
	defer rows.Close()

	var orders []*models.Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("repository.ListAll.scanOrder: %w", err)
		}
		orders = append(orders, order)
	}

	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM orders`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("repository.ListAll.Count: %w", err)
	}
	return orders, total, nil
}

// SetInvoiceTotal sets the invoice total exactly once.
func (r *Repository) SetInvoiceTotal(ctx context.Context, orderID int64, total models.Money) (*models.Order, error) {
	row := r.db.QueryRow(ctx, `
		UPDATE orders SET invoice_total = $1, updated_at = NOW()
		WHERE id = $2 AND invoice_total IS NULL
		RETURNING `+orderColumns, int64(total), orderID)
	order, err := scanOrder(row)
	if err == nil {
		return order, nil
	}
	if !errors.Is(err, models.ErrOrderNotFound) {
		return nil, fmt.Errorf("repository.SetInvoiceTotal: %w", err)
	}
	// Distinguish a missing order from one whose invoice is already fixed.
	if _, findErr := r.FindByID(ctx, orderID); findErr != nil {
		return nil, findErr
	}
	return nil, models.ErrInvoiceAlreadySet
}

// ListHistory returns the audit trail for an order, oldest first.
func (r *Repository) ListHistory(ctx context.Context, orderID int64) ([]*models.OrderHistory, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, order_id, action, description, metadata, staff_id, created_at
		FROM order_history
		WHERE order_id = $1
		ORDER BY created_at ASC, id ASC`, orderID)
	if err != nil {
		return nil, fmt.Errorf("repository.ListHistory.Query: %w", err)
	}
	defer rows.Close()

	var entries []*models.OrderHistory
	for rows.Next() {
		var e models.OrderHistory
		var meta []byte
		if err := rows.Scan(&e.ID, &e.OrderID, &e.Action, &e.Description, &meta, &e.StaffID, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("repository.ListHistory.Scan: %w", err)
		}
		if len(meta) > 0 {
			if err := json.Unmarshal(meta, &e.Metadata); err != nil {
				// Legacy blobs that predate the tagged union are kept opaque.
				e.Metadata = models.Metadata{Kind: models.MetadataOpaque, Opaque: meta}
			}
		}
		entries = append(entries, &e)
	}
	return entries, nil
}
