package payments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"laundry-dispatch/internal/models"
)

// WalletPaymentCommand debits a wallet to settle an invoice.
type WalletPaymentCommand struct {
	OrderID    int64
	CustomerID int64
	Amount     models.Money
	Metadata   models.Metadata
	ActorID    *int64
	// MarkOrderPaid is false for the wallet leg of a split, where the
	// order flips to PAID only once both legs have settled.
	MarkOrderPaid bool
}

// WalletPaymentResult reports the committed debit.
type WalletPaymentResult struct {
	Payment     *models.PaymentRecord
	Transaction *models.WalletTransaction
	NewBalance  models.Money
}

// WalletRefundCommand credits a refund back onto a wallet.
type WalletRefundCommand struct {
	PaymentID  int64
	OrderID    int64
	CustomerID int64
	Amount     models.Money
	Reason     string
	ActorID    *int64
}

// WalletRefundResult reports the committed wallet refund.
type WalletRefundResult struct {
	RefundPayment      *models.PaymentRecord
	NewBalance         models.Money
	RefundedTotal      models.Money
	OrderPaymentStatus models.PaymentStatus
}

// GatewayRefundCommand records a refund that the external gateway has
// already executed.
type GatewayRefundCommand struct {
	PaymentID       int64
	OrderID         int64
	CustomerID      int64
	Amount          models.Money
	Reason          string
	GatewayRefundID string
	ActorID         *int64
}

// GatewayRefundResult reports the committed bookkeeping for a gateway refund.
type GatewayRefundResult struct {
	RefundedTotal      models.Money
	OrderPaymentStatus models.PaymentStatus
}

// RepositoryInterface defines the contract for the payment repository.
type RepositoryInterface interface {
	FindOrder(ctx context.Context, orderID int64) (*models.Order, error)
	FindPayment(ctx context.Context, paymentID int64) (*models.PaymentRecord, error)
	ListByOrder(ctx context.Context, orderID int64) ([]*models.PaymentRecord, error)
	GetWallet(ctx context.Context, customerID int64) (*models.Wallet, error)
	ListWalletTransactions(ctx context.Context, customerID int64, page, limit int) ([]*models.WalletTransaction, int, error)
	CreateGatewayPayment(ctx context.Context, rec *models.PaymentRecord, markOrderStatus models.PaymentStatus) (*models.PaymentRecord, error)
	ApplyWalletPayment(ctx context.Context, cmd WalletPaymentCommand) (*WalletPaymentResult, error)
	TopUpWallet(ctx context.Context, customerID int64, amount models.Money) (*models.Wallet, *models.WalletTransaction, error)
	ApplyWalletRefund(ctx context.Context, cmd WalletRefundCommand) (*WalletRefundResult, error)
	ApplyGatewayRefund(ctx context.Context, cmd GatewayRefundCommand) (*GatewayRefundResult, error)
}

// Repository implements RepositoryInterface on Postgres.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new payment repository.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

const paymentColumns = `id, order_id, customer_id, amount, payment_method, payment_status, refund_amount, refund_reason, gateway_charge_id, metadata, created_at, updated_at`

func scanPayment(row pgx.Row) (*models.PaymentRecord, error) {
	var p models.PaymentRecord
	var amount, refund int64
	var meta []byte
	err := row.Scan(
		&p.ID,
		&p.OrderID,
		&p.CustomerID,
		&amount,
		&p.PaymentMethod,
		&p.PaymentStatus,
		&refund,
		&p.RefundReason,
		&p.GatewayChargeID,
		&meta,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrPaymentNotFound
		}
		return nil, fmt.Errorf("failed to scan payment: %w", err)
	}
	p.Amount = models.Money(amount)
	p.RefundAmount = models.Money(refund)
	if len(meta) > 0 {
		if err := json.Unmarshal(meta, &p.Metadata); err != nil {
			p.Metadata = models.Metadata{Kind: models.MetadataOpaque, Opaque: meta}
		}
	}
	return &p, nil
}

func marshalMetadata(m models.Metadata) ([]byte, error) {
	if m.IsZero() {
		return nil, nil
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return json.Marshal(m)
}

// wrapTxErr converts Postgres serialization failures (SQLSTATE 40001) into
// the retryable conflict sentinel.
func wrapTxErr(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "40001" {
		return fmt.Errorf("%s: %w", op, models.ErrSerialization)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// FindOrder reads the owning order (read-only; status writes belong to the
// orders status machine, payment_status is owned by this module).
func (r *Repository) FindOrder(ctx context.Context, orderID int64) (*models.Order, error) {
	var o models.Order
	var invoice *int64
	err := r.db.QueryRow(ctx, `
		SELECT id, order_number, customer_id, status, payment_status, invoice_total, notes, created_at, updated_at
		FROM orders WHERE id = $1`, orderID).Scan(
		&o.ID, &o.OrderNumber, &o.CustomerID, &o.Status, &o.PaymentStatus, &invoice, &o.Notes, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrOrderNotFound
		}
		return nil, fmt.Errorf("repository.FindOrder: %w", err)
	}
	if invoice != nil {
		m := models.Money(*invoice)
		o.InvoiceTotal = &m
	}
	return &o, nil
}

// FindPayment retrieves a single payment record.
func (r *Repository) FindPayment(ctx context.Context, paymentID int64) (*models.PaymentRecord, error) {
	row := r.db.QueryRow(ctx, `SELECT `+paymentColumns+` FROM payment_records WHERE id = $1`, paymentID)
	return scanPayment(row)
}

// ListByOrder lists payment records for an order, oldest first.
func (r *Repository) ListByOrder(ctx context.Context, orderID int64) ([]*models.PaymentRecord, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+paymentColumns+` FROM payment_records
		WHERE order_id = $1 ORDER BY created_at ASC`, orderID)
	if err != nil {
		return nil, fmt.Errorf("repository.ListByOrder.Query: %w", err)
	}
	defer rows.Close()

	var out []*models.PaymentRecord
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, fmt.Errorf("repository.ListByOrder.scan: %w", err)
		}
		out = append(out, p)
	}
	return out, nil
}

// GetWallet retrieves a customer's wallet.
func (r *Repository) GetWallet(ctx context.Context, customerID int64) (*models.Wallet, error) {
	return getWallet(ctx, r.db, customerID)
}

type queryRower interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func getWallet(ctx context.Context, q queryRower, customerID int64) (*models.Wallet, error) {
	var w models.Wallet
	var balance int64
	err := q.QueryRow(ctx, `
		SELECT id, customer_id, balance, updated_at FROM wallets WHERE customer_id = $1`,
		customerID).Scan(&w.ID, &w.CustomerID, &balance, &w.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrWalletNotFound
		}
		return nil, fmt.Errorf("get wallet: %w", err)
	}
	w.Balance = models.Money(balance)
	return &w, nil
}

// ListWalletTransactions pages through a customer's ledger, newest first.
func (r *Repository) ListWalletTransactions(ctx context.Context, customerID int64, page, limit int) ([]*models.WalletTransaction, int, error) {
	offset := (page - 1) * limit
	rows, err := r.db.Query(ctx, `
		SELECT id, wallet_id, customer_id, order_id, transaction_type, amount, balance_before, balance_after, created_at
		FROM wallet_transactions
		WHERE customer_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3`, customerID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("repository.ListWalletTransactions.Query: %w", err)
	}
	defer rows.Close()

	var out []*models.WalletTransaction
	for rows.Next() {
		var t models.WalletTransaction
		var amount, before, after int64
		if err := rows.Scan(&t.ID, &t.WalletID, &t.CustomerID, &t.OrderID, &t.TransactionType, &amount, &before, &after, &t.CreatedAt); err != nil {
			return nil, 0, fmt.Errorf("repository.ListWalletTransactions.scan: %w", err)
		}
		t.Amount = models.Money(amount)
		t.BalanceBefore = models.Money(before)
		t.BalanceAfter = models.Money(after)
		out = append(out, &t)
	}

	var total int
	err = r.db.QueryRow(ctx, `SELECT COUNT(*) FROM wallet_transactions WHERE customer_id = $1`, customerID).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("repository.ListWalletTransactions.Count: %w", err)
	}
	return out, total, nil
}

func insertPayment(ctx context.Context, tx pgx.Tx, rec *models.PaymentRecord) (*models.PaymentRecord, error) {
	meta, err := marshalMetadata(rec.Metadata)
	if err != nil {
		return nil, fmt.Errorf("payment metadata: %w", err)
	}
	row := tx.QueryRow(ctx, `
		INSERT INTO payment_records (order_id, customer_id, amount, payment_method, payment_status, refund_amount, refund_reason, gateway_charge_id, metadata)
		VALUES ($1, $2, $3, $4, $5, 0, '', $6, $7)
		RETURNING `+paymentColumns,
		rec.OrderID, rec.CustomerID, int64(rec.Amount), rec.PaymentMethod, rec.PaymentStatus, rec.GatewayChargeID, meta)
	return scanPayment(row)
}

func insertHistory(ctx context.Context, tx pgx.Tx, orderID int64, action, description string, meta models.Metadata, staffID *int64) error {
	b, err := marshalMetadata(meta)
	if err != nil {
		return fmt.Errorf("history metadata: %w", err)
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO order_history (order_id, action, description, metadata, staff_id)
		VALUES ($1, $2, $3, $4, $5)`, orderID, action, description, b, staffID)
	if err != nil {
		return fmt.Errorf("insert order history: %w", err)
	}
	return nil
}

func setOrderPaymentStatus(ctx context.Context, tx pgx.Tx, orderID int64, status models.PaymentStatus) error {
	_, err := tx.Exec(ctx, `UPDATE orders SET payment_status = $1, updated_at = NOW() WHERE id = $2`, status, orderID)
	if err != nil {
		return fmt.Errorf("update order payment status: %w", err)
	}
	return nil
}

// CreateGatewayPayment records a card charge outcome. When markOrderStatus
// is non-empty the order's payment status is updated in the same transaction.
func (r *Repository) CreateGatewayPayment(ctx context.Context, rec *models.PaymentRecord, markOrderStatus models.PaymentStatus) (*models.PaymentRecord, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("repository.CreateGatewayPayment: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	created, err := insertPayment(ctx, tx, rec)
	if err != nil {
		return nil, fmt.Errorf("repository.CreateGatewayPayment: %w", err)
	}
	if markOrderStatus != "" {
		if err := setOrderPaymentStatus(ctx, tx, rec.OrderID, markOrderStatus); err != nil {
			return nil, fmt.Errorf("repository.CreateGatewayPayment: %w", err)
		}
	}
	if err := insertHistory(ctx, tx, rec.OrderID, "PAYMENT_"+string(rec.PaymentStatus),
		fmt.Sprintf("Card payment of %s (%s)", rec.Amount, rec.PaymentMethod), rec.Metadata, nil); err != nil {
		return nil, fmt.Errorf("repository.CreateGatewayPayment: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, wrapTxErr("repository.CreateGatewayPayment: commit", err)
	}
	return created, nil
}

// ApplyWalletPayment debits the wallet if the balance covers the amount and
// records the debit, ledger entry and payment row atomically.
func (r *Repository) ApplyWalletPayment(ctx context.Context, cmd WalletPaymentCommand) (*WalletPaymentResult, error) {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return nil, fmt.Errorf("repository.ApplyWalletPayment: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	wallet, err := getWallet(ctx, tx, cmd.CustomerID)
	if err != nil {
		return nil, err
	}
	if wallet.Balance < cmd.Amount {
		return nil, models.ErrInsufficientFunds
	}
	newBalance := wallet.Balance - cmd.Amount

	txn, err := insertWalletTransaction(ctx, tx, wallet, cmd.CustomerID, &cmd.OrderID, models.WalletPayment, -cmd.Amount)
	if err != nil {
		return nil, fmt.Errorf("repository.ApplyWalletPayment: %w", err)
	}

	payment, err := insertPayment(ctx, tx, &models.PaymentRecord{
		OrderID:       cmd.OrderID,
		CustomerID:    cmd.CustomerID,
		Amount:        cmd.Amount,
		PaymentMethod: models.MethodWallet,
		PaymentStatus: models.PaymentPaid,
		Metadata:      cmd.Metadata,
	})
	if err != nil {
		return nil, fmt.Errorf("repository.ApplyWalletPayment: %w", err)
	}

	if err := updateWalletBalance(ctx, tx, wallet.ID, newBalance); err != nil {
		return nil, fmt.Errorf("repository.ApplyWalletPayment: %w", err)
	}
	if cmd.MarkOrderPaid {
		if err := setOrderPaymentStatus(ctx, tx, cmd.OrderID, models.PaymentPaid); err != nil {
			return nil, fmt.Errorf("repository.ApplyWalletPayment: %w", err)
		}
	}
	if err := insertHistory(ctx, tx, cmd.OrderID, "PAYMENT_PAID",
		fmt.Sprintf("Wallet payment of %s", cmd.Amount), cmd.Metadata, cmd.ActorID); err != nil {
		return nil, fmt.Errorf("repository.ApplyWalletPayment: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, wrapTxErr("repository.ApplyWalletPayment: commit", err)
	}
	return &WalletPaymentResult{Payment: payment, Transaction: txn, NewBalance: newBalance}, nil
}

func insertWalletTransaction(ctx context.Context, tx pgx.Tx, wallet *models.Wallet, customerID int64, orderID *int64, typ models.WalletTransactionType, signedAmount models.Money) (*models.WalletTransaction, error) {
	after := wallet.Balance + signedAmount
	var t models.WalletTransaction
	var amount, before, afterDB int64
	err := tx.QueryRow(ctx, `
		INSERT INTO wallet_transactions (wallet_id, customer_id, order_id, transaction_type, amount, balance_before, balance_after)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, wallet_id, customer_id, order_id, transaction_type, amount, balance_before, balance_after, created_at`,
		wallet.ID, customerID, orderID, typ, int64(signedAmount), int64(wallet.Balance), int64(after)).
		Scan(&t.ID, &t.WalletID, &t.CustomerID, &t.OrderID, &t.TransactionType, &amount, &before, &afterDB, &t.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert wallet transaction: %w", err)
	}
	t.Amount = models.Money(amount)
	t.BalanceBefore = models.Money(before)
	t.BalanceAfter = models.Money(afterDB)
	return &t, nil
}

func updateWalletBalance(ctx context.Context, tx pgx.Tx, walletID int64, balance models.Money) error {
	_, err := tx.Exec(ctx, `UPDATE wallets SET balance = $1, updated_at = NOW() WHERE id = $2`, int64(balance), walletID)
	if err != nil {
		return fmt.Errorf("update wallet balance: %w", err)
	}
	return nil
}

// TopUpWallet credits a customer wallet, creating the wallet row on first use.
func (r *Repository) TopUpWallet(ctx context.Context, customerID int64, amount models.Money) (*models.Wallet, *models.WalletTransaction, error) {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return nil, nil, fmt.Errorf("repository.TopUpWallet: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	wallet, err := getWallet(ctx, tx, customerID)
	if errors.Is(err, models.ErrWalletNotFound) {
		wallet = &models.Wallet{CustomerID: customerID}
		var balance int64
		err = tx.QueryRow(ctx, `
			INSERT INTO wallets (customer_id, balance) VALUES ($1, 0)
			RETURNING id, customer_id, balance, updated_at`,
			customerID).Scan(&wallet.ID, &wallet.CustomerID, &balance, &wallet.UpdatedAt)
		wallet.Balance = models.Money(balance)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("repository.TopUpWallet: %w", err)
	}

	txn, err := insertWalletTransaction(ctx, tx, wallet, customerID, nil, models.WalletTopUp, amount)
	if err != nil {
		return nil, nil, fmt.Errorf("repository.TopUpWallet: %w", err)
	}
	wallet.Balance += amount
	if err := updateWalletBalance(ctx, tx, wallet.ID, wallet.Balance); err != nil {
		return nil, nil, fmt.Errorf("repository.TopUpWallet: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, nil, wrapTxErr("repository.TopUpWallet: commit", err)
	}
	return wallet, txn, nil
}

// refundStatus derives the record/order payment status from totals.
func refundStatus(refunded, amount models.Money) models.PaymentStatus {
	if refunded >= amount {
		return models.PaymentRefunded
	}
	return models.PaymentPartialRefund
}

// ApplyWalletRefund runs the wallet refund critical section under
// serializable isolation: the payment record is re-read fresh and the
// remaining refundable amount recomputed from that read, so two concurrent
// refunds cannot both pass validation. All five writes (ledger entry, credit
// record, original record update, wallet balance, history) commit together
// or not at all.
func (r *Repository) ApplyWalletRefund(ctx context.Context, cmd WalletRefundCommand) (*WalletRefundResult, error) {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return nil, fmt.Errorf("repository.ApplyWalletRefund: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	payment, err := scanPayment(tx.QueryRow(ctx, `SELECT `+paymentColumns+` FROM payment_records WHERE id = $1`, cmd.PaymentID))
	if err != nil {
		return nil, err
	}
	maxRefundable := payment.Amount - payment.RefundAmount
	if cmd.Amount > maxRefundable {
		return nil, fmt.Errorf("%w: requested %s, available %s", models.ErrRefundExceedsAvailable, cmd.Amount, maxRefundable)
	}

	wallet, err := getWallet(ctx, tx, cmd.CustomerID)
	if err != nil {
		return nil, err
	}

	txn, err := insertWalletTransaction(ctx, tx, wallet, cmd.CustomerID, &cmd.OrderID, models.WalletRefund, cmd.Amount)
	if err != nil {
		return nil, fmt.Errorf("repository.ApplyWalletRefund: %w", err)
	}
	newBalance := wallet.Balance + cmd.Amount

	credit, err := insertPayment(ctx, tx, &models.PaymentRecord{
		OrderID:       cmd.OrderID,
		CustomerID:    cmd.CustomerID,
		Amount:        cmd.Amount,
		PaymentMethod: models.MethodWallet,
		PaymentStatus: models.PaymentPaid,
		Metadata: models.Metadata{
			Kind: models.MetadataRefund,
			Refund: &models.RefundMetadata{
				OriginalPaymentID:   cmd.PaymentID,
				WalletTransactionID: txn.ID,
				Reason:              cmd.Reason,
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("repository.ApplyWalletRefund: %w", err)
	}

	refundedTotal := payment.RefundAmount + cmd.Amount
	status := refundStatus(refundedTotal, payment.Amount)
	_, err = tx.Exec(ctx, `
		UPDATE payment_records
		SET refund_amount = $1, refund_reason = $2, payment_status = $3, updated_at = NOW()
		WHERE id = $4`,
		int64(refundedTotal), cmd.Reason, status, cmd.PaymentID)
	if err != nil {
		return nil, fmt.Errorf("repository.ApplyWalletRefund: update original: %w", err)
	}

	if err := updateWalletBalance(ctx, tx, wallet.ID, newBalance); err != nil {
		return nil, fmt.Errorf("repository.ApplyWalletRefund: %w", err)
	}
	if err := setOrderPaymentStatus(ctx, tx, cmd.OrderID, status); err != nil {
		return nil, fmt.Errorf("repository.ApplyWalletRefund: %w", err)
	}
	if err := insertHistory(ctx, tx, cmd.OrderID, "REFUND_"+string(status),
		fmt.Sprintf("Wallet refund of %s: %s", cmd.Amount, cmd.Reason),
		credit.Metadata, cmd.ActorID); err != nil {
		return nil, fmt.Errorf("repository.ApplyWalletRefund: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, wrapTxErr("repository.ApplyWalletRefund: commit", err)
	}
	return &WalletRefundResult{
		RefundPayment:      credit,
		NewBalance:         newBalance,
		RefundedTotal:      refundedTotal,
		OrderPaymentStatus: status,
	}, nil
}

// ApplyGatewayRefund records the outcome of a refund the gateway already
// executed: the same record's cumulative refund amount is updated (the
// gateway tracks its refund by id, no local duplicate row is needed).
func (r *Repository) ApplyGatewayRefund(ctx context.Context, cmd GatewayRefundCommand) (*GatewayRefundResult, error) {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return nil, fmt.Errorf("repository.ApplyGatewayRefund: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	payment, err := scanPayment(tx.QueryRow(ctx, `SELECT `+paymentColumns+` FROM payment_records WHERE id = $1`, cmd.PaymentID))
	if err != nil {
		return nil, err
	}
	maxRefundable := payment.Amount - payment.RefundAmount
	if cmd.Amount > maxRefundable {
		return nil, fmt.Errorf("%w: requested %s, available %s", models.ErrRefundExceedsAvailable, cmd.Amount, maxRefundable)
	}

	refundedTotal := payment.RefundAmount + cmd.Amount
	status := refundStatus(refundedTotal, payment.Amount)
	_, err = tx.Exec(ctx, `
		UPDATE payment_records
		SET refund_amount = $1, refund_reason = $2, payment_status = $3, updated_at = NOW()
		WHERE id = $4`,
		int64(refundedTotal), cmd.Reason, status, cmd.PaymentID)
	if err != nil {
		return nil, fmt.Errorf("repository.ApplyGatewayRefund: update: %w", err)
	}

	if err := setOrderPaymentStatus(ctx, tx, cmd.OrderID, status); err != nil {
		return nil, fmt.Errorf("repository.ApplyGatewayRefund: %w", err)
	}
	meta := models.Metadata{
		Kind: models.MetadataRefund,
		Refund: &models.RefundMetadata{
			OriginalPaymentID: cmd.PaymentID,
			Reason:            cmd.Reason,
		},
	}
	if err := insertHistory(ctx, tx, cmd.OrderID, "REFUND_"+string(status),
		fmt.Sprintf("Gateway refund of %s (external id %s): %s", cmd.Amount, cmd.GatewayRefundID, cmd.Reason),
		meta, cmd.ActorID); err != nil {
		return nil, fmt.Errorf("repository.ApplyGatewayRefund: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, wrapTxErr("repository.ApplyGatewayRefund: commit", err)
	}
	return &GatewayRefundResult{RefundedTotal: refundedTotal, OrderPaymentStatus: status}, nil
}
