package payments

import (
	"context"
	"errors"
	"fmt"
	"log"

	"laundry-dispatch/internal/models"
	"laundry-dispatch/pkg/gateway"
)

// ServiceInterface defines the contract for the payment service.
type ServiceInterface interface {
	PayOrder(ctx context.Context, orderID int64, req models.PayOrderRequest, actor models.Actor) (*models.PaymentResult, error)
	Refund(ctx context.Context, paymentID int64, req models.RefundRequest, actor models.Actor) (*models.RefundResult, error)
	TopUp(ctx context.Context, actor models.Actor, req models.TopUpRequest) (*models.Wallet, error)
	GetWallet(ctx context.Context, customerID int64) (*models.Wallet, error)
	ListOrderPayments(ctx context.Context, orderID int64) ([]*models.PaymentRecord, error)
	ListWalletTransactions(ctx context.Context, customerID int64, page, limit int) ([]*models.WalletTransaction, int, error)
}

// Service implements the payment and refund engine.
type Service struct {
	repo     RepositoryInterface
	gw       gateway.Client
	currency string
}

// NewService creates a new payment service.
func NewService(repo RepositoryInterface, gw gateway.Client, currency string) *Service {
	return &Service{repo: repo, gw: gw, currency: currency}
}

// PayOrder settles an order's invoice by wallet, card, or a split of both.
func (s *Service) PayOrder(ctx context.Context, orderID int64, req models.PayOrderRequest, actor models.Actor) (*models.PaymentResult, error) {
	order, err := s.repo.FindOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if actor.Role == models.RoleCustomer && order.CustomerID != actor.ID {
		return nil, models.ErrOrderNotFound
	}
	if order.InvoiceTotal == nil {
		return nil, models.ErrInvoiceNotSet
	}
	if order.PaymentStatus == models.PaymentPaid {
		return nil, models.ErrOrderAlreadyPaid
	}
	total := *order.InvoiceTotal

	switch req.PaymentMethod {
	case models.MethodWallet:
		return s.payWithWallet(ctx, order, total, actor)
	case models.MethodCard, models.MethodTapPay:
		return s.payWithCard(ctx, order, total, req, actor)
	case models.MethodSplit:
		return s.paySplit(ctx, order, total, req, actor)
	default:
		return nil, fmt.Errorf("unsupported payment method %q", req.PaymentMethod)
	}
}

func (s *Service) payWithWallet(ctx context.Context, order *models.Order, total models.Money, actor models.Actor) (*models.PaymentResult, error) {
	res, err := s.repo.ApplyWalletPayment(ctx, WalletPaymentCommand{
		OrderID:       order.ID,
		CustomerID:    order.CustomerID,
		Amount:        total,
		ActorID:       &actor.ID,
		MarkOrderPaid: true,
	})
	if err != nil {
		return nil, err
	}
	return &models.PaymentResult{
		Payments:      []*models.PaymentRecord{res.Payment},
		PaymentStatus: models.PaymentPaid,
	}, nil
}

func (s *Service) payWithCard(ctx context.Context, order *models.Order, total models.Money, req models.PayOrderRequest, actor models.Actor) (*models.PaymentResult, error) {
	charge, err := s.gw.Charge(ctx, gateway.ChargeParams{
		Amount:          int64(total),
		Currency:        s.currency,
		PaymentMethodID: req.PaymentMethodID,
		Description:     "Laundry order " + order.OrderNumber,
	})
	if err != nil {
		return nil, err
	}

	status := models.PaymentPending
	markOrder := models.PaymentStatus("")
	if charge.Paid {
		status = models.PaymentPaid
		markOrder = models.PaymentPaid
	}
	rec, err := s.repo.CreateGatewayPayment(ctx, &models.PaymentRecord{
		OrderID:         order.ID,
		CustomerID:      order.CustomerID,
		Amount:          total,
		PaymentMethod:   req.PaymentMethod,
		PaymentStatus:   status,
		GatewayChargeID: charge.ChargeID,
	}, markOrder)
	if err != nil {
		// Money moved externally but local bookkeeping failed. Surface
		// loudly; a webhook or manual reconciliation has to settle it.
		log.Printf("CRITICAL: charge %s for order %d succeeded but recording failed: %v", charge.ChargeID, order.ID, err)
		return nil, fmt.Errorf("failed to record payment after successful charge: %w", err)
	}
	return &models.PaymentResult{
		Payments:      []*models.PaymentRecord{rec},
		PaymentStatus: status,
		RedirectURL:   charge.RedirectURL,
	}, nil
}

func (s *Service) paySplit(ctx context.Context, order *models.Order, total models.Money, req models.PayOrderRequest, actor models.Actor) (*models.PaymentResult, error) {
	walletPart := models.Money(req.WalletPortionMils)
	cardPart := models.Money(req.CardPortionMils)
	if walletPart <= 0 || cardPart <= 0 || walletPart+cardPart != total {
		return nil, fmt.Errorf("%w: %s + %s != %s", models.ErrSplitMismatch, walletPart, cardPart, total)
	}

	// Reject before any money moves if the wallet clearly cannot cover its
	// portion. Fast reject only; the debit transaction re-checks.
	wallet, err := s.repo.GetWallet(ctx, order.CustomerID)
	if err != nil {
		return nil, err
	}
	if wallet.Balance < walletPart {
		return nil, models.ErrInsufficientFunds
	}

	splitMeta := models.Metadata{
		Kind: models.MetadataSplitPayment,
		SplitPayment: &models.SplitPaymentMetadata{
			CounterpartMethod: models.MethodCard,
			WalletPortion:     walletPart,
			CardPortion:       cardPart,
		},
	}

	charge, err := s.gw.Charge(ctx, gateway.ChargeParams{
		Amount:          int64(cardPart),
		Currency:        s.currency,
		PaymentMethodID: req.PaymentMethodID,
		Description:     "Laundry order " + order.OrderNumber + " (split)",
	})
	if err != nil {
		return nil, err
	}

	if !charge.Paid {
		// The card leg needs customer action before any money moves. The
		// wallet stays untouched and the order stays PENDING; the split is
		// retried once the customer completes the redirect.
		cardRec, err := s.repo.CreateGatewayPayment(ctx, &models.PaymentRecord{
			OrderID:         order.ID,
			CustomerID:      order.CustomerID,
			Amount:          cardPart,
			PaymentMethod:   models.MethodCard,
			PaymentStatus:   models.PaymentPending,
			GatewayChargeID: charge.ChargeID,
			Metadata:        splitMeta,
		}, "")
		if err != nil {
			log.Printf("CRITICAL: split charge %s for order %d created but recording failed: %v", charge.ChargeID, order.ID, err)
			return nil, fmt.Errorf("failed to record card leg after charge creation: %w", err)
		}
		return &models.PaymentResult{
			Payments:      []*models.PaymentRecord{cardRec},
			PaymentStatus: models.PaymentPending,
			RedirectURL:   charge.RedirectURL,
		}, nil
	}

	cardRec, err := s.repo.CreateGatewayPayment(ctx, &models.PaymentRecord{
		OrderID:         order.ID,
		CustomerID:      order.CustomerID,
		Amount:          cardPart,
		PaymentMethod:   models.MethodCard,
		PaymentStatus:   models.PaymentPaid,
		GatewayChargeID: charge.ChargeID,
		Metadata:        splitMeta,
	}, "")
	if err != nil {
		log.Printf("CRITICAL: split charge %s for order %d succeeded but recording failed: %v", charge.ChargeID, order.ID, err)
		return nil, fmt.Errorf("failed to record card leg after successful charge: %w", err)
	}

	walletRes, err := s.repo.ApplyWalletPayment(ctx, WalletPaymentCommand{
		OrderID:       order.ID,
		CustomerID:    order.CustomerID,
		Amount:        walletPart,
		Metadata:      splitMeta,
		ActorID:       &actor.ID,
		MarkOrderPaid: true,
	})
	if err != nil {
		log.Printf("CRITICAL: card leg %s paid but wallet leg for order %d failed: %v", charge.ChargeID, order.ID, err)
		return nil, fmt.Errorf("card portion settled but wallet portion failed: %w", err)
	}

	return &models.PaymentResult{
		Payments:      []*models.PaymentRecord{cardRec, walletRes.Payment},
		PaymentStatus: models.PaymentPaid,
	}, nil
}

// Refund reverses part or all of a paid record. The checks before the
// critical section are fast rejects, not authoritative: the serializable
// transaction inside the repository re-reads the record and is the sole
// source of truth for the remaining refundable amount.
func (s *Service) Refund(ctx context.Context, paymentID int64, req models.RefundRequest, actor models.Actor) (*models.RefundResult, error) {
	if actor.Role != models.RoleSuperAdmin {
		return nil, models.ErrForbidden
	}
	amount := models.Money(req.AmountMils)
	if amount <= 0 {
		return nil, fmt.Errorf("%w: refund amount must be positive", models.ErrNotRefundable)
	}

	payment, err := s.repo.FindPayment(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if payment.OrderID != req.OrderID || payment.CustomerID != req.CustomerID {
		return nil, models.ErrPaymentNotFound
	}
	if payment.PaymentStatus != models.PaymentPaid && payment.PaymentStatus != models.PaymentPartialRefund {
		return nil, fmt.Errorf("%w: payment status is %s", models.ErrNotRefundable, payment.PaymentStatus)
	}
	if !payment.Refundable() {
		return nil, models.ErrNotRefundable
	}

	if payment.PaymentMethod.IsGateway() {
		return s.refundViaGateway(ctx, payment, amount, req, actor)
	}
	return s.refundToWallet(ctx, payment, amount, req, actor)
}

func (s *Service) refundToWallet(ctx context.Context, payment *models.PaymentRecord, amount models.Money, req models.RefundRequest, actor models.Actor) (*models.RefundResult, error) {
	res, err := s.repo.ApplyWalletRefund(ctx, WalletRefundCommand{
		PaymentID:  payment.ID,
		OrderID:    payment.OrderID,
		CustomerID: payment.CustomerID,
		Amount:     amount,
		Reason:     req.RefundReason,
		ActorID:    &actor.ID,
	})
	if err != nil {
		if errors.Is(err, models.ErrRefundExceedsAvailable) {
			// Anomaly signal: a request passed the fast checks but failed
			// the authoritative one, which only happens under concurrent
			// refunds or a tampered request.
			log.Printf("SEVERE: refund anomaly on payment %d (order %d): %v", payment.ID, payment.OrderID, err)
		}
		return nil, err
	}
	return &models.RefundResult{
		PaymentID:       payment.ID,
		RefundPaymentID: &res.RefundPayment.ID,
		NewBalance:      &res.NewBalance,
		RefundedTotal:   res.RefundedTotal,
	}, nil
}

func (s *Service) refundViaGateway(ctx context.Context, payment *models.PaymentRecord, amount models.Money, req models.RefundRequest, actor models.Actor) (*models.RefundResult, error) {
	// The gateway call happens before the local transaction; the gateway
	// is idempotent against its own refund id and its answer is
	// authoritative for the external movement. The transaction then
	// re-validates local state and records the outcome.
	gwRef, err := s.gw.CreateRefund(ctx, payment.GatewayChargeID, int64(amount), req.RefundReason)
	if err != nil {
		return nil, err
	}

	res, err := s.repo.ApplyGatewayRefund(ctx, GatewayRefundCommand{
		PaymentID:       payment.ID,
		OrderID:         payment.OrderID,
		CustomerID:      payment.CustomerID,
		Amount:          amount,
		Reason:          req.RefundReason,
		GatewayRefundID: gwRef.ID,
		ActorID:         &actor.ID,
	})
	if err != nil {
		if errors.Is(err, models.ErrRefundExceedsAvailable) {
			log.Printf("SEVERE: refund anomaly on payment %d (order %d), gateway refund %s already executed: %v",
				payment.ID, payment.OrderID, gwRef.ID, err)
		}
		return nil, err
	}
	return &models.RefundResult{
		PaymentID:       payment.ID,
		GatewayRefundID: gwRef.ID,
		RefundedTotal:   res.RefundedTotal,
	}, nil
}

// TopUp credits the actor's own wallet.
func (s *Service) TopUp(ctx context.Context, actor models.Actor, req models.TopUpRequest) (*models.Wallet, error) {
	wallet, _, err := s.repo.TopUpWallet(ctx, actor.ID, models.Money(req.AmountMils))
	if err != nil {
		return nil, fmt.Errorf("service.TopUp: %w", err)
	}
	return wallet, nil
}

// GetWallet retrieves a customer's wallet.
func (s *Service) GetWallet(ctx context.Context, customerID int64) (*models.Wallet, error) {
	return s.repo.GetWallet(ctx, customerID)
}

// ListOrderPayments lists all payment records for an order.
func (s *Service) ListOrderPayments(ctx context.Context, orderID int64) ([]*models.PaymentRecord, error) {
	return s.repo.ListByOrder(ctx, orderID)
}

// ListWalletTransactions pages through a customer's ledger.
func (s *Service) ListWalletTransactions(ctx context.Context, customerID int64, page, limit int) ([]*models.WalletTransaction, int, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	return s.repo.ListWalletTransactions(ctx, customerID, page, limit)
}
