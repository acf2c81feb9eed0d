package payments

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"laundry-dispatch/internal/middleware"
	"laundry-dispatch/internal/models"
)

// Handler handles HTTP requests for payments, refunds and wallets.
type Handler struct {
	svc      ServiceInterface
	validate *validator.Validate
}

// NewHandler creates a new payment handler.
func NewHandler(svc ServiceInterface) *Handler {
	return &Handler{
		svc:      svc,
		validate: validator.New(),
	}
}

// PayOrder settles an order's invoice.
func (h *Handler) PayOrder(c echo.Context) error {
	actor := middleware.ActorFrom(c)
	orderID, err := strconv.ParseInt(c.Param("orderId"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{Message: "Invalid order id"})
	}

	var req models.PayOrderRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{Message: "Invalid request body"})
	}
	if err := h.validate.Struct(req); err != nil {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{Message: "Validation failed: " + err.Error()})
	}

	result, err := h.svc.PayOrder(c.Request().Context(), orderID, req, actor)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrOrderNotFound):
			return c.JSON(http.StatusNotFound, models.ErrorResponse{Message: "Order not found"})
		case errors.Is(err, models.ErrInvoiceNotSet),
			errors.Is(err, models.ErrSplitMismatch):
			return c.JSON(http.StatusUnprocessableEntity, models.ErrorResponse{Message: err.Error()})
		case errors.Is(err, models.ErrOrderAlreadyPaid),
			errors.Is(err, models.ErrSerialization):
			return c.JSON(http.StatusConflict, models.ErrorResponse{Message: err.Error()})
		case errors.Is(err, models.ErrInsufficientFunds),
			errors.Is(err, models.ErrWalletNotFound):
			return c.JSON(http.StatusUnprocessableEntity, models.ErrorResponse{Message: err.Error()})
		case errors.Is(err, models.ErrGatewayFailure):
			return c.JSON(http.StatusBadGateway, models.ErrorResponse{Message: err.Error()})
		}
		c.Logger().Error("Handler.PayOrder: ", err)
		return c.JSON(http.StatusInternalServerError, models.ErrorResponse{Message: "Failed to process payment"})
	}
	return c.JSON(http.StatusOK, result)
}

// Refund reverses part or all of a payment (super admin only).
func (h *Handler) Refund(c echo.Context) error {
	actor := middleware.ActorFrom(c)
	paymentID, err := strconv.ParseInt(c.Param("paymentId"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{Message: "Invalid payment id"})
	}

	var req models.RefundRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{Message: "Invalid request body"})
	}
	if err := h.validate.Struct(req); err != nil {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{Message: "Validation failed: " + err.Error()})
	}

	result, err := h.svc.Refund(c.Request().Context(), paymentID, req, actor)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrForbidden):
			return c.JSON(http.StatusForbidden, models.ErrorResponse{Message: "Access denied"})
		case errors.Is(err, models.ErrPaymentNotFound):
			return c.JSON(http.StatusNotFound, models.ErrorResponse{Message: "Payment record not found"})
		case errors.Is(err, models.ErrNotRefundable):
			return c.JSON(http.StatusUnprocessableEntity, models.ErrorResponse{Message: err.Error()})
		case errors.Is(err, models.ErrRefundExceedsAvailable),
			errors.Is(err, models.ErrSerialization):
			return c.JSON(http.StatusConflict, models.ErrorResponse{Message: err.Error()})
		case errors.Is(err, models.ErrWalletNotFound):
			return c.JSON(http.StatusUnprocessableEntity, models.ErrorResponse{Message: err.Error()})
		case errors.Is(err, models.ErrGatewayFailure):
			return c.JSON(http.StatusBadGateway, models.ErrorResponse{Message: err.Error()})
		}
		c.Logger().Error("Handler.Refund: ", err)
		return c.JSON(http.StatusInternalServerError, models.ErrorResponse{Message: "Failed to process refund"})
	}
	return c.JSON(http.StatusOK, result)
}

// TopUp credits the authenticated customer's wallet.
func (h *Handler) TopUp(c echo.Context) error {
	actor := middleware.ActorFrom(c)

	var req models.TopUpRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{Message: "Invalid request body"})
	}
	if err := h.validate.Struct(req); err != nil {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{Message: "Validation failed: " + err.Error()})
	}

	wallet, err := h.svc.TopUp(c.Request().Context(), actor, req)
	if err != nil {
		c.Logger().Error("Handler.TopUp: ", err)
		return c.JSON(http.StatusInternalServerError, models.ErrorResponse{Message: "Failed to top up wallet"})
	}
	return c.JSON(http.StatusOK, wallet)
}

// GetMyWallet returns the authenticated customer's wallet.
func (h *Handler) GetMyWallet(c echo.Context) error {
	actor := middleware.ActorFrom(c)
	wallet, err := h.svc.GetWallet(c.Request().Context(), actor.ID)
	if err != nil {
		if errors.Is(err, models.ErrWalletNotFound) {
			return c.JSON(http.StatusNotFound, models.ErrorResponse{Message: "Wallet not found"})
		}
		c.Logger().Error("Handler.GetMyWallet: ", err)
		return c.JSON(http.StatusInternalServerError, models.ErrorResponse{Message: "Failed to retrieve wallet"})
	}
	return c.JSON(http.StatusOK, wallet)
}

// ListOrderPayments lists payment records for an order (admin only).
func (h *Handler) ListOrderPayments(c echo.Context) error {
	orderID, err := strconv.ParseInt(c.Param("orderId"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{Message: "Invalid order id"})
	}
	payments, err := h.svc.ListOrderPayments(c.Request().Context(), orderID)
	if err != nil {
		c.Logger().Error("Handler.ListOrderPayments: ", err)
		return c.JSON(http.StatusInternalServerError, models.ErrorResponse{Message: "Failed to list payments"})
	}
	return c.JSON(http.StatusOK, payments)
}

// ListMyWalletTransactions pages through the customer's ledger.
func (h *Handler) ListMyWalletTransactions(c echo.Context) error {
	actor := middleware.ActorFrom(c)
	page := 1
	limit := 20
	if pageStr := c.QueryParam("page"); pageStr != "" {
		if p, err := strconv.Atoi(pageStr); err == nil && p > 0 {
			page = p
		}
	}
	if limitStr := c.QueryParam("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 && l <= 100 {
			limit = l
		}
	}

	txns, total, err := h.svc.ListWalletTransactions(c.Request().Context(), actor.ID, page, limit)
	if err != nil {
		c.Logger().Error("Handler.ListMyWalletTransactions: ", err)
		return c.JSON(http.StatusInternalServerError, models.ErrorResponse{Message: "Failed to list wallet transactions"})
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"transactions": txns, "total": total})
}
