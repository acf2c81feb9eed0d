package orders

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"laundry-dispatch/internal/middleware"
	"laundry-dispatch/internal/models"
)

// Handler handles HTTP requests for orders.
type Handler struct {
	svc      ServiceInterface
	validate *validator.Validate
}

// NewHandler creates a new order handler.
func NewHandler(svc ServiceInterface) *Handler {
	return &Handler{
		svc:      svc,
		validate: validator.New(),
	}
}

func (h *Handler) CreateOrder(c echo.Context) error {
	actor := middleware.ActorFrom(c)

	var req models.CreateOrderRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{Message: "Invalid request body"})
	}

	order, err := h.svc.CreateOrder(c.Request().Context(), actor.ID, req)
	if err != nil {
		c.Logger().Error("Handler.CreateOrder: ", err)
		return c.JSON(http.StatusInternalServerError, models.ErrorResponse{Message: "Failed to create order"})
	}
	return c.JSON(http.StatusCreated, order)
}

func (h *Handler) GetOrderDetails(c echo.Context) error {
	actor := middleware.ActorFrom(c)
	orderID, err := parseID(c, "orderId")
	if err != nil {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{Message: "Invalid order id"})
	}

	order, err := h.svc.GetOrderDetails(c.Request().Context(), orderID, actor)
	if err != nil {
		if errors.Is(err, models.ErrOrderNotFound) {
			return c.JSON(http.StatusNotFound, models.ErrorResponse{Message: "Order not found"})
		}
		c.Logger().Error("Handler.GetOrderDetails: ", err)
		return c.JSON(http.StatusInternalServerError, models.ErrorResponse{Message: "Failed to retrieve order details"})
	}
	return c.JSON(http.StatusOK, order)
}

func (h *Handler) ListMyOrders(c echo.Context) error {
	actor := middleware.ActorFrom(c)
	page, limit := pagination(c)

	orders, total, err := h.svc.ListUserOrders(c.Request().Context(), actor.ID, page, limit)
	if err != nil {
		c.Logger().Error("Handler.ListMyOrders: ", err)
		return c.JSON(http.StatusInternalServerError, models.ErrorResponse{Message: "Failed to retrieve orders"})
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"orders": orders, "total": total})
}

func (h *Handler) ListAllOrders(c echo.Context) error {
	// Role check is done in middleware
	page, limit := pagination(c)

	orders, total, err := h.svc.ListAllOrders(c.Request().Context(), page, limit)
	if err != nil {
		c.Logger().Error("Handler.ListAllOrders: ", err)
		return c.JSON(http.StatusInternalServerError, models.ErrorResponse{Message: "Failed to list all orders"})
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"orders": orders, "total": total})
}

func (h *Handler) CancelOrder(c echo.Context) error {
	actor := middleware.ActorFrom(c)
	orderID, err := parseID(c, "orderId")
	if err != nil {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{Message: "Invalid order id"})
	}

	var body struct {
		Reason string `json:"reason,omitempty"`
	}
	_ = c.Bind(&body)

	if err := h.svc.CancelOrder(c.Request().Context(), orderID, actor, body.Reason); err != nil {
		if errors.Is(err, models.ErrOrderNotFound) {
			return c.JSON(http.StatusNotFound, models.ErrorResponse{Message: "Order not found"})
		}
		if errors.Is(err, models.ErrOrderNotCancellable) || errors.Is(err, models.ErrInvalidTransition) {
			return c.JSON(http.StatusConflict, models.ErrorResponse{Message: err.Error()})
		}
		c.Logger().Error("Handler.CancelOrder: ", err)
		return c.JSON(http.StatusInternalServerError, models.ErrorResponse{Message: "Failed to cancel order"})
	}
	return c.NoContent(http.StatusNoContent)
}

// Transition applies an admin/facility status change through the status machine.
func (h *Handler) Transition(c echo.Context) error {
	actor := middleware.ActorFrom(c)
	orderID, err := parseID(c, "orderId")
	if err != nil {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{Message: "Invalid order id"})
	}

	var req models.TransitionRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{Message: "Invalid request body"})
	}
	if err := h.validate.Struct(req); err != nil {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{Message: "Validation failed: " + err.Error()})
	}

	order, err := h.svc.Transition(c.Request().Context(), orderID, req, actor)
	if err != nil {
		if errors.Is(err, models.ErrOrderNotFound) {
			return c.JSON(http.StatusNotFound, models.ErrorResponse{Message: "Order not found"})
		}
		if errors.Is(err, models.ErrInvalidTransition) {
			return c.JSON(http.StatusConflict, models.ErrorResponse{Message: err.Error()})
		}
		c.Logger().Error("Handler.Transition: ", err)
		return c.JSON(http.StatusInternalServerError, models.ErrorResponse{Message: "Failed to update order status"})
	}
	return c.JSON(http.StatusOK, order)
}

func (h *Handler) SetInvoiceTotal(c echo.Context) error {
	actor := middleware.ActorFrom(c)
	orderID, err := parseID(c, "orderId")
	if err != nil {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{Message: "Invalid order id"})
	}

	var req models.SetInvoiceRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{Message: "Invalid request body"})
	}
	if err := h.validate.Struct(req); err != nil {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{Message: "Validation failed: " + err.Error()})
	}

	order, err := h.svc.SetInvoiceTotal(c.Request().Context(), orderID, req, actor)
	if err != nil {
		if errors.Is(err, models.ErrOrderNotFound) {
			return c.JSON(http.StatusNotFound, models.ErrorResponse{Message: "Order not found"})
		}
		if errors.Is(err, models.ErrInvoiceAlreadySet) {
			return c.JSON(http.StatusConflict, models.ErrorResponse{Message: err.Error()})
		}
		c.Logger().Error("Handler.SetInvoiceTotal: ", err)
		return c.JSON(http.StatusInternalServerError, models.ErrorResponse{Message: "Failed to set invoice total"})
	}
	return c.JSON(http.StatusOK, order)
}

func (h *Handler) GetHistory(c echo.Context) error {
	orderID, err := parseID(c, "orderId")
	if err != nil {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{Message: "Invalid order id"})
	}

	entries, err := h.svc.GetHistory(c.Request().Context(), orderID)
	if err != nil {
		c.Logger().Error("Handler.GetHistory: ", err)
		return c.JSON(http.StatusInternalServerError, models.ErrorResponse{Message: "Failed to retrieve order history"})
	}
	return c.JSON(http.StatusOK, entries)
}

func parseID(c echo.Context, name string) (int64, error) {
	return strconv.ParseInt(c.Param(name), 10, 64)
}

func pagination(c echo.Context) (int, int) {
	page := 1
	limit := 10
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
	return page, limit
}
