package assignments

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"laundry-dispatch/internal/middleware"
	"laundry-dispatch/internal/models"
)

// Handler handles HTTP requests for driver assignments.
type Handler struct {
	svc      ServiceInterface
	validate *validator.Validate
}

// NewHandler creates a new assignment handler.
func NewHandler(svc ServiceInterface) *Handler {
	return &Handler{
		svc:      svc,
		validate: validator.New(),
	}
}

// Create dispatches a driver (admin only; role checked in middleware).
func (h *Handler) Create(c echo.Context) error {
	actor := middleware.ActorFrom(c)

	var req models.CreateAssignmentRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{Message: "Invalid request body"})
	}
	if err := h.validate.Struct(req); err != nil {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{Message: "Validation failed: " + err.Error()})
	}

	a, err := h.svc.Create(c.Request().Context(), req, actor)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrOrderNotFound):
			return c.JSON(http.StatusNotFound, models.ErrorResponse{Message: "Order not found"})
		case errors.Is(err, models.ErrDriverUnavailable):
			return c.JSON(http.StatusUnprocessableEntity, models.ErrorResponse{Message: err.Error()})
		case errors.Is(err, models.ErrDuplicateAssignment),
			errors.Is(err, models.ErrSequenceViolation),
			errors.Is(err, models.ErrInvalidTransition):
			return c.JSON(http.StatusConflict, models.ErrorResponse{Message: err.Error()})
		}
		c.Logger().Error("Handler.Create: ", err)
		return c.JSON(http.StatusInternalServerError, models.ErrorResponse{Message: "Failed to create assignment"})
	}
	return c.JSON(http.StatusCreated, a)
}

// Advance moves an assignment forward (driver only).
func (h *Handler) Advance(c echo.Context) error {
	actor := middleware.ActorFrom(c)
	id, err := strconv.ParseInt(c.Param("assignmentId"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{Message: "Invalid assignment id"})
	}

	var req models.AdvanceAssignmentRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{Message: "Invalid request body"})
	}
	if err := h.validate.Struct(req); err != nil {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{Message: "Validation failed: " + err.Error()})
	}

	a, err := h.svc.Advance(c.Request().Context(), id, req, actor)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrAssignmentNotFound):
			return c.JSON(http.StatusNotFound, models.ErrorResponse{Message: "Assignment not found"})
		case errors.Is(err, models.ErrAccessDenied):
			return c.JSON(http.StatusForbidden, models.ErrorResponse{Message: err.Error()})
		case errors.Is(err, models.ErrTimeWindowExpired):
			return c.JSON(http.StatusUnprocessableEntity, models.ErrorResponse{Message: err.Error()})
		case errors.Is(err, models.ErrInvalidAssignmentTransition),
			errors.Is(err, models.ErrInvalidTransition):
			return c.JSON(http.StatusConflict, models.ErrorResponse{Message: err.Error()})
		}
		c.Logger().Error("Handler.Advance: ", err)
		return c.JSON(http.StatusInternalServerError, models.ErrorResponse{Message: "Failed to update assignment"})
	}
	return c.JSON(http.StatusOK, a)
}

// Cancel cancels an assignment (admin only).
func (h *Handler) Cancel(c echo.Context) error {
	actor := middleware.ActorFrom(c)
	id, err := strconv.ParseInt(c.Param("assignmentId"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{Message: "Invalid assignment id"})
	}

	var body struct {
		Reason string `json:"reason,omitempty"`
	}
	_ = c.Bind(&body)

	if err := h.svc.Cancel(c.Request().Context(), id, actor, body.Reason); err != nil {
		switch {
		case errors.Is(err, models.ErrAssignmentNotFound):
			return c.JSON(http.StatusNotFound, models.ErrorResponse{Message: "Assignment not found"})
		case errors.Is(err, models.ErrAssignmentNotCancellable),
			errors.Is(err, models.ErrInvalidAssignmentTransition):
			return c.JSON(http.StatusConflict, models.ErrorResponse{Message: err.Error()})
		}
		c.Logger().Error("Handler.Cancel: ", err)
		return c.JSON(http.StatusInternalServerError, models.ErrorResponse{Message: "Failed to cancel assignment"})
	}
	return c.NoContent(http.StatusNoContent)
}

// Reassign moves a failed assignment to a new driver (admin only).
func (h *Handler) Reassign(c echo.Context) error {
	actor := middleware.ActorFrom(c)
	id, err := strconv.ParseInt(c.Param("assignmentId"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{Message: "Invalid assignment id"})
	}

	var req models.ReassignRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{Message: "Invalid request body"})
	}
	if err := h.validate.Struct(req); err != nil {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{Message: "Validation failed: " + err.Error()})
	}

	a, err := h.svc.Reassign(c.Request().Context(), id, req, actor)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrAssignmentNotFound):
			return c.JSON(http.StatusNotFound, models.ErrorResponse{Message: "Assignment not found"})
		case errors.Is(err, models.ErrDriverUnavailable):
			return c.JSON(http.StatusUnprocessableEntity, models.ErrorResponse{Message: err.Error()})
		case errors.Is(err, models.ErrActiveAssignmentExists),
			errors.Is(err, models.ErrInvalidAssignmentTransition),
			errors.Is(err, models.ErrInvalidTransition):
			return c.JSON(http.StatusConflict, models.ErrorResponse{Message: err.Error()})
		}
		c.Logger().Error("Handler.Reassign: ", err)
		return c.JSON(http.StatusInternalServerError, models.ErrorResponse{Message: "Failed to reassign"})
	}
	return c.JSON(http.StatusOK, a)
}

// Get retrieves a single assignment.
func (h *Handler) Get(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("assignmentId"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{Message: "Invalid assignment id"})
	}
	a, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, models.ErrAssignmentNotFound) {
			return c.JSON(http.StatusNotFound, models.ErrorResponse{Message: "Assignment not found"})
		}
		c.Logger().Error("Handler.Get: ", err)
		return c.JSON(http.StatusInternalServerError, models.ErrorResponse{Message: "Failed to retrieve assignment"})
	}
	return c.JSON(http.StatusOK, a)
}

// ListMine lists the authenticated driver's assignments.
func (h *Handler) ListMine(c echo.Context) error {
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

	list, total, err := h.svc.ListByDriver(c.Request().Context(), actor.ID, page, limit)
	if err != nil {
		c.Logger().Error("Handler.ListMine: ", err)
		return c.JSON(http.StatusInternalServerError, models.ErrorResponse{Message: "Failed to list assignments"})
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"assignments": list, "total": total})
}

// ListByOrder lists all assignments for an order (admin only).
func (h *Handler) ListByOrder(c echo.Context) error {
	orderID, err := strconv.ParseInt(c.Param("orderId"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{Message: "Invalid order id"})
	}
	list, err := h.svc.ListByOrder(c.Request().Context(), orderID)
	if err != nil {
		c.Logger().Error("Handler.ListByOrder: ", err)
		return c.JSON(http.StatusInternalServerError, models.ErrorResponse{Message: "Failed to list assignments"})
	}
	return c.JSON(http.StatusOK, list)
}
