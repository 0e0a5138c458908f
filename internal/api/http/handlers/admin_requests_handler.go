package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/field-service/internal/api/dto"
	"github.com/spec-kit/field-service/internal/auth"
	"github.com/spec-kit/field-service/internal/domain"
	"github.com/spec-kit/field-service/internal/rules"
	"github.com/spec-kit/field-service/internal/store"
	apperrors "github.com/spec-kit/field-service/pkg/util/errorutil"
)

// AdminRequestsHandler manages admin override endpoints.
type AdminRequestsHandler struct {
	store *store.RequestStore
}

// NewAdminRequestsHandler constructs handler.
func NewAdminRequestsHandler(requestStore *store.RequestStore) *AdminRequestsHandler {
	return &AdminRequestsHandler{store: requestStore}
}

// List GET /admin/requests.
func (h *AdminRequestsHandler) List(c *fiber.Ctx) error {
	statuses := parseStatusQuery(c)
	items := make([]dto.RequestResponse, 0)
	for _, req := range h.store.List() {
		if len(statuses) > 0 && !containsStatus(statuses, req.Status) {
			continue
		}
		items = append(items, dto.FromRequest(&req))
	}
	return c.JSON(fiber.Map{"data": items})
}

// Assign POST /admin/requests/:id/assign places or overrides an assignment.
func (h *AdminRequestsHandler) Assign(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	var payload dto.AssignRequestRequest
	if err := c.BodyParser(&payload); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	req, err := h.store.Assign(c.UserContext(), principal.Actor, c.Params("id"), payload.TechnicianID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.FromRequest(&req)})
}

// SetPriority POST /admin/requests/:id/priority.
func (h *AdminRequestsHandler) SetPriority(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	var payload dto.UpdatePriorityRequest
	if err := c.BodyParser(&payload); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	switch payload.Priority {
	case domain.RequestPriorityLow, domain.RequestPriorityMedium, domain.RequestPriorityHigh, domain.RequestPriorityUrgent:
	default:
		return apperrors.NewValidationError("invalid priority", map[string]any{"priority": payload.Priority})
	}
	req, err := h.store.SetPriority(c.UserContext(), principal.Actor, c.Params("id"), payload.Priority)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.FromRequest(&req)})
}

// SetStatus POST /admin/requests/:id/status applies an explicit transition.
func (h *AdminRequestsHandler) SetStatus(c *fiber.Ctx) error {
	var payload dto.UpdateStatusRequest
	if err := c.BodyParser(&payload); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	id := c.Params("id")
	current, found := h.store.Get(id)
	if !found {
		return apperrors.NewNotFound("request", map[string]any{"request_id": id})
	}
	if !rules.CanTransition(current.Status, payload.Status) {
		return apperrors.NewConflict("invalid status transition", map[string]any{
			"from": current.Status,
			"to":   payload.Status,
		})
	}
	if err := h.store.UpdateStatus(c.UserContext(), id, payload.Status); err != nil {
		return err
	}
	updated, _ := h.store.Get(id)
	return c.JSON(fiber.Map{"data": dto.FromRequest(&updated)})
}

// Cancel POST /admin/requests/:id/cancel.
func (h *AdminRequestsHandler) Cancel(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	req, err := h.store.Cancel(c.UserContext(), principal.Actor, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.FromRequest(&req)})
}
