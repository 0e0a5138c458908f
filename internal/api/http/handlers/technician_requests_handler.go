package handlers

import (
	"context"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/field-service/internal/api/dto"
	"github.com/spec-kit/field-service/internal/auth"
	"github.com/spec-kit/field-service/internal/domain"
	"github.com/spec-kit/field-service/internal/store"
	apperrors "github.com/spec-kit/field-service/pkg/util/errorutil"
)

// TechnicianRequestsHandler manages technician workflow endpoints.
type TechnicianRequestsHandler struct {
	store *store.RequestStore
}

// NewTechnicianRequestsHandler constructs handler.
func NewTechnicianRequestsHandler(requestStore *store.RequestStore) *TechnicianRequestsHandler {
	return &TechnicianRequestsHandler{store: requestStore}
}

// List GET /technician/requests?view=open|mine.
func (h *TechnicianRequestsHandler) List(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	view := c.Query("view", "open")
	items := make([]dto.RequestResponse, 0)
	for _, req := range h.store.List() {
		switch view {
		case "open":
			if req.Status != domain.RequestStatusPending {
				continue
			}
		case "mine":
			if !req.AssignedTo(principal.Actor.ID) {
				continue
			}
		default:
			return apperrors.NewValidationError("view must be open or mine", map[string]any{"view": view})
		}
		items = append(items, dto.FromRequest(&req))
	}
	return c.JSON(fiber.Map{"data": items})
}

// Claim POST /technician/requests/:id/claim.
func (h *TechnicianRequestsHandler) Claim(c *fiber.Ctx) error {
	return h.mutate(c, h.store.Claim)
}

// Release POST /technician/requests/:id/release.
func (h *TechnicianRequestsHandler) Release(c *fiber.Ctx) error {
	return h.mutate(c, h.store.Release)
}

// Start POST /technician/requests/:id/start.
func (h *TechnicianRequestsHandler) Start(c *fiber.Ctx) error {
	return h.mutate(c, h.store.Start)
}

// Complete POST /technician/requests/:id/complete.
func (h *TechnicianRequestsHandler) Complete(c *fiber.Ctx) error {
	return h.mutate(c, h.store.Complete)
}

// Schedule POST /technician/requests/:id/schedule.
func (h *TechnicianRequestsHandler) Schedule(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	var payload dto.ScheduleRequestRequest
	if err := c.BodyParser(&payload); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if payload.ScheduledTime.IsZero() {
		return apperrors.NewValidationError("scheduled_time required", nil)
	}
	req, err := h.store.Schedule(c.UserContext(), principal.Actor, c.Params("id"), payload.ScheduledTime)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.FromRequest(&req)})
}

func (h *TechnicianRequestsHandler) mutate(c *fiber.Ctx, op func(ctx context.Context, actor domain.Actor, id string) (domain.Request, error)) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	req, err := op(c.UserContext(), principal.Actor, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.FromRequest(&req)})
}
