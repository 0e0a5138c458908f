package handlers

import (
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/spec-kit/field-service/internal/api/dto"
	"github.com/spec-kit/field-service/internal/auth"
	"github.com/spec-kit/field-service/internal/domain"
	"github.com/spec-kit/field-service/internal/store"
	apperrors "github.com/spec-kit/field-service/pkg/util/errorutil"
)

// RequestsHandler manages the student-facing request endpoints.
type RequestsHandler struct {
	store *store.RequestStore
}

// NewRequestsHandler constructs handler.
func NewRequestsHandler(requestStore *store.RequestStore) *RequestsHandler {
	return &RequestsHandler{store: requestStore}
}

// Create POST /requests.
func (h *RequestsHandler) Create(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	var payload dto.CreateRequestRequest
	if err := c.BodyParser(&payload); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if strings.TrimSpace(payload.Title) == "" || strings.TrimSpace(payload.Description) == "" {
		return apperrors.NewValidationError("title and description required", nil)
	}

	req := domain.Request{
		ID:          uuid.NewString(),
		Title:       strings.TrimSpace(payload.Title),
		Description: strings.TrimSpace(payload.Description),
		Location:    strings.TrimSpace(payload.Location),
		Category:    strings.TrimSpace(payload.Category),
		Priority:    payload.Priority,
		Status:      domain.RequestStatusPending,
		CreatedBy:   principal.Actor.ID,
		ImageURL:    payload.ImageURL,
	}
	if req.Priority == "" {
		req.Priority = domain.RequestPriorityMedium
	}

	if err := h.store.Add(c.UserContext(), req); err != nil {
		return err
	}
	// The gateway write is asynchronous; the authoritative copy arrives
	// via the change stream.
	return c.Status(http.StatusAccepted).JSON(fiber.Map{"data": dto.FromRequest(&req)})
}

// List GET /requests returns the caller's own requests.
func (h *RequestsHandler) List(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	statuses := parseStatusQuery(c)
	items := make([]dto.RequestResponse, 0)
	for _, req := range h.store.List() {
		if req.CreatedBy != principal.Actor.ID {
			continue
		}
		if len(statuses) > 0 && !containsStatus(statuses, req.Status) {
			continue
		}
		items = append(items, dto.FromRequest(&req))
	}
	return c.JSON(fiber.Map{"data": items})
}

// Get GET /requests/:id.
func (h *RequestsHandler) Get(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	req, found := h.store.Get(c.Params("id"))
	if !found {
		return apperrors.NewNotFound("request", map[string]any{"request_id": c.Params("id")})
	}
	if req.CreatedBy != principal.Actor.ID && !principal.Actor.IsAdmin() {
		return apperrors.NewForbidden("access denied")
	}
	return c.JSON(fiber.Map{"data": dto.FromRequest(&req)})
}

// Cancel POST /requests/:id/cancel.
func (h *RequestsHandler) Cancel(c *fiber.Ctx) error {
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

// Rate POST /requests/:id/rating.
func (h *RequestsHandler) Rate(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	var payload dto.RateRequestRequest
	if err := c.BodyParser(&payload); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if err := h.store.SubmitRating(c.UserContext(), principal.Actor, c.Params("id"), payload.Rating, payload.Comment); err != nil {
		return err
	}
	return c.Status(http.StatusAccepted).JSON(fiber.Map{"data": fiber.Map{"request_id": c.Params("id")}})
}

func parseStatusQuery(c *fiber.Ctx) []domain.RequestStatus {
	raw := c.Query("status")
	if raw == "" {
		return nil
	}
	var statuses []domain.RequestStatus
	for _, part := range strings.Split(raw, ",") {
		statuses = append(statuses, domain.RequestStatus(strings.ToUpper(strings.TrimSpace(part))))
	}
	return statuses
}

func containsStatus(statuses []domain.RequestStatus, status domain.RequestStatus) bool {
	for _, candidate := range statuses {
		if candidate == status {
			return true
		}
	}
	return false
}
