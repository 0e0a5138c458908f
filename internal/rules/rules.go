// Package rules holds the pure decision logic for the request lifecycle:
// which status transitions are legal, who may claim or release an
// assignment, and how scheduling and rating are guarded. Nothing here
// performs I/O; callers apply the returned copy through the store.
package rules

import (
	"strings"
	"time"

	"github.com/spec-kit/field-service/internal/domain"
	apperrors "github.com/spec-kit/field-service/pkg/util/errorutil"
)

var allowedTransitions = map[domain.RequestStatus][]domain.RequestStatus{
	domain.RequestStatusPending:   {domain.RequestStatusAssigned, domain.RequestStatusCancelled},
	domain.RequestStatusAssigned:  {domain.RequestStatusActive, domain.RequestStatusPending, domain.RequestStatusCancelled},
	domain.RequestStatusActive:    {domain.RequestStatusCompleted, domain.RequestStatusCancelled},
	domain.RequestStatusCompleted: {},
	domain.RequestStatusCancelled: {},
}

// CanTransition reports whether the status change appears in the
// lifecycle table. Terminal states admit nothing.
func CanTransition(current, next domain.RequestStatus) bool {
	for _, candidate := range allowedTransitions[current] {
		if candidate == next {
			return true
		}
	}
	return false
}

// Claim lets a technician self-assign a pending, unassigned request.
func Claim(req domain.Request, actor domain.Actor) (domain.Request, error) {
	if !actor.IsTechnician() && !actor.IsAdmin() {
		return req, apperrors.NewForbidden("technician role required to claim")
	}
	if req.Status != domain.RequestStatusPending {
		return req, apperrors.NewConflict("request is not pending", detail(req))
	}
	if req.IsAssigned() {
		return req, apperrors.NewConflict("request already assigned", detail(req))
	}
	techID := actor.ID
	source := domain.AssignmentSourceTechnician
	req.Status = domain.RequestStatusAssigned
	req.AssignedTechnicianID = &techID
	req.AssignmentSource = &source
	req.AssignedByUserID = &techID
	return req, nil
}

// Release lets the assigned technician undo their own claim. Assignments
// placed by an admin cannot be self-removed.
func Release(req domain.Request, actor domain.Actor) (domain.Request, error) {
	if req.Status != domain.RequestStatusAssigned {
		return req, apperrors.NewConflict("request is not in an assigned state", detail(req))
	}
	if !req.AssignedTo(actor.ID) {
		return req, apperrors.NewForbidden("request assigned to another technician")
	}
	if req.AssignmentSource == nil || *req.AssignmentSource != domain.AssignmentSourceTechnician {
		return req, apperrors.NewForbidden("admin-sourced assignment cannot be self-removed")
	}
	req.Status = domain.RequestStatusPending
	req.AssignedTechnicianID = nil
	req.AssignmentSource = nil
	req.AssignedByUserID = nil
	req.ScheduledTime = nil
	return req, nil
}

// Assign lets an admin place or override an assignment.
func Assign(req domain.Request, actor domain.Actor, technicianID string) (domain.Request, error) {
	if !actor.IsAdmin() {
		return req, apperrors.NewForbidden("admin role required to assign")
	}
	if strings.TrimSpace(technicianID) == "" {
		return req, apperrors.NewValidationError("technician id required", nil)
	}
	if req.Status.IsTerminal() {
		return req, apperrors.NewConflict("request is terminal", detail(req))
	}
	adminID := actor.ID
	source := domain.AssignmentSourceAdmin
	if req.Status == domain.RequestStatusPending {
		req.Status = domain.RequestStatusAssigned
	}
	if !req.AssignedTo(technicianID) {
		// reassignment invalidates the previous technician's schedule
		req.ScheduledTime = nil
	}
	req.AssignedTechnicianID = &technicianID
	req.AssignmentSource = &source
	req.AssignedByUserID = &adminID
	return req, nil
}

// Start moves an assigned request into active work.
func Start(req domain.Request, actor domain.Actor) (domain.Request, error) {
	if !req.AssignedTo(actor.ID) {
		return req, apperrors.NewForbidden("only the assigned technician may start work")
	}
	if !CanTransition(req.Status, domain.RequestStatusActive) {
		return req, apperrors.NewConflict("request cannot start from current status", detail(req))
	}
	req.Status = domain.RequestStatusActive
	return req, nil
}

// Complete finishes active work. The assignment is retained for history.
func Complete(req domain.Request, actor domain.Actor) (domain.Request, error) {
	if !req.AssignedTo(actor.ID) {
		return req, apperrors.NewForbidden("only the assigned technician may complete")
	}
	if !CanTransition(req.Status, domain.RequestStatusCompleted) {
		return req, apperrors.NewConflict("request cannot complete from current status", detail(req))
	}
	req.Status = domain.RequestStatusCompleted
	return req, nil
}

// Cancel terminates a request. The creator may cancel their own request;
// admins may cancel any non-terminal request.
func Cancel(req domain.Request, actor domain.Actor) (domain.Request, error) {
	if req.CreatedBy != actor.ID && !actor.IsAdmin() {
		return req, apperrors.NewForbidden("only the creator may cancel")
	}
	if !CanTransition(req.Status, domain.RequestStatusCancelled) {
		return req, apperrors.NewConflict("request cannot be cancelled from current status", detail(req))
	}
	req.Status = domain.RequestStatusCancelled
	return req, nil
}

// Schedule sets or replaces the appointment time. Only the assigned
// technician may schedule, and only while the request is in their hands.
func Schedule(req domain.Request, actor domain.Actor, at time.Time) (domain.Request, error) {
	if !req.AssignedTo(actor.ID) {
		return req, apperrors.NewForbidden("only the assigned technician may schedule")
	}
	if req.Status != domain.RequestStatusAssigned && req.Status != domain.RequestStatusActive {
		return req, apperrors.NewConflict("request cannot be scheduled in current status", detail(req))
	}
	req.ScheduledTime = &at
	return req, nil
}

// Rate captures the creator's rating exactly once, after completion.
func Rate(req domain.Request, actor domain.Actor, rating int, comment string) (domain.Request, error) {
	if req.CreatedBy != actor.ID {
		return req, apperrors.NewForbidden("only the creator may rate")
	}
	if req.Status != domain.RequestStatusCompleted {
		return req, apperrors.NewConflict("request is not completed", detail(req))
	}
	if req.HasRating() {
		return req, apperrors.NewConflict("rating already submitted", detail(req))
	}
	if rating < 1 || rating > 5 {
		return req, apperrors.NewValidationError("rating must be between 1 and 5", map[string]any{"rating": rating})
	}
	req.Rating = &rating
	if trimmed := strings.TrimSpace(comment); trimmed != "" {
		req.RatingComment = &trimmed
	}
	return req, nil
}

func detail(req domain.Request) map[string]any {
	return map[string]any{
		"request_id": req.ID,
		"status":     req.Status,
	}
}
