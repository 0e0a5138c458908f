package dto

import (
	"time"

	"github.com/spec-kit/field-service/internal/domain"
)

// CreateRequestRequest is the payload for filing a new service request.
type CreateRequestRequest struct {
	Title       string                 `json:"title"`
	Description string                 `json:"description"`
	Location    string                 `json:"location"`
	Category    string                 `json:"category"`
	Priority    domain.RequestPriority `json:"priority"`
	ImageURL    *string                `json:"image_url,omitempty"`
}

// AssignRequestRequest carries the admin assignment target.
type AssignRequestRequest struct {
	TechnicianID string `json:"technician_id"`
}

// ScheduleRequestRequest carries the appointment time.
type ScheduleRequestRequest struct {
	ScheduledTime time.Time `json:"scheduled_time"`
}

// UpdatePriorityRequest carries a priority change.
type UpdatePriorityRequest struct {
	Priority domain.RequestPriority `json:"priority"`
}

// UpdateStatusRequest carries an explicit status change.
type UpdateStatusRequest struct {
	Status domain.RequestStatus `json:"status"`
}

// RateRequestRequest carries the one-time rating.
type RateRequestRequest struct {
	Rating  int    `json:"rating"`
	Comment string `json:"comment,omitempty"`
}

// RequestResponse is the wire shape of a service request.
type RequestResponse struct {
	ID                   string                   `json:"id"`
	Title                string                   `json:"title"`
	Description          string                   `json:"description"`
	Location             string                   `json:"location"`
	Category             string                   `json:"category"`
	Priority             domain.RequestPriority   `json:"priority"`
	Status               domain.RequestStatus     `json:"status"`
	CreatedBy            string                   `json:"created_by"`
	AssignedTechnicianID *string                  `json:"assigned_technician_id,omitempty"`
	AssignmentSource     *domain.AssignmentSource `json:"assignment_source,omitempty"`
	AssignedByUserID     *string                  `json:"assigned_by_user_id,omitempty"`
	DateCreated          time.Time                `json:"date_created"`
	ScheduledTime        *time.Time               `json:"scheduled_time,omitempty"`
	Rating               *int                     `json:"rating,omitempty"`
	RatingComment        *string                  `json:"rating_comment,omitempty"`
	ImageURL             *string                  `json:"image_url,omitempty"`
}

// FromRequest maps the domain entity to its wire shape.
func FromRequest(req *domain.Request) RequestResponse {
	return RequestResponse{
		ID:                   req.ID,
		Title:                req.Title,
		Description:          req.Description,
		Location:             req.Location,
		Category:             req.Category,
		Priority:             req.Priority,
		Status:               req.Status,
		CreatedBy:            req.CreatedBy,
		AssignedTechnicianID: req.AssignedTechnicianID,
		AssignmentSource:     req.AssignmentSource,
		AssignedByUserID:     req.AssignedByUserID,
		DateCreated:          req.DateCreated,
		ScheduledTime:        req.ScheduledTime,
		Rating:               req.Rating,
		RatingComment:        req.RatingComment,
		ImageURL:             req.ImageURL,
	}
}
