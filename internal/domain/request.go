package domain

import "time"

// RequestStatus enumerates lifecycle states for service requests.
type RequestStatus string

const (
	RequestStatusPending   RequestStatus = "PENDING"
	RequestStatusAssigned  RequestStatus = "ASSIGNED"
	RequestStatusActive    RequestStatus = "ACTIVE"
	RequestStatusCompleted RequestStatus = "COMPLETED"
	RequestStatusCancelled RequestStatus = "CANCELLED"
)

// IsTerminal reports whether no further status transition is permitted.
func (s RequestStatus) IsTerminal() bool {
	return s == RequestStatusCompleted || s == RequestStatusCancelled
}

// RequestPriority enumerates urgency levels.
type RequestPriority string

const (
	RequestPriorityLow    RequestPriority = "LOW"
	RequestPriorityMedium RequestPriority = "MEDIUM"
	RequestPriorityHigh   RequestPriority = "HIGH"
	RequestPriorityUrgent RequestPriority = "URGENT"
)

// AssignmentSource records who performed the current assignment. It
// determines whether the assigned technician may self-unassign.
type AssignmentSource string

const (
	AssignmentSourceAdmin      AssignmentSource = "ADMIN"
	AssignmentSourceTechnician AssignmentSource = "TECHNICIAN"
)

// Request is the aggregate for field-service tickets.
type Request struct {
	ID                   string            `json:"id"`
	Title                string            `json:"title"`
	Description          string            `json:"description"`
	Location             string            `json:"location"`
	Category             string            `json:"category"`
	Priority             RequestPriority   `json:"priority"`
	Status               RequestStatus     `json:"status"`
	CreatedBy            string            `json:"created_by"`
	AssignedTechnicianID *string           `json:"assigned_technician_id,omitempty"`
	AssignmentSource     *AssignmentSource `json:"assignment_source,omitempty"`
	AssignedByUserID     *string           `json:"assigned_by_user_id,omitempty"`
	DateCreated          time.Time         `json:"date_created"`
	ScheduledTime        *time.Time        `json:"scheduled_time,omitempty"`
	Rating               *int              `json:"rating,omitempty"`
	RatingComment        *string           `json:"rating_comment,omitempty"`
	ImageURL             *string           `json:"image_url,omitempty"`
}

// IsAssigned reports whether a technician currently holds the request.
func (r *Request) IsAssigned() bool {
	return r.AssignedTechnicianID != nil && *r.AssignedTechnicianID != ""
}

// AssignedTo reports whether the given technician holds the request.
func (r *Request) AssignedTo(technicianID string) bool {
	return r.AssignedTechnicianID != nil && *r.AssignedTechnicianID == technicianID
}

// HasRating reports whether a rating has already been captured.
func (r *Request) HasRating() bool {
	return r.Rating != nil
}

// Clone returns a deep copy so cached entries never alias caller state.
func (r *Request) Clone() Request {
	out := *r
	out.AssignedTechnicianID = clonePtr(r.AssignedTechnicianID)
	out.AssignmentSource = clonePtr(r.AssignmentSource)
	out.AssignedByUserID = clonePtr(r.AssignedByUserID)
	out.ScheduledTime = clonePtr(r.ScheduledTime)
	out.Rating = clonePtr(r.Rating)
	out.RatingComment = clonePtr(r.RatingComment)
	out.ImageURL = clonePtr(r.ImageURL)
	return out
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
