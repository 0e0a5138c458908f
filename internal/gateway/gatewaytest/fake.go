// Package gatewaytest provides an in-memory Gateway double for store and
// transport tests. Writes apply to a local map and are reported on a
// channel so tests can await asynchronous completion; snapshot delivery
// is driven explicitly via EmitSnapshot.
package gatewaytest

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/spec-kit/field-service/internal/domain"
	"github.com/spec-kit/field-service/internal/gateway"
)

// Call records one gateway write.
type Call struct {
	Op        string
	RequestID string
}

// Fake implements gateway.Gateway in memory.
type Fake struct {
	mu       sync.Mutex
	onChange gateway.SnapshotFunc
	subCtx   context.Context
	requests map[string]domain.Request

	// Optional injected failures, checked per operation.
	CreateErr error
	UpdateErr error
	StatusErr error
	RatingErr error

	// Calls receives one entry per completed write attempt.
	Calls chan Call
}

// New creates an empty fake.
func New() *Fake {
	return &Fake{
		requests: make(map[string]domain.Request),
		Calls:    make(chan Call, 64),
	}
}

// Seed stores documents without emitting a snapshot.
func (f *Fake) Seed(requests ...domain.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, req := range requests {
		f.requests[req.ID] = req.Clone()
	}
}

// Snapshot returns the current documents in creation order descending.
func (f *Fake) Snapshot() []domain.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snapshotLocked()
}

func (f *Fake) snapshotLocked() []domain.Request {
	out := make([]domain.Request, 0, len(f.requests))
	for _, req := range f.requests {
		out = append(out, req.Clone())
	}
	gateway.SortSnapshot(out)
	return out
}

// EmitSnapshot delivers the current documents to the subscriber, as the
// remote change stream would.
func (f *Fake) EmitSnapshot() {
	f.mu.Lock()
	onChange := f.onChange
	subCtx := f.subCtx
	snapshot := f.snapshotLocked()
	f.mu.Unlock()

	if onChange == nil || (subCtx != nil && subCtx.Err() != nil) {
		return
	}
	onChange(snapshot)
}

// Subscribe registers the callback and delivers the initial snapshot.
func (f *Fake) Subscribe(ctx context.Context, onChange gateway.SnapshotFunc) error {
	f.mu.Lock()
	if f.onChange != nil {
		f.mu.Unlock()
		return errors.New("gateway already subscribed")
	}
	f.onChange = onChange
	f.subCtx = ctx
	snapshot := f.snapshotLocked()
	f.mu.Unlock()

	onChange(snapshot)
	return nil
}

// CreateRequest stores a new document.
func (f *Fake) CreateRequest(ctx context.Context, req domain.Request) error {
	defer f.record("create", req.ID)
	if f.CreateErr != nil {
		return f.CreateErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests[req.ID] = req.Clone()
	return nil
}

// UpdateRequest merges lifecycle fields into the stored document.
func (f *Fake) UpdateRequest(ctx context.Context, req domain.Request) error {
	defer f.record("update", req.ID)
	if f.UpdateErr != nil {
		return f.UpdateErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	current, ok := f.requests[req.ID]
	if !ok {
		return gateway.ErrNotFound
	}
	current.Status = req.Status
	current.Priority = req.Priority
	current.AssignedTechnicianID = req.AssignedTechnicianID
	current.AssignmentSource = req.AssignmentSource
	current.AssignedByUserID = req.AssignedByUserID
	current.ScheduledTime = req.ScheduledTime
	f.requests[req.ID] = current
	return nil
}

// UpdateStatus merges only the status field.
func (f *Fake) UpdateStatus(ctx context.Context, id string, status domain.RequestStatus) error {
	defer f.record("update_status", id)
	if f.StatusErr != nil {
		return f.StatusErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	current, ok := f.requests[id]
	if !ok {
		return gateway.ErrNotFound
	}
	current.Status = status
	f.requests[id] = current
	return nil
}

// SubmitRating writes the rating pair once.
func (f *Fake) SubmitRating(ctx context.Context, id string, rating int, comment string) error {
	defer f.record("submit_rating", id)
	if f.RatingErr != nil {
		return f.RatingErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	current, ok := f.requests[id]
	if !ok {
		return gateway.ErrNotFound
	}
	if current.HasRating() {
		return gateway.ErrAlreadyRated
	}
	current.Rating = &rating
	if trimmed := strings.TrimSpace(comment); trimmed != "" {
		current.RatingComment = &trimmed
	}
	f.requests[id] = current
	return nil
}

// GetRequest fetches one document.
func (f *Fake) GetRequest(ctx context.Context, id string) (*domain.Request, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	current, ok := f.requests[id]
	if !ok {
		return nil, gateway.ErrNotFound
	}
	clone := current.Clone()
	return &clone, nil
}

// Close is a no-op; lifecycle is the subscription context's.
func (f *Fake) Close() error {
	return nil
}

func (f *Fake) record(op, id string) {
	select {
	case f.Calls <- Call{Op: op, RequestID: id}:
	default:
	}
}
