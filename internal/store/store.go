// Package store maintains the live local mirror of the remote request
// collection. It is the single source of truth for every read surface:
// writes go through the gateway, the gateway's change stream refreshes the
// cache, and every cache mutation is broadcast to observers.
package store

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/field-service/internal/domain"
	"github.com/spec-kit/field-service/internal/events"
	"github.com/spec-kit/field-service/internal/gateway"
	"github.com/spec-kit/field-service/internal/rules"
	"github.com/spec-kit/field-service/internal/worker"
	apperrors "github.com/spec-kit/field-service/pkg/util/errorutil"
)

// RequestStore caches all requests in snapshot order and provides
// write-through operations. Construct one per process and pass it by
// reference; Close it on shutdown.
type RequestStore struct {
	gateway    gateway.Gateway
	dispatcher events.Dispatcher
	pool       *worker.Pool
	logger     *zap.Logger

	mu       sync.RWMutex
	requests []domain.Request

	cancelSub context.CancelFunc
	closeOnce sync.Once
}

// Dependencies bundles collaborators for the store.
type Dependencies struct {
	Gateway    gateway.Gateway
	Dispatcher events.Dispatcher
	Pool       *worker.Pool
	Logger     *zap.Logger
}

// New constructs the store and establishes the gateway subscription. The
// subscription delivers an initial snapshot immediately and runs until
// Close is called.
func New(ctx context.Context, deps Dependencies) (*RequestStore, error) {
	subCtx, cancel := context.WithCancel(ctx)
	s := &RequestStore{
		gateway:    deps.Gateway,
		dispatcher: deps.Dispatcher,
		pool:       deps.Pool,
		logger:     deps.Logger,
		cancelSub:  cancel,
	}
	if err := deps.Gateway.Subscribe(subCtx, s.applySnapshot); err != nil {
		cancel()
		return nil, err
	}
	return s, nil
}

// applySnapshot replaces the cache wholesale. The last delivered snapshot
// always wins; optimistic local state diverging from it is discarded.
func (s *RequestStore) applySnapshot(snapshot []domain.Request) {
	replacement := make([]domain.Request, 0, len(snapshot))
	for i := range snapshot {
		replacement = append(replacement, snapshot[i].Clone())
	}

	s.mu.Lock()
	s.requests = replacement
	s.mu.Unlock()

	s.broadcast(context.Background())
}

// List returns a copy of the cached requests in snapshot order.
func (s *RequestStore) List() []domain.Request {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Request, 0, len(s.requests))
	for i := range s.requests {
		out = append(out, s.requests[i].Clone())
	}
	return out
}

// Get returns the cached request with the given id.
func (s *RequestStore) Get(id string) (domain.Request, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i := range s.requests {
		if s.requests[i].ID == id {
			return s.requests[i].Clone(), true
		}
	}
	return domain.Request{}, false
}

// Add submits a new request to the gateway. There is no optimistic insert:
// the authoritative copy arrives via the change stream.
func (s *RequestStore) Add(ctx context.Context, req domain.Request) error {
	if strings.TrimSpace(req.ID) == "" {
		return apperrors.NewValidationError("request id required", nil)
	}
	if req.Status != domain.RequestStatusPending {
		return apperrors.NewValidationError("new requests must be pending", map[string]any{"status": req.Status})
	}
	if _, exists := s.Get(req.ID); exists {
		return apperrors.NewConflict("request id already exists", map[string]any{"request_id": req.ID})
	}
	if req.DateCreated.IsZero() {
		req.DateCreated = time.Now()
	}
	s.writeAsync("create", req.ID, func(ctx context.Context) error {
		return s.gateway.CreateRequest(ctx, req)
	})
	return nil
}

// UpdateRequest replaces the cached entry immediately, broadcasts, then
// writes the lifecycle fields through to the gateway asynchronously. A
// gateway failure is reported via the event stream but never rolls the
// optimistic update back; the next snapshot is authoritative.
func (s *RequestStore) UpdateRequest(ctx context.Context, req domain.Request) {
	stored := req.Clone()

	s.mu.Lock()
	replaced := false
	for i := range s.requests {
		if s.requests[i].ID == stored.ID {
			s.requests[i] = stored
			replaced = true
			break
		}
	}
	if !replaced {
		s.requests = append([]domain.Request{stored}, s.requests...)
	}
	s.mu.Unlock()

	s.broadcast(ctx)
	s.writeAsync("update", req.ID, func(ctx context.Context) error {
		return s.gateway.UpdateRequest(ctx, req)
	})
}

// UpdateStatus sets the cached status, broadcasts, then writes only the
// status field through.
func (s *RequestStore) UpdateStatus(ctx context.Context, id string, status domain.RequestStatus) error {
	s.mu.Lock()
	found := false
	for i := range s.requests {
		if s.requests[i].ID == id {
			s.requests[i].Status = status
			found = true
			break
		}
	}
	s.mu.Unlock()
	if !found {
		return apperrors.NewNotFound("request", map[string]any{"request_id": id})
	}

	s.broadcast(ctx)
	s.writeAsync("update_status", id, func(ctx context.Context) error {
		return s.gateway.UpdateStatus(ctx, id, status)
	})
	return nil
}

// SubmitRating writes the rating pair through the gateway. The cache is
// not updated optimistically; the change stream delivers the rated copy.
func (s *RequestStore) SubmitRating(ctx context.Context, actor domain.Actor, id string, rating int, comment string) error {
	cached, ok := s.Get(id)
	if !ok {
		return apperrors.NewNotFound("request", map[string]any{"request_id": id})
	}
	if _, err := rules.Rate(cached, actor, rating, comment); err != nil {
		return err
	}
	s.writeAsync("submit_rating", id, func(ctx context.Context) error {
		return s.gateway.SubmitRating(ctx, id, rating, comment)
	})
	return nil
}

// Claim self-assigns a pending request to the acting technician.
func (s *RequestStore) Claim(ctx context.Context, actor domain.Actor, id string) (domain.Request, error) {
	return s.applyRule(ctx, id, func(req domain.Request) (domain.Request, error) {
		return rules.Claim(req, actor)
	})
}

// Release undoes a technician's own claim.
func (s *RequestStore) Release(ctx context.Context, actor domain.Actor, id string) (domain.Request, error) {
	return s.applyRule(ctx, id, func(req domain.Request) (domain.Request, error) {
		return rules.Release(req, actor)
	})
}

// Assign places or overrides an assignment on behalf of an admin.
func (s *RequestStore) Assign(ctx context.Context, actor domain.Actor, id, technicianID string) (domain.Request, error) {
	return s.applyRule(ctx, id, func(req domain.Request) (domain.Request, error) {
		return rules.Assign(req, actor, technicianID)
	})
}

// Start marks assigned work as in progress.
func (s *RequestStore) Start(ctx context.Context, actor domain.Actor, id string) (domain.Request, error) {
	return s.applyRule(ctx, id, func(req domain.Request) (domain.Request, error) {
		return rules.Start(req, actor)
	})
}

// Complete finishes active work.
func (s *RequestStore) Complete(ctx context.Context, actor domain.Actor, id string) (domain.Request, error) {
	return s.applyRule(ctx, id, func(req domain.Request) (domain.Request, error) {
		return rules.Complete(req, actor)
	})
}

// Cancel terminates a request on behalf of its creator or an admin.
func (s *RequestStore) Cancel(ctx context.Context, actor domain.Actor, id string) (domain.Request, error) {
	return s.applyRule(ctx, id, func(req domain.Request) (domain.Request, error) {
		return rules.Cancel(req, actor)
	})
}

// Schedule sets the appointment time for the assigned technician.
func (s *RequestStore) Schedule(ctx context.Context, actor domain.Actor, id string, at time.Time) (domain.Request, error) {
	return s.applyRule(ctx, id, func(req domain.Request) (domain.Request, error) {
		return rules.Schedule(req, actor, at)
	})
}

// SetPriority changes priority on behalf of an admin.
func (s *RequestStore) SetPriority(ctx context.Context, actor domain.Actor, id string, priority domain.RequestPriority) (domain.Request, error) {
	return s.applyRule(ctx, id, func(req domain.Request) (domain.Request, error) {
		if !actor.IsAdmin() {
			return req, apperrors.NewForbidden("admin role required to change priority")
		}
		if req.Status.IsTerminal() {
			return req, apperrors.NewConflict("request is terminal", map[string]any{"request_id": req.ID})
		}
		req.Priority = priority
		return req, nil
	})
}

// applyRule validates a mutation against the cached copy and, when the
// rule admits it, flows the result through the optimistic update path.
func (s *RequestStore) applyRule(ctx context.Context, id string, apply func(domain.Request) (domain.Request, error)) (domain.Request, error) {
	cached, ok := s.Get(id)
	if !ok {
		return domain.Request{}, apperrors.NewNotFound("request", map[string]any{"request_id": id})
	}
	updated, err := apply(cached)
	if err != nil {
		return domain.Request{}, err
	}
	s.UpdateRequest(ctx, updated)
	return updated, nil
}

// Close cancels the gateway subscription. Safe to call more than once.
func (s *RequestStore) Close() {
	s.closeOnce.Do(func() {
		s.cancelSub()
		if err := s.gateway.Close(); err != nil {
			s.logger.Warn("gateway close failed", zap.Error(err))
		}
	})
}

func (s *RequestStore) broadcast(ctx context.Context) {
	s.dispatcher.Publish(ctx, events.Event{Type: events.EventRequestsChanged})
}

// writeAsync schedules a gateway write on the worker pool. Failures are
// logged and published as write-failure events; nothing is propagated to
// the caller and the cache is never rolled back.
func (s *RequestStore) writeAsync(operation, requestID string, write func(ctx context.Context) error) {
	err := s.pool.Submit(func(ctx context.Context) {
		if err := write(ctx); err != nil {
			s.logger.Error("gateway write failed",
				zap.String("operation", operation),
				zap.String("request_id", requestID),
				zap.Error(err))
			s.dispatcher.Publish(ctx, events.Event{
				Type: events.EventRequestWriteFailed,
				Payload: events.WriteFailedPayload{
					Operation: operation,
					RequestID: requestID,
					Reason:    err.Error(),
				},
			})
		}
	})
	if err != nil {
		s.logger.Error("failed to schedule gateway write",
			zap.String("operation", operation),
			zap.String("request_id", requestID),
			zap.Error(err))
	}
}
