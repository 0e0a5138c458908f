// Package gateway defines the contract to the remote request collection
// and its change stream, plus the Postgres and Redis drivers that
// implement it.
package gateway

import (
	"context"
	"errors"
	"sort"

	"github.com/spec-kit/field-service/internal/domain"
)

// ErrNotFound is returned when no document matches the given id. It is
// distinct from a true i/o failure.
var ErrNotFound = errors.New("request not found")

// ErrAlreadyRated is returned when a rating write would overwrite an
// existing rating. Ratings are write-once.
var ErrAlreadyRated = errors.New("request already rated")

// SnapshotFunc receives the complete current request list, ordered by
// creation time descending, every time the remote collection changes.
type SnapshotFunc func(requests []domain.Request)

// Gateway is the remote document-collection contract the store consumes.
type Gateway interface {
	// Subscribe establishes the persistent change stream. The callback is
	// invoked with a full snapshot immediately and then on every remote
	// change until ctx is cancelled. Called exactly once per store
	// lifetime.
	Subscribe(ctx context.Context, onChange SnapshotFunc) error

	// CreateRequest persists a new record keyed by request.ID.
	CreateRequest(ctx context.Context, req domain.Request) error

	// UpdateRequest persists the mutable lifecycle fields of the request:
	// status, priority, assignment fields and scheduled time.
	UpdateRequest(ctx context.Context, req domain.Request) error

	// UpdateStatus persists a single-field status update.
	UpdateStatus(ctx context.Context, id string, status domain.RequestStatus) error

	// SubmitRating persists the rating pair once; a second write returns
	// ErrAlreadyRated.
	SubmitRating(ctx context.Context, id string, rating int, comment string) error

	// GetRequest fetches one document, ErrNotFound when absent.
	GetRequest(ctx context.Context, id string) (*domain.Request, error)

	// Close tears down the change stream and any driver resources.
	Close() error
}

// SortSnapshot orders a snapshot by creation time descending, the ordering
// contract every driver must deliver.
func SortSnapshot(requests []domain.Request) {
	sort.SliceStable(requests, func(i, j int) bool {
		return requests[i].DateCreated.After(requests[j].DateCreated)
	})
}
