package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spec-kit/field-service/internal/domain"
)

const (
	requestsKey    = "requests"
	requestsPubSub = "requests.changed"
)

// RedisGateway stores requests as JSON documents in a hash and publishes
// change notifications over pub/sub. Useful for deployments without
// Postgres and as the lighter-weight driver in development.
type RedisGateway struct {
	client *redis.Client
	logger *zap.Logger

	mu         sync.Mutex
	subscribed bool
	cancel     context.CancelFunc
	done       chan struct{}
}

// NewRedisGateway wraps an established client.
func NewRedisGateway(client *redis.Client, logger *zap.Logger) *RedisGateway {
	return &RedisGateway{client: client, logger: logger}
}

// Subscribe delivers an initial snapshot, then one per published change.
func (g *RedisGateway) Subscribe(ctx context.Context, onChange SnapshotFunc) error {
	g.mu.Lock()
	if g.subscribed {
		g.mu.Unlock()
		return errors.New("gateway already subscribed")
	}
	g.subscribed = true
	subCtx, cancel := context.WithCancel(ctx)
	g.cancel = cancel
	done := make(chan struct{})
	g.done = done
	g.mu.Unlock()

	pubsub := g.client.Subscribe(subCtx, requestsPubSub)
	if _, err := pubsub.Receive(subCtx); err != nil {
		_ = pubsub.Close()
		cancel()
		close(done)
		return err
	}

	go func() {
		defer close(done)
		defer pubsub.Close() //nolint:errcheck

		g.deliverSnapshot(subCtx, onChange)
		messages := pubsub.Channel()
		for {
			select {
			case <-subCtx.Done():
				return
			case _, ok := <-messages:
				if !ok {
					return
				}
				g.deliverSnapshot(subCtx, onChange)
			}
		}
	}()
	return nil
}

func (g *RedisGateway) deliverSnapshot(ctx context.Context, onChange SnapshotFunc) {
	snapshot, err := g.listAll(ctx)
	if err != nil {
		if ctx.Err() == nil {
			g.logger.Error("failed to read snapshot", zap.Error(err))
		}
		return
	}
	onChange(snapshot)
}

func (g *RedisGateway) listAll(ctx context.Context) ([]domain.Request, error) {
	docs, err := g.client.HGetAll(ctx, requestsKey).Result()
	if err != nil {
		return nil, err
	}
	requests := make([]domain.Request, 0, len(docs))
	for id, raw := range docs {
		var req domain.Request
		if err := json.Unmarshal([]byte(raw), &req); err != nil {
			g.logger.Warn("skipping malformed document", zap.String("request_id", id), zap.Error(err))
			continue
		}
		requests = append(requests, req)
	}
	SortSnapshot(requests)
	return requests, nil
}

// CreateRequest stores a new document and publishes the change.
func (g *RedisGateway) CreateRequest(ctx context.Context, req domain.Request) error {
	if err := g.writeDocument(ctx, req); err != nil {
		return err
	}
	return g.publish(ctx)
}

// UpdateRequest merges the mutable lifecycle fields into the stored
// document and publishes the change.
func (g *RedisGateway) UpdateRequest(ctx context.Context, req domain.Request) error {
	current, err := g.GetRequest(ctx, req.ID)
	if err != nil {
		return err
	}
	current.Status = req.Status
	current.Priority = req.Priority
	current.AssignedTechnicianID = req.AssignedTechnicianID
	current.AssignmentSource = req.AssignmentSource
	current.AssignedByUserID = req.AssignedByUserID
	current.ScheduledTime = req.ScheduledTime
	if err := g.writeDocument(ctx, *current); err != nil {
		return err
	}
	return g.publish(ctx)
}

// UpdateStatus merges only the status field.
func (g *RedisGateway) UpdateStatus(ctx context.Context, id string, status domain.RequestStatus) error {
	current, err := g.GetRequest(ctx, id)
	if err != nil {
		return err
	}
	current.Status = status
	if err := g.writeDocument(ctx, *current); err != nil {
		return err
	}
	return g.publish(ctx)
}

// SubmitRating writes the rating pair once.
func (g *RedisGateway) SubmitRating(ctx context.Context, id string, rating int, comment string) error {
	current, err := g.GetRequest(ctx, id)
	if err != nil {
		return err
	}
	if current.HasRating() {
		return ErrAlreadyRated
	}
	current.Rating = &rating
	if trimmed := strings.TrimSpace(comment); trimmed != "" {
		current.RatingComment = &trimmed
	}
	if err := g.writeDocument(ctx, *current); err != nil {
		return err
	}
	return g.publish(ctx)
}

// GetRequest fetches one document by id.
func (g *RedisGateway) GetRequest(ctx context.Context, id string) (*domain.Request, error) {
	raw, err := g.client.HGet(ctx, requestsKey, id).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	var req domain.Request
	if err := json.Unmarshal([]byte(raw), &req); err != nil {
		return nil, err
	}
	return &req, nil
}

// Close cancels the subscription and waits for the stream goroutine.
func (g *RedisGateway) Close() error {
	g.mu.Lock()
	cancel := g.cancel
	done := g.done
	g.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
	return nil
}

func (g *RedisGateway) writeDocument(ctx context.Context, req domain.Request) error {
	raw, err := json.Marshal(req)
	if err != nil {
		return err
	}
	return g.client.HSet(ctx, requestsKey, req.ID, string(raw)).Err()
}

func (g *RedisGateway) publish(ctx context.Context) error {
	if err := g.client.Publish(ctx, requestsPubSub, "").Err(); err != nil {
		g.logger.Warn("change notification failed", zap.Error(err))
	}
	return nil
}
