package gateway

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/spec-kit/field-service/internal/domain"
)

const changeChannel = "requests_changed"

// PostgresGateway stores the request collection in Postgres and uses
// LISTEN/NOTIFY as the change stream. Every write notifies the channel;
// the subscriber re-reads the full ordered snapshot on each notification.
type PostgresGateway struct {
	pool   *pgxpool.Pool
	logger *zap.Logger

	mu         sync.Mutex
	subscribed bool
	cancel     context.CancelFunc
	done       chan struct{}
}

// NewPostgresGateway wraps an established pool.
func NewPostgresGateway(pool *pgxpool.Pool, logger *zap.Logger) *PostgresGateway {
	return &PostgresGateway{pool: pool, logger: logger}
}

// Subscribe delivers an initial snapshot, then one snapshot per change
// notification until ctx is cancelled or the gateway is closed.
func (g *PostgresGateway) Subscribe(ctx context.Context, onChange SnapshotFunc) error {
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

	conn, err := g.pool.Acquire(subCtx)
	if err != nil {
		cancel()
		close(done)
		return err
	}
	if _, err := conn.Exec(subCtx, "LISTEN "+changeChannel); err != nil {
		conn.Release()
		cancel()
		close(done)
		return err
	}

	go func() {
		defer close(done)
		defer conn.Release()

		g.deliverSnapshot(subCtx, onChange)
		for {
			if _, err := conn.Conn().WaitForNotification(subCtx); err != nil {
				if subCtx.Err() != nil {
					return
				}
				g.logger.Error("change stream interrupted", zap.Error(err))
				return
			}
			g.deliverSnapshot(subCtx, onChange)
		}
	}()
	return nil
}

func (g *PostgresGateway) deliverSnapshot(ctx context.Context, onChange SnapshotFunc) {
	snapshot, err := g.listAll(ctx)
	if err != nil {
		if ctx.Err() == nil {
			g.logger.Error("failed to read snapshot", zap.Error(err))
		}
		return
	}
	onChange(snapshot)
}

const requestColumns = `id, title, description, location, category, priority, status, created_by,
       assigned_technician_id, assignment_source, assigned_by_user_id,
       date_created, scheduled_time, rating, rating_comment, image_url`

func (g *PostgresGateway) listAll(ctx context.Context) ([]domain.Request, error) {
	query := `SELECT ` + requestColumns + ` FROM requests ORDER BY date_created DESC`
	rows, err := g.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRequests(rows)
}

// CreateRequest inserts a new document and notifies the change channel.
func (g *PostgresGateway) CreateRequest(ctx context.Context, req domain.Request) error {
	const query = `
        INSERT INTO requests (id, title, description, location, category, priority, status, created_by,
            assigned_technician_id, assignment_source, assigned_by_user_id, date_created,
            scheduled_time, rating, rating_comment, image_url)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)`
	_, err := g.pool.Exec(ctx, query,
		req.ID,
		req.Title,
		req.Description,
		req.Location,
		req.Category,
		req.Priority,
		req.Status,
		req.CreatedBy,
		req.AssignedTechnicianID,
		req.AssignmentSource,
		req.AssignedByUserID,
		req.DateCreated,
		req.ScheduledTime,
		req.Rating,
		req.RatingComment,
		req.ImageURL,
	)
	if err != nil {
		return err
	}
	return g.notify(ctx)
}

// UpdateRequest writes the mutable lifecycle fields and notifies.
func (g *PostgresGateway) UpdateRequest(ctx context.Context, req domain.Request) error {
	const query = `
        UPDATE requests SET status=$1, priority=$2, assigned_technician_id=$3,
            assignment_source=$4, assigned_by_user_id=$5, scheduled_time=$6
        WHERE id=$7`
	cmd, err := g.pool.Exec(ctx, query,
		req.Status,
		req.Priority,
		req.AssignedTechnicianID,
		req.AssignmentSource,
		req.AssignedByUserID,
		req.ScheduledTime,
		req.ID,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return g.notify(ctx)
}

// UpdateStatus writes only the status field and notifies.
func (g *PostgresGateway) UpdateStatus(ctx context.Context, id string, status domain.RequestStatus) error {
	cmd, err := g.pool.Exec(ctx, `UPDATE requests SET status=$1 WHERE id=$2`, status, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return g.notify(ctx)
}

// SubmitRating writes the rating pair. The rating IS NULL guard makes the
// write-once policy hold even when two clients race.
func (g *PostgresGateway) SubmitRating(ctx context.Context, id string, rating int, comment string) error {
	var ratingComment *string
	if trimmed := strings.TrimSpace(comment); trimmed != "" {
		ratingComment = &trimmed
	}
	cmd, err := g.pool.Exec(ctx,
		`UPDATE requests SET rating=$1, rating_comment=$2 WHERE id=$3 AND rating IS NULL`,
		rating, ratingComment, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		if _, err := g.GetRequest(ctx, id); err != nil {
			return err
		}
		return ErrAlreadyRated
	}
	return g.notify(ctx)
}

// GetRequest fetches one document by id.
func (g *PostgresGateway) GetRequest(ctx context.Context, id string) (*domain.Request, error) {
	query := `SELECT ` + requestColumns + ` FROM requests WHERE id=$1`
	rows, err := g.pool.Query(ctx, query, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	requests, err := scanRequests(rows)
	if err != nil {
		return nil, err
	}
	if len(requests) == 0 {
		return nil, ErrNotFound
	}
	req := requests[0]
	return &req, nil
}

// Close cancels the subscription and waits for the stream goroutine.
func (g *PostgresGateway) Close() error {
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

func (g *PostgresGateway) notify(ctx context.Context) error {
	if _, err := g.pool.Exec(ctx, `SELECT pg_notify($1, '')`, changeChannel); err != nil {
		g.logger.Warn("change notification failed", zap.Error(err))
	}
	return nil
}

func scanRequests(rows pgx.Rows) ([]domain.Request, error) {
	var result []domain.Request
	for rows.Next() {
		var req domain.Request
		if err := rows.Scan(
			&req.ID,
			&req.Title,
			&req.Description,
			&req.Location,
			&req.Category,
			&req.Priority,
			&req.Status,
			&req.CreatedBy,
			&req.AssignedTechnicianID,
			&req.AssignmentSource,
			&req.AssignedByUserID,
			&req.DateCreated,
			&req.ScheduledTime,
			&req.Rating,
			&req.RatingComment,
			&req.ImageURL,
		); err != nil {
			return nil, err
		}
		result = append(result, req)
	}
	return result, rows.Err()
}
