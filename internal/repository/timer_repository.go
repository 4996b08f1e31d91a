package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dx-community/modmail/internal/domain"
)

// TimerRepository encapsulates the pending-timer table. The store enforces
// no uniqueness; callers cancel any prior (channel, action) timer before
// inserting a replacement, otherwise duplicates accumulate and both fire.
type TimerRepository interface {
	Add(ctx context.Context, timer domain.Timer) error
	// Cancel removes all timers for (channelID, action) and reports how many
	// rows were deleted. Cancelling a missing timer is not an error.
	Cancel(ctx context.Context, channelID string, action domain.TimerAction) (int64, error)
	// CancelAll removes every pending timer for a channel.
	CancelAll(ctx context.Context, channelID string) (int64, error)
	// ListDue returns timers with execute_at <= now in retrieval order.
	ListDue(ctx context.Context, now time.Time) ([]domain.Timer, error)
}

type timerRepository struct {
	pool *pgxpool.Pool
}

// NewTimerRepository instantiates the repository.
func NewTimerRepository(pool *pgxpool.Pool) TimerRepository {
	return &timerRepository{pool: pool}
}

func (r *timerRepository) Add(ctx context.Context, timer domain.Timer) error {
	const query = `
        INSERT INTO ticket_timers (channel_id, user_id, action, execute_at)
        VALUES ($1,$2,$3,$4)`
	_, err := r.pool.Exec(ctx, query,
		timer.ChannelID,
		timer.UserID,
		timer.Action,
		timer.ExecuteAt.UTC().Truncate(time.Second),
	)
	return err
}

func (r *timerRepository) Cancel(ctx context.Context, channelID string, action domain.TimerAction) (int64, error) {
	const query = `DELETE FROM ticket_timers WHERE channel_id=$1 AND action=$2`
	cmd, err := r.pool.Exec(ctx, query, channelID, action)
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}

func (r *timerRepository) CancelAll(ctx context.Context, channelID string) (int64, error) {
	const query = `DELETE FROM ticket_timers WHERE channel_id=$1`
	cmd, err := r.pool.Exec(ctx, query, channelID)
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}

func (r *timerRepository) ListDue(ctx context.Context, now time.Time) ([]domain.Timer, error) {
	const query = `
        SELECT channel_id, user_id, action, execute_at
        FROM ticket_timers WHERE execute_at <= $1
        ORDER BY execute_at`
	rows, err := r.pool.Query(ctx, query, now.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Timer
	for rows.Next() {
		var timer domain.Timer
		if err := rows.Scan(&timer.ChannelID, &timer.UserID, &timer.Action, &timer.ExecuteAt); err != nil {
			return nil, err
		}
		result = append(result, timer)
	}
	return result, rows.Err()
}
