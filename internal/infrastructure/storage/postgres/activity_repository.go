package postgres

import (
	"context"
	"fmt"

	"stocksync/internal/domain/activity"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/exp/slog"
)

func NewActivityRepository(pool *pgxpool.Pool, log *slog.Logger) *ActivityRepository {
	return &ActivityRepository{
		pool: pool,
		log:  log,
	}
}

type ActivityRepository struct {
	pool *pgxpool.Pool
	log  *slog.Logger
}

func (r *ActivityRepository) InsertActivity(ctx context.Context, entry activity.Entry) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO remote_activity_log (tenant_id, event_type, description, origin_ip, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		entry.TenantID, entry.EventType, nullString(entry.Description), nullString(entry.OriginIP), entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert activity: %w", err)
	}
	return nil
}
