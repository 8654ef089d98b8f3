package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"stocksync/internal/domain/license"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/exp/slog"
)

func NewLicenseRepository(pool *pgxpool.Pool, log *slog.Logger) *LicenseRepository {
	return &LicenseRepository{
		pool: pool,
		log:  log,
	}
}

type LicenseRepository struct {
	pool *pgxpool.Pool
	log  *slog.Logger
}

func (r *LicenseRepository) FindByKey(ctx context.Context, key string) (*license.License, error) {
	var (
		lic       license.License
		expiresAt *time.Time
	)

	err := r.pool.QueryRow(ctx,
		`SELECT id, license_key, tenant_id, is_active, expires_at, created_at
		 FROM licenses WHERE license_key = $1`, key).
		Scan(&lic.ID, &lic.Key, &lic.TenantID, &lic.Active, &expiresAt, &lic.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, license.ErrLicenseNotFound
		}
		return nil, fmt.Errorf("failed to find license: %w", err)
	}
	lic.ExpiresAt = expiresAt

	return &lic, nil
}
