package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresSettingsRepository implements domain.SettingsRepository using
// PostgreSQL.
type PostgresSettingsRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresSettingsRepository creates a new PostgreSQL settings repository.
func NewPostgresSettingsRepository(pool *pgxpool.Pool) *PostgresSettingsRepository {
	return &PostgresSettingsRepository{pool: pool}
}

// Get returns the value of a tenant setting, or "" when unset.
func (r *PostgresSettingsRepository) Get(ctx context.Context, tenantID uuid.UUID, name string) (string, error) {
	query := `SELECT value FROM tenant_settings WHERE tenant_id = $1 AND name = $2`

	var value string
	err := r.pool.QueryRow(ctx, query, tenantID, name).Scan(&value)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", nil
		}
		return "", err
	}
	return value, nil
}

// Set stores a tenant setting.
func (r *PostgresSettingsRepository) Set(ctx context.Context, tenantID uuid.UUID, name, value string) error {
	query := `
		INSERT INTO tenant_settings (tenant_id, name, value)
		VALUES ($1, $2, $3)
		ON CONFLICT (tenant_id, name) DO UPDATE SET value = EXCLUDED.value
	`
	_, err := r.pool.Exec(ctx, query, tenantID, name, value)
	return err
}
