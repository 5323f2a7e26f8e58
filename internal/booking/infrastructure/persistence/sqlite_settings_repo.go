package persistence

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
)

// SQLiteSettingsRepository implements domain.SettingsRepository using
// SQLite.
type SQLiteSettingsRepository struct {
	db *sql.DB
}

// NewSQLiteSettingsRepository creates a new SQLite settings repository.
func NewSQLiteSettingsRepository(db *sql.DB) *SQLiteSettingsRepository {
	return &SQLiteSettingsRepository{db: db}
}

// Get returns the value of a tenant setting, or "" when unset.
func (r *SQLiteSettingsRepository) Get(ctx context.Context, tenantID uuid.UUID, name string) (string, error) {
	query := `SELECT value FROM tenant_settings WHERE tenant_id = ? AND name = ?`

	var value string
	err := r.db.QueryRowContext(ctx, query, tenantID.String(), name).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}
		return "", err
	}
	return value, nil
}

// Set stores a tenant setting.
func (r *SQLiteSettingsRepository) Set(ctx context.Context, tenantID uuid.UUID, name, value string) error {
	query := `
		INSERT INTO tenant_settings (tenant_id, name, value)
		VALUES (?, ?, ?)
		ON CONFLICT (tenant_id, name) DO UPDATE SET value = excluded.value
	`
	_, err := r.db.ExecContext(ctx, query, tenantID.String(), name, value)
	return err
}
