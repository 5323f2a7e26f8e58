package persistence

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/bookwell/outlooksync/internal/booking/domain"
	"github.com/google/uuid"
)

// SQLiteResourceRepository implements domain.ResourceRepository using
// SQLite.
type SQLiteResourceRepository struct {
	db *sql.DB
}

// NewSQLiteResourceRepository creates a new SQLite resource repository.
func NewSQLiteResourceRepository(db *sql.DB) *SQLiteResourceRepository {
	return &SQLiteResourceRepository{db: db}
}

const sqliteResourceColumns = `
	id, tenant_id, name, subscription_id, custom,
	created_at, updated_at, version`

// Save persists a resource with optimistic concurrency.
func (r *SQLiteResourceRepository) Save(ctx context.Context, resource *domain.Resource) error {
	if resource.Version() == 0 {
		query := `
			INSERT INTO resources (
				id, tenant_id, name, subscription_id, custom,
				created_at, updated_at, version
			) VALUES (?, ?, ?, ?, ?, ?, ?, 1)
		`
		_, err := r.db.ExecContext(ctx, query,
			resource.ID().String(),
			resource.TenantID().String(),
			resource.Name(),
			resource.SubscriptionID(),
			resource.CustomJSON(),
			resource.CreatedAt().UTC().Format(time.RFC3339),
			resource.UpdatedAt().UTC().Format(time.RFC3339),
		)
		if err != nil {
			return err
		}
		resource.SetVersion(1)
		return nil
	}

	query := `
		UPDATE resources SET
			name = ?, subscription_id = ?, custom = ?,
			updated_at = ?, version = version + 1
		WHERE id = ? AND version = ?
	`
	result, err := r.db.ExecContext(ctx, query,
		resource.Name(),
		resource.SubscriptionID(),
		resource.CustomJSON(),
		resource.UpdatedAt().UTC().Format(time.RFC3339),
		resource.ID().String(),
		resource.Version(),
	)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrVersionConflict
	}
	resource.SetVersion(resource.Version() + 1)
	return nil
}

// FindByID retrieves a resource by its ID.
func (r *SQLiteResourceRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Resource, error) {
	query := `SELECT` + sqliteResourceColumns + ` FROM resources WHERE id = ?`

	resource, err := scanSQLiteResource(r.db.QueryRowContext(ctx, query, id.String()))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return resource, nil
}

// FindBySubscriptionID resolves the resource owning a provider lease.
func (r *SQLiteResourceRepository) FindBySubscriptionID(ctx context.Context, subscriptionID string) (*domain.Resource, error) {
	if subscriptionID == "" {
		return nil, nil
	}
	query := `SELECT` + sqliteResourceColumns + ` FROM resources WHERE subscription_id = ?`

	resource, err := scanSQLiteResource(r.db.QueryRowContext(ctx, query, subscriptionID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return resource, nil
}

// FindCalendarLinked returns all resources with a calendar user handle.
func (r *SQLiteResourceRepository) FindCalendarLinked(ctx context.Context) ([]*domain.Resource, error) {
	query := `
		SELECT` + sqliteResourceColumns + `
		FROM resources
		WHERE COALESCE(json_extract(custom, '$.` + domain.CustomKeyUserHandle + `'), '') <> ''
		ORDER BY created_at
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	resources := make([]*domain.Resource, 0)
	for rows.Next() {
		resource, err := scanSQLiteResource(rows)
		if err != nil {
			return nil, err
		}
		resources = append(resources, resource)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return resources, nil
}

func scanSQLiteResource(scanner rowScanner) (*domain.Resource, error) {
	var (
		id, tenantID, name, subscriptionID, custom string
		createdAt, updatedAt                       string
		version                                    int
	)
	err := scanner.Scan(
		&id, &tenantID, &name, &subscriptionID, &custom,
		&createdAt, &updatedAt, &version,
	)
	if err != nil {
		return nil, err
	}

	created, err := time.Parse(time.RFC3339, createdAt)
	if err != nil {
		return nil, err
	}
	updated, err := time.Parse(time.RFC3339, updatedAt)
	if err != nil {
		return nil, err
	}

	return domain.RehydrateResource(
		uuid.MustParse(id),
		uuid.MustParse(tenantID),
		name,
		subscriptionID,
		custom,
		created,
		updated,
		version,
	), nil
}
