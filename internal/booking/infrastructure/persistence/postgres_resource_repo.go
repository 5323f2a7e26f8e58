package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/bookwell/outlooksync/internal/booking/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresResourceRepository implements domain.ResourceRepository using
// PostgreSQL.
type PostgresResourceRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresResourceRepository creates a new PostgreSQL resource repository.
func NewPostgresResourceRepository(pool *pgxpool.Pool) *PostgresResourceRepository {
	return &PostgresResourceRepository{pool: pool}
}

// resourceRow represents a database row for resources.
type resourceRow struct {
	ID             uuid.UUID
	TenantID       uuid.UUID
	Name           string
	SubscriptionID string
	Custom         string
	CreatedAt      time.Time
	UpdatedAt      time.Time
	Version        int
}

const resourceColumns = `
	id, tenant_id, name, subscription_id, custom::text,
	created_at, updated_at, version`

// Save persists a resource with optimistic concurrency.
func (r *PostgresResourceRepository) Save(ctx context.Context, resource *domain.Resource) error {
	if resource.Version() == 0 {
		query := `
			INSERT INTO resources (
				id, tenant_id, name, subscription_id, custom,
				created_at, updated_at, version
			) VALUES ($1, $2, $3, $4, $5, $6, $7, 1)
		`
		_, err := r.pool.Exec(ctx, query,
			resource.ID(),
			resource.TenantID(),
			resource.Name(),
			resource.SubscriptionID(),
			resource.CustomJSON(),
			resource.CreatedAt(),
			resource.UpdatedAt(),
		)
		if err != nil {
			return err
		}
		resource.SetVersion(1)
		return nil
	}

	query := `
		UPDATE resources SET
			name = $3, subscription_id = $4, custom = $5,
			updated_at = $6, version = version + 1
		WHERE id = $1 AND version = $2
	`
	tag, err := r.pool.Exec(ctx, query,
		resource.ID(),
		resource.Version(),
		resource.Name(),
		resource.SubscriptionID(),
		resource.CustomJSON(),
		resource.UpdatedAt(),
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrVersionConflict
	}
	resource.SetVersion(resource.Version() + 1)
	return nil
}

// FindByID retrieves a resource by its ID.
func (r *PostgresResourceRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Resource, error) {
	query := `SELECT` + resourceColumns + ` FROM resources WHERE id = $1`

	row, err := scanResourceRow(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return rowToResource(row), nil
}

// FindBySubscriptionID resolves the resource owning a provider lease.
func (r *PostgresResourceRepository) FindBySubscriptionID(ctx context.Context, subscriptionID string) (*domain.Resource, error) {
	if subscriptionID == "" {
		return nil, nil
	}
	query := `SELECT` + resourceColumns + ` FROM resources WHERE subscription_id = $1`

	row, err := scanResourceRow(r.pool.QueryRow(ctx, query, subscriptionID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return rowToResource(row), nil
}

// FindCalendarLinked returns all resources with a calendar user handle.
func (r *PostgresResourceRepository) FindCalendarLinked(ctx context.Context) ([]*domain.Resource, error) {
	query := `
		SELECT` + resourceColumns + `
		FROM resources
		WHERE COALESCE(custom->>'` + domain.CustomKeyUserHandle + `', '') <> ''
		ORDER BY created_at
	`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	resources := make([]*domain.Resource, 0)
	for rows.Next() {
		row, err := scanResourceRow(rows)
		if err != nil {
			return nil, err
		}
		resources = append(resources, rowToResource(row))
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return resources, nil
}

func scanResourceRow(scanner pgx.Row) (resourceRow, error) {
	var row resourceRow
	err := scanner.Scan(
		&row.ID,
		&row.TenantID,
		&row.Name,
		&row.SubscriptionID,
		&row.Custom,
		&row.CreatedAt,
		&row.UpdatedAt,
		&row.Version,
	)
	return row, err
}

func rowToResource(row resourceRow) *domain.Resource {
	return domain.RehydrateResource(
		row.ID,
		row.TenantID,
		row.Name,
		row.SubscriptionID,
		row.Custom,
		row.CreatedAt,
		row.UpdatedAt,
		row.Version,
	)
}
