package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/bookwell/outlooksync/internal/booking/domain"
	sharedDomain "github.com/bookwell/outlooksync/internal/shared/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresAppointmentRepository implements domain.AppointmentRepository
// using PostgreSQL.
type PostgresAppointmentRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresAppointmentRepository creates a new PostgreSQL appointment repository.
func NewPostgresAppointmentRepository(pool *pgxpool.Pool) *PostgresAppointmentRepository {
	return &PostgresAppointmentRepository{pool: pool}
}

// appointmentRow represents a database row for appointments.
type appointmentRow struct {
	ID              uuid.UUID
	TenantID        uuid.UUID
	ResourceID      uuid.UUID
	Number          string
	StartTime       time.Time
	EndTime         time.Time
	DurationMinutes int
	Status          string
	BookedBy        string
	Detail          string
	CreatedAt       time.Time
	UpdatedAt       time.Time
	Version         int
}

const appointmentColumns = `
	id, tenant_id, resource_id, number, start_time, end_time,
	duration_minutes, status, booked_by, detail::text,
	created_at, updated_at, version`

// Save persists an appointment. New aggregates are inserted with
// version 1; updates bump the version and fail with ErrVersionConflict
// when another writer got there first.
func (r *PostgresAppointmentRepository) Save(ctx context.Context, appointment *domain.Appointment) error {
	if appointment.Version() == 0 {
		query := `
			INSERT INTO appointments (
				id, tenant_id, resource_id, number, start_time, end_time,
				duration_minutes, status, booked_by, detail,
				created_at, updated_at, version
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, 1)
		`
		_, err := r.pool.Exec(ctx, query,
			appointment.ID(),
			appointment.TenantID(),
			appointment.ResourceID(),
			appointment.Number(),
			appointment.Window().Start,
			appointment.Window().End,
			appointment.DurationMinutes(),
			string(appointment.Status()),
			appointment.BookedBy(),
			appointment.DetailJSON(),
			appointment.CreatedAt(),
			appointment.UpdatedAt(),
		)
		if err != nil {
			return err
		}
		appointment.SetVersion(1)
		return nil
	}

	query := `
		UPDATE appointments SET
			number = $3, start_time = $4, end_time = $5,
			duration_minutes = $6, status = $7, booked_by = $8,
			detail = $9, updated_at = $10, version = version + 1
		WHERE id = $1 AND version = $2
	`
	tag, err := r.pool.Exec(ctx, query,
		appointment.ID(),
		appointment.Version(),
		appointment.Number(),
		appointment.Window().Start,
		appointment.Window().End,
		appointment.DurationMinutes(),
		string(appointment.Status()),
		appointment.BookedBy(),
		appointment.DetailJSON(),
		appointment.UpdatedAt(),
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrVersionConflict
	}
	appointment.SetVersion(appointment.Version() + 1)
	return nil
}

// FindByID retrieves an appointment by its ID.
func (r *PostgresAppointmentRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Appointment, error) {
	query := `SELECT` + appointmentColumns + ` FROM appointments WHERE id = $1`

	row, err := scanAppointmentRow(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return rowToAppointment(row), nil
}

// FindByRemoteEventID finds all appointments on a resource that carry
// the given remote event cross-reference in their detail data.
func (r *PostgresAppointmentRepository) FindByRemoteEventID(ctx context.Context, tenantID, resourceID uuid.UUID, remoteEventID string) ([]*domain.Appointment, error) {
	query := `
		SELECT` + appointmentColumns + `
		FROM appointments
		WHERE tenant_id = $1 AND resource_id = $2
		  AND detail->>'` + domain.DetailKeyRemoteEventID + `' = $3
		ORDER BY created_at
	`

	rows, err := r.pool.Query(ctx, query, tenantID, resourceID, remoteEventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	appointments := make([]*domain.Appointment, 0)
	for rows.Next() {
		row, err := scanAppointmentRow(rows)
		if err != nil {
			return nil, err
		}
		appointments = append(appointments, rowToAppointment(row))
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return appointments, nil
}

func scanAppointmentRow(scanner pgx.Row) (appointmentRow, error) {
	var row appointmentRow
	err := scanner.Scan(
		&row.ID,
		&row.TenantID,
		&row.ResourceID,
		&row.Number,
		&row.StartTime,
		&row.EndTime,
		&row.DurationMinutes,
		&row.Status,
		&row.BookedBy,
		&row.Detail,
		&row.CreatedAt,
		&row.UpdatedAt,
		&row.Version,
	)
	return row, err
}

func rowToAppointment(row appointmentRow) *domain.Appointment {
	return domain.RehydrateAppointment(
		row.ID,
		row.TenantID,
		row.ResourceID,
		row.Number,
		sharedDomain.NewTimeRange(row.StartTime, row.EndTime),
		row.DurationMinutes,
		domain.AppointmentStatus(row.Status),
		row.BookedBy,
		row.Detail,
		row.CreatedAt,
		row.UpdatedAt,
		row.Version,
	)
}
