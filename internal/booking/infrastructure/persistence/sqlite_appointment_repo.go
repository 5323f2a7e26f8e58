package persistence

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/bookwell/outlooksync/internal/booking/domain"
	sharedDomain "github.com/bookwell/outlooksync/internal/shared/domain"
	"github.com/google/uuid"
)

// SQLiteAppointmentRepository implements domain.AppointmentRepository
// using SQLite. UUIDs and timestamps are stored as text.
type SQLiteAppointmentRepository struct {
	db *sql.DB
}

// NewSQLiteAppointmentRepository creates a new SQLite appointment repository.
func NewSQLiteAppointmentRepository(db *sql.DB) *SQLiteAppointmentRepository {
	return &SQLiteAppointmentRepository{db: db}
}

const sqliteAppointmentColumns = `
	id, tenant_id, resource_id, number, start_time, end_time,
	duration_minutes, status, booked_by, detail,
	created_at, updated_at, version`

// Save persists an appointment with optimistic concurrency.
func (r *SQLiteAppointmentRepository) Save(ctx context.Context, appointment *domain.Appointment) error {
	if appointment.Version() == 0 {
		query := `
			INSERT INTO appointments (
				id, tenant_id, resource_id, number, start_time, end_time,
				duration_minutes, status, booked_by, detail,
				created_at, updated_at, version
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1)
		`
		_, err := r.db.ExecContext(ctx, query,
			appointment.ID().String(),
			appointment.TenantID().String(),
			appointment.ResourceID().String(),
			appointment.Number(),
			appointment.Window().Start.UTC().Format(time.RFC3339),
			appointment.Window().End.UTC().Format(time.RFC3339),
			appointment.DurationMinutes(),
			string(appointment.Status()),
			appointment.BookedBy(),
			appointment.DetailJSON(),
			appointment.CreatedAt().UTC().Format(time.RFC3339),
			appointment.UpdatedAt().UTC().Format(time.RFC3339),
		)
		if err != nil {
			return err
		}
		appointment.SetVersion(1)
		return nil
	}

	query := `
		UPDATE appointments SET
			number = ?, start_time = ?, end_time = ?,
			duration_minutes = ?, status = ?, booked_by = ?,
			detail = ?, updated_at = ?, version = version + 1
		WHERE id = ? AND version = ?
	`
	result, err := r.db.ExecContext(ctx, query,
		appointment.Number(),
		appointment.Window().Start.UTC().Format(time.RFC3339),
		appointment.Window().End.UTC().Format(time.RFC3339),
		appointment.DurationMinutes(),
		string(appointment.Status()),
		appointment.BookedBy(),
		appointment.DetailJSON(),
		appointment.UpdatedAt().UTC().Format(time.RFC3339),
		appointment.ID().String(),
		appointment.Version(),
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
	appointment.SetVersion(appointment.Version() + 1)
	return nil
}

// FindByID retrieves an appointment by its ID.
func (r *SQLiteAppointmentRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Appointment, error) {
	query := `SELECT` + sqliteAppointmentColumns + ` FROM appointments WHERE id = ?`

	appointment, err := scanSQLiteAppointment(r.db.QueryRowContext(ctx, query, id.String()))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return appointment, nil
}

// FindByRemoteEventID finds all appointments on a resource carrying the
// given remote event cross-reference.
func (r *SQLiteAppointmentRepository) FindByRemoteEventID(ctx context.Context, tenantID, resourceID uuid.UUID, remoteEventID string) ([]*domain.Appointment, error) {
	query := `
		SELECT` + sqliteAppointmentColumns + `
		FROM appointments
		WHERE tenant_id = ? AND resource_id = ?
		  AND json_extract(detail, '$.` + domain.DetailKeyRemoteEventID + `') = ?
		ORDER BY created_at
	`

	rows, err := r.db.QueryContext(ctx, query, tenantID.String(), resourceID.String(), remoteEventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	appointments := make([]*domain.Appointment, 0)
	for rows.Next() {
		appointment, err := scanSQLiteAppointment(rows)
		if err != nil {
			return nil, err
		}
		appointments = append(appointments, appointment)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return appointments, nil
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteAppointment(scanner rowScanner) (*domain.Appointment, error) {
	var (
		id, tenantID, resourceID         string
		number, status, bookedBy, detail string
		startTime, endTime               string
		createdAt, updatedAt             string
		durationMinutes, version         int
	)
	err := scanner.Scan(
		&id, &tenantID, &resourceID, &number, &startTime, &endTime,
		&durationMinutes, &status, &bookedBy, &detail,
		&createdAt, &updatedAt, &version,
	)
	if err != nil {
		return nil, err
	}

	start, err := time.Parse(time.RFC3339, startTime)
	if err != nil {
		return nil, err
	}
	end, err := time.Parse(time.RFC3339, endTime)
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

	return domain.RehydrateAppointment(
		uuid.MustParse(id),
		uuid.MustParse(tenantID),
		uuid.MustParse(resourceID),
		number,
		sharedDomain.NewTimeRange(start, end),
		durationMinutes,
		domain.AppointmentStatus(status),
		bookedBy,
		detail,
		created,
		updated,
		version,
	), nil
}
