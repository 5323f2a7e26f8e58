package persistence

import (
	"context"
	"database/sql"
	"time"

	"github.com/bookwell/outlooksync/internal/booking/domain"
)

// SQLiteAvailabilityRecalculator maintains the per-day availability
// rollup in SQLite.
type SQLiteAvailabilityRecalculator struct {
	db *sql.DB
}

// NewSQLiteAvailabilityRecalculator creates a new availability recalculator.
func NewSQLiteAvailabilityRecalculator(db *sql.DB) *SQLiteAvailabilityRecalculator {
	return &SQLiteAvailabilityRecalculator{db: db}
}

// RecomputeForAppointment refreshes the rollup for the day the
// appointment starts on.
func (r *SQLiteAvailabilityRecalculator) RecomputeForAppointment(ctx context.Context, appointment *domain.Appointment) error {
	dayStart, dayEnd := dayBounds(appointment.Window().Start)

	query := `
		INSERT INTO resource_availability (resource_id, day, booked_minutes, appointment_count, updated_at)
		SELECT ?, ?, COALESCE(SUM(duration_minutes), 0), COUNT(*), ?
		FROM appointments
		WHERE resource_id = ? AND status <> ?
		  AND start_time >= ? AND start_time < ?
		ON CONFLICT (resource_id, day) DO UPDATE SET
			booked_minutes = excluded.booked_minutes,
			appointment_count = excluded.appointment_count,
			updated_at = excluded.updated_at
	`
	_, err := r.db.ExecContext(ctx, query,
		appointment.ResourceID().String(),
		dayStart.Format("2006-01-02"),
		time.Now().UTC().Format(time.RFC3339),
		appointment.ResourceID().String(),
		string(domain.StatusCancelled),
		dayStart.Format(time.RFC3339),
		dayEnd.Format(time.RFC3339),
	)
	return err
}
