package persistence

import (
	"context"
	"time"

	"github.com/bookwell/outlooksync/internal/booking/domain"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresAvailabilityRecalculator maintains the per-day availability
// rollup consumed by the booking frontend. After every appointment
// mutation it recounts the resource's active appointments for the
// affected day.
type PostgresAvailabilityRecalculator struct {
	pool *pgxpool.Pool
}

// NewPostgresAvailabilityRecalculator creates a new availability recalculator.
func NewPostgresAvailabilityRecalculator(pool *pgxpool.Pool) *PostgresAvailabilityRecalculator {
	return &PostgresAvailabilityRecalculator{pool: pool}
}

// RecomputeForAppointment refreshes the rollup for the day the
// appointment starts on.
func (r *PostgresAvailabilityRecalculator) RecomputeForAppointment(ctx context.Context, appointment *domain.Appointment) error {
	dayStart, dayEnd := dayBounds(appointment.Window().Start)

	query := `
		INSERT INTO resource_availability (resource_id, day, booked_minutes, appointment_count, updated_at)
		SELECT $1, $2::date, COALESCE(SUM(duration_minutes), 0), COUNT(*), NOW()
		FROM appointments
		WHERE resource_id = $1 AND status <> $4
		  AND start_time >= $2 AND start_time < $3
		ON CONFLICT (resource_id, day) DO UPDATE SET
			booked_minutes = EXCLUDED.booked_minutes,
			appointment_count = EXCLUDED.appointment_count,
			updated_at = EXCLUDED.updated_at
	`
	_, err := r.pool.Exec(ctx, query,
		appointment.ResourceID(),
		dayStart,
		dayEnd,
		string(domain.StatusCancelled),
	)
	return err
}

// dayBounds returns the UTC day window containing t.
func dayBounds(t time.Time) (time.Time, time.Time) {
	u := t.UTC()
	start := time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
	return start, start.Add(24 * time.Hour)
}
