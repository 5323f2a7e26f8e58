package domain

import (
	"context"
	"encoding/json"
	"time"

	sharedDomain "github.com/bookwell/outlooksync/internal/shared/domain"
	"github.com/google/uuid"
)

// AppointmentStatus enumerates the lifecycle states of an appointment.
type AppointmentStatus string

const (
	StatusReserved  AppointmentStatus = "reserved"
	StatusConfirmed AppointmentStatus = "confirmed"
	StatusCancelled AppointmentStatus = "cancelled"
)

// BookingSourceOutlook tags appointments created from provider
// notifications rather than through the booking frontend.
const BookingSourceOutlook = "outlook"

// DetailKeyRemoteEventID is the detail-map key under which the remote
// event cross-reference is persisted. The domain exposes it as a typed
// field; the key only survives in the stored JSON for compatibility with
// earlier records.
const DetailKeyRemoteEventID = "outlook_event_id"

// Appointment is the booking system's authoritative record of a
// reservation on a resource.
type Appointment struct {
	sharedDomain.BaseAggregateRoot
	tenantID        uuid.UUID
	resourceID      uuid.UUID
	number          string
	window          sharedDomain.TimeRange
	durationMinutes int
	status          AppointmentStatus
	bookedBy        string
	remoteEventID   string
	detail          map[string]string
}

// NewOutlookAppointment creates the local mirror of a provider-created
// calendar event: reserved, tagged with the outlook booking source and
// cross-referenced to the remote event.
func NewOutlookAppointment(tenantID, resourceID uuid.UUID, window sharedDomain.TimeRange, remoteEventID string) *Appointment {
	a := &Appointment{
		BaseAggregateRoot: sharedDomain.NewBaseAggregateRoot(),
		tenantID:          tenantID,
		resourceID:        resourceID,
		number:            "Outlook",
		window:            window,
		durationMinutes:   window.Minutes(),
		status:            StatusReserved,
		bookedBy:          BookingSourceOutlook,
		remoteEventID:     remoteEventID,
		detail:            map[string]string{"comment": "Outlook"},
	}
	a.AddDomainEvent(NewAppointmentReservedEvent(a.ID(), tenantID, resourceID, remoteEventID, window))
	return a
}

func (a *Appointment) TenantID() uuid.UUID            { return a.tenantID }
func (a *Appointment) ResourceID() uuid.UUID          { return a.resourceID }
func (a *Appointment) Number() string                 { return a.number }
func (a *Appointment) Window() sharedDomain.TimeRange { return a.window }
func (a *Appointment) DurationMinutes() int           { return a.durationMinutes }
func (a *Appointment) Status() AppointmentStatus      { return a.status }
func (a *Appointment) BookedBy() string               { return a.bookedBy }
func (a *Appointment) RemoteEventID() string          { return a.remoteEventID }

// IsActive returns true unless the appointment has been cancelled.
func (a *Appointment) IsActive() bool {
	return a.status != StatusCancelled
}

// Detail returns a copy of the free-form detail map.
func (a *Appointment) Detail() map[string]string {
	out := make(map[string]string, len(a.detail))
	for k, v := range a.detail {
		out[k] = v
	}
	return out
}

// DetailValue returns one detail entry.
func (a *Appointment) DetailValue(key string) string {
	return a.detail[key]
}

// SetDetail sets a free-form detail entry.
func (a *Appointment) SetDetail(key, value string) {
	if a.detail == nil {
		a.detail = make(map[string]string)
	}
	a.detail[key] = value
	a.Touch()
}

// SetRemoteEventID records the cross-reference to the remote event.
func (a *Appointment) SetRemoteEventID(id string) {
	if a.remoteEventID != id {
		a.remoteEventID = id
		a.Touch()
	}
}

// ClearRemoteEventID drops the cross-reference to the remote event.
func (a *Appointment) ClearRemoteEventID() {
	if a.remoteEventID != "" {
		a.remoteEventID = ""
		a.Touch()
	}
}

// Reschedule moves the appointment to a new time window, keeping the
// duration in sync, and marks the record as provider-managed.
func (a *Appointment) Reschedule(window sharedDomain.TimeRange) {
	a.window = window
	a.durationMinutes = window.Minutes()
	a.number = "Outlook"
	a.Touch()
	a.AddDomainEvent(NewAppointmentRescheduledEvent(a.ID(), a.tenantID, a.resourceID, a.remoteEventID, window))
}

// Cancel cancels the appointment. external marks cancellations initiated
// by the provider rather than a local user.
func (a *Appointment) Cancel(reason string, external bool) {
	if a.status == StatusCancelled {
		return
	}
	a.status = StatusCancelled
	a.Touch()
	a.AddDomainEvent(NewAppointmentCancelledEvent(a.ID(), a.tenantID, a.resourceID, reason, external))
}

// DetailJSON serializes the detail map for persistence. The remote event
// cross-reference is folded back into the map under its legacy key.
func (a *Appointment) DetailJSON() string {
	detail := a.Detail()
	if a.remoteEventID != "" {
		detail[DetailKeyRemoteEventID] = a.remoteEventID
	}
	data, err := json.Marshal(detail)
	if err != nil {
		return "{}"
	}
	return string(data)
}

// RehydrateAppointment recreates an appointment from persisted state.
// The remote event cross-reference is lifted out of the stored detail
// JSON into the typed field.
func RehydrateAppointment(
	id, tenantID, resourceID uuid.UUID,
	number string,
	window sharedDomain.TimeRange,
	durationMinutes int,
	status AppointmentStatus,
	bookedBy string,
	detailJSON string,
	createdAt, updatedAt time.Time,
	version int,
) *Appointment {
	detail := make(map[string]string)
	if detailJSON != "" && detailJSON != "{}" {
		_ = json.Unmarshal([]byte(detailJSON), &detail)
	}
	remoteEventID := detail[DetailKeyRemoteEventID]
	delete(detail, DetailKeyRemoteEventID)

	entity := sharedDomain.RehydrateBaseEntity(id, createdAt, updatedAt)
	return &Appointment{
		BaseAggregateRoot: sharedDomain.RehydrateBaseAggregateRoot(entity, version),
		tenantID:          tenantID,
		resourceID:        resourceID,
		number:            number,
		window:            window,
		durationMinutes:   durationMinutes,
		status:            status,
		bookedBy:          bookedBy,
		remoteEventID:     remoteEventID,
		detail:            detail,
	}
}

// AppointmentRepository defines appointment persistence.
type AppointmentRepository interface {
	// Save persists an appointment (create or update).
	Save(ctx context.Context, appointment *Appointment) error

	// FindByID finds an appointment by ID.
	FindByID(ctx context.Context, id uuid.UUID) (*Appointment, error)

	// FindByRemoteEventID finds all appointments on a resource that are
	// cross-referenced to the given remote event. Zero, one or several
	// matches are all legitimate outcomes.
	FindByRemoteEventID(ctx context.Context, tenantID, resourceID uuid.UUID, remoteEventID string) ([]*Appointment, error)
}

// AvailabilityRecalculator recomputes resource availability after an
// appointment mutation.
type AvailabilityRecalculator interface {
	RecomputeForAppointment(ctx context.Context, appointment *Appointment) error
}
