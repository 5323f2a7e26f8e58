package domain

import (
	sharedDomain "github.com/bookwell/outlooksync/internal/shared/domain"
	"github.com/google/uuid"
)

const (
	// AggregateTypeAppointment is the aggregate type for appointments.
	AggregateTypeAppointment = "appointment"

	// AggregateTypeResource is the aggregate type for resources.
	AggregateTypeResource = "resource"

	// Event routing keys
	RoutingKeyAppointmentReserved    = "booking.appointment.reserved"
	RoutingKeyAppointmentRescheduled = "booking.appointment.rescheduled"
	RoutingKeyAppointmentCancelled   = "booking.appointment.cancelled"
	RoutingKeySubscriptionRenewed    = "booking.resource.subscription_renewed"
)

// AppointmentReservedEvent is published when a provider-created event is
// mirrored into a local appointment.
type AppointmentReservedEvent struct {
	sharedDomain.BaseEvent
	ResourceID    uuid.UUID              `json:"resource_id"`
	RemoteEventID string                 `json:"remote_event_id"`
	Window        sharedDomain.TimeRange `json:"window"`
}

// NewAppointmentReservedEvent creates a new appointment reserved event.
func NewAppointmentReservedEvent(aggregateID, tenantID, resourceID uuid.UUID, remoteEventID string, window sharedDomain.TimeRange) AppointmentReservedEvent {
	return AppointmentReservedEvent{
		BaseEvent:     sharedDomain.NewBaseEvent(aggregateID, AggregateTypeAppointment, RoutingKeyAppointmentReserved, tenantID),
		ResourceID:    resourceID,
		RemoteEventID: remoteEventID,
		Window:        window,
	}
}

// AppointmentRescheduledEvent is published when an appointment's time
// window follows a remote event update.
type AppointmentRescheduledEvent struct {
	sharedDomain.BaseEvent
	ResourceID    uuid.UUID              `json:"resource_id"`
	RemoteEventID string                 `json:"remote_event_id"`
	Window        sharedDomain.TimeRange `json:"window"`
}

// NewAppointmentRescheduledEvent creates a new appointment rescheduled event.
func NewAppointmentRescheduledEvent(aggregateID, tenantID, resourceID uuid.UUID, remoteEventID string, window sharedDomain.TimeRange) AppointmentRescheduledEvent {
	return AppointmentRescheduledEvent{
		BaseEvent:     sharedDomain.NewBaseEvent(aggregateID, AggregateTypeAppointment, RoutingKeyAppointmentRescheduled, tenantID),
		ResourceID:    resourceID,
		RemoteEventID: remoteEventID,
		Window:        window,
	}
}

// AppointmentCancelledEvent is published when an appointment is cancelled.
type AppointmentCancelledEvent struct {
	sharedDomain.BaseEvent
	ResourceID uuid.UUID `json:"resource_id"`
	Reason     string    `json:"reason"`
	External   bool      `json:"external"`
}

// NewAppointmentCancelledEvent creates a new appointment cancelled event.
func NewAppointmentCancelledEvent(aggregateID, tenantID, resourceID uuid.UUID, reason string, external bool) AppointmentCancelledEvent {
	return AppointmentCancelledEvent{
		BaseEvent:  sharedDomain.NewBaseEvent(aggregateID, AggregateTypeAppointment, RoutingKeyAppointmentCancelled, tenantID),
		ResourceID: resourceID,
		Reason:     reason,
		External:   external,
	}
}

// SubscriptionRenewedEvent is published when a resource's provider lease
// is replaced.
type SubscriptionRenewedEvent struct {
	sharedDomain.BaseEvent
	SubscriptionID string `json:"subscription_id"`
}

// NewSubscriptionRenewedEvent creates a new subscription renewed event.
func NewSubscriptionRenewedEvent(aggregateID, tenantID uuid.UUID, subscriptionID string) SubscriptionRenewedEvent {
	return SubscriptionRenewedEvent{
		BaseEvent:      sharedDomain.NewBaseEvent(aggregateID, AggregateTypeResource, RoutingKeySubscriptionRenewed, tenantID),
		SubscriptionID: subscriptionID,
	}
}
