package domain

import (
	"encoding/json"
	"testing"
	"time"

	sharedDomain "github.com/bookwell/outlooksync/internal/shared/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func window(t *testing.T, minutes int) sharedDomain.TimeRange {
	t.Helper()
	start := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	return sharedDomain.NewTimeRange(start, start.Add(time.Duration(minutes)*time.Minute))
}

func TestNewOutlookAppointment(t *testing.T) {
	tenantID := uuid.New()
	resourceID := uuid.New()

	a := NewOutlookAppointment(tenantID, resourceID, window(t, 30), "E1")

	assert.Equal(t, tenantID, a.TenantID())
	assert.Equal(t, resourceID, a.ResourceID())
	assert.Equal(t, StatusReserved, a.Status())
	assert.Equal(t, BookingSourceOutlook, a.BookedBy())
	assert.Equal(t, "Outlook", a.Number())
	assert.Equal(t, 30, a.DurationMinutes())
	assert.Equal(t, "E1", a.RemoteEventID())
	assert.True(t, a.IsActive())

	events := a.DomainEvents()
	require.Len(t, events, 1)
	assert.Equal(t, RoutingKeyAppointmentReserved, events[0].RoutingKey())
	assert.Equal(t, tenantID, events[0].TenantID())
}

func TestAppointment_Reschedule(t *testing.T) {
	a := NewOutlookAppointment(uuid.New(), uuid.New(), window(t, 30), "E1")
	a.ClearDomainEvents()

	a.Reschedule(window(t, 90))

	assert.Equal(t, 90, a.DurationMinutes())
	events := a.DomainEvents()
	require.Len(t, events, 1)
	assert.Equal(t, RoutingKeyAppointmentRescheduled, events[0].RoutingKey())
}

func TestAppointment_Cancel(t *testing.T) {
	a := NewOutlookAppointment(uuid.New(), uuid.New(), window(t, 30), "E1")
	a.ClearDomainEvents()

	a.Cancel("Outlook synchronisation", true)
	assert.Equal(t, StatusCancelled, a.Status())
	assert.False(t, a.IsActive())
	require.Len(t, a.DomainEvents(), 1)

	// Cancelling again is a no-op.
	a.Cancel("again", false)
	assert.Len(t, a.DomainEvents(), 1)
}

func TestAppointment_DetailJSONRoundTrip(t *testing.T) {
	a := NewOutlookAppointment(uuid.New(), uuid.New(), window(t, 30), "E1")
	a.SetDetail("note", "ground floor")

	var detail map[string]string
	require.NoError(t, json.Unmarshal([]byte(a.DetailJSON()), &detail))
	assert.Equal(t, "E1", detail[DetailKeyRemoteEventID])
	assert.Equal(t, "ground floor", detail["note"])

	got := RehydrateAppointment(
		a.ID(), a.TenantID(), a.ResourceID(), a.Number(),
		a.Window(), a.DurationMinutes(), a.Status(), a.BookedBy(),
		a.DetailJSON(), a.CreatedAt(), a.UpdatedAt(), a.Version(),
	)
	assert.Equal(t, "E1", got.RemoteEventID())
	assert.Equal(t, "ground floor", got.DetailValue("note"))
	// The legacy key lives only in the JSON, not in the typed map.
	assert.Empty(t, got.DetailValue(DetailKeyRemoteEventID))
	assert.Empty(t, got.DomainEvents())
}

func TestAppointment_ClearRemoteEventID(t *testing.T) {
	a := NewOutlookAppointment(uuid.New(), uuid.New(), window(t, 30), "E1")
	a.ClearRemoteEventID()
	assert.Empty(t, a.RemoteEventID())

	var detail map[string]string
	require.NoError(t, json.Unmarshal([]byte(a.DetailJSON()), &detail))
	_, ok := detail[DetailKeyRemoteEventID]
	assert.False(t, ok)
}

func TestResource_CustomData(t *testing.T) {
	r := NewResource(uuid.New(), "Exam room 1")
	assert.False(t, r.IsCalendarLinked())

	r.SetCustom(CustomKeyUserHandle, "room1@contoso.com")
	r.SetCustom(CustomKeyTemplateID, "9be2a8f0")
	assert.True(t, r.IsCalendarLinked())
	assert.Equal(t, "room1@contoso.com", r.UserHandle())
	assert.Equal(t, "9be2a8f0", r.TemplateID())

	r.SetSubscriptionID("sub-123")
	assert.Equal(t, "sub-123", r.SubscriptionID())
	events := r.DomainEvents()
	require.NotEmpty(t, events)
	assert.Equal(t, RoutingKeySubscriptionRenewed, events[len(events)-1].RoutingKey())

	got := RehydrateResource(r.ID(), r.TenantID(), r.Name(), r.SubscriptionID(), r.CustomJSON(), r.CreatedAt(), r.UpdatedAt(), r.Version())
	assert.Equal(t, "room1@contoso.com", got.UserHandle())
	assert.Equal(t, "sub-123", got.SubscriptionID())
}
