package application

import (
	"context"
	"testing"
	"time"

	bookingDomain "github.com/bookwell/outlooksync/internal/booking/domain"
	"github.com/bookwell/outlooksync/internal/outlook/domain"
	sharedDomain "github.com/bookwell/outlooksync/internal/shared/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type outboundFixture struct {
	sync         *OutboundSync
	resources    *stubResourceRepo
	appointments *stubAppointmentRepo
	settings     *stubSettingsRepo
	session      *fakeSession
	renderer     *stubRenderer
	publisher    *recordingPublisher
	resource     *bookingDomain.Resource
	tenantID     uuid.UUID
}

func newOutboundFixture(t *testing.T) *outboundFixture {
	t.Helper()
	tenantID := uuid.New()
	resource := linkedResource(tenantID, "sub-1")
	resource.SetCustom(bookingDomain.CustomKeyTemplateID, "booking-mail")

	settings := newStubSettingsRepo()
	settings.seedAzureSettings(tenantID)

	f := &outboundFixture{
		resources:    newStubResourceRepo(resource),
		appointments: &stubAppointmentRepo{},
		settings:     settings,
		session:      newFakeSession("room1@contoso.com"),
		renderer:     &stubRenderer{subject: "Reservierung Room 1", body: "<p>Details</p>"},
		publisher:    &recordingPublisher{},
		resource:     resource,
		tenantID:     tenantID,
	}
	f.sync = NewOutboundSync(
		f.resources, f.appointments, f.settings,
		&stubPool{session: f.session}, f.renderer, f.publisher, nil,
	)
	return f
}

func (f *outboundFixture) newAppointment(t *testing.T, remoteEventID string) *bookingDomain.Appointment {
	t.Helper()
	start := time.Date(2026, 9, 1, 14, 0, 0, 0, time.UTC)
	window := sharedDomain.NewTimeRange(start, start.Add(time.Hour))
	appointment := bookingDomain.NewOutlookAppointment(f.tenantID, f.resource.ID(), window, remoteEventID)
	appointment.ClearDomainEvents()
	require.NoError(t, f.appointments.Save(context.Background(), appointment))
	return appointment
}

func TestOutboundSync_PushCreate(t *testing.T) {
	f := newOutboundFixture(t)
	appointment := f.newAppointment(t, "")

	ok := f.sync.PushCreate(context.Background(), appointment)

	require.True(t, ok)
	require.Len(t, f.session.createdEvents, 1)
	created := f.session.createdEvents[0]
	assert.Equal(t, domain.PlaceholderEventID, created.ID)
	assert.Equal(t, "Reservierung Room 1", created.Subject)
	assert.Equal(t, "<p>Details</p>", created.Body)
	assert.Equal(t, []bool{false}, f.session.allowConcurrent)
	assert.Equal(t, "evt-created", appointment.RemoteEventID())
}

func TestOutboundSync_PushCreateHonorsConcurrencyToggle(t *testing.T) {
	f := newOutboundFixture(t)
	require.NoError(t, f.settings.Set(context.Background(), f.tenantID, bookingDomain.SettingAllowConcurrentEvents, "true"))
	appointment := f.newAppointment(t, "")

	require.True(t, f.sync.PushCreate(context.Background(), appointment))
	assert.Equal(t, []bool{true}, f.session.allowConcurrent)
}

func TestOutboundSync_PushCreateConflict(t *testing.T) {
	f := newOutboundFixture(t)
	f.session.createErr = domain.ErrConflict
	appointment := f.newAppointment(t, "")

	ok := f.sync.PushCreate(context.Background(), appointment)

	assert.False(t, ok)
	assert.Empty(t, appointment.RemoteEventID())
}

func TestOutboundSync_PushCreateUnlinkedResource(t *testing.T) {
	f := newOutboundFixture(t)
	unlinked := bookingDomain.NewResource(f.tenantID, "Storage shelf")
	require.NoError(t, f.resources.Save(context.Background(), unlinked))
	start := time.Date(2026, 9, 1, 14, 0, 0, 0, time.UTC)
	appointment := bookingDomain.NewOutlookAppointment(
		f.tenantID, unlinked.ID(),
		sharedDomain.NewTimeRange(start, start.Add(time.Hour)), "",
	)

	ok := f.sync.PushCreate(context.Background(), appointment)

	assert.False(t, ok)
	assert.Empty(t, f.session.createdEvents)
}

func TestOutboundSync_PushCreateFallsBackWhenTemplateFails(t *testing.T) {
	f := newOutboundFixture(t)
	f.renderer.err = errStub
	appointment := f.newAppointment(t, "")

	require.True(t, f.sync.PushCreate(context.Background(), appointment))
	require.Len(t, f.session.createdEvents, 1)
	assert.Equal(t, "Room 1", f.session.createdEvents[0].Subject)
	assert.Empty(t, f.session.createdEvents[0].Body)
}

func TestOutboundSync_PushUpdate(t *testing.T) {
	f := newOutboundFixture(t)
	appointment := f.newAppointment(t, "evt-9")

	ok := f.sync.PushUpdate(context.Background(), appointment)

	require.True(t, ok)
	updated, found := f.session.updatedEvents["evt-9"]
	require.True(t, found)
	assert.Equal(t, "evt-9", updated.ID)
	assert.Equal(t, "Reservierung Room 1", updated.Subject)
}

func TestOutboundSync_PushUpdateWithoutCrossRefCreates(t *testing.T) {
	f := newOutboundFixture(t)
	appointment := f.newAppointment(t, "")

	ok := f.sync.PushUpdate(context.Background(), appointment)

	require.True(t, ok)
	assert.Len(t, f.session.createdEvents, 1)
	assert.Empty(t, f.session.updatedEvents)
}

func TestOutboundSync_PushDelete(t *testing.T) {
	f := newOutboundFixture(t)
	appointment := f.newAppointment(t, "evt-9")

	ok := f.sync.PushDelete(context.Background(), appointment)

	require.True(t, ok)
	assert.Equal(t, []string{"evt-9"}, f.session.deletedEvents)
	assert.Empty(t, appointment.RemoteEventID())
}

func TestOutboundSync_PushDeleteClearsCrossRefOnRemoteFailure(t *testing.T) {
	f := newOutboundFixture(t)
	f.session.deleteErr = errStub
	appointment := f.newAppointment(t, "evt-9")

	ok := f.sync.PushDelete(context.Background(), appointment)

	assert.False(t, ok)
	assert.Empty(t, appointment.RemoteEventID())
}

func TestOutboundSync_PushDeleteWithoutCrossRef(t *testing.T) {
	f := newOutboundFixture(t)
	appointment := f.newAppointment(t, "")

	assert.True(t, f.sync.PushDelete(context.Background(), appointment))
	assert.Empty(t, f.session.deletedEvents)
}
