package application

import (
	"context"
	"errors"
	"sync"
	"time"

	bookingDomain "github.com/bookwell/outlooksync/internal/booking/domain"
	"github.com/bookwell/outlooksync/internal/outlook/domain"
	"github.com/google/uuid"
)

type stubResourceRepo struct {
	mu        sync.Mutex
	resources map[uuid.UUID]*bookingDomain.Resource
	saved     []*bookingDomain.Resource
	saveErr   error
}

func newStubResourceRepo(resources ...*bookingDomain.Resource) *stubResourceRepo {
	repo := &stubResourceRepo{resources: make(map[uuid.UUID]*bookingDomain.Resource)}
	for _, r := range resources {
		repo.resources[r.ID()] = r
	}
	return repo
}

func (r *stubResourceRepo) Save(_ context.Context, resource *bookingDomain.Resource) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.saveErr != nil {
		return r.saveErr
	}
	r.resources[resource.ID()] = resource
	r.saved = append(r.saved, resource)
	return nil
}

func (r *stubResourceRepo) FindByID(_ context.Context, id uuid.UUID) (*bookingDomain.Resource, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.resources[id], nil
}

func (r *stubResourceRepo) FindBySubscriptionID(_ context.Context, subscriptionID string) (*bookingDomain.Resource, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, resource := range r.resources {
		if resource.SubscriptionID() == subscriptionID {
			return resource, nil
		}
	}
	return nil, nil
}

func (r *stubResourceRepo) FindCalendarLinked(_ context.Context) ([]*bookingDomain.Resource, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*bookingDomain.Resource
	for _, resource := range r.resources {
		if resource.IsCalendarLinked() {
			out = append(out, resource)
		}
	}
	return out, nil
}

type stubAppointmentRepo struct {
	mu           sync.Mutex
	appointments []*bookingDomain.Appointment
	saveErr      error
}

func (r *stubAppointmentRepo) Save(_ context.Context, appointment *bookingDomain.Appointment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.saveErr != nil {
		return r.saveErr
	}
	for i, existing := range r.appointments {
		if existing.ID() == appointment.ID() {
			r.appointments[i] = appointment
			return nil
		}
	}
	r.appointments = append(r.appointments, appointment)
	return nil
}

func (r *stubAppointmentRepo) FindByID(_ context.Context, id uuid.UUID) (*bookingDomain.Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, appointment := range r.appointments {
		if appointment.ID() == id {
			return appointment, nil
		}
	}
	return nil, nil
}

func (r *stubAppointmentRepo) FindByRemoteEventID(_ context.Context, tenantID, resourceID uuid.UUID, remoteEventID string) ([]*bookingDomain.Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*bookingDomain.Appointment
	for _, appointment := range r.appointments {
		if appointment.TenantID() == tenantID &&
			appointment.ResourceID() == resourceID &&
			appointment.RemoteEventID() == remoteEventID {
			out = append(out, appointment)
		}
	}
	return out, nil
}

func (r *stubAppointmentRepo) all() []*bookingDomain.Appointment {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*bookingDomain.Appointment(nil), r.appointments...)
}

type stubSettingsRepo struct {
	mu     sync.Mutex
	values map[uuid.UUID]map[string]string
}

func newStubSettingsRepo() *stubSettingsRepo {
	return &stubSettingsRepo{values: make(map[uuid.UUID]map[string]string)}
}

func (r *stubSettingsRepo) Get(_ context.Context, tenantID uuid.UUID, name string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.values[tenantID][name], nil
}

func (r *stubSettingsRepo) Set(_ context.Context, tenantID uuid.UUID, name, value string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.values[tenantID] == nil {
		r.values[tenantID] = make(map[string]string)
	}
	r.values[tenantID][name] = value
	return nil
}

// seedAzureSettings stores a complete credential set for the tenant.
func (r *stubSettingsRepo) seedAzureSettings(tenantID uuid.UUID) {
	ctx := context.Background()
	_ = r.Set(ctx, tenantID, bookingDomain.SettingOutlookTenantID, "contoso-tenant")
	_ = r.Set(ctx, tenantID, bookingDomain.SettingOutlookClientID, "client-id")
	_ = r.Set(ctx, tenantID, bookingDomain.SettingOutlookClientSecret, "client-secret")
}

type stubAvailability struct {
	mu    sync.Mutex
	calls int
}

func (a *stubAvailability) RecomputeForAppointment(context.Context, *bookingDomain.Appointment) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls++
	return nil
}

func (a *stubAvailability) count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.calls
}

type recordingPublisher struct {
	mu          sync.Mutex
	routingKeys []string
}

func (p *recordingPublisher) Publish(_ context.Context, routingKey string, _ []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.routingKeys = append(p.routingKeys, routingKey)
	return nil
}

func (p *recordingPublisher) keys() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.routingKeys...)
}

// fakeSession records every provider call and serves canned responses.
type fakeSession struct {
	mu sync.Mutex

	handle  string
	events  map[string]domain.RemoteEvent
	readErr error

	createEventID string
	createErr     error
	updateErr     error
	deleteErr     error

	subs      []domain.Subscription
	createSub domain.Subscription
	subErr    error

	createdEvents   []domain.RemoteEvent
	allowConcurrent []bool
	updatedEvents   map[string]domain.RemoteEvent
	deletedEvents   []string
	createdSubs     []domain.Subscription
	deletedSubs     []string
}

func newFakeSession(handle string) *fakeSession {
	return &fakeSession{
		handle:        handle,
		events:        make(map[string]domain.RemoteEvent),
		updatedEvents: make(map[string]domain.RemoteEvent),
		createEventID: "evt-created",
	}
}

func (s *fakeSession) UserHandle() string              { return s.handle }
func (s *fakeSession) CheckToken(context.Context) bool { return true }

func (s *fakeSession) ReadEvent(_ context.Context, id string) (*domain.RemoteEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.readErr != nil {
		return nil, s.readErr
	}
	if event, ok := s.events[id]; ok {
		return &event, nil
	}
	return nil, nil
}

func (s *fakeSession) ReadEvents(context.Context, time.Time) ([]domain.RemoteEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.RemoteEvent, 0, len(s.events))
	for _, event := range s.events {
		out = append(out, event)
	}
	return out, nil
}

func (s *fakeSession) IsSlotFree(context.Context, time.Time, time.Time) (bool, error) {
	return true, nil
}

func (s *fakeSession) CreateEvent(_ context.Context, event domain.RemoteEvent, allowConcurrent bool) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.allowConcurrent = append(s.allowConcurrent, allowConcurrent)
	if s.createErr != nil {
		return "", s.createErr
	}
	s.createdEvents = append(s.createdEvents, event)
	return s.createEventID, nil
}

func (s *fakeSession) UpdateEvent(_ context.Context, id string, event domain.RemoteEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.updateErr != nil {
		return s.updateErr
	}
	s.updatedEvents[id] = event
	return nil
}

func (s *fakeSession) DeleteEvent(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.deleteErr != nil {
		return s.deleteErr
	}
	s.deletedEvents = append(s.deletedEvents, id)
	return nil
}

func (s *fakeSession) ListSubscriptions(context.Context) ([]domain.Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.subErr != nil {
		return nil, s.subErr
	}
	return append([]domain.Subscription(nil), s.subs...), nil
}

func (s *fakeSession) CreateSubscription(_ context.Context, sub domain.Subscription) (domain.Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.subErr != nil {
		return domain.Subscription{}, s.subErr
	}
	s.createdSubs = append(s.createdSubs, sub)
	created := sub
	if s.createSub.ID != "" {
		created.ID = s.createSub.ID
	} else {
		created.ID = "sub-created"
	}
	return created, nil
}

func (s *fakeSession) DeleteSubscription(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deletedSubs = append(s.deletedSubs, id)
	return nil
}

type stubPool struct {
	session Session
	err     error
}

func (p *stubPool) GetOrCreate(_ context.Context, creds domain.Credentials, _ uuid.UUID) (Session, error) {
	if p.err != nil {
		return nil, p.err
	}
	if err := creds.Validate(); err != nil {
		return nil, err
	}
	return p.session, nil
}

type stubRenderer struct {
	subject string
	body    string
	err     error
}

func (r *stubRenderer) RenderSubject(_ context.Context, _ uuid.UUID, _, _ string, _ map[string]string) (string, error) {
	if r.err != nil {
		return "", r.err
	}
	return r.subject, nil
}

func (r *stubRenderer) RenderBody(_ context.Context, _ uuid.UUID, _, _ string, _ map[string]string) (string, error) {
	if r.err != nil {
		return "", r.err
	}
	return r.body, nil
}

var errStub = errors.New("stub failure")
