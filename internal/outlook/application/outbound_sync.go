package application

import (
	"context"
	"errors"
	"log/slog"
	"time"

	bookingDomain "github.com/bookwell/outlooksync/internal/booking/domain"
	"github.com/bookwell/outlooksync/internal/outlook/domain"
)

// OutboundSync mirrors locally made appointment changes to the provider
// calendar. Every operation reports plain success or failure; callers
// never roll back the local write when the remote one fails.
type OutboundSync struct {
	resources    bookingDomain.ResourceRepository
	appointments bookingDomain.AppointmentRepository
	settings     bookingDomain.SettingsRepository
	sessions     SessionPool
	renderer     TemplateRenderer
	publisher    Publisher
	logger       *slog.Logger
}

// NewOutboundSync creates an outbound synchronizer.
func NewOutboundSync(
	resources bookingDomain.ResourceRepository,
	appointments bookingDomain.AppointmentRepository,
	settings bookingDomain.SettingsRepository,
	sessions SessionPool,
	renderer TemplateRenderer,
	publisher Publisher,
	logger *slog.Logger,
) *OutboundSync {
	if logger == nil {
		logger = slog.Default()
	}
	return &OutboundSync{
		resources:    resources,
		appointments: appointments,
		settings:     settings,
		sessions:     sessions,
		renderer:     renderer,
		publisher:    publisher,
		logger:       logger,
	}
}

// PushCreate creates the remote event mirroring a locally booked
// appointment and records the cross-reference on success.
func (s *OutboundSync) PushCreate(ctx context.Context, appointment *bookingDomain.Appointment) bool {
	resource, session, ok := s.sessionFor(ctx, appointment)
	if !ok {
		return false
	}

	subject, body := s.render(ctx, resource, appointment)
	event := domain.NewRemoteEvent(subject, body, appointment.Window().Start, appointment.Window().End)
	allowConcurrent := allowConcurrentEvents(ctx, s.settings, resource.TenantID())

	remoteID, err := session.CreateEvent(ctx, event, allowConcurrent)
	if err != nil {
		if errors.Is(err, domain.ErrConflict) {
			s.logger.Warn("remote slot already taken",
				"appointment_id", appointment.ID(),
				"resource_id", resource.ID(),
			)
		} else {
			s.logger.Error("remote create failed", "appointment_id", appointment.ID(), "error", err)
		}
		return false
	}

	appointment.SetRemoteEventID(remoteID)
	if err := s.appointments.Save(ctx, appointment); err != nil {
		s.logger.Error("cross-reference save failed", "appointment_id", appointment.ID(), "error", err)
		return false
	}
	publishEvents(ctx, s.publisher, s.logger, appointment)

	s.logger.Info("remote event created",
		"appointment_id", appointment.ID(),
		"event_id", remoteID,
	)
	return true
}

// PushUpdate patches the remote event after a local reschedule.
func (s *OutboundSync) PushUpdate(ctx context.Context, appointment *bookingDomain.Appointment) bool {
	if appointment.RemoteEventID() == "" {
		// Never pushed; create instead of patching.
		return s.PushCreate(ctx, appointment)
	}

	resource, session, ok := s.sessionFor(ctx, appointment)
	if !ok {
		return false
	}

	subject, body := s.render(ctx, resource, appointment)
	event := domain.RemoteEvent{
		ID:      appointment.RemoteEventID(),
		Subject: subject,
		Body:    body,
		Start:   appointment.Window().Start,
		End:     appointment.Window().End,
	}
	if err := session.UpdateEvent(ctx, appointment.RemoteEventID(), event); err != nil {
		s.logger.Error("remote update failed",
			"appointment_id", appointment.ID(),
			"event_id", appointment.RemoteEventID(),
			"error", err,
		)
		return false
	}
	return true
}

// PushDelete removes the remote event after a local cancellation. The
// cross-reference is cleared even when the remote delete fails, since
// the local appointment is gone either way.
func (s *OutboundSync) PushDelete(ctx context.Context, appointment *bookingDomain.Appointment) bool {
	remoteID := appointment.RemoteEventID()
	if remoteID == "" {
		return true
	}

	deleted := true
	if _, session, ok := s.sessionFor(ctx, appointment); !ok {
		deleted = false
	} else if err := session.DeleteEvent(ctx, remoteID); err != nil {
		s.logger.Error("remote delete failed",
			"appointment_id", appointment.ID(),
			"event_id", remoteID,
			"error", err,
		)
		deleted = false
	}

	appointment.ClearRemoteEventID()
	if err := s.appointments.Save(ctx, appointment); err != nil {
		s.logger.Error("cross-reference clear failed", "appointment_id", appointment.ID(), "error", err)
		return false
	}
	return deleted
}

// sessionFor resolves the appointment's resource and opens a provider
// session for it. Resources without a calendar user handle do not sync.
func (s *OutboundSync) sessionFor(ctx context.Context, appointment *bookingDomain.Appointment) (*bookingDomain.Resource, Session, bool) {
	resource, err := s.resources.FindByID(ctx, appointment.ResourceID())
	if err != nil || resource == nil {
		s.logger.Error("resource lookup failed", "resource_id", appointment.ResourceID(), "error", err)
		return nil, nil, false
	}
	if !resource.IsCalendarLinked() {
		s.logger.Debug("resource not calendar-linked", "resource_id", resource.ID())
		return nil, nil, false
	}

	creds, err := resolveCredentials(ctx, s.settings, resource.TenantID(), resource.UserHandle())
	if err != nil {
		s.logger.Error("credential resolution failed", "resource_id", resource.ID(), "error", err)
		return nil, nil, false
	}
	session, err := s.sessions.GetOrCreate(ctx, creds, resource.TenantID())
	if err != nil {
		s.logger.Error("session unavailable", "tenant_id", resource.TenantID(), "error", err)
		return nil, nil, false
	}
	return resource, session, true
}

// render produces the remote event's subject and body from the tenant's
// notification template. Rendering failures fall back to the resource
// name so the event still carries a usable subject.
func (s *OutboundSync) render(ctx context.Context, resource *bookingDomain.Resource, appointment *bookingDomain.Appointment) (string, string) {
	language, _ := s.settings.Get(ctx, resource.TenantID(), bookingDomain.SettingDefaultLanguage)
	data := templateData(resource, appointment)

	subject, err := s.renderer.RenderSubject(ctx, resource.TenantID(), resource.TemplateID(), language, data)
	if err != nil || subject == "" {
		if err != nil {
			s.logger.Warn("subject template failed", "template_id", resource.TemplateID(), "error", err)
		}
		subject = resource.Name()
	}
	body, err := s.renderer.RenderBody(ctx, resource.TenantID(), resource.TemplateID(), language, data)
	if err != nil {
		s.logger.Warn("body template failed", "template_id", resource.TemplateID(), "error", err)
		body = ""
	}
	return subject, body
}

func templateData(resource *bookingDomain.Resource, appointment *bookingDomain.Appointment) map[string]string {
	loc, err := time.LoadLocation(domain.ReferenceTimezone)
	if err != nil {
		loc = time.UTC
	}
	window := appointment.Window()
	return map[string]string{
		"number":   appointment.Number(),
		"resource": resource.Name(),
		"date":     window.Start.In(loc).Format("02.01.2006"),
		"start":    window.Start.In(loc).Format("15:04"),
		"end":      window.End.In(loc).Format("15:04"),
		"duration": window.Start.In(loc).Format("15:04") + " - " + window.End.In(loc).Format("15:04"),
	}
}
