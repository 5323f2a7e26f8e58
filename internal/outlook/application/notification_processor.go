package application

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	bookingDomain "github.com/bookwell/outlooksync/internal/booking/domain"
	"github.com/bookwell/outlooksync/internal/outlook/domain"
)

// Change types as reported by the provider. Deletions arrive as
// "updated" notifications whose event can no longer be fetched; the
// processor rewrites those to changeTypeDeleted itself.
const (
	changeTypeCreated = "created"
	changeTypeUpdated = "updated"
	changeTypeDeleted = "deleted"
)

// CancelReasonSync is recorded on appointments cancelled because their
// remote event disappeared.
const CancelReasonSync = "Outlook synchronisation"

// notificationPayload is the provider's change-notification body.
type notificationPayload struct {
	Value []notificationItem `json:"value"`
}

type notificationItem struct {
	SubscriptionID string `json:"subscriptionId"`
	ChangeType     string `json:"changeType"`
	ClientState    string `json:"clientState"`
	ResourceData   struct {
		ID string `json:"id"`
	} `json:"resourceData"`
}

// Processor turns provider change notifications into local appointment
// mutations.
type Processor struct {
	resources    bookingDomain.ResourceRepository
	appointments bookingDomain.AppointmentRepository
	settings     bookingDomain.SettingsRepository
	sessions     SessionPool
	availability bookingDomain.AvailabilityRecalculator
	publisher    Publisher
	logger       *slog.Logger

	// createMu serializes the read-check-create sequence for created
	// notifications. The provider redelivers notifications, so two
	// deliveries for the same event race to create the mirror
	// appointment; the mutex makes the duplicate see the first one's
	// write.
	createMu sync.Mutex
}

// NewProcessor creates a notification processor.
func NewProcessor(
	resources bookingDomain.ResourceRepository,
	appointments bookingDomain.AppointmentRepository,
	settings bookingDomain.SettingsRepository,
	sessions SessionPool,
	availability bookingDomain.AvailabilityRecalculator,
	publisher Publisher,
	logger *slog.Logger,
) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{
		resources:    resources,
		appointments: appointments,
		settings:     settings,
		sessions:     sessions,
		availability: availability,
		publisher:    publisher,
		logger:       logger,
	}
}

// ProcessNotification handles one change-notification body. It reports
// whether the notification resulted in a consistent local state; the
// caller acknowledges the delivery either way, so false only drives
// logging and metrics.
func (p *Processor) ProcessNotification(ctx context.Context, body []byte) bool {
	var payload notificationPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		p.logger.Warn("discarding malformed notification", "error", err)
		return false
	}
	if len(payload.Value) == 0 {
		p.logger.Warn("discarding empty notification")
		return false
	}

	// Deliveries carry a single change; batched payloads are not sent
	// for calendar resources.
	item := payload.Value[0]
	if item.SubscriptionID == "" || item.ResourceData.ID == "" {
		p.logger.Warn("discarding incomplete notification", "change_type", item.ChangeType)
		return false
	}

	resource, err := p.resources.FindBySubscriptionID(ctx, item.SubscriptionID)
	if err != nil {
		p.logger.Error("resource lookup failed", "subscription_id", item.SubscriptionID, "error", err)
		return false
	}
	if resource == nil {
		// Stale lease, typically one replaced by a renewal moments ago.
		p.logger.Warn("no resource for subscription", "subscription_id", item.SubscriptionID)
		return false
	}

	creds, err := resolveCredentials(ctx, p.settings, resource.TenantID(), resource.UserHandle())
	if err != nil {
		p.logger.Error("credential resolution failed",
			"tenant_id", resource.TenantID(),
			"resource_id", resource.ID(),
			"error", err,
		)
		return false
	}
	session, err := p.sessions.GetOrCreate(ctx, creds, resource.TenantID())
	if err != nil {
		p.logger.Error("session unavailable", "tenant_id", resource.TenantID(), "error", err)
		return false
	}

	remote, err := session.ReadEvent(ctx, item.ResourceData.ID)
	if err != nil {
		p.logger.Error("event fetch rejected", "event_id", item.ResourceData.ID, "error", err)
		return false
	}

	changeType := item.ChangeType
	if remote == nil {
		// An unfetchable event is the only deletion signal the provider
		// gives us.
		changeType = changeTypeDeleted
	}

	switch changeType {
	case changeTypeCreated:
		return p.handleCreated(ctx, resource, remote)
	case changeTypeUpdated:
		return p.handleUpdated(ctx, resource, remote)
	case changeTypeDeleted:
		return p.handleDeleted(ctx, resource, item.ResourceData.ID)
	default:
		p.logger.Warn("unknown change type", "change_type", changeType)
		return false
	}
}

func (p *Processor) handleCreated(ctx context.Context, resource *bookingDomain.Resource, remote *domain.RemoteEvent) bool {
	p.createMu.Lock()
	defer p.createMu.Unlock()

	existing, err := p.appointments.FindByRemoteEventID(ctx, resource.TenantID(), resource.ID(), remote.ID)
	if err != nil {
		p.logger.Error("appointment lookup failed", "event_id", remote.ID, "error", err)
		return false
	}
	if len(existing) > 0 {
		// Redelivered notification; a mirror was already created. A
		// cancelled match counts too, so a late redelivery cannot
		// resurrect a cancelled booking.
		return true
	}

	appointment := bookingDomain.NewOutlookAppointment(resource.TenantID(), resource.ID(), remote.Window(), remote.ID)
	if err := p.appointments.Save(ctx, appointment); err != nil {
		p.logger.Error("appointment save failed", "event_id", remote.ID, "error", err)
		return false
	}
	if err := p.availability.RecomputeForAppointment(ctx, appointment); err != nil {
		p.logger.Error("availability recompute failed", "appointment_id", appointment.ID(), "error", err)
	}
	publishEvents(ctx, p.publisher, p.logger, appointment)

	p.logger.Info("appointment created from notification",
		"appointment_id", appointment.ID(),
		"resource_id", resource.ID(),
		"event_id", remote.ID,
	)
	return true
}

func (p *Processor) handleUpdated(ctx context.Context, resource *bookingDomain.Resource, remote *domain.RemoteEvent) bool {
	matches, err := p.appointments.FindByRemoteEventID(ctx, resource.TenantID(), resource.ID(), remote.ID)
	if err != nil {
		p.logger.Error("appointment lookup failed", "event_id", remote.ID, "error", err)
		return false
	}
	if len(matches) == 0 {
		p.logger.Warn("update without matching appointment", "event_id", remote.ID)
		return false
	}

	for _, appointment := range matches {
		if !appointment.IsActive() {
			continue
		}
		appointment.Reschedule(remote.Window())
		if err := p.appointments.Save(ctx, appointment); err != nil {
			p.logger.Error("appointment save failed", "appointment_id", appointment.ID(), "error", err)
			return false
		}
		if err := p.availability.RecomputeForAppointment(ctx, appointment); err != nil {
			p.logger.Error("availability recompute failed", "appointment_id", appointment.ID(), "error", err)
		}
		publishEvents(ctx, p.publisher, p.logger, appointment)
	}
	return true
}

func (p *Processor) handleDeleted(ctx context.Context, resource *bookingDomain.Resource, remoteEventID string) bool {
	matches, err := p.appointments.FindByRemoteEventID(ctx, resource.TenantID(), resource.ID(), remoteEventID)
	if err != nil {
		p.logger.Error("appointment lookup failed", "event_id", remoteEventID, "error", err)
		return false
	}
	if len(matches) == 0 {
		p.logger.Warn("deletion without matching appointment", "event_id", remoteEventID)
		return false
	}

	for _, appointment := range matches {
		if !appointment.IsActive() {
			continue
		}
		appointment.Cancel(CancelReasonSync, true)
		if err := p.appointments.Save(ctx, appointment); err != nil {
			p.logger.Error("appointment save failed", "appointment_id", appointment.ID(), "error", err)
			return false
		}
		if err := p.availability.RecomputeForAppointment(ctx, appointment); err != nil {
			p.logger.Error("availability recompute failed", "appointment_id", appointment.ID(), "error", err)
		}
		publishEvents(ctx, p.publisher, p.logger, appointment)

		p.logger.Info("appointment cancelled from notification",
			"appointment_id", appointment.ID(),
			"event_id", remoteEventID,
		)
	}
	return true
}
