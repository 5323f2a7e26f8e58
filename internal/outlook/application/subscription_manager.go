package application

import (
	"context"
	"log/slog"

	bookingDomain "github.com/bookwell/outlooksync/internal/booking/domain"
	"github.com/bookwell/outlooksync/internal/outlook/domain"
)

// SubscriptionManager keeps provider change-notification leases alive
// for every calendar-linked resource.
type SubscriptionManager struct {
	resources   bookingDomain.ResourceRepository
	settings    bookingDomain.SettingsRepository
	sessions    SessionPool
	publisher   Publisher
	clientState string
	logger      *slog.Logger
}

// NewSubscriptionManager creates a subscription manager. clientState is
// the shared secret echoed back in every notification.
func NewSubscriptionManager(
	resources bookingDomain.ResourceRepository,
	settings bookingDomain.SettingsRepository,
	sessions SessionPool,
	publisher Publisher,
	clientState string,
	logger *slog.Logger,
) *SubscriptionManager {
	if logger == nil {
		logger = slog.Default()
	}
	return &SubscriptionManager{
		resources:   resources,
		settings:    settings,
		sessions:    sessions,
		publisher:   publisher,
		clientState: clientState,
		logger:      logger,
	}
}

// RegisterOrRenew replaces the resource's provider lease with a fresh
// one. Every existing lease held by the application registration is
// deleted first, so a resource never accumulates stale leases that
// would double-deliver notifications.
func (m *SubscriptionManager) RegisterOrRenew(ctx context.Context, resource *bookingDomain.Resource) bool {
	if !resource.IsCalendarLinked() {
		return false
	}

	creds, err := resolveCredentials(ctx, m.settings, resource.TenantID(), resource.UserHandle())
	if err != nil {
		m.logger.Error("credential resolution failed", "resource_id", resource.ID(), "error", err)
		return false
	}
	session, err := m.sessions.GetOrCreate(ctx, creds, resource.TenantID())
	if err != nil {
		m.logger.Error("session unavailable", "tenant_id", resource.TenantID(), "error", err)
		return false
	}

	baseURL, err := m.settings.Get(ctx, resource.TenantID(), bookingDomain.SettingExternalBaseURL)
	if err != nil || baseURL == "" {
		m.logger.Error("external base url not configured", "tenant_id", resource.TenantID(), "error", err)
		return false
	}

	existing, err := session.ListSubscriptions(ctx)
	if err != nil {
		m.logger.Error("subscription listing failed", "resource_id", resource.ID(), "error", err)
		return false
	}
	for _, sub := range existing {
		if err := session.DeleteSubscription(ctx, sub.ID); err != nil {
			m.logger.Warn("stale lease delete failed", "subscription_id", sub.ID, "error", err)
		}
	}

	created, err := session.CreateSubscription(ctx, domain.NewSubscription(resource.UserHandle(), baseURL, m.clientState))
	if err != nil {
		m.logger.Error("lease registration failed", "resource_id", resource.ID(), "error", err)
		return false
	}

	resource.SetSubscriptionID(created.ID)
	if err := m.resources.Save(ctx, resource); err != nil {
		m.logger.Error("resource save failed", "resource_id", resource.ID(), "error", err)
		return false
	}
	publishEvents(ctx, m.publisher, m.logger, resource)

	m.logger.Info("lease renewed",
		"resource_id", resource.ID(),
		"subscription_id", created.ID,
		"expires_at", created.ExpiresAt,
	)
	return true
}

// RenewAll renews the lease of every calendar-linked resource. Failures
// are per-resource; one broken tenant never blocks the others.
func (m *SubscriptionManager) RenewAll(ctx context.Context) {
	resources, err := m.resources.FindCalendarLinked(ctx)
	if err != nil {
		m.logger.Error("calendar-linked resource listing failed", "error", err)
		return
	}

	renewed := 0
	for _, resource := range resources {
		if m.RegisterOrRenew(ctx, resource) {
			renewed++
		}
	}
	m.logger.Info("lease renewal sweep finished", "total", len(resources), "renewed", renewed)
}
