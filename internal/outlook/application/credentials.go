package application

import (
	"context"
	"fmt"

	bookingDomain "github.com/bookwell/outlooksync/internal/booking/domain"
	"github.com/bookwell/outlooksync/internal/outlook/domain"
	"github.com/google/uuid"
)

// resolveCredentials assembles provider credentials for one calendar user
// from the tenant's settings.
func resolveCredentials(ctx context.Context, settings bookingDomain.SettingsRepository, tenantID uuid.UUID, userHandle string) (domain.Credentials, error) {
	azureTenant, err := settings.Get(ctx, tenantID, bookingDomain.SettingOutlookTenantID)
	if err != nil {
		return domain.Credentials{}, fmt.Errorf("resolve credentials: %w", err)
	}
	clientID, err := settings.Get(ctx, tenantID, bookingDomain.SettingOutlookClientID)
	if err != nil {
		return domain.Credentials{}, fmt.Errorf("resolve credentials: %w", err)
	}
	clientSecret, err := settings.Get(ctx, tenantID, bookingDomain.SettingOutlookClientSecret)
	if err != nil {
		return domain.Credentials{}, fmt.Errorf("resolve credentials: %w", err)
	}

	creds := domain.Credentials{
		TenantID:     azureTenant,
		ClientID:     clientID,
		ClientSecret: clientSecret,
		UserHandle:   userHandle,
	}
	if err := creds.Validate(); err != nil {
		return domain.Credentials{}, err
	}
	return creds, nil
}

// allowConcurrentEvents reads the tenant toggle that lets outbound
// creates skip the free-slot check.
func allowConcurrentEvents(ctx context.Context, settings bookingDomain.SettingsRepository, tenantID uuid.UUID) bool {
	value, err := settings.Get(ctx, tenantID, bookingDomain.SettingAllowConcurrentEvents)
	if err != nil {
		return false
	}
	return value == "true" || value == "1"
}
