package domain

import (
	"context"

	"github.com/google/uuid"
)

// Tenant setting names consumed by the synchronization engine.
const (
	SettingOutlookTenantID       = "outlook.azure_tenant_id"
	SettingOutlookClientID       = "outlook.azure_client_id"
	SettingOutlookClientSecret   = "outlook.azure_client_secret"
	SettingAllowConcurrentEvents = "outlook.allow_concurrent_events"
	SettingExternalBaseURL       = "tenant.external_base_url"
	SettingDefaultLanguage       = "tenant.default_language"
)

// SettingsRepository provides per-tenant configuration values.
type SettingsRepository interface {
	// Get returns the value of a tenant setting, or "" when unset.
	Get(ctx context.Context, tenantID uuid.UUID, name string) (string, error)

	// Set stores a tenant setting.
	Set(ctx context.Context, tenantID uuid.UUID, name, value string) error
}
