package domain

import (
	"context"
	"encoding/json"
	"time"

	sharedDomain "github.com/bookwell/outlooksync/internal/shared/domain"
	"github.com/google/uuid"
)

// Custom-data keys on a resource record. userHandle names the provider
// calendar user the resource mirrors; templateUID selects the tenant
// template used to render outbound event subject and body.
const (
	CustomKeyUserHandle = "userHandle"
	CustomKeyTemplateID = "templateUID"
)

// Resource is a bookable asset (a room, a machine, a person) owned by a
// tenant. Resources with a calendar user handle are kept in sync with
// the provider.
type Resource struct {
	sharedDomain.BaseAggregateRoot
	tenantID       uuid.UUID
	name           string
	subscriptionID string
	custom         map[string]string
}

// NewResource creates a resource for a tenant.
func NewResource(tenantID uuid.UUID, name string) *Resource {
	return &Resource{
		BaseAggregateRoot: sharedDomain.NewBaseAggregateRoot(),
		tenantID:          tenantID,
		name:              name,
		custom:            make(map[string]string),
	}
}

func (r *Resource) TenantID() uuid.UUID    { return r.tenantID }
func (r *Resource) Name() string           { return r.name }
func (r *Resource) SubscriptionID() string { return r.subscriptionID }

// UserHandle returns the provider calendar user this resource mirrors,
// or "" when the resource is not calendar-linked.
func (r *Resource) UserHandle() string {
	return r.custom[CustomKeyUserHandle]
}

// TemplateID returns the notification template id, or "" when unset.
func (r *Resource) TemplateID() string {
	return r.custom[CustomKeyTemplateID]
}

// IsCalendarLinked reports whether the resource participates in
// provider synchronization.
func (r *Resource) IsCalendarLinked() bool {
	return r.UserHandle() != ""
}

// CustomValue returns one custom-data entry.
func (r *Resource) CustomValue(key string) string {
	return r.custom[key]
}

// SetCustom sets a custom-data entry.
func (r *Resource) SetCustom(key, value string) {
	if r.custom == nil {
		r.custom = make(map[string]string)
	}
	r.custom[key] = value
	r.Touch()
}

// SetSubscriptionID replaces the stored provider lease id and records
// the renewal.
func (r *Resource) SetSubscriptionID(id string) {
	r.subscriptionID = id
	r.Touch()
	r.AddDomainEvent(NewSubscriptionRenewedEvent(r.ID(), r.tenantID, id))
}

// CustomJSON serializes the custom-data map for persistence.
func (r *Resource) CustomJSON() string {
	if len(r.custom) == 0 {
		return "{}"
	}
	data, err := json.Marshal(r.custom)
	if err != nil {
		return "{}"
	}
	return string(data)
}

// RehydrateResource recreates a resource from persisted state.
func RehydrateResource(
	id, tenantID uuid.UUID,
	name, subscriptionID, customJSON string,
	createdAt, updatedAt time.Time,
	version int,
) *Resource {
	custom := make(map[string]string)
	if customJSON != "" && customJSON != "{}" {
		_ = json.Unmarshal([]byte(customJSON), &custom)
	}
	entity := sharedDomain.RehydrateBaseEntity(id, createdAt, updatedAt)
	return &Resource{
		BaseAggregateRoot: sharedDomain.RehydrateBaseAggregateRoot(entity, version),
		tenantID:          tenantID,
		name:              name,
		subscriptionID:    subscriptionID,
		custom:            custom,
	}
}

// ResourceRepository defines resource persistence.
type ResourceRepository interface {
	// Save persists a resource (create or update).
	Save(ctx context.Context, resource *Resource) error

	// FindByID finds a resource by ID.
	FindByID(ctx context.Context, id uuid.UUID) (*Resource, error)

	// FindBySubscriptionID resolves the resource owning a provider
	// lease. Returns nil when no resource references the lease.
	FindBySubscriptionID(ctx context.Context, subscriptionID string) (*Resource, error)

	// FindCalendarLinked returns all resources with a calendar user
	// handle configured, across tenants.
	FindCalendarLinked(ctx context.Context) ([]*Resource, error)
}
