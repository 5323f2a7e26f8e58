package application

import (
	"context"
	"time"

	"github.com/bookwell/outlooksync/internal/outlook/domain"
	"github.com/google/uuid"
)

// Session is one authenticated connection to the provider for a single
// (tenant, user handle) pair. Every operation re-probes authorization
// before touching the calendar.
type Session interface {
	// UserHandle returns the calendar user this session is bound to.
	UserHandle() string

	// CheckToken probes the session with a cheap read.
	CheckToken(ctx context.Context) bool

	// ReadEvent fetches one event. Transport failures and missing
	// events both yield (nil, nil); only a failed probe is an error.
	ReadEvent(ctx context.Context, id string) (*domain.RemoteEvent, error)

	// ReadEvents fetches all events starting on the given calendar day
	// in the reference timezone.
	ReadEvents(ctx context.Context, day time.Time) ([]domain.RemoteEvent, error)

	// IsSlotFree reports whether [start, end) collides with no existing
	// event. Back-to-back events do not collide.
	IsSlotFree(ctx context.Context, start, end time.Time) (bool, error)

	// CreateEvent submits a new event and returns the provider-assigned
	// id, or "" with a typed error on any failure.
	CreateEvent(ctx context.Context, event domain.RemoteEvent, allowConcurrent bool) (string, error)

	// UpdateEvent patches an existing event. The free-slot check is
	// always enforced here, unlike CreateEvent.
	UpdateEvent(ctx context.Context, id string, event domain.RemoteEvent) error

	// DeleteEvent removes an event.
	DeleteEvent(ctx context.Context, id string) error

	// ListSubscriptions enumerates all change-notification leases held
	// by this session's application.
	ListSubscriptions(ctx context.Context) ([]domain.Subscription, error)

	// CreateSubscription registers a change-notification lease and
	// returns it with the provider-assigned id.
	CreateSubscription(ctx context.Context, sub domain.Subscription) (domain.Subscription, error)

	// DeleteSubscription removes a lease.
	DeleteSubscription(ctx context.Context, id string) error
}

// SessionPool hands out cached sessions, creating or replacing them as
// needed. Safe for concurrent use.
type SessionPool interface {
	GetOrCreate(ctx context.Context, creds domain.Credentials, tenantID uuid.UUID) (Session, error)
}

// TemplateRenderer renders tenant notification templates into event
// subject and body text.
type TemplateRenderer interface {
	RenderSubject(ctx context.Context, tenantID uuid.UUID, templateID, language string, data map[string]string) (string, error)
	RenderBody(ctx context.Context, tenantID uuid.UUID, templateID, language string, data map[string]string) (string, error)
}

// Publisher publishes serialized domain events. Satisfied by the
// eventbus implementations.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, payload []byte) error
}
