package application

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	sharedDomain "github.com/bookwell/outlooksync/internal/shared/domain"
	"github.com/google/uuid"
)

// aggregate is the slice of aggregate-root behavior the application layer
// needs for event publication.
type aggregate interface {
	DomainEvents() []sharedDomain.DomainEvent
	ClearDomainEvents()
}

// eventEnvelope is the wire form of a domain event: common metadata from
// the event interface plus the event's own payload fields.
type eventEnvelope struct {
	EventID       uuid.UUID                `json:"event_id"`
	AggregateID   uuid.UUID                `json:"aggregate_id"`
	AggregateType string                   `json:"aggregate_type"`
	TenantID      uuid.UUID                `json:"tenant_id"`
	OccurredAt    time.Time                `json:"occurred_at"`
	Payload       sharedDomain.DomainEvent `json:"payload"`
}

// publishEvents drains an aggregate's recorded domain events onto the
// bus. Publication is best-effort: a broker failure is logged and never
// fails the surrounding operation.
func publishEvents(ctx context.Context, publisher Publisher, logger *slog.Logger, agg aggregate) {
	for _, event := range agg.DomainEvents() {
		payload, err := json.Marshal(eventEnvelope{
			EventID:       event.EventID(),
			AggregateID:   event.AggregateID(),
			AggregateType: event.AggregateType(),
			TenantID:      event.TenantID(),
			OccurredAt:    event.OccurredAt(),
			Payload:       event,
		})
		if err != nil {
			logger.Error("marshal domain event failed",
				"routing_key", event.RoutingKey(),
				"error", err,
			)
			continue
		}
		if err := publisher.Publish(ctx, event.RoutingKey(), payload); err != nil {
			logger.Error("publish domain event failed",
				"routing_key", event.RoutingKey(),
				"error", err,
			)
		}
	}
	agg.ClearDomainEvents()
}
