package domain

import (
	"fmt"
	"time"

	sharedDomain "github.com/bookwell/outlooksync/internal/shared/domain"
)

// ReferenceTimezone is the fixed timezone used on every provider read and
// write. All remote event timestamps are expressed in this zone.
const ReferenceTimezone = "Europe/Berlin"

// PlaceholderEventID marks an event that has not been created at the
// provider yet. The provider assigns the real id on create.
const PlaceholderEventID = "new"

// RemoteEvent is the provider's view of a calendar entry. Instances are
// ephemeral: they exist only for the duration of a read or write.
type RemoteEvent struct {
	ID      string
	Subject string
	Body    string
	Start   time.Time
	End     time.Time
}

// NewRemoteEvent builds an event that has not been created remotely yet.
func NewRemoteEvent(subject, body string, start, end time.Time) RemoteEvent {
	return RemoteEvent{
		ID:      PlaceholderEventID,
		Subject: subject,
		Body:    body,
		Start:   start,
		End:     end,
	}
}

// Validate checks the event validity invariant: non-empty id, non-empty
// subject and a non-degenerate time window.
func (e RemoteEvent) Validate() error {
	if e.ID == "" {
		return fmt.Errorf("%w: missing id", ErrValidation)
	}
	if e.Subject == "" {
		return fmt.Errorf("%w: missing subject", ErrValidation)
	}
	if e.Start.Equal(e.End) {
		return fmt.Errorf("%w: start equals end", ErrValidation)
	}
	return nil
}

// Window returns the event's time window.
func (e RemoteEvent) Window() sharedDomain.TimeRange {
	return sharedDomain.NewTimeRange(e.Start, e.End)
}

// DurationMinutes returns the event length in whole minutes.
func (e RemoteEvent) DurationMinutes() int {
	return e.Window().Minutes()
}
