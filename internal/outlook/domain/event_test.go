package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRemoteEvent_Validate(t *testing.T) {
	start := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	end := start.Add(30 * time.Minute)

	t.Run("valid", func(t *testing.T) {
		ev := RemoteEvent{ID: "AAMk1", Subject: "Checkup", Start: start, End: end}
		assert.NoError(t, ev.Validate())
	})

	t.Run("missing id", func(t *testing.T) {
		ev := RemoteEvent{Subject: "Checkup", Start: start, End: end}
		assert.ErrorIs(t, ev.Validate(), ErrValidation)
	})

	t.Run("missing subject", func(t *testing.T) {
		ev := RemoteEvent{ID: "AAMk1", Start: start, End: end}
		assert.ErrorIs(t, ev.Validate(), ErrValidation)
	})

	t.Run("degenerate window", func(t *testing.T) {
		ev := RemoteEvent{ID: "AAMk1", Subject: "Checkup", Start: start, End: start}
		assert.ErrorIs(t, ev.Validate(), ErrValidation)
	})
}

func TestNewRemoteEvent_UsesPlaceholderID(t *testing.T) {
	start := time.Now()
	ev := NewRemoteEvent("Checkup", "<p>hi</p>", start, start.Add(time.Hour))
	require.Equal(t, PlaceholderEventID, ev.ID)
	assert.NoError(t, ev.Validate())
	assert.Equal(t, 60, ev.DurationMinutes())
}

func TestNewSubscription(t *testing.T) {
	sub := NewSubscription("rooms@contoso.com", "https://booking.example.com", "secret")
	assert.Equal(t, "/users/rooms@contoso.com/events", sub.Resource)
	assert.Equal(t, "created,updated", sub.ChangeTypes)
	assert.Equal(t, "https://booking.example.com/api/outlook/notify", sub.NotificationURL)
	assert.Equal(t, "https://booking.example.com/api/outlook/lifecycle_notify", sub.LifecycleNotificationURL)
	assert.WithinDuration(t, time.Now().UTC().Add(SubscriptionLeaseWindow), sub.ExpiresAt, time.Minute)
}

func TestCredentials_Validate(t *testing.T) {
	creds := Credentials{TenantID: "t", ClientID: "c", ClientSecret: "s", UserHandle: "u@x"}
	assert.NoError(t, creds.Validate())

	creds.ClientSecret = ""
	assert.ErrorIs(t, creds.Validate(), ErrValidation)
}
