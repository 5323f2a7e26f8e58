package domain

import "time"

// Subscription lease parameters. The provider caps leases at a few days,
// so renewals must run well inside this window.
const (
	// SubscriptionChangeTypes lists the change notifications requested.
	// The provider reports deletions as "updated" with the event no
	// longer fetchable, so "deleted" is never requested.
	SubscriptionChangeTypes = "created,updated"

	// SubscriptionLeaseWindow is the lease lifetime requested on
	// registration and renewal.
	SubscriptionLeaseWindow = 48 * time.Hour
)

// Subscription is the provider-side registration that causes change
// notifications to be pushed to this system.
type Subscription struct {
	ID                       string
	Resource                 string
	ChangeTypes              string
	NotificationURL          string
	LifecycleNotificationURL string
	ClientState              string
	ExpiresAt                time.Time
}

// NewSubscription builds a lease request for one user's calendar.
func NewSubscription(userHandle, baseURL, clientState string) Subscription {
	return Subscription{
		Resource:                 "/users/" + userHandle + "/events",
		ChangeTypes:              SubscriptionChangeTypes,
		NotificationURL:          baseURL + "/api/outlook/notify",
		LifecycleNotificationURL: baseURL + "/api/outlook/lifecycle_notify",
		ClientState:              clientState,
		ExpiresAt:                time.Now().UTC().Add(SubscriptionLeaseWindow),
	}
}
