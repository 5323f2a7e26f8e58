package api

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	bookingDomain "github.com/bookwell/outlooksync/internal/booking/domain"
)

// maxNotificationBytes caps the accepted notification body size.
const maxNotificationBytes = 1 << 20

// NotificationProcessor consumes one raw change-notification body.
type NotificationProcessor interface {
	ProcessNotification(ctx context.Context, body []byte) bool
}

// SubscriptionRenewer replaces a resource's provider lease.
type SubscriptionRenewer interface {
	RegisterOrRenew(ctx context.Context, resource *bookingDomain.Resource) bool
}

// WebhookHandler terminates the provider's notification callbacks.
type WebhookHandler struct {
	processor   NotificationProcessor
	renewer     SubscriptionRenewer
	resources   bookingDomain.ResourceRepository
	clientState string
	logger      *slog.Logger
}

// NewWebhookHandler creates a webhook handler. clientState is the
// shared secret the provider echoes back in every notification; an
// empty value disables the check.
func NewWebhookHandler(
	processor NotificationProcessor,
	renewer SubscriptionRenewer,
	resources bookingDomain.ResourceRepository,
	clientState string,
	logger *slog.Logger,
) *WebhookHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &WebhookHandler{
		processor:   processor,
		renewer:     renewer,
		resources:   resources,
		clientState: clientState,
		logger:      logger,
	}
}

// HandleNotify receives change notifications. The provider validates
// new subscriptions by sending a validationToken that must be echoed
// back as plain text; everything else is acknowledged with 202 whether
// or not processing succeeded, since the provider would otherwise
// retry a notification we cannot ever handle.
func (h *WebhookHandler) HandleNotify(w http.ResponseWriter, r *http.Request) {
	if token := r.URL.Query().Get("validationToken"); token != "" {
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(token))
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxNotificationBytes))
	if err != nil {
		h.logger.Warn("notification body read failed", "error", err)
		w.WriteHeader(http.StatusAccepted)
		return
	}

	if !h.clientStateMatches(body) {
		h.logger.Warn("dropping notification with bad client state")
		w.WriteHeader(http.StatusAccepted)
		return
	}

	if !h.processor.ProcessNotification(r.Context(), body) {
		h.logger.Warn("notification not applied")
	}
	w.WriteHeader(http.StatusAccepted)
}

// lifecyclePayload is the provider's lifecycle-notification body.
type lifecyclePayload struct {
	Value []struct {
		SubscriptionID string `json:"subscriptionId"`
		LifecycleEvent string `json:"lifecycleEvent"`
		ClientState    string `json:"clientState"`
	} `json:"value"`
}

// HandleLifecycle receives lifecycle notifications. A lease that is
// about to expire or was removed is renewed immediately instead of
// waiting for the next sweep.
func (h *WebhookHandler) HandleLifecycle(w http.ResponseWriter, r *http.Request) {
	if token := r.URL.Query().Get("validationToken"); token != "" {
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(token))
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxNotificationBytes))
	if err != nil {
		h.logger.Warn("lifecycle body read failed", "error", err)
		w.WriteHeader(http.StatusAccepted)
		return
	}

	var payload lifecyclePayload
	if err := json.Unmarshal(body, &payload); err != nil {
		h.logger.Warn("discarding malformed lifecycle notification", "error", err)
		w.WriteHeader(http.StatusAccepted)
		return
	}

	for _, item := range payload.Value {
		if h.clientState != "" && subtle.ConstantTimeCompare([]byte(item.ClientState), []byte(h.clientState)) != 1 {
			h.logger.Warn("dropping lifecycle notification with bad client state",
				"subscription_id", item.SubscriptionID,
			)
			continue
		}

		switch item.LifecycleEvent {
		case "reauthorizationRequired", "subscriptionRemoved", "missed":
			h.renewLease(r.Context(), item.SubscriptionID, item.LifecycleEvent)
		default:
			h.logger.Info("lifecycle event ignored",
				"subscription_id", item.SubscriptionID,
				"event", item.LifecycleEvent,
			)
		}
	}
	w.WriteHeader(http.StatusAccepted)
}

func (h *WebhookHandler) renewLease(ctx context.Context, subscriptionID, event string) {
	resource, err := h.resources.FindBySubscriptionID(ctx, subscriptionID)
	if err != nil || resource == nil {
		h.logger.Warn("lifecycle notification for unknown subscription",
			"subscription_id", subscriptionID,
			"event", event,
		)
		return
	}
	if !h.renewer.RegisterOrRenew(ctx, resource) {
		h.logger.Error("lease renewal from lifecycle event failed",
			"resource_id", resource.ID(),
			"event", event,
		)
	}
}

// clientStateMatches checks every notification in the body against the
// shared secret.
func (h *WebhookHandler) clientStateMatches(body []byte) bool {
	if h.clientState == "" {
		return true
	}

	var payload struct {
		Value []struct {
			ClientState string `json:"clientState"`
		} `json:"value"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		// Leave malformed bodies to the processor's own validation.
		return true
	}
	for _, item := range payload.Value {
		if subtle.ConstantTimeCompare([]byte(item.ClientState), []byte(h.clientState)) != 1 {
			return false
		}
	}
	return true
}
