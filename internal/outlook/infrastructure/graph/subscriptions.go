package graph

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/bookwell/outlooksync/internal/outlook/domain"
)

// Graph subscription wire type.
type graphSubscription struct {
	ID                       string `json:"id,omitempty"`
	ChangeType               string `json:"changeType"`
	NotificationURL          string `json:"notificationUrl"`
	LifecycleNotificationURL string `json:"lifecycleNotificationUrl,omitempty"`
	Resource                 string `json:"resource"`
	ExpirationDateTime       string `json:"expirationDateTime"`
	ClientState              string `json:"clientState,omitempty"`
}

// ListSubscriptions enumerates every change-notification lease held by
// this session's application registration.
func (c *Client) ListSubscriptions(ctx context.Context) ([]domain.Subscription, error) {
	if !c.CheckToken(ctx) {
		return nil, domain.ErrUnauthorized
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/subscriptions", nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrTransport, err)
	}
	resp, err := c.do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrTransport, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, responseError(resp)
	}

	var payload struct {
		Value []graphSubscription `json:"value"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrTransport, err)
	}

	subs := make([]domain.Subscription, 0, len(payload.Value))
	for _, item := range payload.Value {
		if item.ID == "" {
			continue
		}
		subs = append(subs, fromGraphSubscription(item))
	}
	return subs, nil
}

// CreateSubscription registers a lease and returns it with the
// provider-assigned id.
func (c *Client) CreateSubscription(ctx context.Context, sub domain.Subscription) (domain.Subscription, error) {
	if !c.CheckToken(ctx) {
		return domain.Subscription{}, domain.ErrUnauthorized
	}

	body, err := json.Marshal(toGraphSubscription(sub))
	if err != nil {
		return domain.Subscription{}, fmt.Errorf("%w: %v", domain.ErrTransport, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/subscriptions", bytes.NewReader(body))
	if err != nil {
		return domain.Subscription{}, fmt.Errorf("%w: %v", domain.ErrTransport, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.do(req)
	if err != nil {
		return domain.Subscription{}, fmt.Errorf("%w: %v", domain.ErrTransport, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return domain.Subscription{}, responseError(resp)
	}

	var created graphSubscription
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return domain.Subscription{}, fmt.Errorf("%w: %v", domain.ErrTransport, err)
	}
	if created.ID == "" {
		return domain.Subscription{}, fmt.Errorf("%w: subscription response missing id", domain.ErrTransport)
	}
	return fromGraphSubscription(created), nil
}

// DeleteSubscription removes a lease.
func (c *Client) DeleteSubscription(ctx context.Context, id string) error {
	if !c.CheckToken(ctx) {
		return domain.ErrUnauthorized
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.baseURL+"/subscriptions/"+url.PathEscape(id), nil)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrTransport, err)
	}
	resp, err := c.do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrTransport, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return responseError(resp)
	}
	return nil
}

func toGraphSubscription(sub domain.Subscription) graphSubscription {
	return graphSubscription{
		ChangeType:               sub.ChangeTypes,
		NotificationURL:          sub.NotificationURL,
		LifecycleNotificationURL: sub.LifecycleNotificationURL,
		Resource:                 sub.Resource,
		ExpirationDateTime:       sub.ExpiresAt.UTC().Format(time.RFC3339),
		ClientState:              sub.ClientState,
	}
}

func fromGraphSubscription(item graphSubscription) domain.Subscription {
	expires, _ := time.Parse(time.RFC3339, item.ExpirationDateTime)
	return domain.Subscription{
		ID:                       item.ID,
		ChangeTypes:              item.ChangeType,
		NotificationURL:          item.NotificationURL,
		LifecycleNotificationURL: item.LifecycleNotificationURL,
		Resource:                 item.Resource,
		ClientState:              item.ClientState,
		ExpiresAt:                expires,
	}
}
