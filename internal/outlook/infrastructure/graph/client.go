// Package graph talks to the Microsoft Graph calendar API over plain
// HTTP, authenticated with the client-credential flow.
package graph

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/bookwell/outlooksync/internal/outlook/domain"
	"github.com/sony/gobreaker/v2"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

const defaultBaseURL = "https://graph.microsoft.com/v1.0"

// tokenURL is the v2.0 client-credential token endpoint per directory tenant.
const tokenURL = "https://login.microsoftonline.com/%s/oauth2/v2.0/token"

// DefaultScopes is the application-wide scope for client-credential auth.
var DefaultScopes = []string{"https://graph.microsoft.com/.default"}

const (
	graphTimeFormat     = "2006-01-02T15:04:05"
	graphTimeFormatFrac = "2006-01-02T15:04:05.0000000"
)

// referenceLocation resolves the fixed reference timezone. Falls back to
// UTC when the zone database is unavailable.
var referenceLocation = func() *time.Location {
	loc, err := time.LoadLocation(domain.ReferenceTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}()

// Client is one authenticated Graph session for a (tenant, user handle)
// pair. All calendar operations run against the bound user's calendar.
type Client struct {
	creds   domain.Credentials
	baseURL string
	http    *http.Client
	breaker *gobreaker.CircuitBreaker[*http.Response]
	logger  *slog.Logger
}

// NewClient creates a Graph client using client-credential authentication.
func NewClient(creds domain.Credentials, logger *slog.Logger) *Client {
	cc := &clientcredentials.Config{
		ClientID:     creds.ClientID,
		ClientSecret: creds.ClientSecret,
		TokenURL:     fmt.Sprintf(tokenURL, creds.TenantID),
		Scopes:       DefaultScopes,
	}
	return NewClientWithBaseURL(creds, cc.TokenSource(context.Background()), defaultBaseURL, logger)
}

// NewClientWithBaseURL creates a Graph client with an explicit token
// source and base URL. Used for national-cloud endpoints and tests.
func NewClientWithBaseURL(creds domain.Credentials, source oauth2.TokenSource, baseURL string, logger *slog.Logger) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if logger == nil {
		logger = slog.Default()
	}
	breaker := gobreaker.NewCircuitBreaker[*http.Response](gobreaker.Settings{
		Name:    "graph:" + creds.UserHandle,
		Timeout: 30 * time.Second,
	})
	return &Client{
		creds:   creds,
		baseURL: baseURL,
		http: &http.Client{
			Timeout: 15 * time.Second,
			Transport: &bearerTransport{
				base:   http.DefaultTransport,
				source: source,
			},
		},
		breaker: breaker,
		logger:  logger,
	}
}

// UserHandle returns the calendar user this session is bound to.
func (c *Client) UserHandle() string { return c.creds.UserHandle }

// CheckToken probes authorization with a cheap user read.
func (c *Client) CheckToken(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.userURL(), nil)
	if err != nil {
		return false
	}
	resp, err := c.do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode >= 200 && resp.StatusCode < 300
}

// ReadEvent fetches one event with a fixed field projection. Any
// transport failure yields (nil, nil): an unfetchable event is the
// deletion signal, not an error.
func (c *Client) ReadEvent(ctx context.Context, id string) (*domain.RemoteEvent, error) {
	if !c.CheckToken(ctx) {
		return nil, domain.ErrUnauthorized
	}
	return c.readEvent(ctx, id), nil
}

// ReadEvents fetches all events starting on the given calendar day.
func (c *Client) ReadEvents(ctx context.Context, day time.Time) ([]domain.RemoteEvent, error) {
	if !c.CheckToken(ctx) {
		return nil, domain.ErrUnauthorized
	}
	return c.readEvents(ctx, day)
}

// IsSlotFree reports whether [start, end) collides with no existing event.
func (c *Client) IsSlotFree(ctx context.Context, start, end time.Time) (bool, error) {
	if !c.CheckToken(ctx) {
		return false, domain.ErrUnauthorized
	}
	return c.slotFree(ctx, start, end)
}

// CreateEvent validates and submits a new event, returning the
// provider-assigned id. With allowConcurrent false an occupied slot
// aborts the create before any remote write.
func (c *Client) CreateEvent(ctx context.Context, event domain.RemoteEvent, allowConcurrent bool) (string, error) {
	if !c.CheckToken(ctx) {
		return "", domain.ErrUnauthorized
	}
	if err := event.Validate(); err != nil {
		return "", err
	}
	if !allowConcurrent {
		free, err := c.slotFree(ctx, event.Start, event.End)
		if err != nil {
			return "", err
		}
		if !free {
			return "", domain.ErrConflict
		}
	}

	body, err := json.Marshal(toGraphEvent(event))
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrTransport, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.eventsURL(), bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrTransport, err)
	}
	req.Header.Set("Content-Type", "application/json")
	setTimezonePreference(req)

	resp, err := c.do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrTransport, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", responseError(resp)
	}

	var created graphEvent
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrTransport, err)
	}
	if created.ID == "" {
		return "", fmt.Errorf("%w: create response missing id", domain.ErrTransport)
	}
	return created.ID, nil
}

// UpdateEvent validates and patches an existing event. The free-slot
// check is always enforced, with no allowConcurrent escape hatch; this
// asymmetry with CreateEvent is long-standing behavior.
func (c *Client) UpdateEvent(ctx context.Context, id string, event domain.RemoteEvent) error {
	if !c.CheckToken(ctx) {
		return domain.ErrUnauthorized
	}
	if err := event.Validate(); err != nil {
		return err
	}
	free, err := c.slotFree(ctx, event.Start, event.End)
	if err != nil {
		return err
	}
	if !free {
		return domain.ErrConflict
	}

	body, err := json.Marshal(toGraphEvent(event))
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrTransport, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, c.eventsURL()+"/"+url.PathEscape(id), bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrTransport, err)
	}
	req.Header.Set("Content-Type", "application/json")
	setTimezonePreference(req)

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

// DeleteEvent removes an event from the remote calendar.
func (c *Client) DeleteEvent(ctx context.Context, id string) error {
	if !c.CheckToken(ctx) {
		return domain.ErrUnauthorized
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.eventsURL()+"/"+url.PathEscape(id), nil)
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

// Internal reads. These assume the caller has already probed.

func (c *Client) readEvent(ctx context.Context, id string) *domain.RemoteEvent {
	params := url.Values{}
	params.Set("$select", "subject,start,end,body,location")
	reqURL := c.eventsURL() + "/" + url.PathEscape(id) + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil
	}
	setTimezonePreference(req)

	resp, err := c.do(req)
	if err != nil {
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil
	}

	var item graphEvent
	if err := json.NewDecoder(resp.Body).Decode(&item); err != nil {
		return nil
	}
	ev := fromGraphEvent(item)
	return &ev
}

func (c *Client) readEvents(ctx context.Context, day time.Time) ([]domain.RemoteEvent, error) {
	date := day.In(referenceLocation).Format("2006-01-02")
	params := url.Values{}
	params.Set("$select", "subject,start,end,body,location")
	params.Set("$filter", fmt.Sprintf("start/dateTime ge '%sT00:00:00' and start/dateTime le '%sT23:59:59'", date, date))
	reqURL := c.eventsURL() + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrTransport, err)
	}
	setTimezonePreference(req)

	resp, err := c.do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrTransport, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, responseError(resp)
	}

	var payload struct {
		Value []graphEvent `json:"value"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrTransport, err)
	}

	events := make([]domain.RemoteEvent, 0, len(payload.Value))
	for _, item := range payload.Value {
		// Entries missing required fields are skipped, not surfaced.
		if item.ID == "" || item.Subject == "" {
			continue
		}
		events = append(events, fromGraphEvent(item))
	}
	return events, nil
}

func (c *Client) slotFree(ctx context.Context, start, end time.Time) (bool, error) {
	existing, err := c.readEvents(ctx, start)
	if err != nil {
		return false, err
	}
	slot := domain.RemoteEvent{Start: start, End: end}.Window()
	for _, ev := range existing {
		if slot.Conflicts(ev.Window()) {
			return false, nil
		}
	}
	return true, nil
}

// URL helpers.

func (c *Client) userURL() string {
	return c.baseURL + "/users/" + url.PathEscape(c.creds.UserHandle)
}

func (c *Client) eventsURL() string {
	return c.userURL() + "/calendar/events"
}

func (c *Client) do(req *http.Request) (*http.Response, error) {
	return c.breaker.Execute(func() (*http.Response, error) {
		return c.http.Do(req)
	})
}

func setTimezonePreference(req *http.Request) {
	req.Header.Set("Prefer", fmt.Sprintf("outlook.timezone=%q", domain.ReferenceTimezone))
}

func responseError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	return fmt.Errorf("%w: status=%d body=%s", domain.ErrTransport, resp.StatusCode, string(body))
}

// Graph wire types.

type graphEvent struct {
	ID       string         `json:"id,omitempty"`
	Subject  string         `json:"subject"`
	Body     graphItemBody  `json:"body"`
	Start    graphDateTime  `json:"start"`
	End      graphDateTime  `json:"end"`
	Location *graphLocation `json:"location,omitempty"`

	AllowNewTimeProposals bool `json:"allowNewTimeProposals"`
}

type graphItemBody struct {
	ContentType string `json:"contentType"`
	Content     string `json:"content"`
}

type graphDateTime struct {
	DateTime string `json:"dateTime"`
	TimeZone string `json:"timeZone"`
}

type graphLocation struct {
	DisplayName string `json:"displayName,omitempty"`
}

func toGraphEvent(event domain.RemoteEvent) graphEvent {
	return graphEvent{
		Subject: event.Subject,
		Body: graphItemBody{
			ContentType: "html",
			Content:     event.Body,
		},
		Start: graphDateTime{
			DateTime: event.Start.In(referenceLocation).Format(graphTimeFormat),
			TimeZone: domain.ReferenceTimezone,
		},
		End: graphDateTime{
			DateTime: event.End.In(referenceLocation).Format(graphTimeFormat),
			TimeZone: domain.ReferenceTimezone,
		},
	}
}

func fromGraphEvent(item graphEvent) domain.RemoteEvent {
	return domain.RemoteEvent{
		ID:      item.ID,
		Subject: item.Subject,
		Body:    item.Body.Content,
		Start:   parseGraphTime(item.Start.DateTime),
		End:     parseGraphTime(item.End.DateTime),
	}
}

// parseGraphTime parses the provider's event timestamps, which arrive in
// the reference timezone with or without fractional seconds.
func parseGraphTime(value string) time.Time {
	if t, err := time.ParseInLocation(graphTimeFormatFrac, value, referenceLocation); err == nil {
		return t
	}
	if t, err := time.ParseInLocation(graphTimeFormat, value, referenceLocation); err == nil {
		return t
	}
	return time.Time{}
}
