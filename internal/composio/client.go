package composio

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// ErrMissingConnection is returned when an auth link response carries no connection id.
var ErrMissingConnection = errors.New("composio: no connection id returned")

// APIError is a non-success answer from the connector. Body is kept for diagnostics.
type APIError struct {
	Op     string
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("composio %s: status %d: %s", e.Op, e.Status, e.Body)
}

// Client talks to the connector's v3 API.
type Client struct {
	baseURL string
	apiKey  string
	timeout time.Duration
	http    *http.Client
}

// NewClient builds a client. Every call is bounded by timeout on top of the caller's context.
func NewClient(baseURL, apiKey string, timeout time.Duration, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		timeout: timeout,
		http:    httpClient,
	}
}

// AuthLink is a pending authorization: the connection the connector created and its consent page.
type AuthLink struct {
	ConnectionID string
	RedirectURL  string
}

// CreateAuthLink asks the connector for a hosted consent page for userID.
func (c *Client) CreateAuthLink(ctx context.Context, authConfigID, userID, callbackURL string) (*AuthLink, error) {
	reqBody := map[string]string{
		"auth_config_id": authConfigID,
		"user_id":        userID,
		"redirect_url":   callbackURL,
	}
	var resp struct {
		ConnectedAccountID string `json:"connected_account_id"`
		ConnectionID       string `json:"connectionId"`
		RedirectURL        string `json:"redirect_url"`
	}
	if err := c.do(ctx, "create auth link", http.MethodPost, "/connected_accounts/link", reqBody, &resp); err != nil {
		return nil, err
	}
	link := &AuthLink{ConnectionID: resp.ConnectedAccountID, RedirectURL: resp.RedirectURL}
	if link.ConnectionID == "" {
		link.ConnectionID = resp.ConnectionID
	}
	if link.ConnectionID == "" {
		return nil, ErrMissingConnection
	}
	if link.RedirectURL == "" {
		return nil, errors.New("composio: no redirect url returned")
	}
	return link, nil
}

// Connection is the connector's handle for an authorized calendar account.
type Connection struct {
	ID        string
	Status    string
	CreatedAt time.Time
}

func (c *Connection) UnmarshalJSON(data []byte) error {
	var raw struct {
		ID           string `json:"id"`
		Status       string `json:"status"`
		CreatedAt    string `json:"createdAt"`
		CreatedAtAlt string `json:"created_at"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	c.ID = raw.ID
	c.Status = raw.Status
	ts := raw.CreatedAt
	if ts == "" {
		ts = raw.CreatedAtAlt
	}
	if ts != "" {
		// unparseable timestamps sort as the oldest
		if parsed, err := time.Parse(time.RFC3339Nano, ts); err == nil {
			c.CreatedAt = parsed
		}
	}
	return nil
}

// ListConnections returns every connection belonging to userID.
func (c *Client) ListConnections(ctx context.Context, userID string) ([]Connection, error) {
	var resp struct {
		Items       []Connection `json:"items"`
		Connections []Connection `json:"connections"`
	}
	path := "/connections?user_id=" + url.QueryEscape(userID)
	if err := c.do(ctx, "list connections", http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	if len(resp.Items) > 0 {
		return resp.Items, nil
	}
	return resp.Connections, nil
}

// EventTime is either a timed instant or an all-day date.
type EventTime struct {
	DateTime string `json:"dateTime,omitempty"`
	Date     string `json:"date,omitempty"`
	TimeZone string `json:"timeZone,omitempty"`
}

type EventAttendee struct {
	Email       string `json:"email,omitempty"`
	DisplayName string `json:"displayName,omitempty"`
}

// Event is a Google Calendar event as returned through the proxy.
type Event struct {
	ID          string          `json:"id"`
	Summary     string          `json:"summary"`
	Description string          `json:"description"`
	Location    string          `json:"location"`
	HangoutLink string          `json:"hangoutLink"`
	Start       *EventTime      `json:"start"`
	End         *EventTime      `json:"end"`
	Attendees   []EventAttendee `json:"attendees"`
}

// EventQuery is a windowed listing of the primary calendar.
type EventQuery struct {
	TimeMin      time.Time
	TimeMax      time.Time
	MaxResults   int
	SingleEvents bool
	OrderBy      string
}

type proxyParameter struct {
	Name  string `json:"name"`
	Value string `json:"value"`
	Type  string `json:"type"`
}

func (q EventQuery) parameters() []proxyParameter {
	var params []proxyParameter
	add := func(name, value string) {
		params = append(params, proxyParameter{Name: name, Value: value, Type: "query"})
	}
	if q.MaxResults > 0 {
		add("maxResults", strconv.Itoa(q.MaxResults))
	}
	if q.OrderBy != "" {
		add("orderBy", q.OrderBy)
	}
	if q.SingleEvents {
		add("singleEvents", "true")
	}
	if !q.TimeMin.IsZero() {
		add("timeMin", q.TimeMin.UTC().Format(time.RFC3339))
	}
	if !q.TimeMax.IsZero() {
		add("timeMax", q.TimeMax.UTC().Format(time.RFC3339))
	}
	return params
}

// ListEvents proxies an events listing of the primary calendar through connectionID.
func (c *Client) ListEvents(ctx context.Context, connectionID string, q EventQuery) ([]Event, error) {
	reqBody := struct {
		ConnectedAccountID string           `json:"connected_account_id"`
		Endpoint           string           `json:"endpoint"`
		Method             string           `json:"method"`
		Parameters         []proxyParameter `json:"parameters"`
	}{
		ConnectedAccountID: connectionID,
		Endpoint:           "/calendars/primary/events",
		Method:             http.MethodGet,
		Parameters:         q.parameters(),
	}
	var resp struct {
		Data struct {
			Items []Event `json:"items"`
		} `json:"data"`
		Status int `json:"status"`
	}
	if err := c.do(ctx, "list events", http.MethodPost, "/tools/execute/proxy", reqBody, &resp); err != nil {
		return nil, err
	}
	// the proxy answers 200 even when Google itself refused the call
	if resp.Status >= http.StatusBadRequest {
		return nil, &APIError{Op: "list events", Status: resp.Status, Body: "upstream calendar error"}
	}
	return resp.Data.Items, nil
}

func (c *Client) do(ctx context.Context, op, method, path string, body, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("composio %s: encode request: %w", op, err)
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("composio %s: build request: %w", op, err)
	}
	req.Header.Set("X-API-Key", c.apiKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("composio %s: %w", op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &APIError{Op: op, Status: resp.StatusCode, Body: string(bytes.TrimSpace(raw))}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("composio %s: decode response: %w", op, err)
	}
	return nil
}
