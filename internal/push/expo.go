// Package push delivers expense notifications through the Expo push relay and
// registers devices for them.
package push

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// DefaultEndpoint is the Expo push relay.
const DefaultEndpoint = "https://exp.host/--/api/v2/push/send"

var errEmptyTicket = errors.New("push relay returned no ticket")

// AndroidOptions are the Android delivery hints understood by the relay.
type AndroidOptions struct {
	Priority   string `json:"priority"`
	Visibility string `json:"visibility"`
}

// Message is one push notification addressed to a single device token.
type Message struct {
	To      string          `json:"to"`
	Sound   string          `json:"sound,omitempty"`
	Title   string          `json:"title"`
	Body    string          `json:"body"`
	Data    map[string]any  `json:"data,omitempty"`
	Android *AndroidOptions `json:"android,omitempty"`
}

// Ticket is the relay's receipt for one message.
type Ticket struct {
	Status  string         `json:"status"`
	ID      string         `json:"id,omitempty"`
	Message string         `json:"message,omitempty"`
	Details map[string]any `json:"details,omitempty"`
}

type expoResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"errors"`
}

// ExpoClient posts messages to the Expo push relay.
type ExpoClient struct {
	endpoint   string
	httpClient *http.Client
}

// NewExpoClient creates an Expo push client.
func NewExpoClient(endpoint string, timeout time.Duration) *ExpoClient {
	trimmed := strings.TrimSpace(endpoint)
	if trimmed == "" {
		trimmed = DefaultEndpoint
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &ExpoClient{
		endpoint: trimmed,
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

// Send posts msg and returns the relay ticket. A ticket with status "error" is
// returned together with an error.
func (c *ExpoClient) Send(ctx context.Context, msg Message) (Ticket, error) {
	body, err := json.Marshal(msg)
	if err != nil {
		return Ticket{}, fmt.Errorf("failed to encode push message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return Ticket{}, fmt.Errorf("failed to create push request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Accept-Encoding", "gzip, deflate")
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Ticket{}, fmt.Errorf("failed to send push message: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return Ticket{}, fmt.Errorf("push relay returned status %d", resp.StatusCode)
	}

	var payload expoResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return Ticket{}, fmt.Errorf("failed to decode push response: %w", err)
	}
	if len(payload.Errors) > 0 {
		return Ticket{}, fmt.Errorf("push relay error %s: %s", payload.Errors[0].Code, payload.Errors[0].Message)
	}

	ticket, err := decodeTicket(payload.Data)
	if err != nil {
		return Ticket{}, err
	}
	if ticket.Status == "error" {
		return ticket, fmt.Errorf("push ticket error: %s", ticket.Message)
	}
	return ticket, nil
}

// decodeTicket accepts both the single-object and the array form of data.
func decodeTicket(raw json.RawMessage) (Ticket, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return Ticket{}, errEmptyTicket
	}

	if trimmed[0] == '[' {
		var tickets []Ticket
		if err := json.Unmarshal(trimmed, &tickets); err != nil {
			return Ticket{}, fmt.Errorf("failed to decode push tickets: %w", err)
		}
		if len(tickets) == 0 {
			return Ticket{}, errEmptyTicket
		}
		return tickets[0], nil
	}

	var ticket Ticket
	if err := json.Unmarshal(trimmed, &ticket); err != nil {
		return Ticket{}, fmt.Errorf("failed to decode push ticket: %w", err)
	}
	return ticket, nil
}
