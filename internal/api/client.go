// Package api is the GraphQL client for the chatgogo backend: queries and
// mutations over HTTP POST, subscriptions over a websocket connection. All
// remote failures are normalized into the client error taxonomy here, so the
// sync engine never sees a raw transport error.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"chatgogo/client/internal/logging"
	"chatgogo/client/internal/models"
)

// Client talks to one backend. Safe for use from multiple goroutines once
// the token is set.
type Client struct {
	BaseURL    string
	WSURL      string
	HTTPClient *http.Client

	token string
	log   zerolog.Logger
}

// NewClient creates a client for the given GraphQL endpoint and its
// websocket counterpart.
func NewClient(baseURL, wsURL string) *Client {
	return &Client{
		BaseURL:    baseURL,
		WSURL:      wsURL,
		HTTPClient: &http.Client{Timeout: 15 * time.Second},
		log:        logging.WithComponent("api"),
	}
}

// SetToken installs the bearer token used on every request.
func (c *Client) SetToken(token string) { c.token = token }

// Token returns the current bearer token.
func (c *Client) Token() string { return c.token }

type gqlRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

type gqlTopError struct {
	Message string `json:"message"`
}

type gqlResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []gqlTopError   `json:"errors,omitempty"`
}

// opError is the error union carried inside mutation payloads.
type opError struct {
	Typename         string `json:"__typename"`
	ValidationErrors []struct {
		Field    string   `json:"field"`
		Messages []string `json:"messages"`
	} `json:"validationErrors"`
}

// toError maps the payload union onto the client taxonomy. A nil receiver
// means the mutation succeeded.
func (e *opError) toError(op string) error {
	if e == nil {
		return nil
	}
	if len(e.ValidationErrors) > 0 {
		fields := make(models.FieldErrors, len(e.ValidationErrors))
		for _, fe := range e.ValidationErrors {
			fields[fe.Field] = append(fields[fe.Field], fe.Messages...)
		}
		return &models.ValidationError{Fields: fields}
	}
	return &models.TransportError{Op: op, Err: fmt.Errorf("server error: %s", e.Typename)}
}

// do executes one GraphQL request and decodes the data payload into out.
func (c *Client) do(ctx context.Context, op, query string, variables map[string]any, out any) error {
	body, err := json.Marshal(gqlRequest{Query: query, Variables: variables})
	if err != nil {
		return &models.TransportError{Op: op, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL, bytes.NewReader(body))
	if err != nil {
		return &models.TransportError{Op: op, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return &models.TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		// GraphQL errors travel in the 200 envelope; anything else is the
		// transport misbehaving.
		io.Copy(io.Discard, resp.Body)
		return &models.TransportError{Op: op, Err: fmt.Errorf("unexpected status %d", resp.StatusCode)}
	}

	var envelope gqlResponse
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return &models.TransportError{Op: op, Err: fmt.Errorf("decoding response: %w", err)}
	}
	if len(envelope.Errors) > 0 {
		return normalizeTopErrors(op, envelope.Errors)
	}
	if out != nil && len(envelope.Data) > 0 {
		if err := json.Unmarshal(envelope.Data, out); err != nil {
			return &models.TransportError{Op: op, Err: fmt.Errorf("decoding data: %w", err)}
		}
	}
	return nil
}

// normalizeTopErrors folds top-level GraphQL errors into the taxonomy.
// "not found" resolver errors become models.ErrNotFound so callers can treat
// them as no-ops.
func normalizeTopErrors(op string, errs []gqlTopError) error {
	msgs := make([]string, 0, len(errs))
	for _, e := range errs {
		if strings.Contains(strings.ToLower(e.Message), "not found") {
			return models.ErrNotFound
		}
		msgs = append(msgs, e.Message)
	}
	return &models.TransportError{Op: op, Err: errors.New(strings.Join(msgs, "; "))}
}
