// Package client provides HTTP clients for synchronous calls between
// devblocker services.
//
// Calls are bounded: at most three attempts per request, retrying only on
// transport errors and 5xx responses, with exponential backoff and a
// per-attempt timeout. A 4xx response is terminal and returned on the
// first attempt. Whether a failed call blocks the caller's operation
// (fail-closed) or lets it proceed (fail-open) is decided at the call
// site, not here.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"strings"
	"time"

	"github.com/devblocker/devblocker/internal/auth"
)

const (
	maxAttempts    = 3
	baseBackoff    = 1 * time.Second
	attemptTimeout = 5 * time.Second
)

// Error is a non-2xx response from a peer service.
type Error struct {
	StatusCode int
	Message    string
}

func (e *Error) Error() string {
	return fmt.Sprintf("client: status %d: %s", e.StatusCode, e.Message)
}

// IsNotFound reports whether err is a 404 from a peer service.
func IsNotFound(err error) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// Config holds the settings needed to construct a Client.
type Config struct {
	// BaseURL is the root URL of the peer service (e.g. "http://blocker:8080").
	BaseURL string

	// Token is an optional service-to-service bearer token attached to
	// every request.
	Token string

	// HTTPClient is an optional custom HTTP client. If nil, a default
	// client is used; per-attempt timeouts come from the request context.
	HTTPClient *http.Client

	// Backoff overrides the base retry delay. Defaults to one second.
	Backoff time.Duration
}

// Client is a bounded-retry HTTP client for one peer service.
// All methods are safe for concurrent use.
type Client struct {
	baseURL string
	token   string
	client  *http.Client
	backoff time.Duration
}

// New creates a Client from the given configuration.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("client: BaseURL is required")
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	backoff := cfg.Backoff
	if backoff <= 0 {
		backoff = baseBackoff
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		token:   cfg.Token,
		client:  httpClient,
		backoff: backoff,
	}, nil
}

func (c *Client) get(ctx context.Context, path string, dest any) error {
	return c.do(ctx, http.MethodGet, path, nil, dest)
}

func (c *Client) post(ctx context.Context, path string, body, dest any) error {
	return c.do(ctx, http.MethodPost, path, body, dest)
}

func (c *Client) put(ctx context.Context, path string, body, dest any) error {
	return c.do(ctx, http.MethodPut, path, body, dest)
}

// do runs the request with bounded retry. Only transport errors and 5xx
// responses are retried; everything else resolves on the first attempt.
func (c *Client) do(ctx context.Context, method, path string, body, dest any) error {
	var encoded []byte
	if body != nil {
		var err error
		encoded, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("client: marshal request body: %w", err)
		}
	}

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			delay := c.backoff << (attempt - 1)
			delay += time.Duration(rand.Int63n(int64(delay / 2)))
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		retriable, err := c.attempt(ctx, method, path, encoded, dest)
		if err == nil {
			return nil
		}
		if !retriable {
			return err
		}
		lastErr = err
	}
	return fmt.Errorf("client: %s %s failed after %d attempts: %w", method, path, maxAttempts, lastErr)
}

func (c *Client) attempt(ctx context.Context, method, path string, encoded []byte, dest any) (retriable bool, err error) {
	ctx, cancel := context.WithTimeout(ctx, attemptTimeout)
	defer cancel()

	var reader io.Reader
	if encoded != nil {
		reader = bytes.NewReader(encoded)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return false, fmt.Errorf("client: create request: %w", err)
	}
	if encoded != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	// The caller's own bearer credential wins over the static service
	// token; a request made on behalf of a user carries that user.
	switch {
	case auth.BearerFromContext(ctx) != "":
		req.Header.Set("Authorization", "Bearer "+auth.BearerFromContext(ctx))
	case c.token != "":
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return true, fmt.Errorf("client: %s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return true, fmt.Errorf("client: read response body: %w", err)
	}

	if resp.StatusCode >= 500 {
		return true, &Error{StatusCode: resp.StatusCode, Message: errorMessage(bodyBytes)}
	}
	if resp.StatusCode >= 400 {
		return false, &Error{StatusCode: resp.StatusCode, Message: errorMessage(bodyBytes)}
	}

	if resp.StatusCode == http.StatusNoContent || dest == nil {
		return false, nil
	}

	// Unwrap the standard { "data": ... } response envelope.
	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(bodyBytes, &envelope); err != nil {
		return false, fmt.Errorf("client: decode response envelope: %w", err)
	}
	if envelope.Data == nil {
		// Some endpoints respond without the envelope.
		if err := json.Unmarshal(bodyBytes, dest); err != nil {
			return false, fmt.Errorf("client: decode response: %w", err)
		}
		return false, nil
	}
	if err := json.Unmarshal(envelope.Data, dest); err != nil {
		return false, fmt.Errorf("client: decode response: %w", err)
	}
	return false, nil
}

// errorMessage extracts the message from a standard error envelope,
// falling back to the raw body.
func errorMessage(body []byte) string {
	var envelope struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error.Message != "" {
		return envelope.Error.Message
	}
	return strings.TrimSpace(string(body))
}
