// Package api provides the HTTP request pipeline for the metadata API:
// bearer-token attachment, 401 re-authentication, 5xx backoff retry, and
// error classification.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/forcegrid/sfschema/internal/output"
	"github.com/forcegrid/sfschema/internal/version"
)

const (
	// 500/503 retry budget: 1s, 2s, 4s.
	maxBackoffRetries = 3
	baseBackoff       = 1 * time.Second
)

// TokenSource supplies access tokens and the API base URL. Implemented by
// auth.Session.
type TokenSource interface {
	AccessToken(ctx context.Context) (string, error)
	InstanceBaseURL() (string, error)
	Refresh(ctx context.Context) error
}

// Client executes requests against the metadata API.
type Client struct {
	httpClient *http.Client
	tokens     TokenSource
	verbose    bool

	// sleep is replaceable so tests don't wait out real backoff delays.
	sleep func(time.Duration)
}

// NewClient creates an API client backed by the given token source.
func NewClient(tokens TokenSource) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		tokens: tokens,
		sleep:  time.Sleep,
	}
}

// SetVerbose enables request tracing on stderr.
func (c *Client) SetVerbose(v bool) {
	c.verbose = v
}

// Get performs a GET request.
func (c *Client) Get(ctx context.Context, path string) (json.RawMessage, error) {
	return c.Execute(ctx, "GET", path, nil)
}

// Post performs a POST request with a JSON body.
func (c *Client) Post(ctx context.Context, path string, body any) (json.RawMessage, error) {
	return c.Execute(ctx, "POST", path, body)
}

// Execute issues one API request and runs the fault-handling state machine:
// exactly one refresh-and-retry cycle on 401, up to three exponential-backoff
// retries on 500/503, classification of every other terminal status.
func (c *Client) Execute(ctx context.Context, method, path string, body any) (json.RawMessage, error) {
	// Resolve credentials up front; an unauthenticated caller fails without
	// any network traffic.
	token, err := c.tokens.AccessToken(ctx)
	if err != nil {
		return nil, err
	}
	base, err := c.tokens.InstanceBaseURL()
	if err != nil {
		return nil, err
	}

	var payload []byte
	if body != nil {
		payload, err = json.Marshal(body)
		if err != nil {
			return nil, output.ErrInvalidInput(fmt.Sprintf("cannot encode request body: %v", err))
		}
	}

	refreshed := false
	backoffs := 0

	for {
		status, respBody, err := c.send(ctx, method, base+path, token, payload)
		if err != nil {
			return nil, output.ErrNetwork(err)
		}

		switch {
		case status >= 200 && status < 300:
			return parseBody(respBody)

		case status == http.StatusUnauthorized:
			// One refresh-and-retry cycle only; a second 401 means the
			// misconfiguration is on the endpoint, not the token.
			if refreshed {
				return nil, output.ErrAuthExpired("Session expired", "request rejected after token refresh")
			}
			if err := c.tokens.Refresh(ctx); err != nil {
				return nil, err
			}
			refreshed = true
			if token, err = c.tokens.AccessToken(ctx); err != nil {
				return nil, err
			}
			// The instance may move during a refresh.
			if base, err = c.tokens.InstanceBaseURL(); err != nil {
				return nil, err
			}

		case status == http.StatusInternalServerError || status == http.StatusServiceUnavailable:
			if backoffs >= maxBackoffRetries {
				return nil, classify(status, respBody)
			}
			delay := baseBackoff << backoffs
			backoffs++
			if c.verbose {
				fmt.Fprintf(os.Stderr, "[sfschema] HTTP %d, retry %d/%d in %v\n", status, backoffs, maxBackoffRetries, delay)
			}
			select {
			case <-ctx.Done():
				return nil, output.ErrNetwork(ctx.Err())
			default:
				c.sleep(delay)
			}

		default:
			return nil, classify(status, respBody)
		}
	}
}

func (c *Client) send(ctx context.Context, method, url, token string, payload []byte) (int, []byte, error) {
	var bodyReader io.Reader
	if payload != nil {
		bodyReader = strings.NewReader(string(payload))
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return 0, nil, err
	}

	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("User-Agent", version.UserAgent())
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	if c.verbose {
		fmt.Fprintf(os.Stderr, "[sfschema] %s %s\n", method, url)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, err
	}

	if c.verbose {
		fmt.Fprintf(os.Stderr, "[sfschema] HTTP %d\n", resp.StatusCode)
	}

	return resp.StatusCode, respBody, nil
}

// parseBody decodes a 2xx body. An empty body parses to an empty object.
func parseBody(body []byte) (json.RawMessage, error) {
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" {
		return json.RawMessage("{}"), nil
	}
	if !json.Valid([]byte(trimmed)) {
		return nil, output.ErrAPI(0, "Malformed response body", trimmed)
	}
	return json.RawMessage(trimmed), nil
}
