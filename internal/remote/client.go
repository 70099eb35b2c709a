// Package remote is the HTTP client for the field-operations API. All sync
// traffic goes through it; the sync layer never touches net/http directly.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

const (
	requestTimeout = 30 * time.Second
	maxAttempts    = 3
)

// retryBackoff is a var so tests can shorten it.
var retryBackoff = 2 * time.Second

// Client talks to the remote API server.
type Client struct {
	baseURL    string
	apiKey     string
	deviceID   string
	httpClient *http.Client
}

// NewClient creates a client for the given server.
func NewClient(baseURL, apiKey, deviceID string) *Client {
	return &Client{
		baseURL:  baseURL,
		apiKey:   apiKey,
		deviceID: deviceID,
		httpClient: &http.Client{
			Timeout: requestTimeout,
		},
	}
}

// envelope is the uniform response wrapper the server puts around every
// payload.
type envelope struct {
	Status  string          `json:"status"`
	Message string          `json:"message,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Page is one page of a watermark-filtered listing.
type Page struct {
	Items      []json.RawMessage `json:"items"`
	HasMore    bool              `json:"has_more"`
	ServerTime time.Time         `json:"server_time"`
}

// ListParams narrows a paged listing.
type ListParams struct {
	Page         int
	PageSize     int
	ActorType    int
	ActorID      int64
	UpdatedSince time.Time
}

// List fetches one page of entities changed since the watermark.
func (c *Client) List(ctx context.Context, resource string, params ListParams) (*Page, error) {
	q := url.Values{}
	q.Set("page", strconv.Itoa(params.Page))
	q.Set("pageSize", strconv.Itoa(params.PageSize))
	if params.ActorType != 0 {
		q.Set("actorType", strconv.Itoa(params.ActorType))
	}
	if params.ActorID != 0 {
		q.Set("actorId", strconv.FormatInt(params.ActorID, 10))
	}
	if !params.UpdatedSince.IsZero() {
		q.Set("updatedSince", params.UpdatedSince.UTC().Format(time.RFC3339))
	}

	data, err := c.do(ctx, http.MethodGet, "/api/"+resource+"?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}

	var page Page
	if err := json.Unmarshal(data, &page); err != nil {
		return nil, fmt.Errorf("decode %s page: %w", resource, err)
	}
	return &page, nil
}

// Get fetches a single entity by id.
func (c *Client) Get(ctx context.Context, resource, id string) (json.RawMessage, error) {
	return c.do(ctx, http.MethodGet, "/api/"+resource+"/"+url.PathEscape(id), nil)
}

// Create pushes a locally created entity. The response carries the
// server-assigned row, including its real id.
func (c *Client) Create(ctx context.Context, resource string, body any) (json.RawMessage, error) {
	return c.do(ctx, http.MethodPost, "/api/"+resource, body)
}

// Update pushes changed fields of an existing entity. The server may answer
// with a partial object holding only the fields it adjusted.
func (c *Client) Update(ctx context.Context, resource, id string, body any) (json.RawMessage, error) {
	return c.do(ctx, http.MethodPut, "/api/"+resource+"/"+url.PathEscape(id), body)
}

// do runs a request with retries on transport failures. Validation
// rejections (4xx) come back immediately.
func (c *Client) do(ctx context.Context, method, path string, body any) (json.RawMessage, error) {
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt > 1 {
			slog.Debug("retrying request", "method", method, "path", path, "attempt", attempt)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(retryBackoff):
			}
		}

		data, err := c.doRequest(ctx, method, path, body)
		if err == nil {
			return data, nil
		}
		if !IsRetryable(err) {
			return nil, err
		}
		lastErr = err
	}
	return nil, fmt.Errorf("after %d attempts: %w", maxAttempts, lastErr)
}

func (c *Client) doRequest(ctx context.Context, method, path string, body any) (json.RawMessage, error) {
	fullURL := c.baseURL + path

	var reqBody io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		reqBody = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, fullURL, reqBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if c.deviceID != "" {
		req.Header.Set("X-Device-ID", c.deviceID)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &TransportError{Op: method, URL: fullURL, Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Op: method, URL: fullURL, Err: err}
	}

	var env envelope
	if len(respBody) > 0 {
		if err := json.Unmarshal(respBody, &env); err != nil && resp.StatusCode < 300 {
			return nil, fmt.Errorf("decode response from %s: %w", fullURL, err)
		}
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%s: %w", path, ErrNotFound)
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, ErrUnauthorized
	case resp.StatusCode >= 500:
		return nil, &TransportError{Op: method, URL: fullURL,
			Err: fmt.Errorf("server error %d: %s", resp.StatusCode, env.Message)}
	case resp.StatusCode >= 400:
		return nil, &ValidationError{Status: resp.StatusCode, Message: env.Message}
	}

	if env.Status != "" && env.Status != "ok" && env.Status != "success" {
		return nil, &ValidationError{Status: resp.StatusCode, Message: env.Message}
	}

	return env.Data, nil
}
