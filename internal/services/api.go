// Client for the backend proxy that exchanges codes and serves the user's data
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/desertthunder/isoca/internal/models"
	"github.com/desertthunder/isoca/internal/shared"
)

const defaultBackendURL = "http://127.0.0.1:8000"

// BackendClient talks to the backend proxy.
//
// It implements the token exchange and data fetch halves of the sign-in flow. Every call is a
// single attempt; retrying is left to the caller.
type BackendClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewBackendClient creates a new client for the backend proxy at baseURL.
func NewBackendClient(baseURL string, client *http.Client) *BackendClient {
	if baseURL == "" {
		baseURL = defaultBackendURL
	}
	if client == nil {
		client = http.DefaultClient
	}

	return &BackendClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: client,
	}
}

// APIResponse represents a raw API response with status and body.
type APIResponse struct {
	StatusCode int
	Headers    http.Header
	Body       []byte
}

// OK reports whether the status is 2xx.
func (r *APIResponse) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Get performs a GET request to path with the given query and returns the raw response.
//
// An error means no response was received.
func (c *BackendClient) Get(ctx context.Context, path string, query url.Values) (*APIResponse, error) {
	fullURL := c.baseURL + path
	if len(query) > 0 {
		fullURL += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", shared.ErrAPIRequest, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read response: %w", shared.ErrAPIRequest, err)
	}

	return &APIResponse{
		StatusCode: resp.StatusCode,
		Headers:    resp.Header,
		Body:       body,
	}, nil
}

// Exchange trades an authorization code for an access token via GET /auth/exchange.
//
// Failures are returned as [*ExchangeError].
func (c *BackendClient) Exchange(ctx context.Context, code string) (string, error) {
	resp, err := c.Get(ctx, "/auth/exchange", url.Values{"code": {code}})
	if err != nil {
		return "", &ExchangeError{Kind: ErrNetwork, Err: err}
	}
	if !resp.OK() {
		return "", &ExchangeError{Kind: ErrServer, StatusCode: resp.StatusCode, Err: bodyError(resp)}
	}

	var body models.ExchangeResponse
	if err := json.Unmarshal(resp.Body, &body); err != nil {
		return "", &ExchangeError{Kind: ErrMalformedResponse, StatusCode: resp.StatusCode, Err: err}
	}
	if body.AccessToken == "" {
		return "", &ExchangeError{Kind: ErrMalformedResponse, StatusCode: resp.StatusCode, Err: fmt.Errorf("missing access_token")}
	}

	return body.AccessToken, nil
}

// TopItems fetches the user's top tracks via GET /data/top-items.
//
// Failures are returned as [*FetchError]; HTTP 401 is classified as [ErrUnauthorized].
func (c *BackendClient) TopItems(ctx context.Context, token string) (models.TrackList, error) {
	resp, err := c.Get(ctx, "/data/top-items", url.Values{"access_token": {token}})
	if err != nil {
		return nil, &FetchError{Kind: ErrNetwork, Err: err}
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return nil, &FetchError{Kind: ErrUnauthorized, StatusCode: resp.StatusCode, Err: bodyError(resp)}
	case !resp.OK():
		return nil, &FetchError{Kind: ErrServer, StatusCode: resp.StatusCode, Err: bodyError(resp)}
	}

	var body models.TopItemsResponse
	if err := json.Unmarshal(resp.Body, &body); err != nil {
		return nil, &FetchError{Kind: ErrMalformedResponse, StatusCode: resp.StatusCode, Err: err}
	}
	if body.Items == nil {
		body.Items = models.TrackList{}
	}

	return body.Items, nil
}

// HealthStatus reports backend reachability.
type HealthStatus struct {
	Reachable  bool
	StatusCode int
	Status     string
	Service    string
}

// Health calls GET /health. It has no effect on session state.
func (c *BackendClient) Health(ctx context.Context) (*HealthStatus, error) {
	resp, err := c.Get(ctx, "/health", nil)
	if err != nil {
		return &HealthStatus{}, fmt.Errorf("%w: %v", ErrNetwork, err)
	}

	status := &HealthStatus{Reachable: true, StatusCode: resp.StatusCode}
	if !resp.OK() {
		return status, fmt.Errorf("%w: status %d", ErrServer, resp.StatusCode)
	}

	var body models.HealthResponse
	if err := json.Unmarshal(resp.Body, &body); err != nil {
		return status, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	status.Status = body.Status
	status.Service = body.Service
	return status, nil
}

// bodyError extracts the backend's error message, if any.
func bodyError(resp *APIResponse) error {
	var body models.ErrorResponse
	if err := json.Unmarshal(resp.Body, &body); err == nil && body.Error != "" {
		return fmt.Errorf("%s", body.Error)
	}
	return nil
}
