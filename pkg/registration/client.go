package registration

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

	"github.com/doopush/doopush-go/pkg/transport"
)

// DefaultTimeout bounds one API request.
const DefaultTimeout = 15 * time.Second

// maxErrorBodySize limits how much of an error response is kept.
const maxErrorBodySize = 2048

// Client errors.
var (
	// ErrMissingBaseURL indicates the client has no API endpoint.
	ErrMissingBaseURL = errors.New("missing API base URL")

	// ErrMissingAPIKey indicates the client has no API key.
	ErrMissingAPIKey = errors.New("missing API key")

	// ErrUnauthorized indicates the API rejected the API key.
	ErrUnauthorized = errors.New("unauthorized")
)

// APIError is a non-2xx response from the DooPush API.
type APIError struct {
	// StatusCode is the HTTP status code.
	StatusCode int

	// Message is the response body (truncated).
	Message string
}

// Error returns the error message.
func (e *APIError) Error() string {
	return fmt.Sprintf("api error (status %d): %s", e.StatusCode, e.Message)
}

// Is maps a 401 response onto ErrUnauthorized for errors.Is checks.
func (e *APIError) Is(target error) bool {
	return target == ErrUnauthorized && e.StatusCode == http.StatusUnauthorized
}

// Retryable reports whether the request may succeed if repeated.
// Server-side failures are retryable; client-side rejections are not.
func (e *APIError) Retryable() bool {
	return e.StatusCode >= 500
}

// Config configures the API client.
type Config struct {
	// BaseURL is the API endpoint, e.g. "https://api.doopush.com/v1".
	BaseURL string

	// APIKey authenticates the application.
	APIKey string

	// Timeout bounds one request when the context carries no deadline
	// (default: 15s).
	Timeout time.Duration

	// HTTPClient overrides the underlying HTTP client. Nil selects a
	// default client using Timeout.
	HTTPClient *http.Client
}

// Client is a DooPush API client.
type Client struct {
	config Config
	http   *http.Client
}

// NewClient creates an API client.
func NewClient(config Config) (*Client, error) {
	if config.BaseURL == "" {
		return nil, ErrMissingBaseURL
	}
	if config.APIKey == "" {
		return nil, ErrMissingAPIKey
	}
	if config.Timeout == 0 {
		config.Timeout = DefaultTimeout
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: config.Timeout}
	}

	return &Client{
		config: config,
		http:   httpClient,
	}, nil
}

// RegisterResult is the API's answer to a device registration.
type RegisterResult struct {
	// DeviceID is the server-assigned device identifier.
	DeviceID string

	// Gateway is where the device should open its push connection.
	Gateway transport.GatewayConfig
}

// registerRequest is the registration request body.
type registerRequest struct {
	Token      string      `json:"token"`
	DeviceInfo *DeviceInfo `json:"device_info,omitempty"`
}

// registerResponse is the registration response body.
type registerResponse struct {
	DeviceID string `json:"device_id"`
	Gateway  struct {
		Host string `json:"host"`
		Port int    `json:"port"`
		SSL  bool   `json:"ssl"`
	} `json:"gateway"`
}

// Register registers a push token for an application. The result carries
// the device ID and the gateway coordinates for the push connection.
func (c *Client) Register(ctx context.Context, appID int, token string, info *DeviceInfo) (*RegisterResult, error) {
	if token == "" {
		return nil, errors.New("missing device token")
	}

	var resp registerResponse
	path := fmt.Sprintf("/apps/%d/devices", appID)
	if err := c.post(ctx, path, &registerRequest{Token: token, DeviceInfo: info}, &resp); err != nil {
		return nil, fmt.Errorf("device registration failed: %w", err)
	}

	result := &RegisterResult{
		DeviceID: resp.DeviceID,
		Gateway: transport.GatewayConfig{
			Host:   resp.Gateway.Host,
			Port:   resp.Gateway.Port,
			UseTLS: resp.Gateway.SSL,
		},
	}
	if err := result.Gateway.Validate(); err != nil {
		return nil, fmt.Errorf("api returned invalid gateway: %w", err)
	}
	return result, nil
}

// UploadStats uploads a batch of delivery statistics events.
func (c *Client) UploadStats(ctx context.Context, appID int, events []StatsEvent) error {
	if len(events) == 0 {
		return nil
	}
	path := fmt.Sprintf("/apps/%d/push/statistics", appID)
	if err := c.post(ctx, path, map[string]any{"events": events}, nil); err != nil {
		return fmt.Errorf("statistics upload failed: %w", err)
	}
	return nil
}

// post sends one JSON request and decodes a JSON response into out
// (skipped when out is nil).
func (c *Client) post(ctx context.Context, path string, body, out any) error {
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.config.Timeout)
		defer cancel()
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}

	url := strings.TrimSuffix(c.config.BaseURL, "/") + path
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", c.config.APIKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
		return &APIError{
			StatusCode: resp.StatusCode,
			Message:    strings.TrimSpace(string(msg)),
		}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
