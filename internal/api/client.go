// Package api is the REST client for the EYES backend.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/eyes-gesture/eyes-client/internal/models"
	"github.com/eyes-gesture/eyes-client/internal/version"
	"github.com/eyes-gesture/eyes-client/pkg/debug"
)

// maxErrorBody caps how much of a failed response is kept in StatusError
const maxErrorBody = 1024

// HTTPDoer is satisfied by *http.Client
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// StatusError is returned for non-2xx responses
type StatusError struct {
	Method string
	Path   string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s %s: unexpected status %d", e.Method, e.Path, e.Code)
	}
	return fmt.Sprintf("%s %s: unexpected status %d: %s", e.Method, e.Path, e.Code, e.Body)
}

// Client talks to the backend's REST endpoints. Calls are never retried.
type Client struct {
	baseURL string
	client  HTTPDoer
}

// NewClient creates a client with its own http.Client bounded by timeout
func NewClient(baseURL string, timeout time.Duration) *Client {
	return NewClientWithDoer(baseURL, &http.Client{Timeout: timeout})
}

// NewClientWithDoer creates a client over an existing HTTPDoer
func NewClientWithDoer(baseURL string, doer HTTPDoer) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  doer,
	}
}

// ListCameras returns the cameras the backend can open
func (c *Client) ListCameras(ctx context.Context) ([]models.CameraInfo, error) {
	var resp struct {
		Cameras []models.CameraInfo `json:"cameras"`
	}
	if err := c.do(ctx, http.MethodGet, "/cameras", nil, nil, &resp); err != nil {
		return nil, fmt.Errorf("failed to list cameras: %w", err)
	}
	return resp.Cameras, nil
}

// TestCamera asks the backend whether it can open streamURL
func (c *Client) TestCamera(ctx context.Context, streamURL string) (models.CameraTestResult, error) {
	var result models.CameraTestResult
	query := url.Values{"url": {streamURL}}
	if err := c.do(ctx, http.MethodPost, "/cameras/test", query, nil, &result); err != nil {
		return models.CameraTestResult{}, fmt.Errorf("failed to test camera: %w", err)
	}
	return result, nil
}

// GetSettings fetches the persisted settings record
func (c *Client) GetSettings(ctx context.Context) (models.Settings, error) {
	var settings models.Settings
	if err := c.do(ctx, http.MethodGet, "/settings", nil, nil, &settings); err != nil {
		return models.Settings{}, fmt.Errorf("failed to get settings: %w", err)
	}
	return settings, nil
}

// UpdateSettings persists the full settings record
func (c *Client) UpdateSettings(ctx context.Context, settings models.Settings) error {
	if err := c.do(ctx, http.MethodPost, "/settings", nil, settings, nil); err != nil {
		return fmt.Errorf("failed to update settings: %w", err)
	}
	return nil
}

// GetStats fetches the coarse status snapshot
func (c *Client) GetStats(ctx context.Context) (models.SystemStatus, error) {
	var status models.SystemStatus
	if err := c.do(ctx, http.MethodGet, "/stats", nil, nil, &status); err != nil {
		return models.SystemStatus{}, fmt.Errorf("failed to get stats: %w", err)
	}
	return status, nil
}

// Start asks the backend to begin detection
func (c *Client) Start(ctx context.Context) error {
	if err := c.do(ctx, http.MethodPost, "/start", nil, nil, nil); err != nil {
		return fmt.Errorf("failed to start detection: %w", err)
	}
	return nil
}

// Stop asks the backend to halt detection
func (c *Client) Stop(ctx context.Context) error {
	if err := c.do(ctx, http.MethodPost, "/stop", nil, nil, nil); err != nil {
		return fmt.Errorf("failed to stop detection: %w", err)
	}
	return nil
}

// GestureLog returns the backend's recent gesture history, newest first
func (c *Client) GestureLog(ctx context.Context) ([]models.GestureLogEntry, error) {
	var resp struct {
		Log []models.GestureLogEntry `json:"log"`
	}
	if err := c.do(ctx, http.MethodGet, "/gestures/log", nil, nil, &resp); err != nil {
		return nil, fmt.Errorf("failed to get gesture log: %w", err)
	}
	return resp.Log, nil
}

// Health calls the backend's root health check
func (c *Client) Health(ctx context.Context) (models.HealthInfo, error) {
	var info models.HealthInfo
	if err := c.do(ctx, http.MethodGet, "/", nil, nil, &info); err != nil {
		return models.HealthInfo{}, fmt.Errorf("health check failed: %w", err)
	}
	return info, nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out interface{}) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", version.UserAgent())
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		debug.Debug("%s %s returned %d", method, path, resp.StatusCode)
		return &StatusError{
			Method: method,
			Path:   path,
			Code:   resp.StatusCode,
			Body:   strings.TrimSpace(string(snippet)),
		}
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
