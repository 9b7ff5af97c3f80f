package config

import (
	"fmt"

	"github.com/eyes-gesture/eyes-client/pkg/debug"
)

// URLConfig holds the backend URL configuration
type URLConfig struct {
	WebSocketURL string // WebSocket URL (ws:// or wss://)
	BaseURL      string // Base HTTP URL (http:// or https://)
}

// NewURLConfig derives the backend URLs from cfg
func NewURLConfig(cfg *Config) *URLConfig {
	wsProtocol := map[bool]string{true: "wss", false: "ws"}[cfg.UseTLS]
	httpProtocol := map[bool]string{true: "https", false: "http"}[cfg.UseTLS]

	addr := cfg.GetAddress()
	wsURL := fmt.Sprintf("%s://%s", wsProtocol, addr)
	baseURL := fmt.Sprintf("%s://%s", httpProtocol, addr)

	debug.Debug("WebSocket URL: %s", wsURL)
	debug.Debug("Base URL: %s", baseURL)

	return &URLConfig{
		WebSocketURL: wsURL,
		BaseURL:      baseURL,
	}
}

// GetWebSocketURL returns the push channel endpoint
func (c *URLConfig) GetWebSocketURL() string {
	return fmt.Sprintf("%s/ws/gestures", c.WebSocketURL)
}

// GetAPIBaseURL returns the base URL for REST endpoints. The backend serves
// them at the root.
func (c *URLConfig) GetAPIBaseURL() string {
	return c.BaseURL
}
