package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eyes-gesture/eyes-client/internal/mocks"
	"github.com/eyes-gesture/eyes-client/internal/models"
)

func newTestClient(doFunc func(req *http.Request) (*http.Response, error)) (*Client, *mocks.MockHTTPClient) {
	doer := mocks.NewMockHTTPClient()
	doer.DoFunc = doFunc
	return NewClientWithDoer("http://eyes.test:8000/", doer), doer
}

func TestClientRequests(t *testing.T) {
	tests := []struct {
		name       string
		call       func(c *Client) error
		wantMethod string
		wantPath   string
	}{
		{
			name:       "list cameras",
			call:       func(c *Client) error { _, err := c.ListCameras(context.Background()); return err },
			wantMethod: http.MethodGet,
			wantPath:   "/cameras",
		},
		{
			name:       "get settings",
			call:       func(c *Client) error { _, err := c.GetSettings(context.Background()); return err },
			wantMethod: http.MethodGet,
			wantPath:   "/settings",
		},
		{
			name:       "get stats",
			call:       func(c *Client) error { _, err := c.GetStats(context.Background()); return err },
			wantMethod: http.MethodGet,
			wantPath:   "/stats",
		},
		{
			name:       "start",
			call:       func(c *Client) error { return c.Start(context.Background()) },
			wantMethod: http.MethodPost,
			wantPath:   "/start",
		},
		{
			name:       "stop",
			call:       func(c *Client) error { return c.Stop(context.Background()) },
			wantMethod: http.MethodPost,
			wantPath:   "/stop",
		},
		{
			name:       "gesture log",
			call:       func(c *Client) error { _, err := c.GestureLog(context.Background()); return err },
			wantMethod: http.MethodGet,
			wantPath:   "/gestures/log",
		},
		{
			name:       "health",
			call:       func(c *Client) error { _, err := c.Health(context.Background()); return err },
			wantMethod: http.MethodGet,
			wantPath:   "/",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, doer := newTestClient(func(req *http.Request) (*http.Response, error) {
				return mocks.NewResponse(req, http.StatusOK, `{}`), nil
			})

			require.NoError(t, tt.call(client))
			require.Equal(t, 1, doer.Calls())
			assert.Equal(t, tt.wantMethod, doer.LastRequest.Method)
			assert.Equal(t, tt.wantPath, doer.LastRequest.URL.Path)
			assert.Equal(t, "eyes.test:8000", doer.LastRequest.URL.Host)
			assert.Contains(t, doer.LastRequest.Header.Get("User-Agent"), "eyes-client/")
		})
	}
}

func TestClientDecodesResponses(t *testing.T) {
	client, _ := newTestClient(func(req *http.Request) (*http.Response, error) {
		switch req.URL.Path {
		case "/cameras":
			return mocks.NewResponse(req, http.StatusOK,
				`{"cameras":[{"id":"usb_0","name":"Camera 0","type":"usb","source":"0"}]}`), nil
		case "/stats":
			return mocks.NewJSONResponse(req, models.SystemStatus{IsRunning: true, Volume: 62, Brightness: 48}), nil
		case "/settings":
			return mocks.NewJSONResponse(req, models.DefaultSettings()), nil
		case "/gestures/log":
			return mocks.NewResponse(req, http.StatusOK,
				`{"log":[{"gesture":"pinch","hand":"Left","confidence":0.9,"timestamp":1700000000,"volume_at_time":40,"brightness_at_time":50}]}`), nil
		}
		return mocks.NewResponse(req, http.StatusNotFound, "404 - Not Found"), nil
	})
	ctx := context.Background()

	cameras, err := client.ListCameras(ctx)
	require.NoError(t, err)
	require.Len(t, cameras, 1)
	assert.Equal(t, models.CameraUSB, cameras[0].Type)

	status, err := client.GetStats(ctx)
	require.NoError(t, err)
	assert.True(t, status.IsRunning)
	assert.Equal(t, 62.0, status.Volume)
	assert.Equal(t, 48.0, status.Brightness)

	settings, err := client.GetSettings(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.DefaultSettings(), settings)

	log, err := client.GestureLog(ctx)
	require.NoError(t, err)
	require.Len(t, log, 1)
	assert.Equal(t, models.GesturePinch, log[0].Gesture)
	assert.Equal(t, 40.0, log[0].VolumeAtTime)
}

func TestClientUpdateSettingsSendsFullRecord(t *testing.T) {
	client, doer := newTestClient(nil)

	settings := models.DefaultSettings()
	settings.Cooldown = 1.25
	require.NoError(t, client.UpdateSettings(context.Background(), settings))

	assert.Equal(t, "application/json", doer.LastRequest.Header.Get("Content-Type"))
	var sent models.Settings
	require.NoError(t, json.Unmarshal(doer.LastBody, &sent))
	assert.Equal(t, settings, sent)
}

func TestClientTestCameraQuery(t *testing.T) {
	client, doer := newTestClient(func(req *http.Request) (*http.Response, error) {
		return mocks.NewJSONResponse(req, models.CameraTestResult{URL: req.URL.Query().Get("url"), Available: true}), nil
	})

	result, err := client.TestCamera(context.Background(), "http://192.168.1.5:4747/video?x=1")
	require.NoError(t, err)
	assert.True(t, result.Available)
	assert.Equal(t, "http://192.168.1.5:4747/video?x=1", result.URL)
	assert.Equal(t, http.MethodPost, doer.LastRequest.Method)
}

func TestClientErrors(t *testing.T) {
	t.Run("non-2xx returns StatusError", func(t *testing.T) {
		client, _ := newTestClient(func(req *http.Request) (*http.Response, error) {
			return mocks.NewResponse(req, http.StatusInternalServerError, `{"detail":"camera busy"}`), nil
		})

		err := client.Start(context.Background())
		require.Error(t, err)
		var statusErr *StatusError
		require.True(t, errors.As(err, &statusErr))
		assert.Equal(t, http.StatusInternalServerError, statusErr.Code)
		assert.Equal(t, "/start", statusErr.Path)
		assert.Contains(t, statusErr.Body, "camera busy")
	})

	t.Run("transport error is wrapped", func(t *testing.T) {
		transportErr := errors.New("connection refused")
		client, _ := newTestClient(func(req *http.Request) (*http.Response, error) {
			return nil, transportErr
		})

		_, err := client.GetStats(context.Background())
		assert.ErrorIs(t, err, transportErr)
	})

	t.Run("invalid json", func(t *testing.T) {
		client, _ := newTestClient(func(req *http.Request) (*http.Response, error) {
			return mocks.NewResponse(req, http.StatusOK, `{not json`), nil
		})

		_, err := client.GetSettings(context.Background())
		assert.Error(t, err)
	})
}
