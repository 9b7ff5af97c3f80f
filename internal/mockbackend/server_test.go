package mockbackend

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eyes-gesture/eyes-client/internal/api"
	"github.com/eyes-gesture/eyes-client/internal/clock"
	"github.com/eyes-gesture/eyes-client/internal/models"
)

func newTestBackend(t *testing.T) (*Server, *httptest.Server, *api.Client) {
	t.Helper()
	backend := New(clock.Real())
	srv := httptest.NewServer(backend.Router())
	t.Cleanup(srv.Close)
	return backend, srv, api.NewClient(srv.URL, 2*time.Second)
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/gestures"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestRESTRoutes(t *testing.T) {
	backend, _, client := newTestBackend(t)
	ctx := context.Background()

	info, err := client.Health(ctx)
	require.NoError(t, err)
	assert.Equal(t, "ok", info.Status)

	cameras, err := client.ListCameras(ctx)
	require.NoError(t, err)
	assert.Len(t, cameras, 2)

	settings, err := client.GetSettings(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.DefaultSettings(), settings)

	settings.SelectedCamera = "1"
	settings.Cooldown = 1.5
	require.NoError(t, client.UpdateSettings(ctx, settings))
	assert.Equal(t, settings, backend.Settings())
	assert.Equal(t, 1, backend.SettingsUpdates())

	require.NoError(t, client.Start(ctx))
	status, err := client.GetStats(ctx)
	require.NoError(t, err)
	assert.True(t, status.IsRunning)
	assert.Equal(t, "1", status.Camera)

	require.NoError(t, client.Stop(ctx))
	assert.False(t, backend.Running())
}

func TestStatusLevelsAndFailures(t *testing.T) {
	backend, _, client := newTestBackend(t)
	ctx := context.Background()

	backend.SetVolume(62)
	backend.SetBrightness(48)
	status, err := client.GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 62.0, status.Volume)
	assert.Equal(t, 48.0, status.Brightness)

	backend.FailStatus(true)
	_, err = client.GetStats(ctx)
	var statusErr *api.StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusInternalServerError, statusErr.Code)

	backend.FailSettings(true)
	assert.Error(t, client.UpdateSettings(ctx, models.DefaultSettings()))
	_, err = client.GetSettings(ctx)
	assert.Error(t, err)
}

func TestStartFailsForUnreachableCamera(t *testing.T) {
	backend, _, client := newTestBackend(t)
	ctx := context.Background()

	backend.SetCameraReachable("0", false)
	err := client.Start(ctx)
	var statusErr *api.StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Contains(t, statusErr.Body, "failed to connect to camera")
	assert.False(t, backend.Running())

	result, err := client.TestCamera(ctx, "0")
	require.NoError(t, err)
	assert.False(t, result.Available)

	result, err = client.TestCamera(ctx, "http://192.168.1.5:4747/video")
	require.NoError(t, err)
	assert.True(t, result.Available)
}

func TestUpdateSettingsRejectsInvalidRecords(t *testing.T) {
	backend, srv, _ := newTestBackend(t)

	resp, err := http.Post(srv.URL+"/settings", "application/json", strings.NewReader(`{"selected_camera":""}`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	resp, err = http.Post(srv.URL+"/settings", "application/json", strings.NewReader(`{"cooldown":"slow"}`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	resp, err = http.Post(srv.URL+"/settings", "application/json", strings.NewReader(`{"cooldown":2}`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 2.0, backend.Settings().Cooldown)
	assert.Equal(t, "0", backend.Settings().SelectedCamera, "partial updates merge")
}

func TestPushChannel(t *testing.T) {
	backend, srv, _ := newTestBackend(t)
	conn := dial(t, srv)
	require.Eventually(t, func() bool { return backend.ClientCount() == 1 }, time.Second, 5*time.Millisecond)

	data, err := models.EncodeFrame("abc", 24, []models.Gesture{{Gesture: models.GestureSwipeLeft, Hand: "right", Confidence: 0.91}}, 40, 55)
	require.NoError(t, err)
	backend.BroadcastRaw(data)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)
	msg, err := models.DecodeMessage(raw)
	require.NoError(t, err)
	frame, ok := msg.(models.FrameMessage)
	require.True(t, ok)
	assert.Equal(t, "abc", frame.Frame)

	t.Run("commands", func(t *testing.T) {
		require.NoError(t, conn.WriteJSON(models.Command{Type: models.CommandStart}))
		require.Eventually(t, backend.Running, time.Second, 5*time.Millisecond)

		settings := models.DefaultSettings()
		settings.SelectedCamera = "1"
		require.NoError(t, conn.WriteJSON(models.Command{Type: models.CommandSettings, Settings: &settings}))
		require.Eventually(t, func() bool { return backend.Settings().SelectedCamera == "1" }, time.Second, 5*time.Millisecond)

		require.NoError(t, conn.WriteJSON(models.Command{Type: models.CommandStop}))
		require.Eventually(t, func() bool { return !backend.Running() }, time.Second, 5*time.Millisecond)
	})

	t.Run("disconnect all", func(t *testing.T) {
		backend.DisconnectAll()
		assert.Equal(t, 0, backend.ClientCount())
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, _, err := conn.ReadMessage()
		assert.Error(t, err)
	})
}

func TestRecordGesture(t *testing.T) {
	clk := clock.Fake(time.Unix(1700000000, 0))
	backend := New(clk)

	backend.RecordGesture(models.Gesture{Gesture: models.GestureNone}, 0)
	backend.RecordGesture(models.Gesture{Gesture: models.GesturePinch, Hand: "Left", Confidence: 0.837}, 62)
	backend.RecordGesture(models.Gesture{Gesture: models.GesturePinch, Hand: "Right", Confidence: 0.9}, 48)

	srv := httptest.NewServer(backend.Router())
	defer srv.Close()
	log, err := api.NewClient(srv.URL, time.Second).GestureLog(context.Background())
	require.NoError(t, err)

	require.Len(t, log, 2)
	assert.Equal(t, "Right", log[0].Hand, "newest first")
	assert.Equal(t, 62.0, log[0].VolumeAtTime)
	assert.Equal(t, 48.0, log[0].BrightnessAtTime)
	assert.Equal(t, 0.84, log[1].Confidence)
	assert.Equal(t, clk.Now(), log[1].Time())

	for i := 0; i < maxLogSize+10; i++ {
		backend.RecordGesture(models.Gesture{Gesture: models.GestureGrab, Hand: "Left"}, 0)
	}
	log, err = api.NewClient(srv.URL, time.Second).GestureLog(context.Background())
	require.NoError(t, err)
	assert.Len(t, log, maxLogSize)
}

func TestRunEmitter(t *testing.T) {
	clk := clock.Fake(time.Unix(1000, 0))
	backend := New(clk)
	srv := httptest.NewServer(backend.Router())
	defer srv.Close()

	conn := dial(t, srv)
	require.Eventually(t, func() bool { return backend.ClientCount() == 1 }, time.Second, 5*time.Millisecond)
	require.NoError(t, backend.Start())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go backend.RunEmitter(ctx, 10)
	require.Eventually(t, func() bool { return clk.PendingCount() == 1 }, time.Second, 5*time.Millisecond)

	clk.Advance(100 * time.Millisecond)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)
	msg, err := models.DecodeMessage(raw)
	require.NoError(t, err)
	frame, ok := msg.(models.FrameMessage)
	require.True(t, ok)
	require.NotNil(t, frame.Metrics)
	assert.Equal(t, 10.0, frame.Metrics.FPS)

	w, h, err := models.Frame{Data: frame.Frame}.Dimensions()
	require.NoError(t, err)
	assert.Equal(t, 64, w)
	assert.Equal(t, 48, h)
}

func TestCORSPreflight(t *testing.T) {
	backend := New(clock.Real())
	backend.SetCORSOrigin("http://localhost:3000")
	srv := httptest.NewServer(backend.Router())
	defer srv.Close()

	req, err := http.NewRequest(http.MethodOptions, srv.URL+"/settings", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://localhost:3000")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "http://localhost:3000", resp.Header.Get("Access-Control-Allow-Origin"))

	resp, err = http.Get(srv.URL + "/status")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, "http://localhost:3000", resp.Header.Get("Access-Control-Allow-Origin"))
}
