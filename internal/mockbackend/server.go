// Package mockbackend is an in-process stand-in for the EYES backend. It
// serves the same REST routes and push channel so the client can be run and
// tested without a camera or the recognition engine.
package mockbackend

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/gorilla/mux"

	"github.com/eyes-gesture/eyes-client/internal/clock"
	"github.com/eyes-gesture/eyes-client/internal/middleware"
	"github.com/eyes-gesture/eyes-client/internal/models"
	"github.com/eyes-gesture/eyes-client/pkg/debug"
)

// maxLogSize bounds the gesture history
const maxLogSize = 50

// Server holds the simulated backend state
type Server struct {
	clock      clock.Clock
	corsOrigin string

	mu           sync.RWMutex
	settings     models.Settings
	running      bool
	fps          float64
	volume       float64
	brightness   float64
	cameras      []models.CameraInfo
	unreachable  map[string]bool
	gestureLog   []models.GestureLogEntry
	failStatus   bool
	failSettings bool
	settingsPuts int

	hub *hub
}

// New creates a stopped backend with the default settings and two USB
// cameras
func New(clk clock.Clock) *Server {
	return &Server{
		clock:      clk,
		corsOrigin: "*",
		settings:   models.DefaultSettings(),
		volume:     50,
		brightness: 50,
		cameras: []models.CameraInfo{
			{ID: "usb_0", Name: "Camera 0", Type: models.CameraUSB, Source: "0"},
			{ID: "usb_1", Name: "Camera 1", Type: models.CameraUSB, Source: "1"},
		},
		unreachable: make(map[string]bool),
		hub:         newHub(),
	}
}

// SetCORSOrigin restricts browser access to origin. Call before Router.
func (s *Server) SetCORSOrigin(origin string) {
	s.corsOrigin = origin
}

// Router returns the HTTP handler for every backend route
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/", s.handleRoot).Methods(http.MethodGet)
	r.HandleFunc("/cameras", s.handleCameras).Methods(http.MethodGet)
	r.HandleFunc("/cameras/test", s.handleCameraTest).Methods(http.MethodPost)
	r.HandleFunc("/settings", s.handleGetSettings).Methods(http.MethodGet)
	r.HandleFunc("/settings", s.handleUpdateSettings).Methods(http.MethodPost)
	r.HandleFunc("/start", s.handleStart).Methods(http.MethodPost)
	r.HandleFunc("/stop", s.handleStop).Methods(http.MethodPost)
	r.HandleFunc("/stats", s.handleStatus).Methods(http.MethodGet)
	r.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet)
	r.HandleFunc("/gestures/log", s.handleGestureLog).Methods(http.MethodGet)
	r.HandleFunc("/ws/gestures", s.handleWebSocket)
	r.PathPrefix("/").Methods(http.MethodOptions).HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})
	r.Use(middleware.Logging, middleware.CORS(s.corsOrigin))
	debug.Debug("Mock backend routes configured")
	return r
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		debug.Error("Failed to encode response: %v", err)
	}
}

func writeDetail(w http.ResponseWriter, code int, detail string) {
	writeJSON(w, code, map[string]string{"detail": detail})
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	writeJSON(w, http.StatusOK, models.HealthInfo{
		Status:    "ok",
		Name:      "EYES Gesture Control Backend (mock)",
		Version:   "1.0.0",
		IsRunning: s.running,
	})
}

func (s *Server) handleCameras(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	cameras := append([]models.CameraInfo{}, s.cameras...)
	s.mu.RUnlock()
	writeJSON(w, http.StatusOK, map[string]interface{}{"cameras": cameras})
}

func (s *Server) handleCameraTest(w http.ResponseWriter, r *http.Request) {
	url := r.URL.Query().Get("url")
	if url == "" {
		writeDetail(w, http.StatusUnprocessableEntity, "url query parameter is required")
		return
	}
	s.mu.RLock()
	available := !s.unreachable[url]
	s.mu.RUnlock()
	writeJSON(w, http.StatusOK, models.CameraTestResult{URL: url, Available: available})
}

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.failSettings {
		writeDetail(w, http.StatusServiceUnavailable, "settings store unavailable")
		return
	}
	writeJSON(w, http.StatusOK, s.settings)
}

func (s *Server) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	var patch map[string]interface{}
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, fmt.Sprintf("invalid body: %v", err))
		return
	}

	s.mu.Lock()
	if s.failSettings {
		s.mu.Unlock()
		writeDetail(w, http.StatusServiceUnavailable, "settings store unavailable")
		return
	}
	updated, err := mergeSettings(s.settings, patch)
	if err != nil {
		s.mu.Unlock()
		writeDetail(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	if updated.SelectedCamera != s.settings.SelectedCamera && s.running {
		debug.Info("Camera changed from %s to %s, restarting detection", s.settings.SelectedCamera, updated.SelectedCamera)
	}
	s.settings = updated
	s.settingsPuts++
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]interface{}{"status": "updated", "settings": updated})
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	if err := s.Start(); err != nil {
		writeDetail(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "started"})
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	s.Stop()
	writeJSON(w, http.StatusOK, map[string]string{"status": "stopped"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.failStatus {
		writeDetail(w, http.StatusInternalServerError, "status unavailable")
		return
	}
	fps := 0.0
	if s.running {
		fps = s.fps
	}
	writeJSON(w, http.StatusOK, models.SystemStatus{
		IsRunning:        s.running,
		Camera:           s.settings.SelectedCamera,
		FPS:              fps,
		Volume:           s.volume,
		Brightness:       s.brightness,
		ConnectedClients: s.hub.count(),
	})
}

func (s *Server) handleGestureLog(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	log := append([]models.GestureLogEntry{}, s.gestureLog...)
	s.mu.RUnlock()
	writeJSON(w, http.StatusOK, map[string]interface{}{"log": log})
}

// Start begins detection. It fails when the selected camera is marked
// unreachable.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return nil
	}
	if s.unreachable[s.settings.SelectedCamera] {
		return fmt.Errorf("failed to connect to camera: %s", s.settings.SelectedCamera)
	}
	s.running = true
	debug.Info("Mock detection started on camera %s", s.settings.SelectedCamera)
	return nil
}

// Stop halts detection
func (s *Server) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		debug.Info("Mock detection stopped")
	}
	s.running = false
}

// Running reports whether detection is on
func (s *Server) Running() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// Settings returns the persisted record
func (s *Server) Settings() models.Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings
}

// SettingsUpdates counts accepted POST /settings requests
func (s *Server) SettingsUpdates() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settingsPuts
}

// FailStatus makes GET /stats return 500 while on
func (s *Server) FailStatus(fail bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failStatus = fail
}

// FailSettings makes both settings routes return 503 while on
func (s *Server) FailSettings(fail bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failSettings = fail
}

// SetVolume sets the reported system volume
func (s *Server) SetVolume(v float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.volume = v
}

// SetBrightness sets the reported screen brightness
func (s *Server) SetBrightness(v float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.brightness = v
}

// SetCameras replaces the camera listing
func (s *Server) SetCameras(cameras []models.CameraInfo) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cameras = append([]models.CameraInfo{}, cameras...)
}

// SetCameraReachable controls POST /cameras/test and Start for source
func (s *Server) SetCameraReachable(source string, reachable bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if reachable {
		delete(s.unreachable, source)
	} else {
		s.unreachable[source] = true
	}
}

// RecordGesture applies a detection: it is logged newest first and a pinch
// adjusts volume (left hand) or brightness (right hand).
func (s *Server) RecordGesture(g models.Gesture, pinchLevel float64) {
	if g.Gesture == models.GestureNone {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if g.Gesture == models.GesturePinch {
		if g.Hand == "Left" && s.settings.VolumeControl {
			s.volume = pinchLevel
		} else if g.Hand != "Left" && s.settings.BrightnessControl {
			s.brightness = pinchLevel
		}
	}

	now := s.clock.Now()
	entry := models.GestureLogEntry{
		Gesture:          g.Gesture,
		Hand:             g.Hand,
		Confidence:       float64(int(g.Confidence*100+0.5)) / 100,
		Timestamp:        float64(now.UnixNano()) / 1e9,
		VolumeAtTime:     s.volume,
		BrightnessAtTime: s.brightness,
	}
	s.gestureLog = append([]models.GestureLogEntry{entry}, s.gestureLog...)
	if len(s.gestureLog) > maxLogSize {
		s.gestureLog = s.gestureLog[:maxLogSize]
	}
}

// applyCommand handles a client command received over the push channel
func (s *Server) applyCommand(cmd models.Command) {
	switch cmd.Type {
	case models.CommandSettings:
		if cmd.Settings == nil {
			return
		}
		s.mu.Lock()
		s.settings = *cmd.Settings
		s.mu.Unlock()
	case models.CommandStart:
		if err := s.Start(); err != nil {
			debug.Warning("Start command failed: %v", err)
		}
	case models.CommandStop:
		s.Stop()
	default:
		debug.Debug("Ignoring unknown command type %q", cmd.Type)
	}
}

// mergeSettings applies a partial JSON update the way the backend's dict
// update does, rejecting values of the wrong type
func mergeSettings(current models.Settings, patch map[string]interface{}) (models.Settings, error) {
	base, err := json.Marshal(current)
	if err != nil {
		return current, err
	}
	var merged map[string]interface{}
	if err := json.Unmarshal(base, &merged); err != nil {
		return current, err
	}
	for k, v := range patch {
		merged[k] = v
	}
	data, err := json.Marshal(merged)
	if err != nil {
		return current, err
	}
	var out models.Settings
	if err := json.Unmarshal(data, &out); err != nil {
		return current, fmt.Errorf("invalid settings: %w", err)
	}
	if err := out.Validate(); err != nil {
		return current, err
	}
	return out, nil
}
