package models

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image/jpeg"
	"time"
)

// Known gesture labels emitted by the recognition engine. Labels outside this
// set are carried through unchanged.
const (
	GestureNone       = "none"
	GestureSwipeLeft  = "swipe_left"
	GestureSwipeRight = "swipe_right"
	GestureSwipeUp    = "swipe_up"
	GestureSwipeDown  = "swipe_down"
	GesturePinch      = "pinch"
	GestureGrab       = "grab"
	GestureOpenPalm   = "open_palm"
	GestureThumbsUp   = "thumbs_up"
	GesturePeace      = "peace"
)

// Gesture is a single detection event. It is never persisted client side.
type Gesture struct {
	Gesture    string  `json:"gesture"`
	Hand       string  `json:"hand"`
	Confidence float64 `json:"confidence"`
}

// String renders e.g. "swipe_left (right, 91%)"
func (g Gesture) String() string {
	return fmt.Sprintf("%s (%s, %.0f%%)", g.Gesture, g.Hand, g.Confidence*100)
}

// SystemStatus is the coarse status snapshot returned by GET /stats.
type SystemStatus struct {
	IsRunning        bool    `json:"is_running"`
	Camera           string  `json:"camera"`
	FPS              float64 `json:"fps"`
	Volume           float64 `json:"volume"`
	Brightness       float64 `json:"brightness"`
	ConnectedClients int     `json:"connected_clients"`
}

// HealthInfo is returned by the backend's root endpoint
type HealthInfo struct {
	Status    string `json:"status"`
	Name      string `json:"name"`
	Version   string `json:"version"`
	IsRunning bool   `json:"is_running"`
}

// GestureLogEntry is one row of the backend's recent gesture history.
type GestureLogEntry struct {
	Gesture          string  `json:"gesture"`
	Hand             string  `json:"hand"`
	Confidence       float64 `json:"confidence"`
	Timestamp        float64 `json:"timestamp"`
	VolumeAtTime     float64 `json:"volume_at_time"`
	BrightnessAtTime float64 `json:"brightness_at_time"`
}

// Time converts the backend's unix-seconds float timestamp.
func (e GestureLogEntry) Time() time.Time {
	sec := int64(e.Timestamp)
	nsec := int64((e.Timestamp - float64(sec)) * float64(time.Second))
	return time.Unix(sec, nsec)
}

// ConnectionState is derived locally and never transmitted.
type ConnectionState int

const (
	Disconnected ConnectionState = iota
	Connecting
	Open
	Closed
)

func (s ConnectionState) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Open:
		return "open"
	case Closed:
		return "closed"
	default:
		return fmt.Sprintf("ConnectionState(%d)", int(s))
	}
}

// Frame is the most recent push-channel frame. Data holds the base64 JPEG
// exactly as received; decoding is deferred until someone needs pixels.
type Frame struct {
	Data       string
	Seq        uint64
	ReceivedAt time.Time
}

// JPEG decodes the base64 payload.
func (f Frame) JPEG() ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(f.Data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode frame payload: %w", err)
	}
	return raw, nil
}

// Dimensions reports the encoded image size without decoding the pixels.
func (f Frame) Dimensions() (width, height int, err error) {
	raw, err := f.JPEG()
	if err != nil {
		return 0, 0, err
	}
	cfg, err := jpeg.DecodeConfig(bytes.NewReader(raw))
	if err != nil {
		return 0, 0, fmt.Errorf("failed to read frame header: %w", err)
	}
	return cfg.Width, cfg.Height, nil
}

// Size is the decoded payload size in bytes, estimated from the base64 length.
func (f Frame) Size() int {
	return base64.StdEncoding.DecodedLen(len(f.Data))
}
