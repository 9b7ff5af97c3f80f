package models

import (
	"encoding/json"
	"errors"
	"fmt"
)

// MessageType tags push-channel messages
type MessageType string

const (
	MessageFrame MessageType = "frame"
	MessageStats MessageType = "stats"
)

// CommandType tags client-to-server commands
type CommandType string

const (
	CommandSettings CommandType = "settings"
	CommandStart    CommandType = "start"
	CommandStop     CommandType = "stop"
)

// ErrMalformedMessage is returned for payloads that are not a JSON object
// with a string "type".
var ErrMalformedMessage = errors.New("malformed push message")

// Message is a decoded push-channel message. Exactly one of FrameMessage,
// MetricsMessage or IgnoredMessage is produced per wire message.
type Message interface {
	Kind() MessageType
}

// MetricsUpdate is present whenever the wire message carries fps. Gesture
// delivery piggybacks on it.
type MetricsUpdate struct {
	FPS        float64
	Gestures   []Gesture
	Volume     *float64
	Brightness *float64
}

// FrameMessage carries a frame payload and, usually, a metrics update.
type FrameMessage struct {
	Frame   string
	Metrics *MetricsUpdate
}

func (FrameMessage) Kind() MessageType { return MessageFrame }

// MetricsMessage is any non-frame message that still carries fps.
type MetricsMessage struct {
	Type    MessageType
	Metrics MetricsUpdate
}

func (m MetricsMessage) Kind() MessageType { return m.Type }

// IgnoredMessage has no display effect.
type IgnoredMessage struct {
	Type MessageType
}

func (m IgnoredMessage) Kind() MessageType { return m.Type }

// wireMessage is the on-the-wire shape; every payload field is optional.
type wireMessage struct {
	Type       *MessageType `json:"type"`
	Frame      *string      `json:"frame,omitempty"`
	FPS        *float64     `json:"fps,omitempty"`
	Gestures   []Gesture    `json:"gestures,omitempty"`
	Volume     *float64     `json:"volume,omitempty"`
	Brightness *float64     `json:"brightness,omitempty"`
}

// DecodeMessage parses a raw push message into its variant.
func DecodeMessage(data []byte) (Message, error) {
	var wire wireMessage
	if err := json.Unmarshal(data, &wire); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	if wire.Type == nil {
		return nil, fmt.Errorf("%w: missing type", ErrMalformedMessage)
	}

	var metrics *MetricsUpdate
	if wire.FPS != nil {
		metrics = &MetricsUpdate{
			FPS:        *wire.FPS,
			Gestures:   wire.Gestures,
			Volume:     wire.Volume,
			Brightness: wire.Brightness,
		}
	}

	switch {
	case *wire.Type == MessageFrame && wire.Frame != nil:
		return FrameMessage{Frame: *wire.Frame, Metrics: metrics}, nil
	case metrics != nil:
		return MetricsMessage{Type: *wire.Type, Metrics: *metrics}, nil
	default:
		return IgnoredMessage{Type: *wire.Type}, nil
	}
}

// MetricsOf returns the metrics update carried by msg, if any.
func MetricsOf(msg Message) (*MetricsUpdate, bool) {
	switch m := msg.(type) {
	case FrameMessage:
		return m.Metrics, m.Metrics != nil
	case MetricsMessage:
		update := m.Metrics
		return &update, true
	}
	return nil, false
}

// EncodeFrame builds the wire form of a frame message. The mock backend uses
// it to speak the same protocol the client decodes.
func EncodeFrame(frame string, fps float64, gestures []Gesture, volume, brightness float64) ([]byte, error) {
	msgType := MessageFrame
	if gestures == nil {
		gestures = []Gesture{}
	}
	return json.Marshal(wireMessage{
		Type:       &msgType,
		Frame:      &frame,
		FPS:        &fps,
		Gestures:   gestures,
		Volume:     &volume,
		Brightness: &brightness,
	})
}

// Command is a client-to-server instruction sent over the push channel.
type Command struct {
	Type     CommandType `json:"type"`
	Settings *Settings   `json:"settings,omitempty"`
}
