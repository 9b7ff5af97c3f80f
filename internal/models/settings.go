package models

import "fmt"

// Settings keys as they appear on the wire
const (
	KeyDesktopControl    = "desktop_control"
	KeyVolumeControl     = "volume_control"
	KeyBrightnessControl = "brightness_control"
	KeySwipeSensitivity  = "swipe_sensitivity"
	KeyCooldown          = "cooldown"
	KeySelectedCamera    = "selected_camera"
)

// SettingKeys lists every mutable settings key in display order
var SettingKeys = []string{
	KeyDesktopControl,
	KeyVolumeControl,
	KeyBrightnessControl,
	KeySwipeSensitivity,
	KeyCooldown,
	KeySelectedCamera,
}

// Settings is the single shared configuration record. The client holds the
// in-memory copy; the backend holds the persisted one.
type Settings struct {
	DesktopControl    bool    `json:"desktop_control" mapstructure:"desktop_control" yaml:"desktop_control"`
	VolumeControl     bool    `json:"volume_control" mapstructure:"volume_control" yaml:"volume_control"`
	BrightnessControl bool    `json:"brightness_control" mapstructure:"brightness_control" yaml:"brightness_control"`
	SwipeSensitivity  float64 `json:"swipe_sensitivity" mapstructure:"swipe_sensitivity" yaml:"swipe_sensitivity"`
	Cooldown          float64 `json:"cooldown" mapstructure:"cooldown" yaml:"cooldown"`
	SelectedCamera    string  `json:"selected_camera" mapstructure:"selected_camera" yaml:"selected_camera"`
}

// DefaultSettings mirrors the backend's built-in defaults
func DefaultSettings() Settings {
	return Settings{
		DesktopControl:    true,
		VolumeControl:     true,
		BrightnessControl: true,
		SwipeSensitivity:  100,
		Cooldown:          0.75,
		SelectedCamera:    "0",
	}
}

// Validate enforces the record invariants
func (s Settings) Validate() error {
	if s.SelectedCamera == "" {
		return fmt.Errorf("%s must not be empty", KeySelectedCamera)
	}
	if s.SwipeSensitivity < 0 {
		return fmt.Errorf("%s must not be negative", KeySwipeSensitivity)
	}
	if s.Cooldown < 0 {
		return fmt.Errorf("%s must not be negative", KeyCooldown)
	}
	return nil
}

// Value returns the field stored under key
func (s Settings) Value(key string) (interface{}, bool) {
	switch key {
	case KeyDesktopControl:
		return s.DesktopControl, true
	case KeyVolumeControl:
		return s.VolumeControl, true
	case KeyBrightnessControl:
		return s.BrightnessControl, true
	case KeySwipeSensitivity:
		return s.SwipeSensitivity, true
	case KeyCooldown:
		return s.Cooldown, true
	case KeySelectedCamera:
		return s.SelectedCamera, true
	}
	return nil, false
}
