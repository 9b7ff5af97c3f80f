package models

import "fmt"

// Camera source kinds reported by GET /cameras
const (
	CameraUSB      = "usb"
	CameraIPStream = "ip_stream"
	CameraPhone    = "phone"
)

// CustomCameraID identifies the synthetic catalog entry
const CustomCameraID = "custom"

// CameraInfo is a read-only camera listing entry. Source is a device index
// for USB cameras and a URL otherwise.
type CameraInfo struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Type   string `json:"type"`
	Source string `json:"source"`
}

// CameraTestResult is returned by POST /cameras/test
type CameraTestResult struct {
	URL       string `json:"url"`
	Available bool   `json:"available"`
}

// CameraCatalog returns cameras plus a synthetic "custom" entry when selected
// does not match any known source, so the selector always has something to
// highlight.
func CameraCatalog(cameras []CameraInfo, selected string) []CameraInfo {
	catalog := make([]CameraInfo, 0, len(cameras)+1)
	catalog = append(catalog, cameras...)
	if selected == "" {
		return catalog
	}
	for _, cam := range cameras {
		if cam.Source == selected {
			return catalog
		}
	}
	return append(catalog, CameraInfo{
		ID:     CustomCameraID,
		Name:   fmt.Sprintf("Custom: %s", selected),
		Type:   CameraIPStream,
		Source: selected,
	})
}
