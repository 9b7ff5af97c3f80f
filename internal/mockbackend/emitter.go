package mockbackend

import (
	"bytes"
	"context"
	"encoding/base64"
	"image"
	"image/color"
	"image/jpeg"
	"time"

	"github.com/eyes-gesture/eyes-client/internal/models"
	"github.com/eyes-gesture/eyes-client/pkg/debug"
)

// gestureEvery is how many frames pass between synthesized detections
const gestureEvery = 45

var gestureCycle = []models.Gesture{
	{Gesture: models.GestureSwipeLeft, Hand: "Right", Confidence: 0.91},
	{Gesture: models.GesturePinch, Hand: "Left", Confidence: 0.84},
	{Gesture: models.GestureSwipeUp, Hand: "Right", Confidence: 0.77},
	{Gesture: models.GesturePinch, Hand: "Right", Confidence: 0.88},
	{Gesture: models.GestureOpenPalm, Hand: "Left", Confidence: 0.95},
	{Gesture: models.GestureSwipeRight, Hand: "Right", Confidence: 0.9},
}

// RunEmitter broadcasts synthetic frames at fps while detection is running,
// with a detection every few frames. It returns when ctx is cancelled.
func (s *Server) RunEmitter(ctx context.Context, fps float64) {
	if fps <= 0 {
		fps = 15
	}
	interval := time.Duration(float64(time.Second) / fps)
	ticker := s.clock.NewTicker(interval)
	defer ticker.Stop()

	s.mu.Lock()
	s.fps = fps
	s.mu.Unlock()

	debug.Info("Mock emitter running at %.1f fps", fps)
	var frameNo int
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		if !s.Running() || s.ClientCount() == 0 {
			continue
		}
		frameNo++
		s.emitFrame(frameNo, fps)
	}
}

func (s *Server) emitFrame(frameNo int, fps float64) {
	var gestures []models.Gesture
	if frameNo%gestureEvery == 0 {
		g := gestureCycle[(frameNo/gestureEvery-1)%len(gestureCycle)]
		gestures = append(gestures, g)
		s.RecordGesture(g, float64((frameNo*7)%101))
	}

	payload, err := syntheticFrame(frameNo)
	if err != nil {
		debug.Error("Failed to render synthetic frame: %v", err)
		return
	}

	s.mu.RLock()
	volume, brightness := s.volume, s.brightness
	s.mu.RUnlock()

	data, err := models.EncodeFrame(payload, fps, gestures, volume, brightness)
	if err != nil {
		debug.Error("Failed to encode frame message: %v", err)
		return
	}
	s.BroadcastRaw(data)
}

// syntheticFrame renders a small gradient JPEG that shifts with frameNo
func syntheticFrame(frameNo int) (string, error) {
	const w, h = 64, 48
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{
				R: uint8((x*4 + frameNo*3) % 256),
				G: uint8((y*5 + frameNo) % 256),
				B: 128,
				A: 255,
			})
		}
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 60}); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}
