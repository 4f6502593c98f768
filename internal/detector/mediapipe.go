package detector

import (
	"fmt"
	"strconv"

	"gocv.io/x/gocv"
)

// MediaPipeDetector implements HandDetector using a Python MediaPipe service.
type MediaPipeDetector struct {
	config  Config
	service *serviceProcess
}

// NewMediaPipeDetector creates a new MediaPipe detector.
// The Python process is started lazily on first detection.
func NewMediaPipeDetector(config Config) (*MediaPipeDetector, error) {
	svc, err := newServiceProcess("mediapipe_service.py",
		"--max-hands", strconv.Itoa(config.MaxHands),
		"--min-detection", strconv.FormatFloat(config.MinConfidence, 'f', 2, 64),
		"--min-tracking", strconv.FormatFloat(config.MinTrackingConf, 'f', 2, 64),
	)
	if err != nil {
		return nil, err
	}

	return &MediaPipeDetector{config: config, service: svc}, nil
}

// Detect analyzes a frame and returns detected hand landmarks.
func (d *MediaPipeDetector) Detect(frame *gocv.Mat) ([]HandLandmarks, error) {
	var response struct {
		Hands []jsonHand `json:"hands"`
	}
	if err := d.service.roundTrip(frame, &response); err != nil {
		return nil, fmt.Errorf("mediapipe: %w", err)
	}

	result := make([]HandLandmarks, len(response.Hands))
	for i, h := range response.Hands {
		result[i] = h.toHandLandmarks()
	}
	return result, nil
}

// Close shuts down the Python process.
func (d *MediaPipeDetector) Close() error {
	return d.service.close()
}

// jsonHand represents the JSON structure from the Python service.
type jsonHand struct {
	Points     []jsonPoint `json:"points"`
	Handedness string      `json:"handedness"`
	Score      float64     `json:"score"`
}

type jsonPoint struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

func (h jsonHand) toHandLandmarks() HandLandmarks {
	lm := HandLandmarks{
		Handedness: h.Handedness,
		Score:      h.Score,
	}

	for i := 0; i < NumLandmarks && i < len(h.Points); i++ {
		lm.Points[i] = Point3D{
			X: h.Points[i].X,
			Y: h.Points[i].Y,
			Z: h.Points[i].Z,
		}
	}

	return lm
}
