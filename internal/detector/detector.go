package detector

import (
	"image"

	"gocv.io/x/gocv"
)

// HandDetector defines the interface for hand landmark detection.
type HandDetector interface {
	// Detect analyzes a video frame and returns detected hand landmarks.
	// Returns an empty slice if no hands are detected.
	Detect(frame *gocv.Mat) ([]HandLandmarks, error)

	// Close releases any resources held by the detector.
	Close() error
}

// PersonDetector defines the interface for person detection, optionally with
// tracker-assigned identities.
type PersonDetector interface {
	// Detect analyzes a video frame and returns detected people.
	Detect(frame *gocv.Mat) ([]Person, error)

	// Close releases any resources held by the detector.
	Close() error
}

// UnknownTrackID is the track identifier reported when the tracker has not
// (yet) correlated a detection across frames, or when tracking is disabled.
const UnknownTrackID = -1

// Person is a single person detection in frame pixel coordinates.
type Person struct {
	Box        image.Rectangle `json:"box"`
	Confidence float64         `json:"confidence"`
	TrackID    int             `json:"track_id"`
}

// Center returns the center of the bounding box.
func (p Person) Center() image.Point {
	return image.Pt((p.Box.Min.X+p.Box.Max.X)/2, (p.Box.Min.Y+p.Box.Max.Y)/2)
}

// Tracked reports whether the detection carries a real track identifier.
func (p Person) Tracked() bool {
	return p.TrackID != UnknownTrackID
}

// Config holds configuration options for hand detection.
type Config struct {
	// MaxHands is the maximum number of hands to detect (default: 1).
	MaxHands int

	// MinConfidence is the minimum detection confidence threshold (0.0-1.0).
	MinConfidence float64

	// MinTrackingConf is the minimum tracking confidence threshold (0.0-1.0).
	MinTrackingConf float64
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() Config {
	return Config{
		MaxHands:        1,
		MinConfidence:   0.6,
		MinTrackingConf: 0.6,
	}
}

// PersonConfig holds configuration options for person detection.
type PersonConfig struct {
	// ModelPath is the YOLO weights file passed to the service.
	ModelPath string

	// MinConfidence is the minimum detection confidence (0.0-1.0).
	MinConfidence float64

	// ImageSize is the inference input size in pixels.
	ImageSize int

	// Tracking selects tracker mode, which assigns persistent track IDs.
	// Without it every detection has UnknownTrackID.
	Tracking bool

	// SkipEveryN runs inference on every Nth frame and repeats the last
	// result in between. Values <= 1 run on every frame.
	SkipEveryN int
}

// DefaultPersonConfig returns a PersonConfig with sensible default values.
func DefaultPersonConfig() PersonConfig {
	return PersonConfig{
		ModelPath:     "yolov8n.pt",
		MinConfidence: 0.35,
		ImageSize:     512,
		Tracking:      true,
		SkipEveryN:    2,
	}
}
