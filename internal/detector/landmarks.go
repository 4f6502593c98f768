// Package detector defines the hand and person detection collaborators and
// the landmark types they produce.
package detector

import (
	"image"
	"math"
)

// Hand landmark indices following MediaPipe convention.
// See: https://developers.google.com/mediapipe/solutions/vision/hand_landmarker
const (
	Wrist        = 0
	ThumbCMC     = 1
	ThumbMCP     = 2
	ThumbIP      = 3
	ThumbTip     = 4
	IndexMCP     = 5
	IndexPIP     = 6
	IndexDIP     = 7
	IndexTip     = 8
	MiddleMCP    = 9
	MiddlePIP    = 10
	MiddleDIP    = 11
	MiddleTip    = 12
	RingMCP      = 13
	RingPIP      = 14
	RingDIP      = 15
	RingTip      = 16
	PinkyMCP     = 17
	PinkyPIP     = 18
	PinkyDIP     = 19
	PinkyTip     = 20
	NumLandmarks = 21
)

// Handedness labels reported by the hand service.
const (
	HandLeft  = "Left"
	HandRight = "Right"
)

// Point3D represents a 3D point in space with x, y, z coordinates.
type Point3D struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// HandLandmarks represents the 21 hand landmarks detected by MediaPipe.
// X and Y are normalized to [0,1] image space.
type HandLandmarks struct {
	Points     [NumLandmarks]Point3D `json:"points"`
	Handedness string                `json:"handedness"` // "Left" or "Right"
	Score      float64               `json:"score"`
}

// Distance2D returns the image-plane distance between two landmarks,
// ignoring depth. Used for fingertip separation.
func (h *HandLandmarks) Distance2D(a, b int) float64 {
	dx := h.Points[a].X - h.Points[b].X
	dy := h.Points[a].Y - h.Points[b].Y
	return math.Hypot(dx, dy)
}

// Pixel converts a normalized landmark to frame pixel coordinates,
// clamped to the frame bounds.
func (h *HandLandmarks) Pixel(i, width, height int) image.Point {
	x := int(h.Points[i].X * float64(width))
	y := int(h.Points[i].Y * float64(height))
	return image.Pt(clamp(x, 0, width-1), clamp(y, 0, height-1))
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
