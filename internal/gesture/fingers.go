package gesture

import "github.com/ayusman/rtspwatch/internal/detector"

// Fingers records which fingers are extended on a detected hand.
type Fingers struct {
	Thumb  bool
	Index  bool
	Middle bool
	Ring   bool
	Pinky  bool
}

// FingerStates derives finger extension from landmark geometry.
// Long fingers are up when the tip is above the PIP joint (smaller Y);
// the thumb is up when its tip points away from the palm along X, which
// depends on handedness.
func FingerStates(hand *detector.HandLandmarks) Fingers {
	if hand == nil {
		return Fingers{}
	}
	p := &hand.Points

	f := Fingers{
		Index:  p[detector.IndexTip].Y < p[detector.IndexPIP].Y,
		Middle: p[detector.MiddleTip].Y < p[detector.MiddlePIP].Y,
		Ring:   p[detector.RingTip].Y < p[detector.RingPIP].Y,
		Pinky:  p[detector.PinkyTip].Y < p[detector.PinkyPIP].Y,
	}

	if hand.Handedness == detector.HandRight {
		f.Thumb = p[detector.ThumbTip].X > p[detector.ThumbIP].X
	} else {
		f.Thumb = p[detector.ThumbTip].X < p[detector.ThumbIP].X
	}

	return f
}

// Count returns the number of extended fingers.
func (f Fingers) Count() int {
	n := 0
	for _, up := range []bool{f.Thumb, f.Index, f.Middle, f.Ring, f.Pinky} {
		if up {
			n++
		}
	}
	return n
}

// IsPalm reports an open hand with all five fingers extended.
func (f Fingers) IsPalm() bool {
	return f.Count() == 5
}

// IsFist reports a closed hand with no finger extended.
func (f Fingers) IsFist() bool {
	return f.Count() == 0
}

// Pose labels produced by ClassifyPose.
const (
	PosePalm = "PALM"
	PoseFist = "FIST"
)

// ClassifyPose maps finger states to a static pose label, or "" for none.
func ClassifyPose(f Fingers) string {
	switch {
	case f.IsPalm():
		return PosePalm
	case f.IsFist():
		return PoseFist
	}
	return ""
}
