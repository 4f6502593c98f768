package gesture

import (
	"math"
	"time"
)

// Swipe is the result of classifying a trajectory.
type Swipe int

const (
	SwipeNone Swipe = iota
	SwipeRight
	SwipeLeft
)

// String returns the event label used for the swipe.
func (s Swipe) String() string {
	switch s {
	case SwipeRight:
		return "SWIPE_RIGHT"
	case SwipeLeft:
		return "SWIPE_LEFT"
	default:
		return "NONE"
	}
}

// Swipe detector defaults.
const (
	DefaultSwipeCapacity  = 60
	MinSwipeSamples       = 5
	DefaultSwipeWindow    = 350 * time.Millisecond
	DefaultSwipeMinDxNorm = 0.18
	DefaultSwipeMaxDyNorm = 0.10
)

// Sample is a single normalized position observation.
type Sample struct {
	Time time.Time
	X    float64
	Y    float64
}

// SwipeDetector keeps a bounded trace of recent positions and classifies it
// as a horizontal swipe. Coordinates are normalized to [0,1].
type SwipeDetector struct {
	buf   []Sample
	head  int // index of the oldest sample
	count int
}

// NewSwipeDetector creates a detector retaining at most capacity samples.
// A non-positive capacity uses DefaultSwipeCapacity.
func NewSwipeDetector(capacity int) *SwipeDetector {
	if capacity <= 0 {
		capacity = DefaultSwipeCapacity
	}
	return &SwipeDetector{buf: make([]Sample, capacity)}
}

// Push appends a sample, evicting the oldest one when full.
func (s *SwipeDetector) Push(t time.Time, x, y float64) {
	idx := (s.head + s.count) % len(s.buf)
	s.buf[idx] = Sample{Time: t, X: x, Y: y}
	if s.count < len(s.buf) {
		s.count++
		return
	}
	s.head = (s.head + 1) % len(s.buf)
}

// Len returns the number of retained samples.
func (s *SwipeDetector) Len() int {
	return s.count
}

// Clear drops every sample.
func (s *SwipeDetector) Clear() {
	s.head = 0
	s.count = 0
}

// Samples returns the retained samples, oldest first.
func (s *SwipeDetector) Samples() []Sample {
	out := make([]Sample, s.count)
	for i := 0; i < s.count; i++ {
		out[i] = s.at(i)
	}
	return out
}

// Classify compares the newest sample to the newest one at least window old
// (or the oldest retained sample) and reports a horizontal swipe.
// Motion whose vertical displacement exceeds maxDy is rejected.
func (s *SwipeDetector) Classify(window time.Duration, minDx, maxDy float64) Swipe {
	if s.count < MinSwipeSamples {
		return SwipeNone
	}

	newest := s.at(s.count - 1)
	target := newest.Time.Add(-window)

	older := s.at(0)
	for i := s.count - 1; i >= 0; i-- {
		sample := s.at(i)
		if !sample.Time.After(target) {
			older = sample
			break
		}
	}

	dx := newest.X - older.X
	dy := newest.Y - older.Y

	if math.Abs(dy) > maxDy {
		return SwipeNone
	}
	switch {
	case dx >= minDx:
		return SwipeRight
	case dx <= -minDx:
		return SwipeLeft
	}
	return SwipeNone
}

func (s *SwipeDetector) at(i int) Sample {
	return s.buf[(s.head+i)%len(s.buf)]
}
