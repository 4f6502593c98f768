package capture

import (
	"image"
	"sync"
	"time"

	"gocv.io/x/gocv"
)

// Motion gate constants.
const (
	// motionBlurSize is the Gaussian kernel applied before differencing.
	motionBlurSize = 21
	// motionDiffThreshold is the per-pixel intensity change counted as motion.
	motionDiffThreshold = 25
	// motionSampleWidth is the width frames are scaled to before comparison.
	motionSampleWidth = 160

	DefaultMotionThreshold = 1.0
	DefaultMotionQuiet     = 2 * time.Second
)

// MotionGate decides whether the processing loop should run at its active
// rate. It stays active for a quiet period after the last frame whose
// changed-pixel percentage exceeded the threshold.
type MotionGate struct {
	threshold float64
	quiet     time.Duration

	mu          sync.Mutex
	prev        gocv.Mat
	initialized bool
	lastMotion  time.Time
	lastChange  float64
}

// NewMotionGate creates a gate. threshold is the percentage of pixels that
// must change between consecutive frames; quiet is how long the gate stays
// open after motion stops.
func NewMotionGate(threshold float64, quiet time.Duration) *MotionGate {
	if threshold <= 0 {
		threshold = DefaultMotionThreshold
	}
	if quiet <= 0 {
		quiet = DefaultMotionQuiet
	}
	return &MotionGate{
		threshold: threshold,
		quiet:     quiet,
		prev:      gocv.NewMat(),
	}
}

// Observe compares frame against the previous one and reports whether the
// gate is open at now. The first frame opens the gate so processing starts
// immediately.
func (g *MotionGate) Observe(frame *gocv.Mat, now time.Time) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if frame == nil || frame.Empty() {
		return g.open(now)
	}

	small := prepareMotionFrame(frame)
	defer small.Close()

	if !g.initialized {
		small.CopyTo(&g.prev)
		g.initialized = true
		g.lastMotion = now
		g.lastChange = 0
		return true
	}

	diff := gocv.NewMat()
	defer diff.Close()
	gocv.AbsDiff(small, g.prev, &diff)

	mask := gocv.NewMat()
	defer mask.Close()
	gocv.Threshold(diff, &mask, motionDiffThreshold, 255, gocv.ThresholdBinary)

	total := mask.Rows() * mask.Cols()
	g.lastChange = 0
	if total > 0 {
		g.lastChange = float64(gocv.CountNonZero(mask)) / float64(total) * 100.0
	}

	small.CopyTo(&g.prev)

	if g.lastChange > g.threshold {
		g.lastMotion = now
	}
	return g.open(now)
}

// ChangePercent returns the changed-pixel percentage of the last comparison.
func (g *MotionGate) ChangePercent() float64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.lastChange
}

// Reset forgets the baseline frame.
func (g *MotionGate) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.initialized = false
	g.lastMotion = time.Time{}
	g.lastChange = 0
}

// Close releases the baseline frame. Close may be called more than once.
func (g *MotionGate) Close() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.prev.Empty() {
		g.prev.Close()
		g.prev = gocv.NewMat()
	}
	g.initialized = false
}

func (g *MotionGate) open(now time.Time) bool {
	return g.initialized && now.Sub(g.lastMotion) < g.quiet
}

// prepareMotionFrame returns a downscaled, blurred grayscale copy of frame.
func prepareMotionFrame(frame *gocv.Mat) gocv.Mat {
	gray := gocv.NewMat()
	if frame.Channels() > 1 {
		gocv.CvtColor(*frame, &gray, gocv.ColorBGRToGray)
	} else {
		frame.CopyTo(&gray)
	}

	if gray.Cols() > motionSampleWidth {
		height := gray.Rows() * motionSampleWidth / gray.Cols()
		small := gocv.NewMat()
		gocv.Resize(gray, &small, image.Pt(motionSampleWidth, height), 0, 0, gocv.InterpolationArea)
		gray.Close()
		gray = small
	}

	blurred := gocv.NewMat()
	gocv.GaussianBlur(gray, &blurred, image.Pt(motionBlurSize, motionBlurSize), 0, 0, gocv.BorderDefault)
	gray.Close()
	return blurred
}
