package gesture

import "math"

// Smoother is an exponential moving average over a scalar signal.
type Smoother struct {
	alpha float64
	value float64
	set   bool
}

// NewSmoother creates a smoother. alpha is the weight of each new sample,
// clamped to [0,1]; higher values follow the input more closely.
func NewSmoother(alpha float64) *Smoother {
	return &Smoother{alpha: math.Max(0, math.Min(1, alpha))}
}

// Update blends x into the running value and returns it.
// The first sample initializes the value directly.
func (s *Smoother) Update(x float64) float64 {
	if !s.set {
		s.value = x
		s.set = true
		return x
	}
	s.value = (1-s.alpha)*s.value + s.alpha*x
	return s.value
}

// Value returns the current smoothed value.
func (s *Smoother) Value() float64 {
	return s.value
}

// Set overrides the running value, e.g. to re-sync with an external reading.
func (s *Smoother) Set(x float64) {
	s.value = x
	s.set = true
}

// Reset forgets the running value.
func (s *Smoother) Reset() {
	s.set = false
	s.value = 0
}

// PointSmoother smooths a 2D point with independent EMAs per axis.
type PointSmoother struct {
	x, y *Smoother
}

// NewPointSmoother creates a 2D smoother with the given alpha.
func NewPointSmoother(alpha float64) *PointSmoother {
	return &PointSmoother{x: NewSmoother(alpha), y: NewSmoother(alpha)}
}

// Update blends (x, y) into the running point.
func (p *PointSmoother) Update(x, y float64) (float64, float64) {
	return p.x.Update(x), p.y.Update(y)
}

// Reset forgets the running point.
func (p *PointSmoother) Reset() {
	p.x.Reset()
	p.y.Reset()
}

// Quantize snaps v in [0,1] to the nearest multiple of step.
// A non-positive step returns v clamped to [0,1].
func Quantize(v, step float64) float64 {
	v = math.Max(0, math.Min(1, v))
	if step <= 0 {
		return v
	}
	return math.Max(0, math.Min(1, math.Round(v/step)*step))
}
