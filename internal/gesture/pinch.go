package gesture

import (
	"errors"
	"fmt"
)

// ErrInvalidThresholds is returned when a hysteresis band is empty or inverted.
var ErrInvalidThresholds = errors.New("on threshold must be less than off threshold")

// Pinch is a hysteresis state machine over the thumb-index fingertip distance.
// It grabs when the distance drops below the on threshold and releases only
// once the distance rises above the off threshold.
type Pinch struct {
	on      float64
	off     float64
	grabbed bool
}

// NewPinch creates a Pinch tracker. on must be strictly less than off.
func NewPinch(on, off float64) (*Pinch, error) {
	if on >= off {
		return nil, fmt.Errorf("pinch %.3f/%.3f: %w", on, off, ErrInvalidThresholds)
	}
	return &Pinch{on: on, off: off}, nil
}

// Update feeds a new distance sample and returns the grabbed state.
func (p *Pinch) Update(distance float64) bool {
	switch {
	case !p.grabbed && distance < p.on:
		p.grabbed = true
	case p.grabbed && distance > p.off:
		p.grabbed = false
	}
	return p.grabbed
}

// Grabbed returns the current state without updating it.
func (p *Pinch) Grabbed() bool {
	return p.grabbed
}

// Reset releases the pinch.
func (p *Pinch) Reset() {
	p.grabbed = false
}
