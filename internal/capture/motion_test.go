package capture

import (
	"testing"
	"time"

	"gocv.io/x/gocv"
)

func TestNewMotionGate_Defaults(t *testing.T) {
	g := NewMotionGate(0, 0)
	defer g.Close()

	if g.threshold != DefaultMotionThreshold {
		t.Errorf("threshold = %f, want %f", g.threshold, DefaultMotionThreshold)
	}
	if g.quiet != DefaultMotionQuiet {
		t.Errorf("quiet = %v, want %v", g.quiet, DefaultMotionQuiet)
	}
}

func TestMotionGate(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test that requires GoCV Mat creation")
	}

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	black := gocv.NewMatWithSize(480, 640, gocv.MatTypeCV8UC3)
	defer black.Close()
	white := gocv.NewMatWithSize(480, 640, gocv.MatTypeCV8UC3)
	defer white.Close()
	white.SetTo(gocv.NewScalar(255, 255, 255, 0))

	t.Run("first frame opens the gate", func(t *testing.T) {
		g := NewMotionGate(1.0, time.Second)
		defer g.Close()

		if !g.Observe(&black, base) {
			t.Error("gate should open on the first frame")
		}
	})

	t.Run("closes after quiet period", func(t *testing.T) {
		g := NewMotionGate(1.0, time.Second)
		defer g.Close()

		g.Observe(&black, base)
		if !g.Observe(&black, base.Add(500*time.Millisecond)) {
			t.Error("gate should stay open within the quiet period")
		}
		if g.Observe(&black, base.Add(1500*time.Millisecond)) {
			t.Errorf("gate should close without motion, change = %f", g.ChangePercent())
		}
	})

	t.Run("motion reopens", func(t *testing.T) {
		g := NewMotionGate(1.0, time.Second)
		defer g.Close()

		g.Observe(&black, base)
		g.Observe(&black, base.Add(2*time.Second))

		if !g.Observe(&white, base.Add(3*time.Second)) {
			t.Errorf("black to white should open the gate, change = %f", g.ChangePercent())
		}
		if g.ChangePercent() < 50 {
			t.Errorf("ChangePercent() = %f, expected > 50", g.ChangePercent())
		}
	})

	t.Run("reset forgets baseline", func(t *testing.T) {
		g := NewMotionGate(1.0, time.Second)
		defer g.Close()

		g.Observe(&black, base)
		g.Reset()
		if g.initialized {
			t.Error("gate should not be initialized after Reset")
		}
	})
}

func TestMotionGate_CloseMultiple(t *testing.T) {
	g := NewMotionGate(1.0, time.Second)
	g.Close()
	g.Close()
}
