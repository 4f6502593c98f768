// Package gesture turns noisy per-frame hand signals into discrete events.
//
// Every type in this package is single-threaded and non-blocking: the
// processing loop calls it once per frame with the frame's timestamp.
package gesture

import "time"

// RepeatPolicy controls what happens to hold tracking after a debouncer fires.
type RepeatPolicy int

const (
	// RepeatAfterHold restarts the hold timer at the fire time, so keeping the
	// same label fires again after another full hold (and after cooldown).
	RepeatAfterHold RepeatPolicy = iota
	// OncePerHold stops tracking after a fire until the label changes.
	OncePerHold
)

// DebounceConfig holds per-use-site thresholds for a Debouncer.
type DebounceConfig struct {
	Hold     time.Duration
	Cooldown time.Duration
	Repeat   RepeatPolicy
}

// Debouncer converts a per-frame candidate label into a debounced fire event
// using a contiguous hold duration and a post-fire cooldown.
// The empty label means idle.
type Debouncer struct {
	cfg DebounceConfig

	label    string
	start    time.Time
	tracking bool
	latched  bool // OncePerHold fired for the current run of label
	lastFire time.Time
	fired    bool
}

// NewDebouncer creates a Debouncer with the given thresholds.
func NewDebouncer(cfg DebounceConfig) *Debouncer {
	return &Debouncer{cfg: cfg}
}

// Observe records the label seen at now and reports whether it fires.
// The returned string is the label that fired.
func (d *Debouncer) Observe(label string, now time.Time) (string, bool) {
	if label != d.label {
		d.label = label
		d.latched = false
		d.tracking = label != ""
		d.start = now
	}

	if !d.tracking || d.latched {
		return "", false
	}

	if d.inCooldown(now) {
		return "", false
	}

	if now.Sub(d.start) < d.cfg.Hold {
		return "", false
	}

	d.lastFire = now
	d.fired = true

	switch d.cfg.Repeat {
	case OncePerHold:
		d.latched = true
	default:
		d.start = now
	}

	return label, true
}

// Label returns the label currently being tracked.
func (d *Debouncer) Label() string {
	return d.label
}

// Held returns how long the current label has been observed contiguously.
func (d *Debouncer) Held(now time.Time) time.Duration {
	if !d.tracking || d.latched {
		return 0
	}
	return now.Sub(d.start)
}

// CooldownRemaining returns the time left before the debouncer may fire again.
func (d *Debouncer) CooldownRemaining(now time.Time) time.Duration {
	if !d.inCooldown(now) {
		return 0
	}
	return d.cfg.Cooldown - now.Sub(d.lastFire)
}

// Reset clears hold tracking and starts a fresh cooldown at now.
// Used when the surrounding application is armed or disarmed.
func (d *Debouncer) Reset(now time.Time) {
	d.label = ""
	d.tracking = false
	d.latched = false
	d.start = time.Time{}
	d.lastFire = now
	d.fired = true
}

// Trigger marks an externally-fired event at now, putting the debouncer into
// cooldown and clearing hold tracking. Swipes use this so that poses and
// swipes share one cooldown window.
func (d *Debouncer) Trigger(now time.Time) {
	d.label = ""
	d.tracking = false
	d.latched = false
	d.lastFire = now
	d.fired = true
}

func (d *Debouncer) inCooldown(now time.Time) bool {
	return d.fired && now.Sub(d.lastFire) < d.cfg.Cooldown
}
