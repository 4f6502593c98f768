package gesture

import (
	"image"
	"time"
)

// Button is a rectangular HUD target in frame pixel coordinates.
// Bounds are inclusive on all edges.
type Button struct {
	ID   string
	Rect image.Rectangle
}

// Contains reports whether p lies inside the button, edges included.
func (b Button) Contains(p image.Point) bool {
	return p.X >= b.Rect.Min.X && p.X <= b.Rect.Max.X &&
		p.Y >= b.Rect.Min.Y && p.Y <= b.Rect.Max.Y
}

// ButtonDweller turns a pointer resting on a button into a click.
type ButtonDweller struct {
	dwell    time.Duration
	cooldown time.Duration

	hovered   string
	hoverFrom time.Time
	lastClick time.Time
	clicked   bool
}

// NewButtonDweller creates a dweller with the given dwell and cooldown.
func NewButtonDweller(dwell, cooldown time.Duration) *ButtonDweller {
	return &ButtonDweller{dwell: dwell, cooldown: cooldown}
}

// Update feeds the pointer position for this frame. A nil pointer means no
// pointer is present and clears hover tracking. Buttons are searched in
// order; the first one containing the pointer wins.
func (d *ButtonDweller) Update(pointer *image.Point, buttons []Button, now time.Time) (string, bool) {
	if pointer == nil {
		d.clearHover()
		return "", false
	}

	// Hover is not tracked during cooldown, so a fresh dwell is needed after it.
	target := ""
	if !d.inCooldown(now) {
		for _, b := range buttons {
			if b.Contains(*pointer) {
				target = b.ID
				break
			}
		}
	}

	if target != d.hovered {
		d.hovered = target
		d.hoverFrom = now
	}

	if d.hovered == "" {
		return "", false
	}

	if now.Sub(d.hoverFrom) < d.dwell {
		return "", false
	}

	id := d.hovered
	d.lastClick = now
	d.clicked = true
	d.clearHover()
	return id, true
}

// Hovered returns the button currently under the pointer, if any.
func (d *ButtonDweller) Hovered() string {
	return d.hovered
}

// Progress returns the dwell fill for the hovered button in [0,1].
func (d *ButtonDweller) Progress(now time.Time) float64 {
	if d.hovered == "" || d.dwell <= 0 {
		return 0
	}
	p := float64(now.Sub(d.hoverFrom)) / float64(d.dwell)
	if p > 1 {
		return 1
	}
	if p < 0 {
		return 0
	}
	return p
}

// Reset clears hover tracking. The click cooldown is kept.
func (d *ButtonDweller) Reset() {
	d.clearHover()
}

func (d *ButtonDweller) clearHover() {
	d.hovered = ""
	d.hoverFrom = time.Time{}
}

func (d *ButtonDweller) inCooldown(now time.Time) bool {
	return d.clicked && now.Sub(d.lastClick) < d.cooldown
}
