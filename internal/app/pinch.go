package app

import (
	"fmt"
	"image"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ayusman/rtspwatch/internal/config"
	"github.com/ayusman/rtspwatch/internal/detector"
	"github.com/ayusman/rtspwatch/internal/eventlog"
	"github.com/ayusman/rtspwatch/internal/gesture"
	"gocv.io/x/gocv"
)

// Slider lane IDs.
const (
	LaneVolume     = "VOLUME"
	LaneBrightness = "BRIGHTNESS"
)

// EventClick is logged when a mouse-mode pinch is released.
const EventClick = "CLICK"

// Slider geometry in frame pixels. A lane accepts a pinch within padX of
// its track.
const (
	sliderY1     = 120
	sliderY2     = 520
	sliderWidth  = 16
	sliderPadX   = 40
	volumeX      = 40
	brightnessX  = 140
	resyncPeriod = time.Second
)

// PinchConfig controls the pinch handler.
type PinchConfig struct {
	On        float64
	Off       float64
	Smoothing float64
	Step      float64

	// Mouse makes the index fingertip drive the pointer; a pinch outside
	// the lanes holds the primary button.
	Mouse bool
}

// lane is one vertical slider bound to an actuator level.
type lane struct {
	id       string
	x        int
	smoother *gesture.Smoother
	set      func(float64)
	get      func() (float64, error)

	// touched is when the operator last moved this lane. Reads started
	// before it are stale.
	touched time.Time
}

// levelRead is a level read back from the actuator, stamped with the
// frame time that requested it.
type levelRead struct {
	value float64
	at    time.Time
}

// track is the drawn slider bar.
func (l *lane) track() image.Rectangle {
	return image.Rect(l.x, sliderY1, l.x+sliderWidth, sliderY2)
}

// hit reports whether p can grab this lane.
func (l *lane) hit(p image.Point) bool {
	return p.X >= l.x-sliderPadX && p.X <= l.x+sliderWidth+sliderPadX &&
		p.Y >= sliderY1 && p.Y <= sliderY2
}

// levelAt maps a y coordinate to 0..1, top of the track being 1.
func levelAt(y int) float64 {
	if y < sliderY1 {
		y = sliderY1
	}
	if y > sliderY2 {
		y = sliderY2
	}
	return float64(sliderY2-y) / float64(sliderY2-sliderY1)
}

// Pinch adjusts volume and brightness by pinching on a slider lane and,
// optionally, drives the mouse pointer.
type Pinch struct {
	cfg      PinchConfig
	hands    detector.HandDetector
	actuator Actuator
	pinch    *gesture.Pinch
	lanes    []*lane

	grabbed   bool
	active    *lane
	mouseDown bool
	lastSync  time.Time
	distance  float64

	// Actuator reads run on their own goroutine; results wait in synced
	// until the next frame applies them.
	syncing atomic.Bool
	reads   sync.WaitGroup
	mu      sync.Mutex
	synced  map[string]levelRead

	thumb *image.Point
	index *image.Point
}

// NewPinch creates the handler. It returns gesture.ErrInvalidThresholds
// when On is not below Off.
func NewPinch(cfg PinchConfig, hands detector.HandDetector, actuator Actuator) (*Pinch, error) {
	if hands == nil {
		return nil, fmt.Errorf("pinch: hand detector is required")
	}
	if actuator == nil {
		return nil, fmt.Errorf("pinch: actuator is required")
	}
	tracker, err := gesture.NewPinch(cfg.On, cfg.Off)
	if err != nil {
		return nil, err
	}

	h := &Pinch{
		cfg:      cfg,
		hands:    hands,
		actuator: actuator,
		pinch:    tracker,
		synced:   make(map[string]levelRead),
	}
	h.lanes = []*lane{
		{
			id:       LaneVolume,
			x:        volumeX,
			smoother: gesture.NewSmoother(cfg.Smoothing),
			set:      actuator.SetVolume,
			get:      actuator.Volume,
		},
		{
			id:       LaneBrightness,
			x:        brightnessX,
			smoother: gesture.NewSmoother(cfg.Smoothing),
			set:      actuator.SetBrightness,
			get:      actuator.Brightness,
		},
	}
	h.lanes[1].smoother.Set(1.0)
	return h, nil
}

// Mode implements Handler.
func (h *Pinch) Mode() string { return config.ModePinch }

// Level returns the smoothed level of the lane with the given ID.
func (h *Pinch) Level(id string) float64 {
	for _, l := range h.lanes {
		if l.id == id {
			return l.smoother.Value()
		}
	}
	return 0
}

// Process implements Handler.
func (h *Pinch) Process(frame *gocv.Mat, now time.Time, armed bool) (Result, error) {
	hands, err := h.hands.Detect(frame)
	if err != nil {
		h.render(frame)
		return Result{}, fmt.Errorf("detect hands: %w", err)
	}

	var result Result
	h.thumb, h.index = nil, nil
	h.distance = 0

	if len(hands) == 0 || !armed {
		if e, ok := h.release(now, 0); ok && armed {
			result.Events = append(result.Events, e)
		}
		h.pinch.Reset()
		h.resync(now)
		h.render(frame)
		return result, nil
	}

	hand := &hands[0]
	w, ht := frame.Cols(), frame.Rows()
	thumb := hand.Pixel(detector.ThumbTip, w, ht)
	index := hand.Pixel(detector.IndexTip, w, ht)
	h.thumb, h.index = &thumb, &index
	h.distance = hand.Distance2D(detector.ThumbTip, detector.IndexTip)

	grabbed := h.pinch.Update(h.distance)
	h.resync(now)

	switch {
	case grabbed && !h.grabbed:
		h.grab(index, now)
	case !grabbed && h.grabbed:
		if e, ok := h.release(now, hand.Score); ok {
			result.Events = append(result.Events, e)
		}
	}
	h.grabbed = grabbed

	if h.cfg.Mouse {
		tip := hand.Points[detector.IndexTip]
		h.actuator.MoveCursor(tip.X, tip.Y)
	}

	if h.active != nil {
		target := gesture.Quantize(levelAt(index.Y), h.cfg.Step)
		h.active.set(h.active.smoother.Update(target))
	}

	drawHand(frame, hand)
	h.render(frame)
	return result, nil
}

// grab starts a pinch at p: on a lane it begins adjusting that lane,
// elsewhere in mouse mode it presses the button.
func (h *Pinch) grab(p image.Point, now time.Time) {
	for _, l := range h.lanes {
		if l.hit(p) {
			h.active = l
			l.touched = now
			log.Printf("pinch: grabbed %s", l.id)
			return
		}
	}
	if h.cfg.Mouse {
		h.actuator.MouseButton(true)
		h.mouseDown = true
	}
}

// release ends the current pinch and reports the event it completes.
func (h *Pinch) release(now time.Time, confidence float64) (eventlog.Event, bool) {
	h.grabbed = false

	if h.active != nil {
		l := h.active
		h.active = nil
		l.touched = now
		return eventlog.Event{
			Time:       now,
			Mode:       config.ModePinch,
			EventID:    l.id,
			Confidence: confidence,
			Status:     fmt.Sprintf("Set %d%%", int(l.smoother.Value()*100+0.5)),
		}, true
	}

	if h.mouseDown {
		h.actuator.MouseButton(false)
		h.mouseDown = false
		return eventlog.Event{
			Time:       now,
			Mode:       config.ModePinch,
			EventID:    EventClick,
			Confidence: confidence,
			Status:     eventlog.StatusFired,
		}, true
	}
	return eventlog.Event{}, false
}

// resync reads back levels for lanes not being adjusted, so changes made
// outside the app show up on the sliders. It never waits on the actuator:
// a read started here is applied on a later frame. Failed reads keep the
// cached value.
func (h *Pinch) resync(now time.Time) {
	h.applySynced()

	if !h.lastSync.IsZero() && now.Sub(h.lastSync) < resyncPeriod {
		return
	}
	if !h.syncing.CompareAndSwap(false, true) {
		return
	}
	h.lastSync = now

	h.reads.Add(1)
	go h.readLevels(now)
}

func (h *Pinch) readLevels(at time.Time) {
	defer h.reads.Done()
	defer h.syncing.Store(false)

	for _, l := range h.lanes {
		v, err := l.get()
		if err != nil {
			continue
		}
		h.mu.Lock()
		h.synced[l.id] = levelRead{value: v, at: at}
		h.mu.Unlock()
	}
}

// applySynced moves finished reads into the smoothers, skipping the lane
// in use and reads that predate the operator's last adjustment.
func (h *Pinch) applySynced() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, l := range h.lanes {
		r, ok := h.synced[l.id]
		if !ok {
			continue
		}
		delete(h.synced, l.id)
		if l == h.active || !r.at.After(l.touched) {
			continue
		}
		l.smoother.Set(r.value)
	}
}

func (h *Pinch) render(frame *gocv.Mat) {
	for _, l := range h.lanes {
		track := l.track()
		fillRect(frame, track, colorGray)

		v := l.smoother.Value()
		fill := track
		fill.Min.Y = sliderY2 - int(v*float64(sliderY2-sliderY1))
		c := colorWhite
		if l == h.active {
			c = colorGreen
		}
		fillRect(frame, fill, c)
		gocv.Rectangle(frame, track, colorWhite, 1)

		label := fmt.Sprintf("%s %d%%", l.id[:3], int(v*100+0.5))
		putText(frame, label, image.Pt(l.x-12, sliderY1-15), 0.5, c, 1)
	}

	if h.thumb != nil && h.index != nil {
		c := colorWhite
		if h.grabbed {
			c = colorGreen
		}
		gocv.Line(frame, *h.thumb, *h.index, c, 2)
		gocv.Circle(frame, *h.index, 8, c, -1)
	}

	state := "open"
	if h.grabbed {
		state = "PINCH"
	}
	mouse := ""
	if h.cfg.Mouse {
		mouse = " | mouse"
	}
	hudLines(frame, 30, fmt.Sprintf("Pinch: %s (%.3f)%s", state, h.distance, mouse))
}

// Reset implements Handler.
func (h *Pinch) Reset(now time.Time) {
	h.release(now, 0)
	h.pinch.Reset()
	h.lastSync = time.Time{}
}

// Close implements Handler. A held mouse button is released.
func (h *Pinch) Close() error {
	if h.mouseDown {
		h.actuator.MouseButton(false)
		h.mouseDown = false
	}
	return nil
}
