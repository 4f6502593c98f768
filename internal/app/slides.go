package app

import (
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/ayusman/rtspwatch/internal/config"
	"github.com/ayusman/rtspwatch/internal/detector"
	"github.com/ayusman/rtspwatch/internal/eventlog"
	"github.com/ayusman/rtspwatch/internal/gesture"
	"github.com/ayusman/rtspwatch/internal/plugin"
	"github.com/ayusman/rtspwatch/internal/store"
	"gocv.io/x/gocv"
)

// BindingLookup resolves an event label to the plugin action bound to it.
// A nil binding means the label is unbound.
type BindingLookup interface {
	GetByLabel(label string) (*store.Binding, error)
}

// DefaultSlideBindings drive a presentation: swipes change slides, an open
// palm starts the pen and a fist blanks the screen.
func DefaultSlideBindings() []*store.Binding {
	return []*store.Binding{
		{
			Label:      gesture.PosePalm,
			PluginName: plugin.Keyboard,
			ActionName: plugin.ActionSequence,
			Params:     json.RawMessage(`{"hold":["alt"],"keys":["w","r"],"delay_ms":50}`),
			Enabled:    true,
		},
		{
			Label:      gesture.PoseFist,
			PluginName: plugin.Keyboard,
			ActionName: plugin.ActionKeystroke,
			Params:     json.RawMessage(`{"key":"b"}`),
			Enabled:    true,
		},
		{
			Label:      gesture.SwipeRight.String(),
			PluginName: plugin.Keyboard,
			ActionName: plugin.ActionKeystroke,
			Params:     json.RawMessage(`{"key":"right"}`),
			Enabled:    true,
		},
		{
			Label:      gesture.SwipeLeft.String(),
			PluginName: plugin.Keyboard,
			ActionName: plugin.ActionKeystroke,
			Params:     json.RawMessage(`{"key":"left"}`),
			Enabled:    true,
		},
	}
}

// SlidesConfig controls the slides handler.
type SlidesConfig struct {
	Hold        time.Duration
	Cooldown    time.Duration
	SwipeWindow time.Duration
	SwipeMinDx  float64
	SwipeMaxDy  float64
}

// Slides turns wrist swipes and held poses into bound plugin actions.
// Swipes fire as soon as they are seen; poses must be held. Both share one
// cooldown.
type Slides struct {
	cfg      SlidesConfig
	hands    detector.HandDetector
	actuator Actuator
	bindings BindingLookup
	debounce *gesture.Debouncer
	swipes   *gesture.SwipeDetector

	// lastSeen is when the wrist was last pushed onto the trace.
	lastSeen time.Time

	// HUD state from the last frame.
	label   string
	hand    string
	fingers int
}

// NewSlides creates the handler.
func NewSlides(cfg SlidesConfig, hands detector.HandDetector, actuator Actuator, bindings BindingLookup) (*Slides, error) {
	if hands == nil {
		return nil, fmt.Errorf("slides: hand detector is required")
	}
	if bindings == nil {
		return nil, fmt.Errorf("slides: binding lookup is required")
	}
	if cfg.SwipeWindow <= 0 {
		cfg.SwipeWindow = gesture.DefaultSwipeWindow
	}
	if cfg.SwipeMinDx <= 0 {
		cfg.SwipeMinDx = gesture.DefaultSwipeMinDxNorm
	}
	if cfg.SwipeMaxDy <= 0 {
		cfg.SwipeMaxDy = gesture.DefaultSwipeMaxDyNorm
	}

	return &Slides{
		cfg:      cfg,
		hands:    hands,
		actuator: actuator,
		bindings: bindings,
		debounce: gesture.NewDebouncer(gesture.DebounceConfig{
			Hold:     cfg.Hold,
			Cooldown: cfg.Cooldown,
			Repeat:   gesture.RepeatAfterHold,
		}),
		swipes: gesture.NewSwipeDetector(gesture.DefaultSwipeCapacity),
	}, nil
}

// Mode implements Handler.
func (h *Slides) Mode() string { return config.ModeSlides }

// Process implements Handler.
func (h *Slides) Process(frame *gocv.Mat, now time.Time, armed bool) (Result, error) {
	hands, err := h.hands.Detect(frame)
	if err != nil {
		h.drawHUD(frame, now)
		return Result{}, fmt.Errorf("detect hands: %w", err)
	}

	// Short detection dropouts keep the trace so a wave survives a missed
	// frame; a longer absence must not bridge into a new motion.
	if now.Sub(h.lastSeen) > h.cfg.SwipeWindow {
		h.swipes.Clear()
	}

	if len(hands) == 0 {
		h.label, h.hand, h.fingers = "", "", 0
		if armed {
			h.debounce.Observe("", now)
		}
		h.drawHUD(frame, now)
		return Result{}, nil
	}

	hand := &hands[0]
	wrist := hand.Points[detector.Wrist]
	h.swipes.Push(now, wrist.X, wrist.Y)
	h.lastSeen = now

	fingers := gesture.FingerStates(hand)
	h.hand = hand.Handedness
	h.fingers = fingers.Count()

	swipe := h.swipes.Classify(h.cfg.SwipeWindow, h.cfg.SwipeMinDx, h.cfg.SwipeMaxDy)
	pose := gesture.ClassifyPose(fingers)
	h.label = pose
	if swipe != gesture.SwipeNone {
		h.label = swipe.String()
	}

	drawHand(frame, hand)

	if !armed {
		h.drawHUD(frame, now)
		return Result{}, nil
	}

	var events []eventlog.Event
	if swipe != gesture.SwipeNone {
		if h.debounce.CooldownRemaining(now) == 0 {
			h.debounce.Trigger(now)
			h.swipes.Clear()
			events = append(events, h.fire(swipe.String(), hand.Score, now))
		}
	} else if label, ok := h.debounce.Observe(pose, now); ok {
		events = append(events, h.fire(label, hand.Score, now))
	}

	h.drawHUD(frame, now)
	return Result{Events: events}, nil
}

// Reset implements Handler.
func (h *Slides) Reset(now time.Time) {
	h.debounce.Reset(now)
	h.swipes.Clear()
}

// Close implements Handler.
func (h *Slides) Close() error { return nil }

// fire runs the action bound to label.
func (h *Slides) fire(label string, confidence float64, now time.Time) eventlog.Event {
	e := eventlog.Event{
		Time:       now,
		Mode:       config.ModeSlides,
		EventID:    label,
		Confidence: confidence,
		Status:     eventlog.StatusFired,
	}

	b, err := h.bindings.GetByLabel(label)
	if err != nil {
		log.Printf("slides: lookup binding for %s: %v", label, err)
		e.Status = eventlog.StatusUnbound
		return e
	}
	if b == nil || !b.Enabled {
		log.Printf("slides: %s is not bound", label)
		e.Status = eventlog.StatusUnbound
		return e
	}

	log.Printf("slides: %s -> %s/%s", label, b.PluginName, b.ActionName)
	if h.actuator != nil {
		h.actuator.Invoke(b.PluginName, b.ActionName, label, b.Params)
	}
	return e
}

func (h *Slides) drawHUD(frame *gocv.Mat, now time.Time) {
	label := h.label
	if label == "" {
		label = "NONE"
	}
	hand := "no hand"
	if h.hand != "" {
		hand = fmt.Sprintf("%s hand, %d up", h.hand, h.fingers)
	}

	hudLines(frame, 30,
		fmt.Sprintf("Gesture: %s", label),
		fmt.Sprintf("Hold: %.1fs / %.1fs", h.debounce.Held(now).Seconds(), h.cfg.Hold.Seconds()),
		fmt.Sprintf("Cooldown: %.1fs", h.debounce.CooldownRemaining(now).Seconds()),
		hand,
	)
}
