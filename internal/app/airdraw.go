package app

import (
	"fmt"
	"image"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/ayusman/rtspwatch/internal/config"
	"github.com/ayusman/rtspwatch/internal/detector"
	"github.com/ayusman/rtspwatch/internal/eventlog"
	"github.com/ayusman/rtspwatch/internal/gesture"
	"gocv.io/x/gocv"
)

// HUD button IDs, top to bottom.
const (
	ButtonClear = "CLEAR"
	ButtonSave  = "SAVE"
	ButtonDraw  = "DRAW"
	ButtonQuit  = "QUIT"
)

// Air drawing event labels.
const (
	EventDrawOn  = "DRAW_ON"
	EventDrawOff = "DRAW_OFF"
)

// HUD button layout in frame pixels.
const (
	buttonX      = 20
	buttonY0     = 170
	buttonWidth  = 220
	buttonHeight = 60
	buttonGap    = 14
)

// canvasMaskThreshold separates drawn strokes from the empty canvas.
const canvasMaskThreshold = 10

// AirDrawConfig controls the air drawing handler.
type AirDrawConfig struct {
	ToggleHold     time.Duration
	ToggleCooldown time.Duration
	Dwell          time.Duration
	DwellCooldown  time.Duration
	Smoothing      float64
	Brush          int
	Eraser         int

	// CapturesDir receives SAVE button images.
	CapturesDir string
}

// AirDraw paints with the index fingertip. An open palm held briefly toggles
// drawing; index alone draws and index plus middle erases. Buttons on the
// left edge are pressed by resting the fingertip on them.
type AirDraw struct {
	cfg     AirDrawConfig
	hands   detector.HandDetector
	toggle  *gesture.Debouncer
	dweller *gesture.ButtonDweller
	tip     *gesture.PointSmoother
	buttons []gesture.Button

	canvas  gocv.Mat
	drawing bool
	prev    *image.Point
	pointer *image.Point
}

// NewAirDraw creates the handler.
func NewAirDraw(cfg AirDrawConfig, hands detector.HandDetector) (*AirDraw, error) {
	if hands == nil {
		return nil, fmt.Errorf("airdraw: hand detector is required")
	}
	if cfg.Brush <= 0 {
		cfg.Brush = 6
	}
	if cfg.Eraser <= 0 {
		cfg.Eraser = 40
	}

	return &AirDraw{
		cfg:   cfg,
		hands: hands,
		toggle: gesture.NewDebouncer(gesture.DebounceConfig{
			Hold:     cfg.ToggleHold,
			Cooldown: cfg.ToggleCooldown,
			Repeat:   gesture.OncePerHold,
		}),
		dweller: gesture.NewButtonDweller(cfg.Dwell, cfg.DwellCooldown),
		tip:     gesture.NewPointSmoother(cfg.Smoothing),
		buttons: hudButtons(),
		canvas:  gocv.NewMat(),
	}, nil
}

// hudButtons lays out the button column.
func hudButtons() []gesture.Button {
	ids := []string{ButtonClear, ButtonSave, ButtonDraw, ButtonQuit}
	buttons := make([]gesture.Button, len(ids))
	for i, id := range ids {
		y := buttonY0 + i*(buttonHeight+buttonGap)
		buttons[i] = gesture.Button{
			ID:   id,
			Rect: image.Rect(buttonX, y, buttonX+buttonWidth, y+buttonHeight),
		}
	}
	return buttons
}

// Mode implements Handler.
func (h *AirDraw) Mode() string { return config.ModeAirDraw }

// Drawing reports whether strokes are being recorded.
func (h *AirDraw) Drawing() bool { return h.drawing }

// Process implements Handler.
func (h *AirDraw) Process(frame *gocv.Mat, now time.Time, armed bool) (Result, error) {
	h.ensureCanvas(frame)

	hands, err := h.hands.Detect(frame)
	if err != nil {
		h.render(frame, now)
		return Result{}, fmt.Errorf("detect hands: %w", err)
	}

	var result Result
	h.pointer = nil

	var (
		tracking bool
		tip      image.Point
		fingers  gesture.Fingers
		palm     bool
	)

	switch {
	case len(hands) == 0:
		h.tip.Reset()
		h.toggle.Observe("", now)
	case armed:
		hand := &hands[0]
		fingers = gesture.FingerStates(hand)
		palm = fingers.IsPalm()

		pose := ""
		if palm {
			pose = gesture.PosePalm
		}
		if _, ok := h.toggle.Observe(pose, now); ok {
			result.Events = append(result.Events, h.setDrawing(!h.drawing, hand.Score, now))
		}

		px := hand.Pixel(detector.IndexTip, frame.Cols(), frame.Rows())
		sx, sy := h.tip.Update(float64(px.X), float64(px.Y))
		tip = image.Pt(int(sx), int(sy))
		tracking = true

		if fingers.Index && !palm {
			h.pointer = &tip
		}
		drawHand(frame, hand)
	}

	id, clicked := h.dweller.Update(h.pointer, h.buttons, now)

	if tracking {
		h.stroke(tip, fingers, palm)
	} else {
		h.prev = nil
	}

	h.overlayCanvas(frame)

	if clicked {
		e, disarm := h.press(id, frame, now)
		result.Events = append(result.Events, e)
		result.Disarm = disarm
	}

	h.render(frame, now)
	return result, nil
}

// stroke extends the current line while drawing with the index finger.
func (h *AirDraw) stroke(tip image.Point, fingers gesture.Fingers, palm bool) {
	if !h.drawing || !fingers.Index || palm || h.dweller.Hovered() != "" {
		h.prev = nil
		return
	}

	if h.prev != nil {
		if fingers.Middle {
			gocv.Line(&h.canvas, *h.prev, tip, colorBlack, h.cfg.Eraser)
		} else {
			gocv.Line(&h.canvas, *h.prev, tip, colorRed, h.cfg.Brush)
		}
	}
	h.prev = &tip
}

func (h *AirDraw) setDrawing(on bool, confidence float64, now time.Time) eventlog.Event {
	h.drawing = on
	h.prev = nil

	label := EventDrawOff
	if on {
		label = EventDrawOn
	}
	log.Printf("airdraw: %s", label)
	return eventlog.Event{
		Time:       now,
		Mode:       config.ModeAirDraw,
		EventID:    label,
		Confidence: confidence,
		Status:     eventlog.StatusFired,
	}
}

// press handles a dwell click. QUIT disarms instead of exiting so the
// service keeps running.
func (h *AirDraw) press(id string, frame *gocv.Mat, now time.Time) (eventlog.Event, bool) {
	e := eventlog.Event{
		Time:       now,
		Mode:       config.ModeAirDraw,
		EventID:    id,
		Confidence: 1,
		Status:     eventlog.StatusFired,
	}
	log.Printf("airdraw: button %s", id)

	switch id {
	case ButtonClear:
		h.clear()
	case ButtonSave:
		path, err := h.save(frame, now)
		if err != nil {
			log.Printf("airdraw: %v", err)
		} else {
			e.Snapshot = path
		}
	case ButtonDraw:
		e = h.setDrawing(!h.drawing, 1, now)
	case ButtonQuit:
		h.drawing = false
		h.prev = nil
		return e, true
	}
	return e, false
}

// save writes frame, with the canvas already blended in, as a PNG.
func (h *AirDraw) save(frame *gocv.Mat, now time.Time) (string, error) {
	if h.cfg.CapturesDir == "" {
		return "", fmt.Errorf("save: no captures directory configured")
	}
	if err := os.MkdirAll(h.cfg.CapturesDir, 0755); err != nil {
		return "", fmt.Errorf("create captures dir: %w", err)
	}

	path := filepath.Join(h.cfg.CapturesDir, "airdraw_"+now.Format("20060102_150405")+".png")
	if !gocv.IMWrite(path, *frame) {
		return "", fmt.Errorf("save: write %s failed", path)
	}
	return path, nil
}

func (h *AirDraw) clear() {
	if !h.canvas.Empty() {
		h.canvas.SetTo(gocv.NewScalar(0, 0, 0, 0))
	}
	h.prev = nil
}

// ensureCanvas allocates a black canvas matching the frame size.
func (h *AirDraw) ensureCanvas(frame *gocv.Mat) {
	if !h.canvas.Empty() && h.canvas.Rows() == frame.Rows() && h.canvas.Cols() == frame.Cols() {
		return
	}
	h.canvas.Close()
	h.canvas = gocv.NewMatWithSize(frame.Rows(), frame.Cols(), gocv.MatTypeCV8UC3)
	h.canvas.SetTo(gocv.NewScalar(0, 0, 0, 0))
	h.prev = nil
}

// overlayCanvas copies every non-black canvas pixel onto frame.
func (h *AirDraw) overlayCanvas(frame *gocv.Mat) {
	if h.canvas.Empty() {
		return
	}

	gray := gocv.NewMat()
	defer gray.Close()
	mask := gocv.NewMat()
	defer mask.Close()

	gocv.CvtColor(h.canvas, &gray, gocv.ColorBGRToGray)
	gocv.Threshold(gray, &mask, canvasMaskThreshold, 255, gocv.ThresholdBinary)
	h.canvas.CopyToWithMask(frame, mask)
}

func (h *AirDraw) render(frame *gocv.Mat, now time.Time) {
	hovered := h.dweller.Hovered()
	progress := h.dweller.Progress(now)

	for _, b := range h.buttons {
		fillRect(frame, b.Rect, colorGray)
		if b.ID == hovered && progress > 0 {
			fill := b.Rect
			fill.Max.X = fill.Min.X + int(float64(b.Rect.Dx())*progress)
			fillRect(frame, fill, colorGreen)
		}
		gocv.Rectangle(frame, b.Rect, colorWhite, 2)

		label := b.ID
		if b.ID == ButtonDraw && h.drawing {
			label = "DRAW: ON"
		}
		putText(frame, label, image.Pt(b.Rect.Min.X+18, b.Rect.Min.Y+40), 0.9, colorWhite, 2)
	}

	if h.pointer != nil {
		gocv.Circle(frame, *h.pointer, 8, colorGreen, -1)
	}

	state := "OFF"
	if h.drawing {
		state = "ON"
	}
	hudLines(frame, 30, fmt.Sprintf("Drawing: %s", state), "Hold palm to toggle")
}

// Reset implements Handler. The canvas is kept.
func (h *AirDraw) Reset(now time.Time) {
	h.toggle.Reset(now)
	h.dweller.Reset()
	h.tip.Reset()
	h.prev = nil
	h.pointer = nil
}

// Close implements Handler.
func (h *AirDraw) Close() error {
	return h.canvas.Close()
}
