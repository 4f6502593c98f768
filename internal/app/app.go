// Package app runs the processing loop: it polls the frame source, feeds
// the active mode handler and records the events it produces.
package app

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/ayusman/rtspwatch/internal/capture"
	"github.com/ayusman/rtspwatch/internal/eventlog"
	"gocv.io/x/gocv"
)

// Pipeline timing defaults.
const (
	// IdleFPS is the processing rate when no motion is detected.
	IdleFPS = 5
	// ActiveFPS is the processing rate while motion is present.
	ActiveFPS = 15
)

// ErrNoHandler is returned by New when no mode handler is configured.
var ErrNoHandler = errors.New("no mode handler configured")

// Actuator drives the host machine. Setters are fire-and-forget; the
// getters may block on the plugin, so handlers call them off the
// processing goroutine.
type Actuator interface {
	Invoke(pluginName, action, label string, params json.RawMessage)
	SetVolume(level float64)
	Volume() (float64, error)
	SetBrightness(level float64)
	Brightness() (float64, error)
	MoveCursor(x, y float64)
	MouseButton(down bool)
}

// Publisher receives every recorded event, for example to broadcast it to
// websocket clients.
type Publisher interface {
	Publish(e eventlog.Event)
}

// FrameProvider is the frame source seen by the pipeline.
type FrameProvider interface {
	Latest() (capture.Frame, bool)
}

// ArmedStore persists the armed flag across restarts.
type ArmedStore interface {
	GetBool(key string, def bool) bool
	SetBool(key string, value bool) error
}

// Result is what a handler produced for one frame.
type Result struct {
	Events []eventlog.Event

	// Disarm asks the app to disarm after this frame.
	Disarm bool
}

// Handler implements one operating mode. Process analyzes frame, draws the
// mode's overlay onto it in place and returns the events that fired.
// All methods are called from the processing goroutine only.
type Handler interface {
	Mode() string
	Process(frame *gocv.Mat, now time.Time, armed bool) (Result, error)

	// Reset drops gesture and tracking state, for example after the
	// operator arms or disarms or the stream stalls.
	Reset(now time.Time)
	Close() error
}

// Config holds configuration options for the application.
type Config struct {
	Source  FrameProvider
	Handler Handler
	Motion  *capture.MotionGate

	Logger    eventlog.Logger
	Publisher Publisher

	// Settings persists the armed flag under ArmedKey. Nil keeps it in
	// memory only.
	Settings     ArmedStore
	ArmedKey     string
	DefaultArmed bool

	FlipHorizontal bool
	IdleFPS        int
	ActiveFPS      int
}

// Status is a point-in-time view of the processing loop.
type Status struct {
	Mode      string          `json:"mode"`
	Running   bool            `json:"running"`
	Armed     bool            `json:"armed"`
	Active    bool            `json:"active"`
	Stale     bool            `json:"stale"`
	FPS       int             `json:"fps"`
	Processed uint64          `json:"processed"`
	Events    uint64          `json:"events"`
	LastEvent *eventlog.Event `json:"last_event,omitempty"`
}

// App is the main application that connects the frame source to a mode
// handler and its collaborators.
type App struct {
	config Config
	now    func() time.Time

	mu        sync.RWMutex
	armed     bool
	active    bool
	stale     bool
	fps       int
	processed uint64
	events    uint64
	lastEvent *eventlog.Event
	display   gocv.Mat
	hasFrame  bool
	resetReq  bool
	listeners []func(bool)

	stopCh chan struct{}
	doneCh chan struct{}
}

// New creates a new App with the given configuration.
func New(config Config) (*App, error) {
	if config.Handler == nil {
		return nil, ErrNoHandler
	}
	if config.Source == nil {
		return nil, fmt.Errorf("app: frame source is required")
	}
	if config.Logger == nil {
		config.Logger = eventlog.Discard{}
	}
	if config.IdleFPS <= 0 {
		config.IdleFPS = IdleFPS
	}
	if config.ActiveFPS <= 0 {
		config.ActiveFPS = ActiveFPS
	}
	if config.ActiveFPS < config.IdleFPS {
		config.ActiveFPS = config.IdleFPS
	}

	armed := config.DefaultArmed
	if config.Settings != nil && config.ArmedKey != "" {
		armed = config.Settings.GetBool(config.ArmedKey, config.DefaultArmed)
	}

	return &App{
		config:  config,
		now:     time.Now,
		armed:   armed,
		fps:     config.IdleFPS,
		display: gocv.NewMat(),
	}, nil
}

// Mode returns the active mode name.
func (a *App) Mode() string {
	return a.config.Handler.Mode()
}

// Armed reports whether events are acted on and logged.
func (a *App) Armed() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.armed
}

// SetArmed arms or disarms the app and persists the choice. The handler's
// gesture state is reset on the next frame.
func (a *App) SetArmed(armed bool) error {
	a.mu.Lock()
	changed := a.armed != armed
	a.armed = armed
	if changed {
		a.resetReq = true
	}
	listeners := append([]func(bool){}, a.listeners...)
	a.mu.Unlock()

	if changed {
		log.Printf("app: armed=%v", armed)
		for _, fn := range listeners {
			fn(armed)
		}
	}

	if a.config.Settings != nil && a.config.ArmedKey != "" {
		if err := a.config.Settings.SetBool(a.config.ArmedKey, armed); err != nil {
			return fmt.Errorf("persist armed state: %w", err)
		}
	}
	return nil
}

// OnArmedChange registers fn to be called after the armed state changes.
func (a *App) OnArmedChange(fn func(armed bool)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.listeners = append(a.listeners, fn)
}

// Start begins the processing loop. Calling Start while running has no
// effect.
func (a *App) Start() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.stopCh != nil {
		return
	}

	a.stopCh = make(chan struct{})
	a.doneCh = make(chan struct{})
	go a.runPipeline(a.stopCh, a.doneCh)

	log.Printf("app: %s pipeline started", a.Mode())
}

// Stop halts the processing loop and releases the handler and display
// buffer. The frame source and detectors belong to the caller.
func (a *App) Stop() {
	a.mu.Lock()
	stopCh, doneCh := a.stopCh, a.doneCh
	a.stopCh = nil
	a.mu.Unlock()

	if stopCh == nil {
		return
	}
	close(stopCh)
	<-doneCh

	if err := a.config.Handler.Close(); err != nil {
		log.Printf("app: error closing %s handler: %v", a.Mode(), err)
	}
	if a.config.Motion != nil {
		a.config.Motion.Close()
	}

	a.mu.Lock()
	a.display.Close()
	a.hasFrame = false
	a.mu.Unlock()

	log.Println("app: pipeline stopped")
}

// Status returns a snapshot of the processing loop.
func (a *App) Status() Status {
	a.mu.RLock()
	defer a.mu.RUnlock()

	st := Status{
		Mode:      a.config.Handler.Mode(),
		Running:   a.stopCh != nil,
		Armed:     a.armed,
		Active:    a.active,
		Stale:     a.stale,
		FPS:       a.fps,
		Processed: a.processed,
		Events:    a.events,
	}
	if a.lastEvent != nil {
		e := *a.lastEvent
		st.LastEvent = &e
	}
	return st
}

// DisplayJPEG returns the latest annotated frame encoded as JPEG. The
// boolean is false until the first frame has been processed.
func (a *App) DisplayJPEG() ([]byte, bool, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if !a.hasFrame {
		return nil, false, nil
	}

	buf, err := gocv.IMEncode(gocv.JPEGFileExt, a.display)
	if err != nil {
		return nil, true, fmt.Errorf("encode display frame: %w", err)
	}
	defer buf.Close()

	data := make([]byte, buf.Len())
	copy(data, buf.GetBytes())
	return data, true, nil
}

// setDisplay swaps in frame as the latest annotated image. The app takes
// ownership of frame.
func (a *App) setDisplay(frame gocv.Mat) {
	a.mu.Lock()
	defer a.mu.Unlock()
	old := a.display
	a.display = frame
	a.hasFrame = true
	old.Close()
}

// record logs and publishes one event.
func (a *App) record(e eventlog.Event) {
	if e.Mode == "" {
		e.Mode = a.Mode()
	}

	if err := a.config.Logger.LogEvent(e); err != nil {
		log.Printf("app: failed to log event %s: %v", e.EventID, err)
	}
	if a.config.Publisher != nil {
		a.config.Publisher.Publish(e)
	}

	a.mu.Lock()
	a.events++
	a.lastEvent = &e
	a.mu.Unlock()
}

func (a *App) takeResetRequest() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	req := a.resetReq
	a.resetReq = false
	return req
}
