package app

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ayusman/rtspwatch/internal/capture"
	"github.com/ayusman/rtspwatch/internal/eventlog"
	"github.com/google/go-cmp/cmp"
	"gocv.io/x/gocv"
)

var base = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

func at(ms int) time.Time {
	return base.Add(time.Duration(ms) * time.Millisecond)
}

func skipShort(t *testing.T) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping test that requires GoCV Mat creation")
	}
}

func newFrame(t *testing.T) gocv.Mat {
	t.Helper()
	m := gocv.NewMatWithSize(480, 640, gocv.MatTypeCV8UC3)
	t.Cleanup(func() { m.Close() })
	return m
}

type invocation struct {
	Plugin string
	Action string
	Label  string
	Params string
}

type fakeActuator struct {
	mu          sync.Mutex
	invokes     []invocation
	volumes     []float64
	brightness  []float64
	cursor      [][2]float64
	buttons     []bool
	volume      float64
	volumeErr   error
	bright      float64
	brightErr   error
	volumeReads int

	// readGate, when set, holds Volume until it is closed.
	readGate chan struct{}
}

func (f *fakeActuator) Invoke(pluginName, action, label string, params json.RawMessage) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.invokes = append(f.invokes, invocation{pluginName, action, label, string(params)})
}

func (f *fakeActuator) SetVolume(level float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.volumes = append(f.volumes, level)
}

func (f *fakeActuator) Volume() (float64, error) {
	if f.readGate != nil {
		<-f.readGate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.volumeReads++
	return f.volume, f.volumeErr
}

func (f *fakeActuator) SetBrightness(level float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.brightness = append(f.brightness, level)
}

func (f *fakeActuator) Brightness() (float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.bright, f.brightErr
}

func (f *fakeActuator) MoveCursor(x, y float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cursor = append(f.cursor, [2]float64{x, y})
}

func (f *fakeActuator) MouseButton(down bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.buttons = append(f.buttons, down)
}

type recordingLogger struct {
	mu     sync.Mutex
	events []eventlog.Event
}

func (l *recordingLogger) LogEvent(e eventlog.Event) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, e)
	return nil
}

func (l *recordingLogger) Publish(e eventlog.Event) {
	l.LogEvent(e)
}

func (l *recordingLogger) Events() []eventlog.Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]eventlog.Event(nil), l.events...)
}

type memSettings map[string]bool

func (m memSettings) GetBool(key string, def bool) bool {
	if v, ok := m[key]; ok {
		return v
	}
	return def
}

func (m memSettings) SetBool(key string, value bool) error {
	m[key] = value
	return nil
}

// stubHandler returns a fixed result and counts calls.
type stubHandler struct {
	mu     sync.Mutex
	result Result
	err    error
	calls  int
	resets int
	armed  []bool
	closed bool
}

func (h *stubHandler) Mode() string { return "stub" }

func (h *stubHandler) Process(frame *gocv.Mat, now time.Time, armed bool) (Result, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.calls++
	h.armed = append(h.armed, armed)
	return h.result, h.err
}

func (h *stubHandler) Reset(time.Time) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.resets++
}

func (h *stubHandler) Close() error {
	h.closed = true
	return nil
}

func (h *stubHandler) counts() (calls, resets int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.calls, h.resets
}

// staticSource always returns a copy of the same frame.
type staticSource struct {
	mat   gocv.Mat
	seq   uint64
	stale bool
}

func (s *staticSource) Latest() (capture.Frame, bool) {
	return capture.Frame{Mat: s.mat.Clone(), Timestamp: base, Seq: s.seq, Stale: s.stale}, true
}

func newTestApp(t *testing.T, h Handler, cfg Config) (*App, *recordingLogger) {
	t.Helper()
	logger := &recordingLogger{}
	cfg.Handler = h
	cfg.Logger = logger
	if cfg.Source == nil {
		cfg.Source = &staticSource{mat: newFrame(t), seq: 1}
	}
	a, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	a.now = func() time.Time { return base }
	t.Cleanup(a.Stop)
	return a, logger
}

func TestNew_RequiresHandler(t *testing.T) {
	if _, err := New(Config{}); !errors.Is(err, ErrNoHandler) {
		t.Errorf("New() error = %v, want ErrNoHandler", err)
	}
}

func TestApp_ArmedState(t *testing.T) {
	skipShort(t)

	settings := memSettings{"armed": true}
	a, _ := newTestApp(t, &stubHandler{}, Config{Settings: settings, ArmedKey: "armed"})

	if !a.Armed() {
		t.Fatal("armed state should be loaded from settings")
	}

	var seen []bool
	a.OnArmedChange(func(armed bool) { seen = append(seen, armed) })

	if err := a.SetArmed(false); err != nil {
		t.Fatalf("SetArmed() error = %v", err)
	}
	if a.Armed() {
		t.Error("Armed() = true after disarm")
	}
	if settings["armed"] {
		t.Error("disarm was not persisted")
	}
	if diff := cmp.Diff([]bool{false}, seen); diff != "" {
		t.Errorf("listener calls mismatch (-want +got):\n%s", diff)
	}

	// Setting the same value again does not notify.
	a.SetArmed(false)
	if len(seen) != 1 {
		t.Errorf("listener called %d times, want 1", len(seen))
	}
}

func TestApp_DefaultArmed(t *testing.T) {
	skipShort(t)

	a, _ := newTestApp(t, &stubHandler{}, Config{Settings: memSettings{}, ArmedKey: "armed", DefaultArmed: true})
	if !a.Armed() {
		t.Error("missing setting should use DefaultArmed")
	}
}

func TestApp_ProcessFrame(t *testing.T) {
	skipShort(t)

	event := eventlog.Event{Time: base, EventID: "ID:1", Confidence: 0.9, Status: eventlog.StatusInsideZone}

	t.Run("armed records events", func(t *testing.T) {
		h := &stubHandler{result: Result{Events: []eventlog.Event{event}}}
		pub := &recordingLogger{}
		a, logger := newTestApp(t, h, Config{DefaultArmed: true, Publisher: pub})

		src := newFrame(t)
		frame := capture.Frame{Mat: src.Clone(), Seq: 1}
		a.processFrame(&frame, base)

		if got := len(pub.Events()); got != 1 {
			t.Errorf("published %d events, want 1", got)
		}

		want := event
		want.Mode = "stub"
		if diff := cmp.Diff([]eventlog.Event{want}, logger.Events()); diff != "" {
			t.Errorf("logged events mismatch (-want +got):\n%s", diff)
		}

		st := a.Status()
		if st.Processed != 1 || st.Events != 1 {
			t.Errorf("Status() = %+v, want 1 processed and 1 event", st)
		}
		if st.LastEvent == nil || st.LastEvent.EventID != "ID:1" {
			t.Errorf("LastEvent = %+v", st.LastEvent)
		}

		data, ok, err := a.DisplayJPEG()
		if err != nil || !ok || len(data) == 0 {
			t.Errorf("DisplayJPEG() = %d bytes, %v, %v", len(data), ok, err)
		}
	})

	t.Run("disarmed drops events", func(t *testing.T) {
		h := &stubHandler{result: Result{Events: []eventlog.Event{event}}}
		a, logger := newTestApp(t, h, Config{})

		src := newFrame(t)
		frame := capture.Frame{Mat: src.Clone(), Seq: 1}
		a.processFrame(&frame, base)

		if got := logger.Events(); len(got) != 0 {
			t.Errorf("logged %d events while disarmed", len(got))
		}
		if diff := cmp.Diff([]bool{false}, h.armed); diff != "" {
			t.Errorf("handler armed flags mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("disarm result", func(t *testing.T) {
		h := &stubHandler{result: Result{Disarm: true}}
		a, _ := newTestApp(t, h, Config{DefaultArmed: true})

		src := newFrame(t)
		frame := capture.Frame{Mat: src.Clone(), Seq: 1}
		a.processFrame(&frame, base)

		if a.Armed() {
			t.Error("handler disarm request was ignored")
		}
	})

	t.Run("handler error keeps display", func(t *testing.T) {
		h := &stubHandler{err: errors.New("detector down")}
		a, _ := newTestApp(t, h, Config{DefaultArmed: true})

		src := newFrame(t)
		frame := capture.Frame{Mat: src.Clone(), Seq: 1}
		a.processFrame(&frame, base)

		if _, ok, _ := a.DisplayJPEG(); !ok {
			t.Error("frame should still be displayed after a handler error")
		}
	})
}

func TestApp_ResetOnArmChange(t *testing.T) {
	skipShort(t)

	h := &stubHandler{}
	a, _ := newTestApp(t, h, Config{})

	a.SetArmed(true)

	src1 := newFrame(t)
	frame := capture.Frame{Mat: src1.Clone(), Seq: 1}
	a.processFrame(&frame, base)
	src2 := newFrame(t)
	frame = capture.Frame{Mat: src2.Clone(), Seq: 2}
	a.processFrame(&frame, base)

	if _, resets := h.counts(); resets != 1 {
		t.Errorf("handler reset %d times, want 1", resets)
	}
}

func TestApp_PipelineSkipsRepeatedFrames(t *testing.T) {
	skipShort(t)

	h := &stubHandler{}
	a, _ := newTestApp(t, h, Config{IdleFPS: 50, ActiveFPS: 50})

	a.Start()
	deadline := time.Now().Add(2 * time.Second)
	for a.Status().Processed == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	time.Sleep(200 * time.Millisecond)
	a.Stop()

	if calls, _ := h.counts(); calls != 1 {
		t.Errorf("handler called %d times for one frame, want 1", calls)
	}
	if !h.closed {
		t.Error("Stop() should close the handler")
	}
	if a.Status().Running {
		t.Error("Status().Running = true after Stop")
	}
}

func TestApp_StaleStreamResetsHandler(t *testing.T) {
	skipShort(t)

	h := &stubHandler{}
	src := &staticSource{mat: newFrame(t), seq: 1, stale: true}
	a, _ := newTestApp(t, h, Config{Source: src, IdleFPS: 50, ActiveFPS: 50})

	a.Start()
	deadline := time.Now().Add(2 * time.Second)
	for !a.Status().Stale && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	time.Sleep(100 * time.Millisecond)
	a.Stop()

	if !a.Status().Stale {
		t.Fatal("Status().Stale = false for a stale source")
	}
	// The reset is requested when the stream goes stale and applied on the
	// next processed frame; the first frame is already stale.
	if _, resets := h.counts(); resets != 1 {
		t.Errorf("handler reset %d times, want 1", resets)
	}
}
