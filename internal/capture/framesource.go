package capture

import (
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"gocv.io/x/gocv"
)

// ErrNoSource is returned by Connect when neither the primary nor the
// fallback source could be opened.
var ErrNoSource = errors.New("no video source available")

// Frame source timing defaults.
const (
	MinBackoff        = 500 * time.Millisecond
	DefaultBackoff    = MinBackoff
	DefaultStaleAfter = 2500 * time.Millisecond
)

// Config describes where frames come from and how failures are handled.
type Config struct {
	// Primary is the preferred source, usually an RTSP URL.
	Primary string

	// Fallback is tried when Primary cannot be opened, usually a camera
	// index such as "0". Empty disables the fallback.
	Fallback string

	// Backoff is the fixed wait between a failed read and the reconnect
	// attempt. Values below MinBackoff are raised to it.
	Backoff time.Duration

	// StaleAfter marks the latest frame stale when no read has succeeded
	// for this long.
	StaleAfter time.Duration
}

// Frame is an independent copy of the most recent captured image.
// The caller owns Mat and must Close it.
type Frame struct {
	Mat       gocv.Mat
	Timestamp time.Time
	Seq       uint64
	Stale     bool
}

// Close releases the frame's image.
func (f *Frame) Close() error {
	return f.Mat.Close()
}

// Status is a point-in-time view of the source's health.
type Status struct {
	Source     string    `json:"source"`
	Connected  bool      `json:"connected"`
	Stale      bool      `json:"stale"`
	LastRead   time.Time `json:"last_read"`
	Frames     uint64    `json:"frames"`
	Reconnects int       `json:"reconnects"`
}

// FrameSource owns a video device and a single-slot buffer holding the most
// recent frame. One goroutine reads continuously so consumers always see a
// fresh frame instead of draining a backlog.
type FrameSource struct {
	cfg  Config
	open Opener
	now  func() time.Time

	mu         sync.Mutex
	device     Device
	source     string
	latest     gocv.Mat
	hasFrame   bool
	lastRead   time.Time
	seq        uint64
	reconnects int
	started    bool
	stopped    bool

	stopCh   chan struct{}
	doneCh   chan struct{}
	stopOnce sync.Once
}

// NewFrameSource creates a FrameSource. A nil opener uses OpenDevice.
func NewFrameSource(cfg Config, open Opener) (*FrameSource, error) {
	if cfg.Primary == "" && cfg.Fallback == "" {
		return nil, fmt.Errorf("frame source: %w: no descriptor configured", ErrNoSource)
	}
	if cfg.Backoff < MinBackoff {
		cfg.Backoff = MinBackoff
	}
	if cfg.StaleAfter <= 0 {
		cfg.StaleAfter = DefaultStaleAfter
	}
	if open == nil {
		open = OpenDevice
	}

	return &FrameSource{
		cfg:    cfg,
		open:   open,
		now:    time.Now,
		latest: gocv.NewMat(),
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}, nil
}

// Connect opens the primary source, falling back to the secondary one.
// It returns an error wrapping ErrNoSource when both fail.
func (s *FrameSource) Connect() error {
	dev, source, err := s.openAny()
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.device != nil {
		s.device.Close()
	}
	s.device = dev
	s.source = source
	return nil
}

// Start launches the capture goroutine. Calling Start more than once, or
// after Stop, has no effect.
func (s *FrameSource) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started || s.stopped {
		return
	}
	s.started = true
	go s.runCaptureLoop()
}

// Latest returns a copy of the most recent frame. The boolean is false only
// until the first frame arrives (or after Stop). A frame older than
// StaleAfter is still returned, flagged Stale.
func (s *FrameSource) Latest() (Frame, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.hasFrame {
		return Frame{}, false
	}

	return Frame{
		Mat:       s.latest.Clone(),
		Timestamp: s.lastRead,
		Seq:       s.seq,
		Stale:     s.now().Sub(s.lastRead) > s.cfg.StaleAfter,
	}, true
}

// Status reports the current source health.
func (s *FrameSource) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := Status{
		Source:     Redact(s.source),
		Connected:  s.device != nil,
		LastRead:   s.lastRead,
		Frames:     s.seq,
		Reconnects: s.reconnects,
	}
	st.Stale = !s.hasFrame || s.now().Sub(s.lastRead) > s.cfg.StaleAfter
	return st
}

// Stop ends the capture goroutine, waits for it and releases the device
// and buffer. It is safe to call more than once.
func (s *FrameSource) Stop() {
	s.stopOnce.Do(func() {
		s.mu.Lock()
		s.stopped = true
		started := s.started
		s.mu.Unlock()

		close(s.stopCh)
		if started {
			<-s.doneCh
		}

		s.mu.Lock()
		defer s.mu.Unlock()
		if s.device != nil {
			s.device.Close()
			s.device = nil
		}
		s.latest.Close()
		s.hasFrame = false
	})
}

// runCaptureLoop reads frames until Stop. Read failures close the device,
// wait a fixed backoff and reopen; errors never reach consumers.
func (s *FrameSource) runCaptureLoop() {
	defer close(s.doneCh)

	mat := gocv.NewMat()
	defer mat.Close()

	for {
		select {
		case <-s.stopCh:
			return
		default:
		}

		s.mu.Lock()
		dev := s.device
		s.mu.Unlock()

		if dev != nil && dev.Read(&mat) && !mat.Empty() {
			s.store(&mat)
			continue
		}

		if dev != nil {
			log.Printf("capture: read failed on %s, reconnecting in %v", s.Status().Source, s.cfg.Backoff)
			s.closeDevice()
		}

		if !s.sleep(s.cfg.Backoff) {
			return
		}
		s.reconnect()
	}
}

// store copies mat into the single-slot buffer.
func (s *FrameSource) store(mat *gocv.Mat) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	mat.CopyTo(&s.latest)
	s.lastRead = s.now()
	s.seq++
	s.hasFrame = true
}

func (s *FrameSource) closeDevice() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.device != nil {
		s.device.Close()
		s.device = nil
	}
}

func (s *FrameSource) reconnect() {
	dev, source, err := s.openAny()
	if err != nil {
		log.Printf("capture: reconnect failed: %v", err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		dev.Close()
		return
	}
	s.device = dev
	s.source = source
	s.reconnects++
	log.Printf("capture: reconnected to %s", Redact(source))
}

func (s *FrameSource) openAny() (Device, string, error) {
	var primaryErr, fallbackErr error

	if s.cfg.Primary != "" {
		dev, err := s.open(s.cfg.Primary)
		if err == nil {
			return dev, s.cfg.Primary, nil
		}
		primaryErr = err
		log.Printf("capture: primary source unavailable: %v", err)
	}

	if s.cfg.Fallback != "" {
		dev, err := s.open(s.cfg.Fallback)
		if err == nil {
			log.Printf("capture: using fallback source %s", s.cfg.Fallback)
			return dev, s.cfg.Fallback, nil
		}
		fallbackErr = err
	}

	return nil, "", fmt.Errorf("%w (primary: %v, fallback: %v)", ErrNoSource, primaryErr, fallbackErr)
}

// sleep waits d or until Stop, reporting false if stopped.
func (s *FrameSource) sleep(d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-s.stopCh:
		return false
	case <-t.C:
		return true
	}
}
