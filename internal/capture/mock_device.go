package capture

import (
	"fmt"
	"sync"

	"gocv.io/x/gocv"
)

// MockDevice plays back pre-recorded frames for testing. After the frames
// run out, Read fails unless the device loops.
type MockDevice struct {
	frames []*gocv.Mat
	index  int
	loop   bool
	closed bool
	reads  int
	mu     sync.Mutex
}

// NewMockDevice creates a device that returns frames in order.
func NewMockDevice(frames []*gocv.Mat, loop bool) *MockDevice {
	return &MockDevice{
		frames: frames,
		loop:   loop,
	}
}

// Read copies the next frame into m.
func (d *MockDevice) Read(m *gocv.Mat) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.reads++
	if d.closed || len(d.frames) == 0 {
		return false
	}

	if d.index >= len(d.frames) {
		if !d.loop {
			return false
		}
		d.index = 0
	}

	d.frames[d.index].CopyTo(m)
	d.index++
	return true
}

// Close marks the device closed.
func (d *MockDevice) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	return nil
}

// Closed reports whether Close has been called.
func (d *MockDevice) Closed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}

// Reads returns the number of Read calls.
func (d *MockDevice) Reads() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.reads
}

// MockOpener hands out devices per descriptor and records every attempt.
// Descriptors without a queued device fail to open.
type MockOpener struct {
	mu       sync.Mutex
	devices  map[string][]Device
	failures map[string]int
	attempts []string
}

// NewMockOpener creates an opener with no devices.
func NewMockOpener() *MockOpener {
	return &MockOpener{
		devices:  make(map[string][]Device),
		failures: make(map[string]int),
	}
}

// FailNext makes the next n opens of descriptor fail even when devices
// are queued for it.
func (o *MockOpener) FailNext(descriptor string, n int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.failures[descriptor] += n
}

// Add queues dev to be returned by the next open of descriptor.
func (o *MockOpener) Add(descriptor string, dev Device) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.devices[descriptor] = append(o.devices[descriptor], dev)
}

// Open implements Opener.
func (o *MockOpener) Open(descriptor string) (Device, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.attempts = append(o.attempts, descriptor)
	if o.failures[descriptor] > 0 {
		o.failures[descriptor]--
		return nil, fmt.Errorf("cannot open %s: unreachable", descriptor)
	}
	queue := o.devices[descriptor]
	if len(queue) == 0 {
		return nil, fmt.Errorf("cannot open %s", descriptor)
	}
	o.devices[descriptor] = queue[1:]
	return queue[0], nil
}

// Attempts returns the descriptors passed to Open, in order.
func (o *MockOpener) Attempts() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]string(nil), o.attempts...)
}
