package plugin

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
)

// Built-in plugin and action names.
const (
	SystemControl = "system-control"
	Keyboard      = "keyboard"

	ActionSetVolume     = "set-volume"
	ActionGetVolume     = "get-volume"
	ActionSetBrightness = "set-brightness"
	ActionGetBrightness = "get-brightness"
	ActionMouseMove     = "mouse-move"
	ActionMouseButton   = "mouse-button"
	ActionKeystroke     = "keystroke"
	ActionSequence      = "sequence"
)

// discreteQueueSize bounds pending one-shot requests per action.
const discreteQueueSize = 16

// LevelParams carries a 0..1 level for volume and brightness.
type LevelParams struct {
	Level float64 `json:"level"`
}

// PointerParams carries a normalized 0..1 screen position.
type PointerParams struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// ButtonParams carries the primary mouse button state.
type ButtonParams struct {
	Down bool `json:"down"`
}

type call struct {
	plugin string
	req    *Request
}

// Actuator drives host-side effects through plugins without blocking the
// caller. Each plugin action gets its own worker goroutine. Continuous
// controls (volume, brightness, pointer) keep only the newest pending
// request; one-shot actions queue in order.
type Actuator struct {
	mgr  *Manager
	exec *Executor

	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	lanes  map[string]chan *call
	closed bool
	wg     sync.WaitGroup
}

// NewActuator creates an Actuator using plugins from mgr.
func NewActuator(mgr *Manager, exec *Executor) *Actuator {
	ctx, cancel := context.WithCancel(context.Background())
	return &Actuator{
		mgr:    mgr,
		exec:   exec,
		ctx:    ctx,
		cancel: cancel,
		lanes:  make(map[string]chan *call),
	}
}

// Invoke runs a plugin action in the background, typically for an event
// binding.
func (a *Actuator) Invoke(pluginName, action, label string, params json.RawMessage) {
	a.submit(&call{
		plugin: pluginName,
		req:    &Request{Action: action, Label: label, Params: params},
	}, false)
}

// SetVolume sets the output volume to level in [0,1].
func (a *Actuator) SetVolume(level float64) {
	a.submit(newCall(SystemControl, ActionSetVolume, LevelParams{Level: clamp01(level)}), true)
}

// Volume reads the current output volume in [0,1].
func (a *Actuator) Volume() (float64, error) {
	return a.queryLevel(ActionGetVolume)
}

// SetBrightness sets the display brightness to level in [0,1].
func (a *Actuator) SetBrightness(level float64) {
	a.submit(newCall(SystemControl, ActionSetBrightness, LevelParams{Level: clamp01(level)}), true)
}

// Brightness reads the current display brightness in [0,1].
func (a *Actuator) Brightness() (float64, error) {
	return a.queryLevel(ActionGetBrightness)
}

// MoveCursor moves the pointer to a normalized screen position.
func (a *Actuator) MoveCursor(x, y float64) {
	a.submit(newCall(SystemControl, ActionMouseMove, PointerParams{X: clamp01(x), Y: clamp01(y)}), true)
}

// MouseButton presses or releases the primary mouse button.
func (a *Actuator) MouseButton(down bool) {
	a.submit(newCall(SystemControl, ActionMouseButton, ButtonParams{Down: down}), false)
}

// Close stops the workers, cancelling in-flight plugin runs, and waits
// for them to exit.
func (a *Actuator) Close() {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return
	}
	a.closed = true
	a.cancel()
	for _, ch := range a.lanes {
		close(ch)
	}
	a.mu.Unlock()

	a.wg.Wait()
}

func newCall(pluginName, action string, params any) *call {
	raw, _ := json.Marshal(params)
	return &call{plugin: pluginName, req: &Request{Action: action, Params: raw}}
}

func (a *Actuator) submit(c *call, coalesce bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return
	}

	key := c.plugin + "/" + c.req.Action
	ch, ok := a.lanes[key]
	if !ok {
		size := discreteQueueSize
		if coalesce {
			size = 1
		}
		ch = make(chan *call, size)
		a.lanes[key] = ch
		a.wg.Add(1)
		go a.worker(ch)
	}

	select {
	case ch <- c:
		return
	default:
	}

	if !coalesce {
		log.Printf("plugin: %s queue full, dropping request", key)
		return
	}

	// Replace the pending request with the newer one.
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- c:
	default:
	}
}

func (a *Actuator) worker(ch chan *call) {
	defer a.wg.Done()
	for c := range ch {
		if _, err := a.run(c); err != nil {
			log.Printf("plugin: %s %s: %v", c.plugin, c.req.Action, err)
		}
	}
}

func (a *Actuator) run(c *call) (*Response, error) {
	p, err := a.mgr.Get(c.plugin)
	if err != nil {
		return nil, err
	}
	if !p.Manifest.Supports(c.req.Action) {
		return nil, fmt.Errorf("action not supported")
	}

	resp, err := a.exec.Execute(a.ctx, p, c.req)
	if err != nil {
		return nil, err
	}
	if !resp.Success {
		return resp, fmt.Errorf("%s", resp.Error)
	}
	return resp, nil
}

func (a *Actuator) queryLevel(action string) (float64, error) {
	resp, err := a.run(newCall(SystemControl, action, struct{}{}))
	if err != nil {
		return 0, fmt.Errorf("%s: %w", action, err)
	}

	var lp LevelParams
	if err := json.Unmarshal(resp.Data, &lp); err != nil {
		return 0, fmt.Errorf("%s: parse level: %w", action, err)
	}
	return clamp01(lp.Level), nil
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
