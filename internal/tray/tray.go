// Package tray provides the system tray menu for rtspwatch: arm toggle,
// last event, web UI shortcut and quit.
package tray

import (
	"fmt"
	"sync"

	"github.com/getlantern/systray"
)

// Tray represents the system tray application.
type Tray struct {
	mode string

	mu        sync.RWMutex
	onToggle  func(armed bool)
	onOpenUI  func()
	onQuit    func()
	armed     bool
	lastEvent string

	// Menu items stored for later updates
	menuToggle    *systray.MenuItem
	menuLastEvent *systray.MenuItem
}

// New creates a Tray for mode with the given initial armed state.
func New(mode string, armed bool) *Tray {
	return &Tray{mode: mode, armed: armed}
}

// OnToggle sets the callback called when the operator toggles arming.
func (t *Tray) OnToggle(fn func(armed bool)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onToggle = fn
}

// OnOpenUI sets the callback for the "Open Web UI" item.
func (t *Tray) OnOpenUI(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onOpenUI = fn
}

// OnQuit sets the callback function to be called when the quit menu item is clicked.
func (t *Tray) OnQuit(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onQuit = fn
}

// Run starts the system tray application.
// This function blocks until systray.Quit() is called.
func (t *Tray) Run() {
	systray.Run(t.onReady, func() {})
}

// Quit closes the tray from outside the menu, for example on SIGTERM.
func (t *Tray) Quit() {
	systray.Quit()
}

func (t *Tray) onReady() {
	systray.SetTitle("rtspwatch")
	systray.SetTooltip("rtspwatch: " + t.mode)

	t.mu.Lock()
	t.menuToggle = systray.AddMenuItem(armedTitle(t.armed), "Arm or disarm")
	systray.AddSeparator()

	t.menuLastEvent = systray.AddMenuItem(lastEventTitle(t.lastEvent), "Last recorded event")
	t.menuLastEvent.Disable()
	t.mu.Unlock()
	systray.AddSeparator()

	menuOpen := systray.AddMenuItem("Open Web UI...", "Open the web UI in a browser")
	systray.AddSeparator()

	menuQuit := systray.AddMenuItem("Quit", "Quit rtspwatch")

	go func() {
		for {
			select {
			case <-t.menuToggle.ClickedCh:
				t.handleToggle()
			case <-menuOpen.ClickedCh:
				t.handleOpenUI()
			case <-menuQuit.ClickedCh:
				t.handleQuit()
				return
			}
		}
	}()
}

// handleToggle asks the owner to flip the armed state. The menu title is
// updated through SetArmed once the change has been applied.
func (t *Tray) handleToggle() {
	t.mu.RLock()
	next := !t.armed
	callback := t.onToggle
	t.mu.RUnlock()

	if callback != nil {
		callback(next)
	}
}

func (t *Tray) handleOpenUI() {
	t.mu.RLock()
	callback := t.onOpenUI
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}
}

func (t *Tray) handleQuit() {
	t.mu.RLock()
	callback := t.onQuit
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}

	systray.Quit()
}

// SetArmed reflects the app's armed state in the menu.
func (t *Tray) SetArmed(armed bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.armed = armed
	if t.menuToggle != nil {
		t.menuToggle.SetTitle(armedTitle(armed))
	}
}

// SetLastEvent updates the last event line in the menu.
func (t *Tray) SetLastEvent(label string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.lastEvent = label
	if t.menuLastEvent != nil {
		t.menuLastEvent.SetTitle(lastEventTitle(label))
	}
}

// IsArmed returns the armed state last reported through SetArmed.
func (t *Tray) IsArmed() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.armed
}

func armedTitle(armed bool) string {
	if armed {
		return "● Armed"
	}
	return "○ Disarmed"
}

func lastEventTitle(label string) string {
	if label == "" {
		return "Last: none"
	}
	return fmt.Sprintf("Last: %s", label)
}
