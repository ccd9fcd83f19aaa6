// Package tray provides the menu bar icon for mudra.
package tray

import (
	"log/slog"
	"sync"

	"github.com/getlantern/systray"

	"github.com/ayusman/mudra/internal/confirm"
)

const (
	titleEnabled  = "● Enabled"
	titleDisabled = "○ Disabled"
	lastNone      = "Last: none"
)

// Tray is the menu bar icon: an enable toggle, the most recently confirmed
// sign, a settings link and quit.
type Tray struct {
	logger *slog.Logger

	mu         sync.RWMutex
	onToggle   func(enabled bool)
	onSettings func()
	onQuit     func()
	enabled    bool
	last       string

	menuToggle *systray.MenuItem
	menuLast   *systray.MenuItem
}

// New creates a Tray. enabled is the initial toggle state.
func New(enabled bool, logger *slog.Logger) *Tray {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tray{enabled: enabled, logger: logger}
}

// OnToggle sets the callback run when the user flips the toggle.
func (t *Tray) OnToggle(fn func(enabled bool)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onToggle = fn
}

// OnSettings sets the callback run for "Open Settings...".
func (t *Tray) OnSettings(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onSettings = fn
}

// OnQuit sets the callback run before the tray exits.
func (t *Tray) OnQuit(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onQuit = fn
}

// Attach shows confirmed signs from c and clears them on release.
func (t *Tray) Attach(c *confirm.Confirmer) []confirm.Subscription {
	return []confirm.Subscription{
		c.OnConfirmed(func(e confirm.Confirmed) { t.SetLast(e.Class) }),
		c.OnReset(func(confirm.Reset) { t.SetLast("") }),
	}
}

// Run shows the icon and blocks until Quit. It must be called from the
// main goroutine on macOS.
func (t *Tray) Run() {
	systray.Run(t.onReady, t.onExit)
}

// Quit removes the icon and makes Run return.
func (t *Tray) Quit() {
	systray.Quit()
}

func (t *Tray) onReady() {
	systray.SetTitle("Mudra")
	systray.SetTooltip("Mudra hand sign recognition")

	t.mu.Lock()
	t.menuToggle = systray.AddMenuItem(toggleTitle(t.enabled), "Toggle sign recognition")
	systray.AddSeparator()
	t.menuLast = systray.AddMenuItem(lastTitle(t.last), "Most recently confirmed sign")
	t.menuLast.Disable()
	t.mu.Unlock()
	systray.AddSeparator()

	menuSettings := systray.AddMenuItem("Open Settings...", "Open settings in browser")
	systray.AddSeparator()
	menuQuit := systray.AddMenuItem("Quit", "Quit Mudra")

	go func() {
		for {
			select {
			case <-t.menuToggle.ClickedCh:
				t.Toggle()
			case <-menuSettings.ClickedCh:
				t.handleSettings()
			case <-menuQuit.ClickedCh:
				t.handleQuit()
				return
			}
		}
	}()
}

func (t *Tray) onExit() {
	t.logger.Debug("tray exited")
}

// Toggle flips the enabled state and runs the toggle callback.
func (t *Tray) Toggle() {
	t.mu.Lock()
	t.enabled = !t.enabled
	enabled := t.enabled
	if t.menuToggle != nil {
		t.menuToggle.SetTitle(toggleTitle(enabled))
	}
	callback := t.onToggle
	t.mu.Unlock()

	// Outside the lock; the callback may call back into the tray.
	if callback != nil {
		callback(enabled)
	}
}

func (t *Tray) handleSettings() {
	t.mu.RLock()
	callback := t.onSettings
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

// SetLast updates the "Last:" entry. An empty name shows none.
func (t *Tray) SetLast(name string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.last = name
	if t.menuLast != nil {
		t.menuLast.SetTitle(lastTitle(name))
	}
}

// Last returns the class shown in the "Last:" entry.
func (t *Tray) Last() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.last
}

// IsEnabled returns the toggle state.
func (t *Tray) IsEnabled() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.enabled
}

func toggleTitle(enabled bool) string {
	if enabled {
		return titleEnabled
	}
	return titleDisabled
}

func lastTitle(name string) string {
	if name == "" {
		return lastNone
	}
	return "Last: " + name
}
