// Package tray puts a dictation indicator in the system tray: an icon
// tracking session activity, a transcription backend picker, a
// start-at-login toggle and an update notice. Register callbacks before
// Init; they fire on the tray's own goroutine.
package tray

import (
	"sync"
	"time"
)

// Activity selects the tray icon.
type Activity int

const (
	ActivityIdle Activity = iota
	ActivityCapturing
	ActivityProcessing
)

// Provider is one transcription backend entry in the picker.
type Provider struct {
	Name   string // identifier handed to the switch callback
	Label  string
	HasKey bool
	Active bool
}

const defaultTooltip = "sotto: hold to dictate"

var (
	quitCh    = make(chan struct{})
	closeOnce sync.Once

	dictateStartFn func()
	dictateStopFn  func()

	activity Activity

	providerMu sync.Mutex
	providers  []Provider
	providerCb func(string)

	loginOn bool
	loginCb func(bool) error
)

// OnDictate registers the handlers behind the dictation menu item.
func OnDictate(start, stop func()) { dictateStartFn = start; dictateStopFn = stop }

// SetLogin seeds the start-at-login checkbox; OnLogin handles toggles.
// The callback's error leaves the checkbox unchanged.
func SetLogin(on bool)            { loginOn = on }
func OnLogin(fn func(bool) error) { loginCb = fn }

// SetProviders seeds the backend picker. Entries without an API key
// render disabled.
func SetProviders(p []Provider, onSwitch func(string)) {
	providerMu.Lock()
	providers = p
	providerCb = onSwitch
	providerMu.Unlock()
}

// SetActivity switches the tray icon. The backend picker locks while a
// session is live; switching providers mid-capture would strand the open
// transcriber session.
func SetActivity(a Activity) {
	activity = a
	updateActivityIcon(a)
	if a == ActivityIdle {
		enableProviderMenu()
	} else {
		disableProviderMenu()
	}
}

// Notice surfaces a transient message through the tooltip, reverting
// after ten seconds.
func Notice(msg string) {
	updateTooltip("sotto: " + msg)
	go func() {
		time.Sleep(10 * time.Second)
		updateTooltip(defaultTooltip)
	}()
}

// SetUpdateAvailable shows the release notice item; clicking it opens url.
func SetUpdateAvailable(version, url string) {
	addUpdateItem(version, url)
}

// Quit closes the channel Init returned. Safe to call repeatedly, from
// any goroutine.
func Quit() {
	closeOnce.Do(func() { close(quitCh) })
}
