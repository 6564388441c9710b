// Package hotkey delivers global push-to-talk key events. The linux
// backend reads evdev directly; everywhere else golang.design/x/hotkey
// registers the combo with the OS.
package hotkey

// Hotkey is a registered global key combo. Keydown/Keyup channels carry
// at most one pending event each; bursts collapse.
type Hotkey interface {
	Register() error
	Unregister()
	Keydown() <-chan struct{}
	Keyup() <-chan struct{}
}
