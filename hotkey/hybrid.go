package hotkey

import (
	"sync"
	"time"
)

// Hybrid wraps a Hotkey with tap-to-toggle and hold-to-talk on the same
// key. Recording starts on keydown either way; the hold duration decides
// whether release ends it (hold) or leaves it running until the next tap
// (toggle). The session can also end on its own, silence auto-stop for
// example, in which case the owner must call Reset so the next keypress
// starts fresh instead of being swallowed as a toggle-off.
type Hybrid struct {
	startCh chan struct{}
	stopCh  chan struct{}
	resetCh chan struct{}

	mu      sync.Mutex
	toggled bool
}

// NewHybrid builds a Hybrid controller on top of an existing Hotkey.
// longPress is the duration threshold separating hold-to-talk from a tap.
func NewHybrid(hk Hotkey, longPress time.Duration) *Hybrid {
	h := &Hybrid{
		startCh: make(chan struct{}, 1),
		stopCh:  make(chan struct{}, 1),
		resetCh: make(chan struct{}, 1),
	}
	go h.run(hk, longPress)
	return h
}

// Start signals that recording should begin.
func (h *Hybrid) Start() <-chan struct{} { return h.startCh }

// StopChan signals that recording should end, for both hold and toggle.
func (h *Hybrid) StopChan() <-chan struct{} { return h.stopCh }

// IsToggle reports whether the current recording was toggled on by a tap.
// False while the key is still held or when nothing records.
func (h *Hybrid) IsToggle() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.toggled
}

// Reset tells the state machine the session ended without a key event.
// Safe to call redundantly; stale resets are dropped before the next press.
func (h *Hybrid) Reset() {
	select {
	case h.resetCh <- struct{}{}:
	default:
	}
}

type hybridState int

const (
	stIdle hybridState = iota
	stToggled
)

func (h *Hybrid) run(hk Hotkey, longPress time.Duration) {
	state := stIdle
	for {
		switch state {
		case stIdle:
			<-hk.Keydown()
			// A reset that arrived before this press belongs to the
			// previous session; drop it so it cannot cut this one short.
			select {
			case <-h.resetCh:
			default:
			}
			h.setToggled(false)
			h.startCh <- struct{}{}

			timer := time.NewTimer(longPress)
			select {
			case <-timer.C:
				// Held past the threshold: release stops the recording.
				select {
				case <-hk.Keyup():
					h.emitStop()
				case <-h.resetCh:
					// Session ended under the held key; swallow the
					// release so it does not register as a new tap.
					<-hk.Keyup()
				}
				state = stIdle
			case <-hk.Keyup():
				// Tap: recording stays on until the next tap.
				stopTimer(timer)
				h.setToggled(true)
				state = stToggled
			case <-h.resetCh:
				// Session died right after starting (capture failure).
				stopTimer(timer)
				state = stIdle
			}
		case stToggled:
			select {
			case <-hk.Keydown():
				<-hk.Keyup()
				h.setToggled(false)
				h.emitStop()
			case <-h.resetCh:
				// Auto-stopped while toggled on; rearm silently.
				h.setToggled(false)
			}
			state = stIdle
		}
	}
}

func (h *Hybrid) setToggled(v bool) {
	h.mu.Lock()
	h.toggled = v
	h.mu.Unlock()
}

func (h *Hybrid) emitStop() {
	select {
	case h.stopCh <- struct{}{}:
	default:
	}
}

func stopTimer(t *time.Timer) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
}
