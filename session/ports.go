package session

import (
	"context"

	"sotto/vad"
)

// ActiveAppInfo identifies the application that held focus when the session
// was triggered. Captured once per session and immutable afterwards.
type ActiveAppInfo struct {
	Name     string
	BundleID string // empty when unknown
	Icon     []byte // optional raster icon, PNG bytes
}

// Recorder owns audio capture and transcription finalization. StopCapture
// is the one blocking remote call of a session: it stops the device, flushes
// the transcriber and returns the best-available text. The engine may call
// it again for the same session when retrying; implementations must tolerate
// overlapping and repeated calls.
//
// StartCapture is invoked with the engine lock held and must not call back
// into the engine synchronously; StopCapture and Deliver run on
// engine-owned goroutines and may block.
type Recorder interface {
	StartCapture(ctx context.Context, deviceID string, realtime bool) error
	StopCapture(ctx context.Context) (string, error)
}

// AppControl resolves the frontmost application and activates a target by
// bundle identifier.
type AppControl interface {
	ActiveApp() (ActiveAppInfo, error)
	Activate(bundleID string) error
}

// WindowControl drives the capture overlay.
type WindowControl interface {
	Show()
	Hide()
	Focus()
}

// Deliverer hands final text back to the target application. Implemented by
// the inject package; the error return feeds the engine's retry policy.
type Deliverer interface {
	Deliver(ctx context.Context, text string, app ActiveAppInfo) error
}

// EventSink receives user-visible session events. Implementations fan out to
// the TUI, tray, cues and logs; all methods must be non-blocking.
type EventSink interface {
	StateChange(from, to State)
	AudioLevel(level float64, speech vad.State)
	// Streaming carries live hypotheses; final marks a completed segment.
	Streaming(text string, final bool)
	// Transcription is the authoritative result chosen for delivery.
	Transcription(text string)
	Notice(text string)
	Failure(text string)
}

type nopSink struct{}

func (nopSink) StateChange(from, to State)             {}
func (nopSink) AudioLevel(level float64, sp vad.State) {}
func (nopSink) Streaming(text string, final bool)      {}
func (nopSink) Transcription(text string)              {}
func (nopSink) Notice(text string)                     {}
func (nopSink) Failure(text string)                    {}

type nopWindow struct{}

func (nopWindow) Show()  {}
func (nopWindow) Hide()  {}
func (nopWindow) Focus() {}
