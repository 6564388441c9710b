// Package session owns the recording lifecycle: idle, listening, processing,
// injecting. The engine consumes trigger/hold events and audio-level ticks,
// reads the VAD classifier, owns every timer and the bounded retry policy,
// and issues commands to its ports. All entry points serialize on one mutex;
// exactly one tick or event is in flight at a time.
package session

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"sotto/vad"
)

// State is the session lifecycle position.
type State int

const (
	StateIdle State = iota
	StateListening
	StateProcessing
	StateInjecting
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateListening:
		return "listening"
	case StateProcessing:
		return "processing"
	case StateInjecting:
		return "injecting"
	}
	return "unknown"
}

// Mode records how the session was started.
type Mode string

const (
	ModeToggle Mode = "toggle"
	ModeHold   Mode = "hold"
)

// Ports bundles the engine's collaborators. Recorder and Deliver are
// required; the rest default to no-ops when nil.
type Ports struct {
	Recorder Recorder
	Apps     AppControl
	Window   WindowControl
	Deliver  Deliverer
	Sink     EventSink
}

// Engine is the session orchestrator. One engine serves the whole process;
// at most one session is open at a time.
type Engine struct {
	cfg Config

	rec  Recorder
	apps AppControl
	win  WindowControl
	del  Deliverer
	sink EventSink

	mu         sync.Mutex
	state      State
	mode       Mode
	smoother   *vad.Smoother
	classifier *vad.Classifier

	hasAudio   bool
	startedAt  time.Time
	activeApp  ActiveAppInfo
	text       string
	retryCount int
	attempts   int
	processing bool
	confirming bool

	// lockedUntil debounces the trigger itself; a bouncing key cannot
	// open two sessions.
	lockedUntil time.Time

	// sid changes on every return to idle, epoch on every lifecycle
	// transition. Timer callbacks and result handlers check them under
	// the lock, so a disarm always happens-before a stale callback could
	// act.
	sid    uint64
	epoch  uint64
	timers []*time.Timer

	ctx    context.Context
	cancel context.CancelFunc
}

func New(cfg Config, p Ports) *Engine {
	if p.Sink == nil {
		p.Sink = nopSink{}
	}
	if p.Window == nil {
		p.Window = nopWindow{}
	}
	return &Engine{
		cfg:        cfg,
		rec:        p.Recorder,
		apps:       p.Apps,
		win:        p.Window,
		del:        p.Deliver,
		sink:       p.Sink,
		smoother:   vad.NewSmoother(cfg.VAD),
		classifier: vad.NewClassifier(),
	}
}

// Trigger opens a session from a tap; the next explicit stop closes it.
// The optional app info identifies the application to return text to; when
// nil the engine asks its AppControl port.
func (e *Engine) Trigger(app *ActiveAppInfo) { e.begin(app, ModeToggle) }

// HoldStart opens a session for press-and-hold dictation.
func (e *Engine) HoldStart(app *ActiveAppInfo) { e.begin(app, ModeHold) }

// HoldEnd closes a hold session on key release. Also the toggle-off path.
func (e *Engine) HoldEnd() { e.StopListening() }

func (e *Engine) begin(app *ActiveAppInfo, mode Mode) {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := time.Now()
	if e.state != StateIdle || now.Before(e.lockedUntil) {
		return
	}
	e.lockedUntil = now.Add(e.cfg.TriggerDebounce)

	var info ActiveAppInfo
	if app != nil {
		info = *app
	} else if e.apps != nil {
		if got, err := e.apps.ActiveApp(); err == nil {
			info = got
		} else {
			e.sink.Notice("active app unknown: " + err.Error())
		}
	}

	// Detection state is renewed here and nowhere else: exactly once per
	// session, so no stale noise floor carries between utterances.
	e.smoother.Reset()
	e.classifier.Reset()
	e.hasAudio = false
	e.text = ""
	e.retryCount = 0
	e.attempts = 0
	e.processing = false
	e.confirming = false
	e.activeApp = info
	e.startedAt = now
	e.mode = mode
	e.ctx, e.cancel = context.WithCancel(context.Background())

	e.setState(StateListening)
	e.win.Show()
	e.win.Focus()

	if err := e.rec.StartCapture(e.ctx, e.cfg.DeviceID, e.cfg.Realtime); err != nil {
		e.sink.Failure("could not start capture: " + err.Error())
		e.reset()
		return
	}

	e.arm(e.cfg.NoSoundTimeout, func() {
		if e.state != StateListening || e.hasAudio {
			return
		}
		e.sink.Notice("no speech detected")
		e.stopCaptureQuiet()
		e.reset()
	})
}

// AudioLevel ingests one tick from the level producer. Any producer rate is
// tolerated; each tick is handled to completion before the next is accepted.
func (e *Engine) AudioLevel(raw float64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != StateListening {
		return
	}
	now := time.Now()
	smoothed := e.smoother.Observe(raw)
	st, speech := e.classifier.Classify(smoothed, e.smoother.Thresholds(), now)
	e.sink.AudioLevel(smoothed, st)

	if speech {
		if !e.hasAudio || e.confirming {
			// First sound disarms the no-sound timeout; any sound
			// cancels a pending stop confirmation.
			e.disarm()
			e.confirming = false
			e.hasAudio = true
		}
		return
	}

	if !e.hasAudio || e.confirming {
		return
	}
	if e.classifier.SilenceFor(now) < e.cfg.SilenceWindow {
		return
	}

	// Primary silence window satisfied; the confirmation delay is the
	// second-stage debounce before capture actually stops.
	e.confirming = true
	e.arm(e.cfg.ConfirmDelay, func() {
		e.confirming = false
		if e.state != StateListening {
			return
		}
		if time.Since(e.startedAt) <= e.cfg.MinSpeech {
			return
		}
		e.stopListening()
	})
}

// StopListening ends capture explicitly, without waiting on the silence
// window. Key release, toggle-off tap and the silence auto-stop all land
// here.
func (e *Engine) StopListening() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stopListening()
}

func (e *Engine) stopListening() {
	// The processing flag makes overlapping stop requests a silent no-op:
	// one finalize flow per session, no matter how the stops interleave.
	if e.state != StateListening || e.processing {
		return
	}
	e.processing = true
	e.disarm()
	e.setState(StateProcessing)
	e.beginAttempt()
	e.armProcessingTimeout()
}

// StreamingTranscript surfaces live hypotheses while a session is open.
// Authoritative text still arrives through StopCapture.
func (e *Engine) StreamingTranscript(text string, final bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != StateListening && e.state != StateProcessing {
		return
	}
	e.sink.Streaming(text, final)
}

// Cancel aborts from any state: every timer cleared, in-flight work
// orphaned, capture stopped best effort with errors swallowed.
func (e *Engine) Cancel() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == StateIdle {
		return
	}
	if e.state == StateListening {
		e.stopCaptureQuiet()
	}
	e.sink.Notice("cancelled")
	e.reset()
}

// State reports the current lifecycle position.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Status is a point-in-time snapshot for display surfaces.
type Status struct {
	State      State
	Mode       Mode
	HasAudio   bool
	Text       string
	RetryCount int
	Elapsed    time.Duration
}

func (e *Engine) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	st := Status{
		State:      e.state,
		Mode:       e.mode,
		HasAudio:   e.hasAudio,
		Text:       e.text,
		RetryCount: e.retryCount,
	}
	if e.state != StateIdle {
		st.Elapsed = time.Since(e.startedAt)
	}
	return st
}

// SetDevice points the next session at a different capture device. A
// session already open keeps the device it started with.
func (e *Engine) SetDevice(deviceID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cfg.DeviceID = deviceID
}

// SetRealtime switches the next session between batch and streaming
// capture.
func (e *Engine) SetRealtime(realtime bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cfg.Realtime = realtime
}

// Detection reports the smoother's current noise floor and thresholds,
// for tuning diagnostics.
func (e *Engine) Detection() (noiseFloor float64, thr vad.Thresholds) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.smoother.NoiseFloor(), e.smoother.Thresholds()
}

// beginAttempt issues one finalize call. The result handler drops orphaned
// attempts; a late success is honored for as long as the session is still
// processing, even after the retry budget ran out.
func (e *Engine) beginAttempt() {
	e.attempts++
	sid, ctx := e.sid, e.ctx
	go func() {
		text, err := e.rec.StopCapture(ctx)
		e.finalizeDone(sid, text, err)
	}()
}

func (e *Engine) armProcessingTimeout() {
	e.arm(e.cfg.ProcessingTimeout, func() {
		// The stalled call is left to finish on its own; its result
		// stays honorable while the session is processing.
		e.failure("transcription timed out", true)
	})
}

func (e *Engine) finalizeDone(sid uint64, text string, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if sid != e.sid || e.state != StateProcessing {
		return
	}
	if err != nil {
		e.failure("transcription error", false)
		return
	}
	if strings.TrimSpace(text) == "" {
		// A blank transcript is a normal outcome, not an error.
		e.disarm()
		e.sink.Notice("no speech recognized")
		e.arm(e.cfg.EmptyResultDelay, func() { e.reset() })
		return
	}
	e.disarm()
	e.text = strings.TrimSpace(text)
	e.sink.Transcription(e.text)
	e.setState(StateInjecting)
	e.beginDelivery()
}

// failure drives the bounded retry policy for finalize errors and processing
// timeouts. Timeouts re-issue immediately and concurrently; errors re-issue
// after RetryDelay. Past the budget the session surfaces a terminal message
// and dwells briefly before idle.
func (e *Engine) failure(msg string, timeout bool) {
	if e.state != StateProcessing {
		return
	}
	e.retryCount++
	if e.retryCount > e.cfg.MaxRetries {
		e.disarm()
		e.sink.Failure("transcription failed, nothing delivered")
		e.arm(e.cfg.TerminalDelay, func() { e.reset() })
		return
	}
	e.sink.Notice(fmt.Sprintf("%s, retrying (%d/%d)", msg, e.retryCount, e.cfg.MaxRetries))
	e.disarm()
	if timeout {
		e.beginAttempt()
		e.armProcessingTimeout()
		return
	}
	e.arm(e.cfg.RetryDelay, func() {
		if e.state != StateProcessing {
			return
		}
		e.beginAttempt()
		e.armProcessingTimeout()
	})
}

func (e *Engine) beginDelivery() {
	sid, ctx := e.sid, e.ctx
	text, app := e.text, e.activeApp
	go func() {
		err := e.del.Deliver(ctx, text, app)
		e.deliveryDone(sid, err)
	}()
}

func (e *Engine) deliveryDone(sid uint64, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if sid != e.sid || e.state != StateInjecting {
		return
	}
	if err == nil {
		e.reset()
		return
	}
	// Delivery failed with the text already in hand: spend the remaining
	// retry budget on delivery rather than losing the transcript.
	e.retryCount++
	if e.retryCount > e.cfg.MaxRetries {
		e.disarm()
		e.sink.Failure("could not deliver text")
		e.arm(e.cfg.TerminalDelay, func() { e.reset() })
		return
	}
	e.sink.Notice(fmt.Sprintf("delivery failed, retrying (%d/%d)", e.retryCount, e.cfg.MaxRetries))
	e.arm(e.cfg.RetryDelay, func() {
		if e.state != StateInjecting {
			return
		}
		e.beginDelivery()
	})
}

// reset forces the engine back to idle: timers dead, context cancelled,
// session fields cleared, window hidden. Detection state is deliberately
// left alone; it is renewed on the next trigger.
func (e *Engine) reset() {
	e.sid++
	e.disarm()
	if e.cancel != nil {
		e.cancel()
		e.cancel = nil
	}
	e.hasAudio = false
	e.text = ""
	e.processing = false
	e.confirming = false
	e.activeApp = ActiveAppInfo{}
	e.lockedUntil = time.Time{}
	e.win.Hide()
	e.setState(StateIdle)
}

func (e *Engine) setState(to State) {
	from := e.state
	if from == to {
		return
	}
	e.state = to
	e.sink.StateChange(from, to)
}

// arm schedules fn under the engine lock. Every lifecycle transition bumps
// the epoch before anything else, so a live callback always observes the
// state it was armed in; a stopped or stale timer can never act.
func (e *Engine) arm(d time.Duration, fn func()) {
	sid, epoch := e.sid, e.epoch
	t := time.AfterFunc(d, func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		if e.sid != sid || e.epoch != epoch {
			return
		}
		fn()
	})
	e.timers = append(e.timers, t)
}

func (e *Engine) disarm() {
	e.epoch++
	for _, t := range e.timers {
		t.Stop()
	}
	e.timers = e.timers[:0]
}

// stopCaptureQuiet stops the device without caring about the outcome, for
// cancel paths where the transcript is unwanted.
func (e *Engine) stopCaptureQuiet() {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_, _ = e.rec.StopCapture(ctx)
	}()
}
