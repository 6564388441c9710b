// Package record drives the microphone side of a dictation session: it
// opens a capture device, feeds PCM into a transcriber session and flushes
// the session into text on stop. It implements the engine's Recorder port.
package record

import (
	"context"
	"fmt"
	"sync"

	"sotto/audio"
	"sotto/encoder"
	"sotto/log"
	"sotto/transcriber"
)

// Options carries capture settings and the callbacks the recorder reports
// through. OnLevel and OnUpdate run on recorder-owned goroutines, so they
// may call back into the engine. OnResult runs inside StopCapture, right
// before the text is returned.
type Options struct {
	Format   string // upload format for batch sessions: "wav", "flac" or "adaptive"
	Language string

	OnLevel  func(rms float64)               // throttled RMS ticks from the capture stream
	OnUpdate func(text string, final bool)   // live hypotheses from streaming sessions
	OnResult func(transcriber.SessionResult) // full result of a successful finalize
}

// Recorder binds an audio backend to a transcriber. One Recorder serves the
// whole process; captures run one at a time.
type Recorder struct {
	actx  audio.Context
	trans transcriber.Transcriber
	opts  Options

	meter   *audio.Meter
	levelCh chan float64
	quit    chan struct{}

	mu  sync.Mutex
	cur *capture
}

// capture is one microphone session. stopOnce guards device teardown; the
// transcriber session has no such guard because the engine closes it again
// when a finalize attempt fails.
type capture struct {
	dev      audio.CaptureDevice
	sess     transcriber.Session
	provider string
	stopOnce sync.Once
}

func New(actx audio.Context, trans transcriber.Transcriber, opts Options) *Recorder {
	r := &Recorder{
		actx:    actx,
		trans:   trans,
		opts:    opts,
		levelCh: make(chan float64, 16),
		quit:    make(chan struct{}),
	}
	// Level ticks detour through a buffered channel. The capture callback
	// must never wait on the engine lock, which StopCapture holds while
	// the device joins its callback thread; a full channel drops ticks
	// instead of blocking.
	r.meter = audio.NewMeter(func(rms float64) {
		select {
		case r.levelCh <- rms:
		default:
		}
	})
	go r.forwardLevels()
	return r
}

// SetTranscriber swaps the provider used by the next capture. A session
// already open keeps the transcriber it started with.
func (r *Recorder) SetTranscriber(t transcriber.Transcriber) {
	r.mu.Lock()
	r.trans = t
	r.mu.Unlock()
}

// StartCapture opens the configured device and a fresh transcriber session.
// Leftovers from an earlier session are torn down first.
func (r *Recorder) StartCapture(ctx context.Context, deviceID string, realtime bool) error {
	r.mu.Lock()
	trans := r.trans
	r.mu.Unlock()

	dev, err := audio.FindDevice(r.actx, deviceID)
	if err != nil {
		return err
	}

	sess, err := trans.NewSession(ctx, transcriber.SessionConfig{
		Stream:   realtime,
		Format:   r.opts.Format,
		Language: r.opts.Language,
	})
	if err != nil {
		return fmt.Errorf("opening transcriber session: %w", err)
	}

	capDev, err := r.actx.NewCapture(dev, audio.CaptureConfig{
		SampleRate: encoder.SampleRate,
		Channels:   encoder.Channels,
	})
	if err != nil {
		go sess.Close() // releases the session's encode worker
		return fmt.Errorf("opening capture device: %w", err)
	}

	r.meter.Reset()
	capDev.SetCallback(func(data []byte, _ uint32) {
		sess.Feed(data)
		r.meter.Process(data)
	})
	if err := capDev.Start(); err != nil {
		capDev.Close()
		go sess.Close()
		return fmt.Errorf("starting capture: %w", err)
	}

	if name := capDev.DeviceName(); audio.IsBluetooth(name) {
		log.Warnf("bluetooth microphone %q: expect reduced transcription quality", name)
	}

	go r.forwardUpdates(sess)

	r.mu.Lock()
	prev := r.cur
	r.cur = &capture{dev: capDev, sess: sess, provider: trans.Name()}
	r.mu.Unlock()

	if prev != nil {
		// Normally already stopped by StopCapture; a cancelled session
		// can leave the device running.
		prev.stopOnce.Do(func() { stopDevice(prev.dev) })
	}
	return nil
}

// StopCapture stops the device and flushes the transcriber session,
// returning the best text available. The engine calls it again on the same
// session when a finalize attempt fails: the device stops exactly once,
// every attempt re-runs the session close.
func (r *Recorder) StopCapture(ctx context.Context) (string, error) {
	r.mu.Lock()
	cur := r.cur
	r.mu.Unlock()
	if cur == nil {
		return "", fmt.Errorf("no capture in progress")
	}

	cur.stopOnce.Do(func() { stopDevice(cur.dev) })

	type outcome struct {
		res transcriber.SessionResult
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		res, err := cur.sess.Close()
		done <- outcome{res, err}
	}()

	select {
	case out := <-done:
		return r.finish(cur, out.res, out.err)
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Close releases the level forwarder and whatever capture is still around.
// Call once, on shutdown.
func (r *Recorder) Close() {
	r.mu.Lock()
	cur := r.cur
	r.cur = nil
	r.mu.Unlock()
	if cur != nil {
		cur.stopOnce.Do(func() { stopDevice(cur.dev) })
		go cur.sess.Close()
	}
	close(r.quit)
}

// finish folds a session result into the port's (text, error) shape and
// writes the diagnostic records.
func (r *Recorder) finish(cur *capture, res transcriber.SessionResult, err error) (string, error) {
	if err != nil {
		if res.HasText {
			// A stream that died after committing text still produced a
			// usable transcript. Deliver it instead of failing the session.
			log.Warnf("finalize error after partial transcript: %v", err)
			return res.Text, nil
		}
		return "", err
	}

	if res.Text != "" {
		log.TranscriptionText(res.Text)
	}
	r.logMetrics(cur.provider, res)
	if r.opts.OnResult != nil {
		r.opts.OnResult(res)
	}
	return res.Text, nil
}

func (r *Recorder) logMetrics(provider string, res transcriber.SessionResult) {
	switch {
	case res.Batch != nil:
		b := res.Batch
		log.TranscriptionMetrics(log.Metrics{
			AudioLengthS:     b.AudioLengthS,
			RawSizeKB:        b.RawSizeKB,
			CompressedSizeKB: b.CompressedSizeKB,
			CompressionPct:   b.CompressionPct,
			EncodeTimeMs:     b.EncodeTimeMs,
			DNSTimeMs:        b.DNSTimeMs,
			TLSTimeMs:        b.TLSTimeMs,
			TTFBMs:           b.TTFBMs,
			TotalTimeMs:      b.TotalTimeMs,
			MemoryAllocMB:    res.MemoryAllocMB,
			MemoryPeakMB:     res.MemoryPeakMB,
		}, "batch", r.opts.Format, provider, b.ConnReused, b.TLSProtocol)
		log.Confidence(b.Confidence)
	case res.Stream != nil:
		s := res.Stream
		log.StreamMetrics(log.StreamMetricsData{
			ConnectMs:    s.ConnectMs,
			FinalizeMs:   s.FinalizeMs,
			TotalMs:      s.TotalMs,
			AudioS:       s.AudioS,
			SentChunks:   s.SentChunks,
			SentKB:       s.SentKB,
			RecvMessages: s.RecvMessages,
			RecvFinal:    s.RecvFinal,
			CommitEvents: s.CommitEvents,
		})
	}
}

func (r *Recorder) forwardLevels() {
	for {
		select {
		case rms := <-r.levelCh:
			if r.opts.OnLevel != nil {
				r.opts.OnLevel(rms)
			}
		case <-r.quit:
			return
		}
	}
}

// forwardUpdates relays live hypotheses until the session's update channel
// closes on finalize.
func (r *Recorder) forwardUpdates(sess transcriber.Session) {
	for u := range sess.Updates() {
		if r.opts.OnUpdate != nil {
			r.opts.OnUpdate(u.Text, u.Final)
		}
	}
}

// stopDevice drops the callback before stopping so buffers delivered during
// teardown are discarded rather than fed to a closing session.
func stopDevice(dev audio.CaptureDevice) {
	dev.ClearCallback()
	dev.Stop()
	dev.Close()
}
