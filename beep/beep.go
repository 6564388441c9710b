// Package beep plays the short cues that bracket a dictation: one tick
// when capture starts, one when it stops, a low double-tone on failure.
// Cues are fire-and-forget and playback errors are swallowed; a machine
// with no audio output just dictates silently.
package beep

import (
	"math"
	"sync"
)

const sampleRate = 44100

var disabled bool

// Disable turns every cue into a no-op. Scripted test runs and the
// -nosound flag use it.
func Disable() { disabled = true }

// A cue is a sine tick with an exponential decay envelope, repeated with
// a gap when ticks > 1.
type cue struct {
	freq   float64 // Hz
	length float64 // seconds per tick
	volume float64 // 0..1
	decay  float64 // envelope steepness; larger dies faster
	ticks  int
	gap    float64 // seconds between ticks
}

var (
	startCue = cue{freq: 1050, length: 0.05, volume: 0.5, decay: 55, ticks: 1}
	stopCue  = cue{freq: 780, length: 0.07, volume: 0.5, decay: 38, ticks: 1}
	errorCue = cue{freq: 330, length: 0.08, volume: 0.6, decay: 28, ticks: 2, gap: 0.05}
)

// synthesize renders the cue as mono S16 samples at sampleRate. Backends
// convert to their own frame layout.
func (c cue) synthesize() []int16 {
	tick := make([]int16, int(float64(sampleRate)*c.length))
	for i := range tick {
		t := float64(i) / sampleRate
		env := math.Exp(-t * c.decay)
		tick[i] = int16(math.Sin(2*math.Pi*c.freq*t) * 32767 * c.volume * env)
	}
	if c.ticks <= 1 {
		return tick
	}
	gap := make([]int16, int(float64(sampleRate)*c.gap))
	out := make([]int16, 0, c.ticks*len(tick)+(c.ticks-1)*len(gap))
	for i := 0; i < c.ticks; i++ {
		if i > 0 {
			out = append(out, gap...)
		}
		out = append(out, tick...)
	}
	return out
}

var (
	soundOnce    sync.Once
	startSamples []int16
	stopSamples  []int16
	errorSamples []int16
)

func initSound() {
	startSamples = startCue.synthesize()
	stopSamples = stopCue.synthesize()
	errorSamples = errorCue.synthesize()
	initBackend()
}

// Init warms the playback backend so the first cue is not late. Optional;
// every Play function initializes on demand.
func Init() {
	soundOnce.Do(initSound)
}

func PlayStart() {
	if disabled {
		return
	}
	soundOnce.Do(initSound)
	play(startSamples)
}

func PlayStop() {
	if disabled {
		return
	}
	soundOnce.Do(initSound)
	play(stopSamples)
}

func PlayError() {
	if disabled {
		return
	}
	soundOnce.Do(initSound)
	play(errorSamples)
}
