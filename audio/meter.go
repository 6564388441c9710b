package audio

import (
	"encoding/binary"
	"math"
	"sync"
	"time"
)

const (
	// Emit interval for level ticks. ~40 ticks/s keeps the detector
	// responsive without flooding the consumer.
	meterInterval = 25 * time.Millisecond

	// Display normalizer tuning. recentMax decays per emit so the bar
	// re-ranges within a few seconds after a loud passage.
	displayDecay     = 0.993
	displayFloor     = 0.01
	displaySmoothing = 0.4
)

// Meter folds raw S16LE capture buffers into throttled RMS level ticks.
// The emitted value is the plain root-mean-square of normalized samples
// in [0,1], the unit the speech detector thresholds are calibrated in.
// Safe for use from the capture callback goroutine.
type Meter struct {
	mu         sync.Mutex
	sumSquares float64
	samples    int
	lastEmit   time.Time
	emit       func(rms float64)
}

func NewMeter(emit func(rms float64)) *Meter {
	return &Meter{emit: emit}
}

// Process accumulates one capture buffer and emits a tick when the
// throttle interval has elapsed.
func (m *Meter) Process(data []byte) {
	if len(data) < 2 {
		return
	}

	m.mu.Lock()
	for i := 0; i+1 < len(data); i += 2 {
		sample := int16(binary.LittleEndian.Uint16(data[i:]))
		normalized := float64(sample) / 32768.0
		m.sumSquares += normalized * normalized
		m.samples++
	}

	now := time.Now()
	if m.samples == 0 || now.Sub(m.lastEmit) < meterInterval {
		m.mu.Unlock()
		return
	}
	rms := math.Sqrt(m.sumSquares / float64(m.samples))
	m.sumSquares = 0
	m.samples = 0
	m.lastEmit = now
	emit := m.emit
	m.mu.Unlock()

	if emit != nil {
		emit(rms)
	}
}

// Reset drops accumulated samples between sessions so a loud tail of one
// recording does not leak into the first tick of the next.
func (m *Meter) Reset() {
	m.mu.Lock()
	m.sumSquares = 0
	m.samples = 0
	m.lastEmit = time.Time{}
	m.mu.Unlock()
}

// Normalizer rescales raw RMS levels into [0,1] for display. It tracks the
// recent peak with instant attack and slow release, so quiet and hot mics
// both produce a usable bar.
type Normalizer struct {
	recentMax float64
	smoothed  float64
}

func NewNormalizer() *Normalizer {
	return &Normalizer{recentMax: displayFloor}
}

func (n *Normalizer) Level(raw float64) float64 {
	if raw > n.recentMax {
		n.recentMax = raw
	} else {
		n.recentMax *= displayDecay
	}
	if n.recentMax < displayFloor {
		n.recentMax = displayFloor
	}

	level := 0.0
	if raw > displayFloor {
		level = raw / n.recentMax
		if level > 1.0 {
			level = 1.0
		}
	}

	n.smoothed = displaySmoothing*level + (1-displaySmoothing)*n.smoothed
	return n.smoothed
}
