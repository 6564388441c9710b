// Package vad turns raw audio-level samples into speech/silence decisions.
//
// Two pieces cooperate: a Smoother that maintains an exponential moving
// average and an adaptive noise-floor estimate, and a Classifier that applies
// dynamic thresholds with a hysteresis band so a level hovering near a single
// threshold cannot toggle state every tick.
package vad

import (
	"math"
	"sort"
)

// Config holds the smoothing and threshold tuning. Zero values are not
// usable; start from DefaultConfig.
type Config struct {
	// Alpha is the EMA weight of the newest sample, in (0, 1].
	Alpha float64

	// HistoryCap is the noise-floor window size in samples. The floor is
	// recomputed only once the window is full.
	HistoryCap int

	// InitialNoiseFloor seeds the estimate until the window fills.
	InitialNoiseFloor float64

	// BaseSoundThreshold and BaseSilenceThreshold are the lower bounds for
	// the dynamic thresholds, in normalized level units.
	BaseSoundThreshold   float64
	BaseSilenceThreshold float64

	// SoundFloorFactor and SilenceFloorFactor scale the noise floor into
	// the dynamic thresholds.
	SoundFloorFactor   float64
	SilenceFloorFactor float64
}

func DefaultConfig() Config {
	return Config{
		Alpha:                0.3,
		HistoryCap:           50,
		InitialNoiseFloor:    0.008,
		BaseSoundThreshold:   0.02,
		BaseSilenceThreshold: 0.012,
		SoundFloorFactor:     2.5,
		SilenceFloorFactor:   1.2,
	}
}

// Thresholds are derived from the current noise floor every tick, never
// stored.
type Thresholds struct {
	Sound   float64
	Silence float64
}

// Smoother maintains the smoothed level and the adaptive noise floor.
// Not safe for concurrent use; the tick path is serialized by the caller.
type Smoother struct {
	cfg      Config
	smoothed float64
	history  []float64
	scratch  []float64
	floor    float64
}

func NewSmoother(cfg Config) *Smoother {
	return &Smoother{
		cfg:     cfg,
		history: make([]float64, 0, cfg.HistoryCap),
		scratch: make([]float64, cfg.HistoryCap),
		floor:   cfg.InitialNoiseFloor,
	}
}

// Observe folds one raw sample into the state and returns the new smoothed
// level. The noise floor is the 25th percentile of the last HistoryCap raw
// samples; until the window fills it stays at the seeded value so the first
// second of capture cannot produce a volatile baseline.
func (s *Smoother) Observe(raw float64) float64 {
	raw = clamp01(raw)
	s.smoothed = s.smoothed*(1-s.cfg.Alpha) + raw*s.cfg.Alpha

	if len(s.history) == s.cfg.HistoryCap {
		copy(s.history, s.history[1:])
		s.history[len(s.history)-1] = raw
	} else {
		s.history = append(s.history, raw)
	}

	if len(s.history) == s.cfg.HistoryCap {
		copy(s.scratch, s.history)
		sort.Float64s(s.scratch)
		s.floor = s.scratch[int(0.25*float64(len(s.scratch)))]
	}
	return s.smoothed
}

func (s *Smoother) Smoothed() float64   { return s.smoothed }
func (s *Smoother) NoiseFloor() float64 { return s.floor }

// Thresholds derives the dynamic thresholds from the current noise floor.
func (s *Smoother) Thresholds() Thresholds {
	return Thresholds{
		Sound:   math.Max(s.cfg.BaseSoundThreshold, s.floor*s.cfg.SoundFloorFactor),
		Silence: math.Max(s.cfg.BaseSilenceThreshold, s.floor*s.cfg.SilenceFloorFactor),
	}
}

// Reset returns the smoother to its initial state. Called once per session,
// on the idle to listening transition, so a stale floor from a previous
// utterance never leaks into the next one.
func (s *Smoother) Reset() {
	s.smoothed = 0
	s.history = s.history[:0]
	s.floor = s.cfg.InitialNoiseFloor
}

func clamp01(v float64) float64 {
	switch {
	case v < 0 || math.IsNaN(v):
		return 0
	case v > 1:
		return 1
	}
	return v
}
