package vad

import (
	"math"
	"sort"
	"testing"
)

func testSmoother() *Smoother {
	return NewSmoother(DefaultConfig())
}

// percentile25 mirrors the floor computation on an arbitrary window.
func percentile25(window []float64) float64 {
	sorted := append([]float64(nil), window...)
	sort.Float64s(sorted)
	return sorted[int(0.25*float64(len(sorted)))]
}

func TestNoiseFloorHoldsUntilWindowFills(t *testing.T) {
	cfg := DefaultConfig()
	s := NewSmoother(cfg)

	for i := 0; i < cfg.HistoryCap-1; i++ {
		s.Observe(0.5)
		if s.NoiseFloor() != cfg.InitialNoiseFloor {
			t.Fatalf("floor moved after %d samples: %v", i+1, s.NoiseFloor())
		}
	}
	s.Observe(0.5)
	if s.NoiseFloor() != 0.5 {
		t.Fatalf("expected floor 0.5 once window filled, got %v", s.NoiseFloor())
	}
}

func TestNoiseFloorTracksPercentile(t *testing.T) {
	cfg := DefaultConfig()
	s := NewSmoother(cfg)

	// Deterministic wobbly sequence, much longer than the window.
	var seq []float64
	for i := 0; i < 4*cfg.HistoryCap; i++ {
		seq = append(seq, 0.5+0.4*math.Sin(float64(i)*0.7))
	}

	for i, v := range seq {
		s.Observe(v)
		if i+1 < cfg.HistoryCap {
			continue
		}
		want := percentile25(seq[i+1-cfg.HistoryCap : i+1])
		if s.NoiseFloor() != want {
			t.Fatalf("floor diverged at sample %d: got %v want %v", i, s.NoiseFloor(), want)
		}
	}
}

func TestSmoothedLevelEMA(t *testing.T) {
	s := testSmoother()

	got := s.Observe(1.0)
	if math.Abs(got-0.3) > 1e-9 {
		t.Fatalf("first sample: got %v want 0.3", got)
	}
	got = s.Observe(1.0)
	if math.Abs(got-0.51) > 1e-9 {
		t.Fatalf("second sample: got %v want 0.51", got)
	}

	// Constant input converges toward the input.
	for i := 0; i < 100; i++ {
		got = s.Observe(1.0)
	}
	if got < 0.999 {
		t.Fatalf("EMA failed to converge: %v", got)
	}
}

func TestThresholdsScaleWithFloor(t *testing.T) {
	cfg := DefaultConfig()
	s := NewSmoother(cfg)

	// Quiet room: floor at its seed, bases win.
	thr := s.Thresholds()
	if thr.Sound != cfg.BaseSoundThreshold {
		t.Fatalf("quiet sound threshold: got %v want %v", thr.Sound, cfg.BaseSoundThreshold)
	}
	if thr.Silence != cfg.BaseSilenceThreshold {
		t.Fatalf("quiet silence threshold: got %v want %v", thr.Silence, cfg.BaseSilenceThreshold)
	}

	// Noisy room: fill the window with a loud ambient level.
	for i := 0; i < cfg.HistoryCap; i++ {
		s.Observe(0.2)
	}
	thr = s.Thresholds()
	if math.Abs(thr.Sound-0.2*cfg.SoundFloorFactor) > 1e-9 {
		t.Fatalf("noisy sound threshold: got %v want %v", thr.Sound, 0.2*cfg.SoundFloorFactor)
	}
	if math.Abs(thr.Silence-0.2*cfg.SilenceFloorFactor) > 1e-9 {
		t.Fatalf("noisy silence threshold: got %v want %v", thr.Silence, 0.2*cfg.SilenceFloorFactor)
	}
	if thr.Silence >= thr.Sound {
		t.Fatalf("silence threshold %v not below sound threshold %v", thr.Silence, thr.Sound)
	}
}

func TestObserveClampsInput(t *testing.T) {
	s := testSmoother()
	if got := s.Observe(2.5); got != 0.3 {
		t.Fatalf("over-range input not clamped: %v", got)
	}
	s = testSmoother()
	if got := s.Observe(-1.0); got != 0 {
		t.Fatalf("negative input not clamped: %v", got)
	}
	s = testSmoother()
	if got := s.Observe(math.NaN()); got != 0 {
		t.Fatalf("NaN input not clamped: %v", got)
	}
}

func TestSmootherReset(t *testing.T) {
	cfg := DefaultConfig()
	s := NewSmoother(cfg)
	for i := 0; i < cfg.HistoryCap+10; i++ {
		s.Observe(0.8)
	}
	s.Reset()
	if s.Smoothed() != 0 {
		t.Fatalf("smoothed not reset: %v", s.Smoothed())
	}
	if s.NoiseFloor() != cfg.InitialNoiseFloor {
		t.Fatalf("floor not reset: %v", s.NoiseFloor())
	}
	// Window must refill completely before the floor moves again.
	for i := 0; i < cfg.HistoryCap-1; i++ {
		s.Observe(0.8)
	}
	if s.NoiseFloor() != cfg.InitialNoiseFloor {
		t.Fatal("floor recomputed on a partial window after reset")
	}
}
