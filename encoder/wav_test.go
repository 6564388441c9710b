package encoder

import (
	"encoding/binary"
	"math"
	"testing"
)

// sineSamples synthesizes n samples of a 440 Hz tone at the package rate.
func sineSamples(n int) []int16 {
	samples := make([]int16, n)
	for i := range samples {
		samples[i] = int16(12000 * math.Sin(2*math.Pi*440*float64(i)/SampleRate))
	}
	return samples
}

func feedBlocks(t *testing.T, enc Encoder, samples []int16) {
	t.Helper()
	for i := 0; i < len(samples); i += BlockSize {
		end := i + BlockSize
		if end > len(samples) {
			end = len(samples)
		}
		if err := enc.EncodeBlock(samples[i:end]); err != nil {
			t.Fatalf("EncodeBlock at offset %d: %v", i, err)
		}
	}
}

func TestWavEncoder(t *testing.T) {
	samples := sineSamples(SampleRate) // 1 second

	enc := NewWav()
	feedBlocks(t, enc, samples)
	if err := enc.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	if enc.TotalFrames() != uint64(len(samples)) {
		t.Errorf("TotalFrames = %d, want %d", enc.TotalFrames(), len(samples))
	}

	out := enc.Bytes()
	if len(out) != wavHeaderSize+len(samples)*2 {
		t.Fatalf("output size = %d, want %d", len(out), wavHeaderSize+len(samples)*2)
	}
	if string(out[0:4]) != "RIFF" || string(out[8:12]) != "WAVE" {
		t.Fatal("missing RIFF/WAVE magic")
	}

	if rate := binary.LittleEndian.Uint32(out[24:28]); rate != SampleRate {
		t.Errorf("header sample rate = %d, want %d", rate, SampleRate)
	}
	if dataSize := binary.LittleEndian.Uint32(out[40:44]); dataSize != uint32(len(samples)*2) {
		t.Errorf("header data size = %d, want %d", dataSize, len(samples)*2)
	}

	// Samples must round-trip untouched.
	first := int16(binary.LittleEndian.Uint16(out[wavHeaderSize:]))
	if first != samples[0] {
		t.Errorf("first sample = %d, want %d", first, samples[0])
	}
}

func TestWavEncoderEmpty(t *testing.T) {
	enc := NewWav()
	if err := enc.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	out := enc.Bytes()
	if len(out) != wavHeaderSize {
		t.Errorf("empty output size = %d, want header only (%d)", len(out), wavHeaderSize)
	}
	if dataSize := binary.LittleEndian.Uint32(out[40:44]); dataSize != 0 {
		t.Errorf("header data size = %d, want 0", dataSize)
	}
}
