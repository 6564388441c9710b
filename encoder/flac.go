package encoder

import (
	"bytes"
	"fmt"
	"sync"
	"time"

	"github.com/mewkiz/flac"
	"github.com/mewkiz/flac/frame"
	"github.com/mewkiz/flac/meta"
)

// FlacEncoder streams mono S16 blocks into an in-memory FLAC file.
// Prediction analysis is enabled so speech compresses to roughly half
// the raw size, which matters for upload latency on slow links.
type FlacEncoder struct {
	mu          sync.Mutex
	out         bytes.Buffer
	w           *flac.Encoder
	totalFrames uint64
	encodeTime  time.Duration
}

func NewFlac() (*FlacEncoder, error) {
	e := &FlacEncoder{}
	w, err := flac.NewEncoder(&e.out, &meta.StreamInfo{
		BlockSizeMin:  BlockSize,
		BlockSizeMax:  BlockSize,
		SampleRate:    SampleRate,
		NChannels:     Channels,
		BitsPerSample: BitsPerSample,
	})
	if err != nil {
		return nil, fmt.Errorf("creating flac encoder: %w", err)
	}
	w.EnablePredictionAnalysis(true)
	e.w = w
	return e, nil
}

// monoFrame wraps one capture block as a single-subframe FLAC frame.
// The encoder picks the actual predictor; PredVerbatim is just the
// subframe's starting point.
func monoFrame(block []int16) *frame.Frame {
	samples := make([]int32, len(block))
	for i := range block {
		samples[i] = int32(block[i])
	}
	return &frame.Frame{
		Header: frame.Header{
			BlockSize:     uint16(len(block)),
			SampleRate:    SampleRate,
			Channels:      frame.ChannelsMono,
			BitsPerSample: BitsPerSample,
		},
		Subframes: []*frame.Subframe{{
			SubHeader: frame.SubHeader{Pred: frame.PredVerbatim},
			Samples:   samples,
			NSamples:  len(block),
		}},
	}
}

func (e *FlacEncoder) EncodeBlock(block []int16) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.w.WriteFrame(monoFrame(block)); err != nil {
		return fmt.Errorf("writing flac frame: %w", err)
	}
	e.totalFrames += uint64(len(block))
	return nil
}

func (e *FlacEncoder) Close() error {
	return e.w.Close()
}

func (e *FlacEncoder) Bytes() []byte {
	return e.out.Bytes()
}

func (e *FlacEncoder) TotalFrames() uint64 {
	return e.totalFrames
}

func (e *FlacEncoder) AddEncodeTime(d time.Duration) {
	e.mu.Lock()
	e.encodeTime += d
	e.mu.Unlock()
}

func (e *FlacEncoder) EncodeTime() time.Duration {
	return e.encodeTime
}
