package encoder

import (
	"sync"
	"time"
)

// AdaptiveEncoder feeds every block to both concrete encoders and decides
// at the end which payload to upload. Short clips ship as plain WAV, no
// decode risk and nothing to amortize; once the raw payload would blow the
// size threshold the FLAC rendition wins.
type AdaptiveEncoder struct {
	wav         *WavEncoder
	flac        *FlacEncoder
	chosen      string // "wav" or "flac"
	totalFrames uint64
	mu          sync.Mutex
}

func NewAdaptive() (*AdaptiveEncoder, error) {
	flac, err := NewFlac()
	if err != nil {
		return nil, err
	}
	return &AdaptiveEncoder{
		wav:    NewWav(),
		flac:   flac,
		chosen: "wav",
	}, nil
}

func (e *AdaptiveEncoder) EncodeBlock(block []int16) error {
	e.mu.Lock()
	e.totalFrames += uint64(len(block))
	e.mu.Unlock()

	// Fan out to both encoders concurrently
	var wg sync.WaitGroup
	wg.Add(2)
	go func() { defer wg.Done(); e.wav.EncodeBlock(block) }()
	go func() { defer wg.Done(); e.flac.EncodeBlock(block) }()
	wg.Wait()
	return nil
}

func (e *AdaptiveEncoder) Close() error {
	var wg sync.WaitGroup
	wg.Add(2)
	go func() { defer wg.Done(); e.wav.Close() }()
	go func() { defer wg.Done(); e.flac.Close() }()
	wg.Wait()
	return nil
}

// Select fixes the uploaded format. WAV within the threshold wins; above
// it the FLAC rendition is used.
func (e *AdaptiveEncoder) Select(threshold int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.wav.Bytes()) <= threshold {
		e.chosen = "wav"
	} else {
		e.chosen = "flac"
	}
}

func (e *AdaptiveEncoder) Bytes() []byte {
	e.mu.Lock()
	chosen := e.chosen
	e.mu.Unlock()
	if chosen == "flac" {
		return e.flac.Bytes()
	}
	return e.wav.Bytes()
}

// Format returns "wav" or "flac", the content type tag the transcription
// APIs expect.
func (e *AdaptiveEncoder) Format() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.chosen
}

// AllSizes returns both encoded sizes for display and diagnostics.
func (e *AdaptiveEncoder) AllSizes() (wav, flac int) {
	return len(e.wav.Bytes()), len(e.flac.Bytes())
}

func (e *AdaptiveEncoder) TotalFrames() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.totalFrames
}

func (e *AdaptiveEncoder) AddEncodeTime(d time.Duration) {
	// Sub-encoders track their own time; this is a no-op for adaptive
}

func (e *AdaptiveEncoder) EncodeTime() time.Duration {
	t := e.wav.EncodeTime()
	if ft := e.flac.EncodeTime(); ft > t {
		t = ft
	}
	return t
}
