// Package encoder turns captured PCM into upload payloads. Two concrete
// encoders exist, WAV (raw, zero encode cost) and FLAC (lossless, roughly
// half the size), plus an adaptive wrapper that feeds both and picks one
// by payload size when the recording closes.
package encoder

import "time"

const (
	SampleRate    = 16000
	Channels      = 1
	BitsPerSample = 16
	BlockSize     = 4096
)

type Encoder interface {
	EncodeBlock(block []int16) error
	Close() error
	Bytes() []byte
	TotalFrames() uint64
	AddEncodeTime(d time.Duration)
	EncodeTime() time.Duration
}
