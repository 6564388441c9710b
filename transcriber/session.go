package transcriber

import "runtime"

// Session is one recording worth of transcription. Feed is called from the
// capture callback with raw PCM; Updates carries live hypotheses for
// streaming providers (closed on Close); Close flushes everything and
// returns the final result. Close tolerates repeated calls: batch sessions
// re-attempt the upload with the already-encoded audio, streaming sessions
// return the first result again.
type Session interface {
	Feed(pcm []byte)
	Updates() <-chan Update
	Close() (SessionResult, error)
}

// Update is one live transcript hypothesis. Final marks text the provider
// has committed; non-final text may still be rewritten by later updates.
type Update struct {
	Text  string
	Final bool
}

type SessionConfig struct {
	Stream   bool
	Format   string // "wav"|"flac"|"adaptive" (batch only; ignored for streaming)
	Language string
}

type SessionResult struct {
	Text          string
	HasText       bool
	NoSpeech      bool
	RateLimit     string // "remaining/limit" or empty
	MemoryAllocMB float64
	MemoryPeakMB  float64
	Batch         *BatchStats  // non-nil for batch sessions
	Stream        *StreamStats // non-nil for stream sessions
	Metrics       []string     // pre-formatted lines for TUI
}

// BatchStats describes one upload: the clip, the encoding and the network
// phases of the request that carried it.
type BatchStats struct {
	AudioLengthS     float64
	RawSizeKB        float64
	CompressedSizeKB float64
	CompressionPct   float64
	EncodeTimeMs     float64
	DNSTimeMs        float64
	TLSTimeMs        float64
	TTFBMs           float64
	TotalTimeMs      float64
	ConnReused       bool
	TLSProtocol      string
	Confidence       float64
}

// StreamStats describes one websocket session end to end.
type StreamStats struct {
	ConnectMs    float64
	SentChunks   int
	SentKB       float64
	RecvMessages int
	RecvFinal    int
	RecvInterim  int
	CommitEvents int
	FinalizeMs   float64
	TotalMs      float64
	AudioS       float64
}

func (r *SessionResult) captureMemStats() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	r.MemoryAllocMB = float64(m.Alloc) / 1024 / 1024
	r.MemoryPeakMB = float64(m.TotalAlloc) / 1024 / 1024
}
