// Package transcriber converts recorded speech to text through hosted
// APIs. Three providers are wired in: Groq and OpenAI for batch whisper
// transcription, Deepgram for batch and realtime streaming. A session is
// fed raw PCM while recording and closed to obtain the final text.
package transcriber

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"
)

type NetworkMetrics struct {
	DNS         time.Duration
	ConnWait    time.Duration
	TCP         time.Duration
	TLS         time.Duration
	ReqHeaders  time.Duration
	ReqBody     time.Duration
	TTFB        time.Duration
	Download    time.Duration
	Total       time.Duration
	ConnReused  bool
	TLSProtocol string
}

func (m *NetworkMetrics) Sum() time.Duration {
	return m.ConnWait + m.DNS + m.TCP + m.TLS + m.ReqHeaders + m.ReqBody + m.TTFB + m.Download
}

func firstNonEmpty(h http.Header, keys ...string) string {
	for _, k := range keys {
		if v := h.Get(k); v != "" {
			return v
		}
	}
	return "?"
}

type Segment struct {
	Text             string
	NoSpeechProb     float64
	AvgLogProb       float64
	CompressionRatio float64
	Temperature      float64
	Start            float64
	End              float64
}

type Result struct {
	Text         string
	Metrics      *NetworkMetrics
	RateLimit    string
	Confidence   float64
	NoSpeechProb float64
	AvgLogProb   float64
	Duration     float64
	Segments     []Segment
}

type Transcriber interface {
	Name() string
	SetLanguage(lang string)
	GetLanguage() string
	NewSession(ctx context.Context, cfg SessionConfig) (Session, error)
}

type baseTranscriber struct {
	client *TracedClient
	apiURL string
	lang   string
}

func (b *baseTranscriber) SetLanguage(lang string) { b.lang = lang }

func (b *baseTranscriber) GetLanguage() string { return b.lang }

// Providers in preference order when several API keys are present.
var Providers = []string{"deepgram", "groq", "openai"}

// New picks the provider from the environment. Deepgram wins when several
// keys are set because it is the only one that can stream.
func New() (Transcriber, error) {
	if key := os.Getenv("DEEPGRAM_API_KEY"); key != "" {
		return NewDeepgram(key), nil
	}
	if key := os.Getenv("GROQ_API_KEY"); key != "" {
		return NewGroq(key), nil
	}
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		return NewOpenAI(key), nil
	}
	return nil, fmt.Errorf("set DEEPGRAM_API_KEY, GROQ_API_KEY or OPENAI_API_KEY environment variable")
}

// NewByName constructs a specific provider, for config or tray driven
// selection. Returns an error when the matching API key is missing.
func NewByName(name string) (Transcriber, error) {
	switch name {
	case "deepgram":
		if key := os.Getenv("DEEPGRAM_API_KEY"); key != "" {
			return NewDeepgram(key), nil
		}
		return nil, fmt.Errorf("DEEPGRAM_API_KEY not set")
	case "groq":
		if key := os.Getenv("GROQ_API_KEY"); key != "" {
			return NewGroq(key), nil
		}
		return nil, fmt.Errorf("GROQ_API_KEY not set")
	case "openai":
		if key := os.Getenv("OPENAI_API_KEY"); key != "" {
			return NewOpenAI(key), nil
		}
		return nil, fmt.Errorf("OPENAI_API_KEY not set")
	case "fake":
		return NewFake(os.Getenv("SOTTO_FAKE_TEXT"), nil), nil
	default:
		return nil, fmt.Errorf("unknown provider %q", name)
	}
}

