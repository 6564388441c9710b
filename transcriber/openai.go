package transcriber

import (
	"bytes"
	"context"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAI transcribes through the official audio endpoint using the
// go-openai SDK. The SDK owns the HTTP client, so only the total request
// time lands in NetworkMetrics; the per-phase breakdown stays zero.
type OpenAI struct {
	client *openai.Client
	lang   string
}

func NewOpenAI(apiKey string) *OpenAI {
	return &OpenAI{client: openai.NewClient(apiKey)}
}

func (o *OpenAI) Name() string { return "openai" }

func (o *OpenAI) SetLanguage(lang string) { o.lang = lang }

func (o *OpenAI) GetLanguage() string { return o.lang }

func (o *OpenAI) NewSession(_ context.Context, cfg SessionConfig) (Session, error) {
	if cfg.Stream {
		return nil, fmt.Errorf("openai does not support streaming transcription")
	}
	if cfg.Language != "" {
		o.SetLanguage(cfg.Language)
	}
	return newBatchSession(cfg, o.transcribe)
}

func (o *OpenAI) transcribe(audioData []byte, format string) (*Result, error) {
	req := openai.AudioRequest{
		Model:    "gpt-4o-transcribe",
		FilePath: "audio." + format,
		Reader:   bytes.NewReader(audioData),
		Format:   openai.AudioResponseFormatJSON,
		Language: o.lang,
	}

	start := time.Now()
	resp, err := o.client.CreateTranscription(context.Background(), req)
	elapsed := time.Since(start)
	if err != nil {
		return nil, fmt.Errorf("openai transcription: %w", err)
	}

	return &Result{
		Text: resp.Text,
		Metrics: &NetworkMetrics{
			TTFB:  elapsed,
			Total: elapsed,
		},
		Duration: resp.Duration,
	}, nil
}
