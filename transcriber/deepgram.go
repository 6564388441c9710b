package transcriber

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

const deepgramBatchURL = "https://api.deepgram.com/v1/listen?model=nova-3"

// Deepgram is the only provider that does both batch uploads and realtime
// streaming over a websocket. Batch requests go through the shared
// TracedClient; the stream path lives in deepgram_stream.go.
type Deepgram struct {
	baseTranscriber
	apiKey string
}

func NewDeepgram(apiKey string) *Deepgram {
	return &Deepgram{
		baseTranscriber: baseTranscriber{
			client: NewTracedClient("https://api.deepgram.com"),
			apiURL: deepgramBatchURL,
		},
		apiKey: apiKey,
	}
}

func (d *Deepgram) Name() string { return "deepgram" }

func (d *Deepgram) NewSession(ctx context.Context, cfg SessionConfig) (Session, error) {
	if cfg.Language != "" {
		d.SetLanguage(cfg.Language)
	}
	if cfg.Stream {
		return newStreamSession(func() (rawStreamSession, error) {
			return d.startStream(ctx, streamSessionConfig{
				SampleRate: 16000,
				Channels:   1,
				Language:   d.lang,
			})
		}), nil
	}
	go d.client.Warm()
	return newBatchSession(cfg, d.transcribe)
}

type deepgramResponse struct {
	Metadata struct {
		Duration float64 `json:"duration"`
		Channels int     `json:"channels"`
	} `json:"metadata"`
	Results struct {
		Channels []struct {
			Alternatives []struct {
				Transcript string  `json:"transcript"`
				Confidence float64 `json:"confidence"`
			} `json:"alternatives"`
		} `json:"channels"`
	} `json:"results"`
}

// transcribe posts the encoded clip as a raw body. Deepgram sniffs WAV
// containers on its own but FLAC needs the explicit content type.
func (d *Deepgram) transcribe(audioData []byte, format string) (*Result, error) {
	contentType := "audio/wav"
	if format == "flac" {
		contentType = "audio/flac"
	}

	url := d.apiURL
	if d.lang != "" {
		url += "&language=" + d.lang
	}

	req, err := http.NewRequest("POST", url, bytes.NewReader(audioData))
	if err != nil {
		return nil, err
	}

	req.Header.Set("Authorization", "Token "+d.apiKey)
	req.Header.Set("Content-Type", contentType)

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != 200 {
		return nil, fmt.Errorf("deepgram API error %d: %s", resp.StatusCode, string(resp.Body))
	}

	var dgResp deepgramResponse
	if err := json.Unmarshal(resp.Body, &dgResp); err != nil {
		return nil, fmt.Errorf("deepgram response parse error: %w", err)
	}

	var text string
	var confidence float64
	if len(dgResp.Results.Channels) > 0 && len(dgResp.Results.Channels[0].Alternatives) > 0 {
		alt := dgResp.Results.Channels[0].Alternatives[0]
		text = alt.Transcript
		confidence = alt.Confidence
	}

	remaining := firstNonEmpty(resp.Header,
		"x-dg-ratelimit-remaining", "x-ratelimit-remaining", "ratelimit-remaining")
	limit := firstNonEmpty(resp.Header,
		"x-dg-ratelimit-limit", "x-ratelimit-limit", "ratelimit-limit")

	return &Result{
		Text:       text,
		Metrics:    resp.Metrics,
		RateLimit:  remaining + "/" + limit,
		Confidence: confidence,
		Duration:   dgResp.Metadata.Duration,
	}, nil
}
