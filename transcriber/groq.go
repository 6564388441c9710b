package transcriber

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
)

const (
	groqEndpoint = "https://api.groq.com/openai/v1/audio/transcriptions"
	groqModel    = "whisper-large-v3-turbo"
)

// Groq transcribes batch uploads through Groq's whisper endpoint. It is
// the fastest batch backend but has no streaming mode.
type Groq struct {
	baseTranscriber
	apiKey string
}

func NewGroq(apiKey string) *Groq {
	return &Groq{
		baseTranscriber: baseTranscriber{
			client: NewTracedClient(groqEndpoint),
			apiURL: groqEndpoint,
		},
		apiKey: apiKey,
	}
}

func (g *Groq) Name() string { return "groq" }

func (g *Groq) NewSession(_ context.Context, cfg SessionConfig) (Session, error) {
	go g.client.Warm()
	if cfg.Stream {
		return nil, fmt.Errorf("groq does not support streaming transcription")
	}
	if cfg.Language != "" {
		g.SetLanguage(cfg.Language)
	}
	return newBatchSession(cfg, g.transcribe)
}

// verbose_json response shape. Segment probabilities feed the confidence
// heuristics; plain json omits them.
type groqResponse struct {
	Text     string        `json:"text"`
	Duration float64       `json:"duration"`
	Segments []groqSegment `json:"segments"`
}

type groqSegment struct {
	Text             string  `json:"text"`
	Start            float64 `json:"start"`
	End              float64 `json:"end"`
	NoSpeechProb     float64 `json:"no_speech_prob"`
	AvgLogProb       float64 `json:"avg_logprob"`
	CompressionRatio float64 `json:"compression_ratio"`
	Temperature      float64 `json:"temperature"`
}

func (g *Groq) transcribe(audioData []byte, format string) (*Result, error) {
	body, contentType, err := g.buildUpload(audioData, format)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequest("POST", g.apiURL, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+g.apiKey)
	req.Header.Set("Content-Type", contentType)

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != 200 {
		return nil, fmt.Errorf("groq API error %d: %s", resp.StatusCode, string(resp.Body))
	}

	var parsed groqResponse
	if err := json.Unmarshal(resp.Body, &parsed); err != nil {
		return nil, fmt.Errorf("groq response parse error: %w", err)
	}

	res := &Result{
		Text:     parsed.Text,
		Duration: parsed.Duration,
		Metrics:  resp.Metrics,
		RateLimit: firstNonEmpty(resp.Header, "x-ratelimit-remaining-requests") +
			"/" + firstNonEmpty(resp.Header, "x-ratelimit-limit-requests"),
	}
	g.fillSegments(res, parsed.Segments)
	return res, nil
}

// buildUpload assembles the multipart form: the audio file plus the model
// parameters. The filename extension tells the API how to decode.
func (g *Groq) buildUpload(audioData []byte, format string) (*bytes.Buffer, string, error) {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)

	part, err := w.CreateFormFile("file", "audio."+format)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(audioData); err != nil {
		return nil, "", err
	}

	w.WriteField("model", groqModel)
	w.WriteField("response_format", "verbose_json")
	if g.lang != "" {
		w.WriteField("language", g.lang)
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &body, w.FormDataContentType(), nil
}

// fillSegments folds per-segment whisper stats into the result: worst-case
// no-speech probability, mean log probability.
func (g *Groq) fillSegments(res *Result, segs []groqSegment) {
	if len(segs) == 0 {
		return
	}
	var logProbSum float64
	for _, seg := range segs {
		if seg.NoSpeechProb > res.NoSpeechProb {
			res.NoSpeechProb = seg.NoSpeechProb
		}
		logProbSum += seg.AvgLogProb
		res.Segments = append(res.Segments, Segment{
			Text:             seg.Text,
			NoSpeechProb:     seg.NoSpeechProb,
			AvgLogProb:       seg.AvgLogProb,
			CompressionRatio: seg.CompressionRatio,
			Temperature:      seg.Temperature,
			Start:            seg.Start,
			End:              seg.End,
		})
	}
	res.AvgLogProb = logProbSum / float64(len(segs))
}
