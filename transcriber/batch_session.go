package transcriber

import (
	"encoding/binary"
	"fmt"
	"strings"
	"sync"
	"time"

	"sotto/encoder"
)

// adaptiveWavLimit is the payload size above which the adaptive encoder
// switches from raw WAV to FLAC. Roughly 30 s of 16 kHz mono audio.
const adaptiveWavLimit = 1 << 20

type transcribeFunc func(audio []byte, format string) (*Result, error)

// batchSession buffers PCM into encoder blocks on a worker goroutine while
// the recording runs, then uploads the whole encoded clip on Close.
type batchSession struct {
	cfg        SessionConfig
	transcribe transcribeFunc
	encoder    encoder.Encoder
	updates    chan Update
	blockChan  chan []int16
	encodeDone chan struct{}
	sampleBuf  []int16
	bufMu      sync.Mutex

	// Set once by finalize; read by every Close attempt after.
	finalizeOnce sync.Once
	finalizeErr  error
	audioData    []byte
	apiFormat    string
}

func newEncoder(format string) (encoder.Encoder, error) {
	switch format {
	case "wav":
		return encoder.NewWav(), nil
	case "flac":
		return encoder.NewFlac()
	case "adaptive":
		return encoder.NewAdaptive()
	default:
		return nil, fmt.Errorf("unknown format %q", format)
	}
}

func newBatchSession(cfg SessionConfig, transcribe transcribeFunc) (*batchSession, error) {
	enc, err := newEncoder(cfg.Format)
	if err != nil {
		return nil, err
	}
	bs := &batchSession{
		cfg:        cfg,
		transcribe: transcribe,
		encoder:    enc,
		updates:    make(chan Update),
		blockChan:  make(chan []int16, 64),
		encodeDone: make(chan struct{}),
	}
	go bs.runEncoder()
	return bs, nil
}

// runEncoder compresses capture blocks as they arrive, so the upload on
// Close only has the sub-block tail left to encode.
func (bs *batchSession) runEncoder() {
	defer close(bs.encodeDone)
	for block := range bs.blockChan {
		start := time.Now()
		bs.encoder.EncodeBlock(block)
		bs.encoder.AddEncodeTime(time.Since(start))
	}
}

func (bs *batchSession) Feed(pcm []byte) {
	samples := make([]int16, 0, len(pcm)/2)
	for i := 0; i+1 < len(pcm); i += 2 {
		samples = append(samples, int16(binary.LittleEndian.Uint16(pcm[i:])))
	}

	bs.bufMu.Lock()
	bs.sampleBuf = append(bs.sampleBuf, samples...)
	blocks := bs.takeBlocks()
	bs.bufMu.Unlock()

	for _, block := range blocks {
		bs.blockChan <- block
	}
}

// takeBlocks splits full encoder blocks off the sample buffer. Caller
// holds bufMu.
func (bs *batchSession) takeBlocks() [][]int16 {
	var blocks [][]int16
	for len(bs.sampleBuf) >= encoder.BlockSize {
		block := make([]int16, encoder.BlockSize)
		copy(block, bs.sampleBuf[:encoder.BlockSize])
		bs.sampleBuf = bs.sampleBuf[encoder.BlockSize:]
		blocks = append(blocks, block)
	}
	return blocks
}

func (bs *batchSession) Updates() <-chan Update {
	return bs.updates
}

// finalize drains the encode worker and fixes the upload payload. It runs
// exactly once no matter how many Close attempts follow.
func (bs *batchSession) finalize() {
	bs.bufMu.Lock()
	if len(bs.sampleBuf) > 0 {
		partial := make([]int16, len(bs.sampleBuf))
		copy(partial, bs.sampleBuf)
		bs.blockChan <- partial
	}
	bs.bufMu.Unlock()

	close(bs.blockChan)
	<-bs.encodeDone
	close(bs.updates)

	if err := bs.encoder.Close(); err != nil {
		bs.finalizeErr = err
		return
	}

	bs.apiFormat = bs.cfg.Format
	if ae, ok := bs.encoder.(*encoder.AdaptiveEncoder); ok {
		ae.Select(adaptiveWavLimit)
		bs.apiFormat = ae.Format()
	}
	bs.audioData = bs.encoder.Bytes()
}

// clipStats are the encode-side numbers for one finished recording.
type clipStats struct {
	rawSize     uint64
	encodedSize uint64
	savedPct    float64
	audioS      float64
}

func (bs *batchSession) clip() clipStats {
	c := clipStats{
		rawSize:     bs.encoder.TotalFrames() * 2,
		encodedSize: uint64(len(bs.audioData)),
		audioS:      float64(bs.encoder.TotalFrames()) / float64(encoder.SampleRate),
	}
	if c.rawSize > 0 {
		c.savedPct = (1.0 - float64(c.encodedSize)/float64(c.rawSize)) * 100
	}
	return c
}

// Close uploads the encoded clip. Calling it again after an error or a
// timeout re-attempts the upload with the same audio; concurrent attempts
// are safe.
func (bs *batchSession) Close() (SessionResult, error) {
	bs.finalizeOnce.Do(bs.finalize)
	if bs.finalizeErr != nil {
		return SessionResult{}, bs.finalizeErr
	}

	result, err := bs.transcribe(bs.audioData, bs.apiFormat)
	if err != nil {
		return SessionResult{}, err
	}

	text := strings.TrimSpace(result.Text)
	c := bs.clip()
	net := result.Metrics

	sr := SessionResult{
		Text:      text,
		HasText:   text != "",
		NoSpeech:  text == "",
		RateLimit: result.RateLimit,
		Batch: &BatchStats{
			AudioLengthS:     c.audioS,
			RawSizeKB:        float64(c.rawSize) / 1024,
			CompressedSizeKB: float64(c.encodedSize) / 1024,
			CompressionPct:   c.savedPct,
			EncodeTimeMs:     float64(bs.encoder.EncodeTime().Milliseconds()),
			DNSTimeMs:        float64(net.DNS.Milliseconds()),
			TLSTimeMs:        float64(net.TLS.Milliseconds()),
			TTFBMs:           float64(net.TTFB.Milliseconds()),
			TotalTimeMs:      float64(net.Sum().Milliseconds()),
			ConnReused:       net.ConnReused,
			TLSProtocol:      net.TLSProtocol,
			Confidence:       result.Confidence,
		},
		Metrics: bs.formatMetrics(c, result),
	}
	sr.captureMemStats()
	return sr, nil
}

func (bs *batchSession) formatMetrics(c clipStats, result *Result) []string {
	net := result.Metrics

	reusedStatus := ""
	if net.ConnReused {
		reusedStatus = " (reused)"
	}

	lines := []string{
		fmt.Sprintf("audio:      %.1fs | %.1f KB → %.1f KB (%.0f%% smaller)",
			c.audioS, float64(c.rawSize)/1024, float64(c.encodedSize)/1024, c.savedPct),
		fmt.Sprintf("format:     %s", bs.apiFormat),
		fmt.Sprintf("encode:     %dms (concurrent)", bs.encoder.EncodeTime().Milliseconds()),
		fmt.Sprintf("conn_wait:  %dms%s", net.ConnWait.Milliseconds(), reusedStatus),
		fmt.Sprintf("dns:        %dms", net.DNS.Milliseconds()),
		fmt.Sprintf("tcp:        %dms", net.TCP.Milliseconds()),
		fmt.Sprintf("tls:        %dms", net.TLS.Milliseconds()),
		fmt.Sprintf("req_head:   %dms", net.ReqHeaders.Milliseconds()),
		fmt.Sprintf("req_body:   %dms", net.ReqBody.Milliseconds()),
		fmt.Sprintf("ttfb:       %dms", net.TTFB.Milliseconds()),
		fmt.Sprintf("download:   %dms", net.Download.Milliseconds()),
		fmt.Sprintf("total:      %dms", net.Sum().Milliseconds()),
	}
	if result.Duration > 0 {
		lines = append(lines, fmt.Sprintf("api_dur:    %.2fs", result.Duration))
	}
	if result.Confidence > 0 {
		lines = append(lines, fmt.Sprintf("confidence: %.4f", result.Confidence))
	}
	return lines
}
