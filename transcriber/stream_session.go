package transcriber

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"sotto/encoder"
	"sotto/log"
)

const (
	streamChunkMs      = 200
	streamChunkBytes   = encoder.SampleRate * encoder.Channels * (encoder.BitsPerSample / 8) * streamChunkMs / 1000
	streamFinalizeIdle = 200 * time.Millisecond
	streamFinalizeMax  = 1000 * time.Millisecond
	streamDrainMax     = 2 * time.Second
)

// rawStreamSession is the transport under streamSession: a connected
// socket that accepts PCM frames and yields transcript updates.
type rawStreamSession interface {
	Send(pcm []byte) error
	CloseSend() error
	Recv() (streamUpdate, error)
	Close() error
}

type streamUpdate struct {
	Transcript   string
	IsFinal      bool
	SpeechFinal  bool
	FromFinalize bool
}

func (u streamUpdate) final() bool {
	return u.IsFinal || u.SpeechFinal || u.FromFinalize
}

// streamSession pumps PCM chunks to a websocket transport while collecting
// transcript updates. Finalized segments accumulate into committed text; the
// updates channel additionally carries interim hypotheses so the UI can show
// words as they are spoken. Only the Close result is authoritative.
type streamSession struct {
	ws        rawStreamSession
	committed string
	audioCh   chan []byte
	updates   chan Update
	startedAt time.Time
	connected chan struct{} // closed when WebSocket is ready (or failed)

	sendDone      chan struct{}
	recvDone      chan struct{}
	finalized     chan struct{}
	finalizedOnce sync.Once

	closeOnce   sync.Once
	closeResult SessionResult
	closeErr    error

	feedBuf []byte
	feedMu  sync.Mutex

	mu      sync.Mutex
	err     error
	errOnce sync.Once
	closing bool
	stats   streamStats
}

type streamStats struct {
	ConnectDur   time.Duration
	SentChunks   int
	SentBytes    uint64
	RecvMessages int
	RecvFinal    int
	RecvInterim  int
	CommitEvents int
	FinalizeWait time.Duration
	SessionDur   time.Duration
}

func (s streamStats) audioDuration() float64 {
	return float64(s.SentBytes) / float64(encoder.SampleRate*encoder.Channels*(encoder.BitsPerSample/8))
}

func (s streamStats) report() []string {
	return []string{
		fmt.Sprintf("audio:      %.1fs | %.1f KB PCM sent", s.audioDuration(), float64(s.SentBytes)/1024),
		fmt.Sprintf("stream:     deepgram | PCM16 %dHz mono | %dms chunks", encoder.SampleRate, streamChunkMs),
		fmt.Sprintf("connect:    %dms", s.ConnectDur.Milliseconds()),
		fmt.Sprintf("sent:       %d chunks | %.1f KB", s.SentChunks, float64(s.SentBytes)/1024),
		fmt.Sprintf("recv:       %d msgs (%d final, %d interim)", s.RecvMessages, s.RecvFinal, s.RecvInterim),
		fmt.Sprintf("commit:     %d updates", s.CommitEvents),
		fmt.Sprintf("finalize:   %dms", s.FinalizeWait.Milliseconds()),
		fmt.Sprintf("total:      %dms", s.SessionDur.Milliseconds()),
	}
}

// newStreamSession returns immediately; the dial runs on its own goroutine
// so capture can start while the handshake is in flight. Feed buffers until
// the pumps come up.
func newStreamSession(dial func() (rawStreamSession, error)) *streamSession {
	ss := &streamSession{
		audioCh:   make(chan []byte, 128),
		updates:   make(chan Update, 16),
		startedAt: time.Now(),
		sendDone:  make(chan struct{}),
		recvDone:  make(chan struct{}),
		finalized: make(chan struct{}),
		connected: make(chan struct{}),
	}
	go ss.connect(dial)
	return ss
}

func (s *streamSession) connect(dial func() (rawStreamSession, error)) {
	started := time.Now()
	ws, err := dial()
	s.mu.Lock()
	s.stats.ConnectDur = time.Since(started)
	s.mu.Unlock()

	if err != nil {
		s.errOnce.Do(func() {
			s.mu.Lock()
			s.err = err
			s.mu.Unlock()
		})
		close(s.sendDone)
		close(s.recvDone)
		close(s.connected)
		return
	}

	s.ws = ws
	close(s.connected)
	go s.runSender()
	go s.runReceiver()
}

func (s *streamSession) Feed(pcm []byte) {
	s.mu.Lock()
	if s.err != nil {
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	s.feedMu.Lock()
	s.feedBuf = append(s.feedBuf, pcm...)
	var chunks [][]byte
	for len(s.feedBuf) >= streamChunkBytes {
		chunk := make([]byte, streamChunkBytes)
		copy(chunk, s.feedBuf[:streamChunkBytes])
		s.feedBuf = s.feedBuf[streamChunkBytes:]
		chunks = append(chunks, chunk)
	}
	s.feedMu.Unlock()

	// Channel sends happen outside feedMu so a full queue cannot deadlock
	// a concurrent flush.
	for _, chunk := range chunks {
		s.audioCh <- chunk
	}
}

func (s *streamSession) Updates() <-chan Update {
	return s.updates
}

// pushUpdate never blocks; a slow consumer loses intermediate display
// states, not committed text.
func (s *streamSession) pushUpdate(u Update) {
	select {
	case s.updates <- u:
	default:
	}
}

// Close tears the socket down once; repeated calls return the first
// result. A streaming failure has nothing left to retry.
func (s *streamSession) Close() (SessionResult, error) {
	s.closeOnce.Do(func() {
		s.closeResult, s.closeErr = s.doClose()
	})
	return s.closeResult, s.closeErr
}

func (s *streamSession) doClose() (SessionResult, error) {
	<-s.connected

	s.mu.Lock()
	connErr := s.err
	s.mu.Unlock()
	if connErr != nil {
		return s.abortClose(connErr)
	}

	s.flushTail()
	close(s.audioCh)
	finalizeStart := time.Now()

	<-s.sendDone

	// Give the server a chance to acknowledge the finalize, then a short
	// quiet period for the flushed transcript to arrive.
	select {
	case <-s.finalized:
		time.Sleep(streamFinalizeIdle)
	case <-time.After(streamFinalizeMax):
	}

	s.mu.Lock()
	s.closing = true
	s.mu.Unlock()
	s.ws.Close()
	select {
	case <-s.recvDone:
	case <-time.After(streamDrainMax):
		log.Warn("stream receiver drain timeout")
	}

	// The consumer must see the final text even if the last non-blocking
	// send was dropped.
	s.mu.Lock()
	finalText := s.committed
	s.mu.Unlock()
	if finalText != "" {
		s.pushUpdate(Update{Text: finalText, Final: true})
	}
	close(s.updates)

	return s.buildResult(finalizeStart)
}

// abortClose is the teardown for a session whose dial never succeeded.
// The audio queue is drained so a Feed blocked on it can return.
func (s *streamSession) abortClose(connErr error) (SessionResult, error) {
	go func() {
		for range s.audioCh {
		}
	}()
	s.feedMu.Lock()
	s.feedBuf = nil
	s.feedMu.Unlock()
	close(s.audioCh)
	<-s.sendDone
	<-s.recvDone
	close(s.updates)
	return SessionResult{NoSpeech: true}, connErr
}

// flushTail pushes whatever partial chunk is still buffered.
func (s *streamSession) flushTail() {
	s.feedMu.Lock()
	defer s.feedMu.Unlock()
	if len(s.feedBuf) == 0 {
		return
	}
	tail := make([]byte, len(s.feedBuf))
	copy(tail, s.feedBuf)
	s.feedBuf = nil
	s.audioCh <- tail
}

func (s *streamSession) buildResult(finalizeStart time.Time) (SessionResult, error) {
	s.mu.Lock()
	text := s.committed
	stats := s.stats
	stats.FinalizeWait = time.Since(finalizeStart)
	stats.SessionDur = time.Since(s.startedAt)
	sessionErr := s.err
	s.mu.Unlock()

	cleanText := strings.TrimSpace(text)
	sr := SessionResult{
		Text:     cleanText,
		HasText:  cleanText != "",
		NoSpeech: cleanText == "",
		Metrics:  stats.report(),
		Stream: &StreamStats{
			ConnectMs:    float64(stats.ConnectDur.Milliseconds()),
			SentChunks:   stats.SentChunks,
			SentKB:       float64(stats.SentBytes) / 1024,
			RecvMessages: stats.RecvMessages,
			RecvFinal:    stats.RecvFinal,
			RecvInterim:  stats.RecvInterim,
			CommitEvents: stats.CommitEvents,
			FinalizeMs:   float64(stats.FinalizeWait.Milliseconds()),
			TotalMs:      float64(stats.SessionDur.Milliseconds()),
			AudioS:       stats.audioDuration(),
		},
	}
	sr.captureMemStats()
	return sr, sessionErr
}

func (s *streamSession) runSender() {
	defer close(s.sendDone)
	for chunk := range s.audioCh {
		if err := s.ws.Send(chunk); err != nil {
			s.setErr(err)
			return
		}
		s.mu.Lock()
		s.stats.SentChunks++
		s.stats.SentBytes += uint64(len(chunk))
		s.mu.Unlock()
	}
	if err := s.ws.CloseSend(); err != nil {
		s.setErr(err)
	}
}

func (s *streamSession) runReceiver() {
	defer close(s.recvDone)
	for {
		update, err := s.ws.Recv()
		if err != nil {
			s.mu.Lock()
			closing := s.closing
			s.mu.Unlock()
			if !closing {
				s.setErr(err)
			}
			return
		}

		if update.FromFinalize {
			s.finalizedOnce.Do(func() { close(s.finalized) })
		}

		isFinal := update.final()
		s.mu.Lock()
		s.stats.RecvMessages++
		if isFinal {
			s.stats.RecvFinal++
		} else {
			s.stats.RecvInterim++
		}
		s.mu.Unlock()

		transcript := strings.TrimSpace(update.Transcript)
		if transcript == "" {
			continue
		}
		if isFinal {
			s.commit(transcript)
		} else {
			s.showInterim(transcript)
		}
	}
}

// commit appends a finalized segment and surfaces the full committed text.
func (s *streamSession) commit(transcript string) {
	s.mu.Lock()
	if s.committed != "" {
		s.committed += " " + transcript
	} else {
		s.committed = transcript
	}
	s.stats.CommitEvents++
	fullText := s.committed
	s.mu.Unlock()
	s.pushUpdate(Update{Text: fullText, Final: true})
}

// showInterim surfaces an in-flight hypothesis appended to the committed
// text, without committing anything.
func (s *streamSession) showInterim(transcript string) {
	s.mu.Lock()
	display := s.committed
	s.mu.Unlock()
	if display != "" {
		display += " " + transcript
	} else {
		display = transcript
	}
	s.pushUpdate(Update{Text: display})
}

func (s *streamSession) setErr(err error) {
	if err == nil {
		return
	}
	s.errOnce.Do(func() {
		s.mu.Lock()
		s.err = err
		s.mu.Unlock()
		if s.ws != nil {
			s.ws.Close()
		}
	})
}
