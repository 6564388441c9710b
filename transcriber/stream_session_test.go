package transcriber

import (
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
)

type fakeWS struct {
	mu        sync.Mutex
	sent      [][]byte
	recvCh    chan streamUpdate
	closed    chan struct{}
	closeOnce sync.Once
}

func newFakeWS() *fakeWS {
	return &fakeWS{
		recvCh: make(chan streamUpdate, 16),
		closed: make(chan struct{}),
	}
}

func (f *fakeWS) push(u streamUpdate) { f.recvCh <- u }

func (f *fakeWS) Send(pcm []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	buf := make([]byte, len(pcm))
	copy(buf, pcm)
	f.sent = append(f.sent, buf)
	return nil
}

func (f *fakeWS) CloseSend() error {
	f.push(streamUpdate{FromFinalize: true})
	return nil
}

func (f *fakeWS) Recv() (streamUpdate, error) {
	select {
	case u := <-f.recvCh:
		return u, nil
	case <-f.closed:
		return streamUpdate{}, errors.New("connection closed")
	}
}

func (f *fakeWS) Close() error {
	f.closeOnce.Do(func() { close(f.closed) })
	return nil
}

func (f *fakeWS) sentChunks() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

func TestStreamSessionCommitsFinals(t *testing.T) {
	ws := newFakeWS()
	ss := newStreamSession(func() (rawStreamSession, error) { return ws, nil })

	ss.Feed(make([]byte, streamChunkBytes))

	// One interim hypothesis, then two committed segments.
	ws.push(streamUpdate{Transcript: "hello"})
	ws.push(streamUpdate{Transcript: "hello world", IsFinal: true})
	ws.push(streamUpdate{Transcript: "again", SpeechFinal: true})

	var seen []Update
	done := make(chan struct{})
	go func() {
		for u := range ss.Updates() {
			seen = append(seen, u)
		}
		close(done)
	}()

	// Let the receiver drain the scripted updates before closing.
	time.Sleep(100 * time.Millisecond)

	result, err := ss.Close()
	if err != nil {
		t.Fatalf("Close: %v", err)
	}
	<-done

	if result.Text != "hello world again" {
		t.Errorf("Text = %q, want %q", result.Text, "hello world again")
	}
	if !result.HasText {
		t.Error("HasText should be true")
	}
	if result.Stream == nil {
		t.Fatal("Stream stats should be non-nil")
	}
	if result.Stream.CommitEvents != 2 {
		t.Errorf("CommitEvents = %d, want 2", result.Stream.CommitEvents)
	}
	if ws.sentChunks() == 0 {
		t.Error("no audio chunks were sent")
	}

	// The interim hypothesis must have been surfaced, unmarked as final.
	sawInterim := false
	for _, u := range seen {
		if u.Text == "hello" && !u.Final {
			sawInterim = true
		}
	}
	if !sawInterim {
		t.Errorf("interim hypothesis never surfaced, updates: %v", seen)
	}
}

func TestStreamSessionInterimAppendsToCommitted(t *testing.T) {
	ws := newFakeWS()
	ss := newStreamSession(func() (rawStreamSession, error) { return ws, nil })

	ws.push(streamUpdate{Transcript: "first part", IsFinal: true})
	ws.push(streamUpdate{Transcript: "second"}) // interim after a commit

	var seen []Update
	done := make(chan struct{})
	go func() {
		for u := range ss.Updates() {
			seen = append(seen, u)
		}
		close(done)
	}()

	time.Sleep(100 * time.Millisecond)
	if _, err := ss.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	<-done

	found := false
	for _, u := range seen {
		if strings.HasPrefix(u.Text, "first part") && strings.HasSuffix(u.Text, "second") && !u.Final {
			found = true
		}
	}
	if !found {
		t.Errorf("expected a display update combining committed and interim text, got %v", seen)
	}
}

func TestStreamSessionCloseIdempotent(t *testing.T) {
	ws := newFakeWS()
	ss := newStreamSession(func() (rawStreamSession, error) { return ws, nil })

	ws.push(streamUpdate{Transcript: "once", IsFinal: true})
	go func() {
		for range ss.Updates() {
		}
	}()
	time.Sleep(100 * time.Millisecond)

	first, err := ss.Close()
	if err != nil {
		t.Fatalf("Close: %v", err)
	}
	second, err := ss.Close()
	if err != nil {
		t.Fatalf("repeated Close: %v", err)
	}
	if first.Text != "once" || second.Text != first.Text {
		t.Errorf("repeated Close changed the result: %q then %q", first.Text, second.Text)
	}
}

func TestStreamSessionDialFailure(t *testing.T) {
	dialErr := errors.New("no route")
	ss := newStreamSession(func() (rawStreamSession, error) { return nil, dialErr })

	ss.Feed(make([]byte, streamChunkBytes/2))

	go func() {
		for range ss.Updates() {
		}
	}()

	result, err := ss.Close()
	if err == nil {
		t.Fatal("expected dial error from Close")
	}
	if !result.NoSpeech {
		t.Error("failed session should report NoSpeech")
	}
}
