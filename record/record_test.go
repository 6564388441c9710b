package record

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"sotto/audio"
	"sotto/transcriber"
)

func testPCM(n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(i)
	}
	return b
}

// stubTranscriber hands out a prepared session, for scenarios the stock
// fake cannot express (failing first close, partial stream text).
type stubTranscriber struct {
	sess transcriber.Session
}

func (s *stubTranscriber) Name() string        { return "stub" }
func (s *stubTranscriber) SetLanguage(string)  {}
func (s *stubTranscriber) GetLanguage() string { return "" }
func (s *stubTranscriber) NewSession(context.Context, transcriber.SessionConfig) (transcriber.Session, error) {
	return s.sess, nil
}

type stubSession struct {
	mu      sync.Mutex
	closes  int
	replies []func() (transcriber.SessionResult, error)
	updates chan transcriber.Update
}

func newStubSession(replies ...func() (transcriber.SessionResult, error)) *stubSession {
	ch := make(chan transcriber.Update)
	close(ch)
	return &stubSession{replies: replies, updates: ch}
}

func (s *stubSession) Feed([]byte)                        {}
func (s *stubSession) Updates() <-chan transcriber.Update { return s.updates }

func (s *stubSession) Close() (transcriber.SessionResult, error) {
	s.mu.Lock()
	n := s.closes
	s.closes++
	s.mu.Unlock()
	if n >= len(s.replies) {
		n = len(s.replies) - 1
	}
	return s.replies[n]()
}

func (s *stubSession) closeCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closes
}

func TestRecorderCaptureLifecycle(t *testing.T) {
	actx := audio.NewFakeContextFromPCM(testPCM(16000), false)

	var (
		mu     sync.Mutex
		levels int
		result *transcriber.SessionResult
	)
	rec := New(actx, transcriber.NewFake("hello world", nil), Options{
		Format: "wav",
		OnLevel: func(float64) {
			mu.Lock()
			levels++
			mu.Unlock()
		},
		OnResult: func(res transcriber.SessionResult) {
			mu.Lock()
			result = &res
			mu.Unlock()
		},
	})
	defer rec.Close()

	if err := rec.StartCapture(context.Background(), "", false); err != nil {
		t.Fatalf("StartCapture: %v", err)
	}
	time.Sleep(80 * time.Millisecond) // let a few meter ticks through

	text, err := rec.StopCapture(context.Background())
	if err != nil {
		t.Fatalf("StopCapture: %v", err)
	}
	if text != "hello world" {
		t.Fatalf("text = %q, want %q", text, "hello world")
	}

	mu.Lock()
	defer mu.Unlock()
	if levels == 0 {
		t.Fatal("no level ticks reached the callback")
	}
	if result == nil || result.Text != "hello world" {
		t.Fatalf("OnResult missing or wrong: %+v", result)
	}
}

func TestRecorderStopWithoutStart(t *testing.T) {
	rec := New(audio.NewFakeContextFromPCM(nil, false), transcriber.NewFake("", nil), Options{})
	defer rec.Close()

	if _, err := rec.StopCapture(context.Background()); err == nil {
		t.Fatal("expected error when no capture is in progress")
	}
}

func TestRecorderStreamingUpdates(t *testing.T) {
	actx := audio.NewFakeContextFromPCM(testPCM(4096), true)

	updates := make(chan transcriber.Update, 4)
	rec := New(actx, transcriber.NewFake("live text", nil), Options{
		OnUpdate: func(text string, final bool) {
			updates <- transcriber.Update{Text: text, Final: final}
		},
	})
	defer rec.Close()

	if err := rec.StartCapture(context.Background(), "", true); err != nil {
		t.Fatalf("StartCapture: %v", err)
	}

	select {
	case u := <-updates:
		if u.Text != "live text" || !u.Final {
			t.Fatalf("update = %+v, want final %q", u, "live text")
		}
	case <-time.After(time.Second):
		t.Fatal("no live update arrived")
	}

	if _, err := rec.StopCapture(context.Background()); err != nil {
		t.Fatalf("StopCapture: %v", err)
	}
}

func TestRecorderRecloseRetriesSession(t *testing.T) {
	sess := newStubSession(
		func() (transcriber.SessionResult, error) {
			return transcriber.SessionResult{}, errors.New("upstream 503")
		},
		func() (transcriber.SessionResult, error) {
			return transcriber.SessionResult{Text: "second try", HasText: true}, nil
		},
	)
	rec := New(audio.NewFakeContextFromPCM(testPCM(2048), false), &stubTranscriber{sess: sess}, Options{})
	defer rec.Close()

	if err := rec.StartCapture(context.Background(), "", false); err != nil {
		t.Fatalf("StartCapture: %v", err)
	}

	if _, err := rec.StopCapture(context.Background()); err == nil {
		t.Fatal("first StopCapture should surface the session error")
	}
	text, err := rec.StopCapture(context.Background())
	if err != nil {
		t.Fatalf("second StopCapture: %v", err)
	}
	if text != "second try" {
		t.Fatalf("text = %q, want %q", text, "second try")
	}
	if got := sess.closeCalls(); got != 2 {
		t.Fatalf("session closed %d times, want 2", got)
	}
}

func TestRecorderKeepsPartialStreamText(t *testing.T) {
	sess := newStubSession(func() (transcriber.SessionResult, error) {
		return transcriber.SessionResult{Text: "partial words", HasText: true},
			errors.New("websocket closed mid-finalize")
	})
	rec := New(audio.NewFakeContextFromPCM(testPCM(2048), false), &stubTranscriber{sess: sess}, Options{})
	defer rec.Close()

	if err := rec.StartCapture(context.Background(), "", false); err != nil {
		t.Fatalf("StartCapture: %v", err)
	}

	text, err := rec.StopCapture(context.Background())
	if err != nil {
		t.Fatalf("committed text should win over the close error, got %v", err)
	}
	if text != "partial words" {
		t.Fatalf("text = %q, want %q", text, "partial words")
	}
}

func TestRecorderStopHonorsContext(t *testing.T) {
	slow := transcriber.NewFake("late", nil)
	slow.Delay = 500 * time.Millisecond

	rec := New(audio.NewFakeContextFromPCM(testPCM(2048), false), slow, Options{})
	defer rec.Close()

	if err := rec.StartCapture(context.Background(), "", false); err != nil {
		t.Fatalf("StartCapture: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := rec.StopCapture(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want deadline exceeded", err)
	}
	if time.Since(start) > 300*time.Millisecond {
		t.Fatal("StopCapture waited for the slow close instead of the context")
	}
}

func TestRecorderRestartReplacesCapture(t *testing.T) {
	actx := audio.NewFakeContextFromPCM(testPCM(2048), false)
	rec := New(actx, transcriber.NewFake("take two", nil), Options{Format: "wav"})
	defer rec.Close()

	if err := rec.StartCapture(context.Background(), "", false); err != nil {
		t.Fatalf("first StartCapture: %v", err)
	}
	// Second session begins without the first ever being stopped, as after
	// a cancelled session.
	if err := rec.StartCapture(context.Background(), "", false); err != nil {
		t.Fatalf("second StartCapture: %v", err)
	}

	text, err := rec.StopCapture(context.Background())
	if err != nil {
		t.Fatalf("StopCapture: %v", err)
	}
	if text != "take two" {
		t.Fatalf("text = %q, want %q", text, "take two")
	}
}
