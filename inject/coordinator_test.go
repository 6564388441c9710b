package inject

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"sotto/session"
)

// stepLog records the order of side effects across the fake ports.
type stepLog struct {
	mu    sync.Mutex
	steps []string
}

func (l *stepLog) add(s string) {
	l.mu.Lock()
	l.steps = append(l.steps, s)
	l.mu.Unlock()
}

func (l *stepLog) snapshot() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.steps...)
}

type logWindow struct{ log *stepLog }

func (w logWindow) Show()  { w.log.add("show") }
func (w logWindow) Hide()  { w.log.add("hide") }
func (w logWindow) Focus() { w.log.add("focus") }

type logActivator struct {
	log *stepLog
	err error
}

func (a logActivator) Activate(bundleID string) error {
	a.log.add("activate:" + bundleID)
	return a.err
}

type logInjector struct {
	log *stepLog
	err error
}

func (i logInjector) Inject(ctx context.Context, text, bundleID string) error {
	i.log.add("inject:" + text)
	return i.err
}

func fastConfig() Config {
	return Config{
		WindowSettle:   time.Millisecond,
		ActivateSettle: time.Millisecond,
		Verify:         time.Millisecond,
	}
}

func TestDeliverSequence(t *testing.T) {
	log := &stepLog{}
	c := New(logWindow{log}, logActivator{log: log}, logInjector{log: log}, fastConfig())

	app := session.ActiveAppInfo{Name: "Mail", BundleID: "com.example.mail"}
	if err := c.Deliver(context.Background(), "hello", app); err != nil {
		t.Fatalf("deliver: %v", err)
	}
	want := []string{"hide", "activate:com.example.mail", "inject:hello"}
	got := log.snapshot()
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("sequence %v, want %v", got, want)
	}
}

func TestActivationFailureIsNonFatal(t *testing.T) {
	log := &stepLog{}
	var warned []string
	cfg := fastConfig()
	cfg.Warn = func(msg string) { warned = append(warned, msg) }
	c := New(logWindow{log}, logActivator{log: log, err: errors.New("no such app")}, logInjector{log: log}, cfg)

	app := session.ActiveAppInfo{BundleID: "com.example.gone"}
	if err := c.Deliver(context.Background(), "hello", app); err != nil {
		t.Fatalf("activation failure leaked: %v", err)
	}
	got := log.snapshot()
	if got[len(got)-1] != "inject:hello" {
		t.Fatalf("injection skipped after activation failure: %v", got)
	}
	if len(warned) != 1 {
		t.Fatalf("expected 1 warning, got %v", warned)
	}
}

func TestNoActivationWithoutBundle(t *testing.T) {
	log := &stepLog{}
	c := New(logWindow{log}, logActivator{log: log}, logInjector{log: log}, fastConfig())

	if err := c.Deliver(context.Background(), "hi", session.ActiveAppInfo{Name: "?"}); err != nil {
		t.Fatalf("deliver: %v", err)
	}
	for _, s := range log.snapshot() {
		if strings.HasPrefix(s, "activate:") {
			t.Fatalf("activated without a bundle id: %v", log.snapshot())
		}
	}
}

func TestOwnBundleNotActivated(t *testing.T) {
	log := &stepLog{}
	cfg := fastConfig()
	cfg.OwnBundleID = "com.sotto.app"
	c := New(logWindow{log}, logActivator{log: log}, logInjector{log: log}, cfg)

	if err := c.Deliver(context.Background(), "hi", session.ActiveAppInfo{BundleID: "com.sotto.app"}); err != nil {
		t.Fatalf("deliver: %v", err)
	}
	for _, s := range log.snapshot() {
		if strings.HasPrefix(s, "activate:") {
			t.Fatal("activated our own window")
		}
	}
}

func TestInjectionErrorPropagates(t *testing.T) {
	log := &stepLog{}
	boom := errors.New("paste rejected")
	c := New(logWindow{log}, logActivator{log: log}, logInjector{log: log, err: boom}, fastConfig())

	err := c.Deliver(context.Background(), "hi", session.ActiveAppInfo{BundleID: "com.example.mail"})
	if !errors.Is(err, boom) {
		t.Fatalf("expected injection error, got %v", err)
	}
}

func TestCancelAbortsBeforeInjection(t *testing.T) {
	log := &stepLog{}
	cfg := fastConfig()
	cfg.WindowSettle = 50 * time.Millisecond
	c := New(logWindow{log}, logActivator{log: log}, logInjector{log: log}, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := c.Deliver(ctx, "hi", session.ActiveAppInfo{BundleID: "com.example.mail"})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context error, got %v", err)
	}
	for _, s := range log.snapshot() {
		if strings.HasPrefix(s, "inject:") {
			t.Fatal("injected after cancellation")
		}
	}
}
