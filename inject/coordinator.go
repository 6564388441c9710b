// Package inject hands recognized text back to the application that held
// focus before capture began: overlay hidden, target activated, text pasted,
// each step settled before the next.
package inject

import (
	"context"
	"fmt"
	"time"

	"sotto/session"
)

// Activator brings a target application to the foreground.
type Activator interface {
	Activate(bundleID string) error
}

// Injector performs the actual text delivery into the frontmost app.
type Injector interface {
	Inject(ctx context.Context, text, bundleID string) error
}

// Config tunes the delivery sequence.
type Config struct {
	// WindowSettle runs after hiding the overlay, before touching the
	// target app.
	WindowSettle time.Duration

	// ActivateSettle gives the target app time to take focus.
	ActivateSettle time.Duration

	// Verify runs after injection before the delivery is reported done.
	Verify time.Duration

	// OwnBundleID suppresses activation when the captured target is this
	// process itself.
	OwnBundleID string

	// Warn receives non-fatal delivery problems. Optional.
	Warn func(msg string)
}

func DefaultConfig() Config {
	return Config{
		WindowSettle:   300 * time.Millisecond,
		ActivateSettle: 600 * time.Millisecond,
		Verify:         300 * time.Millisecond,
	}
}

// Coordinator sequences one delivery. It implements session.Deliverer.
type Coordinator struct {
	win  session.WindowControl
	apps Activator
	inj  Injector
	cfg  Config
}

func New(win session.WindowControl, apps Activator, inj Injector, cfg Config) *Coordinator {
	return &Coordinator{win: win, apps: apps, inj: inj, cfg: cfg}
}

// Deliver runs the sequence strictly in order: hide the overlay, settle,
// activate the target when its bundle identifier is known, settle again,
// inject, verify delay. Activation failure is reported through Warn and
// ignored; injection proceeds regardless. Injection errors return to the
// caller, whose retry policy decides what happens to the text. Context
// cancellation aborts between steps.
func (c *Coordinator) Deliver(ctx context.Context, text string, app session.ActiveAppInfo) error {
	c.win.Hide()
	if err := sleep(ctx, c.cfg.WindowSettle); err != nil {
		return err
	}

	if app.BundleID != "" && app.BundleID != c.cfg.OwnBundleID && c.apps != nil {
		if err := c.apps.Activate(app.BundleID); err != nil {
			c.warnf("activate %s: %v", app.BundleID, err)
		}
		if err := sleep(ctx, c.cfg.ActivateSettle); err != nil {
			return err
		}
	}

	if err := c.inj.Inject(ctx, text, app.BundleID); err != nil {
		return fmt.Errorf("inject: %w", err)
	}
	return sleep(ctx, c.cfg.Verify)
}

func (c *Coordinator) warnf(format string, args ...any) {
	if c.cfg.Warn != nil {
		c.cfg.Warn(fmt.Sprintf(format, args...))
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
