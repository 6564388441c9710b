package inject

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Clipboard is the minimal clipboard surface the injector needs.
type Clipboard interface {
	Read() (string, error)
	Write(text string) error
}

// ClipboardInjector delivers text by placing it on the clipboard and
// synthesizing a paste chord in the frontmost application, then restoring
// whatever the clipboard held before.
type ClipboardInjector struct {
	clip  Clipboard
	chord func() error

	// RestoreDelay is how long the text stays on the clipboard before the
	// backup is put back; the paste must have landed by then.
	RestoreDelay time.Duration

	// DupWindow suppresses a second delivery of identical text; a bounced
	// retry cannot paste twice.
	DupWindow time.Duration

	Warn func(msg string)

	mu       sync.Mutex
	lastText string
	lastAt   time.Time
}

func NewClipboardInjector(clip Clipboard, chord func() error) *ClipboardInjector {
	return &ClipboardInjector{
		clip:         clip,
		chord:        chord,
		RestoreDelay: 200 * time.Millisecond,
		DupWindow:    2 * time.Second,
	}
}

func (j *ClipboardInjector) Inject(ctx context.Context, text, bundleID string) error {
	if text == "" {
		return nil
	}
	j.mu.Lock()
	if text == j.lastText && time.Since(j.lastAt) < j.DupWindow {
		j.mu.Unlock()
		j.warnf("duplicate delivery suppressed")
		return nil
	}
	j.mu.Unlock()

	backup, backupErr := j.clip.Read()
	if err := j.clip.Write(text); err != nil {
		return fmt.Errorf("clipboard write: %w", err)
	}
	if err := j.chord(); err != nil {
		return fmt.Errorf("paste chord: %w", err)
	}

	j.mu.Lock()
	j.lastText, j.lastAt = text, time.Now()
	j.mu.Unlock()

	if backupErr == nil {
		time.Sleep(j.RestoreDelay)
		if err := j.clip.Write(backup); err != nil {
			j.warnf("clipboard restore: %v", err)
		}
	}
	return nil
}

func (j *ClipboardInjector) warnf(format string, args ...any) {
	if j.Warn != nil {
		j.Warn(fmt.Sprintf(format, args...))
	}
}
