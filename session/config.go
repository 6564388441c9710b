package session

import (
	"time"

	"sotto/vad"
)

// Config carries every timing constant and limit of the session lifecycle.
// Tests shrink the durations; production uses DefaultConfig, optionally
// overridden from the tuning file.
type Config struct {
	// NoSoundTimeout cancels a session in which no speech was ever
	// detected.
	NoSoundTimeout time.Duration

	// SilenceWindow is the continuous silence required before an
	// auto-stop is considered.
	SilenceWindow time.Duration

	// MinSpeech is the minimum total recording time before an auto-stop
	// may fire.
	MinSpeech time.Duration

	// ConfirmDelay is the second-stage debounce: silence must survive
	// this long past the SilenceWindow before capture actually stops, so
	// a sub-window sound right at the boundary cannot truncate speech.
	ConfirmDelay time.Duration

	// ProcessingTimeout bounds one finalize attempt.
	ProcessingTimeout time.Duration

	// RetryDelay is the pause before re-issuing a finalize after an
	// error return. Timeouts retry immediately and concurrently.
	RetryDelay time.Duration

	// MaxRetries is the number of re-issues after the first attempt.
	MaxRetries int

	// EmptyResultDelay is the user-visible dwell before returning to
	// idle when the transcript came back blank.
	EmptyResultDelay time.Duration

	// TerminalDelay is the user-visible dwell before returning to idle
	// after a terminal failure.
	TerminalDelay time.Duration

	// TriggerDebounce rejects duplicate trigger events after one is
	// accepted.
	TriggerDebounce time.Duration

	// DeviceID and Realtime are passed through to StartCapture.
	DeviceID string
	Realtime bool

	VAD vad.Config
}

func DefaultConfig() Config {
	return Config{
		NoSoundTimeout:    5000 * time.Millisecond,
		SilenceWindow:     1500 * time.Millisecond,
		MinSpeech:         500 * time.Millisecond,
		ConfirmDelay:      200 * time.Millisecond,
		ProcessingTimeout: 8000 * time.Millisecond,
		RetryDelay:        1000 * time.Millisecond,
		MaxRetries:        2,
		EmptyResultDelay:  2000 * time.Millisecond,
		TerminalDelay:     2000 * time.Millisecond,
		TriggerDebounce:   500 * time.Millisecond,
		VAD:               vad.DefaultConfig(),
	}
}
