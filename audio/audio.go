// Package audio abstracts microphone capture behind a small Context /
// CaptureDevice pair. The linux backend records through PulseAudio, every
// other platform goes through miniaudio, and tests replay WAV files through
// a fake that honors the same interface.
package audio

import (
	"fmt"
	"strings"
)

const WAVHeaderSize = 44

var btKeywords = []string{
	"airpods", "beats", "bose", "wh-1000", "wf-1000",
	"sony wh-", "sony wf-",
	"jabra", "galaxy buds", "pixel buds", "powerbeats",
	"jbl ", "sennheiser momentum", "plantronics",
	"tozo", "anker soundcore", "skullcandy",
	"bluetooth", " bt ", " bt)", " bt]",
}

// IsBluetooth guesses from the device name whether the microphone is a
// bluetooth headset. BT mics drop to a low-bandwidth codec while
// recording, which hurts transcription quality, so callers warn on these.
func IsBluetooth(name string) bool {
	lower := strings.ToLower(name)
	for _, kw := range btKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

type DataCallback func(data []byte, frameCount uint32)

type CaptureConfig struct {
	SampleRate uint32
	Channels   uint32
}

type DeviceInfo struct {
	ID   string // opaque platform-specific identifier
	Name string
}

type Context interface {
	Devices() ([]DeviceInfo, error)
	NewCapture(device *DeviceInfo, config CaptureConfig) (CaptureDevice, error)
	Close()
}

// CaptureDevice is a started/stopped microphone stream. The callback may be
// swapped while the device runs; buffers delivered after ClearCallback are
// dropped.
type CaptureDevice interface {
	Start() error
	Stop()
	Close()
	SetCallback(cb DataCallback)
	ClearCallback()
	DeviceName() string
}

// FindDevice resolves a stored device reference against the currently
// attached devices. Exact ID match wins; a case-insensitive name substring
// is accepted as fallback so configs survive ID churn across reboots.
func FindDevice(ctx Context, ref string) (*DeviceInfo, error) {
	if ref == "" {
		return nil, nil // system default
	}
	devices, err := ctx.Devices()
	if err != nil {
		return nil, fmt.Errorf("enumerating devices: %w", err)
	}
	for i := range devices {
		if devices[i].ID == ref {
			return &devices[i], nil
		}
	}
	lowRef := strings.ToLower(ref)
	for i := range devices {
		if strings.Contains(strings.ToLower(devices[i].Name), lowRef) {
			return &devices[i], nil
		}
	}
	return nil, fmt.Errorf("device %q not found", ref)
}
