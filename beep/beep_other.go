//go:build !linux

package beep

import (
	"sync"
	"sync/atomic"

	"github.com/gen2brain/malgo"
)

var (
	malgoCtx *malgo.AllocatedContext
	device   *malgo.Device
	playMu   sync.Mutex

	// Playback cursor; the device callback reads these without the lock.
	playBuf atomic.Pointer[[]byte]
	playPos atomic.Uint32
)

func initBackend() {
	var err error
	malgoCtx, err = malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return
	}
	if err := initDevice(); err != nil {
		malgoCtx.Uninit()
		malgoCtx = nil
	}
}

func initDevice() error {
	config := malgo.DefaultDeviceConfig(malgo.Playback)
	config.Playback.Format = malgo.FormatS16
	config.Playback.Channels = 1
	config.SampleRate = sampleRate

	var err error
	device, err = malgo.InitDevice(malgoCtx.Context, config, malgo.DeviceCallbacks{Data: fill})
	return err
}

// fill streams the active cue into the output buffer, zero-filling once
// the cue is spent.
func fill(out, _ []byte, frameCount uint32) {
	buf := playBuf.Load()
	if buf == nil {
		zero(out)
		return
	}
	pos := playPos.Load()
	total := uint32(len(*buf))
	if pos >= total {
		playBuf.Store(nil)
		zero(out)
		return
	}
	n := frameCount * 2
	if n > total-pos {
		n = total - pos
	}
	copy(out[:n], (*buf)[pos:pos+n])
	playPos.Store(pos + n)
	zero(out[n:])
}

func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

// play restarts the playback device with a fresh cue. A failed start
// reinitializes the device once; macOS invalidates playback devices
// across sleep.
func play(samples []int16) {
	if malgoCtx == nil || len(samples) == 0 {
		return
	}
	buf := toBytes(samples)

	playMu.Lock()
	defer playMu.Unlock()
	if device == nil {
		return
	}
	device.Stop()
	playPos.Store(0)
	playBuf.Store(&buf)

	if err := device.Start(); err != nil {
		device.Uninit()
		if err := initDevice(); err != nil {
			playBuf.Store(nil)
			return
		}
		if err := device.Start(); err != nil {
			playBuf.Store(nil)
		}
	}
}

func toBytes(samples []int16) []byte {
	buf := make([]byte, len(samples)*2)
	for i, s := range samples {
		buf[i*2] = byte(s)
		buf[i*2+1] = byte(s >> 8)
	}
	return buf
}
