//go:build linux

package beep

import (
	"github.com/jfreymuth/pulse"
	"github.com/jfreymuth/pulse/proto"
)

func initBackend() {}

// play opens a short-lived PulseAudio stream per cue and drains it fully
// so the decay tail is not clipped. Runs detached; a cue must never delay
// a session transition.
func play(samples []int16) {
	go func() {
		c, err := pulse.NewClient()
		if err != nil {
			return
		}
		defer c.Close()

		pos := 0
		reader := pulse.Int16Reader(func(buf []int16) (int, error) {
			if pos >= len(samples) {
				return 0, pulse.EndOfData
			}
			n := copy(buf, samples[pos:])
			pos += n
			return n, nil
		})
		stream, err := c.NewPlayback(reader,
			pulse.PlaybackMono,
			pulse.PlaybackSampleRate(sampleRate),
			pulse.PlaybackLatency(0.1),
			pulse.PlaybackRawOption(func(p *proto.CreatePlaybackStream) {
				p.ChannelVolumes = proto.ChannelVolumes{uint32(proto.VolumeNorm)}
			}),
		)
		if err != nil {
			return
		}
		stream.Start()
		stream.Drain()
		stream.Stop()
		stream.Close()
	}()
}
