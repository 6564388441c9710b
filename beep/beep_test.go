package beep

import "testing"

func peakAbs(s []int16) int16 {
	var p int16
	for _, v := range s {
		if v < 0 {
			v = -v
		}
		if v > p {
			p = v
		}
	}
	return p
}

func TestSynthesizeEnvelopeDecays(t *testing.T) {
	c := cue{freq: 440, length: 0.1, volume: 0.5, decay: 40, ticks: 1}
	s := c.synthesize()

	if want := int(0.1 * sampleRate); len(s) != want {
		t.Fatalf("len = %d, want %d", len(s), want)
	}
	head, tail := peakAbs(s[:len(s)/4]), peakAbs(s[3*len(s)/4:])
	if int(head) <= int(tail)*4 {
		t.Fatalf("envelope barely decays: head peak %d, tail peak %d", head, tail)
	}
	if limit := int16(32767/2 + 1); peakAbs(s) > limit {
		t.Fatalf("peak %d exceeds volume limit %d", peakAbs(s), limit)
	}
}

func TestSynthesizeDoubleTickGap(t *testing.T) {
	c := cue{freq: 330, length: 0.05, volume: 0.6, decay: 28, ticks: 2, gap: 0.02}
	s := c.synthesize()

	tickN := int(0.05 * sampleRate)
	gapN := int(0.02 * sampleRate)
	if want := 2*tickN + gapN; len(s) != want {
		t.Fatalf("len = %d, want %d", len(s), want)
	}
	for i := tickN; i < tickN+gapN; i++ {
		if s[i] != 0 {
			t.Fatalf("sample %d inside the gap = %d, want silence", i, s[i])
		}
	}
}
