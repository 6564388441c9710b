package vad

import (
	"testing"
	"time"
)

var testThr = Thresholds{Sound: 0.5, Silence: 0.2}

func at(ms int) time.Time {
	return time.Unix(0, 0).Add(time.Duration(ms) * time.Millisecond)
}

func TestWaitingUntilFirstSound(t *testing.T) {
	c := NewClassifier()
	for i := 0; i < 50; i++ {
		st, detected := c.Classify(0.05, testThr, at(i*100))
		if st != StateWaiting || detected {
			t.Fatalf("tick %d: got %v detected=%v before any sound", i, st, detected)
		}
	}
	if c.SpeechSeen() {
		t.Fatal("SpeechSeen true without sound")
	}
}

func TestSoundEntersSpeech(t *testing.T) {
	c := NewClassifier()
	st, detected := c.Classify(0.6, testThr, at(0))
	if st != StateSpeech || !detected {
		t.Fatalf("got %v detected=%v, want speech", st, detected)
	}
	if !c.SpeechSeen() {
		t.Fatal("SpeechSeen false after sound")
	}
	if !c.LastSound().Equal(at(0)) {
		t.Fatalf("lastSound not recorded: %v", c.LastSound())
	}
}

func TestSpeechDropsToSilence(t *testing.T) {
	c := NewClassifier()
	c.Classify(0.6, testThr, at(0))

	st, detected := c.Classify(0.1, testThr, at(100))
	if st != StateSilence || detected {
		t.Fatalf("got %v detected=%v, want silence", st, detected)
	}
	if d := c.SilenceFor(at(1600)); d != 1600*time.Millisecond {
		t.Fatalf("SilenceFor: got %v want 1.6s", d)
	}
}

func TestBandKeepsSpeechAlive(t *testing.T) {
	c := NewClassifier()
	c.Classify(0.6, testThr, at(0))

	// One tick inside the hysteresis band must not drop to silence.
	st, detected := c.Classify(0.3, testThr, at(100))
	if st != StateSpeech || !detected {
		t.Fatalf("band tick: got %v detected=%v, want continued speech", st, detected)
	}
	// And it refreshes lastSound: silence afterwards is measured from the
	// band tick, not the original sound.
	c.Classify(0.1, testThr, at(200))
	if d := c.SilenceFor(at(700)); d != 600*time.Millisecond {
		t.Fatalf("SilenceFor after band: got %v want 600ms", d)
	}
}

func TestBandDoesNotPromoteWaiting(t *testing.T) {
	c := NewClassifier()
	for i := 0; i < 20; i++ {
		st, detected := c.Classify(0.3, testThr, at(i*100))
		if st != StateWaiting || detected {
			t.Fatalf("tick %d: band promoted waiting to %v", i, st)
		}
	}
}

func TestBandKeepsSilenceAccumulating(t *testing.T) {
	c := NewClassifier()
	c.Classify(0.6, testThr, at(0))
	c.Classify(0.1, testThr, at(100)) // silence begins, measured from t=0

	// Band ticks while already silent must not reset the silence run.
	c.Classify(0.3, testThr, at(200))
	c.Classify(0.3, testThr, at(300))
	if st := c.State(); st != StateSilence {
		t.Fatalf("band tick changed silence to %v", st)
	}
	if d := c.SilenceFor(at(1500)); d != 1500*time.Millisecond {
		t.Fatalf("silence run reset by band tick: got %v want 1.5s", d)
	}
}

func TestSoundClearsSilenceRun(t *testing.T) {
	c := NewClassifier()
	c.Classify(0.6, testThr, at(0))
	c.Classify(0.1, testThr, at(100))
	c.Classify(0.7, testThr, at(1200))

	if st := c.State(); st != StateSpeech {
		t.Fatalf("sound did not re-enter speech: %v", st)
	}
	if d := c.SilenceFor(at(1300)); d != 0 {
		t.Fatalf("SilenceFor nonzero during speech: %v", d)
	}
}

func TestSilenceBeforeSpeechIgnored(t *testing.T) {
	c := NewClassifier()
	st, _ := c.Classify(0.05, testThr, at(0))
	if st != StateWaiting {
		t.Fatalf("silence before speech moved state to %v", st)
	}
	if d := c.SilenceFor(at(5000)); d != 0 {
		t.Fatalf("SilenceFor counted before first speech: %v", d)
	}
}

func TestClassifierReset(t *testing.T) {
	c := NewClassifier()
	c.Classify(0.6, testThr, at(0))
	c.Classify(0.1, testThr, at(100))
	c.Reset()

	if c.State() != StateWaiting || c.SpeechSeen() {
		t.Fatalf("reset left state=%v speechSeen=%v", c.State(), c.SpeechSeen())
	}
	// Post-reset silence needs fresh speech first.
	st, _ := c.Classify(0.1, testThr, at(200))
	if st != StateWaiting {
		t.Fatalf("stale speechSeen after reset: %v", st)
	}
}
