package vad

import "time"

// State is the classifier's three-way decision. Transition authority lives
// here; the session engine only reads it.
type State int

const (
	// StateWaiting means no speech has been observed yet this session.
	StateWaiting State = iota
	// StateSpeech means the level is above the sound threshold, or inside
	// the hysteresis band while speech was already ongoing.
	StateSpeech
	// StateSilence means speech was observed and the level has since
	// dropped below the silence threshold.
	StateSilence
)

func (s State) String() string {
	switch s {
	case StateWaiting:
		return "waiting"
	case StateSpeech:
		return "speech"
	case StateSilence:
		return "silence"
	}
	return "unknown"
}

// Classifier applies dynamic thresholds to smoothed levels with hysteresis.
// The caller passes now explicitly so tests can drive time.
type Classifier struct {
	state      State
	speechSeen bool
	lastSound  time.Time
}

func NewClassifier() *Classifier {
	return &Classifier{}
}

// Classify folds one smoothed level into the state machine and returns the
// new state plus whether this tick counted as speech.
//
// The split is three-way: above the sound threshold is speech, below the
// silence threshold is silence (only once speech has been seen), and the band
// in between is sticky. Inside the band an ongoing speech run continues, with
// lastSound refreshed, so a level grazing the stop boundary cannot truncate
// an utterance; in any other state the band changes nothing and silence keeps
// accumulating.
func (c *Classifier) Classify(smoothed float64, thr Thresholds, now time.Time) (State, bool) {
	switch {
	case smoothed > thr.Sound:
		c.state = StateSpeech
		c.speechSeen = true
		c.lastSound = now
		return c.state, true

	case smoothed < thr.Silence:
		if !c.speechSeen {
			return c.state, false
		}
		if c.state == StateSpeech {
			c.state = StateSilence
		}
		return c.state, false

	default:
		if c.state == StateSpeech {
			c.lastSound = now
			return c.state, true
		}
		return c.state, false
	}
}

func (c *Classifier) State() State         { return c.state }
func (c *Classifier) SpeechSeen() bool     { return c.speechSeen }
func (c *Classifier) LastSound() time.Time { return c.lastSound }

// SilenceFor reports how long silence has been continuous at time now.
// Zero while waiting for first speech or while speech is ongoing.
func (c *Classifier) SilenceFor(now time.Time) time.Duration {
	if !c.speechSeen || c.state != StateSilence {
		return 0
	}
	d := now.Sub(c.lastSound)
	if d < 0 {
		return 0
	}
	return d
}

// Reset returns the classifier to StateWaiting. Paired with Smoother.Reset
// on the idle to listening transition.
func (c *Classifier) Reset() {
	c.state = StateWaiting
	c.speechSeen = false
	c.lastSound = time.Time{}
}
