//go:build integration

// Scripted end-to-end runs of the sotto binary. Audio comes from generated
// WAV fixtures replayed through the fake capture device and injection lands
// in a fake, so these run headless; with the fake provider they need no API
// key either. Assertions go against the log files each run leaves behind.
package test_test

import (
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
)

var testBinary string

func TestMain(m *testing.M) {
	testBinary = os.Getenv("SOTTO_TEST_BIN")
	if testBinary == "" {
		fmt.Fprintln(os.Stderr, "SOTTO_TEST_BIN not set; run: make test-integration")
		os.Exit(1)
	}

	if err := os.MkdirAll("data", 0755); err != nil {
		fmt.Fprintf(os.Stderr, "failed to create data dir: %v\n", err)
		os.Exit(1)
	}
	silencePath := filepath.Join("data", "silence.wav")
	if err := writeWAV(silencePath, 16000, make([]int16, 16000)); err != nil {
		fmt.Fprintf(os.Stderr, "failed to generate silence.wav: %v\n", err)
		os.Exit(1)
	}
	tonePath := filepath.Join("data", "tone.wav")
	if err := writeWAV(tonePath, 16000, toneSamples(16000, 1.0, 440)); err != nil {
		fmt.Fprintf(os.Stderr, "failed to generate tone.wav: %v\n", err)
		os.Exit(1)
	}

	code := m.Run()
	os.Remove(silencePath)
	os.Remove(tonePath)
	os.Exit(code)
}

func writeWAV(path string, sampleRate int, samples []int16) error {
	const headerSize = 44
	dataSize := len(samples) * 2

	buf := make([]byte, headerSize+dataSize)
	copy(buf[0:4], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:8], uint32(headerSize-8+dataSize))
	copy(buf[8:12], "WAVE")
	copy(buf[12:16], "fmt ")
	binary.LittleEndian.PutUint32(buf[16:20], 16)
	binary.LittleEndian.PutUint16(buf[20:22], 1) // PCM
	binary.LittleEndian.PutUint16(buf[22:24], 1) // mono
	binary.LittleEndian.PutUint32(buf[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(buf[28:32], uint32(sampleRate*2))
	binary.LittleEndian.PutUint16(buf[32:34], 2)  // block align
	binary.LittleEndian.PutUint16(buf[34:36], 16) // bits per sample
	copy(buf[36:40], "data")
	binary.LittleEndian.PutUint32(buf[40:44], uint32(dataSize))
	for i, s := range samples {
		binary.LittleEndian.PutUint16(buf[headerSize+i*2:], uint16(s))
	}

	return os.WriteFile(path, buf, 0644)
}

// toneSamples synthesizes a sine loud enough to read as speech to the
// level detector.
func toneSamples(sampleRate int, durationS, freq float64) []int16 {
	n := int(float64(sampleRate) * durationS)
	samples := make([]int16, n)
	for i := range samples {
		samples[i] = int16(8000 * math.Sin(2*math.Pi*freq*float64(i)/float64(sampleRate)))
	}
	return samples
}

func cmds(parts ...string) string {
	return strings.Join(parts, "\n") + "\n"
}

func runSotto(t *testing.T, stdin string, env []string, args ...string) (logDir string) {
	t.Helper()
	logDir = t.TempDir()
	cmdArgs := append([]string{"-logpath", logDir}, args...)

	cmd := exec.Command(testBinary, cmdArgs...)
	cmd.Stdin = strings.NewReader(stdin)
	cmd.Env = append(os.Environ(), env...)

	out, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("sotto exited with error: %v\noutput: %s", err, out)
	}
	return logDir
}

// runFake runs a script against the fake provider, which answers every
// finalize with fakeText. No key, no network.
func runFake(t *testing.T, fakeText, stdin string, args ...string) string {
	t.Helper()
	args = append([]string{"-provider", "fake"}, args...)
	return runSotto(t, stdin, []string{"SOTTO_FAKE_TEXT=" + fakeText}, args...)
}

func readLog(t *testing.T, logDir, filename string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(logDir, filename))
	if err != nil {
		if os.IsNotExist(err) {
			return ""
		}
		t.Fatalf("failed to read %s: %v", filename, err)
	}
	return string(data)
}

func requireTranscription(t *testing.T, logDir string) string {
	t.Helper()
	text := readLog(t, logDir, "transcribe_log.txt")
	if strings.TrimSpace(text) == "" {
		t.Fatal("transcribe_log.txt is empty, expected transcribed words")
	}
	return text
}

func requireGroqKey(t *testing.T) {
	t.Helper()
	if os.Getenv("GROQ_API_KEY") == "" {
		t.Skip("GROQ_API_KEY not set")
	}
}

func requireDeepgramKey(t *testing.T) {
	t.Helper()
	if os.Getenv("DEEPGRAM_API_KEY") == "" {
		t.Skip("DEEPGRAM_API_KEY not set")
	}
}

// requireSpeechWAV points the real-provider tests at an actual recording of
// spoken words, which the repo does not ship.
func requireSpeechWAV(t *testing.T) string {
	t.Helper()
	p := os.Getenv("SOTTO_TEST_SPEECH_WAV")
	if p == "" {
		t.Skip("SOTTO_TEST_SPEECH_WAV not set; needs a short 16kHz mono WAV of spoken words")
	}
	return p
}

// --- Fake-provider tests ---

func TestHoldDelivers(t *testing.T) {
	logDir := runFake(t, "the quick brown fox",
		cmds("KEYDOWN", "SLEEP 400", "KEYUP", "WAIT_IDLE", "QUIT"),
		"-test", "data/silence.wav")

	text := requireTranscription(t, logDir)
	if !strings.Contains(text, "the quick brown fox") {
		t.Errorf("transcribe log missing delivered text: %q", text)
	}
	diag := readLog(t, logDir, "diagnostics_log.txt")
	if !strings.Contains(diag, "injection") {
		t.Error("expected injection entry in diagnostics")
	}
}

func TestLifecycleLogged(t *testing.T) {
	logDir := runFake(t, "hello there",
		cmds("KEYDOWN", "SLEEP 400", "KEYUP", "WAIT_IDLE", "QUIT"),
		"-test", "data/silence.wav")

	diag := readLog(t, logDir, "diagnostics_log.txt")
	for _, want := range []string{"to=listening", "to=processing", "to=injecting", "to=idle", "finalize"} {
		if !strings.Contains(diag, want) {
			t.Errorf("diagnostics missing %q", want)
		}
	}
}

func TestToggleAutoStop(t *testing.T) {
	// No KEYUP: the tone reads as speech, the silence after it has to close
	// the session on its own. Realtime replay so the silence window elapses
	// in wall time.
	logDir := runFake(t, "auto stop works",
		cmds("TAP", "WAIT_IDLE", "QUIT"),
		"-test", "-realtime", "data/tone.wav")

	requireTranscription(t, logDir)
	diag := readLog(t, logDir, "diagnostics_log.txt")
	if !strings.Contains(diag, "to=processing") {
		t.Error("expected the silence window to stop the session")
	}
	if !strings.Contains(diag, "detection") {
		t.Error("expected detection entry in diagnostics")
	}
}

func TestEmptyTranscript(t *testing.T) {
	logDir := runFake(t, "",
		cmds("KEYDOWN", "SLEEP 400", "KEYUP", "WAIT_IDLE", "QUIT"),
		"-test", "data/silence.wav")

	diag := readLog(t, logDir, "diagnostics_log.txt")
	if !strings.Contains(diag, "no speech recognized") {
		t.Error("expected no-speech notice in diagnostics")
	}
	if text := readLog(t, logDir, "transcribe_log.txt"); strings.TrimSpace(text) != "" {
		t.Errorf("blank transcript should not reach the transcribe log, got %q", text)
	}
}

func TestNoSoundTimeout(t *testing.T) {
	// Key held on pure silence; the no-sound timeout has to give up the
	// session without a transcript.
	logDir := runFake(t, "",
		cmds("KEYDOWN", "WAIT_IDLE", "QUIT"),
		"-test", "data/silence.wav")

	diag := readLog(t, logDir, "diagnostics_log.txt")
	if !strings.Contains(diag, "no speech detected") {
		t.Error("expected no-sound timeout notice in diagnostics")
	}
	if text := readLog(t, logDir, "transcribe_log.txt"); strings.TrimSpace(text) != "" {
		t.Errorf("timed-out session should not transcribe, got %q", text)
	}
}

func TestBackToBackSessions(t *testing.T) {
	logDir := runFake(t, "again and again",
		cmds("KEYDOWN", "SLEEP 300", "KEYUP", "WAIT_IDLE",
			"KEYDOWN", "SLEEP 300", "KEYUP", "WAIT_IDLE", "QUIT"),
		"-test", "data/silence.wav")

	text := requireTranscription(t, logDir)
	if got := strings.Count(text, "again and again"); got != 2 {
		t.Errorf("expected 2 transcribe entries, got %d", got)
	}
	diag := readLog(t, logDir, "diagnostics_log.txt")
	if !strings.Contains(diag, "count=2") {
		t.Error("expected session_end count=2 in diagnostics")
	}
}

// --- Real-provider tests ---

func TestGroqBatchWords(t *testing.T) {
	requireGroqKey(t)
	wav := requireSpeechWAV(t)
	logDir := runSotto(t, cmds("KEYDOWN", "SLEEP 300", "KEYUP", "WAIT_IDLE", "QUIT"), nil,
		"-provider", "groq", "-test", wav)

	requireTranscription(t, logDir)
	diag := readLog(t, logDir, "diagnostics_log.txt")
	if !strings.Contains(diag, "transcription") {
		t.Error("expected batch transcription metrics in diagnostics")
	}
}

func TestGroqConnReuse(t *testing.T) {
	requireGroqKey(t)
	wav := requireSpeechWAV(t)
	logDir := runSotto(t, cmds("KEYDOWN", "SLEEP 300", "KEYUP", "WAIT_IDLE",
		"KEYDOWN", "SLEEP 300", "KEYUP", "WAIT_IDLE", "QUIT"), nil,
		"-provider", "groq", "-test", wav)

	diag := readLog(t, logDir, "diagnostics_log.txt")
	if strings.Count(diag, "transcription") < 2 {
		t.Error("expected 2 transcription entries in diagnostics")
	}
	if !strings.Contains(diag, "conn=reused") {
		t.Error("expected conn=reused in diagnostics")
	}
}

func TestDeepgramStreamWords(t *testing.T) {
	requireDeepgramKey(t)
	wav := requireSpeechWAV(t)
	logDir := runSotto(t, cmds("KEYDOWN", "SLEEP 3000", "KEYUP", "WAIT_IDLE", "QUIT"), nil,
		"-provider", "deepgram", "-test", wav)

	requireTranscription(t, logDir)
	diag := readLog(t, logDir, "diagnostics_log.txt")
	if !strings.Contains(diag, "stream_transcription") {
		t.Error("expected stream metrics in diagnostics")
	}
	if !strings.Contains(diag, "connect_ms") {
		t.Error("expected connect_ms in stream metrics")
	}
}
