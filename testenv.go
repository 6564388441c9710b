package main

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"sotto/audio"
	"sotto/inject"
	"sotto/log"
	"sotto/session"
	"sotto/transcriber"
)

// runTestMode drives the full engine from a stdin script instead of the
// hotkey: KEYDOWN/KEYUP for push-to-talk, TAP for a toggle, WAIT_IDLE to
// block until the session settles, SLEEP <ms>, QUIT. Audio comes from a
// WAV replay and injection goes to a fake, so runs are headless; the
// integration tests assert on the log files this mode still writes.
func runTestMode(wavPath string, trans transcriber.Transcriber, sessCfg session.Config, format, lang string) {
	fakeCtx, err := audio.NewFakeContext(wavPath, sessCfg.Realtime)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading WAV: %v\n", err)
		os.Exit(1)
	}

	buildStack(fakeCtx, trans, sessCfg, &inject.Fake{}, format, lang)

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		cmd := strings.TrimSpace(scanner.Text())
		if cmd == "" || strings.HasPrefix(cmd, "#") {
			continue
		}
		switch cmd {
		case "KEYDOWN":
			engine.HoldStart(nil)
		case "KEYUP":
			engine.HoldEnd()
		case "TAP":
			engine.Trigger(nil)
		case "WAIT_IDLE":
			waitIdle()
		case "QUIT":
			quitTestMode()
		default:
			if ms, ok := strings.CutPrefix(cmd, "SLEEP "); ok {
				if n, err := strconv.Atoi(ms); err == nil {
					time.Sleep(time.Duration(n) * time.Millisecond)
				}
			}
		}
	}
	quitTestMode()
}

// waitIdle blocks until the engine returns to idle. Commands run strictly
// in script order, so a KEYDOWN has already moved the state on before the
// next line is read.
func waitIdle() {
	for engine.State() != session.StateIdle {
		time.Sleep(10 * time.Millisecond)
	}
}

func quitTestMode() {
	resultMu.Lock()
	n := resultCount
	resultMu.Unlock()
	log.SessionEnd(n)
	log.Close()
	os.Exit(0)
}
