package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"path/filepath"
	"runtime/debug"
	"sync"
	"time"

	"github.com/joho/godotenv"

	"sotto/audio"
	"sotto/beep"
	"sotto/clipboard"
	"sotto/config"
	"sotto/hotkey"
	"sotto/inject"
	"sotto/log"
	"sotto/login"
	"sotto/paste"
	"sotto/record"
	"sotto/session"
	"sotto/shutdown"
	"sotto/transcriber"
	"sotto/tray"
	"sotto/update"
	"sotto/vad"
	"sotto/window"
)

var version = "dev"

// ownBundleID identifies this process to the delivery sequencer, so a
// session triggered with sotto itself focused never re-activates sotto.
const ownBundleID = "io.sotto.app"

// engine and recorder are assigned once in run, before any event source
// that could reach them is started.
var engine *session.Engine
var recorder *record.Recorder

// hybridReset is swapped in when the hybrid trigger runs; the sink calls
// it whenever a session ends so a self-stopped toggle session cannot
// swallow the next keypress.
var hybridReset = func() {}

var resultMu sync.Mutex
var resultCount int

var deviceSelectChan = make(chan struct{}, 1)

var shutdownOnce sync.Once

func gracefulShutdown() {
	shutdownOnce.Do(func() {
		if engine != nil {
			engine.Cancel()
		}
		if recorder != nil {
			recorder.Close()
		}
		resultMu.Lock()
		n := resultCount
		resultMu.Unlock()
		if n > 0 {
			log.SessionEnd(n)
		}
		log.Close()
		tray.Quit()
		tuiQuit()
		overlayQuit()
		os.Exit(0)
	})
}

func deviceLineText(name string) string {
	if name == "" {
		name = "system default"
	}
	suffix := ""
	if audio.IsBluetooth(name) {
		suffix = " (BT!)"
	}
	return "mic: " + name + suffix + " (ctrl+g)"
}

func modeLineText(trans transcriber.Transcriber, realtime bool, format string) string {
	providerLabel := trans.Name()
	if lang := trans.GetLanguage(); lang != "" {
		providerLabel += " (" + lang + ")"
	}
	if realtime {
		providerLabel += " (stream)"
		format = "pcm16"
	}
	return fmt.Sprintf("[%s | %s]", format, providerLabel)
}

// uiSink fans engine events out to the TUI, tray, overlay, cues and the
// diagnostics log. Methods run under the engine lock and must neither
// block nor call back into the engine synchronously.
type uiSink struct {
	norm *audio.Normalizer

	mu          sync.Mutex
	listenStart time.Time
}

func newUISink() *uiSink {
	return &uiSink{norm: audio.NewNormalizer()}
}

func (s *uiSink) StateChange(from, to session.State) {
	log.StateChange(from.String(), to.String())
	if from == session.StateListening {
		s.logDetection()
	}
	tuiSend(StateMsg{State: to})
	switch to {
	case session.StateListening:
		s.mu.Lock()
		s.listenStart = time.Now()
		s.mu.Unlock()
		tray.SetActivity(tray.ActivityCapturing)
		go beep.PlayStart()
	case session.StateProcessing:
		tray.SetActivity(tray.ActivityProcessing)
		go beep.PlayStop()
	case session.StateInjecting:
		tray.SetActivity(tray.ActivityProcessing)
	case session.StateIdle:
		tray.SetActivity(tray.ActivityIdle)
		hybridReset()
	}
}

// logDetection records the thresholds in effect when listening ended.
func (s *uiSink) logDetection() {
	s.mu.Lock()
	listened := time.Since(s.listenStart)
	s.mu.Unlock()
	// Detection takes the engine lock, which StateChange runs under.
	go func() {
		floor, thr := engine.Detection()
		log.Detection(floor, thr.Sound, thr.Silence, listened.Seconds())
	}()
}

func (s *uiSink) AudioLevel(level float64, speech vad.State) {
	display := s.norm.Level(level)
	tuiSend(LevelMsg{Level: display, Speech: speech})
	overlayLevel(display)
}

func (s *uiSink) Streaming(text string, _ bool) {
	tuiSend(PartialMsg{Text: text})
}

func (s *uiSink) Transcription(text string) {
	tuiSend(TranscriptMsg{Text: text})
}

func (s *uiSink) Notice(text string) {
	log.Info(text)
	tuiSend(NoticeMsg{Text: text})
	tray.Notice(text)
}

func (s *uiSink) Failure(text string) {
	log.Error(text)
	tuiSend(FailureMsg{Text: text})
	tray.Notice(text)
	go beep.PlayError()
}

// result receives the full transcriber outcome of a finalized session,
// for the metrics panel and the session counter.
func (s *uiSink) result(res transcriber.SessionResult) {
	resultMu.Lock()
	resultCount++
	resultMu.Unlock()

	rateLimit := ""
	if res.RateLimit != "" && res.RateLimit != "?/?" {
		rateLimit = "requests: " + res.RateLimit + " remaining"
	}
	tuiSend(ResultMsg{Metrics: res.Metrics, NoSpeech: res.NoSpeech, RateLimit: rateLimit})
}

// loggedRecorder numbers finalize attempts per capture and times each one.
type loggedRecorder struct {
	rec *record.Recorder

	mu      sync.Mutex
	attempt int
}

func (lr *loggedRecorder) StartCapture(ctx context.Context, deviceID string, realtime bool) error {
	lr.mu.Lock()
	lr.attempt = 0
	lr.mu.Unlock()
	return lr.rec.StartCapture(ctx, deviceID, realtime)
}

func (lr *loggedRecorder) StopCapture(ctx context.Context) (string, error) {
	lr.mu.Lock()
	lr.attempt++
	n := lr.attempt
	lr.mu.Unlock()

	start := time.Now()
	text, err := lr.rec.StopCapture(ctx)
	log.FinalizeAttempt(n, float64(time.Since(start).Milliseconds()), err)
	return text, err
}

// loggedDeliverer wraps the delivery sequence with the injection record.
type loggedDeliverer struct {
	inner session.Deliverer
}

func (d loggedDeliverer) Deliver(ctx context.Context, text string, app session.ActiveAppInfo) error {
	start := time.Now()
	err := d.inner.Deliver(ctx, text, app)
	if err == nil {
		log.Injection(len(text), app.Name, float64(time.Since(start).Milliseconds()))
	}
	return err
}

// buildStack wires recorder, delivery and engine around an audio backend.
// Test mode passes a WAV-replay context and a fake injector; production
// passes the platform context and the clipboard injector.
func buildStack(actx audio.Context, trans transcriber.Transcriber, sessCfg session.Config, inj inject.Injector, format, lang string) {
	sink := newUISink()
	recorder = record.New(actx, trans, record.Options{
		Format:   format,
		Language: lang,
		OnLevel:  func(rms float64) { engine.AudioLevel(rms) },
		OnUpdate: func(text string, final bool) { engine.StreamingTranscript(text, final) },
		OnResult: sink.result,
	})

	apps := window.Apps()
	icfg := inject.DefaultConfig()
	icfg.OwnBundleID = ownBundleID
	icfg.Warn = log.Warn
	coord := inject.New(overlayControl(), apps, inj, icfg)

	engine = session.New(sessCfg, session.Ports{
		Recorder: &loggedRecorder{rec: recorder},
		Apps:     apps,
		Window:   overlayControl(),
		Deliver:  loggedDeliverer{inner: coord},
		Sink:     sink,
	})
}

func runUpdateCommand() {
	if version == "dev" {
		fmt.Println("Dev build, cannot check for updates.")
		os.Exit(0)
	}
	fmt.Printf("sotto %s, checking for updates...\n", version)
	rel, err := update.CheckLatest(version)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	if rel == nil {
		fmt.Println("Already up to date.")
		os.Exit(0)
	}
	fmt.Printf("Update available: %s -> %s\n", version, rel.Version)
	fmt.Print("Continue? [y/N] ")
	var answer string
	fmt.Scanln(&answer)
	if answer != "y" && answer != "Y" {
		fmt.Println("Aborted.")
		os.Exit(0)
	}
	fmt.Printf("Downloading %s...\n", rel.Version)
	if err := update.Apply(rel); err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Updated to %s\n", rel.Version)
	os.Exit(0)
}

func run() {
	if len(os.Args) > 1 && os.Args[1] == "update" {
		runUpdateCommand()
	}

	// .env sits next to the binary on dev machines; API keys only.
	godotenv.Load()

	cfg, cfgWarnings, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
		cfg = config.Default()
	}

	deviceFlag := flag.String("device", cfg.Device, "Capture device ID or name substring (empty: system default)")
	setupFlag := flag.Bool("setup", false, "Select the capture device interactively")
	providerFlag := flag.String("provider", cfg.Provider, "Transcription provider: groq, openai or deepgram (empty: first with an API key)")
	langFlag := flag.String("lang", cfg.Language, "Language code hint, e.g. en or fi (empty: auto-detect)")
	formatFlag := flag.String("format", cfg.Format, "Upload format: wav, flac or adaptive")
	realtimeFlag := flag.Bool("realtime", cfg.Realtime, "Stream audio for live partial transcripts (deepgram only)")
	hybridFlag := flag.Bool("hybrid", cfg.Hybrid, "Tap toggles recording, holding works push-to-talk style")
	longPressFlag := flag.Duration("longpress", time.Duration(cfg.LongPressMs)*time.Millisecond, "Hold duration separating push-to-talk from a tap")
	autoPasteFlag := flag.Bool("autopaste", true, "Paste recognized text into the focused application")
	tuiFlag := flag.Bool("tui", true, "Run with the terminal status display")
	noSoundFlag := flag.Bool("nosound", false, "Disable audio cues")
	saveFlag := flag.Bool("save", false, "Write the resolved settings back to the tuning file")
	logPathFlag := flag.String("logpath", "", "Log directory path (default: OS-specific location, use ./ for current dir)")
	profileFlag := flag.String("profile", "", "Enable pprof profiling server (e.g. localhost:6060)")
	versionFlag := flag.Bool("version", false, "Print version and exit")
	testFlag := flag.Bool("test", false, "Scripted test mode: replay a WAV file, read commands from stdin")
	crashFlag := flag.Bool("crash", false, "Trigger synthetic panic for testing crash logging")
	// Parsed for main(); the overlay decision is made before flag.Parse.
	flag.Bool("gui", false, "Run with the on-screen capture overlay (gui builds only)")
	flag.Parse()

	logPath, err := log.ResolveDir(*logPathFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to resolve log directory: %v\n", err)
		os.Exit(1)
	}
	log.SetDir(logPath)
	if err := log.EnsureDir(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not create log directory: %v\n", err)
	}

	crashPath := filepath.Join(log.Dir(), "crash_log.txt")
	crashFile, err := os.OpenFile(crashPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err == nil {
		fmt.Fprintf(crashFile, "\n=== Session %s [pid=%d] ===\n", time.Now().Format("2006-01-02 15:04:05"), os.Getpid())
		debug.SetCrashOutput(crashFile, debug.CrashOptions{})
	}

	if *profileFlag != "" {
		go func() {
			fmt.Fprintf(os.Stderr, "pprof server listening on http://%s/debug/pprof/\n", *profileFlag)
			if err := http.ListenAndServe(*profileFlag, nil); err != nil {
				fmt.Fprintf(os.Stderr, "pprof server error: %v\n", err)
			}
		}()
	}

	if *crashFlag {
		panic("TEST CRASH: synthetic panic to verify crash logging")
	}

	if *versionFlag {
		fmt.Printf("sotto %s\n", version)
		os.Exit(0)
	}

	for _, w := range cfgWarnings {
		fmt.Fprintf(os.Stderr, "Warning: config: %s\n", w)
	}

	switch *formatFlag {
	case "wav", "flac", "adaptive":
	default:
		fmt.Printf("Error: unknown format %q (use wav, flac or adaptive)\n", *formatFlag)
		os.Exit(1)
	}

	if *noSoundFlag || *testFlag {
		beep.Disable()
	}

	var trans transcriber.Transcriber
	if *providerFlag != "" {
		trans, err = transcriber.NewByName(*providerFlag)
	} else {
		trans, err = transcriber.New()
	}
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	trans.SetLanguage(*langFlag)

	realtime := *realtimeFlag
	if trans.Name() == "deepgram" {
		realtime = true
	} else if realtime && trans.Name() != "fake" {
		fmt.Fprintf(os.Stderr, "Warning: -realtime needs deepgram; recording in batch mode\n")
		realtime = false
	}

	// Resolve -setup into a concrete device before anything else opens
	// the microphone.
	deviceLabel := *deviceFlag
	if *setupFlag && !*testFlag {
		actx, err := audio.NewContext()
		if err != nil {
			fmt.Printf("Error initializing audio: %v\n", err)
			os.Exit(1)
		}
		if dev, err := audio.SelectDevice(actx, *deviceFlag); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: device selection failed: %v\n", err)
		} else if dev != nil {
			*deviceFlag = dev.ID
			deviceLabel = dev.Name
		}
		actx.Close()
	}

	// Fold the resolved flags back into the tuning so -save persists the
	// effective settings, not the file's old ones.
	cfg.Provider = *providerFlag
	cfg.Language = *langFlag
	cfg.Format = *formatFlag
	cfg.Device = *deviceFlag
	cfg.Realtime = realtime
	cfg.Hybrid = *hybridFlag
	cfg.LongPressMs = int(*longPressFlag / time.Millisecond)
	if *saveFlag {
		if err := cfg.Save(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: could not save settings: %v\n", err)
		}
	}

	sessCfg := session.DefaultConfig()
	cfg.Apply(&sessCfg)
	sessCfg.DeviceID = *deviceFlag
	sessCfg.Realtime = realtime

	if err := log.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not init logging: %v\n", err)
	}
	mode := "batch"
	if realtime {
		mode = "stream"
	}
	log.SessionStart(trans.Name(), mode, *formatFlag)

	if *testFlag {
		if flag.NArg() == 0 {
			fmt.Fprintln(os.Stderr, "Usage: sotto -test <wav-file>")
			os.Exit(1)
		}
		runTestMode(flag.Arg(0), trans, sessCfg, *formatFlag, *langFlag)
		return
	}

	if *autoPasteFlag {
		if err := paste.Init(); err != nil {
			fmt.Printf("Warning: paste init failed: %v\n", err)
			fmt.Println("Fix with: sudo chmod 660 /dev/uinput && sudo chgrp input /dev/uinput")
		}
	}

	actx, err := audio.NewContext()
	if err != nil {
		log.Errorf("audio context init error: %v", err)
		fmt.Printf("Error initializing audio context: %v\n", err)
		os.Exit(1)
	}
	defer actx.Close()

	var injector inject.Injector = inject.NewClipboardInjector(clipboard.System{}, paste.Send)
	if !*autoPasteFlag {
		injector = clipboardOnly{}
	}
	buildStack(actx, trans, sessCfg, injector, *formatFlag, *langFlag)

	if *tuiFlag {
		startTUI()
	}
	tuiSend(ModeLineMsg{Text: modeLineText(trans, realtime, *formatFlag)})
	tuiSend(DeviceLineMsg{Text: deviceLineText(deviceLabel)})
	tuiSend(HybridHelpMsg{Enabled: *hybridFlag})

	tray.OnDictate(
		func() { engine.Trigger(nil) },
		func() { engine.StopListening() },
	)
	tray.SetProviders(providerEntries(trans.Name()), func(name string) {
		switchProvider(name, *langFlag, *formatFlag)
	})
	tray.SetLogin(login.Enabled())
	tray.OnLogin(func(on bool) error {
		if on {
			return login.Enable()
		}
		return login.Disable()
	})
	trayQuit := tray.Init()

	update.StartBackgroundCheck(version, log.Dir(), func(rel update.Release) {
		log.Info("update_available: " + rel.Version)
		tuiSend(UpdateMsg{Version: rel.Version})
		tray.SetUpdateAvailable(rel.Version, rel.PageURL())
	})

	sigChan := shutdown.Channel()
	go func() {
		select {
		case <-sigChan:
		case <-trayQuit:
		}
		gracefulShutdown()
	}()

	go beep.Init()

	hk := hotkey.New()
	if err := hk.Register(); err != nil {
		log.Errorf("hotkey register error: %v", err)
		fmt.Printf("Error registering hotkey: %v\n", err)
		if hint, derr := hotkey.Diagnose(); derr == nil && hint != "" {
			fmt.Println(hint)
		}
		os.Exit(1)
	}
	defer hk.Unregister()

	if *hybridFlag {
		hy := hotkey.NewHybrid(hk, *longPressFlag)
		hybridReset = hy.Reset
		for {
			select {
			case <-hy.Start():
				engine.Trigger(nil)
			case <-hy.StopChan():
				engine.StopListening()
			case <-deviceSelectChan:
				pickDevice(actx)
			}
		}
	}
	for {
		select {
		case <-hk.Keydown():
			engine.HoldStart(nil)
		case <-hk.Keyup():
			engine.HoldEnd()
		case <-deviceSelectChan:
			pickDevice(actx)
		}
	}
}

// clipboardOnly covers -autopaste=false: the transcript lands on the
// clipboard and stays there, no chord synthesized.
type clipboardOnly struct{}

func (clipboardOnly) Inject(ctx context.Context, text, bundleID string) error {
	return clipboard.System{}.Write(text)
}

func providerEntries(active string) []tray.Provider {
	labels := map[string]string{
		"groq":     "Groq",
		"openai":   "OpenAI",
		"deepgram": "Deepgram (stream)",
	}
	keys := map[string]string{
		"groq":     "GROQ_API_KEY",
		"openai":   "OPENAI_API_KEY",
		"deepgram": "DEEPGRAM_API_KEY",
	}
	var out []tray.Provider
	for _, name := range transcriber.Providers {
		out = append(out, tray.Provider{
			Name:   name,
			Label:  labels[name],
			HasKey: os.Getenv(keys[name]) != "",
			Active: name == active,
		})
	}
	return out
}

// switchProvider swaps transcription backends between sessions. The tray
// disables the picker while a session is live, so the recorder swap never
// races an open capture.
func switchProvider(name, lang, format string) {
	t, err := transcriber.NewByName(name)
	if err != nil {
		log.Warnf("provider switch: %v", err)
		return
	}
	t.SetLanguage(lang)
	recorder.SetTranscriber(t)

	realtime := t.Name() == "deepgram"
	engine.SetRealtime(realtime)

	log.Info("provider_switch: " + name)
	tuiSend(ModeLineMsg{Text: modeLineText(t, realtime, format)})
}

// pickDevice runs the interactive picker from inside the TUI, then points
// the next session at the chosen device.
func pickDevice(actx audio.Context) {
	tuiRelease()
	dev, err := audio.SelectDevice(actx, "")
	tuiRestore()
	if err != nil {
		log.Warnf("device selection failed: %v", err)
		return
	}
	if dev == nil {
		return
	}
	log.Info("device_switch: " + dev.Name)
	engine.SetDevice(dev.ID)
	tuiSend(DeviceLineMsg{Text: deviceLineText(dev.Name)})
}
