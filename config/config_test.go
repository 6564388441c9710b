package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"sotto/session"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	cfg, warnings, err := LoadFile(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(warnings) != 0 {
		t.Errorf("unexpected warnings: %v", warnings)
	}
	def := Default()
	if *cfg != *def {
		t.Errorf("got %+v, want defaults %+v", cfg, def)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.json")

	cfg := Default()
	cfg.Provider = "deepgram"
	cfg.Language = "fi"
	cfg.Realtime = true
	cfg.Sensitivity = 2
	if err := cfg.SaveFile(path); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, warnings, err := LoadFile(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(warnings) != 0 {
		t.Errorf("unexpected warnings: %v", warnings)
	}
	if *got != *cfg {
		t.Errorf("got %+v, want %+v", got, cfg)
	}
}

func TestLoadResetsOutOfRangeFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	raw := `{"provider":"aws","sensitivity":99,"silence_ms":50,"language":"fi"}`
	if err := os.WriteFile(path, []byte(raw), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, warnings, err := LoadFile(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(warnings) != 3 {
		t.Fatalf("got %d warnings %v, want 3", len(warnings), warnings)
	}
	for _, key := range []string{"provider", "sensitivity", "silence_ms"} {
		found := false
		for _, w := range warnings {
			if strings.Contains(w, key) {
				found = true
			}
		}
		if !found {
			t.Errorf("no warning mentions %q: %v", key, warnings)
		}
	}

	def := Default()
	if cfg.Provider != def.Provider || cfg.Sensitivity != def.Sensitivity || cfg.SilenceMs != def.SilenceMs {
		t.Errorf("bad fields not reset: %+v", cfg)
	}
	if cfg.Language != "fi" {
		t.Errorf("valid field clobbered: %+v", cfg)
	}
}

func TestLoadMalformedJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte("{nope"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, _, err := LoadFile(path); err == nil {
		t.Fatal("expected error for malformed file")
	}
}

func TestApplyScalesSessionConfig(t *testing.T) {
	cfg := Default()
	cfg.Sensitivity = 2
	cfg.SilenceMs = 900
	cfg.NoSoundMs = 7000
	cfg.Device = "usb-mic"
	cfg.Realtime = true

	sc := session.DefaultConfig()
	base := sc.VAD.BaseSoundThreshold
	cfg.Apply(&sc)

	if sc.SilenceWindow != 900*time.Millisecond {
		t.Errorf("SilenceWindow = %v", sc.SilenceWindow)
	}
	if sc.NoSoundTimeout != 7*time.Second {
		t.Errorf("NoSoundTimeout = %v", sc.NoSoundTimeout)
	}
	if got, want := sc.VAD.BaseSoundThreshold, base/2; got != want {
		t.Errorf("BaseSoundThreshold = %v, want %v", got, want)
	}
	if sc.DeviceID != "usb-mic" || !sc.Realtime {
		t.Errorf("device/realtime not applied: %+v", sc)
	}
}
