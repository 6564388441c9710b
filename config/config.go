// Package config reads and writes the tuning file. Values here are the
// durable knobs; flags and environment variables layer on top in main.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"sotto/session"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

func init() {
	// Report file keys, not Go field names, in warnings.
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
}

// Config is the persisted tuning. Every field has a safe default; a
// field that fails validation is reset to that default on load rather
// than rejecting the whole file.
type Config struct {
	Provider string `json:"provider" validate:"omitempty,oneof=groq openai deepgram"`
	Language string `json:"language" validate:"omitempty,max=16"`
	Format   string `json:"format" validate:"omitempty,oneof=wav flac adaptive"`

	// Device is a capture device ID or name substring, empty for the
	// system default.
	Device   string `json:"device" validate:"omitempty,max=256"`
	Realtime bool   `json:"realtime"`

	// Hybrid enables tap-to-toggle on the hotkey; LongPressMs is the
	// hold duration that switches a press to push-to-talk.
	Hybrid      bool `json:"hybrid"`
	LongPressMs int  `json:"long_press_ms" validate:"omitempty,gte=100,lte=5000"`

	// Sensitivity scales the speech detection thresholds. Above 1 picks
	// up quieter speech, below 1 needs louder speech.
	Sensitivity float64 `json:"sensitivity" validate:"omitempty,gte=0.25,lte=4"`

	// SilenceMs is the continuous-silence window that ends a recording.
	SilenceMs int `json:"silence_ms" validate:"omitempty,gte=300,lte=10000"`

	// NoSoundMs cancels a recording in which speech never started.
	NoSoundMs int `json:"no_sound_ms" validate:"omitempty,gte=1000,lte=30000"`
}

func Default() *Config {
	return &Config{
		Format:      "adaptive",
		Hybrid:      true,
		LongPressMs: 800,
		Sensitivity: 1.0,
		SilenceMs:   1500,
		NoSoundMs:   5000,
	}
}

func dir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "sotto")
}

// Path returns the tuning file location.
func Path() string {
	return filepath.Join(dir(), "config.json")
}

// Load reads the tuning file, applying defaults for anything missing or
// out of range. Out-of-range fields are reported as warnings.
func Load() (*Config, []string, error) {
	return LoadFile(Path())
}

func LoadFile(path string) (*Config, []string, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil, nil
		}
		return nil, nil, err
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	warnings := cfg.clampInvalid()
	return cfg, warnings, nil
}

// clampInvalid resets every field that fails validation back to its
// default and describes each reset.
func (c *Config) clampInvalid() []string {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return []string{err.Error()}
	}

	def := Default()
	var warnings []string
	for _, e := range verrs {
		warnings = append(warnings, fmt.Sprintf("%s %s; using default", e.Field(), fieldMessage(e)))
		c.resetField(e.Field(), def)
	}
	return warnings
}

func (c *Config) resetField(key string, def *Config) {
	switch key {
	case "provider":
		c.Provider = def.Provider
	case "language":
		c.Language = def.Language
	case "format":
		c.Format = def.Format
	case "device":
		c.Device = def.Device
	case "long_press_ms":
		c.LongPressMs = def.LongPressMs
	case "sensitivity":
		c.Sensitivity = def.Sensitivity
	case "silence_ms":
		c.SilenceMs = def.SilenceMs
	case "no_sound_ms":
		c.NoSoundMs = def.NoSoundMs
	}
}

func fieldMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "oneof":
		return fmt.Sprintf("must be one of: %s", e.Param())
	case "gte":
		return fmt.Sprintf("must be at least %s", e.Param())
	case "lte":
		return fmt.Sprintf("must be at most %s", e.Param())
	case "max":
		return fmt.Sprintf("must be at most %s characters", e.Param())
	default:
		return fmt.Sprintf("failed validation %q", e.Tag())
	}
}

// Save writes the tuning file, creating its directory if needed.
func (c *Config) Save() error {
	return c.SaveFile(Path())
}

func (c *Config) SaveFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Apply folds the tuning into a session config. Flags may still
// override individual fields afterward.
func (c *Config) Apply(sc *session.Config) {
	if c.SilenceMs > 0 {
		sc.SilenceWindow = time.Duration(c.SilenceMs) * time.Millisecond
	}
	if c.NoSoundMs > 0 {
		sc.NoSoundTimeout = time.Duration(c.NoSoundMs) * time.Millisecond
	}
	if c.Sensitivity > 0 && c.Sensitivity != 1 {
		sc.VAD.BaseSoundThreshold /= c.Sensitivity
		sc.VAD.BaseSilenceThreshold /= c.Sensitivity
		sc.VAD.SoundFloorFactor /= c.Sensitivity
		sc.VAD.SilenceFloorFactor /= c.Sensitivity
	}
	if c.Device != "" {
		sc.DeviceID = c.Device
	}
	sc.Realtime = c.Realtime
}
