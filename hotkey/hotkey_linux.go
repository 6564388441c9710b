//go:build linux

package hotkey

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Raw evdev key codes and event framing. X11 and Wayland both sit above
// /dev/input, so reading it directly works on either, at the cost of
// needing membership in the input group.
const (
	evKey      = 1
	keyPress   = 1
	keyRelease = 0
	keyLCtrl   = 29
	keyRCtrl   = 97
	keyLShift  = 42
	keyRShift  = 54
	keySpace   = 57
)

// struct input_event on 64-bit: timeval (16) + type (2) + code (2) + value (4).
const inputEventSize = 24

type keyEvent struct {
	code     uint16
	pressed  bool
	released bool
}

func decodeKeyEvent(b []byte) (keyEvent, bool) {
	if binary.LittleEndian.Uint16(b[16:]) != evKey {
		return keyEvent{}, false
	}
	v := int32(binary.LittleEndian.Uint32(b[20:]))
	return keyEvent{
		code:     binary.LittleEndian.Uint16(b[18:]),
		pressed:  v == keyPress,
		released: v == keyRelease,
	}, true
}

type modMask uint8

const (
	modCtrl modMask = 1 << iota
	modShift
)

type linuxHotkey struct {
	keydown chan struct{}
	keyup   chan struct{}
	files   []*os.File
	stop    chan struct{}
	once    sync.Once
}

// New returns the evdev-backed listener for Ctrl+Shift+Space. Register
// opens every keyboard-looking device so external keyboards work too.
func New() Hotkey {
	return &linuxHotkey{
		keydown: make(chan struct{}, 1),
		keyup:   make(chan struct{}, 1),
	}
}

func (h *linuxHotkey) Register() error {
	keyboards, err := findKeyboards()
	if err != nil {
		return fmt.Errorf("finding keyboards: %w", err)
	}
	if len(keyboards) == 0 {
		return fmt.Errorf("no keyboard devices found (is user in 'input' group?)")
	}

	h.stop = make(chan struct{})

	for _, path := range keyboards {
		f, err := os.Open(path)
		if err != nil {
			continue
		}
		h.files = append(h.files, f)
		go h.readEvents(f)
	}

	if len(h.files) == 0 {
		return fmt.Errorf("could not open any keyboard device (run: sudo usermod -aG input $USER, then re-login)")
	}

	return nil
}

func (h *linuxHotkey) readEvents(f *os.File) {
	buf := make([]byte, inputEventSize*16)
	var mods modMask
	var spaceHeld bool

	for {
		select {
		case <-h.stop:
			return
		default:
		}

		n, err := f.Read(buf)
		if err != nil {
			return
		}

		for i := 0; i+inputEventSize <= n; i += inputEventSize {
			ev, ok := decodeKeyEvent(buf[i : i+inputEventSize])
			if !ok {
				continue
			}

			switch ev.code {
			case keyLCtrl, keyRCtrl:
				mods = mods.apply(modCtrl, ev)
			case keyLShift, keyRShift:
				mods = mods.apply(modShift, ev)
			case keySpace:
				if ev.pressed && !spaceHeld && mods.has(modCtrl|modShift) {
					spaceHeld = true
					select {
					case h.keydown <- struct{}{}:
					default:
					}
				} else if ev.released && spaceHeld {
					spaceHeld = false
					select {
					case h.keyup <- struct{}{}:
					default:
					}
				}
			}
		}
	}
}

// apply keeps the bit set across key repeat events (neither press nor release).
func (m modMask) apply(bit modMask, ev keyEvent) modMask {
	if ev.pressed {
		return m | bit
	}
	if ev.released {
		return m &^ bit
	}
	return m
}

func (m modMask) has(bits modMask) bool { return m&bits == bits }

func (h *linuxHotkey) Unregister() {
	h.once.Do(func() {
		if h.stop != nil {
			close(h.stop)
		}
		for _, f := range h.files {
			f.Close()
		}
	})
}

func (h *linuxHotkey) Keydown() <-chan struct{} {
	return h.keydown
}

func (h *linuxHotkey) Keyup() <-chan struct{} {
	return h.keyup
}

func findKeyboards() ([]string, error) {
	entries, err := os.ReadDir("/dev/input")
	if err != nil {
		return nil, err
	}

	var keyboards []string
	for _, e := range entries {
		if !strings.HasPrefix(e.Name(), "event") {
			continue
		}
		if isKeyboard(e.Name()) {
			keyboards = append(keyboards, filepath.Join("/dev/input", e.Name()))
		}
	}
	return keyboards, nil
}

// isKeyboard filters out mice and buttons by the size of the key
// capability bitmap; real keyboards advertise far more than ten keys.
func isKeyboard(eventName string) bool {
	capsPath := filepath.Join("/sys/class/input", eventName, "device", "capabilities", "key")
	data, err := os.ReadFile(capsPath)
	if err != nil {
		return false
	}
	return len(strings.TrimSpace(string(data))) > 10
}

// Diagnose reports whether the hotkey backend can work at all, used to
// explain Register failures. It scans and test-opens devices without
// keeping them.
func Diagnose() (string, error) {
	keyboards, err := findKeyboards()
	if err != nil {
		return "", fmt.Errorf("cannot scan input devices: %w", err)
	}
	if len(keyboards) == 0 {
		return "", fmt.Errorf("no keyboard devices found (is user in 'input' group?)")
	}

	var opened string
	for _, path := range keyboards {
		f, err := os.Open(path)
		if err == nil {
			f.Close()
			opened = path
			break
		}
	}
	if opened == "" {
		return "", fmt.Errorf("found %d keyboard(s) but cannot open any (run: sudo usermod -aG input $USER)", len(keyboards))
	}

	return fmt.Sprintf("%d keyboard(s) found, opened %s", len(keyboards), opened), nil
}
