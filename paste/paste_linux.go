//go:build linux

package paste

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"sync"
	"syscall"
	"time"
)

// ioctl requests from linux/uinput.h.
const (
	uiSetEvbit  = 0x40045564
	uiSetKeybit = 0x40045565
	uiDevCreate = 0x5501
)

// Event types from linux/input-event-codes.h.
const (
	evSyn = 0x00
	evKey = 0x01
)

const (
	busUSB      = 0x03
	keyLeftCtrl = 29
	keyV        = 47

	// Compositors sample modifier state between events; a chord pressed
	// in one burst loses the Ctrl on some of them.
	chordDelay = 5 * time.Millisecond
)

type inputEvent struct {
	Time  syscall.Timeval
	Type  uint16
	Code  uint16
	Value int32
}

type inputID struct {
	Bustype uint16
	Vendor  uint16
	Product uint16
	Version uint16
}

type uinputUserDev struct {
	Name         [80]byte
	ID           inputID
	FfEffectsMax uint32
	Absmax       [64]int32
	Absmin       [64]int32
	Absfuzz      [64]int32
	Absflat      [64]int32
}

var (
	dev     *os.File
	devOnce sync.Once
	devErr  error
)

// Init registers the virtual keyboard. Send calls it on demand; calling it
// at startup moves the compositor settle delay out of the first paste.
func Init() error {
	devOnce.Do(createDevice)
	return devErr
}

func createDevice() {
	path := "/dev/uinput"
	if _, err := os.Stat(path); err != nil {
		path = "/dev/input/uinput"
		if _, err := os.Stat(path); err != nil {
			devErr = errors.New("uinput device not found, try: sudo modprobe uinput")
			return
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|syscall.O_NONBLOCK, os.ModeDevice)
	if err != nil {
		devErr = fmt.Errorf("opening %s: %w", path, err)
		return
	}
	if err := enableKeys(f); err != nil {
		devErr = err
		f.Close()
		return
	}

	ud := uinputUserDev{}
	copy(ud.Name[:], "sotto-paste")
	ud.ID.Bustype = busUSB
	ud.ID.Vendor = 0x1209
	ud.ID.Product = 0x5074
	ud.ID.Version = 1
	if err := binary.Write(f, binary.LittleEndian, &ud); err != nil {
		devErr = err
		f.Close()
		return
	}
	if _, _, errno := syscall.Syscall(syscall.SYS_IOCTL, f.Fd(), uiDevCreate, 0); errno != 0 {
		devErr = errno
		f.Close()
		return
	}
	dev = f
	// The compositor needs a moment to pick up the new keyboard.
	time.Sleep(200 * time.Millisecond)
}

func enableKeys(f *os.File) error {
	if _, _, errno := syscall.Syscall(syscall.SYS_IOCTL, f.Fd(), uiSetEvbit, evKey); errno != 0 {
		return errno
	}
	if _, _, errno := syscall.Syscall(syscall.SYS_IOCTL, f.Fd(), uiSetEvbit, evSyn); errno != 0 {
		return errno
	}
	// Registering the full key range makes udev classify the device as a
	// keyboard rather than a gadget with two buttons.
	for code := uintptr(0); code < 256; code++ {
		if _, _, errno := syscall.Syscall(syscall.SYS_IOCTL, f.Fd(), uiSetKeybit, code); errno != 0 {
			return errno
		}
	}
	return nil
}

func step(code uint16, value int32) error {
	ev := inputEvent{Type: evKey, Code: code, Value: value}
	if err := binary.Write(dev, binary.LittleEndian, &ev); err != nil {
		return err
	}
	syn := inputEvent{Type: evSyn}
	if err := binary.Write(dev, binary.LittleEndian, &syn); err != nil {
		return err
	}
	time.Sleep(chordDelay)
	return nil
}

// Send presses Ctrl+V.
func Send() error {
	if err := Init(); err != nil {
		return err
	}
	chord := []struct {
		code  uint16
		value int32
	}{
		{keyLeftCtrl, 1},
		{keyV, 1},
		{keyV, 0},
		{keyLeftCtrl, 0},
	}
	for _, s := range chord {
		if err := step(s.code, s.value); err != nil {
			return err
		}
	}
	return nil
}
