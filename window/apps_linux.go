package window

import (
	"fmt"
	"os/exec"
	"strings"

	"sotto/session"
)

type apps struct{}

// Apps returns the xdotool-backed application control. X11 only and
// best effort; on Wayland the queries fail and sessions simply run
// without focus restoration.
func Apps() session.AppControl { return apps{} }

// ActiveApp records the focused window. The activation token is the X11
// window id rather than any application identity, so focus returns to
// the exact window that was typed in.
func (apps) ActiveApp() (session.ActiveAppInfo, error) {
	id, err := exec.Command("xdotool", "getactivewindow").Output()
	if err != nil {
		return session.ActiveAppInfo{}, fmt.Errorf("active window: %w", err)
	}
	winID := strings.TrimSpace(string(id))

	info := session.ActiveAppInfo{BundleID: winID}
	if name, err := exec.Command("xdotool", "getwindowname", winID).Output(); err == nil {
		info.Name = strings.TrimSpace(string(name))
	}
	return info, nil
}

func (apps) Activate(windowID string) error {
	if windowID == "" {
		return nil
	}
	if out, err := exec.Command("xdotool", "windowactivate", "--sync", windowID).CombinedOutput(); err != nil {
		return fmt.Errorf("activate window %s: %s", windowID, strings.TrimSpace(string(out)))
	}
	return nil
}
