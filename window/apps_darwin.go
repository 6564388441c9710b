package window

import (
	"fmt"
	"os/exec"
	"strings"

	"sotto/session"
)

const frontmostScript = `tell application "System Events" to get {name, bundle identifier} of first process whose frontmost is true`

type apps struct{}

// Apps returns the AppleScript-backed application control. The first
// call prompts for the automation permission.
func Apps() session.AppControl { return apps{} }

func (apps) ActiveApp() (session.ActiveAppInfo, error) {
	out, err := exec.Command("osascript", "-e", frontmostScript).Output()
	if err != nil {
		return session.ActiveAppInfo{}, fmt.Errorf("frontmost app: %w", err)
	}

	// "Safari, com.apple.Safari". The name may contain commas, the
	// bundle identifier cannot, so split at the last one.
	s := strings.TrimSpace(string(out))
	info := session.ActiveAppInfo{Name: s}
	if i := strings.LastIndex(s, ", "); i >= 0 {
		info.Name = s[:i]
		info.BundleID = s[i+2:]
	}
	if info.BundleID == "missing value" {
		info.BundleID = ""
	}
	return info, nil
}

func (apps) Activate(bundleID string) error {
	if bundleID == "" {
		return nil
	}
	script := fmt.Sprintf("tell application id %q to activate", bundleID)
	if out, err := exec.Command("osascript", "-e", script).CombinedOutput(); err != nil {
		return fmt.Errorf("activate %s: %s", bundleID, strings.TrimSpace(string(out)))
	}
	return nil
}
