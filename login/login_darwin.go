//go:build darwin

// Package login installs the start-at-login hook: a LaunchAgent plist on
// macOS, nothing elsewhere.
package login

import (
	"fmt"
	"html"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

const agentLabel = "io.sotto.app"

// Provider keys baked into the agent environment. launchd starts the
// process outside any shell, so exported keys would otherwise be lost.
var bakedKeys = []string{"GROQ_API_KEY", "OPENAI_API_KEY", "DEEPGRAM_API_KEY"}

func plistPath() string {
	return filepath.Join(os.Getenv("HOME"), "Library", "LaunchAgents", agentLabel+".plist")
}

func guiDomain() string {
	return fmt.Sprintf("gui/%d", os.Getuid())
}

// Enabled reports whether the LaunchAgent is installed.
func Enabled() bool {
	_, err := os.Stat(plistPath())
	return err == nil
}

func envDict() string {
	var b strings.Builder
	for _, key := range bakedKeys {
		if v := os.Getenv(key); v != "" {
			fmt.Fprintf(&b, "\t\t\t<key>%s</key>\n\t\t\t<string>%s</string>\n", key, html.EscapeString(v))
		}
	}
	return b.String()
}

func agentPlist(exe string) string {
	return fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE plist PUBLIC "-//Apple//DTD PLIST 1.0//EN" "http://www.apple.com/DTDs/PropertyList-1.0.dtd">
<plist version="1.0">
<dict>
	<key>Label</key>
	<string>%s</string>
	<key>ProgramArguments</key>
	<array>
		<string>%s</string>
	</array>
	<key>RunAtLoad</key>
	<true/>
	<key>LimitLoadToSessionType</key>
	<string>Aqua</string>
	<key>EnvironmentVariables</key>
	<dict>
%s	</dict>
</dict>
</plist>
`, agentLabel, html.EscapeString(exe), envDict())
}

// Enable writes the LaunchAgent plist and bootstraps it into the user's
// gui domain.
func Enable() error {
	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("resolve executable: %w", err)
	}

	path := plistPath()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create LaunchAgents dir: %w", err)
	}
	if err := os.WriteFile(path, []byte(agentPlist(exe)), 0o600); err != nil {
		return fmt.Errorf("write plist: %w", err)
	}

	// Bootout first so re-enabling with a moved binary reloads cleanly.
	exec.Command("launchctl", "bootout", guiDomain(), path).Run()
	if out, err := exec.Command("launchctl", "bootstrap", guiDomain(), path).CombinedOutput(); err != nil {
		return fmt.Errorf("launchctl bootstrap: %w (%s)", err, out)
	}
	return nil
}

// Disable unloads and removes the LaunchAgent. Missing plist is success.
func Disable() error {
	path := plistPath()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	exec.Command("launchctl", "bootout", guiDomain(), path).Run()
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove plist: %w", err)
	}
	return nil
}
