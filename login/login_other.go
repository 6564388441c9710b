//go:build !darwin

// Package login installs the start-at-login hook: a LaunchAgent plist on
// macOS, nothing elsewhere.
package login

import "errors"

func Enabled() bool { return false }

func Enable() error {
	return errors.New("start at login is not supported on this platform")
}

func Disable() error { return nil }
