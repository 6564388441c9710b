// Package window owns the on-screen capture indicator and the
// active-application queries used to return focus after delivery. The
// fyne overlay only exists in builds with the gui tag; the application
// control compiles everywhere with per-platform backends.
package window
