//go:build !gui

package main

import "sotto/session"

// noOverlay stands in when the build carries no fyne: sessions run with
// no on-screen indicator and delivery skips the hide step.
type noOverlay struct{}

func (noOverlay) Show()  {}
func (noOverlay) Hide()  {}
func (noOverlay) Focus() {}

func runGUI() {
	panic("sotto: built without the capture overlay (rebuild with -tags gui)")
}

func overlayControl() session.WindowControl { return noOverlay{} }

func overlayLevel(float64) {}

func overlayQuit() {}
