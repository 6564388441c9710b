//go:build gui

package main

import (
	"sotto/session"
	"sotto/window"
)

var overlay = window.NewOverlay()

// runGUI hands the process main thread to the fyne loop; run proceeds on
// a worker goroutine once the loop is up.
func runGUI() {
	if err := overlay.Run(run); err != nil {
		panic(err)
	}
}

func overlayControl() session.WindowControl { return overlay }

func overlayLevel(level float64) { overlay.SetLevel(level) }

func overlayQuit() { overlay.Quit() }
