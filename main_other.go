//go:build !linux

package main

import (
	"os"
	"runtime"

	"golang.design/x/hotkey/mainthread"
)

func init() {
	// Core Audio and the hotkey event tap both want the first thread.
	runtime.LockOSThread()
}

func main() {
	// With -gui the fyne loop owns the first thread and run proceeds on
	// a worker goroutine; otherwise x/hotkey gets the thread.
	for _, arg := range os.Args[1:] {
		if arg == "-gui" {
			runGUI()
			return
		}
	}
	mainthread.Init(run)
}
