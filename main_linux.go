//go:build linux

package main

import "os"

func main() {
	// The overlay decision happens before flag.Parse because the fyne
	// loop must own the first thread.
	for _, arg := range os.Args[1:] {
		if arg == "-gui" {
			runGUI()
			return
		}
	}
	run()
}
