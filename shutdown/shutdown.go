// Package shutdown normalizes termination signals across platforms;
// Windows has no SIGTERM to subscribe to.
package shutdown

import "os"

// Channel returns a buffered channel already subscribed to the
// platform's termination signals.
func Channel() chan os.Signal {
	ch := make(chan os.Signal, 1)
	Notify(ch)
	return ch
}
