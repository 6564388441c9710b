// Package clipboard wraps the system clipboard behind the small surface
// the injector consumes.
package clipboard

import cb "github.com/atotto/clipboard"

// System is the real clipboard. The zero value is ready to use.
type System struct{}

func (System) Read() (string, error)   { return cb.ReadAll() }
func (System) Write(text string) error { return cb.WriteAll(text) }
