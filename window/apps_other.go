//go:build !darwin && !linux

package window

import "sotto/session"

type apps struct{}

// Apps returns a stub; sessions run without focus restoration and text
// lands in whatever window is frontmost at delivery time.
func Apps() session.AppControl { return apps{} }

func (apps) ActiveApp() (session.ActiveAppInfo, error) {
	return session.ActiveAppInfo{}, nil
}

func (apps) Activate(string) error { return nil }
