package inject

import (
	"context"
	"sync"
)

// Fake is an Injector that records deliveries instead of pasting. Test mode
// and unit tests use it.
type Fake struct {
	// Notify, when set, observes every successful delivery.
	Notify func(text string)

	mu    sync.Mutex
	err   error
	texts []string
}

func (f *Fake) Inject(ctx context.Context, text, bundleID string) error {
	f.mu.Lock()
	err := f.err
	if err == nil {
		f.texts = append(f.texts, text)
	}
	notify := f.Notify
	f.mu.Unlock()
	if err == nil && notify != nil {
		notify(text)
	}
	return err
}

// Fail makes every following Inject return err; nil restores success.
func (f *Fake) Fail(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

func (f *Fake) Texts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.texts...)
}
