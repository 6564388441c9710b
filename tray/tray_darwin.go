//go:build darwin

package tray

import (
	"os/exec"

	"github.com/energye/systray"
	"golang.design/x/hotkey/mainthread"
)

var (
	mDictate  *systray.MenuItem
	mBackend  *systray.MenuItem
	mLogin    *systray.MenuItem
	mUpdate   *systray.MenuItem
	updateURL string

	providerItems []*systray.MenuItem
)

// Init mounts the tray onto the main-thread run loop and returns the
// channel closed by Quit or by the tray's own Quit item.
func Init() <-chan struct{} {
	start, _ := systray.RunWithExternalLoop(onReady, onExit)
	done := make(chan struct{})
	mainthread.Call(func() {
		start()
		close(done)
	})
	<-done
	return quitCh
}

func onReady() {
	systray.SetTemplateIcon(iconIdleHi, iconIdle)
	systray.SetTooltip(defaultTooltip)

	mDictate = systray.AddMenuItem("Start Dictation", "Start or stop a dictation")
	mDictate.Click(func() {
		if activity == ActivityIdle {
			if dictateStartFn != nil {
				dictateStartFn()
			}
		} else if dictateStopFn != nil {
			dictateStopFn()
		}
	})

	systray.AddSeparator()

	providerMu.Lock()
	if len(providers) > 0 {
		mBackend = systray.AddMenuItem("Backend", "Transcription backend")
		providerItems = make([]*systray.MenuItem, 0, len(providers))
		for i, p := range providers {
			idx := i
			title := p.Label
			if !p.HasKey {
				title += " (no API key)"
			}
			item := mBackend.AddSubMenuItemCheckbox(title, title, p.Active)
			if !p.HasKey {
				item.Disable()
			}
			item.Click(func() { switchProvider(idx) })
			providerItems = append(providerItems, item)
		}
	}
	providerMu.Unlock()

	mLogin = systray.AddMenuItemCheckbox("Start at Login", "Launch sotto when you log in", loginOn)
	mLogin.Click(func() {
		next := !mLogin.Checked()
		if loginCb != nil {
			if err := loginCb(next); err != nil {
				return
			}
		}
		if next {
			mLogin.Check()
		} else {
			mLogin.Uncheck()
		}
	})

	mUpdate = systray.AddMenuItem("", "Open the release page")
	mUpdate.Hide()
	mUpdate.Click(func() {
		if updateURL != "" {
			exec.Command("open", updateURL).Start()
		}
	})

	systray.AddSeparator()
	mQuit := systray.AddMenuItem("Quit", "Quit sotto")
	mQuit.Click(func() { Quit() })
	systray.CreateMenu()
}

func switchProvider(idx int) {
	providerMu.Lock()
	pr := providers[idx]
	cb := providerCb
	providerMu.Unlock()
	if !pr.HasKey || cb == nil {
		return
	}
	cb(pr.Name)

	providerMu.Lock()
	for j, it := range providerItems {
		if j == idx {
			it.Check()
			providers[j].Active = true
		} else {
			it.Uncheck()
			providers[j].Active = false
		}
	}
	providerMu.Unlock()
}

func updateActivityIcon(a Activity) {
	switch a {
	case ActivityCapturing:
		systray.SetIcon(iconRecHi)
		if mDictate != nil {
			mDictate.SetTitle("Stop Dictation")
		}
	case ActivityProcessing:
		systray.SetIcon(iconBusyHi)
		if mDictate != nil {
			mDictate.SetTitle("Transcribing...")
		}
	default:
		systray.SetTemplateIcon(iconIdleHi, iconIdle)
		if mDictate != nil {
			mDictate.SetTitle("Start Dictation")
		}
	}
}

func updateTooltip(msg string) { systray.SetTooltip(msg) }

func addUpdateItem(version, url string) {
	updateURL = url
	if mUpdate != nil {
		mUpdate.SetTitle("Update available: " + version)
		mUpdate.Show()
	}
}

func enableProviderMenu() {
	if mBackend != nil {
		mBackend.Enable()
	}
}

func disableProviderMenu() {
	if mBackend != nil {
		mBackend.Disable()
	}
}

func onExit() {
	closeOnce.Do(func() { close(quitCh) })
}
