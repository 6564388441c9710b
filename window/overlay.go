//go:build gui

package window

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"math"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/driver/desktop"
	"fyne.io/fyne/v2/theme"
	"github.com/go-gl/glfw/v3.3/glfw"
)

// Overlay is the frameless level indicator shown while a session
// records. It implements session.WindowControl; Show never takes
// keyboard focus away from the target application.
type Overlay struct {
	fyneApp fyne.App
	window  fyne.Window
	ring    *ringWidget
	posX    int
	posY    int
}

func NewOverlay() *Overlay { return &Overlay{} }

// Run starts the fyne event loop and blocks until Quit. It must run on
// the process main thread; onReady is started on its own goroutine once
// the loop is set up. The window stays hidden until the first Show.
func (o *Overlay) Run(onReady func()) error {
	o.fyneApp = app.NewWithID("io.sotto.overlay")
	o.fyneApp.Settings().SetTheme(&overlayTheme{})

	if desk, ok := o.fyneApp.(desktop.App); ok {
		icon := fyne.NewStaticResource("tray.png", overlayIcon())
		menu := fyne.NewMenu("sotto",
			fyne.NewMenuItem("Quit", func() { o.fyneApp.Quit() }),
		)
		desk.SetSystemTrayMenu(menu)
		desk.SetSystemTrayIcon(icon)
	}

	// Primary monitor work area decides the resting position.
	screenW, screenH := 1920, 1080
	if monitor := glfw.GetPrimaryMonitor(); monitor != nil {
		_, _, screenW, screenH = monitor.GetWorkarea()
	}

	if drv, ok := o.fyneApp.Driver().(desktop.Driver); ok {
		o.window = drv.CreateSplashWindow()
	} else {
		o.window = o.fyneApp.NewWindow("sotto")
	}

	o.ring = newRing()
	o.window.SetContent(o.ring)
	o.window.SetFixedSize(true)
	o.window.SetPadded(false)

	size := o.ring.MinSize()
	o.window.Resize(size)

	// Bottom center, clear of the dock.
	o.posX = (screenW - int(size.Width)) / 2
	o.posY = screenH - int(size.Height) - 20

	go onReady()

	o.fyneApp.Run()
	return nil
}

func (o *Overlay) Quit() {
	if o.fyneApp != nil {
		o.fyneApp.Quit()
	}
}

// Show places the overlay above other windows without focusing it, so
// typing in the target application continues uninterrupted. All controls
// no-op until Run has set the window up, which covers gui builds started
// without -gui.
func (o *Overlay) Show() {
	if o.ring == nil {
		return
	}
	o.ring.SetRecording(true)
	fyne.Do(func() {
		// GLFW attributes must be set before the window becomes visible.
		if w := glfw.GetCurrentContext(); w != nil {
			w.SetPos(o.posX, o.posY)
			w.SetAttrib(glfw.FocusOnShow, glfw.False)
			w.SetAttrib(glfw.Floating, glfw.True)
			w.Show()
			return
		}
		o.window.Show()
	})
}

func (o *Overlay) Hide() {
	if o.ring == nil {
		return
	}
	o.ring.SetRecording(false)
	fyne.Do(func() {
		o.window.Hide()
	})
}

// Focus raises the overlay with keyboard focus, for the rare moments
// the user should look at it rather than the target.
func (o *Overlay) Focus() {
	if o.window == nil {
		return
	}
	fyne.Do(func() {
		o.window.RequestFocus()
	})
}

// SetLevel feeds the ring. Levels arrive already normalized to [0, 1].
func (o *Overlay) SetLevel(level float64) {
	if o.ring != nil {
		o.ring.SetLevel(level)
	}
}

type overlayTheme struct{}

func (t *overlayTheme) Color(name fyne.ThemeColorName, variant fyne.ThemeVariant) color.Color {
	switch name {
	case theme.ColorNameBackground:
		return color.RGBA{18, 18, 18, 255}
	case theme.ColorNameForeground:
		return color.RGBA{200, 200, 200, 255}
	}
	return theme.DefaultTheme().Color(name, theme.VariantDark)
}

func (t *overlayTheme) Font(style fyne.TextStyle) fyne.Resource {
	return theme.DefaultTheme().Font(style)
}

func (t *overlayTheme) Icon(name fyne.ThemeIconName) fyne.Resource {
	return theme.DefaultTheme().Icon(name)
}

func (t *overlayTheme) Size(name fyne.ThemeSizeName) float32 {
	return theme.DefaultTheme().Size(name)
}

// overlayIcon renders the tray dot at startup; no asset files to ship.
func overlayIcon() []byte {
	const size = 22
	img := image.NewRGBA(image.Rect(0, 0, size, size))
	c := float64(size) / 2
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			d := math.Hypot(float64(x)+0.5-c, float64(y)+0.5-c)
			switch {
			case d < 4:
				img.Set(x, y, color.RGBA{255, 59, 48, 255})
			case d < 9:
				img.Set(x, y, color.RGBA{48, 48, 48, 255})
			case d < 10:
				img.Set(x, y, color.RGBA{18, 18, 18, 255})
			}
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		panic("overlay icon: " + err.Error())
	}
	return buf.Bytes()
}
