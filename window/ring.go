//go:build gui

package window

import (
	"image/color"
	"math"
	"sync"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/widget"
)

const (
	ringSide      = 120.0
	coreRadius    = 6.0
	pulseBase     = 16.0
	pulseSwing    = 34.0
	frameInterval = 33 * time.Millisecond
)

var (
	colorShell     = color.RGBA{48, 48, 48, 255}
	colorCoreIdle  = color.RGBA{180, 180, 180, 255}
	colorCoreRec   = color.RGBA{255, 255, 255, 255}
	colorPulseIdle = color.RGBA{95, 0, 0, 255}
	colorPulseRec  = color.RGBA{255, 135, 0, 255}
)

// ringWidget draws a breathing pulse whose radius follows the capture
// level inside a fixed shell ring.
type ringWidget struct {
	widget.BaseWidget
	mu        sync.Mutex
	frame     int
	level     float64
	recording bool
	stopCh    chan struct{}
}

func newRing() *ringWidget {
	r := &ringWidget{stopCh: make(chan struct{})}
	r.ExtendBaseWidget(r)
	go r.animate()
	return r
}

// SetLevel smooths with a fast attack and slow decay so speech onsets
// snap visibly and the tail fades out.
func (r *ringWidget) SetLevel(l float64) {
	r.mu.Lock()
	if r.recording {
		if l > r.level {
			r.level = r.level*0.2 + l*0.8
		} else {
			r.level = r.level*0.7 + l*0.3
		}
	}
	r.mu.Unlock()
}

func (r *ringWidget) SetRecording(rec bool) {
	r.mu.Lock()
	r.recording = rec
	if !rec {
		r.level = 0
	}
	r.mu.Unlock()
}

func (r *ringWidget) Stop() {
	select {
	case <-r.stopCh:
	default:
		close(r.stopCh)
	}
}

func (r *ringWidget) animate() {
	ticker := time.NewTicker(frameInterval)
	defer ticker.Stop()
	for {
		select {
		case <-r.stopCh:
			return
		case <-ticker.C:
			r.mu.Lock()
			r.frame++
			r.mu.Unlock()
			fyne.Do(func() {
				r.Refresh()
			})
		}
	}
}

func (r *ringWidget) MinSize() fyne.Size {
	return fyne.NewSize(ringSide, ringSide)
}

func (r *ringWidget) CreateRenderer() fyne.WidgetRenderer {
	rr := &ringRenderer{ring: r}
	rr.shell = canvas.NewCircle(color.Transparent)
	rr.shell.StrokeColor = colorShell
	rr.shell.StrokeWidth = 2
	rr.pulse = canvas.NewCircle(colorPulseIdle)
	rr.core = canvas.NewCircle(colorCoreIdle)
	return rr
}

type ringRenderer struct {
	ring  *ringWidget
	shell *canvas.Circle
	pulse *canvas.Circle
	core  *canvas.Circle
	size  fyne.Size
}

func (rr *ringRenderer) Layout(size fyne.Size) {
	rr.size = size
	centerCircle(rr.shell, size, ringSide/2-2)
	centerCircle(rr.core, size, coreRadius)
	rr.Refresh()
}

func (rr *ringRenderer) MinSize() fyne.Size {
	return rr.ring.MinSize()
}

func (rr *ringRenderer) Refresh() {
	rr.ring.mu.Lock()
	frame := rr.ring.frame
	level := rr.ring.level
	recording := rr.ring.recording
	rr.ring.mu.Unlock()

	var breathe float64
	if recording {
		breathe = math.Sin(float64(frame)*0.15) * 2
	} else {
		breathe = math.Sin(float64(frame)*0.1) * 1.5
	}

	radius := pulseBase + breathe
	if recording {
		radius += level * pulseSwing
	}
	if limit := ringSide/2.0 - 4; radius > limit {
		radius = limit
	}

	if recording {
		rr.pulse.FillColor = colorPulseRec
		rr.core.FillColor = colorCoreRec
	} else {
		rr.pulse.FillColor = colorPulseIdle
		rr.core.FillColor = colorCoreIdle
	}

	size := rr.size
	if size.Width == 0 {
		size = rr.ring.MinSize()
	}
	centerCircle(rr.pulse, size, float32(radius))

	rr.shell.Refresh()
	rr.pulse.Refresh()
	rr.core.Refresh()
}

func centerCircle(c *canvas.Circle, size fyne.Size, radius float32) {
	c.Move(fyne.NewPos(size.Width/2-radius, size.Height/2-radius))
	c.Resize(fyne.NewSize(radius*2, radius*2))
}

func (rr *ringRenderer) Objects() []fyne.CanvasObject {
	return []fyne.CanvasObject{rr.pulse, rr.shell, rr.core}
}

func (rr *ringRenderer) Destroy() {
	rr.ring.Stop()
}
