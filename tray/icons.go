//go:build darwin

package tray

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"math"
)

var (
	iconIdle   []byte // 22px template; the menu bar tints it per theme
	iconIdleHi []byte // 44px retina
	iconRecHi  []byte
	iconBusyHi []byte
)

func init() {
	red := color.RGBA{R: 255, G: 59, B: 48, A: 255}
	amber := color.RGBA{R: 255, G: 179, B: 0, A: 255}
	iconIdle = ringIcon(22, nil)
	iconIdleHi = ringIcon(44, nil)
	iconRecHi = ringIcon(44, &red)
	iconBusyHi = ringIcon(44, &amber)
}

// ringIcon draws an outline circle, filling the center when dot is set.
// The idle variant stays black on transparent so it works as a macOS
// template image.
func ringIcon(size int, dot *color.RGBA) []byte {
	img := image.NewRGBA(image.Rect(0, 0, size, size))
	c := float64(size) / 2
	outer := c - 1
	inner := outer - float64(size)/8
	dotR := float64(size) / 6.5

	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			d := math.Hypot(float64(x)+0.5-c, float64(y)+0.5-c)
			switch {
			case dot != nil && d <= dotR:
				img.Set(x, y, *dot)
			case d <= outer && d >= inner:
				img.Set(x, y, color.Black)
			}
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		panic("tray icon encode: " + err.Error())
	}
	return buf.Bytes()
}
