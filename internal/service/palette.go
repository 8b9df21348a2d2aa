package service

import (
	"github.com/lucasb-eyer/go-colorful"
)

const (
	paletteSaturation = 0.85
	paletteValue      = 0.90
)

// Palette returns n colors spread evenly around the hue wheel (hue_i = i*360/n)
// as hex tokens. For n >= 2 consecutive colors never repeat.
func Palette(n int) []string {
	if n <= 0 {
		return nil
	}

	colors := make([]string, n)
	for i := 0; i < n; i++ {
		hue := float64(i) * 360 / float64(n)
		colors[i] = colorful.Hsv(hue, paletteSaturation, paletteValue).Hex()
	}
	return colors
}
