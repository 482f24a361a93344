package vm

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Color is an HSV color with transparency, every channel in 0..100.
// Hue 0..100 maps onto 0..360 degrees.
type Color struct {
	Hue          float64
	Saturation   float64
	Brightness   float64
	Transparency float64
}

// ColorFromRGB builds a Color from 8-bit RGB channels.
func ColorFromRGB(r, g, b uint8) Color {
	rf, gf, bf := float64(r)/255, float64(g)/255, float64(b)/255
	maxc := math.Max(rf, math.Max(gf, bf))
	minc := math.Min(rf, math.Min(gf, bf))
	delta := maxc - minc

	var h float64
	switch {
	case delta == 0:
		h = 0
	case maxc == rf:
		h = math.Mod((gf-bf)/delta, 6)
	case maxc == gf:
		h = (bf-rf)/delta + 2
	default:
		h = (rf-gf)/delta + 4
	}
	h *= 60
	if h < 0 {
		h += 360
	}

	var s float64
	if maxc != 0 {
		s = delta / maxc
	}
	return Color{
		Hue:        h / 360 * 100,
		Saturation: s * 100,
		Brightness: maxc * 100,
	}
}

// ColorFromPacked builds a Color from 0xRRGGBB. Bits above 24 are treated
// as alpha when present.
func ColorFromPacked(n uint32) Color {
	c := ColorFromRGB(uint8(n>>16), uint8(n>>8), uint8(n))
	if a := uint8(n >> 24); a != 0 {
		c.Transparency = 100 - float64(a)/255*100
	}
	return c
}

// ParseHexColor parses "#rrggbb" or "#rgb".
func ParseHexColor(s string) (Color, bool) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(s) == 3 {
		s = string([]byte{s[0], s[0], s[1], s[1], s[2], s[2]})
	}
	if len(s) != 6 {
		return Color{}, false
	}
	n, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return Color{}, false
	}
	return ColorFromPacked(uint32(n)), true
}

// RGB converts the color to 8-bit channels, ignoring transparency.
func (c Color) RGB() (r, g, b uint8) {
	h := math.Mod(c.Hue/100*360, 360)
	if h < 0 {
		h += 360
	}
	s := clamp(c.Saturation, 0, 100) / 100
	v := clamp(c.Brightness, 0, 100) / 100

	i := math.Floor(h / 60)
	f := h/60 - i
	p := v * (1 - s)
	q := v * (1 - s*f)
	t := v * (1 - s*(1-f))

	var rf, gf, bf float64
	switch int(i) % 6 {
	case 0:
		rf, gf, bf = v, t, p
	case 1:
		rf, gf, bf = q, v, p
	case 2:
		rf, gf, bf = p, v, t
	case 3:
		rf, gf, bf = p, q, v
	case 4:
		rf, gf, bf = t, p, v
	default:
		rf, gf, bf = v, p, q
	}
	return toByte(rf), toByte(gf), toByte(bf)
}

// RGBA folds transparency into the alpha channel.
func (c Color) RGBA() (r, g, b, a uint8) {
	r, g, b = c.RGB()
	a = toByte(1 - clamp(c.Transparency, 0, 100)/100)
	return r, g, b, a
}

// Packed returns the color as 0xRRGGBB.
func (c Color) Packed() uint32 {
	r, g, b := c.RGB()
	return uint32(r)<<16 | uint32(g)<<8 | uint32(b)
}

// Hex renders "#rrggbb". Hex strings are always opaque.
func (c Color) Hex() string {
	r, g, b := c.RGB()
	return fmt.Sprintf("#%02x%02x%02x", r, g, b)
}

func toByte(f float64) uint8 {
	return uint8(math.Round(clamp(f, 0, 1) * 255))
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
