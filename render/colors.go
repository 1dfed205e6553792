package render

import (
	"image/color"
	"math"
	"strings"
)

// Neutral is the badge colour for extensions without an entry in the table.
var Neutral = color.NRGBA{R: 96, G: 125, B: 139, A: 255}

var extensionColors = map[string]color.NRGBA{
	".exe": {R: 0, G: 120, B: 215, A: 255},
	".lnk": {R: 255, G: 165, B: 0, A: 255},
	".msi": {R: 16, G: 124, B: 16, A: 255},
	".dll": {R: 106, G: 0, B: 95, A: 255},
	".sys": {R: 178, G: 0, B: 32, A: 255},
	".bat": {R: 64, G: 64, B: 64, A: 255},
	".cmd": {R: 64, G: 64, B: 64, A: 255},
	".ps1": {R: 0, G: 51, B: 153, A: 255},
	".zip": {R: 251, G: 140, B: 0, A: 255},
	".rar": {R: 251, G: 140, B: 0, A: 255},
	".7z":  {R: 251, G: 140, B: 0, A: 255},
	".iso": {R: 139, G: 195, B: 74, A: 255},
}

// ExtensionColor returns the badge colour for ext (with leading dot,
// case-insensitive).
func ExtensionColor(ext string) color.NRGBA {
	if c, ok := extensionColors[strings.ToLower(ext)]; ok {
		return c
	}
	return Neutral
}

// lighter brightens c the way Qt's QColor::lighter does: the HSV value is
// scaled by factor/100 and any overflow is taken out of the saturation.
func lighter(c color.NRGBA, factor float64) color.NRGBA {
	h, s, v := toHSV(c)
	v = v * factor / 100
	if v > 255 {
		s -= v - 255
		if s < 0 {
			s = 0
		}
		v = 255
	}
	out := fromHSV(h, s, v)
	out.A = c.A
	return out
}

// darker divides the HSV value by factor/100.
func darker(c color.NRGBA, factor float64) color.NRGBA {
	h, s, v := toHSV(c)
	v = v * 100 / factor
	out := fromHSV(h, s, v)
	out.A = c.A
	return out
}

// toHSV returns hue in degrees and saturation/value on a 0..255 scale.
func toHSV(c color.NRGBA) (h, s, v float64) {
	r, g, b := float64(c.R), float64(c.G), float64(c.B)
	maxc := math.Max(r, math.Max(g, b))
	minc := math.Min(r, math.Min(g, b))
	v = maxc
	delta := maxc - minc
	if maxc == 0 || delta == 0 {
		return 0, 0, v
	}
	s = delta / maxc * 255
	switch maxc {
	case r:
		h = 60 * math.Mod((g-b)/delta, 6)
	case g:
		h = 60 * ((b-r)/delta + 2)
	default:
		h = 60 * ((r-g)/delta + 4)
	}
	if h < 0 {
		h += 360
	}
	return h, s, v
}

func fromHSV(h, s, v float64) color.NRGBA {
	sf := s / 255
	c := v * sf
	x := c * (1 - math.Abs(math.Mod(h/60, 2)-1))
	m := v - c
	var r, g, b float64
	switch {
	case h < 60:
		r, g, b = c, x, 0
	case h < 120:
		r, g, b = x, c, 0
	case h < 180:
		r, g, b = 0, c, x
	case h < 240:
		r, g, b = 0, x, c
	case h < 300:
		r, g, b = x, 0, c
	default:
		r, g, b = c, 0, x
	}
	return color.NRGBA{R: clamp8(r + m), G: clamp8(g + m), B: clamp8(b + m), A: 255}
}

func clamp8(f float64) uint8 {
	switch {
	case f <= 0:
		return 0
	case f >= 255:
		return 255
	default:
		return uint8(math.Round(f))
	}
}

func lerp(a, b color.NRGBA, t float64) color.NRGBA {
	mix := func(x, y uint8) uint8 {
		return clamp8(float64(x) + (float64(y)-float64(x))*t)
	}
	return color.NRGBA{R: mix(a.R, b.R), G: mix(a.G, b.G), B: mix(a.B, b.B), A: mix(a.A, b.A)}
}
