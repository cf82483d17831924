package filter

import (
	"image"
	"image/color"

	"github.com/anthonynsimon/bild/adjust"
)

// matrix is a 3x3 linear color transform on RGB in [0, 1].
type matrix [3][3]float64

// grayscaleMatrix interpolates between identity and luminance for a in [0, 1].
func grayscaleMatrix(a float64) matrix {
	k := 1 - a
	return matrix{
		{0.2126 + 0.7874*k, 0.7152 - 0.7152*k, 0.0722 - 0.0722*k},
		{0.2126 - 0.2126*k, 0.7152 + 0.2848*k, 0.0722 - 0.0722*k},
		{0.2126 - 0.2126*k, 0.7152 - 0.7152*k, 0.0722 + 0.9278*k},
	}
}

// sepiaMatrix interpolates between identity and full sepia for a in [0, 1].
func sepiaMatrix(a float64) matrix {
	k := 1 - a
	return matrix{
		{0.393 + 0.607*k, 0.769 - 0.769*k, 0.189 - 0.189*k},
		{0.349 - 0.349*k, 0.686 + 0.314*k, 0.168 - 0.168*k},
		{0.272 - 0.272*k, 0.534 - 0.534*k, 0.131 + 0.869*k},
	}
}

func (m matrix) apply(c color.RGBA) color.RGBA {
	r, g, b := float64(c.R), float64(c.G), float64(c.B)
	return color.RGBA{
		R: clampByte(m[0][0]*r + m[0][1]*g + m[0][2]*b),
		G: clampByte(m[1][0]*r + m[1][1]*g + m[1][2]*b),
		B: clampByte(m[2][0]*r + m[2][1]*g + m[2][2]*b),
		A: c.A,
	}
}

func clampByte(v float64) uint8 {
	if v <= 0 {
		return 0
	}
	if v >= 255 {
		return 255
	}
	return uint8(v + 0.5)
}

// saturate limits a matrix effect amount to [0, 1].
func saturate(percent float64) float64 {
	a := percent / 100
	if a < 0 {
		return 0
	}
	if a > 1 {
		return 1
	}
	return a
}

// Apply renders d onto img. Effects run in descriptor order and identity
// effects are skipped; an identity descriptor returns img itself.
func Apply(img image.Image, d Descriptor) image.Image {
	if d.IsIdentity() {
		return img
	}

	out := img
	for _, e := range d {
		if e.IsIdentity() {
			continue
		}
		switch e.Kind {
		case Brightness:
			out = adjust.Brightness(out, e.Amount/100-1)
		case Contrast:
			out = adjust.Contrast(out, e.Amount/100-1)
		case Grayscale:
			m := grayscaleMatrix(saturate(e.Amount))
			out = adjust.Apply(out, m.apply)
		case Sepia:
			m := sepiaMatrix(saturate(e.Amount))
			out = adjust.Apply(out, m.apply)
		}
	}
	return out
}
