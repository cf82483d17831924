// Package render draws the live preview of an editing session: the filtered
// image at its zoomed placement, fit to the available display area, dimmed
// everywhere except inside the crop rectangle.
package render

import (
	"errors"
	"image"
	"image/color"
	"math"

	"github.com/menta2k/image-editor/pkg/filter"
	"github.com/menta2k/image-editor/pkg/geometry"
)

// ErrEmptySurface is returned when the available display area or the image
// has no positive size. Callers skip the render in that case.
var ErrEmptySurface = errors.New("render: empty surface")

// Style controls the overlay drawn around the crop window.
type Style struct {
	OverlayAlpha float64     `json:"overlay_alpha"`
	BorderColor  color.NRGBA `json:"border_color"`
	BorderWidth  float64     `json:"border_width"`
}

// DefaultStyle returns a half-transparent black overlay with a 2px white
// border.
func DefaultStyle() Style {
	return Style{
		OverlayAlpha: 0.5,
		BorderColor:  color.NRGBA{R: 255, G: 255, B: 255, A: 255},
		BorderWidth:  2,
	}
}

// Inputs are the session values a preview depends on.
type Inputs struct {
	Image  geometry.Size
	Filter filter.Descriptor
	Zoom   float64
	Crop   geometry.Rect
}

// Plan is a fully resolved preview. It holds no pixels.
type Plan struct {
	Width  int
	Height int

	Filter filter.Descriptor

	// View is the exact window of the source image shown on the surface.
	View geometry.Rect

	// Source is View snapped outward to whole pixels, the pixels sampled.
	Source image.Rectangle

	// Crop is the crop rectangle in surface pixels.
	Crop geometry.Rect

	Scale geometry.Scale
	Style Style
}

// SurfaceSize returns the whole-pixel preview size for an image shown in the
// available area.
func SurfaceSize(avail, img geometry.Size) (int, int) {
	if avail.Empty() || img.Empty() {
		return 0, 0
	}
	fit := geometry.FitContain(avail, img)
	return int(math.Round(fit.W)), int(math.Round(fit.H))
}

// DisplayScale returns the source-to-surface scale for the preview of img in
// avail, or false when there is nothing to draw.
func DisplayScale(avail, img geometry.Size) (geometry.Scale, bool) {
	w, h := SurfaceSize(avail, img)
	if w < 1 || h < 1 {
		return geometry.Scale{}, false
	}
	return geometry.ScaleFor(geometry.Size{W: float64(w), H: float64(h)}, img), true
}

// NewPlan resolves in against the available display area.
func NewPlan(in Inputs, avail geometry.Size, style Style) (Plan, error) {
	scale, ok := DisplayScale(avail, in.Image)
	if !ok {
		return Plan{}, ErrEmptySurface
	}
	w, h := SurfaceSize(avail, in.Image)

	zoom := in.Zoom
	if zoom < 1 {
		zoom = 1
	}

	return Plan{
		Width:  w,
		Height: h,
		Filter: in.Filter,
		View:   geometry.VisibleSource(in.Image, zoom),
		Source: visibleWindow(in.Image, zoom),
		Crop:   geometry.RectToDisplay(in.Crop, scale),
		Scale:  scale,
		Style:  style,
	}, nil
}

// visibleWindow snaps the visible source rectangle outward to whole pixels
// and keeps it inside the image, never narrower than one pixel.
func visibleWindow(img geometry.Size, zoom float64) image.Rectangle {
	v := geometry.VisibleSource(img, zoom)
	r := image.Rect(
		int(math.Floor(v.X)),
		int(math.Floor(v.Y)),
		int(math.Ceil(v.X+v.W)),
		int(math.Ceil(v.Y+v.H)),
	)
	bounds := image.Rect(0, 0, int(img.W), int(img.H))
	r = r.Intersect(bounds)
	if r.Empty() {
		c := image.Pt(int(img.W/2), int(img.H/2))
		r = image.Rectangle{Min: c, Max: c.Add(image.Pt(1, 1))}.Intersect(bounds)
	}
	return r
}
