package render

import (
	"fmt"
	"image"
	"io"

	"github.com/gogpu/gg"
	"golang.org/x/image/draw"
	"golang.org/x/image/math/f64"
	"k8s.io/klog/v2"

	"github.com/menta2k/image-editor/pkg/filter"
	"github.com/menta2k/image-editor/pkg/geometry"
)

// Canvas is the drawable preview surface. It keeps the filtered source
// between draws so that dragging the crop does not refilter the image.
//
// A Canvas is not safe for concurrent use.
type Canvas struct {
	dc  *gg.Context
	src image.Image

	cacheKey string
	cached   image.Image
	frame    *image.RGBA
	drawn    bool
}

// NewCanvas creates an empty canvas. It is sized by the first Draw.
func NewCanvas() *Canvas {
	return &Canvas{dc: gg.NewContext(1, 1)}
}

// SetSource replaces the image the canvas draws and drops any cached
// filtered copy.
func (c *Canvas) SetSource(img image.Image) {
	c.src = img
	c.cacheKey = ""
	c.cached = nil
	c.frame = nil
}

// Draw executes p against the current source.
func (c *Canvas) Draw(p Plan) error {
	if c.src == nil {
		return fmt.Errorf("draw: no source image")
	}
	if err := c.dc.Resize(p.Width, p.Height); err != nil {
		return fmt.Errorf("resize surface: %w", err)
	}
	c.dc.Clear()

	c.dc.DrawImage(gg.ImageBufFromImage(c.sample(p)), 0, 0)

	w, h := float64(p.Width), float64(p.Height)
	crop := p.Crop

	c.dc.SetFillRule(gg.FillRuleEvenOdd)
	c.dc.DrawRectangle(0, 0, w, h)
	c.dc.DrawRectangle(crop.X, crop.Y, crop.W, crop.H)
	c.dc.SetRGBA(0, 0, 0, p.Style.OverlayAlpha)
	err := c.dc.Fill()
	c.dc.SetFillRule(gg.FillRuleNonZero)
	if err != nil {
		return fmt.Errorf("fill overlay: %w", err)
	}

	if p.Style.BorderWidth > 0 {
		c.dc.DrawRectangle(crop.X, crop.Y, crop.W, crop.H)
		c.dc.SetColor(p.Style.BorderColor)
		c.dc.SetLineWidth(p.Style.BorderWidth)
		if err := c.dc.Stroke(); err != nil {
			return fmt.Errorf("stroke crop border: %w", err)
		}
	}

	c.drawn = true
	return nil
}

// sample resamples the exact view window of the filtered source onto a
// surface-sized frame. gg only takes whole-pixel source and destination
// rectangles, so the sub-pixel mapping is done here and gg draws 1:1.
func (c *Canvas) sample(p Plan) *image.RGBA {
	r := image.Rect(0, 0, p.Width, p.Height)
	if c.frame == nil || c.frame.Rect != r {
		c.frame = image.NewRGBA(r)
	}

	view := p.View
	if view.W <= 0 || view.H <= 0 {
		view = geometry.Rect{
			X: float64(p.Source.Min.X), Y: float64(p.Source.Min.Y),
			W: float64(p.Source.Dx()), H: float64(p.Source.Dy()),
		}
	}
	sx := float64(p.Width) / view.W
	sy := float64(p.Height) / view.H
	s2d := f64.Aff3{
		sx, 0, -sx * view.X,
		0, sy, -sy * view.Y,
	}
	draw.BiLinear.Transform(c.frame, s2d, c.filtered(p.Filter), p.Source, draw.Src, nil)
	return c.frame
}

func (c *Canvas) filtered(d filter.Descriptor) image.Image {
	key := d.String()
	if c.cached != nil && key == c.cacheKey {
		return c.cached
	}
	klog.V(2).Infof("refiltering preview source: %s", key)
	c.cached = filter.Apply(c.src, d)
	c.cacheKey = key
	return c.cached
}

// Size returns the current surface size.
func (c *Canvas) Size() (int, int) {
	return c.dc.Width(), c.dc.Height()
}

// Drawn reports whether the canvas holds a rendered frame.
func (c *Canvas) Drawn() bool {
	return c.drawn
}

// Image returns a copy of the surface pixels.
func (c *Canvas) Image() image.Image {
	return c.dc.Image()
}

// EncodePNG writes the surface as PNG.
func (c *Canvas) EncodePNG(w io.Writer) error {
	return c.dc.EncodePNG(w)
}

// Close releases the surface.
func (c *Canvas) Close() error {
	c.SetSource(nil)
	return c.dc.Close()
}
