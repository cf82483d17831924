// Package geometry holds the coordinate math shared by the preview and the
// export: conversions between source-pixel space, the zoomed placement of the
// image and the display surface, and the clamping rules for the crop
// rectangle. Every function is pure.
package geometry

import (
	"fmt"
	"image"
	"math"
)

// CropFill is the share of the constraining image dimension covered by a
// freshly initialized crop rectangle.
const CropFill = 0.9

// Point is a position in one of the coordinate spaces.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Sub returns p - q.
func (p Point) Sub(q Point) Point {
	return Point{X: p.X - q.X, Y: p.Y - q.Y}
}

// Add returns p + q.
func (p Point) Add(q Point) Point {
	return Point{X: p.X + q.X, Y: p.Y + q.Y}
}

// Size is a width and height.
type Size struct {
	W float64 `json:"width"`
	H float64 `json:"height"`
}

// Empty reports whether either dimension is not positive.
func (s Size) Empty() bool {
	return s.W <= 0 || s.H <= 0
}

// Ratio returns W/H.
func (s Size) Ratio() float64 {
	return s.W / s.H
}

// SizeOf returns the pixel size of an image bounds rectangle.
func SizeOf(r image.Rectangle) Size {
	return Size{W: float64(r.Dx()), H: float64(r.Dy())}
}

// Rect is an axis-aligned rectangle with its origin at the top-left corner.
type Rect struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"width"`
	H float64 `json:"height"`
}

// Origin returns the top-left corner.
func (r Rect) Origin() Point {
	return Point{X: r.X, Y: r.Y}
}

// Size returns the rectangle dimensions.
func (r Rect) Size() Size {
	return Size{W: r.W, H: r.H}
}

// Center returns the midpoint of the rectangle.
func (r Rect) Center() Point {
	return Point{X: r.X + r.W/2, Y: r.Y + r.H/2}
}

// ContainsStrict reports whether p lies strictly inside r; points on the
// border are outside.
func (r Rect) ContainsStrict(p Point) bool {
	return p.X > r.X && p.X < r.X+r.W && p.Y > r.Y && p.Y < r.Y+r.H
}

// WithOrigin returns r moved so its top-left corner is p.
func (r Rect) WithOrigin(p Point) Rect {
	r.X, r.Y = p.X, p.Y
	return r
}

// Round returns the integer rectangle nearest to r.
func (r Rect) Round() image.Rectangle {
	x0 := int(math.Round(r.X))
	y0 := int(math.Round(r.Y))
	return image.Rect(x0, y0, x0+int(math.Round(r.W)), y0+int(math.Round(r.H)))
}

func (r Rect) String() string {
	return fmt.Sprintf("{x:%g y:%g w:%g h:%g}", r.X, r.Y, r.W, r.H)
}

// Scale maps source-pixel space to display space.
type Scale struct {
	X float64
	Y float64
}

// ScaleFor returns the factors mapping an image of size img onto a display of
// size display.
func ScaleFor(display, img Size) Scale {
	return Scale{X: display.W / img.W, Y: display.H / img.H}
}

// SourceToDisplay maps a source-pixel point to display space.
func SourceToDisplay(p Point, s Scale) Point {
	return Point{X: p.X * s.X, Y: p.Y * s.Y}
}

// DisplayToSource maps a display point back to source-pixel space.
func DisplayToSource(p Point, s Scale) Point {
	return Point{X: p.X / s.X, Y: p.Y / s.Y}
}

// RectToDisplay maps a source-pixel rectangle to display space.
func RectToDisplay(r Rect, s Scale) Rect {
	return Rect{X: r.X * s.X, Y: r.Y * s.Y, W: r.W * s.X, H: r.H * s.Y}
}

// FitContain returns the largest size with the aspect ratio of img that fits
// entirely inside avail.
func FitContain(avail, img Size) Size {
	if avail.Ratio() > img.Ratio() {
		return Size{W: img.W * avail.H / img.H, H: avail.H}
	}
	return Size{W: avail.W, H: img.H * avail.W / img.W}
}

// ZoomedPlacement returns where the image content lands, in source-pixel
// space, when magnified by zoom about its center.
func ZoomedPlacement(img Size, zoom float64) Rect {
	w, h := img.W*zoom, img.H*zoom
	return Rect{X: (img.W - w) / 2, Y: (img.H - h) / 2, W: w, H: h}
}

// VisibleSource returns the window of the source image that the zoomed
// placement shows on the unzoomed canvas. For zoom >= 1 it always lies
// inside the image.
func VisibleSource(img Size, zoom float64) Rect {
	w, h := img.W/zoom, img.H/zoom
	return Rect{X: (img.W - w) / 2, Y: (img.H - h) / 2, W: w, H: h}
}

// ExportRegion returns the unzoomed source rectangle represented by a crop
// rectangle drawn over the zoomed placement.
func ExportRegion(crop Rect, img Size, zoom float64) Rect {
	return Rect{
		X: crop.X/zoom + (img.W-img.W/zoom)/2,
		Y: crop.Y/zoom + (img.H-img.H/zoom)/2,
		W: crop.W / zoom,
		H: crop.H / zoom,
	}
}

// OutputSize returns the pixel dimensions of an export for the crop at zoom.
func OutputSize(crop Rect, zoom float64) (int, int) {
	return int(math.Round(crop.W / zoom)), int(math.Round(crop.H / zoom))
}
