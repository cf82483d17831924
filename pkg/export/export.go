// Package export produces the committed result of an editing session: the
// filtered pixels under the crop rectangle, sampled from the source at its
// native resolution and encoded for the host.
package export

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/color"
	"io"
	"math"

	"github.com/disintegration/imaging"
	"golang.org/x/image/draw"
	"k8s.io/klog/v2"

	"github.com/menta2k/image-editor/pkg/filter"
	"github.com/menta2k/image-editor/pkg/geometry"
	"github.com/menta2k/image-editor/pkg/processing"
)

var (
	// ErrNoImage is returned when there is no source to export from.
	ErrNoImage = errors.New("export: no source image")

	// ErrEmptyCrop is returned when the crop rounds to an empty output.
	ErrEmptyCrop = errors.New("export: crop rectangle is empty")
)

// DefaultQuality is the encoder quality used for lossy formats.
const DefaultQuality = 90

// Options select the output encoding.
type Options struct {
	Format   processing.Format `json:"format"`
	Quality  int               `json:"quality"`
	Lossless bool              `json:"lossless"`
}

// DefaultOptions returns JPEG at DefaultQuality.
func DefaultOptions() Options {
	return Options{Format: processing.JPEG, Quality: DefaultQuality}
}

// Payload is an encoded export.
type Payload struct {
	Format   processing.Format
	MIMEType string
	Width    int
	Height   int
	Data     []byte
}

// DataURI returns the payload as a base64 data URI.
func (p Payload) DataURI() string {
	return "data:" + p.MIMEType + ";base64," + base64.StdEncoding.EncodeToString(p.Data)
}

// WriteTo writes the encoded bytes to w.
func (p Payload) WriteTo(w io.Writer) (int64, error) {
	n, err := w.Write(p.Data)
	return int64(n), err
}

// Render returns the filtered crop at source resolution. The output is
// round(crop.W/zoom) x round(crop.H/zoom) pixels regardless of any preview
// size; the area of the crop that falls outside the image stays
// transparent. Zoom values below 1 are treated as 1.
func Render(src image.Image, settings filter.Settings, zoom float64, crop geometry.Rect) (*image.NRGBA, error) {
	if src == nil {
		return nil, ErrNoImage
	}
	if zoom < 1 {
		zoom = 1
	}

	outW, outH := geometry.OutputSize(crop, zoom)
	if outW < 1 || outH < 1 {
		return nil, fmt.Errorf("%w: %dx%d", ErrEmptyCrop, outW, outH)
	}

	bounds := src.Bounds()
	region := geometry.ExportRegion(crop, geometry.SizeOf(bounds), zoom)
	origin := image.Pt(int(math.Round(region.X)), int(math.Round(region.Y)))
	sr := image.Rectangle{Min: origin, Max: origin.Add(image.Pt(outW, outH))}.Add(bounds.Min)

	dst := imaging.New(outW, outH, color.NRGBA{})

	visible := sr.Intersect(bounds)
	if visible.Empty() {
		klog.Warningf("export region %v lies outside the %dx%d image", region, bounds.Dx(), bounds.Dy())
		return dst, nil
	}

	// Filters are per-pixel, so filtering only the covered part leaves the
	// uncovered output fully transparent.
	part := filter.Apply(imaging.Crop(src, visible), filter.ToDescriptor(settings))
	dp := visible.Min.Sub(sr.Min)
	draw.Draw(dst, image.Rectangle{Min: dp, Max: dp.Add(visible.Size())}, part, part.Bounds().Min, draw.Src)

	return dst, nil
}

// Export renders the crop and encodes it with opts.
func Export(src image.Image, settings filter.Settings, zoom float64, crop geometry.Rect, opts Options) (Payload, error) {
	img, err := Render(src, settings, zoom, crop)
	if err != nil {
		return Payload{}, err
	}

	format := opts.Format
	if format == "" {
		format = processing.JPEG
	}
	quality := opts.Quality
	if quality <= 0 {
		quality = DefaultQuality
	}

	var buf bytes.Buffer
	if err := processing.Encode(&buf, img, format, quality, opts.Lossless); err != nil {
		return Payload{}, fmt.Errorf("encode export: %w", err)
	}

	b := img.Bounds()
	klog.V(1).Infof("exported %dx%d %s (%d bytes)", b.Dx(), b.Dy(), format, buf.Len())
	return Payload{
		Format:   format,
		MIMEType: format.MIMEType(),
		Width:    b.Dx(),
		Height:   b.Dy(),
		Data:     buf.Bytes(),
	}, nil
}
