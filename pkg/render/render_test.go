package render

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/menta2k/image-editor/pkg/filter"
	"github.com/menta2k/image-editor/pkg/geometry"
)

func createTestImage(width, height int, left, right color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			if x < width/2 {
				img.SetNRGBA(x, y, left)
			} else {
				img.SetNRGBA(x, y, right)
			}
		}
	}
	return img
}

func rgbAt(img image.Image, x, y int) (uint8, uint8, uint8) {
	r, g, b, _ := img.At(x, y).RGBA()
	return uint8(r >> 8), uint8(g >> 8), uint8(b >> 8)
}

var (
	white = color.NRGBA{R: 255, G: 255, B: 255, A: 255}
	red   = color.NRGBA{R: 255, A: 255}
	blue  = color.NRGBA{B: 255, A: 255}
)

func TestSurfaceSize(t *testing.T) {
	tests := []struct {
		name  string
		avail geometry.Size
		img   geometry.Size
		w, h  int
	}{
		{"wide image in square", geometry.Size{W: 800, H: 800}, geometry.Size{W: 1000, H: 500}, 800, 400},
		{"tall image in wide", geometry.Size{W: 800, H: 400}, geometry.Size{W: 500, H: 1000}, 200, 400},
		{"upscale", geometry.Size{W: 400, H: 400}, geometry.Size{W: 100, H: 100}, 400, 400},
		{"no area", geometry.Size{W: 0, H: 400}, geometry.Size{W: 100, H: 100}, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, h := SurfaceSize(tt.avail, tt.img)
			assert.Equal(t, tt.w, w)
			assert.Equal(t, tt.h, h)
		})
	}
}

func TestNewPlan(t *testing.T) {
	img := geometry.Size{W: 1000, H: 500}
	crop := geometry.InitialCrop(img, 1)

	p, err := NewPlan(Inputs{Image: img, Filter: filter.ToDescriptor(filter.Identity()), Zoom: 2, Crop: crop},
		geometry.Size{W: 500, H: 500}, DefaultStyle())
	require.NoError(t, err)

	assert.Equal(t, 500, p.Width)
	assert.Equal(t, 250, p.Height)
	assert.Equal(t, image.Rect(250, 125, 750, 375), p.Source)
	assert.InDelta(t, crop.X/2, p.Crop.X, 1e-9)
	assert.InDelta(t, crop.W/2, p.Crop.W, 1e-9)
	assert.InDelta(t, 0.5, p.Scale.X, 1e-12)
}

func TestNewPlan_EmptySurface(t *testing.T) {
	in := Inputs{Image: geometry.Size{W: 100, H: 100}, Zoom: 1}

	_, err := NewPlan(in, geometry.Size{W: -1, H: 10}, DefaultStyle())
	assert.ErrorIs(t, err, ErrEmptySurface)

	in.Image = geometry.Size{}
	_, err = NewPlan(in, geometry.Size{W: 100, H: 100}, DefaultStyle())
	assert.ErrorIs(t, err, ErrEmptySurface)
}

func TestNewPlan_ZoomBelowOneShowsWholeImage(t *testing.T) {
	in := Inputs{Image: geometry.Size{W: 100, H: 80}, Zoom: 0.5}
	p, err := NewPlan(in, geometry.Size{W: 100, H: 80}, DefaultStyle())
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 100, 80), p.Source)
}

func TestNewPlan_ViewIsExact(t *testing.T) {
	img := geometry.Size{W: 1000, H: 1000}
	p, err := NewPlan(Inputs{Image: img, Zoom: 3, Crop: geometry.InitialCrop(img, 1)}, img, DefaultStyle())
	require.NoError(t, err)

	assert.InDelta(t, 1000.0/3, p.View.X, 1e-9)
	assert.InDelta(t, 1000.0/3, p.View.Y, 1e-9)
	assert.InDelta(t, 1000.0/3, p.View.W, 1e-9)
	assert.Equal(t, image.Rect(333, 333, 667, 667), p.Source)
}

func TestVisibleWindow_NeverEmpty(t *testing.T) {
	r := visibleWindow(geometry.Size{W: 10, H: 10}, 1e6)
	assert.False(t, r.Empty())
	assert.True(t, r.In(image.Rect(0, 0, 10, 10)))
}

func drawPlan(t *testing.T, src image.Image, zoom float64, d filter.Descriptor) (*Canvas, Plan) {
	t.Helper()
	size := geometry.SizeOf(src.Bounds())
	p, err := NewPlan(Inputs{Image: size, Filter: d, Zoom: zoom, Crop: geometry.InitialCrop(size, 16.0/9.0)},
		size, DefaultStyle())
	require.NoError(t, err)

	c := NewCanvas()
	c.SetSource(src)
	require.NoError(t, c.Draw(p))
	return c, p
}

func TestCanvas_DimsOutsideCrop(t *testing.T) {
	// 200x100 at 16:9 gives the crop {20, 5, 160, 90}.
	c, _ := drawPlan(t, createTestImage(200, 100, white, white), 1, filter.ToDescriptor(filter.Identity()))

	w, h := c.Size()
	assert.Equal(t, 200, w)
	assert.Equal(t, 100, h)
	assert.True(t, c.Drawn())

	out := c.Image()
	r, _, _ := rgbAt(out, 100, 50)
	assert.InDelta(t, 255, int(r), 2, "crop interior keeps full brightness")

	r, _, _ = rgbAt(out, 10, 50)
	assert.InDelta(t, 128, int(r), 4, "outside the crop is dimmed")
}

func TestCanvas_ZoomShowsCenter(t *testing.T) {
	c, _ := drawPlan(t, createTestImage(200, 100, red, blue), 2, filter.ToDescriptor(filter.Identity()))
	out := c.Image()

	r, _, b := rgbAt(out, 30, 50)
	assert.Greater(t, r, b, "left of center stays red")

	r, _, b = rgbAt(out, 170, 50)
	assert.Greater(t, b, r, "right of center stays blue")
}

func TestCanvas_ZoomMapsExactWindow(t *testing.T) {
	// 10x10 at zoom 3 shows source x in [3.33, 6.67]; the red/blue edge at
	// source x=4 lands on surface column (4-10/3)*90 = 60.
	src := image.NewNRGBA(image.Rect(0, 0, 10, 10))
	for y := 0; y < 10; y++ {
		for x := 0; x < 10; x++ {
			if x < 4 {
				src.SetNRGBA(x, y, red)
			} else {
				src.SetNRGBA(x, y, blue)
			}
		}
	}
	size := geometry.SizeOf(src.Bounds())
	p, err := NewPlan(Inputs{Image: size, Filter: filter.ToDescriptor(filter.Identity()), Zoom: 3,
		Crop: geometry.InitialCrop(size, 16.0/9.0)}, geometry.Size{W: 300, H: 300}, DefaultStyle())
	require.NoError(t, err)
	require.Equal(t, image.Rect(3, 3, 7, 7), p.Source)

	c := NewCanvas()
	c.SetSource(src)
	require.NoError(t, c.Draw(p))
	out := c.Image()

	r, _, b := rgbAt(out, 55, 150)
	assert.Greater(t, r, b, "left of the edge stays red")

	r, _, b = rgbAt(out, 65, 150)
	assert.Greater(t, b, r, "right of the edge is blue")

	r, _, b = rgbAt(out, 5, 150)
	assert.Greater(t, r, b)
	r, _, b = rgbAt(out, 295, 150)
	assert.Greater(t, b, r)
}

func TestCanvas_AppliesFilter(t *testing.T) {
	s := filter.Identity()
	s.Grayscale = 100
	c, _ := drawPlan(t, createTestImage(200, 100, red, red), 1, filter.ToDescriptor(s))

	r, g, b := rgbAt(c.Image(), 100, 50)
	assert.InDelta(t, int(r), int(g), 2)
	assert.InDelta(t, int(g), int(b), 2)
}

func TestCanvas_CachesFilteredSource(t *testing.T) {
	s := filter.Identity()
	s.Sepia = 40
	c, p := drawPlan(t, createTestImage(64, 36, red, blue), 1, filter.ToDescriptor(s))
	first := c.cached
	require.NotNil(t, first)

	p.Crop.X += 3
	require.NoError(t, c.Draw(p))
	assert.Same(t, first, c.cached)

	p.Filter = filter.ToDescriptor(filter.Identity())
	require.NoError(t, c.Draw(p))
	assert.NotSame(t, first, c.cached)

	c.SetSource(createTestImage(64, 36, blue, red))
	assert.Nil(t, c.cached)
}

func TestCanvas_NoSource(t *testing.T) {
	c := NewCanvas()
	p, err := NewPlan(Inputs{Image: geometry.Size{W: 10, H: 10}, Zoom: 1}, geometry.Size{W: 10, H: 10}, DefaultStyle())
	require.NoError(t, err)
	assert.Error(t, c.Draw(p))
	assert.False(t, c.Drawn())
}

func TestCanvas_EncodePNG(t *testing.T) {
	c, p := drawPlan(t, createTestImage(120, 90, red, blue), 1.5, filter.ToDescriptor(filter.Identity()))

	var buf bytes.Buffer
	require.NoError(t, c.EncodePNG(&buf))

	decoded, err := png.Decode(&buf)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, p.Width, p.Height), decoded.Bounds())
	require.NoError(t, c.Close())
}

func BenchmarkCanvasDraw(b *testing.B) {
	src := createTestImage(1200, 800, red, blue)
	size := geometry.SizeOf(src.Bounds())
	s := filter.Identity()
	s.Contrast = 140
	p, err := NewPlan(Inputs{Image: size, Filter: filter.ToDescriptor(s), Zoom: 1.5, Crop: geometry.InitialCrop(size, 1)},
		geometry.Size{W: 800, H: 600}, DefaultStyle())
	if err != nil {
		b.Fatal(err)
	}

	c := NewCanvas()
	c.SetSource(src)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		p.Crop.X = float64(i % 50)
		if err := c.Draw(p); err != nil {
			b.Fatal(err)
		}
	}
}
