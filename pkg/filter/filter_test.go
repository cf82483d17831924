package filter

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// createTestImage creates a solid test image
func createTestImage(width, height int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

func rgbaAt(img image.Image, x, y int) color.RGBA {
	return color.RGBAModel.Convert(img.At(x, y)).(color.RGBA)
}

func TestToDescriptor_Order(t *testing.T) {
	d := ToDescriptor(Settings{Brightness: 120, Contrast: 80, Grayscale: 30, Sepia: 10})

	require.Len(t, d, len(Order))
	for i, kind := range Order {
		assert.Equal(t, kind, d[i].Kind)
	}
	assert.Equal(t, "brightness(120%) contrast(80%) grayscale(30%) sepia(10%)", d.String())
}

func TestToDescriptor_Identity(t *testing.T) {
	d := ToDescriptor(Identity())
	assert.True(t, d.IsIdentity())
	assert.True(t, Identity().IsIdentity())
	assert.Equal(t, "brightness(100%) contrast(100%) grayscale(0%) sepia(0%)", d.String())

	assert.False(t, ToDescriptor(Settings{Brightness: 100, Contrast: 100, Sepia: 1}).IsIdentity())
}

func TestToDescriptor_ForwardsOutOfRange(t *testing.T) {
	d := ToDescriptor(Settings{Brightness: 500, Contrast: -20, Grayscale: 150, Sepia: -5})

	assert.Equal(t, 500.0, d[0].Amount)
	assert.Equal(t, -20.0, d[1].Amount)
	assert.Equal(t, 150.0, d[2].Amount)
	assert.Equal(t, -5.0, d[3].Amount)
}

func TestSettings_SetGet(t *testing.T) {
	s, err := Identity().Set(Sepia, 40)
	require.NoError(t, err)
	assert.Equal(t, 40.0, s.Sepia)

	v, err := s.Get(Sepia)
	require.NoError(t, err)
	assert.Equal(t, 40.0, v)

	_, err = s.Set("hue", 10)
	assert.ErrorIs(t, err, ErrUnknownField)
	_, err = s.Get("hue")
	assert.ErrorIs(t, err, ErrUnknownField)
}

func TestParseDescriptor(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Settings
		wantErr bool
	}{
		{name: "empty", input: "", want: Identity()},
		{name: "full", input: "brightness(120%) contrast(90%) grayscale(10%) sepia(5%)",
			want: Settings{Brightness: 120, Contrast: 90, Grayscale: 10, Sepia: 5}},
		{name: "partial and unordered", input: "sepia(50) brightness(80%)",
			want: Settings{Brightness: 80, Contrast: 100, Sepia: 50}},
		{name: "unknown effect", input: "blur(2px)", wantErr: true},
		{name: "bad amount", input: "sepia(lots)", wantErr: true},
		{name: "missing paren", input: "sepia50", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := ParseDescriptor(tt.input)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidDescriptor)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, d.Settings())
			assert.Equal(t, ToDescriptor(tt.want), d)
		})
	}
}

func TestApply_IdentityIsNoop(t *testing.T) {
	img := createTestImage(4, 4, color.RGBA{R: 10, G: 20, B: 30, A: 255})

	out := Apply(img, ToDescriptor(Identity()))
	assert.Same(t, img, out)
}

func TestApply_Brightness(t *testing.T) {
	img := createTestImage(2, 2, color.RGBA{R: 200, G: 100, B: 50, A: 255})

	out := Apply(img, ToDescriptor(Settings{Brightness: 50, Contrast: 100}))
	c := rgbaAt(out, 0, 0)
	assert.InDelta(t, 100, int(c.R), 1)
	assert.InDelta(t, 50, int(c.G), 1)
	assert.InDelta(t, 25, int(c.B), 1)
	assert.Equal(t, uint8(255), c.A)

	// the source is never modified
	assert.Equal(t, color.RGBA{R: 200, G: 100, B: 50, A: 255}, img.RGBAAt(0, 0))
}

func TestApply_ContrastZeroFlattens(t *testing.T) {
	img := createTestImage(2, 1, color.RGBA{R: 250, G: 10, B: 128, A: 255})

	out := Apply(img, ToDescriptor(Settings{Brightness: 100, Contrast: 0}))
	c := rgbaAt(out, 0, 0)
	assert.InDelta(t, 128, int(c.R), 1)
	assert.InDelta(t, 128, int(c.G), 1)
	assert.InDelta(t, 128, int(c.B), 1)
}

func TestApply_FullGrayscale(t *testing.T) {
	img := createTestImage(2, 2, color.RGBA{R: 255, G: 0, B: 0, A: 255})

	out := Apply(img, ToDescriptor(Settings{Brightness: 100, Contrast: 100, Grayscale: 100}))
	c := rgbaAt(out, 1, 1)
	assert.Equal(t, c.R, c.G)
	assert.Equal(t, c.G, c.B)
	assert.InDelta(t, 54, int(c.R), 1) // 0.2126 * 255
}

func TestApply_GrayscaleSaturatesAtFull(t *testing.T) {
	img := createTestImage(1, 1, color.RGBA{R: 30, G: 200, B: 90, A: 255})

	full := Apply(img, ToDescriptor(Settings{Brightness: 100, Contrast: 100, Grayscale: 100}))
	over := Apply(img, ToDescriptor(Settings{Brightness: 100, Contrast: 100, Grayscale: 250}))
	assert.Equal(t, rgbaAt(full, 0, 0), rgbaAt(over, 0, 0))
}

func TestApply_FollowsDescriptorOrder(t *testing.T) {
	img := createTestImage(1, 1, color.RGBA{R: 40, G: 180, B: 220, A: 255})

	grayThenSepia := Descriptor{{Kind: Grayscale, Amount: 60}, {Kind: Sepia, Amount: 60}}
	sepiaThenGray := Descriptor{{Kind: Sepia, Amount: 60}, {Kind: Grayscale, Amount: 60}}

	a := rgbaAt(Apply(img, grayThenSepia), 0, 0)
	b := rgbaAt(Apply(img, sepiaThenGray), 0, 0)
	assert.NotEqual(t, a, b)
}

func BenchmarkApply(b *testing.B) {
	img := createTestImage(1024, 768, color.RGBA{R: 90, G: 140, B: 200, A: 255})
	d := ToDescriptor(Settings{Brightness: 110, Contrast: 120, Grayscale: 20, Sepia: 30})

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		Apply(img, d)
	}
}
