package detection

import (
	"context"
	"errors"
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/menta2k/image-editor/pkg/processing"
	"github.com/menta2k/image-editor/pkg/types"
)

type fakeClient struct {
	result *types.Result
	err    error

	model  string
	prompt string
	image  []byte
}

func (f *fakeClient) LocateSubject(_ context.Context, model, prompt string, img []byte) (*types.Result, error) {
	f.model, f.prompt, f.image = model, prompt, img
	if f.err != nil {
		return nil, f.err
	}
	r := *f.result
	return &r, nil
}

func subject(label string, confidence, cx, cy float64, box types.Box) *types.Result {
	return &types.Result{Primary: types.Subject{Label: label, Confidence: confidence, Cx: cx, Cy: cy, Box: box}}
}

func TestLocate(t *testing.T) {
	tests := []struct {
		name   string
		result *types.Result
		x, y   float64
	}{
		{"explicit center", subject("dog", 0.9, 0.2, 0.7, types.Box{}), 0.2, 0.7},
		{"box center when cx/cy missing", subject("car", 0.8, 0, 0, types.Box{X: 0.6, Y: 0.1, W: 0.2, H: 0.2}), 0.7, 0.2},
		{"box center when cx/cy out of range", subject("car", 0.8, 3, -1, types.Box{X: 0, Y: 0, W: 0.5, H: 0.5}), 0.25, 0.25},
		{"none label", subject("none", 0.9, 0.1, 0.1, types.Box{}), 0.5, 0.5},
		{"low confidence", subject("cat", 0.05, 0.1, 0.1, types.Box{}), 0.5, 0.5},
		{"nothing usable", subject("cat", 0.5, 0, 0, types.Box{}), 0.5, 0.5},
	}

	img := image.NewRGBA(image.Rect(0, 0, 1600, 900))
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fc := &fakeClient{result: tt.result}
			x, y, err := NewDetector(fc, DefaultConfig()).Locate(context.Background(), img)
			require.NoError(t, err)
			assert.InDelta(t, tt.x, x, 1e-9)
			assert.InDelta(t, tt.y, y, 1e-9)
		})
	}
}

func TestDetectSubject_SendsDownscaledJPEG(t *testing.T) {
	fc := &fakeClient{result: subject("dog", 1, 0.5, 0.5, types.Box{X: 0.75, Y: -0.2, W: 0.5, H: 0.4})}
	d := NewDetector(fc, Config{Model: "moondream", MaxSide: 256})

	result, err := d.DetectSubject(context.Background(), image.NewRGBA(image.Rect(0, 0, 1024, 512)))
	require.NoError(t, err)

	assert.Equal(t, "moondream", fc.model)
	assert.Equal(t, DefaultPrompt, fc.prompt)
	assert.Equal(t, "jpeg", processing.DetectFormat(fc.image))

	sent, info, err := processing.NewProcessor().DecodeBytes(fc.image)
	require.NoError(t, err)
	assert.Equal(t, 256, info.Width)
	assert.Equal(t, 128, sent.Bounds().Dy())

	assert.Equal(t, types.Box{X: 0.75, Y: 0, W: 0.25, H: 0.4}, result.Primary.Box)
}

func TestLocate_Errors(t *testing.T) {
	boom := errors.New("connection refused")
	d := NewDetector(&fakeClient{err: boom}, DefaultConfig())

	_, _, err := d.Locate(context.Background(), image.NewRGBA(image.Rect(0, 0, 10, 10)))
	assert.ErrorIs(t, err, boom)

	_, _, err = d.Locate(context.Background(), nil)
	assert.ErrorIs(t, err, ErrNoImage)
}

func TestNormalizeBox(t *testing.T) {
	assert.Equal(t, types.Box{X: 0, Y: 0.5, W: 1, H: 0.5}, normalizeBox(types.Box{X: -1, Y: 0.5, W: 2, H: 0.9}))
	assert.Equal(t, types.Box{X: 1, Y: 1, W: 0, H: 0}, normalizeBox(types.Box{X: 4, Y: 4, W: 1, H: 1}))
}
