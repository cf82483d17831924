// Package detection finds the subject of an image with a vision model so an
// editing session can center its crop on it.
package detection

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"strings"

	"github.com/disintegration/imaging"
	"k8s.io/klog/v2"

	"github.com/menta2k/image-editor/pkg/client"
	"github.com/menta2k/image-editor/pkg/processing"
	"github.com/menta2k/image-editor/pkg/types"
)

// ErrNoImage is returned when Locate is called without an image.
var ErrNoImage = errors.New("detection: no image")

// DefaultPrompt is the default prompt for subject detection
const DefaultPrompt = `You are an image subject locator.

Return JSON only:
{
  "primary": {
    "label": "string",
    "confidence": 0.0,
    "box": {"x": 0.0, "y": 0.0, "w": 0.0, "h": 0.0},
    "cx": 0.0,
    "cy": 0.0
  },
  "description": "short neutral sentence (at most 20 words)"
}

RULES
- All coordinates are normalized to [0,1] (NOT pixels), origin at the top-left.
- The box tightly includes the visually dominant subject (prefer people, animals and vehicles; else the most salient object).
- cx, cy is the point a photographer would center a crop on, usually the face or the middle of the subject.
- If no subject is found, return label "none" with confidence 0 and cx = cy = 0.5.
- JSON only. No markdown, no comments.`

// Config controls how images are sent to the model.
type Config struct {
	Model  string
	Prompt string

	// MaxSide bounds the longest side of the image sent to the model.
	MaxSide int

	// MinConfidence below which the image center is used instead.
	MinConfidence float64
}

// DefaultConfig returns settings for a local llava model.
func DefaultConfig() Config {
	return Config{
		Model:         "llava",
		Prompt:        DefaultPrompt,
		MaxSide:       768,
		MinConfidence: 0.2,
	}
}

// Detector handles image subject detection using vision models
type Detector struct {
	client client.VisionClient
	config Config
}

// NewDetector creates a new detector with a vision client
func NewDetector(c client.VisionClient, config Config) *Detector {
	def := DefaultConfig()
	if config.Model == "" {
		config.Model = def.Model
	}
	if config.Prompt == "" {
		config.Prompt = def.Prompt
	}
	if config.MaxSide <= 0 {
		config.MaxSide = def.MaxSide
	}
	return &Detector{client: c, config: config}
}

// DetectSubject sends a downscaled JPEG of img to the model and returns its
// answer with the box clamped to the unit square.
func (d *Detector) DetectSubject(ctx context.Context, img image.Image) (*types.Result, error) {
	if img == nil || img.Bounds().Empty() {
		return nil, ErrNoImage
	}

	small := imaging.Fit(img, d.config.MaxSide, d.config.MaxSide, imaging.Lanczos)
	var buf bytes.Buffer
	if err := processing.Encode(&buf, small, processing.JPEG, 85, false); err != nil {
		return nil, fmt.Errorf("encode image for model: %w", err)
	}

	result, err := d.client.LocateSubject(ctx, d.config.Model, d.config.Prompt, buf.Bytes())
	if err != nil {
		return nil, fmt.Errorf("locate subject with %s: %w", d.config.Model, err)
	}

	result.Primary.Box = normalizeBox(result.Primary.Box)
	return result, nil
}

// Locate returns the subject center as fractions of the image size. Answers
// with no subject or low confidence fall back to the image center.
func (d *Detector) Locate(ctx context.Context, img image.Image) (float64, float64, error) {
	result, err := d.DetectSubject(ctx, img)
	if err != nil {
		return 0, 0, err
	}

	p := result.Primary
	if isFallback(p) || p.Confidence < d.config.MinConfidence {
		klog.V(1).Infof("no confident subject (label %q, confidence %.2f), using image center", p.Label, p.Confidence)
		return 0.5, 0.5, nil
	}

	x, y := p.Center()
	klog.V(1).Infof("subject %q (%.2f) at (%.3f, %.3f)", p.Label, p.Confidence, x, y)
	return x, y, nil
}

func isFallback(p types.Subject) bool {
	label := strings.ToLower(strings.TrimSpace(p.Label))
	return label == "" || label == "none" || label == "unknown"
}

// clamp ensures a value is within the given bounds
func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// normalizeBox keeps the box inside the unit square.
func normalizeBox(b types.Box) types.Box {
	x, y := clamp(b.X, 0, 1), clamp(b.Y, 0, 1)
	return types.Box{
		X: x,
		Y: y,
		W: clamp(b.W, 0, 1-x),
		H: clamp(b.H, 0, 1-y),
	}
}
