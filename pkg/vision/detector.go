// Package vision locates the visually dominant subject of an image without
// any external service, so an editing session can center its crop on it.
package vision

import (
	"context"
	"errors"
	"image"
	"math"
	"sort"

	"github.com/disintegration/imaging"
	"k8s.io/klog/v2"
)

// ErrEmptyImage is returned for images without pixels.
var ErrEmptyImage = errors.New("vision: empty image")

// SubjectDetector finds high-saliency regions in an image
type SubjectDetector struct {
	config DetectionConfig
}

// DetectionConfig holds configuration for subject detection
type DetectionConfig struct {
	// WorkSize is the longest side of the downscaled copy that is analysed.
	WorkSize int

	EdgeThreshold  float64
	ContrastWeight float64
	ColorWeight    float64

	// TopRegions is how many of the best regions are averaged into the
	// subject center.
	TopRegions int
}

// DefaultConfig returns the settings used by New.
func DefaultConfig() DetectionConfig {
	return DetectionConfig{
		WorkSize:       128,
		EdgeThreshold:  0.01,
		ContrastWeight: 0.6,
		ColorWeight:    0.4,
		TopRegions:     5,
	}
}

// New creates a new SubjectDetector with default configuration
func New() *SubjectDetector {
	return NewWithConfig(DefaultConfig())
}

// NewWithConfig creates a new SubjectDetector with custom configuration
func NewWithConfig(config DetectionConfig) *SubjectDetector {
	def := DefaultConfig()
	if config.WorkSize <= 0 {
		config.WorkSize = def.WorkSize
	}
	if config.TopRegions <= 0 {
		config.TopRegions = def.TopRegions
	}
	return &SubjectDetector{config: config}
}

// Region represents a rectangular region of interest in working-image pixels
type Region struct {
	X      int
	Y      int
	Width  int
	Height int
	Score  float64
}

// Center returns the center point of the region
func (r Region) Center() (float64, float64) {
	return float64(r.X) + float64(r.Width)/2, float64(r.Y) + float64(r.Height)/2
}

// Area returns the area of the region
func (r Region) Area() int {
	return r.Width * r.Height
}

// Locate returns the subject center as fractions of the image width and
// height. Images without any salient region yield the center (0.5, 0.5).
func (d *SubjectDetector) Locate(ctx context.Context, img image.Image) (float64, float64, error) {
	if img == nil || img.Bounds().Empty() {
		return 0, 0, ErrEmptyImage
	}

	work := imaging.Fit(img, d.config.WorkSize, d.config.WorkSize, imaging.Box)
	w, h := work.Bounds().Dx(), work.Bounds().Dy()

	regions, err := d.DetectSubjects(ctx, work)
	if err != nil {
		return 0, 0, err
	}
	if len(regions) == 0 {
		klog.V(1).Infof("no salient regions found, using image center")
		return 0.5, 0.5, nil
	}

	top := regions
	if len(top) > d.config.TopRegions {
		top = top[:d.config.TopRegions]
	}

	var sx, sy, total float64
	for _, r := range top {
		cx, cy := r.Center()
		sx += cx * r.Score
		sy += cy * r.Score
		total += r.Score
	}
	x, y := sx/total/float64(w), sy/total/float64(h)
	klog.V(1).Infof("subject at (%.3f, %.3f) from %d of %d regions", x, y, len(top), len(regions))
	return x, y, nil
}

// DetectSubjects analyzes an image and returns regions of interest, best
// first.
func (d *SubjectDetector) DetectSubjects(ctx context.Context, img image.Image) ([]Region, error) {
	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	if width == 0 || height == 0 {
		return nil, ErrEmptyImage
	}

	saliencyMap := d.calculateSaliencyMap(img)

	regions, err := d.findImportantRegions(ctx, saliencyMap, width, height)
	if err != nil {
		return nil, err
	}

	sort.SliceStable(regions, func(i, j int) bool {
		return regions[i].Score > regions[j].Score
	})
	return regions, nil
}

// calculateSaliencyMap scores every pixel by its edge strength and by how
// far its brightness is from the image mean.
func (d *SubjectDetector) calculateSaliencyMap(img image.Image) [][]float64 {
	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()

	lum := make([][]float64, height)
	var mean float64
	for y := 0; y < height; y++ {
		lum[y] = make([]float64, width)
		for x := 0; x < width; x++ {
			r, g, b, _ := img.At(x+bounds.Min.X, y+bounds.Min.Y).RGBA()
			l := (0.2126*float64(r) + 0.7152*float64(g) + 0.0722*float64(b)) / 65535.0
			lum[y][x] = l
			mean += l
		}
	}
	mean /= float64(width * height)

	saliencyMap := make([][]float64, height)
	for y := 0; y < height; y++ {
		saliencyMap[y] = make([]float64, width)
		for x := 0; x < width; x++ {
			var edge float64
			var n int
			for dy := -1; dy <= 1; dy++ {
				for dx := -1; dx <= 1; dx++ {
					nx, ny := x+dx, y+dy
					if (dx == 0 && dy == 0) || nx < 0 || ny < 0 || nx >= width || ny >= height {
						continue
					}
					edge += math.Abs(lum[y][x] - lum[ny][nx])
					n++
				}
			}
			if n > 0 {
				edge /= float64(n)
			}
			saliencyMap[y][x] = d.config.ContrastWeight*edge + d.config.ColorWeight*math.Abs(lum[y][x]-mean)
		}
	}

	return saliencyMap
}

func (d *SubjectDetector) findImportantRegions(ctx context.Context, saliencyMap [][]float64, width, height int) ([]Region, error) {
	var regions []Region

	short := width
	if height < short {
		short = height
	}
	for _, div := range []int{8, 6, 4, 3} {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		size := short / div
		if size < 4 {
			continue
		}
		step := size / 4
		if step < 1 {
			step = 1
		}

		for y := 0; y+size <= height; y += step {
			for x := 0; x+size <= width; x += step {
				score := calculateRegionScore(saliencyMap, x, y, size, size)
				if score > d.config.EdgeThreshold {
					regions = append(regions, Region{X: x, Y: y, Width: size, Height: size, Score: score})
				}
			}
		}
	}

	return regions, nil
}

func calculateRegionScore(saliencyMap [][]float64, x, y, width, height int) float64 {
	var totalScore float64
	count := 0

	for ry := y; ry < y+height && ry < len(saliencyMap); ry++ {
		for rx := x; rx < x+width && rx < len(saliencyMap[ry]); rx++ {
			totalScore += saliencyMap[ry][rx]
			count++
		}
	}

	if count == 0 {
		return 0
	}
	return totalScore / float64(count)
}
