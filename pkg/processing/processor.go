// Package processing loads source images for an editing session and encodes
// finished rasters.
package processing

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
	"k8s.io/klog/v2"
)

var (
	// ErrDecode is returned when image bytes cannot be decoded.
	ErrDecode = errors.New("failed to decode image")

	// ErrUnsupportedFormat is returned for sources that are not JPEG, PNG, GIF, BMP or WebP.
	ErrUnsupportedFormat = errors.New("unsupported image format")

	// ErrImageTooSmall is returned when an image is below the configured minimum size.
	ErrImageTooSmall = errors.New("image too small")

	// ErrSourceTooLarge is returned when the encoded source exceeds the size limit.
	ErrSourceTooLarge = errors.New("source image exceeds size limit")

	// ErrFetchFailed is returned when a remote image cannot be downloaded.
	ErrFetchFailed = errors.New("failed to fetch image")
)

// Config holds limits applied while loading images
type Config struct {
	MinImageSize   int
	MaxSourceBytes int64
	FetchTimeout   time.Duration
	UserAgent      string
}

// DefaultConfig returns the limits used by NewProcessor.
func DefaultConfig() Config {
	return Config{
		MinImageSize:   1,
		MaxSourceBytes: 50 << 20,
		FetchTimeout:   30 * time.Second,
		UserAgent:      "Image-Editor/1.0",
	}
}

// Processor handles decoding and encoding
type Processor struct {
	config Config
	client *http.Client
}

// NewProcessor creates a new image processor
func NewProcessor() *Processor {
	return NewProcessorWithConfig(DefaultConfig())
}

// NewProcessorWithConfig creates a processor with custom limits
func NewProcessorWithConfig(config Config) *Processor {
	return &Processor{
		config: config,
		client: &http.Client{Timeout: config.FetchTimeout},
	}
}

// ImageInfo contains basic image metadata
type ImageInfo struct {
	Format      string
	Width       int
	Height      int
	AspectRatio float64
}

// Info returns basic information about a decoded image.
func Info(img image.Image, format string) ImageInfo {
	b := img.Bounds()
	return ImageInfo{
		Format:      format,
		Width:       b.Dx(),
		Height:      b.Dy(),
		AspectRatio: float64(b.Dx()) / float64(b.Dy()),
	}
}

// Validate checks if an image meets the minimum size.
func (p *Processor) Validate(img image.Image) error {
	b := img.Bounds()
	minSize := p.config.MinImageSize
	if minSize < 1 {
		minSize = 1
	}
	if b.Dx() < minSize || b.Dy() < minSize {
		return fmt.Errorf("%w: %dx%d (minimum: %d)", ErrImageTooSmall, b.Dx(), b.Dy(), minSize)
	}
	return nil
}

// Decode reads an encoded image, applies its EXIF orientation and validates
// it. The returned image always has its origin at (0, 0).
func (p *Processor) Decode(r io.Reader) (image.Image, ImageInfo, error) {
	limit := p.config.MaxSourceBytes
	if limit <= 0 {
		limit = DefaultConfig().MaxSourceBytes
	}
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, ImageInfo{}, fmt.Errorf("%w: read: %w", ErrDecode, err)
	}
	if int64(len(data)) > limit {
		return nil, ImageInfo{}, fmt.Errorf("%w: more than %d bytes", ErrSourceTooLarge, limit)
	}
	return p.DecodeBytes(data)
}

// DecodeBytes decodes an in-memory image.
func (p *Processor) DecodeBytes(data []byte) (image.Image, ImageInfo, error) {
	if len(data) == 0 {
		return nil, ImageInfo{}, fmt.Errorf("%w: empty image data", ErrUnsupportedFormat)
	}
	format := DetectFormat(data)
	if format == "" {
		return nil, ImageInfo{}, ErrUnsupportedFormat
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil && format == "webp" {
		klog.V(1).Infof("registered webp decoder failed, retrying: %v", err)
		img, err = webp.Decode(bytes.NewReader(data))
	}
	if err != nil {
		return nil, ImageInfo{}, fmt.Errorf("%w: %s: %w", ErrDecode, format, err)
	}

	if b := img.Bounds(); b.Min != (image.Point{}) {
		img = imaging.Clone(img)
	}
	if err := p.Validate(img); err != nil {
		return nil, ImageInfo{}, err
	}
	return img, Info(img, format), nil
}

// LoadImage loads an image from a file path
func (p *Processor) LoadImage(path string) (image.Image, ImageInfo, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, ImageInfo{}, fmt.Errorf("failed to open image file: %w", err)
	}
	defer f.Close()

	return p.Decode(f)
}

// LoadImageFromURL downloads and decodes an image
func (p *Processor) LoadImageFromURL(ctx context.Context, imageURL string) (image.Image, ImageInfo, error) {
	parsedURL, err := url.Parse(imageURL)
	if err != nil {
		return nil, ImageInfo{}, fmt.Errorf("%w: invalid URL: %w", ErrFetchFailed, err)
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return nil, ImageInfo{}, fmt.Errorf("%w: unsupported URL scheme: %s", ErrFetchFailed, parsedURL.Scheme)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, ImageInfo{}, fmt.Errorf("%w: %w", ErrFetchFailed, err)
	}
	if p.config.UserAgent != "" {
		req.Header.Set("User-Agent", p.config.UserAgent)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, ImageInfo{}, fmt.Errorf("%w: %w", ErrFetchFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, ImageInfo{}, fmt.Errorf("%w: HTTP %d", ErrFetchFailed, resp.StatusCode)
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType != "" && !strings.HasPrefix(contentType, "image/") {
		return nil, ImageInfo{}, fmt.Errorf("%w: URL does not point to an image (Content-Type: %s)", ErrFetchFailed, contentType)
	}

	return p.Decode(resp.Body)
}

// LoadImageSmart loads an image from either a file path or URL
func (p *Processor) LoadImageSmart(ctx context.Context, source string) (image.Image, ImageInfo, error) {
	if IsURL(source) {
		return p.LoadImageFromURL(ctx, source)
	}
	return p.LoadImage(source)
}

// IsURL reports whether source looks like an http(s) URL.
func IsURL(source string) bool {
	return strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://")
}

// Encode writes img in the given format. Quality applies to JPEG and lossy
// WebP and is clamped to [1, 100].
func Encode(w io.Writer, img image.Image, format Format, quality int, lossless bool) error {
	if quality < 1 {
		quality = 1
	}
	if quality > 100 {
		quality = 100
	}

	switch format {
	case JPEG:
		return imaging.Encode(w, img, imaging.JPEG, imaging.JPEGQuality(quality))
	case PNG:
		return imaging.Encode(w, img, imaging.PNG, imaging.PNGCompressionLevel(png.DefaultCompression))
	case WebP:
		return webp.Encode(w, img, &webp.Options{Lossless: lossless, Quality: float32(quality)})
	}
	return fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
}

// SaveImage saves an image to a file with the specified format and quality
func SaveImage(img image.Image, path string, format Format, quality int, lossless bool) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	if err := Encode(f, img, format, quality, lossless); err != nil {
		f.Close()
		return fmt.Errorf("encode %s: %w", path, err)
	}
	return f.Close()
}
