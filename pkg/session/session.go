// Package session ties an image, its filter settings, zoom and crop rectangle
// together into one editing session. State changes go through the pure Apply
// function; a Session wraps that with decoding, preview rendering and export.
package session

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"

	"github.com/google/uuid"
	"k8s.io/klog/v2"

	"github.com/menta2k/image-editor/pkg/aspect"
	"github.com/menta2k/image-editor/pkg/export"
	"github.com/menta2k/image-editor/pkg/geometry"
	"github.com/menta2k/image-editor/pkg/processing"
	"github.com/menta2k/image-editor/pkg/render"
)

// Layout reports the area currently available for the preview, in display
// pixels. It is called before every event so the host can resize freely.
type Layout func() (width, height float64)

// SaveFunc receives the encoded result when a session is saved.
type SaveFunc func(export.Payload)

// Locator finds the subject of an image and returns its center as
// fractions of the image width and height.
type Locator interface {
	Locate(ctx context.Context, img image.Image) (x, y float64, err error)
}

// Options configure a Session. Zero values fall back to defaults.
type Options struct {
	// Aspect is the fixed crop ratio (width/height).
	Aspect float64

	Layout    Layout
	Canvas    *render.Canvas
	Style     render.Style
	OnSave    SaveFunc
	Export    export.Options
	Processor *processing.Processor
}

// Session is one image editing interaction, from load to save or cancel.
//
// A Session is not safe for concurrent use.
type Session struct {
	id    string
	opts  Options
	state State
	src   image.Image
	info  processing.ImageInfo
}

// New creates an Idle session.
func New(opts Options) (*Session, error) {
	if opts.Aspect == 0 {
		opts.Aspect = aspect.Default.Value()
	}
	if !(opts.Aspect > 0) {
		return nil, fmt.Errorf("%w: %v", aspect.ErrInvalidAspectRatio, opts.Aspect)
	}
	if opts.Style == (render.Style{}) {
		opts.Style = render.DefaultStyle()
	}
	if opts.Export.Format == "" {
		opts.Export.Format = export.DefaultOptions().Format
	}
	if opts.Export.Quality == 0 {
		opts.Export.Quality = export.DefaultQuality
	}
	if opts.Processor == nil {
		opts.Processor = processing.NewProcessor()
	}

	s := &Session{
		id:    uuid.New().String(),
		opts:  opts,
		state: NewState(opts.Aspect),
	}
	klog.V(1).Infof("session %s: created (aspect %.4f)", s.id, opts.Aspect)
	return s, nil
}

// ID returns the session identifier used in logs.
func (s *Session) ID() string {
	return s.id
}

// State returns a copy of the current state.
func (s *Session) State() State {
	return s.state
}

// Source returns the loaded image, or nil.
func (s *Session) Source() image.Image {
	return s.src
}

// Info returns metadata about the loaded image.
func (s *Session) Info() processing.ImageInfo {
	return s.info
}

// Canvas returns the preview surface, which may be nil.
func (s *Session) Canvas() *render.Canvas {
	return s.opts.Canvas
}

// Load decodes an image from r and starts editing it. Filters and zoom are
// reset and the crop is initialized for the new image. When decoding fails
// the session is left as it was.
func (s *Session) Load(ctx context.Context, r io.Reader) error {
	return s.load(ctx, "reader", func() (image.Image, processing.ImageInfo, error) {
		return s.opts.Processor.Decode(r)
	})
}

// LoadFile loads the image at path.
func (s *Session) LoadFile(ctx context.Context, path string) error {
	return s.load(ctx, path, func() (image.Image, processing.ImageInfo, error) {
		return s.opts.Processor.LoadImage(path)
	})
}

// LoadURL downloads and loads an image.
func (s *Session) LoadURL(ctx context.Context, url string) error {
	return s.load(ctx, url, func() (image.Image, processing.ImageInfo, error) {
		return s.opts.Processor.LoadImageFromURL(ctx, url)
	})
}

// LoadSource loads from a URL or a file path.
func (s *Session) LoadSource(ctx context.Context, source string) error {
	if processing.IsURL(source) {
		return s.LoadURL(ctx, source)
	}
	return s.LoadFile(ctx, source)
}

func (s *Session) load(ctx context.Context, name string, decode func() (image.Image, processing.ImageInfo, error)) error {
	if s.state.Phase.Terminal() {
		return ErrSessionClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	img, info, err := decode()
	if err != nil {
		klog.Warningf("session %s: load %s: %v", s.id, name, err)
		return fmt.Errorf("load image: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.refreshLayout()
	next, err := Apply(s.state, ImageLoaded{Size: geometry.SizeOf(img.Bounds())})
	if err != nil {
		return err
	}

	s.src, s.info, s.state = img, info, next
	if s.opts.Canvas != nil {
		s.opts.Canvas.SetSource(img)
	}
	klog.Infof("session %s: loaded %s (%s %dx%d), crop %v", s.id, name, info.Format, info.Width, info.Height, s.state.Crop)

	return s.render()
}

// Dispatch applies ev and redraws the preview. Loading and saving go
// through their own methods so the decoded pixels and the export stay in
// step with the state; ImageLoaded and Commit return ErrReservedEvent.
func (s *Session) Dispatch(ev Event) error {
	switch ev.(type) {
	case ImageLoaded, *ImageLoaded, Commit, *Commit:
		return fmt.Errorf("%w: %T", ErrReservedEvent, ev)
	}
	s.refreshLayout()

	next, err := Apply(s.state, ev)
	if err != nil {
		return err
	}
	if next.Crop != s.state.Crop || next.Phase != s.state.Phase {
		klog.V(2).Infof("session %s: %T -> %s crop %v", s.id, ev, next.Phase, next.Crop)
	}
	s.state = next
	return s.render()
}

// FocusOn centers the crop on the subject found by loc.
func (s *Session) FocusOn(ctx context.Context, loc Locator) error {
	if s.state.Phase.Terminal() {
		return ErrSessionClosed
	}
	if s.src == nil {
		return ErrNoImage
	}
	x, y, err := loc.Locate(ctx, s.src)
	if err != nil {
		return fmt.Errorf("locate subject: %w", err)
	}
	klog.V(1).Infof("session %s: subject at (%.3f, %.3f)", s.id, x, y)
	return s.Dispatch(Focus{X: x, Y: y})
}

// Render redraws the preview. It does nothing when there is no canvas, no
// image or no room to draw.
func (s *Session) Render() error {
	s.refreshLayout()
	return s.render()
}

func (s *Session) render() error {
	if s.opts.Canvas == nil || s.src == nil {
		return nil
	}
	plan, err := render.NewPlan(render.Inputs{
		Image:  s.state.Image,
		Filter: s.state.Descriptor(),
		Zoom:   s.state.Zoom,
		Crop:   s.state.Crop,
	}, s.state.Display, s.opts.Style)
	if errors.Is(err, render.ErrEmptySurface) {
		klog.V(2).Infof("session %s: no surface area, render skipped", s.id)
		return nil
	}
	if err != nil {
		return err
	}
	return s.opts.Canvas.Draw(plan)
}

func (s *Session) refreshLayout() {
	if s.opts.Layout == nil || s.state.Phase.Terminal() {
		return
	}
	w, h := s.opts.Layout()
	s.state.Display = geometry.Size{W: w, H: h}
}

// Save exports the crop, hands the payload to the OnSave callback and closes
// the session.
func (s *Session) Save() (export.Payload, error) {
	if s.state.Phase.Terminal() {
		return export.Payload{}, ErrSessionClosed
	}
	if s.src == nil {
		return export.Payload{}, ErrNoImage
	}

	payload, err := export.Export(s.src, s.state.Settings, s.state.Zoom, s.state.Crop, s.opts.Export)
	if err != nil {
		return export.Payload{}, fmt.Errorf("save session %s: %w", s.id, err)
	}

	next, err := Apply(s.state, Commit{})
	if err != nil {
		return export.Payload{}, err
	}
	s.state = next
	klog.Infof("session %s: saved %dx%d %s", s.id, payload.Width, payload.Height, payload.Format)

	if s.opts.OnSave != nil {
		s.opts.OnSave(payload)
	}
	s.release()
	return payload, nil
}

// Cancel discards the session without exporting.
func (s *Session) Cancel() error {
	next, err := Apply(s.state, Cancel{})
	if err != nil {
		return err
	}
	s.state = next
	klog.V(1).Infof("session %s: discarded", s.id)
	s.release()
	return nil
}

func (s *Session) release() {
	s.src = nil
	if s.opts.Canvas != nil {
		s.opts.Canvas.SetSource(nil)
	}
}
