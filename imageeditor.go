// Package imageeditor is an interactive crop-and-filter engine for raster
// images.
//
// An editing session holds one source image, color filter settings
// (brightness, contrast, grayscale, sepia), a zoom factor about the image
// center and a fixed-aspect crop rectangle that can be dragged inside the
// image. Every change redraws a live preview; saving produces the filtered
// crop at the source's native resolution, independent of the preview size.
//
// Basic usage:
//
//	editor := imageeditor.New()
//	s, err := editor.Open(ctx, "photo.jpg", imageeditor.SessionOptions{
//		Layout: func() (float64, float64) { return 800, 600 },
//		Canvas: render.NewCanvas(),
//	})
//	if err != nil {
//		log.Fatal(err)
//	}
//	_ = s.Dispatch(session.SetFilter{Field: filter.Sepia, Value: 40})
//	_ = s.Dispatch(session.SetZoom{Zoom: 1.5})
//	payload, err := s.Save()
//
// The packages under pkg/ can also be used directly:
//
//  1. filter: filter settings, the ordered effect pipeline and its raster backend
//  2. geometry: coordinate spaces, crop initialization, drag clamping, export region
//  3. render: the preview plan and the gg canvas that draws it
//  4. export: the final raster and its encoded payload
//  5. session: the state machine tying it all together
package imageeditor

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"k8s.io/klog/v2"

	"github.com/menta2k/image-editor/internal/config"
	"github.com/menta2k/image-editor/internal/utils"
	"github.com/menta2k/image-editor/pkg/detection"
	"github.com/menta2k/image-editor/pkg/export"
	"github.com/menta2k/image-editor/pkg/filter"
	"github.com/menta2k/image-editor/pkg/llamacpp"
	"github.com/menta2k/image-editor/pkg/ollama"
	"github.com/menta2k/image-editor/pkg/processing"
	"github.com/menta2k/image-editor/pkg/render"
	"github.com/menta2k/image-editor/pkg/session"
	"github.com/menta2k/image-editor/pkg/vision"
)

// Version of the image editor library
const Version = "1.0.0"

// Editor creates editing sessions from one configuration
type Editor struct {
	config    *config.Config
	processor *processing.Processor
}

// SessionOptions are the host-provided parts of a session
type SessionOptions struct {
	Layout session.Layout
	Canvas *render.Canvas
	OnSave session.SaveFunc
}

// New creates an Editor with the default configuration
func New() *Editor {
	e, err := NewWithConfig(config.Default())
	if err != nil {
		// the default configuration always validates
		panic(err)
	}
	return e
}

// NewWithConfig creates an Editor from a validated configuration
func NewWithConfig(cfg *config.Config) (*Editor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &Editor{
		config:    cfg,
		processor: processing.NewProcessorWithConfig(cfg.ProcessingConfig()),
	}, nil
}

// Config returns the editor configuration
func (e *Editor) Config() *config.Config {
	return e.config
}

// NewSession creates an idle session using the configured aspect ratio,
// preview style and export format.
func (e *Editor) NewSession(opts SessionOptions) (*session.Session, error) {
	ratio, err := e.config.Aspect()
	if err != nil {
		return nil, err
	}
	style, err := e.config.Style()
	if err != nil {
		return nil, err
	}
	exportOpts, err := e.config.ExportOptions()
	if err != nil {
		return nil, err
	}

	return session.New(session.Options{
		Aspect:    ratio,
		Layout:    opts.Layout,
		Canvas:    opts.Canvas,
		Style:     style,
		OnSave:    opts.OnSave,
		Export:    exportOpts,
		Processor: e.processor,
	})
}

// Open creates a session, loads source (a file path or URL) and applies the
// configured starting filter and zoom.
func (e *Editor) Open(ctx context.Context, source string, opts SessionOptions) (*session.Session, error) {
	s, err := e.NewSession(opts)
	if err != nil {
		return nil, err
	}
	if err := s.LoadSource(ctx, source); err != nil {
		return nil, err
	}
	if err := e.applyStart(s); err != nil {
		return nil, err
	}
	return s, nil
}

func (e *Editor) applyStart(s *session.Session) error {
	settings, err := e.config.FilterSettings()
	if err != nil {
		return err
	}
	identity := filter.Identity()
	for _, kind := range filter.Order {
		v, _ := settings.Get(kind)
		if base, _ := identity.Get(kind); v == base {
			continue
		}
		if err := s.Dispatch(session.SetFilter{Field: kind, Value: v}); err != nil {
			return err
		}
	}
	if e.config.Editor.Zoom > 1 {
		return s.Dispatch(session.SetZoom{Zoom: e.config.Editor.Zoom})
	}
	return nil
}

// Locator returns the subject locator for the configured focus mode, or nil
// when focusing is disabled.
func (e *Editor) Locator() (session.Locator, error) {
	switch e.config.Focus.Mode {
	case config.FocusLocal:
		return vision.NewWithConfig(e.config.VisionConfig()), nil
	case config.FocusOllama:
		c, err := ollama.NewClient(e.config.Focus.OllamaURL, nil)
		if err != nil {
			return nil, fmt.Errorf("ollama client: %w", err)
		}
		return detection.NewDetector(c, e.config.DetectionConfig()), nil
	case config.FocusLlamaCpp:
		c, err := llamacpp.NewClient(e.config.Focus.LlamaCppURL, nil)
		if err != nil {
			return nil, fmt.Errorf("llama.cpp client: %w", err)
		}
		return detection.NewDetector(c, e.config.DetectionConfig()), nil
	}
	return nil, nil
}

// EditFile runs a non-interactive session: load input, optionally focus on
// the subject, save, and write the export next to the configured output
// directory. It returns the path written.
func (e *Editor) EditFile(ctx context.Context, input string) (string, export.Payload, error) {
	start := time.Now()

	s, err := e.Open(ctx, input, SessionOptions{})
	if err != nil {
		return "", export.Payload{}, err
	}

	loc, err := e.Locator()
	if err != nil {
		return "", export.Payload{}, err
	}
	if loc != nil {
		if err := s.FocusOn(ctx, loc); err != nil {
			klog.Warningf("%s: focus failed, keeping centered crop: %v", input, err)
		}
	}

	payload, err := s.Save()
	if err != nil {
		return "", export.Payload{}, err
	}

	out := utils.GenerateOutputFilename(input, e.config.Export.OutputDir, e.config.Export.Prefix, e.config.Export.Suffix, payload.Format.Extension())
	if err := WritePayload(out, payload); err != nil {
		return "", export.Payload{}, err
	}

	klog.Infof("%s -> %s (%dx%d, %s) in %s", input, out, payload.Width, payload.Height,
		utils.FormatFileSize(int64(len(payload.Data))), time.Since(start).Round(time.Millisecond))
	return out, payload, nil
}

// WritePayload writes an export to path, creating parent directories.
func WritePayload(path string, p export.Payload) error {
	if err := utils.EnsureDir(filepath.Dir(path)); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	if err := os.WriteFile(path, p.Data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// GetVersion returns the library version
func GetVersion() string {
	return Version
}
