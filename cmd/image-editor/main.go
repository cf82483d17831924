package main

import (
	"context"
	"flag"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"k8s.io/klog/v2"

	imageeditor "github.com/menta2k/image-editor"
	"github.com/menta2k/image-editor/internal/config"
	"github.com/menta2k/image-editor/internal/utils"
	"github.com/menta2k/image-editor/pkg/filter"
	"github.com/menta2k/image-editor/pkg/processing"
	"github.com/menta2k/image-editor/pkg/render"
	"github.com/menta2k/image-editor/pkg/session"
)

var (
	in          = flag.String("in", "", "input image path, URL or directory")
	outDir      = flag.String("out", "", "output directory (default from config)")
	configPath  = flag.String("config", "", "configuration file (JSON)")
	saveConfig  = flag.String("save-config", "", "write the effective configuration to this path and exit")
	aspectRatio = flag.String("aspect", "", "crop aspect ratio: preset name, W:H or decimal")
	filterSpec  = flag.String("filter", "", `filter descriptor, e.g. "brightness(120%) sepia(30%)"`)
	brightness  = flag.Float64("brightness", 100, "brightness percent (0-200)")
	contrast    = flag.Float64("contrast", 100, "contrast percent (0-200)")
	grayscale   = flag.Float64("grayscale", 0, "grayscale percent (0-100)")
	sepia       = flag.Float64("sepia", 0, "sepia percent (0-100)")
	zoom        = flag.Float64("zoom", 1, "zoom about the image center (>= 1)")
	drags       = flag.String("drag", "", `crop drags in display pixels, "x0,y0:x1,y1;..."`)
	display     = flag.String("display", "", "preview area WxH (default from config)")
	ext         = flag.String("ext", "", "output format: jpg|png|webp")
	quality     = flag.Int("quality", 0, "JPEG/WebP quality (1-100)")
	lossless    = flag.Bool("lossless", false, "WebP lossless mode")
	preview     = flag.String("preview", "", "write the final preview surface as PNG to this path")
	focus       = flag.String("focus", "", "subject centering: none|local|ollama|llamacpp")
	model       = flag.String("model", "", "vision model for ollama or llamacpp focus")
	serverURL   = flag.String("url", "", "vision model server URL (ollama or llama.cpp)")
	watchFlag   = flag.Bool("watch", false, "keep running and edit images added to the input directory")
)

func main() {
	klog.InitFlags(nil)
	flag.Parse()

	cfg, err := loadConfig()
	if err != nil {
		klog.Exitf("config: %v", err)
	}

	if *saveConfig != "" {
		if err := cfg.SaveToFile(*saveConfig); err != nil {
			klog.Exitf("save config: %v", err)
		}
		klog.Infof("wrote %s", *saveConfig)
		return
	}

	if *in == "" {
		klog.Exitf("usage: %s -in image.jpg|URL|dir [-aspect 16:9] [-filter ...] [-zoom 1.5] [-drag x0,y0:x1,y1] [-out dir] [-ext jpg|png|webp]", filepath.Base(os.Args[0]))
	}

	e, err := imageeditor.NewWithConfig(cfg)
	if err != nil {
		klog.Exitf("%v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if utils.DirExists(*in) {
		if err := editDir(ctx, e, *in); err != nil {
			klog.Exitf("batch failed: %v", err)
		}
		if *watchFlag {
			if err := watch(ctx, e, *in); err != nil {
				klog.Exitf("watch failed: %v", err)
			}
		}
		return
	}

	if *watchFlag {
		klog.Exitf("-watch requires -in to be a directory")
	}

	moves, err := parseDrags(*drags)
	if err != nil {
		klog.Exitf("-drag: %v", err)
	}
	if err := editOne(ctx, e, *in, moves, *preview); err != nil {
		klog.Exitf("edit failed: %v", err)
	}
}

// loadConfig reads the configuration file, if any, and applies the flags the
// user set explicitly on top of it.
func loadConfig() (*config.Config, error) {
	cfg := config.Default()
	file := *configPath
	if file == "" && utils.FileExists(config.GetConfigPath()) {
		file = config.GetConfigPath()
	}
	if file != "" {
		c, err := config.LoadFromFile(file)
		if err != nil {
			return nil, err
		}
		cfg = c
		klog.V(1).Infof("loaded configuration from %s", file)
	}

	set := map[string]bool{}
	flag.Visit(func(f *flag.Flag) { set[f.Name] = true })

	if set["out"] {
		cfg.Export.OutputDir = *outDir
	}
	if set["aspect"] {
		cfg.Editor.AspectRatio = *aspectRatio
	}
	if set["filter"] {
		cfg.Editor.Filter = *filterSpec
	}
	if err := applyFilterFlags(cfg, set); err != nil {
		return nil, err
	}
	if set["zoom"] {
		cfg.Editor.Zoom = *zoom
	}
	if set["display"] {
		w, h, err := parseSize(*display)
		if err != nil {
			return nil, fmt.Errorf("-display: %w", err)
		}
		cfg.Render.DisplayWidth, cfg.Render.DisplayHeight = w, h
	}
	if set["ext"] {
		cfg.Export.Format = *ext
	}
	if set["quality"] {
		cfg.Export.Quality = *quality
	}
	if set["lossless"] {
		cfg.Export.Lossless = *lossless
	}
	if set["focus"] {
		cfg.Focus.Mode = *focus
	}
	if set["model"] {
		cfg.Focus.Model = *model
	}
	if set["url"] {
		if cfg.Focus.Mode == config.FocusLlamaCpp {
			cfg.Focus.LlamaCppURL = *serverURL
		} else {
			cfg.Focus.OllamaURL = *serverURL
		}
	}

	return cfg, cfg.Validate()
}

func applyFilterFlags(cfg *config.Config, set map[string]bool) error {
	fields := map[filter.Kind]*float64{
		filter.Brightness: brightness,
		filter.Contrast:   contrast,
		filter.Grayscale:  grayscale,
		filter.Sepia:      sepia,
	}

	settings, err := cfg.FilterSettings()
	if err != nil {
		return fmt.Errorf("filter: %w", err)
	}
	changed := false
	for kind, v := range fields {
		if !set[string(kind)] {
			continue
		}
		if settings, err = settings.Set(kind, *v); err != nil {
			return err
		}
		changed = true
	}
	if changed {
		cfg.Editor.Filter = filter.ToDescriptor(settings).String()
	}
	return nil
}

// editOne runs one session over the display area from the configuration,
// replaying the drags before saving.
func editOne(ctx context.Context, e *imageeditor.Editor, input string, moves []drag, previewPath string) error {
	cfg := e.Config()
	opts := imageeditor.SessionOptions{
		Layout: func() (float64, float64) { return cfg.Render.DisplayWidth, cfg.Render.DisplayHeight },
	}
	if previewPath != "" {
		opts.Canvas = render.NewCanvas()
		defer opts.Canvas.Close()
	}

	s, err := e.Open(ctx, input, opts)
	if err != nil {
		return err
	}

	if len(moves) == 0 {
		loc, err := e.Locator()
		if err != nil {
			return err
		}
		if loc != nil {
			if err := s.FocusOn(ctx, loc); err != nil {
				klog.Warningf("focus failed, keeping centered crop: %v", err)
			}
		}
	}
	for _, m := range moves {
		for _, ev := range m.events() {
			if err := s.Dispatch(ev); err != nil {
				return err
			}
		}
	}
	klog.Infof("crop %v at zoom %.2f, filter %q", s.State().Crop, s.State().Zoom, s.State().Descriptor())

	if previewPath != "" {
		if err := writePreview(previewPath, opts.Canvas); err != nil {
			return err
		}
	}

	payload, err := s.Save()
	if err != nil {
		return err
	}
	out := utils.GenerateOutputFilename(outputName(input), cfg.Export.OutputDir, cfg.Export.Prefix, cfg.Export.Suffix, payload.Format.Extension())
	if err := imageeditor.WritePayload(out, payload); err != nil {
		return err
	}
	klog.Infof("wrote %s (%dx%d, %s)", out, payload.Width, payload.Height, utils.FormatFileSize(int64(len(payload.Data))))
	return nil
}

// outputName returns the name an output file is derived from. URLs use the
// last path element.
func outputName(input string) string {
	if !processing.IsURL(input) {
		return input
	}
	u, err := url.Parse(input)
	if err != nil || path.Base(u.Path) == "/" || path.Base(u.Path) == "." {
		return "remote"
	}
	return path.Base(u.Path)
}

func writePreview(path string, c *render.Canvas) error {
	if !c.Drawn() {
		klog.Warningf("no preview was drawn, skipping %s", path)
		return nil
	}
	if err := utils.EnsureDir(filepath.Dir(path)); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := c.EncodePNG(f); err != nil {
		f.Close()
		return err
	}
	klog.Infof("wrote preview %s", path)
	return f.Close()
}

// editDir edits every image below dir. Failures are logged and counted.
func editDir(ctx context.Context, e *imageeditor.Editor, dir string) error {
	files, err := utils.ListImageFiles(dir)
	if err != nil {
		return err
	}
	klog.Infof("found %d images in %s", len(files), dir)

	failed := 0
	for _, f := range files {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if isOutput(e, f) {
			continue
		}
		if _, _, err := e.EditFile(ctx, f); err != nil {
			klog.Errorf("%s: %v", f, err)
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d images failed", failed, len(files))
	}
	return nil
}

// isOutput reports whether path lives in the output directory, which may be
// nested inside the input directory.
func isOutput(e *imageeditor.Editor, path string) bool {
	out, err := filepath.Abs(e.Config().Export.OutputDir)
	if err != nil {
		return false
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	return strings.HasPrefix(abs, out+string(filepath.Separator))
}

// watch edits images written into dir until ctx is cancelled.
func watch(ctx context.Context, e *imageeditor.Editor, dir string) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("new watcher: %w", err)
	}
	defer w.Close()

	if err := w.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	klog.Infof("watching %s ...", dir)

	// Writers often emit several events per file; wait for them to settle.
	const settle = 500 * time.Millisecond
	pending := map[string]*time.Timer{}
	ready := make(chan string)

	for {
		select {
		case <-ctx.Done():
			for _, t := range pending {
				t.Stop()
			}
			return nil
		case event, ok := <-w.Events:
			if !ok {
				return nil
			}
			klog.V(2).Infof("event: %v", event)
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if !utils.IsImageFile(event.Name) || isOutput(e, event.Name) {
				continue
			}
			if t, ok := pending[event.Name]; ok {
				t.Reset(settle)
				continue
			}
			name := event.Name
			pending[name] = time.AfterFunc(settle, func() {
				select {
				case ready <- name:
				case <-ctx.Done():
				}
			})
		case name := <-ready:
			delete(pending, name)
			if _, _, err := e.EditFile(ctx, name); err != nil {
				klog.Errorf("%s: %v", name, err)
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			klog.Errorf("watch error: %v", err)
		}
	}
}

// drag is one pointer gesture in display coordinates.
type drag struct {
	x0, y0, x1, y1 float64
}

func (d drag) events() []session.Event {
	return []session.Event{
		session.PointerDown{X: d.x0, Y: d.y0},
		session.PointerMove{X: d.x1, Y: d.y1},
		session.PointerUp{},
	}
}

// parseDrags parses "x0,y0:x1,y1;x0,y0:x1,y1".
func parseDrags(s string) ([]drag, error) {
	var out []drag
	for _, part := range strings.Split(s, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		from, to, ok := strings.Cut(part, ":")
		if !ok {
			return nil, fmt.Errorf("invalid drag %q", part)
		}
		x0, y0, err := parsePoint(from)
		if err != nil {
			return nil, err
		}
		x1, y1, err := parsePoint(to)
		if err != nil {
			return nil, err
		}
		out = append(out, drag{x0, y0, x1, y1})
	}
	return out, nil
}

func parsePoint(s string) (float64, float64, error) {
	xs, ys, ok := strings.Cut(s, ",")
	if !ok {
		return 0, 0, fmt.Errorf("invalid point %q", s)
	}
	x, errX := strconv.ParseFloat(strings.TrimSpace(xs), 64)
	y, errY := strconv.ParseFloat(strings.TrimSpace(ys), 64)
	if errX != nil || errY != nil {
		return 0, 0, fmt.Errorf("invalid point %q", s)
	}
	return x, y, nil
}

// parseSize parses "WxH".
func parseSize(s string) (float64, float64, error) {
	ws, hs, ok := strings.Cut(strings.ToLower(s), "x")
	if !ok {
		return 0, 0, fmt.Errorf("invalid size %q", s)
	}
	w, errW := strconv.ParseFloat(ws, 64)
	h, errH := strconv.ParseFloat(hs, 64)
	if errW != nil || errH != nil || w <= 0 || h <= 0 {
		return 0, 0, fmt.Errorf("invalid size %q", s)
	}
	return w, h, nil
}
