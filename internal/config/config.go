package config

import (
	"encoding/json"
	"fmt"
	"image/color"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/menta2k/image-editor/pkg/aspect"
	"github.com/menta2k/image-editor/pkg/detection"
	"github.com/menta2k/image-editor/pkg/export"
	"github.com/menta2k/image-editor/pkg/filter"
	"github.com/menta2k/image-editor/pkg/processing"
	"github.com/menta2k/image-editor/pkg/render"
	"github.com/menta2k/image-editor/pkg/vision"
)

// Focus modes
const (
	FocusNone     = "none"
	FocusLocal    = "local"
	FocusOllama   = "ollama"
	FocusLlamaCpp = "llamacpp"
)

// Config holds the application configuration
type Config struct {
	Editor EditorConfig `json:"editor"`
	Render RenderConfig `json:"render"`
	Export ExportConfig `json:"export"`
	Focus  FocusConfig  `json:"focus"`
	Input  InputConfig  `json:"input"`
}

// EditorConfig holds the starting values of a session
type EditorConfig struct {
	AspectRatio string  `json:"aspect_ratio"`
	Filter      string  `json:"filter"`
	Zoom        float64 `json:"zoom"`
}

// RenderConfig holds preview settings
type RenderConfig struct {
	DisplayWidth  float64 `json:"display_width"`
	DisplayHeight float64 `json:"display_height"`
	OverlayAlpha  float64 `json:"overlay_alpha"`
	BorderColor   string  `json:"border_color"`
	BorderWidth   float64 `json:"border_width"`
}

// ExportConfig holds configuration for output generation
type ExportConfig struct {
	Format    string `json:"format"`
	Quality   int    `json:"quality"`
	Lossless  bool   `json:"lossless"`
	OutputDir string `json:"output_dir"`
	Prefix    string `json:"prefix"`
	Suffix    string `json:"suffix"`
}

// FocusConfig holds configuration for subject centering
type FocusConfig struct {
	Mode          string  `json:"mode"`
	OllamaURL     string  `json:"ollama_url"`
	LlamaCppURL   string  `json:"llamacpp_url"`
	Model         string  `json:"model"`
	MinConfidence float64 `json:"min_confidence"`
	WorkSize      int     `json:"work_size"`
}

// InputConfig holds limits applied while loading images
type InputConfig struct {
	MinImageSize   int   `json:"min_image_size"`
	MaxSourceBytes int64 `json:"max_source_bytes"`
	FetchTimeout   int   `json:"fetch_timeout_seconds"`
}

// Default returns a configuration with default values
func Default() *Config {
	style := render.DefaultStyle()
	return &Config{
		Editor: EditorConfig{
			AspectRatio: aspect.Default.Name,
			Filter:      filter.ToDescriptor(filter.Identity()).String(),
			Zoom:        1,
		},
		Render: RenderConfig{
			DisplayWidth:  800,
			DisplayHeight: 600,
			OverlayAlpha:  style.OverlayAlpha,
			BorderColor:   "#ffffff",
			BorderWidth:   style.BorderWidth,
		},
		Export: ExportConfig{
			Format:    string(processing.JPEG),
			Quality:   export.DefaultQuality,
			OutputDir: "./output",
			Suffix:    "_edited",
		},
		Focus: FocusConfig{
			Mode:          FocusNone,
			OllamaURL:     "http://localhost:11434",
			LlamaCppURL:   "http://localhost:8080",
			Model:         detection.DefaultConfig().Model,
			MinConfidence: detection.DefaultConfig().MinConfidence,
			WorkSize:      vision.DefaultConfig().WorkSize,
		},
		Input: InputConfig{
			MinImageSize:   1,
			MaxSourceBytes: processing.DefaultConfig().MaxSourceBytes,
			FetchTimeout:   int(processing.DefaultConfig().FetchTimeout / time.Second),
		},
	}
}

// LoadFromFile loads configuration from a JSON file. Fields missing from the
// file keep their default values.
func LoadFromFile(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := Default()
	if err := json.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// SaveToFile saves configuration to a JSON file
func (c *Config) SaveToFile(filename string) error {
	dir := filepath.Dir(filename)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if _, err := c.Aspect(); err != nil {
		return fmt.Errorf("editor.aspect_ratio: %w", err)
	}

	if _, err := c.FilterSettings(); err != nil {
		return fmt.Errorf("editor.filter: %w", err)
	}

	if c.Editor.Zoom < 1 {
		return fmt.Errorf("editor.zoom must be at least 1")
	}

	if c.Render.DisplayWidth <= 0 || c.Render.DisplayHeight <= 0 {
		return fmt.Errorf("render display size must be positive")
	}

	if c.Render.OverlayAlpha < 0 || c.Render.OverlayAlpha > 1 {
		return fmt.Errorf("render.overlay_alpha must be between 0 and 1")
	}

	if _, err := parseHexColor(c.Render.BorderColor); err != nil {
		return fmt.Errorf("render.border_color: %w", err)
	}

	if _, err := processing.ParseFormat(c.Export.Format); err != nil {
		return fmt.Errorf("export.format: %w", err)
	}

	if c.Export.Quality < 1 || c.Export.Quality > 100 {
		return fmt.Errorf("export.quality must be between 1 and 100")
	}

	switch c.Focus.Mode {
	case FocusNone, FocusLocal:
	case FocusOllama:
		if c.Focus.OllamaURL == "" || c.Focus.Model == "" {
			return fmt.Errorf("focus.ollama_url and focus.model are required for ollama focus")
		}
	case FocusLlamaCpp:
		if c.Focus.LlamaCppURL == "" || c.Focus.Model == "" {
			return fmt.Errorf("focus.llamacpp_url and focus.model are required for llamacpp focus")
		}
	default:
		return fmt.Errorf("focus.mode must be one of %s, %s, %s, %s", FocusNone, FocusLocal, FocusOllama, FocusLlamaCpp)
	}

	if c.Input.MinImageSize < 1 {
		return fmt.Errorf("input.min_image_size must be positive")
	}

	return nil
}

// Aspect returns the crop aspect ratio as width/height.
func (c *Config) Aspect() (float64, error) {
	return aspect.Parse(c.Editor.AspectRatio)
}

// FilterSettings returns the starting filter values.
func (c *Config) FilterSettings() (filter.Settings, error) {
	d, err := filter.ParseDescriptor(c.Editor.Filter)
	if err != nil {
		return filter.Settings{}, err
	}
	return d.Settings(), nil
}

// Style returns the preview overlay style.
func (c *Config) Style() (render.Style, error) {
	border, err := parseHexColor(c.Render.BorderColor)
	if err != nil {
		return render.Style{}, err
	}
	return render.Style{
		OverlayAlpha: c.Render.OverlayAlpha,
		BorderColor:  border,
		BorderWidth:  c.Render.BorderWidth,
	}, nil
}

// ExportOptions returns the encoder settings.
func (c *Config) ExportOptions() (export.Options, error) {
	format, err := processing.ParseFormat(c.Export.Format)
	if err != nil {
		return export.Options{}, err
	}
	return export.Options{Format: format, Quality: c.Export.Quality, Lossless: c.Export.Lossless}, nil
}

// ProcessingConfig returns the image loading limits.
func (c *Config) ProcessingConfig() processing.Config {
	pc := processing.DefaultConfig()
	pc.MinImageSize = c.Input.MinImageSize
	if c.Input.MaxSourceBytes > 0 {
		pc.MaxSourceBytes = c.Input.MaxSourceBytes
	}
	if c.Input.FetchTimeout > 0 {
		pc.FetchTimeout = time.Duration(c.Input.FetchTimeout) * time.Second
	}
	return pc
}

// VisionConfig returns the local subject detector settings.
func (c *Config) VisionConfig() vision.DetectionConfig {
	vc := vision.DefaultConfig()
	if c.Focus.WorkSize > 0 {
		vc.WorkSize = c.Focus.WorkSize
	}
	return vc
}

// DetectionConfig returns the vision-model detector settings.
func (c *Config) DetectionConfig() detection.Config {
	dc := detection.DefaultConfig()
	dc.Model = c.Focus.Model
	dc.MinConfidence = c.Focus.MinConfidence
	return dc
}

// parseHexColor parses #rgb or #rrggbb.
func parseHexColor(s string) (color.NRGBA, error) {
	hex := strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(hex) == 3 {
		hex = string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]})
	}
	if len(hex) != 6 {
		return color.NRGBA{}, fmt.Errorf("invalid color %q", s)
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return color.NRGBA{}, fmt.Errorf("invalid color %q: %w", s, err)
	}
	return color.NRGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 255}, nil
}

// GetConfigPath returns the default configuration file path
func GetConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "./config.json"
	}
	return filepath.Join(home, ".config", "image-editor", "config.json")
}
