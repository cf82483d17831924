// Package aspect provides the fixed crop aspect ratios a host can pick for an
// editing session.
package aspect

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalidAspectRatio is returned when an aspect ratio cannot be parsed or
// is not positive.
var ErrInvalidAspectRatio = errors.New("invalid aspect ratio")

// Ratio represents an aspect ratio as integer terms
type Ratio struct {
	Width  int
	Height int
	Name   string
}

// Common aspect ratios
var (
	Square     = Ratio{1, 1, "square"}
	Portrait   = Ratio{3, 4, "portrait"}
	Landscape  = Ratio{4, 3, "landscape"}
	Widescreen = Ratio{16, 9, "widescreen"}
	Instagram  = Ratio{4, 5, "instagram"}
	Story      = Ratio{9, 16, "story"}
)

// Default is the ratio used when a host does not choose one.
var Default = Widescreen

// Presets returns the named aspect ratios
func Presets() []Ratio {
	return []Ratio{Square, Portrait, Landscape, Widescreen, Instagram, Story}
}

// Value returns width/height.
func (r Ratio) Value() float64 {
	return float64(r.Width) / float64(r.Height)
}

func (r Ratio) String() string {
	return fmt.Sprintf("%d:%d", r.Width, r.Height)
}

// Parse accepts a preset name ("widescreen"), a "W:H" or "W/H" pair
// ("16:9") or a decimal ratio ("1.5").
func Parse(s string) (float64, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return 0, fmt.Errorf("%w: empty", ErrInvalidAspectRatio)
	}

	for _, p := range Presets() {
		if p.Name == s {
			return p.Value(), nil
		}
	}

	if i := strings.IndexAny(s, ":/"); i >= 0 {
		w, errW := strconv.ParseFloat(s[:i], 64)
		h, errH := strconv.ParseFloat(s[i+1:], 64)
		if errW != nil || errH != nil || w <= 0 || h <= 0 {
			return 0, fmt.Errorf("%w: %q", ErrInvalidAspectRatio, s)
		}
		return w / h, nil
	}

	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v <= 0 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAspectRatio, s)
	}
	return v, nil
}
