// Package filter describes the color adjustments applied to an image while it
// is being edited and the ordered effect pipeline they map to.
package filter

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrUnknownField is returned when a settings field name is not recognized.
var ErrUnknownField = errors.New("unknown filter field")

// ErrInvalidDescriptor is returned when a descriptor string cannot be parsed.
var ErrInvalidDescriptor = errors.New("invalid filter descriptor")

// Kind identifies a single color effect.
type Kind string

// Effect kinds, listed in application order.
const (
	Brightness Kind = "brightness"
	Contrast   Kind = "contrast"
	Grayscale  Kind = "grayscale"
	Sepia      Kind = "sepia"
)

// Order is the fixed order in which effects are applied.
var Order = []Kind{Brightness, Contrast, Grayscale, Sepia}

// identity returns the amount at which an effect does nothing.
func (k Kind) identity() float64 {
	switch k {
	case Brightness, Contrast:
		return 100
	default:
		return 0
	}
}

// Settings holds the user-facing color adjustments, each a percentage.
// Brightness and contrast range over [0, 200] with 100 as identity; grayscale
// and sepia range over [0, 100] with 0 as identity. Values are not validated.
type Settings struct {
	Brightness float64 `json:"brightness"`
	Contrast   float64 `json:"contrast"`
	Grayscale  float64 `json:"grayscale"`
	Sepia      float64 `json:"sepia"`
}

// Identity returns settings that leave an image unchanged.
func Identity() Settings {
	return Settings{Brightness: 100, Contrast: 100}
}

// IsIdentity reports whether the settings leave an image unchanged.
func (s Settings) IsIdentity() bool {
	return s == Identity()
}

// Get returns the value of the named field.
func (s Settings) Get(field Kind) (float64, error) {
	switch field {
	case Brightness:
		return s.Brightness, nil
	case Contrast:
		return s.Contrast, nil
	case Grayscale:
		return s.Grayscale, nil
	case Sepia:
		return s.Sepia, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownField, field)
}

// Set returns a copy of s with the named field replaced.
func (s Settings) Set(field Kind, value float64) (Settings, error) {
	switch field {
	case Brightness:
		s.Brightness = value
	case Contrast:
		s.Contrast = value
	case Grayscale:
		s.Grayscale = value
	case Sepia:
		s.Sepia = value
	default:
		return s, fmt.Errorf("%w: %q", ErrUnknownField, field)
	}
	return s, nil
}

// Effect is one step of a filter pipeline.
type Effect struct {
	Kind   Kind    `json:"kind"`
	Amount float64 `json:"amount"`
}

// IsIdentity reports whether the effect leaves colors unchanged.
func (e Effect) IsIdentity() bool {
	return e.Amount == e.Kind.identity()
}

func (e Effect) String() string {
	return fmt.Sprintf("%s(%s%%)", e.Kind, strconv.FormatFloat(e.Amount, 'f', -1, 64))
}

// Descriptor is an ordered composition of effects.
type Descriptor []Effect

// ToDescriptor maps settings to the effect pipeline
// brightness → contrast → grayscale → sepia.
func ToDescriptor(s Settings) Descriptor {
	return Descriptor{
		{Kind: Brightness, Amount: s.Brightness},
		{Kind: Contrast, Amount: s.Contrast},
		{Kind: Grayscale, Amount: s.Grayscale},
		{Kind: Sepia, Amount: s.Sepia},
	}
}

// IsIdentity reports whether applying d is a no-op.
func (d Descriptor) IsIdentity() bool {
	for _, e := range d {
		if !e.IsIdentity() {
			return false
		}
	}
	return true
}

// String renders d in the CSS filter syntax, e.g.
// "brightness(100%) contrast(100%) grayscale(0%) sepia(0%)".
func (d Descriptor) String() string {
	parts := make([]string, 0, len(d))
	for _, e := range d {
		parts = append(parts, e.String())
	}
	return strings.Join(parts, " ")
}

// Settings folds d back into settings. Later effects of the same kind win.
func (d Descriptor) Settings() Settings {
	s := Identity()
	for _, e := range d {
		s, _ = s.Set(e.Kind, e.Amount)
	}
	return s
}

// ParseDescriptor parses the CSS-style form produced by Descriptor.String.
// The percent sign is optional and missing effects keep their identity
// amount. The result is always in application order regardless of the
// order of the input.
func ParseDescriptor(text string) (Descriptor, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return ToDescriptor(Identity()), nil
	}

	var d Descriptor
	for _, tok := range strings.Fields(text) {
		open := strings.IndexByte(tok, '(')
		if open <= 0 || !strings.HasSuffix(tok, ")") {
			return nil, fmt.Errorf("%w: %q", ErrInvalidDescriptor, tok)
		}
		kind := Kind(strings.ToLower(tok[:open]))
		if _, err := Identity().Get(kind); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidDescriptor, err)
		}
		raw := strings.TrimSuffix(tok[open+1:len(tok)-1], "%")
		amount, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %q: %v", ErrInvalidDescriptor, tok, err)
		}
		d = append(d, Effect{Kind: kind, Amount: amount})
	}
	return ToDescriptor(d.Settings()), nil
}
