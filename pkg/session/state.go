package session

import (
	"errors"
	"fmt"
	"math"

	"github.com/menta2k/image-editor/pkg/filter"
	"github.com/menta2k/image-editor/pkg/geometry"
	"github.com/menta2k/image-editor/pkg/render"
)

var (
	// ErrNoImage is returned for editing events before an image is loaded.
	ErrNoImage = errors.New("session: no image loaded")

	// ErrSessionClosed is returned for any event after Save or Cancel.
	ErrSessionClosed = errors.New("session: closed")

	// ErrReservedEvent is returned by Session.Dispatch for events only the
	// session itself may apply (ImageLoaded, Commit).
	ErrReservedEvent = errors.New("session: event is applied by the session itself")
)

// Phase is the lifecycle position of a session.
type Phase int

// Session phases
const (
	Idle Phase = iota
	Loaded
	Adjusting
	Dragging
	Exported
	Discarded
)

func (p Phase) String() string {
	switch p {
	case Idle:
		return "idle"
	case Loaded:
		return "loaded"
	case Adjusting:
		return "adjusting"
	case Dragging:
		return "dragging"
	case Exported:
		return "exported"
	case Discarded:
		return "discarded"
	}
	return fmt.Sprintf("phase(%d)", int(p))
}

// Terminal reports whether no further events are accepted.
func (p Phase) Terminal() bool {
	return p == Exported || p == Discarded
}

// State is everything an editing session knows apart from the pixels.
type State struct {
	Phase    Phase           `json:"phase"`
	Image    geometry.Size   `json:"image"`
	Aspect   float64         `json:"aspect"`
	Settings filter.Settings `json:"settings"`
	Zoom     float64         `json:"zoom"`
	Crop     geometry.Rect   `json:"crop"`
	Drag     geometry.Drag   `json:"drag"`

	// Display is the area the host last reported for the preview.
	Display geometry.Size `json:"display"`
}

// NewState returns an Idle state for crops of the given aspect ratio.
func NewState(aspect float64) State {
	return State{
		Phase:    Idle,
		Aspect:   aspect,
		Settings: filter.Identity(),
		Zoom:     1,
	}
}

// HasImage reports whether an image has been loaded.
func (s State) HasImage() bool {
	return !s.Image.Empty()
}

// Descriptor returns the filter pipeline for the current settings.
func (s State) Descriptor() filter.Descriptor {
	return filter.ToDescriptor(s.Settings)
}

// Event is an input to Apply.
type Event interface {
	event()
}

// ImageLoaded starts editing a freshly decoded image. A Session applies it
// from its Load methods; Dispatch rejects it.
type ImageLoaded struct {
	Size geometry.Size
}

// SetFilter changes one filter setting.
type SetFilter struct {
	Field filter.Kind
	Value float64
}

// SetZoom changes the magnification about the image center.
type SetZoom struct {
	Zoom float64
}

// PointerDown, PointerMove and PointerUp carry positions in display pixels.
type PointerDown struct {
	X, Y float64
}

type PointerMove struct {
	X, Y float64
}

type PointerUp struct{}

// Reset restores the state right after loading.
type Reset struct{}

// Focus centers the crop on a point given as fractions of the image width
// and height.
type Focus struct {
	X, Y float64
}

// Resize reports a new preview area.
type Resize struct {
	Display geometry.Size
}

// Commit marks the session as exported. A Session applies it from Save;
// Dispatch rejects it.
type Commit struct{}

// Cancel discards the session.
type Cancel struct{}

func (ImageLoaded) event() {}
func (SetFilter) event()   {}
func (SetZoom) event()     {}
func (PointerDown) event() {}
func (PointerMove) event() {}
func (PointerUp) event()   {}
func (Reset) event()       {}
func (Focus) event()       {}
func (Resize) event()      {}
func (Commit) event()      {}
func (Cancel) event()      {}

// Apply returns the state after ev. It has no side effects; on error the
// returned state equals s.
func Apply(s State, ev Event) (State, error) {
	if s.Phase.Terminal() {
		return s, ErrSessionClosed
	}

	switch ev := ev.(type) {
	case ImageLoaded:
		if ev.Size.Empty() {
			return s, fmt.Errorf("%w: empty image %vx%v", ErrNoImage, ev.Size.W, ev.Size.H)
		}
		s.Image = ev.Size
		return reset(s), nil
	case Resize:
		s.Display = ev.Display
		return s, nil
	case Cancel:
		s.Drag = geometry.Drag{}
		s.Phase = Discarded
		return s, nil
	}

	if !s.HasImage() {
		return s, ErrNoImage
	}

	switch ev := ev.(type) {
	case SetFilter:
		settings, err := s.Settings.Set(ev.Field, ev.Value)
		if err != nil {
			return s, err
		}
		s.Settings = settings
		s.Phase = adjusting(s.Phase)
	case SetZoom:
		s.Zoom = normalizeZoom(ev.Zoom)
		s.Phase = adjusting(s.Phase)
	case PointerDown:
		scale, ok := render.DisplayScale(s.Display, s.Image)
		if !ok {
			return s, nil
		}
		if d, hit := geometry.DragStart(geometry.Point{X: ev.X, Y: ev.Y}, scale, s.Crop); hit {
			s.Drag = d
			s.Phase = Dragging
		}
	case PointerMove:
		if !s.Drag.Active {
			return s, nil
		}
		scale, ok := render.DisplayScale(s.Display, s.Image)
		if !ok {
			return s, nil
		}
		s.Crop = geometry.DragMove(geometry.Point{X: ev.X, Y: ev.Y}, scale, s.Drag, s.Crop, s.Image)
	case PointerUp:
		if s.Drag.Active {
			s.Drag = geometry.Drag{}
			s.Phase = Adjusting
		}
	case Reset:
		s = reset(s)
	case Focus:
		center := geometry.Point{X: unit(ev.X) * s.Image.W, Y: unit(ev.Y) * s.Image.H}
		s.Crop = geometry.CenterCropOn(center, s.Crop, s.Image)
		s.Phase = adjusting(s.Phase)
	case Commit:
		s.Drag = geometry.Drag{}
		s.Phase = Exported
	default:
		return s, fmt.Errorf("session: unknown event %T", ev)
	}
	return s, nil
}

func reset(s State) State {
	s.Settings = filter.Identity()
	s.Zoom = 1
	s.Crop = geometry.InitialCrop(s.Image, s.Aspect)
	s.Drag = geometry.Drag{}
	s.Phase = Loaded
	return s
}

// adjusting keeps a drag in progress.
func adjusting(p Phase) Phase {
	if p == Dragging {
		return p
	}
	return Adjusting
}

func normalizeZoom(z float64) float64 {
	if math.IsNaN(z) || z < 1 {
		return 1
	}
	return z
}

func unit(v float64) float64 {
	if math.IsNaN(v) {
		return 0.5
	}
	return math.Max(0, math.Min(1, v))
}
