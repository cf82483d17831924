// Package types holds the subject records exchanged with vision models.
package types

import "math"

// Box represents a normalized bounding box with coordinates in [0,1] range
type Box struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
}

// Center returns the middle of the box.
func (b Box) Center() (float64, float64) {
	return b.X + b.W/2, b.Y + b.H/2
}

// Valid reports whether the box has area and lies inside the unit square.
func (b Box) Valid() bool {
	return b.W > 0 && b.H > 0 && b.X >= 0 && b.Y >= 0 && b.X+b.W <= 1.0001 && b.Y+b.H <= 1.0001
}

// Subject is the dominant subject reported by a vision model
type Subject struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
	Box        Box     `json:"box"`
	Cx         float64 `json:"cx"`
	Cy         float64 `json:"cy"`
}

// Center returns the subject center. The explicit cx/cy pair wins when it is
// inside the unit square; otherwise the box center is used.
func (s Subject) Center() (float64, float64) {
	if inUnit(s.Cx) && inUnit(s.Cy) && (s.Cx != 0 || s.Cy != 0) {
		return s.Cx, s.Cy
	}
	if s.Box.Valid() {
		return s.Box.Center()
	}
	return 0.5, 0.5
}

func inUnit(v float64) bool {
	return !math.IsNaN(v) && v >= 0 && v <= 1
}

// Result is a complete vision-model answer
type Result struct {
	Primary     Subject `json:"primary"`
	Description string  `json:"description"`
}
