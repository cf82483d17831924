package geometry

// Drag is the transient state of a pointer interaction with the crop
// rectangle. Grab is the pointer-to-crop-origin offset in source pixels,
// captured when the drag started.
type Drag struct {
	Active bool  `json:"active"`
	Grab   Point `json:"grab"`
}

// DragStart hit-tests a pointer position given in display pixels against the
// crop rectangle. The drag is accepted only when the pointer is strictly
// inside the crop.
func DragStart(pointer Point, s Scale, crop Rect) (Drag, bool) {
	p := DisplayToSource(pointer, s)
	if !crop.ContainsStrict(p) {
		return Drag{}, false
	}
	return Drag{Active: true, Grab: p.Sub(crop.Origin())}, true
}

// DragMove returns crop moved to follow a pointer given in display pixels.
// The origin is clamped to the image; width and height never change.
func DragMove(pointer Point, s Scale, d Drag, crop Rect, img Size) Rect {
	if !d.Active {
		return crop
	}
	p := DisplayToSource(pointer, s)
	return crop.WithOrigin(ClampCropOrigin(p.Sub(d.Grab), crop.Size(), img))
}
