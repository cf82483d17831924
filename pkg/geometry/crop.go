package geometry

import "math"

// InitialCrop returns the largest rectangle with the given aspect ratio
// (width/height) that fits within CropFill of the image, centered.
func InitialCrop(img Size, aspect float64) Rect {
	var w, h float64
	if img.Ratio() > aspect {
		h = img.H * CropFill
		w = h * aspect
	} else {
		w = img.W * CropFill
		h = w / aspect
	}
	return Rect{X: (img.W - w) / 2, Y: (img.H - h) / 2, W: w, H: h}
}

// ClampCropOrigin clamps a candidate crop origin so a crop of size crop stays
// inside img. When the crop is larger than the image on an axis the valid
// range is empty and that axis clamps to 0. A NaN coordinate clamps to 0.
func ClampCropOrigin(candidate Point, crop, img Size) Point {
	return Point{
		X: clampAxis(candidate.X, img.W-crop.W),
		Y: clampAxis(candidate.Y, img.H-crop.H),
	}
}

func clampAxis(v, hi float64) float64 {
	if hi <= 0 || math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > hi {
		return hi
	}
	return v
}

// CenterCropOn moves crop so its center sits on p, then clamps it to img.
func CenterCropOn(p Point, crop Rect, img Size) Rect {
	origin := Point{X: p.X - crop.W/2, Y: p.Y - crop.H/2}
	return crop.WithOrigin(ClampCropOrigin(origin, crop.Size(), img))
}

// InBounds reports whether crop lies entirely inside img.
func InBounds(crop Rect, img Size) bool {
	return crop.X >= 0 && crop.Y >= 0 && crop.X+crop.W <= img.W && crop.Y+crop.H <= img.H
}
