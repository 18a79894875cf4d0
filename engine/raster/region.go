package raster

import "image"

// Region is a half-open rectangle [X0, X1) x [Y0, Y1) in pixel coordinates.
type Region struct {
	X0 int `json:"x0"`
	Y0 int `json:"y0"`
	X1 int `json:"x1"`
	Y1 int `json:"y1"`
}

// Dx returns the width of the region.
func (r Region) Dx() int {
	return r.X1 - r.X0
}

// Dy returns the height of the region.
func (r Region) Dy() int {
	return r.Y1 - r.Y0
}

// Empty reports whether the region contains no pixels.
func (r Region) Empty() bool {
	return r.X0 >= r.X1 || r.Y0 >= r.Y1
}

// Intersect returns the largest region contained in both r and s. Disjoint
// regions intersect to the zero Region.
func (r Region) Intersect(s Region) Region {
	r.X0 = max(r.X0, s.X0)
	r.Y0 = max(r.Y0, s.Y0)
	r.X1 = min(r.X1, s.X1)
	r.Y1 = min(r.Y1, s.Y1)
	if r.Empty() {
		return Region{}
	}
	return r
}

// Rect converts the region to an image.Rectangle.
func (r Region) Rect() image.Rectangle {
	return image.Rect(r.X0, r.Y0, r.X1, r.Y1)
}
