package raster

import "image/color"

// Pixel helpers for building and comparing test images.

// NewFilled returns an image of the given size with every pixel set to c.
func NewFilled(width, height int, c color.Color) *Image {
	img := New(width, height)
	r, g, b := opaqueRGB(c)
	for i := 0; i < len(img.Pix); i += Channels {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2] = r, g, b
	}
	return img
}

// FillRegion paints every pixel of region with c, clipped to the image.
func (img *Image) FillRegion(region Region, c color.Color) {
	region = region.Intersect(img.Area())
	r, g, b := opaqueRGB(c)
	for y := region.Y0; y < region.Y1; y++ {
		for x := region.X0; x < region.X1; x++ {
			i := img.PixOffset(x, y)
			img.Pix[i], img.Pix[i+1], img.Pix[i+2] = r, g, b
		}
	}
}

// Equal reports whether both images have the same size and pixels.
func (img *Image) Equal(other *Image) bool {
	if img.Width != other.Width || img.Height != other.Height || len(img.Pix) != len(other.Pix) {
		return false
	}
	for i := range img.Pix {
		if img.Pix[i] != other.Pix[i] {
			return false
		}
	}
	return true
}

// Contains reports whether pixel (x, y) lies inside the region.
func (r Region) Contains(x, y int) bool {
	return r.X0 <= x && x < r.X1 && r.Y0 <= y && y < r.Y1
}

func opaqueRGB(c color.Color) (r, g, b uint8) {
	rgba := color.RGBAModel.Convert(c).(color.RGBA)
	bg := 0xff - rgba.A
	return rgba.R + bg, rgba.G + bg, rgba.B + bg
}
