// Package raster holds the page bitmap type produced by the renderers and the
// margin trimming applied to it.
package raster

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
)

// Channels is the number of bytes per pixel in Image.Pix.
const Channels = 3

// Image is an opaque 8-bit RGB bitmap.
//
// Pix holds Width*Height*Channels bytes in row-major order, top row first,
// left to right, each pixel stored as R, G, B with no padding between rows.
// Image implements image.Image so it can be handed to any encoder directly.
type Image struct {
	Width  int
	Height int
	Pix    []byte
}

// New returns a black image of the given size.
func New(width, height int) *Image {
	if width < 0 {
		width = 0
	}
	if height < 0 {
		height = 0
	}
	return &Image{Width: width, Height: height, Pix: make([]byte, width*height*Channels)}
}

// Validate reports whether the buffer length matches the dimensions.
func (img *Image) Validate() error {
	if img.Width < 0 || img.Height < 0 {
		return fmt.Errorf("negative image size %dx%d", img.Width, img.Height)
	}
	if want := img.Width * img.Height * Channels; len(img.Pix) != want {
		return fmt.Errorf("pixel buffer holds %d bytes, %dx%d RGB needs %d", len(img.Pix), img.Width, img.Height, want)
	}
	return nil
}

// PixOffset returns the index of the first byte of pixel (x, y) in Pix.
func (img *Image) PixOffset(x, y int) int {
	return (y*img.Width + x) * Channels
}

// RGBAt returns the channels of pixel (x, y).
func (img *Image) RGBAt(x, y int) (r, g, b uint8) {
	i := img.PixOffset(x, y)
	return img.Pix[i], img.Pix[i+1], img.Pix[i+2]
}

// SetRGB sets pixel (x, y). Points outside the image are ignored.
func (img *Image) SetRGB(x, y int, r, g, b uint8) {
	if x < 0 || y < 0 || x >= img.Width || y >= img.Height {
		return
	}
	i := img.PixOffset(x, y)
	img.Pix[i], img.Pix[i+1], img.Pix[i+2] = r, g, b
}

// Area returns the whole image as a region.
func (img *Image) Area() Region {
	return Region{X1: img.Width, Y1: img.Height}
}

// Crop returns a copy of the pixels inside region. The region is clipped to
// the image first.
func (img *Image) Crop(region Region) *Image {
	region = region.Intersect(img.Area())
	out := New(region.Dx(), region.Dy())
	rowLen := out.Width * Channels
	for y := 0; y < out.Height; y++ {
		src := img.PixOffset(region.X0, region.Y0+y)
		copy(out.Pix[y*rowLen:(y+1)*rowLen], img.Pix[src:src+rowLen])
	}
	return out
}

// ColorModel implements image.Image.
func (img *Image) ColorModel() color.Model {
	return color.RGBAModel
}

// Bounds implements image.Image.
func (img *Image) Bounds() image.Rectangle {
	return image.Rect(0, 0, img.Width, img.Height)
}

// At implements image.Image.
func (img *Image) At(x, y int) color.Color {
	if x < 0 || y < 0 || x >= img.Width || y >= img.Height {
		return color.RGBA{}
	}
	r, g, b := img.RGBAt(x, y)
	return color.RGBA{R: r, G: g, B: b, A: 0xff}
}

// FromImage converts any decoded image to an RGB Image. Transparent pixels
// are composited onto white, which is what a page without a background looks
// like on screen.
func FromImage(src image.Image) *Image {
	b := src.Bounds()
	switch s := src.(type) {
	case *image.RGBA:
		return fromRGBA(s.Pix, s.Stride, b, s.Rect.Min)
	case *image.NRGBA:
		return fromNRGBA(s)
	case *Image:
		return s.Crop(s.Area())
	}
	flat := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(flat, flat.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	draw.Draw(flat, flat.Bounds(), src, b.Min, draw.Over)
	return fromRGBA(flat.Pix, flat.Stride, flat.Bounds(), flat.Rect.Min)
}

// fromRGBA copies alpha-premultiplied pixels over a white background:
// out = c + (255 - a).
func fromRGBA(pix []byte, stride int, b image.Rectangle, origin image.Point) *Image {
	out := New(b.Dx(), b.Dy())
	for y := 0; y < out.Height; y++ {
		row := (b.Min.Y-origin.Y+y)*stride + (b.Min.X-origin.X)*4
		dst := y * out.Width * Channels
		for x := 0; x < out.Width; x++ {
			p := pix[row+x*4 : row+x*4+4]
			bg := 0xff - p[3]
			out.Pix[dst] = p[0] + bg
			out.Pix[dst+1] = p[1] + bg
			out.Pix[dst+2] = p[2] + bg
			dst += Channels
		}
	}
	return out
}

func fromNRGBA(s *image.NRGBA) *Image {
	b := s.Bounds()
	out := New(b.Dx(), b.Dy())
	for y := 0; y < out.Height; y++ {
		row := s.PixOffset(b.Min.X, b.Min.Y+y)
		dst := y * out.Width * Channels
		for x := 0; x < out.Width; x++ {
			p := s.Pix[row+x*4 : row+x*4+4]
			a := uint32(p[3])
			for c := 0; c < Channels; c++ {
				out.Pix[dst+c] = uint8((uint32(p[c])*a + 0xff*(0xff-a) + 0x7f) / 0xff)
			}
			dst += Channels
		}
	}
	return out
}
