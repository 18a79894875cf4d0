package raster

// Luminance returns the 8-bit luma of an RGB pixel using the ITU-R 601-2
// weights in 16-bit fixed point, rounded to nearest, as in the "L" mode
// conversion of common imaging tools.
func Luminance(r, g, b uint8) uint8 {
	return uint8((uint32(r)*19595 + uint32(g)*38470 + uint32(b)*7471 + 1<<15) >> 16)
}

// IsForeground reports whether a pixel is darker than threshold.
func IsForeground(r, g, b uint8, threshold int) bool {
	return int(Luminance(r, g, b)) < threshold
}

// ForegroundBounds returns the smallest region holding every pixel whose
// luminance is below threshold. ok is false when there is no such pixel.
func ForegroundBounds(img *Image, threshold int) (region Region, ok bool) {
	if threshold <= 0 || img.Width == 0 || img.Height == 0 {
		return Region{}, false
	}

	x0, x1 := img.Width, -1
	y0, y1 := -1, -1
	stride := img.Width * Channels
	for y := 0; y < img.Height; y++ {
		row := img.Pix[y*stride : (y+1)*stride]

		first := -1
		for x := 0; x < img.Width; x++ {
			p := row[x*Channels:]
			if IsForeground(p[0], p[1], p[2], threshold) {
				first = x
				break
			}
		}
		if first < 0 {
			continue
		}

		// Only the stretch right of the current x1 can widen the box.
		last := first
		for x := img.Width - 1; x > max(first, x1); x-- {
			p := row[x*Channels:]
			if IsForeground(p[0], p[1], p[2], threshold) {
				last = x
				break
			}
		}

		if y0 < 0 {
			y0 = y
		}
		y1 = y
		x0 = min(x0, first)
		x1 = max(x1, last)
	}

	if y0 < 0 {
		return Region{}, false
	}
	return Region{X0: x0, Y0: y0, X1: x1 + 1, Y1: y1 + 1}, true
}

// Trim crops img to the bounding box of its foreground pixels and returns the
// region it kept. An image without foreground, or whose foreground already
// touches all four edges, is returned as is together with its full area.
func Trim(img *Image, threshold int) (*Image, Region) {
	region, ok := ForegroundBounds(img, threshold)
	if !ok || region == img.Area() {
		return img, img.Area()
	}
	return img.Crop(region), region
}

// AutoCrop removes the background margins of img. Pixels with luminance at or
// above threshold are background. It never fails: when nothing is darker than
// threshold the input is returned unchanged.
func AutoCrop(img *Image, threshold int) *Image {
	cropped, _ := Trim(img, threshold)
	return cropped
}
