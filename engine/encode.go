package engine

import (
	"bytes"
	"fmt"
	"image"

	"github.com/disintegration/imaging"

	"github.com/drummonds/pagecrop/internal/datauri"
)

// JPEGMime is the media type of every image the service returns.
const JPEGMime = "image/jpeg"

// EncodeJPEG encodes img at quality (0-100).
func EncodeJPEG(img image.Image, quality int) ([]byte, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(quality)); err != nil {
		return nil, fmt.Errorf("failed to encode JPEG: %w", err)
	}
	return buf.Bytes(), nil
}

// DataURI wraps an encoded JPEG as data:image/jpeg;base64,...
func DataURI(jpeg []byte) string {
	return datauri.Encode(JPEGMime, jpeg)
}
