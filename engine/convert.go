package engine

import (
	"fmt"
	"image/color"
	"time"

	"github.com/disintegration/imaging"
	"github.com/dustin/go-humanize"
	"github.com/oklog/ulid/v2"

	"github.com/drummonds/pagecrop/config"
	"github.com/drummonds/pagecrop/engine/pdfrenderer"
	"github.com/drummonds/pagecrop/engine/raster"
)

// PageResult is the outcome for one page. JPEG is nil when the page was
// skipped after a render failure.
type PageResult struct {
	Index        int           `json:"index"`
	SourceWidth  int           `json:"source_width"`
	SourceHeight int           `json:"source_height"`
	Width        int           `json:"width"`
	Height       int           `json:"height"`
	Crop         raster.Region `json:"crop"`
	Bytes        int           `json:"bytes"`
	Error        string        `json:"error,omitempty"`
	JPEG         []byte        `json:"-"`
}

// ConversionResult holds every page of one converted document, in page order.
type ConversionResult struct {
	ID    string       `json:"id"`
	DPI   int          `json:"dpi"`
	Pages []PageResult `json:"pages"`
}

// DataURIs returns the encoded pages as data URIs, leaving out skipped pages.
func (r *ConversionResult) DataURIs() []string {
	uris := make([]string, 0, len(r.Pages))
	for _, page := range r.Pages {
		if page.JPEG != nil {
			uris = append(uris, DataURI(page.JPEG))
		}
	}
	return uris
}

// Converter runs rasterize, crop and encode for a whole document.
type Converter struct {
	Renderer pdfrenderer.Renderer
	Policy   string // one of the config.PageError* values, empty means fail
	MaxDPI   int
}

// Convert renders every page of pdf at req.DPI, trims its margins and encodes
// it as JPEG. Page render failures are handled according to Policy.
func (c *Converter) Convert(pdf []byte, req ConversionRequest) (*ConversionResult, error) {
	if err := req.Validate(c.MaxDPI); err != nil {
		return nil, err
	}
	start := time.Now()
	id := ulid.Make()

	doc, err := c.Renderer.Open(pdf)
	if err != nil {
		Logger.Warn("Unable to open PDF", "id", id.String(), "size", humanize.Bytes(uint64(len(pdf))), "error", err)
		return nil, err
	}
	defer doc.Close()

	numPages := doc.NumPage()
	result := &ConversionResult{ID: id.String(), DPI: req.DPI, Pages: make([]PageResult, 0, numPages)}
	var totalBytes int
	for pageIndex := 0; pageIndex < numPages; pageIndex++ {
		pageResult := PageResult{Index: pageIndex}
		img, err := doc.RenderPage(pageIndex, req.DPI)
		if err != nil {
			img, err = c.pageFailed(doc, pageIndex, req.DPI, err)
			if err != nil {
				return nil, err
			}
			pageResult.Error = fmt.Sprintf("page %d could not be rendered", pageIndex+1)
			if img == nil {
				result.Pages = append(result.Pages, pageResult)
				continue
			}
		}

		cropped, region := raster.Trim(img, req.Threshold)
		jpeg, err := EncodeJPEG(cropped, req.Quality)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", pageIndex+1, err)
		}
		pageResult.SourceWidth, pageResult.SourceHeight = img.Width, img.Height
		pageResult.Width, pageResult.Height = cropped.Width, cropped.Height
		pageResult.Crop = region
		pageResult.Bytes = len(jpeg)
		pageResult.JPEG = jpeg
		totalBytes += len(jpeg)
		result.Pages = append(result.Pages, pageResult)
	}

	Logger.Info("Converted PDF",
		"id", result.ID,
		"renderer", c.Renderer.Name(),
		"pages", numPages,
		"dpi", req.DPI,
		"input", humanize.Bytes(uint64(len(pdf))),
		"output", humanize.Bytes(uint64(totalBytes)),
		"duration", time.Since(start))
	return result, nil
}

// pageFailed applies the page error policy to a render failure. It returns
// the image to use in place of the page, nil to skip it, or the error to
// abort with.
func (c *Converter) pageFailed(doc pdfrenderer.Document, pageIndex, dpi int, renderErr error) (*raster.Image, error) {
	switch c.Policy {
	case config.PageErrorSkip:
		Logger.Warn("Skipping page that failed to render", "page", pageIndex+1, "error", renderErr)
		return nil, nil
	case config.PageErrorPlaceholder:
		Logger.Warn("Substituting blank page for page that failed to render", "page", pageIndex+1, "error", renderErr)
		size, err := doc.PageSize(pageIndex)
		if err != nil || size.Width <= 0 || size.Height <= 0 {
			size = pdfrenderer.PageSize{Width: 612, Height: 792}
		}
		width, height := pdfrenderer.PixelSize(size, dpi)
		return raster.FromImage(imaging.New(max(width, 1), max(height, 1), color.White)), nil
	default:
		return nil, renderErr
	}
}
