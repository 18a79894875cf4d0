package pdfrenderer

import (
	"fmt"
	"log/slog"
	"math"

	"github.com/drummonds/pagecrop/engine/raster"
)

// Logger is global since we will need it everywhere
var Logger *slog.Logger

// PointsPerInch is the PDF user space unit.
const PointsPerInch = 72

// Backend names accepted by NewRenderer.
const (
	BackendPDFium = "pdfium"
	BackendFitz   = "fitz"
)

// PageSize is the size of a page in PDF points, after applying /Rotate.
type PageSize struct {
	Width  float64 `json:"width_pt"`
	Height float64 `json:"height_pt"`
}

// PixelSize returns the raster size of a page rendered at dpi:
// round(points * dpi / 72) on each axis.
func PixelSize(size PageSize, dpi int) (width, height int) {
	scale := float64(dpi) / PointsPerInch
	return int(math.Round(size.Width * scale)), int(math.Round(size.Height * scale))
}

// Document is an opened PDF. It is owned by one caller at a time and must be
// closed once all pages have been extracted.
type Document interface {
	// NumPage returns the number of pages.
	NumPage() int
	// PageSize returns the size of a zero-based page in points.
	PageSize(page int) (PageSize, error)
	// RenderPage rasterizes a zero-based page at dpi. Failures are *DecodeError.
	RenderPage(page int, dpi int) (*raster.Image, error)
	Close() error
}

// Renderer defines the interface for PDF to image conversion
type Renderer interface {
	// Name identifies the backend in logs and health output.
	Name() string
	// Open decodes pdf. Bytes that are empty or not a PDF yield a *DecodeError.
	Open(pdf []byte) (Document, error)
	// Close cleans up any resources used by the renderer
	Close() error
}

// NewRenderer creates the renderer backend called name. workers bounds how
// many documents the pdfium backend renders at once.
func NewRenderer(name string, workers int) (Renderer, error) {
	switch name {
	case "", BackendPDFium:
		return NewPDFiumRenderer(workers)
	case BackendFitz:
		return NewFitzRenderer()
	default:
		return nil, fmt.Errorf("unknown renderer %q (want %q or %q)", name, BackendPDFium, BackendFitz)
	}
}

// Rasterize renders every page of pdf at dpi, in page order. Any page that
// fails aborts the whole call with a *DecodeError; no placeholder is ever
// substituted. A document without pages yields an empty slice.
func Rasterize(r Renderer, pdf []byte, dpi int) ([]*raster.Image, error) {
	if dpi <= 0 {
		return nil, fmt.Errorf("dpi must be positive, got %d", dpi)
	}
	doc, err := r.Open(pdf)
	if err != nil {
		return nil, err
	}
	defer doc.Close()

	numPages := doc.NumPage()
	pages := make([]*raster.Image, 0, numPages)
	for pageIndex := 0; pageIndex < numPages; pageIndex++ {
		img, err := doc.RenderPage(pageIndex, dpi)
		if err != nil {
			return nil, err
		}
		pages = append(pages, img)
	}
	Logger.Debug("Rasterized PDF", "renderer", r.Name(), "pages", numPages, "dpi", dpi)
	return pages, nil
}
