package pdfrenderer

import (
	"fmt"

	"github.com/gen2brain/go-fitz"

	"github.com/drummonds/pagecrop/engine/raster"
)

// FitzRenderer implements PDF rendering using go-fitz (requires CGo and MuPDF)
type FitzRenderer struct {
}

// NewFitzRenderer creates a new Fitz-based PDF renderer
func NewFitzRenderer() (*FitzRenderer, error) {
	return &FitzRenderer{}, nil
}

// Name implements Renderer.
func (r *FitzRenderer) Name() string {
	return BackendFitz
}

// Open decodes pdf in memory with MuPDF.
func (r *FitzRenderer) Open(pdf []byte) (Document, error) {
	if err := checkInput(pdf); err != nil {
		return nil, err
	}
	doc, err := fitz.NewFromMemory(pdf)
	if err != nil {
		return nil, documentError(fmt.Errorf("unable to open PDF document: %w", err))
	}
	return &fitzDocument{doc: doc}, nil
}

// Close cleans up resources (no-op for Fitz renderer as each document is closed by its owner)
func (r *FitzRenderer) Close() error {
	return nil
}

type fitzDocument struct {
	doc *fitz.Document
}

func (d *fitzDocument) NumPage() int {
	return d.doc.NumPage()
}

func (d *fitzDocument) PageSize(page int) (PageSize, error) {
	bound, err := d.doc.Bound(page)
	if err != nil {
		return PageSize{}, pageError(page, fmt.Errorf("unable to read page bounds: %w", err))
	}
	return PageSize{Width: float64(bound.Dx()), Height: float64(bound.Dy())}, nil
}

// RenderPage lets MuPDF scale by dpi/72; the pixmap bounds are rounded from
// the scaled page box.
func (d *fitzDocument) RenderPage(page int, dpi int) (*raster.Image, error) {
	img, err := d.doc.ImageDPI(page, float64(dpi))
	if err != nil {
		return nil, pageError(page, err)
	}
	return raster.FromImage(img), nil
}

func (d *fitzDocument) Close() error {
	return d.doc.Close()
}
