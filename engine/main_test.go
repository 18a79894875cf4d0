package engine

import (
	"bytes"
	"errors"
	"image/color"
	"log/slog"
	"os"
	"testing"

	"github.com/disintegration/imaging"

	"github.com/drummonds/pagecrop/engine/pdfrenderer"
	"github.com/drummonds/pagecrop/engine/raster"
)

func TestMain(m *testing.M) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	}))
	Logger = logger
	pdfrenderer.Logger = logger
	os.Exit(m.Run())
}

// fakeRenderer hands out prepared page images for any input that starts with
// a PDF header, so handler and converter tests do not need a real backend.
type fakeRenderer struct {
	pages   []*raster.Image
	sizes   []pdfrenderer.PageSize
	failing map[int]bool
	opened  int
	closed  int
}

func (r *fakeRenderer) Name() string { return "fake" }

func (r *fakeRenderer) Open(pdf []byte) (pdfrenderer.Document, error) {
	if len(pdf) == 0 {
		return nil, &pdfrenderer.DecodeError{Page: -1, Err: pdfrenderer.ErrEmptyInput}
	}
	if !bytes.HasPrefix(pdf, []byte("%PDF-")) {
		return nil, &pdfrenderer.DecodeError{Page: -1, Err: pdfrenderer.ErrNotPDF}
	}
	r.opened++
	return &fakeDocument{renderer: r}, nil
}

func (r *fakeRenderer) Close() error { return nil }

type fakeDocument struct {
	renderer *fakeRenderer
}

func (d *fakeDocument) NumPage() int { return len(d.renderer.pages) }

func (d *fakeDocument) PageSize(page int) (pdfrenderer.PageSize, error) {
	if page < len(d.renderer.sizes) {
		return d.renderer.sizes[page], nil
	}
	return pdfrenderer.PageSize{}, errors.New("no size")
}

func (d *fakeDocument) RenderPage(page int, dpi int) (*raster.Image, error) {
	if d.renderer.failing[page] {
		return nil, &pdfrenderer.DecodeError{Page: page, Err: errors.New("broken content stream")}
	}
	return d.renderer.pages[page], nil
}

func (d *fakeDocument) Close() error {
	d.renderer.closed++
	return nil
}

// filledPage returns a width x height page painted with c.
func filledPage(width, height int, c color.Color) *raster.Image {
	return raster.FromImage(imaging.New(width, height, c))
}

// squarePage returns a white width x height page with a black square over region.
func squarePage(width, height int, region raster.Region) *raster.Image {
	img := filledPage(width, height, color.White)
	for y := region.Y0; y < region.Y1; y++ {
		for x := region.X0; x < region.X1; x++ {
			img.SetRGB(x, y, 0, 0, 0)
		}
	}
	return img
}

// fakePDF is enough for fakeRenderer to accept.
var fakePDF = []byte("%PDF-1.4\n%%EOF\n")
