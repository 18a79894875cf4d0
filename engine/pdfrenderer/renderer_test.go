package pdfrenderer

import (
	"errors"
	"os"
	"testing"

	"github.com/drummonds/pagecrop/engine/raster"
	"github.com/drummonds/pagecrop/internal/samplepdf"
)

// testRenderers starts every backend available in this environment. MuPDF
// needs CGo, so the fitz backend only runs with PAGECROP_TEST_FITZ=1.
func testRenderers(t *testing.T) []Renderer {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping renderer test in short mode")
	}

	var renderers []Renderer
	pdfium, err := NewPDFiumRenderer(1)
	if err != nil {
		t.Fatalf("Failed to start PDFium renderer: %v", err)
	}
	renderers = append(renderers, pdfium)

	if os.Getenv("PAGECROP_TEST_FITZ") == "1" {
		fitz, err := NewFitzRenderer()
		if err != nil {
			t.Fatalf("Failed to start fitz renderer: %v", err)
		}
		renderers = append(renderers, fitz)
	}

	t.Cleanup(func() {
		for _, r := range renderers {
			r.Close()
		}
	})
	return renderers
}

// within reports whether got is want give or take one pixel of rounding.
func within(got, want int) bool {
	return got >= want-1 && got <= want+1
}

func TestRasterizePreservesPageCountAndOrder(t *testing.T) {
	pages := []samplepdf.Page{
		{Width: 100, Height: 50},
		{Width: 72, Height: 72},
		{Width: 50, Height: 120},
	}
	data := samplepdf.Build(pages...)

	for _, r := range testRenderers(t) {
		t.Run(r.Name(), func(t *testing.T) {
			images, err := Rasterize(r, data, 72)
			if err != nil {
				t.Fatalf("Rasterize failed: %v", err)
			}
			if len(images) != len(pages) {
				t.Fatalf("got %d images, want %d", len(images), len(pages))
			}
			for i, img := range images {
				if err := img.Validate(); err != nil {
					t.Errorf("page %d: %v", i+1, err)
				}
				if !within(img.Width, int(pages[i].Width)) || !within(img.Height, int(pages[i].Height)) {
					t.Errorf("page %d: got %dx%d, want about %vx%v", i+1, img.Width, img.Height, pages[i].Width, pages[i].Height)
				}
			}
		})
	}
}

func TestRasterizeMatchesInspectForCropBox(t *testing.T) {
	data := samplepdf.Build(
		samplepdf.Page{Width: 612, Height: 792, CropBox: &samplepdf.Rect{X: 72, Y: 72, W: 306, H: 396}},
		samplepdf.Page{Width: 200, Height: 100, Rotate: 90, CropBox: &samplepdf.Rect{W: 100, H: 50}},
	)
	info, err := Inspect(data, 100)
	if err != nil {
		t.Fatalf("Inspect failed: %v", err)
	}

	for _, r := range testRenderers(t) {
		t.Run(r.Name(), func(t *testing.T) {
			images, err := Rasterize(r, data, 100)
			if err != nil {
				t.Fatalf("Rasterize failed: %v", err)
			}
			for i, img := range images {
				page := info.Pages[i]
				if !within(img.Width, page.WidthPx) || !within(img.Height, page.HeightPx) {
					t.Errorf("page %d rendered %dx%d, Inspect predicted %dx%d", i+1, img.Width, img.Height, page.WidthPx, page.HeightPx)
				}
			}
		})
	}
}

func TestRasterizeResolutionScaling(t *testing.T) {
	data := samplepdf.Build(samplepdf.Letter)

	for _, r := range testRenderers(t) {
		t.Run(r.Name(), func(t *testing.T) {
			low, err := Rasterize(r, data, 50)
			if err != nil {
				t.Fatalf("Rasterize at 50 dpi failed: %v", err)
			}
			high, err := Rasterize(r, data, 100)
			if err != nil {
				t.Fatalf("Rasterize at 100 dpi failed: %v", err)
			}

			wantW, wantH := PixelSize(PageSize{612, 792}, 100)
			if !within(high[0].Width, wantW) || !within(high[0].Height, wantH) {
				t.Errorf("100 dpi page is %dx%d, want about %dx%d", high[0].Width, high[0].Height, wantW, wantH)
			}
			if !within(high[0].Width, 2*low[0].Width) || !within(high[0].Height, 2*low[0].Height) {
				t.Errorf("doubling dpi went from %dx%d to %dx%d", low[0].Width, low[0].Height, high[0].Width, high[0].Height)
			}
		})
	}
}

func TestRasterizeEmptyDocument(t *testing.T) {
	for _, r := range testRenderers(t) {
		t.Run(r.Name(), func(t *testing.T) {
			images, err := Rasterize(r, samplepdf.Build(), 72)
			if err != nil {
				t.Fatalf("Rasterize failed: %v", err)
			}
			if len(images) != 0 {
				t.Errorf("got %d images for an empty document", len(images))
			}
		})
	}
}

func TestRasterizeDecodeFailure(t *testing.T) {
	inputs := map[string][]byte{
		"empty":      {},
		"plain text": []byte("definitely not a pdf"),
		"jpeg":       {0xff, 0xd8, 0xff, 0xe0, 0x00, 0x10, 'J', 'F', 'I', 'F'},
	}
	for _, r := range testRenderers(t) {
		for name, data := range inputs {
			t.Run(r.Name()+"/"+name, func(t *testing.T) {
				images, err := Rasterize(r, data, 72)
				var decodeErr *DecodeError
				if !errors.As(err, &decodeErr) {
					t.Fatalf("expected *DecodeError, got %v", err)
				}
				if images != nil {
					t.Errorf("got %d placeholder images alongside the error", len(images))
				}
			})
		}
	}
}

func TestRasterizeRendersContent(t *testing.T) {
	// A black square in the middle of a 144pt page: 50..150 px at 100 dpi.
	data := samplepdf.Build(samplepdf.Page{
		Width: 144, Height: 144,
		Rects: []samplepdf.Rect{{X: 36, Y: 36, W: 72, H: 72, Gray: 0}},
	})

	for _, r := range testRenderers(t) {
		t.Run(r.Name(), func(t *testing.T) {
			images, err := Rasterize(r, data, 100)
			if err != nil {
				t.Fatalf("Rasterize failed: %v", err)
			}
			region, ok := raster.ForegroundBounds(images[0], 240)
			if !ok {
				t.Fatal("rendered page has no foreground")
			}
			if !within(region.X0, 50) || !within(region.Y0, 50) || !within(region.X1, 150) || !within(region.Y1, 150) {
				t.Errorf("square rendered at %+v, want about (50,50)-(150,150)", region)
			}
		})
	}
}

func TestNewRendererUnknownBackend(t *testing.T) {
	if _, err := NewRenderer("ghostscript", 1); err == nil {
		t.Error("expected error for unknown backend")
	}
}
