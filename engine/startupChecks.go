package engine

import (
	"errors"
	"fmt"

	"github.com/drummonds/pagecrop/engine/pdfrenderer"
	"github.com/drummonds/pagecrop/engine/raster"
	"github.com/drummonds/pagecrop/internal/samplepdf"
)

const checkDPI = 72

// checkPage is a 2in square page with a 1in black square in the middle.
var checkPage = samplepdf.Page{
	Width:  144,
	Height: 144,
	Rects:  []samplepdf.Rect{{X: 36, Y: 36, W: 72, H: 72, Gray: 0}},
}

// StartupChecks performs all the checks to make sure everything works
func (serverHandler *ServerHandler) StartupChecks() error {
	if serverHandler.Renderer == nil {
		return errors.New("no renderer configured")
	}
	if err := serverHandler.selfCheck(); err != nil {
		return err
	}
	Logger.Info("Renderer check passed", "renderer", serverHandler.Renderer.Name())
	return nil
}

// selfCheck renders the check page and records the outcome for /api/health.
func (serverHandler *ServerHandler) selfCheck() error {
	err := rendererCheck(serverHandler.Renderer)
	serverHandler.health.record(err)
	if err != nil {
		Logger.Error("Renderer check failed", "renderer", serverHandler.Renderer.Name(), "error", err)
	}
	return err
}

// rendererCheck renders checkPage and verifies the page size and that the
// square is where it should be.
func rendererCheck(renderer pdfrenderer.Renderer) error {
	pages, err := pdfrenderer.Rasterize(renderer, samplepdf.Build(checkPage), checkDPI)
	if err != nil {
		return fmt.Errorf("failed to render check page: %w", err)
	}
	if len(pages) != 1 {
		return fmt.Errorf("check page rendered as %d pages", len(pages))
	}
	img := pages[0]
	if err := img.Validate(); err != nil {
		return fmt.Errorf("check page: %w", err)
	}

	wantW, wantH := pdfrenderer.PixelSize(pdfrenderer.PageSize{Width: checkPage.Width, Height: checkPage.Height}, checkDPI)
	if !nearly(img.Width, wantW) || !nearly(img.Height, wantH) {
		return fmt.Errorf("check page is %dx%d pixels, want %dx%d", img.Width, img.Height, wantW, wantH)
	}

	region, ok := raster.ForegroundBounds(img, 240)
	if !ok {
		return errors.New("check page rendered blank")
	}
	if !nearly(region.X0, 36) || !nearly(region.Y0, 36) || !nearly(region.X1, 108) || !nearly(region.Y1, 108) {
		return fmt.Errorf("check square found at %+v, want (36,36)-(108,108)", region)
	}
	return nil
}

// nearly allows one pixel of rounding between backends.
func nearly(got, want int) bool {
	return got >= want-1 && got <= want+1
}
