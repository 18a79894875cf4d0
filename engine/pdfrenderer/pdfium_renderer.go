package pdfrenderer

import (
	"fmt"
	"time"

	"github.com/klippa-app/go-pdfium"
	"github.com/klippa-app/go-pdfium/references"
	"github.com/klippa-app/go-pdfium/requests"
	"github.com/klippa-app/go-pdfium/webassembly"

	"github.com/drummonds/pagecrop/engine/raster"
)

// instanceTimeout bounds how long Open waits for a free PDFium instance.
const instanceTimeout = 30 * time.Second

// PDFiumRenderer implements PDF rendering using go-pdfium with WebAssembly (pure Go, no CGo).
// Every open document holds one pool instance, so at most workers documents
// render at the same time.
type PDFiumRenderer struct {
	pool pdfium.Pool
}

// NewPDFiumRenderer creates a new PDFium-based PDF renderer using WebAssembly
func NewPDFiumRenderer(workers int) (*PDFiumRenderer, error) {
	if workers <= 0 {
		workers = 1
	}
	pool, err := webassembly.Init(webassembly.Config{
		MinIdle:  1,
		MaxIdle:  workers,
		MaxTotal: workers,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize PDFium WebAssembly: %w", err)
	}
	return &PDFiumRenderer{pool: pool}, nil
}

// Name implements Renderer.
func (r *PDFiumRenderer) Name() string {
	return BackendPDFium
}

// Open borrows a PDFium instance and loads pdf into it. The instance goes
// back to the pool when the document is closed.
func (r *PDFiumRenderer) Open(pdf []byte) (Document, error) {
	if err := checkInput(pdf); err != nil {
		return nil, err
	}
	instance, err := r.pool.GetInstance(instanceTimeout)
	if err != nil {
		return nil, fmt.Errorf("failed to get PDFium instance: %w", err)
	}

	doc, err := instance.OpenDocument(&requests.OpenDocument{
		File: &pdf,
	})
	if err != nil {
		instance.Close()
		return nil, documentError(fmt.Errorf("unable to open PDF document: %w", err))
	}

	pageCountResp, err := instance.FPDF_GetPageCount(&requests.FPDF_GetPageCount{
		Document: doc.Document,
	})
	if err != nil {
		instance.FPDF_CloseDocument(&requests.FPDF_CloseDocument{Document: doc.Document})
		instance.Close()
		return nil, documentError(fmt.Errorf("unable to get page count: %w", err))
	}

	return &pdfiumDocument{
		instance: instance,
		doc:      doc.Document,
		numPages: pageCountResp.PageCount,
	}, nil
}

// Close cleans up resources used by the PDFium renderer
func (r *PDFiumRenderer) Close() error {
	if r.pool != nil {
		err := r.pool.Close()
		r.pool = nil
		return err
	}
	return nil
}

type pdfiumDocument struct {
	instance pdfium.Pdfium
	doc      references.FPDF_DOCUMENT
	numPages int
}

func (d *pdfiumDocument) NumPage() int {
	return d.numPages
}

func (d *pdfiumDocument) PageSize(page int) (PageSize, error) {
	size, err := d.instance.FPDF_GetPageSizeByIndex(&requests.FPDF_GetPageSizeByIndex{
		Document: d.doc,
		Index:    page,
	})
	if err != nil {
		return PageSize{}, pageError(page, fmt.Errorf("unable to read page size: %w", err))
	}
	return PageSize{Width: size.Width, Height: size.Height}, nil
}

func (d *pdfiumDocument) RenderPage(page int, dpi int) (*raster.Image, error) {
	pageRender, err := d.instance.RenderPageInDPI(&requests.RenderPageInDPI{
		DPI: dpi,
		Page: requests.Page{
			ByIndex: &requests.PageByIndex{
				Document: d.doc,
				Index:    page,
			},
		},
	})
	if err != nil {
		return nil, pageError(page, err)
	}
	// The bitmap lives in WebAssembly memory until Cleanup, so copy it out first.
	defer pageRender.Cleanup()
	return raster.FromImage(pageRender.Result.Image), nil
}

func (d *pdfiumDocument) Close() error {
	_, err := d.instance.FPDF_CloseDocument(&requests.FPDF_CloseDocument{
		Document: d.doc,
	})
	if closeErr := d.instance.Close(); err == nil {
		err = closeErr
	}
	return err
}
