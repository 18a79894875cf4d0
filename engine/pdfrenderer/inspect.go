package pdfrenderer

import (
	"bytes"
	"errors"
	"fmt"
	"math"

	"github.com/ledongthuc/pdf"
)

// maxTreeDepth stops the /Parent walk on cyclic page trees.
const maxTreeDepth = 64

// PageInfo describes one page as stored in the file.
type PageInfo struct {
	Index    int `json:"index"`
	PageSize
	WidthPx  int `json:"width_px"`
	HeightPx int `json:"height_px"`
}

// DocumentInfo is the structural summary returned by Inspect.
type DocumentInfo struct {
	PageCount int        `json:"page_count"`
	DPI       int        `json:"dpi"`
	Pages     []PageInfo `json:"pages"`
}

// Inspect reads the page tree of pdf without rendering it and predicts the
// pixel size of every page at dpi.
func Inspect(data []byte, dpi int) (info *DocumentInfo, err error) {
	if err := checkInput(data); err != nil {
		return nil, err
	}
	// The parser panics on some malformed cross-reference tables.
	defer func() {
		if r := recover(); r != nil {
			Logger.Error("Panic recovered while inspecting PDF", "panic", r)
			info = nil
			err = documentError(fmt.Errorf("malformed PDF: %v", r))
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, documentError(fmt.Errorf("failed to create PDF reader: %w", err))
	}

	totalPages := reader.NumPage()
	info = &DocumentInfo{PageCount: totalPages, DPI: dpi, Pages: make([]PageInfo, 0, totalPages)}
	for pageNum := 1; pageNum <= totalPages; pageNum++ {
		page := reader.Page(pageNum)
		if page.V.IsNull() {
			return nil, pageError(pageNum-1, errors.New("page object is missing"))
		}
		size, err := pageSize(page.V)
		if err != nil {
			return nil, pageError(pageNum-1, err)
		}
		widthPx, heightPx := PixelSize(size, dpi)
		info.Pages = append(info.Pages, PageInfo{
			Index:    pageNum - 1,
			PageSize: size,
			WidthPx:  widthPx,
			HeightPx: heightPx,
		})
	}
	return info, nil
}

// pageSize returns the visible size of a page dictionary: its CropBox
// clipped to the MediaBox, or the MediaBox when there is no usable CropBox.
// Both boxes are inherited from the page tree. Width and height are swapped
// for pages rotated by a quarter turn.
func pageSize(page pdf.Value) (PageSize, error) {
	box, ok := rectangle(inherited(page, "MediaBox"))
	if !ok {
		return PageSize{}, errors.New("page has no valid MediaBox")
	}
	if crop, ok := rectangle(inherited(page, "CropBox")); ok {
		if visible := crop.intersect(box); visible.x1 > visible.x0 && visible.y1 > visible.y0 {
			box = visible
		}
	}
	size := PageSize{Width: box.x1 - box.x0, Height: box.y1 - box.y0}
	if rotate := inherited(page, "Rotate").Int64(); rotate%180 != 0 {
		size.Width, size.Height = size.Height, size.Width
	}
	return size, nil
}

// pageBox is a normalized PDF rectangle in points.
type pageBox struct {
	x0, y0, x1, y1 float64
}

func rectangle(v pdf.Value) (pageBox, bool) {
	if v.Kind() != pdf.Array || v.Len() != 4 {
		return pageBox{}, false
	}
	ax, ay := v.Index(0).Float64(), v.Index(1).Float64()
	bx, by := v.Index(2).Float64(), v.Index(3).Float64()
	return pageBox{
		x0: math.Min(ax, bx), y0: math.Min(ay, by),
		x1: math.Max(ax, bx), y1: math.Max(ay, by),
	}, true
}

func (b pageBox) intersect(o pageBox) pageBox {
	return pageBox{
		x0: math.Max(b.x0, o.x0), y0: math.Max(b.y0, o.y0),
		x1: math.Min(b.x1, o.x1), y1: math.Min(b.y1, o.y1),
	}
}

func inherited(v pdf.Value, key string) pdf.Value {
	for depth := 0; depth < maxTreeDepth && !v.IsNull(); depth++ {
		if value := v.Key(key); !value.IsNull() {
			return value
		}
		v = v.Key("Parent")
	}
	return pdf.Value{}
}
