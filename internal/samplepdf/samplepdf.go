// Package samplepdf writes small, valid PDF files with known page geometry.
// The startup self-check and the tests render these documents and compare the
// result against the geometry they were built from.
package samplepdf

import (
	"bytes"
	"fmt"
	"strconv"
)

// Rect is a filled rectangle in PDF user space (points, origin bottom-left).
// Gray is the fill level, 0 is black and 1 is white.
type Rect struct {
	X, Y, W, H float64
	Gray       float64
}

// Page describes one page. A page with zero Width or Height inherits the
// document default size from the page tree instead of carrying a MediaBox.
// CropBox, when set, limits the visible area; its Gray is ignored.
type Page struct {
	Width, Height float64
	Rotate        int
	CropBox       *Rect
	Rects         []Rect
}

// Letter is the US Letter page size in points.
var Letter = Page{Width: 612, Height: 792}

// Build returns a PDF containing pages in order.
func Build(pages ...Page) []byte {
	return build(nil, pages)
}

// BuildInherited returns a PDF whose page tree carries a default MediaBox of
// width x height that pages without their own size inherit.
func BuildInherited(width, height float64, pages ...Page) []byte {
	return build(&[2]float64{width, height}, pages)
}

func build(defaultSize *[2]float64, pages []Page) []byte {
	var buf bytes.Buffer
	offsets := []int{0} // object 0 is the free-list head

	startObject := func(num int) {
		for len(offsets) <= num {
			offsets = append(offsets, 0)
		}
		offsets[num] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n", num)
	}

	buf.WriteString("%PDF-1.4\n%\xe2\xe3\xcf\xd3\n")

	startObject(1)
	buf.WriteString("<< /Type /Catalog /Pages 2 0 R >>\nendobj\n")

	startObject(2)
	buf.WriteString("<< /Type /Pages /Kids [")
	for i := range pages {
		fmt.Fprintf(&buf, " %d 0 R", pageObject(i))
	}
	fmt.Fprintf(&buf, " ] /Count %d", len(pages))
	if defaultSize != nil {
		fmt.Fprintf(&buf, " /MediaBox %s", box(defaultSize[0], defaultSize[1]))
	}
	buf.WriteString(" >>\nendobj\n")

	for i, page := range pages {
		content := contentStream(page)

		startObject(pageObject(i))
		buf.WriteString("<< /Type /Page /Parent 2 0 R")
		if page.Width > 0 && page.Height > 0 {
			fmt.Fprintf(&buf, " /MediaBox %s", box(page.Width, page.Height))
		}
		if c := page.CropBox; c != nil {
			fmt.Fprintf(&buf, " /CropBox [%s %s %s %s]", num(c.X), num(c.Y), num(c.X+c.W), num(c.Y+c.H))
		}
		if page.Rotate != 0 {
			fmt.Fprintf(&buf, " /Rotate %d", page.Rotate)
		}
		fmt.Fprintf(&buf, " /Resources << >> /Contents %d 0 R >>\nendobj\n", pageObject(i)+1)

		startObject(pageObject(i) + 1)
		fmt.Fprintf(&buf, "<< /Length %d >>\nstream\n", len(content))
		buf.Write(content)
		buf.WriteString("\nendstream\nendobj\n")
	}

	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(offsets))
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets[1:] {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(offsets), xref)
	return buf.Bytes()
}

// pageObject is the object number of the i-th page; its content stream
// follows it directly.
func pageObject(i int) int {
	return 3 + 2*i
}

func contentStream(page Page) []byte {
	var buf bytes.Buffer
	for _, r := range page.Rects {
		fmt.Fprintf(&buf, "%s g %s %s %s %s re f\n", num(r.Gray), num(r.X), num(r.Y), num(r.W), num(r.H))
	}
	return buf.Bytes()
}

func box(width, height float64) string {
	return "[0 0 " + num(width) + " " + num(height) + "]"
}

func num(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
