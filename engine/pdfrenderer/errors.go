package pdfrenderer

import (
	"bytes"
	"errors"
	"fmt"
)

var (
	// ErrEmptyInput is wrapped by the DecodeError returned for zero-length input.
	ErrEmptyInput = errors.New("empty PDF input")
	// ErrNotPDF is wrapped by the DecodeError returned when the %PDF- header is missing.
	ErrNotPDF = errors.New("input is not a PDF document")
)

// headerWindow is how far into the file the %PDF- marker may appear. Readers
// tolerate leading garbage up to this offset.
const headerWindow = 1024

// DecodeError reports bytes that cannot be read as a PDF, or a page that
// cannot be rendered. Page is the zero-based page index, or -1 when the
// document as a whole failed.
type DecodeError struct {
	Page int
	Err  error
}

func (e *DecodeError) Error() string {
	if e.Page < 0 {
		return fmt.Sprintf("unable to decode PDF: %v", e.Err)
	}
	return fmt.Sprintf("unable to render page %d: %v", e.Page+1, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

func documentError(err error) error {
	return &DecodeError{Page: -1, Err: err}
}

func pageError(page int, err error) error {
	return &DecodeError{Page: page, Err: err}
}

// checkInput rejects input no backend should be asked to open. MuPDF in
// particular sniffs the content type and would happily open a PNG.
func checkInput(pdf []byte) error {
	if len(pdf) == 0 {
		return documentError(ErrEmptyInput)
	}
	head := pdf[:min(len(pdf), headerWindow)]
	if !bytes.Contains(head, []byte("%PDF-")) {
		return documentError(ErrNotPDF)
	}
	return nil
}
