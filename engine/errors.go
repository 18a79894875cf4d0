package engine

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/drummonds/pagecrop/engine/pdfrenderer"
)

// InputError is a client mistake in the request itself: a missing file or a
// numeric field out of range.
type InputError struct {
	Field   string
	Message string
}

func (e *InputError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// FetchError reports a remote PDF that could not be downloaded. StatusCode is
// zero when no response was received.
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("failed to fetch %s: status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("failed to fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// errorStatus maps pipeline errors onto HTTP status codes.
func errorStatus(err error) int {
	var inputErr *InputError
	var fetchErr *FetchError
	var decodeErr *pdfrenderer.DecodeError
	switch {
	case errors.As(err, &inputErr), errors.As(err, &fetchErr):
		return http.StatusBadRequest
	case errors.As(err, &decodeErr):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
