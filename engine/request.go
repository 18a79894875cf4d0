package engine

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/drummonds/pagecrop/config"
)

// ConversionRequest holds the knobs of one conversion.
type ConversionRequest struct {
	DPI       int
	Threshold int
	Quality   int
}

// DefaultRequest returns the request used when the caller sets nothing.
func DefaultRequest(serverConfig config.ServerConfig) ConversionRequest {
	return ConversionRequest{
		DPI:       serverConfig.DefaultDPI,
		Threshold: serverConfig.DefaultThreshold,
		Quality:   serverConfig.DefaultQuality,
	}
}

// Validate checks every field, capping DPI at maxDPI.
func (r ConversionRequest) Validate(maxDPI int) error {
	if r.DPI <= 0 {
		return &InputError{Field: "dpi", Message: fmt.Sprintf("must be positive, got %d", r.DPI)}
	}
	if maxDPI > 0 && r.DPI > maxDPI {
		return &InputError{Field: "dpi", Message: fmt.Sprintf("must be at most %d, got %d", maxDPI, r.DPI)}
	}
	if r.Threshold < 0 || r.Threshold > 255 {
		return &InputError{Field: "threshold", Message: fmt.Sprintf("must be between 0 and 255, got %d", r.Threshold)}
	}
	if r.Quality < 0 || r.Quality > 100 {
		return &InputError{Field: "quality", Message: fmt.Sprintf("must be between 0 and 100, got %d", r.Quality)}
	}
	return nil
}

// convertPayload is the JSON body of POST /api/convert. Pointers tell an
// omitted field apart from an explicit zero.
type convertPayload struct {
	URL       string `json:"url"`
	DPI       *int   `json:"dpi"`
	Threshold *int   `json:"threshold"`
	Quality   *int   `json:"quality"`
}

func (p convertPayload) request(defaults ConversionRequest) ConversionRequest {
	req := defaults
	if p.DPI != nil {
		req.DPI = *p.DPI
	}
	if p.Threshold != nil {
		req.Threshold = *p.Threshold
	}
	if p.Quality != nil {
		req.Quality = *p.Quality
	}
	return req
}

// formRequest overrides defaults with any dpi, threshold or quality form
// field. formValue is usually echo.Context.FormValue.
func formRequest(formValue func(string) string, defaults ConversionRequest) (ConversionRequest, error) {
	req := defaults
	fields := []struct {
		name  string
		value *int
	}{
		{"dpi", &req.DPI},
		{"threshold", &req.Threshold},
		{"quality", &req.Quality},
	}
	for _, field := range fields {
		raw := strings.TrimSpace(formValue(field.name))
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil {
			return req, &InputError{Field: field.name, Message: fmt.Sprintf("%q is not an integer", raw)}
		}
		*field.value = n
	}
	return req, nil
}
