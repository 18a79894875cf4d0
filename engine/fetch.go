package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

// ErrTooLarge is wrapped by the FetchError for documents over the size limit.
var ErrTooLarge = errors.New("document exceeds size limit")

// Fetcher downloads remote PDFs.
type Fetcher struct {
	Client   *http.Client
	MaxBytes int64 // 0 means unlimited
}

// NewFetcher creates a Fetcher whose requests give up after timeout.
func NewFetcher(timeout time.Duration, maxBytes int64) *Fetcher {
	return &Fetcher{
		Client:   &http.Client{Timeout: timeout},
		MaxBytes: maxBytes,
	}
}

// Fetch GETs rawURL and returns the body. Only http and https URLs are
// accepted; anything else is an InputError. Transport failures, non-2xx
// responses and oversized bodies are FetchErrors.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	rawURL = strings.TrimSpace(rawURL)
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, &InputError{Field: "url", Message: fmt.Sprintf("%q is not an http or https URL", rawURL)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, &FetchError{URL: rawURL, Err: err}
	}
	req.Header.Set("Accept", "application/pdf")

	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, &FetchError{URL: rawURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &FetchError{URL: rawURL, StatusCode: resp.StatusCode, Err: fmt.Errorf("unexpected status %s", resp.Status)}
	}

	body := io.Reader(resp.Body)
	if f.MaxBytes > 0 {
		if resp.ContentLength > f.MaxBytes {
			return nil, f.tooLarge(rawURL)
		}
		body = io.LimitReader(resp.Body, f.MaxBytes+1)
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, &FetchError{URL: rawURL, Err: fmt.Errorf("failed to read body: %w", err)}
	}
	if f.MaxBytes > 0 && int64(len(data)) > f.MaxBytes {
		return nil, f.tooLarge(rawURL)
	}

	Logger.Debug("Fetched remote PDF", "url", rawURL, "size", humanize.Bytes(uint64(len(data))))
	return data, nil
}

func (f *Fetcher) tooLarge(rawURL string) error {
	return &FetchError{
		URL: rawURL,
		Err: fmt.Errorf("%w of %s", ErrTooLarge, humanize.Bytes(uint64(f.MaxBytes))),
	}
}
