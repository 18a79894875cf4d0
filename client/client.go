// Package client calls a running pagecrop server.
package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/drummonds/pagecrop/internal/datauri"
)

// Options overrides the server defaults for one conversion. Zero fields are
// left for the server to fill in. Threshold is only sent when SetThreshold
// is true, and a zero Quality only when SetQuality is true.
type Options struct {
	DPI          int
	Threshold    int
	SetThreshold bool
	Quality      int
	SetQuality   bool
}

// Region is the crop applied to a page, in source pixels.
type Region struct {
	X0 int `json:"x0"`
	Y0 int `json:"y0"`
	X1 int `json:"x1"`
	Y1 int `json:"y1"`
}

// Page describes one converted page.
type Page struct {
	Index        int    `json:"index"`
	SourceWidth  int    `json:"source_width"`
	SourceHeight int    `json:"source_height"`
	Width        int    `json:"width"`
	Height       int    `json:"height"`
	Crop         Region `json:"crop"`
	Bytes        int    `json:"bytes"`
	Error        string `json:"error,omitempty"`
}

// ConversionResponse is the body of a successful conversion.
type ConversionResponse struct {
	ID            string   `json:"id"`
	CroppedImages []string `json:"cropped_images"`
	Pages         []Page   `json:"pages"`
}

// Images decodes every data URI in CroppedImages into JPEG bytes.
func (r *ConversionResponse) Images() ([][]byte, error) {
	images := make([][]byte, 0, len(r.CroppedImages))
	for i, uri := range r.CroppedImages {
		_, data, err := datauri.Decode(uri)
		if err != nil {
			return nil, fmt.Errorf("image %d: %w", i+1, err)
		}
		images = append(images, data)
	}
	return images, nil
}

// PageImage is the JPEG produced for one page. Index is zero-based.
type PageImage struct {
	Index int
	JPEG  []byte
}

// PageImages pairs each entry of CroppedImages with the page it came from.
// Pages skipped after a render error have no image, so when there are fewer
// images than pages only the pages without an error are paired.
func (r *ConversionResponse) PageImages() ([]PageImage, error) {
	images, err := r.Images()
	if err != nil {
		return nil, err
	}
	all := len(images) == len(r.Pages)
	paired := make([]PageImage, 0, len(images))
	next := 0
	for _, page := range r.Pages {
		if !all && page.Error != "" {
			continue
		}
		if next >= len(images) {
			return nil, fmt.Errorf("page %d has no image: %d images for %d pages", page.Index+1, len(images), len(r.Pages))
		}
		paired = append(paired, PageImage{Index: page.Index, JPEG: images[next]})
		next++
	}
	if next != len(images) {
		return nil, fmt.Errorf("%d images for %d rendered pages", len(images), next)
	}
	return paired, nil
}

// HealthResponse is the body of GET /api/health.
type HealthResponse struct {
	Status    string `json:"status"`
	Service   string `json:"service"`
	Renderer  string `json:"renderer"`
	LastCheck string `json:"last_check,omitempty"`
	Error     string `json:"error,omitempty"`
}

// APIError is a non-2xx response from the server.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("server returned status %d: %s", e.StatusCode, e.Message)
}

// Client talks to one pagecrop server.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

// New creates a client for the server at baseURL
func New(baseURL string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{
			Timeout: 120 * time.Second,
		},
	}
}

// ConvertFile uploads the PDF at path and returns the cropped pages.
func (c *Client) ConvertFile(ctx context.Context, path string, opts Options) (*ConversionResponse, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF file: %w", err)
	}
	defer file.Close()
	return c.Convert(ctx, filepath.Base(path), file, opts)
}

// Convert uploads a PDF read from r under filename.
func (c *Client) Convert(ctx context.Context, filename string, r io.Reader, opts Options) (*ConversionResponse, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := io.Copy(part, r); err != nil {
		return nil, fmt.Errorf("failed to copy file data: %w", err)
	}
	for key, value := range opts.fields() {
		if err := writer.WriteField(key, value); err != nil {
			return nil, fmt.Errorf("failed to write field %s: %w", key, err)
		}
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to close writer: %w", err)
	}

	var response ConversionResponse
	if err := c.do(ctx, http.MethodPost, "/api/upload-pdf", writer.FormDataContentType(), body, &response); err != nil {
		return nil, err
	}
	return &response, nil
}

// ConvertURL asks the server to fetch and convert the PDF at pdfURL.
func (c *Client) ConvertURL(ctx context.Context, pdfURL string, opts Options) (*ConversionResponse, error) {
	payload := map[string]interface{}{"url": pdfURL}
	if opts.DPI > 0 {
		payload["dpi"] = opts.DPI
	}
	if opts.SetThreshold {
		payload["threshold"] = opts.Threshold
	}
	if opts.SetQuality || opts.Quality > 0 {
		payload["quality"] = opts.Quality
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	var response ConversionResponse
	if err := c.do(ctx, http.MethodPost, "/api/convert", "application/json", bytes.NewReader(body), &response); err != nil {
		return nil, err
	}
	return &response, nil
}

// Health returns the server health. A degraded server answers 503, which is
// reported as an *APIError.
func (c *Client) Health(ctx context.Context) (*HealthResponse, error) {
	var response HealthResponse
	if err := c.do(ctx, http.MethodGet, "/api/health", "", nil, &response); err != nil {
		return nil, err
	}
	return &response, nil
}

func (c *Client) do(ctx context.Context, method, path, contentType string, body io.Reader, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to call pagecrop server: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		var errResp struct {
			Error string `json:"error"`
		}
		message := strings.TrimSpace(string(bodyBytes))
		if json.Unmarshal(bodyBytes, &errResp) == nil && errResp.Error != "" {
			message = errResp.Error
		}
		return &APIError{StatusCode: resp.StatusCode, Message: message}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func (o Options) fields() map[string]string {
	fields := map[string]string{}
	if o.DPI > 0 {
		fields["dpi"] = strconv.Itoa(o.DPI)
	}
	if o.SetThreshold {
		fields["threshold"] = strconv.Itoa(o.Threshold)
	}
	if o.SetQuality || o.Quality > 0 {
		fields["quality"] = strconv.Itoa(o.Quality)
	}
	return fields
}
