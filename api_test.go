package main

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/labstack/echo/v4"

	config "github.com/drummonds/pagecrop/config"
	"github.com/drummonds/pagecrop/engine/pdfrenderer"
	"github.com/drummonds/pagecrop/internal/samplepdf"
)

func TestMain(m *testing.M) {
	injectGlobals(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelWarn})))
	os.Exit(m.Run())
}

var testServerConfig = config.ServerConfig{
	DefaultDPI:       72,
	MaxDPI:           600,
	DefaultThreshold: 240,
	DefaultQuality:   85,
	PageErrorPolicy:  config.PageErrorFail,
	MaxUploadSize:    256 << 10,
	FetchTimeout:     5 * time.Second,
}

// setupTestServer creates a test server backed by a real PDFium renderer
func setupTestServer(t *testing.T) *echo.Echo {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping renderer test in short mode")
	}
	renderer, err := pdfrenderer.NewPDFiumRenderer(2)
	if err != nil {
		t.Fatalf("Failed to start PDFium renderer: %v", err)
	}
	t.Cleanup(func() { renderer.Close() })

	e, serverHandler := newServer(testServerConfig, renderer)
	if err := serverHandler.StartupChecks(); err != nil {
		t.Fatalf("StartupChecks failed: %v", err)
	}
	return e
}

// stubRenderer is enough for routes that never render.
type stubRenderer struct{}

func (stubRenderer) Name() string { return "stub" }
func (stubRenderer) Open([]byte) (pdfrenderer.Document, error) {
	return nil, &pdfrenderer.DecodeError{Page: -1, Err: errors.New("stub renderer")}
}
func (stubRenderer) Close() error { return nil }

func uploadRequest(t *testing.T, pdf []byte) *http.Request {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", "doc.pdf")
	if err != nil {
		t.Fatal(err)
	}
	part.Write(pdf)
	writer.Close()
	req := httptest.NewRequest(http.MethodPost, "/api/upload-pdf", body)
	req.Header.Set(echo.HeaderContentType, writer.FormDataContentType())
	return req
}

func TestUnknownAPIRouteIsJSON(t *testing.T) {
	e, _ := newServer(testServerConfig, stubRenderer{})

	req := httptest.NewRequest(http.MethodGet, "/api/nothing-here", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status %d, want 404", rec.Code)
	}
	if ct := rec.Header().Get(echo.HeaderContentType); !strings.HasPrefix(ct, echo.MIMEApplicationJSON) {
		t.Errorf("Content-Type = %q", ct)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}
	if body["path"] != "/api/nothing-here" {
		t.Errorf("body = %v", body)
	}
}

func TestRequestIDHeader(t *testing.T) {
	e, _ := newServer(testServerConfig, stubRenderer{})
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if id := rec.Header().Get(echo.HeaderXRequestID); len(id) != 26 {
		t.Errorf("X-Request-Id = %q, want a ULID", id)
	}
}

func TestBodyLimit(t *testing.T) {
	e, _ := newServer(testServerConfig, stubRenderer{})
	pdf := append([]byte("%PDF-1.4\n"), bytes.Repeat([]byte("0"), int(testServerConfig.MaxUploadSize)+2*multipartOverhead)...)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, uploadRequest(t, pdf))
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("status %d, want 413", rec.Code)
	}
}

func TestUploadPDFEndToEnd(t *testing.T) {
	e := setupTestServer(t)

	pdf := samplepdf.Build(
		samplepdf.Letter,
		samplepdf.Page{Width: 144, Height: 144, Rects: []samplepdf.Rect{{X: 36, Y: 36, W: 72, H: 72}}},
	)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, uploadRequest(t, pdf))
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d, body %s", rec.Code, rec.Body.String())
	}

	var response struct {
		ID            string   `json:"id"`
		CroppedImages []string `json:"cropped_images"`
		Pages         []struct {
			Width  int `json:"width"`
			Height int `json:"height"`
		} `json:"pages"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &response); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}
	if len(response.CroppedImages) != 2 {
		t.Fatalf("got %d images, want 2", len(response.CroppedImages))
	}
	if w, h := response.Pages[0].Width, response.Pages[0].Height; w != 612 || h != 792 {
		t.Errorf("blank page is %dx%d, want the full 612x792", w, h)
	}
	if w, h := response.Pages[1].Width, response.Pages[1].Height; w < 71 || w > 73 || h < 71 || h > 73 {
		t.Errorf("square page is %dx%d, want about 72x72", w, h)
	}
}

func TestConcurrentUploads(t *testing.T) {
	e := setupTestServer(t)
	pdf := samplepdf.Build(samplepdf.Letter, samplepdf.Letter)

	concurrency := 6
	errs := make(chan error, concurrency)
	for i := 0; i < concurrency; i++ {
		req := uploadRequest(t, pdf)
		go func(id int) {
			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, req)
			if rec.Code != http.StatusOK {
				errs <- fmt.Errorf("concurrent request %d failed with status %d", id, rec.Code)
				return
			}
			errs <- nil
		}(i)
	}
	for i := 0; i < concurrency; i++ {
		if err := <-errs; err != nil {
			t.Error(err)
		}
	}
}

func TestIsAddressInUse(t *testing.T) {
	if isAddressInUse(nil) {
		t.Error("nil error reported as address in use")
	}
	if !isAddressInUse(errors.New("listen tcp :8000: bind: address already in use")) {
		t.Error("bind error not recognised")
	}
	if nextPort("8000") != "8001" || nextPort("abc") != "abc" {
		t.Error("nextPort")
	}
}
