package engine

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/httprate"
	"github.com/goccy/go-json"
	"github.com/labstack/echo/v4"

	"github.com/drummonds/pagecrop/config"
	"github.com/drummonds/pagecrop/engine/pdfrenderer"
)

// ServerHandler will inject the variables needed into routes
type ServerHandler struct {
	Echo         *echo.Echo
	ServerConfig config.ServerConfig
	Renderer     pdfrenderer.Renderer
	Converter    *Converter
	Fetcher      *Fetcher
	health       healthState
}

// NewServerHandler wires a converter and fetcher around renderer.
func NewServerHandler(e *echo.Echo, serverConfig config.ServerConfig, renderer pdfrenderer.Renderer) *ServerHandler {
	return &ServerHandler{
		Echo:         e,
		ServerConfig: serverConfig,
		Renderer:     renderer,
		Converter: &Converter{
			Renderer: renderer,
			Policy:   serverConfig.PageErrorPolicy,
			MaxDPI:   serverConfig.MaxDPI,
		},
		Fetcher: NewFetcher(serverConfig.FetchTimeout, serverConfig.MaxUploadSize),
	}
}

// conversionResponse is the body returned by the conversion routes.
// cropped_images holds one data URI per rendered page, in page order.
type conversionResponse struct {
	ID            string       `json:"id"`
	CroppedImages []string     `json:"cropped_images"`
	Pages         []PageResult `json:"pages"`
}

// RegisterRoutes adds every route to the echo instance. Conversion routes
// are rate limited per client IP when RateLimit is set.
func (serverHandler *ServerHandler) RegisterRoutes() {
	e := serverHandler.Echo
	var limited []echo.MiddlewareFunc
	if serverHandler.ServerConfig.RateLimit > 0 {
		limited = append(limited, echo.WrapMiddleware(httprate.LimitByIP(serverHandler.ServerConfig.RateLimit, time.Minute)))
	}

	e.GET("/", serverHandler.Index)
	e.GET("/api/health", serverHandler.Health)

	e.POST("/api/upload-pdf", serverHandler.UploadPDF, limited...)
	e.POST("/upload-pdf", serverHandler.UploadPDF, limited...) // path of the first release
	e.POST("/api/convert", serverHandler.ConvertURL, limited...)
	e.POST("/api/inspect", serverHandler.InspectPDF, limited...)
}

// Index reports that the service is up
func (serverHandler *ServerHandler) Index(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status":  "online",
		"message": "PDF to image conversion API is running. POST a PDF to /api/upload-pdf.",
	})
}

// Health reports the renderer backend and the outcome of the last self-check
func (serverHandler *ServerHandler) Health(c echo.Context) error {
	lastCheck, lastErr := serverHandler.health.get()
	body := map[string]interface{}{
		"status":   "healthy",
		"service":  "pagecrop",
		"renderer": serverHandler.Renderer.Name(),
	}
	if !lastCheck.IsZero() {
		body["last_check"] = lastCheck.UTC().Format(time.RFC3339)
	}
	if lastErr != nil {
		body["status"] = "degraded"
		body["error"] = lastErr.Error()
		return c.JSON(http.StatusServiceUnavailable, body)
	}
	return c.JSON(http.StatusOK, body)
}

// UploadPDF converts a PDF sent as the multipart field "file", or fetched
// from the form field "url", into cropped page images.
func (serverHandler *ServerHandler) UploadPDF(c echo.Context) error {
	req, err := formRequest(c.FormValue, DefaultRequest(serverHandler.ServerConfig))
	if err != nil {
		return errorResponse(c, err)
	}
	if err := req.Validate(serverHandler.ServerConfig.MaxDPI); err != nil {
		return errorResponse(c, err)
	}
	pdf, err := serverHandler.readPDF(c)
	if err != nil {
		return errorResponse(c, err)
	}
	return serverHandler.convert(c, pdf, req)
}

// ConvertURL converts the PDF at the "url" of a JSON body.
func (serverHandler *ServerHandler) ConvertURL(c echo.Context) error {
	var payload convertPayload
	if err := json.NewDecoder(c.Request().Body).Decode(&payload); err != nil {
		return errorResponse(c, &InputError{Field: "body", Message: err.Error()})
	}
	if payload.URL == "" {
		return errorResponse(c, &InputError{Field: "url", Message: "is required"})
	}
	req := payload.request(DefaultRequest(serverHandler.ServerConfig))
	if err := req.Validate(serverHandler.ServerConfig.MaxDPI); err != nil {
		return errorResponse(c, err)
	}
	pdf, err := serverHandler.Fetcher.Fetch(c.Request().Context(), payload.URL)
	if err != nil {
		return errorResponse(c, err)
	}
	return serverHandler.convert(c, pdf, req)
}

// InspectPDF returns the page count and page sizes of a PDF without
// rendering it.
func (serverHandler *ServerHandler) InspectPDF(c echo.Context) error {
	req, err := formRequest(c.FormValue, DefaultRequest(serverHandler.ServerConfig))
	if err != nil {
		return errorResponse(c, err)
	}
	if err := req.Validate(serverHandler.ServerConfig.MaxDPI); err != nil {
		return errorResponse(c, err)
	}
	pdf, err := serverHandler.readPDF(c)
	if err != nil {
		return errorResponse(c, err)
	}
	info, err := pdfrenderer.Inspect(pdf, req.DPI)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, info)
}

func (serverHandler *ServerHandler) convert(c echo.Context, pdf []byte, req ConversionRequest) error {
	result, err := serverHandler.Converter.Convert(pdf, req)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, conversionResponse{
		ID:            result.ID,
		CroppedImages: result.DataURIs(),
		Pages:         result.Pages,
	})
}

// readPDF returns the uploaded file, or downloads the url form field when no
// file was sent.
func (serverHandler *ServerHandler) readPDF(c echo.Context) ([]byte, error) {
	fileHeader, err := c.FormFile("file")
	switch {
	case err == nil:
		maxSize := serverHandler.ServerConfig.MaxUploadSize
		if maxSize > 0 && fileHeader.Size > maxSize {
			return nil, &InputError{Field: "file", Message: fmt.Sprintf("larger than the %d byte limit", maxSize)}
		}
		file, err := fileHeader.Open()
		if err != nil {
			return nil, fmt.Errorf("failed to open upload: %w", err)
		}
		defer file.Close()
		data, err := io.ReadAll(file)
		if err != nil {
			return nil, fmt.Errorf("failed to read upload: %w", err)
		}
		Logger.Debug("Received PDF upload", "filename", fileHeader.Filename, "size", len(data))
		return data, nil
	case errors.Is(err, http.ErrMissingFile), errors.Is(err, http.ErrNotMultipart):
	default:
		return nil, &InputError{Field: "file", Message: err.Error()}
	}

	if rawURL := c.FormValue("url"); rawURL != "" {
		return serverHandler.Fetcher.Fetch(c.Request().Context(), rawURL)
	}
	return nil, &InputError{Message: "no file was sent: provide a PDF in the \"file\" field or a \"url\""}
}

func errorResponse(c echo.Context, err error) error {
	status := errorStatus(err)
	if status >= http.StatusInternalServerError {
		Logger.Error("Conversion failed", "path", c.Path(), "error", err)
	} else {
		Logger.Info("Request rejected", "path", c.Path(), "status", status, "error", err)
	}
	return c.JSON(status, map[string]string{"error": err.Error()})
}
