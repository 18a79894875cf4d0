package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/oklog/ulid/v2"

	config "github.com/drummonds/pagecrop/config"
	engine "github.com/drummonds/pagecrop/engine"
	"github.com/drummonds/pagecrop/engine/pdfrenderer"
)

// multipartOverhead is allowed on top of MaxUploadSize for form boundaries
// and the small dpi/threshold/quality fields.
const multipartOverhead = 64 << 10

// Logger is global since we will need it everywhere
var Logger *slog.Logger

// injectGlobals injects all of our globals into their packages
func injectGlobals(logger *slog.Logger) {
	Logger = logger
	config.Logger = Logger
	engine.Logger = Logger
	pdfrenderer.Logger = Logger
}

func main() {
	serverConfig, logger := config.SetupServer()
	injectGlobals(logger) //inject the logger into all of the packages

	Logger.Info("Starting renderer", "renderer", serverConfig.Renderer, "workers", serverConfig.RenderWorkers)
	renderer, err := pdfrenderer.NewRenderer(serverConfig.Renderer, serverConfig.RenderWorkers)
	if err != nil {
		Logger.Error("Failed to start renderer", "renderer", serverConfig.Renderer, "error", err)
		os.Exit(1)
	}
	defer renderer.Close()

	e, serverHandler := newServer(serverConfig, renderer)
	Logger.Info("Echo created")

	if err := serverHandler.StartupChecks(); err != nil { //Run all the sanity checks
		Logger.Error("Startup checks failed, refusing to serve", "error", err)
		os.Exit(1)
	}
	Logger.Info("Startup checks complete")

	scheduler, err := serverHandler.InitializeSchedules() //initialize all the cron jobs
	if err != nil {
		Logger.Error("Failed to initialize schedules", "error", err)
		os.Exit(1)
	}
	if scheduler != nil {
		defer scheduler.Stop()
	}

	if serverConfig.ListenAddrIP == "" {
		Logger.Info("No Ip Addr set, binding on ALL addresses")
	}

	Logger.Info("Starting HTTP server")

	// Try to start server with automatic port increment if port is in use
	maxRetries := 5
	startPort := serverConfig.ListenAddrPort
	var startErr error

	for attempt := 0; attempt < maxRetries; attempt++ {
		addr := fmt.Sprintf("%s:%s", serverConfig.ListenAddrIP, serverConfig.ListenAddrPort)
		Logger.Info("Attempting to start server", "address", addr, "attempt", attempt+1)

		startErr = e.Start(addr)

		// Check if error is "address already in use"
		if startErr != nil && isAddressInUse(startErr) {
			Logger.Warn("Port already in use, trying next port",
				"port", serverConfig.ListenAddrPort,
				"attempt", attempt+1,
				"max_attempts", maxRetries)

			serverConfig.ListenAddrPort = nextPort(serverConfig.ListenAddrPort)

			if attempt == maxRetries-1 {
				Logger.Error("Failed to find available port after maximum retries",
					"start_port", startPort,
					"end_port", serverConfig.ListenAddrPort,
					"max_retries", maxRetries)
				os.Exit(1)
			}
		} else if startErr != nil && startErr != http.ErrServerClosed {
			Logger.Error("Failed to start server", "error", startErr)
			os.Exit(1)
		} else {
			break
		}
	}

	if serverConfig.ListenAddrPort != startPort {
		Logger.Warn("Server started on alternative port due to conflicts",
			"requested_port", startPort,
			"actual_port", serverConfig.ListenAddrPort)
	}
}

// newServer builds the echo instance with middleware, error handling and
// every route registered.
func newServer(serverConfig config.ServerConfig, renderer pdfrenderer.Renderer) (*echo.Echo, *engine.ServerHandler) {
	e := echo.New()
	e.HideBanner = true
	e.JSONSerializer = engine.JSONSerializer{}

	// Custom error handler, every error is JSON
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}
		code := http.StatusInternalServerError
		message := http.StatusText(code)
		if he, ok := err.(*echo.HTTPError); ok {
			code = he.Code
			message = fmt.Sprint(he.Message)
		}

		if code == http.StatusNotFound && strings.HasPrefix(c.Request().URL.Path, "/api/") {
			c.JSON(http.StatusNotFound, map[string]string{
				"error":   "Not Found",
				"message": "The requested API endpoint does not exist",
				"path":    c.Request().URL.Path,
			})
			return
		}
		if code >= http.StatusInternalServerError {
			Logger.Error("Unhandled error", "path", c.Request().URL.Path, "error", err)
		}
		c.JSON(code, map[string]string{"error": message})
	}

	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: func() string { return ulid.Make().String() },
	}))
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			Logger.Info("Request handled",
				"method", v.Method,
				"uri", v.URI,
				"status", v.Status,
				"latency", v.Latency,
				"request_id", v.RequestID)
			return nil
		},
	}))
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.DefaultCORSConfig))
	if serverConfig.MaxUploadSize > 0 {
		e.Use(middleware.BodyLimit(strconv.FormatInt(serverConfig.MaxUploadSize+multipartOverhead, 10)))
	}

	serverHandler := engine.NewServerHandler(e, serverConfig, renderer)
	serverHandler.RegisterRoutes()
	return e, serverHandler
}

func nextPort(port string) string {
	portNum, err := strconv.Atoi(port)
	if err != nil {
		return port
	}
	return strconv.Itoa(portNum + 1)
}

// isAddressInUse checks if the error is due to address already in use
func isAddressInUse(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "address already in use")
}
