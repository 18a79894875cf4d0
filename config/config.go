package config

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/joho/godotenv"
)

// Logger is global since we will need it everywhere
var Logger *slog.Logger

// Page error policies accepted in PAGE_ERROR_POLICY.
const (
	PageErrorFail        = "fail"
	PageErrorSkip        = "skip"
	PageErrorPlaceholder = "placeholder"
)

// ServerConfig contains all of the server settings
type ServerConfig struct {
	ListenAddrIP   string
	ListenAddrPort string

	Renderer      string // pdfium or fitz
	RenderWorkers int    // concurrent documents for the pdfium pool

	DefaultDPI       int
	MaxDPI           int
	DefaultThreshold int
	DefaultQuality   int
	PageErrorPolicy  string

	MaxUploadSize     int64 // bytes, applies to uploads and fetched documents
	FetchTimeout      time.Duration
	RateLimit         int // conversion requests per minute per client IP, 0 disables
	SelfCheckInterval int // minutes between renderer self-checks, 0 disables
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool gets a boolean environment variable with a default value
func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	boolVal, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}
	return boolVal
}

// getEnvInt gets an integer environment variable with a default value
func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	intVal, err := strconv.Atoi(value)
	if err != nil {
		logWarn("Invalid integer in environment, using default", "key", key, "value", value, "default", defaultValue)
		return defaultValue
	}
	return intVal
}

// getEnvIntRange is getEnvInt limited to [low, high]
func getEnvIntRange(key string, defaultValue, low, high int) int {
	intVal := getEnvInt(key, defaultValue)
	if intVal < low || intVal > high {
		logWarn("Value out of range, using default", "key", key, "value", intVal, "min", low, "max", high, "default", defaultValue)
		return defaultValue
	}
	return intVal
}

// getEnvDuration parses values such as "30s" or "2m"
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		logWarn("Invalid duration in environment, using default", "key", key, "value", value, "default", defaultValue)
		return defaultValue
	}
	return d
}

// getEnvBytes parses human readable sizes such as "32MB" or "512KiB"
func getEnvBytes(key string, defaultValue string) int64 {
	value := getEnv(key, defaultValue)
	size, err := humanize.ParseBytes(value)
	if err != nil || size == 0 {
		logWarn("Invalid size in environment, using default", "key", key, "value", value, "default", defaultValue)
		size, _ = humanize.ParseBytes(defaultValue)
	}
	return int64(size)
}

// getEnvChoice returns the lower-cased value if it is one of choices
func getEnvChoice(key, defaultValue string, choices ...string) string {
	value := strings.ToLower(getEnv(key, defaultValue))
	if !slices.Contains(choices, value) {
		logWarn("Unsupported value in environment, using default", "key", key, "value", value, "allowed", choices, "default", defaultValue)
		return defaultValue
	}
	return value
}

func logWarn(msg string, args ...any) {
	if Logger != nil {
		Logger.Warn(msg, args...)
	}
}

// loadEnvFiles loads .env files (silently ignore if they don't exist)
func loadEnvFiles() {
	_ = godotenv.Load(".env")
	_ = godotenv.Load("config.env")
}

// loadServerConfig reads every setting from the environment
func loadServerConfig() ServerConfig {
	serverConfigLive := ServerConfig{}

	// Server configuration
	serverConfigLive.ListenAddrPort = getEnv("SERVER_PORT", "8000")
	serverConfigLive.ListenAddrIP = getEnv("SERVER_ADDR", "")

	// Renderer configuration
	serverConfigLive.Renderer = getEnvChoice("RENDERER", "pdfium", "pdfium", "fitz")
	serverConfigLive.RenderWorkers = getEnvIntRange("RENDER_WORKERS", 2, 1, 64)

	// Conversion defaults
	serverConfigLive.MaxDPI = getEnvIntRange("MAX_DPI", 600, 1, 2400)
	serverConfigLive.DefaultDPI = getEnvIntRange("DEFAULT_DPI", 200, 1, serverConfigLive.MaxDPI)
	if serverConfigLive.DefaultDPI > serverConfigLive.MaxDPI {
		serverConfigLive.DefaultDPI = serverConfigLive.MaxDPI
	}
	serverConfigLive.DefaultThreshold = getEnvIntRange("DEFAULT_THRESHOLD", 240, 0, 255)
	serverConfigLive.DefaultQuality = getEnvIntRange("DEFAULT_QUALITY", 85, 0, 100)
	serverConfigLive.PageErrorPolicy = getEnvChoice("PAGE_ERROR_POLICY", PageErrorFail,
		PageErrorFail, PageErrorSkip, PageErrorPlaceholder)

	// Request limits
	serverConfigLive.MaxUploadSize = getEnvBytes("MAX_UPLOAD_SIZE", "32MB")
	serverConfigLive.FetchTimeout = getEnvDuration("FETCH_TIMEOUT", 30*time.Second)
	serverConfigLive.RateLimit = getEnvIntRange("RATE_LIMIT", 60, 0, 1_000_000)
	serverConfigLive.SelfCheckInterval = getEnvIntRange("SELF_CHECK_INTERVAL", 10, 0, 24*60)

	return serverConfigLive
}

// SetupServer loads configuration and returns ServerConfig and Logger
func SetupServer() (ServerConfig, *slog.Logger) {
	loadEnvFiles()

	logger := setupLogging()
	Logger = logger

	serverConfigLive := loadServerConfig()

	fmt.Println("\n========================================")
	fmt.Println("   pagecrop - PDF page image service")
	fmt.Println("========================================")
	fmt.Printf("Server will start on: %s:%s\n", serverConfigLive.ListenAddrIP, serverConfigLive.ListenAddrPort)
	if serverConfigLive.ListenAddrIP == "" {
		fmt.Println("(Listening on all network interfaces)")
	}
	fmt.Println("Initializing...")

	logger.Info("Renderer configuration loaded",
		"renderer", serverConfigLive.Renderer,
		"workers", serverConfigLive.RenderWorkers)
	logger.Info("Conversion defaults loaded",
		"dpi", serverConfigLive.DefaultDPI,
		"maxDPI", serverConfigLive.MaxDPI,
		"threshold", serverConfigLive.DefaultThreshold,
		"quality", serverConfigLive.DefaultQuality,
		"pageErrorPolicy", serverConfigLive.PageErrorPolicy)
	logger.Info("Request limits loaded",
		"maxUploadSize", humanize.Bytes(uint64(serverConfigLive.MaxUploadSize)),
		"fetchTimeout", serverConfigLive.FetchTimeout,
		"rateLimitPerMinute", serverConfigLive.RateLimit)
	if serverConfigLive.PageErrorPolicy != PageErrorFail {
		logger.Warn("Pages that fail to render will not fail the request", "policy", serverConfigLive.PageErrorPolicy)
	}

	return serverConfigLive, logger
}

// SetupCLI loads the same configuration for the command line tool. Logs go
// to stderr so they never mix with command output.
func SetupCLI() (ServerConfig, *slog.Logger) {
	loadEnvFiles()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: parseLevel(getEnv("LOG_LEVEL", "warn")),
	}))
	Logger = logger

	return loadServerConfig(), logger
}

func parseLevel(logLevel string) slog.Level {
	switch strings.ToLower(logLevel) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// setupLogging configures the application logger
func setupLogging() *slog.Logger {
	handlerOptions := &slog.HandlerOptions{Level: parseLevel(getEnv("LOG_LEVEL", "info"))}

	logOutput := getEnv("LOG_OUTPUT", "stdout")
	var logWriter io.Writer

	if logOutput == "stdout" {
		logWriter = os.Stdout
	} else {
		logPath, err := filepath.Abs(filepath.ToSlash(getEnv("LOG_FILE", "pagecrop.log")))
		if err != nil {
			fmt.Printf("Error creating log file path: %v\n", err)
			logWriter = os.Stdout
		} else {
			logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
			if err != nil {
				fmt.Printf("Failed to open log file: %v\n", err)
				logWriter = os.Stdout
			} else {
				logWriter = logFile
				fmt.Println("Logging to file: ", logPath)
			}
		}
	}

	var handler slog.Handler
	if getEnvBool("LOG_JSON", false) {
		handler = slog.NewJSONHandler(logWriter, handlerOptions)
	} else {
		handler = slog.NewTextHandler(logWriter, handlerOptions)
	}
	return slog.New(handler)
}
