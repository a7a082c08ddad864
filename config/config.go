package config

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
)

// Logger is global since we will need it everywhere
var Logger *slog.Logger

// ViewerConfig contains all of the render service and CLI settings
type ViewerConfig struct {
	ListenAddrIP     string
	ListenAddrPort   string
	DatabaseType     string
	DatabaseHost     string
	DatabasePort     string
	DatabaseUser     string
	DatabasePassword string `json:"-"`
	DatabaseDbname   string
	DatabaseSslmode  string
	RenderBackend    string
	DefaultScale     float64
	MaxScale         float64 // largest scale the service renders at
	ExportPath       string
	ExportFormat     string
	CompletionBuffer int
	RecentFileLimit  int
	PruneInterval    int // minutes
	JobRetention     int // hours
}

// FrontendConfig contains the settings of the viewer web app server
type FrontendConfig struct {
	ListenPort   string
	ServerAPIURL string
	ViewerScale  float64 // scale of page images in the viewer
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt gets an integer environment variable with a default value
func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	intVal, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return intVal
}

// getEnvFloat gets a positive float environment variable with a default value
func getEnvFloat(key string, defaultValue float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	floatVal, err := strconv.ParseFloat(value, 64)
	if err != nil || floatVal <= 0 {
		return defaultValue
	}
	return floatVal
}

// loadEnvFiles loads .env files (silently ignore if they don't exist)
func loadEnvFiles() {
	_ = godotenv.Load(".env")
	_ = godotenv.Load("config.env")
}

// Load reads the configuration from the environment without touching logging
func Load() ViewerConfig {
	loadEnvFiles()

	viewerConfig := ViewerConfig{}

	// Server configuration
	viewerConfig.ListenAddrPort = getEnv("SERVER_PORT", "8000")
	viewerConfig.ListenAddrIP = getEnv("SERVER_ADDR", "")

	// Database configuration
	viewerConfig.DatabaseType = getEnv("DATABASE_TYPE", "sqlite")
	viewerConfig.DatabaseHost = getEnv("DATABASE_HOST", "localhost")
	viewerConfig.DatabasePort = getEnv("DATABASE_PORT", "5432")
	viewerConfig.DatabaseUser = getEnv("DATABASE_USER", "pdfbitmap")
	viewerConfig.DatabasePassword = getEnv("DATABASE_PASSWORD", "")
	viewerConfig.DatabaseDbname = getEnv("DATABASE_NAME", "databases/pdfbitmap.sqlite")
	viewerConfig.DatabaseSslmode = getEnv("DATABASE_SSLMODE", "disable")

	// Rendering configuration
	viewerConfig.RenderBackend = getEnv("RENDER_BACKEND", "pdfium")
	viewerConfig.DefaultScale = getEnvFloat("DEFAULT_SCALE", 1.0)
	viewerConfig.MaxScale = getEnvFloat("MAX_SCALE", 8.0)
	viewerConfig.CompletionBuffer = getEnvInt("COMPLETION_BUFFER", 64)

	// Export configuration
	exportPath := filepath.ToSlash(getEnv("EXPORT_PATH", "exports"))
	exportPathAbs, err := filepath.Abs(exportPath)
	if err != nil {
		exportPathAbs = exportPath
	}
	viewerConfig.ExportPath = exportPathAbs
	viewerConfig.ExportFormat = getEnv("EXPORT_FORMAT", "png")

	// Housekeeping
	viewerConfig.RecentFileLimit = getEnvInt("RECENT_FILE_LIMIT", 20)
	viewerConfig.PruneInterval = getEnvInt("PRUNE_INTERVAL", 60)
	viewerConfig.JobRetention = getEnvInt("JOB_RETENTION", 72)

	return viewerConfig
}

// SetupServer loads configuration and returns ViewerConfig and Logger
func SetupServer() (ViewerConfig, *slog.Logger) {
	viewerConfig := Load()

	logger := setupLogging(getEnv("LOG_OUTPUT", "file"))
	Logger = logger

	fmt.Println("\n========================================")
	fmt.Println("   pdfbitmap - PDF Page Render Service")
	fmt.Println("========================================")
	fmt.Printf("Server will start on: %s:%s\n", viewerConfig.ListenAddrIP, viewerConfig.ListenAddrPort)
	if viewerConfig.ListenAddrIP == "" {
		fmt.Println("(Listening on all network interfaces)")
	}
	fmt.Printf("Detailed logs: %s\n", getEnv("LOG_FILE", "pdfbitmap.log"))

	logger.Info("Database configuration loaded", "type", viewerConfig.DatabaseType)
	logger.Info("Render configuration loaded",
		"backend", viewerConfig.RenderBackend,
		"defaultScale", viewerConfig.DefaultScale,
		"exportPath", viewerConfig.ExportPath)

	return viewerConfig, logger
}

// SetupFrontend loads configuration for the viewer web app server
func SetupFrontend() (FrontendConfig, *slog.Logger) {
	loadEnvFiles()
	logger := setupLogging(getEnv("LOG_OUTPUT", "stdout"))
	Logger = logger

	frontendConfig := FrontendConfig{
		ListenPort:   getEnv("FRONTEND_PORT", "3000"),
		ServerAPIURL: getEnv("SERVER_API_URL", "http://localhost:8000"),
		ViewerScale:  getEnvFloat("VIEWER_SCALE", 0.5),
	}

	logger.Info("Frontend configuration loaded",
		"apiURL", frontendConfig.ServerAPIURL,
		"viewerScale", frontendConfig.ViewerScale)

	return frontendConfig, logger
}

// SetupCLI loads configuration for the command line tool, logging to stderr
// unless LOG_OUTPUT says otherwise
func SetupCLI() (ViewerConfig, *slog.Logger) {
	viewerConfig := Load()
	logger := setupLogging(getEnv("LOG_OUTPUT", "stderr"))
	Logger = logger
	return viewerConfig, logger
}

// ParseLevel maps a LOG_LEVEL value onto a slog level, debug when unknown
func ParseLevel(logLevel string) slog.Level {
	switch logLevel {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelDebug
	}
}

// setupLogging configures the application logger
func setupLogging(logOutput string) *slog.Logger {
	handlerOptions := &slog.HandlerOptions{Level: ParseLevel(getEnv("LOG_LEVEL", "debug"))}

	var logWriter io.Writer
	switch logOutput {
	case "stdout":
		logWriter = os.Stdout
	case "stderr":
		logWriter = os.Stderr
	default:
		logPath, err := filepath.Abs(filepath.ToSlash(getEnv("LOG_FILE", "pdfbitmap.log")))
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

	handler := slog.NewTextHandler(logWriter, handlerOptions)
	return slog.New(handler)
}
