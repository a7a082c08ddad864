package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	config "github.com/drummonds/pdfbitmap/config"
	database "github.com/drummonds/pdfbitmap/database"
	engine "github.com/drummonds/pdfbitmap/engine"
	"github.com/drummonds/pdfbitmap/engine/pdfrenderer"
)

// Logger is global since we will need it everywhere
var Logger *slog.Logger

// injectGlobals injects all of our globals into their packages
func injectGlobals(logger *slog.Logger) {
	Logger = logger
	database.Logger = Logger
	config.Logger = Logger
	engine.Logger = Logger
}

// @title pdfbitmap Render API
// @version 1.0
// @description Renders pages of PDF documents to bitmaps, exports page ranges to image files
// @description and remembers recently opened documents

// @license.name MIT
// @license.url https://opensource.org/licenses/MIT

// @host localhost:8000
// @BasePath /api
// @schemes http https

// @tag.name Documents
// @tag.description Opening, listing and closing documents

// @tag.name Pages
// @tag.description Page rendering, text and export

// @tag.name Jobs
// @tag.description Export and housekeeping job tracking

// @tag.name Admin
// @tag.description Service information

func main() {
	// Parse command-line flags
	port := flag.String("port", "", "Port to run the render server on (default: LISTEN_PORT)")
	backend := flag.String("backend", "", "Render backend, pdfium or fitz (default: RENDER_BACKEND)")
	flag.Parse()

	fmt.Println("\n" + strings.Repeat("=", 50))
	fmt.Println("🖨️  pdfbitmap Render API Server")
	fmt.Println(strings.Repeat("=", 50))
	fmt.Println("• All endpoints under /api/*")
	fmt.Println("• CORS enabled for viewer access")
	fmt.Println(strings.Repeat("=", 50) + "\n")

	serverConfig, logger := config.SetupServer()
	injectGlobals(logger) //inject the logger into all of the packages

	if *port != "" {
		serverConfig.ListenAddrPort = *port
	}
	if *backend != "" {
		serverConfig.RenderBackend = *backend
	}

	// Setup recent files and job repository
	Logger.Info("Setting up database", "type", serverConfig.DatabaseType)
	repo, err := database.NewRepository(serverConfig)
	if err != nil {
		Logger.Error("Unable to set up database", "error", err)
		fmt.Fprintf(os.Stderr, "Unable to set up database: %v\n", err)
		os.Exit(1)
	}
	defer repo.Close()

	// One renderer is shared by every document opened through the API
	renderer, err := pdfrenderer.NewRenderer(serverConfig.RenderBackend)
	if err != nil {
		Logger.Error("Unable to start render backend", "backend", serverConfig.RenderBackend, "error", err)
		fmt.Fprintf(os.Stderr, "Unable to start render backend %q: %v\n", serverConfig.RenderBackend, err)
		os.Exit(1)
	}
	defer renderer.Close()

	// Initialize Echo
	e := echo.New()
	e.HideBanner = true

	// Custom 404 handler for API endpoints
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		code := http.StatusInternalServerError
		if he, ok := err.(*echo.HTTPError); ok {
			code = he.Code
		}

		if code == http.StatusNotFound {
			message := "The requested API endpoint does not exist"
			if he, ok := err.(*echo.HTTPError); ok && he.Message != nil {
				message = fmt.Sprint(he.Message)
			}
			c.JSON(http.StatusNotFound, map[string]string{
				"error":   "Not Found",
				"message": message,
				"path":    c.Request().URL.Path,
			})
			return
		}

		// For other errors, use default handler
		e.DefaultHTTPErrorHandler(err, c)
	}

	serverHandler := &engine.ServerHandler{DB: repo, Echo: e, ServerConfig: serverConfig, Renderer: renderer}
	Logger.Info("Initializing render services...")
	if err := serverHandler.StartupChecks(); err != nil { //Run all the sanity checks
		Logger.Error("Startup checks failed", "error", err)
		os.Exit(1)
	}
	scheduler := serverHandler.InitializeSchedules() //initialize the cron jobs
	Logger.Info("Render services initialized")

	// CORS configuration - allow viewers from a different origin
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
	}))

	// Request logging
	e.Use(middleware.LoggerWithConfig(middleware.LoggerConfig{
		Format: "method=${method}, uri=${uri}, status=${status}, latency=${latency_human}\n",
	}))
	e.Use(middleware.Recover())

	Logger.Info("Setting up API routes...")
	serverHandler.RegisterRoutes()

	addr := fmt.Sprintf("%s:%s", serverConfig.ListenAddrIP, serverConfig.ListenAddrPort)
	Logger.Info("Starting Render API Server", "address", addr, "backend", renderer.Name())
	fmt.Printf("\n✅  Render API Server running on %s\n", addr)
	fmt.Printf("📡  API endpoints available at http://%s/api/\n", addr)
	fmt.Printf("🏥  Health check: http://%s/api/health\n\n", addr)

	go func() {
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			Logger.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	Logger.Info("Shutting down render server")
	<-scheduler.Stop().Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		Logger.Error("Server shutdown failed", "error", err)
	}
	serverHandler.CloseAll()
	Logger.Info("Render server stopped")
}
