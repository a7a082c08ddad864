package main

import (
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	config "github.com/drummonds/pdfbitmap/config"
	"github.com/drummonds/pdfbitmap/webapp"
)

// Logger is global since we will need it everywhere
var Logger *slog.Logger

func main() {
	// Parse command-line flags
	port := flag.String("port", "", "Port to run frontend server on (default: FRONTEND_PORT)")
	apiURL := flag.String("api", "", "Render API URL (overrides SERVER_API_URL)")
	flag.Parse()

	fmt.Println("\n" + strings.Repeat("=", 50))
	fmt.Println("🎨  pdfbitmap Viewer Server")
	fmt.Println(strings.Repeat("=", 50))
	fmt.Println("• WASM viewer application")
	fmt.Println("• Proxies API calls to the render service")
	fmt.Println(strings.Repeat("=", 50) + "\n")

	frontendConfig, logger := config.SetupFrontend()
	Logger = logger
	config.Logger = logger

	if *apiURL != "" {
		frontendConfig.ServerAPIURL = *apiURL
	}
	if *port != "" {
		frontendConfig.ListenPort = *port
	}

	e, err := newFrontend(frontendConfig)
	if err != nil {
		Logger.Error("Invalid frontend configuration", "error", err)
		return
	}

	addr := fmt.Sprintf(":%s", frontendConfig.ListenPort)
	Logger.Info("Starting Frontend Server", "address", addr, "backendAPI", frontendConfig.ServerAPIURL)
	fmt.Printf("\n✅  Viewer Server running on %s\n", addr)
	fmt.Printf("🎨  Open http://localhost:%s in your browser\n", frontendConfig.ListenPort)
	fmt.Printf("📡  API proxied to: %s\n\n", frontendConfig.ServerAPIURL)

	if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
		Logger.Error("Server failed to start", "error", err)
	}
}

// newFrontend builds the echo server for the viewer: the go-app handler, its
// static assets and a proxy of /api/* to the render service
func newFrontend(frontendConfig config.FrontendConfig) (*echo.Echo, error) {
	backendURL, err := url.Parse(frontendConfig.ServerAPIURL)
	if err != nil || backendURL.Scheme == "" || backendURL.Host == "" {
		return nil, fmt.Errorf("invalid render API URL %q", frontendConfig.ServerAPIURL)
	}

	e := echo.New()
	e.HideBanner = true

	// CORS - allow requests from anywhere (since we're just serving static content)
	e.Use(middleware.CORS())

	// Request logging
	e.Use(middleware.LoggerWithConfig(middleware.LoggerConfig{
		Format: "method=${method}, uri=${uri}, status=${status}, latency=${latency_human}\n",
	}))

	Logger.Info("Setting up WASM application...")
	appHandler := webapp.Handler()

	// Serve wasm_exec.js
	e.GET("/wasm_exec.js", func(c echo.Context) error {
		return c.File("web/wasm_exec.js")
	})

	// Register go-app specific resources
	e.GET("/app.js", echo.WrapHandler(appHandler))
	e.GET("/app.css", echo.WrapHandler(appHandler))
	e.GET("/manifest.webmanifest", echo.WrapHandler(appHandler))

	// Serve static assets
	e.Static("/web", "web")
	e.File("/webapp/webapp.css", "webapp/webapp.css")

	// The API is proxied, so the viewer uses relative URLs
	e.GET("/config.js", func(c echo.Context) error {
		configJS := fmt.Sprintf(`
// pdfbitmap viewer configuration
window.pdfbitmapConfig = {
    apiURL: "",
    viewerScale: %g
};
`, frontendConfig.ViewerScale)
		c.Response().Header().Set("Content-Type", "application/javascript")
		return c.String(http.StatusOK, configJS)
	})

	// API proxy middleware - forward /api/* requests to the render service
	e.Group("/api", middleware.ProxyWithConfig(middleware.ProxyConfig{
		Balancer: middleware.NewRoundRobinBalancer([]*middleware.ProxyTarget{
			{
				URL: backendURL,
			},
		}),
	}))

	// Serve go-app handler for all other routes (must be last)
	e.Any("/*", echo.WrapHandler(appHandler))
	return e, nil
}
