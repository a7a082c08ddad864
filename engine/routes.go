package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"path/filepath"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/disintegration/imaging"
	"github.com/drummonds/pdfbitmap/config"
	"github.com/drummonds/pdfbitmap/database"
	"github.com/drummonds/pdfbitmap/engine/pdfrenderer"
	"github.com/drummonds/pdfbitmap/textutil"
	"github.com/labstack/echo/v4"
	"github.com/oklog/ulid/v2"
)

// Version is set at build time with -ldflags "-X .../engine.Version=..."
var Version = "dev"

// ErrScaleTooLarge is returned for render requests above MAX_SCALE
var ErrScaleTooLarge = errors.New("scale exceeds the service maximum")

// ServerHandler will inject the variables needed into routes
type ServerHandler struct {
	DB           database.Repository
	Echo         *echo.Echo
	ServerConfig config.ViewerConfig
	// Renderer is shared by every open document
	Renderer pdfrenderer.Renderer

	mu       sync.Mutex
	sessions map[ulid.ULID]*session
}

// session is one document opened through the API
type session struct {
	ID       ulid.ULID
	Engine   *BitmapEngine
	Exporter *Exporter
	Opened   time.Time
}

type openRequest struct {
	Path     string `json:"path"`
	Password string `json:"password"`
}

type exportRequest struct {
	Range     string  `json:"range"`
	Scale     float64 `json:"scale"`
	Format    string  `json:"format"`
	Thumbnail int     `json:"thumbnail"`
	Sharpen   float64 `json:"sharpen"`
}

type pageResponse struct {
	Number       int     `json:"number"`
	OriginalSize Size    `json:"originalSize"`
	ViewSize     Size    `json:"viewSize"`
	Rotation     int     `json:"rotation"`
	Power        float64 `json:"power"`
}

type documentResponse struct {
	ID        string         `json:"id"`
	Path      string         `json:"path"`
	Name      string         `json:"name"`
	Backend   string         `json:"backend"`
	Encrypted bool           `json:"encrypted"`
	PageCount int            `json:"pageCount"`
	Pending   int            `json:"pending"`
	Opened    time.Time      `json:"opened"`
	Pages     []pageResponse `json:"pages,omitempty"`
}

// RegisterRoutes adds every render service route to the echo instance
func (serverHandler *ServerHandler) RegisterRoutes() {
	e := serverHandler.Echo

	// Document API routes
	e.GET("/api/documents", serverHandler.ListDocuments)
	e.POST("/api/documents", serverHandler.OpenDocument)
	e.GET("/api/documents/:id", serverHandler.GetDocument)
	e.DELETE("/api/documents/:id", serverHandler.CloseDocument)
	e.GET("/api/documents/:id/pages/:page/image", serverHandler.GetPageImage)
	e.GET("/api/documents/:id/pages/:page/text", serverHandler.GetPageText)
	e.POST("/api/documents/:id/export", serverHandler.ExportDocument)
	e.POST("/api/documents/:id/cancel", serverHandler.CancelDocument)

	// Recent files
	e.GET("/api/recent", serverHandler.GetRecentFiles)

	// Job tracking API routes
	e.GET("/api/jobs", serverHandler.GetRecentJobs)
	e.GET("/api/jobs/active", serverHandler.GetActiveJobs)
	e.GET("/api/jobs/:id", serverHandler.GetJob)

	e.GET("/api/about", serverHandler.GetAboutInfo)
	e.GET("/api/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "healthy",
			"service": "pdfbitmap render service",
		})
	})
}

// OpenDocument opens a PDF and keeps it open until it is deleted
// @Summary Open a document
// @Description Opens a PDF (optionally with a password) and returns its pages
// @Tags Documents
// @Accept json
// @Produce json
// @Success 201 {object} documentResponse "Opened document"
// @Failure 400 {object} map[string]interface{} "Invalid path"
// @Failure 401 {object} map[string]interface{} "Password required or incorrect"
// @Failure 422 {object} map[string]interface{} "Document could not be loaded"
// @Router /documents [post]
func (serverHandler *ServerHandler) OpenDocument(c echo.Context) error {
	var request openRequest
	if err := c.Bind(&request); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]interface{}{"error": "Invalid request body"})
	}
	if request.Path == "" {
		return c.JSON(http.StatusBadRequest, map[string]interface{}{"error": "path is required"})
	}
	if _, err := textutil.NormalizePath(request.Path, '_'); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]interface{}{"error": err.Error(), "path": request.Path})
	}
	path, err := filepath.Abs(request.Path)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]interface{}{"error": err.Error()})
	}

	options := []Option{WithRenderer(serverHandler.Renderer)}
	if serverHandler.ServerConfig.CompletionBuffer > 0 {
		options = append(options, WithCompletionBuffer(serverHandler.ServerConfig.CompletionBuffer))
	}
	bitmapEngine, err := NewBitmapEngine(path, request.Password, options...)
	if err != nil {
		Logger.Warn("Unable to open document", "path", path, "error", err)
		return renderError(c, err)
	}

	s := &session{Engine: bitmapEngine, Exporter: NewExporter(bitmapEngine), Opened: time.Now()}
	s.ID, err = database.CalculateUUID(s.Opened)
	if err != nil {
		bitmapEngine.Dispose()
		return c.JSON(http.StatusInternalServerError, map[string]interface{}{"error": err.Error()})
	}
	serverHandler.mu.Lock()
	if serverHandler.sessions == nil {
		serverHandler.sessions = make(map[ulid.ULID]*session)
	}
	serverHandler.sessions[s.ID] = s
	serverHandler.mu.Unlock()

	serverHandler.recordRecentFile(c.Request().Context(), bitmapEngine)
	Logger.Info("Document opened via API", "id", s.ID, "path", path, "pages", bitmapEngine.PageCount())
	return c.JSON(http.StatusCreated, s.describe(true))
}

// ListDocuments lists the open documents
// @Summary List open documents
// @Tags Documents
// @Produce json
// @Success 200 {array} documentResponse "Open documents"
// @Router /documents [get]
func (serverHandler *ServerHandler) ListDocuments(c echo.Context) error {
	serverHandler.mu.Lock()
	documents := make([]documentResponse, 0, len(serverHandler.sessions))
	for _, s := range serverHandler.sessions {
		documents = append(documents, s.describe(false))
	}
	serverHandler.mu.Unlock()
	sort.Slice(documents, func(i, j int) bool { return documents[i].ID < documents[j].ID })
	return c.JSON(http.StatusOK, documents)
}

// GetDocument returns an open document and its pages
// @Summary Get an open document
// @Tags Documents
// @Produce json
// @Param id path string true "Document session ID (ULID)"
// @Success 200 {object} documentResponse "Document with pages"
// @Failure 404 {object} map[string]interface{} "Document not open"
// @Router /documents/{id} [get]
func (serverHandler *ServerHandler) GetDocument(c echo.Context) error {
	s, err := serverHandler.lookup(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, s.describe(true))
}

// CloseDocument cancels outstanding work and closes the document
// @Summary Close a document
// @Tags Documents
// @Param id path string true "Document session ID (ULID)"
// @Success 200 {object} map[string]interface{} "Document closed"
// @Failure 404 {object} map[string]interface{} "Document not open"
// @Router /documents/{id} [delete]
func (serverHandler *ServerHandler) CloseDocument(c echo.Context) error {
	s, err := serverHandler.lookup(c)
	if err != nil {
		return err
	}
	serverHandler.mu.Lock()
	delete(serverHandler.sessions, s.ID)
	serverHandler.mu.Unlock()

	s.Engine.Dispose()
	Logger.Info("Document closed via API", "id", s.ID)
	return c.JSON(http.StatusOK, map[string]interface{}{"message": "Document closed", "id": s.ID.String()})
}

// GetPageImage renders one page
// @Summary Render a page
// @Description Renders a page at the requested scale (default DEFAULT_SCALE) as PNG or JPEG
// @Tags Pages
// @Produce image/png
// @Param id path string true "Document session ID (ULID)"
// @Param page path int true "1-based page number"
// @Param scale query number false "Scale factor, 1 renders one pixel per point"
// @Param format query string false "png (default) or jpg"
// @Success 200 {file} binary "Rendered page"
// @Failure 400 {object} map[string]interface{} "Invalid scale or format"
// @Failure 404 {object} map[string]interface{} "Page not found"
// @Failure 500 {object} map[string]interface{} "Rasterization failed"
// @Router /documents/{id}/pages/{page}/image [get]
func (serverHandler *ServerHandler) GetPageImage(c echo.Context) error {
	s, err := serverHandler.lookup(c)
	if err != nil {
		return err
	}
	pageNumber, err := strconv.Atoi(c.Param("page"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]interface{}{"error": "Invalid page number"})
	}
	scale := serverHandler.ServerConfig.DefaultScale
	if scale <= 0 {
		scale = 1
	}
	if scaleStr := c.QueryParam("scale"); scaleStr != "" {
		scale, err = strconv.ParseFloat(scaleStr, 64)
		if err != nil {
			return c.JSON(http.StatusBadRequest, map[string]interface{}{"error": "Invalid scale"})
		}
	}
	if err := serverHandler.checkScale(scale); err != nil {
		return renderError(c, err)
	}
	ext, err := ExportFormat(c.QueryParam("format"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]interface{}{"error": err.Error()})
	}
	format, _ := imaging.FormatFromExtension(ext)

	img, err := s.Engine.CreateImage(pageNumber, scale)
	if err != nil {
		Logger.Warn("Page render failed", "id", s.ID, "page", pageNumber, "scale", scale, "error", err)
		return renderError(c, err)
	}

	contentType := "image/png"
	if format == imaging.JPEG {
		contentType = "image/jpeg"
	}
	c.Response().Header().Set(echo.HeaderContentType, contentType)
	c.Response().WriteHeader(http.StatusOK)
	return imaging.Encode(c.Response(), img, format)
}

// GetPageText extracts the plain text of one page
// @Summary Get page text
// @Tags Pages
// @Produce json
// @Param id path string true "Document session ID (ULID)"
// @Param page path int true "1-based page number"
// @Success 200 {object} map[string]interface{} "Page text"
// @Failure 404 {object} map[string]interface{} "Page not found"
// @Router /documents/{id}/pages/{page}/text [get]
func (serverHandler *ServerHandler) GetPageText(c echo.Context) error {
	s, err := serverHandler.lookup(c)
	if err != nil {
		return err
	}
	pageNumber, err := strconv.Atoi(c.Param("page"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]interface{}{"error": "Invalid page number"})
	}
	page, err := s.Engine.GetPage(pageNumber)
	if err != nil {
		return renderError(c, err)
	}
	text, err := pdfrenderer.ExtractText(page.FilePath, page.Password, pageNumber)
	if err != nil {
		Logger.Warn("Text extraction failed", "id", s.ID, "page", pageNumber, "error", err)
		return renderError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"page": pageNumber, "text": text})
}

// ExportDocument starts an export job for a page range
// @Summary Export pages
// @Description Renders a page range to image files in EXPORT_PATH as a background job
// @Tags Pages
// @Accept json
// @Produce json
// @Param id path string true "Document session ID (ULID)"
// @Success 202 {object} map[string]interface{} "Job created with job ID"
// @Failure 400 {object} map[string]interface{} "Invalid range, scale or format"
// @Failure 409 {object} map[string]interface{} "Document is busy"
// @Router /documents/{id}/export [post]
func (serverHandler *ServerHandler) ExportDocument(c echo.Context) error {
	s, err := serverHandler.lookup(c)
	if err != nil {
		return err
	}
	var request exportRequest
	if err := c.Bind(&request); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]interface{}{"error": "Invalid request body"})
	}

	pages, err := textutil.ParseRange(request.Range)
	if err != nil {
		return renderError(c, err)
	}
	if len(pages) == 0 {
		for pageNumber := 1; pageNumber <= s.Engine.PageCount(); pageNumber++ {
			pages = append(pages, pageNumber)
		}
	}
	for _, pageNumber := range pages {
		if _, err := s.Engine.GetPage(pageNumber); err != nil {
			return renderError(c, err)
		}
	}
	if request.Scale == 0 {
		request.Scale = serverHandler.ServerConfig.DefaultScale
	}
	if err := serverHandler.checkScale(request.Scale); err != nil {
		return renderError(c, err)
	}
	if request.Format == "" {
		request.Format = serverHandler.ServerConfig.ExportFormat
	}
	if _, err := ExportFormat(request.Format); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]interface{}{"error": err.Error()})
	}
	if s.Engine.IsBusy() {
		return renderError(c, ErrBusy)
	}

	options := ExportOptions{
		Pages:     pages,
		Scale:     request.Scale,
		OutDir:    filepath.Join(serverHandler.ServerConfig.ExportPath, s.ID.String()),
		Format:    request.Format,
		Thumbnail: request.Thumbnail,
		Sharpen:   request.Sharpen,
	}
	job, err := serverHandler.DB.CreateJob(c.Request().Context(), database.JobTypeExport, "Exporting "+filepath.Base(s.Engine.FilePath()))
	if err != nil {
		Logger.Error("Failed to create export job", "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]interface{}{"error": "Failed to create job"})
	}

	// Run the export in a goroutine so we can return immediately
	go serverHandler.exportJobFunc(s, options, job.ID)

	return c.JSON(http.StatusAccepted, map[string]interface{}{
		"message": "Export started",
		"jobId":   job.ID.String(),
		"outDir":  options.OutDir,
	})
}

// CancelDocument drops queued renders of a document
// @Summary Cancel queued renders
// @Tags Pages
// @Param id path string true "Document session ID (ULID)"
// @Success 200 {object} map[string]interface{} "Renders cancelled"
// @Router /documents/{id}/cancel [post]
func (serverHandler *ServerHandler) CancelDocument(c echo.Context) error {
	s, err := serverHandler.lookup(c)
	if err != nil {
		return err
	}
	s.Engine.Cancel()
	return c.JSON(http.StatusOK, map[string]interface{}{"message": "Cancelled", "pending": s.Engine.Pending()})
}

// GetRecentFiles lists recently opened documents that still exist
// @Summary Recent files
// @Tags Documents
// @Produce json
// @Param limit query int false "Number of files to return (default: RECENT_FILE_LIMIT)"
// @Success 200 {array} database.RecentFile "Recent files"
// @Router /recent [get]
func (serverHandler *ServerHandler) GetRecentFiles(c echo.Context) error {
	limit := serverHandler.ServerConfig.RecentFileLimit
	if limitStr := c.QueryParam("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 {
			limit = l
		}
	}
	files, err := database.EnumerateRecentFiles(c.Request().Context(), serverHandler.DB, limit)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]interface{}{"error": "Failed to retrieve recent files"})
	}
	return c.JSON(http.StatusOK, files)
}

// GetAboutInfo describes the running service
// @Summary Get application information
// @Tags Admin
// @Produce json
// @Success 200 {object} map[string]interface{} "Application information"
// @Router /about [get]
func (serverHandler *ServerHandler) GetAboutInfo(c echo.Context) error {
	serverHandler.mu.Lock()
	open := len(serverHandler.sessions)
	serverHandler.mu.Unlock()

	return c.JSON(http.StatusOK, map[string]interface{}{
		"version":       Version,
		"backend":       serverHandler.Renderer.Name(),
		"defaultScale":  serverHandler.ServerConfig.DefaultScale,
		"exportPath":    serverHandler.ServerConfig.ExportPath,
		"exportFormat":  serverHandler.ServerConfig.ExportFormat,
		"databaseType":  serverHandler.ServerConfig.DatabaseType,
		"openDocuments": open,
	})
}

// CloseAll disposes every open document, used on shutdown
func (serverHandler *ServerHandler) CloseAll() {
	serverHandler.mu.Lock()
	sessions := serverHandler.sessions
	serverHandler.sessions = nil
	serverHandler.mu.Unlock()
	for _, s := range sessions {
		s.Engine.Dispose()
	}
}

// exportJobFunc runs an export and records its progress on the job
func (serverHandler *ServerHandler) exportJobFunc(s *session, options ExportOptions, jobID ulid.ULID) {
	ctx := context.Background()
	defer func() {
		if r := recover(); r != nil {
			Logger.Error("Panic recovered in export job", "panic", r, "jobID", jobID)
			serverHandler.DB.UpdateJobError(ctx, jobID, fmt.Sprintf("Panic: %v", r))
		}
	}()

	if err := serverHandler.DB.UpdateJobStatus(ctx, jobID, database.JobStatusRunning, "Rendering pages"); err != nil {
		Logger.Error("Failed to update job status", "error", err)
	}

	result, err := s.Exporter.Export(ctx, options, func(done, total, pageNumber int) {
		step := fmt.Sprintf("Page %d (%d of %d)", pageNumber, done, total)
		if err := serverHandler.DB.UpdateJobProgress(ctx, jobID, done*100/total, step); err != nil {
			Logger.Warn("Failed to update job progress", "jobID", jobID, "error", err)
		}
	})
	if errors.Is(err, ErrCancelled) {
		Logger.Info("Export cancelled", "jobID", jobID, "pagesWritten", len(result.Files))
		message := fmt.Sprintf("Cancelled after %d of %d pages", len(result.Files), len(options.Pages))
		if err := serverHandler.DB.UpdateJobStatus(ctx, jobID, database.JobStatusCancelled, message); err != nil {
			Logger.Error("Failed to update job status", "jobID", jobID, "error", err)
		}
		return
	}
	if err != nil {
		Logger.Error("Export failed", "jobID", jobID, "error", err)
		serverHandler.DB.UpdateJobError(ctx, jobID, err.Error())
		return
	}
	if len(result.Files) == 0 && len(result.Failed) > 0 {
		serverHandler.DB.UpdateJobError(ctx, jobID, fmt.Sprintf("all %d pages failed to render", len(result.Failed)))
		return
	}

	summary := database.JobSummary{
		PagesRendered: len(result.Files),
		PagesTotal:    len(options.Pages),
		BytesWritten:  result.Bytes,
		Size:          textutil.FormatByteSize(result.Bytes),
		Errors:        len(result.Failed),
		Details:       options.OutDir,
	}
	resultJSON, _ := json.Marshal(summary)
	if err := serverHandler.DB.CompleteJob(ctx, jobID, string(resultJSON)); err != nil {
		Logger.Error("Failed to complete job", "jobID", jobID, "error", err)
	}
}

// recordRecentFile remembers a successfully opened document, failures are
// only logged
func (serverHandler *ServerHandler) recordRecentFile(ctx context.Context, bitmapEngine *BitmapEngine) {
	file, err := database.NewRecentFile(bitmapEngine.FilePath(), bitmapEngine.PageCount(), bitmapEngine.Encrypted())
	if err != nil {
		Logger.Warn("Unable to describe recent file", "path", bitmapEngine.FilePath(), "error", err)
		return
	}
	if _, err := serverHandler.DB.TouchRecentFile(ctx, file); err != nil {
		Logger.Warn("Unable to record recent file", "path", file.Path, "error", err)
	}
}

// lookup finds the session named by the :id parameter
func (serverHandler *ServerHandler) lookup(c echo.Context) (*session, error) {
	id, err := ulid.Parse(c.Param("id"))
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "Invalid document ID format")
	}
	serverHandler.mu.Lock()
	s, ok := serverHandler.sessions[id]
	serverHandler.mu.Unlock()
	if !ok {
		return nil, echo.NewHTTPError(http.StatusNotFound, "Document is not open")
	}
	return s, nil
}

func (s *session) describe(withPages bool) documentResponse {
	path := s.Engine.FilePath()
	response := documentResponse{
		ID:        s.ID.String(),
		Path:      path,
		Name:      filepath.Base(path),
		Backend:   s.Engine.RendererName(),
		Encrypted: s.Engine.Encrypted(),
		PageCount: s.Engine.PageCount(),
		Pending:   s.Engine.Pending(),
		Opened:    s.Opened,
	}
	if withPages {
		for _, page := range s.Engine.Pages() {
			response.Pages = append(response.Pages, pageResponse{
				Number:       page.PageNumber,
				OriginalSize: page.OriginalSize,
				ViewSize:     page.ViewSize(),
				Rotation:     page.Rotation,
				Power:        page.Power(),
			})
		}
	}
	return response
}

// checkScale rejects scales the engine cannot use or that exceed MAX_SCALE
func (serverHandler *ServerHandler) checkScale(scale float64) error {
	if scale <= 0 || math.IsNaN(scale) || math.IsInf(scale, 0) {
		return ErrInvalidScale
	}
	if maxScale := serverHandler.ServerConfig.MaxScale; maxScale > 0 && scale > maxScale {
		return fmt.Errorf("%w: %g is above %g", ErrScaleTooLarge, scale, maxScale)
	}
	return nil
}

// renderError maps engine errors onto HTTP status codes
func renderError(c echo.Context, err error) error {
	status := http.StatusInternalServerError
	var (
		loadErr       *pdfrenderer.DocumentLoadError
		pageErr       *pdfrenderer.PageNotFoundError
		rasterErr     *pdfrenderer.RasterizationError
		parseErr      *textutil.ParseError
		errorResponse = map[string]interface{}{"error": err.Error()}
	)
	switch {
	case errors.Is(err, pdfrenderer.ErrPasswordRequired):
		status = http.StatusUnauthorized
	case errors.As(err, &loadErr):
		status = http.StatusUnprocessableEntity
	case errors.As(err, &pageErr):
		status = http.StatusNotFound
		errorResponse["pageCount"] = pageErr.Count
	case errors.As(err, &parseErr), errors.Is(err, ErrInvalidScale), errors.Is(err, ErrScaleTooLarge):
		status = http.StatusBadRequest
	case errors.Is(err, ErrBusy):
		status = http.StatusConflict
	case errors.Is(err, ErrClosed):
		status = http.StatusGone
	case errors.As(err, &rasterErr):
		status = http.StatusInternalServerError
	}
	return c.JSON(status, errorResponse)
}
