package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	config "github.com/drummonds/pdfbitmap/config"
	database "github.com/drummonds/pdfbitmap/database"
	engine "github.com/drummonds/pdfbitmap/engine"
	"github.com/drummonds/pdfbitmap/engine/pdfrenderer"
	"github.com/drummonds/pdfbitmap/textutil"
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

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: %s [flags] file.pdf\n\n", filepath.Base(os.Args[0]))
	fmt.Fprintln(os.Stderr, "Renders a page range of a PDF document to image files.")
	fmt.Fprintln(os.Stderr)
	flag.PrintDefaults()
}

func main() {
	serverConfig, logger := config.SetupCLI()
	injectGlobals(logger)

	pagesFlag := flag.String("pages", "", "Pages to render, e.g. 1,3-5 (default: every page)")
	scale := flag.Float64("scale", serverConfig.DefaultScale, "Scale factor, 1 renders one pixel per point")
	outDir := flag.String("out", ".", "Directory to write images to")
	format := flag.String("format", serverConfig.ExportFormat, "Image format: png, jpg, gif, tif or bmp")
	password := flag.String("password", "", "Password for an encrypted document")
	backend := flag.String("backend", serverConfig.RenderBackend, "Render backend: pdfium or fitz")
	info := flag.Bool("info", false, "Print page geometry and exit")
	thumbnail := flag.Int("thumbnail", 0, "Fit images inside NxN pixels (0 keeps the full size)")
	sharpen := flag.Float64("sharpen", 0, "Sharpen sigma applied after scaling (0 disables)")
	record := flag.Bool("record", false, "Record the document in the recent files database")
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() != 1 {
		usage()
		os.Exit(2)
	}
	if err := run(serverConfig, flag.Arg(0), cliOptions{
		pages:     *pagesFlag,
		scale:     *scale,
		outDir:    *outDir,
		format:    *format,
		password:  *password,
		backend:   *backend,
		info:      *info,
		thumbnail: *thumbnail,
		sharpen:   *sharpen,
		record:    *record,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "pdfbitmap: %v\n", err)
		if errors.Is(err, context.Canceled) {
			os.Exit(130)
		}
		os.Exit(1)
	}
}

type cliOptions struct {
	pages     string
	scale     float64
	outDir    string
	format    string
	password  string
	backend   string
	info      bool
	thumbnail int
	sharpen   float64
	record    bool
}

func run(serverConfig config.ViewerConfig, path string, opts cliOptions) error {
	if !textutil.IsValidPath(opts.outDir) {
		return fmt.Errorf("invalid output directory %q", opts.outDir)
	}
	pages, err := textutil.ParseRange(opts.pages)
	if err != nil {
		return err
	}

	renderer, err := pdfrenderer.NewRenderer(opts.backend)
	if err != nil {
		return err
	}
	defer renderer.Close()

	bitmapEngine, err := engine.NewBitmapEngine(path, opts.password,
		engine.WithRenderer(renderer),
		engine.WithLogger(Logger),
		engine.WithCompletionBuffer(serverConfig.CompletionBuffer))
	if err != nil {
		if errors.Is(err, pdfrenderer.ErrPasswordRequired) {
			return fmt.Errorf("%s needs a password, use -password: %w", path, err)
		}
		return err
	}
	defer bitmapEngine.Dispose()
	Logger.Info("Document opened", "path", bitmapEngine.FilePath(), "pages", bitmapEngine.PageCount(), "backend", renderer.Name())

	if opts.record {
		recordRecentFile(serverConfig, bitmapEngine)
	}

	if opts.info {
		printInfo(bitmapEngine, opts.scale)
		return nil
	}

	// SIGINT cancels the export, pages already written are kept
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	result, err := engine.NewExporter(bitmapEngine).Export(ctx, engine.ExportOptions{
		Pages:     pages,
		Scale:     opts.scale,
		OutDir:    opts.outDir,
		Format:    opts.format,
		Thumbnail: opts.thumbnail,
		Sharpen:   opts.sharpen,
	}, func(done, total, pageNumber int) {
		fmt.Fprintf(os.Stderr, "\rRendered page %d (%d of %d)", pageNumber, done, total)
	})
	fmt.Fprintln(os.Stderr)
	if result != nil {
		printSummary(result)
	}
	if err != nil {
		return err
	}
	if len(result.Failed) > 0 {
		return fmt.Errorf("%d pages failed to render", len(result.Failed))
	}
	return nil
}

func printInfo(bitmapEngine *engine.BitmapEngine, scale float64) {
	fmt.Printf("%s\n", bitmapEngine.FilePath())
	fmt.Printf("Pages: %d  Encrypted: %t  Backend: %s\n", bitmapEngine.PageCount(), bitmapEngine.Encrypted(), bitmapEngine.RendererName())
	fmt.Println(strings.Repeat("-", 60))
	fmt.Printf("%5s %18s %8s %18s\n", "Page", "Size (pt)", "Rotate", fmt.Sprintf("Pixels @%g", scale))
	for _, page := range bitmapEngine.Pages() {
		w, h := page.PixelSize(scale)
		fmt.Printf("%5d %18s %8d %18s\n",
			page.PageNumber,
			fmt.Sprintf("%.1f x %.1f", page.OriginalSize.Width, page.OriginalSize.Height),
			page.Rotation,
			fmt.Sprintf("%d x %d", w, h))
	}
}

func printSummary(result *engine.ExportResult) {
	fmt.Printf("Wrote %d files (%s)\n", len(result.Files), textutil.FormatByteSize(result.Bytes))
	if len(result.Failed) > 0 {
		failed := make([]string, len(result.Failed))
		for i, pageNumber := range result.Failed {
			failed[i] = fmt.Sprint(pageNumber)
		}
		fmt.Printf("Failed pages: %s\n", strings.Join(failed, ", "))
	}
}

// recordRecentFile is best effort, the export goes ahead without a database
func recordRecentFile(serverConfig config.ViewerConfig, bitmapEngine *engine.BitmapEngine) {
	repo, err := database.NewRepository(serverConfig)
	if err != nil {
		Logger.Warn("Recent files database unavailable", "error", err)
		return
	}
	defer repo.Close()

	file, err := database.NewRecentFile(bitmapEngine.FilePath(), bitmapEngine.PageCount(), bitmapEngine.Encrypted())
	if err != nil {
		Logger.Warn("Unable to describe recent file", "error", err)
		return
	}
	if _, err := repo.TouchRecentFile(context.Background(), file); err != nil {
		Logger.Warn("Unable to record recent file", "path", file.Path, "error", err)
	}
}
