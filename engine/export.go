package engine

import (
	"context"
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/disintegration/imaging"
	"github.com/drummonds/pdfbitmap/textutil"
	"github.com/oklog/ulid/v2"
)

var (
	// ErrBusy is returned when an export is started while the engine still has
	// asynchronous work outstanding
	ErrBusy = errors.New("engine has asynchronous work in progress")
	// ErrCancelled is returned by Export when the engine's queued renders are
	// cancelled while the export waits for them
	ErrCancelled = errors.New("page renders were cancelled")
)

// ExportOptions selects the pages to export and how to write them
type ExportOptions struct {
	Pages     []int   // 1-based page numbers, every page when empty
	Scale     float64 // 1 when zero
	OutDir    string
	Format    string  // file extension: png, jpg, gif, tif or bmp
	Thumbnail int     // fit each image inside Thumbnail x Thumbnail pixels, 0 keeps the full size
	Sharpen   float64 // imaging sharpen sigma, 0 disables
	BaseName  string  // file name prefix, the document name when empty
}

// ExportResult summarises an export
type ExportResult struct {
	Files  []string
	Bytes  int64
	Failed []int
}

// ExportProgress is called after every page, successful or not
type ExportProgress func(done, total, pageNumber int)

// Exporter writes rendered pages of an open document to image files. One
// export runs at a time per exporter.
type Exporter struct {
	engine *BitmapEngine
	mu     sync.Mutex
}

// NewExporter creates an exporter for engine
func NewExporter(engine *BitmapEngine) *Exporter {
	return &Exporter{engine: engine}
}

// ExportFormat maps a user supplied format onto a file extension imaging can
// encode
func ExportFormat(format string) (string, error) {
	ext := strings.ToLower(strings.TrimPrefix(strings.TrimSpace(format), "."))
	switch ext {
	case "":
		ext = "png"
	case "jpeg":
		ext = "jpg"
	case "tiff":
		ext = "tif"
	}
	if _, err := imaging.FormatFromExtension(ext); err != nil {
		return "", fmt.Errorf("unsupported export format %q: %w", format, err)
	}
	return ext, nil
}

// ExportFileName returns the normalized file name for one exported page
func ExportFileName(baseName string, pageNumber int, ext string) string {
	return textutil.NormalizeFilename(fmt.Sprintf("%s_p%03d.%s", baseName, pageNumber, ext), '_')
}

// Export queues every selected page on the engine's worker and writes each
// completion as it arrives. Pages that fail to render or write are listed in
// Failed and do not stop the export. When ctx is cancelled the queued work is
// cancelled, the engine drained and ctx.Err returned with the partial result.
// A Cancel on the engine ends the export with ErrCancelled, a Close with
// ErrClosed.
func (x *Exporter) Export(ctx context.Context, opts ExportOptions, progress ExportProgress) (*ExportResult, error) {
	if !x.mu.TryLock() {
		return nil, ErrBusy
	}
	defer x.mu.Unlock()
	if x.engine.IsBusy() {
		return nil, ErrBusy
	}

	ext, err := ExportFormat(opts.Format)
	if err != nil {
		return nil, err
	}
	if opts.Scale == 0 {
		opts.Scale = 1
	}
	pages := opts.Pages
	if len(pages) == 0 {
		for pageNumber := 1; pageNumber <= x.engine.PageCount(); pageNumber++ {
			pages = append(pages, pageNumber)
		}
	}
	for _, pageNumber := range pages {
		if _, err := x.engine.GetPage(pageNumber); err != nil {
			return nil, err
		}
	}
	baseName := opts.BaseName
	if baseName == "" {
		name := filepath.Base(x.engine.FilePath())
		baseName = strings.TrimSuffix(name, filepath.Ext(name))
	}
	if err := os.MkdirAll(opts.OutDir, 0755); err != nil {
		return nil, fmt.Errorf("unable to create export folder %s: %w", opts.OutDir, err)
	}

	// tasks submitted in this generation never publish once it is cancelled
	gen := x.engine.generation()
	if gen == nil {
		return nil, ErrClosed
	}
	tasks := make(map[ulid.ULID]int, len(pages))
	for _, pageNumber := range pages {
		id, err := x.engine.CreateImageAsync(pageNumber, opts.Scale)
		if err != nil {
			x.engine.Cancel()
			x.drain()
			return nil, err
		}
		tasks[id] = pageNumber
	}
	x.engine.logger.Info("Exporting pages", "path", x.engine.FilePath(), "pages", len(pages), "scale", opts.Scale, "format", ext, "outDir", opts.OutDir)

	result := &ExportResult{}
	for done := 0; done < len(tasks); {
		var completion Completion
		select {
		case <-ctx.Done():
			x.engine.Cancel()
			x.drain()
			x.engine.logger.Warn("Export cancelled", "path", x.engine.FilePath(), "done", done, "total", len(tasks))
			return result, ctx.Err()
		case <-gen.Done():
			x.drain()
			if !x.engine.IsOpen() {
				return result, ErrClosed
			}
			x.engine.logger.Warn("Export stopped by cancelled renders", "path", x.engine.FilePath(), "done", done, "total", len(tasks))
			return result, ErrCancelled
		case completion = <-x.engine.Completions():
		}

		pageNumber, ok := tasks[completion.TaskID]
		if !ok {
			// left over from work submitted before this export
			continue
		}
		done++

		if completion.Err != nil {
			result.Failed = append(result.Failed, pageNumber)
		} else {
			fileName := filepath.Join(opts.OutDir, ExportFileName(baseName, pageNumber, ext))
			size, err := writePage(completion.Image, fileName, opts)
			if err != nil {
				x.engine.logger.Error("Unable to write exported page", "page", pageNumber, "file", fileName, "error", err)
				result.Failed = append(result.Failed, pageNumber)
			} else {
				result.Files = append(result.Files, fileName)
				result.Bytes += size
			}
		}
		if progress != nil {
			progress(done, len(tasks), pageNumber)
		}
	}

	x.engine.logger.Info("Export finished", "path", x.engine.FilePath(), "files", len(result.Files), "failed", len(result.Failed), "size", textutil.FormatByteSize(result.Bytes))
	return result, nil
}

// drain discards completions until the worker has nothing left in flight
func (x *Exporter) drain() {
	completions := x.engine.Completions()
	for x.engine.IsBusy() {
		select {
		case <-completions:
		case <-time.After(10 * time.Millisecond):
		}
	}
	for {
		select {
		case <-completions:
		default:
			return
		}
	}
}

func writePage(img *image.NRGBA, fileName string, opts ExportOptions) (int64, error) {
	var out image.Image = img
	if opts.Thumbnail > 0 {
		out = imaging.Fit(out, opts.Thumbnail, opts.Thumbnail, imaging.Lanczos)
	}
	if opts.Sharpen > 0 {
		out = imaging.Sharpen(out, opts.Sharpen)
	}
	if err := imaging.Save(out, fileName, imaging.JPEGQuality(90)); err != nil {
		return 0, err
	}
	info, err := os.Stat(fileName)
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}
