package engine

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/disintegration/imaging"
	"github.com/drummonds/pdfbitmap/engine/pdfrenderer"
)

func TestExportWritesSelectedPages(t *testing.T) {
	renderer := newFakeRenderer()
	e := openFakeEngine(t, renderer)
	outDir := filepath.Join(t.TempDir(), "out")

	var progress []int
	result, err := NewExporter(e).Export(context.Background(), ExportOptions{
		Pages:  []int{1, 3},
		Scale:  0.5,
		OutDir: outDir,
		Format: "PNG",
	}, func(done, total, pageNumber int) {
		if total != 2 {
			t.Errorf("Expected total 2, got %d", total)
		}
		progress = append(progress, done)
	})
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if len(result.Files) != 2 || len(result.Failed) != 0 {
		t.Fatalf("Expected 2 files and no failures, got %+v", result)
	}
	if len(progress) != 2 || progress[1] != 2 {
		t.Errorf("Expected progress 1, 2 got %v", progress)
	}

	var total int64
	for pageNumber, wantW := range map[int]int{1: 306, 3: 100} {
		fileName := filepath.Join(outDir, ExportFileName("fake", pageNumber, "png"))
		img, err := imaging.Open(fileName)
		if err != nil {
			t.Fatalf("Expected %s to be written: %v", fileName, err)
		}
		if img.Bounds().Dx() != wantW {
			t.Errorf("Page %d: expected width %d, got %d", pageNumber, wantW, img.Bounds().Dx())
		}
		info, _ := os.Stat(fileName)
		total += info.Size()
	}
	if result.Bytes != total {
		t.Errorf("Expected %d bytes, got %d", total, result.Bytes)
	}
	if e.IsBusy() {
		t.Error("Expected idle engine after export")
	}
}

func TestExportThumbnailsEveryPage(t *testing.T) {
	e := openFakeEngine(t, newFakeRenderer())
	outDir := t.TempDir()

	result, err := NewExporter(e).Export(context.Background(), ExportOptions{
		OutDir:    outDir,
		Format:    "jpeg",
		Thumbnail: 64,
		Sharpen:   0.5,
		BaseName:  "thumb: cover",
	}, nil)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if len(result.Files) != 3 {
		t.Fatalf("Expected every page exported, got %d files", len(result.Files))
	}
	for _, fileName := range result.Files {
		if filepath.Ext(fileName) != ".jpg" {
			t.Errorf("Expected jpg output, got %s", fileName)
		}
		if base := filepath.Base(fileName); base[:11] != "thumb_ cove" {
			t.Errorf("Expected normalized file name, got %s", base)
		}
		img, err := imaging.Open(fileName)
		if err != nil {
			t.Fatal(err)
		}
		if b := img.Bounds(); b.Dx() > 64 || b.Dy() > 64 {
			t.Errorf("Expected thumbnail within 64x64, got %dx%d", b.Dx(), b.Dy())
		}
	}
}

func TestExportRecordsFailedPages(t *testing.T) {
	renderer := newFakeRenderer()
	renderer.failPage = 2
	e := openFakeEngine(t, renderer)

	result, err := NewExporter(e).Export(context.Background(), ExportOptions{Pages: []int{1, 2, 3}, OutDir: t.TempDir()}, nil)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if len(result.Failed) != 1 || result.Failed[0] != 2 {
		t.Errorf("Expected page 2 to fail, got %v", result.Failed)
	}
	if len(result.Files) != 2 {
		t.Errorf("Expected 2 files, got %d", len(result.Files))
	}
}

func TestExportValidation(t *testing.T) {
	e := openFakeEngine(t, newFakeRenderer())
	exporter := NewExporter(e)

	if _, err := exporter.Export(context.Background(), ExportOptions{Format: "webp", OutDir: t.TempDir()}, nil); err == nil {
		t.Error("Expected an unsupported format error")
	}
	_, err := exporter.Export(context.Background(), ExportOptions{Pages: []int{9}, OutDir: t.TempDir()}, nil)
	var notFound *pdfrenderer.PageNotFoundError
	if !errors.As(err, &notFound) {
		t.Errorf("Expected PageNotFoundError, got %v", err)
	}
	if _, err := exporter.Export(context.Background(), ExportOptions{Scale: -1, OutDir: t.TempDir()}, nil); !errors.Is(err, ErrInvalidScale) {
		t.Errorf("Expected ErrInvalidScale, got %v", err)
	}
	if e.IsBusy() {
		t.Error("Expected failed exports to leave nothing queued")
	}
}

func TestExportCancel(t *testing.T) {
	renderer := newFakeRenderer()
	renderer.gate = make(chan struct{})
	e := openFakeEngine(t, renderer)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-renderer.started
		cancel()
	}()

	result, err := NewExporter(e).Export(ctx, ExportOptions{Pages: []int{1, 2, 3}, OutDir: t.TempDir()}, nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Expected context.Canceled, got %v", err)
	}
	if len(result.Files) != 0 {
		t.Errorf("Expected no files, got %v", result.Files)
	}
	if e.IsBusy() {
		t.Errorf("Expected drained engine, %d pending", e.Pending())
	}
}

func TestExportStopsOnEngineCancel(t *testing.T) {
	renderer := newFakeRenderer()
	renderer.gate = make(chan struct{})
	e := openFakeEngine(t, renderer)
	exporter := NewExporter(e)

	go func() {
		<-renderer.started
		e.Cancel()
	}()

	finished := make(chan error, 1)
	outDir := t.TempDir()
	go func() {
		_, err := exporter.Export(context.Background(), ExportOptions{Pages: []int{1, 2, 3}, OutDir: outDir}, nil)
		finished <- err
	}()

	select {
	case err := <-finished:
		if !errors.Is(err, ErrCancelled) {
			t.Fatalf("Expected ErrCancelled, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("Export still waiting after Cancel, busy=%v pending=%d", e.IsBusy(), e.Pending())
	}
	if e.IsBusy() {
		t.Errorf("Expected drained engine, %d pending", e.Pending())
	}

	// the exporter is free for the next run
	close(renderer.gate)
	result, err := exporter.Export(context.Background(), ExportOptions{Pages: []int{1, 2}, OutDir: t.TempDir()}, nil)
	if err != nil {
		t.Fatalf("Export after cancel: %v", err)
	}
	if len(result.Files) != 2 {
		t.Errorf("Expected 2 files, got %v", result.Files)
	}
}

func TestExportStopsOnClose(t *testing.T) {
	renderer := newFakeRenderer()
	renderer.gate = make(chan struct{})
	e := openFakeEngine(t, renderer)

	go func() {
		<-renderer.started
		e.Close()
	}()

	finished := make(chan error, 1)
	outDir := t.TempDir()
	go func() {
		_, err := NewExporter(e).Export(context.Background(), ExportOptions{Pages: []int{1, 2, 3}, OutDir: outDir}, nil)
		finished <- err
	}()

	select {
	case err := <-finished:
		if !errors.Is(err, ErrClosed) {
			t.Errorf("Expected ErrClosed, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Export still waiting after Close")
	}
}

func TestExportBusy(t *testing.T) {
	renderer := newFakeRenderer()
	renderer.gate = make(chan struct{})
	e := openFakeEngine(t, renderer)

	if _, err := e.CreateImageAsync(1, 1); err != nil {
		t.Fatal(err)
	}
	if _, err := NewExporter(e).Export(context.Background(), ExportOptions{OutDir: t.TempDir()}, nil); !errors.Is(err, ErrBusy) {
		t.Errorf("Expected ErrBusy, got %v", err)
	}
	e.Cancel()
	close(renderer.gate)
	waitIdle(t, e)
}

func TestExportFormat(t *testing.T) {
	tests := map[string]string{
		"":     "png",
		"png":  "png",
		".JPG": "jpg",
		"jpeg": "jpg",
		"tiff": "tif",
		"gif":  "gif",
		"bmp":  "bmp",
	}
	for in, want := range tests {
		got, err := ExportFormat(in)
		if err != nil || got != want {
			t.Errorf("ExportFormat(%q) = %q, %v want %q", in, got, err, want)
		}
	}
	if _, err := ExportFormat("pdf"); err == nil {
		t.Error("Expected pdf to be rejected")
	}
}

func TestExportFileName(t *testing.T) {
	if got := ExportFileName("report", 7, "png"); got != "report_p007.png" {
		t.Errorf("Expected report_p007.png, got %s", got)
	}
	if got := ExportFileName(`a/b?c`, 12, "jpg"); got != "a_b_c_p012.jpg" {
		t.Errorf("Expected a_b_c_p012.jpg, got %s", got)
	}
}
