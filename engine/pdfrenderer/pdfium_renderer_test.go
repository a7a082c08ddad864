package pdfrenderer

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/drummonds/pdfbitmap/internal/testpdf"
)

func newTestPDFium(t *testing.T) *PDFiumRenderer {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping PDFium WebAssembly test in short mode")
	}
	renderer, err := NewPDFiumRenderer()
	if err != nil {
		t.Fatalf("Failed to create PDFium renderer: %v", err)
	}
	t.Cleanup(func() { renderer.Close() })
	return renderer
}

func TestPDFiumRasterizeSize(t *testing.T) {
	renderer := newTestPDFium(t)
	path := writeFixture(t,
		testpdf.Page{Width: 200, Height: 100},
		testpdf.Page{Width: 200, Height: 100, Rotate: 90},
	)

	doc, err := renderer.Open(path, "")
	if err != nil {
		t.Fatalf("Failed to open fixture: %v", err)
	}
	defer doc.Close()

	if doc.PageCount() != 2 {
		t.Fatalf("Expected 2 pages, got %d", doc.PageCount())
	}

	tests := []struct {
		page          int
		scale         float64
		width, height int
	}{
		{1, 1, 200, 100},
		{1, 1.5, 300, 150},
		{2, 1, 100, 200},
		{2, 0.33, 33, 66},
	}
	for _, tt := range tests {
		img, err := doc.Rasterize(context.Background(), tt.page, tt.scale)
		if err != nil {
			t.Fatalf("Rasterize(%d, %v): %v", tt.page, tt.scale, err)
		}
		if img.Bounds().Dx() != tt.width || img.Bounds().Dy() != tt.height {
			t.Errorf("page %d scale %v: expected %dx%d, got %v", tt.page, tt.scale, tt.width, tt.height, img.Bounds())
		}
	}

	_, err = doc.Rasterize(context.Background(), 3, 1)
	var notFound *PageNotFoundError
	if !errors.As(err, &notFound) {
		t.Errorf("Expected PageNotFoundError, got %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := doc.Rasterize(ctx, 1, 1); !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}

	if err := doc.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}
	if err := doc.Close(); err != nil {
		t.Errorf("Second Close failed: %v", err)
	}
}

func TestPDFiumPasswords(t *testing.T) {
	renderer := newTestPDFium(t)
	dir := t.TempDir()
	plain := filepath.Join(dir, "plain.pdf")
	locked := filepath.Join(dir, "locked.pdf")
	if err := testpdf.Write(plain, testpdf.Letter, testpdf.Letter); err != nil {
		t.Fatalf("Failed to write fixture: %v", err)
	}
	if err := testpdf.Encrypt(plain, locked, "user", "owner"); err != nil {
		t.Fatalf("Failed to encrypt fixture: %v", err)
	}

	for _, password := range []string{"user", "owner"} {
		doc, err := renderer.Open(locked, password)
		if err != nil {
			t.Fatalf("Expected %q to open document: %v", password, err)
		}
		if doc.PageCount() != 2 {
			t.Errorf("Expected 2 pages, got %d", doc.PageCount())
		}
		if !doc.Encrypted() {
			t.Error("Expected document to report encryption")
		}
		doc.Close()
	}

	_, err := renderer.Open(locked, "wrong")
	var loadErr *DocumentLoadError
	if !errors.As(err, &loadErr) {
		t.Errorf("Expected DocumentLoadError, got %v", err)
	}
}
