package pdfrenderer

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/drummonds/pdfbitmap/internal/testpdf"
)

func writeFixture(t *testing.T, pages ...testpdf.Page) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fixture.pdf")
	if err := testpdf.Write(path, pages...); err != nil {
		t.Fatalf("Failed to write fixture: %v", err)
	}
	return path
}

func TestInspectGeometry(t *testing.T) {
	path := writeFixture(t,
		testpdf.Letter,
		testpdf.Page{Width: 595, Height: 842, Rotate: 90},
		testpdf.Page{Width: 400, Height: 300, Rotate: 180},
		testpdf.Page{Width: 612, Height: 792, Rotate: -90, CropBox: []float64{0, 0, 300, 500}},
	)

	info, err := inspect(path, "")
	if err != nil {
		t.Fatalf("Failed to inspect fixture: %v", err)
	}
	if len(info.pages) != 4 {
		t.Fatalf("Expected 4 pages, got %d", len(info.pages))
	}

	expected := []Geometry{
		{Width: 612, Height: 792, Rotation: 0},
		{Width: 595, Height: 842, Rotation: 90},
		{Width: 400, Height: 300, Rotation: 180},
		{Width: 300, Height: 500, Rotation: 270},
	}
	for i, want := range expected {
		got, err := info.geometry(i + 1)
		if err != nil {
			t.Fatalf("geometry(%d): %v", i+1, err)
		}
		if got != want {
			t.Errorf("page %d: expected %+v, got %+v", i+1, want, got)
		}
	}

	_, err = info.geometry(5)
	var notFound *PageNotFoundError
	if !errors.As(err, &notFound) {
		t.Errorf("Expected PageNotFoundError, got %v", err)
	}
	_, err = info.geometry(0)
	if !errors.As(err, &notFound) {
		t.Errorf("Expected PageNotFoundError for page 0, got %v", err)
	}
}

func TestInspectMissingFile(t *testing.T) {
	_, err := inspect(filepath.Join(t.TempDir(), "missing.pdf"), "")
	var loadErr *DocumentLoadError
	if !errors.As(err, &loadErr) {
		t.Fatalf("Expected DocumentLoadError, got %v", err)
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Expected wrapped os.ErrNotExist, got %v", err)
	}
}

func TestInspectNotPDF(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.pdf")
	if err := os.WriteFile(path, []byte("just some text, not a document"), 0644); err != nil {
		t.Fatalf("Failed to write file: %v", err)
	}
	_, err := inspect(path, "")
	if !errors.Is(err, ErrNotPDF) {
		t.Errorf("Expected ErrNotPDF, got %v", err)
	}
}

func TestInspectPasswords(t *testing.T) {
	dir := t.TempDir()
	plain := filepath.Join(dir, "plain.pdf")
	locked := filepath.Join(dir, "locked.pdf")
	if err := testpdf.Write(plain, testpdf.Letter, testpdf.Letter, testpdf.Letter); err != nil {
		t.Fatalf("Failed to write fixture: %v", err)
	}
	if err := testpdf.Encrypt(plain, locked, "user", "owner"); err != nil {
		t.Fatalf("Failed to encrypt fixture: %v", err)
	}

	t.Run("user password", func(t *testing.T) {
		info, err := inspect(locked, "user")
		if err != nil {
			t.Fatalf("Expected user password to open document: %v", err)
		}
		if len(info.pages) != 3 {
			t.Errorf("Expected 3 pages, got %d", len(info.pages))
		}
	})

	t.Run("owner password", func(t *testing.T) {
		info, err := inspect(locked, "owner")
		if err != nil {
			t.Fatalf("Expected owner password to open document: %v", err)
		}
		if len(info.pages) != 3 {
			t.Errorf("Expected 3 pages, got %d", len(info.pages))
		}
	})

	t.Run("wrong password", func(t *testing.T) {
		_, err := inspect(locked, "nope")
		var loadErr *DocumentLoadError
		if !errors.As(err, &loadErr) {
			t.Fatalf("Expected DocumentLoadError, got %v", err)
		}
	})

	t.Run("missing password", func(t *testing.T) {
		_, err := inspect(locked, "")
		var loadErr *DocumentLoadError
		if !errors.As(err, &loadErr) {
			t.Fatalf("Expected DocumentLoadError, got %v", err)
		}
	})
}
