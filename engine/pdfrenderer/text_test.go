package pdfrenderer

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/drummonds/pdfbitmap/internal/testpdf"
)

func TestExtractTextPageRange(t *testing.T) {
	path := writeFixture(t, testpdf.Letter, testpdf.Letter)

	if _, err := ExtractText(path, "", 1); err != nil {
		t.Errorf("Expected page 1 to extract, got %v", err)
	}

	_, err := ExtractText(path, "", 3)
	var notFound *PageNotFoundError
	if !errors.As(err, &notFound) {
		t.Errorf("Expected PageNotFoundError, got %v", err)
	}
}

func TestExtractTextMissingFile(t *testing.T) {
	_, err := ExtractText(filepath.Join(t.TempDir(), "missing.pdf"), "", 1)
	var loadErr *DocumentLoadError
	if !errors.As(err, &loadErr) {
		t.Errorf("Expected DocumentLoadError, got %v", err)
	}
}
