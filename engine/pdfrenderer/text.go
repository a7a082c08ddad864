package pdfrenderer

import (
	"fmt"
	"os"

	"github.com/ledongthuc/pdf"
)

// ExtractText returns the plain text of one page
func ExtractText(path, password string, pageNumber int) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", &DocumentLoadError{Path: path, Err: err}
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return "", &DocumentLoadError{Path: path, Err: err}
	}

	// the reader keeps asking until it gets an empty string
	tried := false
	pdfReader, err := pdf.NewReaderEncrypted(f, stat.Size(), func() string {
		if tried {
			return ""
		}
		tried = true
		return password
	})
	if err != nil {
		return "", loadError(path, fmt.Errorf("failed to create PDF reader: %w", err))
	}

	if err := checkPage(pageNumber, pdfReader.NumPage()); err != nil {
		return "", err
	}
	page := pdfReader.Page(pageNumber)
	if page.V.IsNull() {
		return "", nil
	}
	text, err := page.GetPlainText(nil)
	if err != nil {
		return "", fmt.Errorf("failed to extract text from page %d: %w", pageNumber, err)
	}
	return text, nil
}
