package pdfrenderer

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrPasswordRequired is wrapped by DocumentLoadError when the document is
	// encrypted and the supplied password (if any) grants no read access
	ErrPasswordRequired = errors.New("password required or incorrect password")
	// ErrNotPDF is wrapped by DocumentLoadError when the file is not a PDF
	ErrNotPDF = errors.New("file is not a valid PDF document")
)

// DocumentLoadError is returned when a document cannot be opened
type DocumentLoadError struct {
	Path string
	Err  error
}

func (e *DocumentLoadError) Error() string {
	return fmt.Sprintf("unable to open PDF document %q: %v", e.Path, e.Err)
}

func (e *DocumentLoadError) Unwrap() error { return e.Err }

// PageNotFoundError is returned for page numbers outside 1..Count
type PageNotFoundError struct {
	Page  int
	Count int
}

func (e *PageNotFoundError) Error() string {
	return fmt.Sprintf("page %d not found (document has %d pages)", e.Page, e.Count)
}

// RasterizationError is returned when a single page could not be decoded into pixels.
// It does not invalidate the document or any other page.
type RasterizationError struct {
	Page int
	Err  error
}

func (e *RasterizationError) Error() string {
	return fmt.Sprintf("unable to render page %d: %v", e.Page, e.Err)
}

func (e *RasterizationError) Unwrap() error { return e.Err }

// loadError classifies a decoder failure while opening path
func loadError(path string, err error) *DocumentLoadError {
	if errors.Is(err, ErrPasswordRequired) || errors.Is(err, ErrNotPDF) {
		return &DocumentLoadError{Path: path, Err: err}
	}
	// decoders only report password problems through their messages
	if strings.Contains(strings.ToLower(err.Error()), "password") {
		return &DocumentLoadError{Path: path, Err: errors.Join(ErrPasswordRequired, err)}
	}
	return &DocumentLoadError{Path: path, Err: err}
}

func checkPage(pageNumber, count int) error {
	if pageNumber < 1 || pageNumber > count {
		return &PageNotFoundError{Page: pageNumber, Count: count}
	}
	return nil
}
