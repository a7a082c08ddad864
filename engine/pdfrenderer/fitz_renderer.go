package pdfrenderer

import (
	"context"
	"errors"
	"fmt"
	"image"

	"github.com/gen2brain/go-fitz"
)

// FitzRenderer implements PDF rendering using go-fitz (requires CGo and MuPDF).
// MuPDF cannot be handed a password through go-fitz, so encrypted documents that
// need one fail to open with ErrPasswordRequired.
type FitzRenderer struct {
}

// NewFitzRenderer creates a new Fitz-based PDF renderer
func NewFitzRenderer() (*FitzRenderer, error) {
	return &FitzRenderer{}, nil
}

// Name returns the backend name
func (r *FitzRenderer) Name() string { return BackendFitz }

// Open validates the document with pdfcpu and opens it with MuPDF
func (r *FitzRenderer) Open(path, password string) (Document, error) {
	info, err := inspect(path, password)
	if err != nil {
		return nil, err
	}

	doc, err := fitz.New(path)
	if err != nil {
		if errors.Is(err, fitz.ErrNeedsPassword) {
			return nil, &DocumentLoadError{Path: path, Err: errors.Join(ErrPasswordRequired, err)}
		}
		return nil, loadError(path, err)
	}
	if doc.NumPage() != len(info.pages) {
		doc.Close()
		return nil, &DocumentLoadError{Path: path, Err: fmt.Errorf("page count mismatch: mupdf %d, page tree %d", doc.NumPage(), len(info.pages))}
	}

	return &fitzDocument{doc: doc, info: info}, nil
}

// Close cleans up resources (no-op for Fitz renderer as each document owns its context)
func (r *FitzRenderer) Close() error {
	return nil
}

type fitzDocument struct {
	doc  *fitz.Document
	info *inspection
}

func (d *fitzDocument) PageCount() int { return len(d.info.pages) }

func (d *fitzDocument) Encrypted() bool { return d.info.encrypted }

func (d *fitzDocument) PageGeometry(pageNumber int) (Geometry, error) {
	return d.info.geometry(pageNumber)
}

func (d *fitzDocument) Rasterize(ctx context.Context, pageNumber int, scale float64) (*image.NRGBA, error) {
	w, h, err := rasterTarget(ctx, d.info.pages, pageNumber, scale)
	if err != nil {
		return nil, err
	}
	if d.doc == nil {
		return nil, &RasterizationError{Page: pageNumber, Err: fmt.Errorf("document is closed")}
	}

	// MuPDF renders at 72 DPI for scale 1
	img, err := d.doc.ImageDPI(pageNumber-1, 72*scale)
	if err != nil {
		return nil, &RasterizationError{Page: pageNumber, Err: err}
	}
	return conform(img, w, h), nil
}

func (d *fitzDocument) Close() error {
	if d.doc == nil {
		return nil
	}
	err := d.doc.Close()
	d.doc = nil
	return err
}
