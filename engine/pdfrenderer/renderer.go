package pdfrenderer

import (
	"context"
	"fmt"
	"image"
	"math"

	"github.com/disintegration/imaging"
)

// Backend names accepted by NewRenderer
const (
	BackendPDFium = "pdfium"
	BackendFitz   = "fitz"
)

// Geometry is the raw page geometry as stored in the document
type Geometry struct {
	Width    float64 // points
	Height   float64 // points
	Rotation int     // one of 0, 90, 180, 270
}

// ViewSize returns the page size with rotation applied
func (g Geometry) ViewSize() (float64, float64) {
	if g.Rotation == 90 || g.Rotation == 270 {
		return g.Height, g.Width
	}
	return g.Width, g.Height
}

// PixelSize returns the raster dimensions for the page at scale, rounded down
func (g Geometry) PixelSize(scale float64) (int, int) {
	w, h := g.ViewSize()
	return FloorPixels(w * scale), FloorPixels(h * scale)
}

// FloorPixels rounds a scaled length down to whole pixels. The epsilon keeps
// products like 0.7*10 from landing one pixel short.
func FloorPixels(v float64) int {
	return int(math.Floor(v + 1e-9))
}

// Renderer opens documents for one decoding backend
type Renderer interface {
	// Open opens path, using password when the document is encrypted.
	// Both owner and user passwords are accepted.
	Open(path, password string) (Document, error)

	// Name returns the backend name
	Name() string

	// Close cleans up any resources used by the renderer
	Close() error
}

// Document is an open document handle. Implementations are not required to be
// safe for concurrent use; callers serialize access.
type Document interface {
	PageCount() int
	PageGeometry(pageNumber int) (Geometry, error)
	// Rasterize renders the page at scale. The result is exactly
	// Geometry.PixelSize(scale) pixels.
	Rasterize(ctx context.Context, pageNumber int, scale float64) (*image.NRGBA, error)
	Encrypted() bool
	Close() error
}

// NewRenderer creates a renderer for the named backend, PDFium when empty
func NewRenderer(backend string) (Renderer, error) {
	switch backend {
	case "", BackendPDFium:
		return NewPDFiumRenderer()
	case BackendFitz:
		return NewFitzRenderer()
	default:
		return nil, fmt.Errorf("unknown render backend %q", backend)
	}
}

// conform copies img into a caller-owned buffer of exactly w x h pixels
func conform(img image.Image, w, h int) *image.NRGBA {
	bounds := img.Bounds()
	if bounds.Dx() == w && bounds.Dy() == h {
		return imaging.Clone(img)
	}
	return imaging.Resize(img, w, h, imaging.Lanczos)
}

// rasterTarget validates the request and returns the output dimensions
func rasterTarget(ctx context.Context, geo []Geometry, pageNumber int, scale float64) (int, int, error) {
	if err := checkPage(pageNumber, len(geo)); err != nil {
		return 0, 0, err
	}
	if err := ctx.Err(); err != nil {
		return 0, 0, err
	}
	w, h := geo[pageNumber-1].PixelSize(scale)
	if w < 1 || h < 1 {
		return 0, 0, &RasterizationError{Page: pageNumber, Err: fmt.Errorf("scale %g yields an empty %dx%d raster", scale, w, h)}
	}
	return w, h, nil
}
