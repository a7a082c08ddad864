package pdfrenderer

import (
	"context"
	"fmt"
	"image"
	"os"
	"sync"
	"time"

	"github.com/klippa-app/go-pdfium"
	"github.com/klippa-app/go-pdfium/references"
	"github.com/klippa-app/go-pdfium/requests"
	"github.com/klippa-app/go-pdfium/webassembly"
)

// PDFiumRenderer implements PDF rendering using go-pdfium with WebAssembly (pure Go, no CGo)
type PDFiumRenderer struct {
	// one wasm instance serves every document opened through this renderer
	mu       sync.Mutex
	pool     pdfium.Pool
	instance pdfium.Pdfium
}

// NewPDFiumRenderer creates a new PDFium-based PDF renderer using WebAssembly
func NewPDFiumRenderer() (*PDFiumRenderer, error) {
	// Initialize WebAssembly pool with minimal configuration
	// For single-threaded usage, we keep it simple
	pool, err := webassembly.Init(webassembly.Config{
		MinIdle:  1, // Minimum idle workers
		MaxIdle:  1, // Maximum idle workers
		MaxTotal: 1, // Total worker limit
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize PDFium WebAssembly: %w", err)
	}

	// Get a PDFium instance from the pool
	instance, err := pool.GetInstance(time.Second * 30)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to get PDFium instance: %w", err)
	}

	return &PDFiumRenderer{
		pool:     pool,
		instance: instance,
	}, nil
}

// Name returns the backend name
func (r *PDFiumRenderer) Name() string { return BackendPDFium }

// Open validates the document with pdfcpu and loads it into PDFium
func (r *PDFiumRenderer) Open(path, password string) (Document, error) {
	info, err := inspect(path, password)
	if err != nil {
		return nil, err
	}

	pdfBytes, err := os.ReadFile(path)
	if err != nil {
		return nil, &DocumentLoadError{Path: path, Err: err}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.instance == nil {
		return nil, &DocumentLoadError{Path: path, Err: fmt.Errorf("renderer is closed")}
	}

	request := &requests.OpenDocument{File: &pdfBytes}
	if password != "" {
		request.Password = &password
	}
	doc, err := r.instance.OpenDocument(request)
	if err != nil {
		return nil, loadError(path, err)
	}

	return &pdfiumDocument{
		renderer: r,
		handle:   doc.Document,
		info:     info,
	}, nil
}

// Close cleans up resources used by the PDFium renderer
func (r *PDFiumRenderer) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.instance != nil {
		r.instance.Close()
		r.instance = nil
	}
	if r.pool != nil {
		r.pool.Close()
		r.pool = nil
	}
	return nil
}

type pdfiumDocument struct {
	renderer *PDFiumRenderer
	handle   references.FPDF_DOCUMENT
	info     *inspection
	closed   bool
}

func (d *pdfiumDocument) PageCount() int { return len(d.info.pages) }

func (d *pdfiumDocument) Encrypted() bool { return d.info.encrypted }

func (d *pdfiumDocument) PageGeometry(pageNumber int) (Geometry, error) {
	return d.info.geometry(pageNumber)
}

func (d *pdfiumDocument) Rasterize(ctx context.Context, pageNumber int, scale float64) (*image.NRGBA, error) {
	w, h, err := rasterTarget(ctx, d.info.pages, pageNumber, scale)
	if err != nil {
		return nil, err
	}

	d.renderer.mu.Lock()
	defer d.renderer.mu.Unlock()
	if d.closed || d.renderer.instance == nil {
		return nil, &RasterizationError{Page: pageNumber, Err: fmt.Errorf("document is closed")}
	}

	pageRender, err := d.renderer.instance.RenderPageInPixels(&requests.RenderPageInPixels{
		Width:  w,
		Height: h,
		Page: requests.Page{
			ByIndex: &requests.PageByIndex{
				Document: d.handle,
				Index:    pageNumber - 1,
			},
		},
	})
	if err != nil {
		return nil, &RasterizationError{Page: pageNumber, Err: err}
	}
	// the bitmap lives in wasm memory until Cleanup, conform copies it out first
	defer pageRender.Cleanup()
	return conform(pageRender.Result.Image, w, h), nil
}

func (d *pdfiumDocument) Close() error {
	d.renderer.mu.Lock()
	defer d.renderer.mu.Unlock()
	if d.closed {
		return nil
	}
	d.closed = true
	if d.renderer.instance == nil {
		return nil
	}
	_, err := d.renderer.instance.FPDF_CloseDocument(&requests.FPDF_CloseDocument{
		Document: d.handle,
	})
	if err != nil {
		return fmt.Errorf("unable to close PDF document: %w", err)
	}
	return nil
}
