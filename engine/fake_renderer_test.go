package engine

import (
	"context"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/drummonds/pdfbitmap/engine/pdfrenderer"
	"github.com/drummonds/pdfbitmap/internal/testpdf"
)

// fakeRenderer stands in for a decoding backend. Rasterize blocks on gate
// (when set) so tests can hold work in flight.
type fakeRenderer struct {
	pages    []pdfrenderer.Geometry
	password string
	failPage int
	gate     chan struct{}
	started  chan int

	inFlight    atomic.Int32
	maxInFlight atomic.Int32

	mu       sync.Mutex
	opened   int
	closed   int
	rendered []int
}

func newFakeRenderer(pages ...pdfrenderer.Geometry) *fakeRenderer {
	if len(pages) == 0 {
		pages = []pdfrenderer.Geometry{
			{Width: 612, Height: 792},
			{Width: 612, Height: 792, Rotation: 90},
			{Width: 200, Height: 100},
		}
	}
	return &fakeRenderer{pages: pages, started: make(chan int, 64)}
}

func (r *fakeRenderer) Name() string { return "fake" }

func (r *fakeRenderer) Close() error { return nil }

func (r *fakeRenderer) Open(path, password string) (pdfrenderer.Document, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, &pdfrenderer.DocumentLoadError{Path: path, Err: err}
	}
	if r.password != "" && password != r.password {
		return nil, &pdfrenderer.DocumentLoadError{Path: path, Err: pdfrenderer.ErrPasswordRequired}
	}
	r.mu.Lock()
	r.opened++
	r.mu.Unlock()
	return &fakeDocument{renderer: r}, nil
}

func (r *fakeRenderer) closedCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

func (r *fakeRenderer) renderedPages() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int(nil), r.rendered...)
}

type fakeDocument struct {
	renderer *fakeRenderer
}

func (d *fakeDocument) PageCount() int { return len(d.renderer.pages) }

func (d *fakeDocument) Encrypted() bool { return d.renderer.password != "" }

func (d *fakeDocument) PageGeometry(pageNumber int) (pdfrenderer.Geometry, error) {
	if pageNumber < 1 || pageNumber > len(d.renderer.pages) {
		return pdfrenderer.Geometry{}, &pdfrenderer.PageNotFoundError{Page: pageNumber, Count: len(d.renderer.pages)}
	}
	return d.renderer.pages[pageNumber-1], nil
}

func (d *fakeDocument) Rasterize(ctx context.Context, pageNumber int, scale float64) (*image.NRGBA, error) {
	r := d.renderer
	n := r.inFlight.Add(1)
	defer r.inFlight.Add(-1)
	for {
		max := r.maxInFlight.Load()
		if n <= max || r.maxInFlight.CompareAndSwap(max, n) {
			break
		}
	}

	geo, err := d.PageGeometry(pageNumber)
	if err != nil {
		return nil, err
	}
	select {
	case r.started <- pageNumber:
	default:
	}
	if r.gate != nil {
		select {
		case <-r.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if pageNumber == r.failPage {
		return nil, &pdfrenderer.RasterizationError{Page: pageNumber, Err: fmt.Errorf("corrupt content stream")}
	}

	r.mu.Lock()
	r.rendered = append(r.rendered, pageNumber)
	r.mu.Unlock()
	w, h := geo.PixelSize(scale)
	return image.NewNRGBA(image.Rect(0, 0, w, h)), nil
}

func (d *fakeDocument) Close() error {
	d.renderer.mu.Lock()
	d.renderer.closed++
	d.renderer.mu.Unlock()
	return nil
}

// writeDocument writes a real PDF so paths exist and text extraction works
func writeDocument(t *testing.T, name string, pages int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	fixture := make([]testpdf.Page, pages)
	for i := range fixture {
		fixture[i] = testpdf.Letter
	}
	if err := testpdf.Write(path, fixture...); err != nil {
		t.Fatalf("Failed to write %s: %v", name, err)
	}
	return path
}

func openFakeEngine(t *testing.T, renderer *fakeRenderer, opts ...Option) *BitmapEngine {
	t.Helper()
	path := writeDocument(t, "fake.pdf", len(renderer.pages))
	opts = append([]Option{WithRenderer(renderer)}, opts...)
	e, err := NewBitmapEngine(path, renderer.password, opts...)
	if err != nil {
		t.Fatalf("Failed to open engine: %v", err)
	}
	t.Cleanup(e.Dispose)
	return e
}

// waitIdle polls until no asynchronous work is pending
func waitIdle(t *testing.T, e *BitmapEngine) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for e.IsBusy() {
		if time.Now().After(deadline) {
			t.Fatalf("Engine still busy with %d tasks", e.Pending())
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func waitStarted(t *testing.T, renderer *fakeRenderer) int {
	t.Helper()
	select {
	case pageNumber := <-renderer.started:
		return pageNumber
	case <-time.After(5 * time.Second):
		t.Fatal("Timed out waiting for a render to start")
	}
	return 0
}

func receive(t *testing.T, e *BitmapEngine) Completion {
	t.Helper()
	select {
	case c := <-e.Completions():
		return c
	case <-time.After(5 * time.Second):
		t.Fatal("Timed out waiting for a completion")
	}
	return Completion{}
}
