package engine

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"

	"github.com/drummonds/pdfbitmap/engine/pdfrenderer"
	"github.com/oklog/ulid/v2"
)

var (
	// ErrClosed is returned by page and render calls when no document is open
	ErrClosed = errors.New("no document is open")
	// ErrAlreadyOpen is returned by Open when a document is already open
	ErrAlreadyOpen = errors.New("a document is already open")
	// ErrDisposed is returned by Open after Dispose
	ErrDisposed = errors.New("engine has been disposed")
	// ErrInvalidScale is returned for scales that are not positive finite numbers
	ErrInvalidScale = errors.New("scale must be greater than zero")
)

const defaultCompletionBuffer = 64

// Completion is published on the completion channel when an asynchronous
// rasterization finishes. Err is set (and Image nil) when the page failed to render.
type Completion struct {
	TaskID ulid.ULID
	Page   *PageModel
	Image  *image.NRGBA
	Err    error
}

// Option configures a BitmapEngine
type Option func(*BitmapEngine)

// WithRenderer sets the decoding backend. The engine does not close a renderer it
// was given.
func WithRenderer(renderer pdfrenderer.Renderer) Option {
	return func(e *BitmapEngine) { e.renderer = renderer }
}

// WithLogger sets the logger, the package Logger is used otherwise
func WithLogger(logger *slog.Logger) Option {
	return func(e *BitmapEngine) { e.logger = logger }
}

// WithCompletionBuffer sets the capacity of the completion channel
func WithCompletionBuffer(size int) Option {
	return func(e *BitmapEngine) {
		if size >= 0 {
			e.completionBuffer = size
		}
	}
}

// BitmapEngine owns one open PDF document and renders its pages, either on the
// caller's goroutine (CreateImage) or on a background worker (CreateImageAsync).
// All calls into the document handle are serialized.
type BitmapEngine struct {
	renderer         pdfrenderer.Renderer
	ownsRenderer     bool
	logger           *slog.Logger
	completionBuffer int
	completions      chan Completion
	disposeOnce      sync.Once

	// mu guards the open document state below
	mu       sync.RWMutex
	disposed bool
	filePath string
	password string
	pages    []*PageModel
	doc      pdfrenderer.Document

	// docMu serializes every call into doc
	docMu sync.Mutex

	pending atomic.Int64

	// qmu guards the task queue and the cancellation generation
	qmu       sync.Mutex
	queue     []renderTask
	workerCtx context.Context
	genCtx    context.Context
	genCancel context.CancelFunc

	wake       chan struct{}
	stopWorker context.CancelFunc
	workerDone chan struct{}
}

// New creates an engine with no document open. Without WithRenderer the engine
// creates (and owns) a PDFium renderer.
func New(opts ...Option) (*BitmapEngine, error) {
	e := &BitmapEngine{
		completionBuffer: defaultCompletionBuffer,
		wake:             make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = Logger
	}
	if e.logger == nil {
		e.logger = slog.New(slog.DiscardHandler)
	}
	if e.renderer == nil {
		renderer, err := pdfrenderer.NewRenderer(pdfrenderer.BackendPDFium)
		if err != nil {
			return nil, err
		}
		e.renderer = renderer
		e.ownsRenderer = true
	}
	e.completions = make(chan Completion, e.completionBuffer)
	return e, nil
}

// NewBitmapEngine creates an engine and opens filePath with the optional password
func NewBitmapEngine(filePath, password string, opts ...Option) (*BitmapEngine, error) {
	e, err := New(opts...)
	if err != nil {
		return nil, err
	}
	if err := e.Open(filePath, password); err != nil {
		e.Dispose()
		return nil, err
	}
	return e, nil
}

// Open opens a document. The engine must be closed.
func (e *BitmapEngine) Open(filePath, password string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.disposed {
		return ErrDisposed
	}
	if e.doc != nil {
		return ErrAlreadyOpen
	}

	doc, err := e.renderer.Open(filePath, password)
	if err != nil {
		e.logger.Warn("Unable to open document", "path", filePath, "backend", e.renderer.Name(), "error", err)
		var loadErr *pdfrenderer.DocumentLoadError
		if !errors.As(err, &loadErr) {
			err = &pdfrenderer.DocumentLoadError{Path: filePath, Err: err}
		}
		return err
	}

	count := doc.PageCount()
	pages := make([]*PageModel, 0, count)
	for pageNumber := 1; pageNumber <= count; pageNumber++ {
		geo, err := doc.PageGeometry(pageNumber)
		if err != nil {
			if closeErr := doc.Close(); closeErr != nil {
				e.logger.Warn("Unable to release document handle", "path", filePath, "error", closeErr)
			}
			return &pdfrenderer.DocumentLoadError{Path: filePath, Err: fmt.Errorf("reading page %d geometry: %w", pageNumber, err)}
		}
		pages = append(pages, newPageModel(filePath, password, pageNumber, geo))
	}

	e.doc = doc
	e.filePath = filePath
	e.password = password
	e.pages = pages
	e.startWorker(doc)

	e.logger.Info("Opened document", "path", filePath, "pages", count, "backend", e.renderer.Name(), "encrypted", doc.Encrypted())
	return nil
}

// Close cancels outstanding asynchronous work, waits for the worker to stop and
// releases the document handle. Closing a closed engine is a no-op. Errors from
// releasing the handle are logged, never returned.
func (e *BitmapEngine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.doc == nil {
		return nil
	}

	e.Cancel()
	e.stopWorker()
	<-e.workerDone

	e.docMu.Lock()
	if err := e.doc.Close(); err != nil {
		e.logger.Warn("Unable to release document handle", "path", e.filePath, "error", err)
	}
	e.docMu.Unlock()

	e.qmu.Lock()
	e.workerCtx, e.genCtx, e.genCancel = nil, nil, nil
	e.qmu.Unlock()

	e.logger.Info("Closed document", "path", e.filePath)
	e.doc = nil
	e.filePath = ""
	e.password = ""
	e.pages = nil
	return nil
}

// Dispose closes the document and releases the renderer if the engine created
// it. It is safe to call more than once; callers usually defer it right after
// construction.
func (e *BitmapEngine) Dispose() {
	e.Close()
	e.disposeOnce.Do(func() {
		e.mu.Lock()
		e.disposed = true
		e.mu.Unlock()
		if e.ownsRenderer {
			if err := e.renderer.Close(); err != nil {
				e.logger.Warn("Unable to close renderer", "backend", e.renderer.Name(), "error", err)
			}
		}
	})
}

// CreateImage renders a page on the calling goroutine. The returned image belongs
// to the caller.
func (e *BitmapEngine) CreateImage(pageNumber int, scale float64) (*image.NRGBA, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	page, err := e.requestLocked(pageNumber, scale)
	if err != nil {
		return nil, err
	}
	page.SetPower(scale)

	e.docMu.Lock()
	defer e.docMu.Unlock()
	return e.doc.Rasterize(context.Background(), pageNumber, scale)
}

// FilePath returns the path of the open document, empty when closed
func (e *BitmapEngine) FilePath() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.filePath
}

// IsOpen reports whether a document is open
func (e *BitmapEngine) IsOpen() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.doc != nil
}

// Encrypted reports whether the open document is encrypted
func (e *BitmapEngine) Encrypted() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.doc != nil && e.doc.Encrypted()
}

// Pages returns the pages of the open document in page order
func (e *BitmapEngine) Pages() []*PageModel {
	e.mu.RLock()
	defer e.mu.RUnlock()
	pages := make([]*PageModel, len(e.pages))
	copy(pages, e.pages)
	return pages
}

// PageCount returns the number of pages, zero when closed
func (e *BitmapEngine) PageCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.pages)
}

// GetPage returns the page with the given 1-based number
func (e *BitmapEngine) GetPage(pageNumber int) (*PageModel, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.doc == nil {
		return nil, ErrClosed
	}
	return e.pageLocked(pageNumber)
}

// RendererName returns the backend in use
func (e *BitmapEngine) RendererName() string {
	return e.renderer.Name()
}

func (e *BitmapEngine) pageLocked(pageNumber int) (*PageModel, error) {
	if pageNumber < 1 || pageNumber > len(e.pages) {
		return nil, &pdfrenderer.PageNotFoundError{Page: pageNumber, Count: len(e.pages)}
	}
	return e.pages[pageNumber-1], nil
}

// requestLocked validates a render request, mu must be held
func (e *BitmapEngine) requestLocked(pageNumber int, scale float64) (*PageModel, error) {
	if e.doc == nil {
		return nil, ErrClosed
	}
	if !(scale > 0) || math.IsInf(scale, 0) {
		return nil, ErrInvalidScale
	}
	return e.pageLocked(pageNumber)
}
