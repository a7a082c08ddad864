package engine

import (
	"context"
	"errors"
	"fmt"
	"image"

	"github.com/drummonds/pdfbitmap/engine/pdfrenderer"
	"github.com/oklog/ulid/v2"
)

// renderTask is one queued asynchronous rasterization. ctx belongs to the
// cancellation generation the task was submitted in.
type renderTask struct {
	id    ulid.ULID
	ctx   context.Context
	page  *PageModel
	scale float64
}

// CreateImageAsync queues a page for rendering on the background worker and
// returns immediately. The result is published on Completions; tasks dropped by
// Cancel publish nothing.
func (e *BitmapEngine) CreateImageAsync(pageNumber int, scale float64) (ulid.ULID, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	page, err := e.requestLocked(pageNumber, scale)
	if err != nil {
		return ulid.ULID{}, err
	}
	page.SetPower(scale)

	task := renderTask{id: ulid.Make(), page: page, scale: scale}
	e.qmu.Lock()
	task.ctx = e.genCtx
	e.queue = append(e.queue, task)
	e.pending.Add(1)
	e.qmu.Unlock()

	select {
	case e.wake <- struct{}{}:
	default:
	}
	e.logger.Debug("Queued page render", "task", task.id, "page", pageNumber, "scale", scale)
	return task.id, nil
}

// Completions returns the channel asynchronous results are published on. The
// channel lives as long as the engine and is never closed. A full channel holds
// the worker back, so consumers should keep reading while tasks are pending.
func (e *BitmapEngine) Completions() <-chan Completion {
	return e.completions
}

// IsBusy reports whether asynchronous tasks are queued, running or waiting to
// be delivered
func (e *BitmapEngine) IsBusy() bool {
	return e.pending.Load() > 0
}

// Pending returns the number of asynchronous tasks not yet completed or drained
func (e *BitmapEngine) Pending() int {
	return int(e.pending.Load())
}

// Cancel drops every queued task and asks the running one to stop at its next
// check. It does not wait: poll IsBusy until it reports false before assuming
// the worker is idle. Tasks submitted after Cancel run normally.
func (e *BitmapEngine) Cancel() {
	e.qmu.Lock()
	dropped := len(e.queue)
	e.queue = nil
	if e.genCancel != nil {
		e.genCancel()
		e.genCtx, e.genCancel = context.WithCancel(e.workerCtx)
	}
	e.qmu.Unlock()

	e.pending.Add(-int64(dropped))
	if dropped > 0 {
		e.logger.Info("Cancelled queued page renders", "dropped", dropped)
	}
}

// generation returns the context of the current cancellation generation, done
// once Cancel or Close runs. It is nil while no document is open.
func (e *BitmapEngine) generation() context.Context {
	e.qmu.Lock()
	defer e.qmu.Unlock()
	return e.genCtx
}

// startWorker starts the background worker for doc, e.mu must be held
func (e *BitmapEngine) startWorker(doc pdfrenderer.Document) {
	ctx, stop := context.WithCancel(context.Background())
	e.qmu.Lock()
	e.workerCtx = ctx
	e.genCtx, e.genCancel = context.WithCancel(ctx)
	e.qmu.Unlock()

	e.stopWorker = stop
	e.workerDone = make(chan struct{})
	go e.run(ctx, doc, e.workerDone)
}

// run serves the queue one task at a time until ctx is done
func (e *BitmapEngine) run(ctx context.Context, doc pdfrenderer.Document, done chan struct{}) {
	defer close(done)
	for {
		if ctx.Err() != nil {
			e.Cancel()
			return
		}
		task, ok := e.next()
		if !ok {
			select {
			case <-ctx.Done():
			case <-e.wake:
			}
			continue
		}
		e.render(doc, task)
	}
}

func (e *BitmapEngine) next() (renderTask, bool) {
	e.qmu.Lock()
	defer e.qmu.Unlock()
	if len(e.queue) == 0 {
		return renderTask{}, false
	}
	task := e.queue[0]
	e.queue[0] = renderTask{}
	e.queue = e.queue[1:]
	return task, true
}

// render runs one task and publishes its completion unless it was cancelled
func (e *BitmapEngine) render(doc pdfrenderer.Document, task renderTask) {
	defer e.pending.Add(-1)
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("Panic recovered in page render", "panic", r, "task", task.id, "page", task.page.PageNumber)
			e.publish(task, Completion{TaskID: task.id, Page: task.page, Err: &pdfrenderer.RasterizationError{Page: task.page.PageNumber, Err: fmt.Errorf("panic: %v", r)}})
		}
	}()

	if task.ctx.Err() != nil {
		return
	}

	img, err := e.rasterize(doc, task)

	if errors.Is(err, context.Canceled) || task.ctx.Err() != nil {
		e.logger.Debug("Abandoned page render", "task", task.id, "page", task.page.PageNumber)
		return
	}
	if err != nil {
		e.logger.Warn("Page render failed", "task", task.id, "page", task.page.PageNumber, "error", err)
	}
	e.publish(task, Completion{TaskID: task.id, Page: task.page, Image: img, Err: err})
}

func (e *BitmapEngine) rasterize(doc pdfrenderer.Document, task renderTask) (*image.NRGBA, error) {
	e.docMu.Lock()
	defer e.docMu.Unlock()
	return doc.Rasterize(task.ctx, task.page.PageNumber, task.scale)
}

// publish delivers c, giving up only if the task's generation is cancelled while
// the channel is full
func (e *BitmapEngine) publish(task renderTask, c Completion) {
	select {
	case e.completions <- c:
		return
	default:
	}
	select {
	case e.completions <- c:
	case <-task.ctx.Done():
		e.logger.Debug("Dropped undelivered page render", "task", task.id, "page", task.page.PageNumber)
	}
}
