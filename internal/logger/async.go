package logger

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
)

// Closer flushes buffered log records on shutdown.
type Closer interface {
	Close()
}

type nopCloser struct{}

func (nopCloser) Close() {}

// BufferedHandler decouples log emission from the caller by queueing records
// onto a channel drained by background workers. When the queue is full the
// record is dropped rather than blocking the request path.
type BufferedHandler struct {
	next    slog.Handler
	queue   chan slog.Record
	workers *sync.WaitGroup
	drops   *atomic.Int64
}

// NewBufferedHandler starts the given number of drain workers over a queue of
// the given capacity.
func NewBufferedHandler(next slog.Handler, capacity, workers int) *BufferedHandler {
	h := &BufferedHandler{
		next:    next,
		queue:   make(chan slog.Record, capacity),
		workers: &sync.WaitGroup{},
		drops:   &atomic.Int64{},
	}
	for range workers {
		h.workers.Add(1)
		go func() {
			defer h.workers.Done()
			for rec := range h.queue {
				_ = h.next.Handle(context.Background(), rec)
			}
		}()
	}
	return h
}

func (h *BufferedHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

// Handle enqueues without blocking; a full queue counts a drop.
func (h *BufferedHandler) Handle(_ context.Context, rec slog.Record) error { //nolint:gocritic // slog.Handler interface requires value receiver
	select {
	case h.queue <- rec:
	default:
		h.drops.Add(1)
	}
	return nil
}

func (h *BufferedHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &BufferedHandler{next: h.next.WithAttrs(attrs), queue: h.queue, workers: h.workers, drops: h.drops}
}

func (h *BufferedHandler) WithGroup(name string) slog.Handler {
	return &BufferedHandler{next: h.next.WithGroup(name), queue: h.queue, workers: h.workers, drops: h.drops}
}

// Dropped reports how many records were discarded on a full queue.
func (h *BufferedHandler) Dropped() int64 {
	return h.drops.Load()
}

// Close stops accepting records and waits for the workers to drain the queue.
func (h *BufferedHandler) Close() {
	close(h.queue)
	h.workers.Wait()
}
