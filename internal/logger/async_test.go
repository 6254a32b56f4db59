package logger

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"
)

// captureHandler accumulates records so tests can count what was drained.
type captureHandler struct {
	mu    sync.Mutex
	recs  []slog.Record
	stall time.Duration
}

func (h *captureHandler) Enabled(context.Context, slog.Level) bool { return true }

func (h *captureHandler) Handle(_ context.Context, rec slog.Record) error { //nolint:gocritic // slog.Handler interface requires value receiver
	if h.stall > 0 {
		time.Sleep(h.stall)
	}
	h.mu.Lock()
	h.recs = append(h.recs, rec)
	h.mu.Unlock()
	return nil
}

func (h *captureHandler) WithAttrs([]slog.Attr) slog.Handler { return h }
func (h *captureHandler) WithGroup(string) slog.Handler      { return h }

func (h *captureHandler) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.recs)
}

func emit(t *testing.T, h *BufferedHandler, msg string, n int) {
	t.Helper()
	for range n {
		rec := slog.NewRecord(time.Now(), slog.LevelInfo, msg, 0)
		if err := h.Handle(context.Background(), rec); err != nil {
			t.Fatalf("Handle() = %v", err)
		}
	}
}

func TestBufferedHandlerDelivers(t *testing.T) {
	inner := &captureHandler{}
	h := NewBufferedHandler(inner, 100, 1)

	emit(t, h, "hello", 1)
	h.Close()

	if got := inner.count(); got != 1 {
		t.Fatalf("count = %d, want 1", got)
	}
}

func TestBufferedHandlerConcurrent(t *testing.T) {
	const writers, perWriter = 100, 100

	inner := &captureHandler{}
	h := NewBufferedHandler(inner, 10000, 4)

	var wg sync.WaitGroup
	for range writers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			emitN(h, perWriter)
		}()
	}
	wg.Wait()
	h.Close()

	if got := inner.count(); got != writers*perWriter {
		t.Fatalf("count = %d, want %d", got, writers*perWriter)
	}
}

func emitN(h *BufferedHandler, n int) {
	for range n {
		rec := slog.NewRecord(time.Now(), slog.LevelInfo, "concurrent", 0)
		_ = h.Handle(context.Background(), rec)
	}
}

func TestBufferedHandlerDropsWhenFull(t *testing.T) {
	// A stalled inner handler behind a one-slot queue forces drops.
	inner := &captureHandler{stall: 10 * time.Millisecond}
	h := NewBufferedHandler(inner, 1, 1)

	emit(t, h, "flood", 50)
	h.Close()

	if h.Dropped() == 0 {
		t.Fatal("expected drops under backpressure")
	}
}

func TestBufferedHandlerCloseDrains(t *testing.T) {
	inner := &captureHandler{}
	h := NewBufferedHandler(inner, 1000, 2)

	emit(t, h, "drain", 200)
	h.Close()

	if got := inner.count(); got != 200 {
		t.Fatalf("count after close = %d, want 200", got)
	}
}
