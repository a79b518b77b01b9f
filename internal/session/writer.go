package session

import (
	"context"
	"log/slog"
	"sync"

	"github.com/p-n-ai/pai-quiz/internal/store"
)

// writeOp is one pending store write. A nil data with clear set removes
// the stored snapshot.
type writeOp struct {
	data  []byte
	clear bool
}

// snapshotWriter applies store writes on its own goroutine so a slow
// backend never holds up the tick loop. Only the latest pending write is
// kept; older ones are superseded.
type snapshotWriter struct {
	store store.SessionStore

	mu      sync.Mutex
	pending *writeOp

	wake chan struct{}
	quit chan struct{}
	done chan struct{}
}

func startSnapshotWriter(ctx context.Context, st store.SessionStore) *snapshotWriter {
	w := &snapshotWriter{
		store: st,
		wake:  make(chan struct{}, 1),
		quit:  make(chan struct{}),
		done:  make(chan struct{}),
	}
	go w.run(ctx)
	return w
}

func (w *snapshotWriter) save(data []byte) {
	w.offer(&writeOp{data: data})
}

func (w *snapshotWriter) clear() {
	w.offer(&writeOp{clear: true})
}

func (w *snapshotWriter) offer(op *writeOp) {
	w.mu.Lock()
	w.pending = op
	w.mu.Unlock()

	select {
	case w.wake <- struct{}{}:
	default:
	}
}

// close flushes the last pending write and waits for the goroutine to exit.
func (w *snapshotWriter) close() {
	close(w.quit)
	<-w.done
}

func (w *snapshotWriter) run(ctx context.Context) {
	defer close(w.done)
	for {
		select {
		case <-w.wake:
			w.flush(ctx)
		case <-w.quit:
			w.flush(ctx)
			return
		}
	}
}

func (w *snapshotWriter) flush(ctx context.Context) {
	w.mu.Lock()
	op := w.pending
	w.pending = nil
	w.mu.Unlock()

	if op == nil {
		return
	}
	if op.clear {
		if err := w.store.Clear(ctx); err != nil {
			slog.Warn("failed to clear session", "key", w.store.Key(), "error", err)
		}
		return
	}
	if err := w.store.Save(ctx, op.data); err != nil {
		slog.Warn("failed to save session", "key", w.store.Key(), "error", err)
	}
}
