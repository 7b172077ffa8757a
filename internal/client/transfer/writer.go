package transfer

import (
	"context"
	"sync"
)

// OrderedWriter serializes out-of-order chunk completions into sequential
// writes on a Sink. Chunks may finish in any order; each worker calls
// WriteChunk with its index and blocks until every lower index has been
// written. Admit and WaitTurn let callers hold off on expensive work or
// shared slots until the chunk is close to, or at, the write cursor.
type OrderedWriter struct {
	mu      sync.Mutex
	sink    Sink
	next    int64
	advance chan struct{}
	waiting int
	err     error
}

func NewOrderedWriter(sink Sink) *OrderedWriter {
	return &OrderedWriter{sink: sink, advance: make(chan struct{})}
}

// wait blocks until ready holds or the writer has failed. On a nil return
// the caller owns w.mu and ready is true; on error the mutex is released.
func (w *OrderedWriter) wait(ctx context.Context, ready func() bool) error {
	w.mu.Lock()
	for w.err == nil && !ready() {
		ch := w.advance
		w.waiting++
		w.mu.Unlock()
		select {
		case <-ch:
		case <-ctx.Done():
			w.mu.Lock()
			w.waiting--
			w.mu.Unlock()
			return ctx.Err()
		}
		w.mu.Lock()
		w.waiting--
	}
	if w.err != nil {
		err := w.err
		w.mu.Unlock()
		return err
	}
	return nil
}

// Admit blocks until index lies within window positions of the write cursor.
// It bounds how many chunks may be buffered ahead of the cursor: a chunk
// admitted with window w satisfies index < next+w at admission time.
func (w *OrderedWriter) Admit(ctx context.Context, index int64, window int) error {
	if window < 1 {
		window = 1
	}
	err := w.wait(ctx, func() bool { return index < w.next+int64(window) })
	if err != nil {
		return err
	}
	w.mu.Unlock()
	return nil
}

// WaitTurn blocks until index is the next index to be written. The turn
// cannot be lost again: only the subsequent WriteChunk for index advances
// the cursor.
func (w *OrderedWriter) WaitTurn(ctx context.Context, index int64) error {
	err := w.wait(ctx, func() bool { return index == w.next })
	if err != nil {
		return err
	}
	w.mu.Unlock()
	return nil
}

// WriteChunk writes data for the given chunk index, waiting for its turn.
// Once any write fails, every subsequent and waiting call returns that
// first error.
func (w *OrderedWriter) WriteChunk(ctx context.Context, index int64, data []byte) error {
	if err := w.wait(ctx, func() bool { return index == w.next }); err != nil {
		return err
	}

	_, err := w.sink.Write(data)
	if err != nil {
		w.fail(err)
		w.mu.Unlock()
		return err
	}

	w.next++
	w.broadcast()
	w.mu.Unlock()
	return nil
}

// Fail records err as the terminal error and wakes all waiting writers.
func (w *OrderedWriter) Fail(err error) {
	w.mu.Lock()
	w.fail(err)
	w.mu.Unlock()
}

func (w *OrderedWriter) fail(err error) {
	if w.err == nil {
		w.err = err
	}
	w.broadcast()
}

// broadcast wakes every waiter so it can re-check its condition. Caller
// must hold mu.
func (w *OrderedWriter) broadcast() {
	close(w.advance)
	w.advance = make(chan struct{})
}

// Err returns the terminal error, if any.
func (w *OrderedWriter) Err() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.err
}
