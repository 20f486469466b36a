package store

import (
	"context"
	"errors"
	"sync"

	"cosmossdk.io/log"
)

// ErrWriterStopped is returned by Flush once the writer has exited with
// writes still outstanding.
var ErrWriterStopped = errors.New("cursor writer stopped")

// CursorWriter serializes cursor writes on its own goroutine so callers never
// block on fsync. Successive Submits coalesce: only the newest cursor is
// written.
type CursorWriter struct {
	file   *CursorFile
	logger log.Logger

	notify chan struct{}

	mu      sync.Mutex
	latest  *Cursor
	seq     uint64
	written uint64
	err     error
	stopped bool
	flushed chan struct{}
}

// NewCursorWriter returns a writer for file. Run must be started for writes to
// happen.
func NewCursorWriter(file *CursorFile, logger log.Logger) *CursorWriter {
	return &CursorWriter{
		file:    file,
		logger:  logger,
		notify:  make(chan struct{}, 1),
		flushed: make(chan struct{}),
	}
}

// Submit schedules c to be written. The cursor is cloned.
func (w *CursorWriter) Submit(c *Cursor) {
	w.mu.Lock()
	w.latest = c.Clone()
	w.seq++
	w.mu.Unlock()

	select {
	case w.notify <- struct{}{}:
	default:
	}
}

// Flush blocks until every cursor submitted before the call is on disk and
// returns the error of the most recent write.
func (w *CursorWriter) Flush(ctx context.Context) error {
	w.mu.Lock()
	target := w.seq
	w.mu.Unlock()

	for {
		w.mu.Lock()
		if w.written >= target {
			err := w.err
			w.mu.Unlock()
			return err
		}
		if w.stopped {
			w.mu.Unlock()
			return ErrWriterStopped
		}
		ch := w.flushed
		w.mu.Unlock()

		select {
		case <-ch:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Run writes submitted cursors until ctx is done, then writes the last
// outstanding cursor and returns. A failed write is returned as the error.
func (w *CursorWriter) Run(ctx context.Context) error {
	defer func() {
		w.mu.Lock()
		w.stopped = true
		close(w.flushed)
		w.mu.Unlock()
	}()

	for {
		select {
		case <-ctx.Done():
			return w.writeLatest()
		case <-w.notify:
			if err := w.writeLatest(); err != nil {
				return err
			}
		}
	}
}

func (w *CursorWriter) writeLatest() error {
	w.mu.Lock()
	if w.written >= w.seq {
		w.mu.Unlock()
		return nil
	}
	c, seq := w.latest, w.seq
	w.mu.Unlock()

	err := w.file.Save(c)
	if err != nil {
		w.logger.Error("failed to persist cursor", "path", w.file.Path(), "error", err)
	} else {
		w.logger.Debug("persisted cursor",
			"last_submitted_height", c.LastSubmittedHeight,
			"last_confirmed_height", c.LastConfirmedHeight,
			"pending", len(c.Pending))
	}

	w.mu.Lock()
	w.written = seq
	w.err = err
	close(w.flushed)
	w.flushed = make(chan struct{})
	w.mu.Unlock()
	return err
}
