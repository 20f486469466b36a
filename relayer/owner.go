package relayer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cosmossdk.io/log"
	"github.com/cenkalti/backoff/v4"

	coreda "github.com/rollkit/sequencer-relayer/core/da"
	"github.com/rollkit/sequencer-relayer/pkg/store"
	"github.com/rollkit/sequencer-relayer/types"
)

// inflight is a dispatched batch that has not retired yet.
type inflight struct {
	batch *types.Batch

	hasDAHeight bool
	daHeight    uint64
	// commitment of the first blob, which anchors confirmation.
	commitment coreda.Commitment

	attempts     uint32
	firstAttempt time.Time
	lastSubmit   time.Time
	bo           *backoff.ExponentialBackOff

	// submitting is set while a submit job or retry is outstanding.
	submitting bool
	confirmed  bool
}

func (f *inflight) skipped() bool {
	return len(f.batch.Blobs) == 0
}

// owner is the only goroutine mutating the cursor and the in-flight batches.
// The other tasks reach it through channels.
type owner struct {
	r      *Relayer
	logger log.Logger
	writer *store.CursorWriter

	lastSubmitted uint64
	lastConfirmed uint64
	inflight      []*inflight
	byID          map[types.Hash]*inflight

	// retired batches whose journal entries can go once the cursor that
	// retires them is on disk.
	retired []types.Hash

	retries  chan types.Hash
	stopping bool
}

func newOwner(r *Relayer, cursor *store.Cursor, recovered []*inflight) *owner {
	o := &owner{
		r:             r,
		logger:        r.logger.With("task", "owner"),
		lastSubmitted: cursor.LastSubmittedHeight,
		lastConfirmed: cursor.LastConfirmedHeight,
		inflight:      recovered,
		byID:          make(map[types.Hash]*inflight, len(recovered)),
		retries:       make(chan types.Hash),
	}
	for _, f := range recovered {
		if !f.skipped() {
			o.byID[f.batch.SubmissionID] = f
		}
	}
	return o
}

func (o *owner) run(ctx, graceCtx context.Context, workersDone <-chan struct{}) error {
	resubmitted := o.advance()
	for _, f := range o.inflight {
		if !f.hasDAHeight {
			o.enqueue(f)
			resubmitted = true
		}
	}
	if resubmitted {
		o.persist()
	}

	ticker := time.NewTicker(o.r.cfg.ConfirmInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return o.shutdown(graceCtx, workersDone)
		case batch := <-o.r.batches:
			if err := o.dispatch(ctx, batch); err != nil {
				return err
			}
		case res := <-o.r.results:
			if err := o.handleResult(res); err != nil {
				return err
			}
		case id := <-o.retries:
			if f, ok := o.byID[id]; ok && !f.confirmed {
				o.enqueue(f)
				o.persist()
			}
		case <-ticker.C:
			if err := o.confirm(ctx); err != nil {
				return err
			}
		}
	}
}

// dispatch records a new batch as submitted and hands it to the submit
// pool. The batch is journaled and the cursor is on disk before any DA call.
func (o *owner) dispatch(ctx context.Context, batch *types.Batch) error {
	f := &inflight{batch: batch, firstAttempt: time.Now()}
	o.lastSubmitted = batch.LastHeight
	o.r.metrics.Batches.Add(1)
	o.r.metrics.BatchHeights.Observe(float64(batch.Heights()))
	o.r.metrics.BatchSizeBytes.Observe(float64(batch.Size()))

	if f.skipped() {
		o.r.metrics.SkippedHeights.Add(float64(batch.Heights()))
		f.confirmed = true
		o.track(f)
		o.advance()
		o.persist()
		return nil
	}

	if err := o.r.journal.Put(ctx, batch); err != nil {
		return err
	}
	o.track(f)
	o.persist()
	if err := o.writer.Flush(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("failed to persist cursor before submission: %w", err)
	}

	o.logger.Debug("dispatching batch",
		"submission_id", batch.SubmissionID,
		"first_height", batch.FirstHeight,
		"last_height", batch.LastHeight,
		"blobs", len(batch.Blobs),
		"bytes", batch.Size())
	o.enqueue(f)
	return nil
}

func (o *owner) track(f *inflight) {
	o.inflight = append(o.inflight, f)
	o.byID[f.batch.SubmissionID] = f
}

func (o *owner) enqueue(f *inflight) {
	f.attempts++
	f.submitting = true
	f.lastSubmit = time.Now()
	o.r.jobs.Add(submitJob{
		id:      f.batch.SubmissionID,
		first:   f.batch.FirstHeight,
		last:    f.batch.LastHeight,
		blobs:   daBlobs(f.batch),
		attempt: f.attempts,
	})
}

func (o *owner) handleResult(res submitResult) error {
	f, ok := o.byID[res.id]
	if !ok || f.confirmed {
		return nil
	}
	f.submitting = false

	if res.err == nil {
		o.r.markDA(nil)
		f.hasDAHeight = true
		f.daHeight = res.receipt.DAHeight
		f.commitment = res.receipt.Commitments[0]
		f.lastSubmit = time.Now()
		o.logger.Info("batch submitted",
			"submission_id", res.id,
			"first_height", res.first,
			"last_height", res.last,
			"da_height", f.daHeight,
			"attempt", res.attempt)
		o.persist()
		return nil
	}

	if o.stopping && (errors.Is(res.err, context.Canceled) || errors.Is(res.err, context.DeadlineExceeded)) {
		o.logger.Info("submission interrupted by shutdown, it stays pending", "submission_id", res.id)
		return nil
	}

	o.r.markDA(res.err)
	o.r.metrics.SubmitFailures.Add(1)
	if coreda.IsPermanent(res.err) {
		o.logger.Error("DA rejected batch", "submission_id", res.id, "first_height", res.first, "last_height", res.last, "error", res.err)
		return fmt.Errorf("batch %s for heights [%d, %d]: %w", res.id, res.first, res.last, res.err)
	}
	if f.attempts >= o.r.cfg.MaxSubmitAttempts {
		o.logger.Error("giving up on batch", "submission_id", res.id, "attempts", f.attempts, "error", res.err)
		return fmt.Errorf("%w: batch %s for heights [%d, %d] after %d attempts: %w",
			ErrSubmissionFailed, res.id, res.first, res.last, f.attempts, res.err)
	}
	if o.stopping {
		return nil
	}

	if f.bo == nil {
		f.bo = backoff.NewExponentialBackOff()
		f.bo.InitialInterval = o.r.cfg.SubmitBackoff
		f.bo.MaxInterval = o.r.cfg.SubmitMaxBackoff
		f.bo.MaxElapsedTime = 0
		f.bo.Reset()
	}
	delay := f.bo.NextBackOff()
	o.logger.Warn("batch submission failed, retrying",
		"submission_id", res.id,
		"attempt", f.attempts,
		"max_attempts", o.r.cfg.MaxSubmitAttempts,
		"backoff", delay,
		"error", res.err)

	f.submitting = true
	id := res.id
	time.AfterFunc(delay, func() {
		select {
		case o.retries <- id:
		case <-o.r.ownerDone:
		}
	})
	return nil
}

// confirm polls the DA layer for every submitted batch and advances the
// commit pointer.
func (o *owner) confirm(ctx context.Context) error {
	changed := false
	awaiting := 0
	for _, f := range o.inflight {
		if f.confirmed || f.submitting || !f.hasDAHeight {
			continue
		}
		awaiting++

		cctx, cancel := context.WithTimeout(ctx, o.r.cfg.ConfirmTimeout)
		conf, err := o.r.da.Confirm(cctx, f.daHeight, f.commitment)
		cancel()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			o.r.markDA(err)
			o.r.metrics.ConfirmFailures.Add(1)
			if coreda.IsPermanent(err) {
				return fmt.Errorf("failed to confirm batch %s: %w", f.batch.SubmissionID, err)
			}
			o.logger.Warn("failed to query DA confirmation", "submission_id", f.batch.SubmissionID, "da_height", f.daHeight, "error", err)
			break
		}
		o.r.markDA(nil)

		switch conf.Status {
		case coreda.StatusConfirmed:
			depth := conf.Depth(f.daHeight)
			if depth < o.r.cfg.ConfirmationDepth {
				o.logger.Debug("batch included, waiting for depth", "submission_id", f.batch.SubmissionID, "depth", depth)
				continue
			}
			f.confirmed = true
			o.r.metrics.ConfirmationLatency.Observe(time.Since(f.firstAttempt).Seconds())
			o.logger.Info("batch confirmed",
				"submission_id", f.batch.SubmissionID,
				"first_height", f.batch.FirstHeight,
				"last_height", f.batch.LastHeight,
				"da_height", f.daHeight,
				"depth", depth)
		case coreda.StatusNotFound:
			o.logger.Warn("batch not found on DA, resubmitting",
				"submission_id", f.batch.SubmissionID, "da_height", f.daHeight, "head", conf.HeadHeight)
			o.resubmit(f)
			changed = true
		case coreda.StatusPending:
			if o.r.cfg.ResubmitAfter > 0 && time.Since(f.lastSubmit) > o.r.cfg.ResubmitAfter {
				o.logger.Warn("batch unconfirmed for too long, resubmitting",
					"submission_id", f.batch.SubmissionID, "da_height", f.daHeight, "head", conf.HeadHeight)
				o.resubmit(f)
				changed = true
			}
		}
	}

	if awaiting == 0 {
		hctx, cancel := context.WithTimeout(ctx, o.r.cfg.ConfirmTimeout)
		_, err := o.r.da.Head(hctx)
		cancel()
		if ctx.Err() != nil {
			return nil
		}
		o.r.markDA(err)
	}

	if o.advance() {
		changed = true
	}
	if !changed {
		return nil
	}
	o.persist()
	return o.pruneJournal(ctx)
}

func (o *owner) resubmit(f *inflight) {
	o.r.metrics.Resubmissions.Add(1)
	f.hasDAHeight = false
	f.daHeight = 0
	f.commitment = nil
	o.enqueue(f)
}

// advance retires confirmed batches from the front. It reports whether the
// commit pointer moved.
func (o *owner) advance() bool {
	moved := false
	for len(o.inflight) > 0 && o.inflight[0].confirmed {
		f := o.inflight[0]
		o.inflight[0] = nil
		o.inflight = o.inflight[1:]
		delete(o.byID, f.batch.SubmissionID)

		o.lastConfirmed = f.batch.LastHeight
		o.r.window.Release(int64(f.batch.Heights()))
		if !f.skipped() {
			o.retired = append(o.retired, f.batch.SubmissionID)
		}
		moved = true
	}
	return moved
}

// pruneJournal deletes the journal entries of retired batches once the
// cursor retiring them is durable.
func (o *owner) pruneJournal(ctx context.Context) error {
	if len(o.retired) == 0 {
		return nil
	}
	if err := o.writer.Flush(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("failed to persist cursor: %w", err)
	}
	for _, id := range o.retired {
		if err := o.r.journal.Delete(ctx, id); err != nil {
			o.logger.Warn("failed to delete journaled batch", "submission_id", id, "error", err)
		}
	}
	o.retired = o.retired[:0]
	return nil
}

// shutdown drains the results of in-flight submissions and flushes the
// cursor.
func (o *owner) shutdown(graceCtx context.Context, workersDone <-chan struct{}) error {
	o.stopping = true
	o.logger.Info("shutting down, waiting for in-flight submissions")
	for {
		select {
		case res := <-o.r.results:
			if err := o.handleResult(res); err != nil {
				return err
			}
		case <-workersDone:
			for {
				select {
				case res := <-o.r.results:
					if err := o.handleResult(res); err != nil {
						return err
					}
				default:
					o.persist()
					return o.pruneJournal(context.WithoutCancel(graceCtx))
				}
			}
		}
	}
}

// snapshot builds the cursor from the in-flight batches.
func (o *owner) snapshot() *store.Cursor {
	c := &store.Cursor{
		LastSubmittedHeight: o.lastSubmitted,
		LastConfirmedHeight: o.lastConfirmed,
	}
	for _, f := range o.inflight {
		if f.skipped() {
			for h := f.batch.FirstHeight; h <= f.batch.LastHeight; h++ {
				c.Pending = append(c.Pending, store.PendingSubmission{SequencerHeight: h})
			}
			continue
		}
		for h := f.batch.FirstHeight; h <= f.batch.LastHeight; h++ {
			c.Pending = append(c.Pending, store.PendingSubmission{
				SequencerHeight:  h,
				SubmissionID:     f.batch.SubmissionID,
				HasDAHeight:      f.hasDAHeight,
				DAHeight:         f.daHeight,
				AttemptCount:     f.attempts,
				FirstAttemptedAt: f.firstAttempt,
			})
		}
	}
	return c
}

func (o *owner) persist() {
	o.writer.Submit(o.snapshot())
	o.publish()
}

func (o *owner) publish() {
	pending := o.lastSubmitted - o.lastConfirmed
	o.r.status.Store(&Status{
		LastSubmittedHeight: o.lastSubmitted,
		LastConfirmedHeight: o.lastConfirmed,
		PendingHeights:      pending,
		InflightBatches:     len(o.inflight),
	})
	o.r.metrics.LastSubmittedHeight.Set(float64(o.lastSubmitted))
	o.r.metrics.LastConfirmedHeight.Set(float64(o.lastConfirmed))
	o.r.metrics.PendingHeights.Set(float64(pending))
}
