package relayer

import (
	"context"
	"errors"
	"time"

	coreda "github.com/rollkit/sequencer-relayer/core/da"
	"github.com/rollkit/sequencer-relayer/types"
)

type submitJob struct {
	id      types.Hash
	first   uint64
	last    uint64
	blobs   []coreda.NamespacedBlob
	attempt uint32
}

type submitResult struct {
	id      types.Hash
	first   uint64
	last    uint64
	attempt uint32
	receipt coreda.SubmitReceipt
	err     error
}

// submitLoop runs submit jobs until ctx is done. The DA call itself runs on
// graceCtx so that a submission in flight at shutdown can complete.
func (r *Relayer) submitLoop(ctx, graceCtx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-r.jobs.NotifyCh():
		}
		for {
			if ctx.Err() != nil {
				return nil
			}
			job, ok := r.jobs.Next()
			if !ok {
				break
			}
			res := r.submit(graceCtx, job)
			select {
			case r.results <- res:
			case <-r.ownerDone:
				return nil
			}
		}
	}
}

func (r *Relayer) submit(ctx context.Context, job submitJob) submitResult {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.SubmitTimeout)
	defer cancel()

	start := time.Now()
	r.metrics.SubmitAttempts.Add(1)
	receipt, err := r.da.Submit(ctx, job.blobs)
	r.metrics.SubmitDuration.Observe(time.Since(start).Seconds())
	if err == nil && len(receipt.Commitments) != len(job.blobs) {
		err = errors.New("DA receipt does not cover every blob")
	}
	return submitResult{
		id:      job.id,
		first:   job.first,
		last:    job.last,
		attempt: job.attempt,
		receipt: receipt,
		err:     err,
	}
}
