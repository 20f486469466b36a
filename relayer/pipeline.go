package relayer

import (
	"context"
	"fmt"
	"time"

	coreda "github.com/rollkit/sequencer-relayer/core/da"
	"github.com/rollkit/sequencer-relayer/types"
)

// ingestLoop validates blocks from the sequencer and hands their records to
// the batcher. Every height holds one unit of the pending window from here
// until it retires.
func (r *Relayer) ingestLoop(ctx context.Context, source BlockSource) error {
	for {
		block, err := source.Next(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("sequencer stream: %w", err)
		}
		r.metrics.SequencerHeight.Set(float64(block.Height))

		if err := r.validator.Accept(block); err != nil {
			r.logger.Error("rejected sequencer block", "height", block.Height, "hash", block.Hash(), "error", err)
			return fmt.Errorf("block %d rejected: %w", block.Height, err)
		}

		hr, err := r.heightRecords(block)
		if err != nil {
			return fmt.Errorf("failed to encode block %d: %w", block.Height, err)
		}

		if err := r.window.Acquire(ctx, 1); err != nil {
			return nil
		}
		select {
		case r.heights <- hr:
		case <-ctx.Done():
			r.window.Release(1)
			return nil
		}
	}
}

// heightRecords returns the records relayed for block. Skipped heights carry
// no records.
func (r *Relayer) heightRecords(block *types.SequencerBlock) (*types.HeightRecords, error) {
	if r.cfg.DisableWriting {
		return &types.HeightRecords{Height: block.Height}, nil
	}
	if r.cfg.ValidatorAddress != nil && block.ProposerAddress != *r.cfg.ValidatorAddress {
		r.logger.Debug("skipping block from other proposer", "height", block.Height, "proposer", block.ProposerAddress)
		return &types.HeightRecords{Height: block.Height}, nil
	}
	return types.BlockRecords(block, r.include)
}

// batchLoop packs contiguous heights into batches. A batch is flushed when it
// holds BatchMaxHeights heights, when the next height would push a blob over
// the DA limit, or BatchInterval after its first height arrived.
func (r *Relayer) batchLoop(ctx context.Context) error {
	builder := types.NewBatchBuilder(r.cfg.ChainID)
	empty := types.NewBatchBuilder(r.cfg.ChainID)

	var (
		timer  *time.Timer
		timerC <-chan time.Time
	)
	flush := func() error {
		if timer != nil {
			timer.Stop()
			timer, timerC = nil, nil
		}
		batch, err := builder.Build()
		if err != nil {
			return err
		}
		select {
		case r.batches <- batch:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-timerC:
			if err := flush(); err != nil {
				return ignoreCanceled(ctx, err)
			}
		case hr := <-r.heights:
			if size := empty.MaxBlobSizeWith(hr); size > r.maxBlobSize {
				return coreda.NewPermanentError(fmt.Errorf("%w: height %d needs a %d byte blob, DA limit is %d",
					coreda.ErrBlobSizeOverLimit, hr.Height, size, r.maxBlobSize))
			}
			if builder.Len() > 0 && builder.MaxBlobSizeWith(hr) > r.maxBlobSize {
				if err := flush(); err != nil {
					return ignoreCanceled(ctx, err)
				}
			}
			if err := builder.Add(hr); err != nil {
				return err
			}
			if builder.Len() >= r.cfg.BatchMaxHeights {
				if err := flush(); err != nil {
					return ignoreCanceled(ctx, err)
				}
			} else if timer == nil {
				timer = time.NewTimer(r.cfg.BatchInterval)
				timerC = timer.C
			}
		}
	}
}

func ignoreCanceled(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return nil
	}
	return err
}
