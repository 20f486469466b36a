package relayer

import (
	"context"
	"fmt"
	"time"

	coreda "github.com/rollkit/sequencer-relayer/core/da"
	"github.com/rollkit/sequencer-relayer/pkg/store"
	"github.com/rollkit/sequencer-relayer/types"
)

// recover rebuilds the in-flight batches of the cursor from the journal.
// Batches that reached the DA layer get their commitment recomputed so the
// owner can confirm them; the others are resubmitted byte for byte. Journal
// entries the cursor never recorded are dropped: they were not submitted.
// Runs of skipped heights come back as one confirmed batch without blobs.
func (r *Relayer) recover(ctx context.Context, cursor *store.Cursor) ([]*inflight, error) {
	journaled, err := r.journal.List(ctx)
	if err != nil {
		return nil, err
	}
	byID := make(map[types.Hash]*types.Batch, len(journaled))
	for _, b := range journaled {
		byID[b.SubmissionID] = b
	}

	now := time.Now()
	var out []*inflight
	for i := 0; i < len(cursor.Pending); {
		p := cursor.Pending[i]
		if p.Skipped() {
			j := i + 1
			for j < len(cursor.Pending) && cursor.Pending[j].Skipped() {
				j++
			}
			out = append(out, &inflight{
				batch: &types.Batch{
					ChainID:     r.cfg.ChainID,
					FirstHeight: p.SequencerHeight,
					LastHeight:  cursor.Pending[j-1].SequencerHeight,
				},
				confirmed:    true,
				firstAttempt: now,
				lastSubmit:   now,
			})
			i = j
			continue
		}
		batch, ok := byID[p.SubmissionID]
		if !ok || len(batch.Blobs) == 0 {
			return nil, fmt.Errorf("%w: submission %s pending from height %d", ErrJournalMissing, p.SubmissionID, p.SequencerHeight)
		}
		n := int(batch.Heights())
		if batch.FirstHeight != p.SequencerHeight || i+n > len(cursor.Pending) {
			return nil, fmt.Errorf("%w: submission %s covers [%d, %d], cursor pends it from height %d",
				store.ErrCursorCorrupt, p.SubmissionID, batch.FirstHeight, batch.LastHeight, p.SequencerHeight)
		}
		for _, q := range cursor.Pending[i : i+n] {
			if q.SubmissionID != p.SubmissionID {
				return nil, fmt.Errorf("%w: height %d pends submission %s inside batch %s",
					store.ErrCursorCorrupt, q.SequencerHeight, q.SubmissionID, p.SubmissionID)
			}
		}
		delete(byID, p.SubmissionID)

		f := &inflight{
			batch:        batch,
			hasDAHeight:  p.HasDAHeight,
			daHeight:     p.DAHeight,
			attempts:     p.AttemptCount,
			firstAttempt: now,
			lastSubmit:   now,
		}
		if f.hasDAHeight {
			commitment, err := r.da.Commitment(ctx, daBlob(batch.Blobs[0]))
			if err != nil {
				return nil, fmt.Errorf("failed to recompute commitment of submission %s: %w", batch.SubmissionID, err)
			}
			f.commitment = commitment
		}
		r.logger.Info("recovered pending batch",
			"submission_id", batch.SubmissionID,
			"first_height", batch.FirstHeight,
			"last_height", batch.LastHeight,
			"da_height", p.DAHeight,
			"has_da_height", p.HasDAHeight,
			"attempts", p.AttemptCount)
		out = append(out, f)
		i += n
	}

	for id, b := range byID {
		r.logger.Info("dropping journaled batch never recorded as submitted",
			"submission_id", id, "first_height", b.FirstHeight, "last_height", b.LastHeight)
		if err := r.journal.Delete(ctx, id); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func daBlob(b types.NamespacedBlob) coreda.NamespacedBlob {
	return coreda.NamespacedBlob{Namespace: b.Namespace.Bytes(), Data: b.Data}
}

func daBlobs(batch *types.Batch) []coreda.NamespacedBlob {
	out := make([]coreda.NamespacedBlob, len(batch.Blobs))
	for i, b := range batch.Blobs {
		out[i] = daBlob(b)
	}
	return out
}
