package store

import (
	"context"

	"github.com/rollkit/sequencer-relayer/types"
)

// Journal keeps the exact bytes of every in-flight batch so that a
// resubmission after restart is byte-identical to the first attempt.
type Journal interface {
	// Put stores a batch keyed by its submission id.
	Put(ctx context.Context, batch *types.Batch) error

	// Get returns the batch with the given submission id, or ErrNotFound.
	Get(ctx context.Context, id types.Hash) (*types.Batch, error)

	// Delete drops a retired batch. Deleting an absent batch is not an error.
	Delete(ctx context.Context, id types.Hash) error

	// List returns every journaled batch ordered by first height.
	List(ctx context.Context) ([]*types.Batch, error)

	// Close safely closes the underlying data storage.
	Close() error
}
