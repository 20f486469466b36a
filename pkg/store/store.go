package store

import (
	"context"
	"errors"
	"fmt"
	"sort"

	ds "github.com/ipfs/go-datastore"
	dsq "github.com/ipfs/go-datastore/query"
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/rollkit/sequencer-relayer/types"
)

// ErrNotFound is returned when a journal entry does not exist.
var ErrNotFound = errors.New("journal entry not found")

const (
	fieldBatchChainID      protowire.Number = 1
	fieldBatchFirstHeight  protowire.Number = 2
	fieldBatchLastHeight   protowire.Number = 3
	fieldBatchSubmissionID protowire.Number = 4
	fieldBatchBlob         protowire.Number = 5

	fieldBlobNamespace protowire.Number = 1
	fieldBlobData      protowire.Number = 2
)

// DefaultJournal is a Journal backed by a go-datastore.
type DefaultJournal struct {
	db ds.Batching
}

var _ Journal = &DefaultJournal{}

// NewJournal returns a journal writing to db.
func NewJournal(db ds.Batching) *DefaultJournal {
	return &DefaultJournal{db: db}
}

// Put stores the batch and syncs the journal prefix to disk.
func (j *DefaultJournal) Put(ctx context.Context, batch *types.Batch) error {
	key := ds.NewKey(getJournalKey(batch.SubmissionID))
	if err := j.db.Put(ctx, key, encodeBatch(batch)); err != nil {
		return fmt.Errorf("failed to journal batch %s: %w", batch.SubmissionID, err)
	}
	if err := j.db.Sync(ctx, ds.NewKey(getJournalPrefix())); err != nil {
		return fmt.Errorf("failed to sync journal: %w", err)
	}
	return nil
}

// Get returns the journaled batch with the given submission id.
func (j *DefaultJournal) Get(ctx context.Context, id types.Hash) (*types.Batch, error) {
	data, err := j.db.Get(ctx, ds.NewKey(getJournalKey(id)))
	if errors.Is(err, ds.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load batch %s: %w", id, err)
	}
	batch, err := decodeBatch(data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode batch %s: %w", id, err)
	}
	return batch, nil
}

// Delete removes the journaled batch.
func (j *DefaultJournal) Delete(ctx context.Context, id types.Hash) error {
	if err := j.db.Delete(ctx, ds.NewKey(getJournalKey(id))); err != nil && !errors.Is(err, ds.ErrNotFound) {
		return fmt.Errorf("failed to delete batch %s: %w", id, err)
	}
	return nil
}

// List returns all journaled batches ordered by first height.
func (j *DefaultJournal) List(ctx context.Context) ([]*types.Batch, error) {
	results, err := j.db.Query(ctx, dsq.Query{Prefix: getJournalPrefix()})
	if err != nil {
		return nil, fmt.Errorf("failed to query journal: %w", err)
	}
	defer results.Close()

	var batches []*types.Batch
	for res := range results.Next() {
		if res.Error != nil {
			return nil, fmt.Errorf("failed to read journal: %w", res.Error)
		}
		batch, err := decodeBatch(res.Value)
		if err != nil {
			return nil, fmt.Errorf("failed to decode journal entry %s: %w", res.Key, err)
		}
		batches = append(batches, batch)
	}
	sort.Slice(batches, func(i, j int) bool { return batches[i].FirstHeight < batches[j].FirstHeight })
	return batches, nil
}

// Close safely closes underlying data storage, to ensure that data is actually saved.
func (j *DefaultJournal) Close() error {
	return j.db.Close()
}

func encodeBatch(batch *types.Batch) []byte {
	var out []byte
	out = protowire.AppendTag(out, fieldBatchChainID, protowire.BytesType)
	out = protowire.AppendString(out, batch.ChainID)
	out = protowire.AppendTag(out, fieldBatchFirstHeight, protowire.VarintType)
	out = protowire.AppendVarint(out, batch.FirstHeight)
	out = protowire.AppendTag(out, fieldBatchLastHeight, protowire.VarintType)
	out = protowire.AppendVarint(out, batch.LastHeight)
	out = protowire.AppendTag(out, fieldBatchSubmissionID, protowire.BytesType)
	out = protowire.AppendBytes(out, batch.SubmissionID[:])
	for _, blob := range batch.Blobs {
		var b []byte
		b = protowire.AppendTag(b, fieldBlobNamespace, protowire.BytesType)
		b = protowire.AppendBytes(b, blob.Namespace[:])
		b = protowire.AppendTag(b, fieldBlobData, protowire.BytesType)
		b = protowire.AppendBytes(b, blob.Data)
		out = protowire.AppendTag(out, fieldBatchBlob, protowire.BytesType)
		out = protowire.AppendBytes(out, b)
	}
	return out
}

func decodeBatch(data []byte) (*types.Batch, error) {
	batch := &types.Batch{}
	err := consumeFields(data, func(num protowire.Number, typ protowire.Type, v uint64, raw []byte) error {
		switch {
		case num == fieldBatchChainID && typ == protowire.BytesType:
			batch.ChainID = string(raw)
		case num == fieldBatchFirstHeight && typ == protowire.VarintType:
			batch.FirstHeight = v
		case num == fieldBatchLastHeight && typ == protowire.VarintType:
			batch.LastHeight = v
		case num == fieldBatchSubmissionID && typ == protowire.BytesType:
			if len(raw) != types.HashSize {
				return fmt.Errorf("submission id of %d bytes", len(raw))
			}
			copy(batch.SubmissionID[:], raw)
		case num == fieldBatchBlob && typ == protowire.BytesType:
			blob, err := decodeNamespacedBlob(raw)
			if err != nil {
				return err
			}
			batch.Blobs = append(batch.Blobs, blob)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if batch.FirstHeight == 0 || batch.LastHeight < batch.FirstHeight || len(batch.Blobs) == 0 {
		return nil, fmt.Errorf("%w: incomplete journal entry", types.ErrMalformed)
	}
	return batch, nil
}

func decodeNamespacedBlob(data []byte) (types.NamespacedBlob, error) {
	var blob types.NamespacedBlob
	err := consumeFields(data, func(num protowire.Number, typ protowire.Type, _ uint64, raw []byte) error {
		switch {
		case num == fieldBlobNamespace && typ == protowire.BytesType:
			ns, err := types.NamespaceFromBytes(raw)
			if err != nil {
				return err
			}
			blob.Namespace = ns
		case num == fieldBlobData && typ == protowire.BytesType:
			blob.Data = append([]byte(nil), raw...)
		}
		return nil
	})
	return blob, err
}

func consumeFields(data []byte, fn func(num protowire.Number, typ protowire.Type, v uint64, raw []byte) error) error {
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return fmt.Errorf("%w: %w", types.ErrMalformed, protowire.ParseError(n))
		}
		data = data[n:]

		var (
			v   uint64
			raw []byte
		)
		switch typ {
		case protowire.VarintType:
			v, n = protowire.ConsumeVarint(data)
		case protowire.BytesType:
			raw, n = protowire.ConsumeBytes(data)
		default:
			n = protowire.ConsumeFieldValue(num, typ, data)
		}
		if n < 0 {
			return fmt.Errorf("%w: %w", types.ErrMalformed, protowire.ParseError(n))
		}
		data = data[n:]
		if err := fn(num, typ, v, raw); err != nil {
			return err
		}
	}
	return nil
}
