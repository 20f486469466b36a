package reader

import (
	"context"
	"testing"
	"time"

	"cosmossdk.io/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	coreda "github.com/rollkit/sequencer-relayer/core/da"
	"github.com/rollkit/sequencer-relayer/types"
)

const chainID = "reader-chain"

type fixture struct {
	t      *testing.T
	dummy  *coreda.DummyDA
	client *coreda.Client
	vals   []types.TestValidator
}

func newFixture(t *testing.T) *fixture {
	dummy := coreda.NewDummyDA(1<<20, time.Hour)
	return &fixture{
		t:     t,
		dummy: dummy,
		client: coreda.NewClient(dummy, log.NewNopLogger(), coreda.ClientConfig{
			GasPrice:       -1,
			InitialBackoff: time.Millisecond,
			MaxBackoff:     time.Millisecond,
		}),
		vals: types.GenerateValidators(1, 10),
	}
}

func (f *fixture) block(height uint64, txs ...types.SignedTransaction) *types.SequencerBlock {
	return types.MakeSignedBlock(chainID, height, txs, f.vals)
}

func (f *fixture) batch(blocks ...*types.SequencerBlock) *types.Batch {
	f.t.Helper()
	b := types.NewBatchBuilder(chainID)
	for _, block := range blocks {
		hr, err := types.BlockRecords(block, nil)
		require.NoError(f.t, err)
		require.NoError(f.t, b.Add(hr))
	}
	batch, err := b.Build()
	require.NoError(f.t, err)
	return batch
}

// post submits blobs in one DA block and seals it.
func (f *fixture) post(blobs ...types.NamespacedBlob) uint64 {
	f.t.Helper()
	in := make([]coreda.NamespacedBlob, len(blobs))
	for i, b := range blobs {
		in[i] = coreda.NamespacedBlob{Namespace: b.Namespace.Bytes(), Data: b.Data}
	}
	receipt, err := f.client.Submit(context.Background(), in)
	require.NoError(f.t, err)
	f.dummy.Produce()
	return receipt.DAHeight
}

func (f *fixture) reader(rollup string) *Reader {
	return New(f.client, chainID, types.NewRollupID(rollup), log.NewTestLogger(f.t))
}

func payloads(blocks []RollupBlock) map[uint64][]string {
	out := make(map[uint64][]string)
	for _, b := range blocks {
		var txs []string
		for _, tx := range b.Transactions {
			txs = append(txs, string(tx))
		}
		out[b.SequencerHeight] = txs
	}
	return out
}

func TestReadRange_OrdersAndDedupes(t *testing.T) {
	f := newFixture(t)
	blocks := []*types.SequencerBlock{
		f.block(1, types.RollupDataTx("rollup-a", []byte("a1"))),
		f.block(2, types.RollupDataTx("rollup-a", []byte("a2"), []byte("a2'")), types.RollupDataTx("rollup-b", []byte("b2"))),
		f.block(3, types.RollupDataTx("rollup-b", []byte("b3"))),
		f.block(4, types.RollupDataTx("rollup-a", []byte("a4"))),
	}
	early := f.batch(blocks[0], blocks[1])
	late := f.batch(blocks[2], blocks[3])

	first := f.post(late.Blobs...)
	f.post(early.Blobs...)
	last := f.post(early.Blobs...)

	got, err := f.reader("rollup-a").ReadRange(context.Background(), first, last)
	require.NoError(t, err)
	require.Len(t, got, 4)
	for i, b := range got {
		assert.Equal(t, uint64(i+1), b.SequencerHeight)
		assert.Equal(t, blocks[i].Hash(), b.BlockHash)
		assert.Equal(t, blocks[i].Timestamp(), b.Timestamp)
	}
	assert.Equal(t, map[uint64][]string{
		1: {"a1"},
		2: {"a2", "a2'"},
		3: nil,
		4: {"a4"},
	}, payloads(got))

	other, err := f.reader("rollup-b").ReadRange(context.Background(), first, last)
	require.NoError(t, err)
	assert.Equal(t, map[uint64][]string{
		1: nil,
		2: {"b2"},
		3: {"b3"},
		4: nil,
	}, payloads(other))
}

func TestReadRange_DuplicateSubmissionsAreInvisible(t *testing.T) {
	once := newFixture(t)
	twice := newFixture(t)
	twice.vals = once.vals

	blocks := []*types.SequencerBlock{
		once.block(1, types.RollupDataTx("rollup-a", []byte("x"))),
		once.block(2, types.RollupDataTx("rollup-a", []byte("y"))),
	}
	batch := once.batch(blocks...)

	from := once.post(batch.Blobs...)
	to := from
	twiceFrom := twice.post(batch.Blobs...)
	twiceTo := twice.post(batch.Blobs...)

	want, err := once.reader("rollup-a").ReadRange(context.Background(), from, to)
	require.NoError(t, err)
	got, err := twice.reader("rollup-a").ReadRange(context.Background(), twiceFrom, twiceTo)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestReadRange_RejectsTamperedEntry(t *testing.T) {
	f := newFixture(t)
	batch := f.batch(f.block(1, types.RollupDataTx("rollup-a", []byte("honest"))))
	require.Len(t, batch.Blobs, 2)

	var blob types.Blob
	require.NoError(t, blob.UnmarshalBinary(batch.Blobs[1].Data))
	var rec types.RollupRecord
	require.NoError(t, rec.UnmarshalBinary(blob.Records[0].Payload))
	leaf := rec.Entries[0].Leaf
	leaf[len(leaf)-1] ^= 0xff
	payload, err := rec.MarshalBinary()
	require.NoError(t, err)
	blob.Records[0].Payload = payload
	data, err := blob.MarshalBinary()
	require.NoError(t, err)

	height := f.post(batch.Blobs[0], types.NamespacedBlob{Namespace: batch.Blobs[1].Namespace, Data: data})
	_, err = f.reader("rollup-a").ReadRange(context.Background(), height, height)
	require.ErrorIs(t, err, ErrInvalidProof)
}

func TestReadRange_MissingHeader(t *testing.T) {
	f := newFixture(t)
	batch := f.batch(f.block(1, types.RollupDataTx("rollup-a", []byte("orphan"))))

	height := f.post(batch.Blobs[1])
	_, err := f.reader("rollup-a").ReadRange(context.Background(), height, height)
	require.ErrorIs(t, err, ErrMissingHeader)
}

func TestReadRange_MissingRollupData(t *testing.T) {
	f := newFixture(t)
	batch := f.batch(f.block(1, types.RollupDataTx("rollup-a", []byte("lost"))))

	height := f.post(batch.Blobs[0])
	_, err := f.reader("rollup-a").ReadRange(context.Background(), height, height)
	require.ErrorIs(t, err, ErrMissingRollupData)
}

func TestReadRange_SkipsForeignBlobs(t *testing.T) {
	f := newFixture(t)
	batch := f.batch(f.block(1, types.RollupDataTx("rollup-a", []byte("ours"))))

	foreign := types.NewBatchBuilder("other-chain")
	hr, err := types.BlockRecords(types.MakeSignedBlock("other-chain", 1, nil, f.vals), nil)
	require.NoError(t, err)
	require.NoError(t, foreign.Add(hr))
	other, err := foreign.Build()
	require.NoError(t, err)

	seqNS := types.NamespaceFromChainID(chainID)
	height := f.post(
		types.NamespacedBlob{Namespace: seqNS, Data: []byte("garbage")},
		types.NamespacedBlob{Namespace: seqNS, Data: other.Blobs[0].Data},
		batch.Blobs[0],
		batch.Blobs[1],
	)

	got, err := f.reader("rollup-a").ReadRange(context.Background(), height, height)
	require.NoError(t, err)
	assert.Equal(t, map[uint64][]string{1: {"ours"}}, payloads(got))
}

func TestReadRange_InvalidRange(t *testing.T) {
	f := newFixture(t)
	_, err := f.reader("rollup-a").ReadRange(context.Background(), 5, 4)
	require.Error(t, err)
}

func TestReadRange_FutureHeight(t *testing.T) {
	f := newFixture(t)
	_, err := f.reader("rollup-a").ReadRange(context.Background(), 1, 1)
	require.ErrorIs(t, err, coreda.ErrHeightFromFuture)
}
