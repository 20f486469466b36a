package types

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rollkit/sequencer-relayer/pkg/merkle"
)

const testChainID = "sequencer-test"

func fixtureRecords(t *testing.T, height uint64, txs ...SignedTransaction) *HeightRecords {
	t.Helper()
	block := MakeSignedBlock(testChainID, height, txs, GenerateValidators(1, 1))
	hr, err := BlockRecords(block, nil)
	require.NoError(t, err)
	return hr
}

func TestBlobLayout(t *testing.T) {
	blob := Blob{
		BlobHeader: BlobHeader{ChainID: "c", FirstHeight: 10, LastHeight: 11, SubmissionID: Hash{0xaa}},
		Records:    []BlobRecord{{SequencerHeight: 10, Payload: []byte("a")}, {SequencerHeight: 11, Payload: []byte{}}},
	}
	data, err := blob.MarshalBinary()
	require.NoError(t, err)
	require.Len(t, data, blob.Size())

	assert.Equal(t, []byte("ASTR"), data[:4])
	assert.Equal(t, uint16(1), binary.LittleEndian.Uint16(data[4:6]))
	assert.Equal(t, uint32(1), binary.LittleEndian.Uint32(data[6:10]))
	assert.Equal(t, byte('c'), data[10])
	assert.Equal(t, uint64(10), binary.LittleEndian.Uint64(data[11:19]))
	assert.Equal(t, uint64(11), binary.LittleEndian.Uint64(data[19:27]))
	assert.Equal(t, byte(0xaa), data[27])
	body := data[27+HashSize:]
	assert.Equal(t, uint64(10), binary.LittleEndian.Uint64(body[:8]))
	assert.Equal(t, uint32(1), binary.LittleEndian.Uint32(body[8:12]))
	assert.Equal(t, byte('a'), body[12])

	var decoded Blob
	require.NoError(t, decoded.UnmarshalBinary(data))
	assert.Equal(t, blob.BlobHeader, decoded.BlobHeader)
	require.Len(t, decoded.Records, 2)
	assert.Equal(t, uint64(11), decoded.Records[1].SequencerHeight)
}

func TestBlobRejectsCorruption(t *testing.T) {
	blob := Blob{BlobHeader: BlobHeader{ChainID: "c", FirstHeight: 1, LastHeight: 2}}
	blob.Records = []BlobRecord{{SequencerHeight: 2, Payload: []byte("x")}, {SequencerHeight: 1, Payload: []byte("y")}}
	data, err := blob.MarshalBinary()
	require.NoError(t, err)

	var out Blob
	require.ErrorIs(t, out.UnmarshalBinary(data), ErrNonContiguous)

	bad := append([]byte("ASTX"), data[4:]...)
	require.ErrorIs(t, out.UnmarshalBinary(bad), ErrBlobMagic)

	badVersion := append([]byte(nil), data...)
	badVersion[4] = 2
	require.ErrorIs(t, out.UnmarshalBinary(badVersion), ErrBlobVersion)

	require.ErrorIs(t, out.UnmarshalBinary(data[:len(data)-1]), ErrMalformed)
}

func TestBlockRecordsCarryVerifiableProofs(t *testing.T) {
	txs := []SignedTransaction{
		RollupDataTx("a", []byte("a1")),
		RollupDataTx("b", []byte("b1")),
		RollupDataTx("a", []byte("a2"), []byte("a3")),
	}
	block := MakeSignedBlock(testChainID, 5, txs, GenerateValidators(1, 1))
	hr, err := BlockRecords(block, nil)
	require.NoError(t, err)
	require.Len(t, hr.Records, 3)

	var header HeaderRecord
	require.NoError(t, header.UnmarshalBinary(hr.Records[NamespaceFromChainID(testChainID)]))
	assert.Equal(t, block.Hash(), header.BlockHash)
	assert.Equal(t, block.Hash(), header.Header.Hash())
	assert.Len(t, header.RollupNamespaces, 2)

	var rec RollupRecord
	require.NoError(t, rec.UnmarshalBinary(hr.Records[NewRollupID("a").Namespace()]))
	require.Len(t, rec.Entries, 2)
	for _, e := range rec.Entries {
		assert.Equal(t, uint64(3), e.Proof.TotalLeaves)
		assert.True(t, merkle.Verify(&e.Proof, e.Leaf, block.ActionTreeRoot))
	}
	payloads, err := rec.Payloads()
	require.NoError(t, err)
	assert.Equal(t, [][]byte{[]byte("a1"), []byte("a2"), []byte("a3")}, payloads)
}

func TestBlockRecordsFilter(t *testing.T) {
	block := MakeSignedBlock(testChainID, 5, []SignedTransaction{
		RollupDataTx("a", []byte("a1")),
		RollupDataTx("b", []byte("b1")),
	}, GenerateValidators(1, 1))
	onlyA := NewRollupID("a").Namespace()
	hr, err := BlockRecords(block, func(ns Namespace) bool { return ns == onlyA })
	require.NoError(t, err)
	assert.Len(t, hr.Records, 2)
	assert.Contains(t, hr.Records, onlyA)

	var rec RollupRecord
	require.NoError(t, rec.UnmarshalBinary(hr.Records[onlyA]))
	assert.Equal(t, uint64(2), rec.Entries[0].Proof.TotalLeaves)
}

func TestBatchBuilder(t *testing.T) {
	b := NewBatchBuilder(testChainID)
	for h := uint64(10); h <= 12; h++ {
		require.NoError(t, b.Add(fixtureRecords(t, h, RollupDataTx("n", []byte{byte(h)}))))
	}
	require.ErrorIs(t, b.Add(fixtureRecords(t, 14)), ErrNonContiguous)
	assert.Equal(t, 3, b.Len())

	batch, err := b.Build()
	require.NoError(t, err)
	assert.Equal(t, 0, b.Len())
	assert.Equal(t, uint64(10), batch.FirstHeight)
	assert.Equal(t, uint64(12), batch.LastHeight)
	require.Len(t, batch.Blobs, 2)
	assert.Equal(t, NamespaceFromChainID(testChainID), batch.Blobs[0].Namespace)

	var blob Blob
	require.NoError(t, blob.UnmarshalBinary(batch.Blobs[1].Data))
	assert.Equal(t, batch.SubmissionID, blob.SubmissionID)
	assert.Equal(t, uint64(10), blob.FirstHeight)
	assert.Equal(t, uint64(12), blob.LastHeight)
	assert.Len(t, blob.Records, 3)
}

func TestSubmissionIDDeterministic(t *testing.T) {
	hr := fixtureRecords(t, 3, RollupDataTx("n", []byte("x")))

	b1 := NewBatchBuilder(testChainID)
	require.NoError(t, b1.Add(hr))
	batch1, err := b1.Build()
	require.NoError(t, err)

	b2 := NewBatchBuilder(testChainID)
	require.NoError(t, b2.Add(hr))
	batch2, err := b2.Build()
	require.NoError(t, err)

	assert.Equal(t, batch1.SubmissionID, batch2.SubmissionID)
	assert.Equal(t, batch1.Blobs, batch2.Blobs)

	other := NewBatchBuilder(testChainID)
	require.NoError(t, other.Add(fixtureRecords(t, 3, RollupDataTx("n", []byte("y")))))
	batch3, err := other.Build()
	require.NoError(t, err)
	assert.NotEqual(t, batch1.SubmissionID, batch3.SubmissionID)
}

func TestMaxBlobSizeWith(t *testing.T) {
	b := NewBatchBuilder(testChainID)
	hr := fixtureRecords(t, 1, RollupDataTx("n", make([]byte, 100)))
	predicted := b.MaxBlobSizeWith(hr)
	require.NoError(t, b.Add(hr))

	next := fixtureRecords(t, 2, RollupDataTx("n", make([]byte, 100)))
	assert.Greater(t, b.MaxBlobSizeWith(next), predicted)

	batch, err := b.Build()
	require.NoError(t, err)
	largest := 0
	for _, blob := range batch.Blobs {
		largest = max(largest, len(blob.Data))
	}
	assert.Equal(t, predicted, largest)
}
