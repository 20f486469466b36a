package types

import (
	"encoding/binary"
	"fmt"
	"slices"

	"github.com/minio/sha256-simd"

	"github.com/rollkit/sequencer-relayer/pkg/merkle"
)

// NamespacedBlob is an encoded DA blob and the namespace it is posted under.
type NamespacedBlob struct {
	Namespace Namespace
	Data      []byte
}

// Batch is a set of contiguous sequencer heights packed into one DA blob per
// namespace. The sequencer namespace blob comes first, rollup namespaces
// follow in ascending order.
type Batch struct {
	ChainID      string
	FirstHeight  uint64
	LastHeight   uint64
	SubmissionID Hash
	Blobs        []NamespacedBlob
}

// Heights returns the number of sequencer heights covered by the batch.
func (b *Batch) Heights() uint64 {
	return b.LastHeight - b.FirstHeight + 1
}

// Size returns the total number of blob bytes in the batch.
func (b *Batch) Size() int {
	size := 0
	for _, blob := range b.Blobs {
		size += len(blob.Data)
	}
	return size
}

// HeightRecords are the records relayed for one sequencer height, keyed by
// namespace.
type HeightRecords struct {
	Height  uint64
	Records map[Namespace][]byte
}

// BlockRecords computes the records relayed for block: a header record under
// the sequencer namespace and a rollup record, with inclusion proofs, for each
// rollup namespace accepted by include. A nil include accepts every rollup.
func BlockRecords(block *SequencerBlock, include func(Namespace) bool) (*HeightRecords, error) {
	groups := GroupRollupData(block.Transactions)
	leaves := make([][]byte, len(groups))
	for i := range groups {
		leaves[i] = groups[i].Leaf()
	}
	tree := merkle.NewTree(leaves)

	byNamespace := make(map[Namespace]*RollupRecord)
	var namespaces []Namespace
	for i := range groups {
		ns := groups[i].Namespace
		if include != nil && !include(ns) {
			continue
		}
		proof, err := tree.Prove(uint64(i))
		if err != nil {
			return nil, err
		}
		rec, ok := byNamespace[ns]
		if !ok {
			rec = &RollupRecord{}
			byNamespace[ns] = rec
			namespaces = append(namespaces, ns)
		}
		rec.Entries = append(rec.Entries, RollupEntry{Leaf: leaves[i], Proof: *proof})
	}
	slices.SortFunc(namespaces, Namespace.Compare)

	out := &HeightRecords{Height: block.Height, Records: make(map[Namespace][]byte, len(namespaces)+1)}
	header, err := NewHeaderRecord(block, namespaces).MarshalBinary()
	if err != nil {
		return nil, err
	}
	out.Records[NamespaceFromChainID(block.ChainID)] = header
	for _, ns := range namespaces {
		payload, err := byNamespace[ns].MarshalBinary()
		if err != nil {
			return nil, err
		}
		out.Records[ns] = payload
	}
	return out, nil
}

// BatchBuilder accumulates the records of contiguous heights into a batch.
type BatchBuilder struct {
	chainID   string
	sequencer Namespace
	first     uint64
	last      uint64
	records   map[Namespace][]BlobRecord
	sizes     map[Namespace]int
}

// NewBatchBuilder returns an empty builder for the sequencer chain chainID.
func NewBatchBuilder(chainID string) *BatchBuilder {
	b := &BatchBuilder{chainID: chainID, sequencer: NamespaceFromChainID(chainID)}
	b.Reset()
	return b
}

// Reset discards all accumulated heights.
func (b *BatchBuilder) Reset() {
	b.first, b.last = 0, 0
	b.records = make(map[Namespace][]BlobRecord)
	b.sizes = make(map[Namespace]int)
}

// Len returns the number of heights accumulated.
func (b *BatchBuilder) Len() int {
	if b.last == 0 {
		return 0
	}
	return int(b.last - b.first + 1)
}

// MaxBlobSizeWith returns the size of the largest blob of the batch if hr
// were added.
func (b *BatchBuilder) MaxBlobSizeWith(hr *HeightRecords) int {
	headerSize := HeaderSize(b.chainID)
	largest := 0
	for ns, size := range b.sizes {
		if _, ok := hr.Records[ns]; !ok && size > largest {
			largest = size
		}
	}
	for ns, payload := range hr.Records {
		size := b.sizes[ns]
		if size == 0 {
			size = headerSize
		}
		size += RecordSize(len(payload))
		if size > largest {
			largest = size
		}
	}
	return largest
}

// Add appends the records of the next height. Heights must be contiguous.
func (b *BatchBuilder) Add(hr *HeightRecords) error {
	if b.last != 0 && hr.Height != b.last+1 {
		return fmt.Errorf("%w: height %d after %d", ErrNonContiguous, hr.Height, b.last)
	}
	if b.last == 0 {
		b.first = hr.Height
	}
	b.last = hr.Height
	for ns, payload := range hr.Records {
		if b.sizes[ns] == 0 {
			b.sizes[ns] = HeaderSize(b.chainID)
		}
		b.sizes[ns] += RecordSize(len(payload))
		b.records[ns] = append(b.records[ns], BlobRecord{SequencerHeight: hr.Height, Payload: payload})
	}
	return nil
}

// Build encodes the accumulated heights into a batch and resets the builder.
func (b *BatchBuilder) Build() (*Batch, error) {
	if b.Len() == 0 {
		return nil, fmt.Errorf("%w: empty batch", ErrMalformed)
	}

	namespaces := make([]Namespace, 0, len(b.records))
	for ns := range b.records {
		if ns != b.sequencer {
			namespaces = append(namespaces, ns)
		}
	}
	slices.SortFunc(namespaces, Namespace.Compare)
	if _, ok := b.records[b.sequencer]; ok {
		namespaces = append([]Namespace{b.sequencer}, namespaces...)
	}

	bodies := make([][]byte, len(namespaces))
	for i, ns := range namespaces {
		bodies[i] = EncodeBlobBody(b.records[ns])
	}

	batch := &Batch{
		ChainID:      b.chainID,
		FirstHeight:  b.first,
		LastHeight:   b.last,
		SubmissionID: SubmissionID(b.first, namespaces, bodies),
	}
	for _, ns := range namespaces {
		blob := Blob{
			BlobHeader: BlobHeader{
				ChainID:      b.chainID,
				FirstHeight:  b.first,
				LastHeight:   b.last,
				SubmissionID: batch.SubmissionID,
			},
			Records: b.records[ns],
		}
		data, err := blob.MarshalBinary()
		if err != nil {
			return nil, err
		}
		batch.Blobs = append(batch.Blobs, NamespacedBlob{Namespace: ns, Data: data})
	}

	b.Reset()
	return batch, nil
}

// SubmissionID is the content address of a batch:
// sha256(u64 LE first_height || repeated(namespace || u64 LE len(body) || body)).
func SubmissionID(firstHeight uint64, namespaces []Namespace, bodies [][]byte) Hash {
	h := sha256.New()
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], firstHeight)
	h.Write(buf[:])
	for i, ns := range namespaces {
		h.Write(ns[:])
		binary.LittleEndian.PutUint64(buf[:], uint64(len(bodies[i])))
		h.Write(buf[:])
		h.Write(bodies[i])
	}
	var id Hash
	copy(id[:], h.Sum(nil))
	return id
}
