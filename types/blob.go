package types

import (
	"encoding/binary"
	"fmt"
)

const (
	// BlobMagic starts every DA blob written by the relayer.
	BlobMagic = "ASTR"
	// BlobVersion is the current DA blob layout version.
	BlobVersion uint16 = 1
)

// BlobHeader is embedded at the front of every DA blob.
type BlobHeader struct {
	ChainID      string
	FirstHeight  uint64
	LastHeight   uint64
	SubmissionID Hash
}

// BlobRecord is a body entry: the payload relayed for one sequencer height.
type BlobRecord struct {
	SequencerHeight uint64
	Payload         []byte
}

// Blob is the payload posted to the DA layer for one (namespace, batch) pair.
type Blob struct {
	BlobHeader
	Records []BlobRecord
}

// HeaderSize returns the encoded size of a blob header for chainID.
func HeaderSize(chainID string) int {
	return len(BlobMagic) + 2 + 4 + len(chainID) + 8 + 8 + HashSize
}

// RecordSize returns the encoded size of a body record carrying payloadLen bytes.
func RecordSize(payloadLen int) int {
	return 8 + 4 + payloadLen
}

// Size returns the encoded size of the blob.
func (b *Blob) Size() int {
	size := HeaderSize(b.ChainID)
	for _, r := range b.Records {
		size += RecordSize(len(r.Payload))
	}
	return size
}

// MarshalBinary encodes the blob. All integers are little-endian.
func (b *Blob) MarshalBinary() ([]byte, error) {
	out := make([]byte, 0, b.Size())
	out = append(out, BlobMagic...)
	out = binary.LittleEndian.AppendUint16(out, BlobVersion)
	out = binary.LittleEndian.AppendUint32(out, uint32(len(b.ChainID)))
	out = append(out, b.ChainID...)
	out = binary.LittleEndian.AppendUint64(out, b.FirstHeight)
	out = binary.LittleEndian.AppendUint64(out, b.LastHeight)
	out = append(out, b.SubmissionID[:]...)
	return append(out, EncodeBlobBody(b.Records)...), nil
}

// EncodeBlobBody encodes the body records of a blob.
func EncodeBlobBody(records []BlobRecord) []byte {
	size := 0
	for _, r := range records {
		size += RecordSize(len(r.Payload))
	}
	out := make([]byte, 0, size)
	for _, r := range records {
		out = binary.LittleEndian.AppendUint64(out, r.SequencerHeight)
		out = binary.LittleEndian.AppendUint32(out, uint32(len(r.Payload)))
		out = append(out, r.Payload...)
	}
	return out
}

// UnmarshalBinary decodes a blob and checks that record heights are ascending
// and within the header's range.
func (b *Blob) UnmarshalBinary(data []byte) error {
	*b = Blob{}
	r := reader{buf: data}

	magic := r.next(len(BlobMagic))
	if r.err != nil || string(magic) != BlobMagic {
		return ErrBlobMagic
	}
	if v := r.u16(); r.err == nil && v != BlobVersion {
		return fmt.Errorf("%w: %d", ErrBlobVersion, v)
	}
	chainIDLen := r.u32()
	b.ChainID = string(r.next(int(chainIDLen)))
	b.FirstHeight = r.u64()
	b.LastHeight = r.u64()
	copy(b.SubmissionID[:], r.next(HashSize))
	if r.err != nil {
		return r.err
	}
	if b.FirstHeight > b.LastHeight {
		return fmt.Errorf("%w: first height %d after last height %d", ErrMalformed, b.FirstHeight, b.LastHeight)
	}

	prev := uint64(0)
	for len(r.buf) > 0 {
		height := r.u64()
		payload := r.next(int(r.u32()))
		if r.err != nil {
			return r.err
		}
		if height < b.FirstHeight || height > b.LastHeight || (len(b.Records) > 0 && height <= prev) {
			return fmt.Errorf("%w: record height %d in blob [%d, %d]", ErrNonContiguous, height, b.FirstHeight, b.LastHeight)
		}
		prev = height
		b.Records = append(b.Records, BlobRecord{SequencerHeight: height, Payload: append([]byte(nil), payload...)})
	}
	return nil
}

type reader struct {
	buf []byte
	err error
}

func (r *reader) next(n int) []byte {
	if r.err != nil {
		return nil
	}
	if n < 0 || len(r.buf) < n {
		r.err = fmt.Errorf("%w: unexpected end of blob", ErrMalformed)
		return nil
	}
	out := r.buf[:n]
	r.buf = r.buf[n:]
	return out
}

func (r *reader) u16() uint16 {
	b := r.next(2)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint16(b)
}

func (r *reader) u32() uint32 {
	b := r.next(4)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint32(b)
}

func (r *reader) u64() uint64 {
	b := r.next(8)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint64(b)
}
