package da

import (
	"context"
	"encoding/binary"
	"fmt"
	"time"
)

// DA defines the generic interface the relayer uses to talk to a Data
// Availability layer.
type DA interface {
	// MaxBlobSize returns the largest blob the DA layer accepts.
	MaxBlobSize(ctx context.Context) (uint64, error)

	// Get returns Blob for each given ID, or an error.
	//
	// Error should be returned if ID is not formatted properly, there is no Blob for given ID or any other client-level
	// error occurred (dropped connection, timeout, etc).
	Get(ctx context.Context, ids []ID, namespace []byte) ([]Blob, error)

	// GetIDs returns IDs of all Blobs located in DA at given height under namespace.
	// Heights above the current head fail with ErrHeightFromFuture.
	GetIDs(ctx context.Context, height uint64, namespace []byte) (*GetIDsResult, error)

	// Commit creates a Commitment for each given Blob.
	Commit(ctx context.Context, blobs []Blob, namespace []byte) ([]Commitment, error)

	// Submit submits the Blobs to Data Availability layer. namespaces[i] is the
	// namespace of blobs[i]; all blobs land at the same DA height.
	//
	// This method is synchronous. Upon successful submission to Data Availability layer, it returns the IDs identifying blobs
	// in DA.
	Submit(ctx context.Context, blobs []Blob, gasPrice float64, namespaces [][]byte) ([]ID, error)

	// Head returns the latest DA height.
	Head(ctx context.Context) (uint64, error)
}

// Blob is the data submitted/received from DA interface.
type Blob = []byte

// ID should contain serialized data required by the implementation to find blob in Data Availability layer.
type ID = []byte

// Commitment should contain serialized cryptographic commitment to Blob value.
type Commitment = []byte

// GetIDsResult holds the result of GetIDs call: IDs and timestamp of corresponding block.
type GetIDsResult struct {
	IDs       []ID
	Timestamp time.Time
}

// SubmitReceipt is returned by a successful submission. It implies the blobs
// are durable at DAHeight, not that they are final.
type SubmitReceipt struct {
	DAHeight    uint64
	Commitments []Commitment
}

// ConfirmStatus is the result of a confirmation query.
type ConfirmStatus uint8

const (
	// StatusPending means the DA head has not reached the queried height yet.
	StatusPending ConfirmStatus = iota
	// StatusConfirmed means the commitment is included at the queried height.
	StatusConfirmed
	// StatusNotFound means the queried height exists but does not include the commitment.
	StatusNotFound
)

func (s ConfirmStatus) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusConfirmed:
		return "confirmed"
	case StatusNotFound:
		return "not_found"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(s))
	}
}

// Confirmation is the result of Client.Confirm.
type Confirmation struct {
	Status     ConfirmStatus
	HeadHeight uint64
}

// Depth returns how many DA blocks, including daHeight itself, have been
// produced on top of the confirmed blob.
func (c Confirmation) Depth(daHeight uint64) uint64 {
	if c.Status != StatusConfirmed || c.HeadHeight < daHeight {
		return 0
	}
	return c.HeadHeight - daHeight + 1
}

// makeID creates an ID from a height and a commitment.
func makeID(height uint64, commitment []byte) []byte {
	id := make([]byte, len(commitment)+8)
	binary.LittleEndian.PutUint64(id, height)
	copy(id[8:], commitment)
	return id
}

// SplitID splits an ID into a height and a commitment.
// if len(id) <= 8, it returns 0 and nil.
func SplitID(id []byte) (uint64, []byte, error) {
	if len(id) <= 8 {
		return 0, nil, fmt.Errorf("invalid ID length: %d", len(id))
	}
	commitment := id[8:]
	return binary.LittleEndian.Uint64(id[:8]), commitment, nil
}
