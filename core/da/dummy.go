package da

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/minio/sha256-simd"
)

// DummyDA is a simple in-memory implementation of the DA interface for local
// runs and tests. Submitted blobs land at head+1 and become visible once the
// head advances, either through the height ticker or Produce.
type DummyDA struct {
	mu                 sync.RWMutex
	blobs              map[string]Blob
	ids                map[uint64]map[string][]ID
	timestampsByHeight map[uint64]time.Time
	maxBlobSize        uint64

	// DA height simulation
	currentHeight uint64
	blockTime     time.Duration
	stopCh        chan struct{}
	stopOnce      sync.Once
}

// NewDummyDA creates a new instance of DummyDA with the specified maximum blob size and block time.
func NewDummyDA(maxBlobSize uint64, blockTime time.Duration) *DummyDA {
	return &DummyDA{
		blobs:              make(map[string]Blob),
		ids:                make(map[uint64]map[string][]ID),
		timestampsByHeight: make(map[uint64]time.Time),
		maxBlobSize:        maxBlobSize,
		blockTime:          blockTime,
		stopCh:             make(chan struct{}),
	}
}

// StartHeightTicker starts a goroutine that increments the head every blockTime.
func (d *DummyDA) StartHeightTicker() {
	go func() {
		ticker := time.NewTicker(d.blockTime)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				d.Produce()
			case <-d.stopCh:
				return
			}
		}
	}()
}

// StopHeightTicker stops the height ticker goroutine.
func (d *DummyDA) StopHeightTicker() {
	d.stopOnce.Do(func() { close(d.stopCh) })
}

// Produce advances the head by one block.
func (d *DummyDA) Produce() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.currentHeight++
	if _, ok := d.timestampsByHeight[d.currentHeight]; !ok {
		d.timestampsByHeight[d.currentHeight] = time.Now()
	}
	return d.currentHeight
}

// Head returns the current DA height.
func (d *DummyDA) Head(context.Context) (uint64, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.currentHeight, nil
}

// MaxBlobSize returns the maximum blob size.
func (d *DummyDA) MaxBlobSize(context.Context) (uint64, error) {
	return d.maxBlobSize, nil
}

// Get returns blobs for the given IDs.
func (d *DummyDA) Get(_ context.Context, ids []ID, _ []byte) ([]Blob, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	blobs := make([]Blob, 0, len(ids))
	for _, id := range ids {
		height, _, err := SplitID(id)
		if err != nil {
			return nil, err
		}
		blob, exists := d.blobs[string(id)]
		if !exists || height > d.currentHeight {
			return nil, ErrBlobNotFound
		}
		blobs = append(blobs, blob)
	}
	return blobs, nil
}

// GetIDs returns IDs of all blobs at the given height and namespace.
func (d *DummyDA) GetIDs(_ context.Context, height uint64, namespace []byte) (*GetIDsResult, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if height > d.currentHeight {
		return nil, &FutureHeightError{Requested: height, Head: d.currentHeight}
	}

	return &GetIDsResult{
		IDs:       append([]ID(nil), d.ids[height][string(namespace)]...),
		Timestamp: d.timestampsByHeight[height],
	}, nil
}

// Commit creates commitments for the given blobs.
func (d *DummyDA) Commit(_ context.Context, blobs []Blob, _ []byte) ([]Commitment, error) {
	commitments := make([]Commitment, 0, len(blobs))
	for _, blob := range blobs {
		commitments = append(commitments, commitment(blob))
	}
	return commitments, nil
}

// Submit stores blobs at the next DA height.
func (d *DummyDA) Submit(_ context.Context, blobs []Blob, _ float64, namespaces [][]byte) ([]ID, error) {
	if len(blobs) != len(namespaces) {
		return nil, NewPermanentError(fmt.Errorf("%w: %d blobs, %d namespaces", ErrNamespaceInvalid, len(blobs), len(namespaces)))
	}
	for i, blob := range blobs {
		if uint64(len(blob)) > d.maxBlobSize {
			return nil, NewPermanentError(ErrBlobSizeOverLimit)
		}
		if len(namespaces[i]) == 0 {
			return nil, NewPermanentError(ErrNamespaceInvalid)
		}
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	height := d.currentHeight + 1
	if d.ids[height] == nil {
		d.ids[height] = make(map[string][]ID)
	}
	ids := make([]ID, 0, len(blobs))
	for i, blob := range blobs {
		id := makeID(height, commitment(blob))
		d.blobs[string(id)] = blob
		ns := string(namespaces[i])
		d.ids[height][ns] = append(d.ids[height][ns], id)
		ids = append(ids, id)
	}
	return ids, nil
}

func commitment(blob Blob) Commitment {
	sum := sha256.Sum256(blob)
	return sum[:]
}
