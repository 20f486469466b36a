// Package reader rebuilds rollup blocks from the blobs the relayer posts to
// the DA layer. It is the read path a conductor follows: decode, dedupe by
// submission id, order by sequencer height and check every rollup entry
// against the action tree root of its header.
package reader

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"cosmossdk.io/log"

	coreda "github.com/rollkit/sequencer-relayer/core/da"
	"github.com/rollkit/sequencer-relayer/pkg/merkle"
	"github.com/rollkit/sequencer-relayer/types"
)

var (
	// ErrInvalidProof is returned when a rollup entry does not verify against
	// the action tree root of its height.
	ErrInvalidProof = errors.New("invalid rollup inclusion proof")

	// ErrMissingHeader is returned when rollup data is found for a height
	// without a header record.
	ErrMissingHeader = errors.New("missing header record")

	// ErrMissingRollupData is returned when a header names the rollup but no
	// rollup record was found for its height.
	ErrMissingRollupData = errors.New("missing rollup record")

	// ErrConflictingHeaders is returned when two header records claim the
	// same height with different block hashes.
	ErrConflictingHeaders = errors.New("conflicting header records")
)

// DA is the read side of the DA client.
type DA interface {
	Retrieve(ctx context.Context, daHeight uint64, namespace []byte) ([]coreda.Blob, error)
}

// RollupBlock is the data of one sequencer height for one rollup.
type RollupBlock struct {
	SequencerHeight uint64
	BlockHash       types.Hash
	Timestamp       time.Time
	// Transactions are the rollup payloads in action tree order.
	Transactions [][]byte
}

// Reader reads the blocks of one rollup relayed from one sequencer chain.
type Reader struct {
	da       DA
	logger   log.Logger
	chainID  string
	seqNS    types.Namespace
	rollupNS types.Namespace
}

// New returns a reader for rollup on the sequencer chain chainID.
func New(da DA, chainID string, rollup types.RollupID, logger log.Logger) *Reader {
	return &Reader{
		da:       da,
		logger:   logger.With("module", "reader", "rollup", string(rollup)),
		chainID:  chainID,
		seqNS:    types.NamespaceFromChainID(chainID),
		rollupNS: rollup.Namespace(),
	}
}

// ReadRange returns the rollup blocks of every sequencer height found at DA
// heights [fromDA, toDA], ordered by sequencer height. Each height appears
// once no matter how many times it was submitted.
func (r *Reader) ReadRange(ctx context.Context, fromDA, toDA uint64) ([]RollupBlock, error) {
	if fromDA > toDA {
		return nil, fmt.Errorf("invalid DA range [%d, %d]", fromDA, toDA)
	}

	headers := make(map[uint64]*types.HeaderRecord)
	rollups := make(map[uint64]*types.RollupRecord)
	seenHeaders := make(map[types.Hash]struct{})
	seenRollups := make(map[types.Hash]struct{})

	for daHeight := fromDA; daHeight <= toDA; daHeight++ {
		blobs, err := r.da.Retrieve(ctx, daHeight, r.seqNS.Bytes())
		if err != nil {
			return nil, fmt.Errorf("failed to retrieve sequencer blobs at DA height %d: %w", daHeight, err)
		}
		for _, blob := range r.decode(daHeight, blobs, seenHeaders) {
			for _, rec := range blob.Records {
				var hr types.HeaderRecord
				if err := hr.UnmarshalBinary(rec.Payload); err != nil {
					return nil, fmt.Errorf("header record at height %d: %w", rec.SequencerHeight, err)
				}
				if hr.Header.Height != rec.SequencerHeight || hr.Header.Hash() != hr.BlockHash {
					return nil, fmt.Errorf("%w: header record at height %d does not match its block hash",
						types.ErrMalformed, rec.SequencerHeight)
				}
				if prev, ok := headers[rec.SequencerHeight]; ok {
					if prev.BlockHash != hr.BlockHash {
						return nil, fmt.Errorf("%w: height %d has %s and %s",
							ErrConflictingHeaders, rec.SequencerHeight, prev.BlockHash, hr.BlockHash)
					}
					continue
				}
				headers[rec.SequencerHeight] = &hr
			}
		}

		blobs, err = r.da.Retrieve(ctx, daHeight, r.rollupNS.Bytes())
		if err != nil {
			return nil, fmt.Errorf("failed to retrieve rollup blobs at DA height %d: %w", daHeight, err)
		}
		for _, blob := range r.decode(daHeight, blobs, seenRollups) {
			for _, rec := range blob.Records {
				if _, ok := rollups[rec.SequencerHeight]; ok {
					continue
				}
				var rr types.RollupRecord
				if err := rr.UnmarshalBinary(rec.Payload); err != nil {
					return nil, fmt.Errorf("rollup record at height %d: %w", rec.SequencerHeight, err)
				}
				rollups[rec.SequencerHeight] = &rr
			}
		}
	}

	for height := range rollups {
		if _, ok := headers[height]; !ok {
			return nil, fmt.Errorf("%w: height %d", ErrMissingHeader, height)
		}
	}

	heights := make([]uint64, 0, len(headers))
	for height := range headers {
		heights = append(heights, height)
	}
	slices.Sort(heights)

	out := make([]RollupBlock, 0, len(heights))
	for _, height := range heights {
		hr := headers[height]
		block := RollupBlock{
			SequencerHeight: height,
			BlockHash:       hr.BlockHash,
			Timestamp:       time.Unix(0, int64(hr.Header.Time)).UTC(),
		}
		rr, ok := rollups[height]
		if !slices.Contains(hr.RollupNamespaces, r.rollupNS) {
			if ok {
				return nil, fmt.Errorf("%w: height %d carries rollup data its header does not name", ErrInvalidProof, height)
			}
			out = append(out, block)
			continue
		}
		if !ok {
			return nil, fmt.Errorf("%w: height %d", ErrMissingRollupData, height)
		}
		txs, err := r.verify(hr, rr)
		if err != nil {
			return nil, fmt.Errorf("height %d: %w", height, err)
		}
		block.Transactions = txs
		out = append(out, block)
	}
	return out, nil
}

// decode parses blobs of this chain not seen before. Blobs of other chains
// and undecodable blobs share the namespace by accident and are skipped.
func (r *Reader) decode(daHeight uint64, blobs []coreda.Blob, seen map[types.Hash]struct{}) []*types.Blob {
	var out []*types.Blob
	for _, data := range blobs {
		var blob types.Blob
		if err := blob.UnmarshalBinary(data); err != nil {
			r.logger.Warn("skipping undecodable blob", "da_height", daHeight, "error", err)
			continue
		}
		if blob.ChainID != r.chainID {
			r.logger.Debug("skipping blob of another chain", "da_height", daHeight, "chain_id", blob.ChainID)
			continue
		}
		if _, ok := seen[blob.SubmissionID]; ok {
			r.logger.Debug("skipping duplicate submission", "da_height", daHeight, "submission_id", blob.SubmissionID)
			continue
		}
		seen[blob.SubmissionID] = struct{}{}
		out = append(out, &blob)
	}
	return out
}

func (r *Reader) verify(hr *types.HeaderRecord, rr *types.RollupRecord) ([][]byte, error) {
	root := [merkle.HashSize]byte(hr.Header.ActionTreeRoot)
	for i := range rr.Entries {
		e := &rr.Entries[i]
		ns, _, err := types.ParseLeaf(e.Leaf)
		if err != nil {
			return nil, err
		}
		if ns != r.rollupNS {
			return nil, fmt.Errorf("%w: entry %d belongs to namespace %s", ErrInvalidProof, i, ns)
		}
		if !merkle.Verify(&e.Proof, e.Leaf, root) {
			return nil, fmt.Errorf("%w: entry %d", ErrInvalidProof, i)
		}
	}
	return rr.Payloads()
}
