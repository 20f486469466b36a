package types

import (
	"errors"
	"fmt"
)

var (
	// ErrZeroHeight is returned for blocks at height zero.
	ErrZeroHeight = errors.New("block height must be positive")
	// ErrEmptyChainID is returned for blocks without a chain id.
	ErrEmptyChainID = errors.New("chain id is empty")
	// ErrCommitMismatch is returned when the commit does not refer to the block.
	ErrCommitMismatch = errors.New("commit does not match block")
)

// ValidateBasic performs stateless checks on the block structure.
func (b *SequencerBlock) ValidateBasic() error {
	if b.Height == 0 {
		return ErrZeroHeight
	}
	if b.ChainID == "" {
		return ErrEmptyChainID
	}
	if b.Commit.Height != b.Height {
		return fmt.Errorf("%w: commit height %d, block height %d", ErrCommitMismatch, b.Commit.Height, b.Height)
	}
	if hash := b.Hash(); b.Commit.BlockHash != hash {
		return fmt.Errorf("%w: commit hash %s, block hash %s", ErrCommitMismatch, b.Commit.BlockHash, hash)
	}
	return nil
}

// HasValidActionTreeRoot reports whether the block's action tree root commits
// to its transactions.
func (b *SequencerBlock) HasValidActionTreeRoot() bool {
	return ActionTreeRoot(b.Transactions) == b.ActionTreeRoot
}
