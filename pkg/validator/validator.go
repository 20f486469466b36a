package validator

import (
	"errors"
	"fmt"
	"sync"

	"cosmossdk.io/log"

	"github.com/rollkit/sequencer-relayer/types"
)

// Validator verifies sequencer blocks against a trusted validator set and
// follows set rotations carried by accepted blocks.
type Validator struct {
	chainID   string
	logger    log.Logger
	snapshots *SnapshotFile

	mu sync.RWMutex
	// epochs is ordered by FromHeight; the last one is current.
	epochs []Epoch
}

// Option configures a Validator.
type Option func(*Validator)

// WithSnapshotFile records every rotation in f and lets Resume restore it.
func WithSnapshotFile(f *SnapshotFile) Option {
	return func(v *Validator) {
		v.snapshots = f
	}
}

// New returns a validator for chainID trusting set.
func New(chainID string, set *ValidatorSet, logger log.Logger, opts ...Option) *Validator {
	v := &Validator{
		chainID: chainID,
		epochs:  []Epoch{{Set: set}},
		logger:  logger.With("module", "validator"),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Set returns the current validator set snapshot.
func (v *Validator) Set() *ValidatorSet {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.epochs[len(v.epochs)-1].Set
}

// Resume restores the recorded rotations before relaying resumes at
// nextHeight. Rotations taking effect above nextHeight are dropped: the
// blocks carrying them are delivered again and re-applied.
func (v *Validator) Resume(nextHeight uint64) error {
	if v.snapshots == nil {
		return nil
	}
	epochs, err := v.snapshots.Load()
	if errors.Is(err, ErrSnapshotNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	keep := 0
	for keep < len(epochs) && epochs[keep].FromHeight <= nextHeight {
		keep++
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	if keep == 0 {
		v.logger.Warn("recorded validator sets all start above the resume height, using the configured set",
			"next_height", nextHeight, "first_epoch", epochs[0].FromHeight)
		return v.snapshots.Save(v.epochs)
	}
	current := epochs[keep-1]
	v.logger.Info("restored validator set",
		"from_height", current.FromHeight,
		"validators", current.Set.Size(),
		"total_power", current.Set.TotalPower(),
		"dropped_epochs", len(epochs)-keep)
	v.epochs = epochs[:keep]
	if keep < len(epochs) {
		return v.snapshots.Save(v.epochs)
	}
	return nil
}

// Verify checks the block against the current set without changing it.
func (v *Validator) Verify(block *types.SequencerBlock) error {
	return verify(v.chainID, v.Set(), block)
}

// Accept verifies the block and then applies its validator updates, which
// take effect from the next height. With a snapshot file the rotation is on
// disk before it is applied.
func (v *Validator) Accept(block *types.SequencerBlock) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	current := v.epochs[len(v.epochs)-1].Set
	if err := verify(v.chainID, current, block); err != nil {
		return err
	}
	updates := types.ValidatorUpdates(block.Transactions)
	if len(updates) == 0 {
		return nil
	}
	next, err := current.Apply(updates)
	if err != nil {
		return fmt.Errorf("block %d: %w", block.Height, err)
	}

	epochs := append(v.epochs[:len(v.epochs):len(v.epochs)], Epoch{FromHeight: block.Height + 1, Set: next})
	if v.snapshots != nil {
		if err := v.snapshots.Save(epochs); err != nil {
			return fmt.Errorf("failed to record validator set rotated at height %d: %w", block.Height, err)
		}
	}
	v.logger.Info("validator set rotated",
		"height", block.Height,
		"updates", len(updates),
		"validators", next.Size(),
		"total_power", next.TotalPower())
	v.epochs = epochs
	return nil
}

func verify(chainID string, set *ValidatorSet, block *types.SequencerBlock) error {
	if err := block.ValidateBasic(); err != nil {
		if errors.Is(err, types.ErrCommitMismatch) {
			return fmt.Errorf("%w: %w", ErrInvalidSignature, err)
		}
		return fmt.Errorf("%w: %w", ErrInvalidBlock, err)
	}
	if block.ChainID != chainID {
		return fmt.Errorf("%w: block %d is for %q, expected %q", ErrChainIDMismatch, block.Height, block.ChainID, chainID)
	}
	if _, ok := set.Get(block.ProposerAddress); !ok {
		return fmt.Errorf("%w: unknown proposer %s at height %d", ErrInvalidSignature, block.ProposerAddress, block.Height)
	}

	msg := block.Commit.SignBytes(chainID)
	signed := make(map[types.Address]struct{}, len(block.Commit.Signatures))
	var power int64
	for i, sig := range block.Commit.Signatures {
		member, ok := set.Get(sig.ValidatorAddress)
		if !ok {
			return fmt.Errorf("%w: signature %d from unknown validator %s", ErrInvalidSignature, i, sig.ValidatorAddress)
		}
		if !member.PubKey.VerifySignature(msg, sig.Signature) {
			return fmt.Errorf("%w: signature %d from %s does not verify", ErrInvalidSignature, i, sig.ValidatorAddress)
		}
		if _, dup := signed[sig.ValidatorAddress]; dup {
			continue
		}
		signed[sig.ValidatorAddress] = struct{}{}
		power += member.Power
	}
	if power*3 <= set.TotalPower()*2 {
		return fmt.Errorf("%w: %d of %d at height %d", ErrInsufficientVotingPower, power, set.TotalPower(), block.Height)
	}

	if !block.HasValidActionTreeRoot() {
		return fmt.Errorf("%w: height %d", ErrActionRootMismatch, block.Height)
	}
	return nil
}
