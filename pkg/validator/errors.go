package validator

import "errors"

var (
	// ErrInvalidSignature covers unknown proposers, commit signatures from
	// non-members, signatures that fail verification and commits that do not
	// match the block.
	ErrInvalidSignature = errors.New("invalid block signature")

	// ErrInsufficientVotingPower is returned when the commit carries two
	// thirds or less of the total voting power.
	ErrInsufficientVotingPower = errors.New("insufficient voting power")

	// ErrActionRootMismatch is returned when the action tree root does not
	// commit to the block's transactions.
	ErrActionRootMismatch = errors.New("action tree root mismatch")

	// ErrInvalidBlock is returned for structurally invalid blocks.
	ErrInvalidBlock = errors.New("invalid block")

	// ErrChainIDMismatch is returned for blocks of another sequencer chain.
	ErrChainIDMismatch = errors.New("chain id mismatch")

	// ErrInvalidValidatorSet is returned for malformed validator sets and
	// updates that would leave the set empty.
	ErrInvalidValidatorSet = errors.New("invalid validator set")
)
