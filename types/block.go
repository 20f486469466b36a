package types

import (
	"encoding/hex"
	"fmt"
	"time"
)

const (
	// AddressSize is the size of validator and account addresses.
	AddressSize = 20
	// HashSize is the size of block hashes and Merkle roots.
	HashSize = 32
	// PubKeySize is the size of an ed25519 public key.
	PubKeySize = 32
)

// Address is a 20 byte account or validator address.
type Address [AddressSize]byte

func (a Address) String() string {
	return hex.EncodeToString(a[:])
}

// ParseAddress decodes a hex encoded address.
func ParseAddress(s string) (Address, error) {
	var a Address
	b, err := hex.DecodeString(s)
	if err != nil {
		return a, fmt.Errorf("invalid address %q: %w", s, err)
	}
	if len(b) != AddressSize {
		return a, fmt.Errorf("invalid address %q: expected %d bytes, got %d", s, AddressSize, len(b))
	}
	copy(a[:], b)
	return a, nil
}

// Hash is a 32 byte digest.
type Hash [HashSize]byte

func (h Hash) String() string {
	return hex.EncodeToString(h[:])
}

// IsZero reports whether h is the zero hash.
func (h Hash) IsZero() bool {
	return h == Hash{}
}

// SequencerBlock is a finalized block produced by the sequencer.
type SequencerBlock struct {
	Height          uint64
	Time            uint64 // unix nanoseconds
	ChainID         string
	ProposerAddress Address
	DataHash        Hash
	ActionTreeRoot  Hash
	Transactions    []SignedTransaction
	Commit          Commit
}

// Commit holds the validator signatures finalizing a block.
type Commit struct {
	Height     uint64
	Round      int32
	BlockHash  Hash
	Signatures []CommitSig
}

// CommitSig is a single validator's precommit signature.
type CommitSig struct {
	ValidatorAddress Address
	Timestamp        uint64
	Signature        []byte
}

// Timestamp returns the block time.
func (b *SequencerBlock) Timestamp() time.Time {
	return time.Unix(0, int64(b.Time)).UTC()
}

// Header returns the block header fields.
func (b *SequencerBlock) Header() Header {
	return Header{
		Height:          b.Height,
		Time:            b.Time,
		ChainID:         b.ChainID,
		ProposerAddress: b.ProposerAddress,
		DataHash:        b.DataHash,
		ActionTreeRoot:  b.ActionTreeRoot,
	}
}

// Hash returns the hash of the block header.
func (b *SequencerBlock) Hash() Hash {
	h := b.Header()
	return h.Hash()
}

// Header is the part of a sequencer block covered by its hash and by the
// validators' signatures.
type Header struct {
	Height          uint64
	Time            uint64
	ChainID         string
	ProposerAddress Address
	DataHash        Hash
	ActionTreeRoot  Hash
}
