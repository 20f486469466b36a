package types

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/rollkit/sequencer-relayer/pkg/merkle"
)

// HeaderRecord is the payload relayed to the sequencer namespace for every
// height. It lets readers verify rollup entries without the full block.
type HeaderRecord struct {
	Header           Header
	BlockHash        Hash
	RollupNamespaces []Namespace
}

// RollupEntry is one action tree leaf together with its inclusion proof.
type RollupEntry struct {
	Leaf  []byte
	Proof merkle.InclusionProof
}

// RollupRecord is the payload relayed to a rollup namespace for one height.
// Entries keep the order of the action tree.
type RollupRecord struct {
	Entries []RollupEntry
}

// NewHeaderRecord builds the header record of block.
func NewHeaderRecord(block *SequencerBlock, namespaces []Namespace) *HeaderRecord {
	return &HeaderRecord{
		Header:           block.Header(),
		BlockHash:        block.Hash(),
		RollupNamespaces: namespaces,
	}
}

// MarshalBinary encodes the header record.
func (r *HeaderRecord) MarshalBinary() ([]byte, error) {
	var b []byte
	b = appendBytesField(b, 1, r.Header.MarshalBinary())
	b = appendBytesField(b, 2, r.BlockHash[:])
	for _, ns := range r.RollupNamespaces {
		b = appendBytesField(b, 3, ns[:])
	}
	return b, nil
}

// UnmarshalBinary decodes a header record.
func (r *HeaderRecord) UnmarshalBinary(data []byte) error {
	*r = HeaderRecord{}
	return walkFields(data, func(num protowire.Number, _ protowire.Type, _ uint64, raw []byte) error {
		switch num {
		case 1:
			return unmarshalHeader(&r.Header, raw)
		case 2:
			return copyFixed(r.BlockHash[:], raw, "block_hash")
		case 3:
			ns, err := NamespaceFromBytes(raw)
			if err != nil {
				return err
			}
			r.RollupNamespaces = append(r.RollupNamespaces, ns)
		}
		return nil
	})
}

// MarshalBinary encodes the rollup record.
func (r *RollupRecord) MarshalBinary() ([]byte, error) {
	var b []byte
	for _, e := range r.Entries {
		var entry []byte
		entry = appendBytesField(entry, 1, e.Leaf)
		entry = appendVarintField(entry, 2, e.Proof.LeafIndex)
		entry = appendVarintField(entry, 3, e.Proof.TotalLeaves)
		for _, s := range e.Proof.SiblingHashes {
			entry = appendBytesField(entry, 4, s[:])
		}
		b = appendBytesField(b, 1, entry)
	}
	return b, nil
}

// UnmarshalBinary decodes a rollup record.
func (r *RollupRecord) UnmarshalBinary(data []byte) error {
	*r = RollupRecord{}
	return walkFields(data, func(num protowire.Number, _ protowire.Type, _ uint64, raw []byte) error {
		if num != 1 {
			return nil
		}
		var e RollupEntry
		err := walkFields(raw, func(n protowire.Number, _ protowire.Type, v uint64, f []byte) error {
			switch n {
			case 1:
				e.Leaf = append([]byte(nil), f...)
			case 2:
				e.Proof.LeafIndex = v
			case 3:
				e.Proof.TotalLeaves = v
			case 4:
				var s [merkle.HashSize]byte
				if err := copyFixed(s[:], f, "sibling"); err != nil {
					return err
				}
				e.Proof.SiblingHashes = append(e.Proof.SiblingHashes, s)
			}
			return nil
		})
		if err != nil {
			return err
		}
		r.Entries = append(r.Entries, e)
		return nil
	})
}

// Payloads returns the rollup payloads of the record in action tree order.
func (r *RollupRecord) Payloads() ([][]byte, error) {
	var out [][]byte
	for i, e := range r.Entries {
		_, payloads, err := ParseLeaf(e.Leaf)
		if err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}
		out = append(out, payloads...)
	}
	return out, nil
}

func unmarshalHeader(h *Header, data []byte) error {
	return walkFields(data, func(num protowire.Number, _ protowire.Type, v uint64, raw []byte) error {
		switch num {
		case fieldBlockHeight:
			h.Height = v
		case fieldBlockTime:
			h.Time = v
		case fieldBlockChainID:
			h.ChainID = string(raw)
		case fieldBlockProposer:
			return copyFixed(h.ProposerAddress[:], raw, "proposer_address")
		case fieldBlockDataHash:
			return copyFixed(h.DataHash[:], raw, "data_hash")
		case fieldBlockActionTreeRoot:
			return copyFixed(h.ActionTreeRoot[:], raw, "action_tree_root")
		}
		return nil
	})
}
