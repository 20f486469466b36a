package types

import (
	"github.com/minio/sha256-simd"
	"google.golang.org/protobuf/encoding/protowire"
)

// Hash returns the hash of the header.
func (h *Header) Hash() Hash {
	return sha256.Sum256(h.MarshalBinary())
}

// VoteSignBytes returns the bytes a validator signs to commit to a block.
func VoteSignBytes(chainID string, height uint64, round int32, blockHash Hash) []byte {
	var b []byte
	b = protowire.AppendTag(b, 1, protowire.BytesType)
	b = protowire.AppendString(b, chainID)
	b = protowire.AppendTag(b, 2, protowire.VarintType)
	b = protowire.AppendVarint(b, height)
	b = protowire.AppendTag(b, 3, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(round))
	b = protowire.AppendTag(b, 4, protowire.BytesType)
	b = protowire.AppendBytes(b, blockHash[:])
	return b
}

// SignBytes returns the bytes validators sign for this commit.
func (c *Commit) SignBytes(chainID string) []byte {
	return VoteSignBytes(chainID, c.Height, c.Round, c.BlockHash)
}
